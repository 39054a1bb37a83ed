package orderflow

import (
	"fmt"
	"sort"
	"sync"
	"time"

	cache "github.com/patrickmn/go-cache"
)

// Window durations used throughout metrics, behavior, pattern, and
// level derivation.
const (
	Window10s  = 10 * time.Second
	Window60s  = 60 * time.Second
	Window5Min = 5 * time.Minute
)

// Store is the quote store contract: an append-only, time-ordered
// per-ticker quote buffer plus TTL-bearing derived slots. Concrete
// realizations may be in-memory, a sorted-set KV service, or an RPC
// shim fronting one — callers depend only on this interface.
type Store interface {
	Append(ticker string, q Quote) error
	Latest(ticker string) (Quote, bool, error)
	Range(ticker string, fromMS, toMS int64) ([]Quote, error)
	Prune(ticker string, olderThanMS int64) error

	// TrackedTickers returns tickers with at least one quote, newest
	// activity first is not guaranteed — order is unspecified.
	TrackedTickers() []string
	// EvictIdle drops tickers whose last appended quote is more than
	// idle older than now and returns the evicted ticker symbols.
	EvictIdle(now time.Time, idle time.Duration) []string

	PutMetrics(ticker string, window time.Duration, m MetricsRecord, ttl time.Duration)
	GetMetrics(ticker string, window time.Duration) (MetricsRecord, bool)

	PutBehaviors(ticker string, b BehaviorFlags)
	GetBehaviors(ticker string) (BehaviorFlags, bool)

	AppendPattern(ticker string, p Pattern, ttl time.Duration)
	Patterns(ticker string, fromMS, toMS int64) []Pattern
	PrunePatterns(ticker string, olderThanMS int64)

	PutLevels(ticker string, side Side, levels []PriceLevel, ttl time.Duration)
	GetLevels(ticker string, side Side) ([]PriceLevel, bool)
}

type tickerShard struct {
	mu       sync.RWMutex
	quotes   []Quote // ascending by TimestampMS, unique timestamps
	lastSeen time.Time
}

func (s *tickerShard) append(q Quote) {
	s.mu.Lock()
	defer s.mu.Unlock()

	n := len(s.quotes)
	if n > 0 && s.quotes[n-1].TimestampMS == q.TimestampMS {
		s.quotes[n-1] = q // equal-timestamp entries collapse to the last observed
	} else if n > 0 && s.quotes[n-1].TimestampMS > q.TimestampMS {
		// Out-of-order arrival: insert in place, still collapsing equal timestamps.
		i := sort.Search(n, func(i int) bool { return s.quotes[i].TimestampMS >= q.TimestampMS })
		if i < n && s.quotes[i].TimestampMS == q.TimestampMS {
			s.quotes[i] = q
		} else {
			s.quotes = append(s.quotes, Quote{})
			copy(s.quotes[i+1:], s.quotes[i:])
			s.quotes[i] = q
		}
	} else {
		s.quotes = append(s.quotes, q)
	}
	s.lastSeen = time.UnixMilli(q.TimestampMS)
}

func (s *tickerShard) latest() (Quote, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if len(s.quotes) == 0 {
		return Quote{}, false
	}
	return s.quotes[len(s.quotes)-1], true
}

// rangeSnapshot returns a consistent, time-ascending copy of the
// quotes in [fromMS, toMS]. The copy means a concurrent append during
// the caller's subsequent processing never torn-reads a single quote
// and never retroactively mutates a slice already handed to a caller.
func (s *tickerShard) rangeSnapshot(fromMS, toMS int64) []Quote {
	s.mu.RLock()
	defer s.mu.RUnlock()

	lo := sort.Search(len(s.quotes), func(i int) bool { return s.quotes[i].TimestampMS >= fromMS })
	hi := sort.Search(len(s.quotes), func(i int) bool { return s.quotes[i].TimestampMS > toMS })
	if lo >= hi {
		return nil
	}
	out := make([]Quote, hi-lo)
	copy(out, s.quotes[lo:hi])
	return out
}

func (s *tickerShard) prune(olderThanMS int64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	i := sort.Search(len(s.quotes), func(i int) bool { return s.quotes[i].TimestampMS >= olderThanMS })
	if i > 0 {
		s.quotes = append([]Quote(nil), s.quotes[i:]...)
	}
}

// MemoryStore is the default in-memory realization of Store: a sorted
// per-ticker slice for quotes, and go-cache for the TTL derived slots
// (metrics/behaviors/patterns/levels).
type MemoryStore struct {
	mu     sync.RWMutex
	shards map[string]*tickerShard

	metrics   *cache.Cache
	behaviors *cache.Cache
	patterns  *cache.Cache
	levels    *cache.Cache

	patternMu sync.Mutex // guards read-modify-write on a ticker's pattern slice
}

// NewMemoryStore constructs an empty store. cleanupInterval controls
// how often go-cache sweeps expired derived-slot entries.
func NewMemoryStore(cleanupInterval time.Duration) *MemoryStore {
	return &MemoryStore{
		shards:    make(map[string]*tickerShard),
		metrics:   cache.New(cache.NoExpiration, cleanupInterval),
		behaviors: cache.New(cache.NoExpiration, cleanupInterval),
		patterns:  cache.New(cache.NoExpiration, cleanupInterval),
		levels:    cache.New(cache.NoExpiration, cleanupInterval),
	}
}

func (m *MemoryStore) shard(ticker string, create bool) *tickerShard {
	m.mu.RLock()
	s, ok := m.shards[ticker]
	m.mu.RUnlock()
	if ok || !create {
		return s
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if s, ok = m.shards[ticker]; ok {
		return s
	}
	s = &tickerShard{}
	m.shards[ticker] = s
	return s
}

func (m *MemoryStore) Append(ticker string, q Quote) error {
	if err := q.Validate(); err != nil {
		return err
	}
	m.shard(ticker, true).append(q)
	return nil
}

func (m *MemoryStore) Latest(ticker string) (Quote, bool, error) {
	s := m.shard(ticker, false)
	if s == nil {
		return Quote{}, false, nil
	}
	q, ok := s.latest()
	return q, ok, nil
}

func (m *MemoryStore) Range(ticker string, fromMS, toMS int64) ([]Quote, error) {
	s := m.shard(ticker, false)
	if s == nil {
		return nil, nil
	}
	return s.rangeSnapshot(fromMS, toMS), nil
}

func (m *MemoryStore) Prune(ticker string, olderThanMS int64) error {
	s := m.shard(ticker, false)
	if s == nil {
		return nil
	}
	s.prune(olderThanMS)
	return nil
}

func (m *MemoryStore) TrackedTickers() []string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]string, 0, len(m.shards))
	for t := range m.shards {
		out = append(out, t)
	}
	return out
}

func (m *MemoryStore) EvictIdle(now time.Time, idle time.Duration) []string {
	m.mu.Lock()
	defer m.mu.Unlock()

	var evicted []string
	for t, s := range m.shards {
		s.mu.RLock()
		last := s.lastSeen
		s.mu.RUnlock()
		if !last.IsZero() && now.Sub(last) > idle {
			delete(m.shards, t)
			evicted = append(evicted, t)
		}
	}
	return evicted
}

func metricsKey(ticker string, window time.Duration) string {
	return fmt.Sprintf("%s:%s", ticker, window)
}

func (m *MemoryStore) PutMetrics(ticker string, window time.Duration, rec MetricsRecord, ttl time.Duration) {
	m.metrics.Set(metricsKey(ticker, window), rec, ttl)
}

func (m *MemoryStore) GetMetrics(ticker string, window time.Duration) (MetricsRecord, bool) {
	v, ok := m.metrics.Get(metricsKey(ticker, window))
	if !ok {
		return MetricsRecord{}, false
	}
	return v.(MetricsRecord), true
}

func (m *MemoryStore) PutBehaviors(ticker string, b BehaviorFlags) {
	m.behaviors.Set(ticker, b, cache.NoExpiration)
}

func (m *MemoryStore) GetBehaviors(ticker string) (BehaviorFlags, bool) {
	v, ok := m.behaviors.Get(ticker)
	if !ok {
		return BehaviorFlags{}, false
	}
	return v.(BehaviorFlags), true
}

func (m *MemoryStore) AppendPattern(ticker string, p Pattern, ttl time.Duration) {
	m.patternMu.Lock()
	defer m.patternMu.Unlock()

	var existing []Pattern
	if v, ok := m.patterns.Get(ticker); ok {
		existing = v.([]Pattern)
	}
	existing = appendPatternSuppressed(existing, p)
	m.patterns.Set(ticker, existing, ttl)
}

func (m *MemoryStore) Patterns(ticker string, fromMS, toMS int64) []Pattern {
	v, ok := m.patterns.Get(ticker)
	if !ok {
		return nil
	}
	all := v.([]Pattern)
	out := make([]Pattern, 0, len(all))
	for _, p := range all {
		if p.TimestampMS >= fromMS && p.TimestampMS <= toMS {
			out = append(out, p)
		}
	}
	return out
}

func (m *MemoryStore) PrunePatterns(ticker string, olderThanMS int64) {
	m.patternMu.Lock()
	defer m.patternMu.Unlock()

	v, expiresAt, ok := m.patterns.GetWithExpiration(ticker)
	if !ok {
		return
	}
	all := v.([]Pattern)
	out := all[:0:0]
	for _, p := range all {
		if p.TimestampMS >= olderThanMS {
			out = append(out, p)
		}
	}

	ttl := cache.NoExpiration
	if !expiresAt.IsZero() {
		ttl = time.Until(expiresAt)
	}
	m.patterns.Set(ticker, out, ttl)
}

func levelsKey(ticker string, side Side) string {
	return fmt.Sprintf("%s:%s", ticker, side)
}

func (m *MemoryStore) PutLevels(ticker string, side Side, levels []PriceLevel, ttl time.Duration) {
	m.levels.Set(levelsKey(ticker, side), levels, ttl)
}

func (m *MemoryStore) GetLevels(ticker string, side Side) ([]PriceLevel, bool) {
	v, ok := m.levels.Get(levelsKey(ticker, side))
	if !ok {
		return nil, false
	}
	return v.([]PriceLevel), true
}
