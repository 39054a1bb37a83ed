package orderflow

import (
	"errors"
	"fmt"
	"time"

	"github.com/sony/gobreaker"
	"go.uber.org/zap"
)

// breakerStore wraps a Store's genuine backing-I/O operations
// (Append/Latest/Range/Prune) with a circuit breaker: a backing-store
// I/O error propagates as ErrStoreUnavailable and is never retried
// here. Derived-slot operations stay direct — in the in-memory
// realization they are process-local go-cache lookups, not
// backing-store calls.
type breakerStore struct {
	inner   Store
	breaker *gobreaker.CircuitBreaker
	logger  *zap.Logger
}

func newBreakerStore(inner Store, logger *zap.Logger) *breakerStore {
	breaker := gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        "quote-store",
		MaxRequests: 5,
		Interval:    30 * time.Second,
		Timeout:     10 * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.Requests >= 10 && float64(counts.TotalFailures)/float64(counts.Requests) >= 0.5
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			logger.Warn("quote store circuit breaker state change",
				zap.String("breaker", name), zap.String("from", from.String()), zap.String("to", to.String()))
		},
	})
	return &breakerStore{inner: inner, breaker: breaker, logger: logger}
}

func (b *breakerStore) guard(op func() (interface{}, error)) error {
	_, err := b.breaker.Execute(op)
	return wrapStoreErr(err)
}

func wrapStoreErr(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
		return fmt.Errorf("%w: circuit open: %v", ErrStoreUnavailable, err)
	}
	return fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
}

func (b *breakerStore) Append(ticker string, q Quote) error {
	return b.guard(func() (interface{}, error) { return nil, b.inner.Append(ticker, q) })
}

func (b *breakerStore) Latest(ticker string) (Quote, bool, error) {
	v, err := b.breaker.Execute(func() (interface{}, error) {
		q, ok, err := b.inner.Latest(ticker)
		return [2]interface{}{q, ok}, err
	})
	if err != nil {
		return Quote{}, false, wrapStoreErr(err)
	}
	pair := v.([2]interface{})
	return pair[0].(Quote), pair[1].(bool), nil
}

func (b *breakerStore) Range(ticker string, fromMS, toMS int64) ([]Quote, error) {
	v, err := b.breaker.Execute(func() (interface{}, error) {
		return b.inner.Range(ticker, fromMS, toMS)
	})
	if err != nil {
		return nil, wrapStoreErr(err)
	}
	if v == nil {
		return nil, nil
	}
	return v.([]Quote), nil
}

func (b *breakerStore) Prune(ticker string, olderThanMS int64) error {
	return b.guard(func() (interface{}, error) { return nil, b.inner.Prune(ticker, olderThanMS) })
}

func (b *breakerStore) TrackedTickers() []string { return b.inner.TrackedTickers() }

func (b *breakerStore) EvictIdle(now time.Time, idle time.Duration) []string {
	return b.inner.EvictIdle(now, idle)
}

func (b *breakerStore) PutMetrics(ticker string, window time.Duration, m MetricsRecord, ttl time.Duration) {
	b.inner.PutMetrics(ticker, window, m, ttl)
}

func (b *breakerStore) GetMetrics(ticker string, window time.Duration) (MetricsRecord, bool) {
	return b.inner.GetMetrics(ticker, window)
}

func (b *breakerStore) PutBehaviors(ticker string, flags BehaviorFlags) {
	b.inner.PutBehaviors(ticker, flags)
}

func (b *breakerStore) GetBehaviors(ticker string) (BehaviorFlags, bool) {
	return b.inner.GetBehaviors(ticker)
}

func (b *breakerStore) AppendPattern(ticker string, p Pattern, ttl time.Duration) {
	b.inner.AppendPattern(ticker, p, ttl)
}

func (b *breakerStore) Patterns(ticker string, fromMS, toMS int64) []Pattern {
	return b.inner.Patterns(ticker, fromMS, toMS)
}

func (b *breakerStore) PrunePatterns(ticker string, olderThanMS int64) {
	b.inner.PrunePatterns(ticker, olderThanMS)
}

func (b *breakerStore) PutLevels(ticker string, side Side, levels []PriceLevel, ttl time.Duration) {
	b.inner.PutLevels(ticker, side, levels, ttl)
}

func (b *breakerStore) GetLevels(ticker string, side Side) ([]PriceLevel, bool) {
	return b.inner.GetLevels(ticker, side)
}
