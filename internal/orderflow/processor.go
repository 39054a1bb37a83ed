package orderflow

import (
	"context"
	"fmt"
	"runtime"
	"sync"
	"time"

	"github.com/fintools-ai/mcp-order-flow-server/internal/config"
	"github.com/panjf2000/ants/v2"
	"go.uber.org/zap"
)

// TickSizeFunc resolves the minimum price increment for a ticker from
// the per-ticker tick_size configuration.
type TickSizeFunc func(ticker string) float64

// Processor runs a periodic task that, per tick, refreshes the
// metrics, behavior, pattern, and level derived slots for every
// tracked ticker. Per-ticker work is fanned out across a bounded
// worker pool. store is expected to already wrap the backing-I/O
// circuit breaker (see breakerStore) so a failing backing store
// surfaces ErrStoreUnavailable instead of being retried from inside
// the loop.
type Processor struct {
	store    Store
	cfg      config.Config
	logger   *zap.Logger
	tickSize TickSizeFunc
	telem    *engineTelemetry

	pool *ants.Pool
}

// NewProcessor constructs a Processor with a worker pool sized to the
// number of CPUs by default.
func NewProcessor(store Store, cfg config.Config, logger *zap.Logger, tickSize TickSizeFunc, telem *engineTelemetry) (*Processor, error) {
	pool, err := ants.NewPool(runtime.NumCPU(), ants.WithPanicHandler(func(r interface{}) {
		logger.Error("processor worker panicked", zap.Any("panic", r))
	}))
	if err != nil {
		return nil, fmt.Errorf("processor: worker pool: %w", err)
	}

	return &Processor{
		store:    store,
		cfg:      cfg,
		logger:   logger,
		tickSize: tickSize,
		telem:    telem,
		pool:     pool,
	}, nil
}

// Close releases the worker pool.
func (p *Processor) Close() {
	p.pool.Release()
}

// Tick runs one processor iteration: refresh metrics, behaviors,
// patterns, and levels for every tracked ticker, plus idle-ticker
// eviction. The soft per-tick deadline is one processor interval; a
// ticker whose derivation has not started by the time the deadline
// fires is skipped and logged, never retried inline.
func (p *Processor) Tick(ctx context.Context, now time.Time) {
	start := time.Now()
	defer func() {
		p.telem.tickDuration.Observe(time.Since(start).Seconds())
	}()

	deadline, cancel := context.WithTimeout(ctx, p.cfg.ProcessorInterval())
	defer cancel()

	tickers := p.store.TrackedTickers()
	p.telem.trackedTickers.Set(float64(len(tickers)))

	var wg sync.WaitGroup
	for _, ticker := range tickers {
		ticker := ticker
		wg.Add(1)
		err := p.pool.Submit(func() {
			defer wg.Done()
			if deadline.Err() != nil {
				p.telem.ticksSkipped.Inc()
				p.logger.Warn("tick deadline exceeded before ticker started", zap.String("ticker", ticker))
				return
			}
			p.processTicker(deadline, ticker, now)
		})
		if err != nil {
			wg.Done()
			p.telem.ticksSkipped.Inc()
			p.logger.Error("failed to submit ticker to worker pool", zap.String("ticker", ticker), zap.Error(err))
		}
	}
	wg.Wait()

	for _, evicted := range p.store.EvictIdle(now, p.cfg.TrackedIdleEvict()) {
		p.logger.Info("ticker evicted after idle window", zap.String("ticker", evicted))
	}
}

func (p *Processor) processTicker(ctx context.Context, ticker string, now time.Time) {
	nowMS := now.UnixMilli()
	tick := p.tickSize(ticker)

	history, err := p.store.Range(ticker, nowMS-p.cfg.QuoteTTL().Milliseconds(), nowMS)
	if err != nil {
		p.telem.ticksSkipped.Inc()
		p.logger.Warn("skipping ticker tick: store range failed", zap.String("ticker", ticker), zap.Error(err))
		return
	}
	fromMS := nowMS - Window5Min.Milliseconds()
	lo := 0
	for lo < len(history) && history[lo].TimestampMS < fromMS {
		lo++
	}
	quotes := history[lo:]
	if len(quotes) < 2 {
		return
	}

	tail10 := tailWindow(quotes, Window10s)
	metrics10 := ComputeMetrics(tail10, int(Window10s.Seconds()), p.cfg.LargeSizeThreshold)
	p.store.PutMetrics(ticker, Window10s, metrics10, 10*Window10s)

	span := time.Duration(quotes[len(quotes)-1].TimestampMS-history[0].TimestampMS) * time.Millisecond
	if span >= Window60s {
		window60 := tailWindow(quotes, Window60s)
		metrics60 := ComputeMetrics(window60, int(Window60s.Seconds()), p.cfg.LargeSizeThreshold)
		p.store.PutMetrics(ticker, Window60s, metrics60, 10*Window60s)

		latest := window60[len(window60)-1]
		behaviors := ComputeBehaviors(lastN(window60, 20), metrics60, latest.Mid())
		p.store.PutBehaviors(ticker, behaviors)

		patterns := DetectPatterns(window60, tick, nowMS)
		for _, pat := range patterns {
			p.store.AppendPattern(ticker, pat, p.cfg.PatternTTL())
		}
	}

	if span >= Window5Min {
		metrics5 := ComputeMetrics(quotes, int(Window5Min.Seconds()), p.cfg.LargeSizeThreshold)
		p.store.PutMetrics(ticker, Window5Min, metrics5, 10*Window5Min)

		for _, side := range []Side{SideBid, SideAsk} {
			levels := ComputeLevels(quotes, side, tick)
			prevLevels, _ := p.store.GetLevels(ticker, side)
			for _, sweep := range DetectSweeps(prevLevels, levels, side, nowMS) {
				p.store.AppendPattern(ticker, sweep, p.cfg.PatternTTL())
			}
			p.store.PutLevels(ticker, side, levels, p.cfg.QuoteTTL())
		}
	}

	quoteCutoff := nowMS - p.cfg.QuoteTTL().Milliseconds()
	if err := p.store.Prune(ticker, quoteCutoff); err != nil {
		p.logger.Warn("prune failed", zap.String("ticker", ticker), zap.Error(err))
	}
	p.store.PrunePatterns(ticker, nowMS-p.cfg.PatternTTL().Milliseconds())
}
