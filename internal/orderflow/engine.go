package orderflow

import (
	"context"
	"time"

	"github.com/fintools-ai/mcp-order-flow-server/internal/config"
	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"
)

// Engine wires the quote store, processor loop, and query coordinator
// together and is the package's single public entry point. Construct
// one per process with New and keep it running for the process
// lifetime.
type Engine struct {
	store     *breakerStore
	processor *Processor
	cfg       config.Config
	logger    *zap.Logger
	telem     *engineTelemetry
}

// New builds an Engine around an in-memory Quote Store realization.
// reg receives the engine's Prometheus collectors; pass
// prometheus.NewRegistry() in tests to avoid polluting the default
// global registry.
func New(cfg config.Config, logger *zap.Logger, reg prometheus.Registerer) (*Engine, error) {
	telem := newEngineTelemetry(reg)

	inner := NewMemoryStore(cfg.QuoteTTL())
	store := newBreakerStore(inner, logger)

	processor, err := NewProcessor(store, cfg, logger, cfg.TickSize, telem)
	if err != nil {
		return nil, err
	}

	return &Engine{
		store:     store,
		processor: processor,
		cfg:       cfg,
		logger:    logger,
		telem:     telem,
	}, nil
}

// Ingest records one top-of-book quote into the quote store, after
// normalizing the ticker and validating the quote.
func (e *Engine) Ingest(ticker string, q Quote) error {
	norm, err := NormalizeTicker(ticker)
	if err != nil {
		return err
	}
	q.Ticker = norm
	if err := q.Validate(); err != nil {
		return err
	}
	return e.store.Append(norm, q)
}

// Run drives the processor loop on cfg.ProcessorInterval() until ctx
// is cancelled.
func (e *Engine) Run(ctx context.Context) {
	ticker := time.NewTicker(e.cfg.ProcessorInterval())
	defer ticker.Stop()
	defer e.processor.Close()

	for {
		select {
		case <-ctx.Done():
			e.logger.Info("order flow engine stopping")
			return
		case now := <-ticker.C:
			e.processor.Tick(ctx, now)
		}
	}
}
