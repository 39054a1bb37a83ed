package orderflow

import "github.com/prometheus/client_golang/prometheus"

// engineTelemetry holds the Prometheus instrumentation for the
// processor loop and query coordinator. It is constructed against a
// caller-supplied registerer so tests can use a throwaway registry
// instead of the global default.
type engineTelemetry struct {
	tickDuration   prometheus.Histogram
	ticksSkipped   prometheus.Counter
	trackedTickers prometheus.Gauge
	queryDuration  prometheus.Histogram
	queryErrors    *prometheus.CounterVec
}

func newEngineTelemetry(reg prometheus.Registerer) *engineTelemetry {
	t := &engineTelemetry{
		tickDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "orderflow_processor_tick_duration_seconds",
			Help:    "Wall-clock duration of one processor tick across all tickers.",
			Buckets: prometheus.DefBuckets,
		}),
		ticksSkipped: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "orderflow_processor_ticker_skips_total",
			Help: "Per-ticker derivations skipped due to store errors, deadline overrun, or worker pool submit failure.",
		}),
		trackedTickers: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "orderflow_processor_tracked_tickers",
			Help: "Number of tickers currently tracked by the processor loop.",
		}),
		queryDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "orderflow_query_duration_seconds",
			Help:    "Wall-clock duration of analyze_order_flow queries.",
			Buckets: prometheus.DefBuckets,
		}),
		queryErrors: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "orderflow_query_errors_total",
			Help: "analyze_order_flow queries that returned an error snapshot, by error kind.",
		}, []string{"kind"}),
	}

	reg.MustRegister(t.tickDuration, t.ticksSkipped, t.trackedTickers, t.queryDuration, t.queryErrors)
	return t
}
