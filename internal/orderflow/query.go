package orderflow

import (
	"context"
	"fmt"
	"regexp"
	"strconv"
	"time"

	"github.com/segmentio/ksuid"
	"go.uber.org/zap"
)

const (
	defaultHistorySeconds = 300
	minHistorySeconds     = 5
	maxHistorySeconds     = 3600
)

var historyPattern = regexp.MustCompile(`^(\d+)(s|sec|secs|m|min|mins|h|hr|hrs)$`)

var historyUnitSeconds = map[string]int{
	"s": 1, "sec": 1, "secs": 1,
	"m": 60, "min": 60, "mins": 60,
	"h": 3600, "hr": 3600, "hrs": 3600,
}

// ParseHistory parses a history token: a positive integer followed by
// a unit (s/sec/secs, m/min/mins, h/hr/hrs), clamped to [5s, 3600s],
// with "" mapping to the 5-minute default.
func ParseHistory(raw string) (int, error) {
	if raw == "" {
		return defaultHistorySeconds, nil
	}

	m := historyPattern.FindStringSubmatch(raw)
	if m == nil {
		return 0, fmt.Errorf("%w: %q", ErrInvalidHistory, raw)
	}
	n, err := strconv.Atoi(m[1])
	if err != nil || n <= 0 {
		return 0, fmt.Errorf("%w: %q", ErrInvalidHistory, raw)
	}

	seconds := n * historyUnitSeconds[m[2]]
	return clamp(seconds, minHistorySeconds, maxHistorySeconds), nil
}

func clamp(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

// errorCausesAndSuggestions maps a sentinel error to the human-facing
// causes and suggestions rendered into an error snapshot. Every kind
// gets at least one cause and suggestion; the NoData path carries
// three since it covers the most common operator confusion.
func errorCausesAndSuggestions(kind error) (causes, suggestions []string) {
	switch kind {
	case ErrNoData:
		causes = []string{
			"the ticker has not traded recently",
			"upstream quote ingestion has not observed this ticker yet",
			"the ticker has been evicted after an idle period",
		}
		suggestions = []string{
			"verify the ticker symbol is correct",
			"widen the history window",
			"retry after confirming upstream ingestion is running",
		}
		return causes, suggestions
	case ErrInvalidTicker:
		return []string{"ticker failed normalization (must be 1-10 alphanumeric characters)"},
			[]string{"check the ticker symbol for typos or unsupported characters"}
	case ErrInvalidHistory:
		return []string{"history token did not match <positive integer><unit>"},
			[]string{"use a history token like \"300s\", \"5mins\", or \"1hr\""}
	case ErrStoreUnavailable:
		return []string{"the backing quote store is unreachable or failing"},
			[]string{"retry the query shortly", "check quote store health"}
	case ErrTimeout:
		return []string{"the query exceeded its caller-supplied deadline"},
			[]string{"retry with a longer deadline", "check processor tick latency"}
	default:
		return []string{"an unexpected internal error occurred during derivation"},
			[]string{"retry the query", "report the error code if it persists"}
	}
}

// AnalyzeOrderFlow is the single entry point for order-flow analysis.
// It runs the actual lookup on a worker goroutine so a caller-supplied
// ctx deadline surfaces as a Timeout error snapshot instead of
// blocking past it. now is threaded in explicitly so the method stays
// testable without wall-clock flakiness.
func (e *Engine) AnalyzeOrderFlow(ctx context.Context, rawTicker, rawHistory string, includePatterns bool, now time.Time) Snapshot {
	traceID := ksuid.New()
	start := time.Now()
	defer func() {
		e.telem.queryDuration.Observe(time.Since(start).Seconds())
		e.logger.Debug("analyze_order_flow completed",
			zap.String("trace_id", traceID.String()), zap.String("ticker", rawTicker), zap.Duration("latency", time.Since(start)))
	}()

	if ctx.Err() != nil {
		return e.timeoutSnapshot(rawTicker, rawHistory, now)
	}

	resultCh := make(chan Snapshot, 1)
	go func() {
		resultCh <- e.analyze(rawTicker, rawHistory, includePatterns, now)
	}()

	select {
	case snap := <-resultCh:
		return snap
	case <-ctx.Done():
		return e.timeoutSnapshot(rawTicker, rawHistory, now)
	}
}

func (e *Engine) timeoutSnapshot(rawTicker, rawHistory string, now time.Time) Snapshot {
	e.telem.queryErrors.WithLabelValues("timeout").Inc()
	historySeconds, err := ParseHistory(rawHistory)
	if err != nil {
		historySeconds = defaultHistorySeconds
	}
	ticker, err := NormalizeTicker(rawTicker)
	if err != nil {
		ticker = rawTicker
	}
	return e.errorSnapshotWithWindow(now, ticker, fmt.Sprintf("%ds", historySeconds), ErrTimeout)
}

func (e *Engine) analyze(rawTicker, rawHistory string, includePatterns bool, now time.Time) Snapshot {
	ticker, err := NormalizeTicker(rawTicker)
	if err != nil {
		e.telem.queryErrors.WithLabelValues("invalid_ticker").Inc()
		return e.errorSnapshot(now, rawTicker, rawHistory, ErrInvalidTicker)
	}

	historySeconds, err := ParseHistory(rawHistory)
	if err != nil {
		e.telem.queryErrors.WithLabelValues("invalid_history").Inc()
		return e.errorSnapshot(now, ticker, rawHistory, ErrInvalidHistory)
	}
	historyWindow := fmt.Sprintf("%ds", historySeconds)

	quote, found, err := e.store.Latest(ticker)
	if err != nil {
		e.telem.queryErrors.WithLabelValues("store_unavailable").Inc()
		return e.errorSnapshotWithWindow(now, ticker, historyWindow, ErrStoreUnavailable)
	}
	if !found {
		e.telem.queryErrors.WithLabelValues("no_data").Inc()
		return e.errorSnapshotWithWindow(now, ticker, historyWindow, ErrNoData)
	}

	nowMS := now.UnixMilli()
	in := SnapshotInput{
		Ticker:          ticker,
		Now:             now,
		HistorySeconds:  historySeconds,
		IncludePatterns: includePatterns,
		Quote:           quote,
	}

	if m, ok := e.store.GetMetrics(ticker, Window10s); ok {
		mm := m
		in.Metrics10s = &mm
	}
	if historySeconds >= int(Window60s.Seconds()) {
		if m, ok := e.store.GetMetrics(ticker, Window60s); ok {
			mm := m
			in.Metrics60s = &mm
		}
	}
	if historySeconds >= int(Window5Min.Seconds()) {
		if m, ok := e.store.GetMetrics(ticker, Window5Min); ok {
			mm := m
			in.Metrics5min = &mm
		}
	}

	if b, ok := e.store.GetBehaviors(ticker); ok {
		in.Behaviors = b
	}

	if bid, ok := e.store.GetLevels(ticker, SideBid); ok {
		in.BidLevels = bid
	}
	if ask, ok := e.store.GetLevels(ticker, SideAsk); ok {
		in.AskLevels = ask
	}

	fromMS := nowMS - int64(historySeconds)*1000
	allPatterns := e.store.Patterns(ticker, fromMS, nowMS)
	in.Sweeps = filterSweepPatterns(allPatterns)
	if includePatterns {
		in.Patterns = allPatterns
	}

	return BuildSnapshot(in)
}

func filterSweepPatterns(patterns []Pattern) []Pattern {
	var out []Pattern
	for _, p := range patterns {
		if p.Kind == KindIceberg {
			out = append(out, p)
		}
	}
	return out
}

func (e *Engine) errorSnapshot(now time.Time, ticker, rawHistory string, kind error) Snapshot {
	return e.errorSnapshotWithWindow(now, ticker, rawHistory, kind)
}

func (e *Engine) errorSnapshotWithWindow(now time.Time, ticker, historyWindow string, kind error) Snapshot {
	causes, suggestions := errorCausesAndSuggestions(kind)
	return BuildErrorSnapshot(now, ticker, historyWindow, kind, causes, suggestions)
}
