package orderflow

import (
	"context"
	"testing"
	"time"

	"github.com/fintools-ai/mcp-order-flow-server/internal/config"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

func TestParseHistory_Defaults(t *testing.T) {
	secs, err := ParseHistory("")
	require.NoError(t, err)
	assert.Equal(t, 300, secs)
}

func TestParseHistory_Units(t *testing.T) {
	cases := map[string]int{
		"30s":    30,
		"45sec":  45,
		"5mins":  300,
		"2min":   120,
		"1hr":    3600,
		"1hrs":   3600,
	}
	for in, want := range cases {
		secs, err := ParseHistory(in)
		require.NoError(t, err, in)
		assert.Equal(t, want, secs, in)
	}
}

func TestParseHistory_ClampsToBounds(t *testing.T) {
	secs, err := ParseHistory("1s")
	require.NoError(t, err)
	assert.Equal(t, minHistorySeconds, secs)

	secs, err = ParseHistory("10hr")
	require.NoError(t, err)
	assert.Equal(t, maxHistorySeconds, secs)
}

func TestParseHistory_RejectsGarbage(t *testing.T) {
	_, err := ParseHistory("3fortnights")
	assert.ErrorIs(t, err, ErrInvalidHistory)

	_, err = ParseHistory("-5s")
	assert.ErrorIs(t, err, ErrInvalidHistory)
}

func newTestEngine(t *testing.T) *Engine {
	t.Helper()
	cfg := config.Default()
	logger := zaptest.NewLogger(t)
	e, err := New(cfg, logger, prometheus.NewRegistry())
	require.NoError(t, err)
	return e
}

func TestAnalyzeOrderFlow_NoDataHasThreeSuggestionsAndCauses(t *testing.T) {
	e := newTestEngine(t)
	snap := e.AnalyzeOrderFlow(context.Background(), "ZZZZ", "", false, time.Now())
	assert.Equal(t, "true", snap.Error)
	assert.Len(t, snap.PossibleCauses.Cause, 3)
	assert.Len(t, snap.Suggestions.Suggestion, 3)
}

func TestAnalyzeOrderFlow_InvalidTicker(t *testing.T) {
	e := newTestEngine(t)
	snap := e.AnalyzeOrderFlow(context.Background(), "###", "", false, time.Now())
	assert.Equal(t, "true", snap.Error)
	assert.Contains(t, snap.ErrorMessage, "invalid ticker")
}

func TestAnalyzeOrderFlow_InvalidHistory(t *testing.T) {
	e := newTestEngine(t)
	snap := e.AnalyzeOrderFlow(context.Background(), "AAPL", "3fortnights", false, time.Now())
	assert.Equal(t, "true", snap.Error)
	assert.Contains(t, snap.ErrorMessage, "invalid history")
}

func TestAnalyzeOrderFlow_SuccessPathReturnsCurrentQuote(t *testing.T) {
	e := newTestEngine(t)
	now := time.UnixMilli(1_700_000_000_000)
	require.NoError(t, e.Ingest("AAPL", mkQuote(now.UnixMilli(), 100, 100.1, 1000, 1000)))

	snap := e.AnalyzeOrderFlow(context.Background(), "aapl", "300s", false, now)
	assert.Empty(t, snap.Error)
	assert.Equal(t, "AAPL", snap.Ticker)
	require.NotNil(t, snap.CurrentQuote)
	assert.Equal(t, "100.0000", snap.CurrentQuote.BidPrice)
}

func TestAnalyzeOrderFlow_TimeoutWhenContextAlreadyDone(t *testing.T) {
	e := newTestEngine(t)
	require.NoError(t, e.Ingest("AAPL", mkQuote(1000, 100, 100.1, 1000, 1000)))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	snap := e.AnalyzeOrderFlow(ctx, "AAPL", "", false, time.Now())
	assert.Equal(t, "true", snap.Error)
	assert.Contains(t, snap.ErrorMessage, "timeout")
}
