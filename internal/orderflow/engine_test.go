package orderflow

import (
	"testing"

	"github.com/fintools-ai/mcp-order-flow-server/internal/config"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

func TestEngine_IngestRejectsInvalidTicker(t *testing.T) {
	e, err := New(config.Default(), zaptest.NewLogger(t), prometheus.NewRegistry())
	require.NoError(t, err)

	err = e.Ingest("###", mkQuote(1000, 100, 100.1, 1, 1))
	assert.ErrorIs(t, err, ErrInvalidTicker)
}

func TestEngine_IngestRejectsCrossedBook(t *testing.T) {
	e, err := New(config.Default(), zaptest.NewLogger(t), prometheus.NewRegistry())
	require.NoError(t, err)

	err = e.Ingest("AAPL", Quote{Ticker: "AAPL", TimestampMS: 1000, BidPrice: 101, AskPrice: 100, BidSize: 1, AskSize: 1})
	assert.ErrorIs(t, err, ErrInternal)
}

func TestEngine_IngestNormalizesTicker(t *testing.T) {
	e, err := New(config.Default(), zaptest.NewLogger(t), prometheus.NewRegistry())
	require.NoError(t, err)

	require.NoError(t, e.Ingest("aapl", mkQuote(1000, 100, 100.1, 1, 1)))
	_, ok, err := e.store.Latest("AAPL")
	require.NoError(t, err)
	assert.True(t, ok)
}
