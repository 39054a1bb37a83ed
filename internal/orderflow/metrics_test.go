package orderflow

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func mkQuote(tMS int64, bid, ask float64, bidSize, askSize int64) Quote {
	return Quote{Ticker: "AAPL", TimestampMS: tMS, BidPrice: bid, AskPrice: ask, BidSize: bidSize, AskSize: askSize}
}

func TestComputeMetrics_InsufficientData(t *testing.T) {
	rec := ComputeMetrics([]Quote{mkQuote(0, 100, 100.1, 1000, 1000)}, 10, 10000)
	assert.True(t, rec.InsufficientData)
	assert.Equal(t, 1, rec.QuoteCount)
}

func TestComputeMetrics_LiftsDropsUnchangedSumToNMinusOne(t *testing.T) {
	quotes := []Quote{
		mkQuote(0, 100.00, 100.10, 1000, 1000),
		mkQuote(1000, 100.01, 100.10, 1200, 900),
		mkQuote(2000, 100.01, 100.11, 1100, 1100),
		mkQuote(3000, 100.00, 100.12, 1300, 800),
	}
	rec := ComputeMetrics(quotes, 10, 10000)
	assert.False(t, rec.InsufficientData)
	assert.Equal(t, len(quotes)-1, rec.BidLifts+rec.BidDrops+rec.BidUnchanged)
	assert.Equal(t, len(quotes)-1, rec.AskLifts+rec.AskDrops+rec.AskUnchanged)
}

func TestComputeMetrics_LargeSizeCounting(t *testing.T) {
	quotes := []Quote{
		mkQuote(0, 100, 100.1, 5000, 5000),
		mkQuote(1000, 100, 100.1, 15000, 20000),
		mkQuote(2000, 100, 100.1, 25000, 3000),
	}
	rec := ComputeMetrics(quotes, 10, 10000)
	assert.Equal(t, 2, rec.LargeBidCount)
	assert.Equal(t, 1, rec.LargeAskCount)
}

func TestClassifyAcceleration(t *testing.T) {
	assert.Equal(t, AccelIncreasing, classifyAcceleration([]float64{1000, 1000, 2000, 2000}))
	assert.Equal(t, AccelDecreasing, classifyAcceleration([]float64{2000, 2000, 1000, 1000}))
	assert.Equal(t, AccelStable, classifyAcceleration([]float64{1000, 1000, 1050, 1050}))
	assert.Equal(t, AccelStable, classifyAcceleration([]float64{1000}))
}

func TestComputeMetrics_QuotesPerSecondMatchesDuration(t *testing.T) {
	quotes := []Quote{
		mkQuote(0, 100, 100.1, 1000, 1000),
		mkQuote(1000, 100, 100.1, 1000, 1000),
		mkQuote(2000, 100, 100.1, 1000, 1000),
		mkQuote(3000, 100, 100.1, 1000, 1000),
		mkQuote(4000, 100, 100.1, 1000, 1000),
	}
	rec := ComputeMetrics(quotes, 4, 10000)
	assert.InDelta(t, float64(len(quotes))/4.0, rec.QuotesPerSecond, 0.01)
}

func TestTailWindow(t *testing.T) {
	quotes := []Quote{
		mkQuote(0, 100, 100.1, 1, 1),
		mkQuote(5000, 100, 100.1, 1, 1),
		mkQuote(11000, 100, 100.1, 1, 1),
		mkQuote(15000, 100, 100.1, 1, 1),
	}
	tail := tailWindow(quotes, Window10s)
	assert.Len(t, tail, 3)
	assert.Equal(t, int64(5000), tail[0].TimestampMS)
}
