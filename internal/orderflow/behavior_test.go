package orderflow

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestComputeBehaviors_BidStacking(t *testing.T) {
	var quotes []Quote
	bidSize := int64(1000)
	for i := 0; i < 10; i++ {
		bidSize += 500
		quotes = append(quotes, mkQuote(int64(i*1000), 100, 100.1, bidSize, 1000))
	}
	flags := ComputeBehaviors(quotes, MetricsRecord{InsufficientData: true}, 100.05)
	assert.True(t, flags.BidStacking)
}

func TestComputeBehaviors_AskPulling(t *testing.T) {
	var quotes []Quote
	askSize := int64(10000)
	for i := 0; i < 10; i++ {
		askSize -= 500
		quotes = append(quotes, mkQuote(int64(i*1000), 100, 100.1, 1000, askSize))
	}
	flags := ComputeBehaviors(quotes, MetricsRecord{InsufficientData: true}, 100.05)
	assert.True(t, flags.AskPulling)
}

func TestComputeBehaviors_SpreadTightening(t *testing.T) {
	var quotes []Quote
	for i := 0; i < 10; i++ {
		quotes = append(quotes, mkQuote(int64(i*1000), 100, 100.20, 1000, 1000))
	}
	for i := 10; i < 20; i++ {
		quotes = append(quotes, mkQuote(int64(i*1000), 100, 100.05, 1000, 1000))
	}
	flags := ComputeBehaviors(quotes, MetricsRecord{InsufficientData: true}, 100.05)
	assert.True(t, flags.SpreadTightening)
}

func TestComputeBehaviors_MomentumBuilding(t *testing.T) {
	rec := MetricsRecord{BidLifts: 10, BidDrops: 2, PriceVelocity: 1.0}
	flags := ComputeBehaviors(nil, rec, 100.0)
	assert.True(t, flags.MomentumBuilding)
}

func TestComputeBehaviors_NoMomentumWhenInsufficientData(t *testing.T) {
	flags := ComputeBehaviors(nil, MetricsRecord{InsufficientData: true}, 100.0)
	assert.False(t, flags.MomentumBuilding)
}
