package orderflow

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestComputeLevels_FiltersByAppearancesAndSize(t *testing.T) {
	window := []Quote{
		mkQuote(0, 100.00, 100.05, 10000, 1000),
		mkQuote(1000, 100.00, 100.05, 10000, 1000),
		mkQuote(2000, 100.00, 100.05, 10000, 1000),
		mkQuote(3000, 100.01, 100.05, 1000, 1000),
	}
	levels := ComputeLevels(window, SideBid, 0.01)
	if assert.Len(t, levels, 1) {
		assert.Equal(t, 100.00, levels[0].Price)
		assert.Equal(t, 3, levels[0].Appearances)
		assert.Equal(t, int64(30000), levels[0].TotalSize)
	}
}

func TestComputeLevels_TopNAndSignificanceOrder(t *testing.T) {
	var window []Quote
	prices := []float64{100.00, 100.01, 100.02}
	for i := 0; i < 12; i++ {
		for _, p := range prices {
			window = append(window, mkQuote(int64(i*1000), p, p+0.05, int64(10000+i*1000), 1000))
		}
	}
	levels := ComputeLevels(window, SideBid, 0.01)
	for i := 1; i < len(levels); i++ {
		assert.GreaterOrEqual(t, levels[i-1].Significance, levels[i].Significance)
	}
}

func TestDetectSweeps_DropBeyondThreshold(t *testing.T) {
	price := 100.00
	prev := []PriceLevel{{Price: price, TotalSize: 100000, Appearances: 5}}
	cur := []PriceLevel{{Price: price, TotalSize: 10000, Appearances: 5}}

	sweeps := DetectSweeps(prev, cur, SideBid, 5000)
	if assert.Len(t, sweeps, 1) {
		assert.Equal(t, KindIceberg, sweeps[0].Kind)
		assert.Equal(t, SideBid, sweeps[0].Side)
	}
}

func TestDetectSweeps_NoSweepWhenLevelPersists(t *testing.T) {
	price := 100.00
	prev := []PriceLevel{{Price: price, TotalSize: 100000, Appearances: 5}}
	cur := []PriceLevel{{Price: price, TotalSize: 90000, Appearances: 5}}

	sweeps := DetectSweeps(prev, cur, SideBid, 5000)
	assert.Empty(t, sweeps)
}

func TestDetectSweeps_LevelDisappearsEntirely(t *testing.T) {
	price := 100.00
	prev := []PriceLevel{{Price: price, TotalSize: 50000, Appearances: 5}}
	sweeps := DetectSweeps(prev, nil, SideAsk, 5000)
	assert.Len(t, sweeps, 1)
}
