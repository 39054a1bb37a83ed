package orderflow

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestDetectPatterns_Absorption(t *testing.T) {
	var window []Quote
	for i := 0; i < 20; i++ {
		window = append(window, mkQuote(int64(i*1000), 100.00, 100.05, 20000, 1000))
	}
	patterns := DetectPatterns(window, 0.01, window[len(window)-1].TimestampMS)
	var found *Pattern
	for i := range patterns {
		if patterns[i].Kind == KindAbsorption && patterns[i].Side == SideBid {
			found = &patterns[i]
		}
	}
	if assert.NotNil(t, found) {
		assert.Equal(t, StrengthModerate, found.Strength)
	}
}

func TestDetectPatterns_Stacking(t *testing.T) {
	var window []Quote
	size := int64(5000)
	for i := 0; i < 8; i++ {
		window = append(window, mkQuote(int64(i*1000), 100, 100.1, size, 1000))
		size += 1000
	}
	patterns := DetectPatterns(window, 0.01, window[len(window)-1].TimestampMS)
	var found bool
	for _, p := range patterns {
		if p.Kind == KindStacking && p.Side == SideBid {
			found = true
		}
	}
	assert.True(t, found)
}

func TestDetectPatterns_MomentumShiftBullish(t *testing.T) {
	var window []Quote
	bid, ask := 100.0, 100.5
	for i := 0; i < 10; i++ {
		window = append(window, mkQuote(int64(i*1000), bid, ask, 1000, 1000))
		bid += 0.01
	}
	patterns := DetectPatterns(window, 0.01, window[len(window)-1].TimestampMS)
	var found *Pattern
	for i := range patterns {
		if patterns[i].Kind == KindMomentumShift {
			found = &patterns[i]
		}
	}
	if assert.NotNil(t, found) {
		assert.Contains(t, found.Description, "bullish")
	}
}

func TestDetectPatterns_Iceberg(t *testing.T) {
	window := []Quote{
		mkQuote(0, 100.00, 100.05, 1000, 1000),
		mkQuote(1000, 100.00, 100.05, 20000, 1000),
	}
	patterns := DetectPatterns(window, 0.01, 1000)
	var found bool
	for _, p := range patterns {
		if p.Kind == KindIceberg && p.Side == SideBid {
			found = true
		}
	}
	assert.True(t, found)
}

func TestAppendPatternSuppressed_CollapsesWithin30s(t *testing.T) {
	price := 100.00
	p1 := Pattern{Kind: KindAbsorption, Side: SideBid, TimestampMS: 0, PriceLevel: &price}
	p2 := Pattern{Kind: KindAbsorption, Side: SideBid, TimestampMS: 10_000, PriceLevel: &price}

	out := appendPatternSuppressed(nil, p1)
	out = appendPatternSuppressed(out, p2)
	assert.Len(t, out, 1)
	assert.Equal(t, int64(10_000), out[0].TimestampMS)
}

func TestAppendPatternSuppressed_NewAfterWindow(t *testing.T) {
	price := 100.00
	p1 := Pattern{Kind: KindAbsorption, Side: SideBid, TimestampMS: 0, PriceLevel: &price}
	p2 := Pattern{Kind: KindAbsorption, Side: SideBid, TimestampMS: 40_000, PriceLevel: &price}

	out := appendPatternSuppressed(nil, p1)
	out = appendPatternSuppressed(out, p2)
	assert.Len(t, out, 2)
}

func TestDetectPatterns_SortedByKind(t *testing.T) {
	var window []Quote
	size := int64(5000)
	for i := 0; i < 20; i++ {
		window = append(window, mkQuote(int64(i*1000), 100.00, 100.05, size, 20000))
		size += 500
	}
	patterns := DetectPatterns(window, 0.01, window[len(window)-1].TimestampMS)
	for i := 1; i < len(patterns); i++ {
		assert.LessOrEqual(t, patterns[i-1].Kind, patterns[i].Kind)
	}
}
