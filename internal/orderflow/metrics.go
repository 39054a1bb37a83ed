package orderflow

import (
	"time"

	"gonum.org/v1/gonum/stat"
)

// Acceleration classifies the second half of a window against the
// first half.
type Acceleration string

const (
	AccelIncreasing Acceleration = "INCREASING"
	AccelStable     Acceleration = "STABLE"
	AccelDecreasing Acceleration = "DECREASING"
)

// MetricsRecord is the per-(ticker,window) computed summary produced
// by ComputeMetrics. All price fields are rounded to 4 decimals;
// ratios carry documented float64 precision.
type MetricsRecord struct {
	WindowSeconds int
	QuoteCount    int

	InsufficientData bool

	BidPriceChange float64
	AskPriceChange float64
	BidSizeChange  int64
	AskSizeChange  int64

	BidLifts, BidDrops, BidUnchanged int
	AskLifts, AskDrops, AskUnchanged int

	AvgBidSize float64
	AvgAskSize float64

	LargeBidCount int
	LargeAskCount int

	BidSizeAcceleration Acceleration
	AskSizeAcceleration Acceleration

	QuotesPerSecond float64
	PriceVelocity   float64
	SizeTurnover    float64
}

// ComputeMetrics is a pure function from a quote window to a metrics
// record. windowSeconds
// is the nominal window duration D used for the velocity/turnover
// denominators, independent of how many quotes actually fall in it.
func ComputeMetrics(quotes []Quote, windowSeconds int, largeSizeThreshold int64) MetricsRecord {
	rec := MetricsRecord{WindowSeconds: windowSeconds, QuoteCount: len(quotes)}

	if len(quotes) < 2 {
		rec.InsufficientData = true
		return rec
	}

	first, last := quotes[0], quotes[len(quotes)-1]
	rec.BidPriceChange = round4(last.BidPrice - first.BidPrice)
	rec.AskPriceChange = round4(last.AskPrice - first.AskPrice)
	rec.BidSizeChange = last.BidSize - first.BidSize
	rec.AskSizeChange = last.AskSize - first.AskSize

	var bidSizes, askSizes []float64
	var sizeTurnover float64
	for i, q := range quotes {
		if q.BidSize > 0 {
			bidSizes = append(bidSizes, float64(q.BidSize))
		}
		if q.AskSize > 0 {
			askSizes = append(askSizes, float64(q.AskSize))
		}
		if q.BidSize > largeSizeThreshold {
			rec.LargeBidCount++
		}
		if q.AskSize > largeSizeThreshold {
			rec.LargeAskCount++
		}

		if i == 0 {
			continue
		}
		prev := quotes[i-1]
		switch {
		case q.BidPrice > prev.BidPrice:
			rec.BidLifts++
		case q.BidPrice < prev.BidPrice:
			rec.BidDrops++
		default:
			rec.BidUnchanged++
		}
		switch {
		case q.AskPrice > prev.AskPrice:
			rec.AskLifts++
		case q.AskPrice < prev.AskPrice:
			rec.AskDrops++
		default:
			rec.AskUnchanged++
		}
		sizeTurnover += absInt64(q.BidSize-prev.BidSize) + absInt64(q.AskSize-prev.AskSize)
	}

	if len(bidSizes) > 0 {
		rec.AvgBidSize = round4(stat.Mean(bidSizes, nil))
	}
	if len(askSizes) > 0 {
		rec.AvgAskSize = round4(stat.Mean(askSizes, nil))
	}

	rec.BidSizeAcceleration = classifyAcceleration(bidSizes)
	rec.AskSizeAcceleration = classifyAcceleration(askSizes)

	durationSec := float64(last.TimestampMS-first.TimestampMS) / 1000
	if durationSec <= 0 {
		durationSec = float64(windowSeconds)
	}
	rec.QuotesPerSecond = round2(float64(len(quotes)) / durationSec)

	midChange := last.Mid() - first.Mid()
	if midChange < 0 {
		midChange = -midChange
	}
	rec.PriceVelocity = round4(midChange / float64(windowSeconds))
	rec.SizeTurnover = round2(sizeTurnover / float64(windowSeconds))

	return rec
}

// classifyAcceleration compares the mean size of the second half of a
// window against the first half: INCREASING if the second half
// exceeds the first by more than 20%, DECREASING if it is below 80%,
// else STABLE.
func classifyAcceleration(sizes []float64) Acceleration {
	if len(sizes) < 2 {
		return AccelStable
	}
	mid := len(sizes) / 2
	first, second := sizes[:mid], sizes[mid:]
	if len(first) == 0 || len(second) == 0 {
		return AccelStable
	}
	firstMean := stat.Mean(first, nil)
	secondMean := stat.Mean(second, nil)
	if firstMean == 0 {
		if secondMean == 0 {
			return AccelStable
		}
		return AccelIncreasing
	}
	ratio := secondMean / firstMean
	switch {
	case ratio > 1.2:
		return AccelIncreasing
	case ratio < 0.8:
		return AccelDecreasing
	default:
		return AccelStable
	}
}

func absInt64(v int64) float64 {
	if v < 0 {
		return float64(-v)
	}
	return float64(v)
}

// tailWindow returns the suffix of quotes within d of the last quote's
// timestamp — the "tail 10s" or "last 60s" selection used throughout
// the per-tick derivation pipeline.
func tailWindow(quotes []Quote, d time.Duration) []Quote {
	if len(quotes) == 0 {
		return nil
	}
	cutoff := quotes[len(quotes)-1].TimestampMS - d.Milliseconds()
	lo := 0
	for lo < len(quotes) && quotes[lo].TimestampMS < cutoff {
		lo++
	}
	return quotes[lo:]
}
