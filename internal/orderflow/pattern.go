package orderflow

import (
	"fmt"
	"math"
	"sort"
)

// Side identifies which side of the book a pattern or level belongs to.
type Side string

const (
	SideBid  Side = "bid"
	SideAsk  Side = "ask"
	SideNone Side = "none"
)

// Strength buckets the magnitude of a detected pattern.
type Strength string

const (
	StrengthWeak     Strength = "weak"
	StrengthModerate Strength = "moderate"
	StrengthStrong   Strength = "strong"
)

// PatternKind enumerates the four microstructure pattern classes.
// Sweep level-disappearance events are logged as KindIceberg: both
// describe a large resting size vanishing without a commensurate
// price move.
type PatternKind string

const (
	KindAbsorption    PatternKind = "absorption"
	KindStacking      PatternKind = "stacking"
	KindMomentumShift PatternKind = "momentum_shift"
	KindIceberg       PatternKind = "iceberg"
)

// Pattern is a discrete microstructure event. PriceLevel and Volume
// are optional; a nil pointer means "not applicable to this kind"
// rather than zero.
type Pattern struct {
	Kind        PatternKind
	Side        Side
	Strength    Strength
	TimestampMS int64
	PriceLevel  *float64
	Volume      *float64
	Description string
}

const (
	absorptionMinDurationMS = 15_000
	absorptionMinMeanSize   = 8_000
	absorptionStrongSize    = 20_000
	absorptionModerateSize  = 12_000

	stackingMinRun      = 5
	stackingMinSize     = 5_000
	icebergMinSizeDelta = 15_000
	icebergMaxTicks     = 2
)

// DetectPatterns scans a 60s quote window for absorption, stacking,
// momentum-shift, and iceberg/sweep patterns. It requires at least 60s
// of span to produce meaningful results, mirroring the gating the
// processor loop applies before calling it; callers that have already
// checked the span may still call this directly (e.g. tests).
func DetectPatterns(window []Quote, tick float64, nowMS int64) []Pattern {
	var out []Pattern

	if p := detectAbsorption(window, SideBid, tick, nowMS); p != nil {
		out = append(out, *p)
	}
	if p := detectAbsorption(window, SideAsk, tick, nowMS); p != nil {
		out = append(out, *p)
	}
	if p := detectStacking(window, SideBid, nowMS); p != nil {
		out = append(out, *p)
	}
	if p := detectStacking(window, SideAsk, nowMS); p != nil {
		out = append(out, *p)
	}
	if p := detectMomentumShift(window, nowMS); p != nil {
		out = append(out, *p)
	}
	out = append(out, detectIcebergs(window, tick, nowMS)...)

	sort.SliceStable(out, func(i, j int) bool { return out[i].Kind < out[j].Kind })
	return out
}

func sidePrice(q Quote, side Side) float64 {
	if side == SideBid {
		return q.BidPrice
	}
	return q.AskPrice
}

func sideSize(q Quote, side Side) int64 {
	if side == SideBid {
		return q.BidSize
	}
	return q.AskSize
}

// detectAbsorption finds the best-qualifying contiguous run for a
// side: duration >= 15s, price range < 1 tick, mean size > 8,000.
// "Best" is the run with the highest mean size among those satisfying
// the floor.
func detectAbsorption(window []Quote, side Side, tick float64, nowMS int64) *Pattern {
	n := len(window)
	var bestMean float64
	var bestStart, bestEnd int = -1, -1

	for i := 0; i < n; i++ {
		minP, maxP := sidePrice(window[i], side), sidePrice(window[i], side)
		sum := float64(sideSize(window[i], side))
		for j := i + 1; j < n; j++ {
			p := sidePrice(window[j], side)
			if p < minP {
				minP = p
			}
			if p > maxP {
				maxP = p
			}
			if maxP-minP >= tick {
				break
			}
			sum += float64(sideSize(window[j], side))

			duration := window[j].TimestampMS - window[i].TimestampMS
			if duration < absorptionMinDurationMS {
				continue
			}
			count := j - i + 1
			mean := sum / float64(count)
			if mean > absorptionMinMeanSize && mean > bestMean {
				bestMean, bestStart, bestEnd = mean, i, j
			}
		}
	}

	if bestStart < 0 {
		return nil
	}

	count := bestEnd - bestStart + 1
	volume := bestMean * float64(count)
	price := round4(sidePrice(window[bestEnd], side))
	return &Pattern{
		Kind:        KindAbsorption,
		Side:        side,
		Strength:    absorptionStrength(bestMean),
		TimestampMS: window[bestEnd].TimestampMS,
		PriceLevel:  &price,
		Volume:      &volume,
		Description: fmt.Sprintf("%s absorption at %.4f over %d quotes, mean size %.0f", side, price, count, bestMean),
	}
}

func absorptionStrength(meanSize float64) Strength {
	switch {
	case meanSize > absorptionStrongSize:
		return StrengthStrong
	case meanSize > absorptionModerateSize:
		return StrengthModerate
	default:
		return StrengthWeak
	}
}

// detectStacking finds the longest run of >= 5 consecutive quotes
// where a side's size is non-decreasing and stays >= 5,000.
func detectStacking(window []Quote, side Side, nowMS int64) *Pattern {
	n := len(window)
	bestLen := 0
	bestEnd := -1

	runLen := 0
	for i := 0; i < n; i++ {
		sz := sideSize(window[i], side)
		switch {
		case sz < stackingMinSize:
			runLen = 0
		case runLen == 0:
			runLen = 1
		case sz >= sideSize(window[i-1], side):
			runLen++
		default:
			runLen = 1
		}
		if runLen >= stackingMinRun && runLen > bestLen {
			bestLen = runLen
			bestEnd = i
		}
	}

	if bestEnd < 0 {
		return nil
	}

	lastSize := float64(sideSize(window[bestEnd], side))
	price := round4(sidePrice(window[bestEnd], side))
	return &Pattern{
		Kind:        KindStacking,
		Side:        side,
		Strength:    stackingStrength(lastSize),
		TimestampMS: window[bestEnd].TimestampMS,
		PriceLevel:  &price,
		Volume:      &lastSize,
		Description: fmt.Sprintf("%s stacking run of %d quotes, size grew to %.0f", side, bestLen, lastSize),
	}
}

func stackingStrength(totalSize float64) Strength {
	switch {
	case totalSize > absorptionStrongSize:
		return StrengthStrong
	case totalSize > absorptionModerateSize:
		return StrengthModerate
	default:
		return StrengthWeak
	}
}

// detectMomentumShift flags a lopsided imbalance between one side's
// lifts and the other's drops over the whole window's lift/drop counts.
func detectMomentumShift(window []Quote, nowMS int64) *Pattern {
	if len(window) < 2 {
		return nil
	}
	rec := ComputeMetrics(window, 60, math.MaxInt64)
	if rec.InsufficientData {
		return nil
	}

	dominant := math.Max(float64(rec.BidLifts), float64(rec.AskDrops))
	recessive := math.Max(1, math.Min(float64(rec.BidDrops), float64(rec.AskLifts)))
	if dominant < 2*recessive {
		return nil
	}

	direction := "bearish"
	if float64(rec.BidLifts) >= float64(rec.AskDrops) {
		direction = "bullish"
	}

	ratio := dominant / recessive
	var strength Strength
	switch {
	case ratio >= 4:
		strength = StrengthStrong
	case ratio >= 3:
		strength = StrengthModerate
	default:
		strength = StrengthWeak
	}

	last := window[len(window)-1]
	return &Pattern{
		Kind:        KindMomentumShift,
		Side:        SideNone,
		Strength:    strength,
		TimestampMS: last.TimestampMS,
		Description: fmt.Sprintf("%s momentum shift: bid_lifts=%d ask_drops=%d bid_drops=%d ask_lifts=%d ratio=%.2f", direction, rec.BidLifts, rec.AskDrops, rec.BidDrops, rec.AskLifts, ratio),
	}
}

// detectIcebergs scans adjacent pairs for a large size change on
// either side unaccompanied by a commensurate price move.
func detectIcebergs(window []Quote, tick float64, nowMS int64) []Pattern {
	var out []Pattern
	maxPriceMove := tick * icebergMaxTicks

	for i := 1; i < len(window); i++ {
		prev, cur := window[i-1], window[i]

		bidSizeDelta := math.Abs(float64(cur.BidSize - prev.BidSize))
		bidPriceDelta := math.Abs(cur.BidPrice - prev.BidPrice)
		if bidSizeDelta > icebergMinSizeDelta && bidPriceDelta <= maxPriceMove {
			price := round4(cur.BidPrice)
			out = append(out, Pattern{
				Kind:        KindIceberg,
				Side:        SideBid,
				Strength:    icebergStrength(bidSizeDelta),
				TimestampMS: cur.TimestampMS,
				PriceLevel:  &price,
				Volume:      &bidSizeDelta,
				Description: fmt.Sprintf("bid iceberg/sweep at %.4f, size change %.0f", price, bidSizeDelta),
			})
		}

		askSizeDelta := math.Abs(float64(cur.AskSize - prev.AskSize))
		askPriceDelta := math.Abs(cur.AskPrice - prev.AskPrice)
		if askSizeDelta > icebergMinSizeDelta && askPriceDelta <= maxPriceMove {
			price := round4(cur.AskPrice)
			out = append(out, Pattern{
				Kind:        KindIceberg,
				Side:        SideAsk,
				Strength:    icebergStrength(askSizeDelta),
				TimestampMS: cur.TimestampMS,
				PriceLevel:  &price,
				Volume:      &askSizeDelta,
				Description: fmt.Sprintf("ask iceberg/sweep at %.4f, size change %.0f", price, askSizeDelta),
			})
		}
	}
	return out
}

func icebergStrength(sizeDelta float64) Strength {
	switch {
	case sizeDelta > 30_000:
		return StrengthStrong
	case sizeDelta > 20_000:
		return StrengthModerate
	default:
		return StrengthWeak
	}
}

// appendPatternSuppressed collapses a new pattern into an existing one
// when they share (kind, side, price rounded to cent) within 30s, the
// later timestamp winning; otherwise it appends the new pattern.
func appendPatternSuppressed(existing []Pattern, p Pattern) []Pattern {
	const suppressWindowMS = 30_000

	for i, e := range existing {
		if e.Kind != p.Kind || e.Side != p.Side {
			continue
		}
		if roundCents(e.PriceLevel) != roundCents(p.PriceLevel) {
			continue
		}
		delta := p.TimestampMS - e.TimestampMS
		if delta < 0 {
			delta = -delta
		}
		if delta <= suppressWindowMS {
			if p.TimestampMS >= e.TimestampMS {
				existing[i] = p
			}
			return existing
		}
	}
	return append(existing, p)
}

func roundCents(p *float64) float64 {
	if p == nil {
		return 0
	}
	return math.Round(*p*100) / 100
}
