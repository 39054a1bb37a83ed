package orderflow

import (
	"fmt"
	"math"
	"sort"
)

const (
	levelMinAppearances = 3
	levelMinTotalSize   = 25_000
	levelTopN           = 10
	levelSweepTopN      = 5
	levelSweepDropRatio = 0.75
)

// PriceLevel is a per-(ticker,side) weighted score of a resting price.
type PriceLevel struct {
	Price        float64
	Appearances  int
	TotalSize    int64
	LastSeenMS   int64
	Significance float64
}

// ComputeLevels groups the 5-min window by price rounded to tick,
// keeps groups with >= 3 appearances and >= 25,000 total size, and
// returns the top 10 by significance descending.
func ComputeLevels(window []Quote, side Side, tick float64) []PriceLevel {
	type agg struct {
		appearances int
		totalSize   int64
		lastSeen    int64
	}
	groups := make(map[float64]*agg)

	for _, q := range window {
		size := sideSize(q, side)
		if size == 0 {
			continue
		}
		price := roundToTick(sidePrice(q, side), tick)
		a, ok := groups[price]
		if !ok {
			a = &agg{}
			groups[price] = a
		}
		a.appearances++
		a.totalSize += size
		if q.TimestampMS > a.lastSeen {
			a.lastSeen = q.TimestampMS
		}
	}

	levels := make([]PriceLevel, 0, len(groups))
	for price, a := range groups {
		if a.appearances < levelMinAppearances || a.totalSize < levelMinTotalSize {
			continue
		}
		levels = append(levels, PriceLevel{
			Price:        price,
			Appearances:  a.appearances,
			TotalSize:    a.totalSize,
			LastSeenMS:   a.lastSeen,
			Significance: round4(float64(a.totalSize) * math.Log(1+float64(a.appearances))),
		})
	}

	sort.Slice(levels, func(i, j int) bool {
		if levels[i].Significance != levels[j].Significance {
			return levels[i].Significance > levels[j].Significance
		}
		return levels[i].Price < levels[j].Price
	})

	if len(levels) > levelTopN {
		levels = levels[:levelTopN]
	}
	return levels
}

// DetectSweeps flags a price that was in the previous tick's top-5 for
// a side and whose size has since dropped by more than 75% (including
// dropping out of the level table entirely) as a sweep pattern.
func DetectSweeps(prevLevels, curLevels []PriceLevel, side Side, nowMS int64) []Pattern {
	prevTop := prevLevels
	if len(prevTop) > levelSweepTopN {
		prevTop = prevTop[:levelSweepTopN]
	}

	curByPrice := make(map[float64]PriceLevel, len(curLevels))
	for _, l := range curLevels {
		curByPrice[l.Price] = l
	}

	var out []Pattern
	for _, p := range prevTop {
		cur, stillPresent := curByPrice[p.Price]
		var curSize int64
		if stillPresent {
			curSize = cur.TotalSize
		}
		if p.TotalSize == 0 {
			continue
		}
		drop := 1 - float64(curSize)/float64(p.TotalSize)
		if drop <= levelSweepDropRatio {
			continue
		}
		price := p.Price
		volume := float64(p.TotalSize - curSize)
		out = append(out, Pattern{
			Kind:        KindIceberg,
			Side:        side,
			Strength:    icebergStrength(volume),
			TimestampMS: nowMS,
			PriceLevel:  &price,
			Volume:      &volume,
			Description: fmt.Sprintf("%s level sweep at %.4f, size fell %.0f%%", side, price, drop*100),
		})
	}
	return out
}
