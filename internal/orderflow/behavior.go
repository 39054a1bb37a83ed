package orderflow

// BehaviorFlags are the per-ticker behavior booleans, derived fresh
// each processor tick from the 60s window. They carry no memory
// beyond that window.
type BehaviorFlags struct {
	BidStacking      bool
	AskPulling       bool
	SpreadTightening bool
	MomentumBuilding bool
}

// ComputeBehaviors derives bid-stacking, ask-pulling, spread-tightening
// and momentum-building flags from a 60s quote window. last20 must be
// the most recent quotes in that window. Fewer than 20 is accepted:
// stacking and pulling are evaluated over whatever of the last 10 is
// there, and spread tightening reports false without 20 quotes.
// currentPrice anchors the momentum-building velocity threshold.
func ComputeBehaviors(last20 []Quote, sixtySec MetricsRecord, currentPrice float64) BehaviorFlags {
	var flags BehaviorFlags

	last10 := lastN(last20, 10)
	flags.BidStacking = countBidStackingHits(last10) >= 3
	flags.AskPulling = countAskPullingHits(last10) >= 3
	flags.SpreadTightening = spreadTightened(last20)

	if !sixtySec.InsufficientData {
		lifts := float64(sixtySec.BidLifts)
		drops := float64(sixtySec.BidDrops)
		if drops < 1 {
			drops = 1
		}
		threshold := 0.001 * currentPrice
		flags.MomentumBuilding = (lifts/drops) > 1.5 && sixtySec.PriceVelocity > threshold
	}

	return flags
}

func lastN(quotes []Quote, n int) []Quote {
	if len(quotes) <= n {
		return quotes
	}
	return quotes[len(quotes)-n:]
}

// countBidStackingHits counts adjacent pairs in window where bid_size
// strictly grew and bid_price did not decline.
func countBidStackingHits(window []Quote) int {
	hits := 0
	for i := 1; i < len(window); i++ {
		prev, cur := window[i-1], window[i]
		if cur.BidSize > prev.BidSize && cur.BidPrice >= prev.BidPrice {
			hits++
		}
	}
	return hits
}

// countAskPullingHits counts adjacent pairs where ask_size strictly
// shrank while ask_price rose or held.
func countAskPullingHits(window []Quote) int {
	hits := 0
	for i := 1; i < len(window); i++ {
		prev, cur := window[i-1], window[i]
		if cur.AskSize < prev.AskSize && cur.AskPrice >= prev.AskPrice {
			hits++
		}
	}
	return hits
}

// spreadTightened reports whether the mean spread of the most recent
// 10 quotes is at least 10% below the mean spread of the 10 quotes
// before that.
func spreadTightened(quotes []Quote) bool {
	if len(quotes) < 20 {
		return false
	}
	recent := quotes[len(quotes)-10:]
	prior := quotes[len(quotes)-20 : len(quotes)-10]

	recentMean := meanSpread(recent)
	priorMean := meanSpread(prior)
	if priorMean <= 0 {
		return false
	}
	return recentMean < priorMean*0.9
}

func meanSpread(quotes []Quote) float64 {
	var sum float64
	for _, q := range quotes {
		sum += q.Spread()
	}
	return sum / float64(len(quotes))
}
