// Package orderflow implements the order-flow analysis engine: a
// time-windowed, ticker-sharded pipeline that turns a stream of
// top-of-book quotes into momentum, size-dynamics, pattern, and
// price-level snapshots for a single analyze_order_flow operation.
package orderflow

import (
	"errors"
	"fmt"
	"math"
	"regexp"
	"strings"
)

// Sentinel errors surfaced at component boundaries and translated into
// error snapshots by the query coordinator.
var (
	ErrNoData           = errors.New("no data")
	ErrInvalidTicker    = errors.New("invalid ticker")
	ErrInvalidHistory   = errors.New("invalid history")
	ErrStoreUnavailable = errors.New("store unavailable")
	ErrTimeout          = errors.New("timeout")
	ErrInternal         = errors.New("internal error")
)

var tickerPattern = regexp.MustCompile(`^[A-Z0-9]{1,10}$`)

// NormalizeTicker uppercases and validates a ticker: alphanumeric,
// length 1-10.
func NormalizeTicker(raw string) (string, error) {
	t := strings.ToUpper(strings.TrimSpace(raw))
	if !tickerPattern.MatchString(t) {
		return "", fmt.Errorf("%w: %q", ErrInvalidTicker, raw)
	}
	return t, nil
}

// Quote is an immutable top-of-book observation. Once constructed, a
// Quote is never mutated — components that need a derived view
// compute it fresh from the fields here.
type Quote struct {
	Ticker    string
	TimestampMS int64
	BidPrice  float64
	AskPrice  float64
	BidSize   int64
	AskSize   int64
}

// Validate checks the structural invariants a quote must satisfy
// before it is admitted into the store: non-empty ticker, positive
// prices, ask at or above bid, non-negative sizes.
func (q Quote) Validate() error {
	if q.Ticker == "" {
		return fmt.Errorf("%w: empty ticker", ErrInternal)
	}
	if q.BidPrice <= 0 || q.AskPrice <= 0 {
		return fmt.Errorf("%w: non-positive price", ErrInternal)
	}
	if q.AskPrice < q.BidPrice {
		return fmt.Errorf("%w: ask %.4f below bid %.4f", ErrInternal, q.AskPrice, q.BidPrice)
	}
	if q.BidSize < 0 || q.AskSize < 0 {
		return fmt.Errorf("%w: negative size", ErrInternal)
	}
	return nil
}

// Spread is ask - bid, rounded to 4 decimals.
func (q Quote) Spread() float64 {
	return round4(q.AskPrice - q.BidPrice)
}

// Mid is the midpoint price, rounded to 4 decimals.
func (q Quote) Mid() float64 {
	return round4((q.AskPrice + q.BidPrice) / 2)
}

// OneSided reports whether either side carries zero size: such a
// quote participates in metrics but not in stacking.
func (q Quote) OneSided() bool {
	return q.BidSize == 0 || q.AskSize == 0
}

func round4(v float64) float64 {
	return math.Round(v*10000) / 10000
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}

// roundToTick rounds a price to the nearest multiple of tick, the
// bucketing unit used when grouping quotes into price levels.
func roundToTick(price, tick float64) float64 {
	if tick <= 0 {
		return round4(price)
	}
	return round4(math.Round(price/tick) * tick)
}
