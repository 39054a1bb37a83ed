package orderflow

import (
	"encoding/xml"
	"fmt"
	"time"
)

// Snapshot is the tagged-variant document tree returned by
// analyze_order_flow, rendered by a single formatter so schema
// conformance is testable. Every numeric field is pre-formatted to its
// documented precision before assembly; Render only serializes the
// tree, never reformats.
type Snapshot struct {
	XMLName       xml.Name `xml:"order_flow_data"`
	Ticker        string   `xml:"ticker,attr"`
	Timestamp     string   `xml:"timestamp,attr"`
	CurrentPrice  string   `xml:"current_price,attr,omitempty"`
	HistoryWindow string   `xml:"history_window,attr"`
	Error         string   `xml:"error,attr,omitempty"`

	DataSummary      *DataSummaryXML      `xml:"data_summary,omitempty"`
	CurrentQuote     *CurrentQuoteXML     `xml:"current_quote,omitempty"`
	Momentum         *MomentumXML         `xml:"momentum,omitempty"`
	SizeMetrics      *SizeMetricsXML      `xml:"size_metrics,omitempty"`
	Behaviors        *BehaviorsXML        `xml:"behaviors,omitempty"`
	PriceLevels      *PriceLevelsXML      `xml:"price_levels,omitempty"`
	Velocity         *VelocityXML         `xml:"velocity,omitempty"`
	DetectedPatterns *DetectedPatternsXML `xml:"detected_patterns,omitempty"`

	ErrorMessage   string          `xml:"error_message,omitempty"`
	PossibleCauses *CausesXML      `xml:"possible_causes,omitempty"`
	Suggestions    *SuggestionsXML `xml:"suggestions,omitempty"`
}

type DataSummaryXML struct {
	QuoteCount    int `xml:"quote_count,attr"`
	WindowSeconds int `xml:"window_seconds,attr"`
	PatternCount  int `xml:"pattern_count,attr"`
}

type CurrentQuoteXML struct {
	BidPrice          string `xml:"bid_price,attr"`
	AskPrice          string `xml:"ask_price,attr"`
	BidSize           int64  `xml:"bid_size,attr"`
	AskSize           int64  `xml:"ask_size,attr"`
	BidAskRatio       string `xml:"bid_ask_ratio,attr"`
	Spread            string `xml:"spread,attr"`
	SpreadBasisPoints string `xml:"spread_basis_points,attr"`
}

type MomentumXML struct {
	Last10s  *WindowMomentumXML `xml:"last_10s,omitempty"`
	Last60s  *WindowMomentumXML `xml:"last_60s,omitempty"`
	Last5min *WindowMomentumXML `xml:"last_5min,omitempty"`
}

type WindowMomentumXML struct {
	BidPriceChange   string `xml:"bid_price_change,attr"`
	AskPriceChange   string `xml:"ask_price_change,attr"`
	BidLifts         int    `xml:"bid_lifts,attr"`
	BidDrops         int    `xml:"bid_drops,attr"`
	AskLifts         int    `xml:"ask_lifts,attr"`
	AskDrops         int    `xml:"ask_drops,attr"`
	QuotesPerSecond  string `xml:"quotes_per_second,attr"`
	InsufficientData bool   `xml:"insufficient_data,attr,omitempty"`
}

type SizeMetricsXML struct {
	Last10s  *WindowSizeXML `xml:"last_10s,omitempty"`
	Last60s  *WindowSizeXML `xml:"last_60s,omitempty"`
	Last5min *WindowSizeXML `xml:"last_5min,omitempty"`
}

type WindowSizeXML struct {
	AvgBidSize          string `xml:"avg_bid_size,attr"`
	AvgAskSize          string `xml:"avg_ask_size,attr"`
	BidSizeChange       int64  `xml:"bid_size_change,attr"`
	AskSizeChange       int64  `xml:"ask_size_change,attr"`
	LargeBidCount       int    `xml:"large_bid_count,attr"`
	LargeAskCount       int    `xml:"large_ask_count,attr"`
	BidSizeAcceleration string `xml:"bid_size_acceleration,attr"`
	AskSizeAcceleration string `xml:"ask_size_acceleration,attr"`
}

type BehaviorsXML struct {
	BidStacking      string `xml:"bid_stacking,attr"`
	AskPulling       string `xml:"ask_pulling,attr"`
	SpreadTightening string `xml:"spread_tightening,attr"`
	MomentumBuilding string `xml:"momentum_building,attr"`
}

type PriceLevelsXML struct {
	Bid    []LevelXML   `xml:"bid>level"`
	Ask    []LevelXML   `xml:"ask>level"`
	Sweeps []PatternXML `xml:"sweeps>sweep,omitempty"`
}

type LevelXML struct {
	Price        string `xml:"price,attr"`
	Appearances  int    `xml:"appearances,attr"`
	TotalSize    int64  `xml:"total_size,attr"`
	Significance string `xml:"significance,attr"`
}

type VelocityXML struct {
	Last10s  *VelocityWindowXML `xml:"last_10s,omitempty"`
	Last60s  *VelocityWindowXML `xml:"last_60s,omitempty"`
	Last5min *VelocityWindowXML `xml:"last_5min,omitempty"`
}

type VelocityWindowXML struct {
	PriceVelocity string `xml:"price_velocity,attr"`
	SizeTurnover  string `xml:"size_turnover,attr"`
}

type DetectedPatternsXML struct {
	Count    int          `xml:"count,attr"`
	Window   string       `xml:"window,attr"`
	Patterns []PatternXML `xml:"pattern"`
}

type PatternXML struct {
	Kind        string `xml:"kind,attr"`
	Side        string `xml:"side,attr"`
	Strength    string `xml:"strength,attr"`
	Timestamp   string `xml:"timestamp,attr"`
	PriceLevel  string `xml:"price_level,attr,omitempty"`
	Volume      string `xml:"volume,attr,omitempty"`
	Description string `xml:"description,attr"`
}

type CausesXML struct {
	Cause []string `xml:"cause"`
}

type SuggestionsXML struct {
	Suggestion []string `xml:"suggestion"`
}

// Render serializes a Snapshot as an XML document, indented for
// readability. It performs no formatting decisions of its own — every
// value in the tree is already in its final string form.
func Render(s Snapshot) ([]byte, error) {
	out, err := xml.MarshalIndent(s, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("%w: render snapshot: %v", ErrInternal, err)
	}
	return append([]byte(xml.Header), out...), nil
}

func yesNo(b bool) string {
	if b {
		return "YES"
	}
	return "NO"
}

func fmtPrice(v float64) string    { return fmt.Sprintf("%.4f", v) }
func fmtRatio(v float64) string    { return fmt.Sprintf("%.2f", v) }
func fmtPtrPrice(v *float64) string {
	if v == nil {
		return ""
	}
	return fmtPrice(*v)
}
func fmtPtrVolume(v *float64) string {
	if v == nil {
		return ""
	}
	return fmt.Sprintf("%.0f", *v)
}

// SnapshotInput is everything BuildSnapshot needs, already read from
// the store by the query coordinator — I/O lives in the coordinator,
// formatting here is pure.
type SnapshotInput struct {
	Ticker          string
	Now             time.Time
	HistorySeconds  int
	IncludePatterns bool

	Quote Quote

	Metrics10s  *MetricsRecord
	Metrics60s  *MetricsRecord
	Metrics5min *MetricsRecord

	Behaviors BehaviorFlags

	BidLevels []PriceLevel
	AskLevels []PriceLevel
	Sweeps    []Pattern

	Patterns []Pattern
}

// BuildSnapshot is a pure function from already-fetched component data
// to the rendered document tree. Calling it twice with identical input
// produces byte-identical output except for the timestamp attribute.
func BuildSnapshot(in SnapshotInput) Snapshot {
	snap := Snapshot{
		Ticker:        in.Ticker,
		Timestamp:     in.Now.UTC().Format(time.RFC3339),
		CurrentPrice:  fmtPrice(in.Quote.Mid()),
		HistoryWindow: fmt.Sprintf("%ds", in.HistorySeconds),
	}

	patternCount := 0
	if in.IncludePatterns {
		patternCount = len(in.Patterns)
	}
	snap.DataSummary = &DataSummaryXML{
		QuoteCount:    quoteCountForHistory(in),
		WindowSeconds: in.HistorySeconds,
		PatternCount:  patternCount,
	}

	bidAskRatio := float64(in.Quote.BidSize) / float64(maxInt64(1, in.Quote.AskSize))
	spread := in.Quote.Spread()
	mid := in.Quote.Mid()
	bps := 0.0
	if mid > 0 {
		bps = spread / mid * 10_000
	}
	snap.CurrentQuote = &CurrentQuoteXML{
		BidPrice:          fmtPrice(in.Quote.BidPrice),
		AskPrice:          fmtPrice(in.Quote.AskPrice),
		BidSize:           in.Quote.BidSize,
		AskSize:           in.Quote.AskSize,
		BidAskRatio:       fmtRatio(bidAskRatio),
		Spread:            fmtPrice(spread),
		SpreadBasisPoints: fmtRatio(bps),
	}

	snap.Momentum = &MomentumXML{
		Last10s:  windowMomentum(in.Metrics10s),
		Last60s:  windowMomentum(in.Metrics60s),
		Last5min: windowMomentum(in.Metrics5min),
	}
	snap.SizeMetrics = &SizeMetricsXML{
		Last10s:  windowSize(in.Metrics10s),
		Last60s:  windowSize(in.Metrics60s),
		Last5min: windowSize(in.Metrics5min),
	}
	snap.Velocity = &VelocityXML{
		Last10s:  windowVelocity(in.Metrics10s),
		Last60s:  windowVelocity(in.Metrics60s),
		Last5min: windowVelocity(in.Metrics5min),
	}

	snap.Behaviors = &BehaviorsXML{
		BidStacking:      yesNo(in.Behaviors.BidStacking),
		AskPulling:       yesNo(in.Behaviors.AskPulling),
		SpreadTightening: yesNo(in.Behaviors.SpreadTightening),
		MomentumBuilding: yesNo(in.Behaviors.MomentumBuilding),
	}

	snap.PriceLevels = &PriceLevelsXML{
		Bid:    renderLevels(in.BidLevels),
		Ask:    renderLevels(in.AskLevels),
		Sweeps: renderPatterns(in.Sweeps),
	}

	if in.IncludePatterns {
		snap.DetectedPatterns = &DetectedPatternsXML{
			Count:    len(in.Patterns),
			Window:   fmt.Sprintf("%ds", in.HistorySeconds),
			Patterns: renderPatterns(in.Patterns),
		}
	}

	return snap
}

func quoteCountForHistory(in SnapshotInput) int {
	switch {
	case in.HistorySeconds >= int(Window5Min.Seconds()) && in.Metrics5min != nil:
		return in.Metrics5min.QuoteCount
	case in.HistorySeconds >= int(Window60s.Seconds()) && in.Metrics60s != nil:
		return in.Metrics60s.QuoteCount
	case in.Metrics10s != nil:
		return in.Metrics10s.QuoteCount
	default:
		return 0
	}
}

func windowMomentum(m *MetricsRecord) *WindowMomentumXML {
	if m == nil {
		return nil
	}
	return &WindowMomentumXML{
		BidPriceChange:   fmtPrice(m.BidPriceChange),
		AskPriceChange:   fmtPrice(m.AskPriceChange),
		BidLifts:         m.BidLifts,
		BidDrops:         m.BidDrops,
		AskLifts:         m.AskLifts,
		AskDrops:         m.AskDrops,
		QuotesPerSecond:  fmtRatio(m.QuotesPerSecond),
		InsufficientData: m.InsufficientData,
	}
}

func windowSize(m *MetricsRecord) *WindowSizeXML {
	if m == nil {
		return nil
	}
	return &WindowSizeXML{
		AvgBidSize:          fmtPrice(m.AvgBidSize),
		AvgAskSize:          fmtPrice(m.AvgAskSize),
		BidSizeChange:       m.BidSizeChange,
		AskSizeChange:       m.AskSizeChange,
		LargeBidCount:       m.LargeBidCount,
		LargeAskCount:       m.LargeAskCount,
		BidSizeAcceleration: string(m.BidSizeAcceleration),
		AskSizeAcceleration: string(m.AskSizeAcceleration),
	}
}

func windowVelocity(m *MetricsRecord) *VelocityWindowXML {
	if m == nil {
		return nil
	}
	return &VelocityWindowXML{
		PriceVelocity: fmtPrice(m.PriceVelocity),
		SizeTurnover:  fmtRatio(m.SizeTurnover),
	}
}

func renderLevels(levels []PriceLevel) []LevelXML {
	out := make([]LevelXML, 0, len(levels))
	for _, l := range levels {
		out = append(out, LevelXML{
			Price:        fmtPrice(l.Price),
			Appearances:  l.Appearances,
			TotalSize:    l.TotalSize,
			Significance: fmtRatio(l.Significance),
		})
	}
	return out
}

func renderPatterns(patterns []Pattern) []PatternXML {
	out := make([]PatternXML, 0, len(patterns))
	for _, p := range patterns {
		out = append(out, PatternXML{
			Kind:        string(p.Kind),
			Side:        string(p.Side),
			Strength:    string(p.Strength),
			Timestamp:   time.UnixMilli(p.TimestampMS).UTC().Format(time.RFC3339),
			PriceLevel:  fmtPtrPrice(p.PriceLevel),
			Volume:      fmtPtrVolume(p.Volume),
			Description: p.Description,
		})
	}
	return out
}

// BuildErrorSnapshot encodes an error as a document — never as a bare
// transport failure — so callers always get a well-formed snapshot
// back.
func BuildErrorSnapshot(now time.Time, ticker, historyWindow string, kind error, causes, suggestions []string) Snapshot {
	return Snapshot{
		Ticker:         ticker,
		Timestamp:      now.UTC().Format(time.RFC3339),
		HistoryWindow:  historyWindow,
		Error:          "true",
		ErrorMessage:   errorMessage(kind),
		PossibleCauses: &CausesXML{Cause: causes},
		Suggestions:    &SuggestionsXML{Suggestion: suggestions},
	}
}

func errorMessage(kind error) string {
	return kind.Error()
}

func maxInt64(a, b int64) int64 {
	if a > b {
		return a
	}
	return b
}
