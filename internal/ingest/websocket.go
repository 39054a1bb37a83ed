// Package ingest adapts an external top-of-book quote feed into the
// order flow engine's Quote Store.
package ingest

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/fintools-ai/mcp-order-flow-server/internal/orderflow"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

// Ingester is the subset of orderflow.Engine the feed needs.
type Ingester interface {
	Ingest(ticker string, q orderflow.Quote) error
}

// quoteMessage is the wire shape of one top-of-book update: a flat
// JSON object with Binance-style single-letter keys for symbol, event
// time, and price/size.
type quoteMessage struct {
	Symbol      string  `json:"s"`
	EventTimeMS int64   `json:"E"`
	BidPrice    float64 `json:"b"`
	BidSize     float64 `json:"B"`
	AskPrice    float64 `json:"a"`
	AskSize     float64 `json:"A"`
}

// WebSocketFeed dials a single upstream quote stream and feeds every
// decoded message into an Ingester. One feed instance handles one
// upstream connection; run several for several feeds.
type WebSocketFeed struct {
	url    string
	engine Ingester
	logger *zap.Logger

	dialer       *websocket.Dialer
	reconnectMin time.Duration
	reconnectMax time.Duration
}

// NewWebSocketFeed builds a feed against url (e.g. a dev-harness relay
// or an upstream market data gateway).
func NewWebSocketFeed(url string, engine Ingester, logger *zap.Logger) *WebSocketFeed {
	return &WebSocketFeed{
		url:          url,
		engine:       engine,
		logger:       logger,
		dialer:       websocket.DefaultDialer,
		reconnectMin: time.Second,
		reconnectMax: 30 * time.Second,
	}
}

// Run connects and processes messages until ctx is cancelled,
// reconnecting with exponential backoff on read/dial errors.
func (f *WebSocketFeed) Run(ctx context.Context) {
	backoff := f.reconnectMin
	for {
		select {
		case <-ctx.Done():
			return
		default:
		}

		if err := f.runOnce(ctx); err != nil {
			f.logger.Warn("quote feed connection lost, reconnecting",
				zap.String("url", f.url), zap.Duration("backoff", backoff), zap.Error(err))
			select {
			case <-ctx.Done():
				return
			case <-time.After(backoff):
			}
			backoff *= 2
			if backoff > f.reconnectMax {
				backoff = f.reconnectMax
			}
			continue
		}
		backoff = f.reconnectMin
	}
}

func (f *WebSocketFeed) runOnce(ctx context.Context) error {
	conn, _, err := f.dialer.DialContext(ctx, f.url, nil)
	if err != nil {
		return fmt.Errorf("dial: %w", err)
	}
	defer conn.Close()

	go func() {
		<-ctx.Done()
		conn.Close()
	}()

	for {
		_, raw, err := conn.ReadMessage()
		if err != nil {
			return fmt.Errorf("read: %w", err)
		}
		f.handle(raw)
	}
}

func (f *WebSocketFeed) handle(raw []byte) {
	var msg quoteMessage
	if err := json.Unmarshal(raw, &msg); err != nil {
		f.logger.Warn("dropping malformed quote message", zap.Error(err))
		return
	}

	q := orderflow.Quote{
		Ticker:      msg.Symbol,
		TimestampMS: msg.EventTimeMS,
		BidPrice:    msg.BidPrice,
		AskPrice:    msg.AskPrice,
		BidSize:     int64(msg.BidSize),
		AskSize:     int64(msg.AskSize),
	}
	if err := f.engine.Ingest(msg.Symbol, q); err != nil {
		f.logger.Debug("dropping invalid quote", zap.String("ticker", msg.Symbol), zap.Error(err))
	}
}
