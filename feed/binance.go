// Package feed connects live tick sources to the event channel.
package feed

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/rustyeddy/paperbroker/internal/logging"
	"github.com/rustyeddy/paperbroker/market"
	"github.com/rustyeddy/paperbroker/sim"
)

const DefaultBinanceURL = "wss://stream.binance.com:9443/ws"

// Binance streams aggTrade prices for a set of symbols and publishes each
// one on market.TopicTick. Run reconnects with backoff until its context
// is canceled.
type Binance struct {
	URL     string
	Symbols []string

	ReadTimeout  time.Duration
	WriteTimeout time.Duration
	PingInterval time.Duration
	MaxBackoff   time.Duration

	pub sim.Publisher
	log *zap.Logger
}

func NewBinance(symbols []string, pub sim.Publisher, log *zap.Logger) *Binance {
	return &Binance{
		URL:          DefaultBinanceURL,
		Symbols:      symbols,
		ReadTimeout:  60 * time.Second,
		WriteTimeout: 10 * time.Second,
		PingInterval: 20 * time.Second,
		MaxBackoff:   30 * time.Second,
		pub:          pub,
		log:          logging.OrNop(log),
	}
}

// Run blocks until ctx is done.
func (b *Binance) Run(ctx context.Context) error {
	if len(b.Symbols) == 0 {
		return errors.New("binance feed: no symbols")
	}

	backoff := time.Second
	for {
		err := b.session(ctx)
		if ctx.Err() != nil {
			return ctx.Err()
		}
		b.log.Warn("binance feed disconnected", zap.Error(err), zap.Duration("retry_in", backoff))

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(backoff):
		}
		backoff *= 2
		if backoff > b.MaxBackoff {
			backoff = b.MaxBackoff
		}
	}
}

// session runs one connection until it fails or ctx is done.
func (b *Binance) session(ctx context.Context) error {
	dialer := websocket.Dialer{HandshakeTimeout: 10 * time.Second}
	conn, _, err := dialer.DialContext(ctx, b.URL, nil)
	if err != nil {
		return fmt.Errorf("dial %s: %w", b.URL, err)
	}
	defer conn.Close()

	b.log.Info("binance feed connected", zap.String("url", b.URL), zap.Strings("symbols", b.Symbols))

	if err := b.subscribe(conn); err != nil {
		return err
	}

	// Closing the connection unblocks ReadMessage when ctx ends.
	stop := make(chan struct{})
	defer close(stop)
	go b.keepalive(ctx, conn, stop)

	conn.SetReadLimit(1 << 20)
	_ = conn.SetReadDeadline(time.Now().Add(b.ReadTimeout))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(b.ReadTimeout))
	})

	for {
		_, raw, err := conn.ReadMessage()
		if err != nil {
			return err
		}
		_ = conn.SetReadDeadline(time.Now().Add(b.ReadTimeout))

		tick, ok, err := ParseAggTrade(raw)
		if err != nil {
			b.log.Debug("binance feed parse error", zap.Error(err))
			continue
		}
		if !ok {
			continue
		}
		b.pub.Publish(market.TopicTick, tick)
	}
}

func (b *Binance) subscribe(conn *websocket.Conn) error {
	params := make([]string, 0, len(b.Symbols))
	for _, s := range b.Symbols {
		params = append(params, strings.ToLower(s)+"@aggTrade")
	}
	payload := map[string]any{
		"method": "SUBSCRIBE",
		"params": params,
		"id":     time.Now().Unix(),
	}
	_ = conn.SetWriteDeadline(time.Now().Add(b.WriteTimeout))
	return conn.WriteJSON(payload)
}

func (b *Binance) keepalive(ctx context.Context, conn *websocket.Conn, stop <-chan struct{}) {
	ticker := time.NewTicker(b.PingInterval)
	defer ticker.Stop()

	for {
		select {
		case <-stop:
			return
		case <-ctx.Done():
			_ = conn.Close()
			return
		case <-ticker.C:
			deadline := time.Now().Add(b.WriteTimeout)
			if err := conn.WriteControl(websocket.PingMessage, nil, deadline); err != nil {
				_ = conn.Close()
				return
			}
		}
	}
}

type aggTrade struct {
	Event     string `json:"e"`
	EventTime int64  `json:"E"`
	Symbol    string `json:"s"`
	Price     string `json:"p"`
	Qty       string `json:"q"`
	TradeTime int64  `json:"T"`
}

// ParseAggTrade turns one stream message into a Tick. ok is false for
// messages that are not aggTrade events, such as subscription acks.
func ParseAggTrade(raw []byte) (market.Tick, bool, error) {
	var m aggTrade
	if err := json.Unmarshal(raw, &m); err != nil {
		s := string(raw)
		if len(s) > 100 {
			s = s[:100] + "..."
		}
		return market.Tick{}, false, fmt.Errorf("%w | raw: %s", err, s)
	}
	if m.Event != "aggTrade" {
		return market.Tick{}, false, nil
	}

	price, err := strconv.ParseFloat(m.Price, 64)
	if err != nil {
		return market.Tick{}, false, fmt.Errorf("bad price %q: %w", m.Price, err)
	}

	ts := m.TradeTime
	if ts == 0 {
		ts = m.EventTime
	}
	var at time.Time
	if ts > 0 {
		at = time.UnixMilli(ts).UTC()
	}

	t := market.Tick{Symbol: m.Symbol, Price: price, Time: at}
	if !t.Valid() {
		return market.Tick{}, false, nil
	}
	return t, true, nil
}
