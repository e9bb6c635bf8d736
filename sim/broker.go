package sim

import (
	"errors"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/rustyeddy/paperbroker/internal/id"
	"github.com/rustyeddy/paperbroker/internal/logging"
	"github.com/rustyeddy/paperbroker/market"
)

// Broker is the paper trading account: order book, ledger, trade log, the
// running flag and the margin mode tag. One mutex serialises every
// operation, so ticks and order commands may arrive from any goroutine.
type Broker struct {
	mu         sync.Mutex
	running    bool
	marginMode MarginMode
	book       *OrderBook
	ledger     *Ledger
	ticks      *market.TickStore
	seq        uint64

	pub Publisher
	ids *id.Generator
	now func() time.Time
	log *zap.Logger

	maxTrades int
}

type Option func(*Broker)

func WithLogger(l *zap.Logger) Option { return func(b *Broker) { b.log = logging.OrNop(l) } }

// WithClock sets the time source for order and trade timestamps.
func WithClock(now func() time.Time) Option { return func(b *Broker) { b.now = now } }

func WithIDGenerator(g *id.Generator) Option { return func(b *Broker) { b.ids = g } }

// WithMaxTrades bounds the trade history; see NewTradeLog.
func WithMaxTrades(n int) Option { return func(b *Broker) { b.maxTrades = n } }

func WithMarginMode(m MarginMode) Option { return func(b *Broker) { b.marginMode = m } }

// NewBroker creates a stopped account holding balance. Snapshots and fills
// are written to pub, which may be nil.
func NewBroker(balance float64, pub Publisher, opts ...Option) *Broker {
	b := &Broker{
		marginMode: Isolated,
		book:       NewOrderBook(),
		ticks:      market.NewTickStore(),
		pub:        pub,
		ids:        id.NewGenerator(),
		now:        time.Now,
		log:        zap.NewNop(),
		maxTrades:  DefaultMaxTrades,
	}
	for _, o := range opts {
		o(b)
	}
	b.ledger = NewLedger(balance, NewTradeLog(b.maxTrades))
	return b
}

// Start enables order placement and tick matching.
func (b *Broker) Start() {
	b.setRunning(true)
}

// Stop disables placement and matching for every later operation. Fills
// already applied stay applied.
func (b *Broker) Stop() {
	b.setRunning(false)
}

func (b *Broker) setRunning(on bool) {
	b.mu.Lock()
	b.running = on
	st := b.snapshotLocked()
	b.mu.Unlock()

	b.log.Info("paper broker running state changed", zap.Bool("running", on))
	b.emit(nil, st)
}

// ResetBalance clears positions, open orders and trade history and sets the
// balance to amount. The running flag is left alone.
func (b *Broker) ResetBalance(amount float64) {
	b.mu.Lock()
	b.ledger.Reset(amount)
	b.book.Reset()
	st := b.snapshotLocked()
	b.mu.Unlock()

	b.log.Info("paper account reset", zap.Float64("balance", amount))
	b.emit(nil, st)
}

// PlaceOrder accepts an order and returns its id. Limit orders rest in the
// book until a tick triggers them. Market orders fill immediately at
// req.Price, or at the last tick for the symbol when req.Price is 0.
//
// While stopped the result is "" and ErrNotRunning.
func (b *Broker) PlaceOrder(req OrderRequest) (string, error) {
	if req.Kind == "" {
		req.Kind = Limit
	}
	if err := req.Validate(); err != nil {
		return "", err
	}

	b.mu.Lock()
	if !b.running {
		b.mu.Unlock()
		b.log.Debug("order rejected", zap.String("symbol", req.Symbol), zap.Error(ErrNotRunning))
		return "", ErrNotRunning
	}

	o := Order{
		ID:         b.ids.New(),
		Symbol:     req.Symbol,
		Side:       req.Side,
		Qty:        req.Qty,
		Price:      req.Price,
		Kind:       req.Kind,
		ReduceOnly: req.ReduceOnly,
		Status:     StatusOpen,
		Time:       b.now(),
	}

	var fills []Trade
	if o.Kind == Market {
		price := req.Price
		if price == 0 {
			t, err := b.ticks.Get(o.Symbol)
			if err != nil {
				b.mu.Unlock()
				return "", fmt.Errorf("market order on %s: %w", o.Symbol, ErrNoPrice)
			}
			price = t.Price
		}
		res, err := b.ledger.Apply(execute(o, price, o.Time))
		if err != nil {
			b.mu.Unlock()
			return "", fmt.Errorf("fill market order %s: %w", o.ID, err)
		}
		if res.Applied {
			fills = append(fills, res.Trade)
		}
		b.logFill(o, res)
	} else {
		b.book.Place(o)
	}

	st := b.snapshotLocked()
	b.mu.Unlock()

	b.emit(fills, st)
	return o.ID, nil
}

// CancelOrder removes an open order. It returns false, and publishes
// nothing, when the id is not open or the broker is stopped.
func (b *Broker) CancelOrder(orderID string) bool {
	b.mu.Lock()
	if !b.running || !b.book.Cancel(orderID) {
		b.mu.Unlock()
		return false
	}
	st := b.snapshotLocked()
	b.mu.Unlock()

	b.log.Debug("order canceled", zap.String("order_id", orderID))
	b.emit(nil, st)
	return true
}

// HandleTick records the price and, while running, fills every open order
// the tick triggers at the tick price. Invalid ticks are ignored. The
// returned error is non-nil only when the ledger rejected a fill, which is
// a programming error; remaining orders are still processed.
func (b *Broker) HandleTick(t market.Tick) error {
	if !t.Valid() {
		return nil
	}
	if t.Time.IsZero() {
		t.Time = b.now()
	}

	b.mu.Lock()
	b.ticks.Set(t)
	if !b.running {
		b.mu.Unlock()
		return nil
	}

	var (
		fills []Trade
		errs  []error
	)
	for _, o := range b.book.SelectEligible(t.Symbol, t.Price) {
		res, err := b.ledger.Apply(execute(o, t.Price, t.Time))
		if err != nil {
			errs = append(errs, fmt.Errorf("fill order %s: %w", o.ID, err))
			continue
		}
		if res.Applied {
			fills = append(fills, res.Trade)
		}
		b.logFill(o, res)
	}
	st := b.snapshotLocked()
	b.mu.Unlock()

	b.emit(fills, st)
	return errors.Join(errs...)
}

// OnTick is the event channel handler for market.TopicTick.
func (b *Broker) OnTick(payload any) {
	t, ok := market.DecodeTick(payload)
	if !ok {
		b.log.Debug("dropping malformed tick", zap.Any("payload", payload))
		return
	}
	if err := b.HandleTick(t); err != nil {
		b.log.Error("tick processing failed", zap.String("symbol", t.Symbol), zap.Error(err))
	}
}

// Snapshot reads the current state without publishing it.
func (b *Broker) Snapshot() State {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.snapshotLocked()
}

func (b *Broker) Running() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.running
}

func (b *Broker) Balance() float64 {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.ledger.Balance()
}

func (b *Broker) Position(symbol string) Position {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.ledger.Position(symbol)
}

func (b *Broker) OpenOrders() []Order {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.book.Open()
}

func (b *Broker) Trades() []Trade {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.ledger.Trades().Trades()
}

// LastPrice returns the last tick price seen for symbol.
func (b *Broker) LastPrice(symbol string) (float64, bool) {
	t, err := b.ticks.Get(symbol)
	if err != nil {
		return 0, false
	}
	return t.Price, true
}

func (b *Broker) logFill(o Order, res Result) {
	if !res.Applied {
		b.log.Debug("reduce-only order had nothing to reduce",
			zap.String("order_id", o.ID), zap.String("symbol", o.Symbol))
		return
	}
	b.log.Debug("order filled",
		zap.String("order_id", o.ID),
		zap.String("symbol", o.Symbol),
		zap.String("side", string(o.Side)),
		zap.Float64("qty", res.Executed),
		zap.Float64("price", res.Trade.Price),
		zap.Float64("realized_pnl", res.RealizedPnL),
	)
}
