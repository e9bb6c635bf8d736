package sim

import (
	"fmt"
	"math"
)

// qtyEpsilon snaps float residue left by closing fills back to flat.
const qtyEpsilon = 1e-9

// Result describes what applying a fill did to the ledger.
type Result struct {
	// Applied is false for a reduce-only fill with nothing to reduce.
	Applied bool
	// Executed is the quantity that actually traded.
	Executed    float64
	RealizedPnL float64
	Trade       Trade
	Position    Position
}

// Ledger owns the cash balance, the positions by symbol and the trade log.
// Only Apply and Reset mutate it. It is not safe for concurrent use.
type Ledger struct {
	balance   float64
	positions map[string]Position
	trades    *TradeLog
}

func NewLedger(balance float64, trades *TradeLog) *Ledger {
	if trades == nil {
		trades = NewTradeLog(DefaultMaxTrades)
	}
	return &Ledger{
		balance:   balance,
		positions: make(map[string]Position),
		trades:    trades,
	}
}

func (l *Ledger) Balance() float64 { return l.balance }

func (l *Ledger) Position(symbol string) Position { return l.positions[symbol] }

// Positions returns a copy of every tracked position, flat ones included.
func (l *Ledger) Positions() map[string]Position {
	out := make(map[string]Position, len(l.positions))
	for k, v := range l.positions {
		out[k] = v
	}
	return out
}

func (l *Ledger) Trades() *TradeLog { return l.trades }

// Reset clears positions and history and sets a new balance.
func (l *Ledger) Reset(balance float64) {
	l.balance = balance
	l.positions = make(map[string]Position)
	l.trades.Reset()
}

// Apply books a fill.
//
//   - A fill on the side of the position (or on a flat one) increases
//     exposure: the average price becomes the quantity-weighted average and
//     cash moves by the fill notional (debited for buys, credited for sells).
//   - A reduce-only fill against an opposing position closes at most the
//     open quantity and adds the realized PnL to cash. Against a flat or
//     same-side position it does nothing.
//   - Any other fill against an opposing position first closes the open
//     quantity as above, then opens the remainder as a fresh position at the
//     fill price, moving cash by the remainder's notional only.
//
// Every applied fill appends one Trade.
func (l *Ledger) Apply(f Fill) (Result, error) {
	if err := f.validate(); err != nil {
		return Result{}, err
	}

	pos := l.positions[f.Symbol]
	var (
		closed, opened float64
		pnl            float64
	)

	switch {
	case pos.opposes(f.Side):
		closed = math.Min(f.Qty, abs(pos.Qty))
		if !f.ReduceOnly {
			opened = f.Qty - closed
		}
	case f.ReduceOnly:
		return Result{Position: pos}, nil
	default:
		opened = f.Qty
	}

	if closed > 0 {
		var err error
		pos, pnl, err = reduce(pos, f.Side, closed, f.Price)
		if err != nil {
			return Result{}, err
		}
		l.balance += pnl
	}
	if opened > qtyEpsilon {
		pos = increase(pos, f.Side, opened, f.Price)
		l.balance -= f.Side.sign() * f.Price * opened
	} else {
		opened = 0
	}

	l.positions[f.Symbol] = pos

	executed := closed + opened
	t := Trade{
		Time:        f.Time,
		Symbol:      f.Symbol,
		Side:        f.Side,
		Qty:         executed,
		Price:       f.Price,
		OrderID:     f.OrderID,
		RealizedPnL: pnl,
	}
	l.trades.Append(t)

	return Result{
		Applied:     true,
		Executed:    executed,
		RealizedPnL: pnl,
		Trade:       t,
		Position:    pos,
	}, nil
}

func increase(pos Position, side Side, qty, price float64) Position {
	held := abs(pos.Qty)
	total := held + qty
	return Position{
		Qty:      pos.Qty + side.sign()*qty,
		AvgPrice: (pos.AvgPrice*held + price*qty) / total,
	}
}

func reduce(pos Position, side Side, qty, price float64) (Position, float64, error) {
	if qty > abs(pos.Qty)+qtyEpsilon {
		return pos, 0, fmt.Errorf("%w: closing %v exceeds open qty %v", ErrInvalidFill, qty, pos.Qty)
	}
	pnl := realizedPnL(pos, qty, price)
	next := Position{Qty: pos.Qty + side.sign()*qty, AvgPrice: pos.AvgPrice}
	if abs(next.Qty) <= qtyEpsilon {
		next = Position{}
	}
	return next, pnl, nil
}

func (f Fill) validate() error {
	switch {
	case f.Symbol == "":
		return fmt.Errorf("%w: missing symbol", ErrInvalidFill)
	case f.Side != Buy && f.Side != Sell:
		return fmt.Errorf("%w: unknown side %q", ErrInvalidFill, f.Side)
	case math.IsNaN(f.Qty) || math.IsInf(f.Qty, 0) || f.Qty <= 0:
		return fmt.Errorf("%w: qty %v", ErrInvalidFill, f.Qty)
	case math.IsNaN(f.Price) || math.IsInf(f.Price, 0) || f.Price < 0:
		return fmt.Errorf("%w: price %v", ErrInvalidFill, f.Price)
	}
	return nil
}
