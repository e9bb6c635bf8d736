package sim

import "time"

// Trade is the record of one executed fill.
type Trade struct {
	Time        time.Time `json:"timestamp"`
	Symbol      string    `json:"symbol"`
	Side        Side      `json:"side"`
	Qty         float64   `json:"qty"`
	Price       float64   `json:"price"`
	OrderID     string    `json:"order_id"`
	RealizedPnL float64   `json:"realized_pnl"`
}

// DefaultMaxTrades bounds the trade history when no capacity is configured.
const DefaultMaxTrades = 1000

// TradeLog is a fixed-capacity ring of trades. Appending to a full log
// evicts the oldest trade.
type TradeLog struct {
	buf   []Trade
	start int
	n     int
}

// NewTradeLog returns a log holding at most capacity trades. A capacity of
// zero or less means DefaultMaxTrades.
func NewTradeLog(capacity int) *TradeLog {
	if capacity <= 0 {
		capacity = DefaultMaxTrades
	}
	return &TradeLog{buf: make([]Trade, capacity)}
}

func (l *TradeLog) Append(t Trade) {
	if l.n < len(l.buf) {
		l.buf[(l.start+l.n)%len(l.buf)] = t
		l.n++
		return
	}
	l.buf[l.start] = t
	l.start = (l.start + 1) % len(l.buf)
}

// Trades returns the retained trades, oldest first.
func (l *TradeLog) Trades() []Trade {
	out := make([]Trade, l.n)
	for i := 0; i < l.n; i++ {
		out[i] = l.buf[(l.start+i)%len(l.buf)]
	}
	return out
}

func (l *TradeLog) Len() int { return l.n }
func (l *TradeLog) Cap() int { return len(l.buf) }

func (l *TradeLog) Reset() {
	clear(l.buf)
	l.start, l.n = 0, 0
}
