package sim

import "time"

// Topics written by the broker.
const (
	TopicState = "paper_broker.state"
	TopicFill  = "paper_broker.fill"
)

// State is the account snapshot published after every state change.
// Seq increases with every snapshot so consumers can drop stale ones.
type State struct {
	Seq          uint64                  `json:"seq"`
	Time         time.Time               `json:"time"`
	Running      bool                    `json:"running"`
	MarginMode   MarginMode              `json:"margin_mode"`
	Balance      float64                 `json:"balance"`
	Positions    map[string]PositionView `json:"positions"`
	OpenOrders   []Order                 `json:"open_orders"`
	TradeHistory []Trade                 `json:"trade_history"`
}

// PositionView is a Position as displayed, marked against the last tick
// when one is known.
type PositionView struct {
	Qty           float64  `json:"qty"`
	AvgPrice      float64  `json:"avg_price"`
	MarkPrice     *float64 `json:"mark_price,omitempty"`
	UnrealizedPnL *float64 `json:"unrealized_pnl,omitempty"`
}

// Publisher is the write side of the event channel.
type Publisher interface {
	Publish(topic string, payload any)
}

// snapshotLocked reads the current state. The caller holds b.mu.
func (b *Broker) snapshotLocked() State {
	b.seq++

	positions := make(map[string]PositionView)
	for sym, p := range b.ledger.Positions() {
		v := PositionView{Qty: p.Qty, AvgPrice: p.AvgPrice}
		if t, err := b.ticks.Get(sym); err == nil && !p.IsFlat() {
			mark := t.Price
			upl := UnrealizedPnL(p, mark)
			v.MarkPrice, v.UnrealizedPnL = &mark, &upl
		}
		positions[sym] = v
	}

	return State{
		Seq:          b.seq,
		Time:         b.now(),
		Running:      b.running,
		MarginMode:   b.marginMode,
		Balance:      b.ledger.Balance(),
		Positions:    positions,
		OpenOrders:   b.book.Open(),
		TradeHistory: b.ledger.Trades().Trades(),
	}
}

// emit publishes fills then the snapshot. It runs without b.mu held so that
// subscribers may call back into the broker.
func (b *Broker) emit(fills []Trade, st State) {
	if b.pub == nil {
		return
	}
	for _, t := range fills {
		b.pub.Publish(TopicFill, t)
	}
	b.pub.Publish(TopicState, st)
}
