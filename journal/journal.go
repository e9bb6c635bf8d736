// Package journal writes an audit trail of paper fills and account balance
// snapshots. Journals are sinks only; the broker never reads them back.
package journal

import "time"

// TradeRecord is one executed fill.
type TradeRecord struct {
	OrderID     string
	Symbol      string
	Side        string
	Qty         float64
	Price       float64
	RealizedPnL float64
	Time        time.Time
}

// BalanceSnapshot summarises the account after a state change.
type BalanceSnapshot struct {
	Seq        uint64
	Time       time.Time
	Running    bool
	Balance    float64
	OpenOrders int
	Positions  int
}

type Journal interface {
	RecordTrade(TradeRecord) error
	RecordBalance(BalanceSnapshot) error
	Close() error
}

// Nop discards everything.
type Nop struct{}

func (Nop) RecordTrade(TradeRecord) error { return nil }
func (Nop) RecordBalance(BalanceSnapshot) error { return nil }
func (Nop) Close() error { return nil }
