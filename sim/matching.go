package sim

import "time"

// Fill is the intent handed from matching to the ledger: one order executed
// in full at one price.
type Fill struct {
	OrderID    string
	Symbol     string
	Side       Side
	Qty        float64
	Price      float64
	ReduceOnly bool
	Time       time.Time
}

// execute turns an order into a fill at price. Market orders pass the
// caller's price; limit orders pass the triggering tick price, which may be
// better than the limit.
func execute(o Order, price float64, at time.Time) Fill {
	return Fill{
		OrderID:    o.ID,
		Symbol:     o.Symbol,
		Side:       o.Side,
		Qty:        o.Qty,
		Price:      price,
		ReduceOnly: o.ReduceOnly,
		Time:       at,
	}
}
