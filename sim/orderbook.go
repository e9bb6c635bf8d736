package sim

// OrderBook holds open limit orders in placement order. It is not safe for
// concurrent use; the Broker serialises access.
type OrderBook struct {
	orders []Order
}

func NewOrderBook() *OrderBook {
	return &OrderBook{}
}

// Place stores an open order and returns its id.
func (ob *OrderBook) Place(o Order) string {
	o.Status = StatusOpen
	ob.orders = append(ob.orders, o)
	return o.ID
}

// Cancel removes an open order. It returns false when id is not open.
func (ob *OrderBook) Cancel(id string) bool {
	for i := range ob.orders {
		if ob.orders[i].ID == id {
			ob.orders = append(ob.orders[:i], ob.orders[i+1:]...)
			return true
		}
	}
	return false
}

// SelectEligible removes and returns, oldest first, every open order on
// symbol whose limit is satisfied by price.
func (ob *OrderBook) SelectEligible(symbol string, price float64) []Order {
	var eligible []Order
	kept := ob.orders[:0]
	for _, o := range ob.orders {
		if o.Symbol == symbol && o.triggeredBy(price) {
			eligible = append(eligible, o)
			continue
		}
		kept = append(kept, o)
	}
	// clear the tail so removed orders are not retained by the backing array
	for i := len(kept); i < len(ob.orders); i++ {
		ob.orders[i] = Order{}
	}
	ob.orders = kept
	return eligible
}

// Open returns a copy of the open orders, oldest first.
func (ob *OrderBook) Open() []Order {
	out := make([]Order, len(ob.orders))
	copy(out, ob.orders)
	return out
}

func (ob *OrderBook) Len() int { return len(ob.orders) }

func (ob *OrderBook) Reset() { ob.orders = nil }
