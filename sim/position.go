package sim

// Position is the open exposure on one symbol. Qty is signed: positive is
// long, negative is short. AvgPrice is the entry price of the open exposure
// and is zero whenever Qty is zero.
type Position struct {
	Qty      float64 `json:"qty"`
	AvgPrice float64 `json:"avg_price"`
}

func (p Position) IsFlat() bool { return p.Qty == 0 }

// opposes reports whether a fill on side would shrink this position.
func (p Position) opposes(side Side) bool {
	return p.Qty*side.sign() < 0
}
