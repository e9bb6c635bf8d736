package sim

// UnrealizedPnL marks the open exposure of p at mark. Longs gain when the
// mark rises above the entry, shorts when it falls below.
func UnrealizedPnL(p Position, mark float64) float64 {
	if p.Qty == 0 {
		return 0
	}
	return p.Qty * (mark - p.AvgPrice)
}

// realizedPnL is the profit booked by closing qty of p at exit.
func realizedPnL(p Position, qty, exit float64) float64 {
	if p.Qty > 0 {
		return qty * (exit - p.AvgPrice)
	}
	return qty * (p.AvgPrice - exit)
}

func abs(x float64) float64 {
	if x < 0 {
		return -x
	}
	return x
}
