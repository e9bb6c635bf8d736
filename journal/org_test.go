package journal

import (
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestFormatTradeOrg(t *testing.T) {
	t.Parallel()

	rec := TradeRecord{
		OrderID:     "01HN2Z3K4M5PQRSTVWXYZ01234",
		Symbol:      "BTCUSDT",
		Side:        "sell",
		Qty:         0.5,
		Price:       110,
		RealizedPnL: 7.5,
		Time:        time.Date(2024, 3, 15, 10, 30, 45, 0, time.UTC),
	}

	result := FormatTradeOrg(rec)

	assert.Contains(t, result, "** Fill: SELL BTCUSDT 0.5 @ 110.00 (XYZ01234)")
	assert.Contains(t, result, ":PROPERTIES:")
	assert.Contains(t, result, ":ORDER_ID: 01HN2Z3K4M5PQRSTVWXYZ01234")
	assert.Contains(t, result, ":SIDE: sell")
	assert.Contains(t, result, ":QTY: 0.5")
	assert.Contains(t, result, ":PRICE: 110.00000")
	assert.Contains(t, result, ":TIME: 2024-03-15T10:30:45Z")
	assert.Contains(t, result, ":REALIZED_PNL: 7.50")
	assert.Contains(t, result, ":END:")
	assert.Contains(t, result, "*** Notes")
}

func TestFormatTradeOrgShortID(t *testing.T) {
	t.Parallel()

	result := FormatTradeOrg(TradeRecord{OrderID: "short", Symbol: "X", Side: "buy", Qty: 1})
	assert.Contains(t, result, "(short)")
}

func TestFormatTradesOrg(t *testing.T) {
	t.Parallel()

	recs := []TradeRecord{
		{OrderID: "A", Symbol: "X", Side: "buy", Qty: 1, Price: 1},
		{OrderID: "B", Symbol: "X", Side: "sell", Qty: 1, Price: 2},
	}
	result := FormatTradesOrg(recs)
	assert.Equal(t, 2, strings.Count(result, ":PROPERTIES:"))
	assert.Contains(t, result, "(A)")
	assert.Contains(t, result, "(B)")
	assert.Empty(t, FormatTradesOrg(nil))
}

func TestFormatBalancesOrg(t *testing.T) {
	t.Parallel()

	result := FormatBalancesOrg([]BalanceSnapshot{
		{Seq: 3, Time: time.Date(2024, 3, 15, 10, 0, 0, 0, time.UTC), Running: true, Balance: 9905, OpenOrders: 1, Positions: 1},
	})

	lines := strings.Split(strings.TrimSpace(result), "\n")
	assert.Len(t, lines, 3)
	assert.Equal(t, "| 3 | 2024-03-15T10:00:00Z | true | 9905.00 | 1 | 1 |", lines[2])
}
