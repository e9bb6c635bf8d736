package journal

import (
	"fmt"
	"strings"
	"time"
)

// FormatTradeOrg renders a fill as an org-mode entry for a trading diary.
func FormatTradeOrg(t TradeRecord) string {
	heading := fmt.Sprintf("** Fill: %s %s %g @ %.2f (%s)",
		strings.ToUpper(t.Side), t.Symbol, t.Qty, t.Price, shortID(t.OrderID))

	var b strings.Builder
	b.WriteString(heading)
	b.WriteString("\n")
	b.WriteString(":PROPERTIES:\n")
	b.WriteString(fmt.Sprintf(":ORDER_ID: %s\n", t.OrderID))
	b.WriteString(fmt.Sprintf(":SYMBOL: %s\n", t.Symbol))
	b.WriteString(fmt.Sprintf(":SIDE: %s\n", t.Side))
	b.WriteString(fmt.Sprintf(":QTY: %g\n", t.Qty))
	b.WriteString(fmt.Sprintf(":PRICE: %.5f\n", t.Price))
	b.WriteString(fmt.Sprintf(":TIME: %s\n", t.Time.UTC().Format(time.RFC3339)))
	b.WriteString(fmt.Sprintf(":REALIZED_PNL: %.2f\n", t.RealizedPnL))
	b.WriteString(":END:\n")
	b.WriteString("\n")
	b.WriteString("*** Notes\n- \n")

	return b.String()
}

// FormatTradesOrg renders multiple fills separated by blank lines.
func FormatTradesOrg(trades []TradeRecord) string {
	var b strings.Builder
	for i, t := range trades {
		if i > 0 {
			b.WriteString("\n\n")
		}
		b.WriteString(FormatTradeOrg(t))
	}
	return b.String()
}

// FormatBalancesOrg renders balance snapshots as an org table.
func FormatBalancesOrg(snaps []BalanceSnapshot) string {
	var b strings.Builder
	b.WriteString("| seq | time | running | balance | open orders | positions |\n")
	b.WriteString("|-----+------+---------+---------+-------------+-----------|\n")
	for _, s := range snaps {
		fmt.Fprintf(&b, "| %d | %s | %t | %.2f | %d | %d |\n",
			s.Seq, s.Time.UTC().Format(time.RFC3339), s.Running, s.Balance, s.OpenOrders, s.Positions)
	}
	return b.String()
}

// shortID keeps the random tail of a ULID; the head is only the timestamp.
func shortID(full string) string {
	if len(full) <= 8 {
		return full
	}
	return full[len(full)-8:]
}
