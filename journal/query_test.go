package journal

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGetTrade(t *testing.T) {
	t.Parallel()

	j, _ := newTestSQLite(t)

	ts := time.Date(2024, 1, 1, 9, 0, 0, 0, time.UTC)
	want := TradeRecord{
		OrderID:     "B",
		Symbol:      "BTCUSDT",
		Side:        "sell",
		Qty:         1,
		Price:       110,
		RealizedPnL: 15,
		Time:        ts,
	}
	require.NoError(t, j.RecordTrade(want))

	got, err := j.GetTrade("B")
	require.NoError(t, err)
	assert.Equal(t, want.OrderID, got.OrderID)
	assert.Equal(t, want.Side, got.Side)
	assert.Equal(t, want.RealizedPnL, got.RealizedPnL)
	assert.True(t, want.Time.Equal(got.Time))

	_, err = j.GetTrade("missing")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "not found")
}

func TestListTradesBetween(t *testing.T) {
	t.Parallel()

	j, _ := newTestSQLite(t)

	t0 := time.Date(2024, 1, 1, 9, 0, 0, 0, time.UTC)
	for i, id := range []string{"A", "B", "C"} {
		require.NoError(t, j.RecordTrade(TradeRecord{
			OrderID: id, Symbol: "X", Side: "buy", Qty: 1, Price: 100,
			Time: t0.Add(time.Duration(i) * time.Minute),
		}))
	}

	got, err := j.ListTradesBetween(t0, t0.Add(2*time.Minute))
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, "A", got[0].OrderID)
	assert.Equal(t, "B", got[1].OrderID)

	got, err = j.ListTradesBetween(t0.Add(time.Hour), t0.Add(2*time.Hour))
	require.NoError(t, err)
	assert.Empty(t, got)
}

func TestListBalanceBetween(t *testing.T) {
	t.Parallel()

	j, _ := newTestSQLite(t)

	t0 := time.Date(2024, 1, 1, 9, 0, 0, 0, time.UTC)
	require.NoError(t, j.RecordBalance(BalanceSnapshot{Seq: 1, Time: t0, Balance: 10000}))
	require.NoError(t, j.RecordBalance(BalanceSnapshot{Seq: 2, Time: t0.Add(time.Second), Balance: 9905}))

	got, err := j.ListBalanceBetween(t0, t0.Add(time.Minute))
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, uint64(1), got[0].Seq)
	assert.Equal(t, 9905.0, got[1].Balance)
}

func TestRealizedPnL(t *testing.T) {
	t.Parallel()

	j, _ := newTestSQLite(t)

	total, err := j.RealizedPnL()
	require.NoError(t, err)
	assert.Zero(t, total)

	now := time.Now()
	require.NoError(t, j.RecordTrade(TradeRecord{OrderID: "A", Symbol: "X", Side: "sell", Qty: 1, Price: 1, RealizedPnL: 15, Time: now}))
	require.NoError(t, j.RecordTrade(TradeRecord{OrderID: "B", Symbol: "X", Side: "buy", Qty: 1, Price: 1, RealizedPnL: -5, Time: now}))

	total, err = j.RealizedPnL()
	require.NoError(t, err)
	assert.InDelta(t, 10.0, total, 1e-9)
}
