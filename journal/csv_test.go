package journal

import (
	"encoding/csv"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func readCSV(t *testing.T, path string) [][]string {
	t.Helper()
	f, err := os.Open(path)
	require.NoError(t, err)
	defer f.Close()
	rows, err := csv.NewReader(f).ReadAll()
	require.NoError(t, err)
	return rows
}

func TestCSVJournalHeaders(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	tradesPath := filepath.Join(dir, "trades.csv")
	equityPath := filepath.Join(dir, "balance.csv")

	j, err := NewCSV(tradesPath, equityPath)
	require.NoError(t, err)
	require.NoError(t, j.Close())

	trades := readCSV(t, tradesPath)
	require.Len(t, trades, 1)
	assert.Equal(t, []string{"time", "order_id", "symbol", "side", "qty", "price", "realized_pnl"}, trades[0])

	bal := readCSV(t, equityPath)
	require.Len(t, bal, 1)
	assert.Equal(t, []string{"seq", "time", "running", "balance", "open_orders", "positions"}, bal[0])
}

func TestCSVJournalRecordTrade(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	tradesPath := filepath.Join(dir, "trades.csv")

	j, err := NewCSV(tradesPath, filepath.Join(dir, "balance.csv"))
	require.NoError(t, err)

	ts := time.Date(2024, 1, 2, 3, 4, 5, 0, time.UTC)
	err = j.RecordTrade(TradeRecord{
		OrderID:     "01HX",
		Symbol:      "BTCUSDT",
		Side:        "sell",
		Qty:         0.5,
		Price:       100.1234567,
		RealizedPnL: -12.5,
		Time:        ts,
	})
	require.NoError(t, err)
	require.NoError(t, j.Close())

	rows := readCSV(t, tradesPath)
	require.Len(t, rows, 2)
	want := []string{
		ts.Format(time.RFC3339Nano),
		"01HX",
		"BTCUSDT",
		"sell",
		"0.500000",
		"100.123457",
		"-12.500000",
	}
	assert.Equal(t, want, rows[1])
}

func TestCSVJournalRecordBalance(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	equityPath := filepath.Join(dir, "balance.csv")

	j, err := NewCSV(filepath.Join(dir, "trades.csv"), equityPath)
	require.NoError(t, err)

	ts := time.Date(2024, 2, 3, 4, 5, 6, 0, time.UTC)
	require.NoError(t, j.RecordBalance(BalanceSnapshot{
		Seq:        7,
		Time:       ts,
		Running:    true,
		Balance:    9905,
		OpenOrders: 2,
		Positions:  1,
	}))
	require.NoError(t, j.Close())

	rows := readCSV(t, equityPath)
	require.Len(t, rows, 2)
	assert.Equal(t, []string{"7", ts.Format(time.RFC3339Nano), "true", "9905.000000", "2", "1"}, rows[1])
}

func TestNewCSVBadPath(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	_, err := NewCSV(filepath.Join(dir, "missing", "trades.csv"), filepath.Join(dir, "b.csv"))
	assert.Error(t, err)
}

// Not parallel: swaps the package file constructor.
func TestNewCSVClosesFilesOnHeaderFailure(t *testing.T) {
	if _, err := os.Stat("/dev/full"); err != nil {
		t.Skip("/dev/full not available")
	}

	var opened []*os.File
	createFile = func(name string) (*os.File, error) {
		f, err := os.Create(name)
		if err == nil {
			opened = append(opened, f)
		}
		return f, err
	}
	t.Cleanup(func() { createFile = os.Create })

	_, err := NewCSV(filepath.Join(t.TempDir(), "trades.csv"), "/dev/full")
	require.Error(t, err)

	require.Len(t, opened, 2)
	for _, f := range opened {
		_, err := f.Write([]byte("x"))
		assert.ErrorIs(t, err, os.ErrClosed, f.Name())
	}
}
