package replay

import (
	"context"
	"database/sql"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rustyeddy/paperbroker/bus"
	"github.com/rustyeddy/paperbroker/journal"
	"github.com/rustyeddy/paperbroker/market"
	"github.com/rustyeddy/paperbroker/sim"
)

func newRig(t *testing.T) (*bus.Bus, *sim.Broker) {
	t.Helper()
	b := bus.New(nil)
	br := sim.NewBroker(10000, b)
	b.Subscribe(market.TopicTick, br.OnTick)
	return b, br
}

func TestReplayCloseLongIntoSQLite(t *testing.T) {
	ctx := context.Background()

	tmp := t.TempDir()
	csvPath := filepath.Join(tmp, "ticks.csv")
	dbPath := filepath.Join(tmp, "paper.sqlite")

	script := `time,symbol,price,event,arg1,arg2,arg3,arg4,arg5,arg6
2024-01-01T09:00:00Z,BTCUSDT,,START
2024-01-01T09:00:00Z,BTCUSDT,100,PLACE,entry,buy,1,95
2024-01-01T09:00:01Z,BTCUSDT,95
2024-01-01T09:00:02Z,BTCUSDT,100,PLACE,exit,sell,1,110,limit,true
2024-01-01T09:00:03Z,BTCUSDT,110
`
	require.NoError(t, os.WriteFile(csvPath, []byte(script), 0o644))

	j, err := journal.NewSQLite(dbPath)
	require.NoError(t, err)
	defer j.Close()

	b, br := newRig(t)
	journal.NewRecorder(j, nil).Attach(b)

	stats, err := CSV(ctx, csvPath, b, br, Options{TickThenEvent: true})
	require.NoError(t, err)

	assert.Equal(t, 5, stats.Rows)
	assert.Equal(t, 4, stats.Ticks)
	assert.Equal(t, 3, stats.Commands)
	assert.Zero(t, stats.Rejected)

	assert.InDelta(t, 9920.0, br.Balance(), 1e-9)
	assert.True(t, br.Position("BTCUSDT").IsFlat())
	assert.Empty(t, br.OpenOrders())

	db, err := sql.Open("sqlite3", dbPath)
	require.NoError(t, err)
	defer db.Close()

	var count int
	var pnl float64
	require.NoError(t, db.QueryRow(`SELECT COUNT(*), SUM(realized_pnl) FROM trades`).Scan(&count, &pnl))
	assert.Equal(t, 2, count)
	assert.InDelta(t, 15.0, pnl, 1e-9)

	var last float64
	require.NoError(t, db.QueryRow(`SELECT balance FROM balance ORDER BY seq DESC LIMIT 1`).Scan(&last))
	assert.InDelta(t, 9920.0, last, 1e-9)
}

func TestReplayCancelByRef(t *testing.T) {
	b, br := newRig(t)

	script := `,BTCUSDT,,START
,BTCUSDT,,PLACE,a,buy,1,90
,BTCUSDT,,PLACE,b,buy,1,80
,BTCUSDT,,CANCEL,a
,BTCUSDT,85
`
	stats, err := Run(context.Background(), strings.NewReader(script), b, br, Options{})
	require.NoError(t, err)
	assert.Zero(t, stats.Rejected)

	open := br.OpenOrders()
	require.Len(t, open, 1)
	assert.Equal(t, 80.0, open[0].Price)
	assert.Empty(t, br.Trades())
}

func TestReplayMarketOrderUsesRowTick(t *testing.T) {
	b, br := newRig(t)

	script := `,ETHUSDT,,START
,ETHUSDT,2000,PLACE,m,buy,2,,market
`
	_, err := Run(context.Background(), strings.NewReader(script), b, br, Options{TickThenEvent: true})
	require.NoError(t, err)

	pos := br.Position("ETHUSDT")
	assert.Equal(t, 2.0, pos.Qty)
	assert.Equal(t, 2000.0, pos.AvgPrice)
	assert.InDelta(t, 6000.0, br.Balance(), 1e-9)
}

func TestReplayEventBeforeTick(t *testing.T) {
	b, br := newRig(t)

	// With the command first, the market order has no price yet.
	script := `,ETHUSDT,,START
,ETHUSDT,2000,PLACE,m,buy,1,,market
`
	stats, err := Run(context.Background(), strings.NewReader(script), b, br, Options{})
	require.NoError(t, err)
	assert.Equal(t, 1, stats.Rejected)
	assert.ErrorIs(t, stats.LastError, sim.ErrNoPrice)
	assert.True(t, br.Position("ETHUSDT").IsFlat())
}

func TestReplayRejectsWhileStopped(t *testing.T) {
	b, br := newRig(t)

	script := `,BTCUSDT,,PLACE,a,buy,1,90
,BTCUSDT,,CANCEL,a
`
	stats, err := Run(context.Background(), strings.NewReader(script), b, br, Options{})
	require.NoError(t, err)
	assert.Equal(t, 2, stats.Rejected)
	assert.ErrorIs(t, stats.LastError, sim.ErrNotRunning)
}

func TestReplayStopAndReset(t *testing.T) {
	b, br := newRig(t)

	script := `,BTCUSDT,,START
,BTCUSDT,,PLACE,a,buy,1,90
,BTCUSDT,,STOP
,BTCUSDT,80
,BTCUSDT,,START
,BTCUSDT,,RESET,500
,BTCUSDT,,RESET
`
	_, err := Run(context.Background(), strings.NewReader(script), b, br, Options{ResetBalance: 750})
	require.NoError(t, err)

	assert.True(t, br.Running())
	assert.Equal(t, 750.0, br.Balance())
	assert.Empty(t, br.OpenOrders())
	assert.Empty(t, br.Trades())
}

func TestReplayUnixSecondsTime(t *testing.T) {
	var (
		mu  sync.Mutex
		got []market.Tick
	)
	b := bus.New(nil)
	b.Subscribe(market.TopicTick, func(p any) {
		mu.Lock()
		defer mu.Unlock()
		tk, ok := market.DecodeTick(p)
		require.True(t, ok)
		got = append(got, tk)
	})
	_, br := newRig(t)

	_, err := Run(context.Background(), strings.NewReader("1704099600.5,BTCUSDT,42000\n"), b, br, Options{})
	require.NoError(t, err)

	require.Len(t, got, 1)
	want := time.Date(2024, 1, 1, 9, 0, 0, 500_000_000, time.UTC)
	assert.True(t, want.Equal(got[0].Time), got[0].Time)
	assert.Equal(t, 42000.0, got[0].Price)
}

func TestReplayMalformedRows(t *testing.T) {
	tests := []struct {
		name   string
		script string
		errMsg string
	}{
		{"too few columns", "2024-01-01T00:00:00Z,X\n", "need at least 3 cols"},
		{"bad price", ",X,abc\n", "bad price"},
		{"bad time", "yesterday,X,1\n", "bad time"},
		{"price without symbol", ",,1\n", "no symbol"},
		{"unknown event", ",X,,FLY\n", "unknown event"},
		{"place missing args", ",X,,PLACE,a,buy\n", "PLACE"},
		{"place bad side", ",X,,PLACE,a,hold,1,1\n", "unknown side"},
		{"cancel without ref", ",X,,CANCEL\n", "missing order ref"},
		{"reset bad amount", ",X,,RESET,lots\n", "bad balance"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			b, br := newRig(t)
			_, err := Run(context.Background(), strings.NewReader(tt.script), b, br, Options{})
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.errMsg)
			assert.Contains(t, err.Error(), "line 1")
		})
	}
}

func TestReplayErrorLineCountsComments(t *testing.T) {
	tests := []struct {
		name   string
		script string
		line   string
	}{
		{"comment before row", "# warmup\n,X,abc\n", "line 2:"},
		{"header and comments", "time,symbol,price\n# a\n# b\n,X,1\n,X,abc\n", "line 5:"},
		{"comment before header", "# notes\ntime,symbol,price\n,X,abc\n", "line 3:"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			b, br := newRig(t)
			_, err := Run(context.Background(), strings.NewReader(tt.script), b, br, Options{})
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.line)
			assert.Contains(t, err.Error(), "bad price")
		})
	}
}

func TestReplayContextCanceled(t *testing.T) {
	b, br := newRig(t)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := Run(ctx, strings.NewReader(",X,1\n"), b, br, Options{})
	assert.ErrorIs(t, err, context.Canceled)
}

func TestReplayMissingFile(t *testing.T) {
	b, br := newRig(t)
	_, err := CSV(context.Background(), filepath.Join(t.TempDir(), "nope.csv"), b, br, Options{})
	assert.Error(t, err)
}
