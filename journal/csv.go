package journal

import (
	"encoding/csv"
	"errors"
	"os"
	"strconv"
	"sync"
	"time"
)

type CSVJournal struct {
	mu     sync.Mutex
	trades *csv.Writer
	equity *csv.Writer
	tf, ef *os.File
}

var (
	tradesHeader  = []string{"time", "order_id", "symbol", "side", "qty", "price", "realized_pnl"}
	balanceHeader = []string{"seq", "time", "running", "balance", "open_orders", "positions"}
)

var createFile = os.Create

func NewCSV(tradesPath, balancePath string) (*CSVJournal, error) {
	tf, err := createFile(tradesPath)
	if err != nil {
		return nil, err
	}
	ef, err := createFile(balancePath)
	if err != nil {
		_ = tf.Close()
		return nil, err
	}

	tw := csv.NewWriter(tf)
	ew := csv.NewWriter(ef)
	if err := writeHeader(tw, tradesHeader); err != nil {
		return nil, errors.Join(err, tf.Close(), ef.Close())
	}
	if err := writeHeader(ew, balanceHeader); err != nil {
		return nil, errors.Join(err, tf.Close(), ef.Close())
	}

	return &CSVJournal{trades: tw, equity: ew, tf: tf, ef: ef}, nil
}

func writeHeader(w *csv.Writer, header []string) error {
	if err := w.Write(header); err != nil {
		return err
	}
	w.Flush()
	return w.Error()
}

func (j *CSVJournal) RecordTrade(t TradeRecord) error {
	j.mu.Lock()
	defer j.mu.Unlock()

	err := j.trades.Write([]string{
		t.Time.UTC().Format(time.RFC3339Nano),
		t.OrderID,
		t.Symbol,
		t.Side,
		f(t.Qty),
		f(t.Price),
		f(t.RealizedPnL),
	})
	if err != nil {
		return err
	}
	j.trades.Flush()
	return j.trades.Error()
}

func (j *CSVJournal) RecordBalance(b BalanceSnapshot) error {
	j.mu.Lock()
	defer j.mu.Unlock()

	err := j.equity.Write([]string{
		strconv.FormatUint(b.Seq, 10),
		b.Time.UTC().Format(time.RFC3339Nano),
		strconv.FormatBool(b.Running),
		f(b.Balance),
		strconv.Itoa(b.OpenOrders),
		strconv.Itoa(b.Positions),
	})
	if err != nil {
		return err
	}
	j.equity.Flush()
	return j.equity.Error()
}

func (j *CSVJournal) Close() error {
	j.mu.Lock()
	defer j.mu.Unlock()

	j.trades.Flush()
	if err := j.trades.Error(); err != nil {
		return err
	}
	j.equity.Flush()
	if err := j.equity.Error(); err != nil {
		return err
	}

	if err := j.tf.Close(); err != nil {
		return err
	}
	return j.ef.Close()
}

func f(x float64) string {
	return strconv.FormatFloat(x, 'f', 6, 64)
}
