package journal

import (
	"database/sql"

	_ "github.com/mattn/go-sqlite3"
)

type SQLite struct {
	db *sql.DB
}

// NewSQLite opens (or creates) the database at path and applies Schema.
func NewSQLite(path string) (*SQLite, error) {
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, err
	}

	if _, err := db.Exec(Schema); err != nil {
		_ = db.Close()
		return nil, err
	}

	return &SQLite{db: db}, nil
}

func (j *SQLite) RecordTrade(t TradeRecord) error {
	_, err := j.db.Exec(`
		INSERT INTO trades
		(order_id, symbol, side, qty, price, realized_pnl, time)
		VALUES (?, ?, ?, ?, ?, ?, ?)`,
		t.OrderID, t.Symbol, t.Side, t.Qty, t.Price, t.RealizedPnL, t.Time.UTC(),
	)
	return err
}

func (j *SQLite) RecordBalance(b BalanceSnapshot) error {
	_, err := j.db.Exec(`
		INSERT INTO balance
		(seq, time, running, balance, open_orders, positions)
		VALUES (?, ?, ?, ?, ?, ?)`,
		b.Seq, b.Time.UTC(), b.Running, b.Balance, b.OpenOrders, b.Positions,
	)
	return err
}

func (j *SQLite) Close() error {
	return j.db.Close()
}
