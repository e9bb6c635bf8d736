package journal

import (
	"database/sql"
	"errors"
	"fmt"
	"time"
)

const tradeColumns = `order_id, symbol, side, qty, price, realized_pnl, time`

// GetTrade returns the fill recorded for an order.
func (j *SQLite) GetTrade(orderID string) (TradeRecord, error) {
	row := j.db.QueryRow(`
		SELECT `+tradeColumns+`
		FROM trades
		WHERE order_id = ?
		ORDER BY id DESC LIMIT 1`, orderID)

	rec, err := scanTrade(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return TradeRecord{}, fmt.Errorf("trade for order %q not found", orderID)
		}
		return TradeRecord{}, err
	}
	return rec, nil
}

// ListTradesBetween returns fills with time in [start, end), oldest first.
func (j *SQLite) ListTradesBetween(start, end time.Time) ([]TradeRecord, error) {
	rows, err := j.db.Query(`
		SELECT `+tradeColumns+`
		FROM trades
		WHERE time >= ? AND time < ?
		ORDER BY time ASC, id ASC`, start.UTC(), end.UTC())
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []TradeRecord
	for rows.Next() {
		rec, err := scanTrade(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return out, nil
}

// ListBalanceBetween returns balance snapshots with time in [start, end).
func (j *SQLite) ListBalanceBetween(start, end time.Time) ([]BalanceSnapshot, error) {
	rows, err := j.db.Query(`
		SELECT seq, time, running, balance, open_orders, positions
		FROM balance
		WHERE time >= ? AND time < ?
		ORDER BY time ASC, seq ASC`, start.UTC(), end.UTC())
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []BalanceSnapshot
	for rows.Next() {
		var b BalanceSnapshot
		if err := rows.Scan(&b.Seq, &b.Time, &b.Running, &b.Balance, &b.OpenOrders, &b.Positions); err != nil {
			return nil, err
		}
		out = append(out, b)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return out, nil
}

// RealizedPnL sums realized PnL over every recorded fill.
func (j *SQLite) RealizedPnL() (float64, error) {
	var total sql.NullFloat64
	if err := j.db.QueryRow(`SELECT SUM(realized_pnl) FROM trades`).Scan(&total); err != nil {
		return 0, err
	}
	return total.Float64, nil
}

type scanner interface {
	Scan(dest ...any) error
}

func scanTrade(s scanner) (TradeRecord, error) {
	var rec TradeRecord
	err := s.Scan(
		&rec.OrderID,
		&rec.Symbol,
		&rec.Side,
		&rec.Qty,
		&rec.Price,
		&rec.RealizedPnL,
		&rec.Time,
	)
	return rec, err
}
