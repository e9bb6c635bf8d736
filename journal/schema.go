package journal

const Schema = `
CREATE TABLE IF NOT EXISTS trades (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	order_id TEXT NOT NULL,
	symbol TEXT NOT NULL,
	side TEXT NOT NULL,
	qty REAL NOT NULL,
	price REAL NOT NULL,
	realized_pnl REAL NOT NULL,
	time DATETIME NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_trades_order ON trades(order_id);
CREATE INDEX IF NOT EXISTS idx_trades_time ON trades(time);

CREATE TABLE IF NOT EXISTS balance (
	seq INTEGER NOT NULL,
	time DATETIME NOT NULL,
	running INTEGER NOT NULL,
	balance REAL NOT NULL,
	open_orders INTEGER NOT NULL,
	positions INTEGER NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_balance_time ON balance(time);
`
