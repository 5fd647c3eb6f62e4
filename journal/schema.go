package journal

// Decimal columns are TEXT so amounts round-trip exactly.
const Schema = `
CREATE TABLE IF NOT EXISTS runs (
	run_id TEXT PRIMARY KEY,
	created DATETIME NOT NULL,
	strategy TEXT NOT NULL,
	symbol TEXT NOT NULL,
	interval TEXT NOT NULL,
	dataset TEXT NOT NULL,
	config TEXT NOT NULL,
	start_time DATETIME NOT NULL,
	end_time DATETIME NOT NULL,
	bars INTEGER NOT NULL,
	initial_capital TEXT NOT NULL,
	final_value TEXT NOT NULL,
	cash TEXT NOT NULL,
	pnl TEXT NOT NULL,
	pnl_pct TEXT NOT NULL,
	max_drawdown_pct TEXT NOT NULL,
	max_return_pct TEXT NOT NULL,
	fees TEXT NOT NULL,
	transactions INTEGER NOT NULL,
	closed_trades INTEGER NOT NULL,
	wins INTEGER NOT NULL,
	losses INTEGER NOT NULL,
	open_positions INTEGER NOT NULL,
	gaps INTEGER NOT NULL
);

CREATE TABLE IF NOT EXISTS transactions (
	run_id TEXT NOT NULL,
	tx_id TEXT NOT NULL,
	symbol TEXT NOT NULL,
	side TEXT NOT NULL,
	quantity TEXT NOT NULL,
	price TEXT NOT NULL,
	leverage TEXT NOT NULL,
	fee TEXT NOT NULL,
	realized_pnl TEXT NOT NULL,
	time DATETIME NOT NULL,
	PRIMARY KEY (run_id, tx_id)
);

CREATE TABLE IF NOT EXISTS actions (
	seq INTEGER PRIMARY KEY AUTOINCREMENT,
	run_id TEXT NOT NULL,
	time DATETIME NOT NULL,
	symbol TEXT NOT NULL,
	action TEXT NOT NULL,
	price TEXT NOT NULL,
	quantity TEXT NOT NULL
);

CREATE TABLE IF NOT EXISTS valuations (
	seq INTEGER PRIMARY KEY AUTOINCREMENT,
	run_id TEXT NOT NULL,
	time DATETIME NOT NULL,
	open TEXT NOT NULL,
	high TEXT NOT NULL,
	low TEXT NOT NULL,
	close TEXT NOT NULL,
	cash TEXT NOT NULL,
	max_drawdown TEXT NOT NULL,
	max_drawdown_pct TEXT NOT NULL,
	max_return_pct TEXT NOT NULL,
	zero_based_return_pct TEXT NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_actions_run ON actions(run_id, seq);
CREATE INDEX IF NOT EXISTS idx_valuations_run ON valuations(run_id, seq);
`
