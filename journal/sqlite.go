package journal

import (
	"bytes"
	"context"
	"database/sql"
	"fmt"

	_ "github.com/mattn/go-sqlite3"
)

type SQLite struct {
	db *sql.DB
}

func NewSQLite(path string) (*SQLite, error) {
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, err
	}
	// one writer; parallel sweep runs share the handle
	db.SetMaxOpenConns(1)

	if _, err := db.Exec(Schema); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("create schema: %w", err)
	}

	return &SQLite{db: db}, nil
}

func (j *SQLite) RecordTransaction(t TransactionRecord) error {
	_, err := j.db.Exec(`
		INSERT INTO transactions
		(run_id, tx_id, symbol, side, quantity, price, leverage, fee, realized_pnl, time)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		t.RunID, t.TxID, t.Symbol, t.Side, t.Quantity, t.Price,
		t.Leverage, t.Fee, t.RealizedPnL, t.Time,
	)
	return err
}

func (j *SQLite) RecordAction(a ActionRecord) error {
	_, err := j.db.Exec(`
		INSERT INTO actions
		(run_id, time, symbol, action, price, quantity)
		VALUES (?, ?, ?, ?, ?, ?)`,
		a.RunID, a.Time, a.Symbol, a.Action, a.Price, a.Quantity,
	)
	return err
}

func (j *SQLite) RecordValuation(v ValuationRecord) error {
	_, err := j.db.Exec(`
		INSERT INTO valuations
		(run_id, time, open, high, low, close, cash, max_drawdown, max_drawdown_pct, max_return_pct, zero_based_return_pct)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		v.RunID, v.Time, v.Open, v.High, v.Low, v.Close, v.Cash,
		v.MaxDrawdown, v.MaxDrawdownPct, v.MaxReturnPct, v.ZeroBasedReturnPct,
	)
	return err
}

// RecordRun inserts the run, replacing an earlier row with the same ID.
func (j *SQLite) RecordRun(r Run) error {
	_, err := j.db.Exec(`
		INSERT OR REPLACE INTO runs
		(run_id, created, strategy, symbol, interval, dataset, config, start_time, end_time, bars,
		 initial_capital, final_value, cash, pnl, pnl_pct, max_drawdown_pct, max_return_pct, fees,
		 transactions, closed_trades, wins, losses, open_positions, gaps)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		r.RunID, r.Created, r.Strategy, r.Symbol, r.Interval, r.Dataset, string(r.Config),
		r.Start, r.End, r.Bars,
		r.InitialCapital, r.FinalValue, r.Cash, r.PnL, r.PnLPct, r.MaxDrawdownPct, r.MaxReturnPct, r.Fees,
		r.Transactions, r.ClosedTrades, r.Wins, r.Losses, r.OpenPositions, r.Gaps,
	)
	return err
}

// ExportRunOrg loads a run and returns its org block.
func (j *SQLite) ExportRunOrg(ctx context.Context, runID string) (string, error) {
	r, err := j.GetRun(ctx, runID)
	if err != nil {
		return "", err
	}
	buf := new(bytes.Buffer)
	if err := r.WriteOrg(buf); err != nil {
		return "", err
	}
	return buf.String(), nil
}

func (j *SQLite) Close() error {
	return j.db.Close()
}
