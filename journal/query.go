package journal

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
)

// ErrRunNotFound is returned by GetRun for an unknown run ID.
var ErrRunNotFound = errors.New("run not found")

const runColumns = `run_id, created, strategy, symbol, interval, dataset, config, start_time, end_time, bars,
	initial_capital, final_value, cash, pnl, pnl_pct, max_drawdown_pct, max_return_pct, fees,
	transactions, closed_trades, wins, losses, open_positions, gaps`

type scanner interface {
	Scan(dest ...any) error
}

func scanRun(s scanner) (Run, error) {
	var (
		r   Run
		cfg string
	)
	err := s.Scan(
		&r.RunID, &r.Created, &r.Strategy, &r.Symbol, &r.Interval, &r.Dataset, &cfg,
		&r.Start, &r.End, &r.Bars,
		&r.InitialCapital, &r.FinalValue, &r.Cash, &r.PnL, &r.PnLPct,
		&r.MaxDrawdownPct, &r.MaxReturnPct, &r.Fees,
		&r.Transactions, &r.ClosedTrades, &r.Wins, &r.Losses, &r.OpenPositions, &r.Gaps,
	)
	if cfg != "" {
		r.Config = []byte(cfg)
	}
	return r, err
}

// GetRun returns a single run by ID.
func (j *SQLite) GetRun(ctx context.Context, runID string) (Run, error) {
	row := j.db.QueryRowContext(ctx, `SELECT `+runColumns+` FROM runs WHERE run_id = ?`, runID)
	r, err := scanRun(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return Run{}, fmt.Errorf("run %q: %w", runID, ErrRunNotFound)
		}
		return Run{}, err
	}
	return r, nil
}

// ListRuns returns every run, newest first.
func (j *SQLite) ListRuns(ctx context.Context) ([]Run, error) {
	rows, err := j.db.QueryContext(ctx, `SELECT `+runColumns+` FROM runs ORDER BY created DESC, run_id DESC`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Run
	for rows.Next() {
		r, err := scanRun(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return out, nil
}

// ListTransactions returns the ledger of a run in execution order.
func (j *SQLite) ListTransactions(ctx context.Context, runID string) ([]TransactionRecord, error) {
	rows, err := j.db.QueryContext(ctx, `
		SELECT run_id, tx_id, symbol, side, quantity, price, leverage, fee, realized_pnl, time
		FROM transactions
		WHERE run_id = ?
		ORDER BY rowid ASC`, runID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []TransactionRecord
	for rows.Next() {
		var rec TransactionRecord
		if err := rows.Scan(
			&rec.RunID,
			&rec.TxID,
			&rec.Symbol,
			&rec.Side,
			&rec.Quantity,
			&rec.Price,
			&rec.Leverage,
			&rec.Fee,
			&rec.RealizedPnL,
			&rec.Time,
		); err != nil {
			return nil, err
		}
		out = append(out, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return out, nil
}

// ListActions returns the action history of a run in recorded order.
func (j *SQLite) ListActions(ctx context.Context, runID string) ([]ActionRecord, error) {
	rows, err := j.db.QueryContext(ctx, `
		SELECT run_id, time, symbol, action, price, quantity
		FROM actions
		WHERE run_id = ?
		ORDER BY seq ASC`, runID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []ActionRecord
	for rows.Next() {
		var rec ActionRecord
		if err := rows.Scan(
			&rec.RunID,
			&rec.Time,
			&rec.Symbol,
			&rec.Action,
			&rec.Price,
			&rec.Quantity,
		); err != nil {
			return nil, err
		}
		out = append(out, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return out, nil
}

// ListValuations returns the valuation history of a run in recorded order.
func (j *SQLite) ListValuations(ctx context.Context, runID string) ([]ValuationRecord, error) {
	rows, err := j.db.QueryContext(ctx, `
		SELECT run_id, time, open, high, low, close, cash, max_drawdown, max_drawdown_pct, max_return_pct, zero_based_return_pct
		FROM valuations
		WHERE run_id = ?
		ORDER BY seq ASC`, runID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []ValuationRecord
	for rows.Next() {
		var rec ValuationRecord
		if err := rows.Scan(
			&rec.RunID,
			&rec.Time,
			&rec.Open,
			&rec.High,
			&rec.Low,
			&rec.Close,
			&rec.Cash,
			&rec.MaxDrawdown,
			&rec.MaxDrawdownPct,
			&rec.MaxReturnPct,
			&rec.ZeroBasedReturnPct,
		); err != nil {
			return nil, err
		}
		out = append(out, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return out, nil
}
