// Package journal persists the outputs of backtest runs.
package journal

import (
	"time"

	"github.com/rustyeddy/backtester/sim"
	"github.com/shopspring/decimal"
)

// TransactionRecord is one ledger entry of a run.
type TransactionRecord struct {
	RunID       string
	TxID        string
	Symbol      string
	Side        string
	Quantity    decimal.Decimal
	Price       decimal.Decimal
	Leverage    decimal.Decimal
	Fee         decimal.Decimal
	RealizedPnL decimal.Decimal
	Time        time.Time
}

func NewTransactionRecord(runID string, tx sim.Transaction) TransactionRecord {
	return TransactionRecord{
		RunID:       runID,
		TxID:        tx.ID,
		Symbol:      tx.Symbol,
		Side:        tx.Side.String(),
		Quantity:    tx.Quantity,
		Price:       tx.Price,
		Leverage:    tx.Leverage,
		Fee:         tx.Fee,
		RealizedPnL: tx.RealizedPnL,
		Time:        tx.Time,
	}
}

// ActionRecord is one entry of a run's action history.
type ActionRecord struct {
	RunID    string
	Time     time.Time
	Symbol   string
	Action   string
	Price    decimal.Decimal
	Quantity decimal.Decimal
}

func NewActionRecord(runID string, a sim.ActionRecord) ActionRecord {
	return ActionRecord{
		RunID:    runID,
		Time:     a.Time,
		Symbol:   a.Symbol,
		Action:   string(a.Action),
		Price:    a.Price,
		Quantity: a.Quantity,
	}
}

// ValuationRecord is one valuation row with its drawdown columns.
type ValuationRecord struct {
	RunID              string
	Time               time.Time
	Open               decimal.Decimal
	High               decimal.Decimal
	Low                decimal.Decimal
	Close              decimal.Decimal
	Cash               decimal.Decimal
	MaxDrawdown        decimal.Decimal
	MaxDrawdownPct     decimal.Decimal
	MaxReturnPct       decimal.Decimal
	ZeroBasedReturnPct decimal.Decimal
}

func NewValuationRecord(runID string, v sim.Valuation) ValuationRecord {
	return ValuationRecord{
		RunID:              runID,
		Time:               v.Time,
		Open:               v.Open,
		High:               v.High,
		Low:                v.Low,
		Close:              v.Close,
		Cash:               v.Cash,
		MaxDrawdown:        v.MaxDrawdown,
		MaxDrawdownPct:     v.MaxDrawdownPct,
		MaxReturnPct:       v.MaxReturnPct,
		ZeroBasedReturnPct: v.ZeroBasedReturnPct,
	}
}

type Journal interface {
	RecordTransaction(TransactionRecord) error
	RecordAction(ActionRecord) error
	RecordValuation(ValuationRecord) error
	RecordRun(Run) error
	Close() error
}
