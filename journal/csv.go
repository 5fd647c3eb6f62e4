package journal

import (
	"encoding/csv"
	"errors"
	"os"
	"path/filepath"
	"strconv"
	"sync"
	"time"
)

// CSV file names written by NewCSV.
const (
	RunsFile         = "runs.csv"
	TransactionsFile = "transactions.csv"
	ActionsFile      = "actions.csv"
	ValuationsFile   = "valuations.csv"
)

var (
	runsHeader         = []string{"run_id", "created", "strategy", "symbol", "interval", "dataset", "start", "end", "bars", "initial_capital", "final_value", "cash", "pnl", "pnl_pct", "max_drawdown_pct", "max_return_pct", "fees", "transactions", "closed_trades", "wins", "losses", "open_positions", "gaps"}
	transactionsHeader = []string{"run_id", "tx_id", "symbol", "side", "quantity", "price", "leverage", "fee", "realized_pnl", "time"}
	actionsHeader      = []string{"run_id", "time", "symbol", "action", "price", "quantity"}
	valuationsHeader   = []string{"run_id", "time", "open", "high", "low", "close", "cash", "max_drawdown", "max_drawdown_pct", "max_return_pct", "zero_based_return_pct"}
)

type csvFile struct {
	f *os.File
	w *csv.Writer
}

// CSVJournal writes one CSV file per output into a directory. It is safe
// for concurrent use.
type CSVJournal struct {
	mu           sync.Mutex
	runs         csvFile
	transactions csvFile
	actions      csvFile
	vals         csvFile
}

func NewCSV(dir string) (*CSVJournal, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, err
	}

	j := &CSVJournal{}
	files := []struct {
		dst    *csvFile
		name   string
		header []string
	}{
		{&j.runs, RunsFile, runsHeader},
		{&j.transactions, TransactionsFile, transactionsHeader},
		{&j.actions, ActionsFile, actionsHeader},
		{&j.vals, ValuationsFile, valuationsHeader},
	}
	for _, file := range files {
		f, err := os.Create(filepath.Join(dir, file.name))
		if err != nil {
			_ = j.Close()
			return nil, err
		}
		*file.dst = csvFile{f: f, w: csv.NewWriter(f)}
		if err := file.dst.write(file.header); err != nil {
			_ = j.Close()
			return nil, err
		}
	}
	return j, nil
}

func (c csvFile) write(rec []string) error {
	if err := c.w.Write(rec); err != nil {
		return err
	}
	c.w.Flush()
	return c.w.Error()
}

func (j *CSVJournal) RecordTransaction(t TransactionRecord) error {
	j.mu.Lock()
	defer j.mu.Unlock()
	return j.transactions.write([]string{
		t.RunID,
		t.TxID,
		t.Symbol,
		t.Side,
		t.Quantity.String(),
		t.Price.String(),
		t.Leverage.String(),
		t.Fee.String(),
		t.RealizedPnL.String(),
		ts(t.Time),
	})
}

func (j *CSVJournal) RecordAction(a ActionRecord) error {
	j.mu.Lock()
	defer j.mu.Unlock()
	return j.actions.write([]string{
		a.RunID,
		ts(a.Time),
		a.Symbol,
		a.Action,
		a.Price.String(),
		a.Quantity.String(),
	})
}

func (j *CSVJournal) RecordValuation(v ValuationRecord) error {
	j.mu.Lock()
	defer j.mu.Unlock()
	return j.vals.write([]string{
		v.RunID,
		ts(v.Time),
		v.Open.String(),
		v.High.String(),
		v.Low.String(),
		v.Close.String(),
		v.Cash.String(),
		v.MaxDrawdown.String(),
		v.MaxDrawdownPct.String(),
		v.MaxReturnPct.String(),
		v.ZeroBasedReturnPct.String(),
	})
}

func (j *CSVJournal) RecordRun(r Run) error {
	j.mu.Lock()
	defer j.mu.Unlock()
	return j.runs.write([]string{
		r.RunID,
		ts(r.Created),
		r.Strategy,
		r.Symbol,
		r.Interval,
		r.Dataset,
		ts(r.Start),
		ts(r.End),
		strconv.Itoa(r.Bars),
		r.InitialCapital.String(),
		r.FinalValue.String(),
		r.Cash.String(),
		r.PnL.String(),
		r.PnLPct.String(),
		r.MaxDrawdownPct.String(),
		r.MaxReturnPct.String(),
		r.Fees.String(),
		strconv.Itoa(r.Transactions),
		strconv.Itoa(r.ClosedTrades),
		strconv.Itoa(r.Wins),
		strconv.Itoa(r.Losses),
		strconv.Itoa(r.OpenPositions),
		strconv.Itoa(r.Gaps),
	})
}

func (j *CSVJournal) Close() error {
	j.mu.Lock()
	defer j.mu.Unlock()

	var errs []error
	for _, c := range []csvFile{j.runs, j.transactions, j.actions, j.vals} {
		if c.f == nil {
			continue
		}
		c.w.Flush()
		errs = append(errs, c.w.Error(), c.f.Close())
	}
	return errors.Join(errs...)
}

func ts(t time.Time) string {
	return t.UTC().Format(time.RFC3339Nano)
}
