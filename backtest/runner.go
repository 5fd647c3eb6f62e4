package backtest

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sort"
	"time"

	"github.com/rustyeddy/backtester/internal/id"
	"github.com/rustyeddy/backtester/journal"
	"github.com/rustyeddy/backtester/market"
	"github.com/rustyeddy/backtester/sim"
	"github.com/rustyeddy/backtester/strategies"
)

// RunnerOptions controls how the backtest runner behaves.
type RunnerOptions struct {
	// If true, unwind all open positions at the last bar's close before
	// the portfolio is ended.
	CloseAtEnd bool

	// RunID keys the journal records. Generated when empty.
	RunID string

	// Dataset and Config are copied into the journaled run.
	Dataset string
	Config  any
}

// Runner drives a portfolio forward using a bar feed and strategy.
type Runner struct {
	Feed      market.BarFeed
	Strategy  strategies.Strategy
	Portfolio *sim.Portfolio
	Journal   journal.Journal // optional
	Options   RunnerOptions
	Logger    *slog.Logger
}

// Run executes the backtest loop. For each bar:
//  1. validate the bar
//  2. strategy.OnBar(ctx, portfolio, bar)
//  3. portfolio.CleanUp, then portfolio.CheckStopLoss
//  4. portfolio.Evaluate
//  5. journal the bar's new ledger and action entries
//
// Steps 2-4 are all-or-nothing: when any fails the portfolio and action
// history are rolled back to the start of the bar and a *BarError is
// returned. After the feed is drained the portfolio is ended and its
// valuations and summary are journaled.
func (r *Runner) Run(ctx context.Context) (Result, error) {
	if r.Feed == nil {
		return Result{}, fmt.Errorf("backtest: Feed is required")
	}
	if r.Strategy == nil {
		return Result{}, fmt.Errorf("backtest: Strategy is required")
	}
	if r.Portfolio == nil {
		return Result{}, fmt.Errorf("backtest: Portfolio is required")
	}
	defer r.Feed.Close()

	logger := r.Logger
	if logger == nil {
		logger = slog.Default()
	}
	runID := r.Options.RunID
	if runID == "" {
		runID = id.New()
	}
	logger = logger.With("component", "runner", "run_id", runID, "strategy", r.Strategy.Name())

	p := r.Portfolio
	history := r.Strategy.History()
	last := make(map[string]market.Bar)

	logger.Info("backtest started", slog.String("initial_capital", p.InitialCapital().String()))
	started := time.Now()

	for i := 0; ; i++ {
		if err := ctx.Err(); err != nil {
			return Result{}, err
		}

		bar, ok, err := r.Feed.Next()
		if err != nil {
			return Result{}, &BarError{Index: i, Err: err}
		}
		if !ok {
			break
		}
		if err := bar.Validate(); err != nil {
			return Result{}, &BarError{Index: i, Time: bar.Time, Err: err}
		}

		cp := p.Checkpoint()
		txs, acts := p.TransactionCount(), history.Len()

		if err := r.step(ctx, bar); err != nil {
			p.Restore(cp)
			history.Rollback(acts)
			logger.Error("bar failed, rolled back",
				slog.Int("index", i),
				slog.Time("time", bar.Time),
				slog.String("error", err.Error()))
			return Result{}, &BarError{Index: i, Time: bar.Time, Err: err}
		}

		if err := r.commit(runID, p.TransactionsSince(txs), history.Since(acts)); err != nil {
			return Result{}, err
		}
		last[bar.Symbol] = bar
	}

	if r.Options.CloseAtEnd {
		txs, acts := p.TransactionCount(), history.Len()
		if err := closeAll(p, history, last); err != nil {
			return Result{}, fmt.Errorf("close at end: %w", err)
		}
		if err := r.commit(runID, p.TransactionsSince(txs), history.Since(acts)); err != nil {
			return Result{}, err
		}
	}

	vals := p.End()
	summary := p.Summary()
	res := Result{
		RunID:        runID,
		Strategy:     r.Strategy.Name(),
		Summary:      summary,
		Valuations:   vals,
		Transactions: p.Transactions(),
		Actions:      history.Records(),
	}

	if r.Journal != nil {
		for _, v := range vals {
			if err := r.Journal.RecordValuation(journal.NewValuationRecord(runID, v)); err != nil {
				return res, fmt.Errorf("journal valuation: %w", err)
			}
		}
		run, err := r.journalRun(runID, summary, last)
		if err != nil {
			return res, err
		}
		if err := r.Journal.RecordRun(run); err != nil {
			return res, fmt.Errorf("journal run: %w", err)
		}
	}

	logger.Info("backtest finished",
		slog.Int("bars", summary.Bars),
		slog.Int("transactions", summary.Transactions),
		slog.String("final_value", summary.FinalValue.String()),
		slog.String("pnl", summary.PnL.String()),
		slog.Duration("elapsed", time.Since(started)))
	return res, nil
}

func (r *Runner) step(ctx context.Context, bar market.Bar) error {
	p := r.Portfolio
	if err := r.Strategy.OnBar(ctx, p, bar); err != nil {
		return fmt.Errorf("strategy %s: %w", r.Strategy.Name(), err)
	}

	history := r.Strategy.History()
	history.Append(p.CleanUp(bar)...)
	history.Append(p.CheckStopLoss(bar)...)

	if _, err := p.Evaluate(bar); err != nil {
		return fmt.Errorf("evaluate: %w", err)
	}
	return nil
}

func (r *Runner) commit(runID string, txs []sim.Transaction, acts []sim.ActionRecord) error {
	if r.Journal == nil {
		return nil
	}
	for _, tx := range txs {
		if err := r.Journal.RecordTransaction(journal.NewTransactionRecord(runID, tx)); err != nil {
			return fmt.Errorf("journal transaction: %w", err)
		}
	}
	for _, a := range acts {
		if err := r.Journal.RecordAction(journal.NewActionRecord(runID, a)); err != nil {
			return fmt.Errorf("journal action: %w", err)
		}
	}
	return nil
}

func (r *Runner) journalRun(runID string, s sim.Summary, last map[string]market.Bar) (journal.Run, error) {
	run := journal.Run{
		RunID:    runID,
		Created:  time.Now().UTC(),
		Strategy: r.Strategy.Name(),
		Dataset:  r.Options.Dataset,
	}
	run.ApplySummary(s)

	for sym, b := range last {
		run.Symbol, run.Interval = sym, b.Interval
		break
	}
	if len(last) > 1 {
		run.Symbol = "*"
	}

	if r.Options.Config != nil {
		cfg, err := json.Marshal(r.Options.Config)
		if err != nil {
			return run, fmt.Errorf("encode run config: %w", err)
		}
		run.Config = cfg
	}
	return run, nil
}

// closeAll unwinds every open lot at the close of its symbol's last bar.
func closeAll(p *sim.Portfolio, history *sim.ActionLog, last map[string]market.Bar) error {
	holdings := p.Holdings()
	symbols := make([]string, 0, len(holdings))
	for sym := range holdings {
		symbols = append(symbols, sym)
	}
	sort.Strings(symbols)

	for _, sym := range symbols {
		bar, ok := last[sym]
		if !ok {
			return &market.DataGapError{Symbol: sym}
		}
		for _, pos := range holdings[sym] {
			o := sim.Order{
				Symbol:   sym,
				Equity:   pos.Equity(),
				Price:    bar.Close,
				Time:     bar.Time,
				Leverage: pos.Leverage(),
			}
			side := pos.Side().Opposite()
			var (
				executed sim.TxSide
				err      error
			)
			if side == sim.Long {
				executed, _, err = p.Long(o)
			} else {
				executed, _, err = p.Short(o)
			}
			if err != nil {
				return err
			}
			history.Append(sim.ActionRecord{
				Time:     bar.Time,
				Symbol:   sym,
				Action:   sim.ActionFor(side, executed),
				Price:    bar.Close,
				Quantity: pos.Size(),
			})
		}
	}
	return nil
}
