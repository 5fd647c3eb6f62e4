package backtest

import (
	"fmt"
	"io"
	"time"

	"github.com/rustyeddy/backtester/sim"
)

// Result is the outcome of one backtest run.
type Result struct {
	RunID    string
	Strategy string
	Summary  sim.Summary

	Valuations   []sim.Valuation
	Transactions []sim.Transaction
	Actions      []sim.ActionRecord
}

func PrintResult(w io.Writer, r Result) {
	s := r.Summary

	fmt.Fprintln(w, "==================================================")
	fmt.Fprintln(w, " Backtest Result")
	fmt.Fprintln(w, "==================================================")

	fmt.Fprintf(w, "Run ID:        %s\n", r.RunID)
	fmt.Fprintf(w, "Strategy:      %s\n", r.Strategy)

	fmt.Fprintln(w)
	fmt.Fprintln(w, "Period")
	fmt.Fprintln(w, "--------------------------------------------------")
	if s.Bars > 0 {
		fmt.Fprintf(w, "Start:         %s\n", s.Start.Format(time.RFC3339))
		fmt.Fprintf(w, "End:           %s\n", s.End.Format(time.RFC3339))
	}
	fmt.Fprintf(w, "Bars:          %d\n", s.Bars)
	if s.Gaps > 0 {
		fmt.Fprintf(w, "Data Gaps:     %d\n", s.Gaps)
	}

	fmt.Fprintln(w)
	fmt.Fprintln(w, "Trade Statistics")
	fmt.Fprintln(w, "--------------------------------------------------")
	fmt.Fprintf(w, "Transactions:  %d\n", s.Transactions)
	fmt.Fprintf(w, "Closed Trades: %d\n", s.ClosedTrades)
	fmt.Fprintf(w, "Wins:          %d\n", s.Wins)
	fmt.Fprintf(w, "Losses:        %d\n", s.Losses)
	fmt.Fprintf(w, "Win Rate:      %s%%\n", s.WinRate().StringFixed(2))
	fmt.Fprintf(w, "Open:          %d\n", s.OpenPositions)

	fmt.Fprintln(w)
	fmt.Fprintln(w, "Account Performance")
	fmt.Fprintln(w, "--------------------------------------------------")
	fmt.Fprintf(w, "Start Capital: %s\n", s.InitialCapital.StringFixed(2))
	fmt.Fprintf(w, "Cash:          %s\n", s.Cash.StringFixed(2))
	fmt.Fprintf(w, "Final Value:   %s\n", s.FinalValue.StringFixed(2))
	fmt.Fprintf(w, "Net P/L:       %s\n", s.PnL.StringFixed(2))
	fmt.Fprintf(w, "Return:        %s%%\n", s.PnLPct.StringFixed(2))
	fmt.Fprintf(w, "Max Drawdown:  %s%%\n", s.MaxDrawdownPct.StringFixed(2))
	fmt.Fprintf(w, "Max Return:    %s%%\n", s.MaxReturnPct.StringFixed(2))
	if s.Fees.IsPositive() {
		fmt.Fprintf(w, "Fees:          %s\n", s.Fees.StringFixed(2))
	}
}

// PrintSweep writes one line per run.
func PrintSweep(w io.Writer, results []Result) {
	fmt.Fprintf(w, "%-28s %-14s %8s %7s %12s %10s %10s\n",
		"RUN", "STRATEGY", "BARS", "TRADES", "FINAL", "RETURN%", "MAXDD%")
	for _, r := range results {
		s := r.Summary
		fmt.Fprintf(w, "%-28s %-14s %8d %7d %12s %10s %10s\n",
			r.RunID, r.Strategy, s.Bars, s.ClosedTrades,
			s.FinalValue.StringFixed(2), s.PnLPct.StringFixed(2), s.MaxDrawdownPct.StringFixed(2))
	}
}
