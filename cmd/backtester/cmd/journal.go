package cmd

import (
	"context"
	"fmt"
	"time"

	"github.com/rustyeddy/backtester/journal"
	"github.com/spf13/cobra"
)

var journalCmd = &cobra.Command{
	Use:   "journal",
	Short: "Query the backtest journal",
	Long: `Query and display journaled runs from the SQLite database.

Subcommands:
  runs         - List journaled runs, newest first
  show         - Print a run as an org-mode report
  transactions - List the ledger of a run
  actions      - List the action history of a run
  valuations   - List the valuation rows of a run

Examples:
  backtester journal runs
  backtester journal show <run-id>
  backtester journal transactions <run-id> --db ./backtest.db`,
}

var journalRunsCmd = &cobra.Command{
	Use:   "runs",
	Short: "List journaled runs",
	Args:  cobra.NoArgs,
	RunE:  runJournalRuns,
}

var journalShowCmd = &cobra.Command{
	Use:   "show <run-id>",
	Short: "Print a run as an org-mode report",
	Args:  cobra.ExactArgs(1),
	RunE:  runJournalShow,
}

var journalTransactionsCmd = &cobra.Command{
	Use:   "transactions <run-id>",
	Short: "List the transactions of a run",
	Args:  cobra.ExactArgs(1),
	RunE:  runJournalTransactions,
}

var journalActionsCmd = &cobra.Command{
	Use:   "actions <run-id>",
	Short: "List the actions of a run",
	Args:  cobra.ExactArgs(1),
	RunE:  runJournalActions,
}

var journalValuationsCmd = &cobra.Command{
	Use:   "valuations <run-id>",
	Short: "List the valuation rows of a run",
	Args:  cobra.ExactArgs(1),
	RunE:  runJournalValuations,
}

var journalDBPath string

func init() {
	rootCmd.AddCommand(journalCmd)
	journalCmd.AddCommand(journalRunsCmd)
	journalCmd.AddCommand(journalShowCmd)
	journalCmd.AddCommand(journalTransactionsCmd)
	journalCmd.AddCommand(journalActionsCmd)
	journalCmd.AddCommand(journalValuationsCmd)

	journalCmd.PersistentFlags().StringVarP(&journalDBPath, "db", "d", "./backtest.db", "path to SQLite journal DB")
}

func openJournal() (*journal.SQLite, error) {
	j, err := journal.NewSQLite(journalDBPath)
	if err != nil {
		return nil, fmt.Errorf("open db: %w", err)
	}
	return j, nil
}

func runJournalRuns(cmd *cobra.Command, args []string) error {
	j, err := openJournal()
	if err != nil {
		return err
	}
	defer j.Close()

	runs, err := j.ListRuns(context.Background())
	if err != nil {
		return fmt.Errorf("list runs: %w", err)
	}

	w := cmd.OutOrStdout()
	fmt.Fprintf(w, "%-26s  %-20s  %-14s  %6s  %12s  %10s  %8s\n",
		"RUN", "CREATED", "STRATEGY", "BARS", "FINAL", "PNL%", "MAXDD%")
	for _, r := range runs {
		fmt.Fprintf(w, "%-26s  %-20s  %-14s  %6d  %12s  %10s  %8s\n",
			r.RunID,
			r.Created.Local().Format(time.DateTime),
			r.Strategy,
			r.Bars,
			r.FinalValue.StringFixed(2),
			r.PnLPct.StringFixed(2),
			r.MaxDrawdownPct.StringFixed(2))
	}
	return nil
}

func runJournalShow(cmd *cobra.Command, args []string) error {
	j, err := openJournal()
	if err != nil {
		return err
	}
	defer j.Close()

	org, err := j.ExportRunOrg(context.Background(), args[0])
	if err != nil {
		return fmt.Errorf("export run: %w", err)
	}
	fmt.Fprint(cmd.OutOrStdout(), org)
	return nil
}

func runJournalTransactions(cmd *cobra.Command, args []string) error {
	j, err := openJournal()
	if err != nil {
		return err
	}
	defer j.Close()

	txs, err := j.ListTransactions(context.Background(), args[0])
	if err != nil {
		return fmt.Errorf("list transactions: %w", err)
	}

	w := cmd.OutOrStdout()
	fmt.Fprintf(w, "%-20s  %-8s  %-5s  %14s  %14s  %10s  %12s\n",
		"TIME", "SYMBOL", "SIDE", "QTY", "PRICE", "FEE", "REALIZED")
	for _, t := range txs {
		fmt.Fprintf(w, "%-20s  %-8s  %-5s  %14s  %14s  %10s  %12s\n",
			t.Time.UTC().Format(time.DateTime), t.Symbol, t.Side,
			t.Quantity.String(), t.Price.String(), t.Fee.StringFixed(4), t.RealizedPnL.StringFixed(2))
	}
	return nil
}

func runJournalActions(cmd *cobra.Command, args []string) error {
	j, err := openJournal()
	if err != nil {
		return err
	}
	defer j.Close()

	acts, err := j.ListActions(context.Background(), args[0])
	if err != nil {
		return fmt.Errorf("list actions: %w", err)
	}

	w := cmd.OutOrStdout()
	fmt.Fprintf(w, "%-20s  %-8s  %-14s  %14s  %14s\n", "TIME", "SYMBOL", "ACTION", "PRICE", "QTY")
	for _, a := range acts {
		fmt.Fprintf(w, "%-20s  %-8s  %-14s  %14s  %14s\n",
			a.Time.UTC().Format(time.DateTime), a.Symbol, a.Action, a.Price.String(), a.Quantity.String())
	}
	return nil
}

func runJournalValuations(cmd *cobra.Command, args []string) error {
	j, err := openJournal()
	if err != nil {
		return err
	}
	defer j.Close()

	vals, err := j.ListValuations(context.Background(), args[0])
	if err != nil {
		return fmt.Errorf("list valuations: %w", err)
	}

	w := cmd.OutOrStdout()
	fmt.Fprintf(w, "%-20s  %12s  %12s  %12s  %10s\n", "TIME", "CLOSE", "CASH", "MAXDD", "MAXDD%")
	for _, v := range vals {
		fmt.Fprintf(w, "%-20s  %12s  %12s  %12s  %10s\n",
			v.Time.UTC().Format(time.DateTime),
			v.Close.StringFixed(2), v.Cash.StringFixed(2),
			v.MaxDrawdown.StringFixed(2), v.MaxDrawdownPct.StringFixed(2))
	}
	return nil
}
