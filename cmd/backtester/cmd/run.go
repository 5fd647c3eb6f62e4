package cmd

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"time"

	"github.com/rustyeddy/backtester/backtest"
	"github.com/rustyeddy/backtester/config"
	"github.com/rustyeddy/backtester/journal"
	"github.com/rustyeddy/backtester/market"
	"github.com/rustyeddy/backtester/sim"
	"github.com/rustyeddy/backtester/strategies"
	"github.com/spf13/cobra"
)

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run a backtest over a CSV of bars",
	Long: `Run replays the configured bars through the configured strategy and
prints the summary. Transactions, actions and valuations are written to the
configured journal.

Examples:
  backtester run --config backtest.yaml
  backtester run --data data/btc-15m.csv --symbol BTC --close-at-end
  BACKTEST_STRATEGY_WINDOW=30 backtester run -c backtest.toml`,
	Args: cobra.NoArgs,
	RunE: runRun,
}

var (
	runDataPath   string
	runSymbol     string
	runStrategy   string
	runCloseAtEnd bool
	runOrgPath    string
)

func init() {
	rootCmd.AddCommand(runCmd)

	runCmd.Flags().StringVarP(&runDataPath, "data", "d", "", "bar CSV (datetime,symbol,open,high,low,close[,volume]); overrides data.path")
	runCmd.Flags().StringVarP(&runSymbol, "symbol", "s", "", "symbol of the bars; overrides data.symbol")
	runCmd.Flags().StringVar(&runStrategy, "strategy", "", "strategy name; overrides strategy.name")
	runCmd.Flags().BoolVar(&runCloseAtEnd, "close-at-end", false, "close open positions at the last bar; overrides run.close_at_end")
	runCmd.Flags().StringVar(&runOrgPath, "org", "", "write an org-mode report of the run; overrides journal.org_path")
}

// applyRunFlags copies the flags the user actually set over cfg.
func applyRunFlags(cmd *cobra.Command, cfg *config.Config) error {
	flags := cmd.Flags()
	if flags.Changed("data") {
		cfg.Data.Path = runDataPath
	}
	if flags.Changed("symbol") {
		cfg.Data.Symbol = runSymbol
	}
	if flags.Changed("strategy") {
		cfg.Strategy.Name = runStrategy
	}
	if flags.Changed("close-at-end") {
		cfg.Run.CloseAtEnd = runCloseAtEnd
	}
	if flags.Changed("org") {
		cfg.Journal.OrgPath = runOrgPath
	}
	return cfg.Validate()
}

func runRun(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return fmt.Errorf("config: %w", err)
	}
	if err := applyRunFlags(cmd, cfg); err != nil {
		return fmt.Errorf("config: %w", err)
	}

	from, to, err := cfg.Data.Range()
	if err != nil {
		return err
	}
	feed, err := market.NewCSVBarFeed(cfg.Data.Path, cfg.Data.Symbol, from, to)
	if err != nil {
		return fmt.Errorf("open bars: %w", err)
	}

	params := cfg.Strategy.Params()
	params.Logger = slog.Default()
	strat, err := strategies.StrategyByName(cfg.Strategy.Name, params)
	if err != nil {
		feed.Close()
		return fmt.Errorf("strategy: %w", err)
	}

	j, err := cfg.Journal.Open()
	if err != nil {
		feed.Close()
		return fmt.Errorf("open journal: %w", err)
	}
	if j != nil {
		defer j.Close()
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	runner := &backtest.Runner{
		Feed:     feed,
		Strategy: strat,
		Portfolio: sim.NewPortfolio(cfg.Portfolio.InitialCapital,
			sim.WithFillModel(cfg.Portfolio.FillModel()),
			sim.WithLogger(slog.Default())),
		Journal: j,
		Options: backtest.RunnerOptions{
			CloseAtEnd: cfg.Run.CloseAtEnd,
			Dataset:    cfg.Data.Path,
			Config:     params,
		},
	}

	res, err := runner.Run(ctx)
	if err != nil {
		return fmt.Errorf("backtest: %w", err)
	}
	backtest.PrintResult(cmd.OutOrStdout(), res)

	if cfg.Journal.OrgPath != "" {
		if err := writeOrg(cfg, res); err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "\nOrg report: %s\n", cfg.Journal.OrgPath)
	}
	return nil
}

func writeOrg(cfg *config.Config, res backtest.Result) error {
	run := journal.Run{
		RunID:    res.RunID,
		Created:  time.Now().UTC(),
		Strategy: res.Strategy,
		Symbol:   cfg.Data.Symbol,
		Dataset:  cfg.Data.Path,
	}
	run.ApplySummary(res.Summary)
	if err := run.WriteOrgFile(cfg.Journal.OrgPath); err != nil {
		return fmt.Errorf("write org: %w", err)
	}
	return nil
}
