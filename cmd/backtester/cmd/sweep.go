package cmd

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"

	"github.com/rustyeddy/backtester/backtest"
	"github.com/rustyeddy/backtester/market"
	"github.com/rustyeddy/backtester/strategies"
	"github.com/spf13/cobra"
)

var sweepCmd = &cobra.Command{
	Use:   "sweep",
	Short: "Run the strategy over a grid of parameters",
	Long: `Sweep loads the bars once and runs one backtest per combination of the
values listed in the config's sweep section. Runs execute concurrently and
share the journal.

Example sweep section (yaml):
  sweep:
    window: [10, 20, 30]
    k: [1.5, 2]
    concurrency: 4`,
	Args: cobra.NoArgs,
	RunE: runSweep,
}

var sweepConcurrency int

func init() {
	rootCmd.AddCommand(sweepCmd)

	sweepCmd.Flags().IntVarP(&sweepConcurrency, "concurrency", "n", 0, "max concurrent runs; overrides sweep.concurrency (0 = GOMAXPROCS)")
}

func runSweep(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return fmt.Errorf("config: %w", err)
	}
	if cmd.Flags().Changed("concurrency") {
		cfg.Sweep.Concurrency = sweepConcurrency
	}

	from, to, err := cfg.Data.Range()
	if err != nil {
		return err
	}
	bars, err := market.LoadCSV(cfg.Data.Path, cfg.Data.Symbol, from, to)
	if err != nil {
		return fmt.Errorf("load bars: %w", err)
	}

	grid := cfg.Sweep.Grid(cfg.Strategy)
	params := make([]strategies.Params, len(grid))
	for i, s := range grid {
		params[i] = s.Params()
	}

	j, err := cfg.Journal.Open()
	if err != nil {
		return fmt.Errorf("open journal: %w", err)
	}
	if j != nil {
		defer j.Close()
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	slog.Info("sweep started", slog.Int("bars", len(bars)), slog.Int("cases", len(params)))

	sw := &backtest.Sweep{
		Bars:           bars,
		Strategy:       cfg.Strategy.Name,
		Params:         params,
		InitialCapital: cfg.Portfolio.InitialCapital,
		Fill:           cfg.Portfolio.FillModel(),
		Journal:        j,
		Options: backtest.RunnerOptions{
			CloseAtEnd: cfg.Run.CloseAtEnd,
			Dataset:    cfg.Data.Path,
		},
		Concurrency: cfg.Sweep.Concurrency,
	}
	results, err := sw.Run(ctx)
	if err != nil {
		return err
	}

	backtest.PrintSweep(cmd.OutOrStdout(), results)
	return nil
}
