package cmd

import (
	"fmt"
	"log/slog"
	"os"
	"strings"

	"github.com/rustyeddy/backtester/config"
	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:   "backtester",
	Short: "A single-asset Bollinger band backtester",
	Long: `Backtester replays historical OHLC bars through a margin portfolio
and a band re-entry strategy.

It provides tools for:
  - Running a backtest from a CSV of bars
  - Sweeping strategy parameters over the same bars
  - Journaling transactions, actions and valuations to SQLite or CSV
  - Querying and exporting journaled runs

Complete documentation is available at https://github.com/rustyeddy/backtester`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		return setupLogging()
	},
}

var (
	cfgFile   string
	logLevel  string
	logFormat string
)

// Execute adds all child commands to the root command and sets flags appropriately.
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&cfgFile, "config", "c", "", "config file (yaml, json or toml); defaults plus BACKTEST_* env when empty")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "log level override (debug, info, warn, error)")
	rootCmd.PersistentFlags().StringVar(&logFormat, "log-format", "text", "log format (text or json)")
}

// loadConfig loads the config named by --config and applies --log-level.
func loadConfig() (*config.Config, error) {
	cfg, err := config.Load(cfgFile)
	if err != nil {
		return nil, err
	}
	if logLevel != "" {
		cfg.LogLevel = logLevel
	}
	if err := setLevel(cfg.LogLevel); err != nil {
		return nil, err
	}
	return cfg, nil
}

var level = new(slog.LevelVar)

func setupLogging() error {
	opts := &slog.HandlerOptions{Level: level}

	var h slog.Handler
	switch strings.ToLower(logFormat) {
	case "text", "":
		h = slog.NewTextHandler(os.Stderr, opts)
	case "json":
		h = slog.NewJSONHandler(os.Stderr, opts)
	default:
		return fmt.Errorf("unknown log format %q", logFormat)
	}
	slog.SetDefault(slog.New(h))

	if logLevel != "" {
		return setLevel(logLevel)
	}
	return nil
}

func setLevel(s string) error {
	var l slog.Level
	if err := l.UnmarshalText([]byte(s)); err != nil {
		return fmt.Errorf("log level: %w", err)
	}
	level.Set(l)
	return nil
}
