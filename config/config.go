package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/rustyeddy/backtester/journal"
	"github.com/rustyeddy/backtester/market"
	"github.com/rustyeddy/backtester/sim"
	"github.com/rustyeddy/backtester/strategies"
	"github.com/shopspring/decimal"
	"gopkg.in/yaml.v3"
)

// Config represents a complete backtest configuration. Every field is
// explicit: a zero read from a file is kept as zero, never replaced by a
// default.
type Config struct {
	Data      DataConfig      `json:"data" yaml:"data" toml:"data"`
	Portfolio PortfolioConfig `json:"portfolio" yaml:"portfolio" toml:"portfolio"`
	Strategy  StrategyConfig  `json:"strategy" yaml:"strategy" toml:"strategy"`
	Run       RunConfig       `json:"run" yaml:"run" toml:"run"`
	Sweep     SweepConfig     `json:"sweep" yaml:"sweep" toml:"sweep"`
	Journal   JournalConfig   `json:"journal" yaml:"journal" toml:"journal"`
	LogLevel  string          `json:"log_level" yaml:"log_level" toml:"log_level"`
}

// DataConfig selects the bars to replay.
type DataConfig struct {
	Path   string `json:"path" yaml:"path" toml:"path"`
	Symbol string `json:"symbol" yaml:"symbol" toml:"symbol"`
	From   string `json:"from,omitempty" yaml:"from,omitempty" toml:"from,omitempty"` // inclusive
	To     string `json:"to,omitempty" yaml:"to,omitempty" toml:"to,omitempty"`       // exclusive
}

// Range parses From and To. Empty bounds are zero times.
func (d DataConfig) Range() (from, to time.Time, err error) {
	if d.From != "" {
		if from, err = market.ParseTime(d.From); err != nil {
			return from, to, fmt.Errorf("data.from: %w", err)
		}
	}
	if d.To != "" {
		if to, err = market.ParseTime(d.To); err != nil {
			return from, to, fmt.Errorf("data.to: %w", err)
		}
	}
	return from, to, nil
}

// PortfolioConfig contains portfolio initialization parameters
type PortfolioConfig struct {
	InitialCapital decimal.Decimal `json:"initial_capital" yaml:"initial_capital" toml:"initial_capital"`
	Slippage       decimal.Decimal `json:"slippage" yaml:"slippage" toml:"slippage"`
	FeeRate        decimal.Decimal `json:"fee_rate" yaml:"fee_rate" toml:"fee_rate"`
}

func (p PortfolioConfig) FillModel() sim.FillModel {
	return sim.FillModel{Slippage: p.Slippage, FeeRate: p.FeeRate}
}

// StrategyConfig contains strategy parameters
type StrategyConfig struct {
	Name               string          `json:"name" yaml:"name" toml:"name"`
	Window             int             `json:"window" yaml:"window" toml:"window"`
	K                  float64         `json:"k" yaml:"k" toml:"k"`
	BuyEquity          decimal.Decimal `json:"buy_equity" yaml:"buy_equity" toml:"buy_equity"`
	Leverage           decimal.Decimal `json:"leverage" yaml:"leverage" toml:"leverage"`
	StopLossPercentage decimal.Decimal `json:"stop_loss_percentage" yaml:"stop_loss_percentage" toml:"stop_loss_percentage"`
}

func (s StrategyConfig) Params() strategies.Params {
	return strategies.Params{
		Window:             s.Window,
		K:                  s.K,
		BuyEquity:          s.BuyEquity,
		Leverage:           s.Leverage,
		StopLossPercentage: s.StopLossPercentage,
	}
}

// RunConfig contains runner options
type RunConfig struct {
	CloseAtEnd bool `json:"close_at_end" yaml:"close_at_end" toml:"close_at_end"`
}

// SweepConfig lists alternative values per strategy parameter. An empty
// list keeps the strategy section's value.
type SweepConfig struct {
	Window      []int             `json:"window,omitempty" yaml:"window,omitempty" toml:"window,omitempty"`
	K           []float64         `json:"k,omitempty" yaml:"k,omitempty" toml:"k,omitempty"`
	BuyEquity   []decimal.Decimal `json:"buy_equity,omitempty" yaml:"buy_equity,omitempty" toml:"buy_equity,omitempty"`
	Leverage    []decimal.Decimal `json:"leverage,omitempty" yaml:"leverage,omitempty" toml:"leverage,omitempty"`
	Concurrency int               `json:"concurrency" yaml:"concurrency" toml:"concurrency"`
}

// Grid expands the sweep into the cartesian product of its lists over
// base.
func (s SweepConfig) Grid(base StrategyConfig) []StrategyConfig {
	windows := s.Window
	if len(windows) == 0 {
		windows = []int{base.Window}
	}
	ks := s.K
	if len(ks) == 0 {
		ks = []float64{base.K}
	}
	equities := s.BuyEquity
	if len(equities) == 0 {
		equities = []decimal.Decimal{base.BuyEquity}
	}
	leverages := s.Leverage
	if len(leverages) == 0 {
		leverages = []decimal.Decimal{base.Leverage}
	}

	var out []StrategyConfig
	for _, w := range windows {
		for _, k := range ks {
			for _, eq := range equities {
				for _, lev := range leverages {
					c := base
					c.Window, c.K, c.BuyEquity, c.Leverage = w, k, eq, lev
					out = append(out, c)
				}
			}
		}
	}
	return out
}

// JournalConfig contains journaling parameters
type JournalConfig struct {
	Type    string `json:"type" yaml:"type" toml:"type"` // "none", "csv" or "sqlite"
	Dir     string `json:"dir,omitempty" yaml:"dir,omitempty" toml:"dir,omitempty"`
	DBPath  string `json:"db_path,omitempty" yaml:"db_path,omitempty" toml:"db_path,omitempty"`
	OrgPath string `json:"org_path,omitempty" yaml:"org_path,omitempty" toml:"org_path,omitempty"`
}

// Open returns the configured journal, or nil for type "none".
func (j JournalConfig) Open() (journal.Journal, error) {
	switch j.Type {
	case "csv":
		return journal.NewCSV(j.Dir)
	case "sqlite":
		return journal.NewSQLite(j.DBPath)
	}
	return nil, nil
}

var logLevels = []string{"debug", "info", "warn", "error"}

// Default returns a configuration with sensible defaults
func Default() *Config {
	cfg := strategies.BandReEntryConfigDefaults()
	return &Config{
		Data: DataConfig{
			Path:   "./bars.csv",
			Symbol: "BTC",
		},
		Portfolio: PortfolioConfig{
			InitialCapital: decimal.NewFromInt(200),
			Slippage:       decimal.Zero,
			FeeRate:        decimal.Zero,
		},
		Strategy: StrategyConfig{
			Name:               strategies.BandReEntryName,
			Window:             cfg.Window,
			K:                  cfg.K,
			BuyEquity:          cfg.BuyEquity,
			Leverage:           cfg.Leverage,
			StopLossPercentage: cfg.StopLossPercentage,
		},
		Journal: JournalConfig{
			Type:   "sqlite",
			DBPath: "./backtest.db",
		},
		LogLevel: "info",
	}
}

// Validate checks if the configuration is valid
func (c *Config) Validate() error {
	if c.Data.Path == "" {
		return fmt.Errorf("data.path is required")
	}
	if c.Data.Symbol == "" {
		return fmt.Errorf("data.symbol is required")
	}
	from, to, err := c.Data.Range()
	if err != nil {
		return err
	}
	if !from.IsZero() && !to.IsZero() && !from.Before(to) {
		return fmt.Errorf("data.from must be before data.to")
	}

	one := decimal.NewFromInt(1)
	if !c.Portfolio.InitialCapital.IsPositive() {
		return fmt.Errorf("portfolio.initial_capital must be positive")
	}
	if c.Portfolio.Slippage.IsNegative() || c.Portfolio.Slippage.GreaterThanOrEqual(one) {
		return fmt.Errorf("portfolio.slippage must be in [0, 1)")
	}
	if c.Portfolio.FeeRate.IsNegative() || c.Portfolio.FeeRate.GreaterThanOrEqual(one) {
		return fmt.Errorf("portfolio.fee_rate must be in [0, 1)")
	}

	if !slices.Contains(strategies.Names(), strings.ToLower(c.Strategy.Name)) {
		return fmt.Errorf("unknown strategy: %s", c.Strategy.Name)
	}
	for _, s := range c.Sweep.Grid(c.Strategy) {
		if err := s.validate(); err != nil {
			return err
		}
	}
	if c.Sweep.Concurrency < 0 {
		return fmt.Errorf("sweep.concurrency must not be negative")
	}

	switch c.Journal.Type {
	case "none":
	case "csv":
		if c.Journal.Dir == "" {
			return fmt.Errorf("journal dir required for CSV type")
		}
	case "sqlite":
		if c.Journal.DBPath == "" {
			return fmt.Errorf("journal db_path required for SQLite type")
		}
	default:
		return fmt.Errorf("journal.type must be 'none', 'csv' or 'sqlite'")
	}

	if !slices.Contains(logLevels, c.LogLevel) {
		return fmt.Errorf("log_level must be one of %s", strings.Join(logLevels, ", "))
	}
	return nil
}

func (s StrategyConfig) validate() error {
	if !strings.EqualFold(s.Name, strategies.BandReEntryName) {
		return nil
	}
	switch {
	case s.Window < 2:
		return fmt.Errorf("strategy.window must be at least 2")
	case s.K <= 0:
		return fmt.Errorf("strategy.k must be positive")
	case !s.BuyEquity.IsPositive():
		return fmt.Errorf("strategy.buy_equity must be positive")
	case s.Leverage.LessThan(decimal.NewFromInt(1)):
		return fmt.Errorf("strategy.leverage must be at least 1")
	case s.StopLossPercentage.IsNegative() || s.StopLossPercentage.GreaterThanOrEqual(decimal.NewFromInt(1)):
		return fmt.Errorf("strategy.stop_loss_percentage must be in [0, 1)")
	}
	return nil
}

// LoadFromFile loads configuration from a file over the defaults. The
// format follows the extension (.toml, .json, .yaml/.yml); anything else
// is tried as YAML, then JSON. Environment overrides are applied and the
// result is validated.
func LoadFromFile(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config file: %w", err)
	}

	cfg := Default()
	switch strings.ToLower(filepath.Ext(path)) {
	case ".toml":
		if _, err := toml.Decode(string(data), cfg); err != nil {
			return nil, fmt.Errorf("parse TOML config: %w", err)
		}
	case ".json":
		if err := json.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parse JSON config: %w", err)
		}
	default:
		// Try YAML first, fall back to JSON
		if err := yaml.Unmarshal(data, cfg); err != nil {
			cfg = Default()
			if jerr := json.Unmarshal(data, cfg); jerr != nil {
				return nil, fmt.Errorf("parse config (tried YAML and JSON): %w", err)
			}
		}
	}

	if err := applyEnvOverrides(cfg); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	return cfg, nil
}

// Load is LoadFromFile, except that an empty path starts from the defaults.
// A .env file in the working directory is loaded first when present.
func Load(path string) (*Config, error) {
	loadDotEnv()
	if path != "" {
		return LoadFromFile(path)
	}

	cfg := Default()
	if err := applyEnvOverrides(cfg); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	return cfg, nil
}

// SaveToFile saves configuration to a file (YAML, TOML or JSON based on extension)
func (c *Config) SaveToFile(path string) error {
	var data []byte
	var err error

	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		data, err = yaml.Marshal(c)
	case ".toml":
		buf := new(strings.Builder)
		err = toml.NewEncoder(buf).Encode(c)
		data = []byte(buf.String())
	default:
		data, err = json.MarshalIndent(c, "", "  ")
	}
	if err != nil {
		return fmt.Errorf("marshal config: %w", err)
	}

	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("write config file: %w", err)
	}
	return nil
}
