package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"

	"github.com/joho/godotenv"
	"github.com/shopspring/decimal"
)

const envPrefix = "BACKTEST_"

func loadDotEnv() {
	// Load .env file if present (silently ignore if missing).
	_ = godotenv.Load()
}

// applyEnvOverrides overwrites fields whose BACKTEST_* variable is set and
// non-empty. A value that does not parse is an error, not a silent skip.
func applyEnvOverrides(cfg *Config) error {
	var errs []error
	add := func(err error) {
		if err != nil {
			errs = append(errs, err)
		}
	}

	// ── Data ──
	setStr(&cfg.Data.Path, envPrefix+"DATA_PATH")
	setStr(&cfg.Data.Symbol, envPrefix+"DATA_SYMBOL")
	setStr(&cfg.Data.From, envPrefix+"DATA_FROM")
	setStr(&cfg.Data.To, envPrefix+"DATA_TO")

	// ── Portfolio ──
	add(setDecimal(&cfg.Portfolio.InitialCapital, envPrefix+"PORTFOLIO_INITIAL_CAPITAL"))
	add(setDecimal(&cfg.Portfolio.Slippage, envPrefix+"PORTFOLIO_SLIPPAGE"))
	add(setDecimal(&cfg.Portfolio.FeeRate, envPrefix+"PORTFOLIO_FEE_RATE"))

	// ── Strategy ──
	setStr(&cfg.Strategy.Name, envPrefix+"STRATEGY_NAME")
	add(setInt(&cfg.Strategy.Window, envPrefix+"STRATEGY_WINDOW"))
	add(setFloat64(&cfg.Strategy.K, envPrefix+"STRATEGY_K"))
	add(setDecimal(&cfg.Strategy.BuyEquity, envPrefix+"STRATEGY_BUY_EQUITY"))
	add(setDecimal(&cfg.Strategy.Leverage, envPrefix+"STRATEGY_LEVERAGE"))
	add(setDecimal(&cfg.Strategy.StopLossPercentage, envPrefix+"STRATEGY_STOP_LOSS_PERCENTAGE"))

	// ── Run / Sweep ──
	add(setBool(&cfg.Run.CloseAtEnd, envPrefix+"RUN_CLOSE_AT_END"))
	add(setInt(&cfg.Sweep.Concurrency, envPrefix+"SWEEP_CONCURRENCY"))

	// ── Journal ──
	setStr(&cfg.Journal.Type, envPrefix+"JOURNAL_TYPE")
	setStr(&cfg.Journal.Dir, envPrefix+"JOURNAL_DIR")
	setStr(&cfg.Journal.DBPath, envPrefix+"JOURNAL_DB_PATH")
	setStr(&cfg.Journal.OrgPath, envPrefix+"JOURNAL_ORG_PATH")

	// ── Top-level ──
	setStr(&cfg.LogLevel, envPrefix+"LOG_LEVEL")

	return errors.Join(errs...)
}

func setStr(dst *string, key string) {
	if v := os.Getenv(key); v != "" {
		*dst = v
	}
}

func setInt(dst *int, key string) error {
	if v := os.Getenv(key); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("%s: %w", key, err)
		}
		*dst = n
	}
	return nil
}

func setFloat64(dst *float64, key string) error {
	if v := os.Getenv(key); v != "" {
		f, err := strconv.ParseFloat(v, 64)
		if err != nil {
			return fmt.Errorf("%s: %w", key, err)
		}
		*dst = f
	}
	return nil
}

func setBool(dst *bool, key string) error {
	if v := os.Getenv(key); v != "" {
		b, err := strconv.ParseBool(v)
		if err != nil {
			return fmt.Errorf("%s: %w", key, err)
		}
		*dst = b
	}
	return nil
}

func setDecimal(dst *decimal.Decimal, key string) error {
	if v := os.Getenv(key); v != "" {
		d, err := decimal.NewFromString(v)
		if err != nil {
			return fmt.Errorf("%s: %w", key, err)
		}
		*dst = d
	}
	return nil
}
