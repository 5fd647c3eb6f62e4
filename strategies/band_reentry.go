package strategies

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/rustyeddy/backtester/indicators"
	"github.com/rustyeddy/backtester/market"
	"github.com/rustyeddy/backtester/sim"
	"github.com/shopspring/decimal"
)

const BandReEntryName = "band-reentry"

// BandReEntry trades a single symbol on Bollinger band re-entries:
//   - previous bar above the upper band, this bar within: short
//   - previous bar below the lower band, this bar within: long
//
// A short against an open long unwinds it (and vice versa), so a re-entry
// from the other side closes the earlier trade. Every intent is recorded in
// the action history, including opens skipped for lack of cash.
//
// The strategy keeps one band window, so it trades a single symbol: the
// symbol of the first bar it sees. Bars of any other symbol are ignored.
type BandReEntry struct {
	*BandReEntryConfig

	bands   *indicators.Bollinger
	prev    indicators.BandState
	symbol  string
	history sim.ActionLog
	logger  *slog.Logger
}

type BandReEntryConfig struct {
	Window             int             `json:"window"`
	K                  float64         `json:"k"`
	BuyEquity          decimal.Decimal `json:"buy_equity"`
	Leverage           decimal.Decimal `json:"leverage"`
	StopLossPercentage decimal.Decimal `json:"stop_loss_percentage"`
}

func BandReEntryConfigDefaults() *BandReEntryConfig {
	return &BandReEntryConfig{
		Window:             indicators.DefaultBollingerWindow,
		K:                  indicators.DefaultBollingerK,
		BuyEquity:          decimal.NewFromInt(10),
		Leverage:           decimal.NewFromInt(1),
		StopLossPercentage: decimal.RequireFromString("0.5"),
	}
}

func (c *BandReEntryConfig) Validate() error {
	switch {
	case !c.BuyEquity.IsPositive():
		return fmt.Errorf("buy equity must be positive, got %s", c.BuyEquity)
	case c.Leverage.LessThan(decimal.NewFromInt(1)):
		return fmt.Errorf("leverage must be at least 1, got %s", c.Leverage)
	case c.StopLossPercentage.IsNegative() || c.StopLossPercentage.GreaterThanOrEqual(decimal.NewFromInt(1)):
		return fmt.Errorf("stop loss percentage must be in [0, 1), got %s", c.StopLossPercentage)
	}
	return nil
}

func NewBandReEntry(cfg *BandReEntryConfig, logger *slog.Logger) (*BandReEntry, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	bands, err := indicators.NewBollinger(cfg.Window, cfg.K)
	if err != nil {
		return nil, err
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &BandReEntry{
		BandReEntryConfig: cfg,
		bands:             bands,
		logger:            logger.With("component", "strategy", "strategy", BandReEntryName),
	}, nil
}

func (s *BandReEntry) Name() string { return BandReEntryName }

func (s *BandReEntry) History() *sim.ActionLog { return &s.history }

// State is the band classification of the last bar seen.
func (s *BandReEntry) State() indicators.BandState { return s.bands.State() }

// Symbol is the symbol being traded, empty before the first bar.
func (s *BandReEntry) Symbol() string { return s.symbol }

func (s *BandReEntry) OnBar(ctx context.Context, p *sim.Portfolio, bar market.Bar) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if s.symbol == "" {
		s.symbol = bar.Symbol
	}
	if bar.Symbol != s.symbol {
		s.logger.Debug("ignoring bar of another symbol",
			slog.String("symbol", bar.Symbol),
			slog.String("trading", s.symbol))
		return nil
	}

	s.bands.Update(bar)
	prev, cur := s.prev, s.bands.State()
	s.prev = cur

	s.logger.Debug("bar classified",
		slog.Time("time", bar.Time),
		slog.String("close", bar.Close.String()),
		slog.String("prev", prev.String()),
		slog.String("state", cur.String()))

	if cur != indicators.WithinBands {
		return nil
	}
	switch prev {
	case indicators.AboveUpperBand:
		return s.trade(p, sim.Short, bar)
	case indicators.BelowLowerBand:
		return s.trade(p, sim.Long, bar)
	}
	return nil
}

func (s *BandReEntry) trade(p *sim.Portfolio, side sim.Side, bar market.Bar) error {
	o := sim.Order{
		Symbol:             bar.Symbol,
		Equity:             s.BuyEquity,
		Price:              bar.Close,
		Time:               bar.Time,
		Leverage:           s.Leverage,
		StopLossPercentage: s.StopLossPercentage,
	}

	var (
		executed sim.TxSide
		pos      *sim.MarginPosition
		err      error
	)
	if side == sim.Long {
		executed, pos, err = p.Long(o)
	} else {
		executed, pos, err = p.Short(o)
	}

	var qty decimal.Decimal
	var missed *sim.InsufficientFundsError
	switch {
	case err == nil:
		qty = pos.Size()
	case errors.As(err, &missed):
		qty = missed.Size
		s.logger.Warn("missed trade", slog.String("error", err.Error()))
	default:
		return fmt.Errorf("%s %s at %s: %w", side, bar.Symbol, bar.Time, err)
	}

	action := sim.ActionFor(side, executed)
	s.history.Append(sim.ActionRecord{
		Time:     bar.Time,
		Symbol:   bar.Symbol,
		Action:   action,
		Price:    bar.Close,
		Quantity: qty,
	})
	s.logger.Info("re-entry signal",
		slog.String("action", string(action)),
		slog.String("symbol", bar.Symbol),
		slog.String("price", bar.Close.String()),
		slog.String("quantity", qty.String()))
	return nil
}
