package sim

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"
)

// Side is the direction of a margin position.
type Side int8

const (
	Long  Side = +1
	Short Side = -1
)

func (s Side) String() string {
	switch s {
	case Long:
		return "LONG"
	case Short:
		return "SHORT"
	}
	return "NONE"
}

// Opposite returns the other side.
func (s Side) Opposite() Side { return -s }

var one = decimal.NewFromInt(1)

// MarginPosition is one leveraged position. Every field is fixed at
// construction; the methods are pure functions of the current price.
type MarginPosition struct {
	symbol     string
	side       Side
	entryPrice decimal.Decimal
	equity     decimal.Decimal
	leverage   decimal.Decimal
	size       decimal.Decimal
	stopLoss   decimal.Decimal
	openTime   time.Time
}

// NewMarginPosition validates the parameters and derives the size as
// equity*leverage/entryPrice. A zero stopLoss disables the stop.
func NewMarginPosition(symbol string, side Side, entryPrice, equity, leverage, stopLoss decimal.Decimal, openTime time.Time) (*MarginPosition, error) {
	switch {
	case side != Long && side != Short:
		return nil, &InvalidPositionError{Field: "side", Value: decimal.NewFromInt(int64(side)), Reason: "must be LONG or SHORT"}
	case !entryPrice.IsPositive():
		return nil, &InvalidPositionError{Field: "entry_price", Value: entryPrice, Reason: "must be positive"}
	case !equity.IsPositive():
		return nil, &InvalidPositionError{Field: "equity", Value: equity, Reason: "must be positive"}
	case leverage.LessThan(one):
		return nil, &InvalidPositionError{Field: "leverage", Value: leverage, Reason: "must be at least 1"}
	case stopLoss.IsNegative() || stopLoss.GreaterThanOrEqual(one):
		return nil, &InvalidPositionError{Field: "stop_loss_percentage", Value: stopLoss, Reason: "must be in [0, 1)"}
	}

	return &MarginPosition{
		symbol:     symbol,
		side:       side,
		entryPrice: entryPrice,
		equity:     equity,
		leverage:   leverage,
		size:       equity.Mul(leverage).Div(entryPrice),
		stopLoss:   stopLoss,
		openTime:   openTime,
	}, nil
}

func (p *MarginPosition) Symbol() string                      { return p.symbol }
func (p *MarginPosition) Side() Side                          { return p.side }
func (p *MarginPosition) EntryPrice() decimal.Decimal         { return p.entryPrice }
func (p *MarginPosition) Equity() decimal.Decimal             { return p.equity }
func (p *MarginPosition) Leverage() decimal.Decimal           { return p.leverage }
func (p *MarginPosition) Size() decimal.Decimal               { return p.size }
func (p *MarginPosition) StopLossPercentage() decimal.Decimal { return p.stopLoss }
func (p *MarginPosition) OpenTime() time.Time                 { return p.openTime }

// PnL is (price-entry)*size for longs and (entry-price)*size for shorts.
func (p *MarginPosition) PnL(price decimal.Decimal) decimal.Decimal {
	if p.side == Short {
		return p.entryPrice.Sub(price).Mul(p.size)
	}
	return price.Sub(p.entryPrice).Mul(p.size)
}

// Evaluation is the cash recovered by unwinding at price: equity + PnL.
func (p *MarginPosition) Evaluation(price decimal.Decimal) decimal.Decimal {
	return p.equity.Add(p.PnL(price))
}

// ShouldStopLoss reports whether Evaluation(price)/equity has fallen to the
// stop-loss percentage. Always false when the stop is disabled.
func (p *MarginPosition) ShouldStopLoss(price decimal.Decimal) bool {
	if p.stopLoss.IsZero() {
		return false
	}
	return p.Evaluation(price).Div(p.equity).LessThanOrEqual(p.stopLoss)
}

func (p *MarginPosition) String() string {
	return fmt.Sprintf("%s %s entry=%s equity=%s leverage=%s size=%s",
		p.side, p.symbol, p.entryPrice, p.equity, p.leverage, p.size)
}
