package market

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// ErrInvalidBar is wrapped by every bar validation failure.
var ErrInvalidBar = errors.New("invalid bar")

// Bar is one OHLCV observation for a symbol at a fixed interval.
type Bar struct {
	Symbol   string
	Time     time.Time
	Open     decimal.Decimal
	High     decimal.Decimal
	Low      decimal.Decimal
	Close    decimal.Decimal
	Volume   decimal.Decimal
	Interval string
}

// Component selects one of the four prices of a bar.
type Component int

const (
	Open Component = iota
	High
	Low
	Close
)

// Components lists the price components in OHLC order.
var Components = [...]Component{Open, High, Low, Close}

func (c Component) String() string {
	switch c {
	case Open:
		return "open"
	case High:
		return "high"
	case Low:
		return "low"
	case Close:
		return "close"
	}
	return fmt.Sprintf("Component(%d)", int(c))
}

// Price returns the bar's price for component c.
func (b Bar) Price(c Component) decimal.Decimal {
	switch c {
	case Open:
		return b.Open
	case High:
		return b.High
	case Low:
		return b.Low
	default:
		return b.Close
	}
}

// Validate checks the bar once at the ingestion boundary. Everything past
// the feed assumes a validated bar.
func (b Bar) Validate() error {
	if strings.TrimSpace(b.Symbol) == "" {
		return fmt.Errorf("%w: symbol is required", ErrInvalidBar)
	}
	if b.Time.IsZero() {
		return fmt.Errorf("%w: %s: time is required", ErrInvalidBar, b.Symbol)
	}
	for _, c := range Components {
		if !b.Price(c).IsPositive() {
			return fmt.Errorf("%w: %s %s: %s must be positive, got %s",
				ErrInvalidBar, b.Symbol, b.Time.Format(time.RFC3339), c, b.Price(c))
		}
	}
	if b.High.LessThan(decimal.Max(b.Open, b.Close, b.Low)) {
		return fmt.Errorf("%w: %s %s: high %s below open/close/low",
			ErrInvalidBar, b.Symbol, b.Time.Format(time.RFC3339), b.High)
	}
	if b.Low.GreaterThan(decimal.Min(b.Open, b.Close)) {
		return fmt.Errorf("%w: %s %s: low %s above open/close",
			ErrInvalidBar, b.Symbol, b.Time.Format(time.RFC3339), b.Low)
	}
	if b.Volume.IsNegative() {
		return fmt.Errorf("%w: %s %s: negative volume %s",
			ErrInvalidBar, b.Symbol, b.Time.Format(time.RFC3339), b.Volume)
	}
	return nil
}

func (b Bar) String() string {
	return fmt.Sprintf("%s %s O:%s H:%s L:%s C:%s V:%s",
		b.Symbol, b.Time.Format(time.RFC3339), b.Open, b.High, b.Low, b.Close, b.Volume)
}
