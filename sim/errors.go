package sim

import (
	"errors"
	"fmt"

	"github.com/shopspring/decimal"
)

var (
	// ErrPortfolioClosed is returned by mutating calls after End.
	ErrPortfolioClosed = errors.New("portfolio is closed")

	// ErrStaleBar is returned when a valuation row would be earlier than
	// the previous one. Bars sharing a timestamp each get their own row.
	ErrStaleBar = errors.New("bar is before the last valuation")

	// ErrNoBars is returned when Evaluate is called without quotes.
	ErrNoBars = errors.New("no bars to evaluate")
)

// InvalidPositionError reports malformed position parameters.
type InvalidPositionError struct {
	Field  string
	Value  decimal.Decimal
	Reason string
}

func (e *InvalidPositionError) Error() string {
	return fmt.Sprintf("invalid position: %s %s %s", e.Field, e.Value, e.Reason)
}

// InsufficientFundsError reports an open whose equity (plus fees) exceeds
// available cash. The trade is skipped and the run continues.
type InsufficientFundsError struct {
	Symbol    string
	Side      Side
	Required  decimal.Decimal
	Available decimal.Decimal

	// Size is the quantity the open would have had.
	Size decimal.Decimal
}

func (e *InsufficientFundsError) Error() string {
	return fmt.Sprintf("insufficient funds to open %s %s: need %s, have %s",
		e.Side, e.Symbol, e.Required, e.Available)
}

// IsMissed reports whether err is a skipped open.
func IsMissed(err error) bool {
	var ife *InsufficientFundsError
	return errors.As(err, &ife)
}
