package sim

import (
	"time"

	"github.com/shopspring/decimal"
)

// TxSide tags a ledger entry. TxNone signals that nothing executed.
type TxSide int

const (
	TxNone TxSide = iota
	OpenLong
	CloseLong
	OpenShort
	CloseShort
)

func (s TxSide) String() string {
	switch s {
	case OpenLong:
		return "OPEN_LONG"
	case CloseLong:
		return "CLOSE_LONG"
	case OpenShort:
		return "OPEN_SHORT"
	case CloseShort:
		return "CLOSE_SHORT"
	}
	return "NONE"
}

// IsClose reports whether the entry unwinds a position.
func (s TxSide) IsClose() bool { return s == CloseLong || s == CloseShort }

func openSide(s Side) TxSide {
	if s == Short {
		return OpenShort
	}
	return OpenLong
}

func closeSide(s Side) TxSide {
	if s == Short {
		return CloseShort
	}
	return CloseLong
}

// Transaction is one executed fill. Entries are appended in execution order
// and never modified.
type Transaction struct {
	ID       string
	Symbol   string
	Side     TxSide
	Quantity decimal.Decimal
	Price    decimal.Decimal
	Leverage decimal.Decimal
	Time     time.Time

	Fee decimal.Decimal
	// RealizedPnL is cash returned minus equity committed, net of the
	// closing fee. Zero on opens.
	RealizedPnL decimal.Decimal
}
