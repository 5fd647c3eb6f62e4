package sim

import "github.com/shopspring/decimal"

// FillModel adjusts quoted prices for slippage and charges a fee on the
// notional of every open and close. The zero value fills at the quote for
// free.
type FillModel struct {
	Slippage decimal.Decimal // fraction of price, e.g. 0.0001
	FeeRate  decimal.Decimal // fraction of notional, e.g. 0.00035
}

// entry returns the fill price for opening side at quote. Fills are always
// adverse: longs pay up, shorts sell down.
func (m FillModel) entry(side Side, quote decimal.Decimal) decimal.Decimal {
	if m.Slippage.IsZero() {
		return quote
	}
	if side == Short {
		return quote.Mul(one.Sub(m.Slippage))
	}
	return quote.Mul(one.Add(m.Slippage))
}

// exit returns the fill price for unwinding side at quote.
func (m FillModel) exit(side Side, quote decimal.Decimal) decimal.Decimal {
	return m.entry(side.Opposite(), quote)
}

func (m FillModel) fee(quantity, price decimal.Decimal) decimal.Decimal {
	if m.FeeRate.IsZero() {
		return decimal.Zero
	}
	return quantity.Mul(price).Mul(m.FeeRate)
}
