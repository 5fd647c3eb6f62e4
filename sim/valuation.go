package sim

import (
	"time"

	"github.com/shopspring/decimal"
)

var hundred = decimal.NewFromInt(100)

// ValuationRow is one mark-to-market snapshot: cash plus the evaluation of
// every open position at each OHLC component of a bar.
type ValuationRow struct {
	Time  time.Time
	Open  decimal.Decimal
	High  decimal.Decimal
	Low   decimal.Decimal
	Close decimal.Decimal
	Cash  decimal.Decimal
}

// Valuation is a row with the trailing drawdown and return columns
// computed by End.
type Valuation struct {
	ValuationRow

	// MaxDrawdown is close minus the running maximum of the row highs.
	MaxDrawdown        decimal.Decimal
	MaxDrawdownPct     decimal.Decimal
	MaxReturnPct       decimal.Decimal
	ZeroBasedReturnPct decimal.Decimal
}

// computeValuations derives the drawdown columns. The high-water mark is
// the running max of each row's best component; returns are measured from
// the running min of each row's best component over the running min of
// its worst component.
func computeValuations(rows []ValuationRow) []Valuation {
	out := make([]Valuation, 0, len(rows))
	if len(rows) == 0 {
		return out
	}

	first := rows[0].Close
	var peak, floorOfBest, floorOfWorst decimal.Decimal
	for i, r := range rows {
		best := decimal.Max(r.Open, r.High, r.Low, r.Close)
		worst := decimal.Min(r.Open, r.High, r.Low, r.Close)
		if i == 0 {
			peak, floorOfBest, floorOfWorst = best, best, worst
		} else {
			peak = decimal.Max(peak, best)
			floorOfBest = decimal.Min(floorOfBest, best)
			floorOfWorst = decimal.Min(floorOfWorst, worst)
		}

		dd := r.Close.Sub(peak)
		out = append(out, Valuation{
			ValuationRow:       r,
			MaxDrawdown:        dd,
			MaxDrawdownPct:     percent(dd, peak),
			MaxReturnPct:       percent(r.Close.Sub(floorOfBest), floorOfWorst),
			ZeroBasedReturnPct: percent(r.Close.Sub(first), first),
		})
	}
	return out
}

// percent returns num/den*100, or zero when den is zero.
func percent(num, den decimal.Decimal) decimal.Decimal {
	if den.IsZero() {
		return decimal.Zero
	}
	return num.Div(den).Mul(hundred)
}

// Summary condenses a run for reporting.
type Summary struct {
	Start time.Time
	End   time.Time
	Bars  int

	InitialCapital decimal.Decimal
	Cash           decimal.Decimal
	FinalValue     decimal.Decimal
	PnL            decimal.Decimal
	PnLPct         decimal.Decimal
	MaxDrawdownPct decimal.Decimal
	MaxReturnPct   decimal.Decimal

	OpenPositions int
	Transactions  int
	ClosedTrades  int
	Wins          int
	Losses        int
	Fees          decimal.Decimal
	Gaps          int
}

// WinRate is wins over closed trades, in percent.
func (s Summary) WinRate() decimal.Decimal {
	return percent(decimal.NewFromInt(int64(s.Wins)), decimal.NewFromInt(int64(s.ClosedTrades)))
}

// Summary reports the portfolio. PnL is measured from the first valuation
// close, matching ZeroBasedReturnPct.
func (p *Portfolio) Summary() Summary {
	s := Summary{
		Bars:           len(p.history),
		InitialCapital: p.initial,
		Cash:           p.cash,
		FinalValue:     p.cash,
		OpenPositions:  p.OpenPositions(),
		Transactions:   len(p.transactions),
		Gaps:           p.gaps,
	}

	for _, tx := range p.transactions {
		s.Fees = s.Fees.Add(tx.Fee)
		if !tx.Side.IsClose() {
			continue
		}
		s.ClosedTrades++
		switch {
		case tx.RealizedPnL.IsPositive():
			s.Wins++
		case tx.RealizedPnL.IsNegative():
			s.Losses++
		}
	}

	vals := p.valuations
	if vals == nil {
		vals = computeValuations(p.history)
	}
	if len(vals) == 0 {
		return s
	}

	first, last := vals[0], vals[len(vals)-1]
	s.Start, s.End = first.Time, last.Time
	s.FinalValue = last.Close
	s.PnL = last.Close.Sub(first.Close)
	s.PnLPct = last.ZeroBasedReturnPct
	s.MaxDrawdownPct = first.MaxDrawdownPct
	s.MaxReturnPct = first.MaxReturnPct
	for _, v := range vals[1:] {
		s.MaxDrawdownPct = decimal.Min(s.MaxDrawdownPct, v.MaxDrawdownPct)
		s.MaxReturnPct = decimal.Max(s.MaxReturnPct, v.MaxReturnPct)
	}
	return s
}
