package sim

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPortfolioOpenDebitsEquity(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		open func(*Portfolio, Order) (TxSide, *MarginPosition, error)
		want TxSide
		side Side
	}{
		{"long", (*Portfolio).Long, OpenLong, Long},
		{"short", (*Portfolio).Short, OpenShort, Short},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			p := NewPortfolio(d("1000"))
			o := order("BTC", "100", "50", t0)
			o.Leverage = d("3")

			got, pos, err := tt.open(p, o)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
			require.NotNil(t, pos)
			assert.Equal(t, tt.side, pos.Side())
			assertDec(t, "6", pos.Size())
			assertDec(t, "900", p.Cash())

			txs := p.Transactions()
			require.Len(t, txs, 1)
			assert.Equal(t, tt.want, txs[0].Side)
			assertDec(t, "6", txs[0].Quantity)
			assertDec(t, "50", txs[0].Price)
			assert.NotEmpty(t, txs[0].ID)
		})
	}
}

func TestPortfolioRoundTripAtEntryRestoresCash(t *testing.T) {
	t.Parallel()

	for _, lev := range []string{"1", "2.5", "10"} {
		p := NewPortfolio(d("200"))
		o := order("BTC", "50", "41124.37", t0)
		o.Leverage = d(lev)

		tx, _, err := p.Long(o)
		require.NoError(t, err)
		require.Equal(t, OpenLong, tx)

		o.Time = t0.Add(time.Minute)
		tx, pos, err := p.Short(o)
		require.NoError(t, err)
		assert.Equal(t, CloseLong, tx)
		assert.Equal(t, Long, pos.Side())

		assertDec(t, "200", p.Cash(), "leverage %s", lev)
		assert.Empty(t, p.Holdings())
		assert.Len(t, p.Transactions(), 2)
	}
}

func TestPortfolioCloseCreditsEvaluation(t *testing.T) {
	t.Parallel()

	p := NewPortfolio(d("1000"))
	o := order("BTC", "100", "100", t0)
	o.Leverage = d("5")
	_, _, err := p.Short(o)
	require.NoError(t, err)
	assertDec(t, "900", p.Cash())

	// size 5, short gains 5 per point
	o.Price = d("90")
	tx, pos, err := p.Long(o)
	require.NoError(t, err)
	assert.Equal(t, CloseShort, tx)
	assertDec(t, "150", pos.Evaluation(d("90")))
	assertDec(t, "1050", p.Cash())

	txs := p.Transactions()
	require.Len(t, txs, 2)
	assertDec(t, "50", txs[1].RealizedPnL)
	assertDec(t, "0", txs[0].RealizedPnL)
}

func TestPortfolioInsufficientFunds(t *testing.T) {
	t.Parallel()

	p := NewPortfolio(d("200"))
	o := order("BTC", "300", "100", t0)
	o.Leverage = d("2")

	tx, pos, err := p.Long(o)
	assert.Equal(t, TxNone, tx)
	assert.Nil(t, pos)
	require.Error(t, err)
	assert.True(t, IsMissed(err))

	var ife *InsufficientFundsError
	require.True(t, errors.As(err, &ife))
	assertDec(t, "6", ife.Size)
	assertDec(t, "300", ife.Required)
	assertDec(t, "200", ife.Available)
	assert.Equal(t, Long, ife.Side)

	assertDec(t, "200", p.Cash())
	assert.Empty(t, p.Holdings())
	assert.Empty(t, p.Transactions())
}

func TestPortfolioRejectsInvalidOrder(t *testing.T) {
	t.Parallel()

	p := NewPortfolio(d("200"))

	o := order("BTC", "10", "0", t0)
	_, _, err := p.Long(o)
	assert.False(t, IsMissed(err))
	var ipe *InvalidPositionError
	assert.True(t, errors.As(err, &ipe))

	o = order("BTC", "10", "100", t0)
	o.Leverage = d("0.5")
	_, _, err = p.Short(o)
	assert.True(t, errors.As(err, &ipe))
	assert.Equal(t, "leverage", ipe.Field)

	assertDec(t, "200", p.Cash())
	assert.Empty(t, p.Transactions())
}

func TestPortfolioStacksSameSideLots(t *testing.T) {
	t.Parallel()

	p := NewPortfolio(d("1000"))
	_, first, err := p.Long(order("BTC", "100", "100", t0))
	require.NoError(t, err)
	_, second, err := p.Long(order("BTC", "100", "110", t0.Add(time.Minute)))
	require.NoError(t, err)

	assert.Len(t, p.Positions("BTC"), 2)
	assertDec(t, "800", p.Cash())

	// an opposite request unwinds the oldest lot only
	tx, pos, err := p.Short(order("BTC", "100", "120", t0.Add(2*time.Minute)))
	require.NoError(t, err)
	assert.Equal(t, CloseLong, tx)
	assert.Same(t, first, pos)

	lots := p.Positions("BTC")
	require.Len(t, lots, 1)
	assert.Same(t, second, lots[0])
	assert.Equal(t, 1, p.OpenPositions())
}

func TestPortfolioEvaluate(t *testing.T) {
	t.Parallel()

	p := NewPortfolio(d("1000"))
	o := order("BTC", "100", "100", t0)
	o.Leverage = d("2")
	_, _, err := p.Long(o)
	require.NoError(t, err)

	row, err := p.Evaluate(ohlc("BTC", t0, "100", "110", "90", "105"))
	require.NoError(t, err)
	assert.Equal(t, t0, row.Time)
	assertDec(t, "900", row.Cash)
	assertDec(t, "1000", row.Open)
	assertDec(t, "1020", row.High)
	assertDec(t, "980", row.Low)
	assertDec(t, "1010", row.Close)

	assert.Len(t, p.History(), 1)
}

func TestPortfolioEvaluateRejectsEarlierBar(t *testing.T) {
	t.Parallel()

	p := NewPortfolio(d("100"))
	_, err := p.Evaluate(flat("BTC", t0, "10"))
	require.NoError(t, err)

	_, err = p.Evaluate(flat("BTC", t0.Add(-time.Minute), "10"))
	assert.ErrorIs(t, err, ErrStaleBar)
	assert.Len(t, p.History(), 1)

	_, err = p.Evaluate()
	assert.ErrorIs(t, err, ErrNoBars)
}

func TestPortfolioEvaluateSameTimestamp(t *testing.T) {
	t.Parallel()

	p := NewPortfolio(d("100"))
	_, _, err := p.Long(order("BTC", "50", "10", t0))
	require.NoError(t, err)

	_, err = p.Evaluate(flat("BTC", t0, "10"))
	require.NoError(t, err)
	row, err := p.Evaluate(flat("BTC", t0, "12"))
	require.NoError(t, err)

	// cash is not counted twice: 50 cash + 5 units at 12
	assertDec(t, "50", row.Cash)
	assertDec(t, "110", row.Close)

	hist := p.History()
	require.Len(t, hist, 2)
	assert.Equal(t, hist[0].Time, hist[1].Time)
	assertDec(t, "100", hist[0].Close)

	vals := p.End()
	require.Len(t, vals, 2)
	assertDec(t, "10", vals[1].ZeroBasedReturnPct)
}

func TestPortfolioEvaluateSkipsDataGap(t *testing.T) {
	t.Parallel()

	p := NewPortfolio(d("1000"))
	_, _, err := p.Long(order("ETH", "100", "10", t0))
	require.NoError(t, err)
	_, _, err = p.Long(order("BTC", "100", "100", t0))
	require.NoError(t, err)

	row, err := p.Evaluate(flat("BTC", t0, "120"))
	require.NoError(t, err)
	assert.Equal(t, 1, p.Gaps())
	// cash 800 plus the BTC lot at 120; the ETH lot is skipped
	assertDec(t, "920", row.Close)
}

func TestPortfolioCleanUp(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name   string
		close  string
		cash   string
		liquid bool
	}{
		{"healthy", "95", "90", false},
		{"wiped out", "90", "90", true},
		{"underwater", "85", "85", true},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			p := NewPortfolio(d("100"))
			o := order("BTC", "10", "100", t0)
			o.Leverage = d("10")
			_, _, err := p.Long(o)
			require.NoError(t, err)

			at := t0.Add(time.Hour)
			recs := p.CleanUp(flat("BTC", at, tt.close))
			assertDec(t, tt.cash, p.Cash())

			if !tt.liquid {
				assert.Empty(t, recs)
				assert.Len(t, p.Positions("BTC"), 1)
				return
			}
			require.Len(t, recs, 1)
			assert.Equal(t, ActionForceLiquidation, recs[0].Action)
			assertDec(t, "1", recs[0].Quantity)
			assertDec(t, tt.close, recs[0].Price)
			assert.Equal(t, at, recs[0].Time)
			assert.Empty(t, p.Positions("BTC"))

			txs := p.Transactions()
			require.Len(t, txs, 2)
			assert.Equal(t, CloseLong, txs[1].Side)
		})
	}
}

func TestPortfolioCheckStopLoss(t *testing.T) {
	t.Parallel()

	p := NewPortfolio(d("100"))
	o := order("BTC", "10", "100", t0)
	o.Leverage = d("10")
	o.StopLossPercentage = d("0.5")
	_, _, err := p.Short(o)
	require.NoError(t, err)

	assert.Empty(t, p.CheckStopLoss(flat("BTC", t0.Add(time.Minute), "104")))
	assert.Len(t, p.Positions("BTC"), 1)

	recs := p.CheckStopLoss(flat("BTC", t0.Add(2*time.Minute), "106"))
	require.Len(t, recs, 1)
	assert.Equal(t, ActionStopLoss, recs[0].Action)
	assertDec(t, "1", recs[0].Quantity)
	assert.Empty(t, p.Holdings())
	// 90 cash plus 10 - 6
	assertDec(t, "94", p.Cash())
}

func TestPortfolioFillModel(t *testing.T) {
	t.Parallel()

	p := NewPortfolio(d("1000"), WithFillModel(FillModel{
		Slippage: d("0.01"),
		FeeRate:  d("0.001"),
	}))

	_, pos, err := p.Long(order("BTC", "101", "100", t0))
	require.NoError(t, err)
	assertDec(t, "101", pos.EntryPrice())
	assertDec(t, "1", pos.Size())
	assertDec(t, "898.899", p.Cash())

	tx, _, err := p.Short(order("BTC", "101", "100", t0.Add(time.Minute)))
	require.NoError(t, err)
	assert.Equal(t, CloseLong, tx)
	assertDec(t, "997.8", p.Cash())

	txs := p.Transactions()
	require.Len(t, txs, 2)
	assertDec(t, "0.101", txs[0].Fee)
	assertDec(t, "99", txs[1].Price)
	assertDec(t, "0.099", txs[1].Fee)
	assertDec(t, "-2.099", txs[1].RealizedPnL)

	s := p.Summary()
	assertDec(t, "0.2", s.Fees)
	assert.Equal(t, 1, s.Losses)
}

func TestPortfolioFillModelIsAdverse(t *testing.T) {
	t.Parallel()

	m := FillModel{Slippage: d("0.001")}
	quote := d("100")
	assert.True(t, m.entry(Long, quote).GreaterThan(quote))
	assert.True(t, m.entry(Short, quote).LessThan(quote))
	assert.True(t, m.exit(Long, quote).LessThan(quote))
	assert.True(t, m.exit(Short, quote).GreaterThan(quote))

	var zero FillModel
	assertDec(t, "100", zero.entry(Long, quote))
	assertDec(t, "0", zero.fee(d("3"), quote))
}

func TestPortfolioCheckpointRestore(t *testing.T) {
	t.Parallel()

	p := NewPortfolio(d("1000"))
	_, _, err := p.Long(order("BTC", "100", "100", t0))
	require.NoError(t, err)
	_, err = p.Evaluate(flat("BTC", t0, "100"))
	require.NoError(t, err)

	cp := p.Checkpoint()

	at := t0.Add(time.Minute)
	_, _, err = p.Short(order("BTC", "100", "120", at))
	require.NoError(t, err)
	_, _, err = p.Short(order("BTC", "100", "120", at))
	require.NoError(t, err)
	_, err = p.Evaluate(flat("BTC", at, "120"))
	require.NoError(t, err)

	p.Restore(cp)
	assertDec(t, "900", p.Cash())
	lots := p.Positions("BTC")
	require.Len(t, lots, 1)
	assert.Equal(t, Long, lots[0].Side())
	assert.Len(t, p.Transactions(), 1)
	assert.Len(t, p.History(), 1)

	// the bar can be replayed after a restore
	_, err = p.Evaluate(flat("BTC", at, "120"))
	assert.NoError(t, err)
}

func TestPortfolioEnd(t *testing.T) {
	t.Parallel()

	p := NewPortfolio(d("100"))
	for i := 0; i < 5; i++ {
		_, err := p.Evaluate(flat("BTC", t0.Add(time.Duration(i)*time.Minute), "100"))
		require.NoError(t, err)
	}

	vals := p.End()
	require.Len(t, vals, 5)
	for _, v := range vals {
		assertDec(t, "100", v.Close)
		assertDec(t, "0", v.MaxDrawdown)
		assertDec(t, "0", v.MaxDrawdownPct)
		assertDec(t, "0", v.MaxReturnPct)
		assertDec(t, "0", v.ZeroBasedReturnPct)
	}

	assert.True(t, p.Closed())
	assert.Equal(t, vals, p.End())
	assert.Equal(t, vals, p.Valuations())

	_, _, err := p.Long(order("BTC", "10", "100", t0.Add(time.Hour)))
	assert.ErrorIs(t, err, ErrPortfolioClosed)
	_, err = p.Evaluate(flat("BTC", t0.Add(time.Hour), "100"))
	assert.ErrorIs(t, err, ErrPortfolioClosed)
	assert.Nil(t, p.CleanUp(flat("BTC", t0.Add(time.Hour), "1")))
}

func TestPortfolioValuationsBeforeEnd(t *testing.T) {
	t.Parallel()

	p := NewPortfolio(d("100"))
	assert.Nil(t, p.Valuations())
	assert.Empty(t, p.End())
}
