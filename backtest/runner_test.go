package backtest

import (
	"bytes"
	"context"
	"errors"
	"testing"
	"time"

	"github.com/rustyeddy/backtester/journal"
	"github.com/rustyeddy/backtester/market"
	"github.com/rustyeddy/backtester/sim"
	"github.com/rustyeddy/backtester/strategies"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var t0 = time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)

func d(s string) decimal.Decimal { return decimal.RequireFromString(s) }

func bar(i int, px string) market.Bar {
	return market.Bar{
		Symbol:   "BTC",
		Time:     t0.Add(time.Duration(i) * 15 * time.Minute),
		Open:     d(px),
		High:     d(px),
		Low:      d(px),
		Close:    d(px),
		Interval: "15m",
	}
}

func bars(closes ...string) []market.Bar {
	out := make([]market.Bar, len(closes))
	for i, c := range closes {
		out[i] = bar(i, c)
	}
	return out
}

// reEntryCloses drives a window-5, k=1 band strategy from undefined to
// above the upper band and back within on the last bar.
var reEntryCloses = []string{"100", "100", "100", "100", "100", "130", "100"}

// mockFeed is a simple in-memory feed for testing
type mockFeed struct {
	*market.SliceFeed
	closed bool
}

func newMockFeed(b []market.Bar) *mockFeed {
	return &mockFeed{SliceFeed: market.NewSliceFeed(b)}
}

func (m *mockFeed) Close() error {
	m.closed = true
	return nil
}

// errorFeed returns an error on Next()
type errorFeed struct{}

func (errorFeed) Next() (market.Bar, bool, error) {
	return market.Bar{}, false, errors.New("mock error")
}

func (errorFeed) Close() error { return nil }

// opener goes long on every bar it can afford. failAt fails a call before
// it trades, failAfter fails it once the trade is done.
type opener struct {
	history   sim.ActionLog
	equity    string
	leverage  string
	failAt    int
	failAfter int
	calls     int
}

func (o *opener) Name() string { return "opener" }

func (o *opener) History() *sim.ActionLog { return &o.history }

func (o *opener) OnBar(ctx context.Context, p *sim.Portfolio, b market.Bar) error {
	o.calls++
	if o.failAt > 0 && o.calls == o.failAt {
		return errors.New("strategy error")
	}
	lev := o.leverage
	if lev == "" {
		lev = "1"
	}
	executed, pos, err := p.Long(sim.Order{
		Symbol:   b.Symbol,
		Equity:   d(o.equity),
		Price:    b.Close,
		Time:     b.Time,
		Leverage: d(lev),
	})
	if sim.IsMissed(err) {
		return nil
	}
	if err != nil {
		return err
	}
	o.history.Append(sim.ActionRecord{
		Time:     b.Time,
		Symbol:   b.Symbol,
		Action:   sim.ActionFor(sim.Long, executed),
		Price:    b.Close,
		Quantity: pos.Size(),
	})
	if o.calls == o.failAfter {
		return errors.New("strategy error after trade")
	}
	return nil
}

func newBandStrategy(t *testing.T) strategies.Strategy {
	t.Helper()
	cfg := strategies.BandReEntryConfigDefaults()
	cfg.Window = 5
	cfg.K = 1
	s, err := strategies.NewBandReEntry(cfg, nil)
	require.NoError(t, err)
	return s
}

func TestRunner_Run_Validation(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	tests := []struct {
		name string
		r    *Runner
	}{
		{"missing feed", &Runner{Strategy: &opener{}, Portfolio: sim.NewPortfolio(d("1"))}},
		{"missing strategy", &Runner{Feed: newMockFeed(nil), Portfolio: sim.NewPortfolio(d("1"))}},
		{"missing portfolio", &Runner{Feed: newMockFeed(nil), Strategy: &opener{}}},
	}
	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			_, err := tt.r.Run(ctx)
			assert.Error(t, err)
		})
	}
}

func TestRunner_Run_BandReEntry(t *testing.T) {
	t.Parallel()

	feed := newMockFeed(bars(reEntryCloses...))
	j := journal.NewMemory()
	p := sim.NewPortfolio(d("200"))
	r := &Runner{
		Feed:      feed,
		Strategy:  newBandStrategy(t),
		Portfolio: p,
		Journal:   j,
		Options:   RunnerOptions{Dataset: "unit", Config: map[string]int{"window": 5}},
	}

	res, err := r.Run(context.Background())
	require.NoError(t, err)
	assert.True(t, feed.closed)
	assert.NotEmpty(t, res.RunID)
	assert.Equal(t, strategies.BandReEntryName, res.Strategy)

	require.Len(t, res.Actions, 1)
	assert.Equal(t, sim.ActionShort, res.Actions[0].Action)
	assert.True(t, d("100").Equal(res.Actions[0].Price))

	require.Len(t, res.Transactions, 1)
	assert.Equal(t, sim.OpenShort, res.Transactions[0].Side)
	assert.True(t, d("190").Equal(p.Cash()))
	require.Len(t, p.Positions("BTC"), 1)
	assert.Equal(t, sim.Short, p.Positions("BTC")[0].Side())

	assert.Len(t, res.Valuations, 7)
	assert.Equal(t, 7, res.Summary.Bars)
	assert.True(t, d("200").Equal(res.Summary.FinalValue))
	assert.True(t, p.Closed())

	assert.Len(t, j.Transactions(res.RunID), 1)
	assert.Len(t, j.Actions(res.RunID), 1)
	assert.Len(t, j.Valuations(res.RunID), 7)
	runs := j.Runs()
	require.Len(t, runs, 1)
	assert.Equal(t, "BTC", runs[0].Symbol)
	assert.Equal(t, "15m", runs[0].Interval)
	assert.Equal(t, "unit", runs[0].Dataset)
	assert.JSONEq(t, `{"window":5}`, string(runs[0].Config))
	assert.Equal(t, 1, runs[0].OpenPositions)
}

func TestRunner_Run_CloseAtEnd(t *testing.T) {
	t.Parallel()

	p := sim.NewPortfolio(d("200"))
	r := &Runner{
		Feed:      newMockFeed(bars(append(reEntryCloses, "110")...)),
		Strategy:  newBandStrategy(t),
		Portfolio: p,
		Options:   RunnerOptions{CloseAtEnd: true},
	}

	res, err := r.Run(context.Background())
	require.NoError(t, err)

	require.Len(t, res.Actions, 2)
	assert.Equal(t, sim.ActionShortUnwind, res.Actions[1].Action)
	assert.True(t, d("110").Equal(res.Actions[1].Price))
	assert.Empty(t, p.Holdings())
	// short 0.1 from 100 to 110
	assert.True(t, d("199").Equal(p.Cash()))
	assert.Equal(t, 0, res.Summary.OpenPositions)
	assert.Equal(t, 1, res.Summary.Losses)
}

func TestRunner_Run_RollsBackFailedBar(t *testing.T) {
	t.Parallel()

	strat := &opener{equity: "10", failAfter: 2}
	p := sim.NewPortfolio(d("200"))
	j := journal.NewMemory()
	r := &Runner{Feed: newMockFeed(bars("100", "100")), Strategy: strat, Portfolio: p, Journal: j}

	_, err := r.Run(context.Background())
	require.Error(t, err)

	var be *BarError
	require.True(t, errors.As(err, &be))
	assert.Equal(t, 1, be.Index)
	assert.Contains(t, err.Error(), "strategy error after trade")

	// the second long was undone
	assert.True(t, d("190").Equal(p.Cash()))
	assert.Len(t, p.Transactions(), 1)
	assert.Len(t, p.Positions("BTC"), 1)
	assert.Equal(t, 1, strat.History().Len())
	assert.Len(t, p.History(), 1)
	assert.False(t, p.Closed())

	assert.Len(t, j.Transactions(""), 1)
	assert.Empty(t, j.Valuations(""))
	assert.Empty(t, j.Runs())
}

func TestRunner_Run_SameTimestampBars(t *testing.T) {
	t.Parallel()

	b := bars("100", "101", "102")
	b[1].Time = b[0].Time

	p := sim.NewPortfolio(d("200"))
	j := journal.NewMemory()
	r := &Runner{Feed: newMockFeed(b), Strategy: &opener{equity: "10"}, Portfolio: p, Journal: j}

	res, err := r.Run(context.Background())
	require.NoError(t, err)

	// one valuation row per input bar
	require.Len(t, res.Valuations, 3)
	assert.Equal(t, res.Valuations[0].Time, res.Valuations[1].Time)
	assert.Equal(t, 3, res.Summary.Bars)
	assert.Len(t, res.Transactions, 3)
	assert.Len(t, j.Valuations(res.RunID), 3)

	// cash 170; lots opened at 100, 101 and 102, all marked at 102
	size101 := d("10").Div(d("101"))
	want := d("170").Add(d("10.2")).Add(d("10").Add(size101)).Add(d("10"))
	assert.True(t, want.Equal(res.Summary.FinalValue), "final value %s", res.Summary.FinalValue)
}

func TestRunner_Run_StrategyError(t *testing.T) {
	t.Parallel()

	strat := &opener{equity: "10", failAt: 3}
	p := sim.NewPortfolio(d("200"))
	r := &Runner{Feed: newMockFeed(bars("100", "101", "102")), Strategy: strat, Portfolio: p}

	_, err := r.Run(context.Background())
	var be *BarError
	require.True(t, errors.As(err, &be))
	assert.Equal(t, 2, be.Index)
	assert.Equal(t, bar(2, "102").Time, be.Time)
	assert.Contains(t, err.Error(), "strategy error")
	assert.Len(t, p.Transactions(), 2)
}

func TestRunner_Run_FeedError(t *testing.T) {
	t.Parallel()

	r := &Runner{Feed: errorFeed{}, Strategy: &opener{}, Portfolio: sim.NewPortfolio(d("1"))}
	_, err := r.Run(context.Background())
	var be *BarError
	require.True(t, errors.As(err, &be))
	assert.Equal(t, 0, be.Index)
}

func TestRunner_Run_ForceLiquidation(t *testing.T) {
	t.Parallel()

	strat := &opener{equity: "10", leverage: "10"}
	p := sim.NewPortfolio(d("10"))
	r := &Runner{Feed: newMockFeed(bars("100", "90")), Strategy: strat, Portfolio: p}

	res, err := r.Run(context.Background())
	require.NoError(t, err)

	// bar 1: the long is missed for lack of cash, then the first lot is wiped out
	require.Len(t, res.Actions, 2)
	assert.Equal(t, sim.ActionLong, res.Actions[0].Action)
	assert.Equal(t, sim.ActionForceLiquidation, res.Actions[1].Action)
	assert.True(t, d("1").Equal(res.Actions[1].Quantity))
	assert.Empty(t, p.Holdings())
	assert.True(t, p.Cash().IsZero())
}

func TestRunner_Run_Canceled(t *testing.T) {
	t.Parallel()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	r := &Runner{Feed: newMockFeed(bars("100")), Strategy: &opener{equity: "1"}, Portfolio: sim.NewPortfolio(d("1"))}
	_, err := r.Run(ctx)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestRunner_Run_EmptyFeed(t *testing.T) {
	t.Parallel()

	r := &Runner{Feed: newMockFeed(nil), Strategy: &strategies.Noop{}, Portfolio: sim.NewPortfolio(d("1"))}
	res, err := r.Run(context.Background())
	require.NoError(t, err)
	assert.Zero(t, res.Summary.Bars)
	assert.Empty(t, res.Valuations)
}

func TestPrintResult(t *testing.T) {
	t.Parallel()

	r := &Runner{
		Feed:      newMockFeed(bars(reEntryCloses...)),
		Strategy:  newBandStrategy(t),
		Portfolio: sim.NewPortfolio(d("200")),
		Options:   RunnerOptions{RunID: "RUN1"},
	}
	res, err := r.Run(context.Background())
	require.NoError(t, err)

	buf := new(bytes.Buffer)
	PrintResult(buf, res)
	out := buf.String()
	assert.Contains(t, out, "Run ID:        RUN1")
	assert.Contains(t, out, "Bars:          7")
	assert.Contains(t, out, "Transactions:  1")
	assert.Contains(t, out, "Final Value:   200.00")

	buf.Reset()
	PrintSweep(buf, []Result{res})
	assert.Contains(t, buf.String(), "RUN1")
}
