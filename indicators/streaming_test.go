package indicators

import (
	"math"
	"testing"
	"time"

	"github.com/rustyeddy/backtester/market"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
)

var baseTime = time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)

func closes(vals ...float64) []market.Bar {
	out := make([]market.Bar, len(vals))
	for i, v := range vals {
		px := decimal.NewFromFloat(v)
		out[i] = market.Bar{
			Symbol: "BTC",
			Time:   baseTime.Add(time.Duration(i) * time.Hour),
			Open:   px,
			High:   px,
			Low:    px,
			Close:  px,
		}
	}
	return out
}

func TestSimpleMAStreaming(t *testing.T) {
	bars := closes(102, 105, 106, 108, 110)

	t.Run("basic functionality", func(t *testing.T) {
		ma := NewMA(3)
		assert.Equal(t, "MA(3)", ma.Name())
		assert.Equal(t, 3, ma.Warmup())
		assert.False(t, ma.Ready())
		assert.Equal(t, 0.0, ma.Value())

		ma.Update(bars[0])
		assert.False(t, ma.Ready())

		ma.Update(bars[1])
		assert.False(t, ma.Ready())

		// Update with third bar - should be ready now
		ma.Update(bars[2])
		assert.True(t, ma.Ready())
		expected := (102.0 + 105.0 + 106.0) / 3.0
		assert.InDelta(t, expected, ma.Value(), 0.001)

		// Update with fourth bar - should use last 3
		ma.Update(bars[3])
		assert.True(t, ma.Ready())
		expected = (105.0 + 106.0 + 108.0) / 3.0
		assert.InDelta(t, expected, ma.Value(), 0.001)
	})

	t.Run("reset functionality", func(t *testing.T) {
		ma := NewMA(2)
		ma.Update(bars[0])
		ma.Update(bars[1])
		assert.True(t, ma.Ready())

		ma.Reset()
		assert.False(t, ma.Ready())
		assert.Equal(t, 0.0, ma.Value())
	})
}

func TestSimpleMAVariance(t *testing.T) {
	ma := NewMA(4)
	for _, b := range closes(2, 4, 4, 6) {
		assert.Equal(t, 0.0, ma.Variance())
		ma.Update(b)
	}
	assert.InDelta(t, 4.0, ma.Value(), 1e-12)
	assert.InDelta(t, 8.0/3.0, ma.Variance(), 1e-12)

	// 2 leaves the window
	ma.Update(closes(10)[0])
	assert.InDelta(t, 6.0, ma.Value(), 1e-12)
	assert.InDelta(t, 8.0, ma.Variance(), 1e-12)
}

func TestSimpleMAFlatWindowAtLargePrice(t *testing.T) {
	bb, err := NewBollinger(20, 2)
	if !assert.NoError(t, err) {
		return
	}

	vals := make([]float64, 50)
	for i := range vals {
		vals[i] = 41124.37
	}
	for _, b := range closes(vals...) {
		bb.Update(b)
	}

	got := bb.Bands()
	assert.Equal(t, 41124.37, got.Middle)
	assert.Equal(t, got.Middle, got.Upper)
	assert.Equal(t, WithinBands, bb.State())
}

func TestSimpleMALongRunMatchesBatch(t *testing.T) {
	const window = 20

	vals := make([]float64, 10000)
	for i := range vals {
		// drifting trend with a wobble, so the shift keeps moving
		vals[i] = 40000 + float64(i)*1.37 + 250*math.Sin(float64(i)/7)
	}
	bars := closes(vals...)

	ma := NewMA(window)
	for _, b := range bars {
		ma.Update(b)
	}

	want, err := BollingerOf(bars, window, 1)
	if !assert.NoError(t, err) {
		return
	}
	assert.InDelta(t, want.Middle, ma.Value(), 1e-6)
	std := math.Sqrt(ma.Variance())
	assert.InDelta(t, want.Upper-want.Middle, std, 1e-6)
}
