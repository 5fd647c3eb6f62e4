package indicators

import (
	"fmt"
	"math"

	"github.com/rustyeddy/backtester/market"
)

// MA calculates the simple moving average of the last period closes.
func MA(bars []market.Bar, period int) (float64, error) {
	if period <= 0 {
		return 0, fmt.Errorf("period must be positive, got %d", period)
	}
	if len(bars) < period {
		return 0, fmt.Errorf("not enough bars: need %d, got %d", period, len(bars))
	}

	sum := 0.0
	for i := len(bars) - period; i < len(bars); i++ {
		sum += bars[i].Close.InexactFloat64()
	}
	return sum / float64(period), nil
}

// BollingerOf computes the bands of the last window closes in one pass.
// It is the batch counterpart of Bollinger and is handy for reports and for
// checking a streaming run.
func BollingerOf(bars []market.Bar, window int, k float64) (Bands, error) {
	if window < 2 {
		return Bands{}, fmt.Errorf("bollinger window must be at least 2, got %d", window)
	}
	mean, err := MA(bars, window)
	if err != nil {
		return Bands{}, err
	}

	ss := 0.0
	for _, b := range bars[len(bars)-window:] {
		c := b.Close.InexactFloat64()
		ss += (c - mean) * (c - mean)
	}
	std := math.Sqrt(ss / float64(window-1))

	return Bands{Middle: mean, Upper: mean + k*std, Lower: mean - k*std}, nil
}
