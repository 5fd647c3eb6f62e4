package indicators

import (
	"fmt"
	"math"

	"github.com/rustyeddy/backtester/market"
)

const (
	DefaultBollingerWindow = 20
	DefaultBollingerK      = 2.0
)

// BandState classifies a close against the Bollinger bands of its bar.
type BandState int

const (
	// Undefined means the window is not full yet.
	Undefined BandState = iota
	AboveUpperBand
	BelowLowerBand
	WithinBands
)

func (s BandState) String() string {
	switch s {
	case AboveUpperBand:
		return "ABOVE_UPPER_BAND"
	case BelowLowerBand:
		return "BELOW_LOWER_BAND"
	case WithinBands:
		return "WITHIN_BANDS"
	}
	return "UNDEFINED"
}

// Bands is one bar's Bollinger bands.
type Bands struct {
	Middle float64
	Upper  float64
	Lower  float64
}

// Classify places close relative to the bands. A close exactly on a band
// counts as within.
func (b Bands) Classify(close float64) BandState {
	switch {
	case close > b.Upper:
		return AboveUpperBand
	case close < b.Lower:
		return BelowLowerBand
	}
	return WithinBands
}

// Bollinger is a streaming Bollinger band indicator over bar closes: the
// middle band is the simple moving average of the window and the outer
// bands sit k sample standard deviations away from it.
type Bollinger struct {
	ma    *SimpleMA
	k     float64
	state BandState
}

func NewBollinger(window int, k float64) (*Bollinger, error) {
	if window < 2 {
		return nil, fmt.Errorf("bollinger window must be at least 2, got %d", window)
	}
	if k <= 0 || math.IsNaN(k) || math.IsInf(k, 0) {
		return nil, fmt.Errorf("bollinger k must be positive, got %v", k)
	}
	return &Bollinger{ma: NewMA(window), k: k}, nil
}

func (b *Bollinger) Name() string {
	return fmt.Sprintf("BB(%d,%g)", b.ma.period, b.k)
}

func (b *Bollinger) Warmup() int { return b.ma.Warmup() }

func (b *Bollinger) Ready() bool { return b.ma.Ready() }

func (b *Bollinger) Reset() {
	b.ma.Reset()
	b.state = Undefined
}

// Update adds the bar close to the window and classifies it.
func (b *Bollinger) Update(bar market.Bar) {
	b.ma.Update(bar)
	if !b.Ready() {
		b.state = Undefined
		return
	}
	b.state = b.Bands().Classify(bar.Close.InexactFloat64())
}

// State is the classification of the last bar.
func (b *Bollinger) State() BandState { return b.state }

// Bands returns the current bands; zero before Ready().
func (b *Bollinger) Bands() Bands {
	if !b.Ready() {
		return Bands{}
	}

	mean := b.ma.Value()
	std := math.Sqrt(b.ma.Variance())

	return Bands{
		Middle: mean,
		Upper:  mean + b.k*std,
		Lower:  mean - b.k*std,
	}
}
