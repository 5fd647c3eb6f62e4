package indicators

import (
	"fmt"

	"github.com/rustyeddy/backtester/market"
)

// SimpleMA is a streaming Simple Moving Average of bar closes. It keeps the
// window in a ring together with a running sum and sum of squares, so an
// update costs O(1) and the sample variance is available for free.
//
// The sums are taken over close-shift, where shift is a recent close; this
// keeps the sum of squares from cancelling when prices are large and the
// window is flat. The sums are rebuilt from the ring once per window length
// so rounding cannot accumulate over a long run.
type SimpleMA struct {
	period int
	ring   []float64
	next   int
	n      int

	shift  float64
	sum    float64
	sumSq  float64
	pushes int
}

// NewMA creates a new Simple Moving Average indicator with the given period
func NewMA(period int) *SimpleMA {
	if period < 0 {
		period = 0
	}
	return &SimpleMA{
		period: period,
		ring:   make([]float64, period),
	}
}

func (m *SimpleMA) Name() string {
	return fmt.Sprintf("MA(%d)", m.period)
}

func (m *SimpleMA) Warmup() int {
	return m.period
}

func (m *SimpleMA) Reset() {
	m.next, m.n, m.pushes = 0, 0, 0
	m.shift, m.sum, m.sumSq = 0, 0, 0
}

func (m *SimpleMA) Update(b market.Bar) {
	m.push(b.Close.InexactFloat64())
}

func (m *SimpleMA) push(v float64) {
	if m.period == 0 {
		return
	}
	if m.n == 0 {
		m.shift = v
	}

	if m.n == m.period {
		d := m.ring[m.next] - m.shift
		m.sum -= d
		m.sumSq -= d * d
	} else {
		m.n++
	}
	m.ring[m.next] = v
	m.next = (m.next + 1) % m.period

	d := v - m.shift
	m.sum += d
	m.sumSq += d * d

	m.pushes++
	if m.pushes%m.period == 0 {
		m.resync(v)
	}
}

// resync recomputes the sums around shift.
func (m *SimpleMA) resync(shift float64) {
	m.shift, m.sum, m.sumSq = shift, 0, 0
	for _, c := range m.ring[:m.n] {
		d := c - shift
		m.sum += d
		m.sumSq += d * d
	}
}

func (m *SimpleMA) Ready() bool {
	return m.period > 0 && m.n >= m.period
}

func (m *SimpleMA) Value() float64 {
	if !m.Ready() {
		return 0
	}
	return m.shift + m.sum/float64(m.n)
}

// Variance is the sample variance of the window, or 0 before Ready().
func (m *SimpleMA) Variance() float64 {
	if !m.Ready() || m.n < 2 {
		return 0
	}
	n := float64(m.n)
	v := (m.sumSq - m.sum*m.sum/n) / (n - 1)
	if v < 0 {
		return 0
	}
	return v
}
