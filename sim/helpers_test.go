package sim

import (
	"fmt"
	"testing"
	"time"

	"github.com/rustyeddy/backtester/market"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
)

var t0 = time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)

func d(s string) decimal.Decimal { return decimal.RequireFromString(s) }

func assertDec(t *testing.T, want string, got decimal.Decimal, msgAndArgs ...interface{}) bool {
	t.Helper()
	if d(want).Equal(got) {
		return true
	}
	return assert.Fail(t, fmt.Sprintf("want %s, got %s", want, got), msgAndArgs...)
}

// flat returns a bar whose four prices are all px.
func flat(symbol string, at time.Time, px string) market.Bar {
	return ohlc(symbol, at, px, px, px, px)
}

func ohlc(symbol string, at time.Time, o, h, l, c string) market.Bar {
	return market.Bar{
		Symbol: symbol,
		Time:   at,
		Open:   d(o),
		High:   d(h),
		Low:    d(l),
		Close:  d(c),
	}
}

func order(symbol, equity, price string, at time.Time) Order {
	return Order{
		Symbol:   symbol,
		Equity:   d(equity),
		Price:    d(price),
		Time:     at,
		Leverage: d("1"),
	}
}
