package market

import (
	"fmt"
	"time"
)

// Quotes indexes the bars of one timestamp by symbol.
type Quotes map[string]Bar

// QuotesOf builds a Quotes lookup. When a symbol repeats the last bar wins.
func QuotesOf(bars ...Bar) Quotes {
	q := make(Quotes, len(bars))
	for _, b := range bars {
		q[b.Symbol] = b
	}
	return q
}

// Lookup returns the bar for symbol or a *DataGapError when the feed has no
// row for it at this timestamp.
func (q Quotes) Lookup(symbol string, at time.Time) (Bar, error) {
	b, ok := q[symbol]
	if !ok {
		return Bar{}, &DataGapError{Symbol: symbol, Time: at}
	}
	return b, nil
}

// Time returns the latest bar time in the set.
func (q Quotes) Time() time.Time {
	var t time.Time
	for _, b := range q {
		if b.Time.After(t) {
			t = b.Time
		}
	}
	return t
}

// DataGapError reports a held symbol with no price row at a timestamp.
type DataGapError struct {
	Symbol string
	Time   time.Time
}

func (e *DataGapError) Error() string {
	return fmt.Sprintf("data gap: no quote for %q at %s", e.Symbol, e.Time.Format(time.RFC3339))
}
