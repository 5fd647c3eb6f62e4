package backtest

import (
	"fmt"
	"time"
)

// BarError reports the bar that aborted a run. The bar's effects on the
// portfolio and action history have been rolled back.
type BarError struct {
	Index int
	Time  time.Time
	Err   error
}

func (e *BarError) Error() string {
	if e.Time.IsZero() {
		return fmt.Sprintf("bar %d: %v", e.Index, e.Err)
	}
	return fmt.Sprintf("bar %d (%s): %v", e.Index, e.Time.Format(time.RFC3339), e.Err)
}

func (e *BarError) Unwrap() error { return e.Err }
