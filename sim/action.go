package sim

import (
	"time"

	"github.com/shopspring/decimal"
)

// Action tags an entry of the strategy's action history.
type Action string

const (
	ActionLong             Action = "LONG"
	ActionShort            Action = "SHORT"
	ActionLongUnwind       Action = "LONG_UNWIND"
	ActionShortUnwind      Action = "SHORT_UNWIND"
	ActionMissedLong       Action = "MISSED_LONG"
	ActionMissedShort      Action = "MISSED_SHORT"
	ActionForceLiquidation Action = "FORCE_LIQUIDATION"
	ActionStopLoss         Action = "STOP_LOSS"
)

// ActionFor maps the outcome of a long or short request to its history tag.
// TxNone means the open was missed.
func ActionFor(intent Side, executed TxSide) Action {
	switch executed {
	case OpenLong:
		return ActionLong
	case OpenShort:
		return ActionShort
	case CloseLong:
		return ActionLongUnwind
	case CloseShort:
		return ActionShortUnwind
	}
	if intent == Short {
		return ActionMissedShort
	}
	return ActionMissedLong
}

// ActionRecord is one intended or executed trade action, including missed
// trades that could not execute.
type ActionRecord struct {
	Time     time.Time
	Symbol   string
	Action   Action
	Price    decimal.Decimal
	Quantity decimal.Decimal
}

// ActionLog is an append-only action history.
type ActionLog struct {
	records []ActionRecord
}

func (l *ActionLog) Append(recs ...ActionRecord) {
	l.records = append(l.records, recs...)
}

func (l *ActionLog) Len() int { return len(l.records) }

// Records returns a copy of the history.
func (l *ActionLog) Records() []ActionRecord {
	out := make([]ActionRecord, len(l.records))
	copy(out, l.records)
	return out
}

// Since returns the records appended after the log held n entries.
func (l *ActionLog) Since(n int) []ActionRecord {
	if n >= len(l.records) {
		return nil
	}
	out := make([]ActionRecord, len(l.records)-n)
	copy(out, l.records[n:])
	return out
}

// Rollback drops records appended after the log held n entries. It only
// exists to undo a bar that failed part way through.
func (l *ActionLog) Rollback(n int) {
	if n < len(l.records) {
		l.records = l.records[:n]
	}
}
