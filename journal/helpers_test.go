package journal

import (
	"time"

	"github.com/shopspring/decimal"
)

var t0 = time.Date(2024, 1, 2, 3, 4, 5, 0, time.UTC)

func d(s string) decimal.Decimal { return decimal.RequireFromString(s) }

func sampleRun(id string) Run {
	return Run{
		RunID:          id,
		Created:        t0.Add(time.Hour),
		Strategy:       "band-reentry",
		Symbol:         "BTC",
		Interval:       "15m",
		Dataset:        "btc.csv",
		Config:         []byte(`{"window":20}`),
		Start:          t0,
		End:            t0.Add(30 * time.Minute),
		Bars:           3,
		InitialCapital: d("200"),
		FinalValue:     d("210.5"),
		Cash:           d("200.25"),
		PnL:            d("10.5"),
		PnLPct:         d("5.25"),
		MaxDrawdownPct: d("-1.5"),
		MaxReturnPct:   d("6"),
		Fees:           d("0.125"),
		Transactions:   3,
		ClosedTrades:   2,
		Wins:           1,
		Losses:         1,
		OpenPositions:  1,
	}
}

func sampleTx(runID, txID string, at time.Time) TransactionRecord {
	return TransactionRecord{
		RunID:       runID,
		TxID:        txID,
		Symbol:      "BTC",
		Side:        "OPEN_SHORT",
		Quantity:    d("0.0002431633015412"),
		Price:       d("41124.37"),
		Leverage:    d("1"),
		Fee:         d("0"),
		RealizedPnL: d("0"),
		Time:        at,
	}
}
