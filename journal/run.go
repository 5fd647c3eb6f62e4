package journal

import (
	"bytes"
	"fmt"
	"io"
	"os"
	"text/template"
	"time"

	"github.com/rustyeddy/backtester/sim"
	"github.com/shopspring/decimal"
)

// Run mirrors the runs table: one row per backtest.
type Run struct {
	RunID    string
	Created  time.Time
	Strategy string
	Symbol   string
	Interval string
	Dataset  string
	Config   []byte // strategy parameters as JSON

	Start time.Time
	End   time.Time
	Bars  int

	InitialCapital decimal.Decimal
	FinalValue     decimal.Decimal
	Cash           decimal.Decimal
	PnL            decimal.Decimal
	PnLPct         decimal.Decimal
	MaxDrawdownPct decimal.Decimal
	MaxReturnPct   decimal.Decimal
	Fees           decimal.Decimal

	Transactions  int
	ClosedTrades  int
	Wins          int
	Losses        int
	OpenPositions int
	Gaps          int

	Notes []string
}

// ApplySummary copies the portfolio summary into the run.
func (r *Run) ApplySummary(s sim.Summary) {
	r.Start = s.Start
	r.End = s.End
	r.Bars = s.Bars
	r.InitialCapital = s.InitialCapital
	r.FinalValue = s.FinalValue
	r.Cash = s.Cash
	r.PnL = s.PnL
	r.PnLPct = s.PnLPct
	r.MaxDrawdownPct = s.MaxDrawdownPct
	r.MaxReturnPct = s.MaxReturnPct
	r.Fees = s.Fees
	r.Transactions = s.Transactions
	r.ClosedTrades = s.ClosedTrades
	r.Wins = s.Wins
	r.Losses = s.Losses
	r.OpenPositions = s.OpenPositions
	r.Gaps = s.Gaps
}

// WinRate is wins over closed trades, in percent.
func (r Run) WinRate() decimal.Decimal {
	if r.ClosedTrades == 0 {
		return decimal.Zero
	}
	return decimal.NewFromInt(int64(r.Wins)).Div(decimal.NewFromInt(int64(r.ClosedTrades))).Mul(decimal.NewFromInt(100))
}

var runOrgFuncs = template.FuncMap{
	"money": func(d decimal.Decimal) string { return d.StringFixed(2) },
	"orTime": func(t time.Time) time.Time {
		if t.IsZero() {
			return time.Now()
		}
		return t
	},
}

var runOrg = template.Must(template.New("run").Funcs(runOrgFuncs).Parse(RunOrgTemplate))

// WriteOrg renders the run as an org-mode entry.
func (r Run) WriteOrg(w io.Writer) error {
	return runOrg.Execute(w, r)
}

// WriteOrgFile renders the run to path.
func (r Run) WriteOrgFile(path string) error {
	buf := new(bytes.Buffer)
	if err := r.WriteOrg(buf); err != nil {
		return fmt.Errorf("render org report: %w", err)
	}
	return os.WriteFile(path, buf.Bytes(), 0644)
}

const RunOrgTemplate = `* BACKTEST: {{.Strategy}} {{.Symbol}} {{if .Interval}}{{.Interval}}{{else}}(interval?){{end}}
:PROPERTIES:
:RUN_ID:      {{.RunID}}
:STRATEGY:    {{.Strategy}}
:SYMBOL:      {{.Symbol}}
:DATASET:     {{if .Dataset}}{{.Dataset}}{{else}}(dataset?){{end}}
:START_DATE:  {{.Start.Format "2006-01-02 15:04"}}
:END_DATE:    {{.End.Format "2006-01-02 15:04"}}
:BARS:        {{.Bars}}
:START_CAP:   {{money .InitialCapital}}
:FINAL_VALUE: {{money .FinalValue}}
:PNL:         {{money .PnL}}
:RETURN_PCT:  {{money .PnLPct}}
:MAX_DD_PCT:  {{money .MaxDrawdownPct}}
:TRADES:      {{.ClosedTrades}}
:WINS:        {{.Wins}}
:LOSSES:      {{.Losses}}
:WIN_RATE:    {{money .WinRate}}
:CREATED:     [{{(orTime .Created).Format "2006-01-02 Mon 15:04"}}]
:END:

** Strategy Parameters
{{- if .Config }}
#+begin_src json
{{printf "%s" .Config}}
#+end_src
{{- else }}
# (defaults)
{{- end }}

** Performance Summary
- Final value:      *{{money .FinalValue}}*
- Cash:             *{{money .Cash}}*
- P/L:              *{{money .PnL}}* ({{money .PnLPct}}%)
- Max Drawdown:     *{{money .MaxDrawdownPct}}%*
- Max Return:       *{{money .MaxReturnPct}}%*
- Fees:             *{{money .Fees}}*
- Open positions:   {{.OpenPositions}}
{{- if .Gaps }}
- Data gaps:        {{.Gaps}}
{{- end }}

** Trade Distribution
| Outcome | Count |
|---------+-------|
| Wins    | {{.Wins}} |
| Losses  | {{.Losses}} |
| Total   | {{.ClosedTrades}} |

{{- if .Notes }}

** Observations
{{- range .Notes }}
- {{.}}
{{- end }}
{{- end }}
`
