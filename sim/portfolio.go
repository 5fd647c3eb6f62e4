package sim

import (
	"log/slog"
	"sort"
	"time"

	"github.com/rustyeddy/backtester/internal/id"
	"github.com/rustyeddy/backtester/market"
	"github.com/shopspring/decimal"
)

// Order is a long or short request.
type Order struct {
	Symbol             string
	Equity             decimal.Decimal
	Price              decimal.Decimal
	Time               time.Time
	Leverage           decimal.Decimal
	StopLossPercentage decimal.Decimal
}

// Portfolio owns cash, open margin positions, the transaction ledger and
// the valuation history of a single run. It is not safe for concurrent use;
// a run mutates it strictly bar by bar.
//
// Holdings allow several lots per symbol, but every lot of a symbol shares
// one side: an opposite request always unwinds before it can open.
type Portfolio struct {
	initial      decimal.Decimal
	cash         decimal.Decimal
	holdings     map[string][]*MarginPosition
	transactions []Transaction
	history      []ValuationRow
	valuations   []Valuation
	closed       bool
	gaps         int

	fill   FillModel
	logger *slog.Logger
}

type Option func(*Portfolio)

// WithFillModel sets the slippage and fee model. Default fills at the quote
// with no fee.
func WithFillModel(m FillModel) Option {
	return func(p *Portfolio) { p.fill = m }
}

func WithLogger(l *slog.Logger) Option {
	return func(p *Portfolio) {
		if l != nil {
			p.logger = l
		}
	}
}

func NewPortfolio(initialCapital decimal.Decimal, opts ...Option) *Portfolio {
	p := &Portfolio{
		initial:  initialCapital,
		cash:     initialCapital,
		holdings: make(map[string][]*MarginPosition),
		logger:   slog.Default(),
	}
	for _, opt := range opts {
		opt(p)
	}
	p.logger = p.logger.With("component", "portfolio")
	return p
}

func (p *Portfolio) InitialCapital() decimal.Decimal { return p.initial }
func (p *Portfolio) Cash() decimal.Decimal           { return p.cash }
func (p *Portfolio) Closed() bool                    { return p.closed }

// Gaps counts positions skipped during evaluation for lack of a quote.
func (p *Portfolio) Gaps() int { return p.gaps }

// Positions returns the open lots of symbol, oldest first.
func (p *Portfolio) Positions(symbol string) []*MarginPosition {
	out := make([]*MarginPosition, len(p.holdings[symbol]))
	copy(out, p.holdings[symbol])
	return out
}

// Holdings returns every open lot keyed by symbol.
func (p *Portfolio) Holdings() map[string][]*MarginPosition {
	out := make(map[string][]*MarginPosition, len(p.holdings))
	for sym, lots := range p.holdings {
		if len(lots) == 0 {
			continue
		}
		out[sym] = append([]*MarginPosition(nil), lots...)
	}
	return out
}

// OpenPositions counts open lots across symbols.
func (p *Portfolio) OpenPositions() int {
	n := 0
	for _, lots := range p.holdings {
		n += len(lots)
	}
	return n
}

// Transactions returns a copy of the ledger in execution order.
func (p *Portfolio) Transactions() []Transaction {
	out := make([]Transaction, len(p.transactions))
	copy(out, p.transactions)
	return out
}

// TransactionCount is the length of the ledger.
func (p *Portfolio) TransactionCount() int { return len(p.transactions) }

// TransactionsSince returns ledger entries appended after the ledger held n.
func (p *Portfolio) TransactionsSince(n int) []Transaction {
	if n >= len(p.transactions) {
		return nil
	}
	out := make([]Transaction, len(p.transactions)-n)
	copy(out, p.transactions[n:])
	return out
}

// History returns a copy of the valuation rows.
func (p *Portfolio) History() []ValuationRow {
	out := make([]ValuationRow, len(p.history))
	copy(out, p.history)
	return out
}

// Long unwinds the first open short of o.Symbol, or opens a long when none
// exists. It returns the side executed and the affected position.
//
// An open that needs more cash than is available is skipped: no position,
// no debit, and the returned error is an *InsufficientFundsError.
func (p *Portfolio) Long(o Order) (TxSide, *MarginPosition, error) {
	return p.execute(Long, o)
}

// Short mirrors Long: it unwinds an open long or opens a short.
func (p *Portfolio) Short(o Order) (TxSide, *MarginPosition, error) {
	return p.execute(Short, o)
}

func (p *Portfolio) execute(want Side, o Order) (TxSide, *MarginPosition, error) {
	if p.closed {
		return TxNone, nil, ErrPortfolioClosed
	}
	if !o.Price.IsPositive() {
		return TxNone, nil, &InvalidPositionError{Field: "price", Value: o.Price, Reason: "must be positive"}
	}

	if i := p.find(o.Symbol, want.Opposite()); i >= 0 {
		pos := p.holdings[o.Symbol][i]
		p.unwind(i, pos, p.fill.exit(pos.side, o.Price), o.Time, true)
		return closeSide(pos.side), pos, nil
	}

	fillPrice := p.fill.entry(want, o.Price)
	pos, err := NewMarginPosition(o.Symbol, want, fillPrice, o.Equity, o.Leverage, o.StopLossPercentage, o.Time)
	if err != nil {
		return TxNone, nil, err
	}

	fee := p.fill.fee(pos.size, fillPrice)
	required := o.Equity.Add(fee)
	if required.GreaterThan(p.cash) {
		return TxNone, nil, &InsufficientFundsError{
			Symbol:    o.Symbol,
			Side:      want,
			Required:  required,
			Available: p.cash,
			Size:      pos.size,
		}
	}

	p.cash = p.cash.Sub(required)
	p.holdings[o.Symbol] = append(p.holdings[o.Symbol], pos)
	p.record(Transaction{
		Symbol:   o.Symbol,
		Side:     openSide(want),
		Quantity: pos.size,
		Price:    fillPrice,
		Leverage: pos.leverage,
		Time:     o.Time,
		Fee:      fee,
	})
	p.logger.Debug("opened position",
		slog.String("symbol", o.Symbol),
		slog.String("side", want.String()),
		slog.String("price", fillPrice.String()),
		slog.String("size", pos.size.String()),
		slog.String("cash", p.cash.String()))
	return openSide(want), pos, nil
}

// find returns the index of the first open lot of symbol on side, or -1.
func (p *Portfolio) find(symbol string, side Side) int {
	for i, pos := range p.holdings[symbol] {
		if pos.side == side {
			return i
		}
	}
	return -1
}

// unwind removes lot i of pos.symbol and credits its evaluation at price,
// less the closing fee when charged.
func (p *Portfolio) unwind(i int, pos *MarginPosition, price decimal.Decimal, at time.Time, charge bool) decimal.Decimal {
	lots := p.holdings[pos.symbol]
	p.holdings[pos.symbol] = append(lots[:i:i], lots[i+1:]...)
	if len(p.holdings[pos.symbol]) == 0 {
		delete(p.holdings, pos.symbol)
	}

	value := pos.Evaluation(price)
	fee := decimal.Zero
	if charge {
		fee = p.fill.fee(pos.size, price)
	}
	p.cash = p.cash.Add(value).Sub(fee)
	p.record(Transaction{
		Symbol:      pos.symbol,
		Side:        closeSide(pos.side),
		Quantity:    pos.size,
		Price:       price,
		Leverage:    pos.leverage,
		Time:        at,
		Fee:         fee,
		RealizedPnL: value.Sub(fee).Sub(pos.equity),
	})
	p.logger.Debug("closed position",
		slog.String("symbol", pos.symbol),
		slog.String("side", pos.side.String()),
		slog.String("price", price.String()),
		slog.String("value", value.String()),
		slog.String("cash", p.cash.String()))
	return value
}

func (p *Portfolio) record(tx Transaction) {
	tx.ID = id.At(tx.Time)
	p.transactions = append(p.transactions, tx)
}

// symbols returns held symbols in a stable order.
func (p *Portfolio) symbols() []string {
	out := make([]string, 0, len(p.holdings))
	for sym := range p.holdings {
		out = append(out, sym)
	}
	sort.Strings(out)
	return out
}

// Evaluate marks every open position at each OHLC component of the quotes,
// adds cash, and appends one valuation row stamped with the latest bar
// time. Positions without a quote are skipped for this row and logged as a
// data gap.
//
// Rows are non-decreasing in time: a row earlier than the previous one is
// rejected with ErrStaleBar and the history is left untouched. Evaluate only
// appends a snapshot, so cash is never counted twice; the runner calls it
// once per bar.
func (p *Portfolio) Evaluate(bars ...market.Bar) (ValuationRow, error) {
	if p.closed {
		return ValuationRow{}, ErrPortfolioClosed
	}
	if len(bars) == 0 {
		return ValuationRow{}, ErrNoBars
	}

	quotes := market.QuotesOf(bars...)
	at := quotes.Time()
	if n := len(p.history); n > 0 && at.Before(p.history[n-1].Time) {
		return ValuationRow{}, ErrStaleBar
	}

	var sums [len(market.Components)]decimal.Decimal
	for _, sym := range p.symbols() {
		bar, err := quotes.Lookup(sym, at)
		if err != nil {
			p.gaps += len(p.holdings[sym])
			p.logger.Warn("skipping position valuation", slog.String("error", err.Error()))
			continue
		}
		for _, pos := range p.holdings[sym] {
			for i, c := range market.Components {
				sums[i] = sums[i].Add(pos.Evaluation(bar.Price(c)))
			}
		}
	}

	row := ValuationRow{
		Time:  at,
		Open:  p.cash.Add(sums[market.Open]),
		High:  p.cash.Add(sums[market.High]),
		Low:   p.cash.Add(sums[market.Low]),
		Close: p.cash.Add(sums[market.Close]),
		Cash:  p.cash,
	}
	p.history = append(p.history, row)
	return row, nil
}

// CleanUp force-liquidates every position whose evaluation at the bar close
// is zero or negative. The (non-positive) evaluation is credited to cash so
// an underwater lot stops distorting later valuations.
func (p *Portfolio) CleanUp(bars ...market.Bar) []ActionRecord {
	return p.sweep(bars, ActionForceLiquidation, func(pos *MarginPosition, px decimal.Decimal) bool {
		return !pos.Evaluation(px).IsPositive()
	})
}

// CheckStopLoss unwinds every position whose stop-loss triggers at the bar
// close, using the fill model.
func (p *Portfolio) CheckStopLoss(bars ...market.Bar) []ActionRecord {
	return p.sweep(bars, ActionStopLoss, func(pos *MarginPosition, px decimal.Decimal) bool {
		return pos.ShouldStopLoss(px)
	})
}

func (p *Portfolio) sweep(bars []market.Bar, action Action, hit func(*MarginPosition, decimal.Decimal) bool) []ActionRecord {
	if p.closed || len(bars) == 0 {
		return nil
	}

	quotes := market.QuotesOf(bars...)
	at := quotes.Time()

	var out []ActionRecord
	for _, sym := range p.symbols() {
		bar, err := quotes.Lookup(sym, at)
		if err != nil {
			continue
		}
		for i := 0; i < len(p.holdings[sym]); {
			pos := p.holdings[sym][i]
			if !hit(pos, bar.Close) {
				i++
				continue
			}

			price := bar.Close
			if action == ActionForceLiquidation {
				p.unwind(i, pos, price, bar.Time, false)
			} else {
				price = p.fill.exit(pos.side, bar.Close)
				p.unwind(i, pos, price, bar.Time, true)
			}
			out = append(out, ActionRecord{
				Time:     bar.Time,
				Symbol:   sym,
				Action:   action,
				Price:    price,
				Quantity: pos.size,
			})
			p.logger.Info("position closed by risk check",
				slog.String("action", string(action)),
				slog.String("symbol", sym),
				slog.String("side", pos.side.String()),
				slog.String("size", pos.size.String()),
				slog.String("price", price.String()))
		}
	}
	return out
}

// Checkpoint captures the mutable state so a failed bar can be undone.
type Checkpoint struct {
	cash     decimal.Decimal
	holdings map[string][]*MarginPosition
	txs      int
	rows     int
	gaps     int
}

func (p *Portfolio) Checkpoint() Checkpoint {
	// positions are immutable, so copying the lot slices is enough
	return Checkpoint{
		cash:     p.cash,
		holdings: p.Holdings(),
		txs:      len(p.transactions),
		rows:     len(p.history),
		gaps:     p.gaps,
	}
}

// Restore rewinds the portfolio to cp. cp must come from this portfolio
// and no earlier checkpoint may be restored after a later one.
func (p *Portfolio) Restore(cp Checkpoint) {
	p.cash = cp.cash
	p.holdings = make(map[string][]*MarginPosition, len(cp.holdings))
	for sym, lots := range cp.holdings {
		p.holdings[sym] = append([]*MarginPosition(nil), lots...)
	}
	if cp.txs < len(p.transactions) {
		p.transactions = p.transactions[:cp.txs]
	}
	if cp.rows < len(p.history) {
		p.history = p.history[:cp.rows]
	}
	p.gaps = cp.gaps
}

// End closes the portfolio and computes the drawdown and return columns
// over the full valuation history. Calling it again recomputes the same
// result from the raw rows.
func (p *Portfolio) End() []Valuation {
	p.closed = true
	p.valuations = computeValuations(p.history)
	out := make([]Valuation, len(p.valuations))
	copy(out, p.valuations)
	return out
}

// Valuations returns the rows with derived columns; nil before End.
func (p *Portfolio) Valuations() []Valuation {
	if p.valuations == nil {
		return nil
	}
	out := make([]Valuation, len(p.valuations))
	copy(out, p.valuations)
	return out
}
