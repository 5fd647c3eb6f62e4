package strategies

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"sync"

	"github.com/rustyeddy/backtester/market"
	"github.com/rustyeddy/backtester/sim"
	"github.com/shopspring/decimal"
)

// Strategy is the minimal interface a backtest strategy must implement.
// OnBar is called once per bar, before the portfolio's risk checks and
// valuation for that bar.
type Strategy interface {
	Name() string
	OnBar(ctx context.Context, p *sim.Portfolio, bar market.Bar) error

	// History is the action log the strategy appends to. The runner also
	// records forced closes there.
	History() *sim.ActionLog
}

// Params carries the tunables every registered strategy is built from.
// Strategies ignore the fields they do not use.
type Params struct {
	Window             int             `json:"window"`
	K                  float64         `json:"k"`
	BuyEquity          decimal.Decimal `json:"buy_equity"`
	Leverage           decimal.Decimal `json:"leverage"`
	StopLossPercentage decimal.Decimal `json:"stop_loss_percentage"`
	Logger             *slog.Logger    `json:"-"`
}

// Factory builds a fresh strategy. Strategies are stateful so every run
// needs its own instance.
type Factory func(Params) (Strategy, error)

var (
	mu       sync.RWMutex
	registry = make(map[string]Factory)
)

func Register(name string, f Factory) {
	mu.Lock()
	defer mu.Unlock()
	registry[normalize(name)] = f
}

// Names lists registered strategies.
func Names() []string {
	mu.RLock()
	defer mu.RUnlock()
	out := make([]string, 0, len(registry))
	for name := range registry {
		out = append(out, name)
	}
	sort.Strings(out)
	return out
}

// StrategyByName builds the registered strategy called name.
func StrategyByName(name string, p Params) (Strategy, error) {
	mu.RLock()
	f, ok := registry[normalize(name)]
	mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("unknown strategy %q (supported: %s)", name, strings.Join(Names(), ", "))
	}
	return f(p)
}

func normalize(name string) string {
	return strings.ToLower(strings.TrimSpace(name))
}

func init() {
	Register("noop", func(Params) (Strategy, error) { return &Noop{}, nil })
	Register(BandReEntryName, func(p Params) (Strategy, error) {
		return NewBandReEntry(&BandReEntryConfig{
			Window:             p.Window,
			K:                  p.K,
			BuyEquity:          p.BuyEquity,
			Leverage:           p.Leverage,
			StopLossPercentage: p.StopLossPercentage,
		}, p.Logger)
	})
}
