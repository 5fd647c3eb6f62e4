package strategies

import (
	"context"

	"github.com/rustyeddy/backtester/market"
	"github.com/rustyeddy/backtester/sim"
)

// Noop never trades. Its runs give the flat baseline of a portfolio.
type Noop struct {
	history sim.ActionLog
}

func (*Noop) Name() string { return "noop" }

func (*Noop) OnBar(ctx context.Context, p *sim.Portfolio, bar market.Bar) error {
	return ctx.Err()
}

func (n *Noop) History() *sim.ActionLog { return &n.history }
