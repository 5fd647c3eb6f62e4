package backtest

import (
	"context"
	"fmt"
	"log/slog"
	"runtime"

	"github.com/rustyeddy/backtester/internal/id"
	"github.com/rustyeddy/backtester/journal"
	"github.com/rustyeddy/backtester/market"
	"github.com/rustyeddy/backtester/sim"
	"github.com/rustyeddy/backtester/strategies"
	"github.com/shopspring/decimal"
	"golang.org/x/sync/errgroup"
)

// Sweep runs one strategy over the same bars with several parameter sets.
// Every run owns its portfolio and strategy instance; only the bars and
// the journal are shared.
type Sweep struct {
	Bars           []market.Bar
	Strategy       string
	Params         []strategies.Params
	InitialCapital decimal.Decimal
	Fill           sim.FillModel
	Journal        journal.Journal // optional, must be safe for concurrent use
	Options        RunnerOptions
	Concurrency    int // 0 means GOMAXPROCS
	Logger         *slog.Logger
}

// Run executes the sweep. Results keep the order of Params. The first
// failing run cancels the rest.
func (s *Sweep) Run(ctx context.Context) ([]Result, error) {
	if len(s.Params) == 0 {
		return nil, fmt.Errorf("sweep: no parameter sets")
	}
	logger := s.Logger
	if logger == nil {
		logger = slog.Default()
	}

	limit := s.Concurrency
	if limit <= 0 {
		limit = runtime.GOMAXPROCS(0)
	}

	results := make([]Result, len(s.Params))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(limit)

	for i, params := range s.Params {
		g.Go(func() error {
			if params.Logger == nil {
				params.Logger = logger
			}
			strat, err := strategies.StrategyByName(s.Strategy, params)
			if err != nil {
				return fmt.Errorf("sweep case %d: %w", i, err)
			}

			opts := s.Options
			opts.RunID = id.New()
			opts.Config = params

			r := &Runner{
				Feed:      market.NewSliceFeed(s.Bars),
				Strategy:  strat,
				Portfolio: sim.NewPortfolio(s.InitialCapital, sim.WithFillModel(s.Fill), sim.WithLogger(logger)),
				Journal:   s.Journal,
				Options:   opts,
				Logger:    logger,
			}
			res, err := r.Run(gctx)
			if err != nil {
				return fmt.Errorf("sweep case %d: %w", i, err)
			}
			results[i] = res
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}
	return results, nil
}
