package cmd

import (
	"fmt"
	"time"

	"github.com/rustyeddy/tradelab/backtest"
	"github.com/rustyeddy/tradelab/market"
	"github.com/rustyeddy/tradelab/metrics"
	"github.com/rustyeddy/tradelab/risk"
	"github.com/rustyeddy/tradelab/strategy"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

// tickFlags selects the ticks and strategy a command works on.
type tickFlags struct {
	ticksPath string
	synthetic int
	seed      int64
	from, to  string
	preset    string
	symbol    string
}

func (f *tickFlags) register(c *cobra.Command) {
	c.Flags().StringVarP(&f.ticksPath, "ticks", "t", "", "tick CSV (time,symbol,bid,ask[,volume])")
	c.Flags().IntVar(&f.synthetic, "synthetic", 0, "use N random walk ticks instead of a CSV")
	c.Flags().Int64Var(&f.seed, "seed", 1, "random walk seed")
	c.Flags().StringVar(&f.from, "from", "", "first tick time (RFC3339 or YYYY-MM-DD)")
	c.Flags().StringVar(&f.to, "to", "", "last tick time, exclusive")
	c.Flags().StringVarP(&f.preset, "strategy", "s", "", "preset strategy name, overrides the config")
	c.Flags().StringVarP(&f.symbol, "symbol", "i", "", "symbol to trade, overrides the strategy")
}

func (f *tickFlags) strategy() (strategy.Config, error) {
	sc := cfg.Strategy
	if f.preset != "" {
		symbol := f.symbol
		if symbol == "" {
			symbol = sc.Symbol
		}
		p, err := strategy.ByName(f.preset, symbol)
		if err != nil {
			return strategy.Config{}, err
		}
		sc = p
	}
	if f.symbol != "" {
		sc.Symbol = f.symbol
	}
	return sc, sc.Validate()
}

func (f *tickFlags) ticks(symbol string) ([]market.Tick, error) {
	if f.synthetic > 0 {
		start := 100.0
		if isFX(symbol) {
			start = 1.1
		}
		return market.RandomWalk(market.WalkConfig{
			Symbol:     symbol,
			Start:      time.Now().UTC().Truncate(time.Hour).Add(-time.Duration(f.synthetic) * time.Minute),
			Step:       time.Minute,
			Count:      f.synthetic,
			StartPrice: start,
			Volatility: 0.001,
			Seed:       f.seed,
		}), nil
	}
	if f.ticksPath == "" {
		return nil, fmt.Errorf("either --ticks or --synthetic is required")
	}
	from, err := parseTime(f.from)
	if err != nil {
		return nil, err
	}
	to, err := parseTime(f.to)
	if err != nil {
		return nil, err
	}
	return market.LoadCSVTicks(f.ticksPath, from, to)
}

func isFX(symbol string) bool {
	_, ok := market.Lookup(symbol)
	return ok
}

// newEngine builds a backtest engine from the loaded config.
func newEngine(closeAtEnd bool, opts ...backtest.Option) *backtest.Engine {
	sizer := risk.NewSizer(cfg.Sizing, risk.WithSizerLogger(log))
	base := []backtest.Option{
		backtest.WithInitialCapital(cfg.Account.Balance),
		backtest.WithSizer(sizer),
		backtest.WithPolicy(cfg.Policy()),
		backtest.WithMetricsOptions(metrics.Options{RiskFreeRate: cfg.Account.RiskFreeRate}),
		backtest.WithCloseAtEnd(closeAtEnd),
		backtest.WithLogger(log),
	}
	return backtest.New(append(base, opts...)...)
}

func progressLogger(name string) backtest.ProgressFunc {
	return func(pct float64) {
		log.Debug("progress", zap.String("run", name), zap.Float64("pct", pct))
	}
}
