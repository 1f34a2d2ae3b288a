package market

import (
	"math"
	"math/rand"
	"time"
)

// WalkConfig describes a synthetic geometric random walk.
type WalkConfig struct {
	Symbol     string
	Start      time.Time
	Step       time.Duration
	Count      int
	StartPrice float64
	Volatility float64 // per-step standard deviation of log returns
	Drift      float64 // per-step mean log return
	SpreadPips float64
	Seed       int64
}

// RandomWalk generates Count ticks. The same config always yields the same
// ticks.
func RandomWalk(cfg WalkConfig) []Tick {
	if cfg.Count <= 0 {
		return nil
	}
	if cfg.Step <= 0 {
		cfg.Step = time.Minute
	}
	rng := rand.New(rand.NewSource(cfg.Seed))
	half := cfg.SpreadPips * PipSize(cfg.Symbol) / 2

	out := make([]Tick, cfg.Count)
	price := cfg.StartPrice
	for i := range out {
		if i > 0 {
			price *= math.Exp(cfg.Drift + cfg.Volatility*rng.NormFloat64())
		}
		out[i] = Tick{
			Symbol: cfg.Symbol,
			Time:   cfg.Start.Add(time.Duration(i) * cfg.Step),
			Price:  price,
			Bid:    price - half,
			Ask:    price + half,
			Volume: float64(100 + rng.Intn(900)),
		}
	}
	return out
}

// FromPrices builds ticks with zero spread, one per step.
func FromPrices(symbol string, start time.Time, step time.Duration, prices ...float64) []Tick {
	out := make([]Tick, len(prices))
	for i, p := range prices {
		out[i] = Tick{
			Symbol: symbol,
			Time:   start.Add(time.Duration(i) * step),
			Price:  p,
			Bid:    p,
			Ask:    p,
		}
	}
	return out
}
