package risk

import (
	"math"

	"github.com/rustyeddy/tradelab/market"
	"github.com/rustyeddy/tradelab/metrics"
)

// VolatilityScaler shrinks positions in instruments whose annualized
// volatility is above Target (percent). It never scales up.
type VolatilityScaler struct {
	Target         float64
	PeriodsPerYear int
}

func (v VolatilityScaler) Scale(symbol string, p Portfolio) float64 {
	rets := returnsFor(p, symbol)
	if v.Target <= 0 || len(rets) < 2 {
		return 1
	}
	periods := v.PeriodsPerYear
	if periods <= 0 {
		periods = metrics.DefaultPeriodsPerYear
	}
	actual := metrics.StdDev(rets) * math.Sqrt(float64(periods)) * 100
	if actual <= 0 {
		return 1
	}
	return math.Min(1, v.Target/actual)
}

// CorrelationScaler scales by 1 - the largest |r| between symbol and any
// instrument already held, never below Floor.
type CorrelationScaler struct {
	Floor float64
}

func (c CorrelationScaler) Scale(symbol string, p Portfolio) float64 {
	rets := returnsFor(p, symbol)
	if len(rets) < 2 {
		return 1
	}
	name := market.NormalizeSymbol(symbol)
	var worst float64
	for _, h := range p.Holdings {
		if market.NormalizeSymbol(h.Symbol) == name {
			continue
		}
		if r := math.Abs(metrics.Correlation(rets, returnsFor(p, h.Symbol))); r > worst {
			worst = r
		}
	}
	return math.Max(c.Floor, 1-worst)
}

func returnsFor(p Portfolio, symbol string) []float64 {
	if r, ok := p.Returns[symbol]; ok {
		return r
	}
	name := market.NormalizeSymbol(symbol)
	for k, r := range p.Returns {
		if market.NormalizeSymbol(k) == name {
			return r
		}
	}
	return nil
}
