package monitor

import (
	"math"

	"github.com/rustyeddy/tradelab/metrics"
)

type MarketCondition string

const (
	Normal   MarketCondition = "normal"
	Volatile MarketCondition = "volatile"
	Crisis   MarketCondition = "crisis"
)

// Adjustment factors per market condition.
var conditionFactor = map[MarketCondition]float64{
	Normal:   1.0,
	Volatile: 0.6,
	Crisis:   0.25,
}

const (
	losingFactor = 0.9
	minFactor    = 0.05
)

// Thresholds classify the market. Volatility is annualized percent and
// drawdown is percent from peak.
type Thresholds struct {
	VolatileVolatility float64 `json:"volatile_volatility" yaml:"volatile_volatility"`
	CrisisVolatility   float64 `json:"crisis_volatility" yaml:"crisis_volatility"`
	VolatileDrawdown   float64 `json:"volatile_drawdown" yaml:"volatile_drawdown"`
	CrisisDrawdown     float64 `json:"crisis_drawdown" yaml:"crisis_drawdown"`
}

func DefaultThresholds() Thresholds {
	return Thresholds{
		VolatileVolatility: 20,
		CrisisVolatility:   40,
		VolatileDrawdown:   5,
		CrisisDrawdown:     15,
	}
}

// DynamicRiskParams are derived on every cycle. AdjustmentFactor is in
// (0,1] and multiplies position sizes.
type DynamicRiskParams struct {
	MarketVolatility   float64         `json:"market_volatility"`
	TradingPerformance float64         `json:"trading_performance"`
	Condition          MarketCondition `json:"condition"`
	AdjustmentFactor   float64         `json:"adjustment_factor"`
}

func defaultParams() DynamicRiskParams {
	return DynamicRiskParams{Condition: Normal, AdjustmentFactor: 1}
}

// Classify picks the worst condition whose volatility or drawdown threshold
// is reached. Zero thresholds are ignored.
func (t Thresholds) Classify(vol, dd float64) MarketCondition {
	reached := func(v, th float64) bool { return th > 0 && v >= th }
	switch {
	case reached(vol, t.CrisisVolatility) || reached(dd, t.CrisisDrawdown):
		return Crisis
	case reached(vol, t.VolatileVolatility) || reached(dd, t.VolatileDrawdown):
		return Volatile
	}
	return Normal
}

// DeriveParams computes the dynamic parameters for m.
func DeriveParams(t Thresholds, m metrics.PortfolioRiskMetrics) DynamicRiskParams {
	cond := t.Classify(m.Volatility, m.Drawdown.Current)
	f := conditionFactor[cond]
	if m.TradingReturn < 0 {
		f *= losingFactor
	}
	f = math.Max(minFactor, math.Min(1, f))
	return DynamicRiskParams{
		MarketVolatility:   m.Volatility,
		TradingPerformance: m.TradingReturn,
		Condition:          cond,
		AdjustmentFactor:   f,
	}
}
