package risk

import (
	"math"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// DefaultRiskFraction is the share of equity put at risk per trade when
// SizerConfig leaves it unset.
const DefaultRiskFraction = 0.01

type SizerConfig struct {
	BaseRiskFraction float64 `json:"base_risk_fraction" yaml:"base_risk_fraction"` // 0.01 = 1% of equity
	MaxPositionSize  float64 `json:"max_position_size" yaml:"max_position_size"`   // units, 0 = no cap
	MaxLeverage      float64 `json:"max_leverage" yaml:"max_leverage"`             // 0 = unlimited
	MaxPositions     int     `json:"max_positions" yaml:"max_positions"`           // 0 = unlimited
	LotStep          float64 `json:"lot_step" yaml:"lot_step"`                     // round down to a multiple, 0 = none
}

// AdjustmentSource supplies a multiplier in (0,1] applied to every size.
// The risk monitor implements it.
type AdjustmentSource interface {
	AdjustmentFactor() float64
}

// Scaler returns a multiplier for a new position in symbol. 1 leaves the
// size alone.
type Scaler interface {
	Scale(symbol string, p Portfolio) float64
}

type ScalerFunc func(symbol string, p Portfolio) float64

func (f ScalerFunc) Scale(symbol string, p Portfolio) float64 { return f(symbol, p) }

type SizerOption func(*Sizer)

func WithScalers(sc ...Scaler) SizerOption {
	return func(s *Sizer) { s.scalers = append(s.scalers, sc...) }
}

func WithAdjustment(src AdjustmentSource) SizerOption {
	return func(s *Sizer) { s.adjust = src }
}

func WithSizerLogger(l *zap.Logger) SizerOption {
	return func(s *Sizer) {
		if l != nil {
			s.log = l
		}
	}
}

// Sizer turns a risk budget and a stop distance into a quantity. It holds
// no mutable state and is safe for concurrent use.
type Sizer struct {
	cfg     SizerConfig
	scalers []Scaler
	adjust  AdjustmentSource
	log     *zap.Logger
}

func NewSizer(cfg SizerConfig, opts ...SizerOption) *Sizer {
	if cfg.BaseRiskFraction <= 0 {
		cfg.BaseRiskFraction = DefaultRiskFraction
	}
	s := &Sizer{cfg: cfg, log: zap.NewNop()}
	for _, o := range opts {
		o(s)
	}
	return s
}

func (s *Sizer) Config() SizerConfig { return s.cfg }

// Size returns the quantity to trade, or 0 when the trade must not be
// placed: no stop distance, no equity, the position count is at its limit,
// or the new notional would push leverage over the limit. The returned size
// is either the full computed (possibly capped) quantity or 0.
func (s *Sizer) Size(symbol string, entry, stop float64, p Portfolio) float64 {
	dist := math.Abs(entry - stop)
	if dist == 0 || math.IsNaN(dist) || entry <= 0 || p.Equity <= 0 {
		return 0
	}
	if s.cfg.MaxPositions > 0 && len(p.Holdings) >= s.cfg.MaxPositions {
		s.log.Debug("size rejected: max positions",
			zap.String("symbol", symbol), zap.Int("open", len(p.Holdings)))
		return 0
	}

	qty := p.Equity * s.cfg.BaseRiskFraction / dist
	for _, sc := range s.scalers {
		f := sc.Scale(symbol, p)
		if !(f > 0) {
			return 0
		}
		qty *= f
	}
	if s.adjust != nil {
		f := s.adjust.AdjustmentFactor()
		if !(f > 0) {
			return 0
		}
		qty *= math.Min(f, 1)
	}

	if s.cfg.MaxPositionSize > 0 && qty > s.cfg.MaxPositionSize {
		qty = s.cfg.MaxPositionSize
	}
	if s.cfg.LotStep > 0 {
		qty = RoundDown(qty, s.cfg.LotStep)
	}
	if !(qty > 0) || math.IsInf(qty, 0) {
		return 0
	}

	if s.cfg.MaxLeverage > 0 {
		gross := qty * entry
		for _, h := range p.Holdings {
			gross += h.Notional()
		}
		if lev := gross / p.Equity; lev > s.cfg.MaxLeverage {
			s.log.Debug("size rejected: leverage",
				zap.String("symbol", symbol), zap.Float64("leverage", lev), zap.Float64("max", s.cfg.MaxLeverage))
			return 0
		}
	}
	return qty
}

// RoundDown truncates qty to a multiple of step.
func RoundDown(qty, step float64) float64 {
	if step <= 0 {
		return qty
	}
	d := decimal.NewFromFloat(step)
	return decimal.NewFromFloat(qty).Div(d).Floor().Mul(d).InexactFloat64()
}
