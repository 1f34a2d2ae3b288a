// Package metrics derives performance and risk ratios from a trade ledger
// and an equity curve. Every function is pure: no state, no I/O, and
// degenerate input yields documented neutral values instead of NaN, Inf or
// panics.
package metrics

import (
	"math"
	"time"

	"github.com/rustyeddy/tradelab/market"
)

// ProfitFactorCap is reported as the profit factor when there are profits
// but no losses.
const ProfitFactorCap = 999.99

// DefaultPeriodsPerYear is used to annualize per-period returns.
const DefaultPeriodsPerYear = 252

// Trade is a closed position. It is never modified once created.
type Trade struct {
	ID         string      `json:"id"`
	Symbol     string      `json:"symbol"`
	Side       market.Side `json:"side"`
	EntryPrice float64     `json:"entry_price"`
	ExitPrice  float64     `json:"exit_price"`
	EntryTime  time.Time   `json:"entry_time"`
	ExitTime   time.Time   `json:"exit_time"`
	Quantity   float64     `json:"quantity"`
	ProfitLoss float64     `json:"profit_loss"`
	Pips       float64     `json:"pips"`
	StopLoss   float64     `json:"stop_loss"`
	TakeProfit float64     `json:"take_profit"`
	Reason     string      `json:"reason"`
}

// EquityPoint is the account value after a realized trade. DrawdownPct is
// the decline from the running peak, in percent.
type EquityPoint struct {
	Time        time.Time `json:"time"`
	Equity      float64   `json:"equity"`
	DrawdownPct float64   `json:"drawdown_pct"`
}

type Options struct {
	RiskFreeRate   float64 // annual, as a fraction (0.02 = 2%)
	PeriodsPerYear int     // 0 means DefaultPeriodsPerYear
}

func (o Options) periods() float64 {
	if o.PeriodsPerYear <= 0 {
		return DefaultPeriodsPerYear
	}
	return float64(o.PeriodsPerYear)
}

// Performance summarizes a backtest. Percent fields are in percent.
type Performance struct {
	TotalTrades   int `json:"total_trades"`
	WinningTrades int `json:"winning_trades"`
	LosingTrades  int `json:"losing_trades"`

	WinRate      float64 `json:"win_rate"`
	GrossProfit  float64 `json:"gross_profit"`
	GrossLoss    float64 `json:"gross_loss"` // absolute value
	NetProfit    float64 `json:"net_profit"`
	ProfitFactor float64 `json:"profit_factor"`
	Expectancy   float64 `json:"expectancy"`

	AverageWin  float64 `json:"average_win"`
	AverageLoss float64 `json:"average_loss"` // negative or zero
	LargestWin  float64 `json:"largest_win"`
	LargestLoss float64 `json:"largest_loss"` // negative or zero

	TotalReturn         float64 `json:"total_return"`
	MaxDrawdown         float64 `json:"max_drawdown"`
	MaxDrawdownDuration int     `json:"max_drawdown_duration"`

	SharpeRatio    float64 `json:"sharpe_ratio"`
	SortinoRatio   float64 `json:"sortino_ratio"`
	CalmarRatio    float64 `json:"calmar_ratio"`
	KellyCriterion float64 `json:"kelly_criterion"`
	RecoveryFactor float64 `json:"recovery_factor"`
}

// Calculate computes every Performance field from trades and curve.
func Calculate(trades []Trade, curve []EquityPoint, opts Options) Performance {
	p := tradeStats(trades)

	dd := MaxDrawdown(curve)
	p.MaxDrawdown = dd.Pct
	p.MaxDrawdownDuration = dd.Duration
	p.TotalReturn = TotalReturn(curve)

	equity := make([]float64, len(curve))
	for i, pt := range curve {
		equity[i] = pt.Equity
	}
	rets := Returns(equity)
	p.SharpeRatio = Sharpe(rets, opts)
	p.SortinoRatio = Sortino(rets, opts)

	if p.MaxDrawdown > 0 {
		p.RecoveryFactor = p.TotalReturn / p.MaxDrawdown
		if len(rets) > 0 {
			p.CalmarRatio = Mean(rets) * opts.periods() * 100 / p.MaxDrawdown
		}
	}
	p.KellyCriterion = Kelly(p)
	return p
}

func tradeStats(trades []Trade) Performance {
	var p Performance
	p.TotalTrades = len(trades)
	for _, t := range trades {
		pl := t.ProfitLoss
		switch {
		case pl > 0:
			p.WinningTrades++
			p.GrossProfit += pl
			p.LargestWin = math.Max(p.LargestWin, pl)
		case pl < 0:
			p.LosingTrades++
			p.GrossLoss += -pl
			p.LargestLoss = math.Min(p.LargestLoss, pl)
		}
	}
	p.NetProfit = p.GrossProfit - p.GrossLoss
	if p.TotalTrades == 0 {
		return p
	}

	p.WinRate = float64(p.WinningTrades) / float64(p.TotalTrades) * 100
	p.Expectancy = p.NetProfit / float64(p.TotalTrades)
	if p.WinningTrades > 0 {
		p.AverageWin = p.GrossProfit / float64(p.WinningTrades)
	}
	if p.LosingTrades > 0 {
		p.AverageLoss = -p.GrossLoss / float64(p.LosingTrades)
	}
	p.ProfitFactor = ProfitFactor(p.GrossProfit, p.GrossLoss)
	return p
}

// ProfitFactor is grossProfit/|grossLoss|; ProfitFactorCap when there are
// no losses and 0 when there is nothing at all.
func ProfitFactor(grossProfit, grossLoss float64) float64 {
	grossLoss = math.Abs(grossLoss)
	if grossLoss == 0 {
		if grossProfit > 0 {
			return ProfitFactorCap
		}
		return 0
	}
	return math.Min(grossProfit/grossLoss, ProfitFactorCap)
}

// Kelly returns (W*avgWin - L*|avgLoss|)/avgWin with W and L the win and
// loss rates as fractions. 0 when there are no wins.
func Kelly(p Performance) float64 {
	if p.TotalTrades == 0 || p.AverageWin <= 0 {
		return 0
	}
	w := float64(p.WinningTrades) / float64(p.TotalTrades)
	l := float64(p.LosingTrades) / float64(p.TotalTrades)
	return (w*p.AverageWin - l*math.Abs(p.AverageLoss)) / p.AverageWin
}

// TotalReturn is the percent change from the first to the last point.
func TotalReturn(curve []EquityPoint) float64 {
	if len(curve) < 2 || curve[0].Equity <= 0 {
		return 0
	}
	first, last := curve[0].Equity, curve[len(curve)-1].Equity
	return (last - first) / first * 100
}

// Sharpe is (annualized mean return - risk free) / annualized volatility.
// 0 with fewer than two returns or zero volatility.
func Sharpe(rets []float64, opts Options) float64 {
	if len(rets) < 2 {
		return 0
	}
	sd := StdDev(rets)
	if sd == 0 {
		return 0
	}
	n := opts.periods()
	return (Mean(rets)*n - opts.RiskFreeRate) / (sd * math.Sqrt(n))
}

// Sortino uses the Sharpe numerator over the annualized downside deviation.
// Returns above the risk free rate count as zero deviation, so the mean of
// squares is taken over every period. 0 when no return is below the risk
// free rate.
func Sortino(rets []float64, opts Options) float64 {
	if len(rets) < 2 {
		return 0
	}
	n := opts.periods()
	rf := opts.RiskFreeRate / n

	var sum float64
	var below bool
	for _, r := range rets {
		if x := r - rf; x < 0 {
			sum += x * x
			below = true
		}
	}
	if !below {
		return 0
	}
	dd := math.Sqrt(sum/float64(len(rets))) * math.Sqrt(n)
	if dd == 0 {
		return 0
	}
	return (Mean(rets)*n - opts.RiskFreeRate) / dd
}
