package metrics

import (
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var t0 = time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC)

func trades(pls ...float64) []Trade {
	out := make([]Trade, len(pls))
	for i, pl := range pls {
		out[i] = Trade{ProfitLoss: pl, ExitTime: t0.Add(time.Duration(i) * time.Hour)}
	}
	return out
}

func curve(equity ...float64) []EquityPoint {
	var b CurveBuilder
	for i, e := range equity {
		b.Add(t0.Add(time.Duration(i)*time.Hour), e)
	}
	return b.Points()
}

func assertFinite(t *testing.T, p Performance) {
	t.Helper()
	for name, v := range map[string]float64{
		"WinRate": p.WinRate, "ProfitFactor": p.ProfitFactor, "Sharpe": p.SharpeRatio,
		"Sortino": p.SortinoRatio, "Calmar": p.CalmarRatio, "Kelly": p.KellyCriterion,
		"Recovery": p.RecoveryFactor, "MaxDD": p.MaxDrawdown, "Expectancy": p.Expectancy,
	} {
		assert.False(t, math.IsNaN(v) || math.IsInf(v, 0), "%s = %v", name, v)
	}
}

func TestCalculateEmpty(t *testing.T) {
	t.Parallel()

	p := Calculate(nil, nil, Options{})
	assert.Equal(t, Performance{}, p)

	p = Calculate(nil, curve(100_000), Options{})
	assert.Zero(t, p.WinRate)
	assert.Zero(t, p.ProfitFactor)
	assert.Zero(t, p.SharpeRatio)
	assertFinite(t, p)
}

func TestCalculateMixed(t *testing.T) {
	t.Parallel()

	tr := trades(200, -100, 300, -100, 0)
	eq := curve(10_000, 10_200, 10_100, 10_400, 10_300, 10_300)
	p := Calculate(tr, eq, Options{})

	assert.Equal(t, 5, p.TotalTrades)
	assert.Equal(t, 2, p.WinningTrades)
	assert.Equal(t, 2, p.LosingTrades)
	assert.InDelta(t, 40.0, p.WinRate, 1e-9)
	assert.InDelta(t, 500.0, p.GrossProfit, 1e-9)
	assert.InDelta(t, 200.0, p.GrossLoss, 1e-9)
	assert.InDelta(t, 300.0, p.NetProfit, 1e-9)
	assert.InDelta(t, 2.5, p.ProfitFactor, 1e-9)
	assert.InDelta(t, 60.0, p.Expectancy, 1e-9)
	assert.InDelta(t, 250.0, p.AverageWin, 1e-9)
	assert.InDelta(t, -100.0, p.AverageLoss, 1e-9)
	assert.InDelta(t, 300.0, p.LargestWin, 1e-9)
	assert.InDelta(t, -100.0, p.LargestLoss, 1e-9)
	assert.InDelta(t, 3.0, p.TotalReturn, 1e-9)

	// peak 10,200 -> 10,100
	assert.InDelta(t, 100.0/10_200*100, p.MaxDrawdown, 1e-9)
	assert.Equal(t, 1, p.MaxDrawdownDuration)
	assert.InDelta(t, p.TotalReturn/p.MaxDrawdown, p.RecoveryFactor, 1e-9)

	// kelly: (0.4*250 - 0.4*100)/250
	assert.InDelta(t, 0.24, p.KellyCriterion, 1e-9)
	assert.Greater(t, p.SharpeRatio, 0.0)
	assert.Greater(t, p.SortinoRatio, 0.0)
	assertFinite(t, p)
}

func TestCalculateDegenerate(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name   string
		trades []Trade
		curve  []EquityPoint
		check  func(t *testing.T, p Performance)
	}{
		{
			name:   "single winning trade",
			trades: trades(50),
			curve:  curve(1000, 1050),
			check: func(t *testing.T, p Performance) {
				assert.Equal(t, 100.0, p.WinRate)
				assert.Equal(t, ProfitFactorCap, p.ProfitFactor)
				assert.Zero(t, p.SharpeRatio, "one return has no deviation")
				assert.Zero(t, p.RecoveryFactor, "no drawdown")
				assert.InDelta(t, 1.0, p.KellyCriterion, 1e-9)
			},
		},
		{
			name:   "all winning",
			trades: trades(10, 20, 30),
			curve:  curve(1000, 1010, 1030, 1060),
			check: func(t *testing.T, p Performance) {
				assert.Equal(t, ProfitFactorCap, p.ProfitFactor)
				assert.Zero(t, p.MaxDrawdown)
				assert.Zero(t, p.SortinoRatio, "no downside returns")
				assert.Greater(t, p.SharpeRatio, 0.0)
			},
		},
		{
			name:   "all losing",
			trades: trades(-10, -20),
			curve:  curve(1000, 990, 970),
			check: func(t *testing.T, p Performance) {
				assert.Zero(t, p.WinRate)
				assert.Zero(t, p.ProfitFactor)
				assert.Zero(t, p.KellyCriterion, "no wins")
				assert.InDelta(t, 3.0, p.MaxDrawdown, 1e-9)
				assert.Equal(t, 2, p.MaxDrawdownDuration)
				assert.Less(t, p.RecoveryFactor, 0.0)
			},
		},
		{
			name:   "flat equity",
			trades: trades(0, 0),
			curve:  curve(1000, 1000, 1000),
			check: func(t *testing.T, p Performance) {
				assert.Zero(t, p.WinRate)
				assert.Zero(t, p.SharpeRatio)
				assert.Zero(t, p.SortinoRatio)
			},
		},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			p := Calculate(tt.trades, tt.curve, Options{})
			assertFinite(t, p)
			assert.GreaterOrEqual(t, p.WinRate, 0.0)
			assert.LessOrEqual(t, p.WinRate, 100.0)
			assert.GreaterOrEqual(t, p.ProfitFactor, 0.0)
			tt.check(t, p)
		})
	}
}

func TestProfitFactor(t *testing.T) {
	t.Parallel()

	assert.Zero(t, ProfitFactor(0, 0))
	assert.Equal(t, ProfitFactorCap, ProfitFactor(10, 0))
	assert.InDelta(t, 2.0, ProfitFactor(10, -5), 1e-12)
	assert.InDelta(t, 2.0, ProfitFactor(10, 5), 1e-12)
	assert.Equal(t, ProfitFactorCap, ProfitFactor(1e9, 1))
}

func TestSharpeAndSortino(t *testing.T) {
	t.Parallel()

	rets := []float64{0.01, -0.005, 0.02, -0.01, 0.015}
	m, sd := Mean(rets), StdDev(rets)
	want := (m * 252) / (sd * math.Sqrt(252))
	assert.InDelta(t, want, Sharpe(rets, Options{}), 1e-9)

	// risk free reduces the ratio
	assert.Less(t, Sharpe(rets, Options{RiskFreeRate: 0.05}), want)

	// downside deviation over all five periods: sqrt((0.005² + 0.01²) / 5) = 0.005
	dd := math.Sqrt((0.005*0.005+0.01*0.01)/5) * math.Sqrt(252)
	assert.InDelta(t, m*252/dd, Sortino(rets, Options{}), 1e-9)
	assert.InDelta(t, 19.049409439665, Sortino(rets, Options{}), 1e-9)
	assert.Zero(t, Sortino([]float64{0.01, 0.02}, Options{}))

	// custom annualization
	assert.InDelta(t, (m*12)/(sd*math.Sqrt(12)), Sharpe(rets, Options{PeriodsPerYear: 12}), 1e-9)

	assert.Zero(t, Sharpe([]float64{0.01}, Options{}))
	assert.Zero(t, Sharpe([]float64{0.01, 0.01}, Options{}))
}

func TestEquityCurveDrawdownBounds(t *testing.T) {
	t.Parallel()

	pts := curve(100, 120, 90, 130, 65, 70, 140)
	maxSoFar := 0.0
	peak := 0.0
	for _, pt := range pts {
		peak = math.Max(peak, pt.Equity)
		assert.InDelta(t, (peak-pt.Equity)/peak*100, pt.DrawdownPct, 1e-9)
		assert.GreaterOrEqual(t, pt.DrawdownPct, 0.0)
		assert.LessOrEqual(t, pt.DrawdownPct, 100.0)
		maxSoFar = math.Max(maxSoFar, pt.DrawdownPct)
	}
	dd := MaxDrawdown(pts)
	assert.InDelta(t, 50.0, dd.Pct, 1e-9)
	assert.Equal(t, maxSoFar, dd.Pct)
	assert.Equal(t, 1, dd.Duration)
	assert.Zero(t, dd.Current)
}

func TestStats(t *testing.T) {
	t.Parallel()

	assert.Equal(t, []float64{0.1, -0.5}, roundAll(Returns([]float64{10, 11, 5.5})))
	assert.Nil(t, Returns([]float64{1}))
	assert.Len(t, Returns([]float64{0, 1, 2}), 1, "zero base skipped")

	assert.Zero(t, Mean(nil))
	assert.Zero(t, StdDev([]float64{3}))
	assert.InDelta(t, 1.0, StdDev([]float64{1, 2, 3}), 1e-12)

	a := []float64{1, 2, 3, 4}
	assert.InDelta(t, 1.0, Correlation(a, []float64{2, 4, 6, 8}), 1e-12)
	assert.InDelta(t, -1.0, Correlation(a, []float64{8, 6, 4, 2}), 1e-12)
	assert.Zero(t, Correlation(a, []float64{1, 1, 1, 1}))
	// tails are aligned
	assert.InDelta(t, 1.0, Correlation([]float64{9, 9, 1, 2, 3}, []float64{1, 2, 3}), 1e-12)

	xs := []float64{5, 1, 4, 2, 3}
	assert.Equal(t, 1.0, Quantile(xs, 0))
	assert.Equal(t, 5.0, Quantile(xs, 1))
	assert.Equal(t, 3.0, Quantile(xs, 0.5))
	assert.InDelta(t, 1.2, Quantile(xs, 0.05), 1e-12)
	assert.Equal(t, []float64{5, 1, 4, 2, 3}, xs, "input untouched")
}

func TestDrawdownOfBaseline(t *testing.T) {
	t.Parallel()

	dd := DrawdownOf([]float64{80_000}, 100_000)
	assert.InDelta(t, 20.0, dd.Current, 1e-9)
	assert.InDelta(t, 20.0, dd.Pct, 1e-9)
	assert.Equal(t, 1, dd.Since)

	dd = DrawdownOf(nil, 100)
	require.Zero(t, dd.Pct)
}

func roundAll(xs []float64) []float64 {
	out := make([]float64, len(xs))
	for i, x := range xs {
		out[i] = math.Round(x*1e9) / 1e9
	}
	return out
}
