package optimize

import (
	"fmt"
	"math"
	"sort"
	"strings"

	"github.com/rustyeddy/tradelab/backtest"
)

// FitnessFunc scores a backtest; higher is better. NaN is treated as a
// failed candidate.
type FitnessFunc func(*backtest.Result) float64

var (
	Sharpe FitnessFunc = func(r *backtest.Result) float64 {
		return r.Performance.SharpeRatio
	}

	Sortino FitnessFunc = func(r *backtest.Result) float64 {
		return r.Performance.SortinoRatio
	}

	NetProfit FitnessFunc = func(r *backtest.Result) float64 {
		return r.Performance.NetProfit
	}

	ProfitFactor FitnessFunc = func(r *backtest.Result) float64 {
		return r.Performance.ProfitFactor
	}

	// Balanced weighs Sharpe 40%, win rate 30% and Calmar 30%. Negative
	// ratios count as zero.
	Balanced FitnessFunc = func(r *backtest.Result) float64 {
		p := r.Performance
		return 0.4*math.Max(0, p.SharpeRatio) +
			0.3*p.WinRate/100 +
			0.3*math.Max(0, p.CalmarRatio)
	}
)

var fitnessByName = map[string]FitnessFunc{
	"sharpe":        Sharpe,
	"sortino":       Sortino,
	"net_profit":    NetProfit,
	"profit_factor": ProfitFactor,
	"balanced":      Balanced,
}

// FitnessByName looks up a predefined fitness function, ignoring case.
func FitnessByName(name string) (FitnessFunc, error) {
	if f, ok := fitnessByName[strings.ToLower(strings.TrimSpace(name))]; ok {
		return f, nil
	}
	return nil, fmt.Errorf("unknown fitness %q, want one of %s", name, strings.Join(FitnessNames(), ", "))
}

func FitnessNames() []string {
	names := make([]string, 0, len(fitnessByName))
	for n := range fitnessByName {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}
