package metrics

import (
	"errors"
	"math"
	"sort"
	"time"

	"github.com/rustyeddy/tradelab/market"
)

var (
	ErrNoEquity  = errors.New("portfolio equity must be positive")
	ErrNoHistory = errors.New("portfolio has no equity history")
)

// DefaultConfidence is the VaR/ES confidence level.
const DefaultConfidence = 0.95

// Holding is one open position in a live portfolio.
type Holding struct {
	Symbol     string      `json:"symbol" yaml:"symbol"`
	Side       market.Side `json:"side" yaml:"side"`
	Quantity   float64     `json:"quantity" yaml:"quantity"`
	EntryPrice float64     `json:"entry_price" yaml:"entry_price"`
	Price      float64     `json:"price" yaml:"price"`
}

// Notional is |quantity * price| in the quote currency.
func (h Holding) Notional() float64 {
	return math.Abs(h.Quantity * h.Price)
}

// PortfolioInput is a read-only snapshot of a live portfolio.
type PortfolioInput struct {
	Time     time.Time `json:"time" yaml:"time"`
	Equity   float64   `json:"equity" yaml:"equity"`
	Baseline float64   `json:"baseline" yaml:"baseline"` // starting capital, seeds the drawdown peak
	DailyPnL float64   `json:"daily_pnl" yaml:"daily_pnl"`

	Holdings []Holding `json:"holdings" yaml:"holdings"`

	// oldest first
	EquityHistory    []float64            `json:"equity_history" yaml:"equity_history"`
	Returns          map[string][]float64 `json:"returns" yaml:"returns"` // per-symbol period returns
	BenchmarkReturns []float64            `json:"benchmark_returns" yaml:"benchmark_returns"`
}

type RiskOptions struct {
	Confidence     float64 // 0 means DefaultConfidence
	PeriodsPerYear int     // 0 means DefaultPeriodsPerYear
}

type CorrelationMatrix struct {
	Symbols []string    `json:"symbols"`
	Matrix  [][]float64 `json:"matrix"`
}

// MaxOffDiagonal returns the largest |r| between two different symbols and
// the pair that produced it.
func (c CorrelationMatrix) MaxOffDiagonal() (r float64, a, b string) {
	for i := range c.Matrix {
		for j := i + 1; j < len(c.Matrix[i]); j++ {
			if v := math.Abs(c.Matrix[i][j]); v > r {
				r, a, b = v, c.Symbols[i], c.Symbols[j]
			}
		}
	}
	return r, a, b
}

// Of returns the correlation of two symbols, 0 when either is unknown.
func (c CorrelationMatrix) Of(a, b string) float64 {
	ia, ib := -1, -1
	for i, s := range c.Symbols {
		if s == a {
			ia = i
		}
		if s == b {
			ib = i
		}
	}
	if ia < 0 || ib < 0 {
		return 0
	}
	return c.Matrix[ia][ib]
}

type DrawdownStats struct {
	Current       float64 `json:"current"`
	Maximum       float64 `json:"maximum"`
	DurationTicks int     `json:"duration_ticks"`
}

type Exposure struct {
	Gross       float64            `json:"gross"`
	Leverage    float64            `json:"leverage"`
	PerCurrency map[string]float64 `json:"per_currency"` // |net notional| / equity
}

// PortfolioRiskMetrics is an immutable snapshot. Volatility and drawdowns
// are in percent; VaR and expected shortfall are currency amounts.
type PortfolioRiskMetrics struct {
	Time              time.Time         `json:"time"`
	Equity            float64           `json:"equity"`
	Volatility        float64           `json:"volatility"`
	ValueAtRisk       float64           `json:"value_at_risk"`
	ExpectedShortfall float64           `json:"expected_shortfall"`
	Beta              float64           `json:"beta"`
	Correlation       CorrelationMatrix `json:"correlation"`
	Drawdown          DrawdownStats     `json:"drawdown"`
	Exposure          Exposure          `json:"exposure"`
	DailyPnL          float64           `json:"daily_pnl"`
	OpenPositions     int               `json:"open_positions"`
	TradingReturn     float64           `json:"trading_return"` // percent over the equity history
}

// PortfolioRisk recomputes every risk metric from p.
func PortfolioRisk(p PortfolioInput, opts RiskOptions) (PortfolioRiskMetrics, error) {
	if p.Equity <= 0 || math.IsNaN(p.Equity) {
		return PortfolioRiskMetrics{}, ErrNoEquity
	}
	if len(p.EquityHistory) == 0 && p.Baseline <= 0 {
		return PortfolioRiskMetrics{}, ErrNoHistory
	}
	conf := opts.Confidence
	if conf <= 0 || conf >= 1 {
		conf = DefaultConfidence
	}
	periods := Options{PeriodsPerYear: opts.PeriodsPerYear}.periods()

	// with only a baseline the current equity is the whole history
	history := p.EquityHistory
	start := p.Baseline
	if len(history) == 0 {
		history = []float64{p.Equity}
	} else {
		start = history[0]
		if history[len(history)-1] != p.Equity {
			history = append(append([]float64(nil), history...), p.Equity)
		}
	}
	rets := Returns(history)

	m := PortfolioRiskMetrics{
		Time:          p.Time,
		Equity:        p.Equity,
		Volatility:    StdDev(rets) * math.Sqrt(periods) * 100,
		DailyPnL:      p.DailyPnL,
		OpenPositions: len(p.Holdings),
	}
	if start > 0 {
		m.TradingReturn = (p.Equity - start) / start * 100
	}

	if len(rets) >= 2 {
		q := Quantile(rets, 1-conf)
		m.ValueAtRisk = math.Max(0, -q) * p.Equity

		var tail []float64
		for _, r := range rets {
			if r <= q {
				tail = append(tail, r)
			}
		}
		m.ExpectedShortfall = math.Max(m.ValueAtRisk/p.Equity, -Mean(tail)) * p.Equity
	}

	pr, br := alignTails(rets, p.BenchmarkReturns)
	if v := Covariance(br, br); v > 0 {
		m.Beta = Covariance(pr, br) / v
	}

	m.Correlation = correlationMatrix(p.Returns)

	dd := DrawdownOf(history, p.Baseline)
	m.Drawdown = DrawdownStats{Current: dd.Current, Maximum: dd.Pct, DurationTicks: dd.Since}

	m.Exposure = ExposureOf(p.Holdings, p.Equity)
	return m, nil
}

func correlationMatrix(returns map[string][]float64) CorrelationMatrix {
	syms := make([]string, 0, len(returns))
	for s := range returns {
		syms = append(syms, s)
	}
	sort.Strings(syms)

	mat := make([][]float64, len(syms))
	for i := range syms {
		mat[i] = make([]float64, len(syms))
		mat[i][i] = 1
	}
	for i := range syms {
		for j := i + 1; j < len(syms); j++ {
			r := Correlation(returns[syms[i]], returns[syms[j]])
			mat[i][j], mat[j][i] = r, r
		}
	}
	return CorrelationMatrix{Symbols: syms, Matrix: mat}
}

// ExposureOf nets notional per currency: long EUR_USD is long EUR and short
// USD. Symbols that are not currency pairs are their own bucket. Notional
// is taken in the quote currency without conversion.
func ExposureOf(holdings []Holding, equity float64) Exposure {
	if equity <= 0 {
		return Exposure{PerCurrency: map[string]float64{}}
	}
	net := map[string]float64{}
	var gross float64
	for _, h := range holdings {
		n := h.Notional()
		gross += n
		side := float64(h.Side)
		if side == 0 {
			side = 1
		}
		meta, ok := market.Lookup(h.Symbol)
		if !ok {
			net[meta.Name] += side * n
			continue
		}
		net[meta.BaseCurrency] += side * n
		net[meta.QuoteCurrency] -= side * n
	}

	ex := Exposure{Gross: gross, Leverage: gross / equity, PerCurrency: make(map[string]float64, len(net))}
	for ccy, v := range net {
		ex.PerCurrency[ccy] = math.Abs(v) / equity
	}
	return ex
}
