package monitor

import (
	"fmt"
	"sort"
	"time"

	"github.com/rustyeddy/tradelab/metrics"
	"github.com/rustyeddy/tradelab/risk"
)

type Severity string

const (
	Low      Severity = "low"
	Medium   Severity = "medium"
	High     Severity = "high"
	Critical Severity = "critical"
)

type Kind string

const (
	KindExposure    Kind = "exposure"
	KindVolatility  Kind = "volatility"
	KindCorrelation Kind = "correlation"
	KindDrawdown    Kind = "drawdown"
	KindSystem      Kind = "system" // a monitoring cycle failed
)

// Alert is an observation made during one cycle. Alerts are never updated
// or resolved; newer cycles simply add more.
type Alert struct {
	Severity  Severity  `json:"severity"`
	Kind      Kind      `json:"kind"`
	Message   string    `json:"message"`
	Threshold float64   `json:"threshold"`
	Value     float64   `json:"value"`
	Time      time.Time `json:"time"`
}

func (a Alert) String() string {
	return fmt.Sprintf("[%s] %s: %s", a.Severity, a.Kind, a.Message)
}

// SeverityFor grades how far value is over threshold.
func SeverityFor(value, threshold float64) Severity {
	if threshold <= 0 {
		return Critical
	}
	switch r := value / threshold; {
	case r < 1.25:
		return Low
	case r < 1.5:
		return Medium
	case r < 2:
		return High
	}
	return Critical
}

// CheckLimits compares m against every enabled limit and returns one alert
// per breach.
func CheckLimits(l risk.Limits, m metrics.PortfolioRiskMetrics, now time.Time) []Alert {
	var out []Alert
	breach := func(kind Kind, value, limit float64, format string, args ...any) {
		if limit <= 0 || !(value > limit) {
			return
		}
		out = append(out, Alert{
			Severity:  SeverityFor(value, limit),
			Kind:      kind,
			Message:   fmt.Sprintf(format, args...),
			Threshold: limit,
			Value:     value,
			Time:      now,
		})
	}

	breach(KindDrawdown, m.Drawdown.Current, l.MaxDrawdown,
		"drawdown %.2f%% over limit %.2f%%", m.Drawdown.Current, l.MaxDrawdown)

	if m.DailyPnL < 0 && m.Equity > 0 {
		loss := -m.DailyPnL / m.Equity * 100
		breach(KindDrawdown, loss, l.MaxDailyLoss,
			"daily loss %.2f%% over limit %.2f%%", loss, l.MaxDailyLoss)
	}

	breach(KindExposure, m.Exposure.Leverage, l.MaxLeverage,
		"leverage %.2fx over limit %.2fx", m.Exposure.Leverage, l.MaxLeverage)

	ccys := make([]string, 0, len(m.Exposure.PerCurrency))
	for c := range m.Exposure.PerCurrency {
		ccys = append(ccys, c)
	}
	sort.Strings(ccys)
	for _, c := range ccys {
		v := m.Exposure.PerCurrency[c]
		breach(KindExposure, v, l.MaxExposurePerCurrency,
			"%s exposure %.2fx over limit %.2fx", c, v, l.MaxExposurePerCurrency)
	}

	breach(KindExposure, float64(m.OpenPositions), float64(l.MaxPositions),
		"%d open positions over limit %d", m.OpenPositions, l.MaxPositions)

	breach(KindVolatility, m.Volatility, l.VolatilityAlert,
		"volatility %.2f%% over limit %.2f%%", m.Volatility, l.VolatilityAlert)

	if r, a, b := m.Correlation.MaxOffDiagonal(); a != "" {
		breach(KindCorrelation, r, l.MaxCorrelation,
			"%s/%s correlation %.2f over limit %.2f", a, b, r, l.MaxCorrelation)
	}
	return out
}

func systemAlert(err error, now time.Time) Alert {
	return Alert{
		Severity: Critical,
		Kind:     KindSystem,
		Message:  err.Error(),
		Time:     now,
	}
}
