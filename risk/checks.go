package risk

import (
	"fmt"
	"math"

	"github.com/rustyeddy/tradelab/market"
	"github.com/rustyeddy/tradelab/metrics"
)

type Violation struct {
	Code string
	Msg  string
}

type Decision struct {
	Allowed    bool
	Violations []Violation

	PlannedRisk    float64
	PlannedRiskPct float64 // percent of equity
	PlannedRR      float64
}

func (d *Decision) add(code, msg string) {
	d.Violations = append(d.Violations, Violation{Code: code, Msg: msg})
	d.Allowed = false
}

// Has reports whether the decision carries a violation with code.
func (d Decision) Has(code string) bool {
	for _, v := range d.Violations {
		if v.Code == code {
			return true
		}
	}
	return false
}

// Evaluate runs the pre-trade checks for intent against p and the current
// portfolio. Every failed rule is listed; Allowed is true only when none
// failed.
func Evaluate(p Policy, intent Intent, port Portfolio) Decision {
	d := Decision{Allowed: true}

	if intent.Stop == 0 || intent.Entry == 0 {
		d.add("NO_STOP_OR_ENTRY", "entry/stop must be set")
		return d
	}
	if intent.Quantity <= 0 {
		d.add("NO_QUANTITY", "quantity must be positive")
		return d
	}

	d.PlannedRisk = PlannedRisk(intent.Quantity, intent.Entry, intent.Stop, intent.QuoteToAccount)
	frac := RiskFraction(d.PlannedRisk, port.Equity)
	d.PlannedRiskPct = 100 * frac
	d.PlannedRR = RR(intent.Entry, intent.Stop, intent.TakeProfit)

	if p.MaxRiskFraction > 0 && frac > p.MaxRiskFraction {
		d.add("RISK_TOO_HIGH",
			fmt.Sprintf("planned risk %.2f%% exceeds max %.2f%%", d.PlannedRiskPct, 100*p.MaxRiskFraction))
	}
	if p.MinRR > 0 && intent.TakeProfit != 0 && d.PlannedRR < p.MinRR {
		d.add("RR_TOO_LOW",
			fmt.Sprintf("RR %.2f below minimum %.2f", d.PlannedRR, p.MinRR))
	}

	if p.MaxPositions > 0 && len(port.Holdings) >= p.MaxPositions {
		d.add("TOO_MANY_POSITIONS",
			fmt.Sprintf("open positions %d >= max %d", len(port.Holdings), p.MaxPositions))
	}

	if port.Equity > 0 {
		after := append(append([]metrics.Holding(nil), port.Holdings...), metrics.Holding{
			Symbol:   intent.Symbol,
			Side:     intent.Side,
			Quantity: intent.Quantity,
			Price:    intent.Entry,
		})
		ex := metrics.ExposureOf(after, port.Equity)

		if p.MaxLeverage > 0 && ex.Leverage > p.MaxLeverage {
			d.add("LEVERAGE_TOO_HIGH",
				fmt.Sprintf("leverage %.2f exceeds max %.2f", ex.Leverage, p.MaxLeverage))
		}
		if p.MaxExposurePerCurrency > 0 {
			meta, _ := market.Lookup(intent.Symbol)
			for _, ccy := range []string{meta.BaseCurrency, meta.QuoteCurrency, meta.Name} {
				if v, ok := ex.PerCurrency[ccy]; ok && v > p.MaxExposurePerCurrency {
					d.add("CURRENCY_EXPOSURE",
						fmt.Sprintf("%s exposure %.2f exceeds max %.2f", ccy, v, p.MaxExposurePerCurrency))
					break
				}
			}
		}
	}

	// circuit breaker
	if p.MaxDailyLoss > 0 && port.Equity > 0 {
		limit := -p.MaxDailyLoss / 100 * port.Equity
		if port.DailyPnL <= limit {
			d.add("DAILY_LOSS_LIMIT",
				fmt.Sprintf("daily pnl %.2f <= limit %.2f", port.DailyPnL, limit))
		}
	}

	if math.IsInf(frac, 1) {
		d.add("NO_EQUITY", "portfolio equity must be positive")
	}
	return d
}
