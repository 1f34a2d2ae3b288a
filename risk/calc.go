package risk

import "math"

// PlannedRisk is the loss in account currency if the stop is hit.
// quoteToAccount converts the instrument's quote currency into the account
// currency: 1.0 for EUR_USD in a USD account.
func PlannedRisk(qty, entry, stop, quoteToAccount float64) float64 {
	if quoteToAccount <= 0 {
		quoteToAccount = 1
	}
	return math.Abs(qty) * math.Abs(entry-stop) * quoteToAccount
}

// RR is the reward to risk ratio, 0 when there is no risk.
func RR(entry, stop, takeProfit float64) float64 {
	risk := math.Abs(entry - stop)
	if risk == 0 || takeProfit == 0 {
		return 0
	}
	return math.Abs(takeProfit-entry) / risk
}

// RiskFraction is planned risk over equity. No equity means infinite risk.
func RiskFraction(planned, equity float64) float64 {
	if equity <= 0 {
		return math.Inf(1)
	}
	return planned / equity
}

// StopPips is the stop distance in pips for a pip location (-4 for most
// FX pairs, -2 for JPY quotes).
func StopPips(entry, stop float64, pipLocation int) float64 {
	return math.Abs(entry-stop) / math.Pow10(pipLocation)
}
