package market

import (
	"math"
	"strings"
)

type InstrumentMeta struct {
	Name          string
	BaseCurrency  string
	QuoteCurrency string
	PipLocation   int
}

var Instruments = map[string]InstrumentMeta{
	"EUR_USD": {Name: "EUR_USD", BaseCurrency: "EUR", QuoteCurrency: "USD", PipLocation: -4},
	"GBP_USD": {Name: "GBP_USD", BaseCurrency: "GBP", QuoteCurrency: "USD", PipLocation: -4},
	"AUD_USD": {Name: "AUD_USD", BaseCurrency: "AUD", QuoteCurrency: "USD", PipLocation: -4},
	"USD_CHF": {Name: "USD_CHF", BaseCurrency: "USD", QuoteCurrency: "CHF", PipLocation: -4},
	"USD_CAD": {Name: "USD_CAD", BaseCurrency: "USD", QuoteCurrency: "CAD", PipLocation: -4},
	"EUR_GBP": {Name: "EUR_GBP", BaseCurrency: "EUR", QuoteCurrency: "GBP", PipLocation: -4},
	"USD_JPY": {Name: "USD_JPY", BaseCurrency: "USD", QuoteCurrency: "JPY", PipLocation: -2},
	"EUR_JPY": {Name: "EUR_JPY", BaseCurrency: "EUR", QuoteCurrency: "JPY", PipLocation: -2},
}

// NormalizeSymbol maps "EURUSD", "EUR/USD" and "eur_usd" to "EUR_USD".
// Symbols that don't look like a six letter FX pair are upper-cased and
// returned otherwise untouched.
func NormalizeSymbol(sym string) string {
	s := strings.ToUpper(strings.TrimSpace(sym))
	s = strings.NewReplacer("/", "_", "-", "_").Replace(s)
	if len(s) == 6 && !strings.Contains(s, "_") {
		return s[:3] + "_" + s[3:]
	}
	return s
}

// Lookup returns instrument metadata. Unknown six letter pairs get a
// synthesized entry with a -4 pip location (-2 for JPY quotes).
func Lookup(sym string) (InstrumentMeta, bool) {
	name := NormalizeSymbol(sym)
	if meta, ok := Instruments[name]; ok {
		return meta, true
	}
	base, quote, ok := strings.Cut(name, "_")
	if !ok || len(base) != 3 || len(quote) != 3 {
		return InstrumentMeta{Name: name}, false
	}
	loc := -4
	if quote == "JPY" {
		loc = -2
	}
	return InstrumentMeta{Name: name, BaseCurrency: base, QuoteCurrency: quote, PipLocation: loc}, true
}

// PipSize returns the price increment of one pip for sym. Non-FX symbols
// use 0.01.
func PipSize(sym string) float64 {
	meta, ok := Lookup(sym)
	if !ok {
		return 0.01
	}
	return math.Pow10(meta.PipLocation)
}
