package strategy

import (
	"fmt"
	"sort"
	"strings"
	"sync"

	"github.com/rustyeddy/tradelab/market"
)

// Preset builds a ready-made strategy for a symbol.
type Preset func(symbol string) Config

var (
	presetsMu sync.RWMutex
	presets   = map[string]Preset{
		"always-in":     AlwaysIn,
		"ema-cross":     EMACross,
		"momentum":      Momentum,
		"rsi-reversion": RSIReversion,
	}
)

func Register(name string, p Preset) {
	presetsMu.Lock()
	defer presetsMu.Unlock()
	presets[strings.ToLower(name)] = p
}

func ByName(name, symbol string) (Config, error) {
	presetsMu.RLock()
	p, ok := presets[strings.ToLower(strings.TrimSpace(name))]
	presetsMu.RUnlock()
	if !ok {
		return Config{}, fmt.Errorf("unknown strategy %q (supported: %s)", name, strings.Join(PresetNames(), ", "))
	}
	return p(symbol), nil
}

func PresetNames() []string {
	presetsMu.RLock()
	defer presetsMu.RUnlock()
	names := make([]string, 0, len(presets))
	for n := range presets {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}

// AlwaysIn enters whenever flat and only leaves through its 1% stop or 2%
// target. Useful as a baseline.
func AlwaysIn(symbol string) Config {
	return Config{
		Name:   "always-in",
		Symbol: symbol,
		Side:   market.Buy,
		Entry:  []Condition{{Indicator: "PRICE", Operator: GT, Value: 0}},
		Risk:   RiskParameters{MaxPositionSize: 100_000, StopLossPct: 1, TakeProfitPct: 2},
	}
}

func Momentum(symbol string) Config {
	return Config{
		Name:   "momentum",
		Symbol: symbol,
		Side:   market.Buy,
		Entry:  []Condition{{Indicator: "MOMENTUM(20)", Operator: CrossesAbove, Value: 0}},
		Exit:   []Condition{{Indicator: "MOMENTUM(20)", Operator: CrossesBelow, Value: 0}},
		Risk:   RiskParameters{MaxPositionSize: 100_000, StopLossPct: 0.5, TakeProfitPct: 1, TrailingStopPct: 0.4},
	}
}

// EMACross goes long when the 10 period EMA crosses above the 30 and exits
// on the cross back. Stop and target keep a 2:1 reward to risk.
func EMACross(symbol string) Config {
	return Config{
		Name:   "ema-cross",
		Symbol: symbol,
		Side:   market.Buy,
		Entry:  []Condition{{Indicator: "EMACROSS(10,30)", Operator: CrossesAbove, Value: 0}},
		Exit:   []Condition{{Indicator: "EMACROSS(10,30)", Operator: CrossesBelow, Value: 0}},
		Risk:   RiskParameters{MaxPositionSize: 100_000, StopLossPct: 0.2, TakeProfitPct: 0.4},
	}
}

func RSIReversion(symbol string) Config {
	return Config{
		Name:   "rsi-reversion",
		Symbol: symbol,
		Side:   market.Buy,
		Entry:  []Condition{{Indicator: "RSI(14)", Operator: LT, Value: 30}},
		Exit:   []Condition{{Indicator: "RSI(14)", Operator: GT, Value: 55}},
		Risk:   RiskParameters{MaxPositionSize: 100_000, StopLossPct: 1.5, TakeProfitPct: 3},
	}
}
