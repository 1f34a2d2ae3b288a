// Package strategy describes rule based trading strategies: what to trade,
// when to enter, when to exit and how much risk to take.
package strategy

import (
	"errors"
	"fmt"
	"strings"

	"github.com/rustyeddy/tradelab/market"
)

// RiskParameters are expressed in percent of the entry price: 1.0 is 1%.
// A zero value disables the corresponding exit.
type RiskParameters struct {
	MaxPositionSize float64 `json:"max_position_size" yaml:"max_position_size"`
	StopLossPct     float64 `json:"stop_loss_pct" yaml:"stop_loss_pct"`
	TakeProfitPct   float64 `json:"take_profit_pct" yaml:"take_profit_pct"`
	TrailingStopPct float64 `json:"trailing_stop_pct,omitempty" yaml:"trailing_stop_pct,omitempty"`
}

// Config is a complete strategy definition. Values are copied into a run
// and never mutated afterwards; WithParams returns a new Config.
type Config struct {
	Name   string      `json:"name" yaml:"name"`
	Symbol string      `json:"symbol" yaml:"symbol"`
	Side   market.Side `json:"side" yaml:"side"`

	Entry []Condition    `json:"entry" yaml:"entry"`
	Exit  []Condition    `json:"exit" yaml:"exit"`
	Risk  RiskParameters `json:"risk" yaml:"risk"`
}

// Clone returns a deep copy of c.
func (c Config) Clone() Config {
	out := c
	out.Entry = append([]Condition(nil), c.Entry...)
	out.Exit = append([]Condition(nil), c.Exit...)
	return out
}

// StopLossPrice returns the stop level for an entry at price, or 0 when
// stops are disabled.
func (c Config) StopLossPrice(price float64) float64 {
	if c.Risk.StopLossPct <= 0 {
		return 0
	}
	return price * (1 - float64(c.TradeSide())*c.Risk.StopLossPct/100)
}

// TakeProfitPrice returns the take-profit level for an entry at price, or 0
// when disabled.
func (c Config) TakeProfitPrice(price float64) float64 {
	if c.Risk.TakeProfitPct <= 0 {
		return 0
	}
	return price * (1 + float64(c.TradeSide())*c.Risk.TakeProfitPct/100)
}

// TradeSide returns Side, defaulting to Buy when unset.
func (c Config) TradeSide() market.Side {
	if c.Side == 0 {
		return market.Buy
	}
	return c.Side
}

// Validate reports every problem found in c.
func (c Config) Validate() error {
	var errs []error
	if strings.TrimSpace(c.Symbol) == "" {
		errs = append(errs, errors.New("symbol is required"))
	}
	if c.Side != 0 && c.Side != market.Buy && c.Side != market.Sell {
		errs = append(errs, fmt.Errorf("invalid side %d", c.Side))
	}
	if len(c.Entry) == 0 {
		errs = append(errs, errors.New("at least one entry condition is required"))
	}
	for i, cond := range append(append([]Condition(nil), c.Entry...), c.Exit...) {
		if err := cond.Validate(); err != nil {
			errs = append(errs, fmt.Errorf("condition %d: %w", i, err))
		}
	}
	if c.Risk.MaxPositionSize < 0 {
		errs = append(errs, errors.New("risk.max_position_size must not be negative"))
	}
	if c.Risk.StopLossPct < 0 || c.Risk.StopLossPct >= 100 {
		errs = append(errs, errors.New("risk.stop_loss_pct must be in [0,100)"))
	}
	if c.Risk.TakeProfitPct < 0 {
		errs = append(errs, errors.New("risk.take_profit_pct must not be negative"))
	}
	if c.Risk.TrailingStopPct < 0 || c.Risk.TrailingStopPct >= 100 {
		errs = append(errs, errors.New("risk.trailing_stop_pct must be in [0,100)"))
	}
	return errors.Join(errs...)
}
