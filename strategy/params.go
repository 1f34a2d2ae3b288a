package strategy

import (
	"errors"
	"fmt"
	"math"
	"sort"
	"strconv"
	"strings"
)

var ErrUnknownParam = errors.New("unknown strategy parameter")

// Parameter names understood by WithParams:
//
//	risk.stop_loss_pct      risk.take_profit_pct
//	risk.trailing_stop_pct  risk.max_position_size
//	entry.N.value           exit.N.value
//	entry.N.period          exit.N.period
//	entry.N.fast            exit.N.fast
//	entry.N.slow            exit.N.slow
//
// N is the zero based condition index. A period rewrites the argument of a
// one argument indicator, "SMA(20)" with period 30 becomes "SMA(30)". Fast
// and slow rewrite the first and second argument of a two argument
// indicator such as "EMACROSS(10,30)". Every entry and exit condition that
// names the same indicator is rewritten with it.
const (
	ParamStopLoss        = "risk.stop_loss_pct"
	ParamTakeProfit      = "risk.take_profit_pct"
	ParamTrailingStop    = "risk.trailing_stop_pct"
	ParamMaxPositionSize = "risk.max_position_size"
)

// WithParams returns a copy of c with params substituted. c is not modified.
func (c Config) WithParams(params map[string]float64) (Config, error) {
	out := c.Clone()

	// sorted for stable error reporting
	names := make([]string, 0, len(params))
	for name := range params {
		names = append(names, name)
	}
	sort.Strings(names)

	for _, name := range names {
		if err := out.set(name, params[name]); err != nil {
			return Config{}, err
		}
	}
	return out, nil
}

func (c *Config) set(name string, v float64) error {
	switch name {
	case ParamStopLoss:
		c.Risk.StopLossPct = v
		return nil
	case ParamTakeProfit:
		c.Risk.TakeProfitPct = v
		return nil
	case ParamTrailingStop:
		c.Risk.TrailingStopPct = v
		return nil
	case ParamMaxPositionSize:
		c.Risk.MaxPositionSize = v
		return nil
	}

	parts := strings.Split(name, ".")
	if len(parts) != 3 {
		return fmt.Errorf("%w %q", ErrUnknownParam, name)
	}

	var conds []Condition
	switch parts[0] {
	case "entry":
		conds = c.Entry
	case "exit":
		conds = c.Exit
	default:
		return fmt.Errorf("%w %q", ErrUnknownParam, name)
	}

	idx, err := strconv.Atoi(parts[1])
	if err != nil || idx < 0 || idx >= len(conds) {
		return fmt.Errorf("%w %q: no condition %s", ErrUnknownParam, name, parts[1])
	}

	switch parts[2] {
	case "value":
		conds[idx].Value = v
	case "period", "fast", "slow":
		old := conds[idx].Indicator
		ind, err := withArg(old, parts[2], int(math.Round(v)))
		if err != nil {
			return fmt.Errorf("%s: %w", name, err)
		}
		c.renameIndicator(old, ind)
	default:
		return fmt.Errorf("%w %q", ErrUnknownParam, name)
	}
	return nil
}

func (c *Config) renameIndicator(from, to string) {
	key := indicatorKey(from)
	for _, conds := range [][]Condition{c.Entry, c.Exit} {
		for i := range conds {
			if indicatorKey(conds[i].Indicator) == key {
				conds[i].Indicator = to
			}
		}
	}
}

func indicatorKey(name string) string {
	return strings.ToUpper(strings.ReplaceAll(name, " ", ""))
}

// IndicatorArgs returns the comma separated arguments of an indicator name,
// nil for names without arguments such as "PRICE".
func IndicatorArgs(indicator string) []string {
	open := strings.IndexByte(indicator, '(')
	if open < 0 || !strings.HasSuffix(indicator, ")") {
		return nil
	}
	args := strings.Split(indicator[open+1:len(indicator)-1], ",")
	for i := range args {
		args[i] = strings.TrimSpace(args[i])
	}
	return args
}

func withArg(indicator, which string, n int) (string, error) {
	if n <= 0 {
		return "", fmt.Errorf("%s must be positive, got %d", which, n)
	}
	args := IndicatorArgs(indicator)
	var i int
	switch {
	case len(args) == 0:
		return "", fmt.Errorf("indicator %q has no period", indicator)
	case which == "period" && len(args) == 1:
		i = 0
	case which == "fast" && len(args) == 2:
		i = 0
	case which == "slow" && len(args) == 2:
		i = 1
	default:
		return "", fmt.Errorf("indicator %q takes %d arguments, %s does not apply", indicator, len(args), which)
	}
	args[i] = strconv.Itoa(n)
	open := strings.IndexByte(indicator, '(')
	return fmt.Sprintf("%s(%s)", indicator[:open], strings.Join(args, ",")), nil
}
