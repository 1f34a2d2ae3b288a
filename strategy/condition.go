package strategy

import (
	"errors"
	"fmt"
	"math"
	"strings"

	"github.com/rustyeddy/tradelab/market"
)

var ErrInvalidOperator = errors.New("invalid operator")

type Operator string

const (
	GT           Operator = "GT"
	LT           Operator = "LT"
	EQ           Operator = "EQ"
	CrossesAbove Operator = "CROSSES_ABOVE"
	CrossesBelow Operator = "CROSSES_BELOW"
)

// eqTolerance is the absolute tolerance used by EQ.
const eqTolerance = 1e-9

func ParseOperator(s string) (Operator, error) {
	switch op := Operator(strings.ToUpper(strings.TrimSpace(s))); op {
	case GT, LT, EQ, CrossesAbove, CrossesBelow:
		return op, nil
	}
	switch strings.TrimSpace(s) {
	case ">":
		return GT, nil
	case "<":
		return LT, nil
	case "=", "==":
		return EQ, nil
	}
	return "", fmt.Errorf("%w %q", ErrInvalidOperator, s)
}

func (o *Operator) UnmarshalText(b []byte) error {
	op, err := ParseOperator(string(b))
	if err != nil {
		return err
	}
	*o = op
	return nil
}

// Condition compares an indicator reading against a fixed value.
type Condition struct {
	Indicator string   `json:"indicator" yaml:"indicator"`
	Operator  Operator `json:"operator" yaml:"operator"`
	Value     float64  `json:"value" yaml:"value"`
}

func (c Condition) String() string {
	return fmt.Sprintf("%s %s %g", c.Indicator, c.Operator, c.Value)
}

func (c Condition) Validate() error {
	if strings.TrimSpace(c.Indicator) == "" {
		return errors.New("indicator is required")
	}
	switch c.Operator {
	case GT, LT, EQ, CrossesAbove, CrossesBelow:
		return nil
	}
	return fmt.Errorf("%w %q", ErrInvalidOperator, c.Operator)
}

// Reading is the current and previous value of an indicator. HasPrevious
// is false until the indicator has produced two values.
type Reading struct {
	Current     float64
	Previous    float64
	HasPrevious bool
}

// Evaluator produces indicator readings from the tick history seen so far.
// history is ordered oldest first and ends with the current tick; callers
// must not retain or modify it.
type Evaluator interface {
	Read(indicator string, history []market.Tick) (Reading, error)
}

// EvaluatorFunc adapts a function to Evaluator.
type EvaluatorFunc func(indicator string, history []market.Tick) (Reading, error)

func (f EvaluatorFunc) Read(indicator string, history []market.Tick) (Reading, error) {
	return f(indicator, history)
}

// Holds reports whether the condition is satisfied by r. The crossing
// operators need both readings and are false without a previous value.
func (c Condition) Holds(r Reading) (bool, error) {
	if math.IsNaN(r.Current) {
		return false, nil
	}
	switch c.Operator {
	case GT:
		return r.Current > c.Value, nil
	case LT:
		return r.Current < c.Value, nil
	case EQ:
		return math.Abs(r.Current-c.Value) <= eqTolerance, nil
	case CrossesAbove:
		return r.HasPrevious && r.Previous <= c.Value && r.Current > c.Value, nil
	case CrossesBelow:
		return r.HasPrevious && r.Previous >= c.Value && r.Current < c.Value, nil
	}
	return false, fmt.Errorf("%w %q", ErrInvalidOperator, c.Operator)
}

// AllHold evaluates conds in order and stops at the first one that does
// not hold. An empty list never holds. Evaluator errors are returned as-is
// wrapped with the failing condition.
func AllHold(ev Evaluator, conds []Condition, history []market.Tick) (bool, error) {
	if len(conds) == 0 {
		return false, nil
	}
	for _, c := range conds {
		r, err := ev.Read(c.Indicator, history)
		if err != nil {
			return false, fmt.Errorf("condition %q: %w", c, err)
		}
		ok, err := c.Holds(r)
		if err != nil {
			return false, fmt.Errorf("condition %q: %w", c, err)
		}
		if !ok {
			return false, nil
		}
	}
	return true, nil
}
