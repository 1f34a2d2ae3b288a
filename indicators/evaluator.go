package indicators

import (
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"
	"sync"

	"github.com/rustyeddy/tradelab/market"
	"github.com/rustyeddy/tradelab/strategy"
)

var ErrUnknownIndicator = errors.New("unknown indicator")

// lookbackFactor bounds how much history EMA and RSI replay per reading.
// After 5 periods the seed's weight in an EMA is below 0.5%.
const lookbackFactor = 5

type kind int

const (
	kindPrice kind = iota
	kindVolume
	kindSMA
	kindEMA
	kindRSI
	kindMomentum
	kindEMACross
)

type spec struct {
	kind   kind
	period int
	slow   int // EMACROSS only
}

// Evaluator reads indicators by name from a tick history:
//
//	PRICE, VOLUME, SMA(n), EMA(n), RSI(n), MOMENTUM(n), EMACROSS(fast,slow)
//
// EMACROSS is the fast EMA minus the slow EMA, so crossing zero is a
// moving average crossover.
// Names are case-insensitive. While an indicator is warming up its current
// value is NaN, which never satisfies a condition. Evaluator is safe for
// concurrent use.
type Evaluator struct {
	specs sync.Map // name -> spec
}

var _ strategy.Evaluator = (*Evaluator)(nil)

func NewEvaluator() *Evaluator {
	return &Evaluator{}
}

func (e *Evaluator) Read(name string, history []market.Tick) (strategy.Reading, error) {
	sp, err := e.lookup(name)
	if err != nil {
		return strategy.Reading{}, err
	}
	if len(history) == 0 {
		return strategy.Reading{Current: math.NaN()}, nil
	}

	switch sp.kind {
	case kindPrice:
		return lastTwo(history, price), nil
	case kindVolume:
		return lastTwo(history, func(t market.Tick) float64 { return t.Volume }), nil
	case kindMomentum:
		return momentum(history, sp.period), nil
	case kindEMACross:
		return emaCross(tail(history, lookbackFactor*sp.slow+1), sp.period, sp.slow), nil
	}

	var ind Indicator
	window := sp.period + 1
	switch sp.kind {
	case kindSMA:
		ind = NewSMA(sp.period)
	case kindEMA:
		ind = NewEMA(sp.period)
		window = lookbackFactor*sp.period + 1
	case kindRSI:
		ind = NewRSI(sp.period)
		window = lookbackFactor*sp.period + 1
	}
	return replay(ind, tail(history, window)), nil
}

func (e *Evaluator) lookup(name string) (spec, error) {
	if v, ok := e.specs.Load(name); ok {
		return v.(spec), nil
	}
	sp, err := parseSpec(name)
	if err != nil {
		return spec{}, err
	}
	e.specs.Store(name, sp)
	return sp, nil
}

func parseSpec(name string) (spec, error) {
	n := strings.ToUpper(strings.ReplaceAll(name, " ", ""))
	switch n {
	case "PRICE", "CLOSE":
		return spec{kind: kindPrice}, nil
	case "VOLUME":
		return spec{kind: kindVolume}, nil
	}

	open := strings.IndexByte(n, '(')
	if open < 0 || !strings.HasSuffix(n, ")") {
		return spec{}, fmt.Errorf("%w %q", ErrUnknownIndicator, name)
	}
	args := n[open+1 : len(n)-1]
	if n[:open] == "EMACROSS" {
		return parseCross(name, args)
	}
	period, err := strconv.Atoi(args)
	if err != nil || period <= 0 {
		return spec{}, fmt.Errorf("%w %q: bad period", ErrUnknownIndicator, name)
	}

	switch n[:open] {
	case "SMA", "MA":
		return spec{kind: kindSMA, period: period}, nil
	case "EMA":
		return spec{kind: kindEMA, period: period}, nil
	case "RSI":
		return spec{kind: kindRSI, period: period}, nil
	case "MOMENTUM", "MOM":
		return spec{kind: kindMomentum, period: period}, nil
	}
	return spec{}, fmt.Errorf("%w %q", ErrUnknownIndicator, name)
}

func parseCross(name, args string) (spec, error) {
	fast, slow, ok := strings.Cut(args, ",")
	if !ok {
		return spec{}, fmt.Errorf("%w %q: want EMACROSS(fast,slow)", ErrUnknownIndicator, name)
	}
	f, err1 := strconv.Atoi(fast)
	s, err2 := strconv.Atoi(slow)
	if err1 != nil || err2 != nil || f <= 0 || s <= f {
		return spec{}, fmt.Errorf("%w %q: need 0 < fast < slow", ErrUnknownIndicator, name)
	}
	return spec{kind: kindEMACross, period: f, slow: s}, nil
}

func price(t market.Tick) float64 {
	if t.Price != 0 {
		return t.Price
	}
	return t.Mid()
}

func tail(history []market.Tick, n int) []market.Tick {
	if len(history) > n {
		return history[len(history)-n:]
	}
	return history
}

func lastTwo(history []market.Tick, f func(market.Tick) float64) strategy.Reading {
	r := strategy.Reading{Current: f(history[len(history)-1])}
	if len(history) > 1 {
		r.Previous = f(history[len(history)-2])
		r.HasPrevious = true
	}
	return r
}

func momentum(history []market.Tick, period int) strategy.Reading {
	last := len(history) - 1
	r := strategy.Reading{Current: math.NaN()}
	if last-period < 0 {
		return r
	}
	r.Current = price(history[last]) - price(history[last-period])
	if last-1-period >= 0 {
		r.Previous = price(history[last-1]) - price(history[last-1-period])
		r.HasPrevious = true
	}
	return r
}

// replay feeds window through ind and captures the last two ready values.
func replay(ind Indicator, window []market.Tick) strategy.Reading {
	r := strategy.Reading{Current: math.NaN()}
	for i, t := range window {
		ind.Update(price(t))
		if !ind.Ready() {
			continue
		}
		if i == len(window)-1 {
			r.Current = ind.Value()
		} else if i == len(window)-2 {
			r.Previous = ind.Value()
			r.HasPrevious = true
		}
	}
	if math.IsNaN(r.Current) {
		r.HasPrevious = false
	}
	return r
}

// emaCross replays both averages over window. A reading exists once the
// slow EMA is ready.
func emaCross(window []market.Tick, fast, slow int) strategy.Reading {
	f, s := NewEMA(fast), NewEMA(slow)
	r := strategy.Reading{Current: math.NaN()}
	for i, t := range window {
		p := price(t)
		f.Update(p)
		s.Update(p)
		if !f.Ready() || !s.Ready() {
			continue
		}
		diff := f.Value() - s.Value()
		if i == len(window)-1 {
			r.Current = diff
		} else if i == len(window)-2 {
			r.Previous = diff
			r.HasPrevious = true
		}
	}
	if math.IsNaN(r.Current) {
		r.HasPrevious = false
	}
	return r
}
