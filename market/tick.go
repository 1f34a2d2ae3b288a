// Package market holds the price primitives consumed by the simulation
// engine and the risk monitor: ticks, trade sides and instrument metadata.
package market

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

// ErrOutOfOrder is reported when a tick is older than the tick before it.
var ErrOutOfOrder = errors.New("tick timestamp out of order")

// Tick is one timestamped price/volume observation for a symbol.
type Tick struct {
	Symbol string
	Time   time.Time
	Price  float64
	Bid    float64
	Ask    float64
	Volume float64
}

func (t Tick) Mid() float64 {
	if t.Bid == 0 && t.Ask == 0 {
		return t.Price
	}
	return (t.Bid + t.Ask) / 2
}

func (t Tick) Spread() float64 {
	return t.Ask - t.Bid
}

// Side: +1 buy (long), -1 sell (short)
type Side int8

const (
	Buy  Side = +1
	Sell Side = -1
)

func (s Side) String() string {
	switch s {
	case Buy:
		return "BUY"
	case Sell:
		return "SELL"
	}
	return fmt.Sprintf("Side(%d)", int8(s))
}

// ParseSide accepts BUY/SELL (and long/short), case-insensitive.
func ParseSide(s string) (Side, error) {
	switch strings.ToUpper(strings.TrimSpace(s)) {
	case "BUY", "LONG", "":
		return Buy, nil
	case "SELL", "SHORT":
		return Sell, nil
	}
	return 0, fmt.Errorf("unknown side %q", s)
}

func (s Side) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

func (s *Side) UnmarshalText(b []byte) error {
	v, err := ParseSide(string(b))
	if err != nil {
		return err
	}
	*s = v
	return nil
}

// CheckOrder returns ErrOutOfOrder if next is earlier than prev.
// Equal timestamps are allowed.
func CheckOrder(prev, next Tick) error {
	if next.Time.Before(prev.Time) {
		return fmt.Errorf("%w: %s before %s", ErrOutOfOrder,
			next.Time.Format(time.RFC3339Nano), prev.Time.Format(time.RFC3339Nano))
	}
	return nil
}
