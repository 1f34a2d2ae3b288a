package backtest

import (
	"context"
	"errors"
	"fmt"

	"github.com/rustyeddy/tradelab/market"
	"github.com/rustyeddy/tradelab/strategy"
)

// TickFeed yields ticks one at a time, typically from a dataset.
// Implementations should be deterministic and return (ok=false, err=nil)
// at EOF. *market.CSVTicksFeed implements it.
type TickFeed interface {
	Next() (t market.Tick, ok bool, err error)
	Close() error
}

// RunFeed drains feed and runs the strategy over the ticks it produced.
// The feed is closed before returning.
func (e *Engine) RunFeed(ctx context.Context, cfg strategy.Config, feed TickFeed) (*Result, error) {
	if feed == nil {
		return nil, errors.New("backtest: feed is required")
	}
	defer feed.Close()

	var ticks []market.Tick
	for {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		tk, ok, err := feed.Next()
		if err != nil {
			return nil, fmt.Errorf("backtest: read feed: %w", err)
		}
		if !ok {
			break
		}
		ticks = append(ticks, tk)
	}
	return e.Run(ctx, cfg, ticks)
}
