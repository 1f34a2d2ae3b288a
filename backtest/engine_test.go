package backtest

import (
	"context"
	"errors"
	"math"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/rustyeddy/tradelab/market"
	"github.com/rustyeddy/tradelab/risk"
	"github.com/rustyeddy/tradelab/strategy"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var t0 = time.Date(2024, 1, 2, 9, 0, 0, 0, time.UTC)

func cond(ind string, op strategy.Operator, v float64) strategy.Condition {
	return strategy.Condition{Indicator: ind, Operator: op, Value: v}
}

// volumeSignals reads PRICE and VOL (the last tick's volume), which lets a
// test script entries and exits through the tick stream.
var volumeSignals = strategy.EvaluatorFunc(func(name string, h []market.Tick) (strategy.Reading, error) {
	last := h[len(h)-1]
	switch name {
	case "PRICE":
		return strategy.Reading{Current: last.Price}, nil
	case "VOL":
		return strategy.Reading{Current: last.Volume}, nil
	}
	return strategy.Reading{}, errors.New("unknown")
})

func alwaysIn(symbol string, side market.Side, stopPct float64) strategy.Config {
	return strategy.Config{
		Name:   "test",
		Symbol: symbol,
		Side:   side,
		Entry:  []strategy.Condition{cond("PRICE", strategy.GT, 0)},
		Exit:   []strategy.Condition{cond("PRICE", strategy.LT, 0)},
		Risk:   strategy.RiskParameters{StopLossPct: stopPct},
	}
}

func TestRunEmptyStream(t *testing.T) {
	t.Parallel()

	res, err := New().Run(context.Background(), alwaysIn("EUR_USD", market.Buy, 1), nil)
	require.NoError(t, err)

	assert.Empty(t, res.Trades)
	require.Len(t, res.EquityCurve, 1)
	assert.Equal(t, float64(DefaultInitialCapital), res.EquityCurve[0].Equity)
	assert.True(t, res.EquityCurve[0].Time.IsZero())
	assert.Zero(t, res.Performance.WinRate)
	assert.Zero(t, res.Performance.ProfitFactor)
	assert.False(t, math.IsNaN(res.Performance.SharpeRatio))
	assert.Nil(t, res.Open)
}

func TestRunNoEntries(t *testing.T) {
	t.Parallel()

	cfg := alwaysIn("EUR_USD", market.Buy, 1)
	cfg.Entry = []strategy.Condition{cond("PRICE", strategy.LT, 0)}
	ticks := market.RandomWalk(market.WalkConfig{
		Symbol: "EUR_USD", Start: t0, Count: 300, StartPrice: 1.1, Volatility: 0.001, Seed: 7,
	})

	res, err := New(WithInitialCapital(25_000)).Run(context.Background(), cfg, ticks)
	require.NoError(t, err)

	assert.Empty(t, res.Trades)
	require.Len(t, res.EquityCurve, 1)
	assert.Equal(t, 25_000.0, res.EquityCurve[0].Equity)
	assert.Equal(t, t0, res.EquityCurve[0].Time)
	assert.Equal(t, 300, res.Ticks)
	assert.Equal(t, 25_000.0, res.FinalEquity)
}

func TestRunStopLossScenario(t *testing.T) {
	t.Parallel()

	// flat, then a slide of 1.2 pips per tick until price is more than 1%
	// under the entry, then flat again
	prices := make([]float64, 100)
	for i := range prices {
		switch {
		case i < 10:
			prices[i] = 1.1
		case i < 20:
			prices[i] = 1.1 - float64(i-9)*0.0012
		default:
			prices[i] = 1.088
		}
	}
	ticks := market.FromPrices("EURUSD", t0, time.Second, prices...)

	res, err := New().Run(context.Background(), alwaysIn("EUR_USD", market.Buy, 1), ticks)
	require.NoError(t, err)

	require.Len(t, res.Trades, 1)
	tr := res.Trades[0]
	assert.Equal(t, ReasonStopLoss, tr.Reason)
	assert.Equal(t, market.Buy, tr.Side)
	assert.Equal(t, 1.1, tr.EntryPrice)
	assert.InDelta(t, 1.089, tr.ExitPrice, 1e-12)
	assert.Equal(t, t0.Add(19*time.Second), tr.ExitTime)
	assert.InDelta(t, -tr.Quantity*tr.EntryPrice*0.01, tr.ProfitLoss, 1e-6)
	assert.InDelta(t, -110.0, tr.Pips, 1e-6)

	// 1% of 100,000 risked over a 0.011 stop
	assert.InDelta(t, 1_000/0.011, tr.Quantity, 1e-3)

	require.Len(t, res.EquityCurve, 2)
	assert.InDelta(t, DefaultInitialCapital+tr.ProfitLoss, res.EquityCurve[1].Equity, 1e-6)
	assert.InDelta(t, 1.0, res.EquityCurve[1].DrawdownPct, 1e-6)

	// re-entered on the stop tick and still open
	require.NotNil(t, res.Open)
	assert.InDelta(t, 1.088, res.Open.EntryPrice, 1e-12)
	assert.Equal(t, tr.ExitTime, res.Open.EntryTime)
}

func TestRunSellSide(t *testing.T) {
	t.Parallel()

	ticks := market.FromPrices("EUR_USD", t0, time.Minute, 1.10, 1.105, 1.112, 1.12)
	res, err := New().Run(context.Background(), alwaysIn("EUR_USD", market.Sell, 1), ticks)
	require.NoError(t, err)

	require.NotEmpty(t, res.Trades)
	tr := res.Trades[0]
	assert.Equal(t, market.Sell, tr.Side)
	assert.InDelta(t, 1.111, tr.ExitPrice, 1e-12)
	assert.Less(t, tr.ProfitLoss, 0.0)
	assert.InDelta(t, -tr.Quantity*tr.EntryPrice*0.01, tr.ProfitLoss, 1e-6)
}

func TestRunTakeProfitFillsAtLevel(t *testing.T) {
	t.Parallel()

	cfg := alwaysIn("AAPL", market.Buy, 5)
	cfg.Risk.TakeProfitPct = 2
	ticks := market.FromPrices("AAPL", t0, time.Minute, 100, 101, 103)

	res, err := New().Run(context.Background(), cfg, ticks)
	require.NoError(t, err)

	require.Len(t, res.Trades, 1)
	tr := res.Trades[0]
	assert.Equal(t, ReasonTakeProfit, tr.Reason)
	assert.InDelta(t, 102.0, tr.ExitPrice, 1e-9)
	assert.InDelta(t, 2*tr.Quantity, tr.ProfitLoss, 1e-6)
	assert.InDelta(t, 200.0, tr.Pips, 1e-6)
	assert.Greater(t, res.Performance.WinRate, 0.0)
}

func TestRunTrailingStop(t *testing.T) {
	t.Parallel()

	cfg := strategy.Config{
		Name:   "trail",
		Symbol: "AAPL",
		Entry:  []strategy.Condition{cond("VOL", strategy.GT, 0.5)},
		Risk:   strategy.RiskParameters{TrailingStopPct: 5},
	}
	ticks := market.FromPrices("AAPL", t0, time.Minute, 100, 105, 110, 108, 104)
	ticks[0].Volume = 1

	res, err := New(WithEvaluator(volumeSignals)).Run(context.Background(), cfg, ticks)
	require.NoError(t, err)

	require.Len(t, res.Trades, 1)
	tr := res.Trades[0]
	assert.Equal(t, ReasonTrailingStop, tr.Reason)
	assert.InDelta(t, 104.5, tr.ExitPrice, 1e-9)
	assert.Greater(t, tr.ProfitLoss, 0.0)
	assert.Nil(t, res.Open)
}

func TestRunExitSignal(t *testing.T) {
	t.Parallel()

	cfg := strategy.Config{
		Name:   "signals",
		Symbol: "EUR_USD",
		Entry:  []strategy.Condition{cond("VOL", strategy.GT, 0.5)},
		Exit:   []strategy.Condition{cond("VOL", strategy.LT, -0.5)},
		Risk:   strategy.RiskParameters{StopLossPct: 1, MaxPositionSize: 10_000},
	}
	ticks := market.FromPrices("EUR_USD", t0, time.Minute, 1.1, 1.101, 1.102, 1.103, 1.104)
	ticks[0].Volume = 1
	ticks[3].Volume = -1

	res, err := New(WithEvaluator(volumeSignals)).Run(context.Background(), cfg, ticks)
	require.NoError(t, err)

	require.Len(t, res.Trades, 1)
	tr := res.Trades[0]
	assert.Equal(t, ReasonExitSignal, tr.Reason)
	assert.Equal(t, 1.103, tr.ExitPrice)
	assert.Equal(t, 10_000.0, tr.Quantity, "capped by the strategy")
	assert.InDelta(t, 30.0, tr.ProfitLoss, 1e-6)
	assert.Equal(t, "1", tr.ID)
}

func TestRunCloseAtEnd(t *testing.T) {
	t.Parallel()

	ticks := market.FromPrices("EUR_USD", t0, time.Minute, 1.1, 1.1, 1.1)
	cfg := alwaysIn("EUR_USD", market.Buy, 1)

	res, err := New(WithCloseAtEnd(true)).Run(context.Background(), cfg, ticks)
	require.NoError(t, err)
	require.Len(t, res.Trades, 1)
	assert.Equal(t, ReasonEndOfData, res.Trades[0].Reason)
	assert.Zero(t, res.Trades[0].ProfitLoss)
	assert.Nil(t, res.Open)

	res, err = New().Run(context.Background(), cfg, ticks)
	require.NoError(t, err)
	assert.Empty(t, res.Trades)
	require.NotNil(t, res.Open)
	assert.InDelta(t, 0.0, res.Open.Unrealized(1.1), 1e-12)
}

func TestRunRejectsOutOfOrderTicks(t *testing.T) {
	t.Parallel()

	ticks := market.FromPrices("EUR_USD", t0, time.Minute, 1.1, 1.1, 1.1, 1.1)
	ticks[2].Time = t0.Add(-time.Hour)
	other := market.Tick{Symbol: "GBP_USD", Time: t0.Add(-2 * time.Hour), Price: 1.3}
	ticks = append(ticks[:1], append([]market.Tick{other}, ticks[1:]...)...)

	res, err := New().Run(context.Background(), alwaysIn("EUR_USD", market.Buy, 1), ticks)
	require.NoError(t, err)
	assert.Equal(t, 1, res.Rejected)
	assert.Equal(t, 3, res.Ticks)
}

func TestRunEvaluatorErrorAborts(t *testing.T) {
	t.Parallel()

	boom := errors.New("boom")
	ev := strategy.EvaluatorFunc(func(string, []market.Tick) (strategy.Reading, error) {
		return strategy.Reading{}, boom
	})
	ticks := market.FromPrices("EUR_USD", t0, time.Minute, 1.1, 1.2)

	res, err := New(WithEvaluator(ev)).Run(context.Background(), alwaysIn("EUR_USD", market.Buy, 1), ticks)
	require.Error(t, err)
	assert.True(t, errors.Is(err, boom))
	assert.Nil(t, res)
}

func TestRunInvalidStrategy(t *testing.T) {
	t.Parallel()

	_, err := New().Run(context.Background(), strategy.Config{Name: "empty"}, nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "symbol is required")
}

func TestRunCanceled(t *testing.T) {
	t.Parallel()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	ticks := market.FromPrices("EUR_USD", t0, time.Minute, 1.1, 1.2)

	res, err := New().Run(ctx, alwaysIn("EUR_USD", market.Buy, 1), ticks)
	assert.True(t, errors.Is(err, context.Canceled))
	assert.Nil(t, res)
}

func TestRunProgress(t *testing.T) {
	t.Parallel()

	var got []float64
	e := New(WithProgress(func(p float64) { got = append(got, p) }, 0))
	ticks := market.RandomWalk(market.WalkConfig{
		Symbol: "EUR_USD", Start: t0, Count: 500, StartPrice: 1.1, Volatility: 0.0005, Seed: 1,
	})

	_, err := e.Run(context.Background(), alwaysIn("EUR_USD", market.Buy, 1), ticks)
	require.NoError(t, err)

	require.NotEmpty(t, got)
	assert.LessOrEqual(t, len(got), 101)
	assert.Equal(t, 100.0, got[len(got)-1])
	for i := 1; i < len(got); i++ {
		assert.GreaterOrEqual(t, got[i], got[i-1])
	}
}

func TestRunPolicyBlocksEntries(t *testing.T) {
	t.Parallel()

	cfg := alwaysIn("EUR_USD", market.Buy, 1)
	cfg.Risk.TakeProfitPct = 2
	ticks := market.FromPrices("EUR_USD", t0, time.Minute, 1.1, 1.2, 1.0)

	res, err := New(WithPolicy(risk.Policy{MinRR: 5})).Run(context.Background(), cfg, ticks)
	require.NoError(t, err)
	assert.Empty(t, res.Trades)
	assert.Nil(t, res.Open)
}

func TestProfitLossSign(t *testing.T) {
	t.Parallel()

	ticks := market.RandomWalk(market.WalkConfig{
		Symbol: "EUR_USD", Start: t0, Count: 2000, StartPrice: 1.1, Volatility: 0.002, Seed: 42,
	})
	for _, side := range []market.Side{market.Buy, market.Sell} {
		cfg := alwaysIn("EUR_USD", side, 0.5)
		cfg.Risk.TakeProfitPct = 0.5

		res, err := New(WithCloseAtEnd(true)).Run(context.Background(), cfg, ticks)
		require.NoError(t, err)
		require.NotEmpty(t, res.Trades)

		for _, tr := range res.Trades {
			move := tr.ExitPrice - tr.EntryPrice
			want := math.Copysign(1, move) * float64(side)
			if move == 0 {
				assert.Zero(t, tr.ProfitLoss)
				continue
			}
			assert.Equal(t, want, math.Copysign(1, tr.ProfitLoss), "trade %s", tr.ID)
		}
		for i := 1; i < len(res.EquityCurve); i++ {
			assert.False(t, res.EquityCurve[i].Time.Before(res.EquityCurve[i-1].Time))
		}
	}
}

func TestEngineConcurrentRunsAreIndependent(t *testing.T) {
	t.Parallel()

	e := New()
	ticks := market.RandomWalk(market.WalkConfig{
		Symbol: "EUR_USD", Start: t0, Count: 1000, StartPrice: 1.1, Volatility: 0.002, Seed: 3,
	})
	want, err := e.Run(context.Background(), alwaysIn("EUR_USD", market.Buy, 0.5), ticks)
	require.NoError(t, err)

	var wg sync.WaitGroup
	results := make([]*Result, 8)
	for i := range results {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			results[i], _ = e.Run(context.Background(), alwaysIn("EUR_USD", market.Buy, 0.5), ticks)
		}(i)
	}
	wg.Wait()

	for _, r := range results {
		require.NotNil(t, r)
		assert.Equal(t, want.Trades, r.Trades)
		assert.Equal(t, want.Performance, r.Performance)
	}
}

func TestRunFeed(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "ticks.csv")
	f, err := os.Create(path)
	require.NoError(t, err)
	ticks := market.FromPrices("EUR_USD", t0, time.Minute, 1.1, 1.0, 1.0)
	require.NoError(t, market.WriteCSVTicks(f, ticks))
	require.NoError(t, f.Close())

	feed, err := market.NewCSVTicksFeed(path, time.Time{}, time.Time{})
	require.NoError(t, err)

	res, err := New().RunFeed(context.Background(), alwaysIn("EUR_USD", market.Buy, 1), feed)
	require.NoError(t, err)
	assert.Equal(t, 3, res.Ticks)
	require.Len(t, res.Trades, 1)
	assert.Equal(t, ReasonStopLoss, res.Trades[0].Reason)
}
