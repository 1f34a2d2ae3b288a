package journal

import (
	"context"
	"database/sql"
	"math"
	"path/filepath"
	"testing"
	"time"

	_ "github.com/mattn/go-sqlite3"
	"github.com/rustyeddy/tradelab/backtest"
	"github.com/rustyeddy/tradelab/market"
	"github.com/rustyeddy/tradelab/monitor"
	"github.com/rustyeddy/tradelab/optimize"
	"github.com/rustyeddy/tradelab/strategy"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var t0 = time.Date(2024, 4, 10, 9, 0, 0, 0, time.UTC)

func newTestSQLite(t *testing.T) (*SQLite, string) {
	t.Helper()

	path := filepath.Join(t.TempDir(), "test.db")
	j, err := NewSQLite(path)
	require.NoError(t, err)
	return j, path
}

func sampleTrade(runID, id string, pl float64) TradeRecord {
	return TradeRecord{
		RunID:      runID,
		TradeID:    id,
		Symbol:     "EUR_USD",
		Side:       "BUY",
		Quantity:   1500,
		EntryPrice: 1.08500,
		ExitPrice:  1.08750,
		OpenTime:   t0,
		CloseTime:  t0.Add(6 * time.Hour),
		RealizedPL: pl,
		Reason:     "take_profit",
	}
}

// sampleBacktest runs a real backtest that stops out once.
func sampleBacktest(t *testing.T) *backtest.Result {
	t.Helper()

	prices := []float64{100, 101, 102, 98, 97, 99, 100}
	ticks := market.FromPrices("AAPL", t0, time.Minute, prices...)
	cfg := strategy.Config{
		Name:   "dip",
		Symbol: "AAPL",
		Side:   market.Buy,
		Entry:  []strategy.Condition{{Indicator: "PRICE", Operator: strategy.GT, Value: 0}},
		Exit:   []strategy.Condition{{Indicator: "PRICE", Operator: strategy.LT, Value: 0}},
		Risk:   strategy.RiskParameters{StopLossPct: 3},
	}
	res, err := backtest.New().Run(context.Background(), cfg, ticks)
	require.NoError(t, err)
	require.NotEmpty(t, res.Trades)
	return res
}

func TestSQLiteSchemaCreated(t *testing.T) {
	t.Parallel()

	j, path := newTestSQLite(t)
	require.NoError(t, j.Close())

	db, err := sql.Open("sqlite3", path)
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	rows, err := db.Query(`SELECT name FROM sqlite_master WHERE type='table'`)
	require.NoError(t, err)
	defer rows.Close()

	found := map[string]bool{}
	for rows.Next() {
		var name string
		require.NoError(t, rows.Scan(&name))
		found[name] = true
	}
	require.NoError(t, rows.Err())

	for _, table := range []string{"runs", "trades", "equity", "generations", "alerts"} {
		assert.True(t, found[table], table)
	}
}

func TestSQLiteReopenKeepsData(t *testing.T) {
	t.Parallel()

	j, path := newTestSQLite(t)
	require.NoError(t, j.RecordTrade(sampleTrade("R1", "1", 10)))
	require.NoError(t, j.Close())

	j, err := NewSQLite(path)
	require.NoError(t, err)
	defer j.Close()

	trades, err := j.ListTrades("R1")
	require.NoError(t, err)
	assert.Len(t, trades, 1)
}

func TestSQLiteTrades(t *testing.T) {
	t.Parallel()

	j, _ := newTestSQLite(t)
	defer j.Close()

	want := sampleTrade("R1", "1", 375)
	later := sampleTrade("R1", "2", -50)
	later.CloseTime = want.CloseTime.Add(time.Hour)
	other := sampleTrade("R2", "1", 5)

	require.NoError(t, j.RecordTrade(later))
	require.NoError(t, j.RecordTrade(want))
	require.NoError(t, j.RecordTrade(other))

	got, err := j.ListTrades("R1")
	require.NoError(t, err)
	require.Len(t, got, 2)

	first := got[0]
	assert.Equal(t, want.TradeID, first.TradeID)
	assert.Equal(t, want.Symbol, first.Symbol)
	assert.Equal(t, want.Side, first.Side)
	assert.InDelta(t, want.Quantity, first.Quantity, 1e-6)
	assert.InDelta(t, want.EntryPrice, first.EntryPrice, 1e-9)
	assert.InDelta(t, want.ExitPrice, first.ExitPrice, 1e-9)
	assert.True(t, first.OpenTime.Equal(want.OpenTime))
	assert.True(t, first.CloseTime.Equal(want.CloseTime))
	assert.InDelta(t, want.RealizedPL, first.RealizedPL, 1e-6)
	assert.Equal(t, want.Reason, first.Reason)
	assert.Equal(t, "2", got[1].TradeID)

	assert.Error(t, j.RecordTrade(want), "trade ids are unique within a run")

	none, err := j.ListTrades("missing")
	require.NoError(t, err)
	assert.Empty(t, none)
}

func TestSQLiteRuns(t *testing.T) {
	t.Parallel()

	j, _ := newTestSQLite(t)
	defer j.Close()

	run := Run{
		RunID:          "R1",
		Kind:           KindBacktest,
		Created:        t0,
		Strategy:       "momentum",
		Symbol:         "EUR_USD",
		Config:         "name: momentum\n",
		Start:          t0,
		End:            t0.Add(24 * time.Hour),
		Trades:         4,
		Wins:           3,
		Losses:         1,
		InitialCapital: 10_000,
		FinalEquity:    10_250,
		NetProfit:      250,
		TotalReturn:    2.5,
		WinRate:        75,
		ProfitFactor:   3.5,
		MaxDrawdown:    1.2,
		Sharpe:         1.1,
		Sortino:        1.6,
		Notes:          []string{"first", "second"},
	}
	require.NoError(t, j.RecordRun(run))

	got, err := j.GetRun("R1")
	require.NoError(t, err)
	assert.True(t, got.Created.Equal(run.Created))
	assert.True(t, got.End.Equal(run.End))
	got.Created, got.Start, got.End = run.Created, run.Start, run.End
	assert.Equal(t, run, got)

	run.FinalEquity = 9_000
	run.Notes = nil
	require.NoError(t, j.RecordRun(run), "recording again replaces")
	got, err = j.GetRun("R1")
	require.NoError(t, err)
	assert.Equal(t, 9_000.0, got.FinalEquity)
	assert.Nil(t, got.Notes)

	_, err = j.GetRun("nope")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestSQLiteListRuns(t *testing.T) {
	t.Parallel()

	j, _ := newTestSQLite(t)
	defer j.Close()

	require.NoError(t, j.RecordRun(Run{RunID: "A", Kind: KindBacktest, Created: t0}))
	require.NoError(t, j.RecordRun(Run{RunID: "B", Kind: KindOptimize, Created: t0.Add(time.Hour)}))
	require.NoError(t, j.RecordRun(Run{RunID: "C", Kind: KindBacktest, Created: t0.Add(2 * time.Hour)}))

	all, err := j.ListRuns("")
	require.NoError(t, err)
	require.Len(t, all, 3)
	assert.Equal(t, "C", all[0].RunID)

	bt, err := j.ListRuns(KindBacktest)
	require.NoError(t, err)
	require.Len(t, bt, 2)
	assert.Equal(t, []string{"C", "A"}, []string{bt[0].RunID, bt[1].RunID})
}

func TestRecordBacktest(t *testing.T) {
	t.Parallel()

	j, _ := newTestSQLite(t)
	defer j.Close()

	res := sampleBacktest(t)
	require.NoError(t, RecordBacktest(j, "BT", res))

	run, err := j.GetRun("BT")
	require.NoError(t, err)
	assert.Equal(t, KindBacktest, run.Kind)
	assert.Equal(t, "dip", run.Strategy)
	assert.Equal(t, res.Performance.TotalTrades, run.Trades)
	assert.InDelta(t, res.FinalEquity, run.FinalEquity, 1e-9)
	assert.Contains(t, run.Config, "symbol: AAPL")

	trades, err := j.ListTrades("BT")
	require.NoError(t, err)
	require.Len(t, trades, len(res.Trades))
	assert.Equal(t, res.Trades[0].Reason, trades[0].Reason)
	assert.Equal(t, "BUY", trades[0].Side)
	assert.InDelta(t, res.Trades[0].ProfitLoss, trades[0].RealizedPL, 1e-9)

	eq, err := j.ListEquity("BT")
	require.NoError(t, err)
	require.Len(t, eq, len(res.EquityCurve))
	for i, pt := range res.EquityCurve {
		assert.InDelta(t, pt.Equity, eq[i].Equity, 1e-9)
		assert.True(t, pt.Time.Equal(eq[i].Time))
	}
}

func TestRecordOptimization(t *testing.T) {
	t.Parallel()

	j, _ := newTestSQLite(t)
	defer j.Close()

	res := &optimize.Result{
		BestConfig:  strategy.Momentum("EUR_USD"),
		BestFitness: 1.25,
		History: []optimize.Generation{
			{Index: 0, Best: 0.5, Mean: math.Inf(-1)},
			{Index: 1, Best: 1.25, Mean: 0.4},
		},
		Evaluations: 30,
	}
	require.NoError(t, RecordOptimization(j, "OPT", res))

	run, err := j.GetRun("OPT")
	require.NoError(t, err)
	assert.Equal(t, KindOptimize, run.Kind)
	assert.Equal(t, 1.25, run.BestFitness)
	require.Len(t, run.Notes, 1)
	assert.Contains(t, run.Notes[0], "30 evaluations over 2 generations")

	gens, err := j.ListGenerations("OPT")
	require.NoError(t, err)
	require.Len(t, gens, 2)
	assert.True(t, math.IsInf(gens[0].Mean, -1))
	assert.Equal(t, GenerationRecord{RunID: "OPT", Index: 1, Best: 1.25, Mean: 0.4}, gens[1])
}

func TestSQLiteAlerts(t *testing.T) {
	t.Parallel()

	j, _ := newTestSQLite(t)
	defer j.Close()

	a := monitor.Alert{
		Severity:  monitor.Critical,
		Kind:      monitor.KindDrawdown,
		Message:   "drawdown 20.00% exceeds limit 10.00%",
		Threshold: 10,
		Value:     20,
		Time:      t0,
	}
	require.NoError(t, j.RecordAlert(Alert("MON", a)))
	require.NoError(t, j.RecordAlert(Alert("MON", monitor.Alert{Severity: monitor.Low, Kind: monitor.KindExposure, Time: t0.Add(time.Second)})))

	got, err := j.ListAlerts("MON")
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, "critical", got[0].Severity)
	assert.Equal(t, "drawdown", got[0].Kind)
	assert.Equal(t, a.Message, got[0].Message)
	assert.Equal(t, 20.0, got[0].Value)
	assert.True(t, got[0].Time.Equal(t0))
	assert.Equal(t, "exposure", got[1].Kind)
}
