package journal

import (
	"fmt"
	"time"

	"github.com/rustyeddy/tradelab/backtest"
	"github.com/rustyeddy/tradelab/monitor"
	"github.com/rustyeddy/tradelab/optimize"
	"github.com/rustyeddy/tradelab/strategy"
	"gopkg.in/yaml.v3"
)

// BacktestRun summarizes res as a run record.
func BacktestRun(runID string, res *backtest.Result) (Run, error) {
	cfg, err := strategyYAML(res.Strategy)
	if err != nil {
		return Run{}, err
	}
	p := res.Performance
	r := Run{
		RunID:          runID,
		Kind:           KindBacktest,
		Created:        time.Now().UTC(),
		Strategy:       res.Strategy.Name,
		Symbol:         res.Strategy.Symbol,
		Config:         cfg,
		Start:          res.Start,
		End:            res.End,
		Trades:         p.TotalTrades,
		Wins:           p.WinningTrades,
		Losses:         p.LosingTrades,
		InitialCapital: res.InitialCapital,
		FinalEquity:    res.FinalEquity,
		NetProfit:      p.NetProfit,
		TotalReturn:    p.TotalReturn,
		WinRate:        p.WinRate,
		ProfitFactor:   p.ProfitFactor,
		MaxDrawdown:    p.MaxDrawdown,
		Sharpe:         p.SharpeRatio,
		Sortino:        p.SortinoRatio,
	}
	if res.Open != nil {
		r.Notes = append(r.Notes, fmt.Sprintf("position still open: %s %.0f @ %.5f",
			res.Open.Side, res.Open.Quantity, res.Open.EntryPrice))
	}
	if res.Rejected > 0 {
		r.Notes = append(r.Notes, fmt.Sprintf("%d out of order ticks skipped", res.Rejected))
	}
	return r, nil
}

func Trade(runID string, t backtest.Trade) TradeRecord {
	return TradeRecord{
		RunID:      runID,
		TradeID:    t.ID,
		Symbol:     t.Symbol,
		Side:       t.Side.String(),
		Quantity:   t.Quantity,
		EntryPrice: t.EntryPrice,
		ExitPrice:  t.ExitPrice,
		OpenTime:   t.EntryTime,
		CloseTime:  t.ExitTime,
		RealizedPL: t.ProfitLoss,
		Reason:     t.Reason,
	}
}

func Equity(runID string, pt backtest.EquityPoint) EquitySnapshot {
	return EquitySnapshot{RunID: runID, Time: pt.Time, Equity: pt.Equity, DrawdownPct: pt.DrawdownPct}
}

func Generation(runID string, g optimize.Generation) GenerationRecord {
	return GenerationRecord{RunID: runID, Index: g.Index, Best: g.Best, Mean: g.Mean}
}

func Alert(runID string, a monitor.Alert) AlertRecord {
	return AlertRecord{
		RunID:     runID,
		Time:      a.Time,
		Severity:  string(a.Severity),
		Kind:      string(a.Kind),
		Message:   a.Message,
		Threshold: a.Threshold,
		Value:     a.Value,
	}
}

// RecordBacktest writes the run, its trades and its equity curve.
func RecordBacktest(j Journal, runID string, res *backtest.Result) error {
	run, err := BacktestRun(runID, res)
	if err != nil {
		return err
	}
	if err := j.RecordRun(run); err != nil {
		return err
	}
	for _, t := range res.Trades {
		if err := j.RecordTrade(Trade(runID, t)); err != nil {
			return err
		}
	}
	for _, pt := range res.EquityCurve {
		if err := j.RecordEquity(Equity(runID, pt)); err != nil {
			return err
		}
	}
	return nil
}

// OptimizeRun summarizes an optimization. The best configuration is stored
// as the run's strategy config.
func OptimizeRun(runID string, res *optimize.Result) (Run, error) {
	cfg, err := strategyYAML(res.BestConfig)
	if err != nil {
		return Run{}, err
	}
	r := Run{
		RunID:       runID,
		Kind:        KindOptimize,
		Created:     time.Now().UTC(),
		Strategy:    res.BestConfig.Name,
		Symbol:      res.BestConfig.Symbol,
		Config:      cfg,
		BestFitness: res.BestFitness,
	}
	r.Notes = append(r.Notes, fmt.Sprintf("%d evaluations over %d generations in %s",
		res.Evaluations, len(res.History), res.Duration.Round(time.Millisecond)))
	return r, nil
}

// RecordOptimization writes the run and its generation history.
func RecordOptimization(j Journal, runID string, res *optimize.Result) error {
	run, err := OptimizeRun(runID, res)
	if err != nil {
		return err
	}
	if err := j.RecordRun(run); err != nil {
		return err
	}
	for _, g := range res.History {
		if err := j.RecordGeneration(Generation(runID, g)); err != nil {
			return err
		}
	}
	return nil
}

func strategyYAML(c strategy.Config) (string, error) {
	b, err := yaml.Marshal(c)
	if err != nil {
		return "", fmt.Errorf("encode strategy %q: %w", c.Name, err)
	}
	return string(b), nil
}
