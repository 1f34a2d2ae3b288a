// Package journal persists runs and everything they produce: trades,
// equity points, optimizer generations and risk alerts. Every record is
// keyed by the run ID, a ULID from pkg/id.
package journal

import (
	"time"
)

// Run kinds.
const (
	KindBacktest = "backtest"
	KindOptimize = "optimize"
	KindMonitor  = "monitor"
)

// Run describes one backtest, optimization or monitoring session.
// Percent fields are in percent.
type Run struct {
	RunID    string
	Kind     string
	Created  time.Time
	Strategy string
	Symbol   string
	Config   string // strategy config as YAML

	Start time.Time
	End   time.Time

	Trades int
	Wins   int
	Losses int

	InitialCapital float64
	FinalEquity    float64
	NetProfit      float64
	TotalReturn    float64
	WinRate        float64
	ProfitFactor   float64
	MaxDrawdown    float64
	Sharpe         float64
	Sortino        float64
	BestFitness    float64

	Notes []string
}

type TradeRecord struct {
	RunID      string
	TradeID    string
	Symbol     string
	Side       string
	Quantity   float64
	EntryPrice float64
	ExitPrice  float64
	OpenTime   time.Time
	CloseTime  time.Time
	RealizedPL float64
	Reason     string
}

type EquitySnapshot struct {
	RunID       string
	Time        time.Time
	Equity      float64
	DrawdownPct float64
}

type GenerationRecord struct {
	RunID string
	Index int
	Best  float64
	Mean  float64
}

type AlertRecord struct {
	RunID     string
	Time      time.Time
	Severity  string
	Kind      string
	Message   string
	Threshold float64
	Value     float64
}

type Journal interface {
	RecordRun(Run) error
	RecordTrade(TradeRecord) error
	RecordEquity(EquitySnapshot) error
	RecordGeneration(GenerationRecord) error
	RecordAlert(AlertRecord) error
	Close() error
}
