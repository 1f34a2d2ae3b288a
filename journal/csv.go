package journal

import (
	"encoding/csv"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/shopspring/decimal"
)

// CSV file names written by CSVJournal inside its directory.
const (
	RunsFile        = "runs.csv"
	TradesFile      = "trades.csv"
	EquityFile      = "equity.csv"
	GenerationsFile = "generations.csv"
	AlertsFile      = "alerts.csv"
)

var csvHeaders = map[string][]string{
	RunsFile: {"run_id", "kind", "created", "strategy", "symbol", "start", "end",
		"trades", "wins", "losses", "initial_capital", "final_equity", "net_profit",
		"total_return", "win_rate", "profit_factor", "max_drawdown", "sharpe", "sortino", "best_fitness"},
	TradesFile:      {"run_id", "trade_id", "symbol", "side", "quantity", "entry_price", "exit_price", "open_time", "close_time", "realized_pl", "reason"},
	EquityFile:      {"run_id", "time", "equity", "drawdown_pct"},
	GenerationsFile: {"run_id", "generation", "best", "mean"},
	AlertsFile:      {"run_id", "time", "severity", "kind", "message", "threshold", "value"},
}

type csvFile struct {
	f *os.File
	w *csv.Writer
}

// CSVJournal appends records to one CSV file per record type. Files are
// truncated when the journal is opened. It is safe for concurrent use.
type CSVJournal struct {
	mu    sync.Mutex
	files map[string]*csvFile
}

var _ Journal = (*CSVJournal)(nil)

func NewCSV(dir string) (*CSVJournal, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, err
	}
	j := &CSVJournal{files: make(map[string]*csvFile, len(csvHeaders))}
	for name, header := range csvHeaders {
		f, err := os.Create(filepath.Join(dir, name))
		if err != nil {
			_ = j.Close()
			return nil, err
		}
		cf := &csvFile{f: f, w: csv.NewWriter(f)}
		j.files[name] = cf
		if err := cf.write(header); err != nil {
			_ = j.Close()
			return nil, fmt.Errorf("%s header: %w", name, err)
		}
	}
	return j, nil
}

func (c *csvFile) write(row []string) error {
	if err := c.w.Write(row); err != nil {
		return err
	}
	c.w.Flush()
	return c.w.Error()
}

func (j *CSVJournal) write(name string, row []string) error {
	j.mu.Lock()
	defer j.mu.Unlock()
	cf, ok := j.files[name]
	if !ok {
		return fmt.Errorf("journal %s is closed", name)
	}
	return cf.write(row)
}

func (j *CSVJournal) RecordRun(r Run) error {
	return j.write(RunsFile, []string{
		r.RunID,
		r.Kind,
		ts(r.Created),
		r.Strategy,
		r.Symbol,
		ts(r.Start),
		ts(r.End),
		strconv.Itoa(r.Trades),
		strconv.Itoa(r.Wins),
		strconv.Itoa(r.Losses),
		money(r.InitialCapital),
		money(r.FinalEquity),
		money(r.NetProfit),
		f(r.TotalReturn),
		f(r.WinRate),
		f(r.ProfitFactor),
		f(r.MaxDrawdown),
		f(r.Sharpe),
		f(r.Sortino),
		f(r.BestFitness),
	})
}

func (j *CSVJournal) RecordTrade(t TradeRecord) error {
	return j.write(TradesFile, []string{
		t.RunID,
		t.TradeID,
		t.Symbol,
		t.Side,
		f(t.Quantity),
		f(t.EntryPrice),
		f(t.ExitPrice),
		ts(t.OpenTime),
		ts(t.CloseTime),
		money(t.RealizedPL),
		t.Reason,
	})
}

func (j *CSVJournal) RecordEquity(e EquitySnapshot) error {
	return j.write(EquityFile, []string{
		e.RunID,
		ts(e.Time),
		money(e.Equity),
		f(e.DrawdownPct),
	})
}

func (j *CSVJournal) RecordGeneration(g GenerationRecord) error {
	return j.write(GenerationsFile, []string{
		g.RunID,
		strconv.Itoa(g.Index),
		f(g.Best),
		f(g.Mean),
	})
}

func (j *CSVJournal) RecordAlert(a AlertRecord) error {
	return j.write(AlertsFile, []string{
		a.RunID,
		ts(a.Time),
		a.Severity,
		a.Kind,
		strings.ReplaceAll(a.Message, "\n", " "),
		f(a.Threshold),
		f(a.Value),
	})
}

// Close flushes and closes every file, returning the first error.
func (j *CSVJournal) Close() error {
	j.mu.Lock()
	defer j.mu.Unlock()

	var first error
	for name, cf := range j.files {
		cf.w.Flush()
		if err := cf.w.Error(); err != nil && first == nil {
			first = err
		}
		if err := cf.f.Close(); err != nil && first == nil {
			first = err
		}
		delete(j.files, name)
	}
	return first
}

func f(x float64) string {
	return strconv.FormatFloat(x, 'f', 6, 64)
}

// money rounds half away from zero to cents.
func money(x float64) string {
	if math.IsNaN(x) || math.IsInf(x, 0) {
		return f(x)
	}
	return decimal.NewFromFloat(x).StringFixed(2)
}

func ts(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.UTC().Format(time.RFC3339)
}
