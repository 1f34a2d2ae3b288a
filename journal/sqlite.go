package journal

import (
	"database/sql"
	"fmt"
	"strings"

	_ "github.com/mattn/go-sqlite3"
)

type SQLite struct {
	db *sql.DB
}

var _ Journal = (*SQLite)(nil)

func NewSQLite(path string) (*SQLite, error) {
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, err
	}
	// a single connection keeps ":memory:" databases shared and
	// serializes writers
	db.SetMaxOpenConns(1)

	if _, err := db.Exec(Schema); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("journal schema: %w", err)
	}
	return &SQLite{db: db}, nil
}

// RecordRun inserts r, replacing an earlier record with the same RunID so a
// run can be recorded when it starts and again when it finishes.
func (j *SQLite) RecordRun(r Run) error {
	_, err := j.db.Exec(`
		INSERT OR REPLACE INTO runs
		(run_id, kind, created, strategy, symbol, config, start_time, end_time,
		 trades, wins, losses, initial_capital, final_equity, net_profit, total_return,
		 win_rate, profit_factor, max_drawdown, sharpe, sortino, best_fitness, notes)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		r.RunID, r.Kind, r.Created, r.Strategy, r.Symbol, r.Config, r.Start, r.End,
		r.Trades, r.Wins, r.Losses, r.InitialCapital, r.FinalEquity, r.NetProfit, r.TotalReturn,
		r.WinRate, r.ProfitFactor, r.MaxDrawdown, r.Sharpe, r.Sortino, r.BestFitness,
		strings.Join(r.Notes, "\n"),
	)
	if err != nil {
		return fmt.Errorf("record run %s: %w", r.RunID, err)
	}
	return nil
}

func (j *SQLite) RecordTrade(t TradeRecord) error {
	_, err := j.db.Exec(`
		INSERT INTO trades
		(run_id, trade_id, symbol, side, quantity, entry_price, exit_price, open_time, close_time, realized_pl, reason)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		t.RunID, t.TradeID, t.Symbol, t.Side, t.Quantity, t.EntryPrice,
		t.ExitPrice, t.OpenTime, t.CloseTime, t.RealizedPL, t.Reason,
	)
	if err != nil {
		return fmt.Errorf("record trade %s/%s: %w", t.RunID, t.TradeID, err)
	}
	return nil
}

func (j *SQLite) RecordEquity(e EquitySnapshot) error {
	_, err := j.db.Exec(`
		INSERT INTO equity
		(run_id, time, equity, drawdown_pct)
		VALUES (?, ?, ?, ?)`,
		e.RunID, e.Time, e.Equity, e.DrawdownPct,
	)
	return err
}

func (j *SQLite) RecordGeneration(g GenerationRecord) error {
	_, err := j.db.Exec(`
		INSERT OR REPLACE INTO generations
		(run_id, idx, best, mean)
		VALUES (?, ?, ?, ?)`,
		g.RunID, g.Index, g.Best, g.Mean,
	)
	return err
}

func (j *SQLite) RecordAlert(a AlertRecord) error {
	_, err := j.db.Exec(`
		INSERT INTO alerts
		(run_id, time, severity, kind, message, threshold, value)
		VALUES (?, ?, ?, ?, ?, ?, ?)`,
		a.RunID, a.Time, a.Severity, a.Kind, a.Message, a.Threshold, a.Value,
	)
	return err
}

func (j *SQLite) Close() error {
	return j.db.Close()
}
