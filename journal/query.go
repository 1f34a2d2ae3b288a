package journal

import (
	"database/sql"
	"errors"
	"fmt"
	"strings"
)

var ErrNotFound = errors.New("journal: not found")

// GetRun returns the run record for runID.
func (j *SQLite) GetRun(runID string) (Run, error) {
	var (
		r     Run
		notes string
	)
	row := j.db.QueryRow(`
		SELECT run_id, kind, created, strategy, symbol, config, start_time, end_time,
		       trades, wins, losses, initial_capital, final_equity, net_profit, total_return,
		       win_rate, profit_factor, max_drawdown, sharpe, sortino, best_fitness, notes
		FROM runs
		WHERE run_id = ?`, runID)

	err := row.Scan(
		&r.RunID, &r.Kind, &r.Created, &r.Strategy, &r.Symbol, &r.Config, &r.Start, &r.End,
		&r.Trades, &r.Wins, &r.Losses, &r.InitialCapital, &r.FinalEquity, &r.NetProfit, &r.TotalReturn,
		&r.WinRate, &r.ProfitFactor, &r.MaxDrawdown, &r.Sharpe, &r.Sortino, &r.BestFitness, &notes,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return Run{}, fmt.Errorf("run %q: %w", runID, ErrNotFound)
		}
		return Run{}, err
	}
	if notes != "" {
		r.Notes = strings.Split(notes, "\n")
	}
	return r, nil
}

// ListRuns returns every run of kind, newest first. An empty kind lists
// all runs.
func (j *SQLite) ListRuns(kind string) ([]Run, error) {
	rows, err := j.db.Query(`
		SELECT run_id FROM runs
		WHERE ? = '' OR kind = ?
		ORDER BY created DESC, run_id DESC`, kind, kind)
	if err != nil {
		return nil, err
	}
	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			rows.Close()
			return nil, err
		}
		ids = append(ids, id)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, err
	}

	out := make([]Run, 0, len(ids))
	for _, id := range ids {
		r, err := j.GetRun(id)
		if err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	return out, nil
}

// ListTrades returns the trades of runID ordered by close time.
func (j *SQLite) ListTrades(runID string) ([]TradeRecord, error) {
	rows, err := j.db.Query(`
		SELECT run_id, trade_id, symbol, side, quantity, entry_price, exit_price, open_time, close_time, realized_pl, reason
		FROM trades
		WHERE run_id = ?
		ORDER BY close_time ASC, rowid ASC`, runID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []TradeRecord
	for rows.Next() {
		var rec TradeRecord
		if err := rows.Scan(
			&rec.RunID,
			&rec.TradeID,
			&rec.Symbol,
			&rec.Side,
			&rec.Quantity,
			&rec.EntryPrice,
			&rec.ExitPrice,
			&rec.OpenTime,
			&rec.CloseTime,
			&rec.RealizedPL,
			&rec.Reason,
		); err != nil {
			return nil, err
		}
		out = append(out, rec)
	}
	return out, rows.Err()
}

// ListEquity returns the equity curve of runID in insertion order.
func (j *SQLite) ListEquity(runID string) ([]EquitySnapshot, error) {
	rows, err := j.db.Query(`
		SELECT run_id, time, equity, drawdown_pct
		FROM equity
		WHERE run_id = ?
		ORDER BY rowid ASC`, runID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []EquitySnapshot
	for rows.Next() {
		var e EquitySnapshot
		if err := rows.Scan(&e.RunID, &e.Time, &e.Equity, &e.DrawdownPct); err != nil {
			return nil, err
		}
		out = append(out, e)
	}
	return out, rows.Err()
}

func (j *SQLite) ListGenerations(runID string) ([]GenerationRecord, error) {
	rows, err := j.db.Query(`
		SELECT run_id, idx, best, mean
		FROM generations
		WHERE run_id = ?
		ORDER BY idx ASC`, runID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []GenerationRecord
	for rows.Next() {
		var g GenerationRecord
		if err := rows.Scan(&g.RunID, &g.Index, &g.Best, &g.Mean); err != nil {
			return nil, err
		}
		out = append(out, g)
	}
	return out, rows.Err()
}

func (j *SQLite) ListAlerts(runID string) ([]AlertRecord, error) {
	rows, err := j.db.Query(`
		SELECT run_id, time, severity, kind, message, threshold, value
		FROM alerts
		WHERE run_id = ?
		ORDER BY time ASC, rowid ASC`, runID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []AlertRecord
	for rows.Next() {
		var a AlertRecord
		if err := rows.Scan(&a.RunID, &a.Time, &a.Severity, &a.Kind, &a.Message, &a.Threshold, &a.Value); err != nil {
			return nil, err
		}
		out = append(out, a)
	}
	return out, rows.Err()
}
