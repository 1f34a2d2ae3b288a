package market

import (
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
	"time"
)

// CSVTicksFeed reads canonical tick CSV rows:
//
//	time,symbol,bid,ask[,volume]
//
// where time is RFC3339 or RFC3339Nano. Price is set to the bid/ask mid.
//
// It optionally filters ticks to [From, To) if provided.
// Header row ("time,...") is allowed.
// Empty/short rows are skipped.
type CSVTicksFeed struct {
	f    *os.File
	r    *csv.Reader
	from time.Time
	to   time.Time

	sawFirst bool
}

func NewCSVTicksFeed(path string, from, to time.Time) (*CSVTicksFeed, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}

	r := csv.NewReader(f)
	r.FieldsPerRecord = -1

	return &CSVTicksFeed{f: f, r: r, from: from, to: to}, nil
}

func (f *CSVTicksFeed) Close() error {
	if f.f != nil {
		return f.f.Close()
	}
	return nil
}

// Next returns the next tick in range. ok is false at end of file.
func (f *CSVTicksFeed) Next() (Tick, bool, error) {
	for {
		row, err := f.r.Read()
		if err == io.EOF {
			return Tick{}, false, nil
		}
		if err != nil {
			return Tick{}, false, err
		}
		if len(row) == 0 {
			continue
		}

		// Allow a single header row
		if !f.sawFirst {
			f.sawFirst = true
			if strings.EqualFold(strings.TrimSpace(row[0]), "time") {
				continue
			}
		}

		tk, ok, err := parseTickRow(row)
		if err != nil {
			return Tick{}, false, err
		}
		if !ok {
			continue
		}
		if !inRange(tk.Time, f.from, f.to) {
			continue
		}
		return tk, true, nil
	}
}

// LoadCSVTicks reads every tick of path in [from, to).
func LoadCSVTicks(path string, from, to time.Time) ([]Tick, error) {
	feed, err := NewCSVTicksFeed(path, from, to)
	if err != nil {
		return nil, err
	}
	defer feed.Close()

	var out []Tick
	for {
		tk, ok, err := feed.Next()
		if err != nil {
			return nil, fmt.Errorf("%s: %w", path, err)
		}
		if !ok {
			return out, nil
		}
		out = append(out, tk)
	}
}

// WriteCSVTicks writes ticks in the format read by CSVTicksFeed, header
// included.
func WriteCSVTicks(w io.Writer, ticks []Tick) error {
	cw := csv.NewWriter(w)
	if err := cw.Write([]string{"time", "symbol", "bid", "ask", "volume"}); err != nil {
		return err
	}
	for _, tk := range ticks {
		err := cw.Write([]string{
			tk.Time.UTC().Format(time.RFC3339Nano),
			tk.Symbol,
			strconv.FormatFloat(tk.Bid, 'f', -1, 64),
			strconv.FormatFloat(tk.Ask, 'f', -1, 64),
			strconv.FormatFloat(tk.Volume, 'f', -1, 64),
		})
		if err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}

func parseTickRow(row []string) (Tick, bool, error) {
	// Need at least: time,symbol,bid,ask
	if len(row) < 4 {
		return Tick{}, false, nil
	}

	ts := strings.TrimSpace(row[0])
	if ts == "" {
		return Tick{}, false, nil
	}
	// Accept RFC3339 or RFC3339Nano.
	t, err := time.Parse(time.RFC3339, ts)
	if err != nil {
		t2, err2 := time.Parse(time.RFC3339Nano, ts)
		if err2 != nil {
			return Tick{}, false, fmt.Errorf("bad time %q: %w", ts, err)
		}
		t = t2
	}

	sym := strings.TrimSpace(row[1])
	if sym == "" {
		return Tick{}, false, nil
	}

	bid, err := strconv.ParseFloat(strings.TrimSpace(row[2]), 64)
	if err != nil {
		return Tick{}, false, fmt.Errorf("bad bid %q: %w", row[2], err)
	}
	ask, err := strconv.ParseFloat(strings.TrimSpace(row[3]), 64)
	if err != nil {
		return Tick{}, false, fmt.Errorf("bad ask %q: %w", row[3], err)
	}

	var vol float64
	if len(row) > 4 && strings.TrimSpace(row[4]) != "" {
		vol, err = strconv.ParseFloat(strings.TrimSpace(row[4]), 64)
		if err != nil {
			return Tick{}, false, fmt.Errorf("bad volume %q: %w", row[4], err)
		}
	}

	tk := Tick{Symbol: sym, Time: t, Bid: bid, Ask: ask, Volume: vol}
	tk.Price = tk.Mid()
	return tk, true, nil
}

func inRange(t, from, to time.Time) bool {
	if !from.IsZero() && t.Before(from) {
		return false
	}
	if !to.IsZero() && !t.Before(to) {
		return false
	}
	return true
}
