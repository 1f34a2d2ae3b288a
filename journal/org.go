package journal

import (
	"fmt"
	"io"
	"os"
	"strings"
	"text/template"
	"time"
)

var runOrgFuncs = template.FuncMap{
	"date": func(t time.Time) string {
		if t.IsZero() {
			return "(none)"
		}
		return t.UTC().Format("2006-01-02")
	},
	"stamp": func(t time.Time) string {
		if t.IsZero() {
			t = time.Now()
		}
		return t.Format("2006-01-02 Mon 15:04")
	},
	"upper": strings.ToUpper,
	"indent": func(s string) string {
		return "  " + strings.ReplaceAll(strings.TrimRight(s, "\n"), "\n", "\n  ")
	},
}

var runOrg = template.Must(template.New("run").Funcs(runOrgFuncs).Parse(RunOrgTemplate))

// WriteOrg renders r, with its trades, as an Org-mode entry.
func WriteOrg(w io.Writer, r Run, trades []TradeRecord) error {
	if err := runOrg.Execute(w, r); err != nil {
		return fmt.Errorf("org report %s: %w", r.RunID, err)
	}
	if len(trades) > 0 {
		if _, err := io.WriteString(w, "\n** Trades\n"+FormatTradesOrg(trades)); err != nil {
			return err
		}
	}
	return nil
}

// WriteOrgFile writes the report to path, replacing any existing file.
func WriteOrgFile(path string, r Run, trades []TradeRecord) error {
	var b strings.Builder
	if err := WriteOrg(&b, r, trades); err != nil {
		return err
	}
	return os.WriteFile(path, []byte(b.String()), 0o644)
}

const RunOrgTemplate = `* {{upper .Kind}}: {{if .Strategy}}{{.Strategy}}{{else}}(strategy?){{end}} {{.Symbol}}
:PROPERTIES:
:RUN_ID:      {{.RunID}}
:KIND:        {{.Kind}}
:STRATEGY:    {{.Strategy}}
:SYMBOL:      {{.Symbol}}
:START_DATE:  {{date .Start}}
:END_DATE:    {{date .End}}
:START_BAL:   {{printf "%.2f" .InitialCapital}}
:END_BAL:     {{printf "%.2f" .FinalEquity}}
:NET_PL:      {{printf "%.2f" .NetProfit}}
:RETURN_PCT:  {{printf "%.2f" .TotalReturn}}
:MAX_DD_PCT:  {{printf "%.2f" .MaxDrawdown}}
:TRADES:      {{.Trades}}
:WINS:        {{.Wins}}
:LOSSES:      {{.Losses}}
:WIN_RATE:    {{printf "%.2f" .WinRate}}
:PROFIT_FAC:  {{printf "%.2f" .ProfitFactor}}
{{- if eq .Kind "optimize"}}
:BEST_FIT:    {{printf "%.4f" .BestFitness}}
{{- end}}
:CREATED:     [{{stamp .Created}}]
:END:

** Performance Summary
- Net P/L:          *{{printf "%.2f" .NetProfit}}*
- Return:           *{{printf "%.2f" .TotalReturn}}%*
- Max Drawdown:     *{{printf "%.2f" .MaxDrawdown}}%*
- Win Rate:         *{{printf "%.2f" .WinRate}}%*
- Profit Factor:    *{{printf "%.2f" .ProfitFactor}}*
- Sharpe:           *{{printf "%.2f" .Sharpe}}*
- Sortino:          *{{printf "%.2f" .Sortino}}*

** Trade Distribution
| Outcome | Count |
|---------+-------|
| Wins    | {{.Wins}} |
| Losses  | {{.Losses}} |
| Total   | {{.Trades}} |
{{- if .Config}}

** Strategy
#+begin_src yaml
{{indent .Config}}
#+end_src
{{- end}}
{{- if .Notes}}

** Observations
{{- range .Notes}}
- {{.}}
{{- end}}
{{- end}}
`

// FormatTradeOrg renders a trade as an Org-mode block. Facts go into the
// PROPERTIES drawer; Thesis, Execution and Review are left for the reader.
func FormatTradeOrg(t TradeRecord) string {
	var b strings.Builder
	fmt.Fprintf(&b, "*** Trade %s: %s %s\n", t.TradeID, t.Side, t.Symbol)
	b.WriteString(":PROPERTIES:\n")
	fmt.Fprintf(&b, ":RUN_ID: %s\n", t.RunID)
	fmt.Fprintf(&b, ":TRADE_ID: %s\n", t.TradeID)
	fmt.Fprintf(&b, ":SYMBOL: %s\n", t.Symbol)
	fmt.Fprintf(&b, ":SIDE: %s\n", t.Side)
	fmt.Fprintf(&b, ":QUANTITY: %.0f\n", t.Quantity)
	fmt.Fprintf(&b, ":ENTRY_PRICE: %.5f\n", t.EntryPrice)
	fmt.Fprintf(&b, ":EXIT_PRICE: %.5f\n", t.ExitPrice)
	fmt.Fprintf(&b, ":OPEN_TIME: %s\n", t.OpenTime.UTC().Format(time.RFC3339))
	fmt.Fprintf(&b, ":CLOSE_TIME: %s\n", t.CloseTime.UTC().Format(time.RFC3339))
	fmt.Fprintf(&b, ":REALIZED_PL: %s\n", money(t.RealizedPL))
	fmt.Fprintf(&b, ":REASON: %s\n", t.Reason)
	b.WriteString(":END:\n")
	b.WriteString("**** Thesis\n- \n")
	b.WriteString("**** Execution\n- \n")
	b.WriteString("**** Review\n- \n")
	return b.String()
}

func FormatTradesOrg(trades []TradeRecord) string {
	var b strings.Builder
	for i, t := range trades {
		if i > 0 {
			b.WriteString("\n")
		}
		b.WriteString(FormatTradeOrg(t))
	}
	return b.String()
}
