package backtest

import (
	"fmt"
	"io"
	"time"
)

// PrintResult writes a human readable summary of r to w.
func PrintResult(w io.Writer, r *Result) {
	p := r.Performance

	fmt.Fprintln(w, "==================================================")
	fmt.Fprintln(w, " Backtest Result")
	fmt.Fprintln(w, "==================================================")

	fmt.Fprintf(w, "Strategy:      %s\n", r.Strategy.Name)
	fmt.Fprintf(w, "Symbol:        %s\n", r.Strategy.Symbol)
	fmt.Fprintf(w, "Side:          %s\n", r.Strategy.TradeSide())

	fmt.Fprintln(w)
	fmt.Fprintln(w, "Period")
	fmt.Fprintln(w, "--------------------------------------------------")
	if !r.Start.IsZero() {
		fmt.Fprintf(w, "Start:         %s\n", r.Start.Format(time.RFC3339))
		fmt.Fprintf(w, "End:           %s\n", r.End.Format(time.RFC3339))
	}
	fmt.Fprintf(w, "Ticks:         %d\n", r.Ticks)
	if r.Rejected > 0 {
		fmt.Fprintf(w, "Rejected:      %d\n", r.Rejected)
	}

	fmt.Fprintln(w)
	fmt.Fprintln(w, "Risk Parameters")
	fmt.Fprintln(w, "--------------------------------------------------")
	fmt.Fprintf(w, "Stop Loss:     %.2f%%\n", r.Strategy.Risk.StopLossPct)
	fmt.Fprintf(w, "Take Profit:   %.2f%%\n", r.Strategy.Risk.TakeProfitPct)
	if r.Strategy.Risk.TrailingStopPct > 0 {
		fmt.Fprintf(w, "Trailing Stop: %.2f%%\n", r.Strategy.Risk.TrailingStopPct)
	}
	if r.Strategy.Risk.MaxPositionSize > 0 {
		fmt.Fprintf(w, "Max Size:      %.0f\n", r.Strategy.Risk.MaxPositionSize)
	}

	fmt.Fprintln(w)
	fmt.Fprintln(w, "Trade Statistics")
	fmt.Fprintln(w, "--------------------------------------------------")
	fmt.Fprintf(w, "Trades:        %d\n", p.TotalTrades)
	fmt.Fprintf(w, "Wins:          %d\n", p.WinningTrades)
	fmt.Fprintf(w, "Losses:        %d\n", p.LosingTrades)
	fmt.Fprintf(w, "Win Rate:      %.2f%%\n", p.WinRate)
	if p.ProfitFactor > 0 {
		fmt.Fprintf(w, "Profit Factor: %.2f\n", p.ProfitFactor)
	}
	fmt.Fprintf(w, "Expectancy:    %.2f\n", p.Expectancy)

	fmt.Fprintln(w)
	fmt.Fprintln(w, "Account Performance")
	fmt.Fprintln(w, "--------------------------------------------------")
	fmt.Fprintf(w, "Start Balance: %.2f\n", r.InitialCapital)
	fmt.Fprintf(w, "End Balance:   %.2f\n", r.FinalEquity)
	fmt.Fprintf(w, "Net P/L:       %.2f\n", p.NetProfit)
	fmt.Fprintf(w, "Return:        %.2f%%\n", p.TotalReturn)
	if p.MaxDrawdown > 0 {
		fmt.Fprintf(w, "Max Drawdown:  %.2f%% (%d trades)\n", p.MaxDrawdown, p.MaxDrawdownDuration)
	}
	fmt.Fprintf(w, "Sharpe:        %.2f\n", p.SharpeRatio)
	fmt.Fprintf(w, "Sortino:       %.2f\n", p.SortinoRatio)
	fmt.Fprintf(w, "Kelly:         %.2f\n", p.KellyCriterion)

	if r.Open != nil {
		fmt.Fprintln(w)
		fmt.Fprintln(w, "Open Position")
		fmt.Fprintln(w, "--------------------------------------------------")
		fmt.Fprintf(w, "%s %.0f @ %.5f since %s\n",
			r.Open.Side, r.Open.Quantity, r.Open.EntryPrice, r.Open.EntryTime.Format(time.RFC3339))
	}

	fmt.Fprintln(w)
}
