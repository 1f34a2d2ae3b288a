package cmd

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/rustyeddy/tradelab/backtest"
	"github.com/rustyeddy/tradelab/journal"
	"github.com/rustyeddy/tradelab/pkg/id"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var backtestCmd = &cobra.Command{
	Use:   "backtest",
	Short: "Replay a strategy over historical ticks",
	Long: `Backtest replays the configured strategy, or a preset, over a tick stream
and prints its trades and performance metrics.

Example:
  tradelab backtest --ticks data/eurusd.csv --strategy momentum
  tradelab backtest --synthetic 5000 --strategy rsi-reversion --symbol GBP_USD`,
	RunE: runBacktest,
}

var (
	btTicks    tickFlags
	btCloseEnd bool
	btJSON     bool
)

func init() {
	rootCmd.AddCommand(backtestCmd)

	btTicks.register(backtestCmd)
	backtestCmd.Flags().BoolVar(&btCloseEnd, "close-end", true, "close an open position on the last tick")
	backtestCmd.Flags().BoolVar(&btJSON, "json", false, "print the result as JSON")
}

func runBacktest(cmd *cobra.Command, _ []string) error {
	sc, err := btTicks.strategy()
	if err != nil {
		return fmt.Errorf("strategy: %w", err)
	}
	ticks, err := btTicks.ticks(sc.Symbol)
	if err != nil {
		return fmt.Errorf("ticks: %w", err)
	}

	runID := id.New()
	log.Info("backtest started",
		zap.String("run_id", runID),
		zap.String("strategy", sc.Name),
		zap.String("symbol", sc.Symbol),
		zap.Int("ticks", len(ticks)))

	eng := newEngine(btCloseEnd, backtest.WithProgress(progressLogger(runID), 0))
	res, err := eng.Run(cmd.Context(), sc, ticks)
	if err != nil {
		return err
	}

	if btJSON {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		if err := enc.Encode(res); err != nil {
			return err
		}
	} else {
		backtest.PrintResult(os.Stdout, res)
	}

	j, err := openJournal()
	if err != nil {
		return err
	}
	if j == nil {
		return nil
	}
	defer j.Close()

	if err := journal.RecordBacktest(j, runID, res); err != nil {
		return fmt.Errorf("journal: %w", err)
	}
	run, err := journal.BacktestRun(runID, res)
	if err != nil {
		return err
	}
	trades := make([]journal.TradeRecord, len(res.Trades))
	for i, t := range res.Trades {
		trades[i] = journal.Trade(runID, t)
	}
	writeOrg(run, trades)

	log.Info("backtest journaled", zap.String("run_id", runID), zap.Int("trades", len(trades)))
	return nil
}
