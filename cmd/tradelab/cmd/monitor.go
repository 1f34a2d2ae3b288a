package cmd

import (
	"context"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/rustyeddy/tradelab/journal"
	"github.com/rustyeddy/tradelab/monitor"
	"github.com/rustyeddy/tradelab/pkg/id"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var monitorCmd = &cobra.Command{
	Use:   "monitor",
	Short: "Watch a portfolio file against the risk limits",
	Long: `Monitor re-reads a YAML portfolio snapshot every interval, recomputes
risk metrics and prints an alert for every limit breach. Alerts are
journaled. Stop with Ctrl-C.

Example:
  tradelab monitor --portfolio portfolio.yaml --interval 2s`,
	RunE: runMonitor,
}

var (
	monPortfolio string
	monInterval  time.Duration
	monFor       time.Duration
	monOnce      bool
)

func init() {
	rootCmd.AddCommand(monitorCmd)

	monitorCmd.Flags().StringVarP(&monPortfolio, "portfolio", "p", "", "portfolio YAML, overrides the config")
	monitorCmd.Flags().DurationVar(&monInterval, "interval", 0, "cycle interval, overrides monitor.interval_ms")
	monitorCmd.Flags().DurationVar(&monFor, "for", 0, "stop after this long, 0 runs until interrupted")
	monitorCmd.Flags().BoolVar(&monOnce, "once", false, "run a single cycle and print the metrics")
}

func runMonitor(cmd *cobra.Command, _ []string) error {
	path := cfg.Monitor.Portfolio
	if monPortfolio != "" {
		path = monPortfolio
	}
	if _, err := os.Stat(path); err != nil {
		return fmt.Errorf("portfolio: %w", err)
	}
	mc := cfg.MonitorSettings()
	if monInterval > 0 {
		mc.Interval = monInterval
	}

	runID := id.New()
	j, err := openJournal()
	if err != nil {
		return err
	}
	if j != nil {
		defer j.Close()
		if err := j.RecordRun(journal.Run{
			RunID:          runID,
			Kind:           journal.KindMonitor,
			Created:        time.Now().UTC(),
			Strategy:       cfg.Strategy.Name,
			InitialCapital: cfg.Account.Balance,
			Notes:          []string{"portfolio " + path},
		}); err != nil {
			return fmt.Errorf("journal: %w", err)
		}
	}

	onAlert := func(a monitor.Alert) {
		fmt.Printf("%s %s\n", a.Time.Format(time.RFC3339), a)
		if j == nil {
			return
		}
		if err := j.RecordAlert(journal.Alert(runID, a)); err != nil {
			log.Warn("journal alert", zap.Error(err))
		}
	}
	m := monitor.New(monitor.FileSource{Path: path}, mc,
		monitor.WithLogger(log.With(zap.String("run_id", runID))),
		monitor.WithAlertHandler(onAlert))

	ctx := cmd.Context()
	if monOnce {
		m.Refresh(ctx)
		return printMetrics(m)
	}

	if monFor > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, monFor)
		defer cancel()
	}
	if err := m.Start(ctx); err != nil {
		return err
	}
	fmt.Printf("monitoring %s every %s (run %s)\n", path, mc.Interval, runID)

	<-ctx.Done()
	m.Stop()
	return printMetrics(m)
}

func printMetrics(m *monitor.Monitor) error {
	met, ok := m.LatestMetrics()
	if !ok {
		return errors.New("no successful monitoring cycle")
	}
	p := m.DynamicParams()

	fmt.Println()
	fmt.Println("Portfolio Risk")
	fmt.Println("--------------------------------------------------")
	fmt.Printf("Equity:        %.2f\n", met.Equity)
	fmt.Printf("Drawdown:      %.2f%% (max %.2f%%)\n", met.Drawdown.Current, met.Drawdown.Maximum)
	fmt.Printf("Volatility:    %.2f%%\n", met.Volatility)
	fmt.Printf("VaR:           %.2f\n", met.ValueAtRisk)
	fmt.Printf("ES:            %.2f\n", met.ExpectedShortfall)
	fmt.Printf("Leverage:      %.2f\n", met.Exposure.Leverage)
	fmt.Printf("Positions:     %d\n", met.OpenPositions)
	fmt.Printf("Condition:     %s (size factor %.2f)\n", p.Condition, p.AdjustmentFactor)
	fmt.Printf("Alerts:        %d\n", len(m.LatestAlerts(0)))
	return nil
}
