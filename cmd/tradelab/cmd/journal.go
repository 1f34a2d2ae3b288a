package cmd

import (
	"errors"
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/rustyeddy/tradelab/config"
	"github.com/rustyeddy/tradelab/journal"
	"github.com/rustyeddy/tradelab/pkg/id"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var journalCmd = &cobra.Command{
	Use:   "journal",
	Short: "Query the SQLite journal",
	Long: `Query runs recorded in the SQLite journal.

Subcommands:
  runs  - List recorded runs
  show  - Print a run as an Org-mode entry

Examples:
  tradelab journal runs --kind backtest
  tradelab journal show 01HV3K9J8Q4Y6Z2T7W1X5N0M3B`,
}

var journalRunsCmd = &cobra.Command{
	Use:   "runs",
	Short: "List recorded runs, newest first",
	Args:  cobra.NoArgs,
	RunE:  runJournalRuns,
}

var journalShowCmd = &cobra.Command{
	Use:   "show <run-id>",
	Short: "Print a run with its trades as Org-mode",
	Args:  cobra.MatchAll(cobra.ExactArgs(1), runIDArg),
	RunE:  runJournalShow,
}

// runIDArg rejects anything that is not a run ID before the journal is
// opened.
func runIDArg(_ *cobra.Command, args []string) error {
	if !id.Valid(args[0]) {
		return fmt.Errorf("%q is not a run id", args[0])
	}
	return nil
}

var journalKind string

func init() {
	rootCmd.AddCommand(journalCmd)
	journalCmd.AddCommand(journalRunsCmd)
	journalCmd.AddCommand(journalShowCmd)

	journalRunsCmd.Flags().StringVar(&journalKind, "kind", "", "backtest, optimize or monitor")
}

func openSQLite() (*journal.SQLite, error) {
	if cfg.Journal.Type != config.JournalSQLite {
		return nil, errors.New("journal queries need the sqlite journal (set --db)")
	}
	j, err := journal.NewSQLite(cfg.Journal.DBPath)
	if err != nil {
		return nil, fmt.Errorf("open db: %w", err)
	}
	return j, nil
}

func runJournalRuns(*cobra.Command, []string) error {
	j, err := openSQLite()
	if err != nil {
		return err
	}
	defer j.Close()

	runs, err := j.ListRuns(journalKind)
	if err != nil {
		return fmt.Errorf("list runs: %w", err)
	}
	w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "RUN\tKIND\tCREATED\tSTRATEGY\tSYMBOL\tTRADES\tNET P/L\tRETURN %")
	for _, r := range runs {
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\t%d\t%.2f\t%.2f\n",
			r.RunID, r.Kind, r.Created.Format("2006-01-02 15:04"), r.Strategy, r.Symbol,
			r.Trades, r.NetProfit, r.TotalReturn)
	}
	return w.Flush()
}

func runJournalShow(_ *cobra.Command, args []string) error {
	j, err := openSQLite()
	if err != nil {
		return err
	}
	defer j.Close()

	if minted, err := id.Time(args[0]); err == nil {
		log.Debug("run id issued", zap.String("run_id", args[0]), zap.Time("at", minted))
	}
	run, err := j.GetRun(args[0])
	if err != nil {
		return err
	}
	trades, err := j.ListTrades(run.RunID)
	if err != nil {
		return fmt.Errorf("list trades: %w", err)
	}
	return journal.WriteOrg(os.Stdout, run, trades)
}
