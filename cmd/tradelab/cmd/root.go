package cmd

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"path/filepath"
	"time"

	"github.com/joho/godotenv"
	"github.com/rustyeddy/tradelab/config"
	"github.com/rustyeddy/tradelab/internal/logging"
	"github.com/rustyeddy/tradelab/journal"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var rootCmd = &cobra.Command{
	Use:   "tradelab",
	Short: "Strategy backtesting, optimization and live risk monitoring",
	Long: `Tradelab evaluates rule based trading strategies and watches portfolio risk.

It provides tools for:
  - Backtesting a strategy over historical or synthetic ticks
  - Evolving strategy parameters with a genetic optimizer
  - Monitoring a live portfolio against risk limits
  - Journaling runs, trades, equity curves and alerts to SQLite or CSV`,
	SilenceUsage:      true,
	SilenceErrors:     true,
	PersistentPreRunE: setup,
	PersistentPostRun: func(*cobra.Command, []string) {
		if log != nil {
			_ = log.Sync()
		}
	},
}

var (
	cfgFile  string
	envFile  string
	dbPath   string
	logLevel string

	cfg *config.Config
	log = zap.NewNop()
)

// Execute runs the root command. Cancelling ctx stops long running
// commands.
func Execute(ctx context.Context) error {
	return rootCmd.ExecuteContext(ctx)
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "path to config file (defaults when empty)")
	rootCmd.PersistentFlags().StringVar(&envFile, "env", ".env", "dotenv file loaded before the config")
	rootCmd.PersistentFlags().StringVar(&dbPath, "db", "", "SQLite journal database, overrides the config")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "log level: debug|info|warn|error")
}

// setup loads .env, the config file and the logger. Flags win over the
// environment, which wins over the file.
func setup(cmd *cobra.Command, _ []string) error {
	if err := godotenv.Load(envFile); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("load %s: %w", envFile, err)
	}

	if cfgFile == "" {
		cfg = config.Default()
		cfg.ApplyEnv()
	} else {
		c, err := config.LoadFromFile(cfgFile)
		if err != nil {
			return err
		}
		cfg = c
	}
	if dbPath != "" {
		cfg.Journal.Type = config.JournalSQLite
		cfg.Journal.DBPath = dbPath
	}
	if logLevel != "" {
		cfg.LogLevel = logLevel
	}

	l, err := logging.New(cfg.LogLevel)
	if err != nil {
		return err
	}
	log = l
	log.Debug("config loaded",
		zap.String("file", cfgFile),
		zap.String("journal", cfg.Journal.Type),
		zap.String("strategy", cfg.Strategy.Name))
	return nil
}

// openJournal returns nil when journaling is disabled.
func openJournal() (journal.Journal, error) {
	switch cfg.Journal.Type {
	case config.JournalSQLite:
		j, err := journal.NewSQLite(cfg.Journal.DBPath)
		if err != nil {
			return nil, fmt.Errorf("open journal %s: %w", cfg.Journal.DBPath, err)
		}
		return j, nil
	case config.JournalCSV:
		return journal.NewCSV(cfg.Journal.Dir)
	}
	return nil, nil
}

// writeOrg writes the Org report of a run when journal.org_dir is set.
func writeOrg(run journal.Run, trades []journal.TradeRecord) {
	if cfg.Journal.OrgDir == "" {
		return
	}
	path := filepath.Join(cfg.Journal.OrgDir, run.RunID+".org")
	if err := journal.WriteOrgFile(path, run, trades); err != nil {
		log.Warn("org report", zap.String("path", path), zap.Error(err))
		return
	}
	log.Info("org report written", zap.String("path", path))
}

// parseTime accepts RFC3339 or a plain date. Empty is the zero time.
func parseTime(s string) (time.Time, error) {
	if s == "" {
		return time.Time{}, nil
	}
	if t, err := time.Parse(time.RFC3339, s); err == nil {
		return t, nil
	}
	t, err := time.Parse("2006-01-02", s)
	if err != nil {
		return time.Time{}, fmt.Errorf("time %q: want RFC3339 or YYYY-MM-DD", s)
	}
	return t, nil
}
