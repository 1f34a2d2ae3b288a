package cmd

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"testing"

	"github.com/rustyeddy/tradelab/config"
	"github.com/rustyeddy/tradelab/journal"
	"github.com/rustyeddy/tradelab/pkg/id"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// execute runs the root command. Commands share package state, so these
// tests do not run in parallel.
func execute(t *testing.T, args ...string) error {
	t.Helper()
	cfgFile, dbPath, logLevel = "", "", ""
	configInitPreset, configInitSymbol = "", ""
	rootCmd.SetArgs(append([]string{"--env", filepath.Join(t.TempDir(), "none.env")}, args...))
	return Execute(context.Background())
}

func TestTicksThenBacktest(t *testing.T) {
	dir := t.TempDir()
	ticks := filepath.Join(dir, "eurusd.csv")
	db := filepath.Join(dir, "journal.db")

	require.NoError(t, execute(t, "ticks", "-n", "500", "--seed", "3", "-o", ticks))
	info, err := os.Stat(ticks)
	require.NoError(t, err)
	assert.Positive(t, info.Size())

	require.NoError(t, execute(t, "--db", db, "--log-level", "error",
		"backtest", "--ticks", ticks, "--strategy", "always-in"))

	j, err := journal.NewSQLite(db)
	require.NoError(t, err)
	defer j.Close()

	runs, err := j.ListRuns(journal.KindBacktest)
	require.NoError(t, err)
	require.Len(t, runs, 1)
	assert.Equal(t, "always-in", runs[0].Strategy)
	assert.Equal(t, "EUR_USD", runs[0].Symbol)
}

func TestConfigInitAndValidate(t *testing.T) {
	path := filepath.Join(t.TempDir(), "tradelab.yaml")

	require.NoError(t, execute(t, "config", "init", "-o", path))
	require.NoError(t, execute(t, "config", "validate", "-f", path))
	require.NoError(t, execute(t, "--config", path, "version"))
}

func TestConfigInitPreset(t *testing.T) {
	path := filepath.Join(t.TempDir(), "cross.yaml")

	require.NoError(t, execute(t, "config", "init", "-o", path, "--strategy", "ema-cross", "--symbol", "GBP_USD"))
	c, err := config.LoadFromFile(path)
	require.NoError(t, err)
	assert.Equal(t, "ema-cross", c.Strategy.Name)
	assert.Equal(t, "GBP_USD", c.Strategy.Symbol)
	assert.Contains(t, c.Optimizer.Ranges, "entry.0.fast")
	assert.NotContains(t, c.Optimizer.Ranges, "entry.0.period")

	err = execute(t, "config", "init", "-o", path, "--strategy", "martingale")
	assert.ErrorContains(t, err, "unknown strategy")
}

func TestConfigValidateListsProblems(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bad.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
account:
  balance: -1
limits:
  max_drawdown: 150
optimizer:
  ranges:
    entry.0.fast: {min: 5, max: 10, step: 1}
`), 0o644))

	var stderr bytes.Buffer
	rootCmd.SetErr(&stderr)
	defer rootCmd.SetErr(nil)

	err := execute(t, "config", "validate", "-f", path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "3 problem(s)")
	assert.Contains(t, stderr.String(), "account.balance must be positive")
	assert.Contains(t, stderr.String(), "max_drawdown")
	assert.Contains(t, stderr.String(), "entry.0.fast")
}

func TestProblemLines(t *testing.T) {
	err := fmt.Errorf("invalid config: %w", errors.Join(errors.New("a is bad"), errors.New("b is bad")))
	assert.Equal(t, []string{"a is bad", "b is bad"}, problemLines(err))
}

func TestJournalShowRejectsBadRunID(t *testing.T) {
	err := execute(t, "--db", filepath.Join(t.TempDir(), "j.db"), "journal", "show", "not-a-run")
	assert.ErrorContains(t, err, "is not a run id")

	err = execute(t, "--db", filepath.Join(t.TempDir(), "j.db"), "journal", "show", id.New())
	assert.ErrorIs(t, err, journal.ErrNotFound)
}

func TestBacktestNeedsTicks(t *testing.T) {
	err := execute(t, "--db", filepath.Join(t.TempDir(), "j.db"), "--log-level", "error",
		"backtest", "--ticks", "", "--synthetic", "0")
	assert.ErrorContains(t, err, "--ticks or --synthetic")
}

func TestUnknownLogLevel(t *testing.T) {
	err := execute(t, "--log-level", "loud", "version")
	assert.ErrorContains(t, err, "unknown log level")
}
