// Package config loads the tradelab configuration file: the account, the
// strategy under study, sizing rules, risk limits and the settings of the
// monitor, optimizer and journal.
package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/rustyeddy/tradelab/indicators"
	"github.com/rustyeddy/tradelab/metrics"
	"github.com/rustyeddy/tradelab/monitor"
	"github.com/rustyeddy/tradelab/optimize"
	"github.com/rustyeddy/tradelab/risk"
	"github.com/rustyeddy/tradelab/strategy"
	"gopkg.in/yaml.v3"
)

// Environment variables that override the file.
const (
	EnvDB       = "TRADELAB_DB"
	EnvLogLevel = "TRADELAB_LOG_LEVEL"
)

// Journal types.
const (
	JournalSQLite = "sqlite"
	JournalCSV    = "csv"
	JournalNone   = "none"
)

type Config struct {
	LogLevel  string           `json:"log_level" yaml:"log_level"`
	Account   AccountConfig    `json:"account" yaml:"account"`
	Strategy  strategy.Config  `json:"strategy" yaml:"strategy"`
	Sizing    risk.SizerConfig `json:"sizing" yaml:"sizing"`
	Limits    risk.Limits      `json:"limits" yaml:"limits"`
	Monitor   MonitorConfig    `json:"monitor" yaml:"monitor"`
	Optimizer OptimizerConfig  `json:"optimizer" yaml:"optimizer"`
	Journal   JournalConfig    `json:"journal" yaml:"journal"`
}

type AccountConfig struct {
	ID           string  `json:"id" yaml:"id"`
	Currency     string  `json:"currency" yaml:"currency"`
	Balance      float64 `json:"balance" yaml:"balance"`
	RiskFreeRate float64 `json:"risk_free_rate" yaml:"risk_free_rate"` // annual fraction
}

type MonitorConfig struct {
	IntervalMS  int                `json:"interval_ms" yaml:"interval_ms"`
	HistorySize int                `json:"history_size" yaml:"history_size"`
	AlertBuffer int                `json:"alert_buffer" yaml:"alert_buffer"`
	Confidence  float64            `json:"confidence" yaml:"confidence"` // VaR level
	Portfolio   string             `json:"portfolio" yaml:"portfolio"`   // YAML snapshot re-read every cycle
	Thresholds  monitor.Thresholds `json:"thresholds" yaml:"thresholds"`
}

func (m MonitorConfig) Interval() time.Duration {
	return time.Duration(m.IntervalMS) * time.Millisecond
}

type OptimizerConfig struct {
	optimize.Config `yaml:",inline"`

	Fitness string                    `json:"fitness" yaml:"fitness"`
	Ranges  map[string]optimize.Range `json:"ranges" yaml:"ranges"`
}

type JournalConfig struct {
	Type   string `json:"type" yaml:"type"` // "sqlite", "csv" or "none"
	DBPath string `json:"db_path,omitempty" yaml:"db_path,omitempty"`
	Dir    string `json:"dir,omitempty" yaml:"dir,omitempty"`
	OrgDir string `json:"org_dir,omitempty" yaml:"org_dir,omitempty"` // Org reports, empty disables
}

// LoadFromFile reads path as YAML, falling back to JSON, applies the
// environment overrides and validates the result.
func LoadFromFile(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config file: %w", err)
	}

	cfg, err := parse(data, yaml.Unmarshal)
	if err != nil {
		var jerr error
		if cfg, jerr = parse(data, json.Unmarshal); jerr != nil {
			return nil, fmt.Errorf("parse config (tried YAML and JSON): %w", errors.Join(err, jerr))
		}
	}
	cfg.ApplyEnv()

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	return cfg, nil
}

// parse decodes data over the defaults. The strategy and the optimizer
// ranges are replaced as a whole when the file sets them, never merged.
// Ranges the file leaves out are derived from the strategy.
func parse(data []byte, unmarshal func([]byte, any) error) (*Config, error) {
	cfg := Default()
	def := *cfg
	cfg.Strategy = strategy.Config{}
	cfg.Optimizer.Ranges = nil

	if err := unmarshal(data, cfg); err != nil {
		return nil, err
	}
	if cfg.Strategy.Name == "" && cfg.Strategy.Symbol == "" && len(cfg.Strategy.Entry) == 0 {
		cfg.Strategy = def.Strategy
	}
	if cfg.Optimizer.Ranges == nil {
		cfg.Optimizer.Ranges = optimize.DefaultRanges(cfg.Strategy)
	}
	return cfg, nil
}

// SaveToFile writes YAML for .yaml and .yml paths and indented JSON
// otherwise.
func (c *Config) SaveToFile(path string) error {
	var (
		data []byte
		err  error
	)
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		data, err = yaml.Marshal(c)
	default:
		data, err = json.MarshalIndent(c, "", "  ")
	}
	if err != nil {
		return fmt.Errorf("marshal config: %w", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("write config file: %w", err)
	}
	return nil
}

// ApplyEnv overrides the journal database and log level from the
// environment. Setting TRADELAB_DB also selects the SQLite journal.
func (c *Config) ApplyEnv() {
	if v := os.Getenv(EnvDB); v != "" {
		c.Journal.Type = JournalSQLite
		c.Journal.DBPath = v
	}
	if v := os.Getenv(EnvLogLevel); v != "" {
		c.LogLevel = v
	}
}

// Validate reports every problem found, not just the first.
func (c *Config) Validate() error {
	var errs []error
	add := func(section string, err error) {
		if err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", section, err))
		}
	}

	switch strings.ToLower(c.LogLevel) {
	case "", "debug", "info", "warn", "error":
	default:
		errs = append(errs, fmt.Errorf("log_level %q must be debug, info, warn or error", c.LogLevel))
	}

	if c.Account.Currency == "" {
		errs = append(errs, errors.New("account.currency is required"))
	}
	if c.Account.Balance <= 0 {
		errs = append(errs, errors.New("account.balance must be positive"))
	}

	add("strategy", c.Strategy.Validate())

	if f := c.Sizing.BaseRiskFraction; f < 0 || f > 1 {
		errs = append(errs, errors.New("sizing.base_risk_fraction must be between 0 and 1"))
	}
	if c.Sizing.MaxPositionSize < 0 || c.Sizing.MaxLeverage < 0 || c.Sizing.MaxPositions < 0 || c.Sizing.LotStep < 0 {
		errs = append(errs, errors.New("sizing values must be >= 0"))
	}

	add("limits", c.Limits.Validate())

	if c.Monitor.IntervalMS <= 0 {
		errs = append(errs, errors.New("monitor.interval_ms must be positive"))
	}
	if cl := c.Monitor.Confidence; cl != 0 && (cl <= 0.5 || cl >= 1) {
		errs = append(errs, errors.New("monitor.confidence must be between 0.5 and 1"))
	}

	add("optimizer", c.Optimizer.Config.Validate())
	if c.Optimizer.Fitness != "" {
		if _, err := optimize.FitnessByName(c.Optimizer.Fitness); err != nil {
			add("optimizer", err)
		}
	}
	ev := indicators.NewEvaluator()
	for _, cond := range append(append([]strategy.Condition(nil), c.Strategy.Entry...), c.Strategy.Exit...) {
		if _, err := ev.Read(cond.Indicator, nil); err != nil {
			add("strategy", err)
		}
	}
	add("optimizer.ranges", optimize.CheckRanges(c.Strategy, c.Optimizer.Ranges, ev))

	switch c.Journal.Type {
	case JournalSQLite:
		if c.Journal.DBPath == "" {
			errs = append(errs, errors.New("journal.db_path required for sqlite journal"))
		}
	case JournalCSV:
		if c.Journal.Dir == "" {
			errs = append(errs, errors.New("journal.dir required for csv journal"))
		}
	case JournalNone, "":
	default:
		errs = append(errs, fmt.Errorf("journal.type %q must be sqlite, csv or none", c.Journal.Type))
	}

	return errors.Join(errs...)
}

// MonitorSettings converts the monitor and limits sections for
// monitor.New.
func (c *Config) MonitorSettings() monitor.Config {
	return monitor.Config{
		Interval:    c.Monitor.Interval(),
		Limits:      c.Limits,
		Thresholds:  c.Monitor.Thresholds,
		Risk:        metrics.RiskOptions{Confidence: c.Monitor.Confidence},
		HistorySize: c.Monitor.HistorySize,
		AlertBuffer: c.Monitor.AlertBuffer,
	}
}

// Policy is the pre-trade policy built from the limits and sizing
// sections.
func (c *Config) Policy() risk.Policy {
	return risk.Policy{Limits: c.Limits, MaxRiskFraction: c.Sizing.BaseRiskFraction * 2}
}

func Default() *Config {
	opt := optimize.DefaultConfig()
	opt.Workers = 0 // all cores
	return &Config{
		LogLevel: "info",
		Account: AccountConfig{
			ID:       "SIM-001",
			Currency: "USD",
			Balance:  100_000,
		},
		Strategy: strategy.Momentum("EUR_USD"),
		Sizing: risk.SizerConfig{
			BaseRiskFraction: risk.DefaultRiskFraction,
			MaxPositionSize:  1_000_000,
			MaxLeverage:      10,
			MaxPositions:     5,
			LotStep:          1,
		},
		Limits: risk.DefaultLimits(),
		Monitor: MonitorConfig{
			IntervalMS:  int(monitor.DefaultInterval / time.Millisecond),
			HistorySize: monitor.DefaultHistorySize,
			AlertBuffer: monitor.DefaultAlertBuffer,
			Confidence:  metrics.DefaultConfidence,
			Portfolio:   "portfolio.yaml",
			Thresholds:  monitor.DefaultThresholds(),
		},
		Optimizer: OptimizerConfig{
			Config:  opt,
			Fitness: "sharpe",
			Ranges:  optimize.DefaultRanges(strategy.Momentum("EUR_USD")),
		},
		Journal: JournalConfig{
			Type:   JournalSQLite,
			DBPath: "tradelab.db",
			Dir:    "journal",
		},
	}
}
