package cmd

import (
	"fmt"
	"io"
	"sort"
	"strings"
	"text/tabwriter"

	"github.com/rustyeddy/tradelab/config"
	"github.com/rustyeddy/tradelab/optimize"
	"github.com/rustyeddy/tradelab/strategy"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"
)

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Generate, check or print configuration files",
	Long: `Manage tradelab configuration files.

Subcommands:
  init     - write a default configuration, optionally for a preset strategy
  validate - load a file and report every problem in it
  show     - print the effective configuration after env and flag overrides

Examples:
  tradelab config init -o tradelab.yaml --strategy ema-cross --symbol GBP_USD
  tradelab config validate -f tradelab.yaml
  tradelab --config tradelab.yaml --db run.db config show`,
}

var configInitCmd = &cobra.Command{
	Use:   "init",
	Short: "Write a default configuration file",
	RunE:  runConfigInit,
}

var configValidateCmd = &cobra.Command{
	Use:   "validate",
	Short: "Validate a configuration file",
	RunE:  runConfigValidate,
}

var configShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Print the effective configuration as YAML",
	RunE: func(cmd *cobra.Command, _ []string) error {
		return yaml.NewEncoder(cmd.OutOrStdout()).Encode(cfg)
	},
}

var (
	configInitOutput   string
	configInitPreset   string
	configInitSymbol   string
	configValidatePath string
)

func init() {
	rootCmd.AddCommand(configCmd)
	configCmd.AddCommand(configInitCmd, configValidateCmd, configShowCmd)

	configInitCmd.Flags().StringVarP(&configInitOutput, "output", "o", "tradelab.yaml", "output config file path")
	configInitCmd.Flags().StringVarP(&configInitPreset, "strategy", "s", "",
		"preset strategy ("+strings.Join(strategy.PresetNames(), ", ")+")")
	configInitCmd.Flags().StringVarP(&configInitSymbol, "symbol", "i", "", "symbol for the preset strategy")
	configValidateCmd.Flags().StringVarP(&configValidatePath, "file", "f", "", "path to config file (required)")
	_ = configValidateCmd.MarkFlagRequired("file")
}

// initialConfig is the default configuration with the strategy swapped for
// a preset. The optimizer ranges follow the strategy.
func initialConfig(preset, symbol string) (*config.Config, error) {
	c := config.Default()
	if preset == "" && symbol == "" {
		return c, nil
	}
	if preset == "" {
		preset = c.Strategy.Name
	}
	if symbol == "" {
		symbol = c.Strategy.Symbol
	}
	sc, err := strategy.ByName(preset, symbol)
	if err != nil {
		return nil, err
	}
	c.Strategy = sc
	c.Optimizer.Ranges = optimize.DefaultRanges(sc)
	return c, c.Validate()
}

func runConfigInit(cmd *cobra.Command, _ []string) error {
	c, err := initialConfig(configInitPreset, configInitSymbol)
	if err != nil {
		return err
	}
	if err := c.SaveToFile(configInitOutput); err != nil {
		return fmt.Errorf("save config: %w", err)
	}
	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "✓ Created %s configuration: %s\n", c.Strategy.Name, configInitOutput)
	fmt.Fprintf(out, "\nTry it with:\n  tradelab backtest --config %s --synthetic 5000\n", configInitOutput)
	return nil
}

func runConfigValidate(cmd *cobra.Command, _ []string) error {
	c, err := config.LoadFromFile(configValidatePath)
	if err != nil {
		problems := problemLines(err)
		for _, p := range problems {
			fmt.Fprintf(cmd.ErrOrStderr(), "  ✗ %s\n", p)
		}
		return fmt.Errorf("%s: %d problem(s)", configValidatePath, len(problems))
	}
	fmt.Fprintf(cmd.OutOrStdout(), "✓ Configuration valid: %s\n", configValidatePath)
	printConfigSummary(cmd.OutOrStdout(), c)
	return nil
}

// problemLines flattens joined validation errors into one line each.
func problemLines(err error) []string {
	msg := strings.TrimPrefix(err.Error(), "invalid config: ")
	var out []string
	for _, line := range strings.Split(msg, "\n") {
		if line = strings.TrimSpace(line); line != "" {
			out = append(out, line)
		}
	}
	if len(out) == 0 {
		out = append(out, err.Error())
	}
	return out
}

func printConfigSummary(w io.Writer, c *config.Config) {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintf(tw, "  Account:\t%s (%.2f %s)\n", c.Account.ID, c.Account.Balance, c.Account.Currency)
	fmt.Fprintf(tw, "  Strategy:\t%s on %s (stop %.2f%%, target %.2f%%)\n",
		c.Strategy.Name, c.Strategy.Symbol, c.Strategy.Risk.StopLossPct, c.Strategy.Risk.TakeProfitPct)
	for _, cond := range c.Strategy.Entry {
		fmt.Fprintf(tw, "    entry:\t%s\n", cond)
	}
	for _, cond := range c.Strategy.Exit {
		fmt.Fprintf(tw, "    exit:\t%s\n", cond)
	}
	fmt.Fprintf(tw, "  Risk:\t%.2f%% per trade, max drawdown %.1f%%, max leverage %.1f\n",
		c.Sizing.BaseRiskFraction*100, c.Limits.MaxDrawdown, c.Limits.MaxLeverage)
	fmt.Fprintf(tw, "  Monitor:\tevery %s, %s\n", c.Monitor.Interval(), c.Monitor.Portfolio)
	fmt.Fprintf(tw, "  Optimizer:\t%s, population %d, %d generations\n",
		c.Optimizer.Fitness, c.Optimizer.PopulationSize, c.Optimizer.Generations)

	names := make([]string, 0, len(c.Optimizer.Ranges))
	for name := range c.Optimizer.Ranges {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		r := c.Optimizer.Ranges[name]
		fmt.Fprintf(tw, "    %s\t%g .. %g step %g\n", name, r.Min, r.Max, r.Step)
	}
	fmt.Fprintf(tw, "  Journal:\t%s\n", c.Journal.Type)
	tw.Flush()
}
