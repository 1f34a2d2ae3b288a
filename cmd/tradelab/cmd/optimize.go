package cmd

import (
	"fmt"
	"math"
	"os"
	"sort"
	"text/tabwriter"

	"github.com/rustyeddy/tradelab/journal"
	"github.com/rustyeddy/tradelab/optimize"
	"github.com/rustyeddy/tradelab/pkg/id"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"gopkg.in/yaml.v3"
)

var optimizeCmd = &cobra.Command{
	Use:   "optimize",
	Short: "Evolve strategy parameters with a genetic algorithm",
	Long: `Optimize searches the parameter ranges in the optimizer section of the
config, scoring every candidate with a full backtest.

Example:
  tradelab optimize --config tradelab.yaml --ticks data/eurusd.csv --fitness sortino`,
	RunE: runOptimize,
}

var (
	optTicks       tickFlags
	optFitness     string
	optGenerations int
	optPopulation  int
	optSeed        int64
)

func init() {
	rootCmd.AddCommand(optimizeCmd)

	optTicks.register(optimizeCmd)
	optimizeCmd.Flags().StringVar(&optFitness, "fitness", "", "fitness function, overrides the config")
	optimizeCmd.Flags().IntVar(&optGenerations, "generations", 0, "generations, overrides the config")
	optimizeCmd.Flags().IntVar(&optPopulation, "population", 0, "population size, overrides the config")
	optimizeCmd.Flags().Int64Var(&optSeed, "ga-seed", 0, "optimizer seed, overrides the config")
}

func runOptimize(cmd *cobra.Command, _ []string) error {
	sc, err := optTicks.strategy()
	if err != nil {
		return fmt.Errorf("strategy: %w", err)
	}
	ticks, err := optTicks.ticks(sc.Symbol)
	if err != nil {
		return fmt.Errorf("ticks: %w", err)
	}

	oc := cfg.Optimizer
	if sc.Name != cfg.Strategy.Name {
		// configured ranges belong to the configured strategy
		oc.Ranges = optimize.DefaultRanges(sc)
	}
	if optFitness != "" {
		oc.Fitness = optFitness
	}
	if optGenerations > 0 {
		oc.Generations = optGenerations
	}
	if optPopulation > 0 {
		oc.PopulationSize = optPopulation
	}
	if optSeed != 0 {
		oc.Seed = optSeed
	}
	fitness, err := optimize.FitnessByName(oc.Fitness)
	if err != nil {
		return err
	}

	runID := id.New()
	j, err := openJournal()
	if err != nil {
		return err
	}
	if j != nil {
		defer j.Close()
	}

	progress := func(g optimize.Generation) {
		fmt.Fprintf(os.Stdout, "generation %3d  best %10.4f  mean %10.4f\n", g.Index, g.Best, g.Mean)
	}
	opt := optimize.New(newEngine(true), ticks, oc.Config,
		optimize.WithLogger(log.With(zap.String("run_id", runID))),
		optimize.WithProgress(progress))

	res, err := opt.Run(cmd.Context(), sc, oc.Ranges, fitness)
	if err != nil {
		return err
	}
	printOptimization(res)

	if j == nil {
		return nil
	}
	if err := journal.RecordOptimization(j, runID, res); err != nil {
		return fmt.Errorf("journal: %w", err)
	}
	run, err := journal.OptimizeRun(runID, res)
	if err != nil {
		return err
	}
	writeOrg(run, nil)
	log.Info("optimization journaled", zap.String("run_id", runID))
	return nil
}

func printOptimization(res *optimize.Result) {
	fmt.Println()
	fmt.Println("Best parameters")
	fmt.Println("--------------------------------------------------")
	w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	names := make([]string, 0, len(res.BestChromosome))
	for n := range res.BestChromosome {
		names = append(names, n)
	}
	sort.Strings(names)
	for _, n := range names {
		fmt.Fprintf(w, "%s\t%g\n", n, res.BestChromosome[n])
	}
	fmt.Fprintf(w, "fitness\t%.4f\n", res.BestFitness)
	fmt.Fprintf(w, "evaluations\t%d\n", res.Evaluations)
	_ = w.Flush()

	if !math.IsInf(res.BestFitness, 0) {
		b, err := yaml.Marshal(struct {
			Strategy any `yaml:"strategy"`
		}{res.BestConfig})
		if err == nil {
			fmt.Println()
			fmt.Print(string(b))
		}
	}
}
