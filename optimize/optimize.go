// Package optimize searches strategy parameter space with a genetic
// algorithm, scoring every candidate with a full backtest.
package optimize

import (
	"context"
	"errors"
	"fmt"
	"math"
	"math/rand"
	"runtime"
	"sort"
	"time"

	"github.com/rustyeddy/tradelab/backtest"
	"github.com/rustyeddy/tradelab/market"
	"github.com/rustyeddy/tradelab/strategy"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

var (
	ErrNoRanges  = errors.New("optimize: no parameter ranges")
	ErrNoFitness = errors.New("optimize: no fitness function")
	ErrBadRange  = errors.New("optimize: invalid range")
	ErrNoTicks   = errors.New("optimize: no ticks")
	ErrBadConfig = errors.New("optimize: invalid config")
	ErrAllFailed = errors.New("optimize: every candidate failed")
)

// Range bounds one parameter. Values are drawn in Step increments from Min;
// a zero Step draws uniformly from [Min, Max].
type Range struct {
	Min  float64 `json:"min" yaml:"min"`
	Max  float64 `json:"max" yaml:"max"`
	Step float64 `json:"step" yaml:"step"`
}

func (r Range) Validate() error {
	switch {
	case math.IsNaN(r.Min) || math.IsNaN(r.Max) || math.IsNaN(r.Step):
		return fmt.Errorf("%w: NaN bound", ErrBadRange)
	case r.Min > r.Max:
		return fmt.Errorf("%w: min %g above max %g", ErrBadRange, r.Min, r.Max)
	case r.Step < 0:
		return fmt.Errorf("%w: negative step %g", ErrBadRange, r.Step)
	}
	return nil
}

// steps is the number of Step increments that fit in the range.
func (r Range) steps() int64 {
	if r.Step <= 0 {
		return 0
	}
	return int64(math.Floor((r.Max-r.Min)/r.Step + 1e-9))
}

// sample draws one value. Stepped values are computed in decimal so they
// land exactly on the grid.
func (r Range) sample(rng *rand.Rand) float64 {
	if r.Step <= 0 {
		return r.Min + rng.Float64()*(r.Max-r.Min)
	}
	k := rng.Int63n(r.steps() + 1)
	v, _ := decimal.NewFromFloat(r.Min).
		Add(decimal.NewFromFloat(r.Step).Mul(decimal.NewFromInt(k))).
		Float64()
	return v
}

// Chromosome maps parameter names, as understood by
// strategy.Config.WithParams, to values.
type Chromosome map[string]float64

func (c Chromosome) Clone() Chromosome {
	out := make(Chromosome, len(c))
	for k, v := range c {
		out[k] = v
	}
	return out
}

type Individual struct {
	Chromosome Chromosome `json:"chromosome"`
	Fitness    float64    `json:"fitness"`

	scored bool
}

// Generation records one evaluated generation. Mean skips failed
// individuals and is -Inf when every one failed.
type Generation struct {
	Index int     `json:"index"`
	Best  float64 `json:"best"`
	Mean  float64 `json:"mean"`
}

type Result struct {
	BestConfig     strategy.Config `json:"best_config"`
	BestChromosome Chromosome      `json:"best_chromosome"`
	BestFitness    float64         `json:"best_fitness"`
	History        []Generation    `json:"history"`
	Evaluations    int             `json:"evaluations"`
	Duration       time.Duration   `json:"duration"`
}

type Config struct {
	PopulationSize int     `json:"population_size" yaml:"population_size"`
	Generations    int     `json:"generations" yaml:"generations"`
	Elitism        int     `json:"elitism" yaml:"elitism"`
	TournamentSize int     `json:"tournament_size" yaml:"tournament_size"`
	MutationRate   float64 `json:"mutation_rate" yaml:"mutation_rate"`
	Workers        int     `json:"workers" yaml:"workers"`
	Seed           int64   `json:"seed" yaml:"seed"` // 0 seeds from the clock
}

func DefaultConfig() Config {
	return Config{
		PopulationSize: 20,
		Generations:    10,
		Elitism:        2,
		TournamentSize: 3,
		MutationRate:   0.1,
		Workers:        runtime.NumCPU(),
	}
}

// withDefaults fills zero fields from DefaultConfig.
func (c Config) withDefaults() Config {
	d := DefaultConfig()
	if c.PopulationSize <= 0 {
		c.PopulationSize = d.PopulationSize
	}
	if c.Generations <= 0 {
		c.Generations = d.Generations
	}
	if c.TournamentSize <= 0 {
		c.TournamentSize = d.TournamentSize
	}
	if c.Workers <= 0 {
		c.Workers = d.Workers
	}
	return c
}

func (c Config) Validate() error {
	var errs []error
	if c.Elitism < 0 || c.Elitism > c.PopulationSize {
		errs = append(errs, fmt.Errorf("elitism must be between 0 and population_size (%d)", c.PopulationSize))
	}
	if c.MutationRate < 0 || c.MutationRate > 1 || math.IsNaN(c.MutationRate) {
		errs = append(errs, errors.New("mutation_rate must be between 0 and 1"))
	}
	if err := errors.Join(errs...); err != nil {
		return fmt.Errorf("%w: %w", ErrBadConfig, err)
	}
	return nil
}

type Option func(*Optimizer)

func WithLogger(l *zap.Logger) Option {
	return func(o *Optimizer) {
		if l != nil {
			o.log = l
		}
	}
}

// WithProgress is called after every generation is scored.
func WithProgress(fn func(Generation)) Option {
	return func(o *Optimizer) { o.progress = fn }
}

// Optimizer evolves a strategy against a fixed tick stream. Run may be
// called concurrently; each call has its own random source.
type Optimizer struct {
	engine   *backtest.Engine
	ticks    []market.Tick
	cfg      Config
	log      *zap.Logger
	progress func(Generation)
}

func New(engine *backtest.Engine, ticks []market.Tick, cfg Config, opts ...Option) *Optimizer {
	if engine == nil {
		engine = backtest.New()
	}
	o := &Optimizer{
		engine: engine,
		ticks:  ticks,
		cfg:    cfg.withDefaults(),
		log:    zap.NewNop(),
	}
	for _, opt := range opts {
		opt(o)
	}
	return o
}

func (o *Optimizer) Config() Config { return o.cfg }

// Run evolves base over ranges for Config.Generations generations and
// returns the fittest configuration seen. A candidate whose backtest fails
// scores -Inf. Cancelling ctx stops the run and returns ctx.Err().
func (o *Optimizer) Run(ctx context.Context, base strategy.Config, ranges map[string]Range, fitness FitnessFunc) (*Result, error) {
	start := time.Now()
	if err := o.cfg.Validate(); err != nil {
		return nil, err
	}
	if fitness == nil {
		return nil, ErrNoFitness
	}
	if len(o.ticks) == 0 {
		return nil, ErrNoTicks
	}
	names, err := o.checkRanges(base, ranges)
	if err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	seed := o.cfg.Seed
	if seed == 0 {
		seed = time.Now().UnixNano()
	}
	g := &genetics{
		rng:    rand.New(rand.NewSource(seed)),
		names:  names,
		ranges: ranges,
		cfg:    o.cfg,
	}

	o.log.Info("optimization started",
		zap.String("strategy", base.Name),
		zap.Strings("params", names),
		zap.Int("population", o.cfg.PopulationSize),
		zap.Int("generations", o.cfg.Generations),
		zap.Float64("mutation_rate", o.cfg.MutationRate),
		zap.Int64("seed", seed))

	res := &Result{BestFitness: math.Inf(-1)}
	pop := g.initial()
	for gen := 0; gen < o.cfg.Generations; gen++ {
		n, err := o.evaluate(ctx, base, pop, fitness)
		res.Evaluations += n
		if err != nil {
			o.log.Info("optimization cancelled", zap.Int("generation", gen), zap.Error(err))
			return nil, err
		}
		sort.SliceStable(pop, func(i, j int) bool { return pop[i].Fitness > pop[j].Fitness })

		summary := summarize(gen, pop)
		res.History = append(res.History, summary)
		if res.BestChromosome == nil || pop[0].Fitness > res.BestFitness {
			res.BestFitness = pop[0].Fitness
			res.BestChromosome = pop[0].Chromosome.Clone()
		}

		o.log.Info("generation complete",
			zap.Int("generation", gen),
			zap.Float64("best", summary.Best),
			zap.Float64("mean", summary.Mean),
			zap.Int("evaluated", n))
		if o.progress != nil {
			o.progress(summary)
		}

		if gen < o.cfg.Generations-1 {
			pop = g.next(pop)
		}
	}

	if math.IsInf(res.BestFitness, -1) {
		return nil, ErrAllFailed
	}
	best, err := base.WithParams(res.BestChromosome)
	if err != nil {
		return nil, fmt.Errorf("optimize: apply best chromosome: %w", err)
	}
	res.BestConfig = best
	res.Duration = time.Since(start)

	o.log.Info("optimization complete",
		zap.Float64("best_fitness", res.BestFitness),
		zap.Any("best", res.BestChromosome),
		zap.Int("evaluations", res.Evaluations),
		zap.Duration("duration", res.Duration))
	return res, nil
}

// checkRanges validates every range against base with the engine's
// evaluator. It returns the names sorted.
func (o *Optimizer) checkRanges(base strategy.Config, ranges map[string]Range) ([]string, error) {
	if len(ranges) == 0 {
		return nil, ErrNoRanges
	}
	if err := base.Validate(); err != nil {
		return nil, fmt.Errorf("optimize: invalid base strategy: %w", err)
	}
	if err := CheckRanges(base, ranges, o.engine.Evaluator()); err != nil {
		return nil, err
	}
	names := make([]string, 0, len(ranges))
	for name := range ranges {
		names = append(names, name)
	}
	sort.Strings(names)
	return names, nil
}

// CheckRanges reports ranges that are malformed or that base cannot take.
// Both bounds are applied through strategy.Config.WithParams and, when ev
// is not nil, every resulting indicator must be one ev can read.
func CheckRanges(base strategy.Config, ranges map[string]Range, ev strategy.Evaluator) error {
	names := make([]string, 0, len(ranges))
	for name := range ranges {
		names = append(names, name)
	}
	sort.Strings(names)

	var errs []error
	for _, name := range names {
		r := ranges[name]
		if err := r.Validate(); err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", name, err))
			continue
		}
		for _, v := range []float64{r.Min, r.Max} {
			c, err := base.WithParams(map[string]float64{name: v})
			if err != nil {
				errs = append(errs, fmt.Errorf("%w: %w", ErrBadRange, err))
				break
			}
			if err := readable(c, ev); err != nil {
				errs = append(errs, fmt.Errorf("%w: %s at %g: %w", ErrBadRange, name, v, err))
				break
			}
		}
	}
	return errors.Join(errs...)
}

func readable(c strategy.Config, ev strategy.Evaluator) error {
	if ev == nil {
		return nil
	}
	for _, cond := range append(append([]strategy.Condition(nil), c.Entry...), c.Exit...) {
		if _, err := ev.Read(cond.Indicator, nil); err != nil {
			return err
		}
	}
	return nil
}

// DefaultRanges proposes ranges for base: the stop, target and trailing
// percentages, plus the arguments of the first entry indicator.
func DefaultRanges(base strategy.Config) map[string]Range {
	ranges := map[string]Range{
		strategy.ParamStopLoss:     {Min: 0.25, Max: 2, Step: 0.25},
		strategy.ParamTakeProfit:   {Min: 0.5, Max: 4, Step: 0.5},
		strategy.ParamTrailingStop: {Min: 0, Max: 1, Step: 0.1},
	}
	if len(base.Entry) == 0 {
		return ranges
	}
	switch len(strategy.IndicatorArgs(base.Entry[0].Indicator)) {
	case 1:
		ranges["entry.0.period"] = Range{Min: 5, Max: 50, Step: 5}
	case 2:
		ranges["entry.0.fast"] = Range{Min: 5, Max: 20, Step: 1}
		ranges["entry.0.slow"] = Range{Min: 25, Max: 60, Step: 5}
	}
	return ranges
}

// evaluate scores every unscored individual on a worker pool bounded by
// Config.Workers. It returns how many were scored.
func (o *Optimizer) evaluate(ctx context.Context, base strategy.Config, pop []Individual, fitness FitnessFunc) (int, error) {
	eg, ectx := errgroup.WithContext(ctx)
	eg.SetLimit(o.cfg.Workers)

	n := 0
	for i := range pop {
		if pop[i].scored {
			continue
		}
		n++
		eg.Go(func() error {
			if err := ectx.Err(); err != nil {
				return err
			}
			pop[i].Fitness = o.score(ectx, base, pop[i].Chromosome, fitness)
			pop[i].scored = true
			return nil
		})
	}
	if err := eg.Wait(); err != nil {
		return n, err
	}
	return n, ctx.Err()
}

func (o *Optimizer) score(ctx context.Context, base strategy.Config, c Chromosome, fitness FitnessFunc) float64 {
	cfg, err := base.WithParams(c)
	if err != nil {
		o.log.Debug("candidate rejected", zap.Any("chromosome", c), zap.Error(err))
		return math.Inf(-1)
	}
	res, err := o.engine.Run(ctx, cfg, o.ticks)
	if err != nil {
		o.log.Debug("candidate backtest failed", zap.Any("chromosome", c), zap.Error(err))
		return math.Inf(-1)
	}
	f := fitness(res)
	if math.IsNaN(f) {
		return math.Inf(-1)
	}
	return f
}

// summarize expects pop sorted by descending fitness.
func summarize(index int, pop []Individual) Generation {
	g := Generation{Index: index, Best: math.Inf(-1), Mean: math.Inf(-1)}
	if len(pop) == 0 {
		return g
	}
	g.Best = pop[0].Fitness

	sum, n := 0.0, 0
	for _, ind := range pop {
		if math.IsInf(ind.Fitness, -1) {
			continue
		}
		sum += ind.Fitness
		n++
	}
	if n > 0 {
		g.Mean = sum / float64(n)
	}
	return g
}
