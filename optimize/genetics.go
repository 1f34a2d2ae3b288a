package optimize

import "math/rand"

// genetics holds the random source and ranges for one run. It is only used
// from the goroutine driving the run, so draws are reproducible for a seed.
type genetics struct {
	rng    *rand.Rand
	names  []string // sorted, fixes the order of draws
	ranges map[string]Range
	cfg    Config
}

func (g *genetics) random() Chromosome {
	c := make(Chromosome, len(g.names))
	for _, name := range g.names {
		c[name] = g.ranges[name].sample(g.rng)
	}
	return c
}

func (g *genetics) initial() []Individual {
	pop := make([]Individual, g.cfg.PopulationSize)
	for i := range pop {
		pop[i] = Individual{Chromosome: g.random()}
	}
	return pop
}

// next breeds the following generation from pop, which must be sorted by
// descending fitness. The first Elitism individuals are carried over with
// their fitness and are not scored again.
func (g *genetics) next(pop []Individual) []Individual {
	out := make([]Individual, 0, len(pop))
	for i := 0; i < g.cfg.Elitism && i < len(pop); i++ {
		out = append(out, Individual{
			Chromosome: pop[i].Chromosome.Clone(),
			Fitness:    pop[i].Fitness,
			scored:     true,
		})
	}
	for len(out) < g.cfg.PopulationSize {
		a := g.tournament(pop)
		b := g.tournament(pop)
		child := g.crossover(a.Chromosome, b.Chromosome)
		g.mutate(child)
		out = append(out, Individual{Chromosome: child})
	}
	return out
}

// tournament samples TournamentSize individuals with replacement and keeps
// the fittest.
func (g *genetics) tournament(pop []Individual) Individual {
	best := pop[g.rng.Intn(len(pop))]
	for i := 1; i < g.cfg.TournamentSize; i++ {
		c := pop[g.rng.Intn(len(pop))]
		if c.Fitness > best.Fitness {
			best = c
		}
	}
	return best
}

// crossover is uniform: each gene comes from either parent with equal odds.
func (g *genetics) crossover(a, b Chromosome) Chromosome {
	child := make(Chromosome, len(g.names))
	for _, name := range g.names {
		if g.rng.Float64() < 0.5 {
			child[name] = a[name]
		} else {
			child[name] = b[name]
		}
	}
	return child
}

// mutate replaces each gene with a fresh draw with probability MutationRate.
func (g *genetics) mutate(c Chromosome) {
	for _, name := range g.names {
		if g.rng.Float64() < g.cfg.MutationRate {
			c[name] = g.ranges[name].sample(g.rng)
		}
	}
}
