package optim

import (
	"log/slog"
	"math"
	"math/rand"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"gonum.org/v1/gonum/floats"
)

const (
	// selectionTries bounds the redraws of the second parent before a
	// duplicate pair is accepted.
	selectionTries = 10
	// minimizeOffset keeps the worst agent selectable after score inversion.
	minimizeOffset = 1e-6

	initialMutationStep = 0.1
)

// Genetic is a real-coded genetic algorithm with roulette selection,
// single-point crossover and fully generational replacement. Populations
// are evaluated on a fixed worker pool.
type Genetic struct {
	opts    options
	fitness Fitness

	// mu is held for the whole of Test and for reseeding, so a reseed
	// during evaluation fails with ErrBusy instead of racing the workers.
	mu   sync.Mutex
	pool *workerPool

	population []Agent
	scores     []float64
	scoreParts []float64

	lastRoundBest Agent
	allTimeBest   Agent

	tau, tauPrime float64
	busy          atomic.Bool
	closed        bool
}

func NewGenetic(fitness Fitness, opts ...Option) *Genetic {
	o := buildOptions(opts)
	if o.mutationAmount < 0 {
		o.mutationAmount = 0.01
	}
	g := &Genetic{opts: o, fitness: fitness}
	g.lastRoundBest.Score = o.direction.Worst()
	g.allTimeBest.Score = o.direction.Worst()
	return g
}

func (g *Genetic) SetFitness(f Fitness) { g.fitness = f }

// SetInitialParameters replaces the population and restarts the worker
// pool with shards sized for it. Both best trackers are cleared.
func (g *Genetic) SetInitialParameters(population [][]float64) error {
	if !g.mu.TryLock() {
		return ErrBusy
	}
	defer g.mu.Unlock()
	if g.closed {
		return ErrClosed
	}

	n, err := validatePopulation(population)
	if err != nil {
		return err
	}

	if g.pool != nil {
		g.pool.close()
	}

	g.population = make([]Agent, len(population))
	for i, params := range population {
		factors := make([]float64, n)
		for j := range factors {
			factors[j] = initialMutationStep
		}
		g.population[i] = Agent{
			Params:          append([]float64(nil), params...),
			MutationFactors: factors,
		}
	}
	g.scores = nil
	g.scoreParts = nil
	g.lastRoundBest = Agent{Score: g.opts.direction.Worst()}
	g.allTimeBest = Agent{Score: g.opts.direction.Worst()}
	g.tauPrime = 1 / math.Sqrt(2*math.Sqrt(float64(n)))
	g.tau = 1 / math.Sqrt(2*float64(n))

	g.pool = newWorkerPool(len(g.population), g.opts.maxWorkers, g.evaluate)
	g.opts.logger.Debug("population seeded",
		slog.Int("agents", len(g.population)),
		slog.Int("genes", n),
		slog.Int("workers", g.pool.size()))
	return nil
}

func (g *Genetic) evaluate(i int) {
	a := &g.population[i]
	a.ScoreParts = g.fitness(a.Params, i)
	a.Score = floats.Sum(a.ScoreParts)
}

// Test scores every agent on the pool and updates the all-time best.
func (g *Genetic) Test() {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.fitness == nil || g.pool == nil || g.closed {
		return
	}

	start := time.Now()
	g.busy.Store(true)
	g.opts.recorder.SetBusy("genetic", true)
	g.pool.run()
	g.opts.recorder.SetBusy("genetic", false)
	g.busy.Store(false)
	g.opts.recorder.EvaluationDone("genetic", time.Since(start))

	dir := g.opts.direction
	var parts []float64
	for _, a := range g.population {
		if dir.Better(a.Score, g.allTimeBest.Score) {
			g.allTimeBest = a.Clone()
		}
		if parts == nil {
			parts = make([]float64, len(a.ScoreParts))
		}
		for j := 0; j < len(parts) && j < len(a.ScoreParts); j++ {
			parts[j] += a.ScoreParts[j]
		}
	}
	g.scoreParts = normalizeParts(parts)
}

// Iterate breeds the next generation from the tested population.
func (g *Genetic) Iterate() {
	g.mu.Lock()
	defer g.mu.Unlock()
	if len(g.population) == 0 || g.closed {
		return
	}

	pop := g.population
	sort.SliceStable(pop, func(i, j int) bool { return pop[i].Score > pop[j].Score })

	weights, total := g.selectionWeights(pop)

	rng := g.opts.rng
	globalNoise := g.tauPrime * uniform(rng, -1, 1)
	next := make([]Agent, len(pop))
	for i := 0; i < len(pop); i += 2 {
		p1, p2 := g.selectParents(weights, total)
		c1, c2 := g.crossover(pop[p1], pop[p2])
		g.mutate(&c1, globalNoise)
		next[i] = c1
		if i+1 < len(next) {
			g.mutate(&c2, globalNoise)
			next[i+1] = c2
		}
	}
	g.population = next

	g.opts.recorder.GenerationDone("genetic", g.lastRoundBest.Score, g.allTimeBest.Score)
	g.opts.logger.Debug("generation bred",
		slog.Float64("best_score", g.lastRoundBest.Score),
		slog.Float64("all_time_best", g.allTimeBest.Score),
		slog.Float64("selection_sum", total))
}

// selectionWeights records raw scores and the round best, and returns the
// roulette weights: raw scores when maximizing, inverted scores when
// minimizing so that lower losses get larger slices.
func (g *Genetic) selectionWeights(pop []Agent) ([]float64, float64) {
	g.scores = make([]float64, len(pop))
	weights := make([]float64, len(pop))

	switch g.opts.direction {
	case Minimize:
		maxLoss, minLoss := math.Inf(-1), math.Inf(1)
		best := 0
		for i, a := range pop {
			maxLoss = math.Max(maxLoss, a.Score)
			if a.Score < minLoss {
				minLoss = a.Score
				best = i
			}
			g.scores[i] = a.Score
		}
		g.lastRoundBest = pop[best].Clone()

		offset := 0.0
		if minLoss < 0 {
			offset = -minLoss
			maxLoss -= minLoss
		}
		for i, a := range pop {
			weights[i] = maxLoss - (a.Score + offset) + minimizeOffset
		}
	default:
		best := 0
		for i, a := range pop {
			weights[i] = a.Score
			g.scores[i] = a.Score
			if a.Score > pop[best].Score {
				best = i
			}
		}
		g.lastRoundBest = pop[best].Clone()
	}
	return weights, floats.Sum(weights)
}

func (g *Genetic) spin(weights []float64, total float64) int {
	r := uniform(g.opts.rng, 0, total)
	cumulative := 0.0
	for i, w := range weights {
		cumulative += w
		if cumulative >= r {
			return i
		}
	}
	return 0
}

func (g *Genetic) selectParents(weights []float64, total float64) (int, int) {
	p1 := g.spin(weights, total)
	p2 := g.spin(weights, total)
	for tries := 1; p2 == p1 && tries <= selectionTries; tries++ {
		p2 = g.spin(weights, total)
	}
	return p1, p2
}

// crossover cuts both parents at one random point; the step sizes are cut
// at the same point.
func (g *Genetic) crossover(p1, p2 Agent) (Agent, Agent) {
	n := len(p1.Params)
	k := 1
	if n > 2 {
		k = 1 + g.opts.rng.Intn(n-1)
	}
	if n == 1 {
		k = 0
	}
	c1 := Agent{Params: splice(p1.Params, p2.Params, k)}
	c2 := Agent{Params: splice(p2.Params, p1.Params, k)}
	c1.MutationFactors = splice(p1.MutationFactors, p2.MutationFactors, k)
	c2.MutationFactors = splice(p2.MutationFactors, p1.MutationFactors, k)
	return c1, c2
}

func splice(head, tail []float64, k int) []float64 {
	out := make([]float64, len(head))
	copy(out, head[:k])
	copy(out[k:], tail[k:])
	return out
}

func (g *Genetic) mutate(a *Agent, globalNoise float64) {
	rng := g.opts.rng
	for i := range a.Params {
		step := g.opts.mutationAmount
		if g.opts.adaptive {
			a.MutationFactors[i] *= math.Exp(globalNoise + g.tau*uniform(rng, -1, 1))
			step = a.MutationFactors[i]
		}
		if rng.Float64() < g.opts.mutationProbability {
			a.Params[i] += uniform(rng, -1, 1) * step
		}
	}
}

func uniform(rng *rand.Rand, lo, hi float64) float64 {
	return lo + rng.Float64()*(hi-lo)
}

// Population returns a copy of the current agents.
func (g *Genetic) Population() []Agent {
	g.mu.Lock()
	defer g.mu.Unlock()
	out := make([]Agent, len(g.population))
	for i, a := range g.population {
		out[i] = a.Clone()
	}
	return out
}

func (g *Genetic) BestParameters() []float64 {
	return append([]float64(nil), g.lastRoundBest.Params...)
}

func (g *Genetic) BestScore() float64 { return g.lastRoundBest.Score }

func (g *Genetic) AllTimeBestParameters() []float64 {
	return append([]float64(nil), g.allTimeBest.Params...)
}

func (g *Genetic) AllTimeBestScore() float64 { return g.allTimeBest.Score }

func (g *Genetic) ClearAllTimeBest() {
	g.allTimeBest = Agent{Score: g.opts.direction.Worst()}
}

func (g *Genetic) Scores() []float64     { return append([]float64(nil), g.scores...) }
func (g *Genetic) ScoreParts() []float64 { return append([]float64(nil), g.scoreParts...) }

func (g *Genetic) SetMutationAmount(a float64) { g.opts.mutationAmount = a }
func (g *Genetic) MutationAmount() float64     { return g.opts.mutationAmount }

func (g *Genetic) SetMutationProbability(p float64) { g.opts.mutationProbability = p }
func (g *Genetic) MutationProbability() float64     { return g.opts.mutationProbability }

func (g *Genetic) Direction() Direction { return g.opts.direction }

// Busy reports whether a Test is running on the pool.
func (g *Genetic) Busy() bool { return g.busy.Load() }

// Close stops the worker pool. The optimizer cannot be reseeded afterwards.
func (g *Genetic) Close() error {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.pool != nil {
		g.pool.close()
	}
	g.closed = true
	return nil
}
