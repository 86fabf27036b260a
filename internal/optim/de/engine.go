package de

import (
	"errors"
	"fmt"
	"math"
	"math/rand"
	"runtime"

	"github.com/sourcegraph/conc/pool"
)

var (
	ErrPopulationTooSmall = errors.New("de: population needs at least four individuals")
	ErrDimension          = errors.New("de: individuals differ in dimension")
)

// FitnessFunc scores one candidate. index is the population slot the
// candidate competes for.
type FitnessFunc func(params []float64, index int) float64

type Individual struct {
	Params  []float64
	Fitness float64
}

func (ind Individual) clone() Individual {
	return Individual{Params: append([]float64(nil), ind.Params...), Fitness: ind.Fitness}
}

// Engine runs DE/rand/1/bin with greedy one-to-one replacement. Fitness
// calls within a generation run concurrently.
type Engine struct {
	fitness     FitnessFunc
	f, cr       float64
	minimize    bool
	rng         *rand.Rand
	concurrency int

	population []Individual
	best       Individual
	evaluated  bool
	generation int
}

type Option func(*Engine)

// WithMutationFactor sets the differential weight F.
func WithMutationFactor(f float64) Option { return func(e *Engine) { e.f = f } }

func WithCrossoverRate(cr float64) Option { return func(e *Engine) { e.cr = cr } }

func WithMinimize(minimize bool) Option { return func(e *Engine) { e.minimize = minimize } }

func WithRand(rng *rand.Rand) Option { return func(e *Engine) { e.rng = rng } }

// WithConcurrency bounds the goroutines evaluating a generation.
func WithConcurrency(n int) Option {
	return func(e *Engine) {
		if n > 0 {
			e.concurrency = n
		}
	}
}

func New(fitness FitnessFunc, opts ...Option) *Engine {
	e := &Engine{
		fitness:     fitness,
		f:           0.8,
		cr:          0.9,
		rng:         rand.New(rand.NewSource(1)),
		concurrency: runtime.NumCPU(),
	}
	for _, opt := range opts {
		opt(e)
	}
	e.best.Fitness = e.worst()
	return e
}

func (e *Engine) worst() float64 {
	if e.minimize {
		return math.Inf(1)
	}
	return math.Inf(-1)
}

func (e *Engine) better(a, b float64) bool {
	if e.minimize {
		return a < b
	}
	return a > b
}

// SetPopulation replaces the population. Individuals are unevaluated until
// the next Evaluate or Evolve.
func (e *Engine) SetPopulation(params [][]float64) error {
	if len(params) < 4 {
		return fmt.Errorf("%w: got %d", ErrPopulationTooSmall, len(params))
	}
	dim := len(params[0])
	pop := make([]Individual, len(params))
	for i, p := range params {
		if len(p) != dim || dim == 0 {
			return fmt.Errorf("%w: individual %d has %d parameters", ErrDimension, i, len(p))
		}
		pop[i] = Individual{Params: append([]float64(nil), p...), Fitness: e.worst()}
	}
	e.population = pop
	e.best = Individual{Fitness: e.worst()}
	e.evaluated = false
	e.generation = 0
	return nil
}

func (e *Engine) SetFitness(f FitnessFunc)  { e.fitness = f }
func (e *Engine) SetMinimize(minimize bool) { e.minimize = minimize }
func (e *Engine) Minimize() bool            { return e.minimize }

func (e *Engine) SetMutationFactor(f float64) { e.f = f }
func (e *Engine) MutationFactor() float64     { return e.f }

func (e *Engine) SetCrossoverRate(cr float64) { e.cr = cr }
func (e *Engine) CrossoverRate() float64      { return e.cr }

func (e *Engine) Evaluated() bool { return e.evaluated }
func (e *Engine) Generation() int { return e.generation }

// Best is the best individual of the current population.
func (e *Engine) Best() Individual { return e.best.clone() }

func (e *Engine) Population() []Individual {
	out := make([]Individual, len(e.population))
	for i, ind := range e.population {
		out[i] = ind.clone()
	}
	return out
}

// Evaluate scores the whole current population.
func (e *Engine) Evaluate() {
	if len(e.population) == 0 || e.fitness == nil {
		return
	}
	e.score(e.population)
	e.evaluated = true
	e.refreshBest()
}

func (e *Engine) score(inds []Individual) {
	p := pool.New().WithMaxGoroutines(e.concurrency)
	for i := range inds {
		p.Go(func() {
			inds[i].Fitness = e.fitness(inds[i].Params, i)
		})
	}
	p.Wait()
}

func (e *Engine) refreshBest() {
	e.best = Individual{Fitness: e.worst()}
	for _, ind := range e.population {
		if e.best.Params == nil || e.better(ind.Fitness, e.best.Fitness) {
			e.best = ind.clone()
		}
	}
}

// Evolve runs one generation. An unevaluated population is scored first.
func (e *Engine) Evolve() {
	if len(e.population) < 4 || e.fitness == nil {
		return
	}
	if !e.evaluated {
		e.Evaluate()
	}

	trials := make([]Individual, len(e.population))
	for i := range e.population {
		trials[i] = e.trial(i)
	}
	e.score(trials)

	for i, t := range trials {
		if !e.better(e.population[i].Fitness, t.Fitness) {
			e.population[i] = t
		}
	}
	e.refreshBest()
	e.generation++
}

// trial builds v = a + F(b - c) from three distinct others and mixes it
// with the target by binomial crossover; one gene always comes from v.
func (e *Engine) trial(target int) Individual {
	n := len(e.population)
	a, b, c := target, target, target
	for a == target {
		a = e.rng.Intn(n)
	}
	for b == target || b == a {
		b = e.rng.Intn(n)
	}
	for c == target || c == a || c == b {
		c = e.rng.Intn(n)
	}

	x := e.population[target].Params
	pa, pb, pc := e.population[a].Params, e.population[b].Params, e.population[c].Params
	forced := e.rng.Intn(len(x))
	params := make([]float64, len(x))
	for j := range x {
		if j == forced || e.rng.Float64() < e.cr {
			params[j] = pa[j] + e.f*(pb[j]-pc[j])
		} else {
			params[j] = x[j]
		}
	}
	return Individual{Params: params, Fitness: e.worst()}
}
