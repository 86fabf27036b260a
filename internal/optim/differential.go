package optim

import (
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/san-kum/pidtune/internal/optim/de"
	"gonum.org/v1/gonum/floats"
)

// Differential adapts the de engine to Optimizer. The engine scores with a
// single number, so the fitness parts are summed for it and accumulated on
// the side to report ScoreParts.
type Differential struct {
	opts    options
	fitness Fitness
	engine  *de.Engine

	run  sync.Mutex
	busy atomic.Bool

	partsMu   sync.Mutex
	collected []float64

	scoreParts    []float64
	lastRoundBest Agent
	allTimeBest   Agent
	closed        bool
}

func NewDifferential(fitness Fitness, opts ...Option) *Differential {
	o := buildOptions(opts)
	if o.mutationAmount < 0 {
		o.mutationAmount = 0.8
	}
	d := &Differential{opts: o, fitness: fitness}
	d.engine = de.New(d.score,
		de.WithMutationFactor(o.mutationAmount),
		de.WithCrossoverRate(o.crossoverRate),
		de.WithMinimize(o.direction == Minimize),
		de.WithRand(o.rng),
		de.WithConcurrency(o.maxWorkers),
	)
	d.lastRoundBest.Score = o.direction.Worst()
	d.allTimeBest.Score = o.direction.Worst()
	return d
}

func (d *Differential) score(params []float64, index int) float64 {
	parts := d.fitness(params, index)
	d.partsMu.Lock()
	if len(d.collected) < len(parts) {
		d.collected = append(d.collected, make([]float64, len(parts)-len(d.collected))...)
	}
	floats.Add(d.collected[:len(parts)], parts)
	d.partsMu.Unlock()
	return floats.Sum(parts)
}

func (d *Differential) SetFitness(f Fitness) { d.fitness = f }

// SetInitialParameters needs at least four agents.
func (d *Differential) SetInitialParameters(population [][]float64) error {
	if !d.run.TryLock() {
		return ErrBusy
	}
	defer d.run.Unlock()
	if d.closed {
		return ErrClosed
	}
	n, err := validatePopulation(population)
	if err != nil {
		return err
	}
	if err := d.engine.SetPopulation(population); err != nil {
		return err
	}
	d.scoreParts = nil
	d.lastRoundBest = Agent{Score: d.opts.direction.Worst()}
	d.allTimeBest = Agent{Score: d.opts.direction.Worst()}
	d.opts.logger.Debug("population seeded",
		slog.Int("agents", len(population)),
		slog.Int("genes", n))
	return nil
}

// Test scores a freshly seeded population. Later generations are scored
// inside Iterate, so Test is then a no-op.
func (d *Differential) Test() {
	d.run.Lock()
	defer d.run.Unlock()
	if d.fitness == nil || d.closed || d.engine.Evaluated() {
		return
	}
	d.step(d.engine.Evaluate)
}

func (d *Differential) Iterate() {
	d.run.Lock()
	defer d.run.Unlock()
	if d.fitness == nil || d.closed {
		return
	}
	d.step(d.engine.Evolve)
	d.opts.recorder.GenerationDone("differential", d.lastRoundBest.Score, d.allTimeBest.Score)
	d.opts.logger.Debug("generation evolved",
		slog.Int("generation", d.engine.Generation()),
		slog.Float64("best_score", d.lastRoundBest.Score),
		slog.Float64("all_time_best", d.allTimeBest.Score))
}

func (d *Differential) step(fn func()) {
	d.partsMu.Lock()
	d.collected = d.collected[:0]
	d.partsMu.Unlock()

	start := time.Now()
	d.busy.Store(true)
	d.opts.recorder.SetBusy("differential", true)
	fn()
	d.opts.recorder.SetBusy("differential", false)
	d.busy.Store(false)
	d.opts.recorder.EvaluationDone("differential", time.Since(start))

	d.partsMu.Lock()
	d.scoreParts = normalizeParts(d.collected)
	d.partsMu.Unlock()

	best := d.engine.Best()
	d.lastRoundBest = Agent{Params: best.Params, Score: best.Fitness}
	if best.Params != nil && d.opts.direction.Better(best.Fitness, d.allTimeBest.Score) {
		d.allTimeBest = d.lastRoundBest.Clone()
	}
}

func (d *Differential) BestParameters() []float64 {
	return append([]float64(nil), d.lastRoundBest.Params...)
}

func (d *Differential) BestScore() float64 { return d.lastRoundBest.Score }

func (d *Differential) AllTimeBestParameters() []float64 {
	return append([]float64(nil), d.allTimeBest.Params...)
}

func (d *Differential) AllTimeBestScore() float64 { return d.allTimeBest.Score }

func (d *Differential) ClearAllTimeBest() {
	d.allTimeBest = Agent{Score: d.opts.direction.Worst()}
}

func (d *Differential) Scores() []float64 {
	pop := d.engine.Population()
	out := make([]float64, len(pop))
	for i, ind := range pop {
		out[i] = ind.Fitness
	}
	return out
}

func (d *Differential) ScoreParts() []float64 { return append([]float64(nil), d.scoreParts...) }

// SetMutationAmount sets the differential weight F.
func (d *Differential) SetMutationAmount(a float64) { d.engine.SetMutationFactor(a) }
func (d *Differential) MutationAmount() float64     { return d.engine.MutationFactor() }

func (d *Differential) Direction() Direction { return d.opts.direction }
func (d *Differential) Busy() bool           { return d.busy.Load() }

func (d *Differential) Close() error {
	d.run.Lock()
	defer d.run.Unlock()
	d.closed = true
	return nil
}

var (
	_ Optimizer = (*Genetic)(nil)
	_ Optimizer = (*Differential)(nil)
)
