package experiment

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"math/rand"
	"time"

	"github.com/google/uuid"
	"github.com/san-kum/pidtune/internal/config"
	"github.com/san-kum/pidtune/internal/optim"
)

// Report is the outcome of one tuning run.
type Report struct {
	RunID     string        `json:"run_id" yaml:"run_id"`
	Optimizer string        `json:"optimizer" yaml:"optimizer"`
	Params    []string      `json:"params" yaml:"params"`
	Best      []float64     `json:"best" yaml:"best"`
	BestScore float64       `json:"best_score" yaml:"best_score"`
	History   optim.History `json:"history" yaml:"history"`
	Duration  time.Duration `json:"duration" yaml:"duration"`
	// Canceled is set when the context ended the run early; Best is the
	// best agent found up to then.
	Canceled bool `json:"canceled" yaml:"canceled"`
}

// GenerationFunc is called after every generation.
type GenerationFunc func(g optim.Generation)

type Runner struct {
	cfg          *config.Config
	registry     *Registry
	logger       *slog.Logger
	recorder     optim.Recorder
	onGeneration GenerationFunc
}

type RunnerOption func(*Runner)

func WithLogger(l *slog.Logger) RunnerOption {
	return func(r *Runner) {
		if l != nil {
			r.logger = l
		}
	}
}

func WithRecorder(rec optim.Recorder) RunnerOption {
	return func(r *Runner) { r.recorder = rec }
}

func WithRegistry(reg *Registry) RunnerOption {
	return func(r *Runner) {
		if reg != nil {
			r.registry = reg
		}
	}
}

func OnGeneration(fn GenerationFunc) RunnerOption {
	return func(r *Runner) { r.onGeneration = fn }
}

func NewRunner(cfg *config.Config, opts ...RunnerOption) *Runner {
	if cfg == nil {
		cfg = config.DefaultConfig()
	}
	r := &Runner{
		cfg:      cfg,
		registry: NewRegistry(),
		logger:   slog.New(slog.NewTextHandler(io.Discard, nil)),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Run seeds a population around the configured PID and evolves it for the
// configured number of generations. Canceling ctx stops the run between
// generations and returns the partial report with ctx's error.
func (r *Runner) Run(ctx context.Context) (*Report, error) {
	problem, err := NewProblem(r.cfg, r.logger)
	if err != nil {
		return nil, err
	}

	oc := r.cfg.Optimizer
	runID := uuid.NewString()
	logger := r.logger.With(slog.String("run_id", runID))

	extra := []optim.Option{loggerOption(logger, oc.Kind)}
	if r.recorder != nil {
		extra = append(extra, optim.WithRecorder(r.recorder))
	}
	opt, err := r.registry.GetOptimizer(oc, problem.Fitness, extra...)
	if err != nil {
		return nil, err
	}
	defer opt.Close()

	rng := rand.New(rand.NewSource(oc.Seed))
	if err := opt.SetInitialParameters(problem.Seed(rng, oc.Population)); err != nil {
		return nil, fmt.Errorf("seed population: %w", err)
	}

	report := &Report{
		RunID:     runID,
		Optimizer: oc.Kind,
		Params:    problem.Layout().Names(),
	}
	logger.Info("tuning started",
		slog.String("optimizer", oc.Kind),
		slog.Int("population", oc.Population),
		slog.Int("generations", oc.Generations),
		slog.String("direction", oc.Direction.String()))

	start := time.Now()
	decay := oc.Kind == "genetic" && oc.LearningRateDecay > 0 && oc.LearningRateDecay < 1
	for gen := 0; gen < oc.Generations; gen++ {
		if err := ctx.Err(); err != nil {
			report.Canceled = true
			r.finish(report, opt, start)
			logger.Warn("tuning canceled", slog.Int("generation", gen))
			return report, err
		}

		opt.Test()
		opt.Iterate()
		g := report.History.Record(opt)
		if decay {
			opt.SetMutationAmount(opt.MutationAmount() * oc.LearningRateDecay)
		}
		if r.onGeneration != nil {
			r.onGeneration(g)
		}
		logger.Debug("generation done",
			slog.Int("generation", gen),
			slog.Float64("best_score", g.Best),
			slog.Float64("all_time_best", g.AllTimeBest),
			slog.Float64("mutation_amount", opt.MutationAmount()))
	}
	// The last Iterate bred a population nothing has scored yet.
	opt.Test()

	r.finish(report, opt, start)
	logger.Info("tuning finished",
		slog.Float64("best_score", report.BestScore),
		slog.Any("best", report.Best),
		slog.Duration("duration", report.Duration))
	return report, nil
}

func (r *Runner) finish(report *Report, opt optim.Optimizer, start time.Time) {
	report.Best = opt.AllTimeBestParameters()
	report.BestScore = opt.AllTimeBestScore()
	report.Duration = time.Since(start)
}
