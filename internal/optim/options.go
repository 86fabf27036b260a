package optim

import (
	"io"
	"log/slog"
	"math/rand"
	"time"
)

// Recorder receives optimizer telemetry. metrics.Recorder satisfies it.
type Recorder interface {
	EvaluationDone(optimizer string, d time.Duration)
	GenerationDone(optimizer string, best, allTimeBest float64)
	SetBusy(optimizer string, busy bool)
}

type noopRecorder struct{}

func (noopRecorder) EvaluationDone(string, time.Duration)    {}
func (noopRecorder) GenerationDone(string, float64, float64) {}
func (noopRecorder) SetBusy(string, bool)                    {}

type options struct {
	rng                 *rand.Rand
	direction           Direction
	mutationProbability float64
	mutationAmount      float64
	adaptive            bool
	crossoverRate       float64
	maxWorkers          int
	logger              *slog.Logger
	recorder            Recorder
}

// Option configures Genetic and Differential. Options that do not apply to
// an optimizer are ignored by it.
type Option func(*options)

func defaultOptions() options {
	return options{
		rng:                 rand.New(rand.NewSource(time.Now().UnixNano())),
		direction:           Maximize,
		mutationProbability: 0.05,
		mutationAmount:      -1,
		crossoverRate:       0.9,
		maxWorkers:          MaxWorkers,
		logger:              slog.New(slog.NewTextHandler(io.Discard, nil)),
		recorder:            noopRecorder{},
	}
}

func buildOptions(opts []Option) options {
	o := defaultOptions()
	for _, opt := range opts {
		opt(&o)
	}
	return o
}

// WithRand sets the random source. The optimizer must own it; *rand.Rand
// is not safe for concurrent use.
func WithRand(rng *rand.Rand) Option {
	return func(o *options) {
		if rng != nil {
			o.rng = rng
		}
	}
}

func WithSeed(seed int64) Option {
	return func(o *options) { o.rng = rand.New(rand.NewSource(seed)) }
}

func WithDirection(d Direction) Option {
	return func(o *options) { o.direction = d }
}

// WithMutationProbability is the per-gene chance of mutation in Genetic.
func WithMutationProbability(p float64) Option {
	return func(o *options) { o.mutationProbability = p }
}

// WithMutationAmount sets the fixed mutation step of Genetic or the
// differential weight F of Differential.
func WithMutationAmount(a float64) Option {
	return func(o *options) { o.mutationAmount = a }
}

// WithAdaptiveMutation evolves a step size per gene alongside the genes.
func WithAdaptiveMutation(enabled bool) Option {
	return func(o *options) { o.adaptive = enabled }
}

// WithCrossoverRate is the binomial crossover probability of Differential.
func WithCrossoverRate(cr float64) Option {
	return func(o *options) { o.crossoverRate = cr }
}

func WithMaxWorkers(n int) Option {
	return func(o *options) { o.maxWorkers = n }
}

func WithLogger(l *slog.Logger) Option {
	return func(o *options) {
		if l != nil {
			o.logger = l
		}
	}
}

func WithRecorder(r Recorder) Option {
	return func(o *options) {
		if r != nil {
			o.recorder = r
		}
	}
}
