package experiment

import (
	"errors"
	"fmt"
	"log/slog"
	"sort"

	"github.com/san-kum/pidtune/internal/config"
	"github.com/san-kum/pidtune/internal/optim"
)

var ErrUnknownOptimizer = errors.New("experiment: unknown optimizer")

// Factory builds an optimizer from the optimizer section of a config.
type Factory func(cfg config.OptimizerConfig, fitness optim.Fitness, extra ...optim.Option) optim.Optimizer

type Registry struct {
	optimizers map[string]Factory
}

func NewRegistry() *Registry {
	r := &Registry{optimizers: make(map[string]Factory)}

	r.optimizers["genetic"] = func(cfg config.OptimizerConfig, fitness optim.Fitness, extra ...optim.Option) optim.Optimizer {
		opts := append(commonOptions(cfg),
			optim.WithMutationProbability(cfg.MutationProbability),
			optim.WithAdaptiveMutation(cfg.AdaptiveMutation))
		return optim.NewGenetic(fitness, append(opts, extra...)...)
	}
	r.optimizers["differential"] = func(cfg config.OptimizerConfig, fitness optim.Fitness, extra ...optim.Option) optim.Optimizer {
		opts := append(commonOptions(cfg), optim.WithCrossoverRate(cfg.CrossoverRate))
		return optim.NewDifferential(fitness, append(opts, extra...)...)
	}

	return r
}

func commonOptions(cfg config.OptimizerConfig) []optim.Option {
	return []optim.Option{
		optim.WithSeed(cfg.Seed),
		optim.WithDirection(cfg.Direction),
		optim.WithMutationAmount(cfg.MutationAmount),
		optim.WithMaxWorkers(cfg.Workers),
	}
}

// Register adds or replaces a factory.
func (r *Registry) Register(name string, f Factory) {
	r.optimizers[name] = f
}

func (r *Registry) GetOptimizer(cfg config.OptimizerConfig, fitness optim.Fitness, extra ...optim.Option) (optim.Optimizer, error) {
	fn, ok := r.optimizers[cfg.Kind]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownOptimizer, cfg.Kind)
	}
	return fn(cfg, fitness, extra...), nil
}

func (r *Registry) ListOptimizers() []string {
	names := make([]string, 0, len(r.optimizers))
	for name := range r.optimizers {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// loggerOption attaches a component logger when one is given.
func loggerOption(l *slog.Logger, kind string) optim.Option {
	if l == nil {
		return optim.WithLogger(nil)
	}
	return optim.WithLogger(l.With(slog.String("optimizer", kind)))
}
