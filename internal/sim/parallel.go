package sim

import (
	"context"

	"github.com/san-kum/pidtune/internal/control"
	"golang.org/x/sync/errgroup"
)

// Ensemble simulates several loops against the same schedules. Metrics
// carry state, so each run gets a fresh set from newMetrics.
type Ensemble struct {
	newMetrics func() []Metric
	limit      int
}

// NewEnsemble runs at most limit simulations at a time; limit <= 0 means
// no bound. newMetrics may be nil.
func NewEnsemble(newMetrics func() []Metric, limit int) *Ensemble {
	return &Ensemble{newMetrics: newMetrics, limit: limit}
}

// Run returns one result per loop, in order. The first failure cancels the
// remaining runs.
func (e *Ensemble) Run(ctx context.Context, loops []*control.Loop, cfg Config) ([]*Result, error) {
	results := make([]*Result, len(loops))

	g, ctx := errgroup.WithContext(ctx)
	if e.limit > 0 {
		g.SetLimit(e.limit)
	}
	for i, loop := range loops {
		g.Go(func() error {
			s := New()
			if e.newMetrics != nil {
				s.AddMetric(e.newMetrics()...)
			}
			res, err := s.Run(ctx, loop, cfg)
			results[i] = res
			return err
		})
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}
	return results, nil
}
