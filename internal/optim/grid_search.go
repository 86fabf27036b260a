package optim

import (
	"context"
	"fmt"

	"gonum.org/v1/gonum/floats"
)

// GridSearch scores every combination of a fixed set of values per gene.
// It is the exhaustive baseline the population searchers are compared to.
type GridSearch struct {
	ranges    [][]float64
	direction Direction
}

func NewGridSearch(ranges [][]float64, dir Direction) *GridSearch {
	return &GridSearch{ranges: ranges, direction: dir}
}

// Axis returns n evenly spaced values from lo to hi inclusive.
func Axis(lo, hi float64, n int) []float64 {
	if n < 2 {
		return []float64{lo}
	}
	return floats.Span(make([]float64, n), lo, hi)
}

// Size is the number of fitness evaluations Search performs.
func (g *GridSearch) Size() int {
	if len(g.ranges) == 0 {
		return 0
	}
	n := 1
	for _, r := range g.ranges {
		n *= len(r)
	}
	return n
}

// Search returns the best point and its summed score. The context is
// checked before every evaluation.
func (g *GridSearch) Search(ctx context.Context, fitness Fitness) ([]float64, float64, error) {
	if fitness == nil {
		return nil, 0, ErrNoFitness
	}
	if g.Size() == 0 {
		return nil, 0, fmt.Errorf("%w: grid has no points", ErrEmptyPopulation)
	}

	best := g.direction.Worst()
	var bestParams []float64
	current := make([]float64, len(g.ranges))
	evaluated := 0

	var walk func(depth int) error
	walk = func(depth int) error {
		if depth == len(g.ranges) {
			if err := ctx.Err(); err != nil {
				return err
			}
			score := floats.Sum(fitness(current, evaluated))
			evaluated++
			if bestParams == nil || g.direction.Better(score, best) {
				best = score
				bestParams = append(bestParams[:0], current...)
			}
			return nil
		}
		for _, v := range g.ranges[depth] {
			current[depth] = v
			if err := walk(depth + 1); err != nil {
				return err
			}
		}
		return nil
	}

	if err := walk(0); err != nil {
		return bestParams, best, err
	}
	return bestParams, best, nil
}
