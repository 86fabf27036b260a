package optim

import (
	"errors"
	"fmt"
	"math"
	"strings"

	"gonum.org/v1/gonum/floats"
)

var (
	ErrBusy            = errors.New("optim: population is being evaluated")
	ErrEmptyPopulation = errors.New("optim: empty population")
	ErrParameterLength = errors.New("optim: inconsistent parameter vector length")
	ErrNoFitness       = errors.New("optim: no fitness function")
	ErrClosed          = errors.New("optim: optimizer closed")
)

// Direction tells an optimizer which way scores improve.
type Direction int

const (
	Maximize Direction = iota
	Minimize
)

func (d Direction) String() string {
	if d == Minimize {
		return "minimize"
	}
	return "maximize"
}

func ParseDirection(s string) (Direction, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "maximize", "max", "":
		return Maximize, nil
	case "minimize", "min":
		return Minimize, nil
	}
	return 0, fmt.Errorf("optim: unknown direction %q", s)
}

func (d Direction) MarshalText() ([]byte, error) { return []byte(d.String()), nil }

func (d *Direction) UnmarshalText(text []byte) error {
	v, err := ParseDirection(string(text))
	if err != nil {
		return err
	}
	*d = v
	return nil
}

// Better reports whether a is strictly better than b.
func (d Direction) Better(a, b float64) bool {
	if d == Minimize {
		return a < b
	}
	return a > b
}

// Worst is the score every real score beats.
func (d Direction) Worst() float64 {
	if d == Minimize {
		return math.Inf(1)
	}
	return math.Inf(-1)
}

// Fitness scores one parameter vector. agent is the population index the
// vector belongs to, so a callback can keep per-agent simulation copies.
// The optimizer sums the returned parts into the agent's score.
type Fitness func(params []float64, agent int) []float64

// Agent is one member of a population.
type Agent struct {
	Params []float64
	// MutationFactors are the per-gene step sizes under self-adaptive
	// mutation.
	MutationFactors []float64
	ScoreParts      []float64
	Score           float64
}

func (a Agent) Clone() Agent {
	return Agent{
		Params:          append([]float64(nil), a.Params...),
		MutationFactors: append([]float64(nil), a.MutationFactors...),
		ScoreParts:      append([]float64(nil), a.ScoreParts...),
		Score:           a.Score,
	}
}

// Optimizer is the contract shared by the population-based searchers.
// A generation is Test followed by Iterate.
type Optimizer interface {
	SetFitness(Fitness)
	SetInitialParameters(population [][]float64) error

	// Test evaluates the current population.
	Test()
	// Iterate breeds the next population from the tested one.
	Iterate()

	BestParameters() []float64
	BestScore() float64
	AllTimeBestParameters() []float64
	AllTimeBestScore() float64
	ClearAllTimeBest()

	// Scores are the raw scores of the last evaluated population.
	Scores() []float64
	// ScoreParts is each fitness component's share of the summed parts
	// over the last evaluated population.
	ScoreParts() []float64

	SetMutationAmount(float64)
	MutationAmount() float64
	Direction() Direction
	Busy() bool
	Close() error
}

func validatePopulation(population [][]float64) (int, error) {
	if len(population) == 0 {
		return 0, ErrEmptyPopulation
	}
	n := len(population[0])
	if n == 0 {
		return 0, fmt.Errorf("%w: zero genes", ErrParameterLength)
	}
	for i, p := range population {
		if len(p) != n {
			return 0, fmt.Errorf("%w: agent %d has %d genes, want %d", ErrParameterLength, i, len(p), n)
		}
	}
	return n, nil
}

// normalizeParts divides each component by the total, leaving zeros when
// the total is zero.
func normalizeParts(parts []float64) []float64 {
	out := make([]float64, len(parts))
	total := floats.Sum(parts)
	if total == 0 {
		return out
	}
	for i, p := range parts {
		out[i] = p / total
	}
	return out
}
