package integrators

import (
	"fmt"

	"github.com/san-kum/pidtune/internal/dynamo"
)

// Func evaluates the system at x and writes the result into dst. For
// continuous schemes dst receives dx/dt; for Discrete it receives the next state.
type Func func(x, dst []float64)

// Stepper advances a state vector in place by one step.
type Stepper interface {
	Step(f Func, x []float64, dt float64)
	// Reset clears any history carried between steps.
	Reset()
	Clone() Stepper
}

// New resolves the stepper for a vector system. BackwardEuler needs an
// implicit solve and is not offered here.
func New(kind dynamo.Integration) (Stepper, error) {
	switch kind {
	case dynamo.Discretized:
		return NewDiscrete(), nil
	case dynamo.ForwardEuler:
		return NewEuler(), nil
	case dynamo.Bilinear:
		return NewTrapezoid(), nil
	case dynamo.RK4:
		return NewRK4(), nil
	}
	return nil, fmt.Errorf("%w: %s for vector systems", dynamo.ErrUnsupportedIntegration, kind)
}

func resize(buf []float64, n int) []float64 {
	if len(buf) != n {
		return make([]float64, n)
	}
	return buf
}
