package dynamo

import (
	"fmt"
	"math"
	"strings"
)

// State is a plain state or signal vector.
type State []float64

func (s State) Clone() State {
	c := make(State, len(s))
	copy(c, s)
	return c
}

func (s State) IsValid() bool {
	for _, v := range s {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return false
		}
	}
	return true
}

func (s State) Norm() float64 {
	sum := 0.0
	for _, v := range s {
		sum += v * v
	}
	return math.Sqrt(sum)
}

// System is a time-stepped dynamical block. Update advances exactly one step
// of dt; outputs always reflect the current internal state.
type System interface {
	SetInput(index int, value float64)
	SetInputs(u []float64)
	Update(dt float64)
	Output(index int) float64
	Outputs() []float64
	// Reset zeroes internal state but keeps configuration.
	Reset()
	// Clone returns an independent copy carrying configuration and current state.
	Clone() System
}

// Tunable is a System whose behaviour is driven by a flat parameter vector.
type Tunable interface {
	System
	SetParameters(params []float64)
	Parameters() []float64
}

// CloneTunable clones s and narrows the copy to a Tunable.
func CloneTunable(s System) (Tunable, error) {
	if s == nil {
		return nil, fmt.Errorf("clone: %w", ErrIncompatibleSystem)
	}
	t, ok := s.Clone().(Tunable)
	if !ok {
		return nil, fmt.Errorf("clone %T: %w", s, ErrIncompatibleSystem)
	}
	return t, nil
}

// Integration selects the numerical scheme a system uses to advance its state.
type Integration int

const (
	Discretized Integration = iota
	ForwardEuler
	BackwardEuler
	Bilinear
	RK4
)

var integrationNames = map[Integration]string{
	Discretized:   "discretized",
	ForwardEuler:  "forward_euler",
	BackwardEuler: "backward_euler",
	Bilinear:      "bilinear",
	RK4:           "rk4",
}

func (i Integration) String() string {
	if name, ok := integrationNames[i]; ok {
		return name
	}
	return fmt.Sprintf("integration(%d)", int(i))
}

// ParseIntegration accepts the String form plus a few common aliases.
func ParseIntegration(name string) (Integration, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "discretized", "discrete":
		return Discretized, nil
	case "forward_euler", "euler", "forward-euler":
		return ForwardEuler, nil
	case "backward_euler", "backward-euler":
		return BackwardEuler, nil
	case "bilinear", "tustin", "trapezoid":
		return Bilinear, nil
	case "rk4":
		return RK4, nil
	}
	return 0, fmt.Errorf("%w: %q", ErrUnsupportedIntegration, name)
}

func (i Integration) MarshalText() ([]byte, error) {
	return []byte(i.String()), nil
}

func (i *Integration) UnmarshalText(text []byte) error {
	v, err := ParseIntegration(string(text))
	if err != nil {
		return err
	}
	*i = v
	return nil
}

// EulerStep returns y + dt*u. Which sample of u is passed decides between the
// forward and backward variants.
func EulerStep(y, u, dt float64) float64 {
	return y + dt*u
}

// TrapezoidStep returns y + dt/2*(u + uLast).
func TrapezoidStep(y, uLast, u, dt float64) float64 {
	return y + dt/2*(u+uLast)
}

// BackwardDifference returns (u - uLast)/dt.
func BackwardDifference(uLast, u, dt float64) float64 {
	return (u - uLast) / dt
}

// SimError reports a numerical failure at a given step of a run.
type SimError struct {
	Time    float64
	Step    int
	Message string
	Err     error
}

func (e SimError) Error() string {
	return fmt.Sprintf("step %d (t=%.4f): %s", e.Step, e.Time, e.Message)
}

func (e SimError) Unwrap() error { return e.Err }
