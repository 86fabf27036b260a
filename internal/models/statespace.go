package models

import (
	"fmt"

	"gonum.org/v1/gonum/mat"

	"github.com/san-kum/pidtune/internal/dynamo"
	"github.com/san-kum/pidtune/internal/integrators"
)

// StateSpace is the linear system x' = Ax + Bu, y = Cx + Du.
//
// Matrices are replaced, never modified in place, so clones share them.
type StateSpace struct {
	a, b, c, d *mat.Dense

	x []float64
	u []float64

	integration dynamo.Integration
	stepper     integrators.Stepper

	bu *mat.VecDense
}

// NewStateSpace validates the matrix shapes (A n×n, B n×m, C p×n, D p×m)
// and starts from a zero state.
func NewStateSpace(a, b, c, d mat.Matrix, integration dynamo.Integration) (*StateSpace, error) {
	stepper, err := integrators.New(integration)
	if err != nil {
		return nil, err
	}
	s := &StateSpace{integration: integration, stepper: stepper}
	if err := s.SetMatrices(a, b, c, d); err != nil {
		return nil, err
	}
	return s, nil
}

// SetMatrices replaces all four matrices at once, which is the only way to
// change the state, input or output count. State and input are zeroed.
func (s *StateSpace) SetMatrices(a, b, c, d mat.Matrix) error {
	if a == nil || b == nil || c == nil || d == nil {
		return fmt.Errorf("state space: nil matrix: %w", dynamo.ErrDimensionMismatch)
	}
	n, nc := a.Dims()
	br, m := b.Dims()
	p, cc := c.Dims()
	dr, dc := d.Dims()
	if n == 0 || m == 0 || p == 0 {
		return fmt.Errorf("state space: %d states, %d inputs, %d outputs: %w", n, m, p, dynamo.ErrDimensionMismatch)
	}
	if n != nc || br != n || cc != n || dr != p || dc != m {
		return fmt.Errorf("state space: A %dx%d, B %dx%d, C %dx%d, D %dx%d: %w",
			n, nc, br, m, p, cc, dr, dc, dynamo.ErrDimensionMismatch)
	}

	s.a = mat.DenseCopyOf(a)
	s.b = mat.DenseCopyOf(b)
	s.c = mat.DenseCopyOf(c)
	s.d = mat.DenseCopyOf(d)
	s.x = make([]float64, n)
	s.u = make([]float64, m)
	s.bu = mat.NewVecDense(n, nil)
	s.stepper.Reset()
	return nil
}

// SetA replaces A and zeroes the state and the integrator history.
func (s *StateSpace) SetA(a mat.Matrix) error {
	r, c := a.Dims()
	if r != c || r != len(s.x) {
		return fmt.Errorf("state space: A %dx%d for %d states: %w", r, c, len(s.x), dynamo.ErrDimensionMismatch)
	}
	s.a = mat.DenseCopyOf(a)
	for i := range s.x {
		s.x[i] = 0
	}
	s.stepper.Reset()
	return nil
}

// SetB replaces B, zeroes the input vector and drops stepper history
// computed with the old B. The state is kept.
func (s *StateSpace) SetB(b mat.Matrix) error {
	r, c := b.Dims()
	if r != len(s.x) || c != len(s.u) {
		return fmt.Errorf("state space: B %dx%d for %d states, %d inputs: %w", r, c, len(s.x), len(s.u), dynamo.ErrDimensionMismatch)
	}
	s.b = mat.DenseCopyOf(b)
	for i := range s.u {
		s.u[i] = 0
	}
	s.stepper.Reset()
	return nil
}

func (s *StateSpace) SetC(c mat.Matrix) error {
	r, cols := c.Dims()
	p, _ := s.c.Dims()
	if r != p || cols != len(s.x) {
		return fmt.Errorf("state space: C %dx%d: %w", r, cols, dynamo.ErrDimensionMismatch)
	}
	s.c = mat.DenseCopyOf(c)
	return nil
}

func (s *StateSpace) SetD(d mat.Matrix) error {
	r, cols := d.Dims()
	p, _ := s.c.Dims()
	if r != p || cols != len(s.u) {
		return fmt.Errorf("state space: D %dx%d: %w", r, cols, dynamo.ErrDimensionMismatch)
	}
	s.d = mat.DenseCopyOf(d)
	return nil
}

// SetIntegration swaps the integration scheme; stepper history starts empty.
func (s *StateSpace) SetIntegration(integration dynamo.Integration) error {
	stepper, err := integrators.New(integration)
	if err != nil {
		return err
	}
	s.integration = integration
	s.stepper = stepper
	return nil
}

func (s *StateSpace) Integration() dynamo.Integration { return s.integration }

// Dims returns the state, input and output counts.
func (s *StateSpace) Dims() (states, inputs, outputs int) {
	p, _ := s.c.Dims()
	return len(s.x), len(s.u), p
}

func (s *StateSpace) A() mat.Matrix { return mat.DenseCopyOf(s.a) }
func (s *StateSpace) B() mat.Matrix { return mat.DenseCopyOf(s.b) }
func (s *StateSpace) C() mat.Matrix { return mat.DenseCopyOf(s.c) }
func (s *StateSpace) D() mat.Matrix { return mat.DenseCopyOf(s.d) }

func (s *StateSpace) State() []float64 {
	return dynamo.State(s.x).Clone()
}

// SetState sets initial conditions.
func (s *StateSpace) SetState(x []float64) error {
	if len(x) != len(s.x) {
		return fmt.Errorf("state space: state of length %d for %d states: %w", len(x), len(s.x), dynamo.ErrDimensionMismatch)
	}
	copy(s.x, x)
	return nil
}

func (s *StateSpace) SetInput(index int, value float64) {
	if index >= 0 && index < len(s.u) {
		s.u[index] = value
	}
}

func (s *StateSpace) SetInputs(u []float64) {
	copy(s.u, u)
}

// derive writes Ax + Bu, or the next state for the discretized scheme.
func (s *StateSpace) derive(x, dst []float64) {
	n := len(x)
	out := mat.NewVecDense(n, dst)
	out.MulVec(s.a, mat.NewVecDense(n, x))
	s.bu.MulVec(s.b, mat.NewVecDense(len(s.u), s.u))
	out.AddVec(out, s.bu)
}

func (s *StateSpace) Update(dt float64) {
	s.stepper.Step(s.derive, s.x, dt)
}

// Output computes row index of Cx + Du from the current state.
func (s *StateSpace) Output(index int) float64 {
	p, _ := s.c.Dims()
	if index < 0 || index >= p {
		return 0
	}
	y := mat.Dot(s.c.RowView(index), mat.NewVecDense(len(s.x), s.x))
	y += mat.Dot(s.d.RowView(index), mat.NewVecDense(len(s.u), s.u))
	return y
}

func (s *StateSpace) Outputs() []float64 {
	p, _ := s.c.Dims()
	y := mat.NewVecDense(p, nil)
	y.MulVec(s.c, mat.NewVecDense(len(s.x), s.x))
	du := mat.NewVecDense(p, nil)
	du.MulVec(s.d, mat.NewVecDense(len(s.u), s.u))
	y.AddVec(y, du)
	return y.RawVector().Data
}

// Reset zeroes the state and the integrator history. Inputs are kept.
func (s *StateSpace) Reset() {
	for i := range s.x {
		s.x[i] = 0
	}
	s.stepper.Reset()
}

func (s *StateSpace) Clone() dynamo.System {
	return &StateSpace{
		a:           s.a,
		b:           s.b,
		c:           s.c,
		d:           s.d,
		x:           dynamo.State(s.x).Clone(),
		u:           dynamo.State(s.u).Clone(),
		integration: s.integration,
		stepper:     s.stepper.Clone(),
		bu:          mat.NewVecDense(len(s.x), nil),
	}
}
