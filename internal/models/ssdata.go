package models

import (
	"fmt"

	"gonum.org/v1/gonum/mat"

	"github.com/san-kum/pidtune/internal/dynamo"
)

// SSData is the flat form of a state space model: dimensions followed by
// A, B, C and D in row-major order.
type SSData struct {
	Inputs  int       `yaml:"inputs" json:"inputs" validate:"min=1"`
	Outputs int       `yaml:"outputs" json:"outputs" validate:"min=1"`
	States  int       `yaml:"states" json:"states" validate:"min=1"`
	Values  []float64 `yaml:"values" json:"values" validate:"required"`
}

func (d SSData) expectedLen() int {
	n, m, p := d.States, d.Inputs, d.Outputs
	return n*n + n*m + p*n + p*m
}

// Matrices splits Values into A, B, C and D.
func (d SSData) Matrices() (a, b, c, dd *mat.Dense, err error) {
	if d.States < 1 || d.Inputs < 1 || d.Outputs < 1 || len(d.Values) != d.expectedLen() {
		return nil, nil, nil, nil, fmt.Errorf("ss data: %d states, %d inputs, %d outputs with %d values: %w",
			d.States, d.Inputs, d.Outputs, len(d.Values), dynamo.ErrDimensionMismatch)
	}
	n, m, p := d.States, d.Inputs, d.Outputs
	off := 0
	take := func(r, c int) *mat.Dense {
		vals := make([]float64, r*c)
		copy(vals, d.Values[off:off+r*c])
		off += r * c
		return mat.NewDense(r, c, vals)
	}
	a = take(n, n)
	b = take(n, m)
	c = take(p, n)
	dd = take(p, m)
	return a, b, c, dd, nil
}

// Data exports the current matrices.
func (s *StateSpace) Data() SSData {
	n, m, p := s.Dims()
	values := make([]float64, 0, n*n+n*m+p*n+p*m)
	for _, x := range []*mat.Dense{s.a, s.b, s.c, s.d} {
		r, c := x.Dims()
		for i := 0; i < r; i++ {
			for j := 0; j < c; j++ {
				values = append(values, x.At(i, j))
			}
		}
	}
	return SSData{Inputs: m, Outputs: p, States: n, Values: values}
}

// SetData restores matrices from d. Inconsistent sizes leave the system
// unchanged and report ErrDimensionMismatch.
func (s *StateSpace) SetData(d SSData) error {
	a, b, c, dd, err := d.Matrices()
	if err != nil {
		return err
	}
	return s.SetMatrices(a, b, c, dd)
}

// NewStateSpaceFromData builds a plant from its flat form.
func NewStateSpaceFromData(d SSData, integration dynamo.Integration) (*StateSpace, error) {
	a, b, c, dd, err := d.Matrices()
	if err != nil {
		return nil, err
	}
	return NewStateSpace(a, b, c, dd, integration)
}
