package models

import "github.com/san-kum/pidtune/internal/dynamo"

// Gain is the static block y = K*u with one input and one output.
type Gain struct {
	K float64
	u float64
}

func NewGain(k float64) *Gain {
	return &Gain{K: k}
}

func (g *Gain) SetInput(index int, value float64) {
	if index == 0 {
		g.u = value
	}
}

func (g *Gain) SetInputs(u []float64) {
	if len(u) > 0 {
		g.u = u[0]
	}
}

func (g *Gain) Update(float64) {}

func (g *Gain) Output(index int) float64 {
	if index != 0 {
		return 0
	}
	return g.K * g.u
}

func (g *Gain) Outputs() []float64 { return []float64{g.K * g.u} }

func (g *Gain) Reset() { g.u = 0 }

func (g *Gain) Clone() dynamo.System {
	c := *g
	return &c
}
