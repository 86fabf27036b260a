package metrics

import (
	"math"

	"github.com/san-kum/pidtune/internal/sim"
)

type edge int

const (
	flat edge = iota
	rising
	overshooting
)

// Overshoot accumulates how far the output climbs past the reference after
// an upward step, normalized by scale and averaged over all samples. Only
// the climbing part of each excursion counts.
type Overshoot struct {
	name    string
	scale   float64
	state   edge
	sum     float64
	samples int
}

func NewOvershoot(scale float64) *Overshoot {
	if scale == 0 {
		scale = 1
	}
	return &Overshoot{name: "overshoot", scale: scale}
}

func (o *Overshoot) Name() string { return o.name }

func (o *Overshoot) Observe(s sim.Sample) {
	o.samples++
	if s.Stepped {
		o.state = flat
		if s.Reference > s.LastOutput {
			o.state = rising
		}
	}

	if s.LastOutput < s.Output && s.Reference < s.Output && o.state != flat {
		o.sum += math.Abs((s.Output - s.Reference) / o.scale)
		o.state = overshooting
	} else if o.state == overshooting {
		o.state = flat
	}
}

func (o *Overshoot) Value() float64 {
	if o.samples == 0 {
		return 0
	}
	return o.sum / float64(o.samples)
}

func (o *Overshoot) Reset() {
	o.state = flat
	o.sum = 0
	o.samples = 0
}
