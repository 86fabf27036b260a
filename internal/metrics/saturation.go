package metrics

import "github.com/san-kum/pidtune/internal/sim"

// Saturation is the fraction of steps the actuator spent at a limit.
type Saturation struct {
	name       string
	lower      float64
	upper      float64
	violations int
	samples    int
}

func NewSaturation(lower, upper float64) *Saturation {
	return &Saturation{
		name:  "saturation",
		lower: lower,
		upper: upper,
	}
}

func (s *Saturation) Name() string {
	return s.name
}

func (s *Saturation) Observe(x sim.Sample) {
	s.samples++
	if x.Control > s.upper-SaturationMargin || x.Control < s.lower+SaturationMargin {
		s.violations++
	}
}

func (s *Saturation) Value() float64 {
	if s.samples == 0 {
		return 0
	}
	return float64(s.violations) / float64(s.samples)
}

func (s *Saturation) Reset() {
	s.violations = 0
	s.samples = 0
}
