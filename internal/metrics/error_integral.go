package metrics

import (
	"math"

	"github.com/san-kum/pidtune/internal/sim"
)

// SaturationMargin is how close to a limit the controller output must be to
// count as saturated.
const SaturationMargin = 0.01

// ErrorIntegral is the mean absolute control error, normalized by the
// largest reference the plant is driven with.
type ErrorIntegral struct {
	name    string
	scale   float64
	skip    bool
	lower   float64
	upper   float64
	sum     float64
	samples int
}

func NewErrorIntegral(scale float64) *ErrorIntegral {
	if scale == 0 {
		scale = 1
	}
	return &ErrorIntegral{name: "error_integral", scale: scale}
}

// SkipSaturated leaves out samples where the actuator sits at a limit and
// the error pushes further into it; no gain could have reduced those.
func (m *ErrorIntegral) SkipSaturated(lower, upper float64) *ErrorIntegral {
	m.skip = true
	m.lower, m.upper = lower, upper
	return m
}

func (m *ErrorIntegral) Name() string { return m.name }

func (m *ErrorIntegral) Observe(s sim.Sample) {
	m.samples++
	if m.skip {
		high := s.Control > m.upper-SaturationMargin
		low := s.Control < m.lower+SaturationMargin
		if (high && s.Reference > s.Output) || (low && s.Reference < s.Output) {
			return
		}
	}
	m.sum += math.Abs(s.Error / m.scale)
}

func (m *ErrorIntegral) Value() float64 {
	if m.samples == 0 {
		return 0
	}
	return m.sum / float64(m.samples)
}

func (m *ErrorIntegral) Reset() {
	m.sum = 0
	m.samples = 0
}
