package control

import (
	"fmt"

	"github.com/san-kum/pidtune/internal/dynamo"
)

// Rule picks the Ziegler-Nichols controller structure.
type Rule int

const (
	RuleP Rule = iota
	RulePI
	RulePID
)

func (r Rule) String() string {
	switch r {
	case RuleP:
		return "P"
	case RulePI:
		return "PI"
	case RulePID:
		return "PID"
	}
	return fmt.Sprintf("rule(%d)", int(r))
}

// StepModel is the delay/lag approximation read off a step response with
// the inflection tangent: dead time Tu, lag time Tg and static gain Ks.
type StepModel struct {
	Tu, Tg, Ks float64

	// TangentTime and TangentValue locate the point the tangent touches.
	TangentTime  float64
	TangentValue float64
	Slope        float64
}

// Gains holds a Ziegler-Nichols tuning in parallel form.
type Gains struct {
	Kp, Ki, Kd float64
}

// FitTangent places the tangent at the first sample after which the slope
// stops increasing, and takes the last sample as steady state.
func FitTangent(times, values []float64) (StepModel, error) {
	if len(times) != len(values) {
		return StepModel{}, fmt.Errorf("zn: %d times for %d values: %w", len(times), len(values), dynamo.ErrDimensionMismatch)
	}
	if len(values) < 3 {
		return StepModel{}, fmt.Errorf("zn: %d samples: %w", len(values), ErrShortResponse)
	}

	var m StepModel
	found := false
	for i := 1; i < len(times)-1; i++ {
		slope1 := (values[i] - values[i-1]) / (times[i] - times[i-1])
		slope2 := (values[i+1] - values[i]) / (times[i+1] - times[i])
		if slope2 < slope1 {
			m.TangentTime, m.TangentValue, m.Slope = times[i], values[i], slope1
			found = true
			break
		}
	}
	if !found || m.Slope <= 0 {
		return StepModel{}, ErrNoInflection
	}

	q := m.TangentValue - m.Slope*m.TangentTime
	m.Tu = -q / m.Slope
	m.Ks = values[len(values)-1]
	m.Tg = (m.Ks-q)/m.Slope - m.Tu
	if m.Tu <= 0 || m.Ks == 0 {
		return StepModel{}, fmt.Errorf("zn: dead time %g, gain %g: %w", m.Tu, m.Ks, ErrNoInflection)
	}
	return m, nil
}

func (m StepModel) Gains(rule Rule) Gains {
	ratio := m.Tg / (m.Ks * m.Tu)
	var g Gains
	switch rule {
	case RuleP:
		g.Kp = ratio
	case RulePI:
		g.Kp = 0.9 * ratio
		g.Ki = g.Kp / (3.33 * m.Tu)
	case RulePID:
		g.Kp = 1.2 * ratio
		g.Ki = g.Kp / (2 * m.Tu)
		g.Kd = g.Kp * 0.5 * m.Tu
	}
	return g
}

// RecordStep drives input 0 of sys with a unit step for duration seconds
// and samples output 0 before every update.
func RecordStep(sys dynamo.System, dt, duration float64) (times, values []float64) {
	n := int(duration / dt)
	times = make([]float64, 0, n)
	values = make([]float64, 0, n)
	sys.SetInput(0, 1)
	for i := 0; i < n; i++ {
		times = append(times, float64(i)*dt)
		values = append(values, sys.Output(0))
		sys.Update(dt)
	}
	return times, values
}
