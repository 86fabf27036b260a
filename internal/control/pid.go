package control

import (
	"fmt"
	"strings"

	"github.com/san-kum/pidtune/internal/dynamo"
)

// AntiWindup selects how the integrator behaves while the output saturates.
type AntiWindup int

const (
	AntiWindupNone AntiWindup = iota
	// Clamping skips integration while the output is saturated and the
	// integral already points the same way as the new increment.
	Clamping
	// BackCalculation feeds (output - unsaturated output)*BackCalculation
	// into the integrator input.
	BackCalculation
)

func (a AntiWindup) String() string {
	switch a {
	case AntiWindupNone:
		return "none"
	case Clamping:
		return "clamping"
	case BackCalculation:
		return "back_calculation"
	}
	return fmt.Sprintf("anti_windup(%d)", int(a))
}

func ParseAntiWindup(s string) (AntiWindup, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "none", "":
		return AntiWindupNone, nil
	case "clamping", "clamp":
		return Clamping, nil
	case "back_calculation", "backcalculation", "back-calculation":
		return BackCalculation, nil
	}
	return 0, fmt.Errorf("control: unknown anti-windup method %q", s)
}

func (a AntiWindup) MarshalText() ([]byte, error) { return []byte(a.String()), nil }

func (a *AntiWindup) UnmarshalText(text []byte) error {
	v, err := ParseAntiWindup(string(text))
	if err != nil {
		return err
	}
	*a = v
	return nil
}

// DerivativeMode selects plain backward differencing or the first-order
// filtered derivative parameterized by Kn.
type DerivativeMode int

const (
	Unfiltered DerivativeMode = iota
	Filtered
)

func (d DerivativeMode) String() string {
	if d == Filtered {
		return "filtered"
	}
	return "unfiltered"
}

func ParseDerivativeMode(s string) (DerivativeMode, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "unfiltered", "":
		return Unfiltered, nil
	case "filtered":
		return Filtered, nil
	}
	return 0, fmt.Errorf("control: unknown derivative mode %q", s)
}

func (d DerivativeMode) MarshalText() ([]byte, error) { return []byte(d.String()), nil }

func (d *DerivativeMode) UnmarshalText(text []byte) error {
	v, err := ParseDerivativeMode(string(text))
	if err != nil {
		return err
	}
	*d = v
	return nil
}

type PIDConfig struct {
	Kp              float64            `yaml:"kp"`
	Ki              float64            `yaml:"ki"`
	Kd              float64            `yaml:"kd"`
	Kn              float64            `yaml:"kn"`
	IntegralLimit   float64            `yaml:"integral_limit" validate:"gte=0"`
	BackCalculation float64            `yaml:"back_calculation"`
	OutputLower     float64            `yaml:"output_lower"`
	OutputUpper     float64            `yaml:"output_upper" validate:"gtefield=OutputLower"`
	AntiWindup      AntiWindup         `yaml:"anti_windup"`
	Derivative      DerivativeMode     `yaml:"derivative"`
	Integration     dynamo.Integration `yaml:"integration"`
}

func DefaultPIDConfig() PIDConfig {
	return PIDConfig{
		IntegralLimit:   1e6,
		BackCalculation: 0.1,
		OutputLower:     -1e6,
		OutputUpper:     1e6,
		AntiWindup:      Clamping,
		Derivative:      Unfiltered,
		Integration:     dynamo.ForwardEuler,
	}
}

// PID is a single-input single-output regulator. Input 0 is the control
// error, output 0 the saturated actuator command.
type PID struct {
	Kp              float64
	Ki              float64
	Kd              float64
	Kn              float64
	IntegralLimit   float64
	BackCalculation float64
	OutputLower     float64
	OutputUpper     float64

	antiWindup  AntiWindup
	derivative  DerivativeMode
	integration dynamo.Integration
	integrate   func(integral, last, current, dt float64) float64

	input          float64
	lastInput      float64
	lastDerivative float64
	integral       float64
	unsaturated    float64
	output         float64
	posSaturated   bool
	negSaturated   bool
}

func NewPID(cfg PIDConfig) (*PID, error) {
	if cfg.OutputLower > cfg.OutputUpper {
		return nil, fmt.Errorf("pid: output limits [%g, %g]: %w", cfg.OutputLower, cfg.OutputUpper, ErrInvalidLimits)
	}
	if cfg.IntegralLimit < 0 {
		return nil, fmt.Errorf("pid: integral limit %g: %w", cfg.IntegralLimit, ErrInvalidLimits)
	}
	p := &PID{
		Kp:              cfg.Kp,
		Ki:              cfg.Ki,
		Kd:              cfg.Kd,
		Kn:              cfg.Kn,
		IntegralLimit:   cfg.IntegralLimit,
		BackCalculation: cfg.BackCalculation,
		OutputLower:     cfg.OutputLower,
		OutputUpper:     cfg.OutputUpper,
		antiWindup:      cfg.AntiWindup,
		derivative:      cfg.Derivative,
	}
	if err := p.setIntegration(cfg.Integration); err != nil {
		return nil, err
	}
	return p, nil
}

func (p *PID) setIntegration(integration dynamo.Integration) error {
	switch integration {
	case dynamo.ForwardEuler:
		p.integrate = func(y, _, cur, dt float64) float64 { return dynamo.EulerStep(y, cur, dt) }
	case dynamo.BackwardEuler:
		p.integrate = func(y, last, _, dt float64) float64 { return dynamo.EulerStep(y, last, dt) }
	case dynamo.Bilinear:
		p.integrate = dynamo.TrapezoidStep
	default:
		return fmt.Errorf("pid: %w: %s", dynamo.ErrUnsupportedIntegration, integration)
	}
	p.integration = integration
	return nil
}

// Config reports the current configuration.
func (p *PID) Config() PIDConfig {
	return PIDConfig{
		Kp:              p.Kp,
		Ki:              p.Ki,
		Kd:              p.Kd,
		Kn:              p.Kn,
		IntegralLimit:   p.IntegralLimit,
		BackCalculation: p.BackCalculation,
		OutputLower:     p.OutputLower,
		OutputUpper:     p.OutputUpper,
		AntiWindup:      p.antiWindup,
		Derivative:      p.derivative,
		Integration:     p.integration,
	}
}

func (p *PID) SetGains(kp, ki, kd, kn float64) {
	p.Kp, p.Ki, p.Kd, p.Kn = kp, ki, kd, kn
}

func (p *PID) SetInput(index int, value float64) {
	if index == 0 {
		p.input = value
	}
}

func (p *PID) SetInputs(u []float64) {
	if len(u) > 0 {
		p.input = u[0]
	}
}

func (p *PID) Update(dt float64) {
	proportional := p.Kp * p.input

	var derivative float64
	switch p.derivative {
	case Unfiltered:
		derivative = p.Kd * dynamo.BackwardDifference(p.lastInput, p.input, dt)
	case Filtered:
		derivative = p.Kd*p.Kn*(p.input-p.lastInput) - p.lastDerivative*(p.Kn*dt-1)
	}

	current := p.input * p.Ki
	last := p.lastInput * p.Ki

	integrate := true
	switch p.antiWindup {
	case Clamping:
		sameSign := (p.integral > 0 && current > 0) || (p.integral < 0 && current < 0)
		if (p.posSaturated || p.negSaturated) && sameSign {
			integrate = false
		}
	case BackCalculation:
		feedback := (p.output - p.unsaturated) * p.BackCalculation
		current += feedback
		last += feedback
	}
	if integrate {
		p.integral = p.integrate(p.integral, last, current, dt)
	}

	if p.integral < -p.IntegralLimit {
		p.integral = -p.IntegralLimit
	} else if p.integral > p.IntegralLimit {
		p.integral = p.IntegralLimit
	}

	p.unsaturated = proportional + p.integral + derivative

	p.posSaturated = false
	p.negSaturated = false
	switch {
	case p.unsaturated < p.OutputLower:
		p.output = p.OutputLower
		p.negSaturated = true
	case p.unsaturated > p.OutputUpper:
		p.output = p.OutputUpper
		p.posSaturated = true
	default:
		p.output = p.unsaturated
	}

	p.lastInput = p.input
	p.lastDerivative = derivative
}

func (p *PID) Output(index int) float64 {
	if index != 0 {
		return 0
	}
	return p.output
}

func (p *PID) Outputs() []float64 { return []float64{p.output} }

// Unsaturated is the output before the limits were applied.
func (p *PID) Unsaturated() float64 { return p.unsaturated }

func (p *PID) Integral() float64 { return p.integral }

// Saturation reports which limit the last update hit.
func (p *PID) Saturation() (positive, negative bool) {
	return p.posSaturated, p.negSaturated
}

func (p *PID) Saturated() bool { return p.posSaturated || p.negSaturated }

func (p *PID) Reset() {
	p.input = 0
	p.lastInput = 0
	p.lastDerivative = 0
	p.integral = 0
	p.unsaturated = 0
	p.output = 0
	p.posSaturated = false
	p.negSaturated = false
}

func (p *PID) Clone() dynamo.System {
	c := *p
	return &c
}

// GetParams returns tunable parameters for live adjustment
func (p *PID) GetParams() map[string]float64 {
	return map[string]float64{
		"Kp":              p.Kp,
		"Ki":              p.Ki,
		"Kd":              p.Kd,
		"Kn":              p.Kn,
		"IntegralLimit":   p.IntegralLimit,
		"BackCalculation": p.BackCalculation,
	}
}

// SetParam adjusts a PID parameter
func (p *PID) SetParam(name string, value float64) error {
	param, err := ParseParam(name)
	if err != nil {
		return fmt.Errorf("pid: %w", err)
	}
	p.set(param, value)
	return nil
}

func (p *PID) set(param Param, value float64) {
	switch param {
	case ParamKp:
		p.Kp = value
	case ParamKi:
		p.Ki = value
	case ParamKd:
		p.Kd = value
	case ParamKn:
		p.Kn = value
	case ParamIntegralLimit:
		if value < 0 {
			value = 0
		}
		p.IntegralLimit = value
	case ParamBackCalculation:
		p.BackCalculation = value
	}
}
