package models

import (
	"fmt"
	"math"

	"github.com/san-kum/pidtune/internal/dynamo"
)

// Motor inputs and outputs.
const (
	MotorVoltage     = 0
	MotorDisturbance = 1
	MotorSpeed       = 0
)

// MotorParams describes the simplified armature model. Psi and k2 are derived.
type MotorParams struct {
	T  float64 `yaml:"time_constant" validate:"gt=0"`
	K1 float64 `yaml:"k1"`
	R  float64 `yaml:"resistance" validate:"gt=0"`
	J  float64 `yaml:"inertia" validate:"gt=0"`
	Kw float64 `yaml:"kw"`
	K3 float64 `yaml:"k3"`
}

func DefaultMotorParams() MotorParams {
	return MotorParams{
		T:  0.14,
		K1: 1,
		R:  1.9,
		J:  2.5e-4,
		Kw: 2.4e-2,
		K3: 0.005,
	}
}

// Psi is the flux linkage sqrt(R*J/T).
func (p MotorParams) Psi() float64 {
	return math.Sqrt(p.R * p.J / p.T)
}

// K2 is the load coupling R*Kw/Psi^2.
func (p MotorParams) K2() float64 {
	psi := p.Psi()
	return p.R * p.Kw / (psi * psi)
}

// DCMotor integrates w' = (k1*u - w*(1 + k2*k3*l))/T where u is the armature
// voltage and l the load disturbance.
type DCMotor struct {
	params      MotorParams
	k2          float64
	invT        float64
	integration dynamo.Integration
	integrate   func(y, lastRate, rate, dt float64) float64

	voltage     float64
	disturbance float64
	speed       float64
	lastRate    float64
}

func NewDCMotor(params MotorParams, integration dynamo.Integration) (*DCMotor, error) {
	if params.T <= 0 || params.R <= 0 || params.J <= 0 {
		return nil, fmt.Errorf("dc motor: non-positive time constant, resistance or inertia: %w", dynamo.ErrInvalidState)
	}
	m := &DCMotor{
		params: params,
		k2:     params.K2(),
		invT:   1 / params.T,
	}
	if err := m.SetIntegration(integration); err != nil {
		return nil, err
	}
	return m, nil
}

// SetIntegration selects the scalar scheme. Forward Euler integrates the
// previous rate, backward Euler the current one.
func (m *DCMotor) SetIntegration(integration dynamo.Integration) error {
	switch integration {
	case dynamo.ForwardEuler:
		m.integrate = func(y, lastRate, _, dt float64) float64 { return dynamo.EulerStep(y, lastRate, dt) }
	case dynamo.BackwardEuler:
		m.integrate = func(y, _, rate, dt float64) float64 { return dynamo.EulerStep(y, rate, dt) }
	case dynamo.Bilinear:
		m.integrate = dynamo.TrapezoidStep
	default:
		return fmt.Errorf("dc motor: %w: %s", dynamo.ErrUnsupportedIntegration, integration)
	}
	m.integration = integration
	return nil
}

func (m *DCMotor) Params() MotorParams { return m.params }

func (m *DCMotor) SetInput(index int, value float64) {
	switch index {
	case MotorVoltage:
		m.voltage = value
	case MotorDisturbance:
		m.disturbance = value
	}
}

func (m *DCMotor) SetInputs(u []float64) {
	if len(u) >= 2 {
		m.voltage = u[0]
		m.disturbance = u[1]
	}
}

func (m *DCMotor) Update(dt float64) {
	rate := (m.params.K1*m.voltage - m.speed*(1+m.k2*m.params.K3*m.disturbance)) * m.invT
	m.speed = m.integrate(m.speed, m.lastRate, rate, dt)
	m.lastRate = rate
}

func (m *DCMotor) Speed() float64 { return m.speed }

func (m *DCMotor) Output(index int) float64 {
	if index == MotorSpeed {
		return m.speed
	}
	return 0
}

func (m *DCMotor) Outputs() []float64 { return []float64{m.speed} }

func (m *DCMotor) Reset() {
	m.voltage = 0
	m.disturbance = 0
	m.speed = 0
	m.lastRate = 0
}

func (m *DCMotor) Clone() dynamo.System {
	c := *m
	return &c
}
