package sim

import (
	"context"
	"errors"
	"fmt"

	"github.com/san-kum/pidtune/internal/control"
	"github.com/san-kum/pidtune/internal/dynamo"
)

var ErrInvalidConfig = errors.New("sim: invalid config")

// Simulator drives a closed loop through reference and disturbance
// schedules and feeds every step to its metrics and observers.
type Simulator struct {
	metrics   []Metric
	observers []Observer
}

func New() *Simulator {
	return &Simulator{
		metrics:   make([]Metric, 0),
		observers: make([]Observer, 0),
	}
}

func (s *Simulator) AddMetric(m ...Metric)     { s.metrics = append(s.metrics, m...) }
func (s *Simulator) AddObserver(o ...Observer) { s.observers = append(s.observers, o...) }

// Run resets the loop and advances it cfg.Steps() times. Step i applies the
// schedules at t = i*dt before updating. On cancellation or a numerical
// failure the partial result is returned with the error.
func (s *Simulator) Run(ctx context.Context, loop *control.Loop, cfg Config) (*Result, error) {
	if err := validateConfig(cfg); err != nil {
		return nil, err
	}

	steps := cfg.Steps()
	result := &Result{
		Times:       make([]float64, 0, steps),
		Reference:   make([]float64, 0, steps),
		Disturbance: make([]float64, 0, steps),
		Output:      make([]float64, 0, steps),
		Control:     make([]float64, 0, steps),
		Error:       make([]float64, 0, steps),
		Metrics:     make(map[string]float64),
	}

	for _, m := range s.metrics {
		m.Reset()
	}
	loop.Reset()

	ref := cursor{steps: cfg.Reference}
	dist := cursor{steps: cfg.Disturbance}

	for i := 0; i < steps; i++ {
		select {
		case <-ctx.Done():
			s.collect(result)
			return result, fmt.Errorf("%w: %w", dynamo.ErrContextCanceled, ctx.Err())
		default:
		}

		t := float64(i) * cfg.Dt
		stepped := ref.advance(t)
		dist.advance(t)

		last := loop.Output(control.PlantOutput)
		loop.SetInput(control.Reference, ref.value)
		loop.SetInput(control.Disturbance, dist.value)
		loop.Update(cfg.Dt)

		sample := Sample{
			Step:        i,
			Time:        t,
			Dt:          cfg.Dt,
			Reference:   ref.value,
			Disturbance: dist.value,
			Stepped:     stepped,
			LastOutput:  last,
			Output:      loop.Output(control.PlantOutput),
			Error:       loop.Error(),
			Control:     loop.ControlOutput(),
		}

		if cfg.ValidateState && !(dynamo.State{sample.Output, sample.Control}).IsValid() {
			s.collect(result)
			return result, divergence(i, t)
		}

		for _, m := range s.metrics {
			m.Observe(sample)
		}
		for _, obs := range s.observers {
			obs.OnStep(sample)
		}

		result.Times = append(result.Times, t)
		result.Reference = append(result.Reference, sample.Reference)
		result.Disturbance = append(result.Disturbance, sample.Disturbance)
		result.Output = append(result.Output, sample.Output)
		result.Control = append(result.Control, sample.Control)
		result.Error = append(result.Error, sample.Error)
		result.StepsTaken++
	}

	s.collect(result)
	return result, nil
}

func (s *Simulator) collect(result *Result) {
	for _, m := range s.metrics {
		result.Metrics[m.Name()] = m.Value()
	}
}

// divergence is the error a run stops with when the loop blows up.
func divergence(step int, t float64) error {
	return dynamo.SimError{Time: t, Step: step, Message: "invalid state (NaN/Inf)", Err: dynamo.ErrInvalidState}
}

func validateConfig(cfg Config) error {
	if cfg.Dt <= 0 {
		return fmt.Errorf("%w: dt must be positive, got %f", ErrInvalidConfig, cfg.Dt)
	}
	if cfg.Duration <= 0 {
		return fmt.Errorf("%w: duration must be positive, got %f", ErrInvalidConfig, cfg.Duration)
	}
	if err := cfg.Reference.Validate(); err != nil {
		return fmt.Errorf("%w: reference: %w", ErrInvalidConfig, err)
	}
	if err := cfg.Disturbance.Validate(); err != nil {
		return fmt.Errorf("%w: disturbance: %w", ErrInvalidConfig, err)
	}
	return nil
}
