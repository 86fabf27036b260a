package sim

import (
	"errors"
	"fmt"
	"math/rand"
)

var ErrUnsortedSchedule = errors.New("sim: schedule steps must be in time order")

// Step switches a signal to Value at time At.
type Step struct {
	At    float64 `yaml:"at" json:"at" validate:"gte=0"`
	Value float64 `yaml:"value" json:"value"`
}

// Schedule is a piecewise-constant signal. The value before the first step
// is zero.
type Schedule []Step

func (s Schedule) Validate() error {
	for i := 1; i < len(s); i++ {
		if s[i].At < s[i-1].At {
			return fmt.Errorf("%w: step %d at %g follows %g", ErrUnsortedSchedule, i, s[i].At, s[i-1].At)
		}
	}
	return nil
}

// ValueAt returns the value of the last step at or before t.
func (s Schedule) ValueAt(t float64) float64 {
	v := 0.0
	for _, st := range s {
		if st.At > t {
			break
		}
		v = st.Value
	}
	return v
}

// Max is the largest scheduled value.
func (s Schedule) Max() float64 {
	m := 0.0
	for _, st := range s {
		m = max(m, st.Value)
	}
	return m
}

// RandomSchedule draws up to count steps in [0, amplitude], each held between
// minHold and maxHold seconds, stopping once maxTime is reached.
func RandomSchedule(rng *rand.Rand, amplitude, maxTime, minHold, maxHold float64, count int) Schedule {
	var s Schedule
	t := 0.0
	for i := 0; i < count; i++ {
		lo, hi := t+minHold, min(t+maxHold, maxTime)
		if hi < lo {
			hi = lo
		}
		t = lo + rng.Float64()*(hi-lo)
		s = append(s, Step{At: t, Value: rng.Float64() * amplitude})
		if t >= maxTime {
			break
		}
	}
	return s
}

// cursor walks a schedule forward in time.
type cursor struct {
	steps Schedule
	next  int
	value float64
}

// advance applies every step due at t and reports whether any was.
func (c *cursor) advance(t float64) bool {
	stepped := false
	for c.next < len(c.steps) && t >= c.steps[c.next].At {
		c.value = c.steps[c.next].Value
		c.next++
		stepped = true
	}
	return stepped
}

// Sample is what metrics and observers see after each step.
type Sample struct {
	Step        int
	Time        float64
	Dt          float64
	Reference   float64
	Disturbance float64
	// Stepped is set on the tick a reference step was applied.
	Stepped bool
	// LastOutput is the plant output before this step.
	LastOutput float64
	Output     float64
	Error      float64
	Control    float64
}

type Metric interface {
	Name() string
	Observe(s Sample)
	Value() float64
	Reset()
}

type Observer interface {
	OnStep(s Sample)
}

// ObserverFunc adapts a function to Observer.
type ObserverFunc func(Sample)

func (f ObserverFunc) OnStep(s Sample) { f(s) }

type Config struct {
	Dt          float64  `yaml:"dt" json:"dt"`
	Duration    float64  `yaml:"duration" json:"duration"`
	Reference   Schedule `yaml:"reference" json:"reference"`
	Disturbance Schedule `yaml:"disturbance" json:"disturbance"`
	// ValidateState stops the run at the first non-finite output.
	ValidateState bool `yaml:"validate_state" json:"validate_state"`
}

// DefaultConfig is a unit step held for five seconds.
func DefaultConfig() Config {
	return Config{
		Dt:            0.01,
		Duration:      5,
		Reference:     Schedule{{At: 0, Value: 1}},
		ValidateState: true,
	}
}

// Steps is the number of updates a run performs.
func (c Config) Steps() int {
	return int(c.Duration/c.Dt + 0.5)
}

type Result struct {
	Times       []float64
	Reference   []float64
	Disturbance []float64
	Output      []float64
	Control     []float64
	Error       []float64
	Metrics     map[string]float64
	StepsTaken  int
}
