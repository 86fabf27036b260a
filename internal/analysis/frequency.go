package analysis

import (
	"errors"
	"fmt"
	"math"
	"math/cmplx"

	"gonum.org/v1/gonum/floats"

	"github.com/san-kum/pidtune/internal/dynamo"
)

var ErrInvalidRange = errors.New("analysis: invalid frequency range")

// Point is the complex gain of a system at one probe frequency in Hz.
type Point struct {
	Frequency float64
	Gain      complex128
}

func (p Point) Magnitude() float64 { return cmplx.Abs(p.Gain) }

// Phase in radians, within [-pi, pi].
func (p Point) Phase() float64 { return cmplx.Phase(p.Gain) }

func (p Point) Decibels() float64 { return 20 * math.Log10(p.Magnitude()) }

// Response holds a sweep and the margins read from it. A zero frequency
// means the crossing was not found inside the swept band.
type Response struct {
	Points []Point

	// CrossoverFrequency is where |G| first drops to 1.
	CrossoverFrequency float64
	PhaseMargin        float64

	// PhaseCrossoverFrequency is where the phase passes -180 degrees,
	// searched only above the gain crossover.
	PhaseCrossoverFrequency float64
	GainMargin              float64
}

func (r Response) HasPhaseMargin() bool { return r.CrossoverFrequency != 0 }
func (r Response) HasGainMargin() bool  { return r.PhaseCrossoverFrequency != 0 }

// FrequencyResponse sweeps a system with sinusoidal probes and correlates
// the output against the probe frequency.
type FrequencyResponse struct {
	pointsPerDecade int
	amplitude       float64
	inputIndex      int
	outputIndex     int
	settlePeriods   float64
	measurePeriods  float64
	maxStep         float64
}

type Option func(*FrequencyResponse)

func WithPointsPerDecade(n int) Option {
	return func(f *FrequencyResponse) {
		if n > 0 {
			f.pointsPerDecade = n
		}
	}
}

func WithAmplitude(a float64) Option {
	return func(f *FrequencyResponse) { f.amplitude = a }
}

func WithInputIndex(i int) Option {
	return func(f *FrequencyResponse) { f.inputIndex = i }
}

func WithOutputIndex(i int) Option {
	return func(f *FrequencyResponse) { f.outputIndex = i }
}

// WithSettlePeriods sets how many probe periods run before measuring.
func WithSettlePeriods(n float64) Option {
	return func(f *FrequencyResponse) {
		if n >= 0 {
			f.settlePeriods = n
		}
	}
}

func WithMeasurePeriods(n float64) Option {
	return func(f *FrequencyResponse) {
		if n > 0 {
			f.measurePeriods = n
		}
	}
}

func NewFrequencyResponse(opts ...Option) *FrequencyResponse {
	f := &FrequencyResponse{
		pointsPerDecade: 10,
		amplitude:       1,
		settlePeriods:   5,
		measurePeriods:  10,
		maxStep:         0.01,
	}
	for _, opt := range opts {
		opt(f)
	}
	return f
}

// Frequencies returns the log-spaced probe frequencies for [start, end].
func (f *FrequencyResponse) Frequencies(start, end float64) ([]float64, error) {
	if !(start > 0) || !(end > start) || math.IsInf(end, 1) {
		return nil, fmt.Errorf("%w: [%g, %g]", ErrInvalidRange, start, end)
	}
	// Only whole decades count; the epsilon keeps exact ratios like 100
	// from truncating to one decade less.
	decades := int(math.Log10(end/start) + 1e-9)
	n := decades * f.pointsPerDecade
	if n < 2 {
		n = 2
	}
	return floats.LogSpan(make([]float64, n), start, end), nil
}

// Response sweeps sys from start to end Hz. The system is reset once and
// then carried from one probe frequency to the next, so callers that need
// the original state must pass a clone.
func (f *FrequencyResponse) Response(sys dynamo.System, start, end float64) (Response, error) {
	freqs, err := f.Frequencies(start, end)
	if err != nil {
		return Response{}, err
	}

	sys.Reset()
	r := Response{Points: make([]Point, 0, len(freqs))}
	var samples []float64
	for _, freq := range freqs {
		omega := 2 * math.Pi * freq
		dt := math.Min(f.maxStep, 1/(freq*1000))
		nSettle := int(math.Round(f.settlePeriods / freq / dt))
		nMeasure := int(math.Round(f.measurePeriods / freq / dt))

		for i := 0; i < nSettle; i++ {
			sys.SetInput(f.inputIndex, f.amplitude*math.Sin(omega*float64(i)*dt))
			sys.Update(dt)
		}

		samples = samples[:0]
		for i := 0; i < nMeasure; i++ {
			t := float64(nSettle+i) * dt
			sys.SetInput(f.inputIndex, f.amplitude*math.Sin(omega*t))
			sys.Update(dt)
			samples = append(samples, sys.Output(f.outputIndex))
		}

		// A sine probe has phasor -j times its amplitude.
		out := Phasor(samples, omega, float64(nSettle)*dt, dt)
		in := complex(0, -f.amplitude)
		r.Points = append(r.Points, Point{Frequency: freq, Gain: out / in})
	}

	r.findMargins()
	return r, nil
}

// Phasor is the single-bin DFT of signal at omega, with sample i taken at
// t0 + i*dt, scaled by 2/N so a sinusoid maps to its amplitude.
func Phasor(signal []float64, omega, t0, dt float64) complex128 {
	if len(signal) == 0 {
		return 0
	}
	var re, im float64
	for i, v := range signal {
		t := t0 + float64(i)*dt
		re += v * math.Cos(omega*t)
		im -= v * math.Sin(omega*t)
	}
	scale := 2 / float64(len(signal))
	return complex(re*scale, im*scale)
}

func (r *Response) findMargins() {
	crossed := false
	lastMag, lastImag := 0.0, 0.0
	for i, p := range r.Points {
		mag := p.Magnitude()
		if !crossed && mag <= 1 && (i == 0 || lastMag > 1) {
			r.CrossoverFrequency = p.Frequency
			r.PhaseMargin = math.Mod(math.Pi+p.Phase()+math.Pi, 2*math.Pi) - math.Pi
			crossed = true
		}
		if crossed && lastImag < 0 && imag(p.Gain) > 0 {
			r.GainMargin = 1 / mag
			r.PhaseCrossoverFrequency = p.Frequency
			return
		}
		lastMag = mag
		lastImag = imag(p.Gain)
	}
}
