package analysis

import (
	"errors"
	"fmt"
	"math"

	"github.com/san-kum/pidtune/internal/dynamo"
)

var ErrEmptyTrace = errors.New("analysis: empty or zero-reference trace")

// StepInfo summarizes a step response against its reference.
type StepInfo struct {
	Peak     float64
	PeakTime float64
	// Overshoot is the peak excess over the reference, in percent.
	Overshoot float64
	// RiseTime is the 10% to 90% time; zero if 90% is never reached.
	RiseTime float64
	// SettlingTime is when the trace last enters the band and stays there.
	SettlingTime     float64
	SteadyState      float64
	SteadyStateError float64
}

// SettlingBand is the relative band used by ComputeStepInfo.
const SettlingBand = 0.02

func ComputeStepInfo(times, values []float64, reference float64) (StepInfo, error) {
	if len(times) != len(values) {
		return StepInfo{}, fmt.Errorf("step info: %d times for %d values: %w", len(times), len(values), dynamo.ErrDimensionMismatch)
	}
	if len(values) == 0 || reference == 0 {
		return StepInfo{}, ErrEmptyTrace
	}

	info := StepInfo{Peak: math.Inf(-1)}
	sign := math.Copysign(1, reference)
	var t10, t90 float64
	have10, have90 := false, false

	for i, v := range values {
		if v*sign > info.Peak*sign || math.IsInf(info.Peak, -1) {
			info.Peak, info.PeakTime = v, times[i]
		}
		frac := v / reference
		if !have10 && frac >= 0.1 {
			t10, have10 = times[i], true
		}
		if !have90 && frac >= 0.9 {
			t90, have90 = times[i], true
		}
	}
	if have10 && have90 {
		info.RiseTime = t90 - t10
	}

	if excess := (info.Peak - reference) / reference; excess > 0 {
		info.Overshoot = excess * 100
	}

	info.SteadyState = values[len(values)-1]
	info.SteadyStateError = reference - info.SteadyState

	band := SettlingBand * math.Abs(reference)
	info.SettlingTime = times[0]
	for i := len(values) - 1; i >= 0; i-- {
		if math.Abs(values[i]-reference) > band {
			if i+1 < len(times) {
				info.SettlingTime = times[i+1]
			} else {
				info.SettlingTime = math.Inf(1)
			}
			break
		}
	}
	return info, nil
}
