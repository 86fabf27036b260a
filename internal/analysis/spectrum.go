package analysis

import (
	"math/cmplx"

	"github.com/mjibson/go-dsp/fft"
	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"
)

// Spectrum returns the one-sided amplitude spectrum of samples taken every
// dt seconds. The mean is removed first so bin 0 only carries drift.
func Spectrum(samples []float64, dt float64) (freqs, amplitude []float64) {
	n := len(samples)
	if n < 2 || dt <= 0 {
		return nil, nil
	}

	mean := stat.Mean(samples, nil)
	centered := make([]float64, n)
	for i, v := range samples {
		centered[i] = v - mean
	}

	bins := fft.FFTReal(centered)
	half := n/2 + 1
	freqs = make([]float64, half)
	amplitude = make([]float64, half)
	for k := 0; k < half; k++ {
		freqs[k] = float64(k) / (float64(n) * dt)
		amplitude[k] = 2 * cmplx.Abs(bins[k]) / float64(n)
	}
	return freqs, amplitude
}

// DominantFrequency reports the strongest non-DC component, used to spot
// ringing in a closed-loop trace. It returns 0 for traces too short to
// resolve any frequency.
func DominantFrequency(samples []float64, dt float64) float64 {
	freqs, amplitude := Spectrum(samples, dt)
	if len(amplitude) < 2 {
		return 0
	}
	return freqs[1+floats.MaxIdx(amplitude[1:])]
}
