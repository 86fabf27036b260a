// Package analysis measures simulated systems.
//
//   - [FrequencyResponse]: sinusoidal sweep with phasor correlation, and
//     the gain and phase margins read from the sweep
//   - [Spectrum] and [DominantFrequency]: FFT of a recorded trace
//   - [ComputeStepInfo]: overshoot, rise time and settling time
//
// # Margins
//
// Sweep the open loop, not the closed one:
//
//	fr := analysis.NewFrequencyResponse(analysis.WithPointsPerDecade(20))
//	resp, err := fr.Response(loop.ForwardPath(), 1, 100)
//	if err == nil && resp.HasGainMargin() {
//	    fmt.Println(resp.GainMargin)
//	}
//
// A missing crossing leaves the margin fields at zero. It is not an error.
package analysis
