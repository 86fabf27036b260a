package analysis

import (
	"errors"
	"math"
	"testing"

	"gonum.org/v1/gonum/mat"

	"github.com/san-kum/pidtune/internal/dynamo"
	"github.com/san-kum/pidtune/internal/models"
)

func TestGainBlockResponse(t *testing.T) {
	tests := []struct {
		name string
		k    float64
	}{
		{"amplifying", 2},
		{"attenuating", 0.5},
		{"unity", 1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			fr := NewFrequencyResponse(WithPointsPerDecade(5), WithAmplitude(0.3))
			resp, err := fr.Response(models.NewGain(tt.k), 1, 100)
			if err != nil {
				t.Fatal(err)
			}
			if len(resp.Points) != 10 {
				t.Fatalf("expected 10 points, got %d", len(resp.Points))
			}
			for _, p := range resp.Points {
				if math.Abs(p.Magnitude()-tt.k) > 1e-6 {
					t.Errorf("f=%.3f: expected |G|=%v, got %v", p.Frequency, tt.k, p.Magnitude())
				}
				if math.Abs(p.Phase()) > 1e-6 {
					t.Errorf("f=%.3f: expected zero phase, got %v", p.Frequency, p.Phase())
				}
			}
		})
	}
}

func TestGainBlockHasNoMargins(t *testing.T) {
	resp, err := NewFrequencyResponse().Response(models.NewGain(2), 1, 10)
	if err != nil {
		t.Fatal(err)
	}
	if resp.HasPhaseMargin() || resp.HasGainMargin() {
		t.Errorf("expected no margins, got %+v", resp)
	}
	if resp.GainMargin != 0 || resp.PhaseMargin != 0 {
		t.Errorf("expected zero-valued margins, got gm=%v pm=%v", resp.GainMargin, resp.PhaseMargin)
	}
}

// integrator builds G(s) = wc/s.
func integrator(t *testing.T, wc float64) *models.StateSpace {
	t.Helper()
	ss, err := models.NewStateSpace(
		mat.NewDense(1, 1, []float64{0}),
		mat.NewDense(1, 1, []float64{wc}),
		mat.NewDense(1, 1, []float64{1}),
		mat.NewDense(1, 1, []float64{0}),
		dynamo.RK4,
	)
	if err != nil {
		t.Fatal(err)
	}
	return ss
}

func TestIntegratorPhaseMargin(t *testing.T) {
	fr := NewFrequencyResponse(WithPointsPerDecade(20))
	resp, err := fr.Response(integrator(t, 2*math.Pi*2), 0.5, 50)
	if err != nil {
		t.Fatal(err)
	}
	if !resp.HasPhaseMargin() {
		t.Fatal("expected a gain crossover")
	}
	if resp.CrossoverFrequency < 2 || resp.CrossoverFrequency > 2*math.Pow(10, 1.0/20)*1.001 {
		t.Errorf("expected crossover just above 2 Hz, got %v", resp.CrossoverFrequency)
	}
	if math.Abs(resp.PhaseMargin-math.Pi/2) > 0.01 {
		t.Errorf("expected phase margin pi/2, got %v", resp.PhaseMargin)
	}
	if resp.HasGainMargin() {
		t.Errorf("integrator never reaches -180 degrees, got gm=%v", resp.GainMargin)
	}
}

// TestThirdOrderMargins sweeps G(s) = 4/(s+1)^3: phase margin
// pi - 3*atan(sqrt(4^(2/3)-1)) and gain margin 2 at sqrt(3) rad/s.
func TestThirdOrderMargins(t *testing.T) {
	if testing.Short() {
		t.Skip("long sweep")
	}
	ss, err := models.NewStateSpace(
		mat.NewDense(3, 3, []float64{0, 1, 0, 0, 0, 1, -1, -3, -3}),
		mat.NewDense(3, 1, []float64{0, 0, 1}),
		mat.NewDense(1, 3, []float64{4, 0, 0}),
		mat.NewDense(1, 1, []float64{0}),
		dynamo.RK4,
	)
	if err != nil {
		t.Fatal(err)
	}

	resp, err := NewFrequencyResponse(WithPointsPerDecade(100)).Response(ss, 0.1, 1)
	if err != nil {
		t.Fatal(err)
	}

	wantPM := math.Pi - 3*math.Atan(math.Sqrt(math.Pow(4, 2.0/3)-1))
	if math.Abs(resp.PhaseMargin-wantPM) > 0.02 {
		t.Errorf("expected phase margin %.4f, got %.4f", wantPM, resp.PhaseMargin)
	}
	if math.Abs(resp.GainMargin-2) > 0.1 {
		t.Errorf("expected gain margin near 2, got %.4f", resp.GainMargin)
	}
	wantPC := math.Sqrt(3) / (2 * math.Pi)
	if math.Abs(resp.PhaseCrossoverFrequency-wantPC)/wantPC > 0.03 {
		t.Errorf("expected phase crossover near %.4f Hz, got %.4f", wantPC, resp.PhaseCrossoverFrequency)
	}
	if resp.CrossoverFrequency >= resp.PhaseCrossoverFrequency {
		t.Errorf("gain crossover %v must precede phase crossover %v", resp.CrossoverFrequency, resp.PhaseCrossoverFrequency)
	}
}

func TestFrequencies(t *testing.T) {
	fr := NewFrequencyResponse(WithPointsPerDecade(10))
	freqs, err := fr.Frequencies(1, 100)
	if err != nil {
		t.Fatal(err)
	}
	if len(freqs) != 20 {
		t.Fatalf("expected 20 frequencies, got %d", len(freqs))
	}
	if math.Abs(freqs[0]-1) > 1e-12 || math.Abs(freqs[19]-100) > 1e-9 {
		t.Errorf("unexpected endpoints %v, %v", freqs[0], freqs[19])
	}
	ratio := freqs[1] / freqs[0]
	for i := 2; i < len(freqs); i++ {
		if math.Abs(freqs[i]/freqs[i-1]-ratio) > 1e-9 {
			t.Fatalf("spacing not logarithmic at %d", i)
		}
	}

	if short, _ := fr.Frequencies(1, 1.5); len(short) != 2 {
		t.Errorf("expected at least two points, got %v", short)
	}

	counts := []struct {
		start, end float64
		want       int
	}{
		{1, 50, 10},
		{1, 5, 2},
		{0.5, 50, 20},
		{0.1, 1, 10},
		{2, 2000, 30},
	}
	for _, c := range counts {
		got, err := fr.Frequencies(c.start, c.end)
		if err != nil {
			t.Fatal(err)
		}
		if len(got) != c.want {
			t.Errorf("[%g, %g]: expected %d frequencies, got %d", c.start, c.end, c.want, len(got))
		}
		if math.Abs(got[len(got)-1]-c.end) > 1e-9*c.end {
			t.Errorf("[%g, %g]: sweep must end at %g, got %g", c.start, c.end, c.end, got[len(got)-1])
		}
	}

	for _, r := range [][2]float64{{0, 10}, {-1, 10}, {10, 10}, {10, 1}, {math.NaN(), 1}} {
		if _, err := fr.Frequencies(r[0], r[1]); !errors.Is(err, ErrInvalidRange) {
			t.Errorf("%v: expected ErrInvalidRange, got %v", r, err)
		}
	}
}

func TestPhasor(t *testing.T) {
	const (
		f  = 3.0
		dt = 1e-3
		n  = 1000
	)
	omega := 2 * math.Pi * f
	signal := make([]float64, n)
	for i := range signal {
		signal[i] = 0.7*math.Cos(omega*float64(i)*dt+0.4) + 5
	}
	p := Phasor(signal, omega, 0, dt)
	if math.Abs(cmplxAbs(p)-0.7) > 1e-9 {
		t.Errorf("expected amplitude 0.7, got %v", cmplxAbs(p))
	}
	if math.Abs(math.Atan2(imag(p), real(p))-0.4) > 1e-9 {
		t.Errorf("expected phase 0.4, got %v", math.Atan2(imag(p), real(p)))
	}
	if Phasor(nil, omega, 0, dt) != 0 {
		t.Error("expected zero phasor for empty signal")
	}
}

func cmplxAbs(c complex128) float64 { return math.Hypot(real(c), imag(c)) }

func TestPointDecibels(t *testing.T) {
	p := Point{Frequency: 1, Gain: complex(0, 10)}
	if math.Abs(p.Decibels()-20) > 1e-12 {
		t.Errorf("expected 20 dB, got %v", p.Decibels())
	}
	if math.Abs(p.Phase()-math.Pi/2) > 1e-12 {
		t.Errorf("expected pi/2, got %v", p.Phase())
	}
}
