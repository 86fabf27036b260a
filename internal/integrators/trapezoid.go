package integrators

// Trapezoid averages the current derivative with the one from the previous
// step: x += (dx(k) + dx(k-1))*dt/2. The first step after Reset sees a zero
// previous derivative.
type Trapezoid struct {
	dx     []float64
	lastDx []float64
}

func NewTrapezoid() *Trapezoid {
	return &Trapezoid{}
}

func (t *Trapezoid) Step(f Func, x []float64, dt float64) {
	n := len(x)
	t.dx = resize(t.dx, n)
	t.lastDx = resize(t.lastDx, n)

	f(x, t.dx)
	half := dt / 2
	for i := range x {
		x[i] += (t.dx[i] + t.lastDx[i]) * half
	}
	copy(t.lastDx, t.dx)
}

func (t *Trapezoid) Reset() {
	for i := range t.lastDx {
		t.lastDx[i] = 0
	}
}

// LastDerivative exposes the derivative carried into the next step.
func (t *Trapezoid) LastDerivative() []float64 {
	out := make([]float64, len(t.lastDx))
	copy(out, t.lastDx)
	return out
}

func (t *Trapezoid) Clone() Stepper {
	c := NewTrapezoid()
	if t.lastDx != nil {
		c.lastDx = make([]float64, len(t.lastDx))
		copy(c.lastDx, t.lastDx)
	}
	return c
}
