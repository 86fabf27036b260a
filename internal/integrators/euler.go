package integrators

type Euler struct {
	dx []float64
}

func NewEuler() *Euler {
	return &Euler{}
}

func (e *Euler) Step(f Func, x []float64, dt float64) {
	e.dx = resize(e.dx, len(x))
	f(x, e.dx)
	for i := range x {
		x[i] += dt * e.dx[i]
	}
}

func (e *Euler) Reset() {}

func (e *Euler) Clone() Stepper { return NewEuler() }

// Discrete treats f as the state transition x(k+1) = f(x(k)); dt is ignored.
type Discrete struct {
	next []float64
}

func NewDiscrete() *Discrete {
	return &Discrete{}
}

func (d *Discrete) Step(f Func, x []float64, dt float64) {
	d.next = resize(d.next, len(x))
	f(x, d.next)
	copy(x, d.next)
}

func (d *Discrete) Reset() {}

func (d *Discrete) Clone() Stepper { return NewDiscrete() }
