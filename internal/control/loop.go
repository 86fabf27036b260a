package control

import (
	"fmt"
	"strings"

	"github.com/san-kum/pidtune/internal/dynamo"
)

// Loop signal indices.
const (
	Reference   = 0
	Disturbance = 1
	PlantOutput = 0
)

// Param names one tunable PID quantity.
type Param int

const (
	ParamKp Param = iota
	ParamKi
	ParamKd
	ParamKn
	ParamIntegralLimit
	ParamBackCalculation
)

var paramNames = [...]string{"Kp", "Ki", "Kd", "Kn", "IntegralLimit", "BackCalculation"}

func (p Param) String() string {
	if p >= 0 && int(p) < len(paramNames) {
		return paramNames[p]
	}
	return fmt.Sprintf("param(%d)", int(p))
}

func ParseParam(s string) (Param, error) {
	for i, name := range paramNames {
		if strings.EqualFold(name, strings.TrimSpace(s)) {
			return Param(i), nil
		}
	}
	return 0, fmt.Errorf("%w: %s", ErrUnknownParam, s)
}

func (p Param) MarshalText() ([]byte, error) { return []byte(p.String()), nil }

func (p *Param) UnmarshalText(text []byte) error {
	v, err := ParseParam(string(text))
	if err != nil {
		return err
	}
	*p = v
	return nil
}

// ParamLayout maps positions of an optimizer parameter vector onto PID
// quantities.
type ParamLayout []Param

func DefaultLayout() ParamLayout {
	return ParamLayout{ParamKp, ParamKi, ParamKd, ParamKn}
}

// Validate reports a layout entry that names no PID quantity.
func (l ParamLayout) Validate() error {
	for i, p := range l {
		if p < 0 || int(p) >= len(paramNames) {
			return fmt.Errorf("%w: %s at position %d", ErrUnknownParam, p, i)
		}
	}
	return nil
}

func (l ParamLayout) Names() []string {
	names := make([]string, len(l))
	for i, p := range l {
		names[i] = p.String()
	}
	return names
}

// ForwardPath is the open-loop chain PID -> plant. Input 0 is the control
// error, input 1 the load disturbance forwarded to plant input 1.
type ForwardPath struct {
	pid         *PID
	plant       dynamo.System
	disturbance float64
}

func NewForwardPath(pid *PID, plant dynamo.System) *ForwardPath {
	return &ForwardPath{pid: pid, plant: plant}
}

func (f *ForwardPath) SetInput(index int, value float64) {
	switch index {
	case 0:
		f.pid.SetInput(0, value)
	case Disturbance:
		f.disturbance = value
	}
}

func (f *ForwardPath) SetInputs(u []float64) {
	for i, v := range u {
		f.SetInput(i, v)
	}
}

func (f *ForwardPath) Update(dt float64) {
	f.pid.Update(dt)
	f.plant.SetInput(0, f.pid.Output(0))
	f.plant.SetInput(Disturbance, f.disturbance)
	f.plant.Update(dt)
}

func (f *ForwardPath) Output(index int) float64 { return f.plant.Output(index) }
func (f *ForwardPath) Outputs() []float64       { return f.plant.Outputs() }

func (f *ForwardPath) Reset() {
	f.pid.Reset()
	f.plant.Reset()
	f.disturbance = 0
}

func (f *ForwardPath) Clone() dynamo.System {
	return &ForwardPath{
		pid:         f.pid.Clone().(*PID),
		plant:       f.plant.Clone(),
		disturbance: f.disturbance,
	}
}

func (f *ForwardPath) PID() *PID            { return f.pid }
func (f *ForwardPath) Plant() dynamo.System { return f.plant }

// Loop closes a unity feedback loop around a ForwardPath: e = r - y is
// measured from the plant output before the step, then the chain advances.
type Loop struct {
	path      *ForwardPath
	layout    ParamLayout
	reference float64
	err       float64
}

// NewLoop wires pid and plant into a loop. An empty layout selects
// DefaultLayout; a layout naming an unknown quantity is rejected.
func NewLoop(pid *PID, plant dynamo.System, layout ParamLayout) (*Loop, error) {
	if len(layout) == 0 {
		layout = DefaultLayout()
	}
	if err := layout.Validate(); err != nil {
		return nil, err
	}
	return &Loop{
		path:   NewForwardPath(pid, plant),
		layout: append(ParamLayout(nil), layout...),
	}, nil
}

func (l *Loop) SetInput(index int, value float64) {
	switch index {
	case Reference:
		l.reference = value
	case Disturbance:
		l.path.SetInput(Disturbance, value)
	}
}

func (l *Loop) SetInputs(u []float64) {
	for i, v := range u {
		l.SetInput(i, v)
	}
}

func (l *Loop) Update(dt float64) {
	l.err = l.reference - l.path.Output(PlantOutput)
	l.path.SetInput(0, l.err)
	l.path.Update(dt)
}

func (l *Loop) Output(index int) float64 { return l.path.Output(index) }
func (l *Loop) Outputs() []float64       { return l.path.Outputs() }

func (l *Loop) Reset() {
	l.path.Reset()
	l.reference = 0
	l.err = 0
}

func (l *Loop) Clone() dynamo.System {
	return &Loop{
		path:      l.path.Clone().(*ForwardPath),
		layout:    append(ParamLayout(nil), l.layout...),
		reference: l.reference,
		err:       l.err,
	}
}

// SetParameters writes params into the PID following the layout. Extra
// values are ignored.
func (l *Loop) SetParameters(params []float64) {
	for i, p := range l.layout {
		if i >= len(params) {
			return
		}
		l.path.pid.set(p, params[i])
	}
}

func (l *Loop) Parameters() []float64 {
	values := l.path.pid.GetParams()
	out := make([]float64, len(l.layout))
	for i, p := range l.layout {
		out[i] = values[p.String()]
	}
	return out
}

func (l *Loop) Layout() ParamLayout { return append(ParamLayout(nil), l.layout...) }

// Error is the control error used by the most recent update.
func (l *Loop) Error() float64         { return l.err }
func (l *Loop) Reference() float64     { return l.reference }
func (l *Loop) ControlOutput() float64 { return l.path.pid.Output(0) }
func (l *Loop) PID() *PID              { return l.path.pid }
func (l *Loop) Plant() dynamo.System   { return l.path.plant }

// ForwardPath returns an independent copy of the open-loop chain, suitable
// for a frequency sweep that must not disturb the loop.
func (l *Loop) ForwardPath() *ForwardPath {
	fp := l.path.Clone().(*ForwardPath)
	fp.Reset()
	return fp
}
