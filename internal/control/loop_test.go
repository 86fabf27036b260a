package control

import (
	"errors"
	"math"
	"testing"

	"github.com/san-kum/pidtune/internal/dynamo"
	"github.com/san-kum/pidtune/internal/models"
)

func motorLoop(t *testing.T) *Loop {
	t.Helper()
	cfg := DefaultPIDConfig()
	cfg.OutputLower, cfg.OutputUpper = 0, 10
	cfg.IntegralLimit = 10
	pid, err := NewPID(cfg)
	if err != nil {
		t.Fatal(err)
	}
	motor, err := models.NewDCMotor(models.DefaultMotorParams(), dynamo.Bilinear)
	if err != nil {
		t.Fatal(err)
	}
	loop, err := NewLoop(pid, motor, nil)
	if err != nil {
		t.Fatal(err)
	}
	loop.SetParameters([]float64{2, 5, 0, 0})
	return loop
}

func TestLoopTracksReference(t *testing.T) {
	loop := motorLoop(t)
	loop.SetInput(Reference, 1)
	for i := 0; i < 1000; i++ {
		loop.Update(0.01)
	}
	if math.Abs(loop.Output(PlantOutput)-1) > 1e-3 {
		t.Errorf("expected output near 1, got %v", loop.Output(PlantOutput))
	}
	if math.Abs(loop.Error()) > 1e-3 {
		t.Errorf("expected small error, got %v", loop.Error())
	}

	loop.SetInput(Disturbance, 1)
	for i := 0; i < 1000; i++ {
		loop.Update(0.01)
	}
	if math.Abs(loop.Output(PlantOutput)-1) > 1e-3 {
		t.Errorf("expected integral action to reject the load, got %v", loop.Output(PlantOutput))
	}
	if loop.ControlOutput() <= 1 {
		t.Errorf("expected extra effort under load, got %v", loop.ControlOutput())
	}
}

func TestLoopErrorUsesOutputBeforeStep(t *testing.T) {
	loop := motorLoop(t)
	loop.SetInput(Reference, 3)
	loop.Update(0.01)
	if loop.Error() != 3 {
		t.Errorf("expected first error 3, got %v", loop.Error())
	}
	if math.Abs(loop.ControlOutput()-6.15) > 1e-12 {
		t.Errorf("unexpected first control %v", loop.ControlOutput())
	}
}

func TestLoopParameters(t *testing.T) {
	loop := motorLoop(t)
	if got := loop.Parameters(); len(got) != 4 || got[0] != 2 || got[1] != 5 {
		t.Fatalf("unexpected parameters %v", got)
	}

	custom, err := NewLoop(loop.PID().Clone().(*PID), loop.Plant().Clone(), ParamLayout{ParamKp, ParamBackCalculation})
	if err != nil {
		t.Fatal(err)
	}
	custom.SetParameters([]float64{7, 0.3, 99})
	if custom.PID().Kp != 7 || custom.PID().BackCalculation != 0.3 {
		t.Errorf("layout not applied: %+v", custom.PID().Config())
	}
	if names := custom.Layout().Names(); names[1] != "BackCalculation" {
		t.Errorf("unexpected names %v", names)
	}

	short := loop.Clone().(*Loop)
	short.SetParameters([]float64{1})
	if short.PID().Kp != 1 || short.PID().Ki != 5 {
		t.Errorf("expected partial update, got %v", short.Parameters())
	}
	if loop.PID().Kp != 2 {
		t.Error("clone shares the controller")
	}
}

func TestNewLoopRejectsUnknownParam(t *testing.T) {
	pid, err := NewPID(DefaultPIDConfig())
	if err != nil {
		t.Fatal(err)
	}
	for _, layout := range []ParamLayout{{ParamKp, Param(9)}, {Param(-1)}} {
		loop, err := NewLoop(pid, models.NewGain(1), layout)
		if !errors.Is(err, ErrUnknownParam) {
			t.Errorf("%v: expected ErrUnknownParam, got %v", layout, err)
		}
		if loop != nil {
			t.Errorf("%v: expected no loop", layout)
		}
	}
}

func TestLoopIsTunable(t *testing.T) {
	var sys dynamo.System = motorLoop(t)
	clone, err := dynamo.CloneTunable(sys)
	if err != nil {
		t.Fatalf("CloneTunable: %v", err)
	}
	clone.SetParameters([]float64{9})
	if sys.(*Loop).PID().Kp == 9 {
		t.Error("clone writes reached the source")
	}
}

func TestLoopForwardPathIsIndependent(t *testing.T) {
	loop := motorLoop(t)
	loop.SetInput(Reference, 2)
	for i := 0; i < 50; i++ {
		loop.Update(0.01)
	}
	before := loop.Output(PlantOutput)

	fp := loop.ForwardPath()
	if fp.Output(0) != 0 {
		t.Errorf("expected forward path to start at rest, got %v", fp.Output(0))
	}
	fp.SetInput(0, 1)
	for i := 0; i < 50; i++ {
		fp.Update(0.01)
	}
	if fp.Output(0) <= 0 {
		t.Errorf("expected forward path to respond, got %v", fp.Output(0))
	}
	if loop.Output(PlantOutput) != before {
		t.Error("sweeping the forward path changed the loop")
	}
	if fp.PID().Kp != loop.PID().Kp {
		t.Error("forward path lost the gains")
	}
}

func TestLoopReset(t *testing.T) {
	loop := motorLoop(t)
	loop.SetInputs([]float64{4, 1})
	for i := 0; i < 20; i++ {
		loop.Update(0.01)
	}
	loop.Reset()
	if loop.Output(0) != 0 || loop.Error() != 0 || loop.Reference() != 0 || loop.PID().Integral() != 0 {
		t.Errorf("expected zero state, got y=%v e=%v", loop.Output(0), loop.Error())
	}
	if loop.PID().Kp != 2 {
		t.Error("reset must keep gains")
	}
}

func TestParseParam(t *testing.T) {
	p, err := ParseParam("kd")
	if err != nil || p != ParamKd {
		t.Errorf("expected Kd, got %v, %v", p, err)
	}
	if _, err := ParseParam("Tau"); err == nil {
		t.Error("expected error for unknown parameter")
	}
}
