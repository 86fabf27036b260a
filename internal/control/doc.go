// Package control provides the PID regulator and the closed loop it is
// tuned in.
//
//   - [PID]: single-channel regulator with anti-windup and filtered
//     derivative options
//   - [ForwardPath]: open-loop PID -> plant chain, the system a frequency
//     sweep measures margins on
//   - [Loop]: unity feedback around a ForwardPath; implements
//     [dynamo.Tunable] so optimizers can write gains through a [ParamLayout]
//   - [FitTangent]: Ziegler-Nichols tangent method for a starting point
//
// # Usage
//
//	cfg := control.DefaultPIDConfig()
//	cfg.OutputLower, cfg.OutputUpper = 0, 10
//	pid, _ := control.NewPID(cfg)
//	loop, _ := control.NewLoop(pid, motor, nil)
//	loop.SetParameters([]float64{2, 1, 0.01, 10})
//	loop.SetInput(control.Reference, 5)
//	loop.Update(0.01)
//
// Gains may be changed between updates with [PID.SetParam].
package control
