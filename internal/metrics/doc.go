// Package metrics scores closed-loop runs and reports optimizer progress.
//
// The sim.Metric implementations (ErrorIntegral, ControlEffort, Overshoot,
// Saturation) each reduce a run to one number and make up the parts of a
// tuning score. Recorder publishes optimizer telemetry to Prometheus and
// satisfies optim.Recorder.
package metrics
