// Package experiment turns a config into a PID tuning run.
//
// A [Problem] owns the closed loop and the scoring: every candidate is
// simulated on the configured reference and disturbance schedules and
// scored by tracking error, controller activity and overshoot, plus gain
// and phase margin terms when their weights are set. [Problem.Fitness] is
// the callback handed to the optimizers.
//
// A [Runner] seeds a population around the configured gains, builds the
// optimizer through a [Registry] and evolves it generation by generation,
// returning a [Report].
//
// # Usage
//
//	cfg := config.GetPreset("fast")
//	report, err := experiment.NewRunner(cfg, experiment.WithLogger(logger)).Run(ctx)
//	if err != nil {
//		return err
//	}
//	fmt.Println(report.Params, report.Best)
package experiment
