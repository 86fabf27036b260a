package main

import (
	"context"
	"fmt"
	"log/slog"
	"math"
	"os"
	"os/signal"
	"sort"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/san-kum/pidtune/internal/analysis"
	"github.com/san-kum/pidtune/internal/config"
	"github.com/san-kum/pidtune/internal/control"
	"github.com/san-kum/pidtune/internal/experiment"
	"github.com/san-kum/pidtune/internal/metrics"
	"github.com/san-kum/pidtune/internal/optim"
	"github.com/san-kum/pidtune/internal/sim"
	"github.com/san-kum/pidtune/internal/viz"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"
)

var (
	configFile string
	preset     string
	logLevel   string

	optimizerKind string
	population    int
	generations   int
	seed          int64
	direction     string
	adaptive      bool
	workers       int
	decay         float64
	showMetrics   bool
	plot          bool

	kp, ki, kd, kn float64
	reference      float64
	stepTime       float64

	freqStart float64
	freqEnd   float64

	gridKp     []float64
	gridKi     []float64
	gridPoints int
)

func main() {
	rootCmd := &cobra.Command{
		Use:           "pidtune",
		Short:         "evolutionary PID tuning for simulated plants",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	rootCmd.PersistentFlags().StringVar(&configFile, "config", "", "config file path (yaml)")
	rootCmd.PersistentFlags().StringVar(&preset, "preset", "", "start from a named preset")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "warn", "log level (debug, info, warn, error)")

	tuneCmd := &cobra.Command{
		Use:   "tune",
		Short: "tune the PID with the configured optimizer",
		RunE:  runTune,
	}
	addOptimizerFlags(tuneCmd)
	tuneCmd.Flags().BoolVar(&plot, "plot", true, "plot score history and step response")

	compareCmd := &cobra.Command{
		Use:   "compare",
		Short: "run the genetic and differential optimizers side by side",
		RunE:  runCompare,
	}
	addOptimizerFlags(compareCmd)

	stepCmd := &cobra.Command{
		Use:   "step",
		Short: "closed-loop step response for fixed gains",
		RunE:  runStep,
	}
	addGainFlags(stepCmd)
	stepCmd.Flags().Float64Var(&reference, "ref", 1, "step height")
	stepCmd.Flags().Float64Var(&stepTime, "time", 5, "simulated time")

	bodeCmd := &cobra.Command{
		Use:   "bode",
		Short: "open-loop frequency response and stability margins",
		RunE:  runBode,
	}
	addGainFlags(bodeCmd)
	bodeCmd.Flags().Float64Var(&freqStart, "from", 0, "first frequency in Hz (default from config)")
	bodeCmd.Flags().Float64Var(&freqEnd, "to", 0, "last frequency in Hz (default from config)")

	znCmd := &cobra.Command{
		Use:   "zn",
		Short: "Ziegler-Nichols gains from the open-loop plant step",
		RunE:  runZieglerNichols,
	}
	znCmd.Flags().Float64Var(&stepTime, "time", 2, "recorded step length")

	gridCmd := &cobra.Command{
		Use:   "grid",
		Short: "exhaustive search over Kp and Ki",
		RunE:  runGrid,
	}
	gridCmd.Flags().Float64SliceVar(&gridKp, "kp-range", []float64{0, 10}, "Kp range lo,hi")
	gridCmd.Flags().Float64SliceVar(&gridKi, "ki-range", []float64{0, 20}, "Ki range lo,hi")
	gridCmd.Flags().IntVar(&gridPoints, "points", 11, "values per axis")

	presetsCmd := &cobra.Command{
		Use:   "presets",
		Short: "list available presets",
		RunE: func(cmd *cobra.Command, args []string) error {
			rows := make([][]string, 0, len(config.Presets))
			for _, name := range config.ListPresets() {
				cfg := config.GetPreset(name)
				rows = append(rows, []string{
					name,
					cfg.Optimizer.Kind,
					fmt.Sprint(cfg.Optimizer.Population),
					fmt.Sprint(cfg.Optimizer.Generations),
					fmt.Sprintf("%g", cfg.Problem.EndTime),
				})
			}
			return viz.Table(os.Stdout, []string{"PRESET", "OPTIMIZER", "POPULATION", "GENERATIONS", "END TIME"}, rows)
		},
	}

	rootCmd.AddCommand(tuneCmd, compareCmd, stepCmd, bodeCmd, znCmd, gridCmd, presetsCmd)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()
	if err := rootCmd.ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		stop()
		os.Exit(1)
	}
}

func addOptimizerFlags(cmd *cobra.Command) {
	cmd.Flags().StringVar(&optimizerKind, "optimizer", "genetic", "genetic or differential")
	cmd.Flags().IntVar(&population, "population", config.DefaultPopulation, "agents per generation")
	cmd.Flags().IntVar(&generations, "generations", config.DefaultGenerations, "generations to run")
	cmd.Flags().Int64Var(&seed, "seed", 1, "random seed")
	cmd.Flags().StringVar(&direction, "direction", "minimize", "score direction (minimize, maximize)")
	cmd.Flags().BoolVar(&adaptive, "adaptive", false, "self-adaptive genetic mutation")
	cmd.Flags().IntVar(&workers, "workers", optim.MaxWorkers, "evaluation goroutines")
	cmd.Flags().Float64Var(&decay, "decay", config.DefaultDecay, "genetic mutation decay per generation")
	cmd.Flags().BoolVar(&showMetrics, "metrics", false, "print the optimizer metrics after the run")
}

func addGainFlags(cmd *cobra.Command) {
	cmd.Flags().Float64Var(&kp, "kp", 1, "proportional gain")
	cmd.Flags().Float64Var(&ki, "ki", 1, "integral gain")
	cmd.Flags().Float64Var(&kd, "kd", 1, "derivative gain")
	cmd.Flags().Float64Var(&kn, "kn", 1, "derivative filter coefficient")
}

func newLogger() *slog.Logger {
	var level slog.Level
	if err := level.UnmarshalText([]byte(logLevel)); err != nil {
		level = slog.LevelWarn
	}
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))
}

// loadConfig resolves preset, then file, then flags that were set
// explicitly.
func loadConfig(cmd *cobra.Command) (*config.Config, error) {
	cfg := config.DefaultConfig()
	if preset != "" {
		cfg = config.GetPreset(preset)
		if cfg == nil {
			return nil, fmt.Errorf("unknown preset %q (have %s)", preset, strings.Join(config.ListPresets(), ", "))
		}
	}
	if configFile != "" {
		loaded, err := config.Load(configFile)
		if err != nil {
			return nil, err
		}
		cfg = loaded
	}

	flags := cmd.Flags()
	oc := &cfg.Optimizer
	if flags.Changed("optimizer") {
		oc.Kind = optimizerKind
	}
	if flags.Changed("population") {
		oc.Population = population
	}
	if flags.Changed("generations") {
		oc.Generations = generations
	}
	if flags.Changed("seed") {
		oc.Seed = seed
	}
	if flags.Changed("direction") {
		d, err := optim.ParseDirection(direction)
		if err != nil {
			return nil, err
		}
		oc.Direction = d
	}
	if flags.Changed("adaptive") {
		oc.AdaptiveMutation = adaptive
	}
	if flags.Changed("workers") {
		oc.Workers = workers
	}
	if flags.Changed("decay") {
		oc.LearningRateDecay = decay
	}

	pid := &cfg.PID
	if flags.Changed("kp") {
		pid.Kp = kp
	}
	if flags.Changed("ki") {
		pid.Ki = ki
	}
	if flags.Changed("kd") {
		pid.Kd = kd
	}
	if flags.Changed("kn") {
		pid.Kn = kn
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func runTune(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}

	reg := prometheus.NewRegistry()
	total := cfg.Optimizer.Generations
	done := 0
	runner := experiment.NewRunner(cfg,
		experiment.WithLogger(newLogger()),
		experiment.WithRecorder(metrics.NewRecorder(reg)),
		experiment.OnGeneration(func(g optim.Generation) {
			done++
			fmt.Fprintf(os.Stderr, "\r%s %d/%d best %.6g", viz.ProgressBar(done, total, 30), done, total, g.AllTimeBest)
		}))

	report, err := runner.Run(cmd.Context())
	fmt.Fprintln(os.Stderr)
	if report == nil {
		return err
	}
	if report.Canceled {
		fmt.Println(viz.Warning.Render("run canceled, showing best so far"))
	}

	fmt.Println(viz.Header.Render(fmt.Sprintf("pidtune %s run %s", report.Optimizer, report.RunID)))
	if err := printParams(report.Params, report.Best); err != nil {
		return err
	}
	fmt.Println(viz.Metric("best score", fmt.Sprintf("%.6g", report.BestScore)))
	fmt.Println(viz.Metric("duration", report.Duration.Round(time.Millisecond).String()))

	if plot && report.History.Len() > 0 {
		allTime := report.History.Series(func(g optim.Generation) float64 { return g.AllTimeBest })
		fmt.Println(viz.Sparkline(allTime, 60))
		fmt.Println(viz.Plot(allTime, "all-time best score per generation", 0, 0))
	}

	if len(report.Best) > 0 {
		problem, perr := experiment.NewProblem(cfg, nil)
		if perr != nil {
			return perr
		}
		res, serr := problem.StepResponse(cmd.Context(), report.Best)
		if res != nil {
			if plot {
				fmt.Println(viz.PlotMany([][]float64{res.Reference, res.Output}, "reference (blue) and output (red)", 0, 0))
			}
			printMetrics(res.Metrics)
		}
		if serr != nil {
			fmt.Println(viz.Warning.Render(serr.Error()))
		}
	}

	if showMetrics {
		if err := printFamilies(reg); err != nil {
			return err
		}
	}
	return err
}

func runCompare(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	logger := newLogger()
	reg := prometheus.NewRegistry()
	rec := metrics.NewRecorder(reg)

	kinds := []string{"genetic", "differential"}
	reports := make([]*experiment.Report, len(kinds))
	g, ctx := errgroup.WithContext(cmd.Context())
	for i, kind := range kinds {
		g.Go(func() error {
			c := cfg.Clone()
			c.Optimizer.Kind = kind
			r := experiment.NewRunner(c, experiment.WithLogger(logger), experiment.WithRecorder(rec))
			report, err := r.Run(ctx)
			reports[i] = report
			return err
		})
	}
	if err := g.Wait(); err != nil {
		return err
	}

	problem, err := experiment.NewProblem(cfg, logger)
	if err != nil {
		return err
	}
	loops := make([]*control.Loop, len(reports))
	for i, r := range reports {
		loops[i] = problem.Loop(r.Best)
	}
	ensemble := sim.NewEnsemble(func() []sim.Metric {
		return append(problem.Metrics(), metrics.NewSaturation(cfg.PID.OutputLower, cfg.PID.OutputUpper))
	}, len(loops))
	results, err := ensemble.Run(cmd.Context(), loops, problem.SimConfig())
	if err != nil {
		return err
	}

	fmt.Println(viz.Header.Render("optimizer comparison"))
	headers := append([]string{"OPTIMIZER", "SCORE"}, problem.Layout().Names()...)
	headers = append(headers, "ERROR", "EFFORT", "OVERSHOOT", "SATURATION", "DURATION")
	rows := make([][]string, len(reports))
	for i, r := range reports {
		row := []string{r.Optimizer, fmt.Sprintf("%.6g", r.BestScore)}
		for _, v := range r.Best {
			row = append(row, fmt.Sprintf("%.4g", v))
		}
		m := results[i].Metrics
		row = append(row,
			fmt.Sprintf("%.4g", m["error_integral"]),
			fmt.Sprintf("%.4g", m["control_effort"]),
			fmt.Sprintf("%.4g", m["overshoot"]),
			fmt.Sprintf("%.1f%%", 100*m["saturation"]),
			r.Duration.Round(time.Millisecond).String())
		rows[i] = row
	}
	if err := viz.Table(os.Stdout, headers, rows); err != nil {
		return err
	}

	if showMetrics {
		return printFamilies(reg)
	}
	return nil
}

func runStep(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	loop, err := cfg.BuildLoop()
	if err != nil {
		return err
	}

	simCfg := sim.DefaultConfig()
	simCfg.Dt = cfg.Problem.Dt
	simCfg.Duration = stepTime
	simCfg.Reference = sim.Schedule{{At: 0, Value: reference}}

	s := sim.New()
	s.AddMetric(
		metrics.NewControlEffort(cfg.Problem.ActuatorLimit),
		metrics.NewSaturation(cfg.PID.OutputLower, cfg.PID.OutputUpper),
	)
	res, err := s.Run(cmd.Context(), loop, simCfg)
	if err != nil {
		return err
	}

	info, err := analysis.ComputeStepInfo(res.Times, res.Output, reference)
	if err != nil {
		return err
	}
	fmt.Println(viz.Header.Render(fmt.Sprintf("step response Kp=%g Ki=%g Kd=%g Kn=%g", cfg.PID.Kp, cfg.PID.Ki, cfg.PID.Kd, cfg.PID.Kn)))
	rows := [][]string{
		{"peak", fmt.Sprintf("%.4g", info.Peak)},
		{"peak time", fmt.Sprintf("%.3fs", info.PeakTime)},
		{"overshoot", fmt.Sprintf("%.2f%%", info.Overshoot)},
		{"rise time", fmt.Sprintf("%.3fs", info.RiseTime)},
		{"settling time", fmt.Sprintf("%.3fs", info.SettlingTime)},
		{"steady state", fmt.Sprintf("%.4g", info.SteadyState)},
		{"steady state error", fmt.Sprintf("%.4g", info.SteadyStateError)},
		{"ringing", fmt.Sprintf("%.3g Hz", analysis.DominantFrequency(res.Error, simCfg.Dt))},
	}
	if err := viz.Table(os.Stdout, []string{"MEASURE", "VALUE"}, rows); err != nil {
		return err
	}
	printMetrics(res.Metrics)
	fmt.Println(viz.PlotMany([][]float64{res.Reference, res.Output, res.Control}, "reference, output, control", 0, 0))
	return nil
}

func runBode(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	loop, err := cfg.BuildLoop()
	if err != nil {
		return err
	}
	start, end := cfg.Problem.NyquistStart, cfg.Problem.NyquistEnd
	if freqStart > 0 {
		start = freqStart
	}
	if freqEnd > 0 {
		end = freqEnd
	}

	fr := analysis.NewFrequencyResponse(analysis.WithPointsPerDecade(cfg.Problem.PointsPerDecade))
	resp, err := fr.Response(loop.ForwardPath(), start, end)
	if err != nil {
		return err
	}

	fmt.Println(viz.Header.Render(fmt.Sprintf("open loop %g..%g Hz", start, end)))
	rows := make([][]string, len(resp.Points))
	db := make([]float64, len(resp.Points))
	for i, p := range resp.Points {
		db[i] = p.Decibels()
		rows[i] = []string{
			fmt.Sprintf("%.4g", p.Frequency),
			fmt.Sprintf("%.4g", p.Magnitude()),
			fmt.Sprintf("%.2f", db[i]),
			fmt.Sprintf("%.1f", p.Phase()*180/math.Pi),
		}
	}
	if err := viz.Table(os.Stdout, []string{"HZ", "|G|", "DB", "PHASE"}, rows); err != nil {
		return err
	}

	if resp.HasPhaseMargin() {
		fmt.Println(viz.Metric("phase margin", fmt.Sprintf("%.1f deg at %.4g Hz", resp.PhaseMargin*180/math.Pi, resp.CrossoverFrequency)))
	} else {
		fmt.Println(viz.Subtle.Render("no gain crossover in range"))
	}
	if resp.HasGainMargin() {
		fmt.Println(viz.Metric("gain margin", fmt.Sprintf("%.4g at %.4g Hz", resp.GainMargin, resp.PhaseCrossoverFrequency)))
	} else {
		fmt.Println(viz.Subtle.Render("no phase crossover in range"))
	}
	fmt.Println(viz.Plot(db, "magnitude (dB)", 0, 0))
	return nil
}

func runZieglerNichols(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	plant, err := cfg.BuildPlant()
	if err != nil {
		return err
	}
	times, values := control.RecordStep(plant, cfg.Problem.Dt, stepTime)
	model, err := control.FitTangent(times, values)
	if err != nil {
		return err
	}

	problem, err := experiment.NewProblem(cfg, newLogger())
	if err != nil {
		return err
	}

	fmt.Println(viz.Header.Render("Ziegler-Nichols (tangent method)"))
	fmt.Println(viz.Metric("Tu", fmt.Sprintf("%.4gs", model.Tu)),
		viz.Metric("Tg", fmt.Sprintf("%.4gs", model.Tg)),
		viz.Metric("Ks", fmt.Sprintf("%.4g", model.Ks)))

	rows := make([][]string, 0, 3)
	for _, rule := range []control.Rule{control.RuleP, control.RulePI, control.RulePID} {
		g := model.Gains(rule)
		loop := problem.Loop(nil)
		loop.PID().SetGains(g.Kp, g.Ki, g.Kd, cfg.PID.Kn)
		loss := "diverged"
		if ev, err := problem.Evaluate(cmd.Context(), loop.Parameters()); err == nil {
			loss = fmt.Sprintf("%.6g", ev.Loss())
		}
		rows = append(rows, []string{rule.String(), fmt.Sprintf("%.4g", g.Kp), fmt.Sprintf("%.4g", g.Ki), fmt.Sprintf("%.4g", g.Kd), loss})
	}
	return viz.Table(os.Stdout, []string{"RULE", "KP", "KI", "KD", "LOSS"}, rows)
}

func runGrid(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	if len(gridKp) != 2 || len(gridKi) != 2 {
		return fmt.Errorf("--kp-range and --ki-range take lo,hi")
	}
	problem, err := experiment.NewProblem(cfg, newLogger())
	if err != nil {
		return err
	}

	current := problem.Loop(nil).Parameters()
	layout := problem.Layout()
	ranges := make([][]float64, len(layout))
	for i, p := range layout {
		switch p {
		case control.ParamKp:
			ranges[i] = optim.Axis(gridKp[0], gridKp[1], gridPoints)
		case control.ParamKi:
			ranges[i] = optim.Axis(gridKi[0], gridKi[1], gridPoints)
		default:
			ranges[i] = []float64{current[i]}
		}
	}

	grid := optim.NewGridSearch(ranges, cfg.Optimizer.Direction)
	start := time.Now()
	best, score, err := grid.Search(cmd.Context(), problem.Fitness)
	if err != nil {
		return err
	}

	fmt.Println(viz.Header.Render(fmt.Sprintf("grid search, %d points", grid.Size())))
	if err := printParams(layout.Names(), best); err != nil {
		return err
	}
	fmt.Println(viz.Metric("best score", fmt.Sprintf("%.6g", score)))
	fmt.Println(viz.Metric("duration", time.Since(start).Round(time.Millisecond).String()))
	return nil
}

func printParams(names []string, values []float64) error {
	rows := make([][]string, 0, len(values))
	for i, v := range values {
		rows = append(rows, []string{names[i], fmt.Sprintf("%.6g", v)})
	}
	return viz.Table(os.Stdout, []string{"PARAM", "VALUE"}, rows)
}

func printMetrics(m map[string]float64) {
	names := make([]string, 0, len(m))
	for name := range m {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		fmt.Println(viz.Metric(name, fmt.Sprintf("%.6g", m[name])))
	}
}

func printFamilies(reg *prometheus.Registry) error {
	families, err := reg.Gather()
	if err != nil {
		return err
	}
	fmt.Println(viz.Header.Render("optimizer metrics"))
	return viz.MetricFamilies(os.Stdout, families)
}
