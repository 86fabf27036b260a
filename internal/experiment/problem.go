package experiment

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"math"
	"math/rand"

	"github.com/san-kum/pidtune/internal/analysis"
	"github.com/san-kum/pidtune/internal/config"
	"github.com/san-kum/pidtune/internal/control"
	"github.com/san-kum/pidtune/internal/metrics"
	"github.com/san-kum/pidtune/internal/optim"
	"github.com/san-kum/pidtune/internal/sim"
	"gonum.org/v1/gonum/floats"
)

// Score parts returned by Problem.Fitness, in order.
const (
	PartError = iota
	PartEffort
	PartOvershoot
	PartGainMargin
	PartPhaseMargin
	NumParts
)

// PartNames labels the score parts for reports.
var PartNames = [NumParts]string{"error", "pid_out_change", "overshoot", "gain_margin", "phase_margin"}

const (
	// DivergenceLoss replaces the error part of a candidate whose loop
	// blew up, so it ranks last without flattening the roulette wheel.
	DivergenceLoss = 100.0

	// Maximize scoring turns the summed loss into 500/(500*loss + 0.1).
	scoreGain   = 500.0
	scoreOffset = 0.1
)

// Evaluation is one scored candidate.
type Evaluation struct {
	Params []float64
	// Parts are the weighted losses, indexed by the Part constants.
	Parts    []float64
	Result   *sim.Result
	Response *analysis.Response
}

func (e Evaluation) Loss() float64 { return floats.Sum(e.Parts) }

// Problem is the closed-loop PID tuning task: simulate the loop on the
// configured reference and disturbance schedules and score tracking error,
// controller activity and overshoot, optionally adding stability margin
// terms from a frequency sweep of the forward path.
type Problem struct {
	cfg      *config.Config
	proto    *control.Loop
	analyzer *analysis.FrequencyResponse
	logger   *slog.Logger
}

func NewProblem(cfg *config.Config, logger *slog.Logger) (*Problem, error) {
	if cfg == nil {
		cfg = config.DefaultConfig()
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	loop, err := cfg.BuildLoop()
	if err != nil {
		return nil, err
	}
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return &Problem{
		cfg:      cfg.Clone(),
		proto:    loop,
		analyzer: analysis.NewFrequencyResponse(analysis.WithPointsPerDecade(cfg.Problem.PointsPerDecade)),
		logger:   logger,
	}, nil
}

func (p *Problem) Config() *config.Config      { return p.cfg.Clone() }
func (p *Problem) Layout() control.ParamLayout { return p.proto.Layout() }

// Loop returns a fresh closed loop with params applied.
func (p *Problem) Loop(params []float64) *control.Loop {
	loop := p.proto.Clone().(*control.Loop)
	loop.Reset()
	loop.SetParameters(params)
	return loop
}

func (p *Problem) SimConfig() sim.Config {
	return sim.Config{
		Dt:            p.cfg.Problem.Dt,
		Duration:      p.cfg.Problem.EndTime,
		Reference:     p.cfg.Problem.Reference,
		Disturbance:   p.cfg.Problem.Disturbance,
		ValidateState: true,
	}
}

// Metrics builds the per-run metric set whose values become the first
// three score parts.
func (p *Problem) Metrics() []sim.Metric {
	pc := p.cfg.Problem
	errInt := metrics.NewErrorIntegral(pc.SystemLimit)
	if pc.SkipSaturatedError {
		errInt.SkipSaturated(p.cfg.PID.OutputLower, pc.ActuatorLimit)
	}
	return []sim.Metric{
		errInt,
		metrics.NewControlEffort(pc.ActuatorLimit),
		metrics.NewOvershoot(pc.SystemLimit),
	}
}

// Evaluate simulates params and returns the weighted losses. A diverging
// loop is reported through the error and the partial Result.
func (p *Problem) Evaluate(ctx context.Context, params []float64) (Evaluation, error) {
	ev := Evaluation{
		Params: append([]float64(nil), params...),
		Parts:  make([]float64, NumParts),
	}
	loop := p.Loop(params)

	ms := p.Metrics()
	s := sim.New()
	s.AddMetric(ms...)
	res, err := s.Run(ctx, loop, p.SimConfig())
	ev.Result = res
	if err != nil {
		return ev, err
	}

	w := p.cfg.Problem.Weights
	ev.Parts[PartError] = ms[PartError].Value() * w.Error
	ev.Parts[PartEffort] = ms[PartEffort].Value() * w.Effort
	ev.Parts[PartOvershoot] = ms[PartOvershoot].Value() * w.Overshoot

	if w.GainMargin != 0 || w.PhaseMargin != 0 {
		resp, err := p.analyzer.Response(loop.ForwardPath(), p.cfg.Problem.NyquistStart, p.cfg.Problem.NyquistEnd)
		if err != nil {
			return ev, fmt.Errorf("margins: %w", err)
		}
		ev.Response = &resp
		if w.GainMargin != 0 {
			ev.Parts[PartGainMargin] = math.Abs(p.cfg.Problem.TargetGainMargin-resp.GainMargin) * w.GainMargin
		}
		if w.PhaseMargin != 0 {
			ev.Parts[PartPhaseMargin] = math.Abs(p.cfg.Problem.TargetPhaseMargin-resp.PhaseMargin) * w.PhaseMargin
		}
	}
	return ev, nil
}

// Fitness is the optimizer callback. It is safe for concurrent use; every
// call simulates its own copy of the loop.
func (p *Problem) Fitness(params []float64, agent int) []float64 {
	ev, err := p.Evaluate(context.Background(), params)
	if err != nil {
		p.logger.Debug("candidate failed",
			slog.Int("agent", agent),
			slog.Any("params", params),
			slog.String("error", err.Error()))
		ev.Parts = make([]float64, NumParts)
		ev.Parts[PartError] = DivergenceLoss
	}
	return p.Score(ev.Parts)
}

// Score maps losses onto the configured direction. Minimizing keeps the
// parts as they are; maximizing folds them into one bounded score in the
// first slot.
func (p *Problem) Score(parts []float64) []float64 {
	if p.cfg.Optimizer.Direction == optim.Minimize {
		return append([]float64(nil), parts...)
	}
	out := make([]float64, len(parts))
	out[PartError] = scoreGain / (scoreGain*floats.Sum(parts) + scoreOffset)
	return out
}

// Seed draws n candidates around the configured PID. Gains and offsets are
// spread uniformly by the area range; the integral limit is scaled by a
// factor in [0, 2*area).
func (p *Problem) Seed(rng *rand.Rand, n int) [][]float64 {
	pid := p.cfg.PID
	area := p.cfg.Optimizer.AreaRange
	spread := func(v float64) float64 { return v + area*(2*rng.Float64()-1) }

	layout := p.Layout()
	population := make([][]float64, n)
	for i := range population {
		params := make([]float64, len(layout))
		for j, param := range layout {
			switch param {
			case control.ParamKp:
				params[j] = spread(pid.Kp)
			case control.ParamKi:
				params[j] = spread(pid.Ki)
			case control.ParamKd:
				params[j] = spread(pid.Kd)
			case control.ParamKn:
				params[j] = spread(pid.Kn)
			case control.ParamIntegralLimit:
				params[j] = pid.IntegralLimit * 2 * area * rng.Float64()
			case control.ParamBackCalculation:
				params[j] = spread(pid.BackCalculation)
			}
		}
		population[i] = params
	}
	return population
}

// StepResponse simulates params on the problem's schedules with the score
// metrics attached, skipping the margin sweep.
func (p *Problem) StepResponse(ctx context.Context, params []float64) (*sim.Result, error) {
	s := sim.New()
	s.AddMetric(p.Metrics()...)
	return s.Run(ctx, p.Loop(params), p.SimConfig())
}
