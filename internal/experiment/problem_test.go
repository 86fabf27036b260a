package experiment

import (
	"context"
	"math"
	"math/rand"
	"testing"

	"github.com/san-kum/pidtune/internal/config"
	"github.com/san-kum/pidtune/internal/control"
	"github.com/san-kum/pidtune/internal/dynamo"
	"github.com/san-kum/pidtune/internal/models"
	"github.com/san-kum/pidtune/internal/optim"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewProblemDefaults(t *testing.T) {
	p, err := NewProblem(nil, nil)
	require.NoError(t, err)

	assert.Equal(t, []string{"Kp", "Ki", "Kd", "Kn"}, p.Layout().Names())
	sc := p.SimConfig()
	assert.Equal(t, 2000, sc.Steps())
	assert.True(t, sc.ValidateState)
	assert.Len(t, p.Metrics(), 3)
}

func TestNewProblemRejectsInvalidConfig(t *testing.T) {
	cfg := config.DefaultConfig()
	cfg.Problem.Dt = 0
	_, err := NewProblem(cfg, nil)
	assert.ErrorIs(t, err, config.ErrInvalid)
}

func TestFitnessParts(t *testing.T) {
	p, err := NewProblem(config.DefaultConfig(), nil)
	require.NoError(t, err)

	parts := p.Fitness([]float64{1, 1, 1, 1}, 0)
	require.Len(t, parts, NumParts)
	assert.Greater(t, parts[PartError], 0.0)
	assert.GreaterOrEqual(t, parts[PartEffort], 0.0)
	assert.GreaterOrEqual(t, parts[PartOvershoot], 0.0)
	assert.Zero(t, parts[PartGainMargin], "margin weights default to zero")
	assert.Zero(t, parts[PartPhaseMargin])

	again := p.Fitness([]float64{1, 1, 1, 1}, 7)
	assert.Equal(t, parts, again, "evaluations must not share loop state")
}

func TestEvaluateMatchesMetrics(t *testing.T) {
	cfg := config.DefaultConfig()
	p, err := NewProblem(cfg, nil)
	require.NoError(t, err)

	ev, err := p.Evaluate(context.Background(), []float64{5, 2, 0.1, 10})
	require.NoError(t, err)
	require.NotNil(t, ev.Result)
	assert.Nil(t, ev.Response)

	w := cfg.Problem.Weights
	assert.InDelta(t, ev.Result.Metrics["error_integral"]*w.Error, ev.Parts[PartError], 1e-12)
	assert.InDelta(t, ev.Result.Metrics["control_effort"]*w.Effort, ev.Parts[PartEffort], 1e-12)
	assert.InDelta(t, ev.Result.Metrics["overshoot"]*w.Overshoot, ev.Parts[PartOvershoot], 1e-12)
	assert.InDelta(t, ev.Parts[PartError]+ev.Parts[PartEffort]+ev.Parts[PartOvershoot], ev.Loss(), 1e-12)
}

func TestBetterGainsScoreLower(t *testing.T) {
	p, err := NewProblem(config.DefaultConfig(), nil)
	require.NoError(t, err)

	ctx := context.Background()
	sluggish, err := p.Evaluate(ctx, []float64{0.01, 0, 0, 1})
	require.NoError(t, err)
	tuned, err := p.Evaluate(ctx, []float64{5, 10, 0, 1})
	require.NoError(t, err)
	assert.Less(t, tuned.Parts[PartError], sluggish.Parts[PartError])
}

func TestEvaluateMargins(t *testing.T) {
	cfg := config.DefaultConfig()
	cfg.Problem.Weights.GainMargin = 2
	cfg.Problem.Weights.PhaseMargin = 3
	cfg.Problem.PointsPerDecade = 5
	p, err := NewProblem(cfg, nil)
	require.NoError(t, err)

	ev, err := p.Evaluate(context.Background(), []float64{2, 1, 0, 1})
	require.NoError(t, err)
	require.NotNil(t, ev.Response)
	assert.Len(t, ev.Response.Points, 10)
	assert.InDelta(t, math.Abs(cfg.Problem.TargetGainMargin-ev.Response.GainMargin)*2, ev.Parts[PartGainMargin], 1e-12)
	assert.InDelta(t, math.Abs(cfg.Problem.TargetPhaseMargin-ev.Response.PhaseMargin)*3, ev.Parts[PartPhaseMargin], 1e-12)
}

func TestScoreDirections(t *testing.T) {
	cfg := config.DefaultConfig()
	p, err := NewProblem(cfg, nil)
	require.NoError(t, err)
	parts := []float64{0.5, 0.25, 0.25, 0, 0}
	assert.Equal(t, parts, p.Score(parts))

	cfg.Optimizer.Direction = optim.Maximize
	p, err = NewProblem(cfg, nil)
	require.NoError(t, err)
	scores := p.Score(parts)
	require.Len(t, scores, NumParts)
	assert.InDelta(t, 500/(500*1.0+0.1), scores[PartError], 1e-12)
	for _, s := range scores[1:] {
		assert.Zero(t, s)
	}
}

func unstableConfig() *config.Config {
	cfg := config.DefaultConfig()
	cfg.Plant.Kind = config.PlantStateSpace
	cfg.Plant.Integration = dynamo.ForwardEuler
	cfg.Plant.StateSpace = &models.SSData{Inputs: 1, Outputs: 1, States: 1, Values: []float64{100, 1, 1, 0}}
	return cfg
}

func TestDivergingCandidate(t *testing.T) {
	p, err := NewProblem(unstableConfig(), nil)
	require.NoError(t, err)

	ev, err := p.Evaluate(context.Background(), []float64{1, 1, 0, 1})
	require.ErrorIs(t, err, dynamo.ErrInvalidState)
	var simErr dynamo.SimError
	require.ErrorAs(t, err, &simErr)
	require.NotNil(t, ev.Result)
	assert.Less(t, ev.Result.StepsTaken, 2000)

	parts := p.Fitness([]float64{1, 1, 0, 1}, 3)
	assert.Equal(t, DivergenceLoss, parts[PartError])
}

func TestSeed(t *testing.T) {
	cfg := config.DefaultConfig()
	cfg.Optimizer.Params = control.ParamLayout{
		control.ParamKp, control.ParamKi, control.ParamKd,
		control.ParamKn, control.ParamIntegralLimit, control.ParamBackCalculation,
	}
	p, err := NewProblem(cfg, nil)
	require.NoError(t, err)

	pop := p.Seed(rand.New(rand.NewSource(4)), 50)
	require.Len(t, pop, 50)
	area := cfg.Optimizer.AreaRange
	pid := cfg.PID
	for _, params := range pop {
		require.Len(t, params, 6)
		assert.InDelta(t, pid.Kp, params[0], area)
		assert.InDelta(t, pid.Ki, params[1], area)
		assert.InDelta(t, pid.Kd, params[2], area)
		assert.InDelta(t, pid.Kn, params[3], area)
		assert.GreaterOrEqual(t, params[4], 0.0)
		assert.Less(t, params[4], pid.IntegralLimit*2*area)
		assert.InDelta(t, pid.BackCalculation, params[5], area)
	}

	again := p.Seed(rand.New(rand.NewSource(4)), 50)
	assert.Equal(t, pop, again)
}

func TestStepResponse(t *testing.T) {
	cfg := config.DefaultConfig()
	cfg.Problem.Weights.PhaseMargin = 1
	p, err := NewProblem(cfg, nil)
	require.NoError(t, err)

	res, err := p.StepResponse(context.Background(), []float64{5, 10, 0, 1})
	require.NoError(t, err)
	assert.Equal(t, 2000, res.StepsTaken)
	assert.Len(t, res.Output, 2000)
	assert.Contains(t, res.Metrics, "overshoot")
	assert.InDelta(t, 7, res.Output[len(res.Output)-1], 0.5)
}
