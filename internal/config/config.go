package config

import (
	"errors"
	"fmt"
	"math"
	"os"

	"github.com/go-playground/validator/v10"
	"github.com/san-kum/pidtune/internal/control"
	"github.com/san-kum/pidtune/internal/dynamo"
	"github.com/san-kum/pidtune/internal/models"
	"github.com/san-kum/pidtune/internal/optim"
	"github.com/san-kum/pidtune/internal/sim"
	"gopkg.in/yaml.v3"
)

const (
	DefaultPopulation  = 30
	DefaultGenerations = 200
	DefaultAreaRange   = 10.0
	DefaultDecay       = 0.999
	DefaultEndTime     = 20.0
	DefaultDt          = 0.01
	DefaultLimit       = 10.0
)

// Plant kinds.
const (
	PlantDCMotor    = "dc_motor"
	PlantStateSpace = "state_space"
)

var ErrInvalid = errors.New("config: invalid")

var validate = validator.New()

type Config struct {
	Optimizer OptimizerConfig   `yaml:"optimizer"`
	PID       control.PIDConfig `yaml:"pid"`
	Plant     PlantConfig       `yaml:"plant"`
	Problem   ProblemConfig     `yaml:"problem"`
}

type OptimizerConfig struct {
	Kind        string          `yaml:"kind" validate:"oneof=genetic differential"`
	Population  int             `yaml:"population" validate:"gte=2"`
	Generations int             `yaml:"generations" validate:"gte=1"`
	Seed        int64           `yaml:"seed"`
	Direction   optim.Direction `yaml:"direction"`
	// MutationAmount is the starting step of Genetic or the weight F of
	// Differential.
	MutationAmount      float64 `yaml:"mutation_amount" validate:"gt=0"`
	MutationProbability float64 `yaml:"mutation_probability" validate:"gte=0,lte=1"`
	// LearningRateDecay scales the genetic mutation amount every generation.
	LearningRateDecay float64 `yaml:"learning_rate_decay" validate:"gt=0,lte=1"`
	AdaptiveMutation  bool    `yaml:"adaptive_mutation"`
	CrossoverRate     float64 `yaml:"crossover_rate" validate:"gte=0,lte=1"`
	Workers           int     `yaml:"workers" validate:"gte=0,lte=64"`
	// AreaRange is the half width of the initial population around the
	// default gains.
	AreaRange float64             `yaml:"area_range" validate:"gte=0"`
	Params    control.ParamLayout `yaml:"params" validate:"min=1"`
}

type PlantConfig struct {
	Kind        string             `yaml:"kind" validate:"oneof=dc_motor state_space"`
	Integration dynamo.Integration `yaml:"integration"`
	Motor       models.MotorParams `yaml:"motor"`
	StateSpace  *models.SSData     `yaml:"state_space,omitempty" validate:"required_if=Kind state_space"`
}

// Weights scale each part of the tuning loss. A zero margin weight skips
// the frequency sweep for that margin.
type Weights struct {
	Error       float64 `yaml:"error" validate:"gte=0"`
	Effort      float64 `yaml:"effort" validate:"gte=0"`
	Overshoot   float64 `yaml:"overshoot" validate:"gte=0"`
	GainMargin  float64 `yaml:"gain_margin" validate:"gte=0"`
	PhaseMargin float64 `yaml:"phase_margin" validate:"gte=0"`
}

type ProblemConfig struct {
	EndTime       float64 `yaml:"end_time" validate:"gt=0"`
	Dt            float64 `yaml:"dt" validate:"gt=0,ltefield=EndTime"`
	ActuatorLimit float64 `yaml:"actuator_limit" validate:"gt=0"`
	SystemLimit   float64 `yaml:"system_limit" validate:"gt=0"`
	// SkipSaturatedError leaves saturated samples out of the error part.
	SkipSaturatedError bool         `yaml:"skip_saturated_error"`
	Weights            Weights      `yaml:"weights"`
	TargetGainMargin   float64      `yaml:"target_gain_margin" validate:"gte=0"`
	TargetPhaseMargin  float64      `yaml:"target_phase_margin"`
	NyquistStart       float64      `yaml:"nyquist_start" validate:"gt=0"`
	NyquistEnd         float64      `yaml:"nyquist_end" validate:"gtfield=NyquistStart"`
	PointsPerDecade    int          `yaml:"points_per_decade" validate:"gte=1"`
	Reference          sim.Schedule `yaml:"reference" validate:"min=1,dive"`
	Disturbance        sim.Schedule `yaml:"disturbance" validate:"dive"`
}

// DefaultReference is the step sequence the tuner trains on.
func DefaultReference() sim.Schedule {
	return sim.Schedule{
		{At: 0, Value: 0}, {At: 0.5, Value: 1}, {At: 1, Value: 0}, {At: 1.5, Value: 5},
		{At: 2.5, Value: 0}, {At: 3.5, Value: 8}, {At: 4.5, Value: 0}, {At: 5.5, Value: 9},
		{At: 6.25, Value: 0}, {At: 6.5, Value: 2}, {At: 7, Value: 0}, {At: 7.5, Value: 2},
		{At: 8, Value: 0}, {At: 8.5, Value: 2}, {At: 9, Value: 0}, {At: 10, Value: 5},
		{At: 15, Value: 7}, {At: 20.5, Value: 7},
	}
}

// DefaultDisturbance is the load sequence applied during training.
func DefaultDisturbance() sim.Schedule {
	return sim.Schedule{
		{At: 0, Value: 0}, {At: 11, Value: 1}, {At: 12, Value: 2}, {At: 13, Value: 0},
		{At: 14, Value: 2}, {At: 14.5, Value: 0}, {At: 15, Value: 2}, {At: 15.5, Value: 0},
		{At: 16, Value: 2}, {At: 16.5, Value: 0}, {At: 17, Value: 2}, {At: 17.5, Value: 0},
		{At: 18, Value: 2}, {At: 18.5, Value: 0}, {At: 19, Value: 2}, {At: 19.5, Value: 0},
	}
}

func DefaultPID() control.PIDConfig {
	cfg := control.DefaultPIDConfig()
	cfg.Kp, cfg.Ki, cfg.Kd, cfg.Kn = 1, 1, 1, 1
	cfg.IntegralLimit = 10
	cfg.BackCalculation = 0.1
	cfg.OutputLower, cfg.OutputUpper = 0, DefaultLimit
	cfg.AntiWindup = control.Clamping
	cfg.Derivative = control.Filtered
	cfg.Integration = dynamo.ForwardEuler
	return cfg
}

func DefaultConfig() *Config {
	return &Config{
		Optimizer: OptimizerConfig{
			Kind:                "genetic",
			Population:          DefaultPopulation,
			Generations:         DefaultGenerations,
			Seed:                1,
			Direction:           optim.Minimize,
			MutationAmount:      1,
			MutationProbability: 0.05,
			LearningRateDecay:   DefaultDecay,
			CrossoverRate:       0.9,
			Workers:             optim.MaxWorkers,
			AreaRange:           DefaultAreaRange,
			Params:              control.DefaultLayout(),
		},
		PID: DefaultPID(),
		Plant: PlantConfig{
			Kind:        PlantDCMotor,
			Integration: dynamo.Bilinear,
			Motor:       models.DefaultMotorParams(),
		},
		Problem: ProblemConfig{
			EndTime:            DefaultEndTime,
			Dt:                 DefaultDt,
			ActuatorLimit:      DefaultLimit,
			SystemLimit:        DefaultLimit,
			SkipSaturatedError: true,
			Weights: Weights{
				Error:     3.8,
				Effort:    0.038,
				Overshoot: 111,
			},
			TargetGainMargin:  2,
			TargetPhaseMargin: math.Pi / 2,
			NyquistStart:      1,
			NyquistEnd:        100,
			PointsPerDecade:   10,
			Reference:         DefaultReference(),
			Disturbance:       DefaultDisturbance(),
		},
	}
}

// Load reads a YAML file over the defaults and validates the result.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	cfg := DefaultConfig()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("config %s: %w", path, err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config %s: %w", path, err)
	}
	return cfg, nil
}

func Save(path string, cfg *Config) error {
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0644)
}

// Validate checks field ranges and the cross-field rules the tags cannot
// express.
func (c *Config) Validate() error {
	if err := validate.Struct(c); err != nil {
		return fmt.Errorf("%w: %w", ErrInvalid, err)
	}
	if err := c.Problem.Reference.Validate(); err != nil {
		return fmt.Errorf("%w: reference: %w", ErrInvalid, err)
	}
	if err := c.Problem.Disturbance.Validate(); err != nil {
		return fmt.Errorf("%w: disturbance: %w", ErrInvalid, err)
	}
	if c.Plant.Kind == PlantStateSpace {
		if _, _, _, _, err := c.Plant.StateSpace.Matrices(); err != nil {
			return fmt.Errorf("%w: plant: %w", ErrInvalid, err)
		}
	}
	if c.Optimizer.Kind == "differential" && c.Optimizer.Population < 4 {
		return fmt.Errorf("%w: differential evolution needs at least 4 agents", ErrInvalid)
	}
	return nil
}

// BuildPlant constructs the configured plant.
func (c *Config) BuildPlant() (dynamo.System, error) {
	if c.Plant.Kind == PlantStateSpace {
		if c.Plant.StateSpace == nil {
			return nil, fmt.Errorf("%w: state_space plant without data", ErrInvalid)
		}
		ss, err := models.NewStateSpaceFromData(*c.Plant.StateSpace, c.Plant.Integration)
		if err != nil {
			return nil, err
		}
		return ss, nil
	}
	motor, err := models.NewDCMotor(c.Plant.Motor, c.Plant.Integration)
	if err != nil {
		return nil, err
	}
	return motor, nil
}

// BuildLoop wires a fresh PID around a fresh plant.
func (c *Config) BuildLoop() (*control.Loop, error) {
	pid, err := control.NewPID(c.PID)
	if err != nil {
		return nil, err
	}
	plant, err := c.BuildPlant()
	if err != nil {
		return nil, err
	}
	return control.NewLoop(pid, plant, c.Optimizer.Params)
}

// Clone deep-copies the config so presets can be modified safely.
func (c *Config) Clone() *Config {
	out := *c
	out.Optimizer.Params = append(control.ParamLayout(nil), c.Optimizer.Params...)
	out.Problem.Reference = append(sim.Schedule(nil), c.Problem.Reference...)
	out.Problem.Disturbance = append(sim.Schedule(nil), c.Problem.Disturbance...)
	if c.Plant.StateSpace != nil {
		ss := *c.Plant.StateSpace
		ss.Values = append([]float64(nil), ss.Values...)
		out.Plant.StateSpace = &ss
	}
	return &out
}
