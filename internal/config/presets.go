package config

import "sort"

// Presets are named starting points for a tuning run.
var Presets = map[string]func() *Config{
	"default": DefaultConfig,
	"fast": func() *Config {
		cfg := DefaultConfig()
		cfg.Optimizer.Population = 16
		cfg.Optimizer.Generations = 40
		cfg.Problem.EndTime = 10
		return cfg
	},
	"margins": func() *Config {
		cfg := DefaultConfig()
		cfg.Problem.Weights.GainMargin = 1
		cfg.Problem.Weights.PhaseMargin = 1
		cfg.Problem.PointsPerDecade = 5
		return cfg
	},
	"differential": func() *Config {
		cfg := DefaultConfig()
		cfg.Optimizer.Kind = "differential"
		cfg.Optimizer.MutationAmount = 0.8
		return cfg
	},
}

// GetPreset returns a fresh copy of the named preset, or nil.
func GetPreset(name string) *Config {
	build, ok := Presets[name]
	if !ok {
		return nil
	}
	return build()
}

func ListPresets() []string {
	names := make([]string, 0, len(Presets))
	for name := range Presets {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
