package optim

import (
	"math"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"
)

// Generation summarizes the scores of one evaluated population.
type Generation struct {
	Index       int     `json:"index" yaml:"index"`
	Min         float64 `json:"min" yaml:"min"`
	Mean        float64 `json:"mean" yaml:"mean"`
	Max         float64 `json:"max" yaml:"max"`
	Best        float64 `json:"best" yaml:"best"`
	AllTimeBest float64 `json:"all_time_best" yaml:"all_time_best"`
}

// History is the per-generation score record of a run.
type History struct {
	Generations []Generation `json:"generations" yaml:"generations"`
}

// Record appends the current state of o. Non-finite scores are left out of
// the min, mean and max.
func (h *History) Record(o Optimizer) Generation {
	g := Generation{
		Index:       len(h.Generations),
		Best:        o.BestScore(),
		AllTimeBest: o.AllTimeBestScore(),
	}
	finite := make([]float64, 0, len(o.Scores()))
	for _, s := range o.Scores() {
		if !math.IsInf(s, 0) && !math.IsNaN(s) {
			finite = append(finite, s)
		}
	}
	if len(finite) > 0 {
		g.Min = floats.Min(finite)
		g.Max = floats.Max(finite)
		g.Mean = stat.Mean(finite, nil)
	} else {
		g.Min, g.Mean, g.Max = math.NaN(), math.NaN(), math.NaN()
	}
	h.Generations = append(h.Generations, g)
	return g
}

func (h *History) Len() int { return len(h.Generations) }

// Series returns one field across generations, for plotting.
func (h *History) Series(field func(Generation) float64) []float64 {
	out := make([]float64, len(h.Generations))
	for i, g := range h.Generations {
		out[i] = field(g)
	}
	return out
}

func (h *History) Last() (Generation, bool) {
	if len(h.Generations) == 0 {
		return Generation{}, false
	}
	return h.Generations[len(h.Generations)-1], true
}
