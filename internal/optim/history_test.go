package optim_test

import (
	"math"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/san-kum/pidtune/internal/optim"
)

type scoredOptimizer struct {
	optim.Optimizer
	scores        []float64
	best, allTime float64
}

func (s scoredOptimizer) Scores() []float64         { return s.scores }
func (s scoredOptimizer) BestScore() float64        { return s.best }
func (s scoredOptimizer) AllTimeBestScore() float64 { return s.allTime }

var _ = Describe("History", func() {
	It("summarizes each generation", func() {
		var h optim.History
		_, ok := h.Last()
		Expect(ok).To(BeFalse())

		g := h.Record(scoredOptimizer{scores: []float64{1, 2, 6}, best: 6, allTime: 6})
		Expect(g.Index).To(Equal(0))
		Expect(g.Min).To(Equal(1.0))
		Expect(g.Max).To(Equal(6.0))
		Expect(g.Mean).To(BeNumerically("~", 3, 1e-12))

		h.Record(scoredOptimizer{scores: []float64{math.Inf(-1), 4}, best: 4, allTime: 6})
		last, ok := h.Last()
		Expect(ok).To(BeTrue())
		Expect(last.Index).To(Equal(1))
		Expect(last.Min).To(Equal(4.0))
		Expect(h.Len()).To(Equal(2))
		Expect(h.Series(func(g optim.Generation) float64 { return g.AllTimeBest })).To(Equal([]float64{6, 6}))
	})

	It("marks generations without finite scores", func() {
		var h optim.History
		g := h.Record(scoredOptimizer{})
		Expect(math.IsNaN(g.Mean)).To(BeTrue())
	})
})
