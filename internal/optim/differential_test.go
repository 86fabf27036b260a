package optim_test

import (
	"math"
	"math/rand"
	"sync/atomic"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/san-kum/pidtune/internal/optim"
	"github.com/san-kum/pidtune/internal/optim/de"
)

var _ = Describe("Differential", func() {
	target := []float64{1, -2, 0.5, 3}

	DescribeTable("converges on a separable target",
		func(dir optim.Direction, negate bool) {
			d := optim.NewDifferential(squaredDistance(target, negate),
				optim.WithSeed(21), optim.WithDirection(dir))
			DeferCleanup(d.Close)
			Expect(d.SetInitialParameters(seedAround(rand.New(rand.NewSource(8)), target, 2, 20))).To(Succeed())

			for i := 0; i < 150; i++ {
				d.Test()
				d.Iterate()
			}

			best := d.AllTimeBestParameters()
			for j, t := range target {
				Expect(best[j]).To(BeNumerically("~", t, 1e-3), "gene %d", j)
			}
			Expect(d.BestScore()).To(Equal(d.AllTimeBestScore()))
		},
		Entry("minimizing", optim.Minimize, false),
		Entry("maximizing", optim.Maximize, true),
	)

	It("scores a fresh population on Test and only then", func() {
		var calls atomic.Int32
		fit := squaredDistance(target, false)
		d := optim.NewDifferential(func(p []float64, i int) []float64 {
			calls.Add(1)
			return fit(p, i)
		}, optim.WithDirection(optim.Minimize), optim.WithSeed(1))
		DeferCleanup(d.Close)

		Expect(math.IsInf(d.BestScore(), 1)).To(BeTrue())
		Expect(d.SetInitialParameters(seedAround(rand.New(rand.NewSource(2)), target, 1, 6))).To(Succeed())

		d.Test()
		Expect(calls.Load()).To(BeEquivalentTo(6))
		Expect(math.IsInf(d.BestScore(), 0)).To(BeFalse())
		for _, s := range d.Scores() {
			Expect(s).To(BeNumerically(">=", d.BestScore()))
		}

		d.Test()
		Expect(calls.Load()).To(BeEquivalentTo(6))
		d.Iterate()
		Expect(calls.Load()).To(BeEquivalentTo(12))
	})

	It("needs four agents", func() {
		d := optim.NewDifferential(squaredDistance(target, false))
		DeferCleanup(d.Close)
		err := d.SetInitialParameters([][]float64{{0, 0, 0, 0}, {1, 1, 1, 1}, {2, 2, 2, 2}})
		Expect(err).To(MatchError(de.ErrPopulationTooSmall))
		Expect(d.SetInitialParameters(nil)).To(MatchError(optim.ErrEmptyPopulation))
	})

	It("normalizes score parts over the generation", func() {
		d := optim.NewDifferential(func([]float64, int) []float64 { return []float64{2, 6} })
		DeferCleanup(d.Close)
		Expect(d.SetInitialParameters([][]float64{{0}, {1}, {2}, {3}})).To(Succeed())

		d.Test()
		Expect(d.ScoreParts()).To(HaveLen(2))
		Expect(d.ScoreParts()[0]).To(BeNumerically("~", 0.25, 1e-12))

		d.Iterate()
		Expect(d.ScoreParts()[1]).To(BeNumerically("~", 0.75, 1e-12))
	})

	It("uses the mutation amount as its differential weight", func() {
		d := optim.NewDifferential(nil)
		DeferCleanup(d.Close)
		Expect(d.MutationAmount()).To(Equal(0.8))
		d.SetMutationAmount(0.5)
		Expect(d.MutationAmount()).To(Equal(0.5))

		e := optim.NewDifferential(nil, optim.WithMutationAmount(0.3))
		DeferCleanup(e.Close)
		Expect(e.MutationAmount()).To(Equal(0.3))
	})

	It("clears the all-time best to the worst score", func() {
		d := optim.NewDifferential(squaredDistance(target, true), optim.WithSeed(4))
		DeferCleanup(d.Close)
		Expect(d.SetInitialParameters(seedAround(rand.New(rand.NewSource(4)), target, 1, 8))).To(Succeed())
		d.Test()
		Expect(math.IsInf(d.AllTimeBestScore(), 0)).To(BeFalse())

		d.ClearAllTimeBest()
		Expect(math.IsInf(d.AllTimeBestScore(), -1)).To(BeTrue())
		d.Iterate()
		Expect(d.AllTimeBestScore()).To(Equal(d.BestScore()))
	})
})
