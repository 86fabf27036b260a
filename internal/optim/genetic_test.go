package optim_test

import (
	"math"
	"math/rand"
	"sync"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/san-kum/pidtune/internal/optim"
)

type countingRecorder struct {
	mu          sync.Mutex
	evaluations int
	generations int
	busyCalls   []bool
}

func (r *countingRecorder) EvaluationDone(string, time.Duration) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.evaluations++
}

func (r *countingRecorder) GenerationDone(string, float64, float64) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.generations++
}

func (r *countingRecorder) SetBusy(_ string, busy bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.busyCalls = append(r.busyCalls, busy)
}

var _ = Describe("Genetic", func() {
	target := []float64{1, -2, 0.5, 3}

	run := func(o optim.Optimizer, generations int) {
		for i := 0; i < generations; i++ {
			o.Test()
			o.Iterate()
		}
		o.Test()
	}

	DescribeTable("converges on a separable target",
		func(dir optim.Direction, negate bool) {
			g := optim.NewGenetic(squaredDistance(target, negate),
				optim.WithSeed(11), optim.WithDirection(dir), optim.WithMaxWorkers(4))
			DeferCleanup(g.Close)

			pop := seedAround(rand.New(rand.NewSource(3)), target, 0.5, 30)
			Expect(g.SetInitialParameters(pop)).To(Succeed())
			run(g, 200)

			best := g.AllTimeBestParameters()
			Expect(best).To(HaveLen(len(target)))
			for j, t := range target {
				Expect(best[j]).To(BeNumerically("~", t, 1e-2), "gene %d", j)
			}
		},
		Entry("maximizing a negated loss", optim.Maximize, true),
		Entry("minimizing a loss", optim.Minimize, false),
	)

	DescribeTable("never loses the all-time best across generations",
		func(dir optim.Direction, negate bool) {
			g := optim.NewGenetic(squaredDistance(target, negate),
				optim.WithSeed(17), optim.WithDirection(dir), optim.WithMaxWorkers(3),
				optim.WithMutationProbability(0.9), optim.WithMutationAmount(2))
			DeferCleanup(g.Close)
			Expect(g.SetInitialParameters(seedAround(rand.New(rand.NewSource(21)), target, 3, 9))).To(Succeed())

			g.Test()
			prev := g.AllTimeBestScore()
			for gen := 0; gen < 300; gen++ {
				g.Iterate()
				g.Test()
				cur := g.AllTimeBestScore()
				Expect(dir.Better(prev, cur)).To(BeFalse(), "generation %d: %v regressed to %v", gen, prev, cur)
				Expect(g.Population()).To(HaveLen(9), "generation %d", gen)
				prev = cur
			}
		},
		Entry("maximizing", optim.Maximize, true),
		Entry("minimizing", optim.Minimize, false),
	)

	It("improves with self-adaptive mutation", func() {
		g := optim.NewGenetic(squaredDistance(target, false),
			optim.WithSeed(5), optim.WithDirection(optim.Minimize), optim.WithAdaptiveMutation(true))
		DeferCleanup(g.Close)
		Expect(g.SetInitialParameters(seedAround(rand.New(rand.NewSource(9)), target, 0.5, 30))).To(Succeed())

		g.Test()
		first := g.AllTimeBestScore()
		run(g, 100)
		Expect(g.AllTimeBestScore()).To(BeNumerically("<", first))

		for _, a := range g.Population() {
			Expect(a.MutationFactors).To(HaveLen(len(target)))
			for _, f := range a.MutationFactors {
				Expect(f).To(BeNumerically(">", 0))
			}
		}
	})

	It("rejects malformed populations", func() {
		g := optim.NewGenetic(squaredDistance(target, false))
		DeferCleanup(g.Close)

		Expect(g.SetInitialParameters(nil)).To(MatchError(optim.ErrEmptyPopulation))
		Expect(g.SetInitialParameters([][]float64{{1, 2}, {1}})).To(MatchError(optim.ErrParameterLength))
		Expect(g.SetInitialParameters([][]float64{{}, {}})).To(MatchError(optim.ErrParameterLength))
	})

	It("refuses to reseed while a test is running", func() {
		release := make(chan struct{})
		g := optim.NewGenetic(func(p []float64, _ int) []float64 {
			<-release
			return []float64{p[0]}
		})
		DeferCleanup(g.Close)
		Expect(g.SetInitialParameters([][]float64{{1}, {2}, {3}, {4}})).To(Succeed())

		done := make(chan struct{})
		go func() {
			defer close(done)
			g.Test()
		}()

		Eventually(g.Busy).Should(BeTrue())
		Expect(g.SetInitialParameters([][]float64{{5}, {6}})).To(MatchError(optim.ErrBusy))

		close(release)
		Eventually(done).Should(BeClosed())
		Expect(g.Busy()).To(BeFalse())
		Expect(g.AllTimeBestScore()).To(Equal(4.0))
	})

	It("hands every agent its own index once per test", func() {
		var mu sync.Mutex
		seen := map[int]int{}
		g := optim.NewGenetic(func(p []float64, agent int) []float64 {
			mu.Lock()
			seen[agent]++
			mu.Unlock()
			return []float64{p[0]}
		}, optim.WithMaxWorkers(3))
		DeferCleanup(g.Close)

		pop := make([][]float64, 17)
		for i := range pop {
			pop[i] = []float64{float64(i)}
		}
		Expect(g.SetInitialParameters(pop)).To(Succeed())
		g.Test()
		g.Test()

		Expect(seen).To(HaveLen(17))
		for i := 0; i < 17; i++ {
			Expect(seen[i]).To(Equal(2), "agent %d", i)
		}
	})

	It("reports the share of each score part", func() {
		g := optim.NewGenetic(func([]float64, int) []float64 { return []float64{1, 3} })
		DeferCleanup(g.Close)
		Expect(g.SetInitialParameters([][]float64{{0}, {1}, {2}})).To(Succeed())

		g.Test()
		parts := g.ScoreParts()
		Expect(parts).To(HaveLen(2))
		Expect(parts[0]).To(BeNumerically("~", 0.25, 1e-12))
		Expect(parts[1]).To(BeNumerically("~", 0.75, 1e-12))
	})

	It("keeps an odd population size across generations", func() {
		g := optim.NewGenetic(squaredDistance([]float64{0, 0}, true), optim.WithSeed(1))
		DeferCleanup(g.Close)
		Expect(g.SetInitialParameters([][]float64{{1, 1}, {2, 2}, {3, 3}, {4, 4}, {5, 5}})).To(Succeed())

		for i := 0; i < 3; i++ {
			g.Test()
			g.Iterate()
			Expect(g.Population()).To(HaveLen(5))
			Expect(g.Scores()).To(HaveLen(5))
		}
	})

	It("tracks round best and all-time best separately", func() {
		g := optim.NewGenetic(squaredDistance([]float64{0}, true), optim.WithSeed(2))
		DeferCleanup(g.Close)
		Expect(math.IsInf(g.AllTimeBestScore(), -1)).To(BeTrue())

		Expect(g.SetInitialParameters([][]float64{{3}, {1}, {2}, {4}})).To(Succeed())
		g.Test()
		Expect(g.AllTimeBestScore()).To(Equal(-1.0))
		Expect(g.AllTimeBestParameters()).To(Equal([]float64{1}))

		g.Iterate()
		Expect(g.BestScore()).To(Equal(-1.0))
		Expect(g.Scores()).To(Equal([]float64{-1, -4, -9, -16}))

		g.ClearAllTimeBest()
		Expect(math.IsInf(g.AllTimeBestScore(), -1)).To(BeTrue())
		Expect(g.AllTimeBestParameters()).To(BeEmpty())
	})

	It("reports telemetry to its recorder", func() {
		rec := &countingRecorder{}
		g := optim.NewGenetic(squaredDistance([]float64{0}, true), optim.WithRecorder(rec))
		DeferCleanup(g.Close)
		Expect(g.SetInitialParameters([][]float64{{1}, {2}})).To(Succeed())

		for i := 0; i < 4; i++ {
			g.Test()
			g.Iterate()
		}
		Expect(rec.evaluations).To(Equal(4))
		Expect(rec.generations).To(Equal(4))
		Expect(rec.busyCalls).To(HaveLen(8))
		Expect(rec.busyCalls[0]).To(BeTrue())
		Expect(rec.busyCalls[1]).To(BeFalse())
	})

	It("adjusts its mutation settings", func() {
		g := optim.NewGenetic(nil)
		DeferCleanup(g.Close)
		Expect(g.MutationAmount()).To(Equal(0.01))
		Expect(g.MutationProbability()).To(Equal(0.05))

		g.SetMutationAmount(0.5)
		g.SetMutationProbability(0.2)
		Expect(g.MutationAmount()).To(Equal(0.5))
		Expect(g.MutationProbability()).To(Equal(0.2))
		Expect(g.Direction()).To(Equal(optim.Maximize))
	})

	It("cannot be reseeded after Close", func() {
		g := optim.NewGenetic(squaredDistance([]float64{0}, true))
		Expect(g.SetInitialParameters([][]float64{{1}, {2}})).To(Succeed())
		Expect(g.Close()).To(Succeed())
		Expect(g.Close()).To(Succeed())
		Expect(g.SetInitialParameters([][]float64{{1}, {2}})).To(MatchError(optim.ErrClosed))
	})
})
