package optim_test

import (
	"context"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/san-kum/pidtune/internal/optim"
)

var _ = Describe("GridSearch", func() {
	bowl := func(p []float64, _ int) []float64 {
		dx, dy := p[0]-1, p[1]+1
		return []float64{dx*dx + dy*dy}
	}

	It("spans an axis inclusively", func() {
		Expect(optim.Axis(-2, 2, 5)).To(Equal([]float64{-2, -1, 0, 1, 2}))
		Expect(optim.Axis(3, 9, 1)).To(Equal([]float64{3}))
	})

	It("finds the best grid point", func() {
		g := optim.NewGridSearch([][]float64{optim.Axis(-2, 2, 5), optim.Axis(-2, 2, 5)}, optim.Minimize)
		Expect(g.Size()).To(Equal(25))

		best, score, err := g.Search(context.Background(), bowl)
		Expect(err).NotTo(HaveOccurred())
		Expect(best).To(Equal([]float64{1, -1}))
		Expect(score).To(BeNumerically("==", 0))
	})

	It("stops when the context is cancelled", func() {
		ctx, cancel := context.WithCancel(context.Background())
		calls := 0
		g := optim.NewGridSearch([][]float64{optim.Axis(0, 1, 10), optim.Axis(0, 1, 10)}, optim.Maximize)
		_, _, err := g.Search(ctx, func(p []float64, i int) []float64 {
			calls++
			if calls == 3 {
				cancel()
			}
			return []float64{p[0]}
		})
		Expect(err).To(MatchError(context.Canceled))
		Expect(calls).To(Equal(3))
	})

	It("rejects an empty grid", func() {
		_, _, err := optim.NewGridSearch(nil, optim.Minimize).Search(context.Background(), bowl)
		Expect(err).To(MatchError(optim.ErrEmptyPopulation))
		_, _, err = optim.NewGridSearch([][]float64{{1}}, optim.Minimize).Search(context.Background(), nil)
		Expect(err).To(MatchError(optim.ErrNoFitness))
	})
})
