package optim_test

import (
	"runtime"
	"sync/atomic"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/san-kum/pidtune/internal/optim"
)

var _ = Describe("worker pool", func() {
	It("visits every index exactly once per run", func() {
		const n = 37
		var visits [n]atomic.Int32
		p := optim.NewWorkerPool(n, 8, func(i int) { visits[i].Add(1) })
		DeferCleanup(p.Close)

		for round := 1; round <= 5; round++ {
			p.Run()
			for i := range visits {
				Expect(visits[i].Load()).To(BeEquivalentTo(round), "index %d", i)
			}
		}
	})

	It("never starts more workers than agents, CPUs or the cap", func() {
		p := optim.NewWorkerPool(3, 0, func(int) {})
		DeferCleanup(p.Close)
		Expect(p.Size()).To(BeNumerically("<=", 3))
		Expect(p.Size()).To(BeNumerically("<=", runtime.NumCPU()))

		q := optim.NewWorkerPool(1000, 2, func(int) {})
		DeferCleanup(q.Close)
		Expect(q.Size()).To(BeNumerically("<=", 2))
		Expect(q.Size()).To(BeNumerically(">=", 1))
	})

	It("can be closed twice", func() {
		p := optim.NewWorkerPool(4, 4, func(int) {})
		p.Run()
		p.Close()
		Expect(p.Close).NotTo(Panic())
	})
})
