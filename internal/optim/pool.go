package optim

import (
	"runtime"
	"sync"

	"github.com/san-kum/pidtune/internal/dynamo"
)

// MaxWorkers caps the evaluation pool regardless of CPU count.
const MaxWorkers = 64

// workerPool runs one goroutine per contiguous shard of the population.
// Shards are fixed when the pool starts, so no agent is ever touched by two
// goroutines and agents need no locking.
type workerPool struct {
	shards []dynamo.Range
	start  []chan struct{}
	round  sync.WaitGroup
	exited sync.WaitGroup
	once   sync.Once
}

// newWorkerPool starts min(NumCPU, n, maxWorkers) goroutines that call
// work(i) for every index of their shard on each run.
func newWorkerPool(n, maxWorkers int, work func(i int)) *workerPool {
	if maxWorkers <= 0 || maxWorkers > MaxWorkers {
		maxWorkers = MaxWorkers
	}
	workers := min(runtime.NumCPU(), n, maxWorkers)
	p := &workerPool{shards: dynamo.Partition(n, workers)}
	p.start = make([]chan struct{}, len(p.shards))
	for i, shard := range p.shards {
		ch := make(chan struct{})
		p.start[i] = ch
		p.exited.Add(1)
		go p.worker(shard, ch, work)
	}
	return p
}

func (p *workerPool) worker(shard dynamo.Range, start <-chan struct{}, work func(int)) {
	defer p.exited.Done()
	for range start {
		for i := shard.Start; i < shard.End; i++ {
			work(i)
		}
		p.round.Done()
	}
}

// run releases every worker once and blocks until all shards are done.
func (p *workerPool) run() {
	p.round.Add(len(p.start))
	for _, ch := range p.start {
		ch <- struct{}{}
	}
	p.round.Wait()
}

func (p *workerPool) size() int { return len(p.shards) }

// close stops the workers after any round in flight and joins them.
func (p *workerPool) close() {
	p.once.Do(func() {
		for _, ch := range p.start {
			close(ch)
		}
		p.exited.Wait()
	})
}
