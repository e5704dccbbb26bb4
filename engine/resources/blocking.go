package resources

import (
	"context"
	"sync"

	"github.com/casarerpa/engine/engine/core"
)

// DefaultBlockingWorkers is the default size of the CPU-bound worker pool.
const DefaultBlockingWorkers = 4

// BlockingPool runs CPU-bound work (image processing, OCR) on a fixed set
// of workers so a burst of heavy nodes can't starve the goroutines driving
// I/O-bound dispatch.
type BlockingPool struct {
	tasks chan blockingTask
	wg    sync.WaitGroup
	once  sync.Once
}

type blockingTask struct {
	run  func() (any, error)
	done chan<- blockingResult
}

type blockingResult struct {
	value any
	err   error
}

// NewBlockingPool starts a pool of workers goroutines (DefaultBlockingWorkers
// when workers <= 0).
func NewBlockingPool(workers int) *BlockingPool {
	if workers <= 0 {
		workers = DefaultBlockingWorkers
	}
	p := &BlockingPool{tasks: make(chan blockingTask)}
	for i := 0; i < workers; i++ {
		p.wg.Add(1)
		go p.worker()
	}
	return p
}

func (p *BlockingPool) worker() {
	defer p.wg.Done()
	for t := range p.tasks {
		v, err := t.run()
		t.done <- blockingResult{value: v, err: err}
	}
}

// Run submits fn and waits for its result. Cancellation is honored while
// the task is queued and while waiting on the result; a task a worker has
// already picked up runs to completion, its result discarded.
func (p *BlockingPool) Run(ctx context.Context, fn func() (any, error)) (any, error) {
	done := make(chan blockingResult, 1)
	select {
	case p.tasks <- blockingTask{run: fn, done: done}:
	case <-ctx.Done():
		return nil, core.NewError(ctx.Err(), core.ErrCancelled, nil)
	}
	select {
	case r := <-done:
		return r.value, r.err
	case <-ctx.Done():
		return nil, core.NewError(ctx.Err(), core.ErrCancelled, nil)
	}
}

// Close stops accepting work and waits for in-flight tasks to finish.
func (p *BlockingPool) Close() {
	p.once.Do(func() { close(p.tasks) })
	p.wg.Wait()
}
