// File: internal/scheduler/runner.go
// Brief: Interchangeable concurrent execution backends.

package scheduler

import (
	"context"
	"sync"

	"golang.org/x/sync/semaphore"
)

// DefaultWorkers bounds the parallel worker pool.
const DefaultWorkers = 4

// Runner executes a batch of units and returns when all have finished. The
// two backends are result-identical; only the degree of real parallelism
// differs.
type Runner interface {
	RunConcurrently(ctx context.Context, units []func())
}

// PoolRunner runs units on goroutines bounded by a weighted semaphore.
type PoolRunner struct {
	sem *semaphore.Weighted
}

func NewPoolRunner(size int) *PoolRunner {
	if size < 1 {
		size = 1
	}
	return &PoolRunner{sem: semaphore.NewWeighted(int64(size))}
}

func (p *PoolRunner) RunConcurrently(ctx context.Context, units []func()) {
	var wg sync.WaitGroup
	for _, unit := range units {
		if err := p.sem.Acquire(ctx, 1); err != nil {
			// Context cancelled while waiting for a slot; run inline so the
			// unit can record its own cancellation result.
			unit()
			continue
		}
		wg.Add(1)
		go func(run func()) {
			defer wg.Done()
			defer p.sem.Release(1)
			run()
		}(unit)
	}
	wg.Wait()
}

// SerialRunner executes units one at a time on the calling goroutine, the
// cooperative single-threaded mode. Callers observe the same results as with
// PoolRunner.
type SerialRunner struct{}

func (SerialRunner) RunConcurrently(ctx context.Context, units []func()) {
	for _, unit := range units {
		unit()
	}
}
