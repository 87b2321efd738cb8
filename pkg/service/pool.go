package service

import (
	"context"
	"sync"

	"golang.org/x/sync/semaphore"
)

// Pool runs submitted work on goroutines, at most size at a time.
// Submit never blocks; excess work waits for a slot.
type Pool struct {
	sem *semaphore.Weighted
	ctx context.Context
	wg  sync.WaitGroup
}

// NewPool creates a pool bounded to size concurrent executions. Work that
// has not started when ctx is cancelled is skipped.
func NewPool(ctx context.Context, size int) *Pool {
	if size < 1 {
		size = 1
	}
	return &Pool{
		sem: semaphore.NewWeighted(int64(size)),
		ctx: ctx,
	}
}

// Submit schedules fn.
func (p *Pool) Submit(fn func(ctx context.Context)) {
	p.wg.Add(1)
	go func() {
		defer p.wg.Done()
		if err := p.sem.Acquire(p.ctx, 1); err != nil {
			return
		}
		defer p.sem.Release(1)
		fn(p.ctx)
	}()
}

// Wait blocks until all submitted work has finished or been skipped.
func (p *Pool) Wait() {
	p.wg.Wait()
}
