package pool

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
)

var ErrPoolClosed = errors.New("worker pool is closed")

// WorkerPool runs submitted jobs in the background with at most maxWorkers
// running at once. Submit never waits for a free slot.
type WorkerPool[T any] struct {
	sem     chan struct{}
	wg      sync.WaitGroup
	mu      sync.RWMutex
	closed  bool
	waiting atomic.Int64
	running atomic.Int64
}

func NewWorkerPool[T any](maxWorkers int) *WorkerPool[T] {
	if maxWorkers < 1 {
		maxWorkers = 1
	}
	return &WorkerPool[T]{
		sem: make(chan struct{}, maxWorkers),
	}
}

func (p *WorkerPool[T]) Submit(ctx context.Context, job T, handler func(context.Context, T)) error {
	p.mu.RLock()
	defer p.mu.RUnlock()
	if p.closed {
		return ErrPoolClosed
	}

	p.wg.Add(1)
	p.waiting.Add(1)
	go func() {
		defer p.wg.Done()

		select {
		case p.sem <- struct{}{}:
			p.waiting.Add(-1)
			p.running.Add(1)
			defer func() {
				p.running.Add(-1)
				<-p.sem
			}()
			handler(ctx, job)
		case <-ctx.Done():
			p.waiting.Add(-1)
		}
	}()
	return nil
}

// Stats reports how many jobs are running and how many wait for a slot.
func (p *WorkerPool[T]) Stats() (running, waiting int64) {
	return p.running.Load(), p.waiting.Load()
}

// Close stops accepting jobs. Jobs already submitted still run.
func (p *WorkerPool[T]) Close() {
	p.mu.Lock()
	p.closed = true
	p.mu.Unlock()
}

func (p *WorkerPool[T]) Wait() {
	p.wg.Wait()
}
