// Package workerpool runs CPU-bound jobs on a fixed set of goroutines fed
// by a bounded queue. Submission never blocks: when the queue is full or
// the pool is closed the job is rejected with ErrDispatchFailed.
package workerpool

import (
	"context"
	"errors"
	"fmt"
	"runtime"
	"sync"
	"sync/atomic"
)

var (
	ErrDispatchFailed = errors.New("worker dispatch failed")
	ErrJobPanicked    = errors.New("job panicked")
)

type Job func()

type Pool struct {
	workers int
	jobs    chan Job
	wg      sync.WaitGroup

	mu     sync.RWMutex
	closed bool

	submitted atomic.Int64
	rejected  atomic.Int64
	completed atomic.Int64
}

// Stats is a snapshot of pool counters.
type Stats struct {
	Workers   int
	QueueSize int
	Queued    int
	Submitted int64
	Rejected  int64
	Completed int64
}

// New starts workers goroutines. Non-positive values fall back to
// runtime.NumCPU() workers and a queue of 4 jobs per worker.
func New(workers, queueSize int) *Pool {
	if workers <= 0 {
		workers = runtime.NumCPU()
	}
	if queueSize <= 0 {
		queueSize = workers * 4
	}

	p := &Pool{workers: workers, jobs: make(chan Job, queueSize)}

	p.wg.Add(workers)
	for i := 0; i < workers; i++ {
		go p.worker()
	}

	return p
}

func (p *Pool) worker() {
	defer p.wg.Done()
	for job := range p.jobs {
		job()
		p.completed.Add(1)
	}
}

// Submit enqueues job without blocking.
func (p *Pool) Submit(job Job) error {
	p.mu.RLock()
	defer p.mu.RUnlock()

	if p.closed {
		p.rejected.Add(1)
		return fmt.Errorf("%w: pool closed", ErrDispatchFailed)
	}

	select {
	case p.jobs <- job:
		p.submitted.Add(1)
		return nil
	default:
		p.rejected.Add(1)
		return fmt.Errorf("%w: queue full", ErrDispatchFailed)
	}
}

// Close stops accepting jobs and waits for queued ones to finish.
// It is safe to call more than once.
func (p *Pool) Close() {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return
	}
	p.closed = true
	close(p.jobs)
	p.mu.Unlock()

	p.wg.Wait()
}

func (p *Pool) Stats() Stats {
	return Stats{
		Workers:   p.workers,
		QueueSize: cap(p.jobs),
		Queued:    len(p.jobs),
		Submitted: p.submitted.Load(),
		Rejected:  p.rejected.Load(),
		Completed: p.completed.Load(),
	}
}

type result[T any] struct {
	val T
	err error
}

// Do runs fn on the pool and waits for its result. If ctx is done first,
// Do returns ctx.Err(); fn still runs to completion and its result is
// dropped.
func Do[T any](ctx context.Context, p *Pool, fn func() (T, error)) (T, error) {
	var zero T

	if err := ctx.Err(); err != nil {
		return zero, err
	}

	// buffered so an abandoned job never blocks its worker
	out := make(chan result[T], 1)

	err := p.Submit(func() {
		defer func() {
			if r := recover(); r != nil {
				out <- result[T]{err: fmt.Errorf("%w: %v", ErrJobPanicked, r)}
			}
		}()
		v, err := fn()
		out <- result[T]{val: v, err: err}
	})
	if err != nil {
		return zero, err
	}

	select {
	case r := <-out:
		return r.val, r.err
	case <-ctx.Done():
		return zero, ctx.Err()
	}
}
