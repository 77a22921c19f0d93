// Package parallel provides bounded fan-out helpers that keep results in
// input order.
package parallel

import (
	"context"
	"sync"

	"github.com/charmbracelet/log"
)

// Semaphore limits concurrent operations
type Semaphore struct {
	ch chan struct{}
}

// NewSemaphore creates a new semaphore
func NewSemaphore(limit int) *Semaphore {
	if limit <= 0 {
		limit = 1
	}
	return &Semaphore{
		ch: make(chan struct{}, limit),
	}
}

// Acquire acquires a semaphore slot
func (s *Semaphore) Acquire(ctx context.Context) error {
	select {
	case s.ch <- struct{}{}:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Release releases a semaphore slot
func (s *Semaphore) Release() {
	<-s.ch
}

// Map executes fn on each item in parallel and returns the results indexed by
// input position, regardless of completion order. A workers value <= 0 runs
// every item at once.
//
// fn receives ctx unchanged, so results that stay bound to it (open response
// bodies) remain usable after Map returns. Once a call fails, calls that have
// not started yet are skipped. Map always waits for every call to return. On
// failure it returns the first error together with the partial output so the
// caller can release whatever the successful calls produced.
func Map[T any, R any](ctx context.Context, items []T, workers int, fn func(context.Context, T) (R, error)) ([]R, error) {
	if len(items) == 0 {
		return nil, nil
	}
	if workers <= 0 || workers > len(items) {
		workers = len(items)
	}

	type result struct {
		index int
		value R
		err   error
	}

	stopCtx, stop := context.WithCancel(ctx)
	defer stop()

	sem := NewSemaphore(workers)
	results := make(chan result, len(items))
	var wg sync.WaitGroup

	for i, item := range items {
		wg.Add(1)
		go func(idx int, it T) {
			defer wg.Done()

			if err := sem.Acquire(stopCtx); err != nil {
				results <- result{index: idx, err: err}
				return
			}
			defer sem.Release()

			if err := stopCtx.Err(); err != nil {
				results <- result{index: idx, err: err}
				return
			}

			val, err := fn(ctx, it)
			results <- result{index: idx, value: val, err: err}
		}(i, item)
	}

	go func() {
		wg.Wait()
		close(results)
	}()

	output := make([]R, len(items))
	var firstErr error
	for r := range results {
		if r.err != nil {
			if firstErr == nil {
				firstErr = r.err
				stop()
			}
			log.Debug("Parallel task failed", "index", r.index, "error", r.err)
			continue
		}
		output[r.index] = r.value
	}

	return output, firstErr
}
