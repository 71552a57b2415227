// Copyright (c) 2025 Seedfast
// Licensed under the MIT License. See LICENSE file in the project root for details.

// Package workerpool provides the fixed-size pool used to format large result pages
// in parallel. It is a thin layer over ants that adds an order-preserving chunked map
// and an idempotent Release.
package workerpool

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/panjf2000/ants/v2"
)

// DefaultSize is the number of workers used when none is configured.
const DefaultSize = 6

// releaseTimeout bounds how long Release waits for workers to exit.
const releaseTimeout = 3 * time.Second

// ErrReleased is returned by Map after Release.
var ErrReleased = errors.New("worker pool released")

// Pool runs work on a bounded set of goroutines.
type Pool struct {
	size int

	mu   sync.Mutex
	pool *ants.Pool
}

// New creates a pool of size workers. Workers are started lazily by ants.
func New(size int) (*Pool, error) {
	if size <= 0 {
		size = DefaultSize
	}
	p, err := ants.NewPool(size, ants.WithPanicHandler(func(any) {}))
	if err != nil {
		return nil, fmt.Errorf("create worker pool: %w", err)
	}
	return &Pool{size: size, pool: p}, nil
}

// Size returns the number of workers.
func (p *Pool) Size() int { return p.size }

// Map splits [0, n) into at most Size contiguous chunks and calls fn once per chunk
// on the pool. fn writes its results by index, so order is kept whatever the
// completion order. The first failure is returned after every chunk finished; a
// panicking chunk is reported as a failure.
func (p *Pool) Map(ctx context.Context, n int, fn func(ctx context.Context, lo, hi int) error) error {
	if n == 0 {
		return nil
	}
	p.mu.Lock()
	pool := p.pool
	p.mu.Unlock()
	if pool == nil {
		return ErrReleased
	}

	chunks := p.size
	if chunks > n {
		chunks = n
	}
	step := (n + chunks - 1) / chunks

	var (
		wg       sync.WaitGroup
		errOnce  sync.Once
		firstErr error
	)
	fail := func(err error) { errOnce.Do(func() { firstErr = err }) }

	for lo := 0; lo < n; lo += step {
		hi := lo + step
		if hi > n {
			hi = n
		}
		wg.Add(1)
		task := func() {
			defer wg.Done()
			defer func() {
				if r := recover(); r != nil {
					fail(fmt.Errorf("worker panic on rows [%d,%d): %v", lo, hi, r))
				}
			}()
			if err := ctx.Err(); err != nil {
				fail(err)
				return
			}
			if err := fn(ctx, lo, hi); err != nil {
				fail(err)
			}
		}
		if err := pool.Submit(task); err != nil {
			wg.Done()
			fail(fmt.Errorf("submit chunk: %w", err))
			break
		}
	}
	wg.Wait()
	return firstErr
}

// Release terminates all workers. Calling it again is a no-op.
func (p *Pool) Release() error {
	p.mu.Lock()
	pool := p.pool
	p.pool = nil
	p.mu.Unlock()

	if pool == nil {
		return nil
	}
	return pool.ReleaseTimeout(releaseTimeout)
}
