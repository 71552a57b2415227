// Copyright (c) 2025 Seedfast
// Licensed under the MIT License. See LICENSE file in the project root for details.

package shared

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"seedfast/pagedquery/internal/engine"
	"seedfast/pagedquery/internal/engine/enginetest"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDoSetsAndRestoresTarget(t *testing.T) {
	tests := []struct {
		name     string
		target   string
		wantSeen string
	}{
		{name: "override", target: "analytics", wantSeen: "analytics"},
		{name: "default", target: "", wantSeen: "public"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			e := enginetest.New("public")
			c := New(e)

			seen, err := Do(context.Background(), c, tt.target, func(ctx context.Context, e engine.Engine) (string, error) {
				return e.Target(), nil
			})
			require.NoError(t, err)
			assert.Equal(t, tt.wantSeen, seen)
			assert.Equal(t, "public", e.Target())
		})
	}
}

func TestDoRestoresTargetOnFailure(t *testing.T) {
	e := enginetest.New("public")
	c := New(e)
	boom := errors.New("boom")

	_, err := Do(context.Background(), c, "other", func(ctx context.Context, e engine.Engine) (int, error) {
		return 0, boom
	})
	require.ErrorIs(t, err, boom)
	assert.Equal(t, "public", e.Target())
}

func TestDoRestoresTargetOnPanic(t *testing.T) {
	e := enginetest.New("public")
	c := New(e)

	func() {
		defer func() { _ = recover() }()
		_, _ = Do(context.Background(), c, "other", func(ctx context.Context, e engine.Engine) (int, error) {
			panic("boom")
		})
	}()
	assert.Equal(t, "public", e.Target())

	// The lock must have been released as well.
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	_, err := Do(ctx, c, "", func(ctx context.Context, e engine.Engine) (int, error) { return 1, nil })
	require.NoError(t, err)
}

func TestDoSerializesConcurrentOverrides(t *testing.T) {
	e := enginetest.New("public")
	c := New(e)

	const workers = 16
	var (
		wg       sync.WaitGroup
		mu       sync.Mutex
		mismatch []string
	)
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			target := fmt.Sprintf("schema_%d", i)
			job, err := c.Submit(context.Background(), target, "SELECT 1", engine.JobConfig{})
			if err != nil {
				t.Errorf("Submit: %v", err)
				return
			}
			if job.Project() != target {
				mu.Lock()
				mismatch = append(mismatch, target+" saw "+job.Project())
				mu.Unlock()
			}
		}(i)
	}
	wg.Wait()

	assert.Empty(t, mismatch)
	subs := e.Submissions()
	require.Len(t, subs, workers)
	seen := map[string]bool{}
	for _, s := range subs {
		seen[s.Target] = true
	}
	assert.Len(t, seen, workers)
	assert.Equal(t, "public", e.Target())
}

func TestDoDoesNotOverlap(t *testing.T) {
	c := New(enginetest.New("public"))
	var (
		active  int
		maxSeen int
		mu      sync.Mutex
		wg      sync.WaitGroup
	)
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, _ = Do(context.Background(), c, "x", func(ctx context.Context, e engine.Engine) (struct{}, error) {
				mu.Lock()
				active++
				if active > maxSeen {
					maxSeen = active
				}
				mu.Unlock()
				time.Sleep(2 * time.Millisecond)
				mu.Lock()
				active--
				mu.Unlock()
				return struct{}{}, nil
			})
		}()
	}
	wg.Wait()
	assert.Equal(t, 1, maxSeen)
}

func TestDoHonoursContextWhileWaiting(t *testing.T) {
	c := New(enginetest.New("public"))
	release := make(chan struct{})
	started := make(chan struct{})
	go func() {
		_, _ = Do(context.Background(), c, "", func(ctx context.Context, e engine.Engine) (int, error) {
			close(started)
			<-release
			return 0, nil
		})
	}()
	<-started
	defer close(release)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()
	_, err := Do(ctx, c, "", func(ctx context.Context, e engine.Engine) (int, error) { return 0, nil })
	require.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestProviderRetriesAfterFailure(t *testing.T) {
	calls := 0
	p := NewProvider(func(ctx context.Context) (engine.Engine, error) {
		calls++
		if calls == 1 {
			return nil, errors.New("unreachable")
		}
		return enginetest.New("public"), nil
	})

	_, err := p.Get(context.Background())
	require.Error(t, err)

	first, err := p.Get(context.Background())
	require.NoError(t, err)
	second, err := p.Get(context.Background())
	require.NoError(t, err)
	assert.Same(t, first, second)
	assert.Equal(t, 2, calls)
	assert.Equal(t, "public", first.DefaultTarget())
}
