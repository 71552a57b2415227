// Copyright (c) 2025 Seedfast
// Licensed under the MIT License. See LICENSE file in the project root for details.

// Package shared lets many concurrent query sessions borrow one engine handle.
//
// The engine's target is mutable state on a single object, so every access that
// depends on it goes through Do, which holds one process-wide lock for the whole
// override-call-restore sequence. This serializes all submissions; page streaming
// happens outside the lock.
package shared

import (
	"context"
	"fmt"
	"sync"

	"seedfast/pagedquery/internal/engine"

	"golang.org/x/sync/semaphore"
)

// Client guards one engine.Engine and its default target.
type Client struct {
	lock          *semaphore.Weighted
	engine        engine.Engine
	defaultTarget string
}

// New wraps e. The target e reports now becomes the default that every Do restores.
func New(e engine.Engine) *Client {
	return &Client{
		lock:          semaphore.NewWeighted(1),
		engine:        e,
		defaultTarget: e.Target(),
	}
}

// DefaultTarget returns the target restored after every Do.
func (c *Client) DefaultTarget() string { return c.defaultTarget }

// Do runs fn against the engine with its target set to target, or to the default
// when target is empty. The default is restored before the lock is released on every
// exit path, including a panic in fn. Errors from fn are returned unchanged.
//
// Waiting for the lock is aborted when ctx is done.
func Do[T any](ctx context.Context, c *Client, target string, fn func(ctx context.Context, e engine.Engine) (T, error)) (T, error) {
	var zero T
	if err := c.lock.Acquire(ctx, 1); err != nil {
		return zero, err
	}
	defer c.lock.Release(1)
	defer c.engine.SetTarget(c.defaultTarget)

	if target != "" {
		c.engine.SetTarget(target)
	} else {
		c.engine.SetTarget(c.defaultTarget)
	}
	return fn(ctx, c.engine)
}

// Submit is Do specialised to a single SubmitQuery call.
func (c *Client) Submit(ctx context.Context, target, text string, cfg engine.JobConfig) (engine.Job, error) {
	return Do(ctx, c, target, func(ctx context.Context, e engine.Engine) (engine.Job, error) {
		return e.SubmitQuery(ctx, text, cfg)
	})
}

// Provider creates the process-wide Client on first use. A failed construction is
// retried on the next call.
type Provider struct {
	open func(ctx context.Context) (engine.Engine, error)

	mu     sync.Mutex
	client *Client
	closer func()
}

// NewProvider returns a Provider that builds its engine with open.
func NewProvider(open func(ctx context.Context) (engine.Engine, error)) *Provider {
	return &Provider{open: open}
}

// Get returns the shared Client, opening the engine if necessary.
func (p *Provider) Get(ctx context.Context) (*Client, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.client != nil {
		return p.client, nil
	}
	e, err := p.open(ctx)
	if err != nil {
		return nil, fmt.Errorf("open engine: %w", err)
	}
	p.client = New(e)
	if c, ok := e.(interface{ Close() }); ok {
		p.closer = c.Close
	}
	return p.client, nil
}

// Close closes the engine if it was opened and supports closing.
func (p *Provider) Close() {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.closer != nil {
		p.closer()
	}
	p.client = nil
	p.closer = nil
}
