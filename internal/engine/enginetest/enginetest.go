// Copyright (c) 2025 Seedfast
// Licensed under the MIT License. See LICENSE file in the project root for details.

// Package enginetest provides an instrumented in-memory engine for tests.
package enginetest

import (
	"context"
	"io"
	"sync"
	"sync/atomic"

	"seedfast/pagedquery/internal/engine"
)

// Submission records one SubmitQuery call.
type Submission struct {
	Text   string
	Config engine.JobConfig
	Target string
}

// Engine is a scripted engine.Engine. Zero values are usable; configure the
// exported fields before sharing it between goroutines.
type Engine struct {
	// OnSubmit, if set, replaces the default job construction.
	OnSubmit func(ctx context.Context, e *Engine, text string, cfg engine.JobConfig) (engine.Job, error)
	// DryRunBytes is reported by dry-run jobs built by the default OnSubmit.
	DryRunBytes int64
	// Result is the job returned for real submissions by the default OnSubmit.
	Result *Job

	target string

	mu          sync.Mutex
	submissions []Submission
}

// New returns an engine whose default target is target.
func New(target string) *Engine {
	return &Engine{target: target}
}

func (e *Engine) Target() string          { return e.target }
func (e *Engine) SetTarget(target string) { e.target = target }

// SubmitQuery records the call together with the target seen at call time.
func (e *Engine) SubmitQuery(ctx context.Context, text string, cfg engine.JobConfig) (engine.Job, error) {
	e.mu.Lock()
	e.submissions = append(e.submissions, Submission{Text: text, Config: cfg, Target: e.target})
	e.mu.Unlock()

	if e.OnSubmit != nil {
		return e.OnSubmit(ctx, e, text, cfg)
	}
	if cfg.DryRun {
		return &Job{Bytes: e.DryRunBytes, Target: e.target}, nil
	}
	if e.Result == nil {
		return &Job{JobID: "job-1", Target: e.target}, nil
	}
	e.Result.Target = e.target
	return e.Result, nil
}

// Submissions returns a copy of every recorded call.
func (e *Engine) Submissions() []Submission {
	e.mu.Lock()
	defer e.mu.Unlock()
	out := make([]Submission, len(e.submissions))
	copy(out, e.submissions)
	return out
}

// Executions counts submissions that were not dry runs.
func (e *Engine) Executions() int {
	n := 0
	for _, s := range e.Submissions() {
		if !s.Config.DryRun {
			n++
		}
	}
	return n
}

// Job is a scripted engine.Job.
type Job struct {
	JobID  string
	Target string
	Err    *engine.ErrorDetail
	Bytes  int64
	Fields engine.Schema
	Result []*engine.Page
	// PageErr, if set, is returned by the cursor after all pages were delivered.
	PageErr error

	cancels   atomic.Int32
	cancelled atomic.Bool
	pageSize  atomic.Int32
	closed    atomic.Int32
	closes    atomic.Int32
}

func (j *Job) ID() string                       { return j.JobID }
func (j *Job) Project() string                  { return j.Target }
func (j *Job) ErrorResult() *engine.ErrorDetail { return j.Err }
func (j *Job) TotalBytesProcessed() int64       { return j.Bytes }

// Cancels counts Cancel calls received.
func (j *Job) Cancels() int { return int(j.cancels.Load()) }

// PageSize is the page size the last cursor was opened with.
func (j *Job) PageSize() int { return int(j.pageSize.Load()) }

// ClosedCursors counts cursors that were closed.
func (j *Job) ClosedCursors() int { return int(j.closed.Load()) }

// Closes counts Close calls received.
func (j *Job) Closes() int { return int(j.closes.Load()) }

func (j *Job) Close(ctx context.Context) error {
	j.closes.Add(1)
	return nil
}

func (j *Job) Cancel(ctx context.Context) error {
	j.cancels.Add(1)
	j.cancelled.Store(true)
	return nil
}

func (j *Job) Pages(ctx context.Context, pageSize int) (engine.Cursor, error) {
	j.pageSize.Store(int32(pageSize))
	return &cursor{job: j}, nil
}

type cursor struct {
	job  *Job
	next int
	done bool
}

func (c *cursor) Schema() engine.Schema { return c.job.Fields }

func (c *cursor) NextPage(ctx context.Context) (*engine.Page, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if c.job.cancelled.Load() {
		return nil, engine.ErrJobCancelled
	}
	if c.next < len(c.job.Result) {
		p := c.job.Result[c.next]
		c.next++
		return p, nil
	}
	if c.job.PageErr != nil {
		return nil, c.job.PageErr
	}
	return nil, io.EOF
}

func (c *cursor) Close(ctx context.Context) error {
	if !c.done {
		c.done = true
		c.job.closed.Add(1)
	}
	return nil
}

// Rows builds a page of n single-column rows holding 0..n-1.
func Rows(n int) *engine.Page {
	rows := make([][]any, n)
	for i := range rows {
		rows[i] = []any{int64(i)}
	}
	return &engine.Page{Rows: rows, ItemCount: n}
}
