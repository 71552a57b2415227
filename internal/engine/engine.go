// Copyright (c) 2025 Seedfast
// Licensed under the MIT License. See LICENSE file in the project root for details.

// Package engine describes the capability the query pipeline needs from a remote
// analytical engine: cost estimation through dry runs, job submission, forward-only
// page iteration and job cancellation.
//
// Implementations live in sub-packages (pgengine for PostgreSQL). The types here are
// deliberately engine-neutral so sessions and formatters never import a driver.
package engine

import (
	"context"
	"errors"
)

// DryRunJobID is reported when the engine does not assign ids to dry-run jobs.
const DryRunJobID = "dry_run"

// ErrJobCancelled is returned by a Cursor once it observes a cancellation request.
var ErrJobCancelled = errors.New("job cancelled")

// ErrJobDone may be returned by Job.Cancel when the job already finished.
var ErrJobDone = errors.New("job already finished")

// Engine submits queries against the currently selected target.
//
// Target and SetTarget are not synchronized. Callers sharing one Engine must
// serialize them together with SubmitQuery (see internal/shared).
type Engine interface {
	// Target returns the project/schema the next submission is scoped to.
	Target() string
	// SetTarget redirects subsequent submissions to target.
	SetTarget(target string)
	// SubmitQuery runs text under cfg and returns the resulting job.
	// Dry-run jobs carry statistics only and cannot be paged.
	SubmitQuery(ctx context.Context, text string, cfg JobConfig) (Job, error)
}

// Job is the engine's handle to one submitted query.
type Job interface {
	// ID is the engine-assigned id; empty for dry runs on engines that assign none.
	ID() string
	// Project is the target the job was submitted under.
	Project() string
	// ErrorResult is non-nil when the engine accepted the job but it failed.
	ErrorResult() *ErrorDetail
	// TotalBytesProcessed is the engine's estimate (dry run) or actual bytes scanned.
	TotalBytesProcessed() int64
	// Pages opens a forward-only cursor returning pages of at most pageSize rows.
	Pages(ctx context.Context, pageSize int) (Cursor, error)
	// Cancel requests cancellation. It is asynchronous and best-effort.
	Cancel(ctx context.Context) error
	// Close releases everything the job holds, including an open cursor. It is
	// safe to call more than once and after the cursor was closed.
	Close(ctx context.Context) error
}

// Cursor iterates over the pages of a job's result in arrival order.
type Cursor interface {
	// Schema is shared by every page of the job.
	Schema() Schema
	// NextPage blocks until the next page is available. It returns io.EOF once the
	// result is exhausted and ErrJobCancelled after a cancellation was observed.
	NextPage(ctx context.Context) (*Page, error)
	// Close releases the cursor. It is safe to call more than once.
	Close(ctx context.Context) error
}

// Page is one batch of rows delivered by a Cursor.
type Page struct {
	Rows      [][]any
	ItemCount int
}

// JobConfig carries the engine-level options of one submission.
type JobConfig struct {
	DryRun             bool
	DisableQueryCache  bool
	MaximumBytesBilled *int64
	UseLegacySQL       *bool
	Parameters         []Parameter
}
