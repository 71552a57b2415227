// Copyright (c) 2025 Seedfast
// Licensed under the MIT License. See LICENSE file in the project root for details.

package session

import (
	"seedfast/pagedquery/internal/engine"
	"seedfast/pagedquery/internal/rowformat"
)

// Request is one incoming query.
type Request struct {
	Query      string         `json:"query"`
	JobConfig  map[string]any `json:"jobConfig"`
	DryRunOnly bool           `json:"dryRunOnly"`
}

// Frame is one unit of a session's response sequence: a *JobFrame or a *ContentFrame.
type Frame interface {
	isFrame()
}

// JobFrame announces the job. It is emitted before any content so the caller can
// cancel the job while pages are still pending.
type JobFrame struct {
	Job   engine.Job `json:"-"`
	JobID string     `json:"jobId"`
}

// ContentFrame carries one formatted page. The terminal frame of a dry run has nil
// Content and Labels and no Project.
type ContentFrame struct {
	Content        [][]any           `json:"content"`
	Labels         []rowformat.Label `json:"labels"`
	BytesProcessed int64             `json:"bytesProcessed"`
	Project        *string           `json:"project,omitempty"`
}

func (*JobFrame) isFrame()     {}
func (*ContentFrame) isFrame() {}
