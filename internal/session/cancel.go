// Copyright (c) 2025 Seedfast
// Licensed under the MIT License. See LICENSE file in the project root for details.

package session

import (
	"context"
	"errors"

	"seedfast/pagedquery/internal/engine"

	"go.uber.org/zap"
)

// Canceller requests cancellation of in-flight jobs.
//
// Each Cancel issues exactly one engine request. Cancellation is asynchronous: a
// stream may still deliver pages that were already fetched.
type Canceller struct {
	Logger *zap.Logger
}

// Cancel asks the engine to cancel job. Cancelling a nil, finished or already
// cancelled job is not an error.
func (c Canceller) Cancel(ctx context.Context, job engine.Job) error {
	if job == nil {
		return nil
	}
	err := job.Cancel(ctx)
	if errors.Is(err, engine.ErrJobDone) || errors.Is(err, engine.ErrJobCancelled) {
		err = nil
	}
	if c.Logger != nil {
		c.Logger.Debug("cancel requested", zap.String("job_id", job.ID()), zap.Error(err))
	}
	return err
}
