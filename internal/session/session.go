// Copyright (c) 2025 Seedfast
// Licensed under the MIT License. See LICENSE file in the project root for details.

// Package session orchestrates one logical query: flag validation, a dry run for the
// cost estimate, the real submission and page-by-page streaming of formatted results.
//
// A Session produces its responses as a pull-based iter.Seq2. The consumer drives
// every blocking step (submission, each page fetch) by asking for the next frame,
// and may stop at any time; the cursor and the formatting pool are released on every
// exit path, and the submitted job is closed once the sequence ends.
package session

import (
	"context"
	"errors"
	"io"
	"iter"
	"strconv"
	"sync/atomic"
	"time"

	"seedfast/pagedquery/internal/engine"
	qerrors "seedfast/pagedquery/internal/errors"
	"seedfast/pagedquery/internal/rowformat"
	"seedfast/pagedquery/internal/shared"
	"seedfast/pagedquery/internal/workerpool"

	"github.com/jonboulle/clockwork"
	"go.uber.org/zap"
)

// DefaultPageSize is used when the caller passes a non-positive page size.
const DefaultPageSize = 10_000

// FormatPool is a formatting pool owned by one session.
type FormatPool interface {
	rowformat.Mapper
	Release() error
}

// PoolFactory creates the formatting pool of a session.
type PoolFactory func(size int) (FormatPool, error)

func defaultPoolFactory(size int) (FormatPool, error) {
	return workerpool.New(size)
}

// errStopped signals that the consumer stopped ranging over the frames.
var errStopped = errors.New("consumer stopped")

// Session runs a single request against a shared client.
type Session struct {
	client    *shared.Client
	canceller Canceller
	threshold int
	poolSize  int
	newPool   PoolFactory
	logger    *zap.Logger
	clock     clockwork.Clock

	started atomic.Bool
	state   atomic.Int32
	job     atomic.Pointer[jobRef]
}

type jobRef struct{ job engine.Job }

// Option configures a Session.
type Option func(*Session)

// WithLogger sets the logger used for phase timings.
func WithLogger(l *zap.Logger) Option { return func(s *Session) { s.logger = l } }

// WithClock replaces the clock used to measure phases.
func WithClock(c clockwork.Clock) Option { return func(s *Session) { s.clock = c } }

// WithParallelThreshold sets the item count above which pages are formatted on the pool.
func WithParallelThreshold(n int) Option { return func(s *Session) { s.threshold = n } }

// WithPoolSize sets the number of formatting workers.
func WithPoolSize(n int) Option { return func(s *Session) { s.poolSize = n } }

// WithPoolFactory replaces the formatting pool constructor.
func WithPoolFactory(f PoolFactory) Option { return func(s *Session) { s.newPool = f } }

// New creates a session bound to client.
func New(client *shared.Client, opts ...Option) *Session {
	s := &Session{
		client:    client,
		threshold: rowformat.DefaultThreshold,
		poolSize:  workerpool.DefaultSize,
		newPool:   defaultPoolFactory,
		logger:    zap.NewNop(),
		clock:     clockwork.NewRealClock(),
	}
	for _, opt := range opts {
		opt(s)
	}
	s.canceller = Canceller{Logger: s.logger}
	return s
}

// State returns the current lifecycle state.
func (s *Session) State() State { return State(s.state.Load()) }

func (s *Session) setState(st State) { s.state.Store(int32(st)) }

// Job returns the announced job, or nil before the announcement.
func (s *Session) Job() engine.Job {
	if ref := s.job.Load(); ref != nil {
		return ref.job
	}
	return nil
}

// Cancel requests cancellation of the session's job, if one was announced.
func (s *Session) Cancel(ctx context.Context) error {
	return s.canceller.Cancel(ctx, s.Job())
}

// Frames returns the lazy response sequence of req. The sequence yields at most one
// error, as its last element. A Session runs one request; ranging a second time
// yields an error.
func (s *Session) Frames(ctx context.Context, req Request, pageSize int) iter.Seq2[Frame, error] {
	return func(yield func(Frame, error) bool) {
		if !s.started.CompareAndSwap(false, true) {
			yield(nil, errors.New("session already ran a request"))
			return
		}
		emit := func(f Frame) error {
			if !yield(f, nil) {
				return errStopped
			}
			return nil
		}
		err := s.run(ctx, req, pageSize, emit)
		if err == nil {
			return
		}
		if errors.Is(err, errStopped) {
			s.setState(StateStopped)
			return
		}
		s.setState(StateFailed)
		s.logger.Debug("query failed", zap.Error(err), zap.String("kind", string(qerrors.KindOf(err))))
		yield(nil, err)
	}
}

func (s *Session) run(ctx context.Context, req Request, pageSize int, emit func(Frame) error) error {
	start := s.clock.Now()
	flags, err := ValidateFlags(req.JobConfig)
	if err != nil {
		return err
	}
	s.setState(StateFlagsValidated)
	s.phase("validate", start)

	start = s.clock.Now()
	dry, err := s.DryRun(ctx, req.Query, flags)
	if err != nil {
		return err
	}
	defer s.closeJob(ctx, dry)
	s.setState(StateDryRunDone)
	s.phase("dry_run", start)
	bytes := dry.TotalBytesProcessed()

	if req.DryRunOnly {
		jobID := dry.ID()
		if jobID == "" {
			jobID = engine.DryRunJobID
		}
		s.job.Store(&jobRef{job: dry})
		if err := emit(&JobFrame{Job: dry, JobID: jobID}); err != nil {
			return err
		}
		if err := emit(&ContentFrame{BytesProcessed: bytes}); err != nil {
			return err
		}
		s.setState(StateTerminatedDryRun)
		return nil
	}

	start = s.clock.Now()
	s.setState(StateExecuting)
	job, err := s.Execute(ctx, req.Query, flags)
	if err != nil {
		return err
	}
	defer s.closeJob(ctx, job)
	s.phase("submit", start)
	s.job.Store(&jobRef{job: job})
	if err := emit(&JobFrame{Job: job, JobID: job.ID()}); err != nil {
		return err
	}

	s.setState(StateStreaming)
	if err := s.Stream(ctx, job, bytes, pageSize, emit); err != nil {
		return err
	}
	s.setState(StateDone)
	return nil
}

// DryRun submits the validation pass under the request's project override.
// Structured engine errors are reduced to their first message.
func (s *Session) DryRun(ctx context.Context, query string, flags Flags) (engine.Job, error) {
	job, err := s.client.Submit(ctx, flags.Project, query, flags.DryRunConfig())
	if err != nil {
		return nil, submissionError("dry run failed", err)
	}
	return job, nil
}

// Execute submits the real job. A job carrying an error result fails with
// QueryExecutionFailed.
func (s *Session) Execute(ctx context.Context, query string, flags Flags) (engine.Job, error) {
	job, err := s.client.Submit(ctx, flags.Project, query, flags.JobConfig())
	if err != nil {
		return nil, submissionError("query submission failed", err)
	}
	if res := job.ErrorResult(); res != nil {
		s.closeJob(ctx, job)
		return nil, qerrors.Wrap(qerrors.QueryExecutionFailed, res.Message, res)
	}
	return job, nil
}

func (s *Session) closeJob(ctx context.Context, job engine.Job) {
	if err := job.Close(context.WithoutCancel(ctx)); err != nil {
		s.logger.Warn("close job", zap.String("job_id", job.ID()), zap.Error(err))
	}
}

// Stream emits one content frame per page of job, in arrival order. Labels and
// bytes are constant across frames.
func (s *Session) Stream(ctx context.Context, job engine.Job, bytesProcessed int64, pageSize int, emit func(Frame) error) error {
	if pageSize <= 0 {
		pageSize = DefaultPageSize
	}

	start := s.clock.Now()
	cursor, err := job.Pages(ctx, pageSize)
	if err != nil {
		return err
	}
	defer func() {
		if cerr := cursor.Close(context.WithoutCancel(ctx)); cerr != nil {
			s.logger.Warn("close cursor", zap.Error(cerr))
		}
	}()
	s.phase("open_cursor", start)

	dispatcher := rowformat.Dispatcher{Threshold: s.threshold}
	pool, err := s.newPool(s.poolSize)
	if err != nil {
		s.logger.Warn("formatting pool unavailable, formatting sequentially", zap.Error(err))
	} else {
		dispatcher.Pool = pool
		defer func() {
			if rerr := pool.Release(); rerr != nil {
				s.logger.Warn("release formatting pool", zap.Error(rerr))
			}
		}()
	}

	start = s.clock.Now()
	schema := cursor.Schema()
	labels := rowformat.Labels(schema)
	project := job.Project()
	s.phase("schema", start, zap.Int("columns", len(labels)))

	for n := 0; ; n++ {
		start = s.clock.Now()
		page, err := cursor.NextPage(ctx)
		if errors.Is(err, io.EOF) {
			return nil
		}
		if errors.Is(err, engine.ErrJobCancelled) {
			return qerrors.Wrap(qerrors.JobCancelled, "stream stopped after cancellation", err)
		}
		if err != nil {
			return err
		}
		s.phase("fetch", start, zap.Int("page", n), zap.Int("items", page.ItemCount))

		start = s.clock.Now()
		content, err := dispatcher.Format(ctx, page, schema)
		if err != nil {
			return qerrors.Wrap(qerrors.FormattingFailed, "format page "+strconv.Itoa(n), err)
		}
		s.phase("format", start, zap.Int("page", n))

		if err := emit(&ContentFrame{
			Content:        content,
			Labels:         labels,
			BytesProcessed: bytesProcessed,
			Project:        &project,
		}); err != nil {
			return err
		}
	}
}

func (s *Session) phase(name string, start time.Time, fields ...zap.Field) {
	if ce := s.logger.Check(zap.DebugLevel, "phase"); ce != nil {
		ce.Write(append(fields, zap.String("phase", name), zap.Duration("took", s.clock.Since(start)))...)
	}
}

// submissionError keeps only the first structured engine message, when there is one.
func submissionError(msg string, err error) error {
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return err
	}
	var ee *engine.Error
	if errors.As(err, &ee) && len(ee.Errors) > 0 {
		return qerrors.New(qerrors.EngineSubmissionFailed, ee.Errors[0].Message)
	}
	return qerrors.Wrap(qerrors.EngineSubmissionFailed, msg, err)
}

