// Copyright (c) 2025 Seedfast
// Licensed under the MIT License. See LICENSE file in the project root for details.

package pgengine

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strconv"
	"sync"
	"sync/atomic"

	"seedfast/pagedquery/internal/engine"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"
)

// queryCanceled is the SQLSTATE raised when a statement is cancelled.
const queryCanceled = "57014"

// job owns one connection and one open transaction holding the declared cursor.
type job struct {
	id        string
	project   string
	bytes     int64
	errResult *engine.ErrorDetail
	cursor    string
	logger    *zap.Logger

	cancelled atomic.Bool
	opened    atomic.Bool

	mu       sync.Mutex
	conn     *pgxpool.Conn
	tx       pgx.Tx
	finished bool
}

func (j *job) ID() string                       { return j.id }
func (j *job) Project() string                  { return j.project }
func (j *job) ErrorResult() *engine.ErrorDetail { return j.errResult }
func (j *job) TotalBytesProcessed() int64       { return j.bytes }

// Pages opens the job's only cursor. The first page is fetched eagerly so the
// schema is known before any page is returned.
func (j *job) Pages(ctx context.Context, pageSize int) (engine.Cursor, error) {
	if j.errResult != nil {
		return nil, j.errResult
	}
	if !j.opened.CompareAndSwap(false, true) {
		return nil, errors.New("job cursor already opened")
	}
	if pageSize <= 0 {
		return nil, fmt.Errorf("page size must be positive, got %d", pageSize)
	}
	c := &cursor{job: j, fetch: "FETCH FORWARD " + strconv.Itoa(pageSize) + " FROM " + j.cursor}
	c.read = func(ctx context.Context) (*engine.Page, error) {
		page, _, err := c.fetchPage(ctx)
		return page, err
	}
	first, fields, err := c.fetchPage(ctx)
	if err != nil {
		j.release(context.WithoutCancel(ctx))
		return nil, err
	}
	c.schema = schemaOf(fields, j.typeName)
	c.buffered = first
	return c, nil
}

// Cancel sends a cancel request for the statement running on the job's connection
// and makes the cursor stop at its next fetch. Repeated calls send nothing.
func (j *job) Cancel(ctx context.Context) error {
	j.mu.Lock()
	defer j.mu.Unlock()

	if j.finished {
		return engine.ErrJobDone
	}
	if !j.cancelled.CompareAndSwap(false, true) {
		return nil
	}
	j.logger.Debug("cancel job", zap.String("job_id", j.id))
	return j.conn.Conn().PgConn().CancelRequest(ctx)
}

// Close ends the transaction and returns the connection, whether or not the
// cursor was ever opened.
func (j *job) Close(ctx context.Context) error {
	j.release(ctx)
	return nil
}

// release closes the cursor, ends the transaction and returns the connection.
func (j *job) release(ctx context.Context) {
	j.mu.Lock()
	if j.finished {
		j.mu.Unlock()
		return
	}
	j.finished = true
	conn, tx := j.conn, j.tx
	j.mu.Unlock()

	if tx != nil {
		_ = tx.Rollback(ctx)
	}
	if conn != nil {
		conn.Release()
	}
}

func (j *job) typeName(oid uint32) string {
	if t, ok := j.conn.Conn().TypeMap().TypeForOID(oid); ok {
		return t.Name
	}
	return ""
}

type cursor struct {
	job      *job
	fetch    string
	schema   engine.Schema
	buffered *engine.Page
	read     func(ctx context.Context) (*engine.Page, error)
	pages    int
	done     bool
}

func (c *cursor) Schema() engine.Schema { return c.schema }

func (c *cursor) NextPage(ctx context.Context) (*engine.Page, error) {
	if c.done {
		return nil, io.EOF
	}
	// The eagerly fetched page is handed out even after a cancel.
	page := c.buffered
	c.buffered = nil
	if page == nil {
		if c.job.cancelled.Load() {
			return nil, engine.ErrJobCancelled
		}
		var err error
		if page, err = c.read(ctx); err != nil {
			return nil, err
		}
	}
	// An empty result still yields one empty page so callers get the labels.
	if page.ItemCount == 0 && c.pages > 0 {
		c.done = true
		return nil, io.EOF
	}
	c.pages++
	return page, nil
}

func (c *cursor) fetchPage(ctx context.Context) (*engine.Page, []pgconn.FieldDescription, error) {
	rows, err := c.job.tx.Query(ctx, c.fetch)
	if err != nil {
		return nil, nil, c.fetchError(err)
	}
	defer rows.Close()

	fields := rows.FieldDescriptions()
	page := &engine.Page{}
	for rows.Next() {
		vals, err := rows.Values()
		if err != nil {
			return nil, nil, c.fetchError(err)
		}
		page.Rows = append(page.Rows, vals)
	}
	if err := rows.Err(); err != nil {
		return nil, nil, c.fetchError(err)
	}
	page.ItemCount = len(page.Rows)
	return page, fields, nil
}

func (c *cursor) fetchError(err error) error {
	var pgErr *pgconn.PgError
	if c.job.cancelled.Load() || (errors.As(err, &pgErr) && pgErr.Code == queryCanceled) {
		return engine.ErrJobCancelled
	}
	return toEngineError(err)
}

func (c *cursor) Close(ctx context.Context) error {
	c.done = true
	c.job.release(ctx)
	return nil
}
