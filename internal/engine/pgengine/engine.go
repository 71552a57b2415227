// Copyright (c) 2025 Seedfast
// Licensed under the MIT License. See LICENSE file in the project root for details.

// Package pgengine implements engine.Engine over a pgx connection pool.
//
// The engine target is a PostgreSQL schema, applied with SET LOCAL search_path inside
// the job's transaction so it never outlives the submission. Dry runs are answered
// from EXPLAIN (FORMAT JSON); real jobs declare a server-side cursor in a read-only
// transaction that stays open on its own connection until the cursor is closed.
//
// SQL statements should generally use schema-qualified names; the target only
// changes unqualified name resolution.
package pgengine

import (
	"context"
	"encoding/json"
	"fmt"
	"math"
	"strings"

	"seedfast/pagedquery/internal/engine"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"
)

// Engine executes queries using a connection pool.
type Engine struct {
	// Pool is the PostgreSQL connection pool
	Pool   *pgxpool.Pool
	target string
	logger *zap.Logger
}

// Open connects to dsn and uses the connection's current schema as the target.
func Open(ctx context.Context, dsn string, logger *zap.Logger) (*Engine, error) {
	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return nil, err
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, err
	}
	var schema string
	if err := pool.QueryRow(ctx, "SELECT current_schema()").Scan(&schema); err != nil {
		pool.Close()
		return nil, fmt.Errorf("resolve current schema: %w", err)
	}
	return New(pool, schema, logger), nil
}

// New creates an Engine from an existing pgx pool.
func New(pool *pgxpool.Pool, target string, logger *zap.Logger) *Engine {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Engine{Pool: pool, target: target, logger: logger}
}

func (e *Engine) Target() string          { return e.target }
func (e *Engine) SetTarget(target string) { e.target = target }

// Close closes the pool.
func (e *Engine) Close() { e.Pool.Close() }

// SubmitQuery runs a dry run or declares the job's cursor.
func (e *Engine) SubmitQuery(ctx context.Context, text string, cfg engine.JobConfig) (engine.Job, error) {
	if cfg.UseLegacySQL != nil && *cfg.UseLegacySQL {
		return nil, &engine.Error{Errors: []engine.ErrorDetail{{
			Reason:  "invalid",
			Message: "legacy SQL dialect is not supported by PostgreSQL targets",
		}}}
	}
	args, err := bindArgs(cfg.Parameters)
	if err != nil {
		return nil, &engine.Error{Errors: []engine.ErrorDetail{{Reason: "invalidParameter", Message: err.Error()}}, Err: err}
	}
	text = strings.TrimRight(strings.TrimSpace(text), ";")
	target := e.target

	if cfg.DryRun {
		return e.dryRun(ctx, target, text, args)
	}
	return e.execute(ctx, target, text, args, cfg)
}

func (e *Engine) dryRun(ctx context.Context, target, text string, args []any) (engine.Job, error) {
	conn, err := e.Pool.Acquire(ctx)
	if err != nil {
		return nil, err
	}
	defer conn.Release()

	tx, err := conn.BeginTx(ctx, pgx.TxOptions{AccessMode: pgx.ReadOnly})
	if err != nil {
		return nil, toEngineError(err)
	}
	defer tx.Rollback(context.WithoutCancel(ctx))

	if err := setTarget(ctx, tx, target); err != nil {
		return nil, toEngineError(err)
	}
	bytes, err := estimate(ctx, tx, text, args)
	if err != nil {
		return nil, toEngineError(err)
	}
	e.logger.Debug("dry run", zap.String("target", target), zap.Int64("bytes", bytes))
	return &dryRunJob{project: target, bytes: bytes}, nil
}

func (e *Engine) execute(ctx context.Context, target, text string, args []any, cfg engine.JobConfig) (engine.Job, error) {
	conn, err := e.Pool.Acquire(ctx)
	if err != nil {
		return nil, err
	}
	tx, err := conn.BeginTx(ctx, pgx.TxOptions{AccessMode: pgx.ReadOnly})
	if err != nil {
		conn.Release()
		return nil, toEngineError(err)
	}
	j := &job{
		id:      "job_" + strings.ReplaceAll(uuid.NewString(), "-", ""),
		project: target,
		conn:    conn,
		tx:      tx,
		cursor:  pgx.Identifier{"pq_" + strings.ReplaceAll(uuid.NewString(), "-", "")}.Sanitize(),
		logger:  e.logger,
	}
	fail := func(err error) (engine.Job, error) {
		j.release(context.WithoutCancel(ctx))
		return nil, toEngineError(err)
	}

	if err := setTarget(ctx, tx, target); err != nil {
		return fail(err)
	}
	if cfg.MaximumBytesBilled != nil {
		bytes, err := estimate(ctx, tx, text, args)
		if err != nil {
			return fail(err)
		}
		j.bytes = bytes
		if bytes > *cfg.MaximumBytesBilled {
			j.release(context.WithoutCancel(ctx))
			j.errResult = &engine.ErrorDetail{
				Reason:  "bytesBilledLimitExceeded",
				Message: fmt.Sprintf("Query exceeded limit for bytes billed: %d. %d or higher required.", *cfg.MaximumBytesBilled, bytes),
			}
			return j, nil
		}
	}

	declare := "DECLARE " + j.cursor + " NO SCROLL CURSOR FOR " + text
	if _, err := tx.Exec(ctx, declare, withMode(args)...); err != nil {
		return fail(err)
	}
	e.logger.Debug("job declared", zap.String("job_id", j.id), zap.String("target", target))
	return j, nil
}

func setTarget(ctx context.Context, tx pgx.Tx, target string) error {
	if target == "" {
		return nil
	}
	_, err := tx.Exec(ctx, "SET LOCAL search_path TO "+pgx.Identifier{target}.Sanitize())
	return err
}

// explainOutput is the root of EXPLAIN (FORMAT JSON).
type explainOutput []struct {
	Plan struct {
		PlanRows  float64 `json:"Plan Rows"`
		PlanWidth float64 `json:"Plan Width"`
	} `json:"Plan"`
}

func estimate(ctx context.Context, tx pgx.Tx, text string, args []any) (int64, error) {
	var raw []byte
	if err := tx.QueryRow(ctx, "EXPLAIN (FORMAT JSON) "+text, withMode(args)...).Scan(&raw); err != nil {
		return 0, err
	}
	return parseExplain(raw)
}

// parseExplain estimates bytes scanned as the root plan's rows times its row width.
func parseExplain(raw []byte) (int64, error) {
	var out explainOutput
	if err := json.Unmarshal(raw, &out); err != nil {
		return 0, fmt.Errorf("decode plan: %w", err)
	}
	if len(out) == 0 {
		return 0, fmt.Errorf("decode plan: empty plan")
	}
	bytes := out[0].Plan.PlanRows * out[0].Plan.PlanWidth
	if bytes >= math.MaxInt64 {
		return math.MaxInt64, nil
	}
	return int64(math.Ceil(bytes)), nil
}

// withMode prefixes args with the simple protocol mode. EXPLAIN and DECLARE are
// utility statements, so parameters are interpolated client-side by pgx.
func withMode(args []any) []any {
	return append([]any{pgx.QueryExecModeSimpleProtocol}, args...)
}

// dryRunJob only carries statistics.
type dryRunJob struct {
	project string
	bytes   int64
}

func (j *dryRunJob) ID() string                       { return "" }
func (j *dryRunJob) Project() string                  { return j.project }
func (j *dryRunJob) ErrorResult() *engine.ErrorDetail { return nil }
func (j *dryRunJob) TotalBytesProcessed() int64       { return j.bytes }
func (j *dryRunJob) Cancel(ctx context.Context) error { return nil }
func (j *dryRunJob) Close(ctx context.Context) error  { return nil }
func (j *dryRunJob) Pages(ctx context.Context, pageSize int) (engine.Cursor, error) {
	return nil, fmt.Errorf("dry-run job has no results")
}
