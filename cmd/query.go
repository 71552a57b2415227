// Copyright (c) 2025 Seedfast
// Licensed under the MIT License. See LICENSE file in the project root for details.

package cmd

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"sync"
	"syscall"

	"seedfast/pagedquery/internal/config"
	"seedfast/pagedquery/internal/connerr"
	"seedfast/pagedquery/internal/dsn"
	"seedfast/pagedquery/internal/engine"
	"seedfast/pagedquery/internal/engine/pgengine"
	"seedfast/pagedquery/internal/keychain"
	"seedfast/pagedquery/internal/logging"
	"seedfast/pagedquery/internal/session"
	"seedfast/pagedquery/internal/shared"
	"seedfast/pagedquery/internal/terminal"

	"github.com/dustin/go-humanize"
	"github.com/pterm/pterm"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

var (
	queryFiles     []string
	queryDryRun    bool
	queryProject   string
	queryMaxBytes  int64
	queryLegacySQL bool
	queryParams    []string
	queryArgs      []string
	queryPageSize  int
	queryJSON      bool
)

// queryCmd runs one or more queries over a single shared connection pool.
var queryCmd = &cobra.Command{
	Use:   "query [SQL...]",
	Short: "Run SQL queries and stream their results",
	Long: `The query command runs each SQL argument (and each file given with -f) as its own
query; with neither, the query is read from stdin. Every query is first validated
with a dry run that estimates the bytes it will process; unless --dry-run is set,
it is then executed and its results are streamed page by page.

Queries run concurrently, sharing one database connection pool. Press Ctrl-C to
cancel all running queries.

Parameters are bound by name with --param name=value (referenced as @name) or by
position with --arg value (referenced as $1, $2, ...). Values are parsed as JSON
when possible, otherwise used as strings.`,
	Example: `  pagedquery query "SELECT * FROM events WHERE day = @day" --param day='"2025-01-01"'
  pagedquery query -f report.sql --project analytics --max-bytes-billed 1000000000
  pagedquery query --dry-run "SELECT count(*) FROM orders"`,
	RunE: runQueries,
}

func init() {
	rootCmd.AddCommand(queryCmd)
	f := queryCmd.Flags()
	f.StringArrayVarP(&queryFiles, "file", "f", nil, "Read a query from a file (repeatable)")
	f.BoolVar(&queryDryRun, "dry-run", false, "Only estimate the bytes the query would process")
	f.StringVar(&queryProject, "project", "", "Run against this schema instead of the default target")
	f.Int64Var(&queryMaxBytes, "max-bytes-billed", 0, "Fail queries estimated to process more bytes than this")
	f.BoolVar(&queryLegacySQL, "legacy-sql", false, "Request the legacy SQL dialect")
	f.StringArrayVar(&queryParams, "param", nil, "Named parameter name=value (repeatable)")
	f.StringArrayVar(&queryArgs, "arg", nil, "Positional parameter value (repeatable)")
	f.IntVar(&queryPageSize, "page-size", 0, "Rows per page (default from config)")
	f.BoolVar(&queryJSON, "json", false, "Print frames as JSON lines")
}

func runQueries(cmd *cobra.Command, args []string) error {
	var stdin io.Reader
	if len(args) == 0 && len(queryFiles) == 0 && !terminal.IsInteractive(os.Stdin) {
		stdin = os.Stdin
	}
	queries, err := collectQueries(args, queryFiles, stdin)
	if err != nil {
		return err
	}
	jobConfig, err := buildJobConfig(cmd)
	if err != nil {
		return err
	}

	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	logger, err := newLogger(cfg)
	if err != nil {
		return err
	}
	defer func() { _ = logger.Sync() }()

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	provider := shared.NewProvider(func(ctx context.Context) (engine.Engine, error) {
		return openEngine(ctx, cfg, logger)
	})
	defer provider.Close()

	interactive := !queryJSON && terminal.IsInteractive(os.Stdout)
	var spin *areaSpinner
	if interactive {
		spin = startAreaSpinner("connecting")
	}
	client, err := provider.Get(ctx)
	if err != nil {
		spin.Stop()
		return connerr.Present(errors.Unwrap(err), "opening the database")
	}
	spin.SetText(fmt.Sprintf("running %d %s", len(queries), plural(len(queries), "query", "queries")))

	pageSize := cfg.PageSize
	if queryPageSize > 0 {
		pageSize = queryPageSize
	}
	out := &printer{w: os.Stdout, json: queryJSON, width: terminal.Width(os.Stdout), spin: spin}

	var g errgroup.Group
	g.SetLimit(cfg.MaxConcurrent)
	var failed sync.Map
	for i, q := range queries {
		g.Go(func() error {
			req := session.Request{Query: q, JobConfig: jobConfig, DryRunOnly: queryDryRun}
			if err := runOne(ctx, client, cfg, logger, out, i+1, req, pageSize); err != nil {
				failed.Store(i, err)
				out.failure(i+1, q, err)
			}
			return nil
		})
	}
	_ = g.Wait()
	spin.Stop()

	n := 0
	failed.Range(func(_, _ any) bool { n++; return true })
	if n > 0 {
		return fmt.Errorf("%d of %d %s failed", n, len(queries), plural(len(queries), "query", "queries"))
	}
	return nil
}

// runOne streams one request through its own session. Cancelling ctx cancels the
// session's job once it has been announced.
func runOne(ctx context.Context, client *shared.Client, cfg config.Config, logger *zap.Logger, out *printer, idx int, req session.Request, pageSize int) error {
	s := session.New(client,
		session.WithLogger(logger.With(zap.Int("query", idx))),
		session.WithParallelThreshold(cfg.ParallelThreshold),
		session.WithPoolSize(cfg.PoolSize),
	)
	stopCancel := context.AfterFunc(ctx, func() {
		if err := s.Cancel(context.WithoutCancel(ctx)); err != nil {
			logger.Warn("cancel job", zap.Int("query", idx), zap.Error(err))
		}
	})
	defer stopCancel()

	page := 0
	for frame, err := range s.Frames(ctx, req, pageSize) {
		if err != nil {
			return err
		}
		switch f := frame.(type) {
		case *session.JobFrame:
			out.job(idx, f)
		case *session.ContentFrame:
			if req.DryRunOnly {
				out.estimate(idx, f)
				continue
			}
			page++
			if err := out.content(idx, page, f); err != nil {
				return err
			}
		}
	}
	return nil
}

func openEngine(ctx context.Context, cfg config.Config, logger *zap.Logger) (engine.Engine, error) {
	var store dsn.Store
	if km, err := keychain.GetManager(); err == nil {
		store = km
	} else {
		logger.Debug("keychain unavailable", zap.Error(err))
	}
	conn, src, err := dsn.Resolve(store)
	if err != nil {
		return nil, fmt.Errorf("%w; set %s or run 'pagedquery connect'", err, dsn.EnvDSN)
	}
	logger.Debug("using DSN", zap.String("source", string(src)), zap.String("dsn", dsn.Redact(conn)))

	e, err := pgengine.Open(ctx, conn, logger)
	if err != nil {
		return nil, err
	}
	if cfg.DefaultTarget != "" {
		e.SetTarget(cfg.DefaultTarget)
	}
	return e, nil
}

// collectQueries gathers one query per argument and per file. stdin, when non-nil,
// is read as one more query.
func collectQueries(args, files []string, stdin io.Reader) ([]string, error) {
	var queries []string
	for _, a := range args {
		if q := strings.TrimSpace(a); q != "" {
			queries = append(queries, q)
		}
	}
	for _, name := range files {
		b, err := os.ReadFile(name)
		if err != nil {
			return nil, fmt.Errorf("read query file: %w", err)
		}
		if q := strings.TrimSpace(string(b)); q != "" {
			queries = append(queries, q)
		}
	}
	if stdin != nil {
		b, err := io.ReadAll(stdin)
		if err != nil {
			return nil, fmt.Errorf("read query from stdin: %w", err)
		}
		if q := strings.TrimSpace(string(b)); q != "" {
			queries = append(queries, q)
		}
	}
	if len(queries) == 0 {
		return nil, errors.New("no query given; pass SQL as an argument, with -f or on stdin")
	}
	return queries, nil
}

// buildJobConfig turns the command flags into the loosely typed job configuration
// a session validates. Only flags the user set are included.
func buildJobConfig(cmd *cobra.Command) (map[string]any, error) {
	jc := map[string]any{}
	flags := cmd.Flags()
	if flags.Changed("max-bytes-billed") {
		jc[session.FlagMaximumBytesBilled] = queryMaxBytes
	}
	if flags.Changed("legacy-sql") {
		jc[session.FlagUseLegacySQL] = queryLegacySQL
	}
	if flags.Changed("project") {
		jc[session.FlagProject] = queryProject
	}

	switch {
	case len(queryParams) > 0 && len(queryArgs) > 0:
		return nil, errors.New("use either --param or --arg, not both")
	case len(queryParams) > 0:
		named := make(map[string]any, len(queryParams))
		for _, p := range queryParams {
			name, value, ok := strings.Cut(p, "=")
			if !ok || strings.TrimSpace(name) == "" {
				return nil, fmt.Errorf("invalid --param %q, want name=value", p)
			}
			named[strings.TrimSpace(name)] = parseValue(value)
		}
		jc[session.FlagParams] = named
	case len(queryArgs) > 0:
		positional := make([]any, 0, len(queryArgs))
		for _, a := range queryArgs {
			positional = append(positional, parseValue(a))
		}
		jc[session.FlagParams] = positional
	}
	return jc, nil
}

// parseValue decodes s as JSON, falling back to the raw string.
func parseValue(s string) any {
	var v any
	if err := json.Unmarshal([]byte(s), &v); err != nil || v == nil {
		return s
	}
	return v
}

func plural(n int, one, many string) string {
	if n == 1 {
		return one
	}
	return many
}

// printer serializes output of concurrently running queries.
type printer struct {
	mu    sync.Mutex
	w     io.Writer
	json  bool
	width int
	spin  *areaSpinner
}

type jsonFrame struct {
	Query int    `json:"query"`
	Type  string `json:"type"`
	Error string `json:"error,omitempty"`
	*session.JobFrame
	*session.ContentFrame
}

func (p *printer) emit(f jsonFrame) error {
	return json.NewEncoder(p.w).Encode(f)
}

func (p *printer) job(idx int, f *session.JobFrame) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.json {
		_ = p.emit(jsonFrame{Query: idx, Type: "job", JobFrame: f})
		return
	}
	p.spin.Stop()
	pterm.Println(pterm.NewStyle(pterm.FgLightCyan).Sprintf("→ Query %d: job %s", idx, f.JobID))
}

func (p *printer) estimate(idx int, f *session.ContentFrame) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.json {
		_ = p.emit(jsonFrame{Query: idx, Type: "content", ContentFrame: f})
		return
	}
	pterm.Printf("  Query %d would process %s\n", idx, humanize.Bytes(uint64(max(f.BytesProcessed, 0))))
}

func (p *printer) content(idx, page int, f *session.ContentFrame) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.json {
		return p.emit(jsonFrame{Query: idx, Type: "content", ContentFrame: f})
	}
	project := ""
	if f.Project != nil {
		project = *f.Project
	}
	pterm.Println(pterm.NewStyle(pterm.FgGray).Sprintf("  Query %d · %s · page %d · %d %s · %s processed",
		idx, project, page, len(f.Content), plural(len(f.Content), "row", "rows"),
		humanize.Bytes(uint64(max(f.BytesProcessed, 0)))))
	table, err := renderTable(f.Labels, f.Content, p.width)
	if err != nil {
		return err
	}
	pterm.Println(table)
	return nil
}

func (p *printer) failure(idx int, query string, err error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.json {
		_ = p.emit(jsonFrame{Query: idx, Type: "error", Error: logging.Mask(err.Error())})
		return
	}
	p.spin.Stop()
	logging.PresentQueryError(query, err)
}
