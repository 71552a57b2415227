// Copyright (c) 2025 Seedfast
// Licensed under the MIT License. See LICENSE file in the project root for details.

package cmd

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"seedfast/pagedquery/internal/rowformat"
	"seedfast/pagedquery/internal/session"

	"github.com/spf13/cobra"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// newQueryFlags returns a command carrying the query flags, parsed from args.
func newQueryFlags(t *testing.T, args ...string) *cobra.Command {
	t.Helper()
	queryParams, queryArgs = nil, nil
	t.Cleanup(func() { queryParams, queryArgs = nil, nil })

	c := &cobra.Command{Use: "query"}
	f := c.Flags()
	f.StringVar(&queryProject, "project", "", "")
	f.Int64Var(&queryMaxBytes, "max-bytes-billed", 0, "")
	f.BoolVar(&queryLegacySQL, "legacy-sql", false, "")
	f.StringArrayVar(&queryParams, "param", nil, "")
	f.StringArrayVar(&queryArgs, "arg", nil, "")
	require.NoError(t, f.Parse(args))
	return c
}

func TestBuildJobConfigOnlyIncludesSetFlags(t *testing.T) {
	jc, err := buildJobConfig(newQueryFlags(t))
	require.NoError(t, err)
	assert.Empty(t, jc)

	jc, err = buildJobConfig(newQueryFlags(t, "--project", "analytics", "--max-bytes-billed", "1000", "--legacy-sql=false"))
	require.NoError(t, err)
	assert.Equal(t, map[string]any{
		session.FlagProject:            "analytics",
		session.FlagMaximumBytesBilled: int64(1000),
		session.FlagUseLegacySQL:       false,
	}, jc)

	flags, err := session.ValidateFlags(jc)
	require.NoError(t, err)
	assert.Equal(t, "analytics", flags.Project)
}

func TestBuildJobConfigParameters(t *testing.T) {
	jc, err := buildJobConfig(newQueryFlags(t, "--param", "day=\"2025-01-01\"", "--param", "n=3", "--param", "tags=[\"a\",\"b\"]", "--param", "raw=hello"))
	require.NoError(t, err)
	assert.Equal(t, map[string]any{
		"day":  "2025-01-01",
		"n":    float64(3),
		"tags": []any{"a", "b"},
		"raw":  "hello",
	}, jc[session.FlagParams])

	jc, err = buildJobConfig(newQueryFlags(t, "--arg", "1", "--arg", "true"))
	require.NoError(t, err)
	assert.Equal(t, []any{float64(1), true}, jc[session.FlagParams])

	_, err = buildJobConfig(newQueryFlags(t, "--arg", "1", "--param", "a=1"))
	assert.Error(t, err)

	_, err = buildJobConfig(newQueryFlags(t, "--param", "novalue"))
	assert.Error(t, err)
}

func TestParseValueNullStaysString(t *testing.T) {
	assert.Equal(t, "null", parseValue("null"))
	assert.Equal(t, "", parseValue(""))
}

func TestCollectQueries(t *testing.T) {
	dir := t.TempDir()
	file := filepath.Join(dir, "q.sql")
	require.NoError(t, os.WriteFile(file, []byte("  SELECT 2;\n"), 0o600))

	got, err := collectQueries([]string{"SELECT 1", "   "}, []string{file}, nil)
	require.NoError(t, err)
	assert.Equal(t, []string{"SELECT 1", "SELECT 2;"}, got)

	got, err = collectQueries(nil, nil, strings.NewReader("\nSELECT 3\n"))
	require.NoError(t, err)
	assert.Equal(t, []string{"SELECT 3"}, got)

	_, err = collectQueries(nil, nil, nil)
	assert.Error(t, err)

	_, err = collectQueries(nil, nil, strings.NewReader("  "))
	assert.Error(t, err)

	_, err = collectQueries(nil, []string{filepath.Join(dir, "missing.sql")}, nil)
	assert.Error(t, err)
}

func TestCellText(t *testing.T) {
	assert.Equal(t, "NULL", cellText(nil))
	assert.Equal(t, "a⏎b", cellText("a\nb"))
	assert.Equal(t, "42", cellText(int64(42)))
	assert.Equal(t, `[1,"x"]`, cellText([]any{1, "x"}))
	assert.Equal(t, `{"k":true}`, cellText(map[string]any{"k": true}))
}

func TestRenderTableTruncatesCells(t *testing.T) {
	labels := []rowformat.Label{{Name: "id"}, {Name: "description"}}
	out, err := renderTable(labels, [][]any{{int64(1), strings.Repeat("x", 200)}}, 40)
	require.NoError(t, err)
	assert.Contains(t, out, "description")
	assert.Contains(t, out, "…")
	assert.NotContains(t, out, strings.Repeat("x", 200))

	out, err = renderTable(nil, nil, 40)
	require.NoError(t, err)
	assert.Empty(t, out)
}

func TestPrinterJSONLines(t *testing.T) {
	var buf bytes.Buffer
	p := &printer{w: &buf, json: true}
	project := "public"

	p.job(1, &session.JobFrame{JobID: "job_1"})
	require.NoError(t, p.content(1, 1, &session.ContentFrame{
		Content:        [][]any{{int64(1)}},
		Labels:         []rowformat.Label{{Name: "n", Type: "INTEGER", Mode: "NULLABLE"}},
		BytesProcessed: 8,
		Project:        &project,
	}))

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	require.Len(t, lines, 2)

	var job map[string]any
	require.NoError(t, json.Unmarshal([]byte(lines[0]), &job))
	assert.Equal(t, "job", job["type"])
	assert.Equal(t, "job_1", job["jobId"])
	assert.NotContains(t, job, "content")

	var content map[string]any
	require.NoError(t, json.Unmarshal([]byte(lines[1]), &content))
	assert.Equal(t, "content", content["type"])
	assert.Equal(t, float64(8), content["bytesProcessed"])
	assert.Equal(t, "public", content["project"])
}
