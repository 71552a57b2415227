// Copyright (c) 2025 Seedfast
// Licensed under the MIT License. See LICENSE file in the project root for details.

package rowformat

import (
	"context"
	"errors"
	"testing"
	"time"

	"seedfast/pagedquery/internal/engine"
	"seedfast/pagedquery/internal/workerpool"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var testSchema = engine.Schema{Fields: []engine.Field{
	{Name: "id", Type: engine.TypeInteger, Mode: engine.ModeRequired},
	{Name: "name", Type: engine.TypeString},
}}

func TestLabels(t *testing.T) {
	schema := engine.Schema{Fields: []engine.Field{
		{Name: "id", Type: engine.TypeInteger, Mode: engine.ModeRequired},
		{Name: "addr", Type: engine.TypeRecord, Fields: []engine.Field{
			{Name: "city", Type: engine.TypeString},
		}},
	}}

	got := Labels(schema)
	want := []Label{
		{Name: "id", Type: "INTEGER", Mode: "REQUIRED"},
		{Name: "addr", Type: "RECORD", Mode: "NULLABLE", Fields: []Label{
			{Name: "city", Type: "STRING", Mode: "NULLABLE"},
		}},
	}
	assert.Equal(t, want, got)
}

func TestRowCells(t *testing.T) {
	ts := time.Date(2024, 3, 1, 12, 30, 0, 0, time.FixedZone("X", 3600))
	id := [16]byte{0x12, 0x3e, 0x45, 0x67, 0xe8, 0x9b, 0x12, 0xd3, 0xa4, 0x56, 0x42, 0x66, 0x14, 0x17, 0x40, 0x00}

	tests := []struct {
		name  string
		field engine.Field
		in    any
		want  any
	}{
		{name: "null", field: engine.Field{Type: engine.TypeString}, in: nil, want: nil},
		{name: "string", field: engine.Field{Type: engine.TypeString}, in: "x", want: "x"},
		{name: "bytes", field: engine.Field{Type: engine.TypeBytes}, in: []byte("hi"), want: "aGk="},
		{name: "uuid array", field: engine.Field{Type: engine.TypeUUID}, in: id, want: "123e4567-e89b-12d3-a456-426614174000"},
		{name: "uuid bytes", field: engine.Field{Type: engine.TypeUUID}, in: id[:], want: "123e4567-e89b-12d3-a456-426614174000"},
		{name: "timestamp", field: engine.Field{Type: engine.TypeTimestamp}, in: ts, want: "2024-03-01T11:30:00Z"},
		{name: "date", field: engine.Field{Type: engine.TypeDate}, in: ts, want: "2024-03-01"},
		{name: "repeated", field: engine.Field{Type: engine.TypeInteger, Mode: engine.ModeRepeated}, in: []any{int64(1), int64(2)}, want: []any{int64(1), int64(2)}},
		{
			name:  "record",
			field: engine.Field{Type: engine.TypeRecord, Fields: []engine.Field{{Name: "a", Type: engine.TypeBytes}}},
			in:    map[string]any{"a": []byte("hi")},
			want:  map[string]any{"a": "aGk="},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tt.field.Name = "c"
			got, err := Row([]any{tt.in}, engine.Schema{Fields: []engine.Field{tt.field}})
			require.NoError(t, err)
			assert.Equal(t, []any{tt.want}, got)
		})
	}
}

func TestRowRejectsWidthMismatch(t *testing.T) {
	_, err := Rows([][]any{{int64(1)}}, testSchema)
	require.Error(t, err)
}

func page(n int) *engine.Page {
	rows := make([][]any, n)
	for i := range rows {
		rows[i] = []any{int64(i), []byte{byte(i), byte(i >> 8)}}
	}
	return &engine.Page{Rows: rows, ItemCount: n}
}

func TestSequentialAndParallelAgree(t *testing.T) {
	pool, err := workerpool.New(workerpool.DefaultSize)
	require.NoError(t, err)
	defer pool.Release()

	schema := engine.Schema{Fields: []engine.Field{
		{Name: "id", Type: engine.TypeInteger},
		{Name: "raw", Type: engine.TypeBytes},
	}}
	for _, n := range []int{0, 1, 7, 1000, DefaultThreshold + 1} {
		p := page(n)
		seq, err := Sequential{}.Format(context.Background(), p, schema)
		require.NoError(t, err)
		par, err := Parallel{Pool: pool}.Format(context.Background(), p, schema)
		require.NoError(t, err)
		require.Equal(t, seq, par, "n=%d", n)
	}
}

type countingMapper struct {
	calls int
	inner Mapper
}

func (m *countingMapper) Map(ctx context.Context, n int, fn func(ctx context.Context, lo, hi int) error) error {
	m.calls++
	return m.inner.Map(ctx, n, fn)
}

func TestDispatcherSelectsByThreshold(t *testing.T) {
	pool, err := workerpool.New(2)
	require.NoError(t, err)
	defer pool.Release()

	tests := []struct {
		name      string
		threshold int
		items     int
		pool      bool
		parallel  bool
	}{
		{name: "at threshold stays sequential", threshold: 10, items: 10, pool: true, parallel: false},
		{name: "above threshold uses pool", threshold: 10, items: 11, pool: true, parallel: true},
		{name: "no pool", threshold: 10, items: 50, pool: false, parallel: false},
		{name: "default threshold", threshold: 0, items: DefaultThreshold, pool: true, parallel: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m := &countingMapper{inner: pool}
			d := Dispatcher{Threshold: tt.threshold}
			if tt.pool {
				d.Pool = m
			}
			p := &engine.Page{ItemCount: tt.items}
			_, isParallel := d.Select(p).(Parallel)
			assert.Equal(t, tt.parallel, isParallel)

			_, err := d.Format(context.Background(), page(tt.items), testSchema2)
			require.NoError(t, err)
			if tt.parallel {
				assert.Equal(t, 1, m.calls)
			} else {
				assert.Zero(t, m.calls)
			}
		})
	}
}

var testSchema2 = engine.Schema{Fields: []engine.Field{
	{Name: "id", Type: engine.TypeInteger},
	{Name: "raw", Type: engine.TypeBytes},
}}

type failingMapper struct{}

func (failingMapper) Map(ctx context.Context, n int, fn func(ctx context.Context, lo, hi int) error) error {
	if err := fn(ctx, 0, n/2); err != nil {
		return err
	}
	return errors.New("worker died")
}

func TestParallelFailureFailsWholePage(t *testing.T) {
	out, err := Parallel{Pool: failingMapper{}}.Format(context.Background(), page(10), testSchema2)
	require.Error(t, err)
	assert.Nil(t, out)
}
