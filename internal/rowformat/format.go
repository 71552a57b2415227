// Copyright (c) 2025 Seedfast
// Licensed under the MIT License. See LICENSE file in the project root for details.

// Package rowformat turns raw engine rows into transport-ready values.
//
// Formatting is pure and applied independently to each row, which is what makes the
// parallel strategy safe: rows are split across workers and written back by index.
package rowformat

import (
	"database/sql/driver"
	"encoding/base64"
	"fmt"
	"math/big"
	"time"

	"seedfast/pagedquery/internal/engine"

	"github.com/google/uuid"
)

// Label is the transport form of one schema field.
type Label struct {
	Name   string  `json:"name"`
	Type   string  `json:"type"`
	Mode   string  `json:"mode"`
	Fields []Label `json:"fields,omitempty"`
}

// Labels formats a schema. It is computed once per job.
func Labels(schema engine.Schema) []Label {
	return labels(schema.Fields)
}

func labels(fields []engine.Field) []Label {
	out := make([]Label, len(fields))
	for i, f := range fields {
		mode := f.Mode
		if mode == "" {
			mode = engine.ModeNullable
		}
		out[i] = Label{Name: f.Name, Type: string(f.Type), Mode: string(mode)}
		if len(f.Fields) > 0 {
			out[i].Fields = labels(f.Fields)
		}
	}
	return out
}

// Row formats one row against schema.
func Row(row []any, schema engine.Schema) ([]any, error) {
	return record(row, schema.Fields)
}

// Rows formats rows sequentially.
func Rows(rows [][]any, schema engine.Schema) ([][]any, error) {
	out := make([][]any, len(rows))
	if err := rowsInto(out, rows, schema, 0, len(rows)); err != nil {
		return nil, err
	}
	return out, nil
}

// rowsInto formats rows[lo:hi] into out[lo:hi].
func rowsInto(out, rows [][]any, schema engine.Schema, lo, hi int) error {
	for i := lo; i < hi; i++ {
		r, err := Row(rows[i], schema)
		if err != nil {
			return fmt.Errorf("row %d: %w", i, err)
		}
		out[i] = r
	}
	return nil
}

func record(row []any, fields []engine.Field) ([]any, error) {
	if len(fields) > 0 && len(row) != len(fields) {
		return nil, fmt.Errorf("row has %d values, schema has %d fields", len(row), len(fields))
	}
	out := make([]any, len(row))
	for i, v := range row {
		if len(fields) == 0 {
			out[i] = scalar(v, "")
			continue
		}
		c, err := cell(v, fields[i])
		if err != nil {
			return nil, fmt.Errorf("field %q: %w", fields[i].Name, err)
		}
		out[i] = c
	}
	return out, nil
}

func cell(v any, f engine.Field) (any, error) {
	if v == nil {
		return nil, nil
	}
	if f.Mode == engine.ModeRepeated {
		items, ok := v.([]any)
		if !ok {
			return nil, fmt.Errorf("repeated field holds %T", v)
		}
		elem := f
		elem.Mode = engine.ModeNullable
		out := make([]any, len(items))
		for i, it := range items {
			c, err := cell(it, elem)
			if err != nil {
				return nil, err
			}
			out[i] = c
		}
		return out, nil
	}
	if f.Type == engine.TypeRecord {
		return nested(v, f.Fields)
	}
	return scalar(v, f.Type), nil
}

func nested(v any, fields []engine.Field) (any, error) {
	switch rec := v.(type) {
	case map[string]any:
		out := make(map[string]any, len(rec))
		for _, f := range fields {
			c, err := cell(rec[f.Name], f)
			if err != nil {
				return nil, err
			}
			out[f.Name] = c
		}
		return out, nil
	case []any:
		vals, err := record(rec, fields)
		if err != nil {
			return nil, err
		}
		out := make(map[string]any, len(fields))
		for i, f := range fields {
			out[f.Name] = vals[i]
		}
		return out, nil
	}
	return nil, fmt.Errorf("record field holds %T", v)
}

func scalar(v any, t engine.FieldType) any {
	switch x := v.(type) {
	case nil:
		return nil
	case []byte:
		if len(x) == 16 && (t == engine.TypeUUID || t == "") {
			return uuid.UUID(x).String()
		}
		return base64.StdEncoding.EncodeToString(x)
	case [16]byte:
		return uuid.UUID(x).String()
	case uuid.UUID:
		return x.String()
	case time.Time:
		switch t {
		case engine.TypeDate:
			return x.Format(time.DateOnly)
		case engine.TypeTime:
			return x.Format("15:04:05.999999")
		}
		return x.UTC().Format(time.RFC3339Nano)
	case time.Duration:
		return x.String()
	case *big.Int:
		return x.String()
	case *big.Rat:
		return x.FloatString(9)
	case driver.Valuer:
		if dv, err := x.Value(); err == nil {
			return scalar(dv, t)
		}
	case fmt.Stringer:
		return x.String()
	}
	return v
}
