// Copyright (c) 2025 Seedfast
// Licensed under the MIT License. See LICENSE file in the project root for details.

package pgengine

import (
	"encoding/json"
	"errors"
	"fmt"
	"strconv"

	"seedfast/pagedquery/internal/engine"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgtype"
)

// scalarTypes maps column type OIDs onto field types. Unlisted types are STRING.
var scalarTypes = map[uint32]engine.FieldType{
	pgtype.BoolOID:        engine.TypeBoolean,
	pgtype.ByteaOID:       engine.TypeBytes,
	pgtype.Int2OID:        engine.TypeInteger,
	pgtype.Int4OID:        engine.TypeInteger,
	pgtype.Int8OID:        engine.TypeInteger,
	pgtype.Float4OID:      engine.TypeFloat,
	pgtype.Float8OID:      engine.TypeFloat,
	pgtype.NumericOID:     engine.TypeNumeric,
	pgtype.DateOID:        engine.TypeDate,
	pgtype.TimeOID:        engine.TypeTime,
	pgtype.TimestampOID:   engine.TypeTimestamp,
	pgtype.TimestamptzOID: engine.TypeTimestamp,
	pgtype.UUIDOID:        engine.TypeUUID,
	pgtype.JSONOID:        engine.TypeJSON,
	pgtype.JSONBOID:       engine.TypeJSON,
}

var arrayTypes = map[uint32]engine.FieldType{
	pgtype.BoolArrayOID:   engine.TypeBoolean,
	pgtype.Int4ArrayOID:   engine.TypeInteger,
	pgtype.Int8ArrayOID:   engine.TypeInteger,
	pgtype.Float8ArrayOID: engine.TypeFloat,
	pgtype.TextArrayOID:   engine.TypeString,
}

// schemaOf builds the result schema from the FETCH field descriptions. typeName
// resolves array OIDs registered on the connection but not listed above.
func schemaOf(fields []pgconn.FieldDescription, typeName func(uint32) string) engine.Schema {
	out := engine.Schema{Fields: make([]engine.Field, 0, len(fields))}
	for _, fd := range fields {
		out.Fields = append(out.Fields, fieldOf(fd.Name, fd.DataTypeOID, typeName))
	}
	return out
}

func fieldOf(name string, oid uint32, typeName func(uint32) string) engine.Field {
	if t, ok := arrayTypes[oid]; ok {
		return engine.Field{Name: name, Type: t, Mode: engine.ModeRepeated}
	}
	if t, ok := scalarTypes[oid]; ok {
		return engine.Field{Name: name, Type: t, Mode: engine.ModeNullable}
	}
	if typeName != nil {
		if n := typeName(oid); len(n) > 1 && n[0] == '_' {
			return engine.Field{Name: name, Type: engine.TypeString, Mode: engine.ModeRepeated}
		}
	}
	return engine.Field{Name: name, Type: engine.TypeString, Mode: engine.ModeNullable}
}

// bindArgs converts query parameters into pgx arguments. Named parameters become
// pgx.NamedArgs referenced as @name; positional ones are $1, $2, ...
func bindArgs(params []engine.Parameter) ([]any, error) {
	if len(params) == 0 {
		return nil, nil
	}
	if engine.Named(params) {
		named := make(pgx.NamedArgs, len(params))
		for _, p := range params {
			v, err := argValue(p)
			if err != nil {
				return nil, fmt.Errorf("parameter %s: %w", p.Name, err)
			}
			named[p.Name] = v
		}
		return []any{named}, nil
	}
	args := make([]any, 0, len(params))
	for i, p := range params {
		v, err := argValue(p)
		if err != nil {
			return nil, fmt.Errorf("parameter $%d: %w", i+1, err)
		}
		args = append(args, v)
	}
	return args, nil
}

func argValue(p engine.Parameter) (any, error) {
	switch p.Type {
	case engine.ParamStruct:
		b, err := json.Marshal(p.Value)
		if err != nil {
			return nil, err
		}
		return string(b), nil
	case engine.ParamArray:
		items, ok := p.Value.([]any)
		if !ok || len(items) == 0 {
			return nil, errors.New("array parameter must be a non-empty list")
		}
		return typedSlice(items)
	default:
		return p.Value, nil
	}
}

// typedSlice converts a uniform []any into a slice pgx can encode without an OID hint.
func typedSlice(items []any) (any, error) {
	switch items[0].(type) {
	case bool:
		return convert[bool](items)
	case string:
		return convert[string](items)
	case int64:
		return convert[int64](items)
	case float64:
		return convert[float64](items)
	default:
		return nil, fmt.Errorf("unsupported array element %T", items[0])
	}
}

func convert[T any](items []any) ([]T, error) {
	out := make([]T, len(items))
	for i, it := range items {
		v, ok := it.(T)
		if !ok {
			return nil, fmt.Errorf("array element %d has type %T", i, it)
		}
		out[i] = v
	}
	return out, nil
}

// toEngineError converts server errors into structured engine errors. Other errors
// are returned unchanged.
func toEngineError(err error) error {
	var pgErr *pgconn.PgError
	if !errors.As(err, &pgErr) {
		return err
	}
	var location string
	if pgErr.Position > 0 {
		location = "position " + strconv.Itoa(int(pgErr.Position))
	}
	details := []engine.ErrorDetail{{Reason: pgErr.Code, Location: location, Message: pgErr.Message}}
	if pgErr.Detail != "" {
		details = append(details, engine.ErrorDetail{Reason: pgErr.Code, Message: pgErr.Detail})
	}
	if pgErr.Hint != "" {
		details = append(details, engine.ErrorDetail{Reason: pgErr.Code, Message: pgErr.Hint})
	}
	return &engine.Error{Errors: details, Err: err}
}
