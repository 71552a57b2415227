// Copyright (c) 2025 Seedfast
// Licensed under the MIT License. See LICENSE file in the project root for details.

package engine

// FieldType names the engine-neutral type of a column.
type FieldType string

const (
	TypeString    FieldType = "STRING"
	TypeBytes     FieldType = "BYTES"
	TypeInteger   FieldType = "INTEGER"
	TypeFloat     FieldType = "FLOAT"
	TypeNumeric   FieldType = "NUMERIC"
	TypeBoolean   FieldType = "BOOLEAN"
	TypeTimestamp FieldType = "TIMESTAMP"
	TypeDate      FieldType = "DATE"
	TypeTime      FieldType = "TIME"
	TypeRecord    FieldType = "RECORD"
	TypeUUID      FieldType = "UUID"
	TypeJSON      FieldType = "JSON"
)

// FieldMode tells whether a column may be null or repeated.
type FieldMode string

const (
	ModeNullable FieldMode = "NULLABLE"
	ModeRequired FieldMode = "REQUIRED"
	ModeRepeated FieldMode = "REPEATED"
)

// Field describes one column. Record fields carry their children in Fields.
type Field struct {
	Name   string
	Type   FieldType
	Mode   FieldMode
	Fields []Field
}

// Schema is the ordered column list of a result.
type Schema struct {
	Fields []Field
}
