// Copyright (c) 2025 Seedfast
// Licensed under the MIT License. See LICENSE file in the project root for details.

package engine

// ParameterType is the engine-native type of a bound query parameter.
type ParameterType string

const (
	ParamBool    ParameterType = "BOOL"
	ParamInt64   ParameterType = "INT64"
	ParamFloat64 ParameterType = "FLOAT64"
	ParamString  ParameterType = "STRING"
	ParamArray   ParameterType = "ARRAY"
	ParamStruct  ParameterType = "STRUCT"
)

// Parameter is one bound query parameter. Positional parameters have an empty Name.
//
// Array values are []any, struct values are map[string]any, scalars are
// bool, int64, float64 or string.
type Parameter struct {
	Name  string
	Type  ParameterType
	Value any
}

// Named reports whether params are bound by name. Mixed lists are not produced by
// the session layer.
func Named(params []Parameter) bool {
	return len(params) > 0 && params[0].Name != ""
}
