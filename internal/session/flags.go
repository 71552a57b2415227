// Copyright (c) 2025 Seedfast
// Licensed under the MIT License. See LICENSE file in the project root for details.

package session

import (
	"encoding/json"
	"math"
	"sort"
	"strconv"

	"seedfast/pagedquery/internal/engine"
	qerrors "seedfast/pagedquery/internal/errors"
)

// Recognized job configuration keys. Anything else in a request is ignored.
const (
	FlagMaximumBytesBilled = "maximum_bytes_billed"
	FlagUseLegacySQL       = "use_legacy_sql"
	FlagProject            = "project"
	FlagParams             = "params"
)

// SupportedFlags lists the recognized job configuration keys.
var SupportedFlags = []string{FlagMaximumBytesBilled, FlagUseLegacySQL, FlagProject, FlagParams}

// Flags is a validated job configuration.
type Flags struct {
	MaximumBytesBilled *int64
	UseLegacySQL       *bool
	// Project overrides the shared client's target when non-empty.
	Project    string
	Parameters []engine.Parameter

	hasProject bool
	hasParams  bool
}

// Keys returns the recognized keys present in the validated configuration.
func (f Flags) Keys() []string {
	var keys []string
	if f.MaximumBytesBilled != nil {
		keys = append(keys, FlagMaximumBytesBilled)
	}
	if f.UseLegacySQL != nil {
		keys = append(keys, FlagUseLegacySQL)
	}
	if f.hasProject {
		keys = append(keys, FlagProject)
	}
	if f.hasParams {
		keys = append(keys, FlagParams)
	}
	return keys
}

// JobConfig returns the configuration of the real execution.
func (f Flags) JobConfig() engine.JobConfig {
	return engine.JobConfig{
		MaximumBytesBilled: f.MaximumBytesBilled,
		UseLegacySQL:       f.UseLegacySQL,
		Parameters:         f.Parameters,
	}
}

// DryRunConfig returns the configuration of the validation pass: dry run forced on,
// result caching forced off.
func (f Flags) DryRunConfig() engine.JobConfig {
	cfg := f.JobConfig()
	cfg.DryRun = true
	cfg.DisableQueryCache = true
	return cfg
}

// ValidateFlags filters jobConfig down to the recognized keys and type-checks them.
// A null maximum_bytes_billed or project is treated as absent.
func ValidateFlags(jobConfig map[string]any) (Flags, error) {
	var f Flags

	if v, ok := jobConfig[FlagMaximumBytesBilled]; ok && v != nil {
		n, ok := asInt64(v)
		if !ok {
			return Flags{}, qerrors.Newf(qerrors.InvalidArgument, "%s should be an integer, instead received %v", FlagMaximumBytesBilled, v)
		}
		f.MaximumBytesBilled = &n
	}

	if v, ok := jobConfig[FlagUseLegacySQL]; ok {
		b, ok := v.(bool)
		if !ok {
			return Flags{}, qerrors.Newf(qerrors.InvalidArgument, "%s should be boolean, instead received %v", FlagUseLegacySQL, v)
		}
		f.UseLegacySQL = &b
	}

	if v, ok := jobConfig[FlagProject]; ok {
		f.hasProject = true
		if v != nil {
			s, ok := v.(string)
			if !ok {
				return Flags{}, qerrors.Newf(qerrors.InvalidArgument, "%s should be a string, instead received %v", FlagProject, v)
			}
			f.Project = s
		}
	}

	if v, ok := jobConfig[FlagParams]; ok {
		params, err := ToParameters(v)
		if err != nil {
			return Flags{}, err
		}
		f.hasParams = true
		f.Parameters = params
	}

	return f, nil
}

// ToParameters converts request parameters to engine parameters. A list binds
// positionally, an object binds by name (sorted by name). Types are inferred
// from the values.
func ToParameters(v any) ([]engine.Parameter, error) {
	switch p := v.(type) {
	case nil:
		return nil, nil
	case []any:
		out := make([]engine.Parameter, len(p))
		for i, val := range p {
			typ, norm, err := inferParam(val)
			if err != nil {
				return nil, qerrors.Wrap(qerrors.InvalidArgument, "positional parameter "+strconv.Itoa(i), err)
			}
			out[i] = engine.Parameter{Type: typ, Value: norm}
		}
		return out, nil
	case map[string]any:
		names := make([]string, 0, len(p))
		for name := range p {
			names = append(names, name)
		}
		sort.Strings(names)
		out := make([]engine.Parameter, len(names))
		for i, name := range names {
			typ, norm, err := inferParam(p[name])
			if err != nil {
				return nil, qerrors.Wrap(qerrors.InvalidArgument, "parameter "+name, err)
			}
			out[i] = engine.Parameter{Name: name, Type: typ, Value: norm}
		}
		return out, nil
	}
	return nil, qerrors.Newf(qerrors.InvalidArgument, "%s should be a list or an object, instead received %T", FlagParams, v)
}

func inferParam(v any) (engine.ParameterType, any, error) {
	switch x := v.(type) {
	case nil:
		return "", nil, qerrors.New(qerrors.InvalidArgument, "unable to infer type of a null value")
	case bool:
		return engine.ParamBool, x, nil
	case string:
		return engine.ParamString, x, nil
	case []any:
		if len(x) == 0 {
			return "", nil, qerrors.New(qerrors.InvalidArgument, "unable to infer element type of an empty array")
		}
		types := make([]engine.ParameterType, len(x))
		out := make([]any, len(x))
		for i, el := range x {
			t, norm, err := inferParam(el)
			if err != nil {
				return "", nil, err
			}
			types[i], out[i] = t, norm
		}
		elemType := types[0]
		for _, t := range types[1:] {
			switch {
			case t == elemType:
			case numeric(t) && numeric(elemType):
				elemType = engine.ParamFloat64
			default:
				return "", nil, qerrors.Newf(qerrors.InvalidArgument, "array mixes %s and %s", elemType, t)
			}
		}
		if elemType == engine.ParamFloat64 {
			for i, v := range out {
				if n, ok := v.(int64); ok {
					out[i] = float64(n)
				}
			}
		}
		return engine.ParamArray, out, nil
	case map[string]any:
		out := make(map[string]any, len(x))
		for k, el := range x {
			_, norm, err := inferParam(el)
			if err != nil {
				return "", nil, err
			}
			out[k] = norm
		}
		return engine.ParamStruct, out, nil
	}
	if n, ok := asInt64(v); ok {
		return engine.ParamInt64, n, nil
	}
	if f, ok := asFloat64(v); ok {
		return engine.ParamFloat64, f, nil
	}
	return "", nil, qerrors.Newf(qerrors.InvalidArgument, "unsupported parameter type %T", v)
}

// asInt64 accepts Go integers, integral float64 values (as decoded from JSON) and
// integral json.Number values.
func asInt64(v any) (int64, bool) {
	switch x := v.(type) {
	case int:
		return int64(x), true
	case int32:
		return int64(x), true
	case int64:
		return x, true
	case uint32:
		return int64(x), true
	case float64:
		if x != math.Trunc(x) || x < math.MinInt64 || x >= math.MaxInt64 {
			return 0, false
		}
		return int64(x), true
	case json.Number:
		n, err := x.Int64()
		return n, err == nil
	}
	return 0, false
}

func asFloat64(v any) (float64, bool) {
	switch x := v.(type) {
	case float64:
		return x, true
	case float32:
		return float64(x), true
	case json.Number:
		f, err := x.Float64()
		return f, err == nil
	}
	return 0, false
}

func numeric(t engine.ParameterType) bool {
	return t == engine.ParamInt64 || t == engine.ParamFloat64
}
