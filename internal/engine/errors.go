// Copyright (c) 2025 Seedfast
// Licensed under the MIT License. See LICENSE file in the project root for details.

package engine

import (
	"fmt"
	"strings"
)

// ErrorDetail is one structured message reported by the engine.
type ErrorDetail struct {
	Reason   string `json:"reason,omitempty"`
	Location string `json:"location,omitempty"`
	Message  string `json:"message"`
}

func (d *ErrorDetail) Error() string {
	if d.Reason != "" {
		return fmt.Sprintf("%s: %s", d.Reason, d.Message)
	}
	return d.Message
}

// Error is a submission failure that carries the engine's structured error list.
type Error struct {
	Errors []ErrorDetail
	Err    error
}

func (e *Error) Error() string {
	msgs := make([]string, 0, len(e.Errors))
	for _, d := range e.Errors {
		msgs = append(msgs, d.Message)
	}
	if len(msgs) == 0 && e.Err != nil {
		return e.Err.Error()
	}
	return strings.Join(msgs, "; ")
}

func (e *Error) Unwrap() error { return e.Err }
