// Copyright (c) 2025 Seedfast
// Licensed under the MIT License. See LICENSE file in the project root for details.

package errors

import (
	"fmt"
	"io"
	"testing"

	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

func TestKindOf(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want Kind
	}{
		{name: "nil", err: nil, want: ""},
		{name: "plain", err: io.EOF, want: ""},
		{name: "direct", err: New(InvalidArgument, "bad"), want: InvalidArgument},
		{name: "wrapped by fmt", err: fmt.Errorf("outer: %w", Wrap(FormattingFailed, "page 2", io.ErrUnexpectedEOF)), want: FormattingFailed},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := KindOf(tt.err); got != tt.want {
				t.Errorf("KindOf() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestErrorString(t *testing.T) {
	if got := New(InvalidArgument, "bad flag").Error(); got != "invalid_argument: bad flag" {
		t.Errorf("Error() = %q", got)
	}
	if got := Wrap(EngineSubmissionFailed, "submit", io.EOF).Error(); got != "engine_submission_failed: submit: EOF" {
		t.Errorf("Error() = %q", got)
	}
}

func TestGRPCStatus(t *testing.T) {
	tests := []struct {
		kind Kind
		want codes.Code
	}{
		{InvalidArgument, codes.InvalidArgument},
		{EngineSubmissionFailed, codes.FailedPrecondition},
		{QueryExecutionFailed, codes.Aborted},
		{FormattingFailed, codes.Internal},
		{JobCancelled, codes.Canceled},
		{Kind("other"), codes.Unknown},
	}

	for _, tt := range tests {
		t.Run(string(tt.kind), func(t *testing.T) {
			err := fmt.Errorf("ctx: %w", New(tt.kind, "msg"))
			if got := status.Code(err); got != tt.want {
				t.Errorf("status.Code() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestUnwrap(t *testing.T) {
	err := Wrap(QueryExecutionFailed, "job failed", io.EOF)
	if !Is(err, QueryExecutionFailed) {
		t.Fatal("Is() = false")
	}
	if got := err.Unwrap(); got != io.EOF {
		t.Errorf("Unwrap() = %v", got)
	}
}
