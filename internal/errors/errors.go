// Copyright (c) 2025 Seedfast
// Licensed under the MIT License. See LICENSE file in the project root for details.

// Package errors defines typed errors with categories for user-friendly reporting.
// Every failure a query session surfaces carries one Kind, so callers can decide how
// to present it without string matching. Kinds map onto gRPC status codes, which lets
// a gRPC-fronted caller return them with status.FromError unchanged.
package errors

import (
	stderrors "errors"
	"fmt"

	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

// Kind is a machine-readable error category.
type Kind string

const (
	// InvalidArgument indicates a malformed job configuration. No engine call was made.
	InvalidArgument Kind = "invalid_argument"
	// EngineSubmissionFailed indicates the engine rejected a dry run or a submission.
	EngineSubmissionFailed Kind = "engine_submission_failed"
	// QueryExecutionFailed indicates a submitted job finished with an error result.
	QueryExecutionFailed Kind = "query_execution_failed"
	// FormattingFailed indicates a page could not be converted for transport.
	FormattingFailed Kind = "formatting_failed"
	// JobCancelled indicates the stream stopped because the job was cancelled.
	JobCancelled Kind = "job_cancelled"
)

// E wraps an error with kind and human-friendly message.
type E struct {
	Kind    Kind
	Message string
	Err     error
}

func (e *E) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

func (e *E) Unwrap() error { return e.Err }

// GRPCStatus lets status.FromError and status.Code understand E.
func (e *E) GRPCStatus() *status.Status {
	return status.New(e.Kind.Code(), e.Message)
}

// Code returns the gRPC code conventionally used for k.
func (k Kind) Code() codes.Code {
	switch k {
	case InvalidArgument:
		return codes.InvalidArgument
	case EngineSubmissionFailed:
		return codes.FailedPrecondition
	case QueryExecutionFailed:
		return codes.Aborted
	case FormattingFailed:
		return codes.Internal
	case JobCancelled:
		return codes.Canceled
	}
	return codes.Unknown
}

func Wrap(kind Kind, msg string, err error) *E { return &E{Kind: kind, Message: msg, Err: err} }
func New(kind Kind, msg string) *E             { return &E{Kind: kind, Message: msg} }

// Newf is New with a formatted message.
func Newf(kind Kind, format string, args ...any) *E {
	return &E{Kind: kind, Message: fmt.Sprintf(format, args...)}
}

// KindOf returns the kind of the first E in err's chain, or "" if there is none.
func KindOf(err error) Kind {
	var e *E
	if stderrors.As(err, &e) {
		return e.Kind
	}
	return ""
}

// Is reports whether err carries kind.
func Is(err error, kind Kind) bool {
	return err != nil && KindOf(err) == kind
}
