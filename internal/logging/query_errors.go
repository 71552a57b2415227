// Copyright (c) 2025 Seedfast
// Licensed under the MIT License. See LICENSE file in the project root for details.

package logging

import (
	"fmt"
	"strings"

	"github.com/pterm/pterm"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

// FormatQueryError renders a failed query for the terminal. The title and the
// suggested action depend on the error's gRPC code.
func FormatQueryError(query string, err error) string {
	var builder strings.Builder

	code := status.Code(err)
	if code == codes.Unknown {
		code = status.FromContextError(err).Code()
	}
	title, action := "Query Failed", ""
	switch code {
	case codes.InvalidArgument:
		title, action = "Invalid Request", "Check the job configuration flags and parameters"
	case codes.FailedPrecondition:
		title, action = "Query Rejected", "Fix the query text and try again"
	case codes.Aborted:
		title, action = "Query Execution Failed", "Raise --max-bytes-billed or narrow the query"
	case codes.Internal:
		title, action = "Result Formatting Failed", "Re-run with --log-level debug and report the output"
	case codes.Canceled:
		title = "Query Cancelled"
	case codes.DeadlineExceeded:
		title, action = "Query Timed Out", "Try a smaller page size or a narrower query"
	case codes.Unavailable:
		title, action = "Database Unavailable", "Run 'pagedquery connect' to check the connection"
	}

	builder.WriteString(pterm.NewStyle(pterm.FgRed, pterm.Bold).Sprint(title))
	builder.WriteString("\n\n")
	if q := strings.TrimSpace(query); q != "" {
		builder.WriteString(pterm.NewStyle(pterm.FgGray).Sprint(firstLine(q)))
		builder.WriteString("\n")
	}
	builder.WriteString(Mask(messageOf(err)))
	builder.WriteString("\n")
	if action != "" {
		builder.WriteString("\n")
		builder.WriteString(pterm.NewStyle(pterm.FgYellow).Sprint("→ " + action))
		builder.WriteString("\n")
	}
	return builder.String()
}

// PresentQueryError displays a formatted query error.
func PresentQueryError(query string, err error) {
	fmt.Println()
	fmt.Println(FormatQueryError(query, err))
}

func messageOf(err error) string {
	if s, ok := status.FromError(err); ok && s.Message() != "" {
		return s.Message()
	}
	return err.Error()
}

func firstLine(s string) string {
	if i := strings.IndexByte(s, '\n'); i >= 0 {
		return s[:i] + " …"
	}
	return s
}
