// Copyright (c) 2025 Seedfast
// Licensed under the MIT License. See LICENSE file in the project root for details.

// Package connerr explains database connection failures to the user.
package connerr

import (
	"context"
	"errors"
	"fmt"
	"net"
	"strings"
	"syscall"

	"seedfast/pagedquery/internal/logging"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/pterm/pterm"
)

// Class is the category of a connection failure.
type Class int

const (
	Generic Class = iota
	Timeout
	DNS
	Refused
	TLS
	Auth
	NoDatabase
)

// SQLSTATE codes reported during connection startup.
const (
	invalidPassword       = "28P01"
	invalidAuthorization  = "28000"
	invalidCatalogName    = "3D000"
	insufficientPrivilege = "42501"
)

// Classify returns the category of err.
func Classify(err error) Class {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		switch pgErr.Code {
		case invalidPassword, invalidAuthorization, insufficientPrivilege:
			return Auth
		case invalidCatalogName:
			return NoDatabase
		}
	}

	var netErr net.Error
	if errors.Is(err, context.DeadlineExceeded) || (errors.As(err, &netErr) && netErr.Timeout()) {
		return Timeout
	}
	var dnsErr *net.DNSError
	if errors.As(err, &dnsErr) {
		return DNS
	}
	if errors.Is(err, syscall.ECONNREFUSED) {
		return Refused
	}

	lower := strings.ToLower(err.Error())
	switch {
	case strings.Contains(lower, "timeout"):
		return Timeout
	case strings.Contains(lower, "connection refused"):
		return Refused
	case strings.Contains(lower, "tls") || strings.Contains(lower, "ssl") || strings.Contains(lower, "certificate"):
		return TLS
	case strings.Contains(lower, "password authentication failed"):
		return Auth
	}
	return Generic
}

// Format converts a connection error into a user-friendly message. Secrets are
// masked in the technical details.
func Format(err error, action string) string {
	var b strings.Builder
	switch Classify(err) {
	case Timeout:
		fmt.Fprintf(&b, "⏱️  Connection timeout while %s\n\n", action)
		b.WriteString("The database took too long to respond. Check that the host is reachable\nand that no firewall drops the connection.\n")
	case DNS:
		fmt.Fprintf(&b, "🌐 Cannot resolve the database host while %s\n\n", action)
		b.WriteString("Check the host name in your DSN and your DNS settings.\n")
	case Refused:
		fmt.Fprintf(&b, "🚫 Connection refused while %s\n\n", action)
		b.WriteString("Nothing accepts connections at that address. Check the host and port,\nand that PostgreSQL is running.\n")
	case TLS:
		fmt.Fprintf(&b, "🔒 Secure connection failed while %s\n\n", action)
		b.WriteString("Check the sslmode parameter of your DSN and the server certificate.\n")
	case Auth:
		fmt.Fprintf(&b, "🔑 Authentication failed while %s\n\n", action)
		b.WriteString("Check the user name and password, then run 'pagedquery connect' again.\n")
	case NoDatabase:
		fmt.Fprintf(&b, "🗄️  Database not found while %s\n\n", action)
		b.WriteString("Check the database name at the end of your DSN.\n")
	default:
		fmt.Fprintf(&b, "❌ Cannot connect to the database while %s\n", action)
	}
	b.WriteString("\n")
	b.WriteString(pterm.NewStyle(pterm.FgGray).Sprint(logging.PresentError("Technical details", err)))
	return b.String()
}

// Present prints Format(err, action) and returns err wrapped for the caller.
func Present(err error, action string) error {
	if err == nil {
		return nil
	}
	pterm.Println(Format(err, action))
	pterm.Println()
	return fmt.Errorf("connection error: %w", err)
}
