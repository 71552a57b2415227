// Copyright (c) 2025 Seedfast
// Licensed under the MIT License. See LICENSE file in the project root for details.

package connerr

import (
	"context"
	"errors"
	"fmt"
	"net"
	"os"
	"strings"
	"syscall"
	"testing"

	"github.com/jackc/pgx/v5/pgconn"
)

func TestClassify(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want Class
	}{
		{name: "deadline", err: fmt.Errorf("connect: %w", context.DeadlineExceeded), want: Timeout},
		{name: "dns", err: &net.DNSError{Err: "no such host", Name: "db.invalid"}, want: DNS},
		{name: "refused", err: &net.OpError{Op: "dial", Err: os.NewSyscallError("connect", syscall.ECONNREFUSED)}, want: Refused},
		{name: "tls text", err: errors.New("tls: failed to verify certificate"), want: TLS},
		{name: "bad password", err: &pgconn.PgError{Code: "28P01", Message: "password authentication failed"}, want: Auth},
		{name: "missing db", err: &pgconn.PgError{Code: "3D000", Message: `database "x" does not exist`}, want: NoDatabase},
		{name: "other", err: errors.New("boom"), want: Generic},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Classify(tt.err); got != tt.want {
				t.Errorf("Classify() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestFormatMasksDSN(t *testing.T) {
	out := Format(errors.New("dial postgres://app:hunter2@db:5432/x: boom"), "connecting")
	if strings.Contains(out, "hunter2") {
		t.Errorf("password leaked: %q", out)
	}
	if !strings.Contains(out, "connecting") {
		t.Errorf("action missing: %q", out)
	}
}

func TestPresentWraps(t *testing.T) {
	if Present(nil, "x") != nil {
		t.Fatal("Present(nil) should be nil")
	}
	base := errors.New("boom")
	if err := Present(base, "x"); !errors.Is(err, base) {
		t.Errorf("Present() = %v, want wrapping %v", err, base)
	}
}
