// Copyright (c) 2025 Seedfast
// Licensed under the MIT License. See LICENSE file in the project root for details.

package cmd

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"seedfast/pagedquery/internal/config"
	"seedfast/pagedquery/internal/connerr"
	"seedfast/pagedquery/internal/dsn"
	"seedfast/pagedquery/internal/engine/pgengine"
	"seedfast/pagedquery/internal/keychain"

	"github.com/pterm/pterm"
	"github.com/spf13/cobra"
)

var checkDBInfo bool

// dbinfoCmd shows which connection and target queries would use.
var dbinfoCmd = &cobra.Command{
	Use:   "dbinfo",
	Short: "Show the database connection and default target",
	Long: `The dbinfo command displays the database connection string (DSN) that queries would use,
with the password masked, and where it came from. With --check it also connects and
reports the default target schema.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		var store dsn.Store
		if km, err := keychain.GetManager(); err == nil {
			store = km
		}
		conn, src, err := dsn.Resolve(store)
		if errors.Is(err, dsn.ErrNotConfigured) {
			pterm.Println("⚠️  No database connection configured")
			pterm.Println("   Please run: pagedquery connect")
			return nil
		}
		if err != nil {
			return err
		}

		cfg, err := config.Load()
		if err != nil {
			return fmt.Errorf("load config: %w", err)
		}

		lines := []string{
			"Connection: " + dsn.Redact(conn),
			"Source:     " + string(src),
		}
		if cfg.DefaultTarget != "" {
			lines = append(lines, "Target:     "+cfg.DefaultTarget+" (config)")
		}
		if checkDBInfo {
			target, err := currentTarget(cmd.Context(), conn)
			if err != nil {
				return connerr.Present(err, "checking the connection")
			}
			if cfg.DefaultTarget == "" {
				lines = append(lines, "Target:     "+target)
			}
			lines = append(lines, "Status:     reachable")
		}

		pterm.DefaultBox.
			WithTitle(pterm.NewStyle(pterm.FgCyan, pterm.Bold).Sprint("Database Connection")).
			WithPadding(1).
			Println(strings.Join(lines, "\n"))
		pterm.Println()
		pterm.Println("To update this connection, run: pagedquery connect")
		pterm.Println()
		return nil
	},
}

func init() {
	rootCmd.AddCommand(dbinfoCmd)
	dbinfoCmd.Flags().BoolVar(&checkDBInfo, "check", false, "Connect and report the default target")
}

func currentTarget(ctx context.Context, conn string) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	e, err := pgengine.Open(ctx, conn, nil)
	if err != nil {
		return "", err
	}
	defer e.Close()
	return e.Target(), nil
}
