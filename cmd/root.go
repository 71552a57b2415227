// Copyright (c) 2025 Seedfast
// Licensed under the MIT License. See LICENSE file in the project root for details.

// Package cmd provides the command-line interface of pagedquery.
// It implements the query, connect and dbinfo subcommands using the Cobra CLI framework
// and renders results in the terminal with pterm.
package cmd

import (
	"fmt"
	"os"

	"seedfast/pagedquery/internal/config"
	"seedfast/pagedquery/internal/logging"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var (
	showVersion bool
	logLevel    string
)

// rootCmd represents the base command when called without any subcommands.
var rootCmd = &cobra.Command{
	Use:   "pagedquery",
	Short: "Run SQL queries against PostgreSQL and stream paged results",
	Long: `pagedquery submits SQL queries to PostgreSQL, reports the estimated bytes a query
will process, and streams the results page by page without loading them into memory.`,
	SilenceUsage:  true,
	SilenceErrors: true,
	RunE: func(cmd *cobra.Command, args []string) error {
		if showVersion {
			fmt.Printf("pagedquery %s\n", Version)
			return nil
		}
		return cmd.Help()
	},
}

// Execute runs the CLI application.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, logging.PresentError("Error", err))
		os.Exit(1)
	}
}

func init() {
	rootCmd.Flags().BoolVar(&showVersion, "version", false, "Show version information")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "Log level (debug, info, warn, error); overrides the config file")
}

// newLogger builds the process logger. The --log-level flag wins over the config file.
func newLogger(cfg config.Config) (*zap.Logger, error) {
	level := cfg.LogLevel
	if logLevel != "" {
		level = logLevel
	}
	return logging.New(level)
}
