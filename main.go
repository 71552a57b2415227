// Copyright (c) 2025 Seedfast
// Licensed under the MIT License. See LICENSE file in the project root for details.

// Package main is the entry point for the pagedquery CLI.
// It runs SQL queries against PostgreSQL and streams their results page by page.
package main

import (
	"seedfast/pagedquery/cmd"
)

func main() {
	cmd.Execute()
}
