// Copyright (c) 2025 Seedfast
// Licensed under the MIT License. See LICENSE file in the project root for details.

package cmd

// Version holds the CLI version. It is set at build time using -ldflags.
var Version = "0.0.0-dev"
