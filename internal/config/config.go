// Copyright (c) 2025 Seedfast
// Licensed under the MIT License. See LICENSE file in the project root for details.

// Package config loads and stores CLI configuration in the XDG config dir.
// Only non-secret settings are kept here; the DSN goes to the OS keychain.
package config

import (
	"encoding/json"
	"errors"
	"os"
	"path/filepath"

	"seedfast/pagedquery/internal/rowformat"
	"seedfast/pagedquery/internal/session"
	"seedfast/pagedquery/internal/workerpool"
	"seedfast/pagedquery/internal/xdg"
)

// Config holds non-sensitive CLI settings.
type Config struct {
	LogLevel string `json:"log_level"`
	// DefaultTarget overrides the connection's current schema when set.
	DefaultTarget     string `json:"default_target,omitempty"`
	PageSize          int    `json:"page_size"`
	ParallelThreshold int    `json:"parallel_threshold"`
	PoolSize          int    `json:"pool_size"`
	// MaxConcurrent bounds how many queries of one invocation run at once.
	MaxConcurrent int `json:"max_concurrent"`
}

// Default returns the settings used when no config file exists.
func Default() Config {
	return Config{
		LogLevel:          "info",
		PageSize:          session.DefaultPageSize,
		ParallelThreshold: rowformat.DefaultThreshold,
		PoolSize:          workerpool.DefaultSize,
		MaxConcurrent:     4,
	}
}

// path returns the path to the config file.
func path() (string, error) {
	dir, err := xdg.ConfigDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, "config.json"), nil
}

// Load reads configuration; missing file returns defaults. Zero or missing
// numeric fields fall back to their defaults.
func Load() (Config, error) {
	c := Default()
	p, err := path()
	if err != nil {
		return c, err
	}
	data, err := os.ReadFile(p)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return c, nil
		}
		return c, err
	}
	if err := json.Unmarshal(data, &c); err != nil {
		return c, err
	}
	return c.withDefaults(), nil
}

func (c Config) withDefaults() Config {
	d := Default()
	if c.LogLevel == "" {
		c.LogLevel = d.LogLevel
	}
	if c.PageSize <= 0 {
		c.PageSize = d.PageSize
	}
	if c.ParallelThreshold <= 0 {
		c.ParallelThreshold = d.ParallelThreshold
	}
	if c.PoolSize <= 0 {
		c.PoolSize = d.PoolSize
	}
	if c.MaxConcurrent <= 0 {
		c.MaxConcurrent = d.MaxConcurrent
	}
	return c
}

// Save writes configuration with 0600 permissions.
func Save(c Config) error {
	p, err := path()
	if err != nil {
		return err
	}
	b, err := json.MarshalIndent(c, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(p, b, 0o600)
}
