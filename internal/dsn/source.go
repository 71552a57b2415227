// Copyright (c) 2025 Seedfast
// Licensed under the MIT License. See LICENSE file in the project root for details.

package dsn

import (
	"errors"
	"os"
	"strings"
)

// Environment variables consulted before the keychain, in order.
const (
	EnvDSN         = "PAGEDQUERY_DSN"
	EnvDatabaseURL = "DATABASE_URL"
)

// ErrNotConfigured is returned when no source provides a DSN.
var ErrNotConfigured = errors.New("no database connection configured")

// Source names where a DSN came from.
type Source string

const (
	SourceEnvDSN      Source = EnvDSN
	SourceDatabaseURL Source = EnvDatabaseURL
	SourceKeychain    Source = "keychain"
)

// Store loads the DSN saved by 'pagedquery connect'.
type Store interface {
	LoadDBDSN() (string, error)
}

// Resolve picks the DSN from the environment first, then from store. store may be
// nil when secure storage is unavailable.
func Resolve(store Store) (string, Source, error) {
	return resolve(os.Getenv, store)
}

func resolve(getenv func(string) string, store Store) (string, Source, error) {
	for _, src := range []Source{SourceEnvDSN, SourceDatabaseURL} {
		if v := strings.TrimSpace(getenv(string(src))); v != "" {
			n, err := Normalize(v)
			return n, src, err
		}
	}
	if store == nil {
		return "", "", ErrNotConfigured
	}
	v, err := store.LoadDBDSN()
	if err != nil || strings.TrimSpace(v) == "" {
		return "", "", ErrNotConfigured
	}
	return v, SourceKeychain, nil
}
