// Copyright (c) 2025 Seedfast
// Licensed under the MIT License. See LICENSE file in the project root for details.

package keychain

import (
	"testing"

	"github.com/99designs/keyring"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDSNRoundTrip(t *testing.T) {
	m := NewManager(keyring.NewArrayKeyring(nil))

	_, err := m.LoadDBDSN()
	assert.ErrorIs(t, err, ErrNotFound)

	require.NoError(t, m.SaveDBDSN("postgres://u:p@localhost/db"))
	got, err := m.LoadDBDSN()
	require.NoError(t, err)
	assert.Equal(t, "postgres://u:p@localhost/db", got)

	require.NoError(t, m.ClearDB())
	_, err = m.LoadDBDSN()
	assert.ErrorIs(t, err, ErrNotFound)

	require.NoError(t, m.ClearDB())
}
