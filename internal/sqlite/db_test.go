/*
Copyright 2025 Chainguard, Inc.
SPDX-License-Identifier: Apache-2.0
*/

package sqlite

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestOpenAndMigrate(t *testing.T) {
	db, err := Open(filepath.Join(t.TempDir(), "bridge.db"))
	require.NoError(t, err)
	defer db.Close()

	version, err := Migrate(db)
	require.NoError(t, err)
	assert.Equal(t, uint(2), version)

	// Applying again is a no-op.
	version, err = Migrate(db)
	require.NoError(t, err)
	assert.Equal(t, uint(2), version)

	assert.NoError(t, db.Ping(context.Background()))
}
