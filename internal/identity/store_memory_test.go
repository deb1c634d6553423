// Copyright (c) 2026 AssetPulse. All rights reserved.
// Author: platform@assetpulse.io

package identity_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/assetpulse/assetpulse-go/internal/identity"
	"github.com/assetpulse/assetpulse-go/internal/platform/apperr"
)

/*
TestMemorySnapshotStore covers the save/load/clear lifecycle and the
not-found contract for an empty store.
*/
func TestMemorySnapshotStore(t *testing.T) {
	store := identity.NewMemorySnapshotStore()
	ctx := context.Background()

	_, err := store.Load(ctx)
	assert.Equal(t, "NOT_FOUND", apperr.CodeOf(err), "empty store loads as not-found")

	saved := &identity.Snapshot{
		ProviderUserID: "uid-1",
		Email:          "casey@example.com",
		RefreshToken:   "refresh-1",
	}
	require.NoError(t, store.Save(ctx, saved))

	loaded, err := store.Load(ctx)
	require.NoError(t, err)
	assert.Equal(t, "uid-1", loaded.ProviderUserID)
	assert.Equal(t, "refresh-1", loaded.RefreshToken)

	// The store hands out copies, not the caller's pointer.
	loaded.RefreshToken = "mutated"
	reloaded, err := store.Load(ctx)
	require.NoError(t, err)
	assert.Equal(t, "refresh-1", reloaded.RefreshToken)

	require.NoError(t, store.Clear(ctx))
	_, err = store.Load(ctx)
	assert.Equal(t, "NOT_FOUND", apperr.CodeOf(err))
}
