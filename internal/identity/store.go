// Copyright (c) 2026 AssetPulse. All rights reserved.
// Author: platform@assetpulse.io

package identity

import (
	"context"
	"time"
)

// # Snapshot Persistence

// Snapshot is the persisted subset of a [Session]: enough to restore a
// signed-in state across process restarts without re-prompting credentials.
// The short-lived ID token is deliberately excluded; it is re-minted from the
// refresh token at restore time.
type Snapshot struct {
	ProviderUserID string    `json:"provider_user_id"`
	Email          string    `json:"email"`
	DisplayName    string    `json:"display_name,omitempty"`
	AvatarURL      string    `json:"avatar_url,omitempty"`
	RefreshToken   string    `json:"refresh_token"`
	SavedAt        time.Time `json:"saved_at"`
}

// SnapshotStore persists the identity snapshot between runs.
//
// This is the Go analog of the browser's local-storage session persistence.
// Implementations: in-memory (default, no persistence across processes) and
// Redis (shared dev environments).
type SnapshotStore interface {
	// Save replaces the stored snapshot.
	Save(ctx context.Context, snapshot *Snapshot) error

	// Load returns the stored snapshot, or apperr.NotFound when none exists.
	Load(ctx context.Context) (*Snapshot, error)

	// Clear removes the stored snapshot. Clearing an empty store is not an error.
	Clear(ctx context.Context) error
}
