// Copyright (c) 2026 AssetPulse. All rights reserved.
// Author: platform@assetpulse.io

package identity

import (
	"context"
	"sync"

	"github.com/assetpulse/assetpulse-go/internal/platform/apperr"
)

// MemorySnapshotStore implements SnapshotStore without persistence.
// The session lives exactly as long as the process, which is the correct
// behavior for one-shot CLI invocations under test.
type MemorySnapshotStore struct {
	mu       sync.Mutex
	snapshot *Snapshot
}

// NewMemorySnapshotStore creates an empty in-memory store.
func NewMemorySnapshotStore() *MemorySnapshotStore {
	return &MemorySnapshotStore{}
}

// Save replaces the stored snapshot.
func (store *MemorySnapshotStore) Save(_ context.Context, snapshot *Snapshot) error {
	store.mu.Lock()
	defer store.mu.Unlock()
	copied := *snapshot
	store.snapshot = &copied
	return nil
}

// Load returns the stored snapshot, or apperr.NotFound when none exists.
func (store *MemorySnapshotStore) Load(_ context.Context) (*Snapshot, error) {
	store.mu.Lock()
	defer store.mu.Unlock()
	if store.snapshot == nil {
		return nil, apperr.NotFound("Session snapshot")
	}
	copied := *store.snapshot
	return &copied, nil
}

// Clear removes the stored snapshot.
func (store *MemorySnapshotStore) Clear(_ context.Context) error {
	store.mu.Lock()
	defer store.mu.Unlock()
	store.snapshot = nil
	return nil
}

// compile-time interface check
var _ SnapshotStore = (*MemorySnapshotStore)(nil)
