// Copyright (c) 2026 AssetPulse. All rights reserved.
// Author: platform@assetpulse.io

package identity

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/redis/go-redis/v9"

	"github.com/assetpulse/assetpulse-go/internal/platform/apperr"
)

// RedisSnapshotStore implements SnapshotStore on Redis, namespaced per device
// so multiple clients can share one Redis instance in a dev environment.
type RedisSnapshotStore struct {
	client *redis.Client
	key    string
}

// NewRedisSnapshotStore creates a Redis-backed store.
// deviceID namespaces the key; pass a stable machine/profile identifier.
func NewRedisSnapshotStore(client *redis.Client, deviceID string) *RedisSnapshotStore {
	return &RedisSnapshotStore{
		client: client,
		key:    fmt.Sprintf("identity:snapshot:%s", deviceID),
	}
}

/*
Save replaces the stored snapshot.

Description: The entry expires with the refresh token so a stale snapshot can
never outlive its credential.

Parameters:
  - context: context.Context
  - snapshot: *Snapshot

Returns:
  - error: Marshalling or connectivity errors
*/
func (store *RedisSnapshotStore) Save(context context.Context, snapshot *Snapshot) error {
	payload, err := json.Marshal(snapshot)
	if err != nil {
		return fmt.Errorf("identity_snapshot_marshal_failed: %w", err)
	}

	if err := store.client.Set(context, store.key, payload, RefreshTokenTTL).Err(); err != nil {
		return fmt.Errorf("identity_snapshot_save_failed: %w", err)
	}

	return nil
}

/*
Load returns the stored snapshot.

Description: Returns apperr.NotFound if no snapshot exists or it expired.

Parameters:
  - context: context.Context

Returns:
  - *Snapshot: The persisted session state
  - error: apperr.NotFound or connectivity errors
*/
func (store *RedisSnapshotStore) Load(context context.Context) (*Snapshot, error) {
	payload, err := store.client.Get(context, store.key).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, apperr.NotFound("Session snapshot")
		}
		return nil, fmt.Errorf("identity_snapshot_load_failed: %w", err)
	}

	snapshot := &Snapshot{}
	if err := json.Unmarshal(payload, snapshot); err != nil {
		return nil, fmt.Errorf("identity_snapshot_unmarshal_failed: %w", err)
	}

	return snapshot, nil
}

/*
Clear removes the stored snapshot.

Parameters:
  - context: context.Context

Returns:
  - error: Deletion failures
*/
func (store *RedisSnapshotStore) Clear(context context.Context) error {
	if err := store.client.Del(context, store.key).Err(); err != nil {
		return fmt.Errorf("identity_snapshot_clear_failed: %w", err)
	}
	return nil
}

// compile-time interface check
var _ SnapshotStore = (*RedisSnapshotStore)(nil)
