package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/ivmartynov/ladderbot/internal/domain"
)

// snapshotTTL keeps a tick's snapshots around long enough for every state
// in the cycle and no longer.
const snapshotTTL = time.Minute

// SnapshotCache stores market snapshots keyed by (instrument, tick id), so
// several states trading the same instrument within one cycle hit the venue
// once.
//
// Key schema:
//
//	snapshot:{tickID}:{instrumentID} - JSON-serialized snapshot
type SnapshotCache struct {
	rdb *redis.Client
}

// NewSnapshotCache creates a SnapshotCache backed by the given Client.
func NewSnapshotCache(c *Client) *SnapshotCache {
	return &SnapshotCache{rdb: c.Underlying()}
}

func snapshotKey(tickID, instrumentID string) string {
	return "snapshot:" + tickID + ":" + instrumentID
}

// Get returns the cached snapshot for the tick, or domain.ErrNotFound.
func (sc *SnapshotCache) Get(ctx context.Context, instrumentID, tickID string) (*domain.MarketSnapshot, error) {
	raw, err := sc.rdb.Get(ctx, snapshotKey(tickID, instrumentID)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, domain.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("redis: get snapshot %s: %w", instrumentID, err)
	}

	var snapshot domain.MarketSnapshot
	if err := json.Unmarshal(raw, &snapshot); err != nil {
		return nil, fmt.Errorf("redis: unmarshal snapshot %s: %w", instrumentID, err)
	}
	return &snapshot, nil
}

// Set stores the snapshot under the tick's key.
func (sc *SnapshotCache) Set(ctx context.Context, instrumentID, tickID string, snapshot *domain.MarketSnapshot) error {
	raw, err := json.Marshal(snapshot)
	if err != nil {
		return fmt.Errorf("redis: marshal snapshot %s: %w", instrumentID, err)
	}
	if err := sc.rdb.Set(ctx, snapshotKey(tickID, instrumentID), raw, snapshotTTL).Err(); err != nil {
		return fmt.Errorf("redis: set snapshot %s: %w", instrumentID, err)
	}
	return nil
}
