// Package sessioncache keeps recent tutoring conversation snapshots close
// to the server so a conversation can resume without a store round trip.
package sessioncache

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/abhisek/boardprep/internal/logger"
	"github.com/abhisek/boardprep/internal/tutor"
)

// DefaultTTL is how long an idle conversation stays cached.
const DefaultTTL = 30 * time.Minute

const keyPrefix = "boardprep:conversation:"

// Cache stores conversation snapshots by conversation ID. LoadSnapshot
// returns nil, nil on a miss.
type Cache interface {
	tutor.SnapshotSink
	tutor.SnapshotLoader
	Delete(ctx context.Context, id string) error
}

func encode(snap *tutor.Snapshot) ([]byte, error) {
	data, err := json.Marshal(snap)
	if err != nil {
		return nil, fmt.Errorf("encode snapshot %s: %w", snap.ID, err)
	}
	return data, nil
}

func decode(id string, data []byte) (*tutor.Snapshot, error) {
	var snap tutor.Snapshot
	if err := json.Unmarshal(data, &snap); err != nil {
		return nil, fmt.Errorf("decode snapshot %s: %w", id, err)
	}
	return &snap, nil
}

// ReadThrough serves snapshots from a cache backed by durable storage.
// Saves go to both; a cache miss falls through to the backing store and
// warms the cache.
type ReadThrough struct {
	cache   Cache
	backing interface {
		tutor.SnapshotSink
		tutor.SnapshotLoader
	}
	log *logger.Logger
}

// NewReadThrough creates a ReadThrough over cache and backing.
func NewReadThrough(cache Cache, backing interface {
	tutor.SnapshotSink
	tutor.SnapshotLoader
}, log *logger.Logger) *ReadThrough {
	return &ReadThrough{cache: cache, backing: backing, log: logger.OrNop(log)}
}

// SaveSnapshot writes the backing store first. A cache failure is logged
// and not returned.
func (r *ReadThrough) SaveSnapshot(ctx context.Context, snap *tutor.Snapshot) error {
	if err := r.backing.SaveSnapshot(ctx, snap); err != nil {
		return err
	}
	if err := r.cache.SaveSnapshot(ctx, snap); err != nil {
		r.log.Warn("cache conversation snapshot", "conversation", snap.ID, "error", err)
	}
	return nil
}

func (r *ReadThrough) LoadSnapshot(ctx context.Context, id string) (*tutor.Snapshot, error) {
	snap, err := r.cache.LoadSnapshot(ctx, id)
	if err != nil {
		r.log.Warn("read conversation cache", "conversation", id, "error", err)
	}
	if snap != nil {
		return snap, nil
	}

	snap, err = r.backing.LoadSnapshot(ctx, id)
	if err != nil || snap == nil {
		return nil, err
	}
	if err := r.cache.SaveSnapshot(ctx, snap); err != nil {
		r.log.Warn("warm conversation cache", "conversation", id, "error", err)
	}
	return snap, nil
}
