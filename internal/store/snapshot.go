package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	entsql "entgo.io/ent/dialect/sql"
)

// snapshotRepo implements SnapshotRepo over conversation_snapshots.
type snapshotRepo struct {
	db  *sql.DB
	seq *sequenceCounter
}

func (r *snapshotRepo) Save(ctx context.Context, snap *Snapshot) error {
	if snap.ConversationID == "" {
		return fmt.Errorf("save snapshot: conversation id is required")
	}
	if snap.Sequence == 0 {
		seqNum, err := r.seq.Next(ctx)
		if err != nil {
			return fmt.Errorf("next sequence: %w", err)
		}
		snap.Sequence = seqNum
	}
	if snap.Timestamp.IsZero() {
		snap.Timestamp = time.Now().UTC()
	}

	data, err := json.Marshal(snap.Data)
	if err != nil {
		return fmt.Errorf("marshal snapshot data: %w", err)
	}

	query, args := builder().Insert(tableSnapshots).
		Columns("conversation_id", "sequence", "timestamp", "data").
		Values(snap.ConversationID, snap.Sequence, toMillis(snap.Timestamp), string(data)).
		Query()
	res, err := r.db.ExecContext(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("save snapshot: %w", err)
	}
	if id, err := res.LastInsertId(); err == nil {
		snap.ID = int(id)
	}
	return nil
}

func (r *snapshotRepo) Latest(ctx context.Context, conversationID string) (*Snapshot, error) {
	query, args := builder().
		Select("id", "conversation_id", "sequence", "timestamp", "data").
		From(entsql.Table(tableSnapshots)).
		Where(entsql.EQ("conversation_id", conversationID)).
		OrderBy(entsql.Desc("sequence")).
		Limit(1).
		Query()

	var snap Snapshot
	var ts int64
	var data string
	err := r.db.QueryRowContext(ctx, query, args...).
		Scan(&snap.ID, &snap.ConversationID, &snap.Sequence, &ts, &data)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("query latest snapshot: %w", err)
	}

	snap.Timestamp = fromMillis(ts)
	if err := json.Unmarshal([]byte(data), &snap.Data); err != nil {
		return nil, fmt.Errorf("unmarshal snapshot data: %w", err)
	}
	return &snap, nil
}

func (r *snapshotRepo) Prune(ctx context.Context, conversationID string, keep int) error {
	// Find the sequence threshold: the newest snapshot past the keep window.
	query, args := builder().
		Select("sequence").
		From(entsql.Table(tableSnapshots)).
		Where(entsql.EQ("conversation_id", conversationID)).
		OrderBy(entsql.Desc("sequence")).
		Offset(keep).
		Limit(1).
		Query()

	var threshold int64
	err := r.db.QueryRowContext(ctx, query, args...).Scan(&threshold)
	if errors.Is(err, sql.ErrNoRows) {
		return nil // fewer than keep snapshots exist
	}
	if err != nil {
		return fmt.Errorf("query snapshots for prune: %w", err)
	}

	query, args = builder().Delete(tableSnapshots).
		Where(entsql.And(
			entsql.EQ("conversation_id", conversationID),
			entsql.LTE("sequence", threshold),
		)).
		Query()
	if _, err := r.db.ExecContext(ctx, query, args...); err != nil {
		return fmt.Errorf("prune snapshots: %w", err)
	}
	return nil
}
