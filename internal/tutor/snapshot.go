package tutor

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/abhisek/boardprep/internal/question"
	"github.com/abhisek/boardprep/internal/store"
	"github.com/abhisek/boardprep/internal/transcript"
)

const snapshotVersion = 1

// snapshotsKept is how many snapshots per conversation survive pruning.
const snapshotsKept = 5

// StoreSink saves conversation snapshots to the SQLite store.
type StoreSink struct {
	repo store.SnapshotRepo
}

// NewStoreSink creates a sink over repo.
func NewStoreSink(repo store.SnapshotRepo) *StoreSink {
	return &StoreSink{repo: repo}
}

func (s *StoreSink) SaveSnapshot(ctx context.Context, snap *Snapshot) error {
	raw, err := json.Marshal(snap.Transcript)
	if err != nil {
		return fmt.Errorf("encode transcript: %w", err)
	}
	tags := make([]string, len(snap.PendingTags))
	for i, t := range snap.PendingTags {
		tags[i] = string(t)
	}

	err = s.repo.Save(ctx, &store.Snapshot{
		ConversationID: snap.ID,
		Data: store.SnapshotData{
			Version:     snapshotVersion,
			UserID:      snap.UserID,
			QuestionID:  snap.QuestionID,
			Chosen:      string(snap.Chosen),
			Step:        snap.Step.String(),
			PendingTags: tags,
			Transcript:  raw,
		},
	})
	if err != nil {
		return err
	}
	return s.repo.Prune(ctx, snap.ID, snapshotsKept)
}

// LoadSnapshot returns the latest snapshot of the conversation, or nil if
// there is none.
func (s *StoreSink) LoadSnapshot(ctx context.Context, id string) (*Snapshot, error) {
	rec, err := s.repo.Latest(ctx, id)
	if err != nil || rec == nil {
		return nil, err
	}

	step, err := ParseStep(rec.Data.Step)
	if err != nil {
		return nil, fmt.Errorf("snapshot %s: %w", id, err)
	}
	chosen, err := question.ParseLabel(rec.Data.Chosen)
	if err != nil {
		return nil, fmt.Errorf("snapshot %s: %w", id, err)
	}
	tr := &transcript.Transcript{}
	if len(rec.Data.Transcript) > 0 {
		if err := json.Unmarshal(rec.Data.Transcript, tr); err != nil {
			return nil, fmt.Errorf("snapshot %s: %w", id, err)
		}
	}
	var tags []transcript.Tag
	for _, t := range rec.Data.PendingTags {
		tags = append(tags, transcript.Tag(t))
	}

	return &Snapshot{
		ID:          rec.ConversationID,
		UserID:      rec.Data.UserID,
		QuestionID:  rec.Data.QuestionID,
		Chosen:      chosen,
		Step:        step,
		PendingTags: tags,
		Transcript:  tr,
	}, nil
}

// Sinks fans a snapshot out to several sinks, attempting every one.
type Sinks []SnapshotSink

func (ss Sinks) SaveSnapshot(ctx context.Context, snap *Snapshot) error {
	var errs []error
	for _, s := range ss {
		if err := s.SaveSnapshot(ctx, snap); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
