package store

import (
	"context"
	"encoding/json"
	"path/filepath"
	"testing"
	"time"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := Open(filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatalf("open test store: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func TestPragmasApplied(t *testing.T) {
	s := openTestStore(t)
	db := s.DB()

	tests := []struct {
		pragma string
		want   string
	}{
		{"journal_mode", "wal"},
		{"foreign_keys", "1"},
	}

	for _, tt := range tests {
		var got string
		err := db.QueryRow("PRAGMA " + tt.pragma).Scan(&got)
		if err != nil {
			t.Errorf("PRAGMA %s: %v", tt.pragma, err)
			continue
		}
		if got != tt.want {
			t.Errorf("PRAGMA %s = %q, want %q", tt.pragma, got, tt.want)
		}
	}
}

func TestAutoMigrationCreatesTables(t *testing.T) {
	s := openTestStore(t)
	db := s.DB()

	for _, table := range []string{
		tableLLMEvents, tableAnswers, tableFoundationalAnswers,
		tableReviewQuestions, tableSnapshots, "global_sequence",
	} {
		var name string
		err := db.QueryRow(
			"SELECT name FROM sqlite_master WHERE type='table' AND name=?", table,
		).Scan(&name)
		if err != nil {
			t.Errorf("table %s: %v", table, err)
		}
	}
}

func TestReopenKeepsData(t *testing.T) {
	path := filepath.Join(t.TempDir(), "reopen.db")
	ctx := context.Background()

	s, err := Open(path)
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	if err := s.AnswerRepo().RecordAnswer(ctx, "u1", "q1", "c"); err != nil {
		t.Fatalf("record: %v", err)
	}
	s.Close()

	s, err = Open(path)
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	defer s.Close()

	ids, err := s.AnswerRepo().AnsweredQuestionIDs(ctx, "u1")
	if err != nil {
		t.Fatalf("answered: %v", err)
	}
	if len(ids) != 1 || ids[0] != "q1" {
		t.Errorf("answered = %v, want [q1]", ids)
	}
}

func TestSequenceCounter(t *testing.T) {
	s := openTestStore(t)
	db := s.DB()
	ctx := context.Background()

	sc, err := newSequenceCounter(db)
	if err != nil {
		t.Fatalf("new sequence counter: %v", err)
	}

	var seqs []int64
	for i := 0; i < 5; i++ {
		seq, err := sc.Next(ctx)
		if err != nil {
			t.Fatalf("next %d: %v", i, err)
		}
		seqs = append(seqs, seq)
	}

	// Should be monotonically increasing starting from 1.
	for i, seq := range seqs {
		expected := int64(i + 1)
		if seq != expected {
			t.Errorf("seq[%d] = %d, want %d", i, seq, expected)
		}
	}
}

func testSnapshot(conversationID, step string) *Snapshot {
	return &Snapshot{
		ConversationID: conversationID,
		Data: SnapshotData{
			Version:    1,
			UserID:     "u1",
			QuestionID: "q1",
			Chosen:     "b",
			Step:       step,
			Transcript: json.RawMessage(`[]`),
		},
	}
}

func TestSnapshotSaveAndLatest(t *testing.T) {
	s := openTestStore(t)
	repo := s.SnapshotRepo()
	ctx := context.Background()

	// No snapshot yet.
	snap, err := repo.Latest(ctx, "conv-1")
	if err != nil {
		t.Fatalf("latest (empty): %v", err)
	}
	if snap != nil {
		t.Fatal("expected nil snapshot when none exist")
	}

	in := testSnapshot("conv-1", "incorrect-1-check")
	in.Data.PendingTags = []string{"student-explanation"}
	in.Data.Transcript = json.RawMessage(`[{"id":"m1","role":"assistant","content":"hi"}]`)
	if err := repo.Save(ctx, in); err != nil {
		t.Fatalf("save: %v", err)
	}
	if in.Sequence == 0 {
		t.Error("expected sequence to be assigned")
	}

	snap, err = repo.Latest(ctx, "conv-1")
	if err != nil {
		t.Fatalf("latest: %v", err)
	}
	if snap == nil {
		t.Fatal("expected non-nil snapshot")
	}
	if snap.Data.Step != "incorrect-1-check" {
		t.Errorf("step = %q, want incorrect-1-check", snap.Data.Step)
	}
	if len(snap.Data.PendingTags) != 1 || snap.Data.PendingTags[0] != "student-explanation" {
		t.Errorf("pending tags = %v", snap.Data.PendingTags)
	}
	if string(snap.Data.Transcript) != string(in.Data.Transcript) {
		t.Errorf("transcript = %s, want %s", snap.Data.Transcript, in.Data.Transcript)
	}
}

func TestSnapshotLatestReturnsNewestPerConversation(t *testing.T) {
	s := openTestStore(t)
	repo := s.SnapshotRepo()
	ctx := context.Background()

	steps := []string{"correct-1", "correct-1-check", "correct-3-check"}
	for _, step := range steps {
		if err := repo.Save(ctx, testSnapshot("conv-a", step)); err != nil {
			t.Fatalf("save %s: %v", step, err)
		}
	}
	if err := repo.Save(ctx, testSnapshot("conv-b", "incorrect-1")); err != nil {
		t.Fatalf("save conv-b: %v", err)
	}

	snap, err := repo.Latest(ctx, "conv-a")
	if err != nil {
		t.Fatalf("latest: %v", err)
	}
	if snap.Data.Step != "correct-3-check" {
		t.Errorf("step = %q, want correct-3-check", snap.Data.Step)
	}
}

func TestSnapshotPrune(t *testing.T) {
	s := openTestStore(t)
	repo := s.SnapshotRepo()
	ctx := context.Background()

	for i := 0; i < 7; i++ {
		snap := testSnapshot("conv-1", "follow-up-menu")
		snap.Timestamp = time.Now().Add(time.Duration(i) * time.Minute)
		if err := repo.Save(ctx, snap); err != nil {
			t.Fatalf("save %d: %v", i, err)
		}
	}
	if err := repo.Save(ctx, testSnapshot("conv-2", "correct-1")); err != nil {
		t.Fatalf("save other: %v", err)
	}

	if err := repo.Prune(ctx, "conv-1", 5); err != nil {
		t.Fatalf("prune: %v", err)
	}

	if n := countSnapshots(t, s, "conv-1"); n != 5 {
		t.Errorf("remaining snapshots = %d, want 5", n)
	}
	if n := countSnapshots(t, s, "conv-2"); n != 1 {
		t.Errorf("other conversation snapshots = %d, want 1", n)
	}
}

func TestSnapshotPruneWithFewerThanKeep(t *testing.T) {
	s := openTestStore(t)
	repo := s.SnapshotRepo()
	ctx := context.Background()

	for i := 0; i < 2; i++ {
		if err := repo.Save(ctx, testSnapshot("conv-1", "correct-1")); err != nil {
			t.Fatalf("save %d: %v", i, err)
		}
	}

	// Prune with keep=5 should be a no-op.
	if err := repo.Prune(ctx, "conv-1", 5); err != nil {
		t.Fatalf("prune: %v", err)
	}
	if n := countSnapshots(t, s, "conv-1"); n != 2 {
		t.Errorf("remaining snapshots = %d, want 2", n)
	}
}

func TestSnapshotRequiresConversationID(t *testing.T) {
	s := openTestStore(t)
	if err := s.SnapshotRepo().Save(context.Background(), testSnapshot("", "correct-1")); err == nil {
		t.Fatal("expected error for empty conversation id")
	}
}

func countSnapshots(t *testing.T, s *Store, conversationID string) int {
	t.Helper()
	var n int
	err := s.DB().QueryRow(
		"SELECT COUNT(*) FROM "+tableSnapshots+" WHERE conversation_id = ?", conversationID,
	).Scan(&n)
	if err != nil {
		t.Fatalf("count: %v", err)
	}
	return n
}
