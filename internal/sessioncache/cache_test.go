package sessioncache

import (
	"context"
	"errors"
	"os"
	"testing"
	"time"

	"github.com/abhisek/boardprep/internal/question"
	"github.com/abhisek/boardprep/internal/transcript"
	"github.com/abhisek/boardprep/internal/tutor"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testSnapshot(id string) *tutor.Snapshot {
	return &tutor.Snapshot{
		ID:          id,
		UserID:      "u1",
		QuestionID:  "card-001",
		Chosen:      question.LabelB,
		Step:        tutor.StepIncorrect1Check,
		PendingTags: []transcript.Tag{transcript.TagStudentExplanation},
		Transcript:  transcript.New(transcript.NewMessage(transcript.RoleAssistant, tutor.ExplainPrompt)),
	}
}

func exerciseCache(t *testing.T, c Cache) {
	t.Helper()
	ctx := context.Background()

	miss, err := c.LoadSnapshot(ctx, "missing")
	require.NoError(t, err)
	assert.Nil(t, miss)

	snap := testSnapshot("conv-1")
	require.NoError(t, c.SaveSnapshot(ctx, snap))

	got, err := c.LoadSnapshot(ctx, "conv-1")
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, snap.Step, got.Step)
	assert.Equal(t, snap.Chosen, got.Chosen)
	assert.Equal(t, snap.PendingTags, got.PendingTags)
	assert.Equal(t, snap.Transcript.Messages(), got.Transcript.Messages())

	// Loaded snapshots are independent copies.
	got.Transcript.Append(transcript.NewMessage(transcript.RoleUser, "changed"))
	again, err := c.LoadSnapshot(ctx, "conv-1")
	require.NoError(t, err)
	assert.Equal(t, 1, again.Transcript.Len())

	require.NoError(t, c.Delete(ctx, "conv-1"))
	gone, err := c.LoadSnapshot(ctx, "conv-1")
	require.NoError(t, err)
	assert.Nil(t, gone)
}

func TestMemoryCache(t *testing.T) {
	exerciseCache(t, NewMemory(0))
}

func TestMemoryCacheExpiry(t *testing.T) {
	m := NewMemory(time.Minute)
	now := time.Unix(1_700_000_000, 0)
	m.now = func() time.Time { return now }
	ctx := context.Background()

	require.NoError(t, m.SaveSnapshot(ctx, testSnapshot("conv-1")))

	now = now.Add(50 * time.Second)
	got, err := m.LoadSnapshot(ctx, "conv-1")
	require.NoError(t, err)
	require.NotNil(t, got, "still fresh")

	// The read slid the expiry forward.
	now = now.Add(50 * time.Second)
	got, err = m.LoadSnapshot(ctx, "conv-1")
	require.NoError(t, err)
	require.NotNil(t, got)

	now = now.Add(2 * time.Minute)
	got, err = m.LoadSnapshot(ctx, "conv-1")
	require.NoError(t, err)
	assert.Nil(t, got)
	assert.Zero(t, m.Len())
}

func TestRedisCache(t *testing.T) {
	addr := os.Getenv("BOARDPREP_TEST_REDIS_ADDR")
	if addr == "" {
		t.Skip("BOARDPREP_TEST_REDIS_ADDR not set")
	}
	client, err := ConnectRedis(context.Background(), addr, "", 0)
	require.NoError(t, err)
	t.Cleanup(func() { client.Close() })

	exerciseCache(t, NewRedis(client, time.Minute))
}

type backingStore struct {
	*Memory
	loads int
	fail  error
}

func (b *backingStore) SaveSnapshot(ctx context.Context, snap *tutor.Snapshot) error {
	if b.fail != nil {
		return b.fail
	}
	return b.Memory.SaveSnapshot(ctx, snap)
}

func (b *backingStore) LoadSnapshot(ctx context.Context, id string) (*tutor.Snapshot, error) {
	b.loads++
	return b.Memory.LoadSnapshot(ctx, id)
}

func TestReadThroughWarmsCache(t *testing.T) {
	ctx := context.Background()
	cache := NewMemory(0)
	backing := &backingStore{Memory: NewMemory(0)}
	require.NoError(t, backing.Memory.SaveSnapshot(ctx, testSnapshot("conv-1")))

	rt := NewReadThrough(cache, backing, nil)

	got, err := rt.LoadSnapshot(ctx, "conv-1")
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, 1, backing.loads)
	assert.Equal(t, 1, cache.Len())

	_, err = rt.LoadSnapshot(ctx, "conv-1")
	require.NoError(t, err)
	assert.Equal(t, 1, backing.loads, "second load is served from the cache")

	missing, err := rt.LoadSnapshot(ctx, "nope")
	require.NoError(t, err)
	assert.Nil(t, missing)
}

func TestReadThroughSaveFailsWithBacking(t *testing.T) {
	cache := NewMemory(0)
	backing := &backingStore{Memory: NewMemory(0), fail: errors.New("disk full")}
	rt := NewReadThrough(cache, backing, nil)

	err := rt.SaveSnapshot(context.Background(), testSnapshot("conv-1"))
	assert.Error(t, err)
	assert.Zero(t, cache.Len(), "the cache never runs ahead of durable storage")
}
