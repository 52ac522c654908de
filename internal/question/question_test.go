package question

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/bson"
)

func TestParseLabel(t *testing.T) {
	tests := []struct {
		in   string
		want Label
	}{
		{"c", LabelC},
		{"C", LabelC},
		{"(C)", LabelC},
		{"C.", LabelC},
		{" e ", LabelE},
	}
	for _, tt := range tests {
		got, err := ParseLabel(tt.in)
		require.NoError(t, err, tt.in)
		assert.Equal(t, tt.want, got, tt.in)
	}

	for _, bad := range []string{"", "f", "cc", "1"} {
		_, err := ParseLabel(bad)
		assert.Error(t, err, bad)
	}
}

type fakeAnswered map[string][]string

func (f fakeAnswered) AnsweredQuestionIDs(_ context.Context, userID string) ([]string, error) {
	return f[userID], nil
}

func TestLoadFile(t *testing.T) {
	src, err := LoadFile("testdata/bank.yaml", nil)
	require.NoError(t, err)
	assert.Equal(t, 2, src.Len())

	q, err := src.Get(context.Background(), "neuro-001")
	require.NoError(t, err)
	assert.Equal(t, LabelA, q.Answer, "answer label is normalized")
	assert.Equal(t, "Aspirin", q.Choice(LabelA).Text)
	assert.Equal(t, "Neurology", q.Topic)
	assert.True(t, q.IsCorrect(LabelA))
	assert.False(t, q.IsCorrect(LabelB))

	_, err = src.Get(context.Background(), "missing")
	assert.True(t, errors.Is(err, ErrNotFound))
}

func TestParseYAMLRejectsIncompleteQuestion(t *testing.T) {
	_, err := ParseYAML([]byte(`
questions:
  - id: q1
    stem: Which?
    answer: a
    choices:
      a: {text: one}
`), nil)
	assert.Error(t, err)
}

func TestRandomUnanswered(t *testing.T) {
	answered := fakeAnswered{"u1": {"card-001"}}
	src, err := LoadFile("testdata/bank.yaml", answered)
	require.NoError(t, err)
	src.Seed(7)
	ctx := context.Background()

	id, err := src.RandomUnanswered(ctx, "u1", Filter{})
	require.NoError(t, err)
	assert.Equal(t, "neuro-001", id)

	_, err = src.RandomUnanswered(ctx, "u1", Filter{Topics: []string{"cardiology"}})
	assert.True(t, errors.Is(err, ErrNoneAvailable))

	id, err = src.RandomUnanswered(ctx, "u2", Filter{Systems: []string{"Cardiovascular"}})
	require.NoError(t, err)
	assert.Equal(t, "card-001", id)
}

func TestFilterDoc(t *testing.T) {
	doc := filterDoc(Filter{Topics: []string{"Cardiology"}, Steps: []string{"step1", "step2"}})
	assert.Equal(t, bson.M{
		"topic": bson.M{"$in": []string{"Cardiology"}},
		"step":  bson.M{"$in": []string{"step1", "step2"}},
	}, doc)

	assert.Empty(t, filterDoc(Filter{}))
}
