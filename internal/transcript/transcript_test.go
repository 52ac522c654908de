package transcript

import (
	"encoding/json"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAppendAssignsIDs(t *testing.T) {
	var tr Transcript
	m := tr.Append(Message{Role: RoleUser, Content: "hi"})
	assert.NotEmpty(t, m.ID)
	assert.Equal(t, 1, tr.Len())

	kept := tr.Append(Message{ID: "fixed", Role: RoleAssistant, Content: "hello"})
	assert.Equal(t, "fixed", kept.ID)
}

func TestLatestUser(t *testing.T) {
	tr := New(
		NewMessage(RoleAssistant, "Why did you pick B?"),
		NewMessage(RoleUser, "the rash", TagStudentExplanation),
		NewMessage(RoleAssistant, "Tell me more"),
		NewMessage(RoleUser, "and the fever"),
	)

	m, err := tr.LatestUser()
	require.NoError(t, err)
	assert.Equal(t, "and the fever", m.Content)

	tagged, err := tr.LatestTagged(TagStudentExplanation)
	require.NoError(t, err)
	assert.Equal(t, "the rash", tagged.Content)
}

func TestLatestMissing(t *testing.T) {
	tr := New(NewMessage(RoleAssistant, "Why did you pick B?"))

	_, err := tr.LatestUser()
	assert.True(t, errors.Is(err, ErrNoMessage))

	_, err = tr.LatestTagged(TagIntegrationQuestion)
	assert.True(t, errors.Is(err, ErrNoMessage))

	var empty *Transcript
	_, err = empty.LatestUser()
	assert.True(t, errors.Is(err, ErrNoMessage))
}

func TestMessagesReturnsCopy(t *testing.T) {
	tr := New(NewMessage(RoleUser, "a", TagStudentExplanation))
	msgs := tr.Messages()
	msgs[0].Content = "changed"
	msgs[0].Tags[0] = TagIntegrationQuestion

	got := tr.Messages()[0]
	assert.Equal(t, "a", got.Content)
	assert.Equal(t, []Tag{TagStudentExplanation}, got.Tags)
}

func TestDropOldest(t *testing.T) {
	tr := New(
		NewMessage(RoleUser, "1"),
		NewMessage(RoleAssistant, "2"),
		NewMessage(RoleUser, "3"),
	)
	assert.Equal(t, 1, tr.DropOldest(2))
	assert.Equal(t, "2", tr.Messages()[0].Content)
	assert.Equal(t, 0, tr.DropOldest(5))
}

func TestJSONRoundTrip(t *testing.T) {
	tr := New(
		NewMessage(RoleAssistant, "Explain your reasoning."),
		NewMessage(RoleUser, "Hyperkalemia on the ECG", TagStudentExplanation),
		NewMessage(RoleAssistant, "What would change if...", TagIntegrationQuestion),
		NewMessage(RoleUser, "Peaked T waves flatten"),
	)

	data, err := json.Marshal(tr)
	require.NoError(t, err)

	var back Transcript
	require.NoError(t, json.Unmarshal(data, &back))
	assert.Equal(t, tr.Messages(), back.Messages())
}

func TestJSONEmpty(t *testing.T) {
	data, err := json.Marshal(&Transcript{})
	require.NoError(t, err)
	assert.JSONEq(t, `[]`, string(data))
}

func TestJSONRejectsUnknownRole(t *testing.T) {
	var tr Transcript
	err := json.Unmarshal([]byte(`[{"id":"1","role":"system","content":"x"}]`), &tr)
	assert.Error(t, err)
}
