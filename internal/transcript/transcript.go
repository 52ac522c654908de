// Package transcript holds the append-only message log shared by the
// tutoring state machine and the chat history harness.
package transcript

import (
	"encoding/json"
	"errors"
	"fmt"
	"slices"

	"github.com/google/uuid"
)

// ErrNoMessage is returned when a lookup finds no matching message.
var ErrNoMessage = errors.New("no message found")

// Role is the author of a message.
type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// Tag marks a message's role in the step machine so later steps can find
// it without positional assumptions.
type Tag string

const (
	TagStudentExplanation  Tag = "student-explanation"
	TagIntegrationQuestion Tag = "integration-question"
)

// Message is one conversational turn.
type Message struct {
	ID      string `json:"id"`
	Role    Role   `json:"role"`
	Content string `json:"content"`
	Tags    []Tag  `json:"tags,omitempty"`
}

// NewMessage builds a message with a fresh ID.
func NewMessage(role Role, content string, tags ...Tag) Message {
	return Message{
		ID:      uuid.NewString(),
		Role:    role,
		Content: content,
		Tags:    slices.Clone(tags),
	}
}

// HasTag reports whether the message carries tag.
func (m Message) HasTag(tag Tag) bool {
	return slices.Contains(m.Tags, tag)
}

// Transcript is an ordered, append-only list of messages. The zero value
// is an empty transcript ready to use.
type Transcript struct {
	msgs []Message
}

// New returns a transcript holding copies of msgs.
func New(msgs ...Message) *Transcript {
	t := &Transcript{}
	for _, m := range msgs {
		t.Append(m)
	}
	return t
}

// Append adds m to the end of the transcript, assigning an ID if m has none.
// It returns the stored message.
func (t *Transcript) Append(m Message) Message {
	if m.ID == "" {
		m.ID = uuid.NewString()
	}
	m.Tags = slices.Clone(m.Tags)
	t.msgs = append(t.msgs, m)
	return m
}

// Len returns the number of messages.
func (t *Transcript) Len() int {
	if t == nil {
		return 0
	}
	return len(t.msgs)
}

// Messages returns a copy of the messages, oldest first.
func (t *Transcript) Messages() []Message {
	if t == nil {
		return nil
	}
	out := make([]Message, len(t.msgs))
	for i, m := range t.msgs {
		m.Tags = slices.Clone(m.Tags)
		out[i] = m
	}
	return out
}

// Clone returns an independent copy.
func (t *Transcript) Clone() *Transcript {
	return New(t.Messages()...)
}

// LatestUser returns the most recent user message.
func (t *Transcript) LatestUser() (Message, error) {
	return t.latest(func(m Message) bool { return m.Role == RoleUser }, "user")
}

// LatestTagged returns the most recent message carrying tag.
func (t *Transcript) LatestTagged(tag Tag) (Message, error) {
	return t.latest(func(m Message) bool { return m.HasTag(tag) }, string(tag))
}

func (t *Transcript) latest(match func(Message) bool, what string) (Message, error) {
	if t != nil {
		for i := len(t.msgs) - 1; i >= 0; i-- {
			if match(t.msgs[i]) {
				m := t.msgs[i]
				m.Tags = slices.Clone(m.Tags)
				return m, nil
			}
		}
	}
	return Message{}, fmt.Errorf("%w: %s", ErrNoMessage, what)
}

// DropOldest removes all but the newest keep messages and returns the
// number removed.
func (t *Transcript) DropOldest(keep int) int {
	if keep < 0 {
		keep = 0
	}
	n := len(t.msgs) - keep
	if n <= 0 {
		return 0
	}
	t.msgs = slices.Clone(t.msgs[n:])
	return n
}

// IndexOf returns the position of the message with the given ID, or -1.
func (t *Transcript) IndexOf(id string) int {
	if t == nil {
		return -1
	}
	return slices.IndexFunc(t.msgs, func(m Message) bool { return m.ID == id })
}

// MarshalJSON encodes the transcript as a JSON array of messages.
func (t *Transcript) MarshalJSON() ([]byte, error) {
	msgs := t.Messages()
	if msgs == nil {
		msgs = []Message{}
	}
	return json.Marshal(msgs)
}

// UnmarshalJSON replaces the transcript with the decoded messages.
func (t *Transcript) UnmarshalJSON(data []byte) error {
	var msgs []Message
	if err := json.Unmarshal(data, &msgs); err != nil {
		return fmt.Errorf("decode transcript: %w", err)
	}
	for i, m := range msgs {
		if m.Role != RoleUser && m.Role != RoleAssistant {
			return fmt.Errorf("decode transcript: message %d has unknown role %q", i, m.Role)
		}
	}
	t.msgs = msgs
	return nil
}
