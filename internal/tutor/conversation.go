package tutor

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"strings"
	"sync"

	"github.com/google/uuid"
	"golang.org/x/sync/semaphore"

	"github.com/abhisek/boardprep/internal/logger"
	"github.com/abhisek/boardprep/internal/question"
	"github.com/abhisek/boardprep/internal/transcript"
)

// ErrBusy is returned when a turn is requested while another is still
// streaming.
var ErrBusy = errors.New("a reply is already in progress for this conversation")

// Snapshot is the resumable state of a conversation.
type Snapshot struct {
	ID          string                 `json:"id"`
	UserID      string                 `json:"user_id"`
	QuestionID  string                 `json:"question_id"`
	Chosen      question.Label         `json:"chosen"`
	Step        Step                   `json:"step"`
	PendingTags []transcript.Tag       `json:"pending_tags,omitempty"`
	Transcript  *transcript.Transcript `json:"transcript"`
}

// SnapshotSink persists conversation snapshots.
type SnapshotSink interface {
	SaveSnapshot(ctx context.Context, snap *Snapshot) error
}

// SnapshotLoader returns the latest snapshot of a conversation, or nil
// when there is none.
type SnapshotLoader interface {
	LoadSnapshot(ctx context.Context, id string) (*Snapshot, error)
}

// Conversation is one student's tutoring session on one question. Only one
// turn may be in flight at a time.
type Conversation struct {
	id     string
	userID string
	q      *question.Question
	chosen question.Label
	track  Track

	orch *Orchestrator
	sink SnapshotSink
	log  *logger.Logger

	guard *semaphore.Weighted

	mu          sync.Mutex
	tr          *transcript.Transcript
	step        Step
	pendingTags []transcript.Tag
}

// Option configures a Conversation.
type Option func(*Conversation)

// WithSink saves a snapshot after every turn.
func WithSink(sink SnapshotSink) Option {
	return func(c *Conversation) { c.sink = sink }
}

// WithLogger sets the conversation logger.
func WithLogger(log *logger.Logger) Option {
	return func(c *Conversation) { c.log = logger.OrNop(log) }
}

// WithID sets the conversation ID instead of generating one.
func WithID(id string) Option {
	return func(c *Conversation) { c.id = id }
}

// NewConversation starts a conversation for the student's chosen label.
// The track is fixed here and never changes.
func NewConversation(orch *Orchestrator, userID string, q *question.Question, chosen question.Label, opts ...Option) *Conversation {
	track := TrackFor(q, chosen)
	c := &Conversation{
		id:     uuid.NewString(),
		userID: userID,
		q:      q,
		chosen: chosen,
		track:  track,
		orch:   orch,
		log:    logger.Nop(),
		guard:  semaphore.NewWeighted(1),
		tr:     &transcript.Transcript{},
		step:   track.Entry(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Restore rebuilds a conversation from a snapshot. q must be the question
// the snapshot refers to.
func Restore(orch *Orchestrator, snap *Snapshot, q *question.Question, opts ...Option) (*Conversation, error) {
	if snap.QuestionID != q.ID {
		return nil, fmt.Errorf("restore conversation %s: snapshot is for question %s, got %s", snap.ID, snap.QuestionID, q.ID)
	}
	c := NewConversation(orch, snap.UserID, q, snap.Chosen, append([]Option{WithID(snap.ID)}, opts...)...)
	c.step = snap.Step
	c.pendingTags = slices.Clone(snap.PendingTags)
	if snap.Transcript != nil {
		c.tr = snap.Transcript.Clone()
	}
	return c, nil
}

func (c *Conversation) ID() string                   { return c.id }
func (c *Conversation) UserID() string               { return c.userID }
func (c *Conversation) Question() *question.Question { return c.q }
func (c *Conversation) Chosen() question.Label       { return c.chosen }
func (c *Conversation) Track() Track                 { return c.track }

// Step returns the current step.
func (c *Conversation) Step() Step {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.step
}

// Done reports whether the conversation reached a terminal step.
func (c *Conversation) Done() bool {
	return c.Step().Terminal()
}

// Transcript returns a copy of the transcript.
func (c *Conversation) Transcript() *transcript.Transcript {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.tr.Clone()
}

// Snapshot captures the current state.
func (c *Conversation) Snapshot() *Snapshot {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.snapshotLocked()
}

func (c *Conversation) snapshotLocked() *Snapshot {
	return &Snapshot{
		ID:          c.id,
		UserID:      c.userID,
		QuestionID:  c.q.ID,
		Chosen:      c.chosen,
		Step:        c.step,
		PendingTags: slices.Clone(c.pendingTags),
		Transcript:  c.tr.Clone(),
	}
}

// Start emits the opening turn of the track. It is equivalent to advancing
// the entry step without a student message.
func (c *Conversation) Start(ctx context.Context) (*Reply, error) {
	if !c.guard.TryAcquire(1) {
		return nil, ErrBusy
	}
	c.mu.Lock()
	step := c.step
	c.mu.Unlock()
	return c.advance(ctx, step), nil
}

// Respond records the student's message and advances the dialogue. The
// caller must drain or close the reply stream; the next turn is accepted
// only after that.
func (c *Conversation) Respond(ctx context.Context, text string) (*Reply, error) {
	if !c.guard.TryAcquire(1) {
		return nil, ErrBusy
	}

	c.mu.Lock()
	c.tr.Append(transcript.NewMessage(transcript.RoleUser, text, c.pendingTags...))
	step := c.route(c.step, text)
	c.mu.Unlock()

	return c.advance(ctx, step), nil
}

// advance runs one step. The guard must be held; it is released once the
// reply stream finishes.
func (c *Conversation) advance(ctx context.Context, step Step) *Reply {
	c.mu.Lock()
	tr := c.tr.Clone()
	c.mu.Unlock()

	reply := c.orch.Advance(ctx, c.q, c.chosen, tr, step)

	reply.Stream().OnFinish(func(text string, _ error) {
		defer c.guard.Release(1)
		c.finishTurn(context.WithoutCancel(ctx), reply, text)
	})
	return reply
}

// finishTurn appends whatever text was produced, commits the next step
// unless the turn failed, and saves a snapshot.
func (c *Conversation) finishTurn(ctx context.Context, reply *Reply, text string) {
	out := reply.Outcome()

	c.mu.Lock()
	if text != "" {
		c.tr.Append(transcript.NewMessage(transcript.RoleAssistant, text, out.Tags...))
	}
	if out.Error == "" {
		c.step = out.Next
		c.pendingTags = slices.Clone(out.NextUserTags)
	} else if len(out.NextUserTags) > 0 {
		c.pendingTags = slices.Clone(out.NextUserTags)
	}
	snap := c.snapshotLocked()
	c.mu.Unlock()

	if c.sink == nil {
		return
	}
	if err := c.sink.SaveSnapshot(ctx, snap); err != nil {
		c.log.Warn("save conversation snapshot", "conversation", c.id, "error", err)
	}
}

// maxRouteHops bounds menu routing. A selection currently resolves in one hop.
const maxRouteHops = 4

// route maps the current step and the student's text to the step to
// resolve. Only the follow-up menu routes on content.
func (c *Conversation) route(step Step, text string) Step {
	for range maxRouteHops {
		next, ok := c.routeOnce(step, text)
		if !ok {
			return step
		}
		step = next
	}
	return step
}

func (c *Conversation) routeOnce(step Step, text string) (Step, bool) {
	if step != StepFollowUpMenu {
		return step, false
	}
	switch strings.ToLower(strings.Trim(strings.TrimSpace(text), ".!")) {
	case "1", "challenge":
		return StepFollowUpChallenge, true
	case "2", "schema":
		return StepFollowUpSchema, true
	case "3", "systems":
		return StepFollowUpSystems, true
	case "4", "integration":
		return StepFollowUpIntegration, true
	case "done", "quit", "exit":
		return c.track.Complete(), true
	}
	return step, false
}
