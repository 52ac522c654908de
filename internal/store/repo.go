package store

import (
	"context"
	"encoding/json"
	"time"
)

// QueryOpts configures event queries with filtering and pagination.
type QueryOpts struct {
	Limit   int       // max results (0 = unlimited)
	After   int64     // sequence > After
	Before  int64     // sequence < Before
	From    time.Time // timestamp >= From
	To      time.Time // timestamp <= To
	Purpose string    // exact purpose match (LLM events only)
}

// LLMRequestEventData captures the data for a single LLM request event.
type LLMRequestEventData struct {
	Provider     string
	Model        string
	Purpose      string
	InputTokens  int
	OutputTokens int
	LatencyMs    int64
	Success      bool
	ErrorMessage string
	RequestBody  string
	ResponseBody string
}

// LLMEventRecord is a stored LLM request event.
type LLMEventRecord struct {
	ID        int
	Sequence  int64
	Timestamp time.Time
	LLMRequestEventData
}

// LLMUsage aggregates token usage for one purpose or model.
type LLMUsage struct {
	Purpose      string
	Model        string
	Calls        int
	InputTokens  int
	OutputTokens int
	AvgLatencyMs int64
}

// EventRepo provides append access to the LLM audit log.
type EventRepo interface {
	// AppendLLMRequest records an LLM API call event.
	AppendLLMRequest(ctx context.Context, data LLMRequestEventData) error
}

// LLMEventReader queries the LLM audit log.
type LLMEventReader interface {
	QueryLLMEvents(ctx context.Context, opts QueryOpts) ([]LLMEventRecord, error)
	GetLLMEvent(ctx context.Context, id int) (*LLMEventRecord, error)
	LLMUsageByPurpose(ctx context.Context) ([]LLMUsage, error)
	LLMUsageByModel(ctx context.Context) ([]LLMUsage, error)
}

// AnswerRecord is one submitted answer. Submissions are additive history.
type AnswerRecord struct {
	ID         int
	Sequence   int64
	Timestamp  time.Time
	UserID     string
	QuestionID string
	Chosen     string
}

// AnswerRepo persists multiple-choice submissions and the session-scoped
// foundational answers.
type AnswerRepo interface {
	RecordAnswer(ctx context.Context, userID, questionID, chosen string) error
	Answers(ctx context.Context, userID string) ([]AnswerRecord, error)
	AnsweredQuestionIDs(ctx context.Context, userID string) ([]string, error)

	// SetFoundationalAnswer replaces slot index of the session's answer
	// array, growing the array with empty strings as needed.
	SetFoundationalAnswer(ctx context.Context, sessionID string, index int, answer string) error
	FoundationalAnswers(ctx context.Context, sessionID string) ([]string, error)
}

// ReviewQuestion is a drafted review question attached to the question and
// the user it was generated for.
type ReviewQuestion struct {
	ID             string
	QuestionID     string
	UserID         string
	Chosen         string
	Question       string
	AnswerCriteria []string
	CreatedAt      time.Time
}

// ReviewRepo stores drafted review questions.
type ReviewRepo interface {
	SaveReviewQuestion(ctx context.Context, rq *ReviewQuestion) error
	ReviewQuestions(ctx context.Context, userID string) ([]ReviewQuestion, error)
}

// SnapshotData is the resumable state of one tutoring conversation.
type SnapshotData struct {
	Version     int             `json:"version"`
	UserID      string          `json:"user_id"`
	QuestionID  string          `json:"question_id"`
	Chosen      string          `json:"chosen"`
	Step        string          `json:"step"`
	PendingTags []string        `json:"pending_tags,omitempty"`
	Transcript  json.RawMessage `json:"transcript"`
}

// Snapshot is a point-in-time capture of a conversation.
type Snapshot struct {
	ID             int
	ConversationID string
	Sequence       int64
	Timestamp      time.Time
	Data           SnapshotData
}

// SnapshotRepo manages conversation snapshots.
type SnapshotRepo interface {
	// Save stores a new snapshot. A zero Sequence is assigned from the
	// global counter.
	Save(ctx context.Context, snap *Snapshot) error

	// Latest returns the most recent snapshot of the conversation, or nil
	// if none exist.
	Latest(ctx context.Context, conversationID string) (*Snapshot, error)

	// Prune deletes all but the N most recent snapshots of the conversation.
	Prune(ctx context.Context, conversationID string, keep int) error
}
