package store

import (
	"entgo.io/ent/dialect/sql/schema"
	"entgo.io/ent/schema/field"
)

// Table definitions are declared directly against ent's migration schema,
// the same shape entc emits into migrate/schema.go. Queries are built with
// ent's dialect/sql builders.

const textSize = 2147483647

const (
	tableLLMEvents           = "llm_request_events"
	tableAnswers             = "answers"
	tableFoundationalAnswers = "foundational_answers"
	tableReviewQuestions     = "review_questions"
	tableSnapshots           = "conversation_snapshots"
)

var (
	llmEventColumns = []*schema.Column{
		{Name: "id", Type: field.TypeInt, Increment: true},
		{Name: "sequence", Type: field.TypeInt64, Unique: true},
		{Name: "timestamp", Type: field.TypeInt64},
		{Name: "provider", Type: field.TypeString},
		{Name: "model", Type: field.TypeString},
		{Name: "purpose", Type: field.TypeString},
		{Name: "input_tokens", Type: field.TypeInt, Default: 0},
		{Name: "output_tokens", Type: field.TypeInt, Default: 0},
		{Name: "latency_ms", Type: field.TypeInt64, Default: 0},
		{Name: "success", Type: field.TypeBool, Default: false},
		{Name: "error_message", Type: field.TypeString, Default: ""},
		{Name: "request_body", Type: field.TypeString, Size: textSize, Default: ""},
		{Name: "response_body", Type: field.TypeString, Size: textSize, Default: ""},
	}
	llmEventsTable = &schema.Table{
		Name:       tableLLMEvents,
		Columns:    llmEventColumns,
		PrimaryKey: []*schema.Column{llmEventColumns[0]},
		Indexes: []*schema.Index{
			{Name: "llmrequestevent_purpose", Columns: []*schema.Column{llmEventColumns[5]}},
			{Name: "llmrequestevent_timestamp", Columns: []*schema.Column{llmEventColumns[2]}},
		},
	}

	answerColumns = []*schema.Column{
		{Name: "id", Type: field.TypeInt, Increment: true},
		{Name: "sequence", Type: field.TypeInt64, Unique: true},
		{Name: "timestamp", Type: field.TypeInt64},
		{Name: "user_id", Type: field.TypeString},
		{Name: "question_id", Type: field.TypeString},
		{Name: "chosen", Type: field.TypeString, Size: 1},
	}
	answersTable = &schema.Table{
		Name:       tableAnswers,
		Columns:    answerColumns,
		PrimaryKey: []*schema.Column{answerColumns[0]},
		Indexes: []*schema.Index{
			{Name: "answer_user_id_question_id", Columns: []*schema.Column{answerColumns[3], answerColumns[4]}},
		},
	}

	foundationalColumns = []*schema.Column{
		{Name: "session_id", Type: field.TypeString},
		{Name: "answers", Type: field.TypeJSON},
		{Name: "updated_at", Type: field.TypeInt64},
	}
	foundationalTable = &schema.Table{
		Name:       tableFoundationalAnswers,
		Columns:    foundationalColumns,
		PrimaryKey: []*schema.Column{foundationalColumns[0]},
	}

	reviewColumns = []*schema.Column{
		{Name: "id", Type: field.TypeString},
		{Name: "question_id", Type: field.TypeString},
		{Name: "user_id", Type: field.TypeString},
		{Name: "chosen", Type: field.TypeString, Size: 1},
		{Name: "question", Type: field.TypeString, Size: textSize},
		{Name: "answer_criteria", Type: field.TypeJSON},
		{Name: "created_at", Type: field.TypeInt64},
	}
	reviewTable = &schema.Table{
		Name:       tableReviewQuestions,
		Columns:    reviewColumns,
		PrimaryKey: []*schema.Column{reviewColumns[0]},
		Indexes: []*schema.Index{
			{Name: "reviewquestion_user_id", Columns: []*schema.Column{reviewColumns[2]}},
		},
	}

	snapshotColumns = []*schema.Column{
		{Name: "id", Type: field.TypeInt, Increment: true},
		{Name: "conversation_id", Type: field.TypeString},
		{Name: "sequence", Type: field.TypeInt64, Unique: true},
		{Name: "timestamp", Type: field.TypeInt64},
		{Name: "data", Type: field.TypeJSON},
	}
	snapshotsTable = &schema.Table{
		Name:       tableSnapshots,
		Columns:    snapshotColumns,
		PrimaryKey: []*schema.Column{snapshotColumns[0]},
		Indexes: []*schema.Index{
			{Name: "snapshot_conversation_id_sequence", Columns: []*schema.Column{snapshotColumns[1], snapshotColumns[2]}},
		},
	}

	tables = []*schema.Table{
		llmEventsTable,
		answersTable,
		foundationalTable,
		reviewTable,
		snapshotsTable,
	}
)
