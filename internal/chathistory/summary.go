package chathistory

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/abhisek/boardprep/internal/llm"
	"github.com/abhisek/boardprep/internal/transcript"
)

// Summary is a compact digest of the older part of a chat. A new Summary
// replaces the previous one on every summarization.
type Summary struct {
	Topics             []string `json:"topics"`
	UserGoals          []string `json:"user_goals"`
	AssistantResponses []string `json:"assistant_responses"`
	NamedEntities      []string `json:"named_entities"`
	OpenQuestions      []string `json:"open_questions"`
}

// String renders the summary as prompt text.
func (s *Summary) String() string {
	var b strings.Builder
	section := func(title string, items []string) {
		if len(items) == 0 {
			return
		}
		fmt.Fprintf(&b, "%s:\n", title)
		for _, it := range items {
			fmt.Fprintf(&b, "- %s\n", it)
		}
	}
	section("Topics", s.Topics)
	section("Student goals", s.UserGoals)
	section("What the tutor already covered", s.AssistantResponses)
	section("Named entities", s.NamedEntities)
	section("Open questions", s.OpenQuestions)
	return strings.TrimRight(b.String(), "\n")
}

func stringArray(desc string) map[string]any {
	return map[string]any{
		"type":        "array",
		"description": desc,
		"items":       map[string]any{"type": "string"},
	}
}

// SummarySchema is the structured output requested for summaries.
var SummarySchema = &llm.Schema{
	Name:        "chat-summary",
	Description: "Structured digest of an ongoing tutoring chat",
	Definition: map[string]any{
		"type": "object",
		"properties": map[string]any{
			"topics":              stringArray("Medical topics discussed"),
			"user_goals":          stringArray("What the student is trying to achieve"),
			"assistant_responses": stringArray("One line per substantive tutor answer describing what it explained"),
			"named_entities":      stringArray("Diseases, drugs, findings, tests and eponyms mentioned"),
			"open_questions":      stringArray("Questions the student raised that are not yet resolved"),
		},
		"required":             []any{"topics", "user_goals", "assistant_responses", "named_entities", "open_questions"},
		"additionalProperties": false,
	},
}

const summarySystemPrompt = `You maintain the running memory of a chat between a medical student and a USMLE tutor.
Merge the previous summary with the new messages into one updated summary. Keep every list short and factual, drop anything superseded, and never invent details.
Respond with JSON only.`

const summaryPreamble = "Summary of the conversation so far:\n"

func buildSummaryUserMessage(prev *Summary, msgs []transcript.Message) string {
	var b strings.Builder
	b.WriteString("Previous summary:\n")
	if prev == nil {
		b.WriteString("(none)\n")
	} else {
		raw, _ := json.Marshal(prev)
		b.Write(raw)
		b.WriteString("\n")
	}
	b.WriteString("\nNew messages:\n")
	for _, m := range msgs {
		fmt.Fprintf(&b, "%s: %s\n", m.Role, m.Content)
	}
	return b.String()
}

func parseSummary(raw json.RawMessage) (*Summary, error) {
	var s Summary
	if err := json.Unmarshal(raw, &s); err != nil {
		return nil, fmt.Errorf("parse summary: %w", err)
	}
	return &s, nil
}
