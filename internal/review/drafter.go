// Package review drafts short free-response review questions from a
// question the student has worked through.
package review

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/abhisek/boardprep/internal/llm"
	"github.com/abhisek/boardprep/internal/logger"
	"github.com/abhisek/boardprep/internal/question"
	"github.com/abhisek/boardprep/internal/store"
)

// ErrInvalidDraft is returned when the model's draft is missing the
// question or its criteria.
var ErrInvalidDraft = errors.New("invalid review question draft")

// DraftSchema is the structured output requested for a draft.
var DraftSchema = &llm.Schema{
	Name:        "review-question",
	Description: "A free-response review question with grading criteria",
	Definition: map[string]any{
		"type": "object",
		"properties": map[string]any{
			"question": map[string]any{
				"type":        "string",
				"description": "One free-response question testing the concept the student missed or just learned",
			},
			"answerCriteria": map[string]any{
				"type":        "array",
				"description": "Two to four short points a complete answer must mention",
				"items":       map[string]any{"type": "string"},
			},
		},
		"required": []any{"question", "answerCriteria"},
	},
}

const draftSystemPrompt = `You write spaced-repetition review questions for medical students preparing for USMLE.
Given a multiple-choice question and the student's answer, write one free-response question that targets the concept behind the correct answer, plus the criteria a grader should look for.
Respond with JSON only.`

// Config holds drafting settings.
type Config struct {
	MaxTokens   int
	Temperature float64
}

// DefaultConfig returns sensible defaults for drafting.
func DefaultConfig() Config {
	return Config{
		MaxTokens:   600,
		Temperature: 0.3,
	}
}

// Drafter asks the model for a review question and stores it.
type Drafter struct {
	provider llm.Provider
	repo     store.ReviewRepo
	cfg      Config
	log      *logger.Logger
}

// NewDrafter creates a Drafter.
func NewDrafter(provider llm.Provider, repo store.ReviewRepo, cfg Config, log *logger.Logger) *Drafter {
	return &Drafter{provider: provider, repo: repo, cfg: cfg, log: logger.OrNop(log)}
}

type draft struct {
	Question       string   `json:"question"`
	AnswerCriteria []string `json:"answerCriteria"`
}

// Draft generates a review question for userID from q and the label they
// chose, then saves it. Nothing is saved unless the draft is valid.
func (d *Drafter) Draft(ctx context.Context, q *question.Question, chosen question.Label, userID string) (*store.ReviewQuestion, error) {
	ctx = llm.WithPurpose(ctx, llm.PurposeReviewQuestion)

	resp, err := d.provider.Generate(ctx, llm.Request{
		System: draftSystemPrompt,
		Messages: []llm.Message{
			llm.TextMessage(llm.RoleUser, buildDraftUserMessage(q, chosen)),
		},
		Schema:      DraftSchema,
		MaxTokens:   d.cfg.MaxTokens,
		Temperature: d.cfg.Temperature,
	})
	if err != nil {
		return nil, fmt.Errorf("draft review question: %w", err)
	}

	out, err := parseDraft(resp.Content)
	if err != nil {
		d.log.Warn("discarding review question draft", "question", q.ID, "error", err)
		return nil, err
	}

	rq := &store.ReviewQuestion{
		QuestionID:     q.ID,
		UserID:         userID,
		Chosen:         string(chosen),
		Question:       out.Question,
		AnswerCriteria: out.AnswerCriteria,
	}
	if err := d.repo.SaveReviewQuestion(ctx, rq); err != nil {
		return nil, err
	}
	return rq, nil
}

func parseDraft(raw json.RawMessage) (*draft, error) {
	var out draft
	if err := json.Unmarshal(raw, &out); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidDraft, err)
	}
	out.Question = strings.TrimSpace(out.Question)
	if out.Question == "" {
		return nil, fmt.Errorf("%w: empty question", ErrInvalidDraft)
	}
	if len(out.AnswerCriteria) == 0 {
		return nil, fmt.Errorf("%w: no answer criteria", ErrInvalidDraft)
	}
	for i, c := range out.AnswerCriteria {
		if strings.TrimSpace(c) == "" {
			return nil, fmt.Errorf("%w: criterion %d is empty", ErrInvalidDraft, i)
		}
	}
	return &out, nil
}

func buildDraftUserMessage(q *question.Question, chosen question.Label) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Question:\n%s\n\nChoices:\n", q.Stem)
	for _, l := range question.Labels {
		fmt.Fprintf(&b, "(%s) %s\n", l.Upper(), q.Choice(l).Text)
	}
	fmt.Fprintf(&b, "\nCorrect answer: (%s) %s\n", q.Answer.Upper(), q.Choice(q.Answer).Explanation)
	if chosen == q.Answer {
		b.WriteString("The student answered correctly.\n")
	} else {
		fmt.Fprintf(&b, "The student chose (%s): %s\n", chosen.Upper(), q.Choice(chosen).Explanation)
	}
	return b.String()
}
