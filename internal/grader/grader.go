// Package grader asks the language model narrow yes/no questions about a
// student's free-text reply.
package grader

import (
	"bytes"
	"context"
	"strings"
	"text/template"

	"github.com/abhisek/boardprep/internal/llm"
	"github.com/abhisek/boardprep/internal/logger"
	"github.com/abhisek/boardprep/internal/question"
)

// ServiceUnavailable is the verdict error shown when the judgment call
// itself fails.
const ServiceUnavailable = "Validation service unavailable. Please try again."

// Verdict is the outcome of one judgment. Error is set only when the model
// could not be reached, which is distinct from an ordinary "no".
type Verdict struct {
	Valid bool
	Error string
}

// Config holds judgment call settings.
type Config struct {
	MaxTokens   int
	Temperature float64
}

// DefaultConfig returns sensible defaults for yes/no judgments.
func DefaultConfig() Config {
	return Config{
		MaxTokens:   16,
		Temperature: 0,
	}
}

// Grader validates student replies against fixed rubrics.
type Grader struct {
	provider llm.Provider
	cfg      Config
	log      *logger.Logger
}

// New creates a Grader.
func New(provider llm.Provider, cfg Config, log *logger.Logger) *Grader {
	return &Grader{provider: provider, cfg: cfg, log: logger.OrNop(log)}
}

// ValidateExplanation asks whether text is a topically related answer to
// "what finding made you choose this?" for the chosen label.
func (g *Grader) ValidateExplanation(ctx context.Context, q *question.Question, chosen question.Label, text string) Verdict {
	return g.judge(ctx, llm.PurposeValidateExplanation, explanationTemplate, map[string]any{
		"Stem":       q.Stem,
		"Label":      chosen.Upper(),
		"ChoiceText": q.Choice(chosen).Text,
		"Reply":      text,
	})
}

// ValidateSatisfaction asks whether text reads as satisfied or accepting.
func (g *Grader) ValidateSatisfaction(ctx context.Context, text string) Verdict {
	return g.judge(ctx, llm.PurposeValidateSatisfaction, satisfactionTemplate, map[string]any{
		"Reply": text,
	})
}

// ValidateIntegrationAnswer asks whether text validly answers a question
// the tutor posed earlier.
func (g *Grader) ValidateIntegrationAnswer(ctx context.Context, integrationQuestion, text string) Verdict {
	return g.judge(ctx, llm.PurposeValidateIntegration, integrationTemplate, map[string]any{
		"Question": integrationQuestion,
		"Reply":    text,
	})
}

// ValidateNextStepAnswer asks whether text is a reasonable answer to "what
// would you do next clinically" for the vignette.
func (g *Grader) ValidateNextStepAnswer(ctx context.Context, q *question.Question, text string) Verdict {
	return g.judge(ctx, llm.PurposeValidateNextStep, nextStepTemplate, map[string]any{
		"Stem":  q.Stem,
		"Reply": text,
	})
}

func (g *Grader) judge(ctx context.Context, purpose llm.Purpose, tmpl *template.Template, data map[string]any) Verdict {
	ctx = llm.WithPurpose(ctx, purpose)

	var buf bytes.Buffer
	if err := tmpl.Execute(&buf, data); err != nil {
		g.log.Error("render judgment prompt", "purpose", purpose, "error", err)
		return Verdict{Error: ServiceUnavailable}
	}

	resp, err := g.provider.Generate(ctx, llm.Request{
		System:      judgeSystemPrompt,
		Messages:    []llm.Message{llm.TextMessage(llm.RoleUser, buf.String())},
		MaxTokens:   g.cfg.MaxTokens,
		Temperature: g.cfg.Temperature,
	})
	if err != nil {
		g.log.Warn("judgment call failed", "purpose", purpose, "error", err)
		return Verdict{Error: ServiceUnavailable}
	}

	return Verdict{Valid: IsYes(resp.Text())}
}

// IsYes reports whether a model answer counts as affirmative: after trimming
// and lower-casing it must start with "yes". "yes, but..." therefore counts.
func IsYes(out string) bool {
	return strings.HasPrefix(strings.ToLower(strings.TrimSpace(out)), "yes")
}
