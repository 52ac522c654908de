package tutor

import (
	"context"
	"errors"
	"fmt"
	"text/template"

	"github.com/abhisek/boardprep/internal/grader"
	"github.com/abhisek/boardprep/internal/question"
	"github.com/abhisek/boardprep/internal/transcript"
)

var (
	// ErrUnknownStep is returned for a step outside the enumeration.
	ErrUnknownStep = errors.New("unknown tutoring step")

	// ErrUnreachableStep is returned for the *-2-check steps, which the
	// dialogue never enters.
	ErrUnreachableStep = errors.New("unreachable tutoring step")
)

// Validator judges student replies. *grader.Grader implements it.
type Validator interface {
	ValidateExplanation(ctx context.Context, q *question.Question, chosen question.Label, text string) grader.Verdict
	ValidateSatisfaction(ctx context.Context, text string) grader.Verdict
	ValidateIntegrationAnswer(ctx context.Context, integrationQuestion, text string) grader.Verdict
	ValidateNextStepAnswer(ctx context.Context, q *question.Question, text string) grader.Verdict
}

// Registry maps a step and the transcript so far to an Outcome. Apart from
// the validator calls it makes, Resolve is a pure function: it never
// mutates the transcript and returns identical outcomes for identical
// inputs and verdicts.
type Registry struct {
	v Validator
}

// NewRegistry creates a Registry backed by v.
func NewRegistry(v Validator) *Registry {
	return &Registry{v: v}
}

var explanationTags = []transcript.Tag{transcript.TagStudentExplanation}

// Resolve evaluates step.
func (r *Registry) Resolve(ctx context.Context, step Step, q *question.Question, chosen question.Label, tr *transcript.Transcript) (Outcome, error) {
	d := newPromptData(q, chosen)

	switch step {
	case StepIncorrect1:
		return entry(StepIncorrect1Check), nil
	case StepCorrect1:
		return entry(StepCorrect1Check), nil

	case StepIncorrect1Check, StepCorrect1Check:
		return r.explanationGate(ctx, step, q, chosen, tr, d)

	case StepIncorrect2Check, StepCorrect2Check:
		return Outcome{}, fmt.Errorf("%w: %s", ErrUnreachableStep, step)

	case StepIncorrect3Check:
		reply, err := tr.LatestUser()
		if err != nil {
			return Outcome{}, err
		}
		v := r.v.ValidateIntegrationAnswer(ctx, OwnWordsQuestion(q, chosen), reply.Content)
		switch {
		case v.Error != "":
			return errorOutcome(step, v.Error, false), nil
		case !v.Valid:
			return Outcome{Message: OwnWordsReprompt(q, chosen), Next: step}, nil
		}
		return Outcome{Message: IncorrectClosingMessage, Next: StepFollowUpMenu}, nil

	case StepCorrect3Check:
		posed, err := tr.LatestTagged(transcript.TagIntegrationQuestion)
		if err != nil {
			return Outcome{}, err
		}
		reply, err := tr.LatestUser()
		if err != nil {
			return Outcome{}, err
		}
		d.Previous = posed.Content
		d.Answer = reply.Content
		v := r.v.ValidateIntegrationAnswer(ctx, posed.Content, reply.Content)
		switch {
		case v.Error != "":
			return errorOutcome(step, v.Error, true), nil
		case !v.Valid:
			return elaborate(integrationRetryTemplate, d, step, transcript.TagIntegrationQuestion)
		}
		return elaborate(expertModelTemplate, d, StepCorrect4Check)

	case StepCorrect4Check:
		reply, err := tr.LatestUser()
		if err != nil {
			return Outcome{}, err
		}
		if posed, err := tr.LatestTagged(transcript.TagIntegrationQuestion); err == nil {
			d.Previous = posed.Content
		}
		v := r.v.ValidateSatisfaction(ctx, reply.Content)
		switch {
		case v.Error != "":
			return errorOutcome(step, v.Error, true), nil
		case !v.Valid:
			return elaborate(expertRetryTemplate, d, step)
		}
		return elaborate(nextStepTemplate, d, StepCorrect5Check)

	case StepCorrect5Check:
		reply, err := tr.LatestUser()
		if err != nil {
			return Outcome{}, err
		}
		v := r.v.ValidateNextStepAnswer(ctx, q, reply.Content)
		switch {
		case v.Error != "":
			return errorOutcome(step, v.Error, true), nil
		case !v.Valid:
			return elaborate(nextStepRetryTemplate, d, step)
		}
		return Outcome{Message: GoodWorkMessage, Next: StepFollowUpMenu}, nil

	case StepFollowUpMenu:
		return Outcome{Message: MenuMessage, Next: StepFollowUpMenu}, nil
	case StepFollowUpChallenge:
		return elaborate(challengeTemplate, d, StepFollowUpMenu)
	case StepFollowUpSchema:
		return elaborate(schemaTemplate, d, StepFollowUpMenu)
	case StepFollowUpSystems:
		return elaborate(systemsTemplate, d, StepFollowUpMenu)
	case StepFollowUpIntegration:
		return elaborate(integrationTemplate, d, StepFollowUpMenu)

	case StepIncorrectComplete, StepCorrectComplete:
		return Outcome{Message: CompleteMessage, Next: step, Done: true}, nil
	}

	return Outcome{}, fmt.Errorf("%w: %s", ErrUnknownStep, step)
}

// explanationGate handles both *-1-check steps. A valid explanation skips
// the *-2-check step and goes straight to a combined teach-and-challenge
// turn.
func (r *Registry) explanationGate(ctx context.Context, step Step, q *question.Question, chosen question.Label, tr *transcript.Transcript, d promptData) (Outcome, error) {
	reply, err := tr.LatestUser()
	if err != nil {
		return Outcome{}, err
	}

	v := r.v.ValidateExplanation(ctx, q, chosen, reply.Content)
	switch {
	case v.Error != "":
		out := errorOutcome(step, v.Error, false)
		out.NextUserTags = explanationTags
		return out, nil
	case !v.Valid:
		return Outcome{Message: ClarifyPrompt, NextUserTags: explanationTags, Next: step}, nil
	}

	d.Explanation = reply.Content
	if step == StepCorrect1Check {
		return elaborate(teachCorrectTemplate, d, StepCorrect3Check, transcript.TagIntegrationQuestion)
	}
	return elaborate(teachIncorrectTemplate, d, StepIncorrect3Check)
}

func entry(next Step) Outcome {
	return Outcome{Message: ExplainPrompt, NextUserTags: explanationTags, Next: next}
}

// errorOutcome keeps the step and carries the re-prompt flag the step uses
// for its own retry message.
func errorOutcome(step Step, msg string, prompt bool) Outcome {
	return Outcome{Prompt: prompt, Message: msg, Error: msg, Next: step}
}

func elaborate(t *template.Template, d promptData, next Step, tags ...transcript.Tag) (Outcome, error) {
	msg, err := render(t, d)
	if err != nil {
		return Outcome{}, err
	}
	return Outcome{Prompt: true, Message: msg, Tags: tags, Next: next}, nil
}
