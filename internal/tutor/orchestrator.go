package tutor

import (
	"context"
	"sync"

	"github.com/abhisek/boardprep/internal/llm"
	"github.com/abhisek/boardprep/internal/logger"
	"github.com/abhisek/boardprep/internal/question"
	"github.com/abhisek/boardprep/internal/transcript"
)

// OrchestratorConfig holds elaboration settings.
type OrchestratorConfig struct {
	MaxTokens   int
	Temperature float64
}

// DefaultOrchestratorConfig returns sensible defaults for elaboration.
func DefaultOrchestratorConfig() OrchestratorConfig {
	return OrchestratorConfig{
		MaxTokens:   700,
		Temperature: 0.4,
	}
}

// Orchestrator advances the dialogue one step at a time. The next step is
// always decided by the registry before any elaboration text is generated.
type Orchestrator struct {
	registry *Registry
	provider llm.Provider
	cfg      OrchestratorConfig
	log      *logger.Logger
}

// NewOrchestrator creates an Orchestrator.
func NewOrchestrator(registry *Registry, provider llm.Provider, cfg OrchestratorConfig, log *logger.Logger) *Orchestrator {
	return &Orchestrator{registry: registry, provider: provider, cfg: cfg, log: logger.OrNop(log)}
}

// Reply is the result of advancing one step. Callers drain or close
// Stream; Outcome is final once the stream has finished.
type Reply struct {
	stream *llm.Stream

	mu      sync.Mutex
	outcome Outcome
	err     error
}

// Stream returns the text fragments to display.
func (r *Reply) Stream() *llm.Stream { return r.stream }

// Outcome returns the step outcome. If elaboration failed, Error is set
// and Next equals the step that was advanced.
func (r *Reply) Outcome() Outcome {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.outcome
}

// Err returns the internal fault behind a "something went wrong" reply, or
// the elaboration failure, if any.
func (r *Reply) Err() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.err
}

// degrade replaces the outcome with the apology for a failed elaboration.
func (r *Reply) degrade(step Step, err error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.err = err
	r.outcome.Error = ApologyMessage
	r.outcome.Next = step
	r.outcome.Tags = nil
	r.outcome.NextUserTags = nil
	r.outcome.Done = false
}

// Advance resolves step and produces the reply to show.
func (o *Orchestrator) Advance(ctx context.Context, q *question.Question, chosen question.Label, tr *transcript.Transcript, step Step) *Reply {
	out, err := o.registry.Resolve(ctx, step, q, chosen, tr)
	if err != nil {
		o.log.Error("resolve tutoring step", "step", step.String(), "question", q.ID, "error", err)
		return &Reply{
			stream:  llm.StreamOf(SomethingWentWrong),
			outcome: Outcome{Message: SomethingWentWrong, Error: err.Error(), Next: step},
			err:     err,
		}
	}

	if out.Error != "" || !out.Prompt {
		return &Reply{stream: llm.StreamOf(out.Message), outcome: out}
	}

	r := &Reply{outcome: out}

	ctx = llm.WithPurpose(ctx, llm.TutorPurpose(step.String()))
	s, err := o.provider.Stream(ctx, llm.Request{
		System:      personaPreamble,
		Messages:    []llm.Message{llm.TextMessage(llm.RoleUser, out.Message)},
		MaxTokens:   o.cfg.MaxTokens,
		Temperature: o.cfg.Temperature,
	})
	if err != nil {
		o.log.Warn("elaboration unavailable", "step", step.String(), "error", err)
		r.degrade(step, err)
		r.stream = llm.StreamOf(ApologyMessage)
		return r
	}

	r.stream = llm.NewStream(func(yield func(string, error) bool) {
		defer s.Close()
		for s.Next() {
			if !yield(s.Text(), nil) {
				return
			}
		}
		if err := s.Err(); err != nil {
			o.log.Warn("elaboration failed mid-stream", "step", step.String(), "error", err)
			r.degrade(step, err)
			sep := ""
			if s.Accumulated() != "" {
				sep = "\n\n"
			}
			yield(sep+ApologyMessage, nil)
		}
	})
	return r
}
