package tutor

import (
	"context"
	"sync"

	"github.com/abhisek/boardprep/internal/grader"
	"github.com/abhisek/boardprep/internal/question"
)

func testQuestion() *question.Question {
	return &question.Question{
		ID:     "card-001",
		Stem:   "A 62-year-old man with chronic kidney disease has peaked T waves on ECG. What is the most appropriate immediate treatment?",
		Answer: question.LabelC,
		Choices: map[question.Label]question.Choice{
			question.LabelA: {Text: "Sodium polystyrene sulfonate", Explanation: "Too slow."},
			question.LabelB: {Text: "Insulin with glucose", Explanation: "Shifts potassium but does not stabilize the membrane."},
			question.LabelC: {Text: "Calcium gluconate", Explanation: "Stabilizes the cardiac membrane."},
			question.LabelD: {Text: "Hemodialysis", Explanation: "Definitive but not immediate."},
			question.LabelE: {Text: "Furosemide", Explanation: "Unreliable in CKD."},
		},
	}
}

// judgment records one validator call.
type judgment struct {
	Kind  string
	Input string
	Text  string
}

// scriptedValidator returns queued verdicts in order and records calls.
// An empty queue answers valid.
type scriptedValidator struct {
	mu       sync.Mutex
	verdicts []grader.Verdict
	calls    []judgment
}

func validator(verdicts ...grader.Verdict) *scriptedValidator {
	return &scriptedValidator{verdicts: verdicts}
}

var (
	yes         = grader.Verdict{Valid: true}
	no          = grader.Verdict{}
	unavailable = grader.Verdict{Error: grader.ServiceUnavailable}
)

func (s *scriptedValidator) next(kind, input, text string) grader.Verdict {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls = append(s.calls, judgment{Kind: kind, Input: input, Text: text})
	if len(s.verdicts) == 0 {
		return yes
	}
	v := s.verdicts[0]
	s.verdicts = s.verdicts[1:]
	return v
}

func (s *scriptedValidator) kinds() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []string
	for _, c := range s.calls {
		out = append(out, c.Kind)
	}
	return out
}

func (s *scriptedValidator) ValidateExplanation(_ context.Context, _ *question.Question, chosen question.Label, text string) grader.Verdict {
	return s.next("explanation", string(chosen), text)
}

func (s *scriptedValidator) ValidateSatisfaction(_ context.Context, text string) grader.Verdict {
	return s.next("satisfaction", "", text)
}

func (s *scriptedValidator) ValidateIntegrationAnswer(_ context.Context, integrationQuestion, text string) grader.Verdict {
	return s.next("integration", integrationQuestion, text)
}

func (s *scriptedValidator) ValidateNextStepAnswer(_ context.Context, _ *question.Question, text string) grader.Verdict {
	return s.next("next-step", "", text)
}

type memorySink struct {
	mu    sync.Mutex
	snaps []*Snapshot
}

func (m *memorySink) SaveSnapshot(_ context.Context, snap *Snapshot) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.snaps = append(m.snaps, snap)
	return nil
}

func (m *memorySink) last() *Snapshot {
	m.mu.Lock()
	defer m.mu.Unlock()
	if len(m.snaps) == 0 {
		return nil
	}
	return m.snaps[len(m.snaps)-1]
}
