// Package tutor implements the guided tutoring dialogue that follows a
// student's answer to a board-exam question.
package tutor

import (
	"fmt"

	"github.com/abhisek/boardprep/internal/question"
	"github.com/abhisek/boardprep/internal/transcript"
)

// Step is a state of the tutoring dialogue.
type Step int

const (
	StepUnknown Step = iota

	// Incorrect track.
	StepIncorrect1
	StepIncorrect1Check
	StepIncorrect2Check // never entered; the teach turn jumps to 3-check
	StepIncorrect3Check

	// Correct track.
	StepCorrect1
	StepCorrect1Check
	StepCorrect2Check // never entered; the teach turn jumps to 3-check
	StepCorrect3Check
	StepCorrect4Check
	StepCorrect5Check

	// Shared follow-up tail.
	StepFollowUpMenu
	StepFollowUpChallenge
	StepFollowUpSchema
	StepFollowUpSystems
	StepFollowUpIntegration

	// Terminal markers.
	StepIncorrectComplete
	StepCorrectComplete
)

var stepNames = map[Step]string{
	StepIncorrect1:          "incorrect-1",
	StepIncorrect1Check:     "incorrect-1-check",
	StepIncorrect2Check:     "incorrect-2-check",
	StepIncorrect3Check:     "incorrect-3-check",
	StepCorrect1:            "correct-1",
	StepCorrect1Check:       "correct-1-check",
	StepCorrect2Check:       "correct-2-check",
	StepCorrect3Check:       "correct-3-check",
	StepCorrect4Check:       "correct-4-check",
	StepCorrect5Check:       "correct-5-check",
	StepFollowUpMenu:        "follow-up-menu",
	StepFollowUpChallenge:   "follow-up-challenge",
	StepFollowUpSchema:      "follow-up-schema",
	StepFollowUpSystems:     "follow-up-systems",
	StepFollowUpIntegration: "follow-up-integration",
	StepIncorrectComplete:   "incorrect-complete",
	StepCorrectComplete:     "correct-complete",
}

var stepsByName = func() map[string]Step {
	m := make(map[string]Step, len(stepNames))
	for s, n := range stepNames {
		m[n] = s
	}
	return m
}()

// AllSteps lists every named step in declaration order.
func AllSteps() []Step {
	out := make([]Step, 0, len(stepNames))
	for s := StepIncorrect1; s <= StepCorrectComplete; s++ {
		out = append(out, s)
	}
	return out
}

func (s Step) String() string {
	if n, ok := stepNames[s]; ok {
		return n
	}
	return fmt.Sprintf("step(%d)", int(s))
}

// ParseStep returns the step with the given name.
func ParseStep(name string) (Step, error) {
	if s, ok := stepsByName[name]; ok {
		return s, nil
	}
	return StepUnknown, fmt.Errorf("%w: %q", ErrUnknownStep, name)
}

func (s Step) MarshalText() ([]byte, error) {
	n, ok := stepNames[s]
	if !ok {
		return nil, fmt.Errorf("%w: %d", ErrUnknownStep, int(s))
	}
	return []byte(n), nil
}

func (s *Step) UnmarshalText(b []byte) error {
	v, err := ParseStep(string(b))
	if err != nil {
		return err
	}
	*s = v
	return nil
}

// Terminal reports whether s ends the conversation.
func (s Step) Terminal() bool {
	return s == StepIncorrectComplete || s == StepCorrectComplete
}

// Track is the branch chosen once per conversation.
type Track string

const (
	TrackIncorrect Track = "incorrect"
	TrackCorrect   Track = "correct"
)

// TrackFor picks the track from whether chosen is the correct label.
func TrackFor(q *question.Question, chosen question.Label) Track {
	if q.IsCorrect(chosen) {
		return TrackCorrect
	}
	return TrackIncorrect
}

// Entry returns the first step of the track.
func (t Track) Entry() Step {
	if t == TrackCorrect {
		return StepCorrect1
	}
	return StepIncorrect1
}

// Complete returns the terminal step of the track.
func (t Track) Complete() Step {
	if t == TrackCorrect {
		return StepCorrectComplete
	}
	return StepIncorrectComplete
}

// Outcome is the result of resolving one step: what to show, whether it
// must be elaborated by the language model first, and where to go next.
type Outcome struct {
	// Prompt means Message is an instruction for the language model rather
	// than text to show verbatim.
	Prompt  bool
	Message string

	// Tags label the assistant message produced from this outcome.
	Tags []transcript.Tag

	// NextUserTags label the student's next message.
	NextUserTags []transcript.Tag

	Next Step

	// Error is a recoverable failure shown to the student. The step does
	// not advance.
	Error string

	// Done marks a terminal step.
	Done bool
}
