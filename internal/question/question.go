// Package question defines the board-exam question record and the sources
// that serve it.
package question

import (
	"context"
	"errors"
	"fmt"
	"strings"
)

var (
	// ErrNotFound is returned when no question has the requested ID.
	ErrNotFound = errors.New("question not found")

	// ErrNoneAvailable is returned when every question matching a filter
	// has already been answered.
	ErrNoneAvailable = errors.New("no unanswered question available")
)

// Label identifies one of the five answer choices.
type Label string

const (
	LabelA Label = "a"
	LabelB Label = "b"
	LabelC Label = "c"
	LabelD Label = "d"
	LabelE Label = "e"
)

// Labels lists every choice label in display order.
var Labels = []Label{LabelA, LabelB, LabelC, LabelD, LabelE}

// ParseLabel accepts "c", "C", "(C)", "C." and similar forms.
func ParseLabel(s string) (Label, error) {
	t := strings.ToLower(strings.TrimSpace(s))
	t = strings.Trim(t, "().: ")
	switch l := Label(t); l {
	case LabelA, LabelB, LabelC, LabelD, LabelE:
		return l, nil
	}
	return "", fmt.Errorf("invalid answer label %q", s)
}

// Upper returns the label as shown to students, e.g. "C".
func (l Label) Upper() string {
	return strings.ToUpper(string(l))
}

// Choice is one answer option.
type Choice struct {
	Text        string `yaml:"text" json:"text" bson:"text"`
	Explanation string `yaml:"explanation" json:"explanation" bson:"explanation"`
}

// Metadata carries the attributes used to filter questions.
type Metadata struct {
	Topic      string `yaml:"topic" json:"topic,omitempty" bson:"topic"`
	System     string `yaml:"system" json:"system,omitempty" bson:"system"`
	Category   string `yaml:"category" json:"category,omitempty" bson:"category"`
	Difficulty string `yaml:"difficulty" json:"difficulty,omitempty" bson:"difficulty"`
	Step       string `yaml:"step" json:"step,omitempty" bson:"step"`
}

// Question is a single-best-answer vignette with five labeled choices.
// It is read-only once fetched.
type Question struct {
	ID       string           `yaml:"id" json:"id" bson:"_id"`
	Stem     string           `yaml:"stem" json:"stem" bson:"stem"`
	Choices  map[Label]Choice `yaml:"choices" json:"choices" bson:"choices"`
	Answer   Label            `yaml:"answer" json:"answer" bson:"answer"`
	Metadata `yaml:",inline" json:",inline" bson:",inline"`
}

// Choice returns the option for label.
func (q *Question) Choice(l Label) Choice {
	return q.Choices[l]
}

// IsCorrect reports whether l is the correct label.
func (q *Question) IsCorrect(l Label) bool {
	return q.Answer == l
}

// Validate checks that the question has a stem, all five choices and a
// correct label among them.
func (q *Question) Validate() error {
	if q.ID == "" {
		return errors.New("question id is required")
	}
	if strings.TrimSpace(q.Stem) == "" {
		return fmt.Errorf("question %s: stem is required", q.ID)
	}
	for _, l := range Labels {
		if _, ok := q.Choices[l]; !ok {
			return fmt.Errorf("question %s: missing choice %s", q.ID, l.Upper())
		}
	}
	if _, err := ParseLabel(string(q.Answer)); err != nil {
		return fmt.Errorf("question %s: %w", q.ID, err)
	}
	return nil
}

// Filter narrows random selection. Empty fields match everything.
type Filter struct {
	Topics       []string
	Systems      []string
	Categories   []string
	Difficulties []string
	Steps        []string
}

// Matches reports whether q satisfies every non-empty predicate.
func (f Filter) Matches(q *Question) bool {
	return matchAny(f.Topics, q.Topic) &&
		matchAny(f.Systems, q.System) &&
		matchAny(f.Categories, q.Category) &&
		matchAny(f.Difficulties, q.Difficulty) &&
		matchAny(f.Steps, q.Step)
}

func matchAny(allowed []string, v string) bool {
	if len(allowed) == 0 {
		return true
	}
	for _, a := range allowed {
		if strings.EqualFold(a, v) {
			return true
		}
	}
	return false
}

// AnsweredLister reports which questions a user already answered.
type AnsweredLister interface {
	AnsweredQuestionIDs(ctx context.Context, userID string) ([]string, error)
}

// Source serves questions by ID and picks unanswered ones at random.
type Source interface {
	Get(ctx context.Context, id string) (*Question, error)
	RandomUnanswered(ctx context.Context, userID string, f Filter) (string, error)
}
