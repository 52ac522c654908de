package question

import (
	"context"
	"fmt"
	"math/rand/v2"
	"os"
	"slices"
	"sync"

	"gopkg.in/yaml.v3"
)

// bank is the on-disk layout of a question bank file.
type bank struct {
	Questions []*Question `yaml:"questions"`
}

// FileSource serves questions from a YAML question bank loaded into memory.
type FileSource struct {
	questions map[string]*Question
	order     []string
	answered  AnsweredLister

	mu   sync.Mutex
	rand *rand.Rand
}

// LoadFile reads a YAML question bank. answered may be nil, in which case
// every question counts as unanswered.
func LoadFile(path string, answered AnsweredLister) (*FileSource, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read question bank: %w", err)
	}
	return ParseYAML(data, answered)
}

// ParseYAML builds a FileSource from YAML bytes.
func ParseYAML(data []byte, answered AnsweredLister) (*FileSource, error) {
	var b bank
	if err := yaml.Unmarshal(data, &b); err != nil {
		return nil, fmt.Errorf("parse question bank: %w", err)
	}

	s := &FileSource{
		questions: make(map[string]*Question, len(b.Questions)),
		answered:  answered,
		rand:      rand.New(rand.NewPCG(rand.Uint64(), rand.Uint64())),
	}
	for _, q := range b.Questions {
		label, err := ParseLabel(string(q.Answer))
		if err != nil {
			return nil, fmt.Errorf("question %s: %w", q.ID, err)
		}
		q.Answer = label
		if err := q.Validate(); err != nil {
			return nil, err
		}
		if _, dup := s.questions[q.ID]; dup {
			return nil, fmt.Errorf("duplicate question id %q", q.ID)
		}
		s.questions[q.ID] = q
		s.order = append(s.order, q.ID)
	}
	return s, nil
}

// Seed makes random selection deterministic.
func (s *FileSource) Seed(seed uint64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.rand = rand.New(rand.NewPCG(seed, seed))
}

// Len returns the number of questions in the bank.
func (s *FileSource) Len() int {
	return len(s.order)
}

func (s *FileSource) Get(_ context.Context, id string) (*Question, error) {
	q, ok := s.questions[id]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	return q, nil
}

func (s *FileSource) RandomUnanswered(ctx context.Context, userID string, f Filter) (string, error) {
	var answered []string
	if s.answered != nil {
		ids, err := s.answered.AnsweredQuestionIDs(ctx, userID)
		if err != nil {
			return "", fmt.Errorf("list answered questions: %w", err)
		}
		answered = ids
	}

	var candidates []string
	for _, id := range s.order {
		if slices.Contains(answered, id) {
			continue
		}
		if f.Matches(s.questions[id]) {
			candidates = append(candidates, id)
		}
	}
	if len(candidates) == 0 {
		return "", ErrNoneAvailable
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	return candidates[s.rand.IntN(len(candidates))], nil
}
