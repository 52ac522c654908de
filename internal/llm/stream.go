package llm

import (
	"iter"
	"strings"
	"sync"
)

// Stream is a pull-based, finite, non-restartable sequence of text
// fragments. Callers loop on Next, read Text, and check Err once Next
// returns false. Close stops pulling; it is safe to call more than once
// and after exhaustion.
//
//	for s.Next() {
//		fmt.Print(s.Text())
//	}
//	if err := s.Err(); err != nil { ... }
type Stream struct {
	next func() (string, error, bool)
	stop func()

	cur  string
	err  error
	done bool

	onceFinish sync.Once
	onFinish   []func(text string, err error)
	buf        strings.Builder
}

// NewStream wraps a push-style sequence of (fragment, error) pairs. The
// sequence is not started until the first call to Next.
func NewStream(seq iter.Seq2[string, error]) *Stream {
	next, stop := iter.Pull2(seq)
	return &Stream{next: next, stop: stop}
}

// StreamOf returns a stream yielding the given fragments in order.
func StreamOf(chunks ...string) *Stream {
	return NewStream(func(yield func(string, error) bool) {
		for _, c := range chunks {
			if !yield(c, nil) {
				return
			}
		}
	})
}

// Next advances to the next fragment. It returns false when the sequence is
// exhausted, failed, or was closed.
func (s *Stream) Next() bool {
	if s.done {
		return false
	}
	chunk, err, ok := s.next()
	if !ok {
		s.finish()
		return false
	}
	if err != nil {
		s.err = err
		s.finish()
		return false
	}
	s.cur = chunk
	s.buf.WriteString(chunk)
	return true
}

// Text returns the current fragment.
func (s *Stream) Text() string { return s.cur }

// Err returns the error that ended the stream, if any.
func (s *Stream) Err() error { return s.err }

// Accumulated returns every fragment delivered so far, concatenated in
// production order.
func (s *Stream) Accumulated() string { return s.buf.String() }

// Close abandons the stream. Fragments not yet pulled are discarded.
func (s *Stream) Close() error {
	s.finish()
	return nil
}

// OnFinish registers fn to run exactly once when the stream is exhausted,
// fails, or is closed. fn receives the accumulated text and the terminal
// error. Callbacks run in registration order.
func (s *Stream) OnFinish(fn func(text string, err error)) {
	s.onFinish = append(s.onFinish, fn)
}

func (s *Stream) finish() {
	s.done = true
	s.onceFinish.Do(func() {
		s.stop()
		for _, fn := range s.onFinish {
			fn(s.buf.String(), s.err)
		}
	})
}

// Collect drains the stream and returns the concatenated text.
func Collect(s *Stream) (string, error) {
	defer s.Close()
	for s.Next() {
	}
	return s.Accumulated(), s.Err()
}
