// Package chathistory keeps the transcript of an open-ended tutor chat and
// folds a rolling LLM summary of older turns into every prompt.
package chathistory

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"

	"golang.org/x/sync/semaphore"

	"github.com/abhisek/boardprep/internal/llm"
	"github.com/abhisek/boardprep/internal/logger"
	"github.com/abhisek/boardprep/internal/transcript"
)

// ErrBusy is returned when a message is sent while a reply is in flight.
var ErrBusy = errors.New("a reply is already in progress for this chat")

// MessageTooLongError reports a user message over the word limit. Nothing is
// sent or recorded when it is returned.
type MessageTooLongError struct {
	Words int
	Limit int
}

func (e *MessageTooLongError) Error() string {
	return fmt.Sprintf("message has %d words, the limit is %d", e.Words, e.Limit)
}

// Config holds chat history settings.
type Config struct {
	// MaxWords caps a single user message. Zero disables the check.
	MaxWords int

	// MaxContext is how many messages the transcript keeps; older ones
	// are dropped.
	MaxContext int

	// SummaryThreshold is how many unsummarized messages trigger a new
	// summary.
	SummaryThreshold int

	MaxTokens          int
	Temperature        float64
	SummaryMaxTokens   int
	SummaryTemperature float64
}

// DefaultConfig returns sensible defaults for tutor chats.
func DefaultConfig() Config {
	return Config{
		MaxWords:           300,
		MaxContext:         40,
		SummaryThreshold:   10,
		MaxTokens:          800,
		Temperature:        0.5,
		SummaryMaxTokens:   600,
		SummaryTemperature: 0.2,
	}
}

// History is one chat session. Sends are single-flight; summarization runs
// in the background and never delays a reply.
type History struct {
	provider llm.Provider
	cfg      Config
	log      *logger.Logger

	guard *semaphore.Weighted
	bg    sync.WaitGroup

	mu             sync.Mutex
	tr             *transcript.Transcript
	summary        *Summary
	lastSummarized string // id of the newest message folded into summary
	summarizing    bool
}

// New creates an empty History.
func New(provider llm.Provider, cfg Config, log *logger.Logger) *History {
	return &History{
		provider: provider,
		cfg:      cfg,
		log:      logger.OrNop(log),
		guard:    semaphore.NewWeighted(1),
		tr:       &transcript.Transcript{},
	}
}

// Transcript returns a copy of the retained messages.
func (h *History) Transcript() *transcript.Transcript {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.tr.Clone()
}

// Summary returns the current summary, or nil before the first one.
func (h *History) Summary() *Summary {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.summary
}

// Wait blocks until background summarization has finished.
func (h *History) Wait() {
	h.bg.Wait()
}

// Send records text, asks for a complete reply and records it. base, when
// non-empty, is sent as the system prompt.
func (h *History) Send(ctx context.Context, base, text string) (string, error) {
	req, err := h.begin(base, text)
	if err != nil {
		return "", err
	}
	defer h.guard.Release(1)

	resp, err := h.provider.Generate(llm.WithPurpose(ctx, llm.PurposeChat), req)
	if err != nil {
		return "", fmt.Errorf("chat reply: %w", err)
	}

	reply := resp.Text()
	h.finish(ctx, reply)
	return reply, nil
}

// SendStream is Send with the reply delivered as a stream. The reply,
// or whatever part of it was read before the stream was closed, is
// recorded when the stream finishes. The caller must drain or close it.
func (h *History) SendStream(ctx context.Context, base, text string) (*llm.Stream, error) {
	req, err := h.begin(base, text)
	if err != nil {
		return nil, err
	}

	s, err := h.provider.Stream(llm.WithPurpose(ctx, llm.PurposeChat), req)
	if err != nil {
		h.guard.Release(1)
		return nil, fmt.Errorf("chat reply: %w", err)
	}
	s.OnFinish(func(text string, err error) {
		defer h.guard.Release(1)
		if err != nil {
			h.log.Warn("chat stream ended with error", "error", err, "partial_chars", len(text))
		}
		h.finish(context.WithoutCancel(ctx), text)
	})
	return s, nil
}

// begin checks the message, takes the guard, records the message and
// builds the request.
func (h *History) begin(base, text string) (llm.Request, error) {
	if words := len(strings.Fields(text)); h.cfg.MaxWords > 0 && words > h.cfg.MaxWords {
		return llm.Request{}, &MessageTooLongError{Words: words, Limit: h.cfg.MaxWords}
	}
	if !h.guard.TryAcquire(1) {
		return llm.Request{}, ErrBusy
	}

	h.mu.Lock()
	defer h.mu.Unlock()

	h.tr.Append(transcript.NewMessage(transcript.RoleUser, text))
	if h.cfg.MaxContext > 0 {
		h.tr.DropOldest(h.cfg.MaxContext)
	}

	var msgs []llm.Message
	if h.summary != nil {
		msgs = append(msgs, llm.TextMessage(llm.RoleUser, summaryPreamble+h.summary.String()))
	}
	for _, m := range h.tailLocked() {
		msgs = append(msgs, llm.TextMessage(llm.Role(m.Role), m.Content))
	}

	return llm.Request{
		System:      base,
		Messages:    msgs,
		MaxTokens:   h.cfg.MaxTokens,
		Temperature: h.cfg.Temperature,
	}, nil
}

// tailLocked returns the messages not yet folded into the summary. Messages
// are dropped oldest first, so a summarized marker that is gone means every
// retained message is newer than it.
func (h *History) tailLocked() []transcript.Message {
	msgs := h.tr.Messages()
	if h.lastSummarized == "" {
		return msgs
	}
	return msgs[h.tr.IndexOf(h.lastSummarized)+1:]
}

func (h *History) finish(ctx context.Context, reply string) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if reply != "" {
		h.tr.Append(transcript.NewMessage(transcript.RoleAssistant, reply))
	}

	tail := h.tailLocked()
	if len(tail) <= h.cfg.SummaryThreshold || h.summarizing {
		return
	}

	h.summarizing = true
	prev := h.summary
	h.bg.Add(1)
	go func() {
		defer h.bg.Done()
		h.summarize(ctx, prev, tail)
	}()
}

func (h *History) summarize(ctx context.Context, prev *Summary, tail []transcript.Message) {
	next, err := h.generateSummary(ctx, prev, tail)

	h.mu.Lock()
	defer h.mu.Unlock()
	h.summarizing = false
	if err != nil {
		h.log.Warn("chat summary not updated", "error", err)
		return
	}
	h.summary = next
	h.lastSummarized = tail[len(tail)-1].ID
}

func (h *History) generateSummary(ctx context.Context, prev *Summary, tail []transcript.Message) (*Summary, error) {
	ctx = llm.WithPurpose(ctx, llm.PurposeChatSummary)

	resp, err := h.provider.Generate(ctx, llm.Request{
		System: summarySystemPrompt,
		Messages: []llm.Message{
			llm.TextMessage(llm.RoleUser, buildSummaryUserMessage(prev, tail)),
		},
		Schema:      SummarySchema,
		MaxTokens:   h.cfg.SummaryMaxTokens,
		Temperature: h.cfg.SummaryTemperature,
	})
	if err != nil {
		return nil, fmt.Errorf("summarize chat: %w", err)
	}
	return parseSummary(resp.Content)
}
