package server

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/abhisek/boardprep/internal/question"
	"github.com/abhisek/boardprep/internal/tutor"
)

type startConversationRequest struct {
	UserID     string `json:"user_id"`
	QuestionID string `json:"question_id"`
	Chosen     string `json:"chosen"`

	// Filter picks a random unanswered question when QuestionID is empty.
	Filter struct {
		Topics       []string `json:"topics"`
		Systems      []string `json:"systems"`
		Categories   []string `json:"categories"`
		Difficulties []string `json:"difficulties"`
		Steps        []string `json:"steps"`
	} `json:"filter"`
}

type conversationEvent struct {
	ID         string `json:"id"`
	QuestionID string `json:"question_id"`
	Track      string `json:"track"`
}

type doneEvent struct {
	Step  string `json:"step"`
	Done  bool   `json:"done"`
	Error string `json:"error,omitempty"`
}

type messageRequest struct {
	Text string `json:"text"`
}

func (s *Server) handleStartConversation(w http.ResponseWriter, r *http.Request) {
	var req startConversationRequest
	if !decode(w, r, &req) {
		return
	}
	if req.UserID == "" {
		writeError(w, http.StatusBadRequest, "user_id is required")
		return
	}
	chosen, err := question.ParseLabel(req.Chosen)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	ctx := r.Context()
	qid := req.QuestionID
	if qid == "" {
		qid, err = s.deps.Questions.RandomUnanswered(ctx, req.UserID, question.Filter{
			Topics:       req.Filter.Topics,
			Systems:      req.Filter.Systems,
			Categories:   req.Filter.Categories,
			Difficulties: req.Filter.Difficulties,
			Steps:        req.Filter.Steps,
		})
		if errors.Is(err, question.ErrNoneAvailable) {
			writeError(w, http.StatusNotFound, "no unanswered questions match the filter")
			return
		}
		if err != nil {
			s.log.Error("pick question", "user", req.UserID, "error", err)
			writeError(w, http.StatusInternalServerError, "could not pick a question")
			return
		}
	}

	q, ok := s.question(w, ctx, qid)
	if !ok {
		return
	}

	if s.deps.Answers != nil {
		if err := s.deps.Answers.RecordAnswer(ctx, req.UserID, q.ID, string(chosen)); err != nil {
			s.log.Warn("record answer", "user", req.UserID, "question", q.ID, "error", err)
		}
	}

	conv := tutor.NewConversation(s.deps.Orchestrator, req.UserID, q, chosen, s.conversationOptions()...)
	s.keep(conv)

	reply, err := conv.Start(ctx)
	if err != nil {
		writeError(w, http.StatusConflict, err.Error())
		return
	}
	s.streamTurn(w, conv, reply, &conversationEvent{ID: conv.ID(), QuestionID: q.ID, Track: string(conv.Track())})
}

func (s *Server) handleConversationMessage(w http.ResponseWriter, r *http.Request) {
	var req messageRequest
	if !decode(w, r, &req) {
		return
	}
	if strings.TrimSpace(req.Text) == "" {
		writeError(w, http.StatusBadRequest, "text is required")
		return
	}

	conv, err := s.conversation(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		s.log.Error("load conversation", "conversation", chi.URLParam(r, "id"), "error", err)
		writeError(w, http.StatusInternalServerError, "could not load conversation")
		return
	}
	if conv == nil {
		writeError(w, http.StatusNotFound, "conversation not found")
		return
	}

	reply, err := conv.Respond(r.Context(), req.Text)
	if errors.Is(err, tutor.ErrBusy) {
		writeError(w, http.StatusConflict, err.Error())
		return
	}
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	s.streamTurn(w, conv, reply, nil)
}

func (s *Server) handleGetConversation(w http.ResponseWriter, r *http.Request) {
	conv, err := s.conversation(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		s.log.Error("load conversation", "conversation", chi.URLParam(r, "id"), "error", err)
		writeError(w, http.StatusInternalServerError, "could not load conversation")
		return
	}
	if conv == nil {
		writeError(w, http.StatusNotFound, "conversation not found")
		return
	}
	writeJSON(w, http.StatusOK, conv.Snapshot())
}

// streamTurn writes an optional opening "conversation" event, the reply
// fragments, and a final "done" event carrying the committed step.
func (s *Server) streamTurn(w http.ResponseWriter, conv *tutor.Conversation, reply *tutor.Reply, opening *conversationEvent) {
	sse, ok := startSSE(w)
	if !ok {
		_ = reply.Stream().Close()
		return
	}
	if opening != nil {
		if err := sse.send("conversation", opening); err != nil {
			_ = reply.Stream().Close()
			return
		}
	}
	if err := sse.pipe(reply.Stream()); err != nil {
		s.log.Warn("conversation stream interrupted", "conversation", conv.ID(), "error", err)
		return
	}

	out := reply.Outcome()
	if err := sse.send("done", doneEvent{Step: conv.Step().String(), Done: conv.Done(), Error: out.Error}); err != nil {
		s.log.Warn("write done event", "conversation", conv.ID(), "error", err)
	}
	if conv.Done() {
		s.mu.Lock()
		delete(s.convs, conv.ID())
		s.mu.Unlock()
		return
	}
	s.touch(conv.ID())
}

// keep adds conv to the live set and sweeps out idle conversations.
// A swept conversation is restored from its snapshot if it returns.
func (s *Server) keep(conv *tutor.Conversation) *tutor.Conversation {
	s.mu.Lock()
	defer s.mu.Unlock()
	now := s.now()
	s.sweepLocked(now)
	if live, ok := s.convs[conv.ID()]; ok {
		live.lastUsed = now
		return live.conv
	}
	s.convs[conv.ID()] = &liveConversation{conv: conv, lastUsed: now}
	return conv
}

func (s *Server) touch(id string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if live, ok := s.convs[id]; ok {
		live.lastUsed = s.now()
	}
}

func (s *Server) sweepLocked(now time.Time) {
	for id, live := range s.convs {
		if now.Sub(live.lastUsed) > s.deps.IdleTimeout {
			delete(s.convs, id)
			s.log.Debug("evicted idle conversation", "conversation", id)
		}
	}
}

// liveCount reports how many conversations are held in memory.
func (s *Server) liveCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.convs)
}

func (s *Server) conversationOptions() []tutor.Option {
	opts := []tutor.Option{tutor.WithLogger(s.deps.Log)}
	if s.deps.Snapshots != nil {
		opts = append(opts, tutor.WithSink(s.deps.Snapshots))
	}
	return opts
}

// conversation returns the live conversation, restoring it from a snapshot
// when it is not in memory. It returns nil, nil when there is none.
func (s *Server) conversation(ctx context.Context, id string) (*tutor.Conversation, error) {
	s.mu.Lock()
	now := s.now()
	s.sweepLocked(now)
	live, ok := s.convs[id]
	if ok {
		live.lastUsed = now
	}
	s.mu.Unlock()
	if ok {
		return live.conv, nil
	}
	if s.deps.Snapshots == nil {
		return nil, nil
	}

	snap, err := s.deps.Snapshots.LoadSnapshot(ctx, id)
	if err != nil || snap == nil {
		return nil, err
	}
	q, err := s.deps.Questions.Get(ctx, snap.QuestionID)
	if err != nil {
		return nil, fmt.Errorf("question for conversation %s: %w", id, err)
	}
	conv, err := tutor.Restore(s.deps.Orchestrator, snap, q, s.conversationOptions()...)
	if err != nil {
		return nil, err
	}
	return s.keep(conv), nil
}

// question fetches id, writing a 404 or 500 on failure.
func (s *Server) question(w http.ResponseWriter, ctx context.Context, id string) (*question.Question, bool) {
	q, err := s.deps.Questions.Get(ctx, id)
	if errors.Is(err, question.ErrNotFound) {
		writeError(w, http.StatusNotFound, "question not found")
		return nil, false
	}
	if err != nil {
		s.log.Error("get question", "question", id, "error", err)
		writeError(w, http.StatusInternalServerError, "could not load question")
		return nil, false
	}
	return q, true
}
