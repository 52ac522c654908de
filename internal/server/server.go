// Package server exposes tutoring conversations, open-ended chats and
// answer submission over HTTP. Replies stream as server-sent events.
package server

import (
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	chiMiddleware "github.com/go-chi/chi/v5/middleware"

	"github.com/abhisek/boardprep/internal/chathistory"
	"github.com/abhisek/boardprep/internal/logger"
	"github.com/abhisek/boardprep/internal/question"
	"github.com/abhisek/boardprep/internal/review"
	"github.com/abhisek/boardprep/internal/store"
	"github.com/abhisek/boardprep/internal/tutor"
)

// maxRequestBodySize caps JSON request bodies.
const maxRequestBodySize = 1 << 20

// DefaultIdleTimeout is how long an untouched conversation stays in memory.
const DefaultIdleTimeout = 30 * time.Minute

// SnapshotStore saves and restores tutoring conversations.
type SnapshotStore interface {
	tutor.SnapshotSink
	tutor.SnapshotLoader
}

// Deps are the collaborators the handlers need.
type Deps struct {
	Questions    question.Source
	Answers      store.AnswerRepo
	Orchestrator *tutor.Orchestrator
	Snapshots    SnapshotStore
	Drafter      *review.Drafter

	// NewChat creates the history for a chat seen for the first time.
	NewChat          func() *chathistory.History
	ChatSystemPrompt string

	// IdleTimeout evicts conversations nobody has touched for this long.
	// Zero means DefaultIdleTimeout.
	IdleTimeout time.Duration

	Log *logger.Logger
}

// Server holds live conversations and chats. Conversations evicted from
// memory are restored from Snapshots on their next message.
type Server struct {
	deps Deps
	log  *logger.Logger

	now func() time.Time

	mu    sync.Mutex
	convs map[string]*liveConversation
	chats map[string]*chathistory.History
}

type liveConversation struct {
	conv     *tutor.Conversation
	lastUsed time.Time
}

// New creates a Server.
func New(deps Deps) *Server {
	if deps.IdleTimeout <= 0 {
		deps.IdleTimeout = DefaultIdleTimeout
	}
	return &Server{
		deps:  deps,
		log:   logger.OrNop(deps.Log).With("component", "server"),
		now:   time.Now,
		convs: make(map[string]*liveConversation),
		chats: make(map[string]*chathistory.History),
	}
}

// Routes returns the HTTP handler.
func (s *Server) Routes() http.Handler {
	r := chi.NewRouter()
	r.Use(chiMiddleware.RequestID)
	r.Use(chiMiddleware.RealIP)
	r.Use(chiMiddleware.Recoverer)

	r.Get("/healthz", s.handleHealth)

	r.Route("/v1", func(r chi.Router) {
		r.Post("/conversations", s.handleStartConversation)
		r.Get("/conversations/{id}", s.handleGetConversation)
		r.Post("/conversations/{id}/messages", s.handleConversationMessage)
		r.Post("/chats/{id}/messages", s.handleChatMessage)
		r.Post("/answers", s.handleAnswer)
		r.Post("/review-questions", s.handleReviewQuestion)
	})
	return r
}

// Wait blocks until background chat summarization has finished.
func (s *Server) Wait() {
	s.mu.Lock()
	chats := make([]*chathistory.History, 0, len(s.chats))
	for _, h := range s.chats {
		chats = append(chats, h)
	}
	s.mu.Unlock()
	for _, h := range chats {
		h.Wait()
	}
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		http.Error(w, `{"error": "failed to encode response"}`, http.StatusInternalServerError)
	}
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]string{"error": message})
}

// decode reads a JSON body into v, writing a 400 on failure.
func decode(w http.ResponseWriter, r *http.Request, v any) bool {
	r.Body = http.MaxBytesReader(w, r.Body, maxRequestBodySize)
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return false
	}
	return true
}
