package server

import (
	"errors"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/abhisek/boardprep/internal/chathistory"
)

type chatDoneEvent struct {
	Messages int  `json:"messages"`
	Summary  bool `json:"summarized"`
}

func (s *Server) chat(id string) *chathistory.History {
	s.mu.Lock()
	defer s.mu.Unlock()
	h, ok := s.chats[id]
	if !ok {
		h = s.deps.NewChat()
		s.chats[id] = h
	}
	return h
}

func (s *Server) handleChatMessage(w http.ResponseWriter, r *http.Request) {
	var req messageRequest
	if !decode(w, r, &req) {
		return
	}
	if strings.TrimSpace(req.Text) == "" {
		writeError(w, http.StatusBadRequest, "text is required")
		return
	}

	id := chi.URLParam(r, "id")
	h := s.chat(id)

	stream, err := h.SendStream(r.Context(), s.deps.ChatSystemPrompt, req.Text)
	var tooLong *chathistory.MessageTooLongError
	switch {
	case errors.As(err, &tooLong):
		writeJSON(w, http.StatusUnprocessableEntity, map[string]any{
			"error": err.Error(),
			"words": tooLong.Words,
			"limit": tooLong.Limit,
		})
		return
	case errors.Is(err, chathistory.ErrBusy):
		writeError(w, http.StatusConflict, err.Error())
		return
	case err != nil:
		s.log.Warn("chat reply unavailable", "chat", id, "error", err)
		writeError(w, http.StatusBadGateway, "the tutor is unavailable, please try again")
		return
	}

	sse, ok := startSSE(w)
	if !ok {
		_ = stream.Close()
		return
	}
	if err := sse.pipe(stream); err != nil {
		s.log.Warn("chat stream interrupted", "chat", id, "error", err)
		_ = sse.send("error", map[string]string{"error": "the reply was interrupted"})
		return
	}
	if err := sse.send("done", chatDoneEvent{Messages: h.Transcript().Len(), Summary: h.Summary() != nil}); err != nil {
		s.log.Warn("write done event", "chat", id, "error", err)
	}
}
