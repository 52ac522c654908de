package server

import (
	"errors"
	"net/http"

	"github.com/abhisek/boardprep/internal/question"
	"github.com/abhisek/boardprep/internal/review"
)

type answerRequest struct {
	UserID     string `json:"user_id"`
	QuestionID string `json:"question_id"`
	Chosen     string `json:"chosen"`

	// SessionID and Index, when set, also fill one slot of the session's
	// foundational answers.
	SessionID string `json:"session_id"`
	Index     *int   `json:"index"`
}

type answerResponse struct {
	Correct bool   `json:"correct"`
	Answer  string `json:"answer"`
}

func (s *Server) handleAnswer(w http.ResponseWriter, r *http.Request) {
	var req answerRequest
	if !decode(w, r, &req) {
		return
	}
	if req.UserID == "" || req.QuestionID == "" {
		writeError(w, http.StatusBadRequest, "user_id and question_id are required")
		return
	}
	chosen, err := question.ParseLabel(req.Chosen)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if req.SessionID != "" && (req.Index == nil || *req.Index < 0) {
		writeError(w, http.StatusBadRequest, "index is required with session_id")
		return
	}

	ctx := r.Context()
	q, ok := s.question(w, ctx, req.QuestionID)
	if !ok {
		return
	}

	if err := s.deps.Answers.RecordAnswer(ctx, req.UserID, q.ID, string(chosen)); err != nil {
		s.log.Error("record answer", "user", req.UserID, "question", q.ID, "error", err)
		writeError(w, http.StatusInternalServerError, "could not record answer")
		return
	}
	if req.SessionID != "" {
		if err := s.deps.Answers.SetFoundationalAnswer(ctx, req.SessionID, *req.Index, string(chosen)); err != nil {
			s.log.Error("set foundational answer", "session", req.SessionID, "error", err)
			writeError(w, http.StatusInternalServerError, "could not record answer")
			return
		}
	}

	writeJSON(w, http.StatusCreated, answerResponse{Correct: q.IsCorrect(chosen), Answer: string(q.Answer)})
}

type reviewRequest struct {
	UserID     string `json:"user_id"`
	QuestionID string `json:"question_id"`
	Chosen     string `json:"chosen"`
}

type reviewResponse struct {
	ID             string   `json:"id"`
	QuestionID     string   `json:"question_id"`
	Question       string   `json:"question"`
	AnswerCriteria []string `json:"answer_criteria"`
}

func (s *Server) handleReviewQuestion(w http.ResponseWriter, r *http.Request) {
	var req reviewRequest
	if !decode(w, r, &req) {
		return
	}
	if req.UserID == "" || req.QuestionID == "" {
		writeError(w, http.StatusBadRequest, "user_id and question_id are required")
		return
	}
	chosen, err := question.ParseLabel(req.Chosen)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	ctx := r.Context()
	q, ok := s.question(w, ctx, req.QuestionID)
	if !ok {
		return
	}

	rq, err := s.deps.Drafter.Draft(ctx, q, chosen, req.UserID)
	if errors.Is(err, review.ErrInvalidDraft) {
		writeError(w, http.StatusBadGateway, "the model returned an unusable review question")
		return
	}
	if err != nil {
		s.log.Error("draft review question", "question", q.ID, "error", err)
		writeError(w, http.StatusBadGateway, "could not draft a review question")
		return
	}

	writeJSON(w, http.StatusCreated, reviewResponse{
		ID:             rq.ID,
		QuestionID:     rq.QuestionID,
		Question:       rq.Question,
		AnswerCriteria: rq.AnswerCriteria,
	})
}
