package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	entsql "entgo.io/ent/dialect/sql"
	"github.com/google/uuid"
)

type reviewRepo struct {
	db *sql.DB
}

// SaveReviewQuestion inserts rq, assigning an ID and CreatedAt when unset.
func (r *reviewRepo) SaveReviewQuestion(ctx context.Context, rq *ReviewQuestion) error {
	if rq.ID == "" {
		rq.ID = uuid.NewString()
	}
	if rq.CreatedAt.IsZero() {
		rq.CreatedAt = time.Now().UTC()
	}

	criteria, err := json.Marshal(rq.AnswerCriteria)
	if err != nil {
		return fmt.Errorf("marshal answer criteria: %w", err)
	}

	query, args := builder().Insert(tableReviewQuestions).
		Columns("id", "question_id", "user_id", "chosen", "question", "answer_criteria", "created_at").
		Values(rq.ID, rq.QuestionID, rq.UserID, rq.Chosen, rq.Question, string(criteria), toMillis(rq.CreatedAt)).
		Query()
	if _, err := r.db.ExecContext(ctx, query, args...); err != nil {
		return fmt.Errorf("save review question: %w", err)
	}
	return nil
}

// ReviewQuestions returns the user's review questions, newest first.
func (r *reviewRepo) ReviewQuestions(ctx context.Context, userID string) ([]ReviewQuestion, error) {
	query, args := builder().
		Select("id", "question_id", "user_id", "chosen", "question", "answer_criteria", "created_at").
		From(entsql.Table(tableReviewQuestions)).
		Where(entsql.EQ("user_id", userID)).
		OrderBy(entsql.Desc("created_at")).
		Query()

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query review questions: %w", err)
	}
	defer rows.Close()

	var out []ReviewQuestion
	for rows.Next() {
		var rq ReviewQuestion
		var criteria string
		var created int64
		if err := rows.Scan(&rq.ID, &rq.QuestionID, &rq.UserID, &rq.Chosen, &rq.Question, &criteria, &created); err != nil {
			return nil, fmt.Errorf("scan review question: %w", err)
		}
		if err := json.Unmarshal([]byte(criteria), &rq.AnswerCriteria); err != nil {
			return nil, fmt.Errorf("decode answer criteria: %w", err)
		}
		rq.CreatedAt = fromMillis(created)
		out = append(out, rq)
	}
	return out, rows.Err()
}
