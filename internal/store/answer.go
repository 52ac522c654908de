package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	entsql "entgo.io/ent/dialect/sql"
)

// answerRepo implements AnswerRepo. Multiple-choice answers are appended
// like events; foundational answers are a single row per session.
type answerRepo struct {
	db  *sql.DB
	seq *sequenceCounter
}

func (r *answerRepo) RecordAnswer(ctx context.Context, userID, questionID, chosen string) error {
	seqNum, err := r.seq.Next(ctx)
	if err != nil {
		return fmt.Errorf("next sequence: %w", err)
	}

	query, args := builder().Insert(tableAnswers).
		Columns("sequence", "timestamp", "user_id", "question_id", "chosen").
		Values(seqNum, toMillis(time.Now()), userID, questionID, chosen).
		Query()
	if _, err := r.db.ExecContext(ctx, query, args...); err != nil {
		return fmt.Errorf("save answer: %w", err)
	}
	return nil
}

// Answers returns every answer the user submitted, oldest first.
func (r *answerRepo) Answers(ctx context.Context, userID string) ([]AnswerRecord, error) {
	query, args := builder().
		Select("id", "sequence", "timestamp", "user_id", "question_id", "chosen").
		From(entsql.Table(tableAnswers)).
		Where(entsql.EQ("user_id", userID)).
		OrderBy("sequence").
		Query()

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query answers: %w", err)
	}
	defer rows.Close()

	var out []AnswerRecord
	for rows.Next() {
		var a AnswerRecord
		var ts int64
		if err := rows.Scan(&a.ID, &a.Sequence, &ts, &a.UserID, &a.QuestionID, &a.Chosen); err != nil {
			return nil, fmt.Errorf("scan answer: %w", err)
		}
		a.Timestamp = fromMillis(ts)
		out = append(out, a)
	}
	return out, rows.Err()
}

// AnsweredQuestionIDs returns the distinct question IDs the user answered.
func (r *answerRepo) AnsweredQuestionIDs(ctx context.Context, userID string) ([]string, error) {
	query, args := builder().
		Select("question_id").
		Distinct().
		From(entsql.Table(tableAnswers)).
		Where(entsql.EQ("user_id", userID)).
		OrderBy("question_id").
		Query()

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query answered questions: %w", err)
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("scan question id: %w", err)
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

func (r *answerRepo) SetFoundationalAnswer(ctx context.Context, sessionID string, index int, answer string) error {
	if index < 0 {
		return fmt.Errorf("foundational answer index %d out of range", index)
	}

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin: %w", err)
	}
	defer tx.Rollback()

	answers, err := foundationalAnswers(ctx, tx, sessionID)
	if err != nil {
		return err
	}
	for len(answers) <= index {
		answers = append(answers, "")
	}
	answers[index] = answer

	raw, err := json.Marshal(answers)
	if err != nil {
		return fmt.Errorf("marshal foundational answers: %w", err)
	}

	query, args := builder().Insert(tableFoundationalAnswers).
		Columns("session_id", "answers", "updated_at").
		Values(sessionID, string(raw), toMillis(time.Now())).
		OnConflict(
			entsql.ConflictColumns("session_id"),
			entsql.ResolveWithNewValues(),
		).
		Query()
	if _, err := tx.ExecContext(ctx, query, args...); err != nil {
		return fmt.Errorf("save foundational answers: %w", err)
	}
	return tx.Commit()
}

func (r *answerRepo) FoundationalAnswers(ctx context.Context, sessionID string) ([]string, error) {
	return foundationalAnswers(ctx, r.db, sessionID)
}

type queryRower interface {
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

func foundationalAnswers(ctx context.Context, q queryRower, sessionID string) ([]string, error) {
	query, args := builder().
		Select("answers").
		From(entsql.Table(tableFoundationalAnswers)).
		Where(entsql.EQ("session_id", sessionID)).
		Query()

	var raw string
	err := q.QueryRowContext(ctx, query, args...).Scan(&raw)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("query foundational answers: %w", err)
	}

	var answers []string
	if err := json.Unmarshal([]byte(raw), &answers); err != nil {
		return nil, fmt.Errorf("decode foundational answers: %w", err)
	}
	return answers, nil
}
