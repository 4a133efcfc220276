package repository

import (
	"context"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/stemsi/hiring-backend/internal/model"
)

// AnswerRepository handles answer data access.
type AnswerRepository struct {
	pool *pgxpool.Pool
}

// NewAnswerRepository creates a new AnswerRepository.
func NewAnswerRepository(pool *pgxpool.Pool) *AnswerRepository {
	return &AnswerRepository{pool: pool}
}

// Upsert stores the selected option, last write wins. It returns false when
// the session is submitted or not visible in scope.
func (r *AnswerRepository) Upsert(ctx context.Context, scope Scope, sessionID, questionID uuid.UUID, option string) (bool, error) {
	tag, err := r.pool.Exec(ctx,
		`INSERT INTO test_answers (session_id, question_id, selected_option)
		 SELECT s.id, $2, $3
		 FROM test_sessions s
		 WHERE s.id = $1 AND NOT s.submitted AND ($4 = 0 OR s.candidate_id = $4)
		 ON CONFLICT (session_id, question_id) DO UPDATE
		 SET selected_option = EXCLUDED.selected_option, updated_at = NOW()`,
		sessionID, questionID, option, scope.CandidateID,
	)
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() > 0, nil
}

// ListBySession returns every stored answer of a session.
func (r *AnswerRepository) ListBySession(ctx context.Context, scope Scope, sessionID uuid.UUID) ([]model.Answer, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT a.session_id, a.question_id, a.selected_option, a.is_correct, a.updated_at
		 FROM test_answers a
		 JOIN test_sessions s ON s.id = a.session_id
		 WHERE a.session_id = $1 AND ($2 = 0 OR s.candidate_id = $2)`,
		sessionID, scope.CandidateID,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var answers []model.Answer
	for rows.Next() {
		var a model.Answer
		if err := rows.Scan(&a.SessionID, &a.QuestionID, &a.SelectedOption, &a.IsCorrect, &a.UpdatedAt); err != nil {
			return nil, err
		}
		answers = append(answers, a)
	}
	return answers, rows.Err()
}
