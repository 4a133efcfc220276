package repository

import (
	"context"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/stemsi/hiring-backend/internal/model"
)

// QuestionRepository handles question data access.
type QuestionRepository struct {
	pool *pgxpool.Pool
}

// NewQuestionRepository creates a new QuestionRepository.
func NewQuestionRepository(pool *pgxpool.Pool) *QuestionRepository {
	return &QuestionRepository{pool: pool}
}

func collectQuestions(rows pgx.Rows) ([]model.Question, error) {
	defer rows.Close()

	var questions []model.Question
	for rows.Next() {
		var q model.Question
		if err := rows.Scan(&q.ID, &q.JobID, &q.Round, &q.Prompt, &q.Options, &q.CorrectOption, &q.Points); err != nil {
			return nil, err
		}
		questions = append(questions, q)
	}
	return questions, rows.Err()
}

// ListByJobRound retrieves the eligible pool for a job round.
func (r *QuestionRepository) ListByJobRound(ctx context.Context, jobID uuid.UUID, round int) ([]model.Question, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT id, job_id, round, prompt, options, correct_option, points
		 FROM questions WHERE job_id = $1 AND round = $2
		 ORDER BY id`, jobID, round,
	)
	if err != nil {
		return nil, err
	}
	return collectQuestions(rows)
}

// ListByIDs retrieves exactly the given questions, answer keys included.
func (r *QuestionRepository) ListByIDs(ctx context.Context, ids []uuid.UUID) ([]model.Question, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT id, job_id, round, prompt, options, correct_option, points
		 FROM questions WHERE id = ANY($1::uuid[])`, ids,
	)
	if err != nil {
		return nil, err
	}
	return collectQuestions(rows)
}
