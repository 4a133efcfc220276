package repository

import (
	"context"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/stemsi/hiring-backend/internal/model"
)

// RoundRepository reads the per-round test configuration of a job.
type RoundRepository struct {
	pool *pgxpool.Pool
}

// NewRoundRepository creates a new RoundRepository.
func NewRoundRepository(pool *pgxpool.Pool) *RoundRepository {
	return &RoundRepository{pool: pool}
}

// Get retrieves the configuration of one job round.
func (r *RoundRepository) Get(ctx context.Context, jobID uuid.UUID, round int) (*model.RoundConfig, error) {
	c := &model.RoundConfig{}
	err := r.pool.QueryRow(ctx,
		`SELECT job_id, round, total_rounds, question_count, duration_minutes
		 FROM job_rounds WHERE job_id = $1 AND round = $2`, jobID, round,
	).Scan(&c.JobID, &c.Round, &c.TotalRounds, &c.QuestionCount, &c.DurationMinutes)
	if err != nil {
		return nil, err
	}
	return c, nil
}
