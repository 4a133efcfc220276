package repository

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/stemsi/hiring-backend/internal/model"
)

// ApplicationRepository handles the application fields mutated by the test flow.
type ApplicationRepository struct {
	pool *pgxpool.Pool
}

// NewApplicationRepository creates a new ApplicationRepository.
func NewApplicationRepository(pool *pgxpool.Pool) *ApplicationRepository {
	return &ApplicationRepository{pool: pool}
}

// GetByID retrieves an application visible in scope.
func (r *ApplicationRepository) GetByID(ctx context.Context, scope Scope, id uuid.UUID) (*model.Application, error) {
	a := &model.Application{}
	err := r.pool.QueryRow(ctx,
		`SELECT id, job_id, candidate_id, current_round, test_enabled, status, updated_at
		 FROM applications
		 WHERE id = $1 AND ($2 = 0 OR candidate_id = $2)`, id, scope.CandidateID,
	).Scan(&a.ID, &a.JobID, &a.CandidateID, &a.CurrentRound, &a.TestEnabled, &a.Status, &a.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return a, nil
}

// Exists reports whether an application row exists regardless of owner.
func (r *ApplicationRepository) Exists(ctx context.Context, id uuid.UUID) (bool, error) {
	var ok bool
	err := r.pool.QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM applications WHERE id = $1)`, id).Scan(&ok)
	return ok, err
}

// Advance applies exactly one post-test transition per finalized session.
// The session's advanced flag is claimed in the same transaction, so a
// repeated call changes nothing and reports false. The test gate takes no
// part: a session finalized after the gate closed still advances.
func (r *ApplicationRepository) Advance(ctx context.Context, scope Scope, id uuid.UUID, adv model.Advancement) (model.ApplicationStatus, bool, error) {
	var status model.ApplicationStatus
	var roundDelta int
	switch {
	case adv.Passed && adv.FinalRound:
		status = model.ApplicationStatusSelected
	case adv.Passed:
		status, roundDelta = model.ApplicationStatusPassed, 1
	default:
		status = model.ApplicationStatusFailed
	}

	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return "", false, fmt.Errorf("begin: %w", err)
	}
	defer tx.Rollback(ctx)

	tag, err := tx.Exec(ctx,
		`UPDATE test_sessions SET advanced = TRUE
		 WHERE id = $1 AND application_id = $2 AND submitted AND NOT advanced
		   AND ($3 = 0 OR candidate_id = $3)`,
		adv.SessionID, id, scope.CandidateID,
	)
	if err != nil {
		return "", false, fmt.Errorf("claim session: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return "", false, nil
	}

	// A round mismatch means the application already moved on; the claim
	// is kept so the session is not retried.
	tag, err = tx.Exec(ctx,
		`UPDATE applications
		 SET status = $1, current_round = current_round + $2, test_enabled = FALSE, updated_at = NOW()
		 WHERE id = $3 AND current_round = $4 AND ($5 = 0 OR candidate_id = $5)`,
		status, roundDelta, id, adv.Round, scope.CandidateID,
	)
	if err != nil {
		return "", false, fmt.Errorf("update application: %w", err)
	}
	applied := tag.RowsAffected() > 0

	if err := tx.Commit(ctx); err != nil {
		return "", false, fmt.Errorf("commit: %w", err)
	}
	return status, applied, nil
}

// SetTestEnabled opens or closes the test gate of the application's current round.
func (r *ApplicationRepository) SetTestEnabled(ctx context.Context, id uuid.UUID, enabled bool) (*model.Application, error) {
	a := &model.Application{}
	err := r.pool.QueryRow(ctx,
		`UPDATE applications SET test_enabled = $1, updated_at = NOW()
		 WHERE id = $2
		 RETURNING id, job_id, candidate_id, current_round, test_enabled, status, updated_at`,
		enabled, id,
	).Scan(&a.ID, &a.JobID, &a.CandidateID, &a.CurrentRound, &a.TestEnabled, &a.Status, &a.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return a, nil
}
