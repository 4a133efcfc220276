package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/stemsi/hiring-backend/internal/model"
)

const sessionColumns = `id, application_id, candidate_id, job_id, round, created_at, duration_minutes,
	question_ids, display_count, total_rounds, violation_cap,
	submitted, completed_at, total_points, earned_points, passed, auto_submitted, advanced`

// TestSessionRepository handles test session data access.
type TestSessionRepository struct {
	pool *pgxpool.Pool
}

// NewTestSessionRepository creates a new TestSessionRepository.
func NewTestSessionRepository(pool *pgxpool.Pool) *TestSessionRepository {
	return &TestSessionRepository{pool: pool}
}

func scanSession(row pgx.Row) (*model.TestSession, error) {
	s := &model.TestSession{}
	err := row.Scan(
		&s.ID, &s.ApplicationID, &s.CandidateID, &s.JobID, &s.Round, &s.CreatedAt, &s.DurationMinutes,
		&s.QuestionIDs, &s.Policy.DisplayCount, &s.Policy.TotalRounds, &s.Policy.ViolationCap,
		&s.Submitted, &s.CompletedAt, &s.TotalPoints, &s.EarnedPoints, &s.Passed, &s.AutoSubmitted, &s.Advanced,
	)
	if err != nil {
		return nil, err
	}
	return s, nil
}

// GetByApplicationRound retrieves the session for an (application, round) pair.
func (r *TestSessionRepository) GetByApplicationRound(ctx context.Context, scope Scope, applicationID uuid.UUID, round int) (*model.TestSession, error) {
	return scanSession(r.pool.QueryRow(ctx,
		`SELECT `+sessionColumns+`
		 FROM test_sessions
		 WHERE application_id = $1 AND round = $2 AND ($3 = 0 OR candidate_id = $3)`,
		applicationID, round, scope.CandidateID,
	))
}

// GetByID retrieves a session by its UUID.
func (r *TestSessionRepository) GetByID(ctx context.Context, scope Scope, id uuid.UUID) (*model.TestSession, error) {
	return scanSession(r.pool.QueryRow(ctx,
		`SELECT `+sessionColumns+`
		 FROM test_sessions
		 WHERE id = $1 AND ($2 = 0 OR candidate_id = $2)`,
		id, scope.CandidateID,
	))
}

// Exists reports whether a session row exists regardless of owner.
func (r *TestSessionRepository) Exists(ctx context.Context, id uuid.UUID) (bool, error) {
	var ok bool
	err := r.pool.QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM test_sessions WHERE id = $1)`, id).Scan(&ok)
	return ok, err
}

// Create inserts a new session. A second insert for the same
// (application, round) returns pgx.ErrNoRows.
func (r *TestSessionRepository) Create(ctx context.Context, ns *model.NewSession) (*model.TestSession, error) {
	return scanSession(r.pool.QueryRow(ctx,
		`INSERT INTO test_sessions
		   (application_id, candidate_id, job_id, round, duration_minutes, question_ids,
		    display_count, total_rounds, violation_cap)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		 ON CONFLICT (application_id, round) DO NOTHING
		 RETURNING `+sessionColumns,
		ns.ApplicationID, ns.CandidateID, ns.JobID, ns.Round, ns.DurationMinutes, ns.QuestionIDs,
		ns.Policy.DisplayCount, ns.Policy.TotalRounds, ns.Policy.ViolationCap,
	))
}

// Finalize writes the scored outcome and each answer's correctness flag in
// one transaction. It returns false when the session was already submitted
// (or is not visible in scope), leaving every stored field untouched.
func (r *TestSessionRepository) Finalize(ctx context.Context, scope Scope, id uuid.UUID, out model.Outcome) (bool, error) {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return false, fmt.Errorf("begin: %w", err)
	}
	defer tx.Rollback(ctx)

	tag, err := tx.Exec(ctx,
		`UPDATE test_sessions
		 SET submitted = TRUE, completed_at = $1, total_points = $2, earned_points = $3,
		     passed = $4, auto_submitted = $5
		 WHERE id = $6 AND NOT submitted AND ($7 = 0 OR candidate_id = $7)`,
		time.Now(), out.TotalPoints, out.EarnedPoints, out.Passed, out.AutoSubmitted, id, scope.CandidateID,
	)
	if err != nil {
		return false, fmt.Errorf("update session: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return false, nil
	}

	if len(out.Correct) > 0 {
		qids := make([]uuid.UUID, 0, len(out.Correct))
		flags := make([]bool, 0, len(out.Correct))
		for qid, ok := range out.Correct {
			qids = append(qids, qid)
			flags = append(flags, ok)
		}
		_, err = tx.Exec(ctx,
			`UPDATE test_answers AS a
			 SET is_correct = t.ok
			 FROM UNNEST($2::uuid[], $3::bool[]) AS t (question_id, ok)
			 WHERE a.session_id = $1 AND a.question_id = t.question_id`,
			id, qids, flags,
		)
		if err != nil {
			return false, fmt.Errorf("mark answers: %w", err)
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return false, fmt.Errorf("commit: %w", err)
	}
	return true, nil
}

// ListOpenBefore returns unsubmitted sessions whose deadline is earlier than cutoff.
func (r *TestSessionRepository) ListOpenBefore(ctx context.Context, cutoff time.Time, limit int) ([]model.TestSession, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT `+sessionColumns+`
		 FROM test_sessions
		 WHERE NOT submitted
		   AND created_at + make_interval(mins => duration_minutes) < $1
		 ORDER BY created_at
		 LIMIT $2`, cutoff, limit,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var sessions []model.TestSession
	for rows.Next() {
		s, err := scanSession(rows)
		if err != nil {
			return nil, err
		}
		sessions = append(sessions, *s)
	}
	return sessions, rows.Err()
}

// ListByJob returns every session of a job, newest first.
func (r *TestSessionRepository) ListByJob(ctx context.Context, jobID uuid.UUID) ([]model.TestSession, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT `+sessionColumns+`
		 FROM test_sessions
		 WHERE job_id = $1
		 ORDER BY created_at DESC`, jobID,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var sessions []model.TestSession
	for rows.Next() {
		s, err := scanSession(rows)
		if err != nil {
			return nil, err
		}
		sessions = append(sessions, *s)
	}
	return sessions, rows.Err()
}
