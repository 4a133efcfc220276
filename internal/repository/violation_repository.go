package repository

import (
	"context"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/stemsi/hiring-backend/internal/model"
)

// ViolationRepository handles the append-only violation log.
type ViolationRepository struct {
	pool *pgxpool.Pool
}

// NewViolationRepository creates a new ViolationRepository.
func NewViolationRepository(pool *pgxpool.Pool) *ViolationRepository {
	return &ViolationRepository{pool: pool}
}

// MaxCount returns the highest count ever recorded for the session (0 if none).
func (r *ViolationRepository) MaxCount(ctx context.Context, scope Scope, sessionID uuid.UUID) (int, error) {
	var count int
	err := r.pool.QueryRow(ctx,
		`SELECT COALESCE(MAX(v.count_snapshot), 0)
		 FROM test_sessions s
		 LEFT JOIN test_violations v ON v.session_id = s.id
		 WHERE s.id = $1 AND ($2 = 0 OR s.candidate_id = $2)
		 GROUP BY s.id`,
		sessionID, scope.CandidateID,
	).Scan(&count)
	return count, err
}

// Append records one violation with count = MAX + 1 in a single statement.
// No row is written (pgx.ErrNoRows) when the session is submitted, out of
// scope, or already at its cap. Two racing appends collide on
// UNIQUE(session_id, count_snapshot) and the loser gets a unique violation.
func (r *ViolationRepository) Append(ctx context.Context, scope Scope, sessionID uuid.UUID, category model.ViolationCategory) (int, error) {
	var count int
	err := r.pool.QueryRow(ctx,
		`WITH cur AS (
		   SELECT s.id, s.violation_cap, COALESCE(MAX(v.count_snapshot), 0) AS n
		   FROM test_sessions s
		   LEFT JOIN test_violations v ON v.session_id = s.id
		   WHERE s.id = $1 AND NOT s.submitted AND ($3 = 0 OR s.candidate_id = $3)
		   GROUP BY s.id, s.violation_cap
		 )
		 INSERT INTO test_violations (session_id, category, count_snapshot)
		 SELECT id, $2, n + 1 FROM cur WHERE n < violation_cap
		 RETURNING count_snapshot`,
		sessionID, category, scope.CandidateID,
	).Scan(&count)
	return count, err
}

// ListBySession returns the violation log of a session in recording order.
func (r *ViolationRepository) ListBySession(ctx context.Context, scope Scope, sessionID uuid.UUID) ([]model.ViolationRecord, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT v.id, v.session_id, v.category, v.count_snapshot, v.recorded_at
		 FROM test_violations v
		 JOIN test_sessions s ON s.id = v.session_id
		 WHERE v.session_id = $1 AND ($2 = 0 OR s.candidate_id = $2)
		 ORDER BY v.count_snapshot`,
		sessionID, scope.CandidateID,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var records []model.ViolationRecord
	for rows.Next() {
		var v model.ViolationRecord
		if err := rows.Scan(&v.ID, &v.SessionID, &v.Category, &v.Count, &v.RecordedAt); err != nil {
			return nil, err
		}
		records = append(records, v)
	}
	return records, rows.Err()
}
