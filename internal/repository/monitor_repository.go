package repository

import (
	"context"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
)

// MonitorRepository provides data access for the live proctor monitor.
type MonitorRepository struct {
	pool *pgxpool.Pool
}

// NewMonitorRepository creates a new MonitorRepository.
func NewMonitorRepository(pool *pgxpool.Pool) *MonitorRepository {
	return &MonitorRepository{pool: pool}
}

// GetAnsweredCounts returns the number of answered questions per session of a job.
func (r *MonitorRepository) GetAnsweredCounts(ctx context.Context, jobID uuid.UUID) (map[uuid.UUID]int64, error) {
	return r.countBySession(ctx,
		`SELECT a.session_id, COUNT(*)
		 FROM test_answers a
		 JOIN test_sessions s ON s.id = a.session_id
		 WHERE s.job_id = $1
		 GROUP BY a.session_id`, jobID)
}

// GetViolationCounts returns the authoritative violation count per session of a job.
func (r *MonitorRepository) GetViolationCounts(ctx context.Context, jobID uuid.UUID) (map[uuid.UUID]int64, error) {
	return r.countBySession(ctx,
		`SELECT v.session_id, MAX(v.count_snapshot)
		 FROM test_violations v
		 JOIN test_sessions s ON s.id = v.session_id
		 WHERE s.job_id = $1
		 GROUP BY v.session_id`, jobID)
}

func (r *MonitorRepository) countBySession(ctx context.Context, query string, jobID uuid.UUID) (map[uuid.UUID]int64, error) {
	rows, err := r.pool.Query(ctx, query, jobID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	counts := make(map[uuid.UUID]int64)
	for rows.Next() {
		var sid uuid.UUID
		var n int64
		if err := rows.Scan(&sid, &n); err != nil {
			return nil, err
		}
		counts[sid] = n
	}
	return counts, rows.Err()
}
