package repository

import (
	"context"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/stemsi/hiring-backend/internal/model"
)

// SignalRepository writes the raw signal audit log.
type SignalRepository struct {
	pool *pgxpool.Pool
}

// NewSignalRepository creates a new SignalRepository.
func NewSignalRepository(pool *pgxpool.Pool) *SignalRepository {
	return &SignalRepository{pool: pool}
}

// CopySignals bulk-inserts a batch with the COPY protocol.
func (r *SignalRepository) CopySignals(ctx context.Context, batch []model.SignalRecord) (int64, error) {
	rows := make([][]interface{}, 0, len(batch))
	for _, s := range batch {
		rows = append(rows, []interface{}{s.SessionID, s.Kind, string(s.Data), s.RecordedAt})
	}
	return r.pool.CopyFrom(
		ctx,
		pgx.Identifier{"proctor_signals"},
		[]string{"session_id", "kind", "event_data", "recorded_at"},
		pgx.CopyFromRows(rows),
	)
}

// InsertSignal writes a single record.
func (r *SignalRepository) InsertSignal(ctx context.Context, s model.SignalRecord) error {
	_, err := r.pool.Exec(ctx,
		`INSERT INTO proctor_signals (session_id, kind, event_data, recorded_at)
		 VALUES ($1, $2, $3::jsonb, $4)`,
		s.SessionID, s.Kind, string(s.Data), s.RecordedAt,
	)
	return err
}
