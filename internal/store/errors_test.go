package store

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stemsi/hiring-backend/internal/proctor"
	"github.com/stretchr/testify/require"
)

func TestClassify(t *testing.T) {
	require.NoError(t, classify(nil))
	require.ErrorIs(t, classify(pgx.ErrNoRows), proctor.ErrNotFound)
	require.ErrorIs(t, classify(fmt.Errorf("scan: %w", pgx.ErrNoRows)), proctor.ErrNotFound)

	dup := &pgconn.PgError{Code: "23505", ConstraintName: "test_sessions_application_id_round_key"}
	require.ErrorIs(t, classify(dup), proctor.ErrConflict)

	timeout := classify(context.DeadlineExceeded)
	require.ErrorIs(t, timeout, proctor.ErrTransport)
	require.ErrorIs(t, timeout, context.DeadlineExceeded)
	require.True(t, proctor.IsRetryable(timeout))

	down := classify(errors.New("dial tcp 127.0.0.1:5432: connect: connection refused"))
	require.ErrorIs(t, down, proctor.ErrTransport)

	fk := classify(&pgconn.PgError{Code: "23503"})
	require.ErrorIs(t, fk, proctor.ErrTransport)
}

func TestScopedCopies(t *testing.T) {
	a := NewAdapter(Repositories{})
	require.True(t, a.scope.IsSystem())

	c := a.ForCandidate(7)
	require.Equal(t, 7, c.scope.CandidateID)
	require.True(t, a.scope.IsSystem())
	require.True(t, c.System().scope.IsSystem())
}
