package proctor

import (
	"context"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stemsi/hiring-backend/internal/model"
	"github.com/stretchr/testify/require"
)

func TestFinalizerIdempotent(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	m := h.machine()
	h.startArmed(m)
	qs := m.Paper().Questions
	for _, q := range qs[:8] {
		require.NoError(t, m.SelectAnswer(ctx, q.ID, "A"))
	}
	m.Close()
	sess := m.Session()

	f := NewFinalizer(h.store, h.clock, zerolog.Nop())
	first, err := f.Finalize(ctx, sess, TriggerManual)
	require.NoError(t, err)
	require.Equal(t, 8, first.Outcome.EarnedPoints)
	require.True(t, first.Outcome.Passed)
	stored := h.store.session(sess.ID)

	// A late answer and a second trigger must not change anything.
	h.clock.Advance(time.Minute)
	require.ErrorIs(t, h.store.UpsertAnswer(ctx, sess.ID, qs[9].ID, "A"), ErrAlreadyFinalized)
	second, err := f.Finalize(ctx, sess, TriggerTimeout)
	require.NoError(t, err)

	require.Equal(t, first.Outcome.EarnedPoints, second.Outcome.EarnedPoints)
	require.Equal(t, first.Outcome.Passed, second.Outcome.Passed)
	require.False(t, second.Outcome.AutoSubmitted)
	require.Equal(t, first.CompletedAt, second.CompletedAt)
	require.Equal(t, stored, h.store.session(sess.ID))
	require.Equal(t, 1, h.store.finalizes)
	require.Equal(t, 1, h.store.advances)

	app := h.store.app(h.app.ID)
	require.Equal(t, 2, app.CurrentRound)
	require.Equal(t, model.ApplicationStatusPassed, second.Status)
}

func TestFinalizerAdvanceFailureConvergesOnRetry(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	m := h.machine()
	require.NoError(t, m.Enter(ctx))
	m.Close()
	sess := m.Session()

	delete(h.store.apps, h.app.ID)
	f := NewFinalizer(h.store, h.clock, zerolog.Nop())
	_, err := f.Finalize(ctx, sess, TriggerExpired)
	require.ErrorIs(t, err, ErrNotFound)
	require.True(t, h.store.session(sess.ID).Submitted)

	h.store.apps[h.app.ID] = h.app
	res, err := f.Finalize(ctx, sess, TriggerExpired)
	require.NoError(t, err)
	require.True(t, res.Outcome.AutoSubmitted)
	require.Equal(t, model.ApplicationStatusFailed, res.Status)
	require.Equal(t, 1, h.store.finalizes)
}
