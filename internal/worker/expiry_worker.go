package worker

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/stemsi/hiring-backend/internal/model"
	"github.com/stemsi/hiring-backend/internal/proctor"
)

const expiryBatch = 100

// ExpiredSource lists open sessions whose deadline passed before cutoff.
type ExpiredSource interface {
	ListExpired(ctx context.Context, cutoff time.Time, limit int) ([]model.TestSession, error)
}

// ExpiryWorker finalizes sessions abandoned past their deadline, e.g. a page
// closed mid-test and never reopened.
type ExpiryWorker struct {
	source    ExpiredSource
	finalizer *proctor.Finalizer
	publisher proctor.Publisher
	live      func(uuid.UUID) bool
	interval  time.Duration
	slack     time.Duration
	now       func() time.Time
	log       zerolog.Logger
}

// NewExpiryWorker creates an ExpiryWorker. live reports sessions that still
// have a machine attached on this instance; those finalize themselves.
func NewExpiryWorker(
	source ExpiredSource,
	finalizer *proctor.Finalizer,
	publisher proctor.Publisher,
	live func(uuid.UUID) bool,
	interval, slack time.Duration,
	log zerolog.Logger,
) *ExpiryWorker {
	if live == nil {
		live = func(uuid.UUID) bool { return false }
	}
	return &ExpiryWorker{
		source:    source,
		finalizer: finalizer,
		publisher: publisher,
		live:      live,
		interval:  interval,
		slack:     slack,
		now:       time.Now,
		log:       log.With().Str("component", "expiry_worker").Logger(),
	}
}

// Start sweeps every interval until ctx is cancelled.
func (w *ExpiryWorker) Start(ctx context.Context) {
	w.log.Info().Dur("interval", w.interval).Dur("slack", w.slack).Msg("Worker started")

	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			w.log.Info().Msg("Worker stopped")
			return
		case <-ticker.C:
			w.Sweep(ctx)
		}
	}
}

// Sweep finalizes one batch of expired sessions and returns how many it
// finalized.
func (w *ExpiryWorker) Sweep(ctx context.Context) int {
	sessions, err := w.source.ListExpired(ctx, w.now().Add(-w.slack), expiryBatch)
	if err != nil {
		w.log.Error().Err(err).Msg("List expired sessions failed")
		return 0
	}

	done := 0
	for i := range sessions {
		sess := &sessions[i]
		if w.live(sess.ID) {
			continue
		}
		res, err := w.finalizer.Finalize(ctx, sess, proctor.TriggerExpired)
		if err != nil {
			// Left open; the next sweep retries.
			continue
		}
		done++
		if w.publisher != nil {
			out := res.Outcome
			w.publisher.Publish(ctx, proctor.Event{
				Type:          proctor.EventSubmitted,
				SessionID:     sess.ID,
				ApplicationID: sess.ApplicationID,
				JobID:         sess.JobID,
				CandidateID:   sess.CandidateID,
				Outcome:       &out,
				At:            res.CompletedAt,
			})
		}
	}

	if done > 0 {
		w.log.Info().Int("finalized", done).Int("candidates", len(sessions)).Msg("Expired sessions finalized")
	}
	return done
}
