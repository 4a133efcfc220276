package proctor

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"
	"github.com/stemsi/hiring-backend/internal/model"
	"github.com/stemsi/hiring-backend/internal/observability"
)

// Trigger names the path that started a finalization.
type Trigger string

const (
	TriggerManual    Trigger = "manual"
	TriggerTimeout   Trigger = "timeout"
	TriggerViolation Trigger = "violation"
	TriggerExpired   Trigger = "expired"
)

// Auto reports whether the trigger is a forced submission.
func (t Trigger) Auto() bool {
	return t != TriggerManual
}

// Result is what the candidate sees once a session is completed.
type Result struct {
	Outcome     model.Outcome           `json:"outcome"`
	Status      model.ApplicationStatus `json:"application_status"`
	Trigger     Trigger                 `json:"trigger,omitempty"`
	CompletedAt time.Time               `json:"completed_at"`
}

// Finalizer scores a session, persists the outcome and advances the
// application. Every step converges on retry: an already finalized session
// reuses its stored outcome and the advancement is guarded in the store.
type Finalizer struct {
	store Store
	clock Clock
	log   zerolog.Logger
}

// NewFinalizer creates a Finalizer.
func NewFinalizer(store Store, clock Clock, log zerolog.Logger) *Finalizer {
	return &Finalizer{
		store: store,
		clock: clock,
		log:   log.With().Str("component", "finalizer").Logger(),
	}
}

// Finalize runs the scoring and advancement of sess.
func (f *Finalizer) Finalize(ctx context.Context, sess *model.TestSession, trigger Trigger) (*Result, error) {
	res, err := f.finalize(ctx, sess, trigger)
	if err != nil {
		observability.RecordFinalization(string(trigger), "error")
		f.log.Error().Err(err).
			Str("session_id", sess.ID.String()).
			Str("trigger", string(trigger)).
			Msg("finalization failed")
		return nil, err
	}

	result := "failed"
	if res.Outcome.Passed {
		result = "passed"
	}
	observability.RecordFinalization(string(trigger), result)
	f.log.Info().
		Str("session_id", sess.ID.String()).
		Str("trigger", string(trigger)).
		Int("earned", res.Outcome.EarnedPoints).
		Int("total", res.Outcome.TotalPoints).
		Bool("passed", res.Outcome.Passed).
		Str("status", string(res.Status)).
		Msg("session finalized")
	return res, nil
}

func (f *Finalizer) finalize(ctx context.Context, sess *model.TestSession, trigger Trigger) (*Result, error) {
	completedAt := f.clock.Now()

	out, err := f.score(ctx, sess)
	if err != nil {
		return nil, err
	}
	out.AutoSubmitted = trigger.Auto()

	err = f.store.FinalizeSession(ctx, sess.ID, out)
	switch {
	case errors.Is(err, ErrAlreadyFinalized):
		stored, ferr := f.store.FindSession(ctx, sess.ApplicationID, sess.Round)
		if ferr != nil {
			return nil, fmt.Errorf("reload finalized session: %w", ferr)
		}
		if prev := stored.Outcome(); prev != nil {
			out = *prev
			out.Threshold = PassThreshold(out.TotalPoints)
		}
		if stored.CompletedAt != nil {
			completedAt = *stored.CompletedAt
		}
	case err != nil:
		return nil, fmt.Errorf("finalize session: %w", err)
	}

	status, err := f.store.AdvanceApplication(ctx, sess.ApplicationID, model.Advancement{
		SessionID:  sess.ID,
		Round:      sess.Round,
		Passed:     out.Passed,
		FinalRound: sess.IsFinalRound(),
	})
	if err != nil {
		return nil, fmt.Errorf("advance application: %w", err)
	}

	return &Result{Outcome: out, Status: status, Trigger: trigger, CompletedAt: completedAt}, nil
}

func (f *Finalizer) score(ctx context.Context, sess *model.TestSession) (model.Outcome, error) {
	keys, err := f.store.QuestionsByID(ctx, sess.QuestionIDs)
	if err != nil {
		return model.Outcome{}, fmt.Errorf("load answer keys: %w", err)
	}
	answers, err := f.store.ListAnswers(ctx, sess.ID)
	if err != nil {
		return model.Outcome{}, fmt.Errorf("load answers: %w", err)
	}
	return Score(sess.QuestionIDs, keys, answers), nil
}
