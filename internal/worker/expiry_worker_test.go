package worker

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/stemsi/hiring-backend/internal/model"
	"github.com/stemsi/hiring-backend/internal/proctor"
	"github.com/stretchr/testify/require"
)

// expiryStore serves the calls a finalization makes. Anything else panics
// through the nil embedded interface.
type expiryStore struct {
	proctor.Store

	mu        sync.Mutex
	expired   []model.TestSession
	cutoff    time.Time
	questions []model.Question
	answers   map[uuid.UUID]map[uuid.UUID]string
	finalized map[uuid.UUID]model.Outcome
	advanced  map[uuid.UUID]model.Advancement
	failOn    uuid.UUID
}

func (s *expiryStore) ListExpired(_ context.Context, cutoff time.Time, _ int) ([]model.TestSession, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.cutoff = cutoff
	out := make([]model.TestSession, 0, len(s.expired))
	for _, sess := range s.expired {
		if _, done := s.finalized[sess.ID]; !done {
			out = append(out, sess)
		}
	}
	return out, nil
}

func (s *expiryStore) QuestionsByID(context.Context, []uuid.UUID) ([]model.Question, error) {
	return s.questions, nil
}

func (s *expiryStore) ListAnswers(_ context.Context, sessionID uuid.UUID) (map[uuid.UUID]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.answers[sessionID], nil
}

func (s *expiryStore) FinalizeSession(_ context.Context, sessionID uuid.UUID, out model.Outcome) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if sessionID == s.failOn {
		return proctor.ErrTransport
	}
	if _, ok := s.finalized[sessionID]; ok {
		return proctor.ErrAlreadyFinalized
	}
	s.finalized[sessionID] = out
	return nil
}

func (s *expiryStore) AdvanceApplication(_ context.Context, applicationID uuid.UUID, adv model.Advancement) (model.ApplicationStatus, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.advanced[applicationID] = adv
	if adv.Passed {
		return model.ApplicationStatusPassed, nil
	}
	return model.ApplicationStatusFailed, nil
}

type recordingPublisher struct {
	mu     sync.Mutex
	events []proctor.Event
}

func (p *recordingPublisher) Publish(_ context.Context, ev proctor.Event) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, ev)
}

func expiryQuestion(correct string) model.Question {
	return model.Question{
		ID:            uuid.New(),
		Prompt:        "?",
		Options:       []model.Option{{Label: "A", Text: "a"}, {Label: "B", Text: "b"}},
		CorrectOption: correct,
	}
}

func expiredSession(questions []model.Question) model.TestSession {
	ids := make([]uuid.UUID, len(questions))
	for i, q := range questions {
		ids[i] = q.ID
	}
	return model.TestSession{
		ID:              uuid.New(),
		ApplicationID:   uuid.New(),
		CandidateID:     7,
		JobID:           uuid.New(),
		Round:           1,
		CreatedAt:       time.Now().Add(-2 * time.Hour),
		DurationMinutes: 30,
		QuestionIDs:     ids,
		Policy:          model.SessionPolicy{DisplayCount: len(ids), TotalRounds: 2, ViolationCap: 3},
	}
}

func newExpiryFixture(sessions ...model.TestSession) (*expiryStore, *recordingPublisher) {
	st := &expiryStore{
		expired:   sessions,
		answers:   map[uuid.UUID]map[uuid.UUID]string{},
		finalized: map[uuid.UUID]model.Outcome{},
		advanced:  map[uuid.UUID]model.Advancement{},
	}
	return st, &recordingPublisher{}
}

func TestExpirySweepFinalizesAbandonedSessions(t *testing.T) {
	qs := []model.Question{expiryQuestion("A"), expiryQuestion("B")}
	passing := expiredSession(qs)
	failing := expiredSession(qs)
	st, pub := newExpiryFixture(passing, failing)
	st.questions = qs
	st.answers[passing.ID] = map[uuid.UUID]string{qs[0].ID: "A", qs[1].ID: "B"}
	st.answers[failing.ID] = map[uuid.UUID]string{qs[0].ID: "A"}

	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	w := NewExpiryWorker(st, proctor.NewFinalizer(st, proctor.SystemClock(), zerolog.Nop()), pub, nil,
		time.Minute, 2*time.Minute, zerolog.Nop())
	w.now = func() time.Time { return now }

	require.Equal(t, 2, w.Sweep(context.Background()))
	require.Equal(t, now.Add(-2*time.Minute), st.cutoff)

	require.True(t, st.finalized[passing.ID].Passed)
	require.True(t, st.finalized[passing.ID].AutoSubmitted)
	require.False(t, st.finalized[failing.ID].Passed)
	require.Equal(t, 1, st.finalized[failing.ID].EarnedPoints)
	require.Equal(t, model.Advancement{SessionID: passing.ID, Round: 1, Passed: true}, st.advanced[passing.ApplicationID])

	require.Len(t, pub.events, 2)
	for _, ev := range pub.events {
		require.Equal(t, proctor.EventSubmitted, ev.Type)
		require.NotNil(t, ev.Outcome)
	}

	// Nothing left on the next pass.
	require.Zero(t, w.Sweep(context.Background()))
}

func TestExpirySweepSkipsLiveAndRetriesFailures(t *testing.T) {
	qs := []model.Question{expiryQuestion("A")}
	live := expiredSession(qs)
	flaky := expiredSession(qs)
	st, pub := newExpiryFixture(live, flaky)
	st.questions = qs
	st.failOn = flaky.ID

	w := NewExpiryWorker(st, proctor.NewFinalizer(st, proctor.SystemClock(), zerolog.Nop()), pub,
		func(id uuid.UUID) bool { return id == live.ID }, time.Minute, time.Minute, zerolog.Nop())

	require.Zero(t, w.Sweep(context.Background()))
	require.Empty(t, st.finalized)
	require.Empty(t, pub.events)

	st.mu.Lock()
	st.failOn = uuid.Nil
	st.mu.Unlock()
	require.Equal(t, 1, w.Sweep(context.Background()))
	_, ok := st.finalized[flaky.ID]
	require.True(t, ok)
}
