package service

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/stemsi/hiring-backend/internal/model"
	"github.com/stemsi/hiring-backend/internal/observability"
	"github.com/stemsi/hiring-backend/internal/proctor"
	"github.com/stemsi/hiring-backend/internal/store"
)

// TestOverview is the read-only state of an application's test, used by the
// candidate page before it opens the live stream.
type TestOverview struct {
	Application      *model.Application `json:"application"`
	Session          *SessionView       `json:"session,omitempty"`
	RemainingSeconds int                `json:"remaining_seconds"`
	Violations       int                `json:"violations"`
	CanStart         bool               `json:"can_start"`
}

// SessionView is a session without its question list.
type SessionView struct {
	ID              uuid.UUID      `json:"id"`
	Round           int            `json:"round"`
	CreatedAt       time.Time      `json:"created_at"`
	DurationMinutes int            `json:"duration_minutes"`
	QuestionCount   int            `json:"question_count"`
	ViolationCap    int            `json:"violation_cap"`
	Submitted       bool           `json:"submitted"`
	CompletedAt     *time.Time     `json:"completed_at,omitempty"`
	Outcome         *model.Outcome `json:"outcome,omitempty"`
}

func newSessionView(s *model.TestSession) *SessionView {
	return &SessionView{
		ID:              s.ID,
		Round:           s.Round,
		CreatedAt:       s.CreatedAt,
		DurationMinutes: s.DurationMinutes,
		QuestionCount:   len(s.QuestionIDs),
		ViolationCap:    s.Policy.ViolationCap,
		Submitted:       s.Submitted,
		CompletedAt:     s.CompletedAt,
		Outcome:         s.Outcome(),
	}
}

// TestService owns the live machines of this instance and the read paths
// around them.
type TestService struct {
	adapter   *store.Adapter
	papers    *store.PaperCache
	guard     proctor.Guard
	publisher proctor.Publisher
	policy    proctor.Policy
	log       zerolog.Logger

	mu   sync.Mutex
	live map[uuid.UUID]int
}

// NewTestService creates a new TestService.
func NewTestService(
	adapter *store.Adapter,
	papers *store.PaperCache,
	guard proctor.Guard,
	publisher proctor.Publisher,
	policy proctor.Policy,
	log zerolog.Logger,
) *TestService {
	return &TestService{
		adapter:   adapter,
		papers:    papers,
		guard:     guard,
		publisher: publisher,
		policy:    policy,
		log:       log.With().Str("component", "test_service").Logger(),
		live:      make(map[uuid.UUID]int),
	}
}

// Open attaches a new machine for the candidate's application to surface and
// enters the current round. The caller must Release the machine.
func (s *TestService) Open(ctx context.Context, candidateID int, applicationID uuid.UUID, surface proctor.Surface) (*proctor.Machine, error) {
	m := proctor.NewMachine(applicationID, s.policy, proctor.Deps{
		Store:     s.adapter.ForCandidate(candidateID),
		Surface:   surface,
		Guard:     s.guard,
		Publisher: s.publisher,
		Log:       s.log.With().Int("candidate_id", candidateID).Logger(),
	})
	if err := m.Enter(ctx); err != nil {
		m.Close()
		return nil, err
	}

	if paper := m.Paper(); paper != nil {
		if err := s.papers.Set(ctx, paper); err != nil {
			s.log.Warn().Err(err).Str("session_id", paper.SessionID.String()).Msg("Failed to cache paper")
		}
	}

	if sess := m.Session(); sess != nil {
		s.mu.Lock()
		s.live[sess.ID]++
		s.mu.Unlock()
	}
	observability.LiveMachines().Inc()
	return m, nil
}

// Release detaches a machine returned by Open.
func (s *TestService) Release(m *proctor.Machine) {
	m.Close()
	if sess := m.Session(); sess != nil {
		s.mu.Lock()
		if s.live[sess.ID]--; s.live[sess.ID] <= 0 {
			delete(s.live, sess.ID)
		}
		s.mu.Unlock()
	}
	observability.LiveMachines().Dec()
}

// Live reports whether this instance has a machine attached to the session.
func (s *TestService) Live(sessionID uuid.UUID) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.live[sessionID] > 0
}

// State reports the application's test state without creating a session.
func (s *TestService) State(ctx context.Context, candidateID int, applicationID uuid.UUID) (*TestOverview, error) {
	st := s.adapter.ForCandidate(candidateID)

	app, err := st.GetApplication(ctx, applicationID)
	if err != nil {
		return nil, err
	}
	overview := &TestOverview{Application: app}

	sess, err := st.FindSession(ctx, app.ID, app.CurrentRound)
	if errors.Is(err, proctor.ErrNotFound) && app.CurrentRound > 1 && !app.TestEnabled {
		sess, err = st.FindSession(ctx, app.ID, app.CurrentRound-1)
		if err == nil && !sess.Submitted {
			sess, err = nil, proctor.ErrNotFound
		}
	}
	switch {
	case errors.Is(err, proctor.ErrNotFound):
		overview.CanStart = app.TestEnabled &&
			(app.Status == model.ApplicationStatusApplied || app.Status == model.ApplicationStatusPassed)
		return overview, nil
	case err != nil:
		return nil, err
	}

	overview.Session = newSessionView(sess)
	overview.CanStart = !sess.Submitted
	if !sess.Submitted {
		overview.RemainingSeconds = int(sess.Remaining(time.Now()).Round(time.Second) / time.Second)
	}
	count, err := st.ViolationCount(ctx, sess.ID)
	if err != nil {
		return nil, err
	}
	overview.Violations = count
	return overview, nil
}

// Paper returns the candidate-facing questions of the open session of the
// application's current round.
func (s *TestService) Paper(ctx context.Context, candidateID int, applicationID uuid.UUID) (*model.Paper, error) {
	st := s.adapter.ForCandidate(candidateID)

	app, err := st.GetApplication(ctx, applicationID)
	if err != nil {
		return nil, err
	}
	sess, err := st.FindSession(ctx, app.ID, app.CurrentRound)
	if err != nil {
		return nil, err
	}
	if sess.Submitted {
		return nil, proctor.ErrAlreadyFinalized
	}

	if paper, err := s.papers.Get(ctx, sess.ID); err != nil {
		s.log.Warn().Err(err).Str("session_id", sess.ID.String()).Msg("Paper cache read failed")
	} else if paper != nil {
		return paper, nil
	}

	questions, err := st.QuestionsByID(ctx, sess.QuestionIDs)
	if err != nil {
		return nil, fmt.Errorf("load questions: %w", err)
	}
	paper := &model.Paper{
		SessionID:       sess.ID,
		Round:           sess.Round,
		DurationMinutes: sess.DurationMinutes,
		Questions:       proctor.Project(proctor.OrderByIDs(questions, sess.QuestionIDs)),
	}
	if err := s.papers.Set(ctx, paper); err != nil {
		s.log.Warn().Err(err).Str("session_id", sess.ID.String()).Msg("Failed to cache paper")
	}
	return paper, nil
}

// SessionViolations returns a session with its violation log for recruiters.
func (s *TestService) SessionViolations(ctx context.Context, sessionID uuid.UUID) (*SessionView, []model.ViolationRecord, error) {
	st := s.adapter.System()

	sess, err := st.GetSession(ctx, sessionID)
	if err != nil {
		return nil, nil, err
	}
	records, err := st.ListViolations(ctx, sessionID)
	if err != nil {
		return nil, nil, err
	}
	return newSessionView(sess), records, nil
}

// SetTestEnabled opens or closes the test gate of an application.
func (s *TestService) SetTestEnabled(ctx context.Context, applicationID uuid.UUID, enabled bool) (*model.Application, error) {
	app, err := s.adapter.System().SetTestEnabled(ctx, applicationID, enabled)
	if err != nil {
		return nil, err
	}
	s.log.Info().
		Str("application_id", applicationID.String()).
		Bool("enabled", enabled).
		Int("round", app.CurrentRound).
		Msg("Test gate changed")
	return app, nil
}
