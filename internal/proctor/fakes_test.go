package proctor

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/stemsi/hiring-backend/internal/model"
)

type fakeTimer struct {
	clock   *fakeClock
	at      time.Time
	seq     int
	f       func()
	stopped bool
	fired   bool
}

func (t *fakeTimer) Stop() bool {
	t.clock.mu.Lock()
	defer t.clock.mu.Unlock()
	active := !t.stopped && !t.fired
	t.stopped = true
	return active
}

// fakeClock runs due callbacks synchronously inside Advance.
type fakeClock struct {
	mu     sync.Mutex
	now    time.Time
	seq    int
	timers []*fakeTimer
}

func newFakeClock() *fakeClock {
	return &fakeClock{now: time.Date(2026, 3, 2, 9, 0, 0, 0, time.UTC)}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) AfterFunc(d time.Duration, f func()) Timer {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.seq++
	t := &fakeTimer{clock: c, at: c.now.Add(d), seq: c.seq, f: f}
	c.timers = append(c.timers, t)
	return t
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	target := c.now.Add(d)
	for {
		var next *fakeTimer
		for _, t := range c.timers {
			if t.stopped || t.fired || t.at.After(target) {
				continue
			}
			if next == nil || t.at.Before(next.at) || (t.at.Equal(next.at) && t.seq < next.seq) {
				next = t
			}
		}
		if next == nil {
			break
		}
		next.fired = true
		if next.at.After(c.now) {
			c.now = next.at
		}
		c.mu.Unlock()
		next.f()
		c.mu.Lock()
	}
	c.now = target
	live := c.timers[:0]
	for _, t := range c.timers {
		if !t.stopped && !t.fired {
			live = append(live, t)
		}
	}
	c.timers = live
	c.mu.Unlock()
}

type fakeSurface struct {
	mu            sync.Mutex
	fullscreen    bool
	denyRequest   bool
	requests      int
	exits         int
	confirmUnload bool
	warnings      []Warning
	notices       []Notice
	last          Snapshot
	pushes        int
}

func (s *fakeSurface) RequestFullscreen() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.requests++
	if s.denyRequest {
		return fmt.Errorf("request denied")
	}
	return nil
}

func (s *fakeSurface) ExitFullscreen() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.exits++
	s.fullscreen = false
	return nil
}

func (s *fakeSurface) IsFullscreen() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.fullscreen
}

func (s *fakeSurface) setFullscreen(v bool) {
	s.mu.Lock()
	s.fullscreen = v
	s.mu.Unlock()
}

func (s *fakeSurface) ConfirmBeforeUnload(enabled bool) {
	s.mu.Lock()
	s.confirmUnload = enabled
	s.mu.Unlock()
}

func (s *fakeSurface) Warn(w Warning) {
	s.mu.Lock()
	s.warnings = append(s.warnings, w)
	s.mu.Unlock()
}

func (s *fakeSurface) Notify(n Notice) {
	s.mu.Lock()
	s.notices = append(s.notices, n)
	s.mu.Unlock()
}

func (s *fakeSurface) Push(snap Snapshot) {
	s.mu.Lock()
	s.last = snap
	s.pushes++
	s.mu.Unlock()
}

func (s *fakeSurface) noticeKinds() []NoticeKind {
	s.mu.Lock()
	defer s.mu.Unlock()
	kinds := make([]NoticeKind, len(s.notices))
	for i, n := range s.notices {
		kinds[i] = n.Kind
	}
	return kinds
}

type fakePublisher struct {
	mu     sync.Mutex
	events []Event
}

func (p *fakePublisher) Publish(_ context.Context, ev Event) {
	p.mu.Lock()
	p.events = append(p.events, ev)
	p.mu.Unlock()
}

func (p *fakePublisher) types() []EventType {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]EventType, len(p.events))
	for i, ev := range p.events {
		out[i] = ev.Type
	}
	return out
}

// fakeStore is an in-memory Store with the same guards as the SQL one.
type fakeStore struct {
	mu         sync.Mutex
	clock      Clock
	apps       map[uuid.UUID]*model.Application
	rounds     map[int]model.RoundConfig
	questions  map[uuid.UUID]model.Question
	sessions   map[uuid.UUID]*model.TestSession
	answers    map[uuid.UUID]map[uuid.UUID]string
	violations map[uuid.UUID][]model.ViolationCategory

	finalizes    int
	advances     int
	failFinalize int
	failUpsert   int
	failCount    int
}

func newFakeStore(clock Clock) *fakeStore {
	return &fakeStore{
		clock:      clock,
		apps:       map[uuid.UUID]*model.Application{},
		rounds:     map[int]model.RoundConfig{},
		questions:  map[uuid.UUID]model.Question{},
		sessions:   map[uuid.UUID]*model.TestSession{},
		answers:    map[uuid.UUID]map[uuid.UUID]string{},
		violations: map[uuid.UUID][]model.ViolationCategory{},
	}
}

func (s *fakeStore) GetApplication(_ context.Context, id uuid.UUID) (*model.Application, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	app, ok := s.apps[id]
	if !ok {
		return nil, ErrNotFound
	}
	cp := *app
	return &cp, nil
}

func (s *fakeStore) RoundConfig(_ context.Context, jobID uuid.UUID, round int) (*model.RoundConfig, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	cfg, ok := s.rounds[round]
	if !ok || cfg.JobID != jobID {
		return nil, ErrNotFound
	}
	return &cfg, nil
}

func (s *fakeStore) QuestionPool(_ context.Context, jobID uuid.UUID, round int) ([]model.Question, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []model.Question
	for _, q := range s.questions {
		if q.JobID == jobID && q.Round == round {
			out = append(out, q)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Prompt < out[j].Prompt })
	return out, nil
}

func (s *fakeStore) QuestionsByID(_ context.Context, ids []uuid.UUID) ([]model.Question, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]model.Question, 0, len(ids))
	for _, id := range ids {
		if q, ok := s.questions[id]; ok {
			out = append(out, q)
		}
	}
	return out, nil
}

func (s *fakeStore) CreateSession(_ context.Context, ns model.NewSession) (*model.TestSession, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, sess := range s.sessions {
		if sess.ApplicationID == ns.ApplicationID && sess.Round == ns.Round {
			return nil, ErrConflict
		}
	}
	sess := &model.TestSession{
		ID:              uuid.New(),
		ApplicationID:   ns.ApplicationID,
		CandidateID:     ns.CandidateID,
		JobID:           ns.JobID,
		Round:           ns.Round,
		CreatedAt:       s.clock.Now(),
		DurationMinutes: ns.DurationMinutes,
		QuestionIDs:     append([]uuid.UUID(nil), ns.QuestionIDs...),
		Policy:          ns.Policy,
	}
	s.sessions[sess.ID] = sess
	cp := *sess
	return &cp, nil
}

func (s *fakeStore) FindSession(_ context.Context, applicationID uuid.UUID, round int) (*model.TestSession, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, sess := range s.sessions {
		if sess.ApplicationID == applicationID && sess.Round == round {
			cp := *sess
			return &cp, nil
		}
	}
	return nil, ErrNotFound
}

func (s *fakeStore) UpsertAnswer(_ context.Context, sessionID, questionID uuid.UUID, option string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.failUpsert > 0 {
		s.failUpsert--
		return fmt.Errorf("%w: connection reset", ErrTransport)
	}
	sess, ok := s.sessions[sessionID]
	if !ok {
		return ErrNotFound
	}
	if sess.Submitted {
		return ErrAlreadyFinalized
	}
	if s.answers[sessionID] == nil {
		s.answers[sessionID] = map[uuid.UUID]string{}
	}
	s.answers[sessionID][questionID] = option
	return nil
}

func (s *fakeStore) ListAnswers(_ context.Context, sessionID uuid.UUID) (map[uuid.UUID]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := map[uuid.UUID]string{}
	for k, v := range s.answers[sessionID] {
		out[k] = v
	}
	return out, nil
}

func (s *fakeStore) ViolationCount(_ context.Context, sessionID uuid.UUID) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.failCount > 0 {
		s.failCount--
		return 0, fmt.Errorf("%w: connection refused", ErrTransport)
	}
	return len(s.violations[sessionID]), nil
}

func (s *fakeStore) AppendViolation(_ context.Context, sessionID uuid.UUID, category model.ViolationCategory) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	sess, ok := s.sessions[sessionID]
	if !ok {
		return 0, ErrNotFound
	}
	if sess.Submitted {
		return 0, ErrAlreadyFinalized
	}
	if len(s.violations[sessionID]) >= sess.Policy.ViolationCap {
		return 0, ErrViolationCapReached
	}
	s.violations[sessionID] = append(s.violations[sessionID], category)
	return len(s.violations[sessionID]), nil
}

func (s *fakeStore) FinalizeSession(_ context.Context, sessionID uuid.UUID, out model.Outcome) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.failFinalize > 0 {
		s.failFinalize--
		return fmt.Errorf("%w: i/o timeout", ErrTransport)
	}
	sess, ok := s.sessions[sessionID]
	if !ok {
		return ErrNotFound
	}
	if sess.Submitted {
		return ErrAlreadyFinalized
	}
	now := s.clock.Now()
	total, earned, passed, auto := out.TotalPoints, out.EarnedPoints, out.Passed, out.AutoSubmitted
	sess.Submitted = true
	sess.CompletedAt = &now
	sess.TotalPoints = &total
	sess.EarnedPoints = &earned
	sess.Passed = &passed
	sess.AutoSubmitted = &auto
	s.finalizes++
	return nil
}

func (s *fakeStore) AdvanceApplication(_ context.Context, applicationID uuid.UUID, adv model.Advancement) (model.ApplicationStatus, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	app, ok := s.apps[applicationID]
	if !ok {
		return "", ErrNotFound
	}
	sess, ok := s.sessions[adv.SessionID]
	if !ok || !sess.Submitted || sess.Advanced {
		return app.Status, nil
	}
	sess.Advanced = true
	if app.CurrentRound != adv.Round {
		return app.Status, nil
	}
	switch {
	case adv.Passed && adv.FinalRound:
		app.Status = model.ApplicationStatusSelected
	case adv.Passed:
		app.Status = model.ApplicationStatusPassed
		app.CurrentRound++
	default:
		app.Status = model.ApplicationStatusFailed
	}
	app.TestEnabled = false
	s.advances++
	return app.Status, nil
}

func (s *fakeStore) app(id uuid.UUID) model.Application {
	s.mu.Lock()
	defer s.mu.Unlock()
	return *s.apps[id]
}

func (s *fakeStore) session(id uuid.UUID) model.TestSession {
	s.mu.Lock()
	defer s.mu.Unlock()
	return *s.sessions[id]
}

func (s *fakeStore) violationCount(id uuid.UUID) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.violations[id])
}
