package proctor

import (
	"context"
	"errors"
	"fmt"
	"math/rand/v2"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/stemsi/hiring-backend/internal/model"
)

// Phase is the lifecycle phase of a Machine.
type Phase string

const (
	PhaseSetup              Phase = "setup"
	PhaseAwaitingFullscreen Phase = "awaiting-fullscreen"
	PhaseActive             Phase = "active"
	PhaseFinalizing         Phase = "finalizing"
	PhaseCompleted          Phase = "completed"
)

// Policy holds the proctoring knobs of a machine. ViolationCap only applies
// to sessions created by the machine; resumed sessions keep their own.
type Policy struct {
	ViolationCap       int
	GracePeriod        time.Duration
	PollInterval       time.Duration
	BlurDebounce       time.Duration
	ViolationCooldown  time.Duration
	FinalizeRetryDelay time.Duration
	TickInterval       time.Duration
}

// DefaultPolicy returns the stock proctoring policy.
func DefaultPolicy() Policy {
	return Policy{
		ViolationCap:       3,
		GracePeriod:        1500 * time.Millisecond,
		PollInterval:       time.Second,
		BlurDebounce:       time.Second,
		ViolationCooldown:  500 * time.Millisecond,
		FinalizeRetryDelay: 250 * time.Millisecond,
		TickInterval:       time.Second,
	}
}

// Deps are the collaborators of a Machine. Guard, Publisher, Clock and Rand
// are optional.
type Deps struct {
	Store     Store
	Surface   Surface
	Clock     Clock
	Guard     Guard
	Publisher Publisher
	Rand      *rand.Rand
	Log       zerolog.Logger
}

// SubmitSummary backs the submit confirmation dialog.
type SubmitSummary struct {
	Answered   int   `json:"answered"`
	Unanswered int   `json:"unanswered"`
	Missing    []int `json:"missing"`
}

// Machine drives one candidate's attempt at the current round of one
// application. All store calls happen outside the lock, so events from the
// page, the countdown and the enforcer interleave between them.
type Machine struct {
	mu     sync.Mutex
	ctx    context.Context
	cancel context.CancelFunc

	applicationID uuid.UUID
	policy        Policy
	store         Store
	surface       Surface
	clock         Clock
	guard         Guard
	publisher     Publisher
	rng           *rand.Rand
	log           zerolog.Logger

	finalizer *Finalizer
	enforcer  *Enforcer
	monitor   *Monitor

	phase      Phase
	app        *model.Application
	session    *model.TestSession
	questions  []model.Question
	paper      []model.CandidateQuestion
	index      map[uuid.UUID]int
	answers    map[uuid.UUID]string
	unsynced   map[uuid.UUID]string
	current    int
	violations int
	trigger    Trigger
	finalizing bool
	lastErr    error
	result     *Result
	ticker     Timer
	closed     bool
}

// NewMachine creates a machine in the setup phase.
func NewMachine(applicationID uuid.UUID, policy Policy, deps Deps) *Machine {
	if deps.Clock == nil {
		deps.Clock = SystemClock()
	}
	if deps.Guard == nil {
		deps.Guard = nopGuard{}
	}
	if deps.Publisher == nil {
		deps.Publisher = nopPublisher{}
	}
	if policy.TickInterval <= 0 {
		policy.TickInterval = time.Second
	}

	ctx, cancel := context.WithCancel(context.Background())
	m := &Machine{
		ctx:           ctx,
		cancel:        cancel,
		applicationID: applicationID,
		policy:        policy,
		store:         deps.Store,
		surface:       deps.Surface,
		clock:         deps.Clock,
		guard:         deps.Guard,
		publisher:     deps.Publisher,
		rng:           deps.Rand,
		log:           deps.Log.With().Str("application_id", applicationID.String()).Logger(),
		phase:         PhaseSetup,
		index:         map[uuid.UUID]int{},
		answers:       map[uuid.UUID]string{},
		unsynced:      map[uuid.UUID]string{},
	}
	m.finalizer = NewFinalizer(deps.Store, deps.Clock, m.log)
	m.enforcer = NewEnforcer(deps.Surface, deps.Clock, policy.GracePeriod, policy.PollInterval,
		m.onArmed, m.onFullscreenExit, m.log)
	return m
}

// Enter creates or resumes the session of the application's current round.
// A submitted session goes straight to completed.
func (m *Machine) Enter(ctx context.Context) error {
	m.mu.Lock()
	if m.phase != PhaseSetup {
		m.mu.Unlock()
		return nil
	}
	m.mu.Unlock()

	app, err := m.store.GetApplication(ctx, m.applicationID)
	if err != nil {
		return err
	}
	sess, err := m.resolveSession(ctx, app)
	if err != nil {
		return err
	}

	if sess.Submitted {
		return m.enterCompleted(ctx, app, sess)
	}

	keys, err := m.store.QuestionsByID(ctx, sess.QuestionIDs)
	if err != nil {
		return fmt.Errorf("load questions: %w", err)
	}
	answers, err := m.store.ListAnswers(ctx, sess.ID)
	if err != nil {
		return fmt.Errorf("load answers: %w", err)
	}
	count, err := m.store.ViolationCount(ctx, sess.ID)
	if err != nil {
		return fmt.Errorf("load violation count: %w", err)
	}

	ordered := OrderByIDs(keys, sess.QuestionIDs)
	monitor := newMonitor(sess.ID, MonitorConfig{
		Cap:          sess.Policy.ViolationCap,
		BlurDebounce: m.policy.BlurDebounce,
		Cooldown:     m.policy.ViolationCooldown,
	}, m.store, m.guard, m.clock, m.surface, m, m.log)

	m.mu.Lock()
	m.app = app
	m.session = sess
	m.questions = ordered
	m.paper = Project(ordered)
	for i, q := range ordered {
		m.index[q.ID] = i
	}
	for qid, opt := range answers {
		m.answers[qid] = opt
	}
	m.violations = count
	m.monitor = monitor
	m.phase = PhaseAwaitingFullscreen
	remaining := sess.Remaining(m.clock.Now())
	m.mu.Unlock()

	m.log.Info().
		Str("session_id", sess.ID.String()).
		Int("round", sess.Round).
		Dur("remaining", remaining).
		Int("answers", len(answers)).
		Int("violations", count).
		Msg("test session entered")
	m.publish(EventJoined, nil)

	if remaining <= 0 {
		_ = m.finalize(ctx, TriggerTimeout)
		return nil
	}
	if count >= sess.Policy.ViolationCap {
		_ = m.finalize(ctx, TriggerViolation)
		return nil
	}
	m.push()
	return nil
}

func (m *Machine) resolveSession(ctx context.Context, app *model.Application) (*model.TestSession, error) {
	sess, err := m.store.FindSession(ctx, app.ID, app.CurrentRound)
	if err == nil {
		return sess, nil
	}
	if !errors.Is(err, ErrNotFound) {
		return nil, err
	}

	if !app.TestEnabled || !canTest(app.Status) {
		// After a pass the round moves on with the gate closed; show the
		// finished round until a recruiter opens the next one.
		if app.CurrentRound > 1 {
			prev, perr := m.store.FindSession(ctx, app.ID, app.CurrentRound-1)
			if perr == nil && prev.Submitted {
				return prev, nil
			}
		}
		return nil, ErrTestNotEnabled
	}
	return m.create(ctx, app)
}

func canTest(status model.ApplicationStatus) bool {
	return status == model.ApplicationStatusApplied || status == model.ApplicationStatusPassed
}

func (m *Machine) create(ctx context.Context, app *model.Application) (*model.TestSession, error) {
	cfg, err := m.store.RoundConfig(ctx, app.JobID, app.CurrentRound)
	if err != nil {
		return nil, fmt.Errorf("load round config: %w", err)
	}
	pool, err := m.store.QuestionPool(ctx, app.JobID, app.CurrentRound)
	if err != nil {
		return nil, fmt.Errorf("load question pool: %w", err)
	}
	picked, err := Sample(pool, cfg.QuestionCount, m.rng)
	if err != nil {
		return nil, err
	}

	ids := make([]uuid.UUID, len(picked))
	for i, q := range picked {
		ids[i] = q.ID
	}

	sess, err := m.store.CreateSession(ctx, model.NewSession{
		ApplicationID:   app.ID,
		CandidateID:     app.CandidateID,
		JobID:           app.JobID,
		Round:           app.CurrentRound,
		DurationMinutes: cfg.DurationMinutes,
		QuestionIDs:     ids,
		Policy: model.SessionPolicy{
			DisplayCount: len(ids),
			TotalRounds:  cfg.TotalRounds,
			ViolationCap: m.policy.ViolationCap,
		},
	})
	if errors.Is(err, ErrConflict) {
		// Another tab created it first.
		return m.store.FindSession(ctx, app.ID, app.CurrentRound)
	}
	if err != nil {
		return nil, err
	}

	m.log.Info().
		Str("session_id", sess.ID.String()).
		Int("round", sess.Round).
		Int("questions", len(ids)).
		Int("pool", len(pool)).
		Msg("test session created")
	return sess, nil
}

func (m *Machine) enterCompleted(ctx context.Context, app *model.Application, sess *model.TestSession) error {
	var res *Result
	if !sess.Advanced {
		// Finalized but never advanced; converge now.
		trigger := TriggerManual
		if sess.AutoSubmitted != nil && *sess.AutoSubmitted {
			trigger = TriggerExpired
		}
		r, err := m.finalizer.Finalize(ctx, sess, trigger)
		if err != nil {
			return err
		}
		res = r
	} else {
		res = storedResult(app, sess)
	}

	m.mu.Lock()
	m.app = app
	m.session = sess
	m.result = res
	m.phase = PhaseCompleted
	m.mu.Unlock()

	m.push()
	return nil
}

func storedResult(app *model.Application, sess *model.TestSession) *Result {
	res := &Result{Status: app.Status}
	if out := sess.Outcome(); out != nil {
		res.Outcome = *out
		res.Outcome.Threshold = PassThreshold(out.TotalPoints)
	}
	if sess.CompletedAt != nil {
		res.CompletedAt = *sess.CompletedAt
	}
	return res
}

// Start engages fullscreen and starts the countdown. It must follow the
// candidate's explicit gesture.
func (m *Machine) Start(ctx context.Context) error {
	m.mu.Lock()
	switch m.phase {
	case PhaseActive:
		m.mu.Unlock()
		return nil
	case PhaseAwaitingFullscreen:
	default:
		m.mu.Unlock()
		return ErrInvalidPhase
	}
	sess := m.session
	m.mu.Unlock()

	if sess.Remaining(m.clock.Now()) <= 0 {
		return m.finalize(ctx, TriggerTimeout)
	}
	if m.violationsAt(ctx, sess) >= sess.Policy.ViolationCap {
		return m.finalize(ctx, TriggerViolation)
	}
	if err := m.enforcer.Engage(); err != nil {
		return err
	}

	m.mu.Lock()
	if m.phase != PhaseAwaitingFullscreen {
		m.mu.Unlock()
		return nil
	}
	m.phase = PhaseActive
	m.ticker = m.clock.AfterFunc(m.policy.TickInterval, m.tick)
	m.mu.Unlock()

	m.publish(EventStarted, nil)
	m.push()
	return nil
}

// violationsAt refreshes the violation count from the store. Another
// connection on the same session may have recorded some since Enter.
func (m *Machine) violationsAt(ctx context.Context, sess *model.TestSession) int {
	count, err := m.store.ViolationCount(ctx, sess.ID)
	m.mu.Lock()
	defer m.mu.Unlock()
	if err != nil {
		m.log.Warn().Err(err).Str("session_id", sess.ID.String()).Msg("violation count refresh failed")
	} else if count > m.violations {
		m.violations = count
	}
	return m.violations
}

func (m *Machine) tick() {
	m.mu.Lock()
	if m.phase != PhaseActive || m.closed {
		m.mu.Unlock()
		return
	}
	remaining := m.session.Remaining(m.clock.Now())
	if remaining > 0 {
		m.ticker = m.clock.AfterFunc(m.policy.TickInterval, m.tick)
	}
	m.mu.Unlock()

	if remaining <= 0 {
		_ = m.finalize(m.ctx, TriggerTimeout)
		return
	}
	m.push()
}

// SelectAnswer records the candidate's choice. Store failures are reported
// as a notice and the answer is flushed again at finalization.
func (m *Machine) SelectAnswer(ctx context.Context, questionID uuid.UUID, option string) error {
	m.mu.Lock()
	if m.phase != PhaseActive {
		m.mu.Unlock()
		return ErrInvalidPhase
	}
	i, ok := m.index[questionID]
	if !ok {
		m.mu.Unlock()
		return ErrUnknownQuestion
	}
	if !m.questions[i].HasOption(option) {
		m.mu.Unlock()
		return ErrInvalidOption
	}
	m.answers[questionID] = option
	m.unsynced[questionID] = option
	m.current = i
	sessionID := m.session.ID
	m.mu.Unlock()

	err := m.store.UpsertAnswer(ctx, sessionID, questionID, option)
	switch {
	case err == nil:
		m.mu.Lock()
		if m.unsynced[questionID] == option {
			delete(m.unsynced, questionID)
		}
		m.mu.Unlock()
	case errors.Is(err, ErrAlreadyFinalized):
		// Finalized elsewhere, e.g. by the expiry sweep or another tab.
		_ = m.finalize(ctx, TriggerExpired)
		return ErrInvalidPhase
	default:
		m.log.Warn().Err(err).Str("question_id", questionID.String()).Msg("answer not saved")
		m.surface.Notify(Notice{
			Kind:      NoticeAnswerNotSaved,
			Message:   "Your answer could not be saved yet. It will be retried on submit.",
			Retryable: true,
		})
	}
	m.push()
	return nil
}

// Navigate moves to the question at index.
func (m *Machine) Navigate(index int) error {
	m.mu.Lock()
	if m.phase != PhaseActive {
		m.mu.Unlock()
		return ErrInvalidPhase
	}
	if index < 0 || index >= len(m.paper) {
		m.mu.Unlock()
		return ErrQuestionIndex
	}
	m.current = index
	m.mu.Unlock()

	m.push()
	return nil
}

// RequestSubmit returns the answered and unanswered counts for the
// confirmation dialog. It changes nothing.
func (m *Machine) RequestSubmit() (SubmitSummary, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.phase != PhaseActive {
		return SubmitSummary{}, ErrInvalidPhase
	}
	sum := SubmitSummary{Missing: []int{}}
	for i, q := range m.paper {
		if _, ok := m.answers[q.ID]; ok {
			sum.Answered++
			continue
		}
		sum.Unanswered++
		sum.Missing = append(sum.Missing, i)
	}
	return sum, nil
}

// ConfirmSubmit finalizes the session on the candidate's request.
func (m *Machine) ConfirmSubmit(ctx context.Context) error {
	m.mu.Lock()
	phase := m.phase
	m.mu.Unlock()
	if phase != PhaseActive {
		return ErrInvalidPhase
	}
	return m.finalize(ctx, TriggerManual)
}

// RetrySubmit re-runs a finalization that failed.
func (m *Machine) RetrySubmit(ctx context.Context) error {
	m.mu.Lock()
	if m.phase != PhaseFinalizing || m.finalizing {
		m.mu.Unlock()
		return ErrInvalidPhase
	}
	trigger := m.trigger
	m.mu.Unlock()
	return m.finalize(ctx, trigger)
}

// HandleSignal feeds a page signal to the enforcer or the monitor.
func (m *Machine) HandleSignal(ctx context.Context, sig Signal) Verdict {
	switch sig.Kind {
	case SignalFullscreen:
		m.enforcer.FullscreenChanged(sig.Fullscreen)
		return Verdict{}
	case SignalHeartbeat, SignalFocus:
		return Verdict{}
	}

	m.mu.Lock()
	mon := m.monitor
	m.mu.Unlock()
	if mon == nil {
		return Classify(sig, false)
	}
	return mon.Observe(ctx, sig, m.enforcer.Engaged())
}

func (m *Machine) onArmed() {
	m.mu.Lock()
	active := m.phase == PhaseActive
	mon := m.monitor
	m.mu.Unlock()
	if !active || mon == nil {
		return
	}
	mon.Arm()
	m.surface.ConfirmBeforeUnload(true)
	m.push()
}

func (m *Machine) onFullscreenExit() {
	m.mu.Lock()
	mon := m.monitor
	m.mu.Unlock()
	if mon != nil {
		mon.Report(m.ctx, model.ViolationFullscreenExit)
	}
}

func (m *Machine) violationRecorded(ctx context.Context, category model.ViolationCategory, count int) {
	m.mu.Lock()
	if count > m.violations {
		m.violations = count
	}
	m.mu.Unlock()

	m.publish(EventViolation, func(ev *Event) {
		ev.Category = category
		ev.Count = count
	})
	m.push()
}

func (m *Machine) capReached(ctx context.Context) {
	m.mu.Lock()
	loaded := m.session != nil && m.questions != nil
	closed := m.closed
	m.mu.Unlock()
	if closed {
		return
	}
	if !loaded {
		m.clock.AfterFunc(m.policy.FinalizeRetryDelay, func() { m.capReached(m.ctx) })
		return
	}
	_ = m.finalize(ctx, TriggerViolation)
}

// finalize converges every trigger on one completed result. The first
// trigger decides whether the submission counts as automatic.
func (m *Machine) finalize(ctx context.Context, trigger Trigger) error {
	m.mu.Lock()
	switch {
	case m.phase == PhaseCompleted || m.finalizing:
		m.mu.Unlock()
		return nil
	case m.phase == PhaseSetup:
		m.mu.Unlock()
		return ErrInvalidPhase
	}
	if m.phase != PhaseFinalizing {
		m.trigger = trigger
	}
	trigger = m.trigger
	m.phase = PhaseFinalizing
	m.finalizing = true
	m.lastErr = nil
	if m.ticker != nil {
		m.ticker.Stop()
		m.ticker = nil
	}
	sess := m.session
	mon := m.monitor
	pending := make(map[uuid.UUID]string, len(m.unsynced))
	for qid, opt := range m.unsynced {
		pending[qid] = opt
	}
	m.mu.Unlock()

	m.enforcer.Release()
	if mon != nil {
		mon.Disarm()
	}
	m.surface.ConfirmBeforeUnload(false)
	m.push()

	for qid, opt := range pending {
		err := m.store.UpsertAnswer(ctx, sess.ID, qid, opt)
		if err != nil && !errors.Is(err, ErrAlreadyFinalized) {
			m.fail(err)
			return err
		}
		m.mu.Lock()
		if m.unsynced[qid] == opt {
			delete(m.unsynced, qid)
		}
		m.mu.Unlock()
	}

	res, err := m.finalizer.Finalize(ctx, sess, trigger)
	if err != nil {
		m.fail(err)
		return err
	}

	m.mu.Lock()
	m.phase = PhaseCompleted
	m.finalizing = false
	m.result = res
	m.mu.Unlock()

	if trigger.Auto() {
		m.surface.Notify(Notice{Kind: NoticeAutoSubmitted, Message: autoSubmitMessage(trigger)})
	}
	m.publish(EventSubmitted, func(ev *Event) {
		out := res.Outcome
		ev.Outcome = &out
	})
	m.push()
	return nil
}

func autoSubmitMessage(trigger Trigger) string {
	switch trigger {
	case TriggerViolation:
		return "Your test was submitted automatically after reaching the violation limit."
	case TriggerTimeout:
		return "Time is up. Your test was submitted automatically."
	default:
		return "Your test was submitted automatically."
	}
}

func (m *Machine) fail(err error) {
	m.mu.Lock()
	m.finalizing = false
	m.lastErr = err
	m.mu.Unlock()

	m.surface.Notify(Notice{
		Kind:      NoticeFinalizeFailed,
		Message:   "We could not submit your test. Please retry.",
		Retryable: true,
	})
	m.push()
}

// Close detaches the machine from its page. The session stays resumable.
func (m *Machine) Close() {
	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		return
	}
	m.closed = true
	if m.ticker != nil {
		m.ticker.Stop()
		m.ticker = nil
	}
	mon := m.monitor
	m.mu.Unlock()

	m.enforcer.Detach()
	if mon != nil {
		mon.Disarm()
	}
	m.cancel()
}

// Phase returns the current phase.
func (m *Machine) Phase() Phase {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.phase
}

// Session returns the loaded session, or nil during setup.
func (m *Machine) Session() *model.TestSession {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.session
}

// Paper returns the candidate-facing question list, or nil if the session
// is not loaded or already completed on entry.
func (m *Machine) Paper() *model.Paper {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.session == nil || m.paper == nil {
		return nil
	}
	qs := make([]model.CandidateQuestion, len(m.paper))
	copy(qs, m.paper)
	return &model.Paper{
		SessionID:       m.session.ID,
		Round:           m.session.Round,
		DurationMinutes: m.session.DurationMinutes,
		Questions:       qs,
	}
}

func (m *Machine) publish(typ EventType, fill func(*Event)) {
	m.mu.Lock()
	if m.session == nil {
		m.mu.Unlock()
		return
	}
	ev := Event{
		Type:          typ,
		SessionID:     m.session.ID,
		ApplicationID: m.session.ApplicationID,
		JobID:         m.session.JobID,
		CandidateID:   m.session.CandidateID,
		At:            m.clock.Now(),
	}
	m.mu.Unlock()

	if fill != nil {
		fill(&ev)
	}
	m.publisher.Publish(context.WithoutCancel(m.ctx), ev)
}

func (m *Machine) push() {
	m.surface.Push(m.Snapshot())
}
