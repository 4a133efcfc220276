package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/stemsi/hiring-backend/internal/model"
	"github.com/stemsi/hiring-backend/internal/proctor"
	"github.com/stemsi/hiring-backend/internal/repository"
)

const appendAttempts = 3

// Repositories bundles the data access the adapter is built on.
type Repositories struct {
	Sessions     *repository.TestSessionRepository
	Answers      *repository.AnswerRepository
	Violations   *repository.ViolationRepository
	Questions    *repository.QuestionRepository
	Applications *repository.ApplicationRepository
	Rounds       *repository.RoundRepository
}

// Adapter implements proctor.Store on PostgreSQL. Every read and write
// carries the adapter's ownership scope; rows owned by another candidate
// surface as proctor.ErrPermissionDenied.
type Adapter struct {
	repos Repositories
	scope repository.Scope
}

// NewAdapter returns a system-scoped adapter.
func NewAdapter(repos Repositories) *Adapter {
	return &Adapter{repos: repos, scope: repository.System()}
}

// ForCandidate returns a copy restricted to the candidate's own rows.
func (a *Adapter) ForCandidate(candidateID int) *Adapter {
	return &Adapter{repos: a.repos, scope: repository.Candidate(candidateID)}
}

// System returns an unrestricted copy for workers and recruiter views.
func (a *Adapter) System() *Adapter {
	return &Adapter{repos: a.repos, scope: repository.System()}
}

var _ proctor.Store = (*Adapter)(nil)

// missing distinguishes a row that does not exist from one outside scope.
func (a *Adapter) missing(ctx context.Context, exists func(context.Context, uuid.UUID) (bool, error), id uuid.UUID) error {
	if a.scope.IsSystem() {
		return proctor.ErrNotFound
	}
	ok, err := exists(ctx, id)
	if err != nil {
		return classify(err)
	}
	if ok {
		return proctor.ErrPermissionDenied
	}
	return proctor.ErrNotFound
}

// visibleSession loads a session in scope, mapping absence to NotFound or
// PermissionDenied.
func (a *Adapter) visibleSession(ctx context.Context, sessionID uuid.UUID) (*model.TestSession, error) {
	sess, err := a.repos.Sessions.GetByID(ctx, a.scope, sessionID)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, a.missing(ctx, a.repos.Sessions.Exists, sessionID)
	}
	if err != nil {
		return nil, classify(err)
	}
	return sess, nil
}

func (a *Adapter) GetApplication(ctx context.Context, applicationID uuid.UUID) (*model.Application, error) {
	app, err := a.repos.Applications.GetByID(ctx, a.scope, applicationID)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, a.missing(ctx, a.repos.Applications.Exists, applicationID)
	}
	if err != nil {
		return nil, classify(err)
	}
	return app, nil
}

func (a *Adapter) RoundConfig(ctx context.Context, jobID uuid.UUID, round int) (*model.RoundConfig, error) {
	cfg, err := a.repos.Rounds.Get(ctx, jobID, round)
	if err != nil {
		return nil, classify(err)
	}
	return cfg, nil
}

func (a *Adapter) QuestionPool(ctx context.Context, jobID uuid.UUID, round int) ([]model.Question, error) {
	qs, err := a.repos.Questions.ListByJobRound(ctx, jobID, round)
	if err != nil {
		return nil, classify(err)
	}
	return qs, nil
}

func (a *Adapter) QuestionsByID(ctx context.Context, ids []uuid.UUID) ([]model.Question, error) {
	qs, err := a.repos.Questions.ListByIDs(ctx, ids)
	if err != nil {
		return nil, classify(err)
	}
	return qs, nil
}

func (a *Adapter) CreateSession(ctx context.Context, ns model.NewSession) (*model.TestSession, error) {
	if !a.scope.IsSystem() && ns.CandidateID != a.scope.CandidateID {
		return nil, proctor.ErrPermissionDenied
	}
	sess, err := a.repos.Sessions.Create(ctx, &ns)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, proctor.ErrConflict
	}
	if err != nil {
		return nil, classify(err)
	}
	return sess, nil
}

func (a *Adapter) FindSession(ctx context.Context, applicationID uuid.UUID, round int) (*model.TestSession, error) {
	sess, err := a.repos.Sessions.GetByApplicationRound(ctx, a.scope, applicationID, round)
	if errors.Is(err, pgx.ErrNoRows) {
		// Only report NotFound to the application's owner.
		if _, aerr := a.GetApplication(ctx, applicationID); aerr != nil {
			return nil, aerr
		}
		return nil, proctor.ErrNotFound
	}
	if err != nil {
		return nil, classify(err)
	}
	return sess, nil
}

// GetSession loads a session by ID.
func (a *Adapter) GetSession(ctx context.Context, sessionID uuid.UUID) (*model.TestSession, error) {
	return a.visibleSession(ctx, sessionID)
}

func (a *Adapter) UpsertAnswer(ctx context.Context, sessionID, questionID uuid.UUID, option string) error {
	ok, err := a.repos.Answers.Upsert(ctx, a.scope, sessionID, questionID, option)
	if err != nil {
		return classify(err)
	}
	if ok {
		return nil
	}
	sess, err := a.visibleSession(ctx, sessionID)
	if err != nil {
		return err
	}
	if sess.Submitted {
		return proctor.ErrAlreadyFinalized
	}
	return fmt.Errorf("%w: answer for session %s not written", proctor.ErrTransport, sessionID)
}

func (a *Adapter) ListAnswers(ctx context.Context, sessionID uuid.UUID) (map[uuid.UUID]string, error) {
	answers, err := a.repos.Answers.ListBySession(ctx, a.scope, sessionID)
	if err != nil {
		return nil, classify(err)
	}
	out := make(map[uuid.UUID]string, len(answers))
	for _, ans := range answers {
		out[ans.QuestionID] = ans.SelectedOption
	}
	return out, nil
}

func (a *Adapter) ViolationCount(ctx context.Context, sessionID uuid.UUID) (int, error) {
	n, err := a.repos.Violations.MaxCount(ctx, a.scope, sessionID)
	if errors.Is(err, pgx.ErrNoRows) {
		return 0, a.missing(ctx, a.repos.Sessions.Exists, sessionID)
	}
	if err != nil {
		return 0, classify(err)
	}
	return n, nil
}

// AppendViolation retries when a concurrent append from another tab took
// the same count; the unique (session, count) constraint keeps the log
// gap-free and monotonic.
func (a *Adapter) AppendViolation(ctx context.Context, sessionID uuid.UUID, category model.ViolationCategory) (int, error) {
	for attempt := 0; attempt < appendAttempts; attempt++ {
		n, err := a.repos.Violations.Append(ctx, a.scope, sessionID, category)
		switch {
		case err == nil:
			return n, nil
		case isUniqueViolation(err):
			continue
		case errors.Is(err, pgx.ErrNoRows):
			return 0, a.appendBlocked(ctx, sessionID)
		default:
			return 0, classify(err)
		}
	}
	return 0, fmt.Errorf("%w: violation append kept colliding", proctor.ErrTransport)
}

func (a *Adapter) appendBlocked(ctx context.Context, sessionID uuid.UUID) error {
	sess, err := a.visibleSession(ctx, sessionID)
	if err != nil {
		return err
	}
	if sess.Submitted {
		return proctor.ErrAlreadyFinalized
	}
	return proctor.ErrViolationCapReached
}

func (a *Adapter) FinalizeSession(ctx context.Context, sessionID uuid.UUID, out model.Outcome) error {
	ok, err := a.repos.Sessions.Finalize(ctx, a.scope, sessionID, out)
	if err != nil {
		return classify(err)
	}
	if ok {
		return nil
	}
	sess, err := a.visibleSession(ctx, sessionID)
	if err != nil {
		return err
	}
	if sess.Submitted {
		return proctor.ErrAlreadyFinalized
	}
	return fmt.Errorf("%w: session %s not finalized", proctor.ErrTransport, sessionID)
}

func (a *Adapter) AdvanceApplication(ctx context.Context, applicationID uuid.UUID, adv model.Advancement) (model.ApplicationStatus, error) {
	status, applied, err := a.repos.Applications.Advance(ctx, a.scope, applicationID, adv)
	if err != nil {
		return "", classify(err)
	}
	if applied {
		return status, nil
	}
	app, err := a.GetApplication(ctx, applicationID)
	if err != nil {
		return "", err
	}
	return app.Status, nil
}

// ListViolations returns a session's violation log.
func (a *Adapter) ListViolations(ctx context.Context, sessionID uuid.UUID) ([]model.ViolationRecord, error) {
	if _, err := a.visibleSession(ctx, sessionID); err != nil {
		return nil, err
	}
	records, err := a.repos.Violations.ListBySession(ctx, a.scope, sessionID)
	if err != nil {
		return nil, classify(err)
	}
	return records, nil
}

// ListExpired returns open sessions whose deadline passed before cutoff.
func (a *Adapter) ListExpired(ctx context.Context, cutoff time.Time, limit int) ([]model.TestSession, error) {
	sessions, err := a.repos.Sessions.ListOpenBefore(ctx, cutoff, limit)
	if err != nil {
		return nil, classify(err)
	}
	return sessions, nil
}

// SetTestEnabled opens or closes the application's test gate.
func (a *Adapter) SetTestEnabled(ctx context.Context, applicationID uuid.UUID, enabled bool) (*model.Application, error) {
	app, err := a.repos.Applications.SetTestEnabled(ctx, applicationID, enabled)
	if err != nil {
		return nil, classify(err)
	}
	return app, nil
}
