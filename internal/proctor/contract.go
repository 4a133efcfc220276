package proctor

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/stemsi/hiring-backend/internal/model"
)

// Store is the narrow persistence contract of the test flow. Every call is a
// network round trip and a suspension point: other events may be processed
// between a read and the write that depends on it.
type Store interface {
	GetApplication(ctx context.Context, applicationID uuid.UUID) (*model.Application, error)
	RoundConfig(ctx context.Context, jobID uuid.UUID, round int) (*model.RoundConfig, error)
	QuestionPool(ctx context.Context, jobID uuid.UUID, round int) ([]model.Question, error)
	// QuestionsByID returns the listed questions with their answer keys.
	QuestionsByID(ctx context.Context, ids []uuid.UUID) ([]model.Question, error)

	// CreateSession fails with ErrConflict if the (application, round) pair already has a session.
	CreateSession(ctx context.Context, ns model.NewSession) (*model.TestSession, error)
	// FindSession fails with ErrNotFound when the pair has no session yet.
	FindSession(ctx context.Context, applicationID uuid.UUID, round int) (*model.TestSession, error)

	UpsertAnswer(ctx context.Context, sessionID, questionID uuid.UUID, option string) error
	ListAnswers(ctx context.Context, sessionID uuid.UUID) (map[uuid.UUID]string, error)

	ViolationCount(ctx context.Context, sessionID uuid.UUID) (int, error)
	// AppendViolation records one more violation and returns the new running count.
	AppendViolation(ctx context.Context, sessionID uuid.UUID, category model.ViolationCategory) (int, error)

	// FinalizeSession returns ErrAlreadyFinalized, without touching stored
	// fields, when the session was finalized before.
	FinalizeSession(ctx context.Context, sessionID uuid.UUID, out model.Outcome) error
	// AdvanceApplication applies the post-test transition of adv.SessionID
	// at most once and returns the resulting status; repeating it is a no-op.
	AdvanceApplication(ctx context.Context, applicationID uuid.UUID, adv model.Advancement) (model.ApplicationStatus, error)
}

// Surface is the candidate's browsing context as seen from the server. The
// page reports signals; the server drives it with these commands.
type Surface interface {
	RequestFullscreen() error
	ExitFullscreen() error
	// IsFullscreen returns the last fullscreen state reported by the page.
	IsFullscreen() bool
	ConfirmBeforeUnload(enabled bool)
	Warn(w Warning)
	Notify(n Notice)
	Push(s Snapshot)
}

// Guard serializes violation accounting for a session across tabs and
// server instances.
type Guard interface {
	Acquire(ctx context.Context, sessionID uuid.UUID) (bool, error)
	// Release lets the guard lapse after the given cooldown.
	Release(ctx context.Context, sessionID uuid.UUID, after time.Duration) error
}

// Publisher fans proctoring events out to recruiter dashboards.
type Publisher interface {
	Publish(ctx context.Context, ev Event)
}

// Warning is the modal shown to the candidate after a recorded violation.
type Warning struct {
	Category model.ViolationCategory `json:"category"`
	Count    int                     `json:"count"`
	Cap      int                     `json:"cap"`
}

// NoticeKind identifies a transient, non-modal notice.
type NoticeKind string

const (
	NoticeAnswerNotSaved   NoticeKind = "answer_not_saved"
	NoticeViolationPending NoticeKind = "violation_not_recorded"
	NoticeFinalizeFailed   NoticeKind = "finalize_failed"
	NoticeAutoSubmitted    NoticeKind = "auto_submitted"
)

// Notice is a transient message for the candidate.
type Notice struct {
	Kind      NoticeKind `json:"kind"`
	Message   string     `json:"message"`
	Retryable bool       `json:"retryable"`
}

// EventType names a monitor event.
type EventType string

const (
	EventJoined    EventType = "joined"
	EventStarted   EventType = "started"
	EventViolation EventType = "violation"
	EventSubmitted EventType = "submitted"
)

// Event is published for each notable session transition.
type Event struct {
	Type          EventType               `json:"type"`
	SessionID     uuid.UUID               `json:"session_id"`
	ApplicationID uuid.UUID               `json:"application_id"`
	JobID         uuid.UUID               `json:"job_id"`
	CandidateID   int                     `json:"candidate_id"`
	Category      model.ViolationCategory `json:"category,omitempty"`
	Count         int                     `json:"count,omitempty"`
	Outcome       *model.Outcome          `json:"outcome,omitempty"`
	At            time.Time               `json:"at"`
}

type nopPublisher struct{}

func (nopPublisher) Publish(context.Context, Event) {}

type nopGuard struct{}

func (nopGuard) Acquire(context.Context, uuid.UUID) (bool, error)               { return true, nil }
func (nopGuard) Release(context.Context, uuid.UUID, time.Duration) error         { return nil }
