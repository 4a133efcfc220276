package model

import (
	"time"

	"github.com/google/uuid"
)

// SessionPolicy is the round configuration resolved once at creation and
// stored with the session, so later edits to the job do not reach an attempt
// already in progress.
type SessionPolicy struct {
	DisplayCount int `json:"display_count"`
	TotalRounds  int `json:"total_rounds"`
	ViolationCap int `json:"violation_cap"`
}

// TestSession is one candidate's timed attempt at one round's question set.
type TestSession struct {
	ID              uuid.UUID     `json:"id"`
	ApplicationID   uuid.UUID     `json:"application_id"`
	CandidateID     int           `json:"candidate_id"`
	JobID           uuid.UUID     `json:"job_id"`
	Round           int           `json:"round"`
	CreatedAt       time.Time     `json:"created_at"`
	DurationMinutes int           `json:"duration_minutes"`
	QuestionIDs     []uuid.UUID   `json:"question_ids"`
	Policy          SessionPolicy `json:"policy"`
	Submitted       bool          `json:"submitted"`
	CompletedAt     *time.Time    `json:"completed_at,omitempty"`
	TotalPoints     *int          `json:"total_points,omitempty"`
	EarnedPoints    *int          `json:"earned_points,omitempty"`
	Passed          *bool         `json:"passed,omitempty"`
	AutoSubmitted   *bool         `json:"auto_submitted,omitempty"`
	// Advanced is set once the outcome has been applied to the application.
	Advanced bool `json:"advanced"`
}

// Deadline is creation time plus the configured duration.
func (s *TestSession) Deadline() time.Time {
	return s.CreatedAt.Add(time.Duration(s.DurationMinutes) * time.Minute)
}

// Remaining returns max(0, deadline - now).
func (s *TestSession) Remaining(now time.Time) time.Duration {
	left := s.Deadline().Sub(now)
	if left < 0 {
		return 0
	}
	return left
}

// IsFinalRound reports whether passing this session completes the pipeline.
func (s *TestSession) IsFinalRound() bool {
	return s.Round >= s.Policy.TotalRounds
}

// Outcome returns the persisted result, or nil while the session is open.
func (s *TestSession) Outcome() *Outcome {
	if !s.Submitted || s.TotalPoints == nil || s.EarnedPoints == nil || s.Passed == nil {
		return nil
	}
	out := &Outcome{
		TotalPoints:  *s.TotalPoints,
		EarnedPoints: *s.EarnedPoints,
		Passed:       *s.Passed,
	}
	if s.AutoSubmitted != nil {
		out.AutoSubmitted = *s.AutoSubmitted
	}
	return out
}

// NewSession carries everything persisted by a session insert.
type NewSession struct {
	ApplicationID   uuid.UUID
	CandidateID     int
	JobID           uuid.UUID
	Round           int
	DurationMinutes int
	QuestionIDs     []uuid.UUID
	Policy          SessionPolicy
}

// Outcome is the scored result written once at finalization.
type Outcome struct {
	TotalPoints   int                `json:"total_points"`
	EarnedPoints  int                `json:"earned_points"`
	Threshold     int                `json:"threshold"`
	Passed        bool               `json:"passed"`
	AutoSubmitted bool               `json:"auto_submitted"`
	Correct       map[uuid.UUID]bool `json:"-"`
}
