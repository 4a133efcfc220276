package model

import (
	"time"

	"github.com/google/uuid"
)

// ApplicationStatus enumerates hiring pipeline states of an application.
type ApplicationStatus string

const (
	ApplicationStatusApplied   ApplicationStatus = "applied"
	ApplicationStatusPassed    ApplicationStatus = "passed"
	ApplicationStatusFailed    ApplicationStatus = "failed"
	ApplicationStatusSelected  ApplicationStatus = "selected"
	ApplicationStatusRejected  ApplicationStatus = "rejected"
	ApplicationStatusWithdrawn ApplicationStatus = "withdrawn"
)

// Application is a candidate's application to a job. The test flow only
// touches the round, the testing gate and the status.
type Application struct {
	ID           uuid.UUID         `json:"id"`
	JobID        uuid.UUID         `json:"job_id"`
	CandidateID  int               `json:"candidate_id"`
	CurrentRound int               `json:"current_round"`
	TestEnabled  bool              `json:"test_enabled"`
	Status       ApplicationStatus `json:"status"`
	UpdatedAt    time.Time         `json:"updated_at"`
}

// Advancement is the input to an application transition after a finalized test.
type Advancement struct {
	SessionID  uuid.UUID
	Round      int
	Passed     bool
	FinalRound bool
}

// RoundConfig is the per-round test setup owned by the job configuration.
type RoundConfig struct {
	JobID           uuid.UUID `json:"job_id"`
	Round           int       `json:"round"`
	TotalRounds     int       `json:"total_rounds"`
	QuestionCount   int       `json:"question_count"`
	DurationMinutes int       `json:"duration_minutes"`
}

// SetTestEnabledRequest is the payload recruiters use to open or close a round's test gate.
type SetTestEnabledRequest struct {
	Enabled *bool `json:"enabled" binding:"required"`
}
