package model

import (
	"github.com/google/uuid"
)

// MinOptions and MaxOptions bound the labeled choices of a single-choice question.
const (
	MinOptions = 2
	MaxOptions = 4
)

// Option is one labeled choice of a question ("A", "B", ...).
type Option struct {
	Label string `json:"label"`
	Text  string `json:"text"`
}

// Question is a single-choice aptitude question configured for a job round.
type Question struct {
	ID            uuid.UUID `json:"id"`
	JobID         uuid.UUID `json:"job_id"`
	Round         int       `json:"round"`
	Prompt        string    `json:"prompt"`
	Options       []Option  `json:"options"`
	CorrectOption string    `json:"correct_option"`
	Points        *int      `json:"points,omitempty"`
}

// PointValue returns the question's weight; absent or non-positive values count as 1.
func (q Question) PointValue() int {
	if q.Points == nil || *q.Points <= 0 {
		return 1
	}
	return *q.Points
}

// HasOption reports whether label names one of the question's options.
func (q Question) HasOption(label string) bool {
	for _, o := range q.Options {
		if o.Label == label {
			return true
		}
	}
	return false
}

// CandidateQuestion is a question without the correct answer, sent to candidates.
type CandidateQuestion struct {
	ID      uuid.UUID `json:"id"`
	Prompt  string    `json:"prompt"`
	Options []Option  `json:"options"`
	Points  int       `json:"points"`
	Index   int       `json:"index"`
}

// Paper is the cached candidate-facing question list of one session.
type Paper struct {
	SessionID       uuid.UUID           `json:"session_id"`
	Round           int                 `json:"round"`
	DurationMinutes int                 `json:"duration_minutes"`
	Questions       []CandidateQuestion `json:"questions"`
}
