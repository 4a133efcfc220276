package model

import (
	"time"

	"github.com/google/uuid"
)

// Answer is the selected option for one (session, question) pair.
// IsCorrect stays nil until the session is finalized.
type Answer struct {
	SessionID      uuid.UUID `json:"session_id"`
	QuestionID     uuid.UUID `json:"question_id"`
	SelectedOption string    `json:"selected_option"`
	IsCorrect      *bool     `json:"is_correct,omitempty"`
	UpdatedAt      time.Time `json:"updated_at"`
}
