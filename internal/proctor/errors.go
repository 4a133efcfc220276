package proctor

import (
	"errors"
)

// Store and flow errors. Store implementations wrap driver failures with
// ErrTransport so callers can treat every network problem as retryable.
var (
	ErrConflict            = errors.New("test session already exists for this round")
	ErrNotFound            = errors.New("not found")
	ErrAlreadyFinalized    = errors.New("test session already finalized")
	ErrPermissionDenied    = errors.New("permission denied")
	ErrTransport           = errors.New("store unavailable")
	ErrViolationCapReached = errors.New("violation cap reached")

	ErrTestNotEnabled   = errors.New("testing is not enabled for this round")
	ErrNoQuestions      = errors.New("question pool is empty")
	ErrInvalidQuestion  = errors.New("question needs between 2 and 4 options and a valid key")
	ErrInvalidPhase     = errors.New("action not allowed in the current phase")
	ErrUnknownQuestion  = errors.New("question is not part of this session")
	ErrInvalidOption    = errors.New("option does not exist on this question")
	ErrQuestionIndex    = errors.New("question index out of range")
	ErrFullscreenDenied = errors.New("fullscreen request failed")
)

// IsRetryable reports whether err is a transport failure worth retrying.
func IsRetryable(err error) bool {
	return errors.Is(err, ErrTransport)
}
