package response

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/stemsi/hiring-backend/internal/proctor"
)

// ErrCode is a typed error code enum for consistent API error identification.
type ErrCode string

const (
	// ─── Authentication ────────────────────────────────────────────────
	ErrTokenRequired ErrCode = "TOKEN_REQUIRED"
	ErrTokenInvalid  ErrCode = "TOKEN_INVALID"

	// ─── Authorization ─────────────────────────────────────────────────
	ErrForbidden           ErrCode = "FORBIDDEN"
	ErrPermissionDenied    ErrCode = "PERMISSION_DENIED"
	ErrCandidateAccessOnly ErrCode = "CANDIDATE_ACCESS_ONLY"
	ErrAdminAccessOnly     ErrCode = "ADMIN_ACCESS_ONLY"

	// ─── Validation ────────────────────────────────────────────────────
	ErrValidation     ErrCode = "VALIDATION_ERROR"
	ErrInvalidID      ErrCode = "INVALID_ID"
	ErrInvalidPayload ErrCode = "INVALID_PAYLOAD"

	// ─── Resources ─────────────────────────────────────────────────────
	ErrNotFound ErrCode = "NOT_FOUND"
	ErrConflict ErrCode = "CONFLICT"

	// ─── Test-specific ─────────────────────────────────────────────────
	ErrTestNotEnabled      ErrCode = "TEST_NOT_ENABLED"
	ErrNoQuestions         ErrCode = "NO_QUESTIONS"
	ErrInvalidQuestion     ErrCode = "INVALID_QUESTION"
	ErrAlreadySubmitted    ErrCode = "ALREADY_SUBMITTED"
	ErrViolationCapReached ErrCode = "VIOLATION_CAP_REACHED"
	ErrInvalidPhase        ErrCode = "INVALID_PHASE"
	ErrInvalidAnswer       ErrCode = "INVALID_ANSWER"
	ErrFullscreenDenied    ErrCode = "FULLSCREEN_DENIED"

	// ─── Rate Limiting ─────────────────────────────────────────────────
	ErrRateLimitExceeded ErrCode = "RATE_LIMIT_EXCEEDED"

	// ─── Server ────────────────────────────────────────────────────────
	ErrUnavailable ErrCode = "SERVICE_UNAVAILABLE"
	ErrInternal    ErrCode = "INTERNAL_ERROR"
)

// GetMessage returns a human-readable message for a given error code.
func GetMessage(code ErrCode) string {
	switch code {
	case ErrTokenRequired:
		return "Authentication token is required."
	case ErrTokenInvalid:
		return "Authentication token is invalid or expired."

	case ErrForbidden:
		return "You are not allowed to access this resource."
	case ErrPermissionDenied:
		return "Permission denied."
	case ErrCandidateAccessOnly:
		return "This resource is limited to candidates."
	case ErrAdminAccessOnly:
		return "This resource is limited to recruiters."

	case ErrValidation:
		return "Validation failed."
	case ErrInvalidID:
		return "Invalid ID format."
	case ErrInvalidPayload:
		return "Invalid request payload."

	case ErrNotFound:
		return "Resource not found."
	case ErrConflict:
		return "The resource was changed concurrently. Please retry."

	case ErrTestNotEnabled:
		return "The test is not enabled for this application."
	case ErrNoQuestions:
		return "No questions are configured for this round."
	case ErrInvalidQuestion:
		return "The question set for this round is malformed."
	case ErrAlreadySubmitted:
		return "The test has already been submitted."
	case ErrViolationCapReached:
		return "The violation limit has been reached."
	case ErrInvalidPhase:
		return "This action is not available right now."
	case ErrInvalidAnswer:
		return "The answer does not match any option of the question."
	case ErrFullscreenDenied:
		return "Fullscreen is required to start the test."

	case ErrRateLimitExceeded:
		return "Too many requests. Please try again later."

	case ErrUnavailable:
		return "The service is temporarily unavailable. Please retry."
	case ErrInternal:
		return "An internal error occurred."
	default:
		return "An unknown error occurred."
	}
}

// FromError maps a domain error to an HTTP status and error code.
func FromError(err error) (int, ErrCode) {
	switch {
	case errors.Is(err, proctor.ErrNotFound):
		return http.StatusNotFound, ErrNotFound
	case errors.Is(err, proctor.ErrPermissionDenied):
		return http.StatusForbidden, ErrPermissionDenied
	case errors.Is(err, proctor.ErrConflict):
		return http.StatusConflict, ErrConflict
	case errors.Is(err, proctor.ErrTestNotEnabled):
		return http.StatusForbidden, ErrTestNotEnabled
	case errors.Is(err, proctor.ErrNoQuestions):
		return http.StatusUnprocessableEntity, ErrNoQuestions
	case errors.Is(err, proctor.ErrInvalidQuestion):
		return http.StatusUnprocessableEntity, ErrInvalidQuestion
	case errors.Is(err, proctor.ErrAlreadyFinalized):
		return http.StatusConflict, ErrAlreadySubmitted
	case errors.Is(err, proctor.ErrViolationCapReached):
		return http.StatusConflict, ErrViolationCapReached
	case errors.Is(err, proctor.ErrInvalidPhase):
		return http.StatusConflict, ErrInvalidPhase
	case errors.Is(err, proctor.ErrUnknownQuestion),
		errors.Is(err, proctor.ErrInvalidOption),
		errors.Is(err, proctor.ErrQuestionIndex):
		return http.StatusBadRequest, ErrInvalidAnswer
	case errors.Is(err, proctor.ErrFullscreenDenied):
		return http.StatusConflict, ErrFullscreenDenied
	case errors.Is(err, proctor.ErrTransport):
		return http.StatusServiceUnavailable, ErrUnavailable
	default:
		return http.StatusInternalServerError, ErrInternal
	}
}

// FailError sends the response mapped from a domain error.
func FailError(c *gin.Context, err error) {
	status, code := FromError(err)
	Fail(c, status, code)
}
