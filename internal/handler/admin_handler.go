package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/stemsi/hiring-backend/internal/model"
	"github.com/stemsi/hiring-backend/internal/response"
	"github.com/stemsi/hiring-backend/internal/service"
	"github.com/stemsi/hiring-backend/internal/validator"
)

// AdminHandler serves recruiter views of sessions and the test gate.
type AdminHandler struct {
	testService *service.TestService
	log         zerolog.Logger
}

// NewAdminHandler creates a new AdminHandler.
func NewAdminHandler(testService *service.TestService, log zerolog.Logger) *AdminHandler {
	return &AdminHandler{
		testService: testService,
		log:         log.With().Str("component", "admin_handler").Logger(),
	}
}

type sessionViolationsResponse struct {
	Session    *service.SessionView    `json:"session"`
	Violations []model.ViolationRecord `json:"violations"`
}

// ListViolations godoc
// GET /api/v1/admin/sessions/:session_id/violations
func (h *AdminHandler) ListViolations(c *gin.Context) {
	sessionID, err := uuid.Parse(c.Param("session_id"))
	if err != nil {
		response.Fail(c, http.StatusBadRequest, response.ErrInvalidID)
		return
	}

	sess, records, err := h.testService.SessionViolations(c.Request.Context(), sessionID)
	if err != nil {
		h.fail(c, err)
		return
	}
	if records == nil {
		records = []model.ViolationRecord{}
	}
	response.Success(c, http.StatusOK, sessionViolationsResponse{Session: sess, Violations: records})
}

// SetTestEnabled godoc
// PUT /api/v1/admin/applications/:application_id/test
func (h *AdminHandler) SetTestEnabled(c *gin.Context) {
	applicationID, err := uuid.Parse(c.Param("application_id"))
	if err != nil {
		response.Fail(c, http.StatusBadRequest, response.ErrInvalidID)
		return
	}

	var req model.SetTestEnabledRequest
	if fields := validator.Bind(c, &req); fields != nil {
		response.FailWithFields(c, http.StatusBadRequest, response.ErrValidation, fields)
		return
	}

	app, err := h.testService.SetTestEnabled(c.Request.Context(), applicationID, *req.Enabled)
	if err != nil {
		h.fail(c, err)
		return
	}
	response.Success(c, http.StatusOK, app)
}

func (h *AdminHandler) fail(c *gin.Context, err error) {
	status, code := response.FromError(err)
	if status >= http.StatusInternalServerError {
		h.log.Error().Err(err).Str("path", c.FullPath()).Msg("Request failed")
	}
	response.Fail(c, status, code)
}
