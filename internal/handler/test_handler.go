package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/stemsi/hiring-backend/internal/middleware"
	"github.com/stemsi/hiring-backend/internal/response"
	"github.com/stemsi/hiring-backend/internal/service"
)

// TestHandler serves the candidate's read-only test endpoints.
type TestHandler struct {
	testService *service.TestService
	log         zerolog.Logger
}

// NewTestHandler creates a new TestHandler.
func NewTestHandler(testService *service.TestService, log zerolog.Logger) *TestHandler {
	return &TestHandler{
		testService: testService,
		log:         log.With().Str("component", "test_handler").Logger(),
	}
}

// GetState godoc
// GET /api/v1/candidate/applications/:application_id/test
func (h *TestHandler) GetState(c *gin.Context) {
	claims := middleware.GetClaims(c)
	applicationID, err := uuid.Parse(c.Param("application_id"))
	if err != nil {
		response.Fail(c, http.StatusBadRequest, response.ErrInvalidID)
		return
	}

	overview, err := h.testService.State(c.Request.Context(), claims.UserID, applicationID)
	if err != nil {
		h.fail(c, err)
		return
	}
	response.Success(c, http.StatusOK, overview)
}

// GetPaper godoc
// GET /api/v1/candidate/applications/:application_id/test/paper
func (h *TestHandler) GetPaper(c *gin.Context) {
	claims := middleware.GetClaims(c)
	applicationID, err := uuid.Parse(c.Param("application_id"))
	if err != nil {
		response.Fail(c, http.StatusBadRequest, response.ErrInvalidID)
		return
	}

	paper, err := h.testService.Paper(c.Request.Context(), claims.UserID, applicationID)
	if err != nil {
		h.fail(c, err)
		return
	}
	response.Success(c, http.StatusOK, paper)
}

func (h *TestHandler) fail(c *gin.Context, err error) {
	status, code := response.FromError(err)
	if status >= http.StatusInternalServerError {
		h.log.Error().Err(err).Str("path", c.FullPath()).Msg("Request failed")
	}
	response.Fail(c, status, code)
}
