package handler

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/stemsi/hiring-backend/internal/middleware"
	"github.com/stemsi/hiring-backend/internal/proctor"
	"github.com/stemsi/hiring-backend/internal/response"
	"github.com/stemsi/hiring-backend/internal/service"
	"github.com/stemsi/hiring-backend/internal/validator"
	ws "github.com/stemsi/hiring-backend/internal/websocket"
	"github.com/stemsi/hiring-backend/internal/worker"
)

// buildUpgrader creates a WebSocket upgrader with origin validation.
// allowedOrigins comes from config.Config.AllowedOrigins.
// An empty slice permits all origins (development mode).
func buildUpgrader(allowedOrigins []string) websocket.Upgrader {
	return websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 4096,
		CheckOrigin: func(r *http.Request) bool {
			if len(allowedOrigins) == 0 {
				return true
			}
			origin := r.Header.Get("Origin")
			for _, allowed := range allowedOrigins {
				if strings.EqualFold(allowed, origin) {
					return true
				}
			}
			return false
		},
	}
}

// WSHandler serves the live test stream of a candidate.
type WSHandler struct {
	rdb         *redis.Client
	testService *service.TestService
	log         zerolog.Logger
	upgrader    websocket.Upgrader
}

// NewWSHandler creates a new WSHandler.
func NewWSHandler(rdb *redis.Client, testService *service.TestService, log zerolog.Logger, allowedOrigins []string) *WSHandler {
	return &WSHandler{
		rdb:         rdb,
		testService: testService,
		log:         log.With().Str("component", "ws_handler").Logger(),
		upgrader:    buildUpgrader(allowedOrigins),
	}
}

// TestStream godoc
// WS /ws/v1/candidate/applications/:application_id/test
// Creates or resumes the current round's session and drives it from the
// page's actions and signals.
func (h *WSHandler) TestStream(c *gin.Context) {
	claims := middleware.GetClaims(c)
	if claims == nil {
		response.Fail(c, http.StatusUnauthorized, response.ErrTokenRequired)
		return
	}

	applicationID, err := uuid.Parse(c.Param("application_id"))
	if err != nil {
		response.Fail(c, http.StatusBadRequest, response.ErrInvalidID)
		return
	}

	conn, err := h.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		h.log.Error().Err(err).Msg("WebSocket upgrade failed")
		return
	}
	ws.KeepAlive(conn)

	wsLog := h.log.With().
		Str("request_id", response.RequestID(c.Request.Context())).
		Int("candidate_id", claims.UserID).
		Str("application_id", applicationID.String()).
		Logger()

	surface := ws.NewSurface(conn, wsLog)
	pumpDone := make(chan struct{})
	go func() {
		defer close(pumpDone)
		surface.Run()
		conn.Close()
	}()
	defer func() {
		surface.Close()
		<-pumpDone
	}()

	ctx := c.Request.Context()
	m, err := h.testService.Open(ctx, claims.UserID, applicationID, surface)
	if err != nil {
		wsLog.Warn().Err(err).Msg("Test not opened")
		emitError(surface, err)
		return
	}
	defer h.testService.Release(m)

	sess := m.Session()
	wsLog = wsLog.With().Str("session_id", sess.ID.String()).Logger()
	wsLog.Info().Str("phase", string(m.Phase())).Msg("Candidate connected")

	for {
		var msg ws.RequestPayload
		err := ws.ReadJSON(conn, &msg)
		if errors.Is(err, ws.ErrMalformed) {
			_ = surface.Emit(ws.EventError, ws.ErrorPayload{
				Code:    string(response.ErrInvalidPayload),
				Message: response.GetMessage(response.ErrInvalidPayload),
			})
			continue
		}
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				wsLog.Warn().Err(err).Msg("Unexpected close")
			} else {
				wsLog.Debug().Msg("Connection closed")
			}
			break
		}

		if fields := validator.Struct(msg); fields != nil {
			_ = surface.Emit(ws.EventError, ws.ErrorPayload{
				Code:    string(response.ErrValidation),
				Message: response.GetMessage(response.ErrValidation),
				Fields:  fields,
			})
			continue
		}

		h.dispatch(ctx, wsLog, m, surface, sess.ID, &msg)
	}
}

func (h *WSHandler) dispatch(ctx context.Context, log zerolog.Logger, m *proctor.Machine, surface *ws.Surface, sessionID uuid.UUID, msg *ws.RequestPayload) {
	var err error
	switch msg.Action {
	case ws.ActionStart:
		err = m.Start(ctx)
	case ws.ActionAnswer:
		err = m.SelectAnswer(ctx, uuid.MustParse(msg.QuestionID), msg.Option)
	case ws.ActionNavigate:
		err = m.Navigate(*msg.Index)
	case ws.ActionRequestSubmit:
		var sum proctor.SubmitSummary
		if sum, err = m.RequestSubmit(); err == nil {
			_ = surface.Emit(ws.EventSummary, sum)
		}
	case ws.ActionConfirmSubmit:
		err = m.ConfirmSubmit(ctx)
	case ws.ActionRetrySubmit:
		err = m.RetrySubmit(ctx)
	case ws.ActionSignal:
		h.handleSignal(ctx, log, m, surface, sessionID, *msg.Signal)
	case ws.ActionPing:
		_ = surface.Emit(ws.EventPong, nil)
	}

	if err != nil {
		log.Debug().Err(err).Str("action", string(msg.Action)).Msg("Action rejected")
		emitError(surface, err)
	}
}

func (h *WSHandler) handleSignal(ctx context.Context, log zerolog.Logger, m *proctor.Machine, surface *ws.Surface, sessionID uuid.UUID, sig proctor.Signal) {
	if sig.At.IsZero() {
		sig.At = time.Now()
	}
	surface.Observe(sig)

	verdict := m.HandleSignal(ctx, sig)
	if verdict.Violation || verdict.Suppress {
		_ = surface.Emit(ws.EventVerdict, ws.VerdictPayload{Kind: sig.Kind, Verdict: verdict})
	}

	if sig.Kind == proctor.SignalHeartbeat {
		return
	}
	if err := worker.EnqueueSignal(ctx, h.rdb, sessionID, sig); err != nil {
		log.Warn().Err(err).Str("kind", string(sig.Kind)).Msg("Signal not queued for audit")
	}
}

func emitError(surface *ws.Surface, err error) {
	_, code := response.FromError(err)
	_ = surface.Emit(ws.EventError, ws.ErrorPayload{
		Code:    string(code),
		Message: response.GetMessage(code),
	})
}
