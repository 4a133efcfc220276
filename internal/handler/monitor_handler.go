package handler

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/stemsi/hiring-backend/internal/response"
	"github.com/stemsi/hiring-backend/internal/service"
)

const (
	refreshInterval   = 15 * time.Second
	keepAliveInterval = 30 * time.Second
	refreshTimeout    = 5 * time.Second // prevent slow queries from blocking the SSE loop
)

type MonitorHandler struct {
	monitorService *service.MonitorService
	log            zerolog.Logger
}

func NewMonitorHandler(monitorService *service.MonitorService, log zerolog.Logger) *MonitorHandler {
	return &MonitorHandler{
		monitorService: monitorService,
		log:            log.With().Str("component", "monitor_handler").Logger(),
	}
}

// MonitorJobSSE godoc
// GET /api/v1/admin/jobs/:job_id/monitor
// Streams a snapshot, then live session events and periodic count refreshes.
func (h *MonitorHandler) MonitorJobSSE(c *gin.Context) {
	jobID, err := uuid.Parse(c.Param("job_id"))
	if err != nil {
		response.Fail(c, http.StatusBadRequest, response.ErrInvalidID)
		return
	}

	reqCtx := c.Request.Context()
	log := h.log.With().
		Str("request_id", response.RequestID(reqCtx)).
		Str("job_id", jobID.String()).
		Logger()

	snapCtx, cancel := context.WithTimeout(reqCtx, refreshTimeout)
	snapshot, err := h.monitorService.GetJobProgress(snapCtx, jobID)
	cancel()
	if err != nil {
		log.Error().Err(err).Msg("Monitor snapshot failed")
		response.Fail(c, http.StatusServiceUnavailable, response.ErrUnavailable)
		return
	}

	c.Writer.Header().Set("Content-Type", "text/event-stream")
	c.Writer.Header().Set("Cache-Control", "no-cache")
	c.Writer.Header().Set("Connection", "keep-alive")
	c.Writer.Header().Set("X-Accel-Buffering", "no")

	c.SSEvent("message", gin.H{"type": "snapshot", "data": snapshot})
	c.Writer.Flush()

	pubsub := h.monitorService.Subscribe(reqCtx, jobID)
	defer pubsub.Close()
	ch := pubsub.Channel()

	keepAliveTicker := time.NewTicker(keepAliveInterval)
	defer keepAliveTicker.Stop()

	refreshTicker := time.NewTicker(refreshInterval)
	defer refreshTicker.Stop()

	// Skip refresh queries until someone is taking the test.
	active := snapshot.TotalInProgress > 0

	log.Info().Msg("Recruiter attached to live monitor SSE")

	for {
		select {
		case <-reqCtx.Done():
			log.Info().Msg("Recruiter detached from live monitor SSE")
			return

		case msg, ok := <-ch:
			if !ok {
				return
			}
			// Forward the published JSON as is.
			c.Writer.Write([]byte("event: session\ndata: "))
			c.Writer.Write([]byte(msg.Payload))
			c.Writer.Write([]byte("\n\n"))
			c.Writer.Flush()
			active = true

		case <-refreshTicker.C:
			if !active {
				continue
			}
			h.sendRefresh(c, reqCtx, jobID)

		case <-keepAliveTicker.C:
			c.SSEvent("ping", gin.H{"type": "ping"})
			c.Writer.Flush()
		}
	}
}

// sendRefresh sends the current answered and violation counts per session.
func (h *MonitorHandler) sendRefresh(c *gin.Context, parentCtx context.Context, jobID uuid.UUID) {
	ctx, cancel := context.WithTimeout(parentCtx, refreshTimeout)
	defer cancel()

	counts, err := h.monitorService.GetProgressCounts(ctx, jobID)
	if err != nil {
		h.log.Warn().Err(err).Msg("Failed to fetch session progress for refresh")
		return
	}

	type row struct {
		SessionID     uuid.UUID `json:"session_id"`
		AnsweredCount int64     `json:"answered_count"`
		Violations    int64     `json:"violations"`
	}
	rows := make([]row, 0, len(counts.AnsweredCounts)+len(counts.ViolationCounts))
	for sid, answered := range counts.AnsweredCounts {
		rows = append(rows, row{SessionID: sid, AnsweredCount: answered, Violations: counts.ViolationCounts[sid]})
		delete(counts.ViolationCounts, sid)
	}
	// Sessions with violations but no answers yet.
	for sid, n := range counts.ViolationCounts {
		rows = append(rows, row{SessionID: sid, Violations: n})
	}

	c.SSEvent("message", gin.H{
		"type":             "refresh",
		"total_violations": counts.TotalViolations,
		"sessions":         rows,
	})
	c.Writer.Flush()
}
