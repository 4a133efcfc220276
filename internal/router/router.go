package router

import (
	"net/http"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/stemsi/hiring-backend/internal/config"
	"github.com/stemsi/hiring-backend/internal/handler"
	"github.com/stemsi/hiring-backend/internal/middleware"
	"github.com/stemsi/hiring-backend/internal/observability"
	"github.com/stemsi/hiring-backend/internal/response"
	"github.com/stemsi/hiring-backend/internal/service"
)

// Handlers groups all handler instances for route setup.
type Handlers struct {
	Test    *handler.TestHandler
	Admin   *handler.AdminHandler
	Monitor *handler.MonitorHandler
	WS      *handler.WSHandler
}

// Limiters holds the Redis-backed rate limiters shared by all instances.
// A nil limiter disables limiting for its group.
type Limiters struct {
	Candidate *middleware.RateLimiter
	Connect   *middleware.RateLimiter
}

// SetupRouter configures all Gin route groups with appropriate middlewares.
func SetupRouter(
	authService *service.AuthService,
	handlers *Handlers,
	limiters Limiters,
	cfg *config.Config,
) *gin.Engine {
	gin.SetMode(cfg.GinMode)
	router := gin.New()
	router.Use(gin.Recovery())

	// ─── CORS ──────────────────────────────────────────────────────────
	// If AllowedOrigins is set in config, restrict to that list;
	// otherwise allow all (*) so dev works without extra config.
	corsConfig := cors.DefaultConfig()
	if len(cfg.AllowedOrigins) > 0 {
		corsConfig.AllowOrigins = cfg.AllowedOrigins
	} else {
		corsConfig.AllowAllOrigins = true
	}
	corsConfig.AllowMethods = []string{"GET", "PUT", "OPTIONS"}
	corsConfig.AllowHeaders = []string{"Origin", "Content-Type", "Authorization", "X-Request-ID"}
	corsConfig.ExposeHeaders = []string{"X-Request-ID"}
	corsConfig.MaxAge = 12 * time.Hour
	router.Use(cors.New(corsConfig))

	router.Use(response.RequestIDMiddleware())
	router.Use(observability.Middleware())
	router.Use(middleware.Brotli())

	router.GET("/health", func(c *gin.Context) {
		response.Success(c, http.StatusOK, gin.H{"status": "ok"})
	})
	router.GET("/metrics", observability.MetricsHandler())

	// ─── Candidate Group ───────────────────────────────────────────────
	candidateAPI := router.Group("/api/v1/candidate")
	candidateAPI.Use(middleware.RequireCandidateJWT(authService), middleware.NoStore())
	if limiters.Candidate != nil {
		candidateAPI.Use(limiters.Candidate.Middleware())
	}
	{
		candidateAPI.GET("/applications/:application_id/test", handlers.Test.GetState)
		candidateAPI.GET("/applications/:application_id/test/paper", handlers.Test.GetPaper)
	}

	// ─── Live Test Stream ──────────────────────────────────────────────
	// Browsers cannot set headers on a WebSocket handshake; the token
	// travels as ?token=.
	wsGroup := router.Group("/ws/v1/candidate")
	wsGroup.Use(middleware.RequireCandidateWSAuth(authService))
	if limiters.Connect != nil {
		wsGroup.Use(limiters.Connect.Middleware())
	}
	{
		wsGroup.GET("/applications/:application_id/test", handlers.WS.TestStream)
	}

	// ─── Recruiter Group ───────────────────────────────────────────────
	adminAPI := router.Group("/api/v1/admin")
	adminAPI.Use(middleware.RequireAdminJWT(authService))
	{
		adminAPI.GET("/jobs/:job_id/monitor",
			middleware.RequirePermission(service.PermMonitorRead),
			handlers.Monitor.MonitorJobSSE,
		)
		adminAPI.GET("/sessions/:session_id/violations",
			middleware.RequireAnyPermission(service.PermSessionsRead, service.PermMonitorRead),
			handlers.Admin.ListViolations,
		)
		adminAPI.PUT("/applications/:application_id/test",
			middleware.RequirePermission(service.PermTestsWrite),
			handlers.Admin.SetTestEnabled,
		)
	}

	return router
}
