package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"github.com/stemsi/hiring-backend/internal/config"
	"github.com/stemsi/hiring-backend/internal/database"
	"github.com/stemsi/hiring-backend/internal/handler"
	"github.com/stemsi/hiring-backend/internal/logger"
	"github.com/stemsi/hiring-backend/internal/middleware"
	"github.com/stemsi/hiring-backend/internal/observability"
	"github.com/stemsi/hiring-backend/internal/proctor"
	"github.com/stemsi/hiring-backend/internal/repository"
	"github.com/stemsi/hiring-backend/internal/router"
	"github.com/stemsi/hiring-backend/internal/service"
	"github.com/stemsi/hiring-backend/internal/store"
	"github.com/stemsi/hiring-backend/internal/validator"
	"github.com/stemsi/hiring-backend/internal/worker"
)

const (
	paperCacheTTL   = 6 * time.Hour
	guardHold       = 5 * time.Second
	candidateLimit  = 120 // requests per minute
	connectLimit    = 20  // WebSocket handshakes per minute
	shutdownTimeout = 10 * time.Second
)

func main() {
	// ─── Load Configuration ────────────────────────────────────────────
	cfg := config.Load()

	// ─── Initialize Logger ─────────────────────────────────────────────
	log := logger.Setup(cfg.LogLevel, cfg.LogFormat)
	log.Info().
		Str("port", cfg.ServerPort).
		Str("mode", cfg.GinMode).
		Str("log_level", cfg.LogLevel).
		Int("violation_cap", cfg.Proctor.ViolationCap).
		Msg("Starting hiring backend")

	validator.Setup()
	observability.RegisterMetrics()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// ─── Connect to PostgreSQL ─────────────────────────────────────────
	pool, err := database.NewPostgresPool(ctx, cfg, log)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to connect to PostgreSQL")
	}
	defer pool.Close()

	// ─── Connect to Redis ──────────────────────────────────────────────
	rdb, err := database.NewRedisClient(ctx, cfg, log)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to connect to Redis")
	}
	defer rdb.Close()

	// ─── Initialize Repositories ───────────────────────────────────────
	sessionRepo := repository.NewTestSessionRepository(pool)
	adapter := store.NewAdapter(store.Repositories{
		Sessions:     sessionRepo,
		Answers:      repository.NewAnswerRepository(pool),
		Violations:   repository.NewViolationRepository(pool),
		Questions:    repository.NewQuestionRepository(pool),
		Applications: repository.NewApplicationRepository(pool),
		Rounds:       repository.NewRoundRepository(pool),
	})
	signalRepo := repository.NewSignalRepository(pool)
	monitorRepo := repository.NewMonitorRepository(pool)

	// ─── Initialize Services ──────────────────────────────────────────
	authService := service.NewAuthService(cfg)
	monitorService := service.NewMonitorService(rdb, monitorRepo, sessionRepo, log)
	testService := service.NewTestService(
		adapter,
		store.NewPaperCache(rdb, paperCacheTTL),
		store.NewRedisGuard(rdb, guardHold),
		monitorService,
		policyFrom(cfg.Proctor),
		log,
	)

	// ─── Initialize Handlers ──────────────────────────────────────────
	handlers := &router.Handlers{
		Test:    handler.NewTestHandler(testService, log),
		Admin:   handler.NewAdminHandler(testService, log),
		Monitor: handler.NewMonitorHandler(monitorService, log),
		WS:      handler.NewWSHandler(rdb, testService, log, cfg.AllowedOrigins),
	}
	limiters := router.Limiters{
		Candidate: middleware.NewRateLimiter(rdb, "candidate", candidateLimit, time.Minute, log),
		Connect:   middleware.NewRateLimiter(rdb, "connect", connectLimit, time.Minute, log),
	}

	// ─── Start Background Workers ─────────────────────────────────────
	workerCtx, workerCancel := context.WithCancel(context.Background())
	var workers sync.WaitGroup

	signalWorker := worker.NewSignalWorker(signalRepo, rdb, log)
	expiryWorker := worker.NewExpiryWorker(
		adapter.System(),
		proctor.NewFinalizer(adapter.System(), proctor.SystemClock(), log),
		monitorService,
		testService.Live,
		cfg.Proctor.ExpirySweep,
		cfg.Proctor.ExpirySlack,
		log,
	)

	workers.Add(2)
	go func() {
		defer workers.Done()
		signalWorker.Start(workerCtx)
	}()
	go func() {
		defer workers.Done()
		expiryWorker.Start(workerCtx)
	}()

	// ─── Setup Router ──────────────────────────────────────────────────
	r := router.SetupRouter(authService, handlers, limiters, cfg)

	srv := &http.Server{
		Addr:              ":" + cfg.ServerPort,
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		log.Info().Str("addr", srv.Addr).Msg("Server listening")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal().Err(err).Msg("Server error")
		}
	}()

	// ─── Graceful Shutdown ─────────────────────────────────────────────
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	sig := <-quit

	log.Info().Str("signal", sig.String()).Msg("Shutting down gracefully...")

	// 1. Stop accepting new requests. Hijacked WebSockets are not tracked by
	// Shutdown; their sessions resume on reconnect or are swept on expiry.
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer shutdownCancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("HTTP server shutdown error")
	}

	// 2. Stop background workers; the signal worker flushes its buffer.
	workerCancel()
	workers.Wait()

	log.Info().Msg("Shutdown complete")
}

func policyFrom(pc config.ProctorConfig) proctor.Policy {
	p := proctor.DefaultPolicy()
	p.ViolationCap = pc.ViolationCap
	p.GracePeriod = pc.GracePeriod
	p.PollInterval = pc.PollInterval
	p.BlurDebounce = pc.BlurDebounce
	p.ViolationCooldown = pc.ViolationCooldown
	p.FinalizeRetryDelay = pc.FinalizeRetryDelay
	return p
}

// init sets zerolog global defaults before main runs.
func init() {
	zerolog.TimeFieldFormat = time.RFC3339
}
