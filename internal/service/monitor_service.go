package service

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/stemsi/hiring-backend/internal/config"
	"github.com/stemsi/hiring-backend/internal/model"
	"github.com/stemsi/hiring-backend/internal/proctor"
	"github.com/stemsi/hiring-backend/internal/repository"
)

// MonitorService orchestrates the live proctor monitor: it publishes session
// events to Redis and assembles progress snapshots for recruiters.
type MonitorService struct {
	rdb         *redis.Client
	monitorRepo *repository.MonitorRepository
	sessionRepo *repository.TestSessionRepository
	log         zerolog.Logger
}

// NewMonitorService creates a new MonitorService.
func NewMonitorService(
	rdb *redis.Client,
	monitorRepo *repository.MonitorRepository,
	sessionRepo *repository.TestSessionRepository,
	log zerolog.Logger,
) *MonitorService {
	return &MonitorService{
		rdb:         rdb,
		monitorRepo: monitorRepo,
		sessionRepo: sessionRepo,
		log:         log.With().Str("component", "monitor_service").Logger(),
	}
}

var _ proctor.Publisher = (*MonitorService)(nil)

// Publish fans an event out on the job's monitor channel. Delivery is best
// effort; a failure is only logged.
func (s *MonitorService) Publish(ctx context.Context, ev proctor.Event) {
	payload, err := json.Marshal(ev)
	if err != nil {
		s.log.Error().Err(err).Msg("Failed to marshal monitor event")
		return
	}
	channel := config.CacheKey.JobMonitorChannel(ev.JobID.String())
	if err := s.rdb.Publish(ctx, channel, payload).Err(); err != nil {
		s.log.Warn().Err(err).
			Str("session_id", ev.SessionID.String()).
			Str("type", string(ev.Type)).
			Msg("Failed to publish monitor event")
	}
}

// Subscribe attaches to a job's monitor channel. The caller closes it.
func (s *MonitorService) Subscribe(ctx context.Context, jobID uuid.UUID) *redis.PubSub {
	return s.rdb.Subscribe(ctx, config.CacheKey.JobMonitorChannel(jobID.String()))
}

// SessionProgress is one row of the recruiter monitor.
type SessionProgress struct {
	SessionID      uuid.UUID      `json:"session_id"`
	ApplicationID  uuid.UUID      `json:"application_id"`
	CandidateID    int            `json:"candidate_id"`
	Round          int            `json:"round"`
	StartedAt      time.Time      `json:"started_at"`
	Submitted      bool           `json:"submitted"`
	TotalQuestions int            `json:"total_questions"`
	AnsweredCount  int64          `json:"answered_count"`
	Violations     int64          `json:"violations"`
	ViolationCap   int            `json:"violation_cap"`
	Outcome        *model.Outcome `json:"outcome,omitempty"`
}

// JobProgress is a full monitor snapshot of a job.
type JobProgress struct {
	JobID           uuid.UUID         `json:"job_id"`
	TotalJoined     int               `json:"total_joined"`
	TotalInProgress int               `json:"total_in_progress"`
	TotalCompleted  int               `json:"total_completed"`
	TotalViolations int64             `json:"total_violations"`
	Sessions        []SessionProgress `json:"sessions"`
}

// ProgressCounts holds the answered and violation counts per session.
type ProgressCounts struct {
	AnsweredCounts  map[uuid.UUID]int64
	ViolationCounts map[uuid.UUID]int64
	TotalViolations int64
}

// GetProgressCounts returns answered and violation counts concurrently.
// Answered counts are required; violation counts are best-effort.
func (s *MonitorService) GetProgressCounts(ctx context.Context, jobID uuid.UUID) (*ProgressCounts, error) {
	counts := &ProgressCounts{
		AnsweredCounts:  make(map[uuid.UUID]int64),
		ViolationCounts: make(map[uuid.UUID]int64),
	}

	var (
		answered     map[uuid.UUID]int64
		violations   map[uuid.UUID]int64
		answeredErr  error
		violationErr error
		wg           sync.WaitGroup
	)

	wg.Add(2)
	go func() {
		defer wg.Done()
		answered, answeredErr = s.monitorRepo.GetAnsweredCounts(ctx, jobID)
	}()
	go func() {
		defer wg.Done()
		violations, violationErr = s.monitorRepo.GetViolationCounts(ctx, jobID)
	}()
	wg.Wait()

	if answeredErr != nil {
		return nil, answeredErr
	}
	if answered != nil {
		counts.AnsweredCounts = answered
	}

	if violationErr != nil {
		s.log.Warn().Err(violationErr).Str("job_id", jobID.String()).Msg("Violation counts unavailable")
	} else if violations != nil {
		counts.ViolationCounts = violations
		for _, n := range violations {
			counts.TotalViolations += n
		}
	}

	return counts, nil
}

// GetJobProgress builds the full snapshot sent when a recruiter attaches.
func (s *MonitorService) GetJobProgress(ctx context.Context, jobID uuid.UUID) (*JobProgress, error) {
	sessions, err := s.sessionRepo.ListByJob(ctx, jobID)
	if err != nil {
		return nil, err
	}
	counts, err := s.GetProgressCounts(ctx, jobID)
	if err != nil {
		return nil, err
	}

	progress := &JobProgress{
		JobID:           jobID,
		TotalJoined:     len(sessions),
		TotalViolations: counts.TotalViolations,
		Sessions:        make([]SessionProgress, 0, len(sessions)),
	}
	for _, sess := range sessions {
		if sess.Submitted {
			progress.TotalCompleted++
		} else {
			progress.TotalInProgress++
		}
		progress.Sessions = append(progress.Sessions, SessionProgress{
			SessionID:      sess.ID,
			ApplicationID:  sess.ApplicationID,
			CandidateID:    sess.CandidateID,
			Round:          sess.Round,
			StartedAt:      sess.CreatedAt,
			Submitted:      sess.Submitted,
			TotalQuestions: len(sess.QuestionIDs),
			AnsweredCount:  counts.AnsweredCounts[sess.ID],
			Violations:     counts.ViolationCounts[sess.ID],
			ViolationCap:   sess.Policy.ViolationCap,
			Outcome:        sess.Outcome(),
		})
	}
	return progress, nil
}
