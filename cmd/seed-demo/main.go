package main

import (
	"context"
	"flag"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/stemsi/hiring-backend/internal/config"
	"github.com/stemsi/hiring-backend/internal/database"
	"github.com/stemsi/hiring-backend/internal/logger"
	"github.com/stemsi/hiring-backend/internal/model"
	"github.com/stemsi/hiring-backend/internal/service"
)

// seed-demo creates one job with a question pool per round and enabled
// applications for a range of candidate IDs, then prints their tokens.
func main() {
	var (
		rounds     int
		perRound   int
		display    int
		candidates int
		duration   int
	)
	flag.IntVar(&rounds, "rounds", 2, "Number of rounds")
	flag.IntVar(&perRound, "questions", 15, "Questions in each round's pool")
	flag.IntVar(&display, "display", 10, "Questions shown per session")
	flag.IntVar(&candidates, "candidates", 5, "Candidate IDs 1..n to enroll")
	flag.IntVar(&duration, "minutes", 15, "Time limit per round")
	flag.Parse()

	cfg := config.Load()
	log := logger.Setup(cfg.LogLevel, cfg.LogFormat)
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	defer cancel()

	pool, err := database.NewPostgresPool(ctx, cfg, log)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to connect to PostgreSQL")
	}
	defer pool.Close()

	jobID := uuid.New()
	batch := &pgx.Batch{}

	for r := 1; r <= rounds; r++ {
		batch.Queue(
			`INSERT INTO job_rounds (job_id, round, total_rounds, question_count, duration_minutes)
			 VALUES ($1, $2, $3, $4, $5)`,
			jobID, r, rounds, display, duration,
		)
		for i := 1; i <= perRound; i++ {
			var points *int
			if i%5 == 0 {
				p := 2
				points = &p
			}
			batch.Queue(
				`INSERT INTO questions (job_id, round, prompt, options, correct_option, points)
				 VALUES ($1, $2, $3, $4, $5, $6)`,
				jobID, r, fmt.Sprintf("Round %d, question %d: what is %d + %d?", r, i, i, r),
				options(i+r), "B", points,
			)
		}
	}
	for id := 1; id <= candidates; id++ {
		batch.Queue(
			`INSERT INTO applications (job_id, candidate_id, test_enabled, status)
			 VALUES ($1, $2, TRUE, $3)`,
			jobID, id, string(model.ApplicationStatusApplied),
		)
	}

	if err := pool.SendBatch(ctx, batch).Close(); err != nil {
		log.Fatal().Err(err).Msg("Seed failed")
	}

	auth := service.NewAuthService(cfg)
	fmt.Printf("Seeded job %s with %d rounds\n\n", jobID, rounds)

	rows, err := pool.Query(ctx, `SELECT id, candidate_id FROM applications WHERE job_id = $1 ORDER BY candidate_id`, jobID)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to list applications")
	}
	defer rows.Close()
	for rows.Next() {
		var (
			appID       uuid.UUID
			candidateID int
		)
		if err := rows.Scan(&appID, &candidateID); err != nil {
			log.Fatal().Err(err).Msg("Scan failed")
		}
		token, err := auth.GenerateToken(service.TokenTypeCandidate, candidateID, nil)
		if err != nil {
			log.Fatal().Err(err).Msg("Failed to sign token")
		}
		fmt.Printf("candidate %d  application %s\n  %s\n", candidateID, appID, token)
	}
	if err := rows.Err(); err != nil {
		log.Fatal().Err(err).Msg("Failed to list applications")
	}
}

// options always places the right answer under label B.
func options(sum int) []model.Option {
	return []model.Option{
		{Label: "A", Text: fmt.Sprint(sum - 1)},
		{Label: "B", Text: fmt.Sprint(sum)},
		{Label: "C", Text: fmt.Sprint(sum + 1)},
		{Label: "D", Text: fmt.Sprint(sum * 2)},
	}
}
