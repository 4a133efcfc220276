package proctor

import (
	"math/rand/v2"

	"github.com/google/uuid"
	"github.com/stemsi/hiring-backend/internal/model"
)

// Sample returns the first min(displayCount, len(pool)) questions of a
// uniform shuffle of the pool. A non-positive displayCount keeps the whole
// pool. The input slice is not modified.
func Sample(pool []model.Question, displayCount int, rng *rand.Rand) ([]model.Question, error) {
	if len(pool) == 0 {
		return nil, ErrNoQuestions
	}
	for _, q := range pool {
		if err := validateQuestion(q); err != nil {
			return nil, err
		}
	}

	shuffled := make([]model.Question, len(pool))
	copy(shuffled, pool)
	shuffle := rand.Shuffle
	if rng != nil {
		shuffle = rng.Shuffle
	}
	shuffle(len(shuffled), func(i, j int) {
		shuffled[i], shuffled[j] = shuffled[j], shuffled[i]
	})

	if displayCount <= 0 || displayCount > len(shuffled) {
		displayCount = len(shuffled)
	}
	return shuffled[:displayCount], nil
}

// Project returns the candidate-facing view of questions, in order, without
// answer keys.
func Project(questions []model.Question) []model.CandidateQuestion {
	out := make([]model.CandidateQuestion, len(questions))
	for i, q := range questions {
		opts := make([]model.Option, len(q.Options))
		copy(opts, q.Options)
		out[i] = model.CandidateQuestion{
			ID:      q.ID,
			Prompt:  q.Prompt,
			Options: opts,
			Points:  q.PointValue(),
			Index:   i,
		}
	}
	return out
}

// OrderByIDs arranges questions in the order of ids. IDs with no matching
// question are skipped.
func OrderByIDs(questions []model.Question, ids []uuid.UUID) []model.Question {
	byID := make(map[uuid.UUID]model.Question, len(questions))
	for _, q := range questions {
		byID[q.ID] = q
	}
	out := make([]model.Question, 0, len(ids))
	for _, id := range ids {
		if q, ok := byID[id]; ok {
			out = append(out, q)
		}
	}
	return out
}

func validateQuestion(q model.Question) error {
	if len(q.Options) < model.MinOptions || len(q.Options) > model.MaxOptions {
		return ErrInvalidQuestion
	}
	if !q.HasOption(q.CorrectOption) {
		return ErrInvalidQuestion
	}
	return nil
}
