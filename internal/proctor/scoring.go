package proctor

import (
	"github.com/google/uuid"
	"github.com/stemsi/hiring-backend/internal/model"
)

// PassThreshold is ceil(0.6 * total) in integer arithmetic.
func PassThreshold(total int) int {
	if total <= 0 {
		return 0
	}
	return (total*6 + 9) / 10
}

// Score grades the answers against exactly the shown questions. A shown ID
// whose question is no longer available still counts one point toward the
// total and can never be earned.
func Score(shown []uuid.UUID, keys []model.Question, answers map[uuid.UUID]string) model.Outcome {
	byID := make(map[uuid.UUID]model.Question, len(keys))
	for _, q := range keys {
		byID[q.ID] = q
	}

	out := model.Outcome{Correct: make(map[uuid.UUID]bool, len(answers))}
	for _, id := range shown {
		q, ok := byID[id]
		if !ok {
			out.TotalPoints++
			if _, answered := answers[id]; answered {
				out.Correct[id] = false
			}
			continue
		}
		points := q.PointValue()
		out.TotalPoints += points

		selected, answered := answers[id]
		if !answered {
			continue
		}
		correct := selected == q.CorrectOption
		out.Correct[id] = correct
		if correct {
			out.EarnedPoints += points
		}
	}

	out.Threshold = PassThreshold(out.TotalPoints)
	out.Passed = out.EarnedPoints >= out.Threshold
	return out
}
