package proctor

import (
	"testing"

	"github.com/google/uuid"
	"github.com/stemsi/hiring-backend/internal/model"
	"github.com/stretchr/testify/require"
)

func TestPassThreshold(t *testing.T) {
	tests := []struct {
		total int
		want  int
	}{
		{0, 0},
		{1, 1},
		{3, 2},
		{5, 3},
		{10, 6},
		{11, 7},
		{25, 15},
	}
	for _, tt := range tests {
		require.Equal(t, tt.want, PassThreshold(tt.total), "total=%d", tt.total)
	}
}

func TestScoreOnlyShownQuestions(t *testing.T) {
	two := 2
	qs := pool(4)
	qs[0].Points = &two
	shown := []uuid.UUID{qs[0].ID, qs[1].ID, qs[2].ID}

	answers := map[uuid.UUID]string{
		qs[0].ID: "B",
		qs[1].ID: "A",
		qs[3].ID: "B",
	}

	out := Score(shown, qs, answers)
	require.Equal(t, 4, out.TotalPoints)
	require.Equal(t, 2, out.EarnedPoints)
	require.Equal(t, 3, out.Threshold)
	require.False(t, out.Passed)
	require.Equal(t, map[uuid.UUID]bool{qs[0].ID: true, qs[1].ID: false}, out.Correct)
}

func TestScoreMissingKeyCountsButNeverEarns(t *testing.T) {
	qs := pool(1)
	gone := uuid.New()
	out := Score([]uuid.UUID{qs[0].ID, gone}, qs, map[uuid.UUID]string{qs[0].ID: "B", gone: "A"})

	require.Equal(t, 2, out.TotalPoints)
	require.Equal(t, 1, out.EarnedPoints)
	require.False(t, out.Correct[gone])
	require.LessOrEqual(t, out.EarnedPoints, out.TotalPoints)
}

func TestScoreSevenOfTen(t *testing.T) {
	qs := pool(10)
	shown := make([]uuid.UUID, 10)
	answers := map[uuid.UUID]string{}
	for i, q := range qs {
		shown[i] = q.ID
		if i < 7 {
			answers[q.ID] = "B"
		} else {
			answers[q.ID] = "A"
		}
	}

	out := Score(shown, qs, answers)
	require.Equal(t, model.Outcome{
		TotalPoints:  10,
		EarnedPoints: 7,
		Threshold:    6,
		Passed:       true,
		Correct:      out.Correct,
	}, out)
	require.Len(t, out.Correct, 10)
}
