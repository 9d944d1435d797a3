package service

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	appErrors "github.com/paperlens/exam-insight-api/pkg/errors"
)

func TestSimulateWithActualScoresIsNeutral(t *testing.T) {
	ranking := NewRankingService(nil)
	svc := NewSimulationService(ranking, nil)

	result, err := svc.Simulate(fourStudentSnapshot(), SimulateRequest{
		StudentID:     "c",
		SubjectScores: map[string]float64{"math": 50, "physics": 30},
	})
	require.NoError(t, err)
	assert.Equal(t, 80.0, result.NewTotal)
	assert.Equal(t, 3, result.CurrentRank)
	assert.Equal(t, 3, result.PredictedRank)
	assert.Equal(t, 0, result.RankChange)
}

func TestSimulateImprovementMovesRankUp(t *testing.T) {
	ranking := NewRankingService(nil)
	svc := NewSimulationService(ranking, nil)

	// d currently ranks 4th with 70; a perfect math run lifts the total
	// to 90, tying the leaders.
	result, err := svc.Simulate(fourStudentSnapshot(), SimulateRequest{
		StudentID:     "d",
		SubjectScores: map[string]float64{"math": 60},
	})
	require.NoError(t, err)
	assert.Equal(t, 90.0, result.NewTotal)
	assert.Equal(t, 4, result.CurrentRank)
	assert.Equal(t, 1, result.PredictedRank)
	assert.Equal(t, 3, result.RankChange)
}

func TestSimulateDropCanWorsenRank(t *testing.T) {
	ranking := NewRankingService(nil)
	svc := NewSimulationService(ranking, nil)

	result, err := svc.Simulate(fourStudentSnapshot(), SimulateRequest{
		StudentID:     "b",
		SubjectScores: map[string]float64{"physics": 0},
	})
	require.NoError(t, err)
	assert.Equal(t, 52.0, result.NewTotal)
	assert.Equal(t, 1, result.CurrentRank)
	assert.Equal(t, 4, result.PredictedRank)
	assert.Equal(t, -3, result.RankChange)
}

func TestSimulateRejectsScoreAboveSubjectMax(t *testing.T) {
	ranking := NewRankingService(nil)
	svc := NewSimulationService(ranking, nil)

	_, err := svc.Simulate(fourStudentSnapshot(), SimulateRequest{
		StudentID:     "c",
		SubjectScores: map[string]float64{"math": 60.5},
	})
	require.Error(t, err)
	assert.True(t, appErrors.Is(err, appErrors.ErrInvalidScore))
}

func TestSimulateRejectsNegativeScore(t *testing.T) {
	ranking := NewRankingService(nil)
	svc := NewSimulationService(ranking, nil)

	_, err := svc.Simulate(fourStudentSnapshot(), SimulateRequest{
		StudentID:     "c",
		SubjectScores: map[string]float64{"physics": -1},
	})
	require.Error(t, err)
	assert.True(t, appErrors.Is(err, appErrors.ErrInvalidScore))
}

func TestSimulateUnknownSubject(t *testing.T) {
	ranking := NewRankingService(nil)
	svc := NewSimulationService(ranking, nil)

	_, err := svc.Simulate(fourStudentSnapshot(), SimulateRequest{
		StudentID:     "c",
		SubjectScores: map[string]float64{"chemistry": 10},
	})
	require.Error(t, err)
	assert.True(t, appErrors.Is(err, appErrors.ErrNotFound))
}

func TestSimulateLeavesOtherTotalsUntouched(t *testing.T) {
	ranking := NewRankingService(nil)
	svc := NewSimulationService(ranking, nil)
	snapshot := fourStudentSnapshot()

	_, err := svc.Simulate(snapshot, SimulateRequest{
		StudentID:     "d",
		SubjectScores: map[string]float64{"math": 60},
	})
	require.NoError(t, err)

	totals := ranking.Totals(snapshot)
	byStudent := make(map[string]float64, len(totals))
	for _, entry := range totals {
		byStudent[entry.StudentID] = entry.Total
	}
	assert.Equal(t, 90.0, byStudent["a"])
	assert.Equal(t, 70.0, byStudent["d"])
}
