package service

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/paperlens/exam-insight-api/internal/models"
	appErrors "github.com/paperlens/exam-insight-api/pkg/errors"
)

func testQuestion(fullScore float64, questionType models.QuestionType) *models.Question {
	return &models.Question{ID: "q1", SubjectID: "s1", QuestionCode: 1, FullScore: fullScore, QuestionType: questionType}
}

func TestScoringResolveUngraded(t *testing.T) {
	svc := NewScoringService(models.ScoringPolicy{DefaultTolerance: 0.10}, nil)

	resolution, err := svc.Resolve(testQuestion(10, models.QuestionFreeResponse), nil)
	require.NoError(t, err)
	assert.Equal(t, models.ReviewUngraded, resolution.State)
	assert.Nil(t, resolution.Score)
}

func TestScoringResolveSingleRecordVerbatim(t *testing.T) {
	svc := NewScoringService(models.ScoringPolicy{DefaultTolerance: 0.10}, nil)

	resolution, err := svc.Resolve(testQuestion(10, models.QuestionFreeResponse), []models.GradeRecord{
		{Score: 7.5, Comment: "partial credit"},
	})
	require.NoError(t, err)
	assert.Equal(t, models.ReviewResolved, resolution.State)
	require.NotNil(t, resolution.Score)
	assert.Equal(t, 7.5, *resolution.Score)
	assert.Equal(t, "partial credit", resolution.Comment)
}

func TestScoringResolveMeanWithinTolerance(t *testing.T) {
	svc := NewScoringService(models.ScoringPolicy{DefaultTolerance: 0.10}, nil)
	now := time.Now()

	resolution, err := svc.Resolve(testQuestion(10, models.QuestionFreeResponse), []models.GradeRecord{
		{Score: 8, Comment: "first", RecordedAt: now},
		{Score: 8.5, Comment: "second", RecordedAt: now.Add(time.Minute)},
	})
	require.NoError(t, err)
	assert.Equal(t, models.ReviewResolved, resolution.State)
	require.NotNil(t, resolution.Score)
	assert.Equal(t, 8.25, *resolution.Score)
	assert.Equal(t, "second", resolution.Comment)
}

func TestScoringResolveOrderIndependent(t *testing.T) {
	svc := NewScoringService(models.ScoringPolicy{DefaultTolerance: 0.10}, nil)
	now := time.Now()
	records := []models.GradeRecord{
		{Score: 8, Comment: "a", RecordedAt: now},
		{Score: 8.4, Comment: "b", RecordedAt: now.Add(time.Minute)},
		{Score: 8.2, Comment: "c", RecordedAt: now.Add(2 * time.Minute)},
	}
	reversed := []models.GradeRecord{records[2], records[1], records[0]}

	first, err := svc.Resolve(testQuestion(10, models.QuestionFreeResponse), records)
	require.NoError(t, err)
	second, err := svc.Resolve(testQuestion(10, models.QuestionFreeResponse), reversed)
	require.NoError(t, err)
	assert.Equal(t, first, second)
}

func TestScoringResolveDisagreementNeedsArbitration(t *testing.T) {
	svc := NewScoringService(models.ScoringPolicy{DefaultTolerance: 0.10}, nil)

	resolution, err := svc.Resolve(testQuestion(10, models.QuestionFreeResponse), []models.GradeRecord{
		{Score: 3},
		{Score: 9},
	})
	require.NoError(t, err)
	assert.Equal(t, models.ReviewNeedsArbitration, resolution.State)
	assert.Nil(t, resolution.Score)
}

func TestScoringResolveSpreadEqualToToleranceResolves(t *testing.T) {
	svc := NewScoringService(models.ScoringPolicy{DefaultTolerance: 0.10}, nil)

	// Tolerance for a 10-point question is exactly 1.0.
	resolution, err := svc.Resolve(testQuestion(10, models.QuestionFreeResponse), []models.GradeRecord{
		{Score: 7},
		{Score: 8},
	})
	require.NoError(t, err)
	assert.Equal(t, models.ReviewResolved, resolution.State)
	require.NotNil(t, resolution.Score)
	assert.Equal(t, 7.5, *resolution.Score)
}

func TestScoringResolveTypeOverride(t *testing.T) {
	svc := NewScoringService(models.ScoringPolicy{
		DefaultTolerance: 0.10,
		ToleranceByType:  map[string]float64{string(models.QuestionSingleChoice): 0},
	}, nil)

	resolution, err := svc.Resolve(testQuestion(5, models.QuestionSingleChoice), []models.GradeRecord{
		{Score: 5},
		{Score: 4.5},
	})
	require.NoError(t, err)
	assert.Equal(t, models.ReviewNeedsArbitration, resolution.State)
}

func TestScoringResolveBankersRounding(t *testing.T) {
	svc := NewScoringService(models.ScoringPolicy{DefaultTolerance: 1.0, ScorePrecision: 2}, nil)

	resolution, err := svc.Resolve(testQuestion(10, models.QuestionFreeResponse), []models.GradeRecord{
		{Score: 2.12},
		{Score: 2.13},
	})
	require.NoError(t, err)
	require.NotNil(t, resolution.Score)
	// Mean 2.125 rounds to even at two decimals.
	assert.Equal(t, 2.12, *resolution.Score)
}

func TestScoringResolveRejectsOutOfRangeRecord(t *testing.T) {
	svc := NewScoringService(models.ScoringPolicy{DefaultTolerance: 0.10}, nil)

	_, err := svc.Resolve(testQuestion(10, models.QuestionFreeResponse), []models.GradeRecord{{Score: 11}})
	require.Error(t, err)
	assert.True(t, appErrors.Is(err, appErrors.ErrInvalidScore))
}

func TestScoringResolveRejectsNonPositiveFullScore(t *testing.T) {
	svc := NewScoringService(models.ScoringPolicy{DefaultTolerance: 0.10}, nil)

	_, err := svc.Resolve(testQuestion(0, models.QuestionFreeResponse), nil)
	require.Error(t, err)
	assert.True(t, appErrors.Is(err, appErrors.ErrInvalidScore))
}
