package service

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/paperlens/exam-insight-api/internal/models"
	appErrors "github.com/paperlens/exam-insight-api/pkg/errors"
)

type mockCohortReader struct {
	snapshot *models.CohortSnapshot
	calls    int
}

func (m *mockCohortReader) Snapshot(ctx context.Context, examID string, grouping models.GroupingMode, groupKey string) (*models.CohortSnapshot, error) {
	m.calls++
	return m.snapshot, nil
}

func newAnalyticsFixture(snapshot *models.CohortSnapshot) (*AnalyticsService, *mockCohortReader) {
	cohorts := &mockCohortReader{snapshot: snapshot}
	ranking := NewRankingService(nil)
	simulation := NewSimulationService(ranking, nil)
	bias := NewBiasService(ranking, BiasConfig{Margin: 5}, nil)
	svc := NewAnalyticsService(cohorts, ranking, simulation, bias, nil, nil, 0, 0, nil)
	return svc, cohorts
}

func TestAnalyticsScores(t *testing.T) {
	svc, cohorts := newAnalyticsFixture(fourStudentSnapshot())

	summary, cached, err := svc.Scores(context.Background(), "exam1", "a")
	require.NoError(t, err)
	assert.False(t, cached)
	assert.Equal(t, 1, cohorts.calls)
	assert.Equal(t, 90.0, summary.TotalScore)
	require.Len(t, summary.SubjectScores, 2)

	math := summary.SubjectScores[0]
	assert.Equal(t, "math", math.SubjectID)
	assert.Equal(t, 55.0, math.Score)
	assert.Equal(t, 60.0, math.FullScore)
}

func TestAnalyticsScoresUnknownStudent(t *testing.T) {
	svc, _ := newAnalyticsFixture(fourStudentSnapshot())

	_, _, err := svc.Scores(context.Background(), "exam1", "nobody")
	require.Error(t, err)
	assert.True(t, appErrors.Is(err, appErrors.ErrNotFound))
}

func TestAnalyticsScoresRejectsInconsistentSnapshot(t *testing.T) {
	snapshot := fourStudentSnapshot()
	snapshot.Answers = append(snapshot.Answers, models.Answer{ID: "dup", StudentID: "a", QuestionID: "mq", FinalScore: score(1)})
	svc, _ := newAnalyticsFixture(snapshot)

	_, _, err := svc.Scores(context.Background(), "exam1", "a")
	require.Error(t, err)
	assert.True(t, appErrors.Is(err, appErrors.ErrInconsistentSnapshot))
}

func TestAnalyticsPositionWithoutCache(t *testing.T) {
	svc, _ := newAnalyticsFixture(fourStudentSnapshot())

	position, cached, err := svc.Position(context.Background(), "exam1", "c", models.GroupByGrade, "")
	require.NoError(t, err)
	assert.False(t, cached)
	assert.Equal(t, 3, position.TotalRank)
	assert.Equal(t, 4, position.CohortSize)
}

func TestAnalyticsSimulateDelegates(t *testing.T) {
	svc, cohorts := newAnalyticsFixture(fourStudentSnapshot())

	result, err := svc.Simulate(context.Background(), "exam1", models.GroupByGrade, "", SimulateRequest{
		StudentID:     "d",
		SubjectScores: map[string]float64{"math": 60},
	})
	require.NoError(t, err)
	assert.Equal(t, 1, result.PredictedRank)

	// Simulations always re-read the cohort.
	_, err = svc.Simulate(context.Background(), "exam1", models.GroupByGrade, "", SimulateRequest{
		StudentID:     "d",
		SubjectScores: map[string]float64{"math": 60},
	})
	require.NoError(t, err)
	assert.Equal(t, 2, cohorts.calls)
}

func TestAnalyticsQuestionsPage(t *testing.T) {
	svc, cohorts := newAnalyticsFixture(fourStudentSnapshot())

	analysis, cached, err := svc.Questions(context.Background(), "exam1", "a", "math", models.GroupByGrade, "")
	require.NoError(t, err)
	assert.False(t, cached)
	assert.Equal(t, 1, cohorts.calls)
	assert.Equal(t, "Math", analysis.SubjectName)
	require.Len(t, analysis.Questions, 1)
	require.NotNil(t, analysis.Questions[0].Score)
	assert.Equal(t, 55.0, *analysis.Questions[0].Score)
}

func TestAnalyticsLossPage(t *testing.T) {
	svc, _ := newAnalyticsFixture(fourStudentSnapshot())

	analysis, cached, err := svc.Loss(context.Background(), "exam1", "d", models.GroupByGrade, "")
	require.NoError(t, err)
	assert.False(t, cached)
	assert.Equal(t, 30.0, analysis.PotentialGain)
	assert.Equal(t, 3, analysis.RankImprovement)
}

func TestAnalyticsClassScoresPage(t *testing.T) {
	svc, cohorts := newAnalyticsFixture(fourStudentSnapshot())

	report, cached, err := svc.ClassScores(context.Background(), "exam1", "c1")
	require.NoError(t, err)
	assert.False(t, cached)
	assert.Equal(t, 1, cohorts.calls)
	assert.Equal(t, 4, report.CohortSize)
	// Default 60% pass line on the 100-point exam: every total clears it.
	assert.Equal(t, 100.0, report.PassRate)
	assert.Equal(t, 1, report.Students[0].Rank)
}

func TestAnalyticsInvalidateWithoutCacheIsNoop(t *testing.T) {
	svc, _ := newAnalyticsFixture(fourStudentSnapshot())
	assert.NoError(t, svc.InvalidateExam(context.Background(), "exam1"))
}

func TestAnalyticsCacheKeyEscapesColons(t *testing.T) {
	key := analyticsCacheKey("exam:1", "scores", "stu:9")
	assert.Equal(t, "analytics:exam|1:scores:stu|9", key)
	assert.Equal(t, "analytics:exam|1:*", analyticsKeyPattern("exam:1"))
}

func TestAnalyticsCacheKeySkipsEmptyParts(t *testing.T) {
	key := analyticsCacheKey("exam1", "position", "stu1", string(models.GroupByGrade), "")
	assert.Equal(t, "analytics:exam1:position:stu1:grade", key)
}
