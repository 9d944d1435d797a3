package service

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/paperlens/exam-insight-api/internal/models"
)

func TestBiasAnalyzeClassifiesStrengthsAndWeaknesses(t *testing.T) {
	ranking := NewRankingService(nil)
	svc := NewBiasService(ranking, BiasConfig{Margin: 5}, nil)

	// b leads overall (win rate 75) but ranks mid-field in math (50).
	analysis, err := svc.Analyze(fourStudentSnapshot(), "b")
	require.NoError(t, err)
	require.Len(t, analysis.Radar, 2)
	assert.Equal(t, []string{}, analysis.StrengthSubjects)
	assert.Equal(t, []string{"Math"}, analysis.WeakSubjects)

	math := analysis.Radar[0]
	assert.Equal(t, "Math", math.SubjectName)
	assert.Equal(t, 75.0, math.TotalWinRate)
	assert.Equal(t, 50.0, math.SubjectWinRate)
}

func TestBiasAnalyzeMarginIsInclusive(t *testing.T) {
	ranking := NewRankingService(nil)
	svc := NewBiasService(ranking, BiasConfig{Margin: 25}, nil)

	// d: overall win rate 0, physics exactly +25, math exactly 0.
	analysis, err := svc.Analyze(fourStudentSnapshot(), "d")
	require.NoError(t, err)
	assert.Equal(t, []string{"Physics"}, analysis.StrengthSubjects)
	assert.Empty(t, analysis.WeakSubjects)

	// a: overall 75, physics exactly -25.
	analysis, err = svc.Analyze(fourStudentSnapshot(), "a")
	require.NoError(t, err)
	assert.Equal(t, []string{"Physics"}, analysis.WeakSubjects)
}

func TestBiasAnalyzeBalancedStudent(t *testing.T) {
	ranking := NewRankingService(nil)
	svc := NewBiasService(ranking, BiasConfig{Margin: 5}, nil)

	analysis, err := svc.Analyze(fourStudentSnapshot(), "c")
	require.NoError(t, err)
	assert.Empty(t, analysis.StrengthSubjects)
	assert.Empty(t, analysis.WeakSubjects)
}

func knowledgeSnapshot() *models.CohortSnapshot {
	return &models.CohortSnapshot{
		ExamID:   "exam1",
		Grouping: models.GroupByGrade,
		Students: []models.Student{
			{ID: "a", StudentCode: "001", Name: "Alice", ClassID: "c1"},
			{ID: "b", StudentCode: "002", Name: "Bob", ClassID: "c1"},
		},
		Subjects: []models.Subject{{ID: "math", ExamID: "exam1", Name: "Math"}},
		Questions: []models.Question{
			{ID: "q1", SubjectID: "math", QuestionCode: 1, FullScore: 10, QuestionType: models.QuestionFreeResponse, KnowledgePoints: []string{"algebra"}},
			{ID: "q2", SubjectID: "math", QuestionCode: 2, FullScore: 10, QuestionType: models.QuestionFreeResponse, KnowledgePoints: []string{"algebra", "geometry"}},
		},
		Answers: []models.Answer{
			{ID: "a1", StudentID: "a", QuestionID: "q1", FinalScore: score(10)},
			{ID: "a2", StudentID: "a", QuestionID: "q2", FinalScore: score(5)},
			{ID: "b1", StudentID: "b", QuestionID: "q1", FinalScore: score(5)},
			{ID: "b2", StudentID: "b", QuestionID: "q2", FinalScore: score(5)},
		},
	}
}

func TestBiasKnowledgeMasteryLevels(t *testing.T) {
	ranking := NewRankingService(nil)
	svc := NewBiasService(ranking, BiasConfig{Margin: 5, ExcellentOffset: 10, PassOffset: 10}, nil)

	analysis, err := svc.Knowledge(knowledgeSnapshot(), "a", "math")
	require.NoError(t, err)
	require.Len(t, analysis.KnowledgePoints, 2)

	algebra := analysis.KnowledgePoints[0]
	assert.Equal(t, "algebra", algebra.Name)
	assert.InDelta(t, 62.5, algebra.ClassRate, 1e-9)
	assert.InDelta(t, 75.0, algebra.PersonalRate, 1e-9)
	assert.Equal(t, models.MasteryExcellent, algebra.Level)

	geometry := analysis.KnowledgePoints[1]
	assert.Equal(t, "geometry", geometry.Name)
	assert.InDelta(t, 50.0, geometry.ClassRate, 1e-9)
	assert.InDelta(t, 50.0, geometry.PersonalRate, 1e-9)
	assert.Equal(t, models.MasteryPass, geometry.Level)
}

func TestBiasKnowledgeWeakBucket(t *testing.T) {
	ranking := NewRankingService(nil)
	svc := NewBiasService(ranking, BiasConfig{Margin: 5, ExcellentOffset: 10, PassOffset: 10}, nil)

	analysis, err := svc.Knowledge(knowledgeSnapshot(), "b", "math")
	require.NoError(t, err)
	require.Len(t, analysis.KnowledgePoints, 2)
	assert.Equal(t, models.MasteryWeak, analysis.KnowledgePoints[0].Level)
}

func TestBiasKnowledgeMissingAnswersEarnZero(t *testing.T) {
	ranking := NewRankingService(nil)
	svc := NewBiasService(ranking, BiasConfig{}, nil)
	snapshot := knowledgeSnapshot()
	snapshot.Answers = snapshot.Answers[:2]

	analysis, err := svc.Knowledge(snapshot, "b", "math")
	require.NoError(t, err)
	require.Len(t, analysis.KnowledgePoints, 2)
	assert.Equal(t, 0.0, analysis.KnowledgePoints[0].PersonalRate)
	assert.Equal(t, models.MasteryWeak, analysis.KnowledgePoints[0].Level)
}
