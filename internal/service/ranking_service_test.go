package service

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/paperlens/exam-insight-api/internal/models"
	appErrors "github.com/paperlens/exam-insight-api/pkg/errors"
)

func score(v float64) *float64 { return &v }

// fourStudentSnapshot builds a cohort with totals 90, 90, 80, 70 for
// students a, b, c, d across two subjects.
func fourStudentSnapshot() *models.CohortSnapshot {
	return &models.CohortSnapshot{
		ExamID:   "exam1",
		Grouping: models.GroupByGrade,
		Students: []models.Student{
			{ID: "a", StudentCode: "001", Name: "Alice", ClassID: "c1"},
			{ID: "b", StudentCode: "002", Name: "Bob", ClassID: "c1"},
			{ID: "c", StudentCode: "003", Name: "Cara", ClassID: "c2"},
			{ID: "d", StudentCode: "004", Name: "Dan", ClassID: "c2"},
		},
		Subjects: []models.Subject{
			{ID: "math", ExamID: "exam1", Name: "Math"},
			{ID: "physics", ExamID: "exam1", Name: "Physics"},
		},
		Questions: []models.Question{
			{ID: "mq", SubjectID: "math", QuestionCode: 1, FullScore: 60, QuestionType: models.QuestionFreeResponse},
			{ID: "pq", SubjectID: "physics", QuestionCode: 1, FullScore: 40, QuestionType: models.QuestionFreeResponse},
		},
		Answers: []models.Answer{
			{ID: "a-m", StudentID: "a", QuestionID: "mq", FinalScore: score(55)},
			{ID: "a-p", StudentID: "a", QuestionID: "pq", FinalScore: score(35)},
			{ID: "b-m", StudentID: "b", QuestionID: "mq", FinalScore: score(52)},
			{ID: "b-p", StudentID: "b", QuestionID: "pq", FinalScore: score(38)},
			{ID: "c-m", StudentID: "c", QuestionID: "mq", FinalScore: score(50)},
			{ID: "c-p", StudentID: "c", QuestionID: "pq", FinalScore: score(30)},
			{ID: "d-m", StudentID: "d", QuestionID: "mq", FinalScore: score(40)},
			{ID: "d-p", StudentID: "d", QuestionID: "pq", FinalScore: score(30)},
		},
	}
}

func TestRankingCompetitionRanks(t *testing.T) {
	svc := NewRankingService(nil)

	ranked := svc.Rank([]models.StudentTotal{
		{StudentID: "a", Total: 90},
		{StudentID: "b", Total: 90},
		{StudentID: "c", Total: 80},
		{StudentID: "d", Total: 70},
	})
	require.Len(t, ranked, 4)
	assert.Equal(t, 1, ranked[0].Rank)
	assert.Equal(t, 1, ranked[1].Rank)
	assert.Equal(t, 3, ranked[2].Rank)
	assert.Equal(t, 4, ranked[3].Rank)
	assert.Equal(t, 75.0, ranked[0].WinRate)
	assert.Equal(t, 25.0, ranked[2].WinRate)
	assert.Equal(t, 0.0, ranked[3].WinRate)
}

func TestRankingTotalsUngradedCountAsZero(t *testing.T) {
	svc := NewRankingService(nil)
	snapshot := fourStudentSnapshot()
	snapshot.Answers[0].FinalScore = nil

	totals := svc.Totals(snapshot)
	byStudent := make(map[string]float64, len(totals))
	for _, entry := range totals {
		byStudent[entry.StudentID] = entry.Total
	}
	assert.Equal(t, 35.0, byStudent["a"])
	assert.Equal(t, 90.0, byStudent["b"])
}

func TestRankingTotalsIncludeStudentsWithoutAnswers(t *testing.T) {
	svc := NewRankingService(nil)
	snapshot := fourStudentSnapshot()
	snapshot.Students = append(snapshot.Students, models.Student{ID: "e", StudentCode: "005", Name: "Eve", ClassID: "c1"})

	totals := svc.Totals(snapshot)
	require.Len(t, totals, 5)
	assert.Equal(t, "e", totals[4].StudentID)
	assert.Equal(t, 0.0, totals[4].Total)
}

func TestRankingRankOfMissingStudent(t *testing.T) {
	svc := NewRankingService(nil)

	_, err := svc.RankOf(svc.Rank(svc.Totals(fourStudentSnapshot())), "nobody")
	require.Error(t, err)
	assert.True(t, appErrors.Is(err, appErrors.ErrNotFound))
}

func TestRankingValidateDuplicateAnswer(t *testing.T) {
	svc := NewRankingService(nil)
	snapshot := fourStudentSnapshot()
	snapshot.Answers = append(snapshot.Answers, models.Answer{ID: "dup", StudentID: "a", QuestionID: "mq", FinalScore: score(1)})

	err := svc.Validate(snapshot)
	require.Error(t, err)
	assert.True(t, appErrors.Is(err, appErrors.ErrInconsistentSnapshot))
}

func TestRankingValidateUnknownReferences(t *testing.T) {
	svc := NewRankingService(nil)

	snapshot := fourStudentSnapshot()
	snapshot.Answers = append(snapshot.Answers, models.Answer{ID: "x", StudentID: "ghost", QuestionID: "mq"})
	assert.True(t, appErrors.Is(svc.Validate(snapshot), appErrors.ErrInconsistentSnapshot))

	snapshot = fourStudentSnapshot()
	snapshot.Answers = append(snapshot.Answers, models.Answer{ID: "y", StudentID: "a", QuestionID: "ghost"})
	assert.True(t, appErrors.Is(svc.Validate(snapshot), appErrors.ErrInconsistentSnapshot))
}

func TestRankingPosition(t *testing.T) {
	svc := NewRankingService(nil)

	position, err := svc.Position(fourStudentSnapshot(), "c")
	require.NoError(t, err)
	assert.Equal(t, 4, position.CohortSize)
	assert.Equal(t, 3, position.TotalRank)
	assert.Equal(t, 25.0, position.TotalWinRate)
	require.Len(t, position.SubjectComparison, 2)

	math := position.SubjectComparison[0]
	assert.Equal(t, "math", math.SubjectID)
	assert.Equal(t, 50.0, math.Score)
	assert.Equal(t, 3, math.Rank)
	assert.InDelta(t, 49.25, math.Average, 1e-9)
	assert.Equal(t, 55.0, math.Max)
	assert.InDelta(t, 0.75, math.Diff, 1e-9)
}

// hardQuestionSnapshot extends the four-student cohort with a second math
// question the cohort scores 30% on, totals becoming 90, 100, 82, 70.
func hardQuestionSnapshot() *models.CohortSnapshot {
	snapshot := fourStudentSnapshot()
	snapshot.Questions = append(snapshot.Questions, models.Question{ID: "mq2", SubjectID: "math", QuestionCode: 2, FullScore: 10, QuestionType: models.QuestionFreeResponse})
	snapshot.Answers = append(snapshot.Answers,
		models.Answer{ID: "a-m2", StudentID: "a", QuestionID: "mq2", FinalScore: score(0)},
		models.Answer{ID: "b-m2", StudentID: "b", QuestionID: "mq2", FinalScore: score(10)},
		models.Answer{ID: "c-m2", StudentID: "c", QuestionID: "mq2", FinalScore: score(2)},
		models.Answer{ID: "d-m2", StudentID: "d", QuestionID: "mq2", FinalScore: score(0)},
	)
	return snapshot
}

func TestRankingQuestionStats(t *testing.T) {
	svc := NewRankingService(nil)

	analysis, err := svc.QuestionStats(hardQuestionSnapshot(), "a", "math")
	require.NoError(t, err)
	assert.Equal(t, "Math", analysis.SubjectName)
	assert.Equal(t, []string{"Math", "Physics"}, analysis.AvailableSubjects)
	require.Len(t, analysis.Questions, 2)

	first := analysis.Questions[0]
	assert.Equal(t, 1, first.QuestionCode)
	assert.Equal(t, 60.0, first.FullScore)
	require.NotNil(t, first.Score)
	assert.Equal(t, 55.0, *first.Score)
	assert.InDelta(t, 82.0833333, first.CohortRate, 1e-6)

	second := analysis.Questions[1]
	assert.Equal(t, 2, second.QuestionCode)
	require.NotNil(t, second.Score)
	assert.Equal(t, 0.0, *second.Score)
	assert.InDelta(t, 30.0, second.CohortRate, 1e-9)
}

func TestRankingQuestionStatsUngradedScoreIsNil(t *testing.T) {
	svc := NewRankingService(nil)
	snapshot := fourStudentSnapshot()
	snapshot.Answers[0].FinalScore = nil

	analysis, err := svc.QuestionStats(snapshot, "a", "math")
	require.NoError(t, err)
	require.Len(t, analysis.Questions, 1)
	assert.Nil(t, analysis.Questions[0].Score)
}

func TestRankingQuestionStatsUnknownSubject(t *testing.T) {
	svc := NewRankingService(nil)

	_, err := svc.QuestionStats(fourStudentSnapshot(), "a", "chemistry")
	require.Error(t, err)
	assert.True(t, appErrors.Is(err, appErrors.ErrNotFound))

	_, err = svc.QuestionStats(fourStudentSnapshot(), "nobody", "math")
	require.Error(t, err)
	assert.True(t, appErrors.Is(err, appErrors.ErrNotFound))
}

func TestRankingLossAnalysis(t *testing.T) {
	svc := NewRankingService(nil)

	analysis, err := svc.LossAnalysis(hardQuestionSnapshot(), "a")
	require.NoError(t, err)

	assert.Equal(t, []models.QuestionRef{{SubjectName: "Math", QuestionCode: 2}}, analysis.FullyLost)
	assert.Equal(t, []models.QuestionRef{
		{SubjectName: "Math", QuestionCode: 1},
		{SubjectName: "Physics", QuestionCode: 1},
	}, analysis.PartiallyLost)
	assert.Equal(t, analysis.PartiallyLost, analysis.Recoverable)
	assert.Equal(t, 10.0, analysis.PotentialGain)
	// Recovering 10 points lifts a from rank 2 into a tie at rank 1.
	assert.Equal(t, 1, analysis.RankImprovement)

	require.Len(t, analysis.Bands, 2)
	easy := analysis.Bands[0]
	assert.Equal(t, models.DifficultyEasy, easy.Level)
	assert.Equal(t, 100.0, easy.FullScore)
	assert.Equal(t, 2, easy.Count)
	assert.Equal(t, 0, easy.Correct)
	assert.Equal(t, 2, easy.Partial)
	assert.InDelta(t, 90.0, easy.ScoringRate, 1e-9)

	hard := analysis.Bands[1]
	assert.Equal(t, models.DifficultyHard, hard.Level)
	assert.Equal(t, 10.0, hard.FullScore)
	assert.Equal(t, 1, hard.Count)
	assert.Equal(t, 0.0, hard.ScoringRate)
}

func TestRankingLossAnalysisAdvantage(t *testing.T) {
	svc := NewRankingService(nil)

	analysis, err := svc.LossAnalysis(hardQuestionSnapshot(), "b")
	require.NoError(t, err)
	// Full marks on the hard question counts as an advantage; full marks on
	// easy questions would not.
	assert.Equal(t, []models.QuestionRef{{SubjectName: "Math", QuestionCode: 2}}, analysis.Advantage)
	assert.Empty(t, analysis.FullyLost)
}

func TestRankingClassScores(t *testing.T) {
	svc := NewRankingService(nil)
	snapshot := fourStudentSnapshot()
	snapshot.Grouping = models.GroupByClass
	snapshot.GroupKey = "c1"
	snapshot.Students = []models.Student{
		{ID: "a", StudentCode: "001", Name: "Alice", ClassID: "c1"},
		{ID: "d", StudentCode: "004", Name: "Dan", ClassID: "c1"},
	}
	snapshot.Answers = []models.Answer{
		{ID: "a-m", StudentID: "a", QuestionID: "mq", FinalScore: score(55)},
		{ID: "a-p", StudentID: "a", QuestionID: "pq", FinalScore: score(35)},
		{ID: "d-m", StudentID: "d", QuestionID: "mq", FinalScore: score(40)},
		{ID: "d-p", StudentID: "d", QuestionID: "pq", FinalScore: score(30)},
	}

	report, err := svc.ClassScores(snapshot, 0.8)
	require.NoError(t, err)
	assert.Equal(t, "c1", report.ClassID)
	assert.Equal(t, 2, report.CohortSize)
	assert.Equal(t, 80.0, report.Average)
	assert.Equal(t, 90.0, report.Max)
	// Pass line at 80% of the 100-point exam: only Alice clears it.
	assert.Equal(t, 50.0, report.PassRate)

	require.Len(t, report.Students, 2)
	assert.Equal(t, "001", report.Students[0].StudentCode)
	assert.Equal(t, 1, report.Students[0].Rank)
	assert.Equal(t, "Dan", report.Students[1].StudentName)
	assert.Equal(t, 2, report.Students[1].Rank)

	// A non-positive threshold falls back to the 60% default.
	report, err = svc.ClassScores(snapshot, 0)
	require.NoError(t, err)
	assert.Equal(t, 100.0, report.PassRate)
}

func TestRankingPK(t *testing.T) {
	svc := NewRankingService(nil)

	pk, err := svc.PK(fourStudentSnapshot(), "b")
	require.NoError(t, err)
	assert.Equal(t, 1, pk.RankIndex)
	assert.Equal(t, 75.0, pk.RankPercent)
	assert.Equal(t, 4, pk.CohortSize)
	assert.Equal(t, 90.0, pk.TotalScore)
	assert.InDelta(t, 82.5, pk.CohortAvg, 1e-9)
	assert.Equal(t, 90.0, pk.CohortMax)
}
