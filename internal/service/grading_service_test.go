package service

import (
	"context"
	"database/sql"
	"testing"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/paperlens/exam-insight-api/internal/models"
	appErrors "github.com/paperlens/exam-insight-api/pkg/errors"
)

type mockAnswerRepo struct {
	answers map[string]*models.Answer
}

func (m *mockAnswerRepo) FindByID(ctx context.Context, id string) (*models.Answer, error) {
	if answer, ok := m.answers[id]; ok {
		copied := *answer
		return &copied, nil
	}
	return nil, sql.ErrNoRows
}

func (m *mockAnswerRepo) SetFinal(ctx context.Context, answerID string, score *float64, comment string, pending bool) error {
	answer, ok := m.answers[answerID]
	if !ok {
		return sql.ErrNoRows
	}
	answer.FinalScore = score
	answer.FinalComment = comment
	answer.PendingArbitration = pending
	return nil
}

func (m *mockAnswerRepo) ListPendingArbitration(ctx context.Context, examID string) ([]models.Answer, error) {
	var pending []models.Answer
	for _, answer := range m.answers {
		if answer.PendingArbitration {
			pending = append(pending, *answer)
		}
	}
	return pending, nil
}

type mockGradeRecordRepo struct {
	records map[string][]models.GradeRecord
}

func (m *mockGradeRecordRepo) Append(ctx context.Context, record *models.GradeRecord) error {
	if m.records == nil {
		m.records = make(map[string][]models.GradeRecord)
	}
	if record.RecordedAt.IsZero() {
		record.RecordedAt = time.Now().UTC()
	}
	m.records[record.AnswerID] = append(m.records[record.AnswerID], *record)
	return nil
}

func (m *mockGradeRecordRepo) ListByAnswer(ctx context.Context, answerID string) ([]models.GradeRecord, error) {
	return m.records[answerID], nil
}

type mockAssignments struct {
	assigned map[string]bool
}

func (m *mockAssignments) IsAssigned(ctx context.Context, questionID, reviewerID string) (bool, error) {
	return m.assigned[questionID+"/"+reviewerID], nil
}

type mockQuestionFetcher struct {
	questions map[string]*models.Question
}

func (m *mockQuestionFetcher) FindByID(ctx context.Context, id string) (*models.Question, error) {
	if question, ok := m.questions[id]; ok {
		return question, nil
	}
	return nil, sql.ErrNoRows
}

type mockSubjectFetcher struct {
	subjects map[string]*models.Subject
}

func (m *mockSubjectFetcher) FindByID(ctx context.Context, id string) (*models.Subject, error) {
	if subject, ok := m.subjects[id]; ok {
		return subject, nil
	}
	return nil, sql.ErrNoRows
}

func newGradingFixture() (*GradingService, *mockAnswerRepo, *mockGradeRecordRepo) {
	answers := &mockAnswerRepo{answers: map[string]*models.Answer{
		"ans1": {ID: "ans1", StudentID: "stu1", QuestionID: "q1", QuestionCode: 1},
	}}
	records := &mockGradeRecordRepo{}
	assignments := &mockAssignments{assigned: map[string]bool{
		"q1/rev1": true,
		"q1/rev2": true,
	}}
	questions := &mockQuestionFetcher{questions: map[string]*models.Question{
		"q1": {ID: "q1", SubjectID: "sub1", QuestionCode: 1, FullScore: 10, QuestionType: models.QuestionFreeResponse},
	}}
	subjects := &mockSubjectFetcher{subjects: map[string]*models.Subject{
		"sub1": {ID: "sub1", ExamID: "exam1", Name: "Math"},
	}}
	scoring := NewScoringService(models.ScoringPolicy{DefaultTolerance: 0.10}, nil)
	svc := NewGradingService(answers, records, assignments, questions, subjects, scoring, nil, validator.New(), zap.NewNop())
	return svc, answers, records
}

func TestSubmitGradeSingleReviewer(t *testing.T) {
	svc, answers, _ := newGradingFixture()

	view, err := svc.SubmitGrade(context.Background(), SubmitGradeRequest{
		AnswerID: "ans1", ReviewerID: "rev1", Score: 8, Comment: "good",
	})
	require.NoError(t, err)
	assert.Equal(t, models.ReviewResolved, view.Resolution.State)
	require.NotNil(t, view.Answer.FinalScore)
	assert.Equal(t, 8.0, *view.Answer.FinalScore)
	assert.Equal(t, "good", view.Answer.FinalComment)
	assert.False(t, answers.answers["ans1"].PendingArbitration)
}

func TestSubmitGradeUnassignedReviewer(t *testing.T) {
	svc, _, _ := newGradingFixture()

	_, err := svc.SubmitGrade(context.Background(), SubmitGradeRequest{
		AnswerID: "ans1", ReviewerID: "intruder", Score: 8,
	})
	require.Error(t, err)
	assert.True(t, appErrors.Is(err, appErrors.ErrForbidden))
}

func TestSubmitGradeOutOfRange(t *testing.T) {
	svc, _, _ := newGradingFixture()

	_, err := svc.SubmitGrade(context.Background(), SubmitGradeRequest{
		AnswerID: "ans1", ReviewerID: "rev1", Score: 10.5,
	})
	require.Error(t, err)
	assert.True(t, appErrors.Is(err, appErrors.ErrInvalidScore))
}

func TestSubmitGradeDisagreementParksForArbitration(t *testing.T) {
	svc, answers, _ := newGradingFixture()

	_, err := svc.SubmitGrade(context.Background(), SubmitGradeRequest{AnswerID: "ans1", ReviewerID: "rev1", Score: 3})
	require.NoError(t, err)
	view, err := svc.SubmitGrade(context.Background(), SubmitGradeRequest{AnswerID: "ans1", ReviewerID: "rev2", Score: 9})
	require.NoError(t, err)

	assert.Equal(t, models.ReviewNeedsArbitration, view.Resolution.State)
	assert.Nil(t, view.Answer.FinalScore)
	assert.True(t, answers.answers["ans1"].PendingArbitration)

	pending, err := svc.PendingArbitration(context.Background(), "exam1")
	require.NoError(t, err)
	assert.Len(t, pending, 1)
}

func TestSubmitGradeAgreementResolvesToMean(t *testing.T) {
	svc, _, _ := newGradingFixture()

	_, err := svc.SubmitGrade(context.Background(), SubmitGradeRequest{AnswerID: "ans1", ReviewerID: "rev1", Score: 8})
	require.NoError(t, err)
	view, err := svc.SubmitGrade(context.Background(), SubmitGradeRequest{AnswerID: "ans1", ReviewerID: "rev2", Score: 8.5})
	require.NoError(t, err)

	assert.Equal(t, models.ReviewResolved, view.Resolution.State)
	require.NotNil(t, view.Answer.FinalScore)
	assert.Equal(t, 8.25, *view.Answer.FinalScore)
}

func TestResolveIsIdempotent(t *testing.T) {
	svc, _, _ := newGradingFixture()

	_, err := svc.SubmitGrade(context.Background(), SubmitGradeRequest{AnswerID: "ans1", ReviewerID: "rev1", Score: 7})
	require.NoError(t, err)

	first, err := svc.Resolve(context.Background(), "ans1")
	require.NoError(t, err)
	second, err := svc.Resolve(context.Background(), "ans1")
	require.NoError(t, err)
	assert.Equal(t, first.Resolution, second.Resolution)
	assert.Equal(t, *first.Answer.FinalScore, *second.Answer.FinalScore)
}

func TestTrailDoesNotWrite(t *testing.T) {
	svc, answers, _ := newGradingFixture()

	_, err := svc.SubmitGrade(context.Background(), SubmitGradeRequest{AnswerID: "ans1", ReviewerID: "rev1", Score: 7})
	require.NoError(t, err)
	stored := *answers.answers["ans1"]

	view, err := svc.Trail(context.Background(), "ans1")
	require.NoError(t, err)
	assert.Len(t, view.Records, 1)
	assert.Equal(t, stored, *answers.answers["ans1"])
}

func TestSubmitGradeUnknownAnswer(t *testing.T) {
	svc, _, _ := newGradingFixture()

	_, err := svc.SubmitGrade(context.Background(), SubmitGradeRequest{AnswerID: "ghost", ReviewerID: "rev1", Score: 5})
	require.Error(t, err)
	assert.True(t, appErrors.Is(err, appErrors.ErrNotFound))
}
