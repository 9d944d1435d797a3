package service

import (
	"context"
	"database/sql"
	"testing"

	"github.com/go-playground/validator/v10"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/paperlens/exam-insight-api/internal/models"
	appErrors "github.com/paperlens/exam-insight-api/pkg/errors"
)

type mockSheetRepo struct {
	sheets map[string]*models.AnswerSheet
}

func (m *mockSheetRepo) Create(ctx context.Context, sheet *models.AnswerSheet) error {
	if m.sheets == nil {
		m.sheets = make(map[string]*models.AnswerSheet)
	}
	if sheet.ID == "" {
		sheet.ID = "sheet-generated"
	}
	copied := *sheet
	m.sheets[sheet.ID] = &copied
	return nil
}

func (m *mockSheetRepo) FindByID(ctx context.Context, id string) (*models.AnswerSheet, error) {
	if sheet, ok := m.sheets[id]; ok {
		copied := *sheet
		return &copied, nil
	}
	return nil, sql.ErrNoRows
}

func (m *mockSheetRepo) BindStudent(ctx context.Context, sheetID, studentID string) error {
	sheet, ok := m.sheets[sheetID]
	if !ok {
		return sql.ErrNoRows
	}
	sheet.StudentID = &studentID
	return nil
}

func (m *mockSheetRepo) ListUnbound(ctx context.Context, examID string) ([]models.AnswerSheet, error) {
	var unbound []models.AnswerSheet
	for _, sheet := range m.sheets {
		if sheet.ExamID == examID && sheet.StudentID == nil {
			unbound = append(unbound, *sheet)
		}
	}
	return unbound, nil
}

func (m *mockSheetRepo) ListBySubject(ctx context.Context, subjectID string) ([]models.AnswerSheet, error) {
	var sheets []models.AnswerSheet
	for _, sheet := range m.sheets {
		if sheet.SubjectID == subjectID {
			sheets = append(sheets, *sheet)
		}
	}
	return sheets, nil
}

type mockStudentResolver struct {
	byCode map[string]*models.Student
}

func (m *mockStudentResolver) FindByCode(ctx context.Context, studentCode string) (*models.Student, error) {
	if student, ok := m.byCode[studentCode]; ok {
		return student, nil
	}
	return nil, sql.ErrNoRows
}

type mockAnswerWriter struct {
	created []models.Answer
}

func (m *mockAnswerWriter) Create(ctx context.Context, answer *models.Answer) error {
	if answer.ID == "" {
		answer.ID = "answer-generated"
	}
	m.created = append(m.created, *answer)
	return nil
}

func (m *mockAnswerWriter) FindByQuestionAndStudent(ctx context.Context, questionID, studentID string) (*models.Answer, error) {
	for i := range m.created {
		if m.created[i].QuestionID == questionID && m.created[i].StudentID == studentID {
			return &m.created[i], nil
		}
	}
	return nil, sql.ErrNoRows
}

type mockQuestionReader struct {
	questions map[int]*models.Question
}

func (m *mockQuestionReader) FindByCode(ctx context.Context, subjectID string, code int) (*models.Question, error) {
	if question, ok := m.questions[code]; ok && question.SubjectID == subjectID {
		return question, nil
	}
	return nil, sql.ErrNoRows
}

func newSheetFixture() (*SheetService, *mockSheetRepo, *mockAnswerWriter) {
	sheets := &mockSheetRepo{}
	students := &mockStudentResolver{
		byCode: map[string]*models.Student{"20250001": {ID: "stu1", StudentCode: "20250001", Name: "Alice", ClassID: "c1"}},
	}
	answers := &mockAnswerWriter{}
	questions := &mockQuestionReader{questions: map[int]*models.Question{
		3: {ID: "q3", SubjectID: "sub1", QuestionCode: 3, FullScore: 10, QuestionType: models.QuestionFreeResponse},
	}}
	svc := NewSheetService(sheets, students, answers, questions, validator.New(), zap.NewNop())
	return svc, sheets, answers
}

func TestIngestNeverBindsAutomatically(t *testing.T) {
	svc, _, _ := newSheetFixture()

	sheet, err := svc.Ingest(context.Background(), IngestSheetRequest{
		ExamID: "exam1", SubjectID: "sub1", StudentCode: "20250001", RawImagePath: "sheets/raw1.png",
	})
	require.NoError(t, err)
	assert.Nil(t, sheet.StudentID)
	assert.False(t, sheet.Bound())
	assert.Equal(t, "20250001", sheet.StudentCode)

	unbound, err := svc.ListUnbound(context.Background(), "exam1")
	require.NoError(t, err)
	assert.Len(t, unbound, 1)
}

func TestBindByStudentCode(t *testing.T) {
	svc, _, _ := newSheetFixture()

	sheet, err := svc.Ingest(context.Background(), IngestSheetRequest{
		ExamID: "exam1", SubjectID: "sub1", RawImagePath: "sheets/raw3.png",
	})
	require.NoError(t, err)

	bound, err := svc.Bind(context.Background(), sheet.ID, "20250001")
	require.NoError(t, err)
	require.NotNil(t, bound.StudentID)
	assert.Equal(t, "stu1", *bound.StudentID)
}

func TestBindFallsBackToExtractedCode(t *testing.T) {
	svc, _, _ := newSheetFixture()

	sheet, err := svc.Ingest(context.Background(), IngestSheetRequest{
		ExamID: "exam1", SubjectID: "sub1", StudentCode: "20250001", RawImagePath: "sheets/raw4.png",
	})
	require.NoError(t, err)

	bound, err := svc.Bind(context.Background(), sheet.ID, "")
	require.NoError(t, err)
	require.NotNil(t, bound.StudentID)
	assert.Equal(t, "stu1", *bound.StudentID)
}

func TestBindAlreadyBoundSheet(t *testing.T) {
	svc, _, _ := newSheetFixture()

	sheet, err := svc.Ingest(context.Background(), IngestSheetRequest{
		ExamID: "exam1", SubjectID: "sub1", StudentCode: "20250001", RawImagePath: "sheets/raw5.png",
	})
	require.NoError(t, err)

	_, err = svc.Bind(context.Background(), sheet.ID, "20250001")
	require.NoError(t, err)
	_, err = svc.Bind(context.Background(), sheet.ID, "20250001")
	require.Error(t, err)
	assert.True(t, appErrors.Is(err, appErrors.ErrConflict))
}

func TestBindUnknownCodeIsUnresolved(t *testing.T) {
	svc, _, _ := newSheetFixture()

	sheet, err := svc.Ingest(context.Background(), IngestSheetRequest{
		ExamID: "exam1", SubjectID: "sub1", StudentCode: "99999999", RawImagePath: "sheets/raw6.png",
	})
	require.NoError(t, err)

	_, err = svc.Bind(context.Background(), sheet.ID, "99999999")
	require.Error(t, err)
	assert.True(t, appErrors.Is(err, appErrors.ErrUnresolvedIdentity))

	unbound, err := svc.ListUnbound(context.Background(), "exam1")
	require.NoError(t, err)
	assert.Len(t, unbound, 1)
}

func TestBindWithoutAnyCode(t *testing.T) {
	svc, _, _ := newSheetFixture()

	sheet, err := svc.Ingest(context.Background(), IngestSheetRequest{
		ExamID: "exam1", SubjectID: "sub1", RawImagePath: "sheets/raw7.png",
	})
	require.NoError(t, err)

	_, err = svc.Bind(context.Background(), sheet.ID, "")
	require.Error(t, err)
	assert.True(t, appErrors.Is(err, appErrors.ErrValidation))
}

func TestRecordAnswerOnBoundSheet(t *testing.T) {
	svc, _, answers := newSheetFixture()

	sheet, err := svc.Ingest(context.Background(), IngestSheetRequest{
		ExamID: "exam1", SubjectID: "sub1", StudentCode: "20250001", RawImagePath: "sheets/raw8.png",
	})
	require.NoError(t, err)
	_, err = svc.Bind(context.Background(), sheet.ID, "20250001")
	require.NoError(t, err)

	answer, err := svc.RecordAnswer(context.Background(), RecordAnswerRequest{
		SheetID: sheet.ID, QuestionCode: 3, AnswerText: "x = 4",
	})
	require.NoError(t, err)
	assert.Equal(t, "stu1", answer.StudentID)
	assert.Equal(t, "q3", answer.QuestionID)
	assert.Equal(t, 3, answer.QuestionCode)
	assert.Len(t, answers.created, 1)
}

func TestRecordAnswerOnUnboundSheet(t *testing.T) {
	svc, _, _ := newSheetFixture()

	sheet, err := svc.Ingest(context.Background(), IngestSheetRequest{
		ExamID: "exam1", SubjectID: "sub1", StudentCode: "20250001", RawImagePath: "sheets/raw9.png",
	})
	require.NoError(t, err)

	_, err = svc.RecordAnswer(context.Background(), RecordAnswerRequest{SheetID: sheet.ID, QuestionCode: 3})
	require.Error(t, err)
	assert.True(t, appErrors.Is(err, appErrors.ErrUnresolvedIdentity))
}

func TestRecordAnswerDuplicate(t *testing.T) {
	svc, _, _ := newSheetFixture()

	sheet, err := svc.Ingest(context.Background(), IngestSheetRequest{
		ExamID: "exam1", SubjectID: "sub1", StudentCode: "20250001", RawImagePath: "sheets/raw10.png",
	})
	require.NoError(t, err)
	_, err = svc.Bind(context.Background(), sheet.ID, "20250001")
	require.NoError(t, err)

	_, err = svc.RecordAnswer(context.Background(), RecordAnswerRequest{SheetID: sheet.ID, QuestionCode: 3})
	require.NoError(t, err)
	_, err = svc.RecordAnswer(context.Background(), RecordAnswerRequest{SheetID: sheet.ID, QuestionCode: 3})
	require.Error(t, err)
	assert.True(t, appErrors.Is(err, appErrors.ErrDuplicateKey))
}

func TestRecordAnswerUnknownQuestionCode(t *testing.T) {
	svc, _, _ := newSheetFixture()

	sheet, err := svc.Ingest(context.Background(), IngestSheetRequest{
		ExamID: "exam1", SubjectID: "sub1", StudentCode: "20250001", RawImagePath: "sheets/raw11.png",
	})
	require.NoError(t, err)
	_, err = svc.Bind(context.Background(), sheet.ID, "20250001")
	require.NoError(t, err)

	_, err = svc.RecordAnswer(context.Background(), RecordAnswerRequest{SheetID: sheet.ID, QuestionCode: 42})
	require.Error(t, err)
	assert.True(t, appErrors.Is(err, appErrors.ErrNotFound))
}
