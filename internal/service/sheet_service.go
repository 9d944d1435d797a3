package service

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/paperlens/exam-insight-api/internal/models"
	appErrors "github.com/paperlens/exam-insight-api/pkg/errors"
)

type sheetRepo interface {
	Create(ctx context.Context, sheet *models.AnswerSheet) error
	FindByID(ctx context.Context, id string) (*models.AnswerSheet, error)
	BindStudent(ctx context.Context, sheetID, studentID string) error
	ListUnbound(ctx context.Context, examID string) ([]models.AnswerSheet, error)
	ListBySubject(ctx context.Context, subjectID string) ([]models.AnswerSheet, error)
}

type studentResolver interface {
	FindByCode(ctx context.Context, studentCode string) (*models.Student, error)
}

type answerWriter interface {
	Create(ctx context.Context, answer *models.Answer) error
	FindByQuestionAndStudent(ctx context.Context, questionID, studentID string) (*models.Answer, error)
}

type questionReader interface {
	FindByCode(ctx context.Context, subjectID string, code int) (*models.Question, error)
}

// IngestSheetRequest carries one scanned sheet entering the system.
// StudentCode is the identity extracted from the sheet header and may be
// empty or wrong; it is stored as-is and only acted on by Bind.
type IngestSheetRequest struct {
	ExamID       string `json:"exam_id" validate:"required"`
	SubjectID    string `json:"subject_id" validate:"required"`
	StudentCode  string `json:"student_code"`
	RawImagePath string `json:"raw_image_path" validate:"required"`
}

// RecordAnswerRequest carries one segmented answer extracted from a sheet.
type RecordAnswerRequest struct {
	SheetID         string `json:"sheet_id" validate:"required"`
	QuestionCode    int    `json:"question_code" validate:"required,min=1"`
	AnswerText      string `json:"answer_text"`
	AnswerImagePath string `json:"answer_image_path"`
}

// SheetService ingests scanned answer sheets, resolves their identity and
// records the answers segmented out of them.
type SheetService struct {
	sheets    sheetRepo
	students  studentResolver
	answers   answerWriter
	questions questionReader
	validator *validator.Validate
	logger    *zap.Logger
}

// NewSheetService constructs SheetService.
func NewSheetService(sheets sheetRepo, students studentResolver, answers answerWriter, questions questionReader, validate *validator.Validate, logger *zap.Logger) *SheetService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &SheetService{sheets: sheets, students: students, answers: answers, questions: questions, validator: validate, logger: logger}
}

// Ingest stores a scanned sheet. The extracted student code is recorded
// verbatim but never resolved here: every sheet enters unbound and identity
// is established only through the explicit Bind operation.
func (s *SheetService) Ingest(ctx context.Context, req IngestSheetRequest) (*models.AnswerSheet, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid sheet payload")
	}
	sheet := &models.AnswerSheet{
		ExamID:       req.ExamID,
		SubjectID:    req.SubjectID,
		StudentCode:  req.StudentCode,
		RawImagePath: req.RawImagePath,
	}
	if err := s.sheets.Create(ctx, sheet); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to store sheet")
	}
	s.logger.Info("sheet ingested",
		zap.String("sheet_id", sheet.ID),
		zap.String("student_code", req.StudentCode))
	return sheet, nil
}

// Bind resolves an unbound sheet to the student carrying studentCode. When
// no registered student carries the code the sheet stays unbound and the
// caller gets UnresolvedIdentity.
func (s *SheetService) Bind(ctx context.Context, sheetID, studentCode string) (*models.AnswerSheet, error) {
	sheet, err := s.Get(ctx, sheetID)
	if err != nil {
		return nil, err
	}
	if sheet.Bound() {
		return nil, appErrors.Clone(appErrors.ErrConflict, "sheet already bound")
	}
	if studentCode == "" {
		studentCode = sheet.StudentCode
	}
	if studentCode == "" {
		return nil, appErrors.Clone(appErrors.ErrValidation, "student code required")
	}
	student, err := s.students.FindByCode(ctx, studentCode)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, appErrors.Clone(appErrors.ErrUnresolvedIdentity, fmt.Sprintf("no student carries code %s", studentCode))
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to resolve student code")
	}
	if err := s.sheets.BindStudent(ctx, sheetID, student.ID); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to bind sheet")
	}
	sheet.StudentID = &student.ID
	return sheet, nil
}

// Get returns one sheet.
func (s *SheetService) Get(ctx context.Context, id string) (*models.AnswerSheet, error) {
	sheet, err := s.sheets.FindByID(ctx, id)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "sheet not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load sheet")
	}
	return sheet, nil
}

// ListUnbound returns an exam's sheets still awaiting identity resolution.
func (s *SheetService) ListUnbound(ctx context.Context, examID string) ([]models.AnswerSheet, error) {
	sheets, err := s.sheets.ListUnbound(ctx, examID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list sheets")
	}
	return sheets, nil
}

// RecordAnswer creates the answer row for one segmented response. The sheet
// must already be bound: answers always belong to a known student, so an
// unbound sheet is rejected with UnresolvedIdentity. One answer per
// (question, student) pair.
func (s *SheetService) RecordAnswer(ctx context.Context, req RecordAnswerRequest) (*models.Answer, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid answer payload")
	}
	sheet, err := s.Get(ctx, req.SheetID)
	if err != nil {
		return nil, err
	}
	if !sheet.Bound() {
		return nil, appErrors.Clone(appErrors.ErrUnresolvedIdentity, "sheet is not bound to a student")
	}
	question, err := s.questions.FindByCode(ctx, sheet.SubjectID, req.QuestionCode)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, appErrors.Clone(appErrors.ErrNotFound, fmt.Sprintf("question %d not found in subject", req.QuestionCode))
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load question")
	}
	if _, err := s.answers.FindByQuestionAndStudent(ctx, question.ID, *sheet.StudentID); err == nil {
		return nil, appErrors.Clone(appErrors.ErrDuplicateKey, "answer already recorded for this question and student")
	} else if err != sql.ErrNoRows {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to check answer")
	}
	answer := &models.Answer{
		SheetID:         &sheet.ID,
		StudentID:       *sheet.StudentID,
		QuestionID:      question.ID,
		QuestionCode:    question.QuestionCode,
		AnswerText:      req.AnswerText,
		AnswerImagePath: req.AnswerImagePath,
	}
	if err := s.answers.Create(ctx, answer); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to store answer")
	}
	return answer, nil
}
