package service

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/paperlens/exam-insight-api/internal/models"
	appErrors "github.com/paperlens/exam-insight-api/pkg/errors"
)

type examRepo interface {
	Create(ctx context.Context, exam *models.Exam) error
	FindByID(ctx context.Context, id string) (*models.Exam, error)
	List(ctx context.Context, filter models.ExamFilter) ([]models.Exam, int, error)
	UpdateMetadata(ctx context.Context, exam *models.Exam) error
}

type subjectRepo interface {
	Create(ctx context.Context, subject *models.Subject) error
	FindByID(ctx context.Context, id string) (*models.Subject, error)
	FindByName(ctx context.Context, examID, name string) (*models.Subject, error)
	ListByExam(ctx context.Context, examID string) ([]models.Subject, error)
}

type questionRepo interface {
	Create(ctx context.Context, question *models.Question) error
	FindByID(ctx context.Context, id string) (*models.Question, error)
	FindByCode(ctx context.Context, subjectID string, code int) (*models.Question, error)
	ListBySubject(ctx context.Context, subjectID string) ([]models.Question, error)
}

type reviewerAssigner interface {
	FindByID(ctx context.Context, id string) (*models.Reviewer, error)
	Assign(ctx context.Context, questionID, reviewerID string) error
	ListByQuestion(ctx context.Context, questionID string) ([]models.Reviewer, error)
}

// CreateExamRequest carries the payload for registering an exam.
type CreateExamRequest struct {
	Name           string    `json:"name" validate:"required"`
	Intro          string    `json:"intro"`
	SchoolName     string    `json:"school_name" validate:"required"`
	Grade          string    `json:"grade" validate:"required"`
	UploaderID     string    `json:"uploader_id" validate:"required"`
	ChiefTeacherID string    `json:"chief_teacher_id"`
	MaterialRoot   string    `json:"material_root"`
	ExamDate       time.Time `json:"exam_date"`
}

// UpdateExamRequest carries editable exam metadata. Structural fields are
// fixed after creation.
type UpdateExamRequest struct {
	Name           string `json:"name"`
	Intro          string `json:"intro"`
	ChiefTeacherID string `json:"chief_teacher_id"`
}

// CreateSubjectRequest carries the payload for adding a subject to an exam.
type CreateSubjectRequest struct {
	ExamID               string `json:"exam_id" validate:"required"`
	Name                 string `json:"name" validate:"required"`
	QuestionPaperPath    string `json:"question_paper_path"`
	RefAnswerPath        string `json:"ref_answer_path"`
	SampleSheetPath      string `json:"sample_sheet_path"`
	SheetDivision        string `json:"sheet_division"`
	ChoiceSheetLocations string `json:"choice_sheet_locations"`
}

// CreateQuestionRequest carries the payload for adding a question.
type CreateQuestionRequest struct {
	SubjectID       string              `json:"subject_id" validate:"required"`
	QuestionCode    int                 `json:"question_code" validate:"required,min=1"`
	QuestionText    string              `json:"question_text"`
	QuestionPath    string              `json:"question_path"`
	RefAnswerText   string              `json:"ref_answer_text"`
	RefAnswerPath   string              `json:"ref_answer_path"`
	TemplateText    string              `json:"template_text"`
	TemplatePath    string              `json:"template_path"`
	Strategy        string              `json:"strategy"`
	FullScore       float64             `json:"full_score" validate:"required"`
	QuestionType    models.QuestionType `json:"question_type" validate:"required"`
	Division        string              `json:"division"`
	SubDivisions    string              `json:"sub_divisions"`
	KnowledgePoints []string            `json:"knowledge_points"`
}

// ExamService manages the exam structure: exams, their subjects and
// questions, and reviewer authorisation per question.
type ExamService struct {
	exams     examRepo
	subjects  subjectRepo
	questions questionRepo
	reviewers reviewerAssigner
	validator *validator.Validate
	logger    *zap.Logger
}

// NewExamService constructs ExamService.
func NewExamService(exams examRepo, subjects subjectRepo, questions questionRepo, reviewers reviewerAssigner, validate *validator.Validate, logger *zap.Logger) *ExamService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ExamService{exams: exams, subjects: subjects, questions: questions, reviewers: reviewers, validator: validate, logger: logger}
}

// CreateExam registers a new exam.
func (s *ExamService) CreateExam(ctx context.Context, req CreateExamRequest) (*models.Exam, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid exam payload")
	}
	exam := &models.Exam{
		Name:           req.Name,
		Intro:          req.Intro,
		SchoolName:     req.SchoolName,
		Grade:          req.Grade,
		UploaderID:     req.UploaderID,
		ChiefTeacherID: req.ChiefTeacherID,
		MaterialRoot:   req.MaterialRoot,
		ExamDate:       req.ExamDate,
	}
	if err := s.exams.Create(ctx, exam); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create exam")
	}
	s.logger.Info("exam created", zap.String("exam_id", exam.ID), zap.String("name", exam.Name))
	return exam, nil
}

// GetExam returns one exam.
func (s *ExamService) GetExam(ctx context.Context, id string) (*models.Exam, error) {
	exam, err := s.exams.FindByID(ctx, id)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "exam not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load exam")
	}
	return exam, nil
}

// ListExams returns exams matching the filter.
func (s *ExamService) ListExams(ctx context.Context, filter models.ExamFilter) ([]models.Exam, int, error) {
	exams, total, err := s.exams.List(ctx, filter)
	if err != nil {
		return nil, 0, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list exams")
	}
	return exams, total, nil
}

// UpdateExam edits exam metadata.
func (s *ExamService) UpdateExam(ctx context.Context, id string, req UpdateExamRequest) (*models.Exam, error) {
	exam, err := s.GetExam(ctx, id)
	if err != nil {
		return nil, err
	}
	if req.Name != "" {
		exam.Name = req.Name
	}
	if req.Intro != "" {
		exam.Intro = req.Intro
	}
	if req.ChiefTeacherID != "" {
		exam.ChiefTeacherID = req.ChiefTeacherID
	}
	if err := s.exams.UpdateMetadata(ctx, exam); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to update exam")
	}
	return exam, nil
}

// CreateSubject adds a subject to an exam. The (exam, name) pair must be
// unique.
func (s *ExamService) CreateSubject(ctx context.Context, req CreateSubjectRequest) (*models.Subject, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid subject payload")
	}
	if _, err := s.GetExam(ctx, req.ExamID); err != nil {
		return nil, err
	}
	if _, err := s.subjects.FindByName(ctx, req.ExamID, req.Name); err == nil {
		return nil, appErrors.Clone(appErrors.ErrDuplicateKey, fmt.Sprintf("subject %q already exists in exam", req.Name))
	} else if err != sql.ErrNoRows {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to check subject name")
	}
	subject := &models.Subject{
		ExamID:               req.ExamID,
		Name:                 req.Name,
		QuestionPaperPath:    req.QuestionPaperPath,
		RefAnswerPath:        req.RefAnswerPath,
		SampleSheetPath:      req.SampleSheetPath,
		SheetDivision:        req.SheetDivision,
		ChoiceSheetLocations: req.ChoiceSheetLocations,
	}
	if err := s.subjects.Create(ctx, subject); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create subject")
	}
	return subject, nil
}

// ListSubjects returns an exam's subjects.
func (s *ExamService) ListSubjects(ctx context.Context, examID string) ([]models.Subject, error) {
	subjects, err := s.subjects.ListByExam(ctx, examID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list subjects")
	}
	return subjects, nil
}

// CreateQuestion adds a question to a subject. The (subject, question_code)
// pair must be unique and the full score strictly positive.
func (s *ExamService) CreateQuestion(ctx context.Context, req CreateQuestionRequest) (*models.Question, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid question payload")
	}
	if req.FullScore <= 0 {
		return nil, appErrors.Clone(appErrors.ErrInvalidScore, "full score must be positive")
	}
	if !req.QuestionType.Valid() {
		return nil, appErrors.Clone(appErrors.ErrValidation, fmt.Sprintf("unknown question type %q", req.QuestionType))
	}
	if _, err := s.subjects.FindByID(ctx, req.SubjectID); err != nil {
		if err == sql.ErrNoRows {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "subject not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load subject")
	}
	if _, err := s.questions.FindByCode(ctx, req.SubjectID, req.QuestionCode); err == nil {
		return nil, appErrors.Clone(appErrors.ErrDuplicateKey, fmt.Sprintf("question %d already exists in subject", req.QuestionCode))
	} else if err != sql.ErrNoRows {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to check question code")
	}
	question := &models.Question{
		SubjectID:       req.SubjectID,
		QuestionCode:    req.QuestionCode,
		QuestionText:    req.QuestionText,
		QuestionPath:    req.QuestionPath,
		RefAnswerText:   req.RefAnswerText,
		RefAnswerPath:   req.RefAnswerPath,
		TemplateText:    req.TemplateText,
		TemplatePath:    req.TemplatePath,
		Strategy:        req.Strategy,
		FullScore:       req.FullScore,
		QuestionType:    req.QuestionType,
		Division:        req.Division,
		SubDivisions:    req.SubDivisions,
		KnowledgePoints: req.KnowledgePoints,
	}
	if err := s.questions.Create(ctx, question); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create question")
	}
	return question, nil
}

// ListQuestions returns a subject's questions with knowledge points.
func (s *ExamService) ListQuestions(ctx context.Context, subjectID string) ([]models.Question, error) {
	questions, err := s.questions.ListBySubject(ctx, subjectID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list questions")
	}
	return questions, nil
}

// AssignReviewer authorises a reviewer for a question.
func (s *ExamService) AssignReviewer(ctx context.Context, questionID, reviewerID string) error {
	if _, err := s.questions.FindByID(ctx, questionID); err != nil {
		if err == sql.ErrNoRows {
			return appErrors.Clone(appErrors.ErrNotFound, "question not found")
		}
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load question")
	}
	if _, err := s.reviewers.FindByID(ctx, reviewerID); err != nil {
		if err == sql.ErrNoRows {
			return appErrors.Clone(appErrors.ErrNotFound, "reviewer not found")
		}
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load reviewer")
	}
	if err := s.reviewers.Assign(ctx, questionID, reviewerID); err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to assign reviewer")
	}
	return nil
}

// QuestionReviewers returns the reviewers authorised for a question.
func (s *ExamService) QuestionReviewers(ctx context.Context, questionID string) ([]models.Reviewer, error) {
	reviewers, err := s.reviewers.ListByQuestion(ctx, questionID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list reviewers")
	}
	return reviewers, nil
}
