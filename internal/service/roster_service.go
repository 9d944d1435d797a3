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

type studentRepo interface {
	Create(ctx context.Context, student *models.Student) error
	FindByID(ctx context.Context, id string) (*models.Student, error)
	FindByCode(ctx context.Context, studentCode string) (*models.Student, error)
	List(ctx context.Context, filter models.StudentFilter) ([]models.Student, int, error)
}

type reviewerRepo interface {
	Create(ctx context.Context, reviewer *models.Reviewer) error
	FindByID(ctx context.Context, id string) (*models.Reviewer, error)
}

// RegisterStudentRequest carries the payload for enrolling a student.
type RegisterStudentRequest struct {
	StudentCode string `json:"student_code" validate:"required"`
	Name        string `json:"name" validate:"required"`
	ClassID     string `json:"class_id" validate:"required"`
}

// CreateReviewerRequest carries the payload for registering a reviewer.
type CreateReviewerRequest struct {
	Name string `json:"name" validate:"required"`
}

// RosterService manages the reference entities shared across exams:
// students and reviewers.
type RosterService struct {
	students  studentRepo
	reviewers reviewerRepo
	validator *validator.Validate
	logger    *zap.Logger
}

// NewRosterService constructs RosterService.
func NewRosterService(students studentRepo, reviewers reviewerRepo, validate *validator.Validate, logger *zap.Logger) *RosterService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &RosterService{students: students, reviewers: reviewers, validator: validate, logger: logger}
}

// RegisterStudent enrolls a student. Student codes are globally unique.
func (s *RosterService) RegisterStudent(ctx context.Context, req RegisterStudentRequest) (*models.Student, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid student payload")
	}
	if _, err := s.students.FindByCode(ctx, req.StudentCode); err == nil {
		return nil, appErrors.Clone(appErrors.ErrDuplicateKey, fmt.Sprintf("student code %s already registered", req.StudentCode))
	} else if err != sql.ErrNoRows {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to check student code")
	}
	student := &models.Student{StudentCode: req.StudentCode, Name: req.Name, ClassID: req.ClassID}
	if err := s.students.Create(ctx, student); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create student")
	}
	return student, nil
}

// GetStudent returns one student.
func (s *RosterService) GetStudent(ctx context.Context, id string) (*models.Student, error) {
	student, err := s.students.FindByID(ctx, id)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "student not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load student")
	}
	return student, nil
}

// ListStudents returns students matching the filter.
func (s *RosterService) ListStudents(ctx context.Context, filter models.StudentFilter) ([]models.Student, int, error) {
	students, total, err := s.students.List(ctx, filter)
	if err != nil {
		return nil, 0, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list students")
	}
	return students, total, nil
}

// CreateReviewer registers a reviewer.
func (s *RosterService) CreateReviewer(ctx context.Context, req CreateReviewerRequest) (*models.Reviewer, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid reviewer payload")
	}
	reviewer := &models.Reviewer{Name: req.Name}
	if err := s.reviewers.Create(ctx, reviewer); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create reviewer")
	}
	return reviewer, nil
}

// GetReviewer returns one reviewer.
func (s *RosterService) GetReviewer(ctx context.Context, id string) (*models.Reviewer, error) {
	reviewer, err := s.reviewers.FindByID(ctx, id)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "reviewer not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load reviewer")
	}
	return reviewer, nil
}
