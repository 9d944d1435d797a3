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

type answerRepo interface {
	FindByID(ctx context.Context, id string) (*models.Answer, error)
	SetFinal(ctx context.Context, answerID string, score *float64, comment string, pending bool) error
	ListPendingArbitration(ctx context.Context, examID string) ([]models.Answer, error)
}

type gradeRecordRepo interface {
	Append(ctx context.Context, record *models.GradeRecord) error
	ListByAnswer(ctx context.Context, answerID string) ([]models.GradeRecord, error)
}

type assignmentChecker interface {
	IsAssigned(ctx context.Context, questionID, reviewerID string) (bool, error)
}

type questionFetcher interface {
	FindByID(ctx context.Context, id string) (*models.Question, error)
}

type subjectFetcher interface {
	FindByID(ctx context.Context, id string) (*models.Subject, error)
}

// SubmitGradeRequest carries one reviewer's score for an answer.
type SubmitGradeRequest struct {
	AnswerID   string  `json:"answer_id" validate:"required"`
	ReviewerID string  `json:"reviewer_id" validate:"required"`
	Score      float64 `json:"score"`
	Comment    string  `json:"comment"`
}

// GradeView pairs an answer with its full record trail and current
// resolution state.
type GradeView struct {
	Answer     *models.Answer       `json:"answer"`
	Records    []models.GradeRecord `json:"records"`
	Resolution models.Resolution    `json:"resolution"`
}

// GradingService runs the grading flow: reviewers append records, the
// scoring aggregator re-derives the answer's final score after every
// append, and disagreements park the answer for arbitration. Appending is
// the only write path for scores; the final score column is never set
// directly by a reviewer.
type GradingService struct {
	answers     answerRepo
	records     gradeRecordRepo
	assignments assignmentChecker
	questions   questionFetcher
	subjects    subjectFetcher
	scoring     *ScoringService
	cache       *CacheService
	validator   *validator.Validate
	logger      *zap.Logger
}

// NewGradingService constructs GradingService.
func NewGradingService(answers answerRepo, records gradeRecordRepo, assignments assignmentChecker, questions questionFetcher, subjects subjectFetcher, scoring *ScoringService, cache *CacheService, validate *validator.Validate, logger *zap.Logger) *GradingService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &GradingService{
		answers:     answers,
		records:     records,
		assignments: assignments,
		questions:   questions,
		subjects:    subjects,
		scoring:     scoring,
		cache:       cache,
		validator:   validate,
		logger:      logger,
	}
}

// SubmitGrade appends a reviewer's record and re-resolves the answer. The
// reviewer must be assigned to the answer's question and the score must sit
// in [0, full_score].
func (s *GradingService) SubmitGrade(ctx context.Context, req SubmitGradeRequest) (*GradeView, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid grade payload")
	}
	answer, question, err := s.loadAnswer(ctx, req.AnswerID)
	if err != nil {
		return nil, err
	}
	assigned, err := s.assignments.IsAssigned(ctx, question.ID, req.ReviewerID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to check assignment")
	}
	if !assigned {
		return nil, appErrors.Clone(appErrors.ErrForbidden, "reviewer not assigned to this question")
	}
	if req.Score < 0 || req.Score > question.FullScore {
		return nil, appErrors.Clone(appErrors.ErrInvalidScore,
			fmt.Sprintf("score %.2f outside [0, %.2f]", req.Score, question.FullScore))
	}

	record := &models.GradeRecord{
		AnswerID:   answer.ID,
		ReviewerID: req.ReviewerID,
		Score:      req.Score,
		Comment:    req.Comment,
	}
	if err := s.records.Append(ctx, record); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to append grade record")
	}
	return s.resolve(ctx, answer, question)
}

// Resolve re-derives an answer's final score from its record trail. Safe to
// call any number of times: the verdict depends only on the records.
func (s *GradingService) Resolve(ctx context.Context, answerID string) (*GradeView, error) {
	answer, question, err := s.loadAnswer(ctx, answerID)
	if err != nil {
		return nil, err
	}
	return s.resolve(ctx, answer, question)
}

// Trail returns an answer with its records and current resolution without
// writing anything.
func (s *GradingService) Trail(ctx context.Context, answerID string) (*GradeView, error) {
	answer, question, err := s.loadAnswer(ctx, answerID)
	if err != nil {
		return nil, err
	}
	records, err := s.records.ListByAnswer(ctx, answer.ID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list grade records")
	}
	resolution, err := s.scoring.Resolve(question, records)
	if err != nil {
		return nil, err
	}
	return &GradeView{Answer: answer, Records: records, Resolution: resolution}, nil
}

// PendingArbitration lists an exam's answers parked for human settlement.
func (s *GradingService) PendingArbitration(ctx context.Context, examID string) ([]models.Answer, error) {
	answers, err := s.answers.ListPendingArbitration(ctx, examID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list pending answers")
	}
	return answers, nil
}

func (s *GradingService) loadAnswer(ctx context.Context, answerID string) (*models.Answer, *models.Question, error) {
	answer, err := s.answers.FindByID(ctx, answerID)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, nil, appErrors.Clone(appErrors.ErrNotFound, "answer not found")
		}
		return nil, nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load answer")
	}
	question, err := s.questions.FindByID(ctx, answer.QuestionID)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, nil, appErrors.Clone(appErrors.ErrNotFound, "question not found")
		}
		return nil, nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load question")
	}
	return answer, question, nil
}

func (s *GradingService) resolve(ctx context.Context, answer *models.Answer, question *models.Question) (*GradeView, error) {
	records, err := s.records.ListByAnswer(ctx, answer.ID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list grade records")
	}
	resolution, err := s.scoring.Resolve(question, records)
	if err != nil {
		return nil, err
	}

	pending := resolution.State == models.ReviewNeedsArbitration
	if err := s.answers.SetFinal(ctx, answer.ID, resolution.Score, resolution.Comment, pending); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to store resolution")
	}
	answer.FinalScore = resolution.Score
	answer.FinalComment = resolution.Comment
	answer.PendingArbitration = pending

	if s.cache != nil && s.cache.Enabled() {
		if subject, err := s.subjects.FindByID(ctx, question.SubjectID); err == nil {
			if err := s.cache.Invalidate(ctx, analyticsKeyPattern(subject.ExamID)); err != nil {
				s.logger.Warn("analytics cache invalidation failed", zap.String("exam_id", subject.ExamID), zap.Error(err))
			}
		} else {
			s.logger.Warn("subject lookup for cache invalidation failed", zap.String("subject_id", question.SubjectID), zap.Error(err))
		}
	}
	return &GradeView{Answer: answer, Records: records, Resolution: resolution}, nil
}
