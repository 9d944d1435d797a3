package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/paperlens/exam-insight-api/internal/models"
)

// SubjectRepository handles subject persistence.
type SubjectRepository struct {
	db *sqlx.DB
}

// NewSubjectRepository creates a new subject repository.
func NewSubjectRepository(db *sqlx.DB) *SubjectRepository {
	return &SubjectRepository{db: db}
}

// Create inserts a new subject.
func (r *SubjectRepository) Create(ctx context.Context, subject *models.Subject) error {
	if subject.ID == "" {
		subject.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	subject.CreatedAt = now
	subject.UpdatedAt = now
	const query = `INSERT INTO subjects (id, exam_id, name, question_paper_path, ref_answer_path, sample_sheet_path, sheet_division, choice_sheet_locations, created_at, updated_at)
        VALUES (:id, :exam_id, :name, :question_paper_path, :ref_answer_path, :sample_sheet_path, :sheet_division, :choice_sheet_locations, :created_at, :updated_at)`
	if _, err := r.db.NamedExecContext(ctx, query, subject); err != nil {
		return fmt.Errorf("insert subject: %w", err)
	}
	return nil
}

// FindByID returns one subject.
func (r *SubjectRepository) FindByID(ctx context.Context, id string) (*models.Subject, error) {
	var subject models.Subject
	const query = `SELECT id, exam_id, name, question_paper_path, ref_answer_path, sample_sheet_path, sheet_division, choice_sheet_locations, created_at, updated_at
        FROM subjects WHERE id = $1`
	if err := r.db.GetContext(ctx, &subject, query, id); err != nil {
		return nil, err
	}
	return &subject, nil
}

// FindByName returns the subject with the given name within an exam.
func (r *SubjectRepository) FindByName(ctx context.Context, examID, name string) (*models.Subject, error) {
	var subject models.Subject
	const query = `SELECT id, exam_id, name, question_paper_path, ref_answer_path, sample_sheet_path, sheet_division, choice_sheet_locations, created_at, updated_at
        FROM subjects WHERE exam_id = $1 AND name = $2`
	if err := r.db.GetContext(ctx, &subject, query, examID, name); err != nil {
		return nil, err
	}
	return &subject, nil
}

// ListByExam returns all subjects of an exam ordered by name.
func (r *SubjectRepository) ListByExam(ctx context.Context, examID string) ([]models.Subject, error) {
	var subjects []models.Subject
	const query = `SELECT id, exam_id, name, question_paper_path, ref_answer_path, sample_sheet_path, sheet_division, choice_sheet_locations, created_at, updated_at
        FROM subjects WHERE exam_id = $1 ORDER BY name`
	if err := r.db.SelectContext(ctx, &subjects, query, examID); err != nil {
		return nil, fmt.Errorf("list subjects: %w", err)
	}
	return subjects, nil
}
