package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/paperlens/exam-insight-api/internal/models"
)

// ExamRepository handles exam persistence.
type ExamRepository struct {
	db *sqlx.DB
}

// NewExamRepository creates a new exam repository.
func NewExamRepository(db *sqlx.DB) *ExamRepository {
	return &ExamRepository{db: db}
}

// Create inserts a new exam.
func (r *ExamRepository) Create(ctx context.Context, exam *models.Exam) error {
	if exam.ID == "" {
		exam.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	exam.CreatedAt = now
	exam.UpdatedAt = now
	const query = `INSERT INTO exams (id, name, intro, school_name, grade, uploader_id, chief_teacher_id, material_root, exam_date, created_at, updated_at)
        VALUES (:id, :name, :intro, :school_name, :grade, :uploader_id, :chief_teacher_id, :material_root, :exam_date, :created_at, :updated_at)`
	if _, err := r.db.NamedExecContext(ctx, query, exam); err != nil {
		return fmt.Errorf("insert exam: %w", err)
	}
	return nil
}

// FindByID returns one exam.
func (r *ExamRepository) FindByID(ctx context.Context, id string) (*models.Exam, error) {
	var exam models.Exam
	const query = `SELECT id, name, intro, school_name, grade, uploader_id, chief_teacher_id, material_root, exam_date, created_at, updated_at
        FROM exams WHERE id = $1`
	if err := r.db.GetContext(ctx, &exam, query, id); err != nil {
		return nil, err
	}
	return &exam, nil
}

// List returns exams matching the filter with a total count.
func (r *ExamRepository) List(ctx context.Context, filter models.ExamFilter) ([]models.Exam, int, error) {
	where := " WHERE 1=1"
	var args []interface{}
	if filter.SchoolName != "" {
		where += fmt.Sprintf(" AND school_name = $%d", len(args)+1)
		args = append(args, filter.SchoolName)
	}
	if filter.Grade != "" {
		where += fmt.Sprintf(" AND grade = $%d", len(args)+1)
		args = append(args, filter.Grade)
	}
	if filter.Search != "" {
		where += fmt.Sprintf(" AND name ILIKE $%d", len(args)+1)
		args = append(args, "%"+filter.Search+"%")
	}

	page := filter.Page
	if page <= 0 {
		page = 1
	}
	pageSize := filter.PageSize
	if pageSize <= 0 {
		pageSize = 20
	}

	query := `SELECT id, name, intro, school_name, grade, uploader_id, chief_teacher_id, material_root, exam_date, created_at, updated_at FROM exams` +
		where + fmt.Sprintf(" ORDER BY exam_date DESC LIMIT %d OFFSET %d", pageSize, (page-1)*pageSize)
	var exams []models.Exam
	if err := r.db.SelectContext(ctx, &exams, query, args...); err != nil {
		return nil, 0, fmt.Errorf("list exams: %w", err)
	}

	var total int
	if err := r.db.GetContext(ctx, &total, "SELECT COUNT(*) FROM exams"+where, args...); err != nil {
		return nil, 0, fmt.Errorf("count exams: %w", err)
	}
	return exams, total, nil
}

// UpdateMetadata updates the editable metadata of an exam.
func (r *ExamRepository) UpdateMetadata(ctx context.Context, exam *models.Exam) error {
	exam.UpdatedAt = time.Now().UTC()
	const query = `UPDATE exams SET name = :name, intro = :intro, school_name = :school_name, grade = :grade, updated_at = :updated_at WHERE id = :id`
	if _, err := r.db.NamedExecContext(ctx, query, exam); err != nil {
		return fmt.Errorf("update exam: %w", err)
	}
	return nil
}
