package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/paperlens/exam-insight-api/internal/models"
)

// StudentRepository handles student persistence.
type StudentRepository struct {
	db *sqlx.DB
}

// NewStudentRepository creates a new student repository.
func NewStudentRepository(db *sqlx.DB) *StudentRepository {
	return &StudentRepository{db: db}
}

// Create inserts a new student.
func (r *StudentRepository) Create(ctx context.Context, student *models.Student) error {
	if student.ID == "" {
		student.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	student.CreatedAt = now
	student.UpdatedAt = now
	const query = `INSERT INTO students (id, student_code, name, class_id, created_at, updated_at)
        VALUES (:id, :student_code, :name, :class_id, :created_at, :updated_at)`
	if _, err := r.db.NamedExecContext(ctx, query, student); err != nil {
		return fmt.Errorf("insert student: %w", err)
	}
	return nil
}

// FindByID returns one student.
func (r *StudentRepository) FindByID(ctx context.Context, id string) (*models.Student, error) {
	var student models.Student
	const query = `SELECT id, student_code, name, class_id, created_at, updated_at FROM students WHERE id = $1`
	if err := r.db.GetContext(ctx, &student, query, id); err != nil {
		return nil, err
	}
	return &student, nil
}

// FindByCode returns the student carrying the school-issued code.
func (r *StudentRepository) FindByCode(ctx context.Context, studentCode string) (*models.Student, error) {
	var student models.Student
	const query = `SELECT id, student_code, name, class_id, created_at, updated_at FROM students WHERE student_code = $1`
	if err := r.db.GetContext(ctx, &student, query, studentCode); err != nil {
		return nil, err
	}
	return &student, nil
}

// List returns students matching the filter with a total count.
func (r *StudentRepository) List(ctx context.Context, filter models.StudentFilter) ([]models.Student, int, error) {
	where := " WHERE 1=1"
	var args []interface{}
	if filter.ClassID != "" {
		where += fmt.Sprintf(" AND class_id = $%d", len(args)+1)
		args = append(args, filter.ClassID)
	}
	if filter.Search != "" {
		where += fmt.Sprintf(" AND (name ILIKE $%d OR student_code ILIKE $%d)", len(args)+1, len(args)+1)
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

	query := `SELECT id, student_code, name, class_id, created_at, updated_at FROM students` +
		where + fmt.Sprintf(" ORDER BY student_code LIMIT %d OFFSET %d", pageSize, (page-1)*pageSize)
	var students []models.Student
	if err := r.db.SelectContext(ctx, &students, query, args...); err != nil {
		return nil, 0, fmt.Errorf("list students: %w", err)
	}

	var total int
	if err := r.db.GetContext(ctx, &total, "SELECT COUNT(*) FROM students"+where, args...); err != nil {
		return nil, 0, fmt.Errorf("count students: %w", err)
	}
	return students, total, nil
}
