package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/paperlens/exam-insight-api/internal/models"
)

// SheetRepository handles raw answer-sheet persistence. Sheets are created
// at ingestion, mutated only when identity resolution binds a student, and
// never deleted.
type SheetRepository struct {
	db *sqlx.DB
}

// NewSheetRepository creates a new sheet repository.
func NewSheetRepository(db *sqlx.DB) *SheetRepository {
	return &SheetRepository{db: db}
}

// Create inserts a new answer sheet.
func (r *SheetRepository) Create(ctx context.Context, sheet *models.AnswerSheet) error {
	if sheet.ID == "" {
		sheet.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	sheet.CreatedAt = now
	sheet.UpdatedAt = now
	const query = `INSERT INTO answer_sheets (id, exam_id, subject_id, student_id, student_code, raw_image_path, created_at, updated_at)
        VALUES (:id, :exam_id, :subject_id, :student_id, :student_code, :raw_image_path, :created_at, :updated_at)`
	if _, err := r.db.NamedExecContext(ctx, query, sheet); err != nil {
		return fmt.Errorf("insert answer sheet: %w", err)
	}
	return nil
}

// FindByID returns one sheet.
func (r *SheetRepository) FindByID(ctx context.Context, id string) (*models.AnswerSheet, error) {
	var sheet models.AnswerSheet
	const query = `SELECT id, exam_id, subject_id, student_id, student_code, raw_image_path, created_at, updated_at
        FROM answer_sheets WHERE id = $1`
	if err := r.db.GetContext(ctx, &sheet, query, id); err != nil {
		return nil, err
	}
	return &sheet, nil
}

// BindStudent resolves the sheet's identity to a student.
func (r *SheetRepository) BindStudent(ctx context.Context, sheetID, studentID string) error {
	const query = `UPDATE answer_sheets SET student_id = $1, updated_at = $2 WHERE id = $3`
	if _, err := r.db.ExecContext(ctx, query, studentID, time.Now().UTC(), sheetID); err != nil {
		return fmt.Errorf("bind sheet: %w", err)
	}
	return nil
}

// ListUnbound returns sheets awaiting identity resolution for an exam.
func (r *SheetRepository) ListUnbound(ctx context.Context, examID string) ([]models.AnswerSheet, error) {
	var sheets []models.AnswerSheet
	const query = `SELECT id, exam_id, subject_id, student_id, student_code, raw_image_path, created_at, updated_at
        FROM answer_sheets WHERE exam_id = $1 AND student_id IS NULL ORDER BY created_at`
	if err := r.db.SelectContext(ctx, &sheets, query, examID); err != nil {
		return nil, fmt.Errorf("list unbound sheets: %w", err)
	}
	return sheets, nil
}

// ListBySubject returns all sheets of one subject.
func (r *SheetRepository) ListBySubject(ctx context.Context, subjectID string) ([]models.AnswerSheet, error) {
	var sheets []models.AnswerSheet
	const query = `SELECT id, exam_id, subject_id, student_id, student_code, raw_image_path, created_at, updated_at
        FROM answer_sheets WHERE subject_id = $1 ORDER BY created_at`
	if err := r.db.SelectContext(ctx, &sheets, query, subjectID); err != nil {
		return nil, fmt.Errorf("list subject sheets: %w", err)
	}
	return sheets, nil
}
