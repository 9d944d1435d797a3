package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/paperlens/exam-insight-api/internal/models"
)

// ExportJobRepository tracks asynchronous report exports.
type ExportJobRepository struct {
	db *sqlx.DB
}

// NewExportJobRepository creates a new export job repository.
func NewExportJobRepository(db *sqlx.DB) *ExportJobRepository {
	return &ExportJobRepository{db: db}
}

// Create inserts a queued job.
func (r *ExportJobRepository) Create(ctx context.Context, job *models.ExportJob) error {
	if job.ID == "" {
		job.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	job.CreatedAt = now
	job.UpdatedAt = now
	if job.Status == "" {
		job.Status = models.ExportJobQueued
	}
	const query = `INSERT INTO export_jobs (id, exam_id, student_id, format, status, file_path, error, requested_by, created_at, updated_at)
        VALUES (:id, :exam_id, :student_id, :format, :status, :file_path, :error, :requested_by, :created_at, :updated_at)`
	if _, err := r.db.NamedExecContext(ctx, query, job); err != nil {
		return fmt.Errorf("insert export job: %w", err)
	}
	return nil
}

// FindByID returns one job.
func (r *ExportJobRepository) FindByID(ctx context.Context, id string) (*models.ExportJob, error) {
	var job models.ExportJob
	const query = `SELECT id, exam_id, student_id, format, status, file_path, error, requested_by, created_at, updated_at, completed_at
        FROM export_jobs WHERE id = $1`
	if err := r.db.GetContext(ctx, &job, query, id); err != nil {
		return nil, err
	}
	return &job, nil
}

// UpdateStatus transitions a job and records its output or failure. Terminal
// states also stamp completed_at.
func (r *ExportJobRepository) UpdateStatus(ctx context.Context, id string, status models.ExportJobStatus, filePath, errorMessage string) error {
	now := time.Now().UTC()
	var completedAt *time.Time
	if status == models.ExportJobCompleted || status == models.ExportJobFailed {
		completedAt = &now
	}
	const query = `UPDATE export_jobs SET status = $1, file_path = $2, error = $3, completed_at = $4, updated_at = $5 WHERE id = $6`
	if _, err := r.db.ExecContext(ctx, query, status, filePath, errorMessage, completedAt, now, id); err != nil {
		return fmt.Errorf("update export job: %w", err)
	}
	return nil
}

// ListByExam returns an exam's jobs newest first.
func (r *ExportJobRepository) ListByExam(ctx context.Context, examID string) ([]models.ExportJob, error) {
	var jobs []models.ExportJob
	const query = `SELECT id, exam_id, student_id, format, status, file_path, error, requested_by, created_at, updated_at, completed_at
        FROM export_jobs WHERE exam_id = $1 ORDER BY created_at DESC`
	if err := r.db.SelectContext(ctx, &jobs, query, examID); err != nil {
		return nil, fmt.Errorf("list export jobs: %w", err)
	}
	return jobs, nil
}
