package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/paperlens/exam-insight-api/internal/models"
)

// ReviewerRepository handles reviewers and their question assignments. The
// Question↔Reviewer many-to-many is an explicit edge table.
type ReviewerRepository struct {
	db *sqlx.DB
}

// NewReviewerRepository creates a new reviewer repository.
func NewReviewerRepository(db *sqlx.DB) *ReviewerRepository {
	return &ReviewerRepository{db: db}
}

// Create inserts a new reviewer.
func (r *ReviewerRepository) Create(ctx context.Context, reviewer *models.Reviewer) error {
	if reviewer.ID == "" {
		reviewer.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	reviewer.CreatedAt = now
	reviewer.UpdatedAt = now
	const query = `INSERT INTO reviewers (id, name, created_at, updated_at) VALUES (:id, :name, :created_at, :updated_at)`
	if _, err := r.db.NamedExecContext(ctx, query, reviewer); err != nil {
		return fmt.Errorf("insert reviewer: %w", err)
	}
	return nil
}

// FindByID returns one reviewer.
func (r *ReviewerRepository) FindByID(ctx context.Context, id string) (*models.Reviewer, error) {
	var reviewer models.Reviewer
	const query = `SELECT id, name, created_at, updated_at FROM reviewers WHERE id = $1`
	if err := r.db.GetContext(ctx, &reviewer, query, id); err != nil {
		return nil, err
	}
	return &reviewer, nil
}

// Assign authorises a reviewer for a question. Repeated assignment is a
// no-op.
func (r *ReviewerRepository) Assign(ctx context.Context, questionID, reviewerID string) error {
	const query = `INSERT INTO reviewer_assignments (question_id, reviewer_id, created_at)
        VALUES ($1, $2, $3) ON CONFLICT (question_id, reviewer_id) DO NOTHING`
	if _, err := r.db.ExecContext(ctx, query, questionID, reviewerID, time.Now().UTC()); err != nil {
		return fmt.Errorf("assign reviewer: %w", err)
	}
	return nil
}

// IsAssigned reports whether a reviewer may grade a question.
func (r *ReviewerRepository) IsAssigned(ctx context.Context, questionID, reviewerID string) (bool, error) {
	var count int
	const query = `SELECT COUNT(*) FROM reviewer_assignments WHERE question_id = $1 AND reviewer_id = $2`
	if err := r.db.GetContext(ctx, &count, query, questionID, reviewerID); err != nil {
		return false, fmt.Errorf("check reviewer assignment: %w", err)
	}
	return count > 0, nil
}

// ListByQuestion returns reviewers authorised for a question.
func (r *ReviewerRepository) ListByQuestion(ctx context.Context, questionID string) ([]models.Reviewer, error) {
	var reviewers []models.Reviewer
	const query = `SELECT rv.id, rv.name, rv.created_at, rv.updated_at
        FROM reviewers rv
        JOIN reviewer_assignments ra ON ra.reviewer_id = rv.id
        WHERE ra.question_id = $1 ORDER BY rv.name`
	if err := r.db.SelectContext(ctx, &reviewers, query, questionID); err != nil {
		return nil, fmt.Errorf("list question reviewers: %w", err)
	}
	return reviewers, nil
}
