package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/paperlens/exam-insight-api/internal/models"
)

// GradeRecordRepository handles the append-only grade audit trail. There is
// deliberately no update or delete: corrections arrive as new records and
// the aggregator re-derives the final score.
type GradeRecordRepository struct {
	db *sqlx.DB
}

// NewGradeRecordRepository creates a new grade record repository.
func NewGradeRecordRepository(db *sqlx.DB) *GradeRecordRepository {
	return &GradeRecordRepository{db: db}
}

// Append stores a new grade record.
func (r *GradeRecordRepository) Append(ctx context.Context, record *models.GradeRecord) error {
	if record.ID == "" {
		record.ID = uuid.NewString()
	}
	if record.RecordedAt.IsZero() {
		record.RecordedAt = time.Now().UTC()
	}
	const query = `INSERT INTO grade_records (id, answer_id, reviewer_id, score, comment, recorded_at)
        VALUES (:id, :answer_id, :reviewer_id, :score, :comment, :recorded_at)`
	if _, err := r.db.NamedExecContext(ctx, query, record); err != nil {
		return fmt.Errorf("append grade record: %w", err)
	}
	return nil
}

// ListByAnswer returns all records for one answer ordered by timestamp.
func (r *GradeRecordRepository) ListByAnswer(ctx context.Context, answerID string) ([]models.GradeRecord, error) {
	var records []models.GradeRecord
	const query = `SELECT id, answer_id, reviewer_id, score, comment, recorded_at
        FROM grade_records WHERE answer_id = $1 ORDER BY recorded_at, id`
	if err := r.db.SelectContext(ctx, &records, query, answerID); err != nil {
		return nil, fmt.Errorf("list grade records: %w", err)
	}
	return records, nil
}
