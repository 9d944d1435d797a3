package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/paperlens/exam-insight-api/internal/models"
)

// AnswerRepository handles answer persistence. Final scores are only ever
// written through SetFinal so the derived nature of the column stays
// obvious at the call sites.
type AnswerRepository struct {
	db *sqlx.DB
}

// NewAnswerRepository creates a new answer repository.
func NewAnswerRepository(db *sqlx.DB) *AnswerRepository {
	return &AnswerRepository{db: db}
}

// Create inserts a new answer.
func (r *AnswerRepository) Create(ctx context.Context, answer *models.Answer) error {
	if answer.ID == "" {
		answer.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	answer.CreatedAt = now
	answer.UpdatedAt = now
	const query = `INSERT INTO answers (id, sheet_id, student_id, question_id, question_code, answer_text, answer_image_path, final_score, final_comment, pending_arbitration, created_at, updated_at)
        VALUES (:id, :sheet_id, :student_id, :question_id, :question_code, :answer_text, :answer_image_path, :final_score, :final_comment, :pending_arbitration, :created_at, :updated_at)`
	if _, err := r.db.NamedExecContext(ctx, query, answer); err != nil {
		return fmt.Errorf("insert answer: %w", err)
	}
	return nil
}

// FindByID returns one answer.
func (r *AnswerRepository) FindByID(ctx context.Context, id string) (*models.Answer, error) {
	var answer models.Answer
	const query = `SELECT id, sheet_id, student_id, question_id, question_code, answer_text, answer_image_path, final_score, final_comment, pending_arbitration, created_at, updated_at
        FROM answers WHERE id = $1`
	if err := r.db.GetContext(ctx, &answer, query, id); err != nil {
		return nil, err
	}
	return &answer, nil
}

// FindByQuestionAndStudent returns the single answer for the natural key.
func (r *AnswerRepository) FindByQuestionAndStudent(ctx context.Context, questionID, studentID string) (*models.Answer, error) {
	var answer models.Answer
	const query = `SELECT id, sheet_id, student_id, question_id, question_code, answer_text, answer_image_path, final_score, final_comment, pending_arbitration, created_at, updated_at
        FROM answers WHERE question_id = $1 AND student_id = $2`
	if err := r.db.GetContext(ctx, &answer, query, questionID, studentID); err != nil {
		return nil, err
	}
	return &answer, nil
}

// SetFinal stores the aggregator's resolution for an answer. A nil score
// with pending=true marks the answer as awaiting arbitration; a nil score
// with pending=false returns it to the ungraded state.
func (r *AnswerRepository) SetFinal(ctx context.Context, answerID string, score *float64, comment string, pending bool) error {
	const query = `UPDATE answers SET final_score = $1, final_comment = $2, pending_arbitration = $3, updated_at = $4 WHERE id = $5`
	result, err := r.db.ExecContext(ctx, query, score, comment, pending, time.Now().UTC(), answerID)
	if err != nil {
		return fmt.Errorf("set final score: %w", err)
	}
	if affected, err := result.RowsAffected(); err == nil && affected == 0 {
		return sql.ErrNoRows
	}
	return nil
}

// ListByStudentAndExam returns a student's answers across an exam.
func (r *AnswerRepository) ListByStudentAndExam(ctx context.Context, studentID, examID string) ([]models.Answer, error) {
	var answers []models.Answer
	const query = `SELECT a.id, a.sheet_id, a.student_id, a.question_id, a.question_code, a.answer_text, a.answer_image_path, a.final_score, a.final_comment, a.pending_arbitration, a.created_at, a.updated_at
        FROM answers a
        JOIN questions q ON q.id = a.question_id
        JOIN subjects s ON s.id = q.subject_id
        WHERE a.student_id = $1 AND s.exam_id = $2
        ORDER BY a.question_code`
	if err := r.db.SelectContext(ctx, &answers, query, studentID, examID); err != nil {
		return nil, fmt.Errorf("list student answers: %w", err)
	}
	return answers, nil
}

// ListPendingArbitration returns answers flagged for human review in an exam.
func (r *AnswerRepository) ListPendingArbitration(ctx context.Context, examID string) ([]models.Answer, error) {
	var answers []models.Answer
	const query = `SELECT a.id, a.sheet_id, a.student_id, a.question_id, a.question_code, a.answer_text, a.answer_image_path, a.final_score, a.final_comment, a.pending_arbitration, a.created_at, a.updated_at
        FROM answers a
        JOIN questions q ON q.id = a.question_id
        JOIN subjects s ON s.id = q.subject_id
        WHERE s.exam_id = $1 AND a.pending_arbitration
        ORDER BY a.updated_at`
	if err := r.db.SelectContext(ctx, &answers, query, examID); err != nil {
		return nil, fmt.Errorf("list pending answers: %w", err)
	}
	return answers, nil
}
