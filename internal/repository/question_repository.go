package repository

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/paperlens/exam-insight-api/internal/models"
)

// QuestionRepository handles question persistence including knowledge-point
// tags.
type QuestionRepository struct {
	db *sqlx.DB
}

// NewQuestionRepository creates a new question repository.
func NewQuestionRepository(db *sqlx.DB) *QuestionRepository {
	return &QuestionRepository{db: db}
}

// Create inserts a new question together with its knowledge-point tags.
func (r *QuestionRepository) Create(ctx context.Context, question *models.Question) error {
	if question.ID == "" {
		question.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	question.CreatedAt = now
	question.UpdatedAt = now

	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return err
	}
	const query = `INSERT INTO questions (id, subject_id, question_code, question_text, question_path, ref_answer_text, ref_answer_path, template_text, template_path, strategy, full_score, question_type, division, sub_divisions, created_at, updated_at)
        VALUES (:id, :subject_id, :question_code, :question_text, :question_path, :ref_answer_text, :ref_answer_path, :template_text, :template_path, :strategy, :full_score, :question_type, :division, :sub_divisions, :created_at, :updated_at)`
	if _, err := tx.NamedExecContext(ctx, query, question); err != nil {
		tx.Rollback() //nolint:errcheck
		return fmt.Errorf("insert question: %w", err)
	}
	for _, point := range question.KnowledgePoints {
		if _, err := tx.ExecContext(ctx, `INSERT INTO question_knowledge_points (question_id, name) VALUES ($1, $2)`, question.ID, point); err != nil {
			tx.Rollback() //nolint:errcheck
			return fmt.Errorf("insert knowledge point: %w", err)
		}
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit question: %w", err)
	}
	return nil
}

// FindByID returns one question with its knowledge points.
func (r *QuestionRepository) FindByID(ctx context.Context, id string) (*models.Question, error) {
	var question models.Question
	const query = `SELECT id, subject_id, question_code, question_text, question_path, ref_answer_text, ref_answer_path, template_text, template_path, strategy, full_score, question_type, division, sub_divisions, created_at, updated_at
        FROM questions WHERE id = $1`
	if err := r.db.GetContext(ctx, &question, query, id); err != nil {
		return nil, err
	}
	if err := r.attachKnowledgePoints(ctx, []*models.Question{&question}); err != nil {
		return nil, err
	}
	return &question, nil
}

// FindByCode returns the question with the given code within a subject.
func (r *QuestionRepository) FindByCode(ctx context.Context, subjectID string, code int) (*models.Question, error) {
	var question models.Question
	const query = `SELECT id, subject_id, question_code, question_text, question_path, ref_answer_text, ref_answer_path, template_text, template_path, strategy, full_score, question_type, division, sub_divisions, created_at, updated_at
        FROM questions WHERE subject_id = $1 AND question_code = $2`
	if err := r.db.GetContext(ctx, &question, query, subjectID, code); err != nil {
		return nil, err
	}
	return &question, nil
}

// ListBySubject returns a subject's questions ordered by code.
func (r *QuestionRepository) ListBySubject(ctx context.Context, subjectID string) ([]models.Question, error) {
	var questions []models.Question
	const query = `SELECT id, subject_id, question_code, question_text, question_path, ref_answer_text, ref_answer_path, template_text, template_path, strategy, full_score, question_type, division, sub_divisions, created_at, updated_at
        FROM questions WHERE subject_id = $1 ORDER BY question_code`
	if err := r.db.SelectContext(ctx, &questions, query, subjectID); err != nil {
		return nil, fmt.Errorf("list questions: %w", err)
	}
	refs := make([]*models.Question, len(questions))
	for i := range questions {
		refs[i] = &questions[i]
	}
	if err := r.attachKnowledgePoints(ctx, refs); err != nil {
		return nil, err
	}
	return questions, nil
}

// ListByExam returns every question of an exam across its subjects.
func (r *QuestionRepository) ListByExam(ctx context.Context, examID string) ([]models.Question, error) {
	var questions []models.Question
	const query = `SELECT q.id, q.subject_id, q.question_code, q.question_text, q.question_path, q.ref_answer_text, q.ref_answer_path, q.template_text, q.template_path, q.strategy, q.full_score, q.question_type, q.division, q.sub_divisions, q.created_at, q.updated_at
        FROM questions q JOIN subjects s ON s.id = q.subject_id WHERE s.exam_id = $1 ORDER BY s.name, q.question_code`
	if err := r.db.SelectContext(ctx, &questions, query, examID); err != nil {
		return nil, fmt.Errorf("list exam questions: %w", err)
	}
	refs := make([]*models.Question, len(questions))
	for i := range questions {
		refs[i] = &questions[i]
	}
	if err := r.attachKnowledgePoints(ctx, refs); err != nil {
		return nil, err
	}
	return questions, nil
}

func (r *QuestionRepository) attachKnowledgePoints(ctx context.Context, questions []*models.Question) error {
	if len(questions) == 0 {
		return nil
	}
	placeholders := make([]string, len(questions))
	args := make([]interface{}, len(questions))
	index := make(map[string]*models.Question, len(questions))
	for i, question := range questions {
		placeholders[i] = fmt.Sprintf("$%d", i+1)
		args[i] = question.ID
		index[question.ID] = question
	}
	query := fmt.Sprintf(`SELECT question_id, name FROM question_knowledge_points WHERE question_id IN (%s) ORDER BY name`, strings.Join(placeholders, ","))
	var tags []models.QuestionKnowledgePoint
	if err := r.db.SelectContext(ctx, &tags, query, args...); err != nil {
		return fmt.Errorf("fetch knowledge points: %w", err)
	}
	for _, tag := range tags {
		if question, ok := index[tag.QuestionID]; ok {
			question.KnowledgePoints = append(question.KnowledgePoints, tag.Name)
		}
	}
	return nil
}
