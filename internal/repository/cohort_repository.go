package repository

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/paperlens/exam-insight-api/internal/models"
)

// CohortRepository assembles the read-only snapshots the analytics layer
// consumes. Every Snapshot call reads students, subjects, questions and
// answers in one pass so the result is internally consistent; later writes
// are invisible to an already-built snapshot.
type CohortRepository struct {
	db *sqlx.DB
}

// NewCohortRepository creates a new cohort repository.
func NewCohortRepository(db *sqlx.DB) *CohortRepository {
	return &CohortRepository{db: db}
}

// Snapshot loads the full cohort state for an exam under the given grouping.
// With GroupByClass the groupKey is a class id and only students of that
// class are included; with GroupByGrade the groupKey is ignored and the
// whole exam population is read. Cohort membership comes from bound answer
// sheets as well as recorded answers, so a student whose answers are not in
// yet still ranks (at zero) instead of vanishing from the cohort.
func (r *CohortRepository) Snapshot(ctx context.Context, examID string, grouping models.GroupingMode, groupKey string) (*models.CohortSnapshot, error) {
	snapshot := &models.CohortSnapshot{
		ExamID:   examID,
		Grouping: grouping,
		GroupKey: groupKey,
		ReadAt:   time.Now().UTC(),
	}

	studentQuery := `SELECT st.id, st.student_code, st.name, st.class_id, st.created_at, st.updated_at
        FROM students st
        WHERE st.id IN (
            SELECT sh.student_id FROM answer_sheets sh WHERE sh.exam_id = $1 AND sh.student_id IS NOT NULL
            UNION
            SELECT a.student_id FROM answers a
            JOIN questions q ON q.id = a.question_id
            JOIN subjects s ON s.id = q.subject_id
            WHERE s.exam_id = $1
        )`
	args := []interface{}{examID}
	if grouping == models.GroupByClass {
		studentQuery += " AND st.class_id = $2"
		args = append(args, groupKey)
	}
	studentQuery += " ORDER BY st.student_code"
	if err := r.db.SelectContext(ctx, &snapshot.Students, studentQuery, args...); err != nil {
		return nil, fmt.Errorf("snapshot students: %w", err)
	}

	const subjectQuery = `SELECT id, exam_id, name, question_paper_path, ref_answer_path, sample_sheet_path, sheet_division, choice_sheet_locations, created_at, updated_at
        FROM subjects WHERE exam_id = $1 ORDER BY name`
	if err := r.db.SelectContext(ctx, &snapshot.Subjects, subjectQuery, examID); err != nil {
		return nil, fmt.Errorf("snapshot subjects: %w", err)
	}

	const questionQuery = `SELECT q.id, q.subject_id, q.question_code, q.question_text, q.question_path, q.ref_answer_text, q.ref_answer_path, q.template_text, q.template_path, q.strategy, q.full_score, q.question_type, q.division, q.sub_divisions, q.created_at, q.updated_at
        FROM questions q
        JOIN subjects s ON s.id = q.subject_id
        WHERE s.exam_id = $1 ORDER BY s.name, q.question_code`
	if err := r.db.SelectContext(ctx, &snapshot.Questions, questionQuery, examID); err != nil {
		return nil, fmt.Errorf("snapshot questions: %w", err)
	}
	if err := r.attachKnowledgePoints(ctx, snapshot.Questions); err != nil {
		return nil, err
	}

	answerQuery := `SELECT a.id, a.sheet_id, a.student_id, a.question_id, a.question_code, a.answer_text, a.answer_image_path, a.final_score, a.final_comment, a.pending_arbitration, a.created_at, a.updated_at
        FROM answers a
        JOIN questions q ON q.id = a.question_id
        JOIN subjects s ON s.id = q.subject_id
        WHERE s.exam_id = $1`
	if grouping == models.GroupByClass {
		answerQuery += ` AND a.student_id IN (SELECT id FROM students WHERE class_id = $2)`
	}
	answerQuery += " ORDER BY a.student_id, a.question_code"
	if err := r.db.SelectContext(ctx, &snapshot.Answers, answerQuery, args...); err != nil {
		return nil, fmt.Errorf("snapshot answers: %w", err)
	}

	return snapshot, nil
}

func (r *CohortRepository) attachKnowledgePoints(ctx context.Context, questions []models.Question) error {
	if len(questions) == 0 {
		return nil
	}
	placeholders := make([]string, len(questions))
	args := make([]interface{}, len(questions))
	index := make(map[string]int, len(questions))
	for i := range questions {
		placeholders[i] = fmt.Sprintf("$%d", i+1)
		args[i] = questions[i].ID
		index[questions[i].ID] = i
	}
	query := fmt.Sprintf(`SELECT question_id, name FROM question_knowledge_points WHERE question_id IN (%s) ORDER BY name`, strings.Join(placeholders, ","))
	var tags []models.QuestionKnowledgePoint
	if err := r.db.SelectContext(ctx, &tags, query, args...); err != nil {
		return fmt.Errorf("snapshot knowledge points: %w", err)
	}
	for _, tag := range tags {
		if i, ok := index[tag.QuestionID]; ok {
			questions[i].KnowledgePoints = append(questions[i].KnowledgePoints, tag.Name)
		}
	}
	return nil
}
