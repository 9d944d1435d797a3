package models

import "time"

// QuestionType classifies how a question is answered and graded.
type QuestionType string

const (
	QuestionSingleChoice QuestionType = "single_choice"
	QuestionMultiChoice  QuestionType = "multi_choice"
	QuestionFillIn       QuestionType = "fill_in"
	QuestionFreeResponse QuestionType = "free_response"
)

// Valid reports whether the question type is one of the known values.
func (t QuestionType) Valid() bool {
	switch t {
	case QuestionSingleChoice, QuestionMultiChoice, QuestionFillIn, QuestionFreeResponse:
		return true
	}
	return false
}

// Question is a gradable unit within a subject. QuestionCode is the printed
// question number, unique per subject. Division holds the bounding box that
// cuts this question out of a scanned sheet; SubDivisions segments it
// further for recognition of sub-parts. Both are opaque JSON blobs produced
// by the sheet-segmentation tooling.
type Question struct {
	ID              string       `db:"id" json:"id"`
	SubjectID       string       `db:"subject_id" json:"subject_id"`
	QuestionCode    int          `db:"question_code" json:"question_code"`
	QuestionText    string       `db:"question_text" json:"question_text"`
	QuestionPath    string       `db:"question_path" json:"question_path"`
	RefAnswerText   string       `db:"ref_answer_text" json:"ref_answer_text"`
	RefAnswerPath   string       `db:"ref_answer_path" json:"ref_answer_path"`
	TemplateText    string       `db:"template_text" json:"template_text"`
	TemplatePath    string       `db:"template_path" json:"template_path"`
	Strategy        string       `db:"strategy" json:"strategy"`
	FullScore       float64      `db:"full_score" json:"full_score"`
	QuestionType    QuestionType `db:"question_type" json:"question_type"`
	Division        string       `db:"division" json:"division"`
	SubDivisions    string       `db:"sub_divisions" json:"sub_divisions"`
	KnowledgePoints []string     `db:"-" json:"knowledge_points,omitempty"`
	CreatedAt       time.Time    `db:"created_at" json:"created_at"`
	UpdatedAt       time.Time    `db:"updated_at" json:"updated_at"`
}

// QuestionKnowledgePoint tags a question with a knowledge point label.
type QuestionKnowledgePoint struct {
	QuestionID string `db:"question_id" json:"question_id"`
	Name       string `db:"name" json:"name"`
}

// ReviewerAssignment links a reviewer to a question they are authorised to
// grade. The Question↔Reviewer relation is kept as an explicit edge set
// rather than live object references.
type ReviewerAssignment struct {
	QuestionID string    `db:"question_id" json:"question_id"`
	ReviewerID string    `db:"reviewer_id" json:"reviewer_id"`
	CreatedAt  time.Time `db:"created_at" json:"created_at"`
}
