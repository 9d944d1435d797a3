package models

import "time"

// Subject is one examined subject within an exam. The (exam_id, name) pair
// is unique. File paths are relative to the owning exam's material root.
type Subject struct {
	ID                   string    `db:"id" json:"id"`
	ExamID               string    `db:"exam_id" json:"exam_id"`
	Name                 string    `db:"name" json:"name"`
	QuestionPaperPath    string    `db:"question_paper_path" json:"question_paper_path"`
	RefAnswerPath        string    `db:"ref_answer_path" json:"ref_answer_path"`
	SampleSheetPath      string    `db:"sample_sheet_path" json:"sample_sheet_path"`
	SheetDivision        string    `db:"sheet_division" json:"sheet_division"`
	ChoiceSheetLocations string    `db:"choice_sheet_locations" json:"choice_sheet_locations"`
	CreatedAt            time.Time `db:"created_at" json:"created_at"`
	UpdatedAt            time.Time `db:"updated_at" json:"updated_at"`
}
