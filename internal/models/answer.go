package models

import "time"

// Answer is one student's response to one question; (question_id,
// student_id) is unique. FinalScore is derived from the answer's grade
// records by the scoring aggregator and is nil while the answer is
// ungraded or pending arbitration.
type Answer struct {
	ID                 string    `db:"id" json:"id"`
	SheetID            *string   `db:"sheet_id" json:"sheet_id,omitempty"`
	StudentID          string    `db:"student_id" json:"student_id"`
	QuestionID         string    `db:"question_id" json:"question_id"`
	QuestionCode       int       `db:"question_code" json:"question_code"`
	AnswerText         string    `db:"answer_text" json:"answer_text"`
	AnswerImagePath    string    `db:"answer_image_path" json:"answer_image_path"`
	FinalScore         *float64  `db:"final_score" json:"final_score,omitempty"`
	FinalComment       string    `db:"final_comment" json:"final_comment"`
	PendingArbitration bool      `db:"pending_arbitration" json:"pending_arbitration"`
	CreatedAt          time.Time `db:"created_at" json:"created_at"`
	UpdatedAt          time.Time `db:"updated_at" json:"updated_at"`
}

// Graded reports whether a final score has been resolved.
func (a *Answer) Graded() bool {
	return a.FinalScore != nil
}
