package models

import "time"

// AnswerSheet is a scanned sheet ingested for one subject of an exam.
// StudentID stays nil until identity resolution binds the sheet to a
// student; StudentCode is the OCR-extracted fallback binding key. Sheets
// are never deleted.
type AnswerSheet struct {
	ID           string    `db:"id" json:"id"`
	ExamID       string    `db:"exam_id" json:"exam_id"`
	SubjectID    string    `db:"subject_id" json:"subject_id"`
	StudentID    *string   `db:"student_id" json:"student_id,omitempty"`
	StudentCode  string    `db:"student_code" json:"student_code"`
	RawImagePath string    `db:"raw_image_path" json:"raw_image_path"`
	CreatedAt    time.Time `db:"created_at" json:"created_at"`
	UpdatedAt    time.Time `db:"updated_at" json:"updated_at"`
}

// Bound reports whether the sheet has been resolved to a student.
func (s *AnswerSheet) Bound() bool {
	return s.StudentID != nil && *s.StudentID != ""
}
