package models

import "time"

// Exam represents one administered examination. Subjects, questions and
// answer sheets all hang off an exam; metadata stays editable but the
// structural graph is fixed once grading starts.
type Exam struct {
	ID             string    `db:"id" json:"id"`
	Name           string    `db:"name" json:"name"`
	Intro          string    `db:"intro" json:"intro"`
	SchoolName     string    `db:"school_name" json:"school_name"`
	Grade          string    `db:"grade" json:"grade"`
	UploaderID     string    `db:"uploader_id" json:"uploader_id"`
	ChiefTeacherID string    `db:"chief_teacher_id" json:"chief_teacher_id"`
	MaterialRoot   string    `db:"material_root" json:"material_root"`
	ExamDate       time.Time `db:"exam_date" json:"exam_date"`
	CreatedAt      time.Time `db:"created_at" json:"created_at"`
	UpdatedAt      time.Time `db:"updated_at" json:"updated_at"`
}

// ExamFilter captures supported filters for listing exams.
type ExamFilter struct {
	SchoolName string
	Grade      string
	Search     string
	Page       int
	PageSize   int
}
