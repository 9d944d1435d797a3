package models

import "time"

// Student is a long-lived reference entity shared across exams.
// StudentCode is the school-issued identifier and is globally unique.
type Student struct {
	ID          string    `db:"id" json:"id"`
	StudentCode string    `db:"student_code" json:"student_code"`
	Name        string    `db:"name" json:"name"`
	ClassID     string    `db:"class_id" json:"class_id"`
	CreatedAt   time.Time `db:"created_at" json:"created_at"`
	UpdatedAt   time.Time `db:"updated_at" json:"updated_at"`
}

// StudentFilter encapsulates allowed search parameters for listing students.
type StudentFilter struct {
	ClassID  string
	Search   string
	Page     int
	PageSize int
}
