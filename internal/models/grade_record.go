package models

import "time"

// GradeRecord is one reviewer's score for one answer. Records are
// append-only: the audit trail of who scored what is never rewritten, and
// Answer.FinalScore is always derived from the full record set.
type GradeRecord struct {
	ID         string    `db:"id" json:"id"`
	AnswerID   string    `db:"answer_id" json:"answer_id"`
	ReviewerID string    `db:"reviewer_id" json:"reviewer_id"`
	Score      float64   `db:"score" json:"score"`
	Comment    string    `db:"comment" json:"comment"`
	RecordedAt time.Time `db:"recorded_at" json:"recorded_at"`
}
