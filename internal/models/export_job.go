package models

import "time"

// ExportFormat selects the report artifact type.
type ExportFormat string

const (
	ExportCSV ExportFormat = "csv"
	ExportPDF ExportFormat = "pdf"
)

// ExportJobStatus tracks asynchronous report generation.
type ExportJobStatus string

const (
	ExportJobQueued    ExportJobStatus = "QUEUED"
	ExportJobRunning   ExportJobStatus = "RUNNING"
	ExportJobCompleted ExportJobStatus = "COMPLETED"
	ExportJobFailed    ExportJobStatus = "FAILED"
)

// ExportJob records one requested score-report export.
type ExportJob struct {
	ID          string          `db:"id" json:"id"`
	ExamID      string          `db:"exam_id" json:"exam_id"`
	StudentID   string          `db:"student_id" json:"student_id"`
	Format      ExportFormat    `db:"format" json:"format"`
	Status      ExportJobStatus `db:"status" json:"status"`
	FilePath    string          `db:"file_path" json:"-"`
	Error       string          `db:"error" json:"error,omitempty"`
	RequestedBy string          `db:"requested_by" json:"requested_by"`
	CreatedAt   time.Time       `db:"created_at" json:"created_at"`
	UpdatedAt   time.Time       `db:"updated_at" json:"updated_at"`
	CompletedAt *time.Time      `db:"completed_at" json:"completed_at,omitempty"`
}
