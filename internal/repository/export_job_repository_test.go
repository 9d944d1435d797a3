package repository

import (
	"context"
	"regexp"
	"testing"
	"time"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/paperlens/exam-insight-api/internal/models"
)

func TestExportJobCreateDefaultsToQueued(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewExportJobRepository(db)

	mock.ExpectExec("INSERT INTO export_jobs").WillReturnResult(sqlmock.NewResult(1, 1))

	job := &models.ExportJob{ExamID: "exam1", Format: models.ExportPDF, RequestedBy: "user-1"}
	err := repo.Create(context.Background(), job)
	require.NoError(t, err)
	assert.NotEmpty(t, job.ID)
	assert.Equal(t, models.ExportJobQueued, job.Status)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestExportJobUpdateStatusStampsCompletion(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewExportJobRepository(db)

	mock.ExpectExec(regexp.QuoteMeta("UPDATE export_jobs SET status = $1, file_path = $2, error = $3, completed_at = $4, updated_at = $5 WHERE id = $6")).
		WithArgs(models.ExportJobCompleted, "exports/job1.pdf", "", sqlmock.AnyArg(), sqlmock.AnyArg(), "job1").
		WillReturnResult(sqlmock.NewResult(0, 1))

	err := repo.UpdateStatus(context.Background(), "job1", models.ExportJobCompleted, "exports/job1.pdf", "")
	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestExportJobListByExam(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewExportJobRepository(db)

	now := time.Now()
	rows := sqlmock.NewRows([]string{"id", "exam_id", "student_id", "format", "status", "file_path", "error", "requested_by", "created_at", "updated_at", "completed_at"}).
		AddRow("job1", "exam1", nil, string(models.ExportCSV), string(models.ExportJobCompleted), "exports/job1.csv", "", "user-1", now, now, now)
	mock.ExpectQuery(regexp.QuoteMeta("SELECT id, exam_id, student_id, format, status, file_path, error, requested_by, created_at, updated_at, completed_at")).
		WithArgs("exam1").
		WillReturnRows(rows)

	jobs, err := repo.ListByExam(context.Background(), "exam1")
	require.NoError(t, err)
	require.Len(t, jobs, 1)
	assert.Equal(t, models.ExportJobCompleted, jobs[0].Status)
	assert.NoError(t, mock.ExpectationsWereMet())
}
