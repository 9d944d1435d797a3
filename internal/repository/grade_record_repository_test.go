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

func TestGradeRecordAppendStampsDefaults(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewGradeRecordRepository(db)

	mock.ExpectExec("INSERT INTO grade_records").WillReturnResult(sqlmock.NewResult(1, 1))

	record := &models.GradeRecord{AnswerID: "ans1", ReviewerID: "rev1", Score: 8, Comment: "good"}
	err := repo.Append(context.Background(), record)
	require.NoError(t, err)
	assert.NotEmpty(t, record.ID)
	assert.False(t, record.RecordedAt.IsZero())
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestGradeRecordListByAnswerOrdersByTimestamp(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewGradeRecordRepository(db)

	earlier := time.Now().Add(-time.Minute)
	later := time.Now()
	rows := sqlmock.NewRows([]string{"id", "answer_id", "reviewer_id", "score", "comment", "recorded_at"}).
		AddRow("g1", "ans1", "rev1", 8.0, "good", earlier).
		AddRow("g2", "ans1", "rev2", 8.5, "better", later)
	mock.ExpectQuery(regexp.QuoteMeta("SELECT id, answer_id, reviewer_id, score, comment, recorded_at")).
		WithArgs("ans1").
		WillReturnRows(rows)

	records, err := repo.ListByAnswer(context.Background(), "ans1")
	require.NoError(t, err)
	require.Len(t, records, 2)
	assert.Equal(t, "rev1", records[0].ReviewerID)
	assert.Equal(t, 8.5, records[1].Score)
	assert.NoError(t, mock.ExpectationsWereMet())
}
