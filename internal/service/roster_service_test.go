package service

import (
	"context"
	"database/sql"
	"fmt"
	"testing"

	"github.com/go-playground/validator/v10"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/paperlens/exam-insight-api/internal/models"
	appErrors "github.com/paperlens/exam-insight-api/pkg/errors"
)

type mockStudentStore struct {
	students map[string]*models.Student
}

func (m *mockStudentStore) Create(ctx context.Context, student *models.Student) error {
	if m.students == nil {
		m.students = make(map[string]*models.Student)
	}
	if student.ID == "" {
		student.ID = fmt.Sprintf("stu-%d", len(m.students)+1)
	}
	copied := *student
	m.students[student.ID] = &copied
	return nil
}

func (m *mockStudentStore) FindByID(ctx context.Context, id string) (*models.Student, error) {
	if student, ok := m.students[id]; ok {
		return student, nil
	}
	return nil, sql.ErrNoRows
}

func (m *mockStudentStore) FindByCode(ctx context.Context, studentCode string) (*models.Student, error) {
	for _, student := range m.students {
		if student.StudentCode == studentCode {
			return student, nil
		}
	}
	return nil, sql.ErrNoRows
}

func (m *mockStudentStore) List(ctx context.Context, filter models.StudentFilter) ([]models.Student, int, error) {
	var out []models.Student
	for _, student := range m.students {
		if filter.ClassID != "" && student.ClassID != filter.ClassID {
			continue
		}
		out = append(out, *student)
	}
	return out, len(out), nil
}

type mockReviewerDirectory struct {
	reviewers map[string]*models.Reviewer
}

func (m *mockReviewerDirectory) Create(ctx context.Context, reviewer *models.Reviewer) error {
	if m.reviewers == nil {
		m.reviewers = make(map[string]*models.Reviewer)
	}
	if reviewer.ID == "" {
		reviewer.ID = fmt.Sprintf("rev-%d", len(m.reviewers)+1)
	}
	copied := *reviewer
	m.reviewers[reviewer.ID] = &copied
	return nil
}

func (m *mockReviewerDirectory) FindByID(ctx context.Context, id string) (*models.Reviewer, error) {
	if reviewer, ok := m.reviewers[id]; ok {
		return reviewer, nil
	}
	return nil, sql.ErrNoRows
}

func newRosterFixture() *RosterService {
	return NewRosterService(&mockStudentStore{}, &mockReviewerDirectory{}, validator.New(), zap.NewNop())
}

func TestRegisterStudent(t *testing.T) {
	svc := newRosterFixture()

	student, err := svc.RegisterStudent(context.Background(), RegisterStudentRequest{
		StudentCode: "20250001", Name: "Alice", ClassID: "c1",
	})
	require.NoError(t, err)
	require.NotEmpty(t, student.ID)

	loaded, err := svc.GetStudent(context.Background(), student.ID)
	require.NoError(t, err)
	assert.Equal(t, "Alice", loaded.Name)
}

func TestRegisterStudentDuplicateCode(t *testing.T) {
	svc := newRosterFixture()
	ctx := context.Background()

	_, err := svc.RegisterStudent(ctx, RegisterStudentRequest{StudentCode: "20250001", Name: "Alice", ClassID: "c1"})
	require.NoError(t, err)
	_, err = svc.RegisterStudent(ctx, RegisterStudentRequest{StudentCode: "20250001", Name: "Impostor", ClassID: "c2"})
	require.Error(t, err)
	assert.True(t, appErrors.Is(err, appErrors.ErrDuplicateKey))
}

func TestRegisterStudentMissingClass(t *testing.T) {
	svc := newRosterFixture()

	_, err := svc.RegisterStudent(context.Background(), RegisterStudentRequest{StudentCode: "20250002", Name: "Bob"})
	require.Error(t, err)
	assert.True(t, appErrors.Is(err, appErrors.ErrValidation))
}

func TestListStudentsFiltersByClass(t *testing.T) {
	svc := newRosterFixture()
	ctx := context.Background()

	_, err := svc.RegisterStudent(ctx, RegisterStudentRequest{StudentCode: "20250001", Name: "Alice", ClassID: "c1"})
	require.NoError(t, err)
	_, err = svc.RegisterStudent(ctx, RegisterStudentRequest{StudentCode: "20250002", Name: "Bob", ClassID: "c2"})
	require.NoError(t, err)

	students, total, err := svc.ListStudents(ctx, models.StudentFilter{ClassID: "c1"})
	require.NoError(t, err)
	assert.Equal(t, 1, total)
	require.Len(t, students, 1)
	assert.Equal(t, "Alice", students[0].Name)
}

func TestCreateAndGetReviewer(t *testing.T) {
	svc := newRosterFixture()

	reviewer, err := svc.CreateReviewer(context.Background(), CreateReviewerRequest{Name: "Ms. Chen"})
	require.NoError(t, err)
	require.NotEmpty(t, reviewer.ID)

	loaded, err := svc.GetReviewer(context.Background(), reviewer.ID)
	require.NoError(t, err)
	assert.Equal(t, "Ms. Chen", loaded.Name)
}

func TestGetReviewerNotFound(t *testing.T) {
	svc := newRosterFixture()

	_, err := svc.GetReviewer(context.Background(), "ghost")
	require.Error(t, err)
	assert.True(t, appErrors.Is(err, appErrors.ErrNotFound))
}
