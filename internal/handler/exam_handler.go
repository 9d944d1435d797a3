package handler

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/paperlens/exam-insight-api/internal/models"
	"github.com/paperlens/exam-insight-api/internal/service"
	appErrors "github.com/paperlens/exam-insight-api/pkg/errors"
	"github.com/paperlens/exam-insight-api/pkg/response"
)

// ExamHandler exposes exam structure endpoints: exams, subjects, questions
// and reviewer assignment.
type ExamHandler struct {
	exams *service.ExamService
}

// NewExamHandler constructs handler.
func NewExamHandler(exams *service.ExamService) *ExamHandler {
	return &ExamHandler{exams: exams}
}

// Create godoc
// @Summary Create an exam
// @Tags Exams
// @Accept json
// @Produce json
// @Param payload body service.CreateExamRequest true "Exam payload"
// @Success 201 {object} response.Envelope
// @Security BearerAuth
// @Router /exams [post]
func (h *ExamHandler) Create(c *gin.Context) {
	var req service.CreateExamRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid payload"))
		return
	}
	if claims := claimsFromContext(c); claims != nil && req.UploaderID == "" {
		req.UploaderID = claims.UserID
	}
	exam, err := h.exams.CreateExam(c.Request.Context(), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, exam)
}

// Get godoc
// @Summary Get one exam
// @Tags Exams
// @Produce json
// @Param id path string true "Exam ID"
// @Success 200 {object} response.Envelope
// @Security BearerAuth
// @Router /exams/{id} [get]
func (h *ExamHandler) Get(c *gin.Context) {
	exam, err := h.exams.GetExam(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, exam, nil)
}

// List godoc
// @Summary List exams
// @Tags Exams
// @Produce json
// @Param school query string false "Filter by school"
// @Param grade query string false "Filter by grade"
// @Param search query string false "Search by name"
// @Param page query int false "Page"
// @Param pageSize query int false "Page size"
// @Success 200 {object} response.Envelope
// @Security BearerAuth
// @Router /exams [get]
func (h *ExamHandler) List(c *gin.Context) {
	filter := models.ExamFilter{
		SchoolName: c.Query("school"),
		Grade:      c.Query("grade"),
		Search:     c.Query("search"),
		Page:       queryInt(c, "page", 1),
		PageSize:   queryInt(c, "pageSize", 20),
	}
	exams, total, err := h.exams.ListExams(c.Request.Context(), filter)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, exams, &models.Pagination{Page: filter.Page, PageSize: filter.PageSize, TotalCount: total})
}

// Update godoc
// @Summary Update exam metadata
// @Tags Exams
// @Accept json
// @Produce json
// @Param id path string true "Exam ID"
// @Param payload body service.UpdateExamRequest true "Metadata payload"
// @Success 200 {object} response.Envelope
// @Security BearerAuth
// @Router /exams/{id} [patch]
func (h *ExamHandler) Update(c *gin.Context) {
	var req service.UpdateExamRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid payload"))
		return
	}
	exam, err := h.exams.UpdateExam(c.Request.Context(), c.Param("id"), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, exam, nil)
}

// CreateSubject godoc
// @Summary Add a subject to an exam
// @Tags Exams
// @Accept json
// @Produce json
// @Param id path string true "Exam ID"
// @Param payload body service.CreateSubjectRequest true "Subject payload"
// @Success 201 {object} response.Envelope
// @Security BearerAuth
// @Router /exams/{id}/subjects [post]
func (h *ExamHandler) CreateSubject(c *gin.Context) {
	var req service.CreateSubjectRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid payload"))
		return
	}
	req.ExamID = c.Param("id")
	subject, err := h.exams.CreateSubject(c.Request.Context(), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, subject)
}

// ListSubjects godoc
// @Summary List an exam's subjects
// @Tags Exams
// @Produce json
// @Param id path string true "Exam ID"
// @Success 200 {object} response.Envelope
// @Security BearerAuth
// @Router /exams/{id}/subjects [get]
func (h *ExamHandler) ListSubjects(c *gin.Context) {
	subjects, err := h.exams.ListSubjects(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, subjects, nil)
}

// CreateQuestion godoc
// @Summary Add a question to a subject
// @Tags Exams
// @Accept json
// @Produce json
// @Param subjectId path string true "Subject ID"
// @Param payload body service.CreateQuestionRequest true "Question payload"
// @Success 201 {object} response.Envelope
// @Security BearerAuth
// @Router /subjects/{subjectId}/questions [post]
func (h *ExamHandler) CreateQuestion(c *gin.Context) {
	var req service.CreateQuestionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid payload"))
		return
	}
	req.SubjectID = c.Param("subjectId")
	question, err := h.exams.CreateQuestion(c.Request.Context(), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, question)
}

// ListQuestions godoc
// @Summary List a subject's questions
// @Tags Exams
// @Produce json
// @Param subjectId path string true "Subject ID"
// @Success 200 {object} response.Envelope
// @Security BearerAuth
// @Router /subjects/{subjectId}/questions [get]
func (h *ExamHandler) ListQuestions(c *gin.Context) {
	questions, err := h.exams.ListQuestions(c.Request.Context(), c.Param("subjectId"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, questions, nil)
}

// AssignReviewer godoc
// @Summary Authorise a reviewer for a question
// @Tags Exams
// @Accept json
// @Produce json
// @Param questionId path string true "Question ID"
// @Param payload body assignReviewerRequest true "Reviewer payload"
// @Success 200 {object} response.Envelope
// @Security BearerAuth
// @Router /questions/{questionId}/reviewers [post]
func (h *ExamHandler) AssignReviewer(c *gin.Context) {
	var req assignReviewerRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid payload"))
		return
	}
	if err := h.exams.AssignReviewer(c.Request.Context(), c.Param("questionId"), req.ReviewerID); err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, gin.H{"status": "assigned"}, nil)
}

// ListReviewers godoc
// @Summary List reviewers authorised for a question
// @Tags Exams
// @Produce json
// @Param questionId path string true "Question ID"
// @Success 200 {object} response.Envelope
// @Security BearerAuth
// @Router /questions/{questionId}/reviewers [get]
func (h *ExamHandler) ListReviewers(c *gin.Context) {
	reviewers, err := h.exams.QuestionReviewers(c.Request.Context(), c.Param("questionId"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, reviewers, nil)
}

type assignReviewerRequest struct {
	ReviewerID string `json:"reviewer_id" binding:"required"`
}

func queryInt(c *gin.Context, key string, fallback int) int {
	raw := c.Query(key)
	if raw == "" {
		return fallback
	}
	value, err := strconv.Atoi(raw)
	if err != nil || value <= 0 {
		return fallback
	}
	return value
}
