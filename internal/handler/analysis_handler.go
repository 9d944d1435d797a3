package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/paperlens/exam-insight-api/internal/models"
	"github.com/paperlens/exam-insight-api/internal/service"
	appErrors "github.com/paperlens/exam-insight-api/pkg/errors"
	"github.com/paperlens/exam-insight-api/pkg/response"
)

const cacheHitHeader = "X-Cache"

// AnalysisHandler exposes the student-facing analytics pages. Student
// accounts may only read their own analysis; teachers may read anyone's.
type AnalysisHandler struct {
	analytics *service.AnalyticsService
}

// NewAnalysisHandler constructs handler.
func NewAnalysisHandler(analytics *service.AnalyticsService) *AnalysisHandler {
	return &AnalysisHandler{analytics: analytics}
}

// Scores godoc
// @Summary Per-subject score card for one student
// @Tags Analysis
// @Produce json
// @Param id path string true "Exam ID"
// @Param studentId path string true "Student ID"
// @Success 200 {object} response.Envelope
// @Security BearerAuth
// @Router /exams/{id}/students/{studentId}/scores [get]
func (h *AnalysisHandler) Scores(c *gin.Context) {
	studentID, ok := h.resolveStudent(c)
	if !ok {
		return
	}
	summary, hit, err := h.analytics.Scores(c.Request.Context(), c.Param("id"), studentID)
	if err != nil {
		response.Error(c, err)
		return
	}
	markCache(c, hit)
	response.JSON(c, http.StatusOK, summary, nil)
}

// Position godoc
// @Summary Cohort position for one student
// @Tags Analysis
// @Produce json
// @Param id path string true "Exam ID"
// @Param studentId path string true "Student ID"
// @Param grouping query string false "class or grade" default(grade)
// @Param classId query string false "Class to compare against when grouping=class"
// @Success 200 {object} response.Envelope
// @Security BearerAuth
// @Router /exams/{id}/students/{studentId}/position [get]
func (h *AnalysisHandler) Position(c *gin.Context) {
	studentID, ok := h.resolveStudent(c)
	if !ok {
		return
	}
	grouping, groupKey, err := groupingFromQuery(c)
	if err != nil {
		response.Error(c, err)
		return
	}
	position, hit, err := h.analytics.Position(c.Request.Context(), c.Param("id"), studentID, grouping, groupKey)
	if err != nil {
		response.Error(c, err)
		return
	}
	markCache(c, hit)
	response.JSON(c, http.StatusOK, position, nil)
}

// PK godoc
// @Summary Head-to-head percentile view for one student
// @Tags Analysis
// @Produce json
// @Param id path string true "Exam ID"
// @Param studentId path string true "Student ID"
// @Param grouping query string false "class or grade" default(grade)
// @Param classId query string false "Class to compare against when grouping=class"
// @Success 200 {object} response.Envelope
// @Security BearerAuth
// @Router /exams/{id}/students/{studentId}/pk [get]
func (h *AnalysisHandler) PK(c *gin.Context) {
	studentID, ok := h.resolveStudent(c)
	if !ok {
		return
	}
	grouping, groupKey, err := groupingFromQuery(c)
	if err != nil {
		response.Error(c, err)
		return
	}
	pk, hit, err := h.analytics.PK(c.Request.Context(), c.Param("id"), studentID, grouping, groupKey)
	if err != nil {
		response.Error(c, err)
		return
	}
	markCache(c, hit)
	response.JSON(c, http.StatusOK, pk, nil)
}

// Simulate godoc
// @Summary Re-rank one student under hypothetical subject scores
// @Tags Analysis
// @Accept json
// @Produce json
// @Param id path string true "Exam ID"
// @Param studentId path string true "Student ID"
// @Param grouping query string false "class or grade" default(grade)
// @Param classId query string false "Class to compare against when grouping=class"
// @Param payload body simulateRequest true "Hypothetical subject scores"
// @Success 200 {object} response.Envelope
// @Security BearerAuth
// @Router /exams/{id}/students/{studentId}/simulate [post]
func (h *AnalysisHandler) Simulate(c *gin.Context) {
	studentID, ok := h.resolveStudent(c)
	if !ok {
		return
	}
	var req simulateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid payload"))
		return
	}
	grouping, groupKey, err := groupingFromQuery(c)
	if err != nil {
		response.Error(c, err)
		return
	}
	result, err := h.analytics.Simulate(c.Request.Context(), c.Param("id"), grouping, groupKey, service.SimulateRequest{
		StudentID:     studentID,
		SubjectScores: req.SubjectScores,
	})
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, result, nil)
}

// Bias godoc
// @Summary Subject strength and weakness radar for one student
// @Tags Analysis
// @Produce json
// @Param id path string true "Exam ID"
// @Param studentId path string true "Student ID"
// @Param grouping query string false "class or grade" default(grade)
// @Param classId query string false "Class to compare against when grouping=class"
// @Success 200 {object} response.Envelope
// @Security BearerAuth
// @Router /exams/{id}/students/{studentId}/bias [get]
func (h *AnalysisHandler) Bias(c *gin.Context) {
	studentID, ok := h.resolveStudent(c)
	if !ok {
		return
	}
	grouping, groupKey, err := groupingFromQuery(c)
	if err != nil {
		response.Error(c, err)
		return
	}
	analysis, hit, err := h.analytics.Bias(c.Request.Context(), c.Param("id"), studentID, grouping, groupKey)
	if err != nil {
		response.Error(c, err)
		return
	}
	markCache(c, hit)
	response.JSON(c, http.StatusOK, analysis, nil)
}

// Knowledge godoc
// @Summary Knowledge-point mastery for one student and subject
// @Tags Analysis
// @Produce json
// @Param id path string true "Exam ID"
// @Param studentId path string true "Student ID"
// @Param subjectId path string true "Subject ID"
// @Param grouping query string false "class or grade" default(grade)
// @Param classId query string false "Class to compare against when grouping=class"
// @Success 200 {object} response.Envelope
// @Security BearerAuth
// @Router /exams/{id}/students/{studentId}/subjects/{subjectId}/knowledge [get]
func (h *AnalysisHandler) Knowledge(c *gin.Context) {
	studentID, ok := h.resolveStudent(c)
	if !ok {
		return
	}
	grouping, groupKey, err := groupingFromQuery(c)
	if err != nil {
		response.Error(c, err)
		return
	}
	analysis, hit, err := h.analytics.Knowledge(c.Request.Context(), c.Param("id"), studentID, c.Param("subjectId"), grouping, groupKey)
	if err != nil {
		response.Error(c, err)
		return
	}
	markCache(c, hit)
	response.JSON(c, http.StatusOK, analysis, nil)
}

// Questions godoc
// @Summary Per-question analysis of one subject for one student
// @Tags Analysis
// @Produce json
// @Param id path string true "Exam ID"
// @Param studentId path string true "Student ID"
// @Param subjectId path string true "Subject ID"
// @Param grouping query string false "class or grade" default(grade)
// @Param classId query string false "Class to compare against when grouping=class"
// @Success 200 {object} response.Envelope
// @Security BearerAuth
// @Router /exams/{id}/students/{studentId}/subjects/{subjectId}/questions [get]
func (h *AnalysisHandler) Questions(c *gin.Context) {
	studentID, ok := h.resolveStudent(c)
	if !ok {
		return
	}
	grouping, groupKey, err := groupingFromQuery(c)
	if err != nil {
		response.Error(c, err)
		return
	}
	analysis, hit, err := h.analytics.Questions(c.Request.Context(), c.Param("id"), studentID, c.Param("subjectId"), grouping, groupKey)
	if err != nil {
		response.Error(c, err)
		return
	}
	markCache(c, hit)
	response.JSON(c, http.StatusOK, analysis, nil)
}

// Loss godoc
// @Summary Score-loss analysis for one student
// @Tags Analysis
// @Produce json
// @Param id path string true "Exam ID"
// @Param studentId path string true "Student ID"
// @Param grouping query string false "class or grade" default(grade)
// @Param classId query string false "Class to compare against when grouping=class"
// @Success 200 {object} response.Envelope
// @Security BearerAuth
// @Router /exams/{id}/students/{studentId}/loss [get]
func (h *AnalysisHandler) Loss(c *gin.Context) {
	studentID, ok := h.resolveStudent(c)
	if !ok {
		return
	}
	grouping, groupKey, err := groupingFromQuery(c)
	if err != nil {
		response.Error(c, err)
		return
	}
	analysis, hit, err := h.analytics.Loss(c.Request.Context(), c.Param("id"), studentID, grouping, groupKey)
	if err != nil {
		response.Error(c, err)
		return
	}
	markCache(c, hit)
	response.JSON(c, http.StatusOK, analysis, nil)
}

// ClassScores godoc
// @Summary Ranked score listing for one class
// @Tags Analysis
// @Produce json
// @Param id path string true "Exam ID"
// @Param classId path string true "Class ID"
// @Success 200 {object} response.Envelope
// @Security BearerAuth
// @Router /exams/{id}/classes/{classId}/scores [get]
func (h *AnalysisHandler) ClassScores(c *gin.Context) {
	report, hit, err := h.analytics.ClassScores(c.Request.Context(), c.Param("id"), c.Param("classId"))
	if err != nil {
		response.Error(c, err)
		return
	}
	markCache(c, hit)
	response.JSON(c, http.StatusOK, report, nil)
}

// Invalidate godoc
// @Summary Drop every cached analytics payload for an exam
// @Tags Analysis
// @Produce json
// @Param id path string true "Exam ID"
// @Success 200 {object} response.Envelope
// @Security BearerAuth
// @Router /exams/{id}/analysis/cache [delete]
func (h *AnalysisHandler) Invalidate(c *gin.Context) {
	if err := h.analytics.InvalidateExam(c.Request.Context(), c.Param("id")); err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, gin.H{"status": "invalidated"}, nil)
}

// resolveStudent returns the student being analysed and enforces that a
// student account only reads its own pages.
func (h *AnalysisHandler) resolveStudent(c *gin.Context) (string, bool) {
	studentID := c.Param("studentId")
	claims := claimsFromContext(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return "", false
	}
	if claims.Role == models.RoleStudent {
		if claims.StudentID == nil || *claims.StudentID != studentID {
			response.Error(c, appErrors.Clone(appErrors.ErrForbidden, "students may only view their own analysis"))
			return "", false
		}
	}
	return studentID, true
}

type simulateRequest struct {
	SubjectScores map[string]float64 `json:"subject_scores" binding:"required"`
}

func groupingFromQuery(c *gin.Context) (models.GroupingMode, string, error) {
	raw := c.DefaultQuery("grouping", string(models.GroupByGrade))
	switch models.GroupingMode(raw) {
	case models.GroupByGrade:
		return models.GroupByGrade, "", nil
	case models.GroupByClass:
		groupKey := c.Query("classId")
		if groupKey == "" {
			return "", "", appErrors.Clone(appErrors.ErrValidation, "classId required when grouping by class")
		}
		return models.GroupByClass, groupKey, nil
	default:
		return "", "", appErrors.Clone(appErrors.ErrValidation, "grouping must be class or grade")
	}
}

func markCache(c *gin.Context, hit bool) {
	if hit {
		c.Header(cacheHitHeader, "HIT")
		return
	}
	c.Header(cacheHitHeader, "MISS")
}
