package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/paperlens/exam-insight-api/internal/service"
	appErrors "github.com/paperlens/exam-insight-api/pkg/errors"
	"github.com/paperlens/exam-insight-api/pkg/response"
)

// GradingHandler exposes the grading flow: record submission, resolution
// and the audit trail.
type GradingHandler struct {
	grading *service.GradingService
}

// NewGradingHandler constructs handler.
func NewGradingHandler(grading *service.GradingService) *GradingHandler {
	return &GradingHandler{grading: grading}
}

// Submit godoc
// @Summary Submit a reviewer's grade for an answer
// @Tags Grading
// @Accept json
// @Produce json
// @Param id path string true "Answer ID"
// @Param payload body service.SubmitGradeRequest true "Grade payload"
// @Success 200 {object} response.Envelope
// @Security BearerAuth
// @Router /answers/{id}/grades [post]
func (h *GradingHandler) Submit(c *gin.Context) {
	var req service.SubmitGradeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid payload"))
		return
	}
	req.AnswerID = c.Param("id")
	if claims := claimsFromContext(c); claims != nil && claims.ReviewerID != nil && req.ReviewerID == "" {
		req.ReviewerID = *claims.ReviewerID
	}
	view, err := h.grading.SubmitGrade(c.Request.Context(), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, view, nil)
}

// Resolve godoc
// @Summary Re-derive an answer's final score from its record trail
// @Tags Grading
// @Produce json
// @Param id path string true "Answer ID"
// @Success 200 {object} response.Envelope
// @Security BearerAuth
// @Router /answers/{id}/resolve [post]
func (h *GradingHandler) Resolve(c *gin.Context) {
	view, err := h.grading.Resolve(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, view, nil)
}

// Trail godoc
// @Summary Get an answer's grade records and current resolution
// @Tags Grading
// @Produce json
// @Param id path string true "Answer ID"
// @Success 200 {object} response.Envelope
// @Security BearerAuth
// @Router /answers/{id}/grades [get]
func (h *GradingHandler) Trail(c *gin.Context) {
	view, err := h.grading.Trail(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, view, nil)
}

// PendingArbitration godoc
// @Summary List an exam's answers awaiting arbitration
// @Tags Grading
// @Produce json
// @Param id path string true "Exam ID"
// @Success 200 {object} response.Envelope
// @Security BearerAuth
// @Router /exams/{id}/arbitration [get]
func (h *GradingHandler) PendingArbitration(c *gin.Context) {
	answers, err := h.grading.PendingArbitration(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, answers, nil)
}
