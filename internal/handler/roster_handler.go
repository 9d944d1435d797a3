package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/paperlens/exam-insight-api/internal/models"
	"github.com/paperlens/exam-insight-api/internal/service"
	appErrors "github.com/paperlens/exam-insight-api/pkg/errors"
	"github.com/paperlens/exam-insight-api/pkg/response"
)

// RosterHandler exposes student and reviewer registration endpoints.
type RosterHandler struct {
	roster *service.RosterService
}

// NewRosterHandler constructs handler.
func NewRosterHandler(roster *service.RosterService) *RosterHandler {
	return &RosterHandler{roster: roster}
}

// RegisterStudent godoc
// @Summary Register a student
// @Tags Roster
// @Accept json
// @Produce json
// @Param payload body service.RegisterStudentRequest true "Student payload"
// @Success 201 {object} response.Envelope
// @Security BearerAuth
// @Router /students [post]
func (h *RosterHandler) RegisterStudent(c *gin.Context) {
	var req service.RegisterStudentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid payload"))
		return
	}
	student, err := h.roster.RegisterStudent(c.Request.Context(), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, student)
}

// GetStudent godoc
// @Summary Get one student
// @Tags Roster
// @Produce json
// @Param id path string true "Student ID"
// @Success 200 {object} response.Envelope
// @Security BearerAuth
// @Router /students/{id} [get]
func (h *RosterHandler) GetStudent(c *gin.Context) {
	student, err := h.roster.GetStudent(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, student, nil)
}

// ListStudents godoc
// @Summary List students
// @Tags Roster
// @Produce json
// @Param classId query string false "Filter by class"
// @Param search query string false "Search by name or code"
// @Param page query int false "Page"
// @Param pageSize query int false "Page size"
// @Success 200 {object} response.Envelope
// @Security BearerAuth
// @Router /students [get]
func (h *RosterHandler) ListStudents(c *gin.Context) {
	filter := models.StudentFilter{
		ClassID:  c.Query("classId"),
		Search:   c.Query("search"),
		Page:     queryInt(c, "page", 1),
		PageSize: queryInt(c, "pageSize", 20),
	}
	students, total, err := h.roster.ListStudents(c.Request.Context(), filter)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, students, &models.Pagination{Page: filter.Page, PageSize: filter.PageSize, TotalCount: total})
}

// CreateReviewer godoc
// @Summary Register a reviewer
// @Tags Roster
// @Accept json
// @Produce json
// @Param payload body service.CreateReviewerRequest true "Reviewer payload"
// @Success 201 {object} response.Envelope
// @Security BearerAuth
// @Router /reviewers [post]
func (h *RosterHandler) CreateReviewer(c *gin.Context) {
	var req service.CreateReviewerRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid payload"))
		return
	}
	reviewer, err := h.roster.CreateReviewer(c.Request.Context(), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, reviewer)
}

// GetReviewer godoc
// @Summary Get one reviewer
// @Tags Roster
// @Produce json
// @Param id path string true "Reviewer ID"
// @Success 200 {object} response.Envelope
// @Security BearerAuth
// @Router /reviewers/{id} [get]
func (h *RosterHandler) GetReviewer(c *gin.Context) {
	reviewer, err := h.roster.GetReviewer(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, reviewer, nil)
}
