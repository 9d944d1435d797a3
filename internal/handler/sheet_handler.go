package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/paperlens/exam-insight-api/internal/service"
	appErrors "github.com/paperlens/exam-insight-api/pkg/errors"
	"github.com/paperlens/exam-insight-api/pkg/response"
)

// SheetHandler exposes answer sheet ingestion and identity binding.
type SheetHandler struct {
	sheets *service.SheetService
}

// NewSheetHandler constructs handler.
func NewSheetHandler(sheets *service.SheetService) *SheetHandler {
	return &SheetHandler{sheets: sheets}
}

// Ingest godoc
// @Summary Ingest a scanned answer sheet
// @Tags Sheets
// @Accept json
// @Produce json
// @Param payload body service.IngestSheetRequest true "Sheet payload"
// @Success 201 {object} response.Envelope
// @Security BearerAuth
// @Router /sheets [post]
func (h *SheetHandler) Ingest(c *gin.Context) {
	var req service.IngestSheetRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid payload"))
		return
	}
	sheet, err := h.sheets.Ingest(c.Request.Context(), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, sheet)
}

// Get godoc
// @Summary Get one answer sheet
// @Tags Sheets
// @Produce json
// @Param id path string true "Sheet ID"
// @Success 200 {object} response.Envelope
// @Security BearerAuth
// @Router /sheets/{id} [get]
func (h *SheetHandler) Get(c *gin.Context) {
	sheet, err := h.sheets.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, sheet, nil)
}

// Bind godoc
// @Summary Bind an unbound sheet to a student by student code
// @Description Omitting student_code re-attempts resolution with the code extracted at ingestion.
// @Tags Sheets
// @Accept json
// @Produce json
// @Param id path string true "Sheet ID"
// @Param payload body bindSheetRequest true "Binding payload"
// @Success 200 {object} response.Envelope
// @Failure 422 {object} response.Envelope
// @Security BearerAuth
// @Router /sheets/{id}/bind [post]
func (h *SheetHandler) Bind(c *gin.Context) {
	var req bindSheetRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid payload"))
		return
	}
	sheet, err := h.sheets.Bind(c.Request.Context(), c.Param("id"), req.StudentCode)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, sheet, nil)
}

// ListUnbound godoc
// @Summary List an exam's sheets awaiting identity resolution
// @Tags Sheets
// @Produce json
// @Param id path string true "Exam ID"
// @Success 200 {object} response.Envelope
// @Security BearerAuth
// @Router /exams/{id}/sheets/unbound [get]
func (h *SheetHandler) ListUnbound(c *gin.Context) {
	sheets, err := h.sheets.ListUnbound(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, sheets, nil)
}

// RecordAnswer godoc
// @Summary Record one segmented answer from a bound sheet
// @Tags Sheets
// @Accept json
// @Produce json
// @Param id path string true "Sheet ID"
// @Param payload body service.RecordAnswerRequest true "Answer payload"
// @Success 201 {object} response.Envelope
// @Security BearerAuth
// @Router /sheets/{id}/answers [post]
func (h *SheetHandler) RecordAnswer(c *gin.Context) {
	var req service.RecordAnswerRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid payload"))
		return
	}
	req.SheetID = c.Param("id")
	answer, err := h.sheets.RecordAnswer(c.Request.Context(), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, answer)
}

type bindSheetRequest struct {
	StudentCode string `json:"student_code"`
}
