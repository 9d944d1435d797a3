package handler

import (
	"fmt"
	"net/http"
	"path/filepath"

	"github.com/gin-gonic/gin"

	"github.com/paperlens/exam-insight-api/internal/service"
	appErrors "github.com/paperlens/exam-insight-api/pkg/errors"
	"github.com/paperlens/exam-insight-api/pkg/response"
)

// ExportHandler exposes asynchronous score report exports.
type ExportHandler struct {
	exports *service.ExportService
}

// NewExportHandler constructs handler.
func NewExportHandler(exports *service.ExportService) *ExportHandler {
	return &ExportHandler{exports: exports}
}

// Request godoc
// @Summary Queue a score report export
// @Tags Exports
// @Accept json
// @Produce json
// @Param payload body service.ExportRequest true "Export payload"
// @Success 201 {object} response.Envelope
// @Security BearerAuth
// @Router /exports [post]
func (h *ExportHandler) Request(c *gin.Context) {
	var req service.ExportRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid payload"))
		return
	}
	if claims := claimsFromContext(c); claims != nil {
		req.RequestedBy = claims.UserID
	}
	job, err := h.exports.Request(c.Request.Context(), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, job)
}

// Status godoc
// @Summary Get one export job
// @Tags Exports
// @Produce json
// @Param id path string true "Job ID"
// @Success 200 {object} response.Envelope
// @Security BearerAuth
// @Router /exports/{id} [get]
func (h *ExportHandler) Status(c *gin.Context) {
	job, err := h.exports.Status(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, job, nil)
}

// ListByExam godoc
// @Summary List an exam's export jobs
// @Tags Exports
// @Produce json
// @Param id path string true "Exam ID"
// @Success 200 {object} response.Envelope
// @Security BearerAuth
// @Router /exams/{id}/exports [get]
func (h *ExportHandler) ListByExam(c *gin.Context) {
	list, err := h.exports.ListByExam(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, list, nil)
}

// DownloadLink godoc
// @Summary Issue a signed download link for a completed job
// @Tags Exports
// @Produce json
// @Param id path string true "Job ID"
// @Success 200 {object} response.Envelope
// @Security BearerAuth
// @Router /exports/{id}/link [get]
func (h *ExportHandler) DownloadLink(c *gin.Context) {
	link, err := h.exports.DownloadLink(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, link, nil)
}

// Download godoc
// @Summary Stream a rendered report using a signed token
// @Tags Exports
// @Produce application/octet-stream
// @Param token path string true "Signed download token"
// @Success 200 {file} file
// @Router /exports/download/{token} [get]
func (h *ExportHandler) Download(c *gin.Context) {
	file, err := h.exports.Open(c.Param("token"))
	if err != nil {
		response.Error(c, err)
		return
	}
	defer file.Close()

	info, err := file.Stat()
	if err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrInternal.Code, http.StatusInternalServerError, "failed to stat export file"))
		return
	}
	name := filepath.Base(file.Name())
	c.Header("Content-Disposition", fmt.Sprintf("attachment; filename=%q", name))
	c.DataFromReader(http.StatusOK, info.Size(), "application/octet-stream", file, nil)
}
