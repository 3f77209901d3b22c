package handler

import (
	"io"
	"mime"
	"net/http"
	"path/filepath"

	"github.com/gin-gonic/gin"

	"github.com/duotopia/duotopia-api/internal/service"
	"github.com/duotopia/duotopia-api/pkg/response"
)

// ExportHandler renders and serves grade-sheet exports.
type ExportHandler struct {
	service *service.ExportService
}

// NewExportHandler creates a new handler.
func NewExportHandler(svc *service.ExportService) *ExportHandler {
	return &ExportHandler{service: svc}
}

// Generate godoc
// @Summary Export grade sheet
// @Description Render the assignment's per-student aggregates to CSV or PDF
// @Tags Exports
// @Produce json
// @Param id path string true "Assignment id"
// @Param format query string false "csv or pdf (default csv)"
// @Success 200 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Router /assignments/{id}/grades/export [get]
// @Security BearerAuth
func (h *ExportHandler) Generate(c *gin.Context) {
	format := c.DefaultQuery("format", service.ExportFormatCSV)
	result, err := h.service.GenerateGradeSheet(c.Request.Context(), claimsFromContext(c), c.Param("id"), format)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, result, nil)
}

// Download godoc
// @Summary Download export
// @Description Stream a rendered grade sheet referenced by a signed token
// @Tags Exports
// @Produce octet-stream
// @Param token path string true "Signed download token"
// @Success 200
// @Failure 401 {object} response.Envelope
// @Router /exports/{token} [get]
func (h *ExportHandler) Download(c *gin.Context) {
	file, err := h.service.Open(c.Param("token"))
	if err != nil {
		response.Error(c, err)
		return
	}
	defer file.Close() //nolint:errcheck

	contentType := mime.TypeByExtension(filepath.Ext(file.Name()))
	if contentType == "" {
		contentType = "application/octet-stream"
	}
	c.Header("Content-Type", contentType)
	c.Header("Content-Disposition", "attachment; filename="+filepath.Base(file.Name()))
	c.Status(http.StatusOK)
	_, _ = io.Copy(c.Writer, file)
}
