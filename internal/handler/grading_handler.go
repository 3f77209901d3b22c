package handler

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/duotopia/duotopia-api/internal/dto"
	"github.com/duotopia/duotopia-api/internal/service"
	"github.com/duotopia/duotopia-api/pkg/response"
)

// GradingHandler triggers batch auto-grading runs.
type GradingHandler struct {
	service *service.GradingService
	metrics *service.MetricsService
}

// NewGradingHandler creates a new handler.
func NewGradingHandler(svc *service.GradingService, metrics *service.MetricsService) *GradingHandler {
	return &GradingHandler{service: svc, metrics: metrics}
}

// BatchGrade godoc
// @Summary Batch grade assignment
// @Description Assess every recorded-but-unscored item, synthesize feedback, and commit per student
// @Tags Grading
// @Produce json
// @Param id path string true "Assignment id"
// @Success 200 {object} response.Envelope
// @Failure 403 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Router /assignments/{id}/batch-grade [post]
// @Security BearerAuth
func (h *GradingHandler) BatchGrade(c *gin.Context) {
	start := time.Now()
	results, err := h.service.BatchGrade(c.Request.Context(), claimsFromContext(c), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}

	ok, failed := 0, 0
	for _, r := range results {
		if r.Status == dto.GradeStatusOK {
			ok++
		} else {
			failed++
		}
	}
	h.metrics.ObserveBatchGrade(time.Since(start), ok, failed)

	response.JSON(c, http.StatusOK, results, nil)
}
