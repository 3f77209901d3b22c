package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/duotopia/duotopia-api/internal/dto"
	"github.com/duotopia/duotopia-api/internal/service"
	appErrors "github.com/duotopia/duotopia-api/pkg/errors"
	"github.com/duotopia/duotopia-api/pkg/response"
)

// ClassroomHandler manages classroom-to-school links.
type ClassroomHandler struct {
	service *service.OrganizationService
}

// NewClassroomHandler creates a new handler.
func NewClassroomHandler(svc *service.OrganizationService) *ClassroomHandler {
	return &ClassroomHandler{service: svc}
}

// Link godoc
// @Summary Link classroom to school
// @Description A classroom belongs to at most one school
// @Tags Classrooms
// @Accept json
// @Produce json
// @Param id path string true "Classroom id"
// @Param payload body dto.LinkClassroomRequest true "Link payload"
// @Success 201 {object} response.Envelope
// @Failure 409 {object} response.Envelope
// @Router /classrooms/{id}/school [post]
// @Security BearerAuth
func (h *ClassroomHandler) Link(c *gin.Context) {
	var req dto.LinkClassroomRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid link payload"))
		return
	}
	link, err := h.service.LinkClassroom(c.Request.Context(), claimsFromContext(c), c.Param("id"), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, link)
}

// GetLink godoc
// @Summary Get classroom's school link
// @Tags Classrooms
// @Produce json
// @Param id path string true "Classroom id"
// @Success 200 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Router /classrooms/{id}/school [get]
// @Security BearerAuth
func (h *ClassroomHandler) GetLink(c *gin.Context) {
	link, err := h.service.GetClassroomLink(c.Request.Context(), claimsFromContext(c), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, link, nil)
}

// Unlink godoc
// @Summary Unlink classroom from its school
// @Tags Classrooms
// @Param id path string true "Classroom id"
// @Success 204
// @Router /classrooms/{id}/school [delete]
// @Security BearerAuth
func (h *ClassroomHandler) Unlink(c *gin.Context) {
	if err := h.service.UnlinkClassroom(c.Request.Context(), claimsFromContext(c), c.Param("id")); err != nil {
		response.Error(c, err)
		return
	}
	response.NoContent(c)
}
