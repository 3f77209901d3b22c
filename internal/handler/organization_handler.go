package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/duotopia/duotopia-api/internal/dto"
	"github.com/duotopia/duotopia-api/internal/service"
	appErrors "github.com/duotopia/duotopia-api/pkg/errors"
	"github.com/duotopia/duotopia-api/pkg/response"
)

// OrganizationHandler exposes the organization graph endpoints.
type OrganizationHandler struct {
	service *service.OrganizationService
}

// NewOrganizationHandler creates a new handler.
func NewOrganizationHandler(svc *service.OrganizationService) *OrganizationHandler {
	return &OrganizationHandler{service: svc}
}

// Create godoc
// @Summary Create organization
// @Description Create a tenant; the caller becomes its org_owner
// @Tags Organizations
// @Accept json
// @Produce json
// @Param payload body dto.CreateOrganizationRequest true "Organization payload"
// @Success 201 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Router /organizations [post]
// @Security BearerAuth
func (h *OrganizationHandler) Create(c *gin.Context) {
	var req dto.CreateOrganizationRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid organization payload"))
		return
	}
	org, err := h.service.CreateOrganization(c.Request.Context(), claimsFromContext(c), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, org)
}

// List godoc
// @Summary List organizations
// @Description List organizations visible to the caller
// @Tags Organizations
// @Produce json
// @Success 200 {object} response.Envelope
// @Router /organizations [get]
// @Security BearerAuth
func (h *OrganizationHandler) List(c *gin.Context) {
	orgs, err := h.service.ListOrganizations(c.Request.Context(), claimsFromContext(c))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, orgs, nil)
}

// Get godoc
// @Summary Get organization
// @Tags Organizations
// @Produce json
// @Param id path string true "Organization id"
// @Success 200 {object} response.Envelope
// @Failure 403 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Router /organizations/{id} [get]
// @Security BearerAuth
func (h *OrganizationHandler) Get(c *gin.Context) {
	org, err := h.service.GetOrganization(c.Request.Context(), claimsFromContext(c), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, org, nil)
}

// Update godoc
// @Summary Update organization
// @Tags Organizations
// @Accept json
// @Produce json
// @Param id path string true "Organization id"
// @Param payload body dto.UpdateOrganizationRequest true "Patch payload"
// @Success 200 {object} response.Envelope
// @Router /organizations/{id} [patch]
// @Security BearerAuth
func (h *OrganizationHandler) Update(c *gin.Context) {
	var req dto.UpdateOrganizationRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid organization payload"))
		return
	}
	org, err := h.service.UpdateOrganization(c.Request.Context(), claimsFromContext(c), c.Param("id"), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, org, nil)
}

// Delete godoc
// @Summary Soft-delete organization
// @Description Deactivates the organization, its schools, memberships and classroom links
// @Tags Organizations
// @Param id path string true "Organization id"
// @Success 204
// @Router /organizations/{id} [delete]
// @Security BearerAuth
func (h *OrganizationHandler) Delete(c *gin.Context) {
	if err := h.service.DeleteOrganization(c.Request.Context(), claimsFromContext(c), c.Param("id")); err != nil {
		response.Error(c, err)
		return
	}
	response.NoContent(c)
}

// Restore godoc
// @Summary Restore organization
// @Description Re-activates a soft-deleted organization; grants come back from the stored roles
// @Tags Organizations
// @Produce json
// @Param id path string true "Organization id"
// @Success 200 {object} response.Envelope
// @Failure 403 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Router /organizations/{id}/restore [post]
// @Security BearerAuth
func (h *OrganizationHandler) Restore(c *gin.Context) {
	org, err := h.service.RestoreOrganization(c.Request.Context(), claimsFromContext(c), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, org, nil)
}

// AddTeacher godoc
// @Summary Add teacher to organization
// @Tags Organizations
// @Accept json
// @Produce json
// @Param id path string true "Organization id"
// @Param payload body dto.AddOrganizationTeacherRequest true "Membership payload"
// @Success 201 {object} response.Envelope
// @Failure 409 {object} response.Envelope
// @Router /organizations/{id}/teachers [post]
// @Security BearerAuth
func (h *OrganizationHandler) AddTeacher(c *gin.Context) {
	var req dto.AddOrganizationTeacherRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid membership payload"))
		return
	}
	row, err := h.service.AddOrganizationTeacher(c.Request.Context(), claimsFromContext(c), c.Param("id"), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, row)
}

// RemoveTeacher godoc
// @Summary Remove teacher from organization
// @Tags Organizations
// @Param id path string true "Organization id"
// @Param teacherId path string true "Teacher id"
// @Success 204
// @Router /organizations/{id}/teachers/{teacherId} [delete]
// @Security BearerAuth
func (h *OrganizationHandler) RemoveTeacher(c *gin.Context) {
	if err := h.service.RemoveOrganizationTeacher(c.Request.Context(), claimsFromContext(c), c.Param("id"), c.Param("teacherId")); err != nil {
		response.Error(c, err)
		return
	}
	response.NoContent(c)
}

// ListTeachers godoc
// @Summary List organization teachers
// @Tags Organizations
// @Produce json
// @Param id path string true "Organization id"
// @Success 200 {object} response.Envelope
// @Router /organizations/{id}/teachers [get]
// @Security BearerAuth
func (h *OrganizationHandler) ListTeachers(c *gin.Context) {
	rows, err := h.service.ListOrganizationTeachers(c.Request.Context(), claimsFromContext(c), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, rows, nil)
}
