package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/duotopia/duotopia-api/internal/dto"
	"github.com/duotopia/duotopia-api/internal/service"
	appErrors "github.com/duotopia/duotopia-api/pkg/errors"
	"github.com/duotopia/duotopia-api/pkg/response"
)

// SchoolHandler exposes school and school-membership endpoints.
type SchoolHandler struct {
	service *service.OrganizationService
}

// NewSchoolHandler creates a new handler.
func NewSchoolHandler(svc *service.OrganizationService) *SchoolHandler {
	return &SchoolHandler{service: svc}
}

// Create godoc
// @Summary Create school
// @Tags Schools
// @Accept json
// @Produce json
// @Param payload body dto.CreateSchoolRequest true "School payload"
// @Success 201 {object} response.Envelope
// @Router /schools [post]
// @Security BearerAuth
func (h *SchoolHandler) Create(c *gin.Context) {
	var req dto.CreateSchoolRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid school payload"))
		return
	}
	school, err := h.service.CreateSchool(c.Request.Context(), claimsFromContext(c), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, school)
}

// List godoc
// @Summary List schools visible to the caller
// @Tags Schools
// @Produce json
// @Success 200 {object} response.Envelope
// @Router /schools [get]
// @Security BearerAuth
func (h *SchoolHandler) List(c *gin.Context) {
	schools, err := h.service.ListSchools(c.Request.Context(), claimsFromContext(c))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, schools, nil)
}

// Get godoc
// @Summary Get school
// @Tags Schools
// @Produce json
// @Param id path string true "School id"
// @Success 200 {object} response.Envelope
// @Router /schools/{id} [get]
// @Security BearerAuth
func (h *SchoolHandler) Get(c *gin.Context) {
	school, err := h.service.GetSchool(c.Request.Context(), claimsFromContext(c), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, school, nil)
}

// Update godoc
// @Summary Update school
// @Tags Schools
// @Accept json
// @Produce json
// @Param id path string true "School id"
// @Param payload body dto.UpdateSchoolRequest true "Patch payload"
// @Success 200 {object} response.Envelope
// @Router /schools/{id} [patch]
// @Security BearerAuth
func (h *SchoolHandler) Update(c *gin.Context) {
	var req dto.UpdateSchoolRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid school payload"))
		return
	}
	school, err := h.service.UpdateSchool(c.Request.Context(), claimsFromContext(c), c.Param("id"), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, school, nil)
}

// Delete godoc
// @Summary Soft-delete school
// @Tags Schools
// @Param id path string true "School id"
// @Success 204
// @Router /schools/{id} [delete]
// @Security BearerAuth
func (h *SchoolHandler) Delete(c *gin.Context) {
	if err := h.service.DeleteSchool(c.Request.Context(), claimsFromContext(c), c.Param("id")); err != nil {
		response.Error(c, err)
		return
	}
	response.NoContent(c)
}

// AddTeacher godoc
// @Summary Add teacher to school
// @Description Roles merge with any existing membership (union semantics)
// @Tags Schools
// @Accept json
// @Produce json
// @Param id path string true "School id"
// @Param payload body dto.AddSchoolTeacherRequest true "Membership payload"
// @Success 201 {object} response.Envelope
// @Router /schools/{id}/teachers [post]
// @Security BearerAuth
func (h *SchoolHandler) AddTeacher(c *gin.Context) {
	var req dto.AddSchoolTeacherRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid membership payload"))
		return
	}
	row, err := h.service.AddSchoolTeacher(c.Request.Context(), claimsFromContext(c), c.Param("id"), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, row)
}

// UpdateTeacher godoc
// @Summary Update a teacher's school roles
// @Description New roles merge into the existing membership (union semantics)
// @Tags Schools
// @Accept json
// @Produce json
// @Param id path string true "School id"
// @Param teacherId path string true "Teacher id"
// @Param payload body dto.UpdateSchoolTeacherRequest true "Roles payload"
// @Success 200 {object} response.Envelope
// @Router /schools/{id}/teachers/{teacherId} [patch]
// @Security BearerAuth
func (h *SchoolHandler) UpdateTeacher(c *gin.Context) {
	var req dto.UpdateSchoolTeacherRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid membership payload"))
		return
	}
	row, err := h.service.AddSchoolTeacher(c.Request.Context(), claimsFromContext(c), c.Param("id"),
		dto.AddSchoolTeacherRequest{TeacherID: c.Param("teacherId"), Roles: req.Roles})
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, row, nil)
}

// RemoveTeacher godoc
// @Summary Remove teacher from school
// @Tags Schools
// @Param id path string true "School id"
// @Param teacherId path string true "Teacher id"
// @Success 204
// @Router /schools/{id}/teachers/{teacherId} [delete]
// @Security BearerAuth
func (h *SchoolHandler) RemoveTeacher(c *gin.Context) {
	if err := h.service.RemoveSchoolTeacher(c.Request.Context(), claimsFromContext(c), c.Param("id"), c.Param("teacherId")); err != nil {
		response.Error(c, err)
		return
	}
	response.NoContent(c)
}

// ListTeachers godoc
// @Summary List school teachers
// @Tags Schools
// @Produce json
// @Param id path string true "School id"
// @Success 200 {object} response.Envelope
// @Router /schools/{id}/teachers [get]
// @Security BearerAuth
func (h *SchoolHandler) ListTeachers(c *gin.Context) {
	rows, err := h.service.ListSchoolTeachers(c.Request.Context(), claimsFromContext(c), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, rows, nil)
}

// ListClassrooms godoc
// @Summary List classrooms linked to a school
// @Tags Schools
// @Produce json
// @Param id path string true "School id"
// @Success 200 {object} response.Envelope
// @Router /schools/{id}/classrooms [get]
// @Security BearerAuth
func (h *SchoolHandler) ListClassrooms(c *gin.Context) {
	rows, err := h.service.ListSchoolClassrooms(c.Request.Context(), claimsFromContext(c), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, rows, nil)
}
