package service

import (
	"context"
	"database/sql"
	"errors"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/duotopia/duotopia-api/internal/authz"
	"github.com/duotopia/duotopia-api/internal/dto"
	"github.com/duotopia/duotopia-api/internal/models"
	appErrors "github.com/duotopia/duotopia-api/pkg/errors"
)

type organizationRepository interface {
	CreateOrganization(ctx context.Context, org *models.Organization, ownerTeacherID string) error
	FindOrganization(ctx context.Context, id string) (*models.Organization, error)
	ListOrganizations(ctx context.Context, ids []string) ([]models.Organization, error)
	UpdateOrganization(ctx context.Context, org *models.Organization) error
	SoftDeleteOrganization(ctx context.Context, id string) ([]string, error)
	RestoreOrganization(ctx context.Context, id string) ([]string, error)
	OrganizationRoleOf(ctx context.Context, orgID, teacherID string) (string, error)
	AddTeacherToOrganization(ctx context.Context, orgID, teacherID, role string) (*models.TeacherOrganization, error)
	RemoveTeacherFromOrganization(ctx context.Context, orgID, teacherID string) ([]string, error)
	ListOrganizationTeachers(ctx context.Context, orgID string) ([]models.TeacherOrganization, error)
	CreateSchool(ctx context.Context, school *models.School) error
	FindSchool(ctx context.Context, id string) (*models.School, error)
	ListSchools(ctx context.Context, schoolIDs, orgIDs []string) ([]models.School, error)
	UpdateSchool(ctx context.Context, school *models.School) error
	SoftDeleteSchool(ctx context.Context, id string) error
	UpsertTeacherSchool(ctx context.Context, schoolID, teacherID string, roles []string) (*models.TeacherSchool, error)
	RemoveTeacherFromSchool(ctx context.Context, schoolID, teacherID string) ([]string, error)
	ListSchoolTeachers(ctx context.Context, schoolID string) ([]models.TeacherSchool, error)
	LinkClassroomToSchool(ctx context.Context, classroomID, schoolID string) (*models.ClassroomSchool, error)
	FindClassroomLink(ctx context.Context, classroomID string) (*models.ClassroomSchool, error)
	UnlinkClassroom(ctx context.Context, classroomID string) error
	ListSchoolClassrooms(ctx context.Context, schoolID string) ([]models.Classroom, error)
	LoadMemberships(ctx context.Context) ([]models.TeacherMembership, error)
	LoadSchoolParents(ctx context.Context) (map[string]string, error)
}

// OrganizationService owns the tenant graph: organizations, schools,
// memberships, and classroom links. Every mutation keeps the authz engine
// index in step with the membership tables.
type OrganizationService struct {
	repo      organizationRepository
	engine    *authz.Engine
	validator *validator.Validate
	logger    *zap.Logger
}

// NewOrganizationService constructs an OrganizationService.
func NewOrganizationService(repo organizationRepository, engine *authz.Engine, validate *validator.Validate, logger *zap.Logger) *OrganizationService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if validate == nil {
		validate = validator.New()
	}
	return &OrganizationService{repo: repo, engine: engine, validator: validate, logger: logger}
}

// Rehydrate rebuilds the in-memory role index and school-parent graph from
// the membership tables. Called at startup and after re-activations.
func (s *OrganizationService) Rehydrate(ctx context.Context) error {
	memberships, err := s.repo.LoadMemberships(ctx)
	if err != nil {
		return err
	}
	parents, err := s.repo.LoadSchoolParents(ctx)
	if err != nil {
		return err
	}
	s.engine.Snapshot(memberships, parents)
	s.logger.Info("authz index rebuilt", zap.Int("memberships", len(memberships)), zap.Int("schools", len(parents)))
	return nil
}

// CreateOrganization creates a tenant; the caller becomes its org_owner.
func (s *OrganizationService) CreateOrganization(ctx context.Context, actor *models.JWTClaims, req dto.CreateOrganizationRequest) (*models.Organization, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid organization payload")
	}

	org := &models.Organization{
		Name:        req.Name,
		DisplayName: req.DisplayName,
		Settings:    req.Settings,
	}
	if org.DisplayName == "" {
		org.DisplayName = req.Name
	}
	if err := s.repo.CreateOrganization(ctx, org, actor.UserID); err != nil {
		return nil, err
	}

	if err := s.engine.Grant(actor.UserID, models.RoleOrgOwner, authz.OrgDomain(org.ID)); err != nil {
		return nil, err
	}
	return org, nil
}

// ListOrganizations returns the organizations visible to the caller.
func (s *OrganizationService) ListOrganizations(ctx context.Context, actor *models.JWTClaims) ([]models.Organization, error) {
	domains := s.engine.VisibleDomains(actor.UserID, authz.ResourceOrganization, authz.ActionRead)
	var ids []string
	for _, domain := range domains {
		if id := authz.OrgID(domain); id != "" {
			ids = append(ids, id)
		}
	}
	return s.repo.ListOrganizations(ctx, ids)
}

// GetOrganization fetches one organization after a read check.
func (s *OrganizationService) GetOrganization(ctx context.Context, actor *models.JWTClaims, id string) (*models.Organization, error) {
	if !s.engine.Check(actor.UserID, authz.ResourceOrganization, authz.ActionRead, authz.OrgDomain(id)) {
		return nil, appErrors.Clone(appErrors.ErrForbidden, "")
	}
	org, err := s.repo.FindOrganization(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "organization not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load organization")
	}
	return org, nil
}

// UpdateOrganization patches display fields after an update check.
func (s *OrganizationService) UpdateOrganization(ctx context.Context, actor *models.JWTClaims, id string, req dto.UpdateOrganizationRequest) (*models.Organization, error) {
	if !s.engine.Check(actor.UserID, authz.ResourceOrganization, authz.ActionUpdate, authz.OrgDomain(id)) {
		return nil, appErrors.Clone(appErrors.ErrForbidden, "")
	}
	org, err := s.repo.FindOrganization(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "organization not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load organization")
	}
	if req.Name != nil {
		org.Name = *req.Name
	}
	if req.DisplayName != nil {
		org.DisplayName = *req.DisplayName
	}
	if req.Settings != nil {
		org.Settings = req.Settings
	}
	if err := s.repo.UpdateOrganization(ctx, org); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "organization not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to update organization")
	}
	return org, nil
}

// DeleteOrganization soft-deletes the organization and cascades to owned
// schools and memberships. Grants scoped to the deleted domains are
// dropped from the index.
func (s *OrganizationService) DeleteOrganization(ctx context.Context, actor *models.JWTClaims, id string) error {
	if !s.engine.Check(actor.UserID, authz.ResourceOrganization, authz.ActionDelete, authz.OrgDomain(id)) {
		return appErrors.Clone(appErrors.ErrForbidden, "")
	}
	schoolIDs, err := s.repo.SoftDeleteOrganization(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return appErrors.Clone(appErrors.ErrNotFound, "organization not found")
		}
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to delete organization")
	}

	s.engine.RevokeDomain(authz.OrgDomain(id))
	for _, schoolID := range schoolIDs {
		s.engine.RevokeDomain(authz.SchoolDomain(schoolID))
		s.engine.RemoveParent(authz.SchoolDomain(schoolID))
	}
	return nil
}

// RestoreOrganization re-activates a soft-deleted organization, its
// schools, and their memberships, then rebuilds the authz index so the
// stored roles turn back into grants. Soft delete revoked every grant on
// the domain, so the gate checks the stored owner membership instead of
// the engine. Classroom links do not come back; they were removed, not
// deactivated.
func (s *OrganizationService) RestoreOrganization(ctx context.Context, actor *models.JWTClaims, id string) (*models.Organization, error) {
	if actor == nil || !actor.IsTeacher() {
		return nil, appErrors.Clone(appErrors.ErrForbidden, "")
	}
	role, err := s.repo.OrganizationRoleOf(ctx, id, actor.UserID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load membership")
	}
	if role != models.RoleOrgOwner {
		return nil, appErrors.Clone(appErrors.ErrForbidden, "only the organization owner can restore it")
	}

	schoolIDs, err := s.repo.RestoreOrganization(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "no deleted organization to restore")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to restore organization")
	}
	s.logger.Info("organization restored",
		zap.String("organization_id", id),
		zap.Int("schools", len(schoolIDs)))

	if err := s.Rehydrate(ctx); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to rebuild authorization index")
	}

	org, err := s.repo.FindOrganization(ctx, id)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load organization")
	}
	return org, nil
}

// AddOrganizationTeacher grants an org-level role. A second org_owner is a
// conflict.
func (s *OrganizationService) AddOrganizationTeacher(ctx context.Context, actor *models.JWTClaims, orgID string, req dto.AddOrganizationTeacherRequest) (*models.TeacherOrganization, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid membership payload")
	}
	if _, ok := models.OrgRoles[req.Role]; !ok {
		return nil, appErrors.Clone(appErrors.ErrValidation, "role must be org_owner or org_admin")
	}
	if !s.engine.Check(actor.UserID, authz.ResourceTeacher, authz.ActionCreate, authz.OrgDomain(orgID)) {
		return nil, appErrors.Clone(appErrors.ErrForbidden, "")
	}

	row, err := s.repo.AddTeacherToOrganization(ctx, orgID, req.TeacherID, req.Role)
	if err != nil {
		return nil, err
	}
	if err := s.engine.Grant(req.TeacherID, req.Role, authz.OrgDomain(orgID)); err != nil {
		return nil, err
	}
	return row, nil
}

// RemoveOrganizationTeacher deactivates the membership and revokes the
// grant. Removing a non-member is a no-op.
func (s *OrganizationService) RemoveOrganizationTeacher(ctx context.Context, actor *models.JWTClaims, orgID, teacherID string) error {
	if !s.engine.Check(actor.UserID, authz.ResourceTeacher, authz.ActionDelete, authz.OrgDomain(orgID)) {
		return appErrors.Clone(appErrors.ErrForbidden, "")
	}
	roles, err := s.repo.RemoveTeacherFromOrganization(ctx, orgID, teacherID)
	if err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to remove teacher")
	}
	for _, role := range roles {
		s.engine.Revoke(teacherID, role, authz.OrgDomain(orgID))
	}
	return nil
}

// ListOrganizationTeachers lists active org memberships.
func (s *OrganizationService) ListOrganizationTeachers(ctx context.Context, actor *models.JWTClaims, orgID string) ([]models.TeacherOrganization, error) {
	if !s.engine.Check(actor.UserID, authz.ResourceTeacher, authz.ActionRead, authz.OrgDomain(orgID)) {
		return nil, appErrors.Clone(appErrors.ErrForbidden, "")
	}
	return s.repo.ListOrganizationTeachers(ctx, orgID)
}

// CreateSchool creates a school under an active organization.
func (s *OrganizationService) CreateSchool(ctx context.Context, actor *models.JWTClaims, req dto.CreateSchoolRequest) (*models.School, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid school payload")
	}
	if !s.engine.Check(actor.UserID, authz.ResourceSchool, authz.ActionCreate, authz.OrgDomain(req.OrganizationID)) {
		return nil, appErrors.Clone(appErrors.ErrForbidden, "")
	}
	if _, err := s.repo.FindOrganization(ctx, req.OrganizationID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "organization not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load organization")
	}

	school := &models.School{OrganizationID: req.OrganizationID, DisplayName: req.DisplayName}
	if err := s.repo.CreateSchool(ctx, school); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create school")
	}
	s.engine.SetParent(authz.SchoolDomain(school.ID), authz.OrgDomain(req.OrganizationID))
	return school, nil
}

// GetSchool fetches a school after a read check. Org-level roles in the
// parent organization pass through inheritance.
func (s *OrganizationService) GetSchool(ctx context.Context, actor *models.JWTClaims, id string) (*models.School, error) {
	if !s.engine.Check(actor.UserID, authz.ResourceSchool, authz.ActionRead, authz.SchoolDomain(id)) {
		return nil, appErrors.Clone(appErrors.ErrForbidden, "")
	}
	school, err := s.repo.FindSchool(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "school not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load school")
	}
	return school, nil
}

// ListSchools returns schools visible to the caller, either directly or
// through org-level inheritance.
func (s *OrganizationService) ListSchools(ctx context.Context, actor *models.JWTClaims) ([]models.School, error) {
	domains := s.engine.VisibleDomains(actor.UserID, authz.ResourceSchool, authz.ActionRead)
	var schoolIDs, orgIDs []string
	for _, domain := range domains {
		if id := authz.SchoolID(domain); id != "" {
			schoolIDs = append(schoolIDs, id)
		} else if id := authz.OrgID(domain); id != "" {
			orgIDs = append(orgIDs, id)
		}
	}
	return s.repo.ListSchools(ctx, schoolIDs, orgIDs)
}

// UpdateSchool patches a school after an update check.
func (s *OrganizationService) UpdateSchool(ctx context.Context, actor *models.JWTClaims, id string, req dto.UpdateSchoolRequest) (*models.School, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid school payload")
	}
	if !s.engine.Check(actor.UserID, authz.ResourceSchool, authz.ActionUpdate, authz.SchoolDomain(id)) {
		return nil, appErrors.Clone(appErrors.ErrForbidden, "")
	}
	school, err := s.repo.FindSchool(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "school not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load school")
	}
	school.DisplayName = req.DisplayName
	if err := s.repo.UpdateSchool(ctx, school); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to update school")
	}
	return school, nil
}

// DeleteSchool soft-deletes a school, its memberships, and classroom
// links.
func (s *OrganizationService) DeleteSchool(ctx context.Context, actor *models.JWTClaims, id string) error {
	if !s.engine.Check(actor.UserID, authz.ResourceSchool, authz.ActionDelete, authz.SchoolDomain(id)) {
		return appErrors.Clone(appErrors.ErrForbidden, "")
	}
	if err := s.repo.SoftDeleteSchool(ctx, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return appErrors.Clone(appErrors.ErrNotFound, "school not found")
		}
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to delete school")
	}
	s.engine.RevokeDomain(authz.SchoolDomain(id))
	s.engine.RemoveParent(authz.SchoolDomain(id))
	return nil
}

// AddSchoolTeacher upserts school roles with union semantics and grants
// them. Roles are validated against the closed school-role set.
func (s *OrganizationService) AddSchoolTeacher(ctx context.Context, actor *models.JWTClaims, schoolID string, req dto.AddSchoolTeacherRequest) (*models.TeacherSchool, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid membership payload")
	}
	for _, role := range req.Roles {
		if _, ok := models.SchoolRoles[role]; !ok {
			return nil, appErrors.Clone(appErrors.ErrValidation, "roles must be school_admin or teacher")
		}
	}
	if !s.engine.Check(actor.UserID, authz.ResourceTeacher, authz.ActionCreate, authz.SchoolDomain(schoolID)) {
		return nil, appErrors.Clone(appErrors.ErrForbidden, "")
	}

	row, err := s.repo.UpsertTeacherSchool(ctx, schoolID, req.TeacherID, req.Roles)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to add teacher to school")
	}
	for _, role := range row.Roles {
		if err := s.engine.Grant(req.TeacherID, role, authz.SchoolDomain(schoolID)); err != nil {
			return nil, err
		}
	}
	return row, nil
}

// RemoveSchoolTeacher deactivates the membership and revokes its grants.
func (s *OrganizationService) RemoveSchoolTeacher(ctx context.Context, actor *models.JWTClaims, schoolID, teacherID string) error {
	if !s.engine.Check(actor.UserID, authz.ResourceTeacher, authz.ActionDelete, authz.SchoolDomain(schoolID)) {
		return appErrors.Clone(appErrors.ErrForbidden, "")
	}
	roles, err := s.repo.RemoveTeacherFromSchool(ctx, schoolID, teacherID)
	if err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to remove teacher")
	}
	for _, role := range roles {
		s.engine.Revoke(teacherID, role, authz.SchoolDomain(schoolID))
	}
	return nil
}

// ListSchoolTeachers lists active school memberships.
func (s *OrganizationService) ListSchoolTeachers(ctx context.Context, actor *models.JWTClaims, schoolID string) ([]models.TeacherSchool, error) {
	if !s.engine.Check(actor.UserID, authz.ResourceTeacher, authz.ActionRead, authz.SchoolDomain(schoolID)) {
		return nil, appErrors.Clone(appErrors.ErrForbidden, "")
	}
	return s.repo.ListSchoolTeachers(ctx, schoolID)
}

// LinkClassroom attaches a classroom to a school. A classroom may link to
// at most one school.
func (s *OrganizationService) LinkClassroom(ctx context.Context, actor *models.JWTClaims, classroomID string, req dto.LinkClassroomRequest) (*models.ClassroomSchool, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid link payload")
	}
	if !s.engine.Check(actor.UserID, authz.ResourceClassroom, authz.ActionUpdate, authz.SchoolDomain(req.SchoolID)) {
		return nil, appErrors.Clone(appErrors.ErrForbidden, "")
	}
	return s.repo.LinkClassroomToSchool(ctx, classroomID, req.SchoolID)
}

// GetClassroomLink returns the school a classroom is attached to.
func (s *OrganizationService) GetClassroomLink(ctx context.Context, actor *models.JWTClaims, classroomID string) (*models.ClassroomSchool, error) {
	link, err := s.repo.FindClassroomLink(ctx, classroomID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "classroom is not linked to a school")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load classroom link")
	}
	if !s.engine.Check(actor.UserID, authz.ResourceClassroom, authz.ActionRead, authz.SchoolDomain(link.SchoolID)) {
		return nil, appErrors.Clone(appErrors.ErrForbidden, "")
	}
	return link, nil
}

// UnlinkClassroom removes the classroom's school link.
func (s *OrganizationService) UnlinkClassroom(ctx context.Context, actor *models.JWTClaims, classroomID string) error {
	link, err := s.repo.FindClassroomLink(ctx, classroomID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil // already unlinked
		}
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load classroom link")
	}
	if !s.engine.Check(actor.UserID, authz.ResourceClassroom, authz.ActionUpdate, authz.SchoolDomain(link.SchoolID)) {
		return appErrors.Clone(appErrors.ErrForbidden, "")
	}
	return s.repo.UnlinkClassroom(ctx, classroomID)
}

// ListSchoolClassrooms lists classrooms linked to a school.
func (s *OrganizationService) ListSchoolClassrooms(ctx context.Context, actor *models.JWTClaims, schoolID string) ([]models.Classroom, error) {
	if !s.engine.Check(actor.UserID, authz.ResourceClassroom, authz.ActionRead, authz.SchoolDomain(schoolID)) {
		return nil, appErrors.Clone(appErrors.ErrForbidden, "")
	}
	return s.repo.ListSchoolClassrooms(ctx, schoolID)
}
