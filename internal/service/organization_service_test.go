package service

import (
	"context"
	"database/sql"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/duotopia/duotopia-api/internal/authz"
	"github.com/duotopia/duotopia-api/internal/dto"
	"github.com/duotopia/duotopia-api/internal/models"
	appErrors "github.com/duotopia/duotopia-api/pkg/errors"
)

type stubOrgRepo struct {
	orgs        map[string]*models.Organization
	deletedOrgs map[string]*models.Organization
	schools     map[string]*models.School
	links       map[string]*models.ClassroomSchool
	roleOf      map[string]string // orgID+"/"+teacherID -> stored role

	deletedOrgSchools []string
	removedOrgRoles   []string
	removedSchRoles   []string
	mergedRoles       []string

	listedOrgIDs    []string
	listedSchoolIDs []string
	listedParentIDs []string
	unlinked        []string

	memberships   []models.TeacherMembership
	schoolParents map[string]string
}

func newStubOrgRepo() *stubOrgRepo {
	return &stubOrgRepo{
		orgs:          map[string]*models.Organization{},
		deletedOrgs:   map[string]*models.Organization{},
		schools:       map[string]*models.School{},
		links:         map[string]*models.ClassroomSchool{},
		roleOf:        map[string]string{},
		schoolParents: map[string]string{},
	}
}

func (r *stubOrgRepo) CreateOrganization(ctx context.Context, org *models.Organization, ownerTeacherID string) error {
	org.ID = "org-new"
	org.Active = true
	r.orgs[org.ID] = org
	return nil
}

func (r *stubOrgRepo) FindOrganization(ctx context.Context, id string) (*models.Organization, error) {
	org, ok := r.orgs[id]
	if !ok {
		return nil, sql.ErrNoRows
	}
	return org, nil
}

func (r *stubOrgRepo) ListOrganizations(ctx context.Context, ids []string) ([]models.Organization, error) {
	r.listedOrgIDs = ids
	var out []models.Organization
	for _, id := range ids {
		if org, ok := r.orgs[id]; ok {
			out = append(out, *org)
		}
	}
	return out, nil
}

func (r *stubOrgRepo) UpdateOrganization(ctx context.Context, org *models.Organization) error {
	if _, ok := r.orgs[org.ID]; !ok {
		return sql.ErrNoRows
	}
	r.orgs[org.ID] = org
	return nil
}

func (r *stubOrgRepo) SoftDeleteOrganization(ctx context.Context, id string) ([]string, error) {
	org, ok := r.orgs[id]
	if !ok {
		return nil, sql.ErrNoRows
	}
	delete(r.orgs, id)
	r.deletedOrgs[id] = org
	return r.deletedOrgSchools, nil
}

func (r *stubOrgRepo) RestoreOrganization(ctx context.Context, id string) ([]string, error) {
	org, ok := r.deletedOrgs[id]
	if !ok {
		return nil, sql.ErrNoRows
	}
	delete(r.deletedOrgs, id)
	r.orgs[id] = org
	return r.deletedOrgSchools, nil
}

func (r *stubOrgRepo) OrganizationRoleOf(ctx context.Context, orgID, teacherID string) (string, error) {
	return r.roleOf[orgID+"/"+teacherID], nil
}

func (r *stubOrgRepo) AddTeacherToOrganization(ctx context.Context, orgID, teacherID, role string) (*models.TeacherOrganization, error) {
	return &models.TeacherOrganization{TeacherID: teacherID, OrganizationID: orgID, Role: role, Active: true}, nil
}

func (r *stubOrgRepo) RemoveTeacherFromOrganization(ctx context.Context, orgID, teacherID string) ([]string, error) {
	return r.removedOrgRoles, nil
}

func (r *stubOrgRepo) ListOrganizationTeachers(ctx context.Context, orgID string) ([]models.TeacherOrganization, error) {
	return nil, nil
}

func (r *stubOrgRepo) CreateSchool(ctx context.Context, school *models.School) error {
	school.ID = "sch-new"
	school.Active = true
	r.schools[school.ID] = school
	return nil
}

func (r *stubOrgRepo) FindSchool(ctx context.Context, id string) (*models.School, error) {
	school, ok := r.schools[id]
	if !ok {
		return nil, sql.ErrNoRows
	}
	return school, nil
}

func (r *stubOrgRepo) ListSchools(ctx context.Context, schoolIDs, orgIDs []string) ([]models.School, error) {
	r.listedSchoolIDs = schoolIDs
	r.listedParentIDs = orgIDs
	return nil, nil
}

func (r *stubOrgRepo) UpdateSchool(ctx context.Context, school *models.School) error {
	r.schools[school.ID] = school
	return nil
}

func (r *stubOrgRepo) SoftDeleteSchool(ctx context.Context, id string) error {
	if _, ok := r.schools[id]; !ok {
		return sql.ErrNoRows
	}
	delete(r.schools, id)
	return nil
}

func (r *stubOrgRepo) UpsertTeacherSchool(ctx context.Context, schoolID, teacherID string, roles []string) (*models.TeacherSchool, error) {
	merged := r.mergedRoles
	if merged == nil {
		merged = roles
	}
	return &models.TeacherSchool{TeacherID: teacherID, SchoolID: schoolID, Roles: merged, Active: true}, nil
}

func (r *stubOrgRepo) RemoveTeacherFromSchool(ctx context.Context, schoolID, teacherID string) ([]string, error) {
	return r.removedSchRoles, nil
}

func (r *stubOrgRepo) ListSchoolTeachers(ctx context.Context, schoolID string) ([]models.TeacherSchool, error) {
	return nil, nil
}

func (r *stubOrgRepo) LinkClassroomToSchool(ctx context.Context, classroomID, schoolID string) (*models.ClassroomSchool, error) {
	link := &models.ClassroomSchool{ClassroomID: classroomID, SchoolID: schoolID}
	r.links[classroomID] = link
	return link, nil
}

func (r *stubOrgRepo) FindClassroomLink(ctx context.Context, classroomID string) (*models.ClassroomSchool, error) {
	link, ok := r.links[classroomID]
	if !ok {
		return nil, sql.ErrNoRows
	}
	return link, nil
}

func (r *stubOrgRepo) UnlinkClassroom(ctx context.Context, classroomID string) error {
	r.unlinked = append(r.unlinked, classroomID)
	delete(r.links, classroomID)
	return nil
}

func (r *stubOrgRepo) ListSchoolClassrooms(ctx context.Context, schoolID string) ([]models.Classroom, error) {
	return nil, nil
}

func (r *stubOrgRepo) LoadMemberships(ctx context.Context) ([]models.TeacherMembership, error) {
	return r.memberships, nil
}

func (r *stubOrgRepo) LoadSchoolParents(ctx context.Context) (map[string]string, error) {
	return r.schoolParents, nil
}

func newOrgFixture(t *testing.T) (*OrganizationService, *stubOrgRepo, *authz.Engine) {
	t.Helper()
	repo := newStubOrgRepo()
	engine := authz.NewEngine(nil)
	return NewOrganizationService(repo, engine, nil, nil), repo, engine
}

func TestCreateOrganizationMakesCallerOwner(t *testing.T) {
	svc, _, engine := newOrgFixture(t)

	org, err := svc.CreateOrganization(context.Background(), teacherClaims("t1"), dto.CreateOrganizationRequest{Name: "acme"})
	require.NoError(t, err)
	assert.Equal(t, "acme", org.DisplayName) // defaults to name

	assert.True(t, engine.Check("t1", authz.ResourceOrganization, authz.ActionDelete, authz.OrgDomain(org.ID)))
}

func TestAddOrganizationTeacherSecondOwnerConflicts(t *testing.T) {
	svc, _, engine := newOrgFixture(t)
	require.NoError(t, engine.Grant("t1", models.RoleOrgOwner, authz.OrgDomain("org1")))

	_, err := svc.AddOrganizationTeacher(context.Background(), teacherClaims("t1"), "org1", dto.AddOrganizationTeacherRequest{
		TeacherID: "t2",
		Role:      models.RoleOrgOwner,
	})
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrConflict.Code, appErrors.FromError(err).Code)

	// An org_admin grant for the same teacher is fine.
	row, err := svc.AddOrganizationTeacher(context.Background(), teacherClaims("t1"), "org1", dto.AddOrganizationTeacherRequest{
		TeacherID: "t2",
		Role:      models.RoleOrgAdmin,
	})
	require.NoError(t, err)
	assert.Equal(t, models.RoleOrgAdmin, row.Role)
	assert.True(t, engine.Check("t2", authz.ResourceSchool, authz.ActionCreate, authz.OrgDomain("org1")))
}

func TestAddOrganizationTeacherRejectsSchoolRole(t *testing.T) {
	svc, _, engine := newOrgFixture(t)
	require.NoError(t, engine.Grant("t1", models.RoleOrgOwner, authz.OrgDomain("org1")))

	_, err := svc.AddOrganizationTeacher(context.Background(), teacherClaims("t1"), "org1", dto.AddOrganizationTeacherRequest{
		TeacherID: "t2",
		Role:      models.RoleTeacher,
	})
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrValidation.Code, appErrors.FromError(err).Code)
}

func TestRemoveOrganizationTeacherRevokesAccess(t *testing.T) {
	svc, repo, engine := newOrgFixture(t)
	require.NoError(t, engine.Grant("t1", models.RoleOrgOwner, authz.OrgDomain("org1")))
	require.NoError(t, engine.Grant("t2", models.RoleOrgAdmin, authz.OrgDomain("org1")))
	repo.removedOrgRoles = []string{models.RoleOrgAdmin}

	require.NoError(t, svc.RemoveOrganizationTeacher(context.Background(), teacherClaims("t1"), "org1", "t2"))
	assert.False(t, engine.Check("t2", authz.ResourceOrganization, authz.ActionRead, authz.OrgDomain("org1")))

	// Removing a non-member changes nothing and succeeds.
	repo.removedOrgRoles = nil
	require.NoError(t, svc.RemoveOrganizationTeacher(context.Background(), teacherClaims("t1"), "org1", "t9"))
}

func TestDeleteOrganizationCascadesGrantRevocation(t *testing.T) {
	svc, repo, engine := newOrgFixture(t)
	repo.orgs["org1"] = &models.Organization{ID: "org1", Name: "acme"}
	repo.deletedOrgSchools = []string{"sch1"}
	require.NoError(t, engine.Grant("t1", models.RoleOrgOwner, authz.OrgDomain("org1")))
	require.NoError(t, engine.Grant("t2", models.RoleSchoolAdmin, authz.SchoolDomain("sch1")))
	engine.SetParent(authz.SchoolDomain("sch1"), authz.OrgDomain("org1"))

	require.NoError(t, svc.DeleteOrganization(context.Background(), teacherClaims("t1"), "org1"))

	assert.False(t, engine.Check("t1", authz.ResourceOrganization, authz.ActionRead, authz.OrgDomain("org1")))
	assert.False(t, engine.Check("t1", authz.ResourceSchool, authz.ActionRead, authz.SchoolDomain("sch1")))
	assert.False(t, engine.Check("t2", authz.ResourceSchool, authz.ActionRead, authz.SchoolDomain("sch1")))
}

func TestRestoreOrganizationReestablishesGrants(t *testing.T) {
	svc, repo, engine := newOrgFixture(t)
	repo.orgs["org1"] = &models.Organization{ID: "org1", Name: "acme"}
	repo.deletedOrgSchools = []string{"sch1"}
	repo.roleOf["org1/t1"] = models.RoleOrgOwner
	require.NoError(t, engine.Grant("t1", models.RoleOrgOwner, authz.OrgDomain("org1")))
	engine.SetParent(authz.SchoolDomain("sch1"), authz.OrgDomain("org1"))

	require.NoError(t, svc.DeleteOrganization(context.Background(), teacherClaims("t1"), "org1"))
	assert.False(t, engine.Check("t1", authz.ResourceOrganization, authz.ActionRead, authz.OrgDomain("org1")))

	// What the graph tables hand the rebuild after re-activation.
	repo.memberships = []models.TeacherMembership{
		{TeacherID: "t1", Domain: authz.OrgDomain("org1"), Roles: []string{models.RoleOrgOwner}},
	}
	repo.schoolParents = map[string]string{authz.SchoolDomain("sch1"): authz.OrgDomain("org1")}

	org, err := svc.RestoreOrganization(context.Background(), teacherClaims("t1"), "org1")
	require.NoError(t, err)
	assert.Equal(t, "org1", org.ID)

	// The stored roles are grants again, including inherited school access.
	assert.True(t, engine.Check("t1", authz.ResourceOrganization, authz.ActionDelete, authz.OrgDomain("org1")))
	assert.True(t, engine.Check("t1", authz.ResourceSchool, authz.ActionUpdate, authz.SchoolDomain("sch1")))
}

func TestRestoreOrganizationOwnerGate(t *testing.T) {
	svc, repo, _ := newOrgFixture(t)
	repo.deletedOrgs["org1"] = &models.Organization{ID: "org1"}
	repo.roleOf["org1/t2"] = models.RoleOrgAdmin

	// Only the stored org_owner may restore.
	_, err := svc.RestoreOrganization(context.Background(), teacherClaims("t2"), "org1")
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrForbidden.Code, appErrors.FromError(err).Code)

	_, err = svc.RestoreOrganization(context.Background(), &models.JWTClaims{UserID: "stu1", Kind: models.PrincipalStudent}, "org1")
	require.Error(t, err)

	// Restoring an organization that was never deleted is a 404.
	repo.roleOf["org2/t1"] = models.RoleOrgOwner
	_, err = svc.RestoreOrganization(context.Background(), teacherClaims("t1"), "org2")
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrNotFound.Code, appErrors.FromError(err).Code)
}

func TestCreateSchoolRegistersParent(t *testing.T) {
	svc, repo, engine := newOrgFixture(t)
	repo.orgs["org1"] = &models.Organization{ID: "org1", Name: "acme"}
	require.NoError(t, engine.Grant("t1", models.RoleOrgOwner, authz.OrgDomain("org1")))

	school, err := svc.CreateSchool(context.Background(), teacherClaims("t1"), dto.CreateSchoolRequest{
		OrganizationID: "org1",
		DisplayName:    "North Campus",
	})
	require.NoError(t, err)

	// Org-level grants reach the new school through inheritance.
	assert.True(t, engine.Check("t1", authz.ResourceSchool, authz.ActionUpdate, authz.SchoolDomain(school.ID)))
}

func TestCreateSchoolForbiddenWithoutOrgGrant(t *testing.T) {
	svc, repo, _ := newOrgFixture(t)
	repo.orgs["org1"] = &models.Organization{ID: "org1"}

	_, err := svc.CreateSchool(context.Background(), teacherClaims("t1"), dto.CreateSchoolRequest{
		OrganizationID: "org1",
		DisplayName:    "North Campus",
	})
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrForbidden.Code, appErrors.FromError(err).Code)
}

func TestAddSchoolTeacherUnionRoles(t *testing.T) {
	svc, repo, engine := newOrgFixture(t)
	require.NoError(t, engine.Grant("t1", models.RoleSchoolAdmin, authz.SchoolDomain("sch1")))
	repo.mergedRoles = []string{models.RoleTeacher, models.RoleSchoolAdmin}

	row, err := svc.AddSchoolTeacher(context.Background(), teacherClaims("t1"), "sch1", dto.AddSchoolTeacherRequest{
		TeacherID: "t2",
		Roles:     []string{models.RoleSchoolAdmin},
	})
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{models.RoleTeacher, models.RoleSchoolAdmin}, []string(row.Roles))

	// Every merged role is granted.
	assert.True(t, engine.Check("t2", authz.ResourceTeacher, authz.ActionCreate, authz.SchoolDomain("sch1")))
}

func TestAddSchoolTeacherRejectsOrgRole(t *testing.T) {
	svc, _, engine := newOrgFixture(t)
	require.NoError(t, engine.Grant("t1", models.RoleSchoolAdmin, authz.SchoolDomain("sch1")))

	_, err := svc.AddSchoolTeacher(context.Background(), teacherClaims("t1"), "sch1", dto.AddSchoolTeacherRequest{
		TeacherID: "t2",
		Roles:     []string{models.RoleOrgAdmin},
	})
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrValidation.Code, appErrors.FromError(err).Code)
}

func TestUnlinkClassroomWhenNotLinkedIsNoOp(t *testing.T) {
	svc, repo, _ := newOrgFixture(t)

	require.NoError(t, svc.UnlinkClassroom(context.Background(), teacherClaims("t1"), "class-1"))
	assert.Empty(t, repo.unlinked)
}

func TestLinkClassroomRequiresSchoolGrant(t *testing.T) {
	svc, _, engine := newOrgFixture(t)

	_, err := svc.LinkClassroom(context.Background(), teacherClaims("t1"), "class-1", dto.LinkClassroomRequest{SchoolID: "sch1"})
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrForbidden.Code, appErrors.FromError(err).Code)

	require.NoError(t, engine.Grant("t1", models.RoleSchoolAdmin, authz.SchoolDomain("sch1")))
	link, err := svc.LinkClassroom(context.Background(), teacherClaims("t1"), "class-1", dto.LinkClassroomRequest{SchoolID: "sch1"})
	require.NoError(t, err)
	assert.Equal(t, "sch1", link.SchoolID)
}

func TestListSchoolsSplitsVisibleDomains(t *testing.T) {
	svc, repo, engine := newOrgFixture(t)
	require.NoError(t, engine.Grant("t1", models.RoleOrgAdmin, authz.OrgDomain("org1")))
	require.NoError(t, engine.Grant("t1", models.RoleTeacher, authz.SchoolDomain("sch9")))

	_, err := svc.ListSchools(context.Background(), teacherClaims("t1"))
	require.NoError(t, err)
	assert.Equal(t, []string{"sch9"}, repo.listedSchoolIDs)
	assert.Equal(t, []string{"org1"}, repo.listedParentIDs)
}

func TestGetOrganizationNotFoundAfterCheck(t *testing.T) {
	svc, _, engine := newOrgFixture(t)

	_, err := svc.GetOrganization(context.Background(), teacherClaims("t1"), "org1")
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrForbidden.Code, appErrors.FromError(err).Code)

	require.NoError(t, engine.Grant("t1", models.RoleOrgOwner, authz.OrgDomain("org1")))
	_, err = svc.GetOrganization(context.Background(), teacherClaims("t1"), "org1")
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrNotFound.Code, appErrors.FromError(err).Code)
}

func TestRehydrateSnapshotsMemberships(t *testing.T) {
	svc, repo, engine := newOrgFixture(t)
	repo.memberships = []models.TeacherMembership{
		{TeacherID: "t1", Domain: authz.OrgDomain("org1"), Roles: []string{models.RoleOrgOwner}},
	}
	repo.schoolParents = map[string]string{authz.SchoolDomain("sch1"): authz.OrgDomain("org1")}

	require.NoError(t, svc.Rehydrate(context.Background()))
	assert.True(t, engine.Check("t1", authz.ResourceAssignment, authz.ActionUpdate, authz.SchoolDomain("sch1")))
}
