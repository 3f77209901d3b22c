package authz

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/duotopia/duotopia-api/internal/models"
)

func TestOrgOwnerPermissions(t *testing.T) {
	e := NewEngine(nil)
	require.NoError(t, e.Grant("t1", models.RoleOrgOwner, OrgDomain("org1")))

	assert.True(t, e.Check("t1", ResourceOrganization, ActionUpdate, OrgDomain("org1")))
	assert.True(t, e.Check("t1", ResourceOrganization, ActionDelete, OrgDomain("org1")))
	assert.True(t, e.Check("t1", ResourceSubscription, ActionManage, OrgDomain("org1")))

	// Grants never bleed into other tenants.
	assert.False(t, e.Check("t1", ResourceOrganization, ActionRead, OrgDomain("org2")))
	assert.False(t, e.Check("t2", ResourceOrganization, ActionRead, OrgDomain("org1")))
}

func TestOrgAdminCannotDeleteOrManageSubscription(t *testing.T) {
	e := NewEngine(nil)
	require.NoError(t, e.Grant("t1", models.RoleOrgAdmin, OrgDomain("org1")))

	assert.True(t, e.Check("t1", ResourceOrganization, ActionUpdate, OrgDomain("org1")))
	assert.False(t, e.Check("t1", ResourceOrganization, ActionDelete, OrgDomain("org1")))
	assert.True(t, e.Check("t1", ResourceSubscription, ActionRead, OrgDomain("org1")))
	assert.False(t, e.Check("t1", ResourceSubscription, ActionManage, OrgDomain("org1")))
}

func TestOrgRolesInheritIntoOwnedSchools(t *testing.T) {
	e := NewEngine(nil)
	require.NoError(t, e.Grant("t1", models.RoleOrgAdmin, OrgDomain("org1")))
	e.SetParent(SchoolDomain("sch1"), OrgDomain("org1"))

	assert.True(t, e.Check("t1", ResourceTeacher, ActionCreate, SchoolDomain("sch1")))
	assert.True(t, e.Check("t1", ResourceClassroom, ActionUpdate, SchoolDomain("sch1")))

	// Schools of other organizations stay invisible.
	e.SetParent(SchoolDomain("sch2"), OrgDomain("org2"))
	assert.False(t, e.Check("t1", ResourceTeacher, ActionCreate, SchoolDomain("sch2")))
}

func TestSchoolRolesDoNotEscalate(t *testing.T) {
	e := NewEngine(nil)
	e.SetParent(SchoolDomain("sch1"), OrgDomain("org1"))
	require.NoError(t, e.Grant("t1", models.RoleSchoolAdmin, SchoolDomain("sch1")))
	require.NoError(t, e.Grant("t2", models.RoleTeacher, SchoolDomain("sch1")))

	// School admin manages within the school but never the org.
	assert.True(t, e.Check("t1", ResourceTeacher, ActionDelete, SchoolDomain("sch1")))
	assert.False(t, e.Check("t1", ResourceOrganization, ActionRead, OrgDomain("org1")))
	assert.False(t, e.Check("t1", ResourceSchool, ActionDelete, SchoolDomain("sch1")))

	// Plain teacher reads but cannot mutate memberships.
	assert.True(t, e.Check("t2", ResourceSchool, ActionRead, SchoolDomain("sch1")))
	assert.False(t, e.Check("t2", ResourceTeacher, ActionCreate, SchoolDomain("sch1")))
	assert.False(t, e.Check("t2", ResourceStudent, ActionDelete, SchoolDomain("sch1")))
}

func TestSecondOwnerConflicts(t *testing.T) {
	e := NewEngine(nil)
	require.NoError(t, e.Grant("t1", models.RoleOrgOwner, OrgDomain("org1")))

	err := e.Grant("t2", models.RoleOrgOwner, OrgDomain("org1"))
	require.Error(t, err)

	// Re-granting the same owner is idempotent, and a second org is fine.
	require.NoError(t, e.Grant("t1", models.RoleOrgOwner, OrgDomain("org1")))
	require.NoError(t, e.Grant("t2", models.RoleOrgOwner, OrgDomain("org2")))
}

func TestRevokeRemovesAccess(t *testing.T) {
	e := NewEngine(nil)
	require.NoError(t, e.Grant("t1", models.RoleOrgAdmin, OrgDomain("org1")))
	require.True(t, e.Check("t1", ResourceSchool, ActionCreate, OrgDomain("org1")))

	e.Revoke("t1", models.RoleOrgAdmin, OrgDomain("org1"))
	assert.False(t, e.Check("t1", ResourceSchool, ActionCreate, OrgDomain("org1")))

	// Revoking again is a no-op.
	e.Revoke("t1", models.RoleOrgAdmin, OrgDomain("org1"))
}

func TestRevokeDomainDropsEveryPrincipal(t *testing.T) {
	e := NewEngine(nil)
	require.NoError(t, e.Grant("t1", models.RoleOrgOwner, OrgDomain("org1")))
	require.NoError(t, e.Grant("t2", models.RoleOrgAdmin, OrgDomain("org1")))

	e.RevokeDomain(OrgDomain("org1"))
	assert.False(t, e.Check("t1", ResourceOrganization, ActionRead, OrgDomain("org1")))
	assert.False(t, e.Check("t2", ResourceOrganization, ActionRead, OrgDomain("org1")))
}

func TestVisibleDomainsExpandsOrgToSchools(t *testing.T) {
	e := NewEngine(nil)
	require.NoError(t, e.Grant("t1", models.RoleOrgAdmin, OrgDomain("org1")))
	require.NoError(t, e.Grant("t1", models.RoleTeacher, SchoolDomain("sch9")))
	e.SetParent(SchoolDomain("sch1"), OrgDomain("org1"))
	e.SetParent(SchoolDomain("sch2"), OrgDomain("org1"))

	domains := e.VisibleDomains("t1", ResourceSchool, ActionRead)
	assert.Equal(t, []string{
		OrgDomain("org1"),
		SchoolDomain("sch1"),
		SchoolDomain("sch2"),
		SchoolDomain("sch9"),
	}, domains)

	// Actions the school role lacks exclude the directly-held school.
	domains = e.VisibleDomains("t1", ResourceTeacher, ActionCreate)
	assert.Equal(t, []string{
		OrgDomain("org1"),
		SchoolDomain("sch1"),
		SchoolDomain("sch2"),
	}, domains)
}

func TestSnapshotReplacesIndex(t *testing.T) {
	e := NewEngine(nil)
	require.NoError(t, e.Grant("stale", models.RoleOrgOwner, OrgDomain("old")))

	e.Snapshot([]models.TeacherMembership{
		{TeacherID: "t1", Domain: OrgDomain("org1"), Roles: []string{models.RoleOrgOwner}},
		{TeacherID: "t2", Domain: SchoolDomain("sch1"), Roles: []string{models.RoleSchoolAdmin, models.RoleTeacher}},
	}, map[string]string{
		SchoolDomain("sch1"): OrgDomain("org1"),
	})

	assert.False(t, e.Check("stale", ResourceOrganization, ActionRead, OrgDomain("old")))
	assert.True(t, e.Check("t1", ResourceOrganization, ActionManage, OrgDomain("org1")))
	assert.True(t, e.Check("t1", ResourceAssignment, ActionUpdate, SchoolDomain("sch1")))
	assert.True(t, e.Check("t2", ResourceTeacher, ActionCreate, SchoolDomain("sch1")))
}

func TestDomainTokens(t *testing.T) {
	assert.Equal(t, "org-abc", OrgDomain("abc"))
	assert.Equal(t, "school-abc", SchoolDomain("abc"))
	assert.Equal(t, "abc", OrgID("org-abc"))
	assert.Equal(t, "", OrgID("school-abc"))
	assert.Equal(t, "abc", SchoolID("school-abc"))
	assert.True(t, IsOrgDomain("org-abc"))
	assert.False(t, IsSchoolDomain("org-abc"))
}
