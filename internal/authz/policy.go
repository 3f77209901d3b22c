package authz

import "github.com/duotopia/duotopia-api/internal/models"

// Actions.
const (
	ActionCreate = "create"
	ActionRead   = "read"
	ActionUpdate = "update"
	ActionDelete = "delete"
	ActionManage = "manage"
)

// Resources.
const (
	ResourceOrganization    = "organization"
	ResourceSchool          = "school"
	ResourceTeacher         = "teacher"
	ResourceClassroom       = "classroom"
	ResourceStudent         = "student"
	ResourceAssignment      = "assignment"
	ResourceSubscription    = "subscription"
	ResourceManageMaterials = "manage_materials"
)

type permKey struct {
	role     string
	resource string
	action   string
}

// Policy is a compiled allow-only table. Effect is deny by absence; a
// missing entry is never an error.
type Policy struct {
	allow map[permKey]struct{}
}

func (p *Policy) add(role, resource string, actions ...string) {
	for _, action := range actions {
		p.allow[permKey{role: role, resource: resource, action: action}] = struct{}{}
	}
}

// Allows reports whether the role may perform action on resource.
func (p *Policy) Allows(role, resource, action string) bool {
	_, ok := p.allow[permKey{role: role, resource: resource, action: action}]
	return ok
}

var crud = []string{ActionCreate, ActionRead, ActionUpdate, ActionDelete}

// DefaultPolicy builds the static permission table. Org-level roles carry
// the org-* pattern: their grants apply to the organization domain and,
// through parent resolution, to every school owned by that organization.
func DefaultPolicy() *Policy {
	p := &Policy{allow: map[permKey]struct{}{}}

	p.add(models.RoleOrgOwner, ResourceOrganization, ActionRead, ActionUpdate, ActionDelete, ActionManage)
	p.add(models.RoleOrgOwner, ResourceSchool, crud...)
	p.add(models.RoleOrgOwner, ResourceTeacher, crud...)
	p.add(models.RoleOrgOwner, ResourceClassroom, crud...)
	p.add(models.RoleOrgOwner, ResourceStudent, crud...)
	p.add(models.RoleOrgOwner, ResourceAssignment, crud...)
	p.add(models.RoleOrgOwner, ResourceSubscription, ActionRead, ActionUpdate, ActionManage)
	p.add(models.RoleOrgOwner, ResourceManageMaterials, ActionRead, ActionManage)

	p.add(models.RoleOrgAdmin, ResourceOrganization, ActionRead, ActionUpdate)
	p.add(models.RoleOrgAdmin, ResourceSchool, crud...)
	p.add(models.RoleOrgAdmin, ResourceTeacher, crud...)
	p.add(models.RoleOrgAdmin, ResourceClassroom, crud...)
	p.add(models.RoleOrgAdmin, ResourceStudent, crud...)
	p.add(models.RoleOrgAdmin, ResourceAssignment, crud...)
	p.add(models.RoleOrgAdmin, ResourceSubscription, ActionRead)
	p.add(models.RoleOrgAdmin, ResourceManageMaterials, ActionRead, ActionManage)

	p.add(models.RoleSchoolAdmin, ResourceSchool, ActionRead, ActionUpdate)
	p.add(models.RoleSchoolAdmin, ResourceTeacher, crud...)
	p.add(models.RoleSchoolAdmin, ResourceClassroom, crud...)
	p.add(models.RoleSchoolAdmin, ResourceStudent, crud...)
	p.add(models.RoleSchoolAdmin, ResourceAssignment, crud...)
	p.add(models.RoleSchoolAdmin, ResourceManageMaterials, ActionRead, ActionManage)

	p.add(models.RoleTeacher, ResourceSchool, ActionRead)
	p.add(models.RoleTeacher, ResourceClassroom, ActionRead)
	p.add(models.RoleTeacher, ResourceStudent, ActionCreate, ActionRead, ActionUpdate)
	p.add(models.RoleTeacher, ResourceAssignment, ActionCreate, ActionRead, ActionUpdate)
	p.add(models.RoleTeacher, ResourceManageMaterials, ActionRead)

	return p
}
