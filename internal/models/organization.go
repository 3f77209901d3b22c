package models

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"time"

	"github.com/lib/pq"
)

// Organization roles. org_owner is unique per active organization.
const (
	RoleOrgOwner    = "org_owner"
	RoleOrgAdmin    = "org_admin"
	RoleSchoolAdmin = "school_admin"
	RoleTeacher     = "teacher"
)

// OrgRoles are the roles assignable at organization scope.
var OrgRoles = map[string]struct{}{
	RoleOrgOwner: {},
	RoleOrgAdmin: {},
}

// SchoolRoles are the roles assignable at school scope.
var SchoolRoles = map[string]struct{}{
	RoleSchoolAdmin: {},
	RoleTeacher:     {},
}

// Settings is a free-form JSONB settings map.
type Settings map[string]interface{}

// Value implements driver.Valuer.
func (s Settings) Value() (driver.Value, error) {
	if s == nil {
		return []byte("{}"), nil
	}
	return json.Marshal(s)
}

// Scan implements sql.Scanner.
func (s *Settings) Scan(src interface{}) error {
	if src == nil {
		*s = Settings{}
		return nil
	}
	raw, ok := src.([]byte)
	if !ok {
		return fmt.Errorf("settings: unsupported scan type %T", src)
	}
	return json.Unmarshal(raw, s)
}

// Organization is the tenant root of the membership graph.
type Organization struct {
	ID          string    `db:"id" json:"id"`
	Name        string    `db:"name" json:"name"`
	DisplayName string    `db:"display_name" json:"display_name"`
	Active      bool      `db:"active" json:"active"`
	Settings    Settings  `db:"settings" json:"settings"`
	CreatedAt   time.Time `db:"created_at" json:"created_at"`
	UpdatedAt   time.Time `db:"updated_at" json:"updated_at"`
}

// School belongs to exactly one organization.
type School struct {
	ID             string    `db:"id" json:"id"`
	OrganizationID string    `db:"organization_id" json:"organization_id"`
	DisplayName    string    `db:"display_name" json:"display_name"`
	Active         bool      `db:"active" json:"active"`
	CreatedAt      time.Time `db:"created_at" json:"created_at"`
	UpdatedAt      time.Time `db:"updated_at" json:"updated_at"`
}

// TeacherOrganization links a teacher to an organization with a single role.
type TeacherOrganization struct {
	ID             string    `db:"id" json:"id"`
	TeacherID      string    `db:"teacher_id" json:"teacher_id"`
	OrganizationID string    `db:"organization_id" json:"organization_id"`
	Role           string    `db:"role" json:"role"`
	Active         bool      `db:"active" json:"active"`
	CreatedAt      time.Time `db:"created_at" json:"created_at"`
}

// TeacherSchool links a teacher to a school with a non-empty roles set.
type TeacherSchool struct {
	ID        string         `db:"id" json:"id"`
	TeacherID string         `db:"teacher_id" json:"teacher_id"`
	SchoolID  string         `db:"school_id" json:"school_id"`
	Roles     pq.StringArray `db:"roles" json:"roles"`
	Active    bool           `db:"active" json:"active"`
	CreatedAt time.Time      `db:"created_at" json:"created_at"`
}

// ClassroomSchool attaches a classroom to at most one school.
type ClassroomSchool struct {
	ID          string    `db:"id" json:"id"`
	ClassroomID string    `db:"classroom_id" json:"classroom_id"`
	SchoolID    string    `db:"school_id" json:"school_id"`
	CreatedAt   time.Time `db:"created_at" json:"created_at"`
}

// TeacherMembership is a flattened view used to rebuild the authz index.
type TeacherMembership struct {
	TeacherID string         `db:"teacher_id"`
	Domain    string         `db:"domain"`
	Roles     pq.StringArray `db:"roles"`
}
