package dto

// CreateOrganizationRequest creates a tenant; the caller becomes its
// org_owner.
type CreateOrganizationRequest struct {
	Name        string                 `json:"name" validate:"required,min=2"`
	DisplayName string                 `json:"display_name"`
	Settings    map[string]interface{} `json:"settings"`
}

// UpdateOrganizationRequest patches display fields.
type UpdateOrganizationRequest struct {
	Name        *string                `json:"name"`
	DisplayName *string                `json:"display_name"`
	Settings    map[string]interface{} `json:"settings"`
}

// AddOrganizationTeacherRequest adds a teacher with an org-level role.
type AddOrganizationTeacherRequest struct {
	TeacherID string `json:"teacher_id" validate:"required"`
	Role      string `json:"role" validate:"required"`
}

// CreateSchoolRequest creates a school under an organization.
type CreateSchoolRequest struct {
	OrganizationID string `json:"organization_id" validate:"required"`
	DisplayName    string `json:"display_name" validate:"required,min=2"`
}

// UpdateSchoolRequest patches a school.
type UpdateSchoolRequest struct {
	DisplayName string `json:"display_name" validate:"required,min=2"`
}

// AddSchoolTeacherRequest adds a teacher with school-level roles.
type AddSchoolTeacherRequest struct {
	TeacherID string   `json:"teacher_id" validate:"required"`
	Roles     []string `json:"roles" validate:"required,min=1"`
}

// UpdateSchoolTeacherRequest patches an existing membership's roles.
type UpdateSchoolTeacherRequest struct {
	Roles []string `json:"roles" validate:"required,min=1"`
}

// LinkClassroomRequest attaches a classroom to a school.
type LinkClassroomRequest struct {
	SchoolID string `json:"school_id" validate:"required"`
}
