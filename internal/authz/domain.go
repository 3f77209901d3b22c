package authz

import "strings"

// Domain prefixes. A domain names a tenant boundary: org-{id} or
// school-{id}.
const (
	orgPrefix    = "org-"
	schoolPrefix = "school-"
)

// OrgDomain formats an organization-scoped domain token.
func OrgDomain(orgID string) string { return orgPrefix + orgID }

// SchoolDomain formats a school-scoped domain token.
func SchoolDomain(schoolID string) string { return schoolPrefix + schoolID }

// IsOrgDomain reports whether the domain token targets an organization.
func IsOrgDomain(domain string) bool { return strings.HasPrefix(domain, orgPrefix) }

// IsSchoolDomain reports whether the domain token targets a school.
func IsSchoolDomain(domain string) bool { return strings.HasPrefix(domain, schoolPrefix) }

// OrgID extracts the organization id from an org domain, or "".
func OrgID(domain string) string {
	if !IsOrgDomain(domain) {
		return ""
	}
	return strings.TrimPrefix(domain, orgPrefix)
}

// SchoolID extracts the school id from a school domain, or "".
func SchoolID(domain string) string {
	if !IsSchoolDomain(domain) {
		return ""
	}
	return strings.TrimPrefix(domain, schoolPrefix)
}
