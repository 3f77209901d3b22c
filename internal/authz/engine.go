package authz

import (
	"sort"
	"sync"

	"github.com/duotopia/duotopia-api/internal/models"
	appErrors "github.com/duotopia/duotopia-api/pkg/errors"
)

type roleSet map[string]struct{}

// Engine decides whether a teacher principal may perform an action on a
// resource within a domain. Decisions are served from an in-memory role
// index; no database round-trips happen on the Check path.
type Engine struct {
	policy *Policy

	mu sync.RWMutex
	// principal -> domain -> roles
	roles map[string]map[string]roleSet
	// school domain -> owning org domain
	parents map[string]string
	// org domain -> owned school domains
	children map[string]map[string]struct{}
}

// NewEngine builds an engine around the given policy table.
func NewEngine(policy *Policy) *Engine {
	if policy == nil {
		policy = DefaultPolicy()
	}
	return &Engine{
		policy:   policy,
		roles:    map[string]map[string]roleSet{},
		parents:  map[string]string{},
		children: map[string]map[string]struct{}{},
	}
}

// Check reports whether principal may perform action on resource within
// domain. School-domain requests also consult the principal's roles in the
// parent organization.
func (e *Engine) Check(principal, resource, action, domain string) bool {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.checkLocked(principal, resource, action, domain)
}

func (e *Engine) checkLocked(principal, resource, action, domain string) bool {
	held := e.roles[principal]
	if held == nil {
		return false
	}
	for role := range held[domain] {
		if e.policy.Allows(role, resource, action) {
			return true
		}
	}
	if parent, ok := e.parents[domain]; ok {
		for role := range held[parent] {
			if e.policy.Allows(role, resource, action) {
				return true
			}
		}
	}
	return false
}

// Grant registers a role for principal within domain. Granting a second
// org_owner for the same organization fails with a conflict.
func (e *Engine) Grant(principal, role, domain string) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if role == models.RoleOrgOwner {
		for other, domains := range e.roles {
			if other == principal {
				continue
			}
			if _, ok := domains[domain][models.RoleOrgOwner]; ok {
				return appErrors.Clone(appErrors.ErrConflict, "organization already has an owner")
			}
		}
	}

	domains := e.roles[principal]
	if domains == nil {
		domains = map[string]roleSet{}
		e.roles[principal] = domains
	}
	set := domains[domain]
	if set == nil {
		set = roleSet{}
		domains[domain] = set
	}
	set[role] = struct{}{}
	return nil
}

// Revoke removes a role. Revoking a role that was never granted is a
// no-op.
func (e *Engine) Revoke(principal, role, domain string) {
	e.mu.Lock()
	defer e.mu.Unlock()

	domains := e.roles[principal]
	if domains == nil {
		return
	}
	set := domains[domain]
	delete(set, role)
	if len(set) == 0 {
		delete(domains, domain)
	}
	if len(domains) == 0 {
		delete(e.roles, principal)
	}
}

// RevokeDomain drops every grant scoped to the given domain, across all
// principals. Used when a school or organization is soft-deleted.
func (e *Engine) RevokeDomain(domain string) {
	e.mu.Lock()
	defer e.mu.Unlock()

	for principal, domains := range e.roles {
		delete(domains, domain)
		if len(domains) == 0 {
			delete(e.roles, principal)
		}
	}
}

// SetParent records that a school domain is owned by an org domain.
func (e *Engine) SetParent(schoolDomain, orgDomain string) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.setParentLocked(schoolDomain, orgDomain)
}

func (e *Engine) setParentLocked(schoolDomain, orgDomain string) {
	e.parents[schoolDomain] = orgDomain
	set := e.children[orgDomain]
	if set == nil {
		set = map[string]struct{}{}
		e.children[orgDomain] = set
	}
	set[schoolDomain] = struct{}{}
}

// RemoveParent detaches a school domain from its owning organization.
func (e *Engine) RemoveParent(schoolDomain string) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if parent, ok := e.parents[schoolDomain]; ok {
		delete(e.children[parent], schoolDomain)
		if len(e.children[parent]) == 0 {
			delete(e.children, parent)
		}
	}
	delete(e.parents, schoolDomain)
}

// VisibleDomains returns every domain in which the principal may perform
// action on resource, including school domains reached through org-level
// inheritance. Listing endpoints use this instead of filtering row-by-row.
func (e *Engine) VisibleDomains(principal, resource, action string) []string {
	e.mu.RLock()
	defer e.mu.RUnlock()

	seen := map[string]struct{}{}
	held := e.roles[principal]
	for domain, set := range held {
		allowed := false
		for role := range set {
			if e.policy.Allows(role, resource, action) {
				allowed = true
				break
			}
		}
		if !allowed {
			continue
		}
		seen[domain] = struct{}{}
		if IsOrgDomain(domain) {
			for child := range e.children[domain] {
				seen[child] = struct{}{}
			}
		}
	}

	out := make([]string, 0, len(seen))
	for domain := range seen {
		out = append(out, domain)
	}
	sort.Strings(out)
	return out
}

// Snapshot atomically replaces the full role index and parent graph.
// Used at startup and after re-activation to re-establish grants from the
// stored membership rows.
func (e *Engine) Snapshot(memberships []models.TeacherMembership, schoolParents map[string]string) {
	roles := map[string]map[string]roleSet{}
	for _, m := range memberships {
		domains := roles[m.TeacherID]
		if domains == nil {
			domains = map[string]roleSet{}
			roles[m.TeacherID] = domains
		}
		set := domains[m.Domain]
		if set == nil {
			set = roleSet{}
			domains[m.Domain] = set
		}
		for _, role := range m.Roles {
			set[role] = struct{}{}
		}
	}

	e.mu.Lock()
	defer e.mu.Unlock()
	e.roles = roles
	e.parents = map[string]string{}
	e.children = map[string]map[string]struct{}{}
	for school, org := range schoolParents {
		e.setParentLocked(school, org)
	}
}
