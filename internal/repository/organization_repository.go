package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	"github.com/duotopia/duotopia-api/internal/authz"
	"github.com/duotopia/duotopia-api/internal/models"
	appErrors "github.com/duotopia/duotopia-api/pkg/errors"
)

const uniqueViolation = "23505"

// OrganizationRepository persists the organization/school membership graph.
// Mutations that touch several rows run inside a single transaction so the
// graph invariants hold continuously.
type OrganizationRepository struct {
	db *sqlx.DB
}

// NewOrganizationRepository constructs an OrganizationRepository.
func NewOrganizationRepository(db *sqlx.DB) *OrganizationRepository {
	return &OrganizationRepository{db: db}
}

func isUniqueViolation(err error) bool {
	var pqErr *pq.Error
	return errors.As(err, &pqErr) && string(pqErr.Code) == uniqueViolation
}

// CreateOrganization inserts the organization and its owner membership in
// one transaction.
func (r *OrganizationRepository) CreateOrganization(ctx context.Context, org *models.Organization, ownerTeacherID string) error {
	if org.ID == "" {
		org.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	org.CreatedAt = now
	org.UpdatedAt = now
	org.Active = true

	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin create organization: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck

	const orgQuery = `INSERT INTO organizations (id, name, display_name, active, settings, created_at, updated_at)
		VALUES (:id, :name, :display_name, :active, :settings, :created_at, :updated_at)`
	if _, err := tx.NamedExecContext(ctx, orgQuery, org); err != nil {
		return fmt.Errorf("create organization: %w", err)
	}

	const memberQuery = `INSERT INTO teacher_organizations (id, teacher_id, organization_id, role, active, created_at)
		VALUES ($1, $2, $3, $4, TRUE, $5)`
	if _, err := tx.ExecContext(ctx, memberQuery, uuid.NewString(), ownerTeacherID, org.ID, models.RoleOrgOwner, now); err != nil {
		if isUniqueViolation(err) {
			return appErrors.Clone(appErrors.ErrConflict, "organization already has an owner")
		}
		return fmt.Errorf("create owner membership: %w", err)
	}

	return tx.Commit()
}

// FindOrganization fetches an active organization.
func (r *OrganizationRepository) FindOrganization(ctx context.Context, id string) (*models.Organization, error) {
	const query = `SELECT id, name, display_name, active, settings, created_at, updated_at FROM organizations WHERE id = $1 AND active`
	var org models.Organization
	if err := r.db.GetContext(ctx, &org, query, id); err != nil {
		return nil, err
	}
	return &org, nil
}

// ListOrganizations returns active organizations restricted to the given
// ids (the caller's visible domains).
func (r *OrganizationRepository) ListOrganizations(ctx context.Context, ids []string) ([]models.Organization, error) {
	if len(ids) == 0 {
		return []models.Organization{}, nil
	}
	query, args, err := sqlx.In(`SELECT id, name, display_name, active, settings, created_at, updated_at FROM organizations WHERE active AND id IN (?) ORDER BY created_at`, ids)
	if err != nil {
		return nil, fmt.Errorf("list organizations: %w", err)
	}
	query = r.db.Rebind(query)
	var orgs []models.Organization
	if err := r.db.SelectContext(ctx, &orgs, query, args...); err != nil {
		return nil, fmt.Errorf("list organizations: %w", err)
	}
	return orgs, nil
}

// UpdateOrganization patches display fields and settings.
func (r *OrganizationRepository) UpdateOrganization(ctx context.Context, org *models.Organization) error {
	org.UpdatedAt = time.Now().UTC()
	const query = `UPDATE organizations SET name = :name, display_name = :display_name, settings = :settings, updated_at = :updated_at WHERE id = :id AND active`
	res, err := r.db.NamedExecContext(ctx, query, org)
	if err != nil {
		return fmt.Errorf("update organization: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return sql.ErrNoRows
	}
	return nil
}

// SoftDeleteOrganization deactivates the organization and cascades the
// soft delete to its schools and memberships. Classrooms survive; their
// school links are removed. Returns the deactivated school ids.
func (r *OrganizationRepository) SoftDeleteOrganization(ctx context.Context, id string) ([]string, error) {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("begin delete organization: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck

	now := time.Now().UTC()

	res, err := tx.ExecContext(ctx, `UPDATE organizations SET active = FALSE, updated_at = $2 WHERE id = $1 AND active`, id, now)
	if err != nil {
		return nil, fmt.Errorf("deactivate organization: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return nil, sql.ErrNoRows
	}

	var schoolIDs []string
	if err := tx.SelectContext(ctx, &schoolIDs, `UPDATE schools SET active = FALSE, updated_at = $2 WHERE organization_id = $1 AND active RETURNING id`, id, now); err != nil {
		return nil, fmt.Errorf("deactivate schools: %w", err)
	}

	if _, err := tx.ExecContext(ctx, `UPDATE teacher_organizations SET active = FALSE WHERE organization_id = $1 AND active`, id); err != nil {
		return nil, fmt.Errorf("deactivate org memberships: %w", err)
	}

	if len(schoolIDs) > 0 {
		query, args, err := sqlx.In(`UPDATE teacher_schools SET active = FALSE WHERE school_id IN (?) AND active`, schoolIDs)
		if err != nil {
			return nil, fmt.Errorf("deactivate school memberships: %w", err)
		}
		if _, err := tx.ExecContext(ctx, tx.Rebind(query), args...); err != nil {
			return nil, fmt.Errorf("deactivate school memberships: %w", err)
		}

		query, args, err = sqlx.In(`DELETE FROM classroom_schools WHERE school_id IN (?)`, schoolIDs)
		if err != nil {
			return nil, fmt.Errorf("unlink classrooms: %w", err)
		}
		if _, err := tx.ExecContext(ctx, tx.Rebind(query), args...); err != nil {
			return nil, fmt.Errorf("unlink classrooms: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return nil, err
	}
	return schoolIDs, nil
}

// RestoreOrganization re-activates a soft-deleted organization and the
// schools and memberships the delete cascade deactivated. Classroom links
// were removed outright and do not come back. Returns the restored school
// ids; sql.ErrNoRows when there is no deactivated organization to restore.
func (r *OrganizationRepository) RestoreOrganization(ctx context.Context, id string) ([]string, error) {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("begin restore organization: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck

	now := time.Now().UTC()

	res, err := tx.ExecContext(ctx, `UPDATE organizations SET active = TRUE, updated_at = $2 WHERE id = $1 AND NOT active`, id, now)
	if err != nil {
		return nil, fmt.Errorf("reactivate organization: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return nil, sql.ErrNoRows
	}

	var schoolIDs []string
	if err := tx.SelectContext(ctx, &schoolIDs, `UPDATE schools SET active = TRUE, updated_at = $2 WHERE organization_id = $1 AND NOT active RETURNING id`, id, now); err != nil {
		return nil, fmt.Errorf("reactivate schools: %w", err)
	}

	if _, err := tx.ExecContext(ctx, `UPDATE teacher_organizations SET active = TRUE WHERE organization_id = $1 AND NOT active`, id); err != nil {
		return nil, fmt.Errorf("reactivate org memberships: %w", err)
	}

	if len(schoolIDs) > 0 {
		query, args, err := sqlx.In(`UPDATE teacher_schools SET active = TRUE WHERE school_id IN (?) AND NOT active`, schoolIDs)
		if err != nil {
			return nil, fmt.Errorf("reactivate school memberships: %w", err)
		}
		if _, err := tx.ExecContext(ctx, tx.Rebind(query), args...); err != nil {
			return nil, fmt.Errorf("reactivate school memberships: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return nil, err
	}
	return schoolIDs, nil
}

// OrganizationRoleOf returns the stored org-level role of a teacher,
// active or not. The empty string means the teacher was never a member.
// Restore gates on this because a deleted organization has no grants
// left in the authz index.
func (r *OrganizationRepository) OrganizationRoleOf(ctx context.Context, orgID, teacherID string) (string, error) {
	var role string
	const query = `SELECT role FROM teacher_organizations WHERE organization_id = $1 AND teacher_id = $2 ORDER BY created_at DESC LIMIT 1`
	err := r.db.GetContext(ctx, &role, query, orgID, teacherID)
	if errors.Is(err, sql.ErrNoRows) {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("load organization role: %w", err)
	}
	return role, nil
}

// AddTeacherToOrganization inserts an active membership. A second
// org_owner trips the partial unique index and maps to a conflict.
func (r *OrganizationRepository) AddTeacherToOrganization(ctx context.Context, orgID, teacherID, role string) (*models.TeacherOrganization, error) {
	row := &models.TeacherOrganization{
		ID:             uuid.NewString(),
		TeacherID:      teacherID,
		OrganizationID: orgID,
		Role:           role,
		Active:         true,
		CreatedAt:      time.Now().UTC(),
	}
	const query = `INSERT INTO teacher_organizations (id, teacher_id, organization_id, role, active, created_at)
		VALUES (:id, :teacher_id, :organization_id, :role, :active, :created_at)`
	if _, err := r.db.NamedExecContext(ctx, query, row); err != nil {
		if isUniqueViolation(err) {
			return nil, appErrors.Clone(appErrors.ErrConflict, "organization already has an owner")
		}
		return nil, fmt.Errorf("add teacher to organization: %w", err)
	}
	return row, nil
}

// RemoveTeacherFromOrganization deactivates the membership. Removing a
// non-member is a no-op.
func (r *OrganizationRepository) RemoveTeacherFromOrganization(ctx context.Context, orgID, teacherID string) ([]string, error) {
	var roles []string
	const query = `UPDATE teacher_organizations SET active = FALSE WHERE organization_id = $1 AND teacher_id = $2 AND active RETURNING role`
	if err := r.db.SelectContext(ctx, &roles, query, orgID, teacherID); err != nil {
		return nil, fmt.Errorf("remove teacher from organization: %w", err)
	}
	return roles, nil
}

// ListOrganizationTeachers returns active memberships with teacher names.
func (r *OrganizationRepository) ListOrganizationTeachers(ctx context.Context, orgID string) ([]models.TeacherOrganization, error) {
	const query = `SELECT id, teacher_id, organization_id, role, active, created_at FROM teacher_organizations WHERE organization_id = $1 AND active ORDER BY created_at`
	var rows []models.TeacherOrganization
	if err := r.db.SelectContext(ctx, &rows, query, orgID); err != nil {
		return nil, fmt.Errorf("list organization teachers: %w", err)
	}
	return rows, nil
}

// CreateSchool inserts a school under an active organization.
func (r *OrganizationRepository) CreateSchool(ctx context.Context, school *models.School) error {
	if school.ID == "" {
		school.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	school.CreatedAt = now
	school.UpdatedAt = now
	school.Active = true

	const query = `INSERT INTO schools (id, organization_id, display_name, active, created_at, updated_at)
		VALUES (:id, :organization_id, :display_name, :active, :created_at, :updated_at)`
	if _, err := r.db.NamedExecContext(ctx, query, school); err != nil {
		return fmt.Errorf("create school: %w", err)
	}
	return nil
}

// FindSchool fetches an active school.
func (r *OrganizationRepository) FindSchool(ctx context.Context, id string) (*models.School, error) {
	const query = `SELECT id, organization_id, display_name, active, created_at, updated_at FROM schools WHERE id = $1 AND active`
	var school models.School
	if err := r.db.GetContext(ctx, &school, query, id); err != nil {
		return nil, err
	}
	return &school, nil
}

// ListSchools returns active schools restricted to the given school ids
// and/or owning organization ids.
func (r *OrganizationRepository) ListSchools(ctx context.Context, schoolIDs, orgIDs []string) ([]models.School, error) {
	if len(schoolIDs) == 0 && len(orgIDs) == 0 {
		return []models.School{}, nil
	}
	base := `SELECT id, organization_id, display_name, active, created_at, updated_at FROM schools WHERE active AND (`
	var clauses []string
	var args []interface{}
	if len(schoolIDs) > 0 {
		q, a, err := sqlx.In(`id IN (?)`, schoolIDs)
		if err != nil {
			return nil, fmt.Errorf("list schools: %w", err)
		}
		clauses = append(clauses, q)
		args = append(args, a...)
	}
	if len(orgIDs) > 0 {
		q, a, err := sqlx.In(`organization_id IN (?)`, orgIDs)
		if err != nil {
			return nil, fmt.Errorf("list schools: %w", err)
		}
		clauses = append(clauses, q)
		args = append(args, a...)
	}
	query := base + joinOr(clauses) + `) ORDER BY created_at`
	query = r.db.Rebind(query)
	var schools []models.School
	if err := r.db.SelectContext(ctx, &schools, query, args...); err != nil {
		return nil, fmt.Errorf("list schools: %w", err)
	}
	return schools, nil
}

func joinOr(clauses []string) string {
	out := ""
	for i, c := range clauses {
		if i > 0 {
			out += " OR "
		}
		out += c
	}
	return out
}

// UpdateSchool patches the display name.
func (r *OrganizationRepository) UpdateSchool(ctx context.Context, school *models.School) error {
	school.UpdatedAt = time.Now().UTC()
	const query = `UPDATE schools SET display_name = :display_name, updated_at = :updated_at WHERE id = :id AND active`
	res, err := r.db.NamedExecContext(ctx, query, school)
	if err != nil {
		return fmt.Errorf("update school: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return sql.ErrNoRows
	}
	return nil
}

// SoftDeleteSchool deactivates the school, its memberships, and removes
// classroom links, in one transaction.
func (r *OrganizationRepository) SoftDeleteSchool(ctx context.Context, id string) error {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin delete school: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck

	now := time.Now().UTC()
	res, err := tx.ExecContext(ctx, `UPDATE schools SET active = FALSE, updated_at = $2 WHERE id = $1 AND active`, id, now)
	if err != nil {
		return fmt.Errorf("deactivate school: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return sql.ErrNoRows
	}
	if _, err := tx.ExecContext(ctx, `UPDATE teacher_schools SET active = FALSE WHERE school_id = $1 AND active`, id); err != nil {
		return fmt.Errorf("deactivate school memberships: %w", err)
	}
	if _, err := tx.ExecContext(ctx, `DELETE FROM classroom_schools WHERE school_id = $1`, id); err != nil {
		return fmt.Errorf("unlink classrooms: %w", err)
	}
	return tx.Commit()
}

// UpsertTeacherSchool adds roles to a school membership with union
// semantics when an active row already exists.
func (r *OrganizationRepository) UpsertTeacherSchool(ctx context.Context, schoolID, teacherID string, roles []string) (*models.TeacherSchool, error) {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("begin upsert school membership: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck

	var row models.TeacherSchool
	err = tx.GetContext(ctx, &row, `SELECT id, teacher_id, school_id, roles, active, created_at FROM teacher_schools WHERE school_id = $1 AND teacher_id = $2 AND active FOR UPDATE`, schoolID, teacherID)
	switch {
	case err == nil:
		merged := unionRoles(row.Roles, roles)
		if _, err := tx.ExecContext(ctx, `UPDATE teacher_schools SET roles = $2 WHERE id = $1`, row.ID, pq.StringArray(merged)); err != nil {
			return nil, fmt.Errorf("merge school roles: %w", err)
		}
		row.Roles = merged
	case errors.Is(err, sql.ErrNoRows):
		row = models.TeacherSchool{
			ID:        uuid.NewString(),
			TeacherID: teacherID,
			SchoolID:  schoolID,
			Roles:     roles,
			Active:    true,
			CreatedAt: time.Now().UTC(),
		}
		const insert = `INSERT INTO teacher_schools (id, teacher_id, school_id, roles, active, created_at)
			VALUES (:id, :teacher_id, :school_id, :roles, :active, :created_at)`
		if _, err := tx.NamedExecContext(ctx, insert, row); err != nil {
			return nil, fmt.Errorf("insert school membership: %w", err)
		}
	default:
		return nil, fmt.Errorf("load school membership: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return nil, err
	}
	return &row, nil
}

func unionRoles(existing, incoming []string) []string {
	seen := map[string]struct{}{}
	out := make([]string, 0, len(existing)+len(incoming))
	for _, set := range [][]string{existing, incoming} {
		for _, role := range set {
			if _, ok := seen[role]; ok {
				continue
			}
			seen[role] = struct{}{}
			out = append(out, role)
		}
	}
	return out
}

// RemoveTeacherFromSchool deactivates a school membership and returns the
// roles it held.
func (r *OrganizationRepository) RemoveTeacherFromSchool(ctx context.Context, schoolID, teacherID string) ([]string, error) {
	var rows []models.TeacherSchool
	const query = `UPDATE teacher_schools SET active = FALSE WHERE school_id = $1 AND teacher_id = $2 AND active RETURNING id, teacher_id, school_id, roles, active, created_at`
	if err := r.db.SelectContext(ctx, &rows, query, schoolID, teacherID); err != nil {
		return nil, fmt.Errorf("remove teacher from school: %w", err)
	}
	var roles []string
	for _, row := range rows {
		roles = unionRoles(roles, row.Roles)
	}
	return roles, nil
}

// ListSchoolTeachers returns active school memberships.
func (r *OrganizationRepository) ListSchoolTeachers(ctx context.Context, schoolID string) ([]models.TeacherSchool, error) {
	const query = `SELECT id, teacher_id, school_id, roles, active, created_at FROM teacher_schools WHERE school_id = $1 AND active ORDER BY created_at`
	var rows []models.TeacherSchool
	if err := r.db.SelectContext(ctx, &rows, query, schoolID); err != nil {
		return nil, fmt.Errorf("list school teachers: %w", err)
	}
	return rows, nil
}

// LinkClassroomToSchool attaches a classroom to a school. A classroom may
// link to at most one school.
func (r *OrganizationRepository) LinkClassroomToSchool(ctx context.Context, classroomID, schoolID string) (*models.ClassroomSchool, error) {
	link := &models.ClassroomSchool{
		ID:          uuid.NewString(),
		ClassroomID: classroomID,
		SchoolID:    schoolID,
		CreatedAt:   time.Now().UTC(),
	}
	const query = `INSERT INTO classroom_schools (id, classroom_id, school_id, created_at)
		VALUES (:id, :classroom_id, :school_id, :created_at)`
	if _, err := r.db.NamedExecContext(ctx, query, link); err != nil {
		if isUniqueViolation(err) {
			return nil, appErrors.Clone(appErrors.ErrConflict, "classroom is already linked to a school")
		}
		return nil, fmt.Errorf("link classroom: %w", err)
	}
	return link, nil
}

// FindClassroomLink fetches the school link of a classroom.
func (r *OrganizationRepository) FindClassroomLink(ctx context.Context, classroomID string) (*models.ClassroomSchool, error) {
	const query = `SELECT id, classroom_id, school_id, created_at FROM classroom_schools WHERE classroom_id = $1`
	var link models.ClassroomSchool
	if err := r.db.GetContext(ctx, &link, query, classroomID); err != nil {
		return nil, err
	}
	return &link, nil
}

// UnlinkClassroom removes the classroom's school link.
func (r *OrganizationRepository) UnlinkClassroom(ctx context.Context, classroomID string) error {
	if _, err := r.db.ExecContext(ctx, `DELETE FROM classroom_schools WHERE classroom_id = $1`, classroomID); err != nil {
		return fmt.Errorf("unlink classroom: %w", err)
	}
	return nil
}

// ListSchoolClassrooms returns classrooms linked to a school.
func (r *OrganizationRepository) ListSchoolClassrooms(ctx context.Context, schoolID string) ([]models.Classroom, error) {
	const query = `SELECT c.id, c.teacher_id, c.name, c.created_at FROM classrooms c
		JOIN classroom_schools cs ON cs.classroom_id = c.id
		WHERE cs.school_id = $1 ORDER BY c.name`
	var rows []models.Classroom
	if err := r.db.SelectContext(ctx, &rows, query, schoolID); err != nil {
		return nil, fmt.Errorf("list school classrooms: %w", err)
	}
	return rows, nil
}

// LoadMemberships flattens all active memberships into (teacher, domain,
// roles) rows for the authz engine snapshot.
func (r *OrganizationRepository) LoadMemberships(ctx context.Context) ([]models.TeacherMembership, error) {
	const query = `
		SELECT t.teacher_id, 'org-' || t.organization_id AS domain, ARRAY[t.role] AS roles
		FROM teacher_organizations t
		JOIN organizations o ON o.id = t.organization_id AND o.active
		WHERE t.active
		UNION ALL
		SELECT ts.teacher_id, 'school-' || ts.school_id AS domain, ts.roles
		FROM teacher_schools ts
		JOIN schools s ON s.id = ts.school_id AND s.active
		WHERE ts.active`
	var rows []models.TeacherMembership
	if err := r.db.SelectContext(ctx, &rows, query); err != nil {
		return nil, fmt.Errorf("load memberships: %w", err)
	}
	return rows, nil
}

// LoadSchoolParents maps every active school domain to its org domain.
func (r *OrganizationRepository) LoadSchoolParents(ctx context.Context) (map[string]string, error) {
	var rows []struct {
		SchoolID string `db:"id"`
		OrgID    string `db:"organization_id"`
	}
	const query = `SELECT s.id, s.organization_id FROM schools s JOIN organizations o ON o.id = s.organization_id AND o.active WHERE s.active`
	if err := r.db.SelectContext(ctx, &rows, query); err != nil {
		return nil, fmt.Errorf("load school parents: %w", err)
	}
	parents := make(map[string]string, len(rows))
	for _, row := range rows {
		parents[authz.SchoolDomain(row.SchoolID)] = authz.OrgDomain(row.OrgID)
	}
	return parents, nil
}
