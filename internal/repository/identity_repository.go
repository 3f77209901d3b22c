package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/duotopia/duotopia-api/internal/models"
)

// IdentityRepository manages persistence for teacher and student accounts.
type IdentityRepository struct {
	db *sqlx.DB
}

// NewIdentityRepository constructs an IdentityRepository.
func NewIdentityRepository(db *sqlx.DB) *IdentityRepository {
	return &IdentityRepository{db: db}
}

// FindTeacherByID fetches a teacher by ID.
func (r *IdentityRepository) FindTeacherByID(ctx context.Context, id string) (*models.Teacher, error) {
	const query = `SELECT id, email, display_name, password_hash, active, created_at, updated_at FROM teachers WHERE id = $1`
	var teacher models.Teacher
	if err := r.db.GetContext(ctx, &teacher, query, id); err != nil {
		return nil, err
	}
	return &teacher, nil
}

// FindTeacherByEmail fetches a teacher by email.
func (r *IdentityRepository) FindTeacherByEmail(ctx context.Context, email string) (*models.Teacher, error) {
	const query = `SELECT id, email, display_name, password_hash, active, created_at, updated_at FROM teachers WHERE LOWER(email) = LOWER($1)`
	var teacher models.Teacher
	if err := r.db.GetContext(ctx, &teacher, query, email); err != nil {
		return nil, err
	}
	return &teacher, nil
}

// CreateTeacher inserts a new teacher account.
func (r *IdentityRepository) CreateTeacher(ctx context.Context, teacher *models.Teacher) error {
	if teacher.ID == "" {
		teacher.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	if teacher.CreatedAt.IsZero() {
		teacher.CreatedAt = now
	}
	teacher.UpdatedAt = now

	const query = `INSERT INTO teachers (id, email, display_name, password_hash, active, created_at, updated_at)
		VALUES (:id, :email, :display_name, :password_hash, :active, :created_at, :updated_at)`
	if _, err := r.db.NamedExecContext(ctx, query, teacher); err != nil {
		return fmt.Errorf("create teacher: %w", err)
	}
	return nil
}

// FindStudentByID fetches a student by ID.
func (r *IdentityRepository) FindStudentByID(ctx context.Context, id string) (*models.Student, error) {
	const query = `SELECT id, classroom_id, name, password_hash, active, created_at FROM students WHERE id = $1`
	var student models.Student
	if err := r.db.GetContext(ctx, &student, query, id); err != nil {
		return nil, err
	}
	return &student, nil
}

// ListStudentsByClassroom returns active students of a classroom.
func (r *IdentityRepository) ListStudentsByClassroom(ctx context.Context, classroomID string) ([]models.Student, error) {
	const query = `SELECT id, classroom_id, name, password_hash, active, created_at FROM students WHERE classroom_id = $1 AND active ORDER BY name`
	var students []models.Student
	if err := r.db.SelectContext(ctx, &students, query, classroomID); err != nil {
		return nil, fmt.Errorf("list students: %w", err)
	}
	return students, nil
}
