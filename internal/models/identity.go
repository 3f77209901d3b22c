package models

import "time"

// Teacher is an authenticated staff account.
type Teacher struct {
	ID           string    `db:"id" json:"id"`
	Email        string    `db:"email" json:"email"`
	DisplayName  string    `db:"display_name" json:"display_name"`
	PasswordHash string    `db:"password_hash" json:"-"`
	Active       bool      `db:"active" json:"active"`
	CreatedAt    time.Time `db:"created_at" json:"created_at"`
	UpdatedAt    time.Time `db:"updated_at" json:"updated_at"`
}

// Student is a classroom member account.
type Student struct {
	ID           string    `db:"id" json:"id"`
	ClassroomID  string    `db:"classroom_id" json:"classroom_id"`
	Name         string    `db:"name" json:"name"`
	PasswordHash string    `db:"password_hash" json:"-"`
	Active       bool      `db:"active" json:"active"`
	CreatedAt    time.Time `db:"created_at" json:"created_at"`
}

// TeacherFilter narrows teacher listings.
type TeacherFilter struct {
	Active   *bool
	Search   string
	Page     int
	PageSize int
}
