package models

import (
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// Principal kinds carried in JWT claims.
const (
	PrincipalTeacher = "teacher"
	PrincipalStudent = "student"
)

// JWTClaims are the access-token claims.
type JWTClaims struct {
	UserID string `json:"user_id"`
	Kind   string `json:"kind"`
	Name   string `json:"name"`
	jwt.RegisteredClaims
}

// IsTeacher reports whether the principal is a teacher account.
func (c *JWTClaims) IsTeacher() bool { return c.Kind == PrincipalTeacher }

// IsStudent reports whether the principal is a student account.
func (c *JWTClaims) IsStudent() bool { return c.Kind == PrincipalStudent }

// LoginRequest is the teacher login payload.
type LoginRequest struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required,min=8"`
}

// StudentLoginRequest is the student login payload.
type StudentLoginRequest struct {
	StudentID string `json:"student_id" validate:"required"`
	Password  string `json:"password" validate:"required"`
}

// LoginResponse carries an issued access token.
type LoginResponse struct {
	AccessToken string    `json:"access_token"`
	ExpiresIn   int64     `json:"expires_in"`
	IssuedAt    time.Time `json:"issued_at"`
	User        UserInfo  `json:"user"`
}

// UserInfo is the authenticated identity surfaced to clients.
type UserInfo struct {
	ID   string `json:"id"`
	Kind string `json:"kind"`
	Name string `json:"name"`
}
