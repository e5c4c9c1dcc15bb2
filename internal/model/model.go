package model

import (
	"context"
	"time"
)

// UserRole represents a user's access level.
type UserRole string

const (
	// UserRoleStudent can read exams and request translations.
	UserRoleStudent UserRole = "student"
	// UserRoleTeacher can additionally create exams and edit translations.
	UserRoleTeacher UserRole = "teacher"
	// UserRoleAdmin manages users and can invalidate translations.
	UserRoleAdmin UserRole = "admin"
)

// Valid reports whether r is a known role.
func (r UserRole) Valid() bool {
	switch r {
	case UserRoleStudent, UserRoleTeacher, UserRoleAdmin:
		return true
	}
	return false
}

// User represents a system user.
type User struct {
	ID           int64     `json:"id"`
	Username     string    `json:"username"`
	DisplayName  string    `json:"display_name"`
	PasswordHash string    `json:"-"`
	Role         UserRole  `json:"role"`
	Active       bool      `json:"active"`
	CreatedAt    time.Time `json:"created_at"`
}

type userCtxKey struct{}

// ContextWithUser stores a user in the request context.
func ContextWithUser(ctx context.Context, u *User) context.Context {
	return context.WithValue(ctx, userCtxKey{}, u)
}

// UserFromContext retrieves the authenticated user from context, or nil.
func UserFromContext(ctx context.Context) *User {
	u, _ := ctx.Value(userCtxKey{}).(*User)
	return u
}

// MaxDescriptionRunes is the longest exam description that can be translated.
const MaxDescriptionRunes = 10000

// Exam is the translatable entity: its Description is the source text.
type Exam struct {
	ID          int64     `json:"id"`
	Name        string    `json:"name"`
	Description string    `json:"description"`
	CreatedAt   time.Time `json:"created_at"`
}

// ExamImport is used for loading exams from JSON.
type ExamImport struct {
	Name        string `json:"name"`
	Description string `json:"description"`
}

// ServerConfig holds runtime HTTP parameters set via CLI flags.
type ServerConfig struct {
	BasePath     string // URL prefix for sub-path deployments (e.g. "/prep")
	BatchMaxSize int    // max exam_ids x languages pairs accepted per batch request
}
