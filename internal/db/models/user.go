// Package models - user.go defines the User model for platform accounts with
// display handle and moderation role.
package models

import "time"

// User roles. Role checks on admin-gated operations happen in the HTTP
// middleware; the lifecycle engine only sees actor identifiers.
const (
	RoleMember    = "member"
	RoleModerator = "moderator"
	RoleAdmin     = "admin"
)

// ValidRole reports whether r is a known role.
func ValidRole(r string) bool {
	switch r {
	case RoleMember, RoleModerator, RoleAdmin:
		return true
	}
	return false
}

// User represents an account on the platform.
type User struct {
	ID        string    `json:"id" db:"id"`
	Handle    string    `json:"handle" db:"handle"`
	Email     string    `json:"email" db:"email"`
	Role      string    `json:"role" db:"role"`
	CreatedAt time.Time `json:"created_at" db:"created_at"`
}

// IsAdmin reports whether the user may apply overrides and decide appeals.
func (u *User) IsAdmin() bool {
	return u.Role == RoleAdmin
}
