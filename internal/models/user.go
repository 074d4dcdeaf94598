package models

import (
	"strings"
	"time"
)

// UserRole represents the roles recognised by the registration API.
type UserRole string

const (
	RoleStudent    UserRole = "student"
	RoleInstructor UserRole = "instructor"
	RoleRegistrar  UserRole = "registrar"
	// RoleNotFound is reported for identifiers with no user row.
	RoleNotFound UserRole = "not_found"
)

// Valid reports whether the role may be assigned to a user.
func (r UserRole) Valid() bool {
	switch r {
	case RoleStudent, RoleInstructor, RoleRegistrar:
		return true
	case RoleNotFound:
		return false
	default:
		return false
	}
}

// User represents an application user stored in the users table. ID is the campus-wide id.
type User struct {
	ID           int64     `db:"id" json:"id"`
	Username     string    `db:"username" json:"username"`
	FirstName    string    `db:"first_name" json:"first_name"`
	MiddleName   string    `db:"middle_name" json:"middle_name,omitempty"`
	LastName     string    `db:"last_name" json:"last_name"`
	PasswordHash string    `db:"password_hash" json:"-"`
	Role         UserRole  `db:"role" json:"role"`
	CreatedAt    time.Time `db:"created_at" json:"created_at"`
}

// FullName joins the populated name parts.
func (u User) FullName() string {
	parts := make([]string, 0, 3)
	for _, p := range []string{u.FirstName, u.MiddleName, u.LastName} {
		if p != "" {
			parts = append(parts, p)
		}
	}
	return strings.Join(parts, " ")
}
