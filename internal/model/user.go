package model

import (
	"fmt"
	"time"
)

// User represents an authentication user.
type User struct {
	ID           int64      `json:"id"`
	Username     string     `json:"username"`
	PasswordHash string     `json:"-"`
	Role         string     `json:"role"`
	CreatedAt    time.Time  `json:"created_at"`
	DeletedAt    *time.Time `json:"deleted_at,omitempty"`
}

// Roles form a closed set, validated wherever a role string enters the
// system (user creation, token claims). Only admins manage inventory and
// decide requisitions; the other three roles are requesters.
const (
	RoleAdmin    = "admin"
	RoleStaff    = "staff"
	RoleFaculty  = "faculty"
	RoleDirector = "director"
)

// ValidRole reports whether role is one of the known roles.
func ValidRole(role string) bool {
	switch role {
	case RoleAdmin, RoleStaff, RoleFaculty, RoleDirector:
		return true
	}
	return false
}

// ValidatePassword checks password strength requirements.
func ValidatePassword(password string) error {
	if len(password) < 8 {
		return fmt.Errorf("password must be at least 8 characters")
	}
	return nil
}
