package model

import (
	"time"
)

type Role string

const (
	RoleAdmin        Role = "ADMIN"
	RoleDoctor       Role = "DOCTOR"
	RoleTherapist    Role = "THERAPIST"
	RoleReceptionist Role = "RECEPTIONIST"
)

func (r Role) Valid() bool {
	switch r {
	case RoleAdmin, RoleDoctor, RoleTherapist, RoleReceptionist:
		return true
	}
	return false
}

// Lockout policy for repeated failed logins.
const (
	MaxFailedLogins = 5
	LockoutDuration = 15 * time.Minute
)

// User represents a clinic staff account
type User struct {
	Base
	Email               string     `json:"email" db:"email"`
	PasswordHash        string     `json:"-" db:"password_hash"`
	FirstName           string     `json:"firstName" db:"first_name"`
	LastName            string     `json:"lastName" db:"last_name"`
	Role                Role       `json:"role" db:"role"`
	IsActive            bool       `json:"isActive" db:"is_active"`
	LastLoginAt         *time.Time `json:"lastLoginAt,omitempty" db:"last_login_at"`
	FailedLoginAttempts int        `json:"-" db:"failed_login_attempts"`
	LockedUntil         *time.Time `json:"-" db:"locked_until"`
}

func (u *User) IsLocked(now time.Time) bool {
	return u.LockedUntil != nil && now.Before(*u.LockedUntil)
}

// RegisterFailedLogin counts a failed attempt and locks the account once the limit is hit.
func (u *User) RegisterFailedLogin(now time.Time) {
	u.FailedLoginAttempts++
	if u.FailedLoginAttempts >= MaxFailedLogins {
		until := now.Add(LockoutDuration)
		u.LockedUntil = &until
		u.FailedLoginAttempts = 0
	}
}

func (u *User) RegisterLogin(now time.Time) {
	u.FailedLoginAttempts = 0
	u.LockedUntil = nil
	u.LastLoginAt = &now
}

// CreateUserRequest represents user creation parameters
type CreateUserRequest struct {
	Email     string `json:"email" binding:"required,email"`
	Password  string `json:"password" binding:"required,min=8"`
	FirstName string `json:"firstName" binding:"required"`
	LastName  string `json:"lastName" binding:"required"`
	Role      Role   `json:"role" binding:"required,oneof=ADMIN DOCTOR THERAPIST RECEPTIONIST"`
}

type UserFilters struct {
	Role Role
	Page
}
