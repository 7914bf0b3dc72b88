package models

import (
	"strings"
	"time"
)

// UserRole represents the stored role of an account.
type UserRole string

const (
	RoleAdmin   UserRole = "admin"
	RoleTeacher UserRole = "teacher"
	RoleParent  UserRole = "parent"
	RoleStudent UserRole = "student"
)

// Valid reports whether r is one of the four known roles.
func (r UserRole) Valid() bool {
	switch r {
	case RoleAdmin, RoleTeacher, RoleParent, RoleStudent:
		return true
	}
	return false
}

// User represents an account stored in the users table.
type User struct {
	ID                 string     `db:"id" json:"id"`
	RegistrationNumber *string    `db:"registration_number" json:"registrationNumber,omitempty"`
	Email              *string    `db:"email" json:"email,omitempty"`
	FirstName          string     `db:"first_name" json:"firstName"`
	LastName           string     `db:"last_name" json:"lastName"`
	PasswordHash       *string    `db:"password_hash" json:"-"`
	Role               UserRole   `db:"role" json:"role"`
	Phone              *string    `db:"phone" json:"phone,omitempty"`
	Active             bool       `db:"active" json:"active"`
	LastLogin          *time.Time `db:"last_login" json:"lastLogin,omitempty"`
	CreatedAt          time.Time  `db:"created_at" json:"createdAt"`
	UpdatedAt          time.Time  `db:"updated_at" json:"updatedAt"`
}

// HasPassword reports whether a password hash has been set.
func (u *User) HasPassword() bool {
	return u != nil && u.PasswordHash != nil && *u.PasswordHash != ""
}

// StoredRole returns the persisted role, defaulting to student.
func (u *User) StoredRole() UserRole {
	if u == nil || u.Role == "" {
		return RoleStudent
	}
	return u.Role
}

// FullName joins first and last name.
func (u *User) FullName() string {
	return strings.TrimSpace(u.FirstName + " " + u.LastName)
}

// EmailAddress returns the email or an empty string.
func (u *User) EmailAddress() string {
	if u == nil || u.Email == nil {
		return ""
	}
	return *u.Email
}

// Summary returns the public representation presented as role.
func (u *User) Summary(role UserRole) UserSummary {
	summary := UserSummary{
		ID:        u.ID,
		FirstName: u.FirstName,
		LastName:  u.LastName,
		Role:      role,
	}
	if u.RegistrationNumber != nil {
		summary.RegistrationNumber = *u.RegistrationNumber
	}
	if u.Email != nil {
		summary.Email = *u.Email
	}
	return summary
}

// UserSummary describes the authenticated user in responses.
type UserSummary struct {
	ID                 string   `json:"id"`
	RegistrationNumber string   `json:"registrationNumber,omitempty"`
	Email              string   `json:"email,omitempty"`
	FirstName          string   `json:"firstName"`
	LastName           string   `json:"lastName"`
	Role               UserRole `json:"role"`
}

// UserFilter captures filtering criteria for listing users.
type UserFilter struct {
	Role      *UserRole
	Active    *bool
	Search    string
	Page      int
	PageSize  int
	SortBy    string
	SortOrder string
}

// Pagination contains pagination metadata returned in list responses.
type Pagination struct {
	Page       int `json:"page"`
	PageSize   int `json:"pageSize"`
	TotalCount int `json:"totalCount"`
}
