package models

import (
	"time"

	"github.com/lib/pq"
)

// UserRole represents the available roles.
type UserRole string

const (
	RoleAdmin UserRole = "admin"
	RoleUser  UserRole = "user"
)

// Valid reports whether r is a known role.
func (r UserRole) Valid() bool {
	return r == RoleAdmin || r == RoleUser
}

// Permission names granted to standard users. Administrators hold all of them implicitly.
const (
	PermissionViewEnquiries     = "enquiries:view"
	PermissionEditEnquiries     = "enquiries:edit"
	PermissionRecordPayments    = "payments:record"
	PermissionViewPayments      = "payments:view"
	PermissionImportAdvertising = "advertisements:import"
	PermissionExport            = "reports:export"
)

// AllPermissions lists every assignable permission.
var AllPermissions = []string{
	PermissionViewEnquiries,
	PermissionEditEnquiries,
	PermissionRecordPayments,
	PermissionViewPayments,
	PermissionImportAdvertising,
	PermissionExport,
}

// User represents an application user stored in the users table.
type User struct {
	ID                string         `db:"id" json:"id"`
	Username          string         `db:"username" json:"username"`
	Email             string         `db:"email" json:"email"`
	PasswordHash      string         `db:"password_hash" json:"-"`
	FullName          string         `db:"full_name" json:"fullName"`
	Role              UserRole       `db:"role" json:"role"`
	IsActive          bool           `db:"is_active" json:"isActive"`
	Permissions       pq.StringArray `db:"permissions" json:"permissions"`
	LastLogin         *time.Time     `db:"last_login" json:"lastLogin,omitempty"`
	PasswordChangedAt *time.Time     `db:"password_changed_at" json:"passwordChangedAt,omitempty"`
	CreatedAt         time.Time      `db:"created_at" json:"createdAt"`
	UpdatedAt         time.Time      `db:"updated_at" json:"updatedAt"`
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
	PageSize   int `json:"page_size"`
	TotalCount int `json:"total_count"`
}
