package rbac

import "time"

// Role is an organization scoped named bundle of permissions.
type Role struct {
	ID             int64     `json:"id"`
	OrganizationID int64     `json:"organization_id"`
	Name           string    `json:"name"`
	Description    string    `json:"description"`
	IsActive       bool      `json:"is_active"`
	CreatedAt      time.Time `json:"created_at"`
	UpdatedAt      time.Time `json:"updated_at"`
}

// Permission represents a platform wide capability.
type Permission struct {
	ID          int64  `json:"id"`
	Name        string `json:"name"`
	Module      string `json:"module"`
	Action      string `json:"action"`
	Description string `json:"description"`
}

// RolePermission grants a permission to every holder of a role.
type RolePermission struct {
	RoleID       int64
	PermissionID int64
	CreatedAt    time.Time
}

// UserRoleAssignment links a user to a role beyond the declared role shortcut.
type UserRoleAssignment struct {
	UserID    int64     `json:"user_id"`
	RoleID    int64     `json:"role_id"`
	IsActive  bool      `json:"is_active"`
	CreatedAt time.Time `json:"created_at"`
}

// NewRoleInput describes a role to create.
type NewRoleInput struct {
	OrganizationID int64
	Name           string
	Description    string
}
