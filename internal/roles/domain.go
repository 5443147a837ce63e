package roles

import "github.com/odyssey-erp/odyssey-access/internal/rbac"

// CreateRoleRequest is the payload of POST /roles.
type CreateRoleRequest struct {
	Name        string `json:"name" validate:"required,min=2,max=64"`
	Description string `json:"description" validate:"max=255"`
}

// SetPermissionsRequest replaces the grants of a role.
type SetPermissionsRequest struct {
	Permissions []string `json:"permissions" validate:"dive,required,max=128"`
}

// RoleDetail is a role with its grants.
type RoleDetail struct {
	rbac.Role
	Permissions []string `json:"permissions"`
}
