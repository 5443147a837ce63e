package rbac

import "github.com/odyssey-erp/odyssey-access/internal/shared"

// Default role names provisioned for every tenant.
const (
	RoleOrgAdmin = "org_admin"
	RoleManager  = "manager"
	RoleUser     = "user"
)

// RoleSeed describes a role created on tenant provisioning.
type RoleSeed struct {
	Name        string
	Description string
	Permissions []string
}

// DefaultRoles returns the seed roles. Grants are spelled out action by
// action: holding "manage" implies nothing at evaluation time, so the admin
// role is seeded with every action explicitly.
func DefaultRoles() []RoleSeed {
	return []RoleSeed{
		{
			Name:        RoleOrgAdmin,
			Description: "Full access to every module of the organization",
			Permissions: grants(shared.Modules(), shared.Actions()),
		},
		{
			Name:        RoleManager,
			Description: "Read and maintain business records",
			Permissions: grants(businessModules(), []string{
				shared.ActionRead, shared.ActionList, shared.ActionAccess, shared.ActionCreate, shared.ActionUpdate,
			}),
		},
		{
			Name:        RoleUser,
			Description: "Read-only access to business records",
			Permissions: grants(businessModules(), []string{shared.ActionRead, shared.ActionList}),
		},
	}
}

func businessModules() []string {
	modules := shared.Modules()
	out := make([]string, 0, len(modules))
	for _, m := range modules {
		if m == shared.ModuleAdmin {
			continue
		}
		out = append(out, m)
	}
	return out
}

func grants(modules, actions []string) []string {
	out := make([]string, 0, len(modules)*len(actions))
	for _, m := range modules {
		for _, a := range actions {
			out = append(out, shared.PermissionName(m, a))
		}
	}
	return out
}
