package e2e

import (
	"context"
	"sort"
	"sync"

	"github.com/odyssey-erp/odyssey-access/internal/rbac"
	"github.com/odyssey-erp/odyssey-access/internal/shared"
	"github.com/odyssey-erp/odyssey-access/internal/tenant"
)

// memoryRBAC is an in-memory rbac.Repository.
type memoryRBAC struct {
	mu          sync.Mutex
	nextID      int64
	roles       map[int64]rbac.Role
	grants      map[int64][]string
	assignments map[[2]int64]bool
	permissions map[string]rbac.Permission
	versions    map[int64]int64
}

func newMemoryRBAC() *memoryRBAC {
	return &memoryRBAC{
		roles:       map[int64]rbac.Role{},
		grants:      map[int64][]string{},
		assignments: map[[2]int64]bool{},
		permissions: map[string]rbac.Permission{},
		versions:    map[int64]int64{},
	}
}

func (m *memoryRBAC) PermissionVersion(ctx context.Context, organizationID int64) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.versions[organizationID], nil
}

func (m *memoryRBAC) bumpLocked(roleID int64) {
	if role, ok := m.roles[roleID]; ok {
		m.versions[role.OrganizationID]++
	}
}

func (m *memoryRBAC) DeclaredRolePermissions(ctx context.Context, organizationID int64, roleName string) ([]string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []string
	for id, role := range m.roles {
		if role.OrganizationID == organizationID && role.IsActive && role.Name == shared.Fold(roleName) {
			out = append(out, m.grants[id]...)
		}
	}
	return out, nil
}

func (m *memoryRBAC) AssignedRolePermissions(ctx context.Context, userID, organizationID int64) ([]string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []string
	for id, role := range m.roles {
		if role.OrganizationID == organizationID && role.IsActive && m.assignments[[2]int64{userID, id}] {
			out = append(out, m.grants[id]...)
		}
	}
	return out, nil
}

func (m *memoryRBAC) ResolvedRoles(ctx context.Context, userID, organizationID int64, roleName string) ([]rbac.Role, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []rbac.Role
	for id, role := range m.roles {
		if role.OrganizationID != organizationID || !role.IsActive {
			continue
		}
		if role.Name == shared.Fold(roleName) || m.assignments[[2]int64{userID, id}] {
			out = append(out, role)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}

func (m *memoryRBAC) ListRoles(ctx context.Context, organizationID int64) ([]rbac.Role, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []rbac.Role
	for _, role := range m.roles {
		if role.OrganizationID == organizationID {
			out = append(out, role)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}

func (m *memoryRBAC) GetRole(ctx context.Context, organizationID, roleID int64) (rbac.Role, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	role, ok := m.roles[roleID]
	if !ok || role.OrganizationID != organizationID {
		return rbac.Role{}, rbac.ErrNotFound
	}
	return role, nil
}

func (m *memoryRBAC) CreateRole(ctx context.Context, in rbac.NewRoleInput) (rbac.Role, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, role := range m.roles {
		if role.OrganizationID == in.OrganizationID && role.Name == in.Name {
			return rbac.Role{}, rbac.ErrDuplicateRole
		}
	}
	role := m.addRoleLocked(in.OrganizationID, in.Name, in.Description, nil)
	m.bumpLocked(role.ID)
	return role, nil
}

func (m *memoryRBAC) addRoleLocked(organizationID int64, name, description string, perms []string) rbac.Role {
	m.nextID++
	role := rbac.Role{ID: m.nextID, OrganizationID: organizationID, Name: shared.Fold(name), Description: description, IsActive: true}
	m.roles[role.ID] = role
	m.grants[role.ID] = append([]string(nil), perms...)
	return role
}

func (m *memoryRBAC) SetRoleActive(ctx context.Context, organizationID, roleID int64, active bool) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	role, ok := m.roles[roleID]
	if !ok || role.OrganizationID != organizationID {
		return rbac.ErrNotFound
	}
	role.IsActive = active
	m.roles[roleID] = role
	m.bumpLocked(roleID)
	return nil
}

func (m *memoryRBAC) RolePermissions(ctx context.Context, roleID int64) ([]string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return rbac.NewPermissionSet(m.grants[roleID]...).Names(), nil
}

func (m *memoryRBAC) ReplaceRolePermissions(ctx context.Context, roleID int64, names []string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.grants[roleID] = append([]string(nil), names...)
	m.bumpLocked(roleID)
	return nil
}

func (m *memoryRBAC) AssignRole(ctx context.Context, userID, roleID int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.assignments[[2]int64{userID, roleID}] = true
	m.bumpLocked(roleID)
	return nil
}

func (m *memoryRBAC) RevokeRole(ctx context.Context, userID, roleID int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	key := [2]int64{userID, roleID}
	if !m.assignments[key] {
		return rbac.ErrNotFound
	}
	m.assignments[key] = false
	m.bumpLocked(roleID)
	return nil
}

func (m *memoryRBAC) ListPermissions(ctx context.Context) ([]rbac.Permission, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]rbac.Permission, 0, len(m.permissions))
	for _, p := range m.permissions {
		out = append(out, p)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}

func (m *memoryRBAC) EnsurePermission(ctx context.Context, perm rbac.Permission) (rbac.Permission, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if existing, ok := m.permissions[perm.Name]; ok {
		return existing, nil
	}
	perm.ID = int64(len(m.permissions) + 1)
	m.permissions[perm.Name] = perm
	return perm, nil
}

func (m *memoryRBAC) ProvisionRoles(ctx context.Context, organizationID int64, seeds []rbac.RoleSeed) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, seed := range seeds {
		m.addRoleLocked(organizationID, seed.Name, seed.Description, seed.Permissions)
	}
	m.versions[organizationID]++
	return nil
}

var _ rbac.Repository = (*memoryRBAC)(nil)

type memoryOrganizations map[int64]tenant.Organization

func (m memoryOrganizations) GetOrganization(ctx context.Context, id int64) (tenant.Organization, error) {
	org, ok := m[id]
	if !ok {
		return tenant.Organization{}, tenant.ErrNotFound
	}
	return org, nil
}

func (m memoryOrganizations) SetEnabledModules(ctx context.Context, id int64, modules []string) error {
	org, ok := m[id]
	if !ok {
		return tenant.ErrNotFound
	}
	org.EnabledModules = tenant.CanonicalModules(modules)
	m[id] = org
	return nil
}

// members maps user id to organization id.
type members map[int64]int64

func (m members) IsMember(ctx context.Context, organizationID, userID int64) (bool, error) {
	org, ok := m[userID]
	return ok && org == organizationID, nil
}

type auditTrail struct {
	mu      sync.Mutex
	entries []shared.AuditLog
}

func (a *auditTrail) Record(ctx context.Context, entry shared.AuditLog) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.entries = append(a.entries, entry)
	return nil
}

func (a *auditTrail) actions() []string {
	a.mu.Lock()
	defer a.mu.Unlock()
	out := make([]string, 0, len(a.entries))
	for _, e := range a.entries {
		out = append(out, e.Action)
	}
	return out
}
