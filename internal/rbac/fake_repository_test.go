package rbac

import (
	"context"
	"errors"
	"sort"
	"sync"

	"github.com/odyssey-erp/odyssey-access/internal/shared"
)

type fakeRepository struct {
	mu          sync.Mutex
	roles       map[int64]*Role
	grants      map[int64][]string
	assignments map[int64]map[int64]bool
	permissions map[string]Permission
	versions    map[int64]int64
	nextRoleID  int64

	readErr    error
	versionErr error
	readCalls  int
}

func newFakeRepository() *fakeRepository {
	return &fakeRepository{
		roles:       make(map[int64]*Role),
		grants:      make(map[int64][]string),
		assignments: make(map[int64]map[int64]bool),
		permissions: make(map[string]Permission),
		versions:    make(map[int64]int64),
		nextRoleID:  1,
	}
}

func (f *fakeRepository) addRole(orgID int64, name string, active bool, perms ...string) int64 {
	f.mu.Lock()
	defer f.mu.Unlock()
	id := f.nextRoleID
	f.nextRoleID++
	f.roles[id] = &Role{ID: id, OrganizationID: orgID, Name: shared.Fold(name), IsActive: active}
	f.grants[id] = append([]string(nil), perms...)
	return id
}

func (f *fakeRepository) assign(userID, roleID int64) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.assignments[userID] == nil {
		f.assignments[userID] = make(map[int64]bool)
	}
	f.assignments[userID][roleID] = true
}

// bumpRole must be called with mu held.
func (f *fakeRepository) bumpRole(roleID int64) {
	if role, ok := f.roles[roleID]; ok {
		f.versions[role.OrganizationID]++
	}
}

func (f *fakeRepository) PermissionVersion(ctx context.Context, organizationID int64) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.versionErr != nil {
		return 0, f.versionErr
	}
	return f.versions[organizationID], nil
}

func (f *fakeRepository) DeclaredRolePermissions(ctx context.Context, organizationID int64, roleName string) ([]string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.readCalls++
	if f.readErr != nil {
		return nil, f.readErr
	}
	var out []string
	for id, role := range f.roles {
		if role.OrganizationID == organizationID && role.Name == shared.Fold(roleName) && role.IsActive {
			out = append(out, f.grants[id]...)
		}
	}
	return out, nil
}

func (f *fakeRepository) AssignedRolePermissions(ctx context.Context, userID, organizationID int64) ([]string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.readCalls++
	if f.readErr != nil {
		return nil, f.readErr
	}
	var out []string
	for roleID, active := range f.assignments[userID] {
		role, ok := f.roles[roleID]
		if !ok || !active || !role.IsActive || role.OrganizationID != organizationID {
			continue
		}
		out = append(out, f.grants[roleID]...)
	}
	return out, nil
}

func (f *fakeRepository) ResolvedRoles(ctx context.Context, userID, organizationID int64, roleName string) ([]Role, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.readErr != nil {
		return nil, f.readErr
	}
	var out []Role
	for id, role := range f.roles {
		if role.OrganizationID != organizationID || !role.IsActive {
			continue
		}
		if role.Name == shared.Fold(roleName) || f.assignments[userID][id] {
			out = append(out, *role)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}

func (f *fakeRepository) ListRoles(ctx context.Context, organizationID int64) ([]Role, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []Role
	for _, role := range f.roles {
		if role.OrganizationID == organizationID {
			out = append(out, *role)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}

func (f *fakeRepository) GetRole(ctx context.Context, organizationID, roleID int64) (Role, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	role, ok := f.roles[roleID]
	if !ok || role.OrganizationID != organizationID {
		return Role{}, ErrNotFound
	}
	return *role, nil
}

func (f *fakeRepository) CreateRole(ctx context.Context, in NewRoleInput) (Role, error) {
	f.mu.Lock()
	for _, role := range f.roles {
		if role.OrganizationID == in.OrganizationID && role.Name == in.Name {
			f.mu.Unlock()
			return Role{}, ErrDuplicateRole
		}
	}
	f.mu.Unlock()
	id := f.addRole(in.OrganizationID, in.Name, true)
	f.mu.Lock()
	f.bumpRole(id)
	f.mu.Unlock()
	return f.GetRole(ctx, in.OrganizationID, id)
}

func (f *fakeRepository) SetRoleActive(ctx context.Context, organizationID, roleID int64, active bool) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	role, ok := f.roles[roleID]
	if !ok || role.OrganizationID != organizationID {
		return ErrNotFound
	}
	role.IsActive = active
	f.bumpRole(roleID)
	return nil
}

func (f *fakeRepository) RolePermissions(ctx context.Context, roleID int64) ([]string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return NewPermissionSet(f.grants[roleID]...).Names(), nil
}

func (f *fakeRepository) ReplaceRolePermissions(ctx context.Context, roleID int64, names []string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, name := range names {
		if _, ok := f.permissions[name]; !ok && len(f.permissions) > 0 {
			return errors.Join(ErrUnknownPermission, errors.New(name))
		}
	}
	f.grants[roleID] = append([]string(nil), names...)
	f.bumpRole(roleID)
	return nil
}

func (f *fakeRepository) AssignRole(ctx context.Context, userID, roleID int64) error {
	f.assign(userID, roleID)
	f.mu.Lock()
	f.bumpRole(roleID)
	f.mu.Unlock()
	return nil
}

func (f *fakeRepository) RevokeRole(ctx context.Context, userID, roleID int64) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if !f.assignments[userID][roleID] {
		return ErrNotFound
	}
	f.assignments[userID][roleID] = false
	f.bumpRole(roleID)
	return nil
}

func (f *fakeRepository) ListPermissions(ctx context.Context) ([]Permission, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]Permission, 0, len(f.permissions))
	for _, p := range f.permissions {
		out = append(out, p)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}

func (f *fakeRepository) EnsurePermission(ctx context.Context, perm Permission) (Permission, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if existing, ok := f.permissions[perm.Name]; ok {
		return existing, nil
	}
	perm.ID = int64(len(f.permissions) + 1)
	f.permissions[perm.Name] = perm
	return perm, nil
}

func (f *fakeRepository) ProvisionRoles(ctx context.Context, organizationID int64, seeds []RoleSeed) error {
	for _, seed := range seeds {
		exists := false
		f.mu.Lock()
		for _, role := range f.roles {
			if role.OrganizationID == organizationID && role.Name == shared.Fold(seed.Name) {
				exists = true
			}
		}
		f.mu.Unlock()
		if !exists {
			f.addRole(organizationID, seed.Name, true, seed.Permissions...)
		}
	}
	f.mu.Lock()
	f.versions[organizationID]++
	f.mu.Unlock()
	return nil
}

var _ Repository = (*fakeRepository)(nil)
