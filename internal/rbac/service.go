package rbac

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/odyssey-erp/odyssey-access/internal/shared"
)

// Service resolves effective permissions and administers roles. Every
// mutation goes through the repository, which bumps the organization's
// permission version in the same transaction.
type Service struct {
	repo  Repository
	cache *PermissionCache
}

// NewService constructs a Service. cache may be nil.
func NewService(repo Repository, cache *PermissionCache) *Service {
	return &Service{repo: repo, cache: cache}
}

// EffectivePermissions returns the union of the principal's declared role
// grants and explicit assignment grants inside organizationID. Both paths
// are always evaluated. Store failures come back as DenialLookupFailure,
// never as an empty set.
func (s *Service) EffectivePermissions(ctx context.Context, p shared.Principal, organizationID int64) (PermissionSet, error) {
	load := func(ctx context.Context) (PermissionSet, error) {
		return s.loadEffective(ctx, p, organizationID)
	}
	var (
		set PermissionSet
		err error
	)
	if s.cache == nil {
		set, err = load(ctx)
	} else {
		// The version is read before any grant so a cached set can only be
		// older than a change that has not committed yet.
		var version int64
		version, err = s.repo.PermissionVersion(ctx, organizationID)
		if err != nil {
			err = fmt.Errorf("rbac: permission version: %w", err)
		} else {
			set, err = s.cache.Fetch(ctx, version, organizationID, p.UserID, p.DeclaredRole, load)
		}
	}
	if err != nil {
		return nil, shared.Deny(shared.DenialLookupFailure, err)
	}
	return set, nil
}

func (s *Service) loadEffective(ctx context.Context, p shared.Principal, organizationID int64) (PermissionSet, error) {
	set := NewPermissionSet()
	if role := strings.TrimSpace(p.DeclaredRole); role != "" {
		declared, err := s.repo.DeclaredRolePermissions(ctx, organizationID, role)
		if err != nil {
			return nil, fmt.Errorf("rbac: declared role permissions: %w", err)
		}
		set.Add(declared...)
	}
	assigned, err := s.repo.AssignedRolePermissions(ctx, p.UserID, organizationID)
	if err != nil {
		return nil, fmt.Errorf("rbac: assigned role permissions: %w", err)
	}
	set.Add(assigned...)
	return set, nil
}

// ResolvedRoles lists the roles contributing to the principal's permissions.
func (s *Service) ResolvedRoles(ctx context.Context, p shared.Principal, organizationID int64) ([]Role, error) {
	roles, err := s.repo.ResolvedRoles(ctx, p.UserID, organizationID, p.DeclaredRole)
	if err != nil {
		return nil, shared.Deny(shared.DenialLookupFailure, err)
	}
	return roles, nil
}

// ListRoles returns the organization's roles.
func (s *Service) ListRoles(ctx context.Context, organizationID int64) ([]Role, error) {
	return s.repo.ListRoles(ctx, organizationID)
}

// GetRole fetches a role scoped to the organization.
func (s *Service) GetRole(ctx context.Context, organizationID, roleID int64) (Role, error) {
	return s.repo.GetRole(ctx, organizationID, roleID)
}

// RolePermissions lists the grants of a role scoped to the organization.
func (s *Service) RolePermissions(ctx context.Context, organizationID, roleID int64) ([]string, error) {
	if _, err := s.repo.GetRole(ctx, organizationID, roleID); err != nil {
		return nil, err
	}
	return s.repo.RolePermissions(ctx, roleID)
}

// CreateRole inserts a new role.
func (s *Service) CreateRole(ctx context.Context, in NewRoleInput) (Role, error) {
	in.Name = shared.Fold(in.Name)
	if in.Name == "" {
		return Role{}, errors.New("rbac: role name required")
	}
	in.Description = strings.TrimSpace(in.Description)
	return s.repo.CreateRole(ctx, in)
}

// DisableRole soft-disables a role.
func (s *Service) DisableRole(ctx context.Context, organizationID, roleID int64) error {
	return s.setRoleActive(ctx, organizationID, roleID, false)
}

// EnableRole re-activates a disabled role.
func (s *Service) EnableRole(ctx context.Context, organizationID, roleID int64) error {
	return s.setRoleActive(ctx, organizationID, roleID, true)
}

func (s *Service) setRoleActive(ctx context.Context, organizationID, roleID int64, active bool) error {
	return s.repo.SetRoleActive(ctx, organizationID, roleID, active)
}

// SetRolePermissions replaces the grants of a role.
func (s *Service) SetRolePermissions(ctx context.Context, organizationID, roleID int64, names []string) error {
	if _, err := s.repo.GetRole(ctx, organizationID, roleID); err != nil {
		return err
	}
	for _, name := range names {
		if _, _, ok := shared.SplitPermission(name); !ok {
			return fmt.Errorf("%w: %q", ErrUnknownPermission, name)
		}
	}
	return s.repo.ReplaceRolePermissions(ctx, roleID, NewPermissionSet(names...).Names())
}

// AssignRole links a user to a role of the organization.
func (s *Service) AssignRole(ctx context.Context, organizationID, userID, roleID int64) error {
	if _, err := s.repo.GetRole(ctx, organizationID, roleID); err != nil {
		return err
	}
	return s.repo.AssignRole(ctx, userID, roleID)
}

// RevokeRole removes a user's explicit assignment.
func (s *Service) RevokeRole(ctx context.Context, organizationID, userID, roleID int64) error {
	if _, err := s.repo.GetRole(ctx, organizationID, roleID); err != nil {
		return err
	}
	return s.repo.RevokeRole(ctx, userID, roleID)
}

// ListPermissions returns the platform permission catalogue.
func (s *Service) ListPermissions(ctx context.Context) ([]Permission, error) {
	return s.repo.ListPermissions(ctx)
}

// SyncCatalogue upserts every module.action permission of the vocabulary.
func (s *Service) SyncCatalogue(ctx context.Context) (int, error) {
	scopes := shared.CatalogueScopes()
	for _, name := range scopes {
		module, action, _ := shared.SplitPermission(name)
		if _, err := s.repo.EnsurePermission(ctx, Permission{
			Name:        name,
			Module:      module,
			Action:      action,
			Description: fmt.Sprintf("%s %s", strings.ToUpper(action[:1])+action[1:], module),
		}); err != nil {
			return 0, err
		}
	}
	return len(scopes), nil
}

// ProvisionTenant seeds the default roles of a new organization.
func (s *Service) ProvisionTenant(ctx context.Context, organizationID int64) error {
	return s.repo.ProvisionRoles(ctx, organizationID, DefaultRoles())
}
