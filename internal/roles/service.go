package roles

import (
	"context"
	"errors"
	"log/slog"
	"strconv"

	"github.com/google/uuid"

	"github.com/odyssey-erp/odyssey-access/internal/access"
	"github.com/odyssey-erp/odyssey-access/internal/rbac"
	"github.com/odyssey-erp/odyssey-access/internal/shared"
)

// ErrNotMember indicates an assignment target outside the organization.
var ErrNotMember = errors.New("roles: user is not a member of the organization")

// RBAC is the slice of rbac.Service the admin API needs.
type RBAC interface {
	ListRoles(ctx context.Context, organizationID int64) ([]rbac.Role, error)
	GetRole(ctx context.Context, organizationID, roleID int64) (rbac.Role, error)
	RolePermissions(ctx context.Context, organizationID, roleID int64) ([]string, error)
	CreateRole(ctx context.Context, in rbac.NewRoleInput) (rbac.Role, error)
	DisableRole(ctx context.Context, organizationID, roleID int64) error
	EnableRole(ctx context.Context, organizationID, roleID int64) error
	SetRolePermissions(ctx context.Context, organizationID, roleID int64, names []string) error
	AssignRole(ctx context.Context, organizationID, userID, roleID int64) error
	RevokeRole(ctx context.Context, organizationID, userID, roleID int64) error
	ListPermissions(ctx context.Context) ([]rbac.Permission, error)
}

// MemberDirectory answers tenant membership questions.
type MemberDirectory interface {
	IsMember(ctx context.Context, organizationID, userID int64) (bool, error)
}

// Service handles role administration for one tenant at a time. Every
// mutation is recorded to the audit trail.
type Service struct {
	rbac    RBAC
	members MemberDirectory
	audit   shared.AuditRecorder
	logger  *slog.Logger
}

// NewService builds Service instance. audit may be nil.
func NewService(rbac RBAC, members MemberDirectory, audit shared.AuditRecorder, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{rbac: rbac, members: members, audit: audit, logger: logger}
}

// ListRoles returns the roles of the granted organization.
func (s *Service) ListRoles(ctx context.Context, grant access.Grant) ([]rbac.Role, error) {
	orgID, err := grant.Scope.Require()
	if err != nil {
		return nil, err
	}
	return s.rbac.ListRoles(ctx, orgID)
}

// GetRole returns a role and its grants.
func (s *Service) GetRole(ctx context.Context, grant access.Grant, roleID int64) (RoleDetail, error) {
	orgID, err := grant.Scope.Require()
	if err != nil {
		return RoleDetail{}, err
	}
	role, err := s.rbac.GetRole(ctx, orgID, roleID)
	if err != nil {
		return RoleDetail{}, err
	}
	perms, err := s.rbac.RolePermissions(ctx, orgID, roleID)
	if err != nil {
		return RoleDetail{}, err
	}
	if perms == nil {
		perms = []string{}
	}
	return RoleDetail{Role: role, Permissions: perms}, nil
}

// CreateRole adds a role to the granted organization.
func (s *Service) CreateRole(ctx context.Context, grant access.Grant, req CreateRoleRequest) (rbac.Role, error) {
	orgID, err := grant.Scope.Require()
	if err != nil {
		return rbac.Role{}, err
	}
	role, err := s.rbac.CreateRole(ctx, rbac.NewRoleInput{OrganizationID: orgID, Name: req.Name, Description: req.Description})
	if err != nil {
		return rbac.Role{}, err
	}
	s.record(ctx, grant, orgID, "role.create", role.ID, map[string]any{"name": role.Name})
	return role, nil
}

// SetActive enables or soft-disables a role.
func (s *Service) SetActive(ctx context.Context, grant access.Grant, roleID int64, active bool) error {
	orgID, err := grant.Scope.Require()
	if err != nil {
		return err
	}
	action := "role.enable"
	if active {
		err = s.rbac.EnableRole(ctx, orgID, roleID)
	} else {
		action = "role.disable"
		err = s.rbac.DisableRole(ctx, orgID, roleID)
	}
	if err != nil {
		return err
	}
	s.record(ctx, grant, orgID, action, roleID, nil)
	return nil
}

// SetPermissions replaces the grants of a role.
func (s *Service) SetPermissions(ctx context.Context, grant access.Grant, roleID int64, names []string) error {
	orgID, err := grant.Scope.Require()
	if err != nil {
		return err
	}
	if err := s.rbac.SetRolePermissions(ctx, orgID, roleID, names); err != nil {
		return err
	}
	s.record(ctx, grant, orgID, "role.permissions", roleID, map[string]any{"permissions": names})
	return nil
}

// Assign links a tenant member to a role.
func (s *Service) Assign(ctx context.Context, grant access.Grant, roleID, userID int64) error {
	orgID, err := s.memberScope(ctx, grant, userID)
	if err != nil {
		return err
	}
	if err := s.rbac.AssignRole(ctx, orgID, userID, roleID); err != nil {
		return err
	}
	s.record(ctx, grant, orgID, "role.assign", roleID, map[string]any{"user_id": userID})
	return nil
}

// Unassign removes a member's explicit assignment.
func (s *Service) Unassign(ctx context.Context, grant access.Grant, roleID, userID int64) error {
	orgID, err := s.memberScope(ctx, grant, userID)
	if err != nil {
		return err
	}
	if err := s.rbac.RevokeRole(ctx, orgID, userID, roleID); err != nil {
		return err
	}
	s.record(ctx, grant, orgID, "role.unassign", roleID, map[string]any{"user_id": userID})
	return nil
}

// ListPermissions returns the platform permission catalogue.
func (s *Service) ListPermissions(ctx context.Context) ([]rbac.Permission, error) {
	return s.rbac.ListPermissions(ctx)
}

func (s *Service) memberScope(ctx context.Context, grant access.Grant, userID int64) (int64, error) {
	orgID, err := grant.Scope.Require()
	if err != nil {
		return 0, err
	}
	ok, err := s.members.IsMember(ctx, orgID, userID)
	if err != nil {
		return 0, err
	}
	if !ok {
		return 0, ErrNotMember
	}
	return orgID, nil
}

func (s *Service) record(ctx context.Context, grant access.Grant, orgID int64, action string, roleID int64, meta map[string]any) {
	if s.audit == nil {
		return
	}
	err := s.audit.Record(ctx, shared.AuditLog{
		ID:             uuid.New(),
		ActorID:        grant.Principal.UserID,
		OrganizationID: &orgID,
		Action:         action,
		Entity:         "role",
		EntityID:       strconv.FormatInt(roleID, 10),
		Meta:           meta,
	})
	if err != nil {
		s.logger.Warn("roles audit", slog.String("action", action), slog.Any("error", err))
	}
}
