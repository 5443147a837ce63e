// Package orgs administers tenants at platform level: module licensing and
// provisioning of default roles.
package orgs

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"

	"github.com/google/uuid"

	"github.com/odyssey-erp/odyssey-access/internal/access"
	"github.com/odyssey-erp/odyssey-access/internal/shared"
	"github.com/odyssey-erp/odyssey-access/internal/tenant"
)

// ErrUnknownModule indicates a module name outside the vocabulary.
var ErrUnknownModule = errors.New("orgs: unknown module")

// Provisioner seeds default roles for an organization.
type Provisioner interface {
	ProvisionTenant(ctx context.Context, organizationID int64) error
}

// Service handles platform tenant administration.
type Service struct {
	store       tenant.Store
	provisioner Provisioner
	audit       shared.AuditRecorder
	logger      *slog.Logger
}

// NewService builds Service instance. audit may be nil.
func NewService(store tenant.Store, provisioner Provisioner, audit shared.AuditRecorder, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{store: store, provisioner: provisioner, audit: audit, logger: logger}
}

// Organization returns the addressed organization.
func (s *Service) Organization(ctx context.Context, grant access.Grant) (tenant.Organization, error) {
	orgID, err := grant.Scope.Require()
	if err != nil {
		return tenant.Organization{}, err
	}
	return s.store.GetOrganization(ctx, orgID)
}

// SetEnabledModules replaces the licensed modules of the addressed organization.
func (s *Service) SetEnabledModules(ctx context.Context, grant access.Grant, modules []string) (tenant.Organization, error) {
	orgID, err := grant.Scope.Require()
	if err != nil {
		return tenant.Organization{}, err
	}
	known := make(map[string]struct{}, len(shared.Modules()))
	for _, m := range shared.Modules() {
		known[m] = struct{}{}
	}
	canonical := tenant.CanonicalModules(modules)
	for _, m := range canonical {
		if _, ok := known[m]; !ok {
			return tenant.Organization{}, fmt.Errorf("%w: %q", ErrUnknownModule, m)
		}
	}
	if err := s.store.SetEnabledModules(ctx, orgID, canonical); err != nil {
		return tenant.Organization{}, err
	}
	s.record(ctx, grant, orgID, "organization.modules", map[string]any{"enabled_modules": canonical})
	return s.store.GetOrganization(ctx, orgID)
}

// Provision seeds the default roles of the addressed organization.
func (s *Service) Provision(ctx context.Context, grant access.Grant) error {
	orgID, err := grant.Scope.Require()
	if err != nil {
		return err
	}
	if _, err := s.store.GetOrganization(ctx, orgID); err != nil {
		return err
	}
	if err := s.provisioner.ProvisionTenant(ctx, orgID); err != nil {
		return err
	}
	s.record(ctx, grant, orgID, "organization.provision", nil)
	return nil
}

func (s *Service) record(ctx context.Context, grant access.Grant, orgID int64, action string, meta map[string]any) {
	if s.audit == nil {
		return
	}
	err := s.audit.Record(ctx, shared.AuditLog{
		ID:             uuid.New(),
		ActorID:        grant.Principal.UserID,
		OrganizationID: &orgID,
		Action:         action,
		Entity:         "organization",
		EntityID:       strconv.FormatInt(orgID, 10),
		Meta:           meta,
	})
	if err != nil {
		s.logger.Warn("orgs audit", slog.String("action", action), slog.Any("error", err))
	}
}
