// Package access is the single enforcement point every business handler
// goes through: principal, tenant context, then capability.
package access

import (
	"context"
	"log/slog"

	"github.com/google/uuid"

	"github.com/odyssey-erp/odyssey-access/internal/rbac"
	"github.com/odyssey-erp/odyssey-access/internal/shared"
	"github.com/odyssey-erp/odyssey-access/internal/tenant"
)

// PrincipalResolver verifies bearer credentials.
type PrincipalResolver interface {
	Verify(token string) (shared.Principal, error)
}

// PermissionSource computes effective permission sets.
type PermissionSource interface {
	EffectivePermissions(ctx context.Context, p shared.Principal, organizationID int64) (rbac.PermissionSet, error)
}

// DecisionObserver receives the outcome of every gate evaluation.
type DecisionObserver interface {
	ObserveDecision(module, action, outcome string)
}

// Request is what a handler asks the gate to verify.
type Request struct {
	Credential            string
	RequestedOrganization *int64
	Module                string
	Action                string
}

// Permission returns the canonical permission the request needs.
func (r Request) Permission() string {
	return shared.PermissionName(r.Module, r.Action)
}

// Grant is the verified outcome handed to business logic. Handlers must
// scope every query by Scope rather than re-deriving the tenant.
type Grant struct {
	Principal shared.Principal
	Scope     tenant.Scope
}

// OrganizationID returns the tenant the request operates on.
func (g Grant) OrganizationID() (int64, bool) {
	return g.Scope.OrganizationID()
}

// GateConfig groups Gate dependencies. Audit and Observer are optional.
type GateConfig struct {
	Principals  PrincipalResolver
	Permissions PermissionSource
	Logger      *slog.Logger
	Audit       shared.AuditRecorder
	Observer    DecisionObserver
}

// Gate composes principal resolution, tenant resolution and permission
// evaluation.
type Gate struct {
	principals  PrincipalResolver
	permissions PermissionSource
	logger      *slog.Logger
	audit       shared.AuditRecorder
	observer    DecisionObserver
}

// NewGate constructs a Gate.
func NewGate(cfg GateConfig) *Gate {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Gate{
		principals:  cfg.Principals,
		permissions: cfg.Permissions,
		logger:      logger,
		audit:       cfg.Audit,
		observer:    cfg.Observer,
	}
}

// Authenticate resolves the principal and tenant without evaluating any
// capability.
func (g *Gate) Authenticate(ctx context.Context, credential string, requested *int64) (Grant, error) {
	p, err := g.principals.Verify(credential)
	if err != nil {
		if _, ok := shared.AsAccessError(err); !ok {
			err = shared.Deny(shared.DenialUnauthenticated, err)
		}
		g.logger.Debug("access unauthenticated", slog.Any("error", err))
		return Grant{}, err
	}
	scope, err := tenant.Resolve(p, requested)
	if err != nil {
		g.logTenantDenial(p, requested, err)
		return Grant{}, err
	}
	return Grant{Principal: p, Scope: scope}, nil
}

// RequireAccess verifies that the request may perform module.action and
// returns the principal with its effective tenant. Guards run last, in
// order, for operations needing an extra check.
func (g *Gate) RequireAccess(ctx context.Context, req Request, guards ...Guard) (Grant, error) {
	grant, err := g.Authenticate(ctx, req.Credential, req.RequestedOrganization)
	if err != nil {
		g.observe(req, err)
		return Grant{}, err
	}
	permission := req.Permission()

	if grant.Principal.IsSuperAdmin {
		g.logger.Info("super admin access",
			slog.Int64("user_id", grant.Principal.UserID),
			slog.String("scope", grant.Scope.String()),
			slog.String("permission", permission))
		g.recordSuperAdmin(ctx, grant, permission)
	} else {
		orgID, _ := grant.OrganizationID()
		perms, err := g.permissions.EffectivePermissions(ctx, grant.Principal, orgID)
		if err != nil {
			if _, ok := shared.AsAccessError(err); !ok {
				err = shared.Deny(shared.DenialLookupFailure, err)
			}
			g.logger.Error("access permission lookup failed",
				slog.Int64("user_id", grant.Principal.UserID),
				slog.Int64("organization_id", orgID),
				slog.Any("error", err))
			g.observe(req, err)
			return Grant{}, err
		}
		if !rbac.Check(perms, req.Module, req.Action) {
			g.logger.Info("access permission denied",
				slog.Int64("user_id", grant.Principal.UserID),
				slog.Int64("organization_id", orgID),
				slog.String("permission", permission))
			err := shared.DenyPermission(permission)
			g.observe(req, err)
			return Grant{}, err
		}
	}

	for _, guard := range guards {
		if err := guard(ctx, grant); err != nil {
			g.logger.Warn("access guard rejected",
				slog.Int64("user_id", grant.Principal.UserID),
				slog.String("scope", grant.Scope.String()),
				slog.String("permission", permission),
				slog.Any("error", err))
			g.observe(req, err)
			return Grant{}, err
		}
	}
	g.observe(req, nil)
	return grant, nil
}

func (g *Gate) logTenantDenial(p shared.Principal, requested *int64, err error) {
	attrs := []any{slog.Int64("user_id", p.UserID), slog.Any("error", err)}
	if requested != nil {
		attrs = append(attrs, slog.Int64("requested_organization_id", *requested))
	}
	if own, ok := p.Organization(); ok {
		attrs = append(attrs, slog.Int64("organization_id", own))
	}
	accessErr, _ := shared.AsAccessError(err)
	if accessErr != nil && accessErr.Kind == shared.DenialCrossTenant {
		g.logger.Warn("access cross tenant attempt", attrs...)
		return
	}
	g.logger.Error("access tenant context missing", attrs...)
}

func (g *Gate) recordSuperAdmin(ctx context.Context, grant Grant, permission string) {
	if g.audit == nil {
		return
	}
	var orgID *int64
	if id, ok := grant.OrganizationID(); ok {
		orgID = &id
	}
	err := g.audit.Record(ctx, shared.AuditLog{
		ID:             uuid.New(),
		ActorID:        grant.Principal.UserID,
		OrganizationID: orgID,
		Action:         "access.super_admin",
		Entity:         "permission",
		EntityID:       permission,
		Meta:           map[string]any{"scope": grant.Scope.String()},
	})
	if err != nil {
		g.logger.Warn("super admin audit", slog.Int64("user_id", grant.Principal.UserID), slog.Any("error", err))
	}
}

func (g *Gate) observe(req Request, err error) {
	if g.observer == nil {
		return
	}
	outcome := "allowed"
	if err != nil {
		outcome = "denied"
		if accessErr, ok := shared.AsAccessError(err); ok {
			outcome = accessErr.Kind.String()
		}
	}
	g.observer.ObserveDecision(shared.Fold(req.Module), shared.Fold(req.Action), outcome)
}
