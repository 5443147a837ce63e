// Package me serves self-service access diagnostics.
package me

import (
	"context"
	"errors"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/odyssey-erp/odyssey-access/internal/access"
	"github.com/odyssey-erp/odyssey-access/internal/platform/httpx"
	"github.com/odyssey-erp/odyssey-access/internal/rbac"
	"github.com/odyssey-erp/odyssey-access/internal/shared"
	"github.com/odyssey-erp/odyssey-access/internal/tenant"
	"github.com/odyssey-erp/odyssey-access/internal/vocab"
)

// Permissions resolves the caller's roles and grants.
type Permissions interface {
	EffectivePermissions(ctx context.Context, p shared.Principal, organizationID int64) (rbac.PermissionSet, error)
	ResolvedRoles(ctx context.Context, p shared.Principal, organizationID int64) ([]rbac.Role, error)
}

// Organizations reads tenant licensing.
type Organizations interface {
	GetOrganization(ctx context.Context, id int64) (tenant.Organization, error)
}

// AccessReport describes what the caller may do.
type AccessReport struct {
	UserID            int64    `json:"user_id"`
	OrganizationID    *int64   `json:"organization_id"`
	IsSuperAdmin      bool     `json:"is_super_admin"`
	DeclaredRole      string   `json:"declared_role,omitempty"`
	Roles             []string `json:"roles"`
	Permissions       []string `json:"permissions"`
	ClientPermissions []string `json:"client_permissions"`
	Modules           []string `json:"modules"`
	EnabledModules    []string `json:"enabled_modules"`
}

// Handler serves /me endpoints.
type Handler struct {
	logger        *slog.Logger
	permissions   Permissions
	organizations Organizations
	access        access.Middleware
}

// NewHandler builds Handler instance.
func NewHandler(logger *slog.Logger, permissions Permissions, organizations Organizations, guard access.Middleware) *Handler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Handler{logger: logger, permissions: permissions, organizations: organizations, access: guard}
}

// MountRoutes registers /me routes. They require authentication only.
func (h *Handler) MountRoutes(r chi.Router) {
	r.With(h.access.Authenticated()).Get("/access", h.accessReport)
}

func (h *Handler) accessReport(w http.ResponseWriter, r *http.Request) {
	grant, _ := access.GrantFromContext(r.Context())
	report, err := h.Report(r.Context(), grant)
	if err != nil {
		switch {
		case access.IsDenied(err):
			httpx.RespondAccessError(w, err)
		case errors.Is(err, tenant.ErrNotFound):
			httpx.NotFound(w)
		default:
			h.logger.Error("me access report", slog.Any("error", err))
			httpx.RespondError(w, err)
		}
		return
	}
	httpx.JSON(w, http.StatusOK, report)
}

// Report builds the access report of grant.
func (h *Handler) Report(ctx context.Context, grant access.Grant) (AccessReport, error) {
	p := grant.Principal
	report := AccessReport{
		UserID:       p.UserID,
		IsSuperAdmin: p.IsSuperAdmin,
		DeclaredRole: p.DeclaredRole,
		Roles:        []string{},
	}
	orgID, hasOrg := grant.OrganizationID()
	if hasOrg {
		report.OrganizationID = &orgID
	}

	var raw []string
	var opts []vocab.Option
	switch {
	case p.IsSuperAdmin:
		raw = shared.CatalogueScopes()
	case hasOrg:
		set, err := h.permissions.EffectivePermissions(ctx, p, orgID)
		if err != nil {
			return AccessReport{}, err
		}
		raw = set.Names()
		roles, err := h.permissions.ResolvedRoles(ctx, p, orgID)
		if err != nil {
			return AccessReport{}, err
		}
		for _, role := range roles {
			report.Roles = append(report.Roles, role.Name)
		}
	}
	if hasOrg {
		org, err := h.organizations.GetOrganization(ctx, orgID)
		if err != nil {
			return AccessReport{}, err
		}
		report.EnabledModules = org.EnabledModules
		opts = append(opts, vocab.WithEnabledModules(org.EnabledModules))
	} else {
		report.EnabledModules = shared.Modules()
	}
	if report.EnabledModules == nil {
		report.EnabledModules = []string{}
	}

	view := vocab.NewView(raw, opts...)
	report.Permissions = rbac.NewPermissionSet(raw...).Names()
	report.ClientPermissions = view.Permissions()
	report.Modules = view.Modules()
	if report.Modules == nil {
		report.Modules = []string{}
	}
	return report, nil
}
