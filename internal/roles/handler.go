package roles

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"

	"github.com/odyssey-erp/odyssey-access/internal/access"
	"github.com/odyssey-erp/odyssey-access/internal/platform/httpx"
	"github.com/odyssey-erp/odyssey-access/internal/rbac"
	"github.com/odyssey-erp/odyssey-access/internal/shared"
)

// Handler manages role management endpoints.
type Handler struct {
	logger    *slog.Logger
	service   *Service
	access    access.Middleware
	validator *validator.Validate
}

// NewHandler builds Handler instance.
func NewHandler(logger *slog.Logger, service *Service, guard access.Middleware) *Handler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Handler{logger: logger, service: service, access: guard, validator: validator.New()}
}

// MountRoutes registers role routes under /orgs/{orgID}/roles.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Group(func(r chi.Router) {
		r.Use(h.access.Require(shared.ModuleAdmin, shared.ActionRead))
		r.Get("/", h.listRoles)
		r.Get("/{roleID}", h.getRole)
	})
	r.With(h.access.Require(shared.ModuleAdmin, shared.ActionCreate)).Post("/", h.createRole)
	r.Group(func(r chi.Router) {
		r.Use(h.access.Require(shared.ModuleAdmin, shared.ActionUpdate))
		r.Put("/{roleID}/permissions", h.setPermissions)
		r.Post("/{roleID}/disable", h.setActive(false))
		r.Post("/{roleID}/enable", h.setActive(true))
		r.Put("/{roleID}/users/{userID}", h.assign)
	})
	r.With(h.access.Require(shared.ModuleAdmin, shared.ActionDelete)).Delete("/{roleID}/users/{userID}", h.unassign)
}

func (h *Handler) listRoles(w http.ResponseWriter, r *http.Request) {
	grant, _ := access.GrantFromContext(r.Context())
	roles, err := h.service.ListRoles(r.Context(), grant)
	if err != nil {
		h.respondError(w, err)
		return
	}
	if roles == nil {
		roles = []rbac.Role{}
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"roles": roles})
}

func (h *Handler) getRole(w http.ResponseWriter, r *http.Request) {
	roleID, ok := idParam(r, "roleID")
	if !ok {
		httpx.NotFound(w)
		return
	}
	grant, _ := access.GrantFromContext(r.Context())
	detail, err := h.service.GetRole(r.Context(), grant, roleID)
	if err != nil {
		h.respondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, detail)
}

func (h *Handler) createRole(w http.ResponseWriter, r *http.Request) {
	var req CreateRoleRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Bad Request", "invalid JSON body")
		return
	}
	if err := h.validator.Struct(req); err != nil {
		httpx.RespondValidation(w, err)
		return
	}
	grant, _ := access.GrantFromContext(r.Context())
	role, err := h.service.CreateRole(r.Context(), grant, req)
	if err != nil {
		h.respondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusCreated, role)
}

func (h *Handler) setPermissions(w http.ResponseWriter, r *http.Request) {
	roleID, ok := idParam(r, "roleID")
	if !ok {
		httpx.NotFound(w)
		return
	}
	var req SetPermissionsRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Bad Request", "invalid JSON body")
		return
	}
	if err := h.validator.Struct(req); err != nil {
		httpx.RespondValidation(w, err)
		return
	}
	grant, _ := access.GrantFromContext(r.Context())
	if err := h.service.SetPermissions(r.Context(), grant, roleID, req.Permissions); err != nil {
		h.respondError(w, err)
		return
	}
	httpx.NoContent(w)
}

func (h *Handler) setActive(active bool) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		roleID, ok := idParam(r, "roleID")
		if !ok {
			httpx.NotFound(w)
			return
		}
		grant, _ := access.GrantFromContext(r.Context())
		if err := h.service.SetActive(r.Context(), grant, roleID, active); err != nil {
			h.respondError(w, err)
			return
		}
		httpx.NoContent(w)
	}
}

func (h *Handler) assign(w http.ResponseWriter, r *http.Request) {
	h.changeAssignment(w, r, h.service.Assign)
}

func (h *Handler) unassign(w http.ResponseWriter, r *http.Request) {
	h.changeAssignment(w, r, h.service.Unassign)
}

func (h *Handler) changeAssignment(w http.ResponseWriter, r *http.Request, apply func(ctx context.Context, grant access.Grant, roleID, userID int64) error) {
	roleID, okRole := idParam(r, "roleID")
	userID, okUser := idParam(r, "userID")
	if !okRole || !okUser {
		httpx.NotFound(w)
		return
	}
	grant, _ := access.GrantFromContext(r.Context())
	if err := apply(r.Context(), grant, roleID, userID); err != nil {
		h.respondError(w, err)
		return
	}
	httpx.NoContent(w)
}

// respondError maps role administration failures. Roles and users of
// other tenants surface as not found.
func (h *Handler) respondError(w http.ResponseWriter, err error) {
	switch {
	case access.IsDenied(err):
		httpx.RespondAccessError(w, err)
	case errors.Is(err, rbac.ErrNotFound), errors.Is(err, ErrNotMember), errors.Is(err, shared.ErrNotFound):
		httpx.NotFound(w)
	case errors.Is(err, rbac.ErrDuplicateRole):
		httpx.Problem(w, http.StatusConflict, "Duplicate", err.Error())
	case errors.Is(err, rbac.ErrUnknownPermission):
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
	default:
		h.logger.Error("roles handler", slog.Any("error", err))
		httpx.RespondError(w, err)
	}
}

func idParam(r *http.Request, name string) (int64, bool) {
	id, err := strconv.ParseInt(chi.URLParam(r, name), 10, 64)
	if err != nil || id <= 0 {
		return 0, false
	}
	return id, true
}
