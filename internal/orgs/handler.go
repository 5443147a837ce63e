package orgs

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"

	"github.com/odyssey-erp/odyssey-access/internal/access"
	"github.com/odyssey-erp/odyssey-access/internal/platform/httpx"
	"github.com/odyssey-erp/odyssey-access/internal/shared"
	"github.com/odyssey-erp/odyssey-access/internal/tenant"
)

type modulesRequest struct {
	EnabledModules []string `json:"enabled_modules" validate:"required,dive,required"`
}

// Handler serves /platform/organizations/{orgID}.
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

// MountRoutes registers platform organization routes. Every route needs the
// admin capability and, on top of it, a super-admin principal.
func (h *Handler) MountRoutes(r chi.Router) {
	superAdmin := access.RequireSuperAdmin()
	r.With(h.access.Require(shared.ModuleAdmin, shared.ActionRead, superAdmin)).Get("/", h.getOrganization)
	r.Group(func(r chi.Router) {
		r.Use(h.access.Require(shared.ModuleAdmin, shared.ActionManage, superAdmin, access.RequireTenant()))
		r.Put("/modules", h.setModules)
		r.Post("/provision", h.provision)
	})
}

func (h *Handler) getOrganization(w http.ResponseWriter, r *http.Request) {
	grant, _ := access.GrantFromContext(r.Context())
	org, err := h.service.Organization(r.Context(), grant)
	if err != nil {
		h.respondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, org)
}

func (h *Handler) setModules(w http.ResponseWriter, r *http.Request) {
	var req modulesRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Bad Request", "invalid JSON body")
		return
	}
	if err := h.validator.Struct(req); err != nil {
		httpx.RespondValidation(w, err)
		return
	}
	grant, _ := access.GrantFromContext(r.Context())
	org, err := h.service.SetEnabledModules(r.Context(), grant, req.EnabledModules)
	if err != nil {
		h.respondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, org)
}

func (h *Handler) provision(w http.ResponseWriter, r *http.Request) {
	grant, _ := access.GrantFromContext(r.Context())
	if err := h.service.Provision(r.Context(), grant); err != nil {
		h.respondError(w, err)
		return
	}
	httpx.NoContent(w)
}

func (h *Handler) respondError(w http.ResponseWriter, err error) {
	switch {
	case access.IsDenied(err):
		httpx.RespondAccessError(w, err)
	case errors.Is(err, tenant.ErrNotFound):
		httpx.NotFound(w)
	case errors.Is(err, ErrUnknownModule):
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
	default:
		h.logger.Error("orgs handler", slog.Any("error", err))
		httpx.RespondError(w, err)
	}
}
