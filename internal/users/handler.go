package users

import (
	"errors"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/odyssey-erp/odyssey-access/internal/access"
	"github.com/odyssey-erp/odyssey-access/internal/platform/httpx"
	"github.com/odyssey-erp/odyssey-access/internal/shared"
)

// Handler serves tenant scoped user directory endpoints.
type Handler struct {
	logger  *slog.Logger
	service *Service
	access  access.Middleware
}

// NewHandler builds Handler instance.
func NewHandler(logger *slog.Logger, service *Service, guard access.Middleware) *Handler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Handler{logger: logger, service: service, access: guard}
}

// MountRoutes registers user routes under /orgs/{orgID}/users.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Group(func(r chi.Router) {
		r.Use(h.access.Require(shared.ModuleHR, shared.ActionRead))
		r.Get("/", h.listUsers)
		r.Get("/{userID}", h.getUser)
	})
}

func (h *Handler) listUsers(w http.ResponseWriter, r *http.Request) {
	grant, _ := access.GrantFromContext(r.Context())
	page, err := queryInt(r, "page")
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Bad Request", "invalid page")
		return
	}
	perPage, err := queryInt(r, "per_page")
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Bad Request", "invalid per_page")
		return
	}
	users, paging, err := h.service.ListUsers(r.Context(), grant, page, perPage)
	if err != nil {
		h.respondError(w, err)
		return
	}
	if users == nil {
		users = []User{}
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"users": users, "pagination": paging})
}

func queryInt(r *http.Request, name string) (int, error) {
	raw := r.URL.Query().Get(name)
	if raw == "" {
		return 0, nil
	}
	v, err := strconv.Atoi(raw)
	if err != nil || v < 1 {
		return 0, errors.New("invalid " + name)
	}
	return v, nil
}

func (h *Handler) getUser(w http.ResponseWriter, r *http.Request) {
	grant, _ := access.GrantFromContext(r.Context())
	id, err := strconv.ParseInt(chi.URLParam(r, "userID"), 10, 64)
	if err != nil || id <= 0 {
		httpx.NotFound(w)
		return
	}
	user, err := h.service.GetUser(r.Context(), grant, id)
	if err != nil {
		h.respondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, user)
}

func (h *Handler) respondError(w http.ResponseWriter, err error) {
	if !access.IsDenied(err) && !errors.Is(err, shared.ErrNotFound) {
		h.logger.Error("users handler", slog.Any("error", err))
	}
	httpx.RespondError(w, err)
}
