package audithttp

import (
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/httprate"

	"github.com/odyssey-erp/odyssey-access/internal/access"
	"github.com/odyssey-erp/odyssey-access/internal/platform/httpx"
	"github.com/odyssey-erp/odyssey-access/internal/shared"
)

const rateLimit = 10
const rateWindow = time.Minute

// MountRoutes mendaftarkan endpoint audit timeline dan ekspor CSV.
func (h *Handler) MountRoutes(r chi.Router) {
	if h == nil {
		return
	}
	limiter := httprate.Limit(rateLimit, rateWindow,
		httprate.WithKeyFuncs(rateLimitKey),
		httprate.WithLimitHandler(func(w http.ResponseWriter, r *http.Request) {
			httpx.Problem(w, http.StatusTooManyRequests, "Too Many Requests", "export limit reached")
		}),
	)
	read := h.access.Require(shared.ModuleAdmin, shared.ActionRead)
	r.With(read).Get("/", h.handleTimeline)
	r.With(read, limiter).Get("/export.csv", h.handleExport)
}

// rateLimitKey buckets exports per caller. The gate has already run, so the
// grant is always present; the IP fallback only covers misconfigured routes.
func rateLimitKey(r *http.Request) (string, error) {
	if grant, ok := access.GrantFromContext(r.Context()); ok {
		return "user:" + strconv.FormatInt(grant.Principal.UserID, 10), nil
	}
	key, err := httprate.KeyByIP(r)
	if err != nil {
		return "", err
	}
	return "ip:" + key, nil
}
