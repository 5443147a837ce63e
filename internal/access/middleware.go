package access

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/odyssey-erp/odyssey-access/internal/auth"
	"github.com/odyssey-erp/odyssey-access/internal/platform/httpx"
	"github.com/odyssey-erp/odyssey-access/internal/shared"
)

const (
	// OrgURLParam is the chi route parameter carrying a requested tenant.
	OrgURLParam = "orgID"
	// OrgQueryParam is the query fallback for routes without the parameter.
	OrgQueryParam = "organization_id"
)

var errMalformedOrganization = errors.New("access: malformed organization id")

type grantContextKey struct{}

// ContextWithGrant stores the verified grant in context.
func ContextWithGrant(ctx context.Context, grant Grant) context.Context {
	ctx = shared.ContextWithPrincipal(ctx, grant.Principal)
	return context.WithValue(ctx, grantContextKey{}, grant)
}

// GrantFromContext returns the grant stored by the middleware.
func GrantFromContext(ctx context.Context) (Grant, bool) {
	grant, ok := ctx.Value(grantContextKey{}).(Grant)
	return grant, ok
}

// Middleware wires the gate into chi routers. When Idempotency is set,
// mutating requests that passed the gate also honour Idempotency-Key,
// scoped to the caller and the request path.
type Middleware struct {
	Gate        *Gate
	Idempotency httpx.IdempotencyStore
}

// Require guards a route with module.action plus optional guards.
func (m Middleware) Require(module, action string, guards ...Guard) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		if m.Idempotency != nil {
			next = httpx.Idempotent(m.Idempotency, idempotencyScope, m.Gate.logger)(next)
		}
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			credential := auth.BearerToken(r)
			requested, err := RequestedOrganization(r)
			if err != nil {
				m.rejectMalformed(w, r, credential)
				return
			}
			grant, err := m.Gate.RequireAccess(r.Context(), Request{
				Credential:            credential,
				RequestedOrganization: requested,
				Module:                module,
				Action:                action,
			}, guards...)
			if err != nil {
				httpx.RespondAccessError(w, err)
				return
			}
			next.ServeHTTP(w, r.WithContext(ContextWithGrant(r.Context(), grant)))
		})
	}
}

// Authenticated resolves principal and tenant without a capability check.
// It backs self-service endpoints every signed-in user may call.
func (m Middleware) Authenticated(guards ...Guard) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			credential := auth.BearerToken(r)
			requested, err := RequestedOrganization(r)
			if err != nil {
				m.rejectMalformed(w, r, credential)
				return
			}
			grant, err := m.Gate.Authenticate(r.Context(), credential, requested)
			if err == nil {
				for _, guard := range guards {
					if err = guard(r.Context(), grant); err != nil {
						break
					}
				}
			}
			if err != nil {
				httpx.RespondAccessError(w, err)
				return
			}
			next.ServeHTTP(w, r.WithContext(ContextWithGrant(r.Context(), grant)))
		})
	}
}

func idempotencyScope(r *http.Request) string {
	grant, _ := GrantFromContext(r.Context())
	return fmt.Sprintf("user:%d %s %s", grant.Principal.UserID, r.Method, r.URL.Path)
}

// rejectMalformed answers an unparseable tenant id. Authentication still
// takes precedence so anonymous callers always get 401.
func (m Middleware) rejectMalformed(w http.ResponseWriter, r *http.Request, credential string) {
	if _, err := m.Gate.Authenticate(r.Context(), credential, nil); err != nil {
		httpx.RespondAccessError(w, err)
		return
	}
	httpx.NotFound(w)
}

// RequestedOrganization extracts the tenant explicitly addressed by the
// request, if any.
func RequestedOrganization(r *http.Request) (*int64, error) {
	raw := strings.TrimSpace(chi.URLParam(r, OrgURLParam))
	if raw == "" {
		raw = strings.TrimSpace(r.URL.Query().Get(OrgQueryParam))
	}
	if raw == "" {
		return nil, nil
	}
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || id <= 0 {
		return nil, errMalformedOrganization
	}
	return &id, nil
}
