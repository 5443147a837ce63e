package e2e

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/odyssey-erp/odyssey-access/internal/access"
	"github.com/odyssey-erp/odyssey-access/internal/app"
	"github.com/odyssey-erp/odyssey-access/internal/auth"
	"github.com/odyssey-erp/odyssey-access/internal/me"
	"github.com/odyssey-erp/odyssey-access/internal/observability"
	"github.com/odyssey-erp/odyssey-access/internal/rbac"
	"github.com/odyssey-erp/odyssey-access/internal/roles"
	"github.com/odyssey-erp/odyssey-access/internal/shared"
	_ "github.com/odyssey-erp/odyssey-access/testing"
)

const jwtSecret = "e2e-secret-0123456789"

var (
	superAdmin = shared.Principal{UserID: 1, IsSuperAdmin: true}
	acmeAdmin  = shared.Principal{UserID: 3, OrganizationID: shared.OrgID(7), DeclaredRole: rbac.RoleOrgAdmin}
	acmeClerk  = shared.Principal{UserID: 5, OrganizationID: shared.OrgID(7)}
	globexBoss = shared.Principal{UserID: 9, OrganizationID: shared.OrgID(8), DeclaredRole: rbac.RoleOrgAdmin}
)

type stack struct {
	router  http.Handler
	issuer  *auth.TokenIssuer
	audit   *auditTrail
	metrics *observability.Metrics
	redis   *miniredis.Miniredis
}

func newStack(t *testing.T) *stack {
	t.Helper()
	ctx := context.Background()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	cache := rbac.NewPermissionCache(client, time.Minute, 128, logger)
	rbacService := rbac.NewService(newMemoryRBAC(), cache)
	_, err := rbacService.SyncCatalogue(ctx)
	require.NoError(t, err)
	require.NoError(t, rbacService.ProvisionTenant(ctx, 7))
	require.NoError(t, rbacService.ProvisionTenant(ctx, 8))

	orgs := memoryOrganizations{
		7: {ID: 7, Name: "Acme", EnabledModules: []string{shared.ModuleVoucher, shared.ModuleAdmin}},
		8: {ID: 8, Name: "Globex", EnabledModules: shared.Modules()},
	}
	trail := &auditTrail{}
	metrics := observability.NewMetrics()

	gate := access.NewGate(access.GateConfig{
		Principals:  auth.NewTokenVerifier(jwtSecret, "odyssey"),
		Permissions: rbacService,
		Logger:      logger,
		Audit:       trail,
		Observer:    metrics,
	})
	guard := access.Middleware{Gate: gate}
	rolesService := roles.NewService(rbacService, members{3: 7, 5: 7, 9: 8}, trail, logger)

	router := app.NewRouter(app.RouterParams{
		Logger:             logger,
		Config:             &app.Config{AppEnv: "test", RateLimitPerMinute: 10000},
		Access:             guard,
		MeHandler:          me.NewHandler(logger, rbacService, orgs, guard),
		RolesHandler:       roles.NewHandler(logger, rolesService, guard),
		PermissionsHandler: roles.NewPermissionsHandler(logger, rolesService, guard),
		Metrics:            metrics,
	})
	return &stack{
		router:  router,
		issuer:  auth.NewTokenIssuer(jwtSecret, "odyssey", time.Hour),
		audit:   trail,
		metrics: metrics,
		redis:   mr,
	}
}

func (s *stack) do(t *testing.T, p shared.Principal, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var payload io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		require.NoError(t, err)
		payload = bytes.NewReader(raw)
	}
	token, _, err := s.issuer.Issue(p)
	require.NoError(t, err)
	req := httptest.NewRequest(method, path, payload)
	req.Header.Set("Authorization", "Bearer "+token)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	rr := httptest.NewRecorder()
	s.router.ServeHTTP(rr, req)
	return rr
}

func (s *stack) report(t *testing.T, p shared.Principal) me.AccessReport {
	t.Helper()
	rr := s.do(t, p, http.MethodGet, "/me/access", nil)
	require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())
	var report me.AccessReport
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &report))
	return report
}

func TestRoleGrantsTakeEffectImmediately(t *testing.T) {
	s := newStack(t)

	before := s.report(t, acmeClerk)
	assert.Empty(t, before.Permissions)

	rr := s.do(t, acmeAdmin, http.MethodPost, "/orgs/7/roles", map[string]string{"name": "Voucher Clerk"})
	require.Equal(t, http.StatusCreated, rr.Code, rr.Body.String())
	var role rbac.Role
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &role))
	rolePath := fmt.Sprintf("/orgs/7/roles/%d", role.ID)

	rr = s.do(t, acmeAdmin, http.MethodPut, rolePath+"/permissions", map[string][]string{"permissions": {"voucher.read", "voucher.create"}})
	require.Equal(t, http.StatusNoContent, rr.Code, rr.Body.String())
	rr = s.do(t, acmeAdmin, http.MethodPut, rolePath+"/users/5", nil)
	require.Equal(t, http.StatusNoContent, rr.Code, rr.Body.String())

	granted := s.report(t, acmeClerk)
	assert.Contains(t, granted.Permissions, "voucher.read")
	assert.Contains(t, granted.ClientPermissions, "voucher.view")
	assert.Contains(t, granted.Roles, "voucher clerk")
	assert.Equal(t, []string{shared.ModuleVoucher}, granted.Modules)

	rr = s.do(t, acmeAdmin, http.MethodDelete, rolePath+"/users/5", nil)
	require.Equal(t, http.StatusNoContent, rr.Code, rr.Body.String())

	revoked := s.report(t, acmeClerk)
	assert.NotContains(t, revoked.Permissions, "voucher.read")

	assert.Equal(t, []string{"role.create", "role.permissions", "role.assign", "role.unassign"}, s.audit.actions())
}

func TestTenantsCannotReachEachOther(t *testing.T) {
	s := newStack(t)

	rr := s.do(t, acmeAdmin, http.MethodPost, "/orgs/7/roles", map[string]string{"name": "auditor"})
	require.Equal(t, http.StatusCreated, rr.Code)
	var role rbac.Role
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &role))

	crossPath := s.do(t, globexBoss, http.MethodGet, fmt.Sprintf("/orgs/7/roles/%d", role.ID), nil)
	foreignID := s.do(t, globexBoss, http.MethodGet, fmt.Sprintf("/orgs/8/roles/%d", role.ID), nil)
	missing := s.do(t, globexBoss, http.MethodGet, "/orgs/8/roles/999999", nil)
	assert.Equal(t, http.StatusNotFound, crossPath.Code)
	assert.Equal(t, http.StatusNotFound, foreignID.Code)
	assert.Equal(t, missing.Body.String(), crossPath.Body.String())
	assert.Equal(t, missing.Body.String(), foreignID.Body.String())

	rr = s.do(t, globexBoss, http.MethodPut, fmt.Sprintf("/orgs/8/roles/%d/users/5", role.ID), nil)
	assert.Equal(t, http.StatusNotFound, rr.Code)

	rr = s.do(t, acmeClerk, http.MethodPost, "/orgs/7/roles", map[string]string{"name": "sneaky"})
	assert.Equal(t, http.StatusForbidden, rr.Code)
	assert.Contains(t, rr.Body.String(), "admin.create")
}

func TestSuperAdminBypassIsAudited(t *testing.T) {
	s := newStack(t)

	rr := s.do(t, superAdmin, http.MethodGet, "/orgs/7/roles", nil)
	require.Equal(t, http.StatusOK, rr.Code)

	var listed struct {
		Roles []rbac.Role `json:"roles"`
	}
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &listed))
	require.NotEmpty(t, listed.Roles)
	for _, role := range listed.Roles {
		assert.Equal(t, int64(7), role.OrganizationID)
	}

	require.Equal(t, []string{"access.super_admin"}, s.audit.actions())
	entry := s.audit.entries[0]
	require.NotNil(t, entry.OrganizationID)
	assert.Equal(t, int64(7), *entry.OrganizationID)
	assert.Equal(t, "admin.read", entry.EntityID)

	report := s.report(t, superAdmin)
	assert.True(t, report.IsSuperAdmin)
	assert.Nil(t, report.OrganizationID)
	assert.ElementsMatch(t, shared.Modules(), report.EnabledModules)
}

func TestRedisOutageFallsBackToStore(t *testing.T) {
	s := newStack(t)
	require.Equal(t, http.StatusOK, s.do(t, acmeAdmin, http.MethodGet, "/orgs/7/roles", nil).Code)

	// Redis errors fall through to the store, which still answers.
	s.redis.Close()
	rr := s.do(t, acmeAdmin, http.MethodGet, "/orgs/7/roles", nil)
	assert.Equal(t, http.StatusOK, rr.Code)

	rr = s.do(t, acmeClerk, http.MethodGet, "/orgs/7/roles", nil)
	assert.Equal(t, http.StatusForbidden, rr.Code)
}

func TestMissingOrganizationForTenantUser(t *testing.T) {
	s := newStack(t)
	orphan := shared.Principal{UserID: 44, DeclaredRole: rbac.RoleOrgAdmin}

	rr := s.do(t, orphan, http.MethodGet, "/orgs/7/roles", nil)
	assert.Equal(t, http.StatusInternalServerError, rr.Code)
	assert.NotContains(t, rr.Body.String(), "organization")
}
