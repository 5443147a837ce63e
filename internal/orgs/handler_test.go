package orgs

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/odyssey-erp/odyssey-access/internal/access"
	"github.com/odyssey-erp/odyssey-access/internal/auth"
	"github.com/odyssey-erp/odyssey-access/internal/rbac"
	"github.com/odyssey-erp/odyssey-access/internal/shared"
	"github.com/odyssey-erp/odyssey-access/internal/tenant"
)

type memoryStore struct {
	orgs map[int64]tenant.Organization
}

func (m *memoryStore) GetOrganization(ctx context.Context, id int64) (tenant.Organization, error) {
	org, ok := m.orgs[id]
	if !ok {
		return tenant.Organization{}, tenant.ErrNotFound
	}
	return org, nil
}

func (m *memoryStore) SetEnabledModules(ctx context.Context, id int64, modules []string) error {
	org, ok := m.orgs[id]
	if !ok {
		return tenant.ErrNotFound
	}
	org.EnabledModules = modules
	m.orgs[id] = org
	return nil
}

type recordingProvisioner struct {
	provisioned []int64
}

func (p *recordingProvisioner) ProvisionTenant(ctx context.Context, organizationID int64) error {
	p.provisioned = append(p.provisioned, organizationID)
	return nil
}

type tenantAdminPermissions struct{}

func (tenantAdminPermissions) EffectivePermissions(ctx context.Context, p shared.Principal, organizationID int64) (rbac.PermissionSet, error) {
	return rbac.NewPermissionSet("admin.read", "admin.manage"), nil
}

type orgsFixture struct {
	router      http.Handler
	store       *memoryStore
	provisioner *recordingProvisioner
	issuer      *auth.TokenIssuer
}

func newOrgsFixture(t *testing.T) *orgsFixture {
	t.Helper()
	f := &orgsFixture{
		store:       &memoryStore{orgs: map[int64]tenant.Organization{9: {ID: 9, Name: "Nine", EnabledModules: []string{"crm"}}}},
		provisioner: &recordingProvisioner{},
		issuer:      auth.NewTokenIssuer("orgs-secret", "", time.Hour),
	}
	gate := access.NewGate(access.GateConfig{
		Principals:  auth.NewTokenVerifier("orgs-secret", ""),
		Permissions: tenantAdminPermissions{},
	})
	h := NewHandler(nil, NewService(f.store, f.provisioner, nil, nil), access.Middleware{Gate: gate})
	r := chi.NewRouter()
	r.Route("/platform/organizations/{orgID}", h.MountRoutes)
	f.router = r
	return f
}

func (f *orgsFixture) do(t *testing.T, p shared.Principal, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	token, _, err := f.issuer.Issue(p)
	require.NoError(t, err)
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Authorization", "Bearer "+token)
	rr := httptest.NewRecorder()
	f.router.ServeHTTP(rr, req)
	return rr
}

var superAdmin = shared.Principal{UserID: 1, IsSuperAdmin: true}

func TestSuperAdminSetsEnabledModules(t *testing.T) {
	f := newOrgsFixture(t)

	rr := f.do(t, superAdmin, http.MethodPut, "/platform/organizations/9/modules", modulesRequest{EnabledModules: []string{"Inventory", " finance ", "inventory"}})
	require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())
	var org tenant.Organization
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &org))
	assert.Equal(t, []string{"finance", "inventory"}, org.EnabledModules)

	rr = f.do(t, superAdmin, http.MethodPut, "/platform/organizations/9/modules", modulesRequest{EnabledModules: []string{"astrology"}})
	assert.Equal(t, http.StatusBadRequest, rr.Code)

	rr = f.do(t, superAdmin, http.MethodPut, "/platform/organizations/404/modules", modulesRequest{EnabledModules: []string{"crm"}})
	assert.Equal(t, http.StatusNotFound, rr.Code)
}

func TestTenantAdminCannotLicenseOwnOrganization(t *testing.T) {
	f := newOrgsFixture(t)
	tenantAdmin := shared.Principal{UserID: 5, OrganizationID: shared.OrgID(9), DeclaredRole: "org_admin"}

	rr := f.do(t, tenantAdmin, http.MethodPut, "/platform/organizations/9/modules", modulesRequest{EnabledModules: []string{"crm", "finance"}})
	assert.Equal(t, http.StatusForbidden, rr.Code)
	assert.Contains(t, rr.Body.String(), access.PermPlatformSuperAdmin)
	assert.Equal(t, []string{"crm"}, f.store.orgs[9].EnabledModules)

	rr = f.do(t, tenantAdmin, http.MethodGet, "/platform/organizations/9", nil)
	assert.Equal(t, http.StatusForbidden, rr.Code)
}

func TestProvision(t *testing.T) {
	f := newOrgsFixture(t)

	rr := f.do(t, superAdmin, http.MethodPost, "/platform/organizations/9/provision", nil)
	require.Equal(t, http.StatusNoContent, rr.Code)
	assert.Equal(t, []int64{9}, f.provisioner.provisioned)

	rr = f.do(t, superAdmin, http.MethodPost, "/platform/organizations/10/provision", nil)
	assert.Equal(t, http.StatusNotFound, rr.Code)
	assert.Equal(t, []int64{9}, f.provisioner.provisioned)
}
