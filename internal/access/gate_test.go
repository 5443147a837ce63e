package access

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/odyssey-erp/odyssey-access/internal/auth"
	"github.com/odyssey-erp/odyssey-access/internal/rbac"
	"github.com/odyssey-erp/odyssey-access/internal/shared"
	"github.com/odyssey-erp/odyssey-access/internal/tenant"
)

const testSecret = "gate-test-secret"

type stubPermissions struct {
	mu    sync.Mutex
	sets  map[int64]rbac.PermissionSet
	err   error
	calls int
}

func (s *stubPermissions) EffectivePermissions(ctx context.Context, p shared.Principal, organizationID int64) (rbac.PermissionSet, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls++
	if s.err != nil {
		return nil, s.err
	}
	if set, ok := s.sets[organizationID]; ok {
		return set, nil
	}
	return rbac.NewPermissionSet(), nil
}

type recordingAudit struct {
	mu      sync.Mutex
	entries []shared.AuditLog
	err     error
}

func (a *recordingAudit) Record(ctx context.Context, entry shared.AuditLog) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.entries = append(a.entries, entry)
	return a.err
}

type recordingObserver struct {
	outcomes []string
}

func (o *recordingObserver) ObserveDecision(module, action, outcome string) {
	o.outcomes = append(o.outcomes, module+"."+action+":"+outcome)
}

type gateFixture struct {
	gate     *Gate
	issuer   *auth.TokenIssuer
	perms    *stubPermissions
	audit    *recordingAudit
	observer *recordingObserver
}

func newGateFixture(t *testing.T) *gateFixture {
	t.Helper()
	f := &gateFixture{
		issuer:   auth.NewTokenIssuer(testSecret, "odyssey", time.Hour),
		perms:    &stubPermissions{sets: map[int64]rbac.PermissionSet{}},
		audit:    &recordingAudit{},
		observer: &recordingObserver{},
	}
	f.gate = NewGate(GateConfig{
		Principals:  auth.NewTokenVerifier(testSecret, "odyssey"),
		Permissions: f.perms,
		Audit:       f.audit,
		Observer:    f.observer,
	})
	return f
}

func (f *gateFixture) token(t *testing.T, p shared.Principal) string {
	t.Helper()
	token, _, err := f.issuer.Issue(p)
	require.NoError(t, err)
	return token
}

func orgAdmin() shared.Principal {
	return shared.Principal{UserID: 42, OrganizationID: shared.OrgID(7), DeclaredRole: "org_admin"}
}

func TestRequireAccessGrantsHeldPermission(t *testing.T) {
	f := newGateFixture(t)
	f.perms.sets[7] = rbac.NewPermissionSet("voucher.read", "voucher.create")

	grant, err := f.gate.RequireAccess(context.Background(), Request{
		Credential: f.token(t, orgAdmin()),
		Module:     "voucher",
		Action:     "create",
	})
	require.NoError(t, err)
	assert.Equal(t, int64(42), grant.Principal.UserID)
	orgID, ok := grant.OrganizationID()
	require.True(t, ok)
	assert.Equal(t, int64(7), orgID)
	assert.Equal(t, []string{"voucher.create:allowed"}, f.observer.outcomes)
}

func TestRequireAccessDeniesMissingPermission(t *testing.T) {
	f := newGateFixture(t)
	f.perms.sets[7] = rbac.NewPermissionSet("voucher.read", "voucher.create")

	_, err := f.gate.RequireAccess(context.Background(), Request{
		Credential: f.token(t, orgAdmin()),
		Module:     "voucher",
		Action:     "delete",
	})
	require.ErrorIs(t, err, shared.ErrPermissionDenied)
	accessErr, ok := shared.AsAccessError(err)
	require.True(t, ok)
	assert.Equal(t, "voucher.delete", accessErr.RequiredPermission)
}

func TestRequireAccessSuperAdminBypassesPermissions(t *testing.T) {
	f := newGateFixture(t)
	superAdmin := shared.Principal{UserID: 1, IsSuperAdmin: true}

	grant, err := f.gate.RequireAccess(context.Background(), Request{
		Credential:            f.token(t, superAdmin),
		RequestedOrganization: shared.OrgID(9),
		Module:                "finance",
		Action:                "delete",
	})
	require.NoError(t, err)
	orgID, ok := grant.OrganizationID()
	require.True(t, ok)
	assert.Equal(t, int64(9), orgID)
	assert.Zero(t, f.perms.calls)

	require.Len(t, f.audit.entries, 1)
	entry := f.audit.entries[0]
	assert.Equal(t, int64(1), entry.ActorID)
	assert.Equal(t, "access.super_admin", entry.Action)
	assert.Equal(t, "finance.delete", entry.EntityID)
	require.NotNil(t, entry.OrganizationID)
	assert.Equal(t, int64(9), *entry.OrganizationID)
}

func TestRequireAccessSuperAdminPlatformScope(t *testing.T) {
	f := newGateFixture(t)
	f.audit.err = errors.New("queue unavailable")

	grant, err := f.gate.RequireAccess(context.Background(), Request{
		Credential: f.token(t, shared.Principal{UserID: 1, IsSuperAdmin: true}),
		Module:     "admin",
		Action:     "manage",
	})
	require.NoError(t, err)
	assert.True(t, grant.Scope.IsPlatform())

	_, err = f.gate.RequireAccess(context.Background(), Request{
		Credential: f.token(t, shared.Principal{UserID: 1, IsSuperAdmin: true}),
		Module:     "admin",
		Action:     "manage",
	}, RequireTenant())
	assert.ErrorIs(t, err, shared.ErrTenantContextMissing)
}

func TestRequireAccessCrossTenant(t *testing.T) {
	f := newGateFixture(t)
	f.perms.sets[7] = rbac.NewPermissionSet("voucher.read")

	_, err := f.gate.RequireAccess(context.Background(), Request{
		Credential:            f.token(t, orgAdmin()),
		RequestedOrganization: shared.OrgID(8),
		Module:                "voucher",
		Action:                "read",
	})
	require.ErrorIs(t, err, shared.ErrCrossTenantAccess)
	assert.Zero(t, f.perms.calls)
	assert.Equal(t, []string{"voucher.read:cross_tenant"}, f.observer.outcomes)

	_, err = f.gate.RequireAccess(context.Background(), Request{
		Credential:            f.token(t, orgAdmin()),
		RequestedOrganization: shared.OrgID(7),
		Module:                "voucher",
		Action:                "read",
	})
	assert.NoError(t, err)
}

func TestRequireAccessTenantContextMissing(t *testing.T) {
	f := newGateFixture(t)

	_, err := f.gate.RequireAccess(context.Background(), Request{
		Credential: f.token(t, shared.Principal{UserID: 5, DeclaredRole: "user"}),
		Module:     "crm",
		Action:     "read",
	})
	require.ErrorIs(t, err, shared.ErrTenantContextMissing)
	assert.Zero(t, f.perms.calls)
}

func TestRequireAccessUnauthenticated(t *testing.T) {
	f := newGateFixture(t)

	for _, credential := range []string{"", "not-a-jwt"} {
		_, err := f.gate.RequireAccess(context.Background(), Request{Credential: credential, Module: "crm", Action: "read"})
		assert.ErrorIs(t, err, shared.ErrUnauthenticated)
	}

	forged := auth.NewTokenIssuer("another-secret", "odyssey", time.Hour)
	token, _, err := forged.Issue(shared.Principal{UserID: 1, IsSuperAdmin: true})
	require.NoError(t, err)
	_, err = f.gate.RequireAccess(context.Background(), Request{Credential: token, Module: "crm", Action: "read"})
	assert.ErrorIs(t, err, shared.ErrUnauthenticated)
}

func TestRequireAccessFailsClosedOnLookupFailure(t *testing.T) {
	f := newGateFixture(t)
	f.perms.err = errors.New("connection refused")

	_, err := f.gate.RequireAccess(context.Background(), Request{
		Credential: f.token(t, orgAdmin()),
		Module:     "voucher",
		Action:     "read",
	})
	require.ErrorIs(t, err, shared.ErrLookupFailure)
	assert.NotErrorIs(t, err, shared.ErrPermissionDenied)
}

func TestRequireAccessGuardsRunAfterPermissions(t *testing.T) {
	f := newGateFixture(t)
	f.perms.sets[7] = rbac.NewPermissionSet("admin.update")

	_, err := f.gate.RequireAccess(context.Background(), Request{
		Credential: f.token(t, orgAdmin()),
		Module:     "admin",
		Action:     "update",
	}, RequireSuperAdmin())
	require.ErrorIs(t, err, shared.ErrPermissionDenied)
	accessErr, _ := shared.AsAccessError(err)
	assert.Equal(t, PermPlatformSuperAdmin, accessErr.RequiredPermission)
}

func TestEnsureOwned(t *testing.T) {
	tenantGrant := Grant{Principal: orgAdmin(), Scope: tenant.ForOrganization(7)}

	assert.NoError(t, EnsureOwned(tenantGrant, 7))
	assert.ErrorIs(t, EnsureOwned(tenantGrant, 8), shared.ErrNotFound)

	superAdmin := shared.Principal{UserID: 1, IsSuperAdmin: true}
	assert.NoError(t, EnsureOwned(Grant{Principal: superAdmin, Scope: tenant.NoTenant}, 8))
	assert.ErrorIs(t, EnsureOwned(Grant{Principal: superAdmin, Scope: tenant.ForOrganization(9)}, 8), shared.ErrNotFound)
	assert.ErrorIs(t, EnsureOwned(Grant{Principal: orgAdmin(), Scope: tenant.NoTenant}, 7), shared.ErrNotFound)
}
