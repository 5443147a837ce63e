// Package tenant resolves which organization a request operates on.
package tenant

import (
	"fmt"

	"github.com/odyssey-erp/odyssey-access/internal/shared"
)

// Scope is the effective tenant context of a request. The zero value is
// NoTenant: a platform scoped operation carried out by a super-admin.
type Scope struct {
	organizationID int64
	set            bool
}

// NoTenant is the platform scope sentinel.
var NoTenant = Scope{}

// ForOrganization returns the scope of a concrete tenant.
func ForOrganization(id int64) Scope {
	return Scope{organizationID: id, set: true}
}

// OrganizationID returns the tenant id and whether one is set.
func (s Scope) OrganizationID() (int64, bool) {
	return s.organizationID, s.set
}

// IsPlatform reports whether the scope carries no tenant.
func (s Scope) IsPlatform() bool {
	return !s.set
}

// Require returns the tenant id for operations that cannot run platform scoped.
func (s Scope) Require() (int64, error) {
	if !s.set {
		return 0, shared.Deny(shared.DenialTenantContextMissing, fmt.Errorf("tenant: operation requires an organization"))
	}
	return s.organizationID, nil
}

func (s Scope) String() string {
	if !s.set {
		return "platform"
	}
	return fmt.Sprintf("organization:%d", s.organizationID)
}

// Resolve determines the effective tenant for principal. Super-admins take
// the requested organization unconditionally; everyone else is pinned to
// their own organization and may not address another one.
func Resolve(p shared.Principal, requested *int64) (Scope, error) {
	if p.IsSuperAdmin {
		if requested != nil {
			return ForOrganization(*requested), nil
		}
		return NoTenant, nil
	}
	own, ok := p.Organization()
	if !ok {
		return NoTenant, shared.Deny(shared.DenialTenantContextMissing, fmt.Errorf("tenant: user %d has no organization", p.UserID))
	}
	if requested != nil && *requested != own {
		return NoTenant, shared.Deny(shared.DenialCrossTenant, nil)
	}
	return ForOrganization(own), nil
}
