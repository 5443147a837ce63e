package access

import (
	"context"
	"errors"

	"github.com/odyssey-erp/odyssey-access/internal/shared"
)

// PermPlatformSuperAdmin names the capability reserved to platform administrators.
const PermPlatformSuperAdmin = "platform.super_admin"

// Guard is an extra validation step composed after the gate's own checks.
type Guard func(ctx context.Context, grant Grant) error

// RequireSuperAdmin restricts an operation to platform administrators, on
// top of whatever module.action the route already demands.
func RequireSuperAdmin() Guard {
	return func(ctx context.Context, grant Grant) error {
		if !grant.Principal.IsSuperAdmin {
			return shared.DenyPermission(PermPlatformSuperAdmin)
		}
		return nil
	}
}

// RequireTenant rejects platform scoped grants for operations that need a
// concrete organization.
func RequireTenant() Guard {
	return func(ctx context.Context, grant Grant) error {
		_, err := grant.Scope.Require()
		return err
	}
}

// EnsureOwned checks a fetched resource against the grant's tenant.
// Resources of another tenant are reported as shared.ErrNotFound so that
// their existence is not revealed. Only a platform scoped super-admin may
// reach every tenant.
func EnsureOwned(grant Grant, resourceOrganizationID int64) error {
	orgID, ok := grant.OrganizationID()
	if !ok {
		if grant.Principal.IsSuperAdmin {
			return nil
		}
		return shared.ErrNotFound
	}
	if orgID != resourceOrganizationID {
		return shared.ErrNotFound
	}
	return nil
}

// IsDenied reports whether err came from the enforcement layer.
func IsDenied(err error) bool {
	var accessErr *shared.AccessError
	return errors.As(err, &accessErr)
}
