package shared

import (
	"errors"
	"fmt"
)

var (
	// ErrNotFound indicates resource not found.
	ErrNotFound = errors.New("not found")
	// ErrInvalidCredentials indicates login failure.
	ErrInvalidCredentials = errors.New("invalid credentials")

	// ErrUnauthenticated is returned when no valid principal accompanies a request.
	ErrUnauthenticated = errors.New("access: not authenticated")
	// ErrTenantContextMissing flags a non platform principal without an organization.
	ErrTenantContextMissing = errors.New("access: tenant context missing")
	// ErrCrossTenantAccess flags an explicit attempt to address another tenant.
	ErrCrossTenantAccess = errors.New("access: cross tenant access denied")
	// ErrPermissionDenied flags a principal lacking the required capability.
	ErrPermissionDenied = errors.New("access: permission denied")
	// ErrLookupFailure flags an unreadable role/permission store.
	ErrLookupFailure = errors.New("access: permission lookup failed")
)

// DenialKind classifies why the enforcement layer refused a request.
type DenialKind int

const (
	DenialUnauthenticated DenialKind = iota + 1
	DenialTenantContextMissing
	DenialCrossTenant
	DenialPermission
	DenialLookupFailure
)

// String returns the stable name of the kind, used in logs and metrics.
func (k DenialKind) String() string {
	switch k {
	case DenialUnauthenticated:
		return "unauthenticated"
	case DenialTenantContextMissing:
		return "tenant_context_missing"
	case DenialCrossTenant:
		return "cross_tenant"
	case DenialPermission:
		return "permission_denied"
	case DenialLookupFailure:
		return "lookup_failure"
	default:
		return "unknown"
	}
}

func (k DenialKind) sentinel() error {
	switch k {
	case DenialUnauthenticated:
		return ErrUnauthenticated
	case DenialTenantContextMissing:
		return ErrTenantContextMissing
	case DenialCrossTenant:
		return ErrCrossTenantAccess
	case DenialPermission:
		return ErrPermissionDenied
	case DenialLookupFailure:
		return ErrLookupFailure
	default:
		return nil
	}
}

// AccessError is the typed denial produced by the enforcement layer.
// RequiredPermission is only populated for DenialPermission.
type AccessError struct {
	Kind               DenialKind
	RequiredPermission string
	Err                error
}

// Deny builds an AccessError of the given kind wrapping an optional cause.
func Deny(kind DenialKind, cause error) *AccessError {
	return &AccessError{Kind: kind, Err: cause}
}

// DenyPermission builds a DenialPermission error naming the missing capability.
func DenyPermission(permission string) *AccessError {
	return &AccessError{Kind: DenialPermission, RequiredPermission: permission}
}

func (e *AccessError) Error() string {
	msg := e.Kind.sentinel()
	if msg == nil {
		msg = errors.New("access: denied")
	}
	if e.RequiredPermission != "" {
		return fmt.Sprintf("%s: requires %s", msg, e.RequiredPermission)
	}
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", msg, e.Err)
	}
	return msg.Error()
}

// Unwrap exposes the underlying cause.
func (e *AccessError) Unwrap() error {
	return e.Err
}

// Is matches the per-kind sentinel errors.
func (e *AccessError) Is(target error) bool {
	return target != nil && target == e.Kind.sentinel()
}

// AsAccessError extracts an AccessError from err.
func AsAccessError(err error) (*AccessError, bool) {
	var accessErr *AccessError
	if errors.As(err, &accessErr) {
		return accessErr, true
	}
	return nil, false
}
