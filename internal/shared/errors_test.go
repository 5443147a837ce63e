package shared

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAccessErrorMatchesKindSentinel(t *testing.T) {
	err := fmt.Errorf("handler: %w", DenyPermission("voucher.delete"))

	assert.ErrorIs(t, err, ErrPermissionDenied)
	assert.NotErrorIs(t, err, ErrCrossTenantAccess)

	accessErr, ok := AsAccessError(err)
	require.True(t, ok)
	assert.Equal(t, DenialPermission, accessErr.Kind)
	assert.Equal(t, "voucher.delete", accessErr.RequiredPermission)
	assert.Equal(t, "access: permission denied: requires voucher.delete", accessErr.Error())
}

func TestAccessErrorUnwrapsCause(t *testing.T) {
	cause := errors.New("connection refused")
	err := Deny(DenialLookupFailure, cause)

	assert.ErrorIs(t, err, ErrLookupFailure)
	assert.ErrorIs(t, err, cause)
	assert.Equal(t, "lookup_failure", err.Kind.String())
}
