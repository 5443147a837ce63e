// Package httpx provides HTTP response utilities.
package httpx

import (
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/go-playground/validator/v10"

	"github.com/odyssey-erp/odyssey-access/internal/shared"
)

// Sentinel errors for domain layer.
var (
	ErrNotFound     = errors.New("resource not found")
	ErrDuplicate    = errors.New("duplicate entry")
	ErrValidation   = errors.New("validation failed")
	ErrForbidden    = errors.New("forbidden")
	ErrUnauthorized = errors.New("unauthorized")
)

// RespondError maps domain errors to HTTP responses using RFC7807.
func RespondError(w http.ResponseWriter, err error) {
	if _, ok := shared.AsAccessError(err); ok {
		RespondAccessError(w, err)
		return
	}
	switch {
	case errors.Is(err, ErrNotFound), errors.Is(err, shared.ErrNotFound):
		NotFound(w)
	case errors.Is(err, ErrDuplicate):
		Problem(w, http.StatusConflict, "Duplicate", err.Error())
	case errors.Is(err, ErrValidation):
		Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
	case errors.Is(err, ErrForbidden):
		Problem(w, http.StatusForbidden, "Forbidden", err.Error())
	case errors.Is(err, ErrUnauthorized):
		Problem(w, http.StatusUnauthorized, "Unauthorized", err.Error())
	default:
		Problem(w, http.StatusInternalServerError, "Internal Error", "")
	}
}

// RespondAccessError renders enforcement denials. Cross tenant addressing is
// indistinguishable from a missing resource; only permission denials name
// the capability involved.
func RespondAccessError(w http.ResponseWriter, err error) {
	accessErr, ok := shared.AsAccessError(err)
	if !ok {
		RespondError(w, err)
		return
	}
	switch accessErr.Kind {
	case shared.DenialUnauthenticated:
		w.Header().Set("WWW-Authenticate", `Bearer realm="odyssey"`)
		Problem(w, http.StatusUnauthorized, "Unauthorized", "authentication required")
	case shared.DenialCrossTenant:
		NotFound(w)
	case shared.DenialPermission:
		WriteProblem(w, ProblemDetail{
			Title:              "Forbidden",
			Status:             http.StatusForbidden,
			Detail:             fmt.Sprintf("insufficient permissions, requires %s", accessErr.RequiredPermission),
			RequiredPermission: accessErr.RequiredPermission,
		})
	case shared.DenialTenantContextMissing:
		Problem(w, http.StatusInternalServerError, "Internal Error", "")
	case shared.DenialLookupFailure:
		Problem(w, http.StatusServiceUnavailable, "Service Unavailable", "")
	default:
		Problem(w, http.StatusForbidden, "Forbidden", "")
	}
}

// NotFound writes the single not-found shape shared by every lookup miss.
func NotFound(w http.ResponseWriter) {
	Problem(w, http.StatusNotFound, "Not Found", ErrNotFound.Error())
}

// RespondValidation renders validator errors field by field.
func RespondValidation(w http.ResponseWriter, err error) {
	var fieldErrs validator.ValidationErrors
	if !errors.As(err, &fieldErrs) {
		Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
		return
	}
	msgs := make([]string, 0, len(fieldErrs))
	for _, fieldErr := range fieldErrs {
		msgs = append(msgs, fmt.Sprintf("%s: failed on '%s'", fieldErr.Field(), fieldErr.Tag()))
	}
	Problem(w, http.StatusBadRequest, "Validation Failed", strings.Join(msgs, "; "))
}
