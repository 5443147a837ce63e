package httpx

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strings"

	chimw "github.com/go-chi/chi/v5/middleware"

	"github.com/odyssey-erp/odyssey-access/internal/shared"
)

// IdempotencyHeader carries the client chosen request key.
const IdempotencyHeader = "Idempotency-Key"

// IdempotencyStore claims and releases request keys.
type IdempotencyStore interface {
	CheckAndInsert(ctx context.Context, key, scope string) error
	Delete(ctx context.Context, key, scope string) error
}

// Idempotent rejects replays of mutating requests carrying an
// Idempotency-Key already claimed in the same scope. A request that ends
// with a 4xx or 5xx releases its key so the client may retry.
func Idempotent(store IdempotencyStore, scope func(*http.Request) string, logger *slog.Logger) func(http.Handler) http.Handler {
	if logger == nil {
		logger = slog.Default()
	}
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			key := strings.TrimSpace(r.Header.Get(IdempotencyHeader))
			if store == nil || key == "" || isSafeMethod(r.Method) {
				next.ServeHTTP(w, r)
				return
			}
			if len(key) > 128 {
				Problem(w, http.StatusBadRequest, "Bad Request", "idempotency key too long")
				return
			}
			keyScope := scope(r)
			if err := store.CheckAndInsert(r.Context(), key, keyScope); err != nil {
				if errors.Is(err, shared.ErrIdempotencyConflict) {
					Problem(w, http.StatusConflict, "Conflict", "request already processed")
					return
				}
				logger.Error("idempotency claim", slog.String("scope", keyScope), slog.Any("error", err))
				Problem(w, http.StatusServiceUnavailable, "Service Unavailable", "")
				return
			}

			ww := chimw.NewWrapResponseWriter(w, r.ProtoMajor)
			next.ServeHTTP(ww, r)
			if status := ww.Status(); status == 0 || status < http.StatusBadRequest {
				return
			}
			if err := store.Delete(context.WithoutCancel(r.Context()), key, keyScope); err != nil {
				logger.Warn("idempotency release", slog.String("scope", keyScope), slog.Any("error", err))
			}
		})
	}
}

func isSafeMethod(method string) bool {
	switch method {
	case http.MethodGet, http.MethodHead, http.MethodOptions:
		return true
	}
	return false
}
