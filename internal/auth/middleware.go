// Package auth extracts caller identity. The storefront runs behind an edge
// gateway that terminates sessions and forwards the authenticated subject in
// the X-User-ID header; this package trusts that header and nothing else.
package auth

import (
	"crypto/subtle"
	"net/http"
	"strings"

	"github.com/google/uuid"

	"github.com/noah-isme/storefront-api/internal/common"
)

// Middleware validates the gateway-injected identity headers.
type Middleware struct{}

// RequireUser rejects requests without a valid user identity and stores the
// identity on the request context for handlers.
func (Middleware) RequireUser(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		raw := strings.TrimSpace(r.Header.Get("X-User-ID"))
		if raw == "" {
			common.JSONError(w, http.StatusUnauthorized, "UNAUTHORIZED", "authentication required", nil)
			return
		}
		id, err := uuid.Parse(raw)
		if err != nil {
			common.JSONError(w, http.StatusUnauthorized, "UNAUTHORIZED", "authentication required", nil)
			return
		}
		next.ServeHTTP(w, r.WithContext(common.WithUserID(r.Context(), id.String())))
	})
}

// AdminKey guards operator endpoints with a shared key.
type AdminKey struct {
	Key string
}

// Require rejects requests whose X-Admin-Key header does not match.
func (a AdminKey) Require(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if a.Key == "" {
			common.JSONError(w, http.StatusForbidden, "FORBIDDEN", "admin access not configured", nil)
			return
		}
		provided := r.Header.Get("X-Admin-Key")
		if subtle.ConstantTimeCompare([]byte(provided), []byte(a.Key)) != 1 {
			common.JSONError(w, http.StatusForbidden, "FORBIDDEN", "forbidden", nil)
			return
		}
		next.ServeHTTP(w, r)
	})
}
