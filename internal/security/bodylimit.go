// Package security carries HTTP hardening middleware: request body caps and
// standard browser security headers. CORS is handled separately by the
// go-chi/cors middleware.
package security

import (
	"net/http"

	"github.com/noah-isme/storefront-api/internal/common"
)

// MaxBody caps request payload size. Requests declaring a larger body get a
// 413 up front; bodies that lie about their length hit the MaxBytesReader
// limit during decode and fail there.
func MaxBody(max int64) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if max <= 0 || r.Body == nil {
				next.ServeHTTP(w, r)
				return
			}
			if r.ContentLength > max {
				common.JSONError(w, http.StatusRequestEntityTooLarge, "PAYLOAD_TOO_LARGE", "request body too large", nil)
				return
			}
			r.Body = http.MaxBytesReader(w, r.Body, max)
			next.ServeHTTP(w, r)
		})
	}
}
