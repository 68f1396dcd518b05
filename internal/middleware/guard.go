package middleware

import (
	"crypto/subtle"
	"encoding/json"
	"net/http"
	"strings"
)

// BearerGuard requires "Authorization: Bearer <token>" on every request.
// An empty token disables the guard. Used for operator endpoints such as
// /metrics; task endpoints are single-tenant and stay open.
func BearerGuard(token, realm string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		if token == "" {
			return next
		}
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			authz := r.Header.Get("Authorization")
			if got := strings.TrimPrefix(authz, "Bearer "); got != authz && constantTimeEq(strings.TrimSpace(got), token) {
				next.ServeHTTP(w, r)
				return
			}
			w.Header().Set("Content-Type", "application/json")
			w.Header().Set("WWW-Authenticate", `Bearer realm="`+realm+`"`)
			w.WriteHeader(http.StatusUnauthorized)
			_ = json.NewEncoder(w).Encode(errBody{Error: "unauthorized"})
		})
	}
}

func constantTimeEq(a, b string) bool {
	return subtle.ConstantTimeCompare([]byte(a), []byte(b)) == 1
}
