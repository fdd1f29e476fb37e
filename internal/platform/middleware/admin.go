package middleware

import (
	"crypto/subtle"
	"net/http"
	"strings"
)

// RequireAdminToken guards the operator surface (tenant administration)
// with a static bearer token. Tenant-scoped JWTs do not pass here; the two
// credential spaces stay disjoint so a tenant can never administer tenants.
func RequireAdminToken(token string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if token == "" {
				http.Error(w, "admin surface disabled", http.StatusForbidden)
				return
			}

			header := r.Header.Get("Authorization")
			if !strings.HasPrefix(header, "Bearer ") {
				http.Error(w, "missing bearer token", http.StatusUnauthorized)
				return
			}

			presented := strings.TrimPrefix(header, "Bearer ")
			if subtle.ConstantTimeCompare([]byte(presented), []byte(token)) != 1 {
				http.Error(w, "invalid token", http.StatusUnauthorized)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
