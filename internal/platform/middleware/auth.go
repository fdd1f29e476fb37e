package middleware

import (
	"log/slog"
	"net/http"
	"strings"

	id "complyd/pkg/domain"
	"complyd/pkg/requestcontext"
)

// TokenClaims represents the claims we expect from the token validator.
type TokenClaims struct {
	TenantID string
	Subject  string
}

// TokenValidator defines the interface for validating access tokens.
type TokenValidator interface {
	ValidateToken(tokenString string) (*TokenClaims, error)
}

// RequireAuth validates the Bearer token and resolves the tenant into the
// request context. Requests without a valid tenant-scoped token get 401.
func RequireAuth(validator TokenValidator, logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := r.Context()

			header := r.Header.Get("Authorization")
			if header == "" || !strings.HasPrefix(header, "Bearer ") {
				http.Error(w, "missing bearer token", http.StatusUnauthorized)
				return
			}

			claims, err := validator.ValidateToken(strings.TrimPrefix(header, "Bearer "))
			if err != nil {
				logger.WarnContext(ctx, "token validation failed",
					"request_id", requestcontext.RequestID(ctx),
					"error", err.Error(),
				)
				http.Error(w, "invalid token", http.StatusUnauthorized)
				return
			}

			tenantID, err := id.ParseTenantID(claims.TenantID)
			if err != nil {
				logger.WarnContext(ctx, "token carries invalid tenant id",
					"request_id", requestcontext.RequestID(ctx),
				)
				http.Error(w, "invalid token", http.StatusUnauthorized)
				return
			}

			ctx = requestcontext.WithTenantID(ctx, tenantID)
			if claims.Subject != "" {
				ctx = requestcontext.WithActor(ctx, claims.Subject)
			}
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}
