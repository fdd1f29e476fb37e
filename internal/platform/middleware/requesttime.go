package middleware

import (
	"net/http"
	"time"

	"complyd/pkg/requestcontext"
)

// RequestTime captures the current time at the start of the request so all
// operations within a single request share one "now": audit timestamps,
// delivery scheduling, and status transitions stay consistent.
func RequestTime(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ctx := requestcontext.WithTime(r.Context(), time.Now())
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}
