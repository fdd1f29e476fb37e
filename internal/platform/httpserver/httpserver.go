package httpserver

import (
	"net/http"
	"time"
)

// New builds an HTTP server with sane defaults. Request-level timeouts are
// enforced by middleware; these bounds protect against slow clients at the
// connection level.
func New(addr string, handler http.Handler) *http.Server {
	return &http.Server{
		Addr:              addr,
		Handler:           handler,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      60 * time.Second,
		IdleTimeout:       2 * time.Minute,
	}
}
