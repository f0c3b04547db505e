// Package httpserver wraps http.Server with production timeouts so main
// stays small.
package httpserver

import (
	"net/http"
	"time"
)

// New returns an http.Server with sane limits. Handler-level timeouts are
// the router's concern; these guard the connection itself.
func New(addr string, handler http.Handler) *http.Server {
	return &http.Server{
		Addr:              addr,
		Handler:           handler,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      60 * time.Second,
		IdleTimeout:       120 * time.Second,
		MaxHeaderBytes:    1 << 20,
	}
}
