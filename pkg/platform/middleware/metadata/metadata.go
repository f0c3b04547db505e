// Package metadata extracts client IP and User-Agent into the request
// context, with configurable trusted proxies for forwarded headers. The
// audit recorder picks both up from context when appending events.
package metadata

import (
	"net/http"
	"net/netip"
	"strings"

	"custodia/pkg/requestcontext"
)

// MaxForwardedHeaderLength caps X-Forwarded-For / X-Real-IP values to
// prevent header injection into stored audit events.
const MaxForwardedHeaderLength = 500

// Config holds configuration for the metadata middleware.
type Config struct {
	// TrustedProxies lists IP prefixes (CIDR) trusted to set forwarded
	// headers. Empty means forwarded headers are never trusted.
	TrustedProxies []netip.Prefix
}

// DefaultConfig returns a Config with no trusted proxies.
func DefaultConfig() *Config {
	return &Config{}
}

// Middleware handles client metadata extraction.
type Middleware struct {
	config *Config
}

// NewMiddleware creates a metadata middleware with the given config.
func NewMiddleware(cfg *Config) *Middleware {
	if cfg == nil {
		cfg = DefaultConfig()
	}
	return &Middleware{config: cfg}
}

// Handler extracts the client IP and User-Agent and adds them to the context.
func (m *Middleware) Handler(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ip := m.extractClientIP(r)
		userAgent := r.Header.Get("User-Agent")

		ctx := requestcontext.WithClientMetadata(r.Context(), ip, userAgent)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// extractClientIP resolves the client address, honoring forwarded headers
// only when the direct peer is a trusted proxy.
func (m *Middleware) extractClientIP(r *http.Request) string {
	remoteIP := parseRemoteAddr(r.RemoteAddr)
	if remoteIP == "" {
		return "unknown"
	}

	if !m.isTrustedProxy(remoteIP) {
		return remoteIP
	}

	if xff := r.Header.Get("X-Forwarded-For"); xff != "" && len(xff) <= MaxForwardedHeaderLength {
		// Leftmost entry is the original client.
		if first, _, found := strings.Cut(xff, ","); found || first != "" {
			candidate := strings.TrimSpace(first)
			if _, err := netip.ParseAddr(candidate); err == nil {
				return candidate
			}
		}
	}
	if xri := r.Header.Get("X-Real-IP"); xri != "" && len(xri) <= MaxForwardedHeaderLength {
		candidate := strings.TrimSpace(xri)
		if _, err := netip.ParseAddr(candidate); err == nil {
			return candidate
		}
	}
	return remoteIP
}

func (m *Middleware) isTrustedProxy(ip string) bool {
	addr, err := netip.ParseAddr(ip)
	if err != nil {
		return false
	}
	for _, prefix := range m.config.TrustedProxies {
		if prefix.Contains(addr) {
			return true
		}
	}
	return false
}

// parseRemoteAddr strips the port from an address like "203.0.113.7:51234".
func parseRemoteAddr(remoteAddr string) string {
	if remoteAddr == "" {
		return ""
	}
	if addrPort, err := netip.ParseAddrPort(remoteAddr); err == nil {
		return addrPort.Addr().String()
	}
	if addr, err := netip.ParseAddr(remoteAddr); err == nil {
		return addr.String()
	}
	return ""
}
