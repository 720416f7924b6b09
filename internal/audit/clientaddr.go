package audit

import (
	"net"
	"net/http"
	"strings"
)

// ClientAddress resolves the originating client address, honoring proxy
// forwarding headers in priority order: first X-Forwarded-For entry, then
// X-Real-IP, then the raw peer address.
func ClientAddress(r *http.Request) string {
	if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
		parts := strings.Split(xff, ",")
		if addr := strings.TrimSpace(parts[0]); addr != "" {
			return addr
		}
	}
	if real := strings.TrimSpace(r.Header.Get("X-Real-IP")); real != "" {
		return real
	}
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
