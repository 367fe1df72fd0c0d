package middleware

import (
	"net/http"
	"strings"
)

// UnknownClientIP is returned when no proxy header identifies the client.
const UnknownClientIP = "unknown"

// ClientIP returns the caller's address as reported by the reverse proxy.
// X-Real-IP wins. Otherwise the rightmost X-Forwarded-For entry is used,
// since that is the one appended by the proxy nearest to us.
func ClientIP(r *http.Request) string {
	if xri := strings.TrimSpace(r.Header.Get("X-Real-IP")); xri != "" {
		return xri
	}

	if xff := r.Header.Values("X-Forwarded-For"); len(xff) > 0 {
		parts := strings.Split(strings.Join(xff, ","), ",")
		for i := len(parts) - 1; i >= 0; i-- {
			if ip := strings.TrimSpace(parts[i]); ip != "" {
				return ip
			}
		}
	}

	return UnknownClientIP
}
