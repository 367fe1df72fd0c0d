package middleware

import (
	"context"
	"log/slog"
	"net"
	"net/http"
	"strconv"
	"time"

	"github.com/mealwise/mealwise/internal/kv"
	"github.com/mealwise/mealwise/internal/metrics"
)

// Throttle provides coarse per-IP fixed-window limiting for the whole API,
// ahead of authentication.
type Throttle struct {
	accessor  kv.Accessor
	namespace string
	maxReqs   int
	window    time.Duration
}

// NewThrottle creates a throttle that allows maxReqs per window.
func NewThrottle(accessor kv.Accessor, namespace string, maxReqs int, window time.Duration) *Throttle {
	return &Throttle{accessor: accessor, namespace: namespace, maxReqs: maxReqs, window: window}
}

// Middleware returns an HTTP middleware that enforces the throttle.
// When the backend is unavailable or errors it fails open.
func (t *Throttle) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		store := t.accessor.Handle(r.Context())
		if store == nil {
			next.ServeHTTP(w, r)
			return
		}

		ip := throttleIP(r)
		key := t.namespace + ":throttle:" + ip

		count, err := store.IncrExpire(r.Context(), key, t.window)
		if err != nil {
			slog.Warn("throttle: backend error, failing open", "error", err, "ip", ip)
			next.ServeHTTP(w, r)
			return
		}

		if count > int64(t.maxReqs) {
			metrics.APIThrottledTotal.Inc()
			w.Header().Set("Retry-After", strconv.Itoa(t.retryAfter(r.Context(), store, key)))
			writeJSONError(w, http.StatusTooManyRequests, "too many requests")
			return
		}

		next.ServeHTTP(w, r)
	})
}

// retryAfter returns whole seconds until key expires, rounded up. The full
// window is used when the TTL cannot be read.
func (t *Throttle) retryAfter(ctx context.Context, store kv.Store, key string) int {
	ttl, err := store.TTL(ctx, key)
	if err != nil || ttl <= 0 {
		ttl = t.window
	}
	return max(1, int((ttl+time.Second-1)/time.Second))
}

// throttleIP prefers the proxy-reported address and falls back to the
// socket peer so direct clients do not share one bucket.
func throttleIP(r *http.Request) string {
	if ip := ClientIP(r); ip != UnknownClientIP {
		return ip
	}
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
