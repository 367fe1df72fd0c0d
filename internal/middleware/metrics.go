package middleware

import (
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/mealwise/mealwise/internal/metrics"
)

// GenerateRoute is the chi pattern of the image generation endpoint. Its
// latency is dominated by the external model, so it gets its own histogram
// instead of skewing the shared one.
const GenerateRoute = "/api/v1/admin/images/generate"

// Metrics records HTTP request count and latency as Prometheus metrics,
// labelled by chi route pattern.
func Metrics(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := &statusWriter{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(ww, r)
		elapsed := time.Since(start).Seconds()

		path := routePattern(r)
		status := strconv.Itoa(ww.status)

		metrics.HTTPRequestsTotal.WithLabelValues(r.Method, path, status).Inc()
		if path == GenerateRoute {
			metrics.GenerateRouteDuration.WithLabelValues(status).Observe(elapsed)
			return
		}
		metrics.HTTPRequestDuration.WithLabelValues(r.Method, path).Observe(elapsed)
	})
}

// routePattern returns the matched pattern, or "unmatched" so unknown paths
// cannot blow up label cardinality.
func routePattern(r *http.Request) string {
	if rctx := chi.RouteContext(r.Context()); rctx != nil {
		if pat := rctx.RoutePattern(); pat != "" {
			return pat
		}
	}
	return "unmatched"
}

// statusWriter captures the response status for metrics and access logs.
type statusWriter struct {
	http.ResponseWriter
	status      int
	wroteHeader bool
}

func (w *statusWriter) WriteHeader(code int) {
	if !w.wroteHeader {
		w.status = code
		w.wroteHeader = true
	}
	w.ResponseWriter.WriteHeader(code)
}

func (w *statusWriter) Unwrap() http.ResponseWriter {
	return w.ResponseWriter
}
