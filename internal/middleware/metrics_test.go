package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"

	"github.com/mealwise/mealwise/internal/metrics"
)

func TestMetrics_GenerateRouteHasOwnHistogram(t *testing.T) {
	r := chi.NewRouter()
	r.Use(Metrics)
	r.Post(GenerateRoute, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
	})
	r.Get("/health/live", func(w http.ResponseWriter, r *http.Request) {})

	generate := metrics.HTTPRequestsTotal.WithLabelValues(http.MethodPost, GenerateRoute, "429")
	live := metrics.HTTPRequestsTotal.WithLabelValues(http.MethodGet, "/health/live", "200")
	generateBefore, liveBefore := testutil.ToFloat64(generate), testutil.ToFloat64(live)

	r.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodPost, GenerateRoute, nil))
	r.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/health/live", nil))

	assert.GreaterOrEqual(t, testutil.CollectAndCount(metrics.GenerateRouteDuration), 1)
	assert.False(t, metrics.HTTPRequestDuration.DeleteLabelValues(http.MethodPost, GenerateRoute),
		"generate latency must stay out of the shared histogram")
	assert.Equal(t, generateBefore+1, testutil.ToFloat64(generate))
	assert.Equal(t, liveBefore+1, testutil.ToFloat64(live))
}

func TestMetrics_UnmatchedPathLabel(t *testing.T) {
	r := chi.NewRouter()
	r.Use(Metrics)
	r.Get("/known", func(w http.ResponseWriter, r *http.Request) {})

	unmatched := metrics.HTTPRequestsTotal.WithLabelValues(http.MethodGet, "unmatched", "404")
	before := testutil.ToFloat64(unmatched)

	r.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/nope/12345", nil))

	assert.Equal(t, before+1, testutil.ToFloat64(unmatched))
}
