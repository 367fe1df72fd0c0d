package metrics

import "github.com/prometheus/client_golang/prometheus"

var (
	HTTPRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "mealwise_http_requests_total",
			Help: "Total number of HTTP requests.",
		},
		[]string{"method", "path", "status"},
	)

	HTTPRequestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "mealwise_http_request_duration_seconds",
			Help:    "HTTP request duration in seconds.",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "path"},
	)

	GenerateRouteDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "mealwise_generate_route_duration_seconds",
			Help:    "End-to-end latency of the image generation endpoint, including guardrail checks.",
			Buckets: []float64{0.01, 0.05, 0.25, 1, 2.5, 5, 10, 20, 40, 60, 90},
		},
		[]string{"status"},
	)

	ImageGenerationsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "mealwise_image_generations_total",
			Help: "Image generation attempts by terminal outcome.",
		},
		[]string{"outcome"},
	)

	ImageGenerationDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "mealwise_image_generation_duration_seconds",
			Help:    "Latency of calls to the external image model.",
			Buckets: []float64{0.5, 1, 2.5, 5, 10, 20, 40, 60, 120},
		},
		[]string{"model", "result"},
	)

	GuardrailFallbacksTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "mealwise_guardrail_fallbacks_total",
			Help: "Guardrail checks answered permissively because the backend was unavailable.",
		},
		[]string{"check"},
	)

	APIThrottledTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "mealwise_api_throttled_total",
			Help: "Requests rejected by the per-IP API throttle.",
		},
	)

	AuditWriteFailuresTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "mealwise_audit_write_failures_total",
			Help: "Audit records that could not be delivered to a sink.",
		},
		[]string{"sink"},
	)
)

func init() {
	prometheus.MustRegister(
		HTTPRequestsTotal,
		HTTPRequestDuration,
		GenerateRouteDuration,
		ImageGenerationsTotal,
		ImageGenerationDuration,
		GuardrailFallbacksTotal,
		APIThrottledTotal,
		AuditWriteFailuresTotal,
	)
}
