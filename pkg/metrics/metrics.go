// Package metrics provides Prometheus metrics instrumentation.
package metrics

import (
	"strconv"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// RequestDuration tracks HTTP request duration.
	RequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "api_request_duration_seconds",
			Help:    "HTTP request duration in seconds",
			Buckets: []float64{.005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5, 10, 20},
		},
		[]string{"method", "path", "status"},
	)

	// RequestsTotal tracks total HTTP requests.
	RequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "api_requests_total",
			Help: "Total HTTP requests",
		},
		[]string{"method", "path", "status"},
	)

	// ChatRequestsTotal counts chat exchanges by HTTP outcome.
	ChatRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "ai_chat_requests_total",
			Help: "Chat requests by response status",
		},
		[]string{"status"},
	)

	// LLMRequestDuration tracks provider call latency.
	LLMRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "llm_request_duration_seconds",
			Help:    "LLM provider request duration",
			Buckets: []float64{.25, .5, 1, 2, 5, 10, 15, 20, 30, 60},
		},
		[]string{"provider", "model", "outcome"},
	)

	// LLMCacheTotal counts response cache lookups.
	LLMCacheTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "llm_cache_lookups_total",
			Help: "LLM response cache lookups",
		},
		[]string{"provider", "result"},
	)

	// RateLimitedTotal counts chat requests denied by the per-user limiter.
	RateLimitedTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "ai_rate_limited_total",
			Help: "Chat requests rejected by the per-user rate limiter",
		},
	)

	// MessagesTotal tracks persisted chat messages.
	MessagesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "chat_messages_total",
			Help: "Chat messages persisted",
		},
		[]string{"role"},
	)

	// SessionsTotal tracks chat sessions created.
	SessionsTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "chat_sessions_total",
			Help: "Chat sessions created",
		},
	)
)

// RecordRequest records metrics for an HTTP request.
func RecordRequest(method, path, status string, duration float64) {
	RequestDuration.WithLabelValues(method, path, status).Observe(duration)
	RequestsTotal.WithLabelValues(method, path, status).Inc()
}

// RecordChat records the status a chat request ended with.
func RecordChat(status int) {
	ChatRequestsTotal.WithLabelValues(strconv.Itoa(status)).Inc()
}

// RecordLLMRequest records one provider call.
func RecordLLMRequest(provider, model, outcome string, duration float64) {
	LLMRequestDuration.WithLabelValues(provider, model, outcome).Observe(duration)
}

// RecordCacheLookup records a response cache hit or miss.
func RecordCacheLookup(provider string, hit bool) {
	result := "miss"
	if hit {
		result = "hit"
	}
	LLMCacheTotal.WithLabelValues(provider, result).Inc()
}
