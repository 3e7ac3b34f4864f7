// Roomcast - Conference Event Ingestion and Live Fanout
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/roomcast

// Package metrics holds the Prometheus instruments for ingestion, the
// State Store, the Fanout Bus, streaming sessions and the HTTP API.
//
// Instruments are package globals registered with the default registry
// through promauto; /metrics serves them with promhttp.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// Ingestion Metrics
	WebhookEvents = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "webhook_events_total",
			Help: "Webhook deliveries by event type and outcome",
		},
		[]string{"event_type", "outcome"}, // outcome: success, ignored, error
	)

	IngestDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "ingest_duration_seconds",
			Help:    "Time from webhook receipt to publish, in seconds",
			Buckets: prometheus.DefBuckets,
		},
	)

	// State Store Metrics
	StoreOperationDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "store_operation_duration_seconds",
			Help:    "Duration of State Store operations in seconds",
			Buckets: []float64{.0005, .001, .0025, .005, .01, .025, .05, .1, .25, .5, 1},
		},
		[]string{"operation"},
	)

	StoreErrors = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "store_errors_total",
			Help: "Failed State Store operations",
		},
		[]string{"operation"},
	)

	// Fanout Bus Metrics
	BusPublished = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "bus_published_total",
			Help: "Events published on the fanout bus",
		},
		[]string{"backend"},
	)

	BusPublishErrors = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "bus_publish_errors_total",
			Help: "Failed publishes on the fanout bus",
		},
		[]string{"backend", "reason"}, // reason: closed, unavailable, broker
	)

	BusDropped = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "bus_dropped_events_total",
			Help: "Events dropped because a subscriber buffer was full",
		},
	)

	BusSubscribers = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "bus_subscribers",
			Help: "Current number of bus subscriptions",
		},
	)

	BusHealthy = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "bus_healthy",
			Help: "Whether the fanout bus accepts publishes (1) or not (0)",
		},
		[]string{"backend"},
	)

	// Circuit Breaker Metrics
	CircuitBreakerState = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "circuit_breaker_state",
			Help: "Circuit breaker state (0=closed, 1=half-open, 2=open)",
		},
		[]string{"name"},
	)

	CircuitBreakerRequests = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "circuit_breaker_requests_total",
			Help: "Total number of requests through circuit breaker",
		},
		[]string{"name", "result"}, // result: success, failure, rejected
	)

	CircuitBreakerTransitions = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "circuit_breaker_state_transitions_total",
			Help: "Total number of circuit breaker state transitions",
		},
		[]string{"name", "from_state", "to_state"},
	)

	// Streaming Session Metrics
	StreamSessionsActive = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "stream_sessions_active",
			Help: "Current number of open streaming sessions",
		},
		[]string{"transport"},
	)

	StreamSessionsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "stream_sessions_total",
			Help: "Streaming sessions opened",
		},
		[]string{"transport"},
	)

	StreamSessionDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "stream_session_duration_seconds",
			Help:    "Lifetime of closed streaming sessions in seconds",
			Buckets: []float64{1, 10, 60, 300, 900, 3600, 4 * 3600, 12 * 3600},
		},
		[]string{"transport"},
	)

	StreamEventsSent = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "stream_events_sent_total",
			Help: "Events written to streaming sessions",
		},
		[]string{"transport", "event_type"},
	)

	StreamErrors = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "stream_errors_total",
			Help: "Streaming session transport errors",
		},
		[]string{"transport", "error_type"},
	)

	// API Metrics
	APIRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "api_requests_total",
			Help: "Total number of API requests",
		},
		[]string{"method", "endpoint", "status_code"},
	)

	APIRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "api_request_duration_seconds",
			Help:    "Duration of API requests in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "endpoint"},
	)

	APIActiveRequests = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "api_active_requests",
			Help: "Current number of in-flight API requests",
		},
	)
)

// RecordWebhookEvent counts one webhook delivery.
func RecordWebhookEvent(eventType, outcome string, duration time.Duration) {
	if eventType == "" {
		eventType = "unknown"
	}
	WebhookEvents.WithLabelValues(eventType, outcome).Inc()
	IngestDuration.Observe(duration.Seconds())
}

// RecordStoreOperation records the latency and, on failure, the error of one
// State Store operation.
func RecordStoreOperation(operation string, duration time.Duration, err error) {
	StoreOperationDuration.WithLabelValues(operation).Observe(duration.Seconds())
	if err != nil {
		StoreErrors.WithLabelValues(operation).Inc()
	}
}

// RecordBusPublish records one publish attempt. reason is ignored on success.
func RecordBusPublish(backend string, err error, reason string) {
	if err != nil {
		BusPublishErrors.WithLabelValues(backend, reason).Inc()
		return
	}
	BusPublished.WithLabelValues(backend).Inc()
}

// RecordBusDrop counts one event dropped for a slow subscriber.
func RecordBusDrop() {
	BusDropped.Inc()
}

// TrackSubscriber adjusts the subscriber gauge.
func TrackSubscriber(inc bool) {
	if inc {
		BusSubscribers.Inc()
	} else {
		BusSubscribers.Dec()
	}
}

// SetBusHealthy records the last bus health check.
func SetBusHealthy(backend string, healthy bool) {
	v := 0.0
	if healthy {
		v = 1
	}
	BusHealthy.WithLabelValues(backend).Set(v)
}

// RecordBreakerResult counts one call through a named circuit breaker.
func RecordBreakerResult(name, result string) {
	CircuitBreakerRequests.WithLabelValues(name, result).Inc()
}

// RecordBreakerTransition records a state change; state is 0, 1 or 2.
func RecordBreakerTransition(name, from, to string, state float64) {
	CircuitBreakerState.WithLabelValues(name).Set(state)
	CircuitBreakerTransitions.WithLabelValues(name, from, to).Inc()
}

// StreamSessionOpened records a new session on transport.
func StreamSessionOpened(transport string) {
	StreamSessionsTotal.WithLabelValues(transport).Inc()
	StreamSessionsActive.WithLabelValues(transport).Inc()
}

// StreamSessionClosed records the end of a session on transport.
func StreamSessionClosed(transport string, lifetime time.Duration) {
	StreamSessionsActive.WithLabelValues(transport).Dec()
	StreamSessionDuration.WithLabelValues(transport).Observe(lifetime.Seconds())
}

// RecordStreamEvent counts one event written to a session.
func RecordStreamEvent(transport, eventType string) {
	StreamEventsSent.WithLabelValues(transport, eventType).Inc()
}

// RecordStreamError counts a transport failure.
func RecordStreamError(transport, errorType string) {
	StreamErrors.WithLabelValues(transport, errorType).Inc()
}

// RecordAPIRequest records an API request metric
func RecordAPIRequest(method, endpoint, statusCode string, duration time.Duration) {
	APIRequestsTotal.WithLabelValues(method, endpoint, statusCode).Inc()
	APIRequestDuration.WithLabelValues(method, endpoint).Observe(duration.Seconds())
}

// TrackActiveRequest tracks active API requests
func TrackActiveRequest(inc bool) {
	if inc {
		APIActiveRequests.Inc()
	} else {
		APIActiveRequests.Dec()
	}
}
