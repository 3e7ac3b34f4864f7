// Roomcast - Conference Event Ingestion and Live Fanout
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/roomcast

package api

import (
	"net/http"
	"time"

	"github.com/go-chi/cors"
	"github.com/go-chi/httprate"

	"github.com/tomtom215/roomcast/internal/ingest"
	"github.com/tomtom215/roomcast/internal/logging"
)

// ChiMiddlewareConfig holds configuration for Chi middleware factories.
type ChiMiddlewareConfig struct {
	// CORS configuration
	CORSAllowedOrigins []string
	CORSAllowedMethods []string
	CORSAllowedHeaders []string
	CORSMaxAge         int // seconds

	// Webhook rate limiting, per client IP
	WebhookRateLimit    int
	WebhookRateWindow   time.Duration
	WebhookRateDisabled bool
}

// DefaultChiMiddlewareConfig allows any origin, matching the dashboards
// that read the snapshot and stream endpoints cross-origin.
func DefaultChiMiddlewareConfig() *ChiMiddlewareConfig {
	return &ChiMiddlewareConfig{
		CORSAllowedOrigins: []string{"*"},
		CORSAllowedMethods: []string{"GET", "POST", "OPTIONS"},
		CORSAllowedHeaders: []string{"Content-Type", "Last-Event-ID", "X-Request-ID"},
		CORSMaxAge:         86400,

		WebhookRateLimit:  600,
		WebhookRateWindow: time.Minute,
	}
}

// ChiMiddleware provides Chi-compatible middleware factories.
type ChiMiddleware struct {
	config *ChiMiddlewareConfig
	cors   func(http.Handler) http.Handler
}

// NewChiMiddleware creates a middleware factory with the given configuration.
func NewChiMiddleware(config *ChiMiddlewareConfig) *ChiMiddleware {
	if config == nil {
		config = DefaultChiMiddlewareConfig()
	}

	corsHandler := cors.Handler(cors.Options{
		AllowedOrigins:   config.CORSAllowedOrigins,
		AllowedMethods:   config.CORSAllowedMethods,
		AllowedHeaders:   config.CORSAllowedHeaders,
		ExposedHeaders:   []string{"X-Request-ID"},
		AllowCredentials: false,
		MaxAge:           config.CORSMaxAge,
	})

	return &ChiMiddleware{
		config: config,
		cors:   corsHandler,
	}
}

// CORS returns the go-chi/cors middleware.
func (m *ChiMiddleware) CORS() func(http.Handler) http.Handler {
	return m.cors
}

// RateLimitWebhook limits webhook calls per client IP. Rejections carry a
// webhook-shaped acknowledgment so senders can log them uniformly.
func (m *ChiMiddleware) RateLimitWebhook() func(http.Handler) http.Handler {
	if m.config.WebhookRateDisabled || m.config.WebhookRateLimit <= 0 {
		return func(next http.Handler) http.Handler {
			return next
		}
	}

	return httprate.Limit(
		m.config.WebhookRateLimit,
		m.config.WebhookRateWindow,
		httprate.WithKeyFuncs(httprate.KeyByIP),
		httprate.WithLimitHandler(func(w http.ResponseWriter, r *http.Request) {
			logging.Ctx(r.Context()).Warn().
				Str("remote_addr", logging.Sanitize(r.RemoteAddr)).
				Msg("Webhook rate limit exceeded")
			respondJSON(w, http.StatusTooManyRequests, ingest.Outcome{
				Status:  ingest.StatusError,
				Message: "rate limit exceeded",
			})
		}),
	)
}
