// Roomcast - Conference Event Ingestion and Live Fanout
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/roomcast

package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/tomtom215/roomcast/internal/middleware"
)

// RouterConfig selects optional routes.
type RouterConfig struct {
	// WebSocketEnabled mounts GET /stream/ws.
	WebSocketEnabled bool

	// MetricsEnabled mounts GET /metrics.
	MetricsEnabled bool
}

// Router wires handlers and middleware into a Chi mux.
type Router struct {
	handler       *Handler
	chiMiddleware *ChiMiddleware
	config        RouterConfig
}

// NewRouter creates a router.
func NewRouter(handler *Handler, mw *ChiMiddleware, cfg RouterConfig) *Router {
	if mw == nil {
		mw = NewChiMiddleware(nil)
	}
	return &Router{handler: handler, chiMiddleware: mw, config: cfg}
}

// SetupChi configures all HTTP routes.
func (router *Router) SetupChi() http.Handler {
	r := chi.NewRouter()

	// Applied to all routes, in order.
	r.Use(middleware.RequestID)
	r.Use(chimiddleware.RealIP)
	r.Use(chimiddleware.Recoverer)
	r.Use(router.chiMiddleware.CORS()) // global so OPTIONS preflight is answered

	r.Route("/health", func(r chi.Router) {
		r.Get("/live", router.handler.HealthLive)
		r.Get("/ready", router.handler.HealthReady)
	})

	// Request/response endpoints. Streams are excluded: their duration is
	// the session lifetime, tracked by the stream metrics instead.
	r.Group(func(r chi.Router) {
		r.Use(middleware.PrometheusMetrics)

		r.With(router.chiMiddleware.RateLimitWebhook()).Post("/webhook", router.handler.Webhook)

		r.Route("/active-conferences-data", func(r chi.Router) {
			r.Get("/", router.handler.ActiveConferences)
			r.Get("/{conferenceAlias}/participants", router.handler.ConferenceParticipants)
		})
	})

	if router.handler.streams != nil {
		router.mountStreams(r)
	}

	if router.config.MetricsEnabled {
		r.Handle("/metrics", promhttp.Handler())
	}

	return r
}

func (router *Router) mountStreams(r chi.Router) {
	r.Route("/stream", func(r chi.Router) {
		r.Get("/", router.handler.streams.ServeSSE)
		if router.config.WebSocketEnabled {
			r.Get("/ws", router.handler.streams.ServeWebSocket)
		} else {
			r.Get("/ws", func(w http.ResponseWriter, req *http.Request) {
				respondError(w, req, http.StatusNotFound, "websocket "+ErrStreamingDisabled.Error(), nil)
			})
		}
	})
}
