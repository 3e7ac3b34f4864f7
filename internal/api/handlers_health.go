// Roomcast - Conference Event Ingestion and Live Fanout
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/roomcast

package api

import (
	"context"
	"net/http"
	"time"
)

// HealthStatus is the body of both probes.
type HealthStatus struct {
	Status         string  `json:"status"`
	Uptime         float64 `json:"uptime_seconds"`
	StoreConnected *bool   `json:"store_connected,omitempty"`
	BusBackend     string  `json:"bus_backend,omitempty"`
	BusState       string  `json:"bus_state,omitempty"`
	ActiveSessions *int    `json:"active_sessions,omitempty"`
	Error          string  `json:"error,omitempty"`
}

// HealthLive handles liveness probes: 200 while the process serves HTTP.
func (h *Handler) HealthLive(w http.ResponseWriter, _ *http.Request) {
	respondJSON(w, http.StatusOK, HealthStatus{
		Status: "alive",
		Uptime: time.Since(h.startTime).Seconds(),
	})
}

// HealthReady handles readiness probes: 200 only when the store answers
// and the bus accepts publishes, 503 otherwise.
func (h *Handler) HealthReady(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.readyTimeout)
	defer cancel()

	status := HealthStatus{
		Status: "ready",
		Uptime: time.Since(h.startTime).Seconds(),
	}

	storeOK := h.store != nil && h.store.Ping(ctx) == nil
	status.StoreConnected = &storeOK
	if !storeOK {
		status.Status = "not_ready"
		status.Error = "state store unreachable"
	}

	if h.bus != nil {
		status.BusBackend = h.bus.Backend()
		status.BusState = h.bus.BreakerState()
		if err := h.bus.Healthy(); err != nil {
			status.Status = "not_ready"
			if status.Error == "" {
				status.Error = err.Error()
			}
		}
	}

	if h.streams != nil {
		active := h.streams.Active()
		status.ActiveSessions = &active
	}

	code := http.StatusOK
	if status.Status != "ready" {
		code = http.StatusServiceUnavailable
	}
	respondJSON(w, code, status)
}
