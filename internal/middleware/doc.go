// Roomcast - Conference Event Ingestion and Live Fanout
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/roomcast

// Package middleware provides HTTP middleware shared by every route:
// request identification for log correlation and Prometheus request
// instrumentation. Both are chi-compatible (func(http.Handler) http.Handler)
// and keep the wrapped ResponseWriter's Flusher and Hijacker, which the
// SSE and WebSocket streams depend on.
package middleware
