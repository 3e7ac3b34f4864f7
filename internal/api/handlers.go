// Roomcast - Conference Event Ingestion and Live Fanout
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/roomcast

package api

import (
	"context"
	"net/http"
	"time"

	"github.com/tomtom215/roomcast/internal/ingest"
	"github.com/tomtom215/roomcast/internal/models"
	"github.com/tomtom215/roomcast/internal/snapshot"
)

// Ingestor handles one webhook payload.
type Ingestor interface {
	Ingest(ctx context.Context, payload []byte) (ingest.Outcome, error)
}

// Snapshots serves point-in-time reads.
type Snapshots interface {
	Snapshot(ctx context.Context) (snapshot.Snapshot, error)
	Participants(ctx context.Context, alias string) ([]models.Participant, error)
}

// Streams attaches live sessions.
type Streams interface {
	ServeSSE(w http.ResponseWriter, r *http.Request)
	ServeWebSocket(w http.ResponseWriter, r *http.Request)
	Active() int
}

// Pinger reports whether the State Store is reachable.
type Pinger interface {
	Ping(ctx context.Context) error
}

// BusStatus reports the fanout bus condition.
type BusStatus interface {
	Backend() string
	BreakerState() string
	Healthy() error
}

// Handler contains dependencies for API handlers.
//
// Handler methods are split across files:
//   - handlers_webhook.go: webhook ingestion
//   - handlers_snapshot.go: snapshot reads
//   - handlers_health.go: liveness and readiness probes
type Handler struct {
	ingestor       Ingestor
	snapshots      Snapshots
	streams        Streams
	store          Pinger
	bus            BusStatus
	maxWebhookBody int64
	readyTimeout   time.Duration
	startTime      time.Time
}

// HandlerConfig tunes request handling.
type HandlerConfig struct {
	// MaxWebhookBytes caps a webhook body; larger bodies get 413.
	MaxWebhookBytes int64

	// ReadyTimeout bounds the store ping in the readiness probe.
	ReadyTimeout time.Duration
}

// DefaultHandlerConfig returns the request handling defaults.
func DefaultHandlerConfig() HandlerConfig {
	return HandlerConfig{
		MaxWebhookBytes: 1 << 20,
		ReadyTimeout:    2 * time.Second,
	}
}

// NewHandler creates a handler over the ingestion, snapshot and stream
// components. store and bus feed the readiness probe only.
func NewHandler(ing Ingestor, snaps Snapshots, streams Streams, store Pinger, bus BusStatus, cfg HandlerConfig) *Handler {
	def := DefaultHandlerConfig()
	if cfg.MaxWebhookBytes <= 0 {
		cfg.MaxWebhookBytes = def.MaxWebhookBytes
	}
	if cfg.ReadyTimeout <= 0 {
		cfg.ReadyTimeout = def.ReadyTimeout
	}
	return &Handler{
		ingestor:       ing,
		snapshots:      snaps,
		streams:        streams,
		store:          store,
		bus:            bus,
		maxWebhookBody: cfg.MaxWebhookBytes,
		readyTimeout:   cfg.ReadyTimeout,
		startTime:      time.Now(),
	}
}
