// Roomcast - Conference Event Ingestion and Live Fanout
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/roomcast

package stream

import (
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/tomtom215/roomcast/internal/events"
	"github.com/tomtom215/roomcast/internal/logging"
)

// sseConnectedPayload is the data line of the connected acknowledgment.
const sseConnectedPayload = `{"message":"Connected to SSE stream"}`

// sseTransport writes text/event-stream frames to an HTTP response.
type sseTransport struct {
	w         io.Writer
	rc        *http.ResponseController
	done      <-chan struct{}
	writeWait time.Duration
}

// ServeSSE streams events as Server-Sent Events until the client leaves.
func (m *Manager) ServeSSE(w http.ResponseWriter, r *http.Request) {
	rc := http.NewResponseController(w)

	h := w.Header()
	h.Set("Content-Type", "text/event-stream")
	h.Set("Cache-Control", "no-cache")
	h.Set("Connection", "keep-alive")
	h.Set("X-Accel-Buffering", "no")
	w.WriteHeader(http.StatusOK)

	if err := rc.Flush(); err != nil {
		logging.Ctx(r.Context()).Error().Err(err).Msg("Response does not support streaming")
		return
	}

	t := &sseTransport{
		w:         w,
		rc:        rc,
		done:      r.Context().Done(),
		writeWait: m.cfg.WriteWait,
	}
	if err := m.Serve(r.Context(), t); err != nil && !errors.Is(err, ErrTransportClosed) {
		logging.Ctx(r.Context()).Warn().Err(err).Msg("SSE session ended with error")
	}
}

func (t *sseTransport) Name() string { return "sse" }

func (t *sseTransport) SendConnected() error {
	return t.write(fmt.Sprintf("event: %s\ndata: %s\n\n", events.TypeConnected, sseConnectedPayload))
}

func (t *sseTransport) Send(ev *events.Event) error {
	data, err := events.Marshal(ev)
	if err != nil {
		return err
	}
	frame := fmt.Sprintf("event: %s\ndata: %s\n\n", ev.Type, data)
	if ev.ID != "" {
		frame = "id: " + ev.ID + "\n" + frame
	}
	return t.write(frame)
}

func (t *sseTransport) Heartbeat() error {
	return t.write(": keepalive\n\n")
}

func (t *sseTransport) Done() <-chan struct{} { return t.done }

// Close is a no-op; the HTTP server owns the connection.
func (t *sseTransport) Close() error { return nil }

// write sends one frame under its own deadline.
func (t *sseTransport) write(frame string) error {
	if err := t.rc.SetWriteDeadline(time.Now().Add(t.writeWait)); err != nil && !errors.Is(err, http.ErrNotSupported) {
		return fmt.Errorf("%w: %v", ErrTransportClosed, err)
	}
	if _, err := io.WriteString(t.w, frame); err != nil {
		return fmt.Errorf("%w: %v", ErrTransportClosed, err)
	}
	if err := t.rc.Flush(); err != nil {
		return fmt.Errorf("%w: %v", ErrTransportClosed, err)
	}
	return nil
}
