// Roomcast - Conference Event Ingestion and Live Fanout
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/roomcast

package stream

import (
	"errors"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/goccy/go-json"
	"github.com/gorilla/websocket"

	"github.com/tomtom215/roomcast/internal/events"
	"github.com/tomtom215/roomcast/internal/logging"
)

// maxInboundMessage caps frames read from clients, which are discarded.
const maxInboundMessage = 512

// Frame is the envelope of every WebSocket message.
type Frame struct {
	Type events.Type `json:"type"`
	Data any         `json:"data"`
}

type wsTransport struct {
	conn      *websocket.Conn
	writeWait time.Duration
	pongWait  time.Duration

	done      chan struct{}
	closeOnce sync.Once
}

// ServeWebSocket upgrades the request and streams events as JSON frames.
func (m *Manager) ServeWebSocket(w http.ResponseWriter, r *http.Request) {
	upgrader := websocket.Upgrader{
		ReadBufferSize:   1024,
		WriteBufferSize:  4096,
		HandshakeTimeout: 10 * time.Second,
		CheckOrigin:      m.checkOrigin,
	}
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		// Upgrade has already written the HTTP error.
		logging.Ctx(r.Context()).Warn().Err(err).Msg("WebSocket upgrade failed")
		return
	}

	t := &wsTransport{
		conn:      conn,
		writeWait: m.cfg.WriteWait,
		pongWait:  m.cfg.HeartbeatInterval * 10 / 9,
		done:      make(chan struct{}),
	}
	// Hijacked connections outlive the request context's normal cancellation,
	// so the session watches the read pump instead.
	go t.readPump()

	if err := m.Serve(r.Context(), t); err != nil && !errors.Is(err, ErrTransportClosed) {
		logging.Ctx(r.Context()).Warn().Err(err).Msg("WebSocket session ended with error")
	}
}

func (m *Manager) checkOrigin(r *http.Request) bool {
	origin := r.Header.Get("Origin")
	if origin == "" {
		return true
	}
	for _, allowed := range m.cfg.AllowedOrigins {
		if allowed == "*" || allowed == origin {
			return true
		}
	}
	logging.Warn().Str("origin", logging.Sanitize(origin)).Msg("WebSocket connection rejected from unauthorized origin")
	return false
}

// readPump discards client frames and tracks liveness through pongs.
func (t *wsTransport) readPump() {
	defer t.markDone()

	t.conn.SetReadLimit(maxInboundMessage)
	if err := t.conn.SetReadDeadline(time.Now().Add(t.pongWait)); err != nil {
		return
	}
	t.conn.SetPongHandler(func(string) error {
		return t.conn.SetReadDeadline(time.Now().Add(t.pongWait))
	})
	for {
		if _, _, err := t.conn.NextReader(); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure, websocket.CloseAbnormalClosure) {
				logging.Debug().Err(err).Msg("Unexpected WebSocket close")
			}
			return
		}
	}
}

func (t *wsTransport) markDone() {
	t.closeOnce.Do(func() { close(t.done) })
}

func (t *wsTransport) Name() string { return "websocket" }

func (t *wsTransport) SendConnected() error {
	return t.writeFrame(Frame{
		Type: events.TypeConnected,
		Data: map[string]string{"message": "Connected to WebSocket stream"},
	})
}

func (t *wsTransport) Send(ev *events.Event) error {
	if err := ev.Validate(); err != nil {
		return err
	}
	return t.writeFrame(Frame{Type: ev.Type, Data: ev})
}

func (t *wsTransport) Heartbeat() error {
	if err := t.conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(t.writeWait)); err != nil {
		return fmt.Errorf("%w: %v", ErrTransportClosed, err)
	}
	return nil
}

func (t *wsTransport) Done() <-chan struct{} { return t.done }

func (t *wsTransport) Close() error {
	_ = t.conn.WriteControl(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
		time.Now().Add(t.writeWait))
	err := t.conn.Close()
	t.markDone()
	return err
}

func (t *wsTransport) writeFrame(f Frame) error {
	data, err := json.Marshal(f)
	if err != nil {
		return err
	}
	if err := t.conn.SetWriteDeadline(time.Now().Add(t.writeWait)); err != nil {
		return fmt.Errorf("%w: %v", ErrTransportClosed, err)
	}
	if err := t.conn.WriteMessage(websocket.TextMessage, data); err != nil {
		return fmt.Errorf("%w: %v", ErrTransportClosed, err)
	}
	return nil
}
