// Roomcast - Conference Event Ingestion and Live Fanout
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/roomcast

package viewer

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/goccy/go-json"
	"github.com/gorilla/websocket"

	"github.com/tomtom215/roomcast/internal/events"
	"github.com/tomtom215/roomcast/internal/logging"
)

// maxFrameBytes bounds one SSE line or WebSocket message.
const maxFrameBytes = 1 << 20

// frame is one decoded stream message.
type frame struct {
	connected bool
	event     *events.Event
}

type eventStream interface {
	// Next blocks for the next frame. Unknown or undecodable frames come
	// back with a nil event.
	Next() (frame, error)
	Close() error
}

func decodeFrame(typ events.Type, data []byte) frame {
	if typ == events.TypeConnected {
		return frame{connected: true}
	}
	var ev events.Event
	if err := json.Unmarshal(data, &ev); err != nil {
		logging.Debug().Err(err).Str("event_type", string(typ)).Msg("Skipping undecodable stream frame")
		return frame{}
	}
	if ev.Type == "" {
		ev.Type = typ
	}
	if err := ev.Validate(); err != nil {
		logging.Debug().Err(err).Str("event_type", string(typ)).Msg("Skipping invalid stream event")
		return frame{}
	}
	return frame{event: &ev}
}

type sseStream struct {
	body io.ReadCloser
	sc   *bufio.Scanner
}

func openSSE(ctx context.Context, client *http.Client, url string) (*sseStream, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Accept", "text/event-stream")
	req.Header.Set("Cache-Control", "no-cache")

	resp, err := client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("open stream: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		resp.Body.Close()
		return nil, fmt.Errorf("open stream: %w: %d", ErrUnexpectedStatus, resp.StatusCode)
	}
	if ct := resp.Header.Get("Content-Type"); !strings.HasPrefix(ct, "text/event-stream") {
		resp.Body.Close()
		return nil, fmt.Errorf("open stream: unexpected content type %q", ct)
	}

	sc := bufio.NewScanner(resp.Body)
	sc.Buffer(make([]byte, 0, 64*1024), maxFrameBytes)
	return &sseStream{body: resp.Body, sc: sc}, nil
}

// Next reads lines up to the blank line that ends a frame. Comment lines
// (heartbeats) and id lines are skipped; multi-line data is joined with
// newlines.
func (s *sseStream) Next() (frame, error) {
	var (
		typ  string
		data []string
	)
	for s.sc.Scan() {
		line := s.sc.Text()
		switch {
		case line == "":
			if typ == "" && len(data) == 0 {
				continue
			}
			if typ == "" {
				typ = "message"
			}
			return decodeFrame(events.Type(typ), []byte(strings.Join(data, "\n"))), nil
		case strings.HasPrefix(line, ":"):
		default:
			field, value, _ := strings.Cut(line, ":")
			value = strings.TrimPrefix(value, " ")
			switch field {
			case "event":
				typ = value
			case "data":
				data = append(data, value)
			}
		}
	}
	if err := s.sc.Err(); err != nil {
		return frame{}, fmt.Errorf("read stream: %w", err)
	}
	return frame{}, fmt.Errorf("read stream: %w", io.EOF)
}

func (s *sseStream) Close() error { return s.body.Close() }

type wsStream struct {
	conn *websocket.Conn
}

func dialWebSocket(ctx context.Context, url string) (*wsStream, error) {
	conn, resp, err := websocket.DefaultDialer.DialContext(ctx, url, nil)
	if err != nil {
		if resp != nil {
			return nil, fmt.Errorf("open websocket: %w: %d", ErrUnexpectedStatus, resp.StatusCode)
		}
		return nil, fmt.Errorf("open websocket: %w", err)
	}
	conn.SetReadLimit(maxFrameBytes)
	return &wsStream{conn: conn}, nil
}

// Next reads one message. Server pings are answered by the default ping
// handler while reading.
func (s *wsStream) Next() (frame, error) {
	_, data, err := s.conn.ReadMessage()
	if err != nil {
		return frame{}, fmt.Errorf("read websocket: %w", err)
	}
	var env struct {
		Type events.Type     `json:"type"`
		Data json.RawMessage `json:"data"`
	}
	if err := json.Unmarshal(data, &env); err != nil {
		logging.Debug().Err(err).Msg("Skipping undecodable websocket frame")
		return frame{}, nil
	}
	return decodeFrame(env.Type, env.Data), nil
}

func (s *wsStream) Close() error { return s.conn.Close() }
