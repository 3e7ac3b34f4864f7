// Roomcast - Conference Event Ingestion and Live Fanout
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/roomcast

package stream

import (
	"bufio"
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/goccy/go-json"
	"github.com/gorilla/websocket"

	"github.com/tomtom215/roomcast/internal/events"
)

// readSSEFrame reads lines up to the blank line ending one frame.
func readSSEFrame(t *testing.T, r *bufio.Reader) []string {
	t.Helper()
	var lines []string
	for {
		line, err := r.ReadString('\n')
		if err != nil {
			t.Fatalf("reading SSE stream: %v", err)
		}
		line = strings.TrimRight(line, "\n")
		if line == "" {
			if len(lines) == 0 {
				continue
			}
			return lines
		}
		lines = append(lines, line)
	}
}

func TestServeSSE_StreamsConnectedThenEvents(t *testing.T) {
	t.Parallel()

	bus := newTestBus(t)
	m := NewManager(bus, Config{HeartbeatInterval: time.Hour})
	srv := httptest.NewServer(http.HandlerFunc(m.ServeSSE))
	defer srv.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, srv.URL, nil)
	if err != nil {
		t.Fatal(err)
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("GET: %v", err)
	}
	defer resp.Body.Close()

	if ct := resp.Header.Get("Content-Type"); ct != "text/event-stream" {
		t.Errorf("Content-Type = %q", ct)
	}
	if cc := resp.Header.Get("Cache-Control"); cc != "no-cache" {
		t.Errorf("Cache-Control = %q", cc)
	}

	r := bufio.NewReader(resp.Body)
	first := readSSEFrame(t, r)
	want := []string{"event: connected", `data: {"message":"Connected to SSE stream"}`}
	if strings.Join(first, "|") != strings.Join(want, "|") {
		t.Fatalf("connected frame = %q, want %q", first, want)
	}

	for i := 0; i < 3; i++ {
		if err := bus.Publish(context.Background(), testEvent(i)); err != nil {
			t.Fatalf("Publish: %v", err)
		}
	}
	for i := 0; i < 3; i++ {
		frame := readSSEFrame(t, r)
		if len(frame) != 3 {
			t.Fatalf("frame %d = %q, want id/event/data lines", i, frame)
		}
		if frame[0] != "id: "+testEvent(i).ID {
			t.Errorf("frame %d id line = %q", i, frame[0])
		}
		if frame[1] != "event: conference_started" {
			t.Errorf("frame %d event line = %q", i, frame[1])
		}
		var ev events.Event
		if err := json.Unmarshal([]byte(strings.TrimPrefix(frame[2], "data: ")), &ev); err != nil {
			t.Fatalf("frame %d data: %v", i, err)
		}
		if ev.ID != testEvent(i).ID || ev.ConferenceAlias != "room-1" {
			t.Errorf("frame %d event = %+v", i, ev)
		}
	}

	cancel()
	waitFor(t, func() bool { return m.Active() == 0 })
}

func TestServeSSE_Heartbeat(t *testing.T) {
	t.Parallel()

	bus := newTestBus(t)
	m := NewManager(bus, Config{HeartbeatInterval: 20 * time.Millisecond})
	srv := httptest.NewServer(http.HandlerFunc(m.ServeSSE))
	defer srv.Close()

	resp, err := http.Get(srv.URL)
	if err != nil {
		t.Fatalf("GET: %v", err)
	}
	defer resp.Body.Close()

	r := bufio.NewReader(resp.Body)
	readSSEFrame(t, r)
	if got := readSSEFrame(t, r); len(got) != 1 || got[0] != ": keepalive" {
		t.Fatalf("heartbeat frame = %q", got)
	}
}

func wsURL(httpURL string) string {
	return "ws" + strings.TrimPrefix(httpURL, "http")
}

func TestServeWebSocket_StreamsFrames(t *testing.T) {
	t.Parallel()

	bus := newTestBus(t)
	m := NewManager(bus, Config{HeartbeatInterval: time.Hour})
	srv := httptest.NewServer(http.HandlerFunc(m.ServeWebSocket))
	defer srv.Close()

	conn, _, err := websocket.DefaultDialer.Dial(wsURL(srv.URL), nil)
	if err != nil {
		t.Fatalf("Dial: %v", err)
	}
	defer conn.Close()
	_ = conn.SetReadDeadline(time.Now().Add(5 * time.Second))

	var hello struct {
		Type events.Type       `json:"type"`
		Data map[string]string `json:"data"`
	}
	if err := conn.ReadJSON(&hello); err != nil {
		t.Fatalf("read connected frame: %v", err)
	}
	if hello.Type != events.TypeConnected || hello.Data["message"] == "" {
		t.Fatalf("connected frame = %+v", hello)
	}

	for i := 0; i < 3; i++ {
		if err := bus.Publish(context.Background(), testEvent(i)); err != nil {
			t.Fatalf("Publish: %v", err)
		}
	}
	for i := 0; i < 3; i++ {
		var frame struct {
			Type events.Type  `json:"type"`
			Data events.Event `json:"data"`
		}
		if err := conn.ReadJSON(&frame); err != nil {
			t.Fatalf("read frame %d: %v", i, err)
		}
		if frame.Type != events.TypeConferenceStarted || frame.Data.ID != testEvent(i).ID {
			t.Errorf("frame %d = %+v", i, frame)
		}
	}

	_ = conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
	conn.Close()
	waitFor(t, func() bool { return m.Active() == 0 })
}

func TestServeWebSocket_OriginCheck(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		allowed []string
		origin  string
		wantOK  bool
	}{
		{"no origin header", []string{"https://dash.example.com"}, "", true},
		{"listed origin", []string{"https://dash.example.com"}, "https://dash.example.com", true},
		{"wildcard", []string{"*"}, "https://anything.example.org", true},
		{"unlisted origin", []string{"https://dash.example.com"}, "https://evil.example.net", false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			bus := newTestBus(t)
			m := NewManager(bus, Config{AllowedOrigins: tt.allowed})
			srv := httptest.NewServer(http.HandlerFunc(m.ServeWebSocket))
			defer srv.Close()

			header := http.Header{}
			if tt.origin != "" {
				header.Set("Origin", tt.origin)
			}
			conn, resp, err := websocket.DefaultDialer.Dial(wsURL(srv.URL), header)
			if tt.wantOK {
				if err != nil {
					t.Fatalf("Dial: %v", err)
				}
				conn.Close()
				return
			}
			if err == nil {
				conn.Close()
				t.Fatal("Dial succeeded, want rejection")
			}
			if resp == nil || resp.StatusCode != http.StatusForbidden {
				t.Fatalf("response = %v, want 403", resp)
			}
		})
	}
}
