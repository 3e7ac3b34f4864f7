// Roomcast - Conference Event Ingestion and Live Fanout
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/roomcast

package stream

import (
	"context"
	"errors"
	"sync/atomic"
	"time"

	"github.com/tomtom215/roomcast/internal/events"
)

// ErrTransportClosed wraps every failure to write to, or read from, a
// session's connection. It ends that session only.
var ErrTransportClosed = errors.New("stream transport closed")

// State is a session's position in its lifecycle. Sessions only move
// forward: Connecting, Subscribed, Streaming, Closed.
type State int32

const (
	StateConnecting State = iota
	StateSubscribed
	StateStreaming
	StateClosed
)

func (s State) String() string {
	switch s {
	case StateConnecting:
		return "connecting"
	case StateSubscribed:
		return "subscribed"
	case StateStreaming:
		return "streaming"
	case StateClosed:
		return "closed"
	default:
		return "unknown"
	}
}

// Transport writes one session's events to its client connection.
// Only the session goroutine calls Send, SendConnected and Heartbeat.
type Transport interface {
	// Name labels logs and metrics, e.g. "sse".
	Name() string

	// SendConnected writes the acknowledgment that precedes all events.
	SendConnected() error

	// Send writes one event.
	Send(ev *events.Event) error

	// Heartbeat keeps intermediaries from timing the connection out.
	Heartbeat() error

	// Done is closed when the client goes away.
	Done() <-chan struct{}

	// Close releases the connection.
	Close() error
}

// Session is one client's live stream.
type Session struct {
	id        string
	transport string
	opened    time.Time
	state     atomic.Int32
	sent      atomic.Uint64
	cancel    context.CancelFunc
}

// ID returns the session id.
func (s *Session) ID() string { return s.id }

// State returns the current lifecycle state.
func (s *Session) State() State { return State(s.state.Load()) }

// Sent returns the number of events written, excluding the acknowledgment.
func (s *Session) Sent() uint64 { return s.sent.Load() }

// advance moves the session to next. Moving backwards is ignored.
func (s *Session) advance(next State) bool {
	for {
		cur := s.state.Load()
		if State(cur) >= next {
			return false
		}
		if s.state.CompareAndSwap(cur, int32(next)) {
			return true
		}
	}
}

// SessionInfo is a point-in-time description of a session.
type SessionInfo struct {
	ID        string    `json:"id"`
	Transport string    `json:"transport"`
	State     string    `json:"state"`
	Opened    time.Time `json:"opened"`
	Sent      uint64    `json:"sent"`
}

func (s *Session) info() SessionInfo {
	return SessionInfo{
		ID:        s.id,
		Transport: s.transport,
		State:     s.State().String(),
		Opened:    s.opened,
		Sent:      s.Sent(),
	}
}
