// Roomcast - Conference Event Ingestion and Live Fanout
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/roomcast

// Package stream is the Streaming Session Manager. It attaches each
// client connection to the fanout bus and writes events to it in the
// order the bus delivers them.
//
// Every session walks Connecting -> Subscribed -> Streaming -> Closed.
// The "connected" acknowledgment is written after the bus subscription
// exists and before any event. Closed is terminal: a client that loses
// its connection opens a new session. Sessions never touch the State
// Store.
//
// Two transports are provided: Server-Sent Events (ServeSSE) and
// WebSocket (ServeWebSocket). Both are one-directional.
package stream

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/tomtom215/roomcast/internal/fanout"
	"github.com/tomtom215/roomcast/internal/logging"
	"github.com/tomtom215/roomcast/internal/metrics"
)

// ErrShuttingDown is returned by Serve once the manager has stopped.
var ErrShuttingDown = errors.New("stream manager shutting down")

// Bus is the part of the fanout bus a session needs.
type Bus interface {
	Subscribe(ctx context.Context) (*fanout.Subscription, error)
}

// Config tunes session transports.
type Config struct {
	// HeartbeatInterval spaces SSE keepalive comments and WebSocket pings.
	HeartbeatInterval time.Duration

	// WriteWait bounds a single write to a client.
	WriteWait time.Duration

	// StatsInterval spaces the housekeeping log line in Run.
	StatsInterval time.Duration

	// AllowedOrigins lists WebSocket origins; "*" allows any. Requests
	// without an Origin header (non-browser clients) are always allowed.
	AllowedOrigins []string
}

// DefaultConfig returns the transport defaults.
func DefaultConfig() Config {
	return Config{
		HeartbeatInterval: 30 * time.Second,
		WriteWait:         10 * time.Second,
		StatsInterval:     time.Minute,
		AllowedOrigins:    []string{"*"},
	}
}

// Manager owns all streaming sessions.
type Manager struct {
	bus Bus
	cfg Config

	mu       sync.Mutex
	sessions map[string]*Session
	stopping bool
	wg       sync.WaitGroup
}

// NewManager returns a manager attaching sessions to bus.
func NewManager(bus Bus, cfg Config) *Manager {
	def := DefaultConfig()
	if cfg.HeartbeatInterval <= 0 {
		cfg.HeartbeatInterval = def.HeartbeatInterval
	}
	if cfg.WriteWait <= 0 {
		cfg.WriteWait = def.WriteWait
	}
	if cfg.StatsInterval <= 0 {
		cfg.StatsInterval = def.StatsInterval
	}
	return &Manager{
		bus:      bus,
		cfg:      cfg,
		sessions: make(map[string]*Session),
	}
}

// Serve runs one session over t until the client leaves, a write fails,
// ctx ends or the manager shuts down. t is always closed on return.
func (m *Manager) Serve(ctx context.Context, t Transport) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	s := &Session{
		id:        uuid.NewString(),
		transport: t.Name(),
		opened:    time.Now(),
		cancel:    cancel,
	}
	if err := m.register(s); err != nil {
		_ = t.Close()
		return err
	}

	log := logging.Ctx(logging.ContextWithSessionID(ctx, s.id)).With().
		Str("transport", s.transport).
		Logger()

	metrics.StreamSessionOpened(s.transport)
	var dropped uint64
	defer func() {
		s.advance(StateClosed)
		_ = t.Close()
		m.unregister(s)
		lifetime := time.Since(s.opened)
		metrics.StreamSessionClosed(s.transport, lifetime)
		log.Info().
			Dur("duration", lifetime).
			Uint64("sent", s.Sent()).
			Uint64("dropped", dropped).
			Msg("Stream session closed")
	}()

	sub, err := m.bus.Subscribe(ctx)
	if err != nil {
		log.Error().Err(err).Msg("Stream session could not subscribe")
		return fmt.Errorf("subscribe session %s: %w", s.id, err)
	}
	defer func() {
		sub.Close()
		dropped = sub.Dropped()
	}()
	s.advance(StateSubscribed)

	if err := t.SendConnected(); err != nil {
		metrics.RecordStreamError(s.transport, "write")
		return err
	}
	s.advance(StateStreaming)
	log.Info().Msg("Stream session opened")

	heartbeat := time.NewTicker(m.cfg.HeartbeatInterval)
	defer heartbeat.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-t.Done():
			return nil
		case ev, ok := <-sub.Events():
			if !ok {
				log.Debug().Msg("Bus subscription ended")
				return nil
			}
			if err := t.Send(ev); err != nil {
				metrics.RecordStreamError(s.transport, "write")
				log.Debug().Err(err).Msg("Stream write failed")
				return err
			}
			s.sent.Add(1)
			metrics.RecordStreamEvent(s.transport, string(ev.Type))
		case <-heartbeat.C:
			if err := t.Heartbeat(); err != nil {
				metrics.RecordStreamError(s.transport, "heartbeat")
				return err
			}
		}
	}
}

func (m *Manager) register(s *Session) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.stopping {
		return ErrShuttingDown
	}
	m.sessions[s.id] = s
	m.wg.Add(1)
	return nil
}

func (m *Manager) unregister(s *Session) {
	m.mu.Lock()
	if _, ok := m.sessions[s.id]; ok {
		delete(m.sessions, s.id)
		m.wg.Done()
	}
	m.mu.Unlock()
}

// Active returns the number of open sessions.
func (m *Manager) Active() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.sessions)
}

// Sessions describes every open session, oldest first.
func (m *Manager) Sessions() []SessionInfo {
	m.mu.Lock()
	out := make([]SessionInfo, 0, len(m.sessions))
	for _, s := range m.sessions {
		out = append(out, s.info())
	}
	m.mu.Unlock()
	sort.Slice(out, func(i, j int) bool {
		if out[i].Opened.Equal(out[j].Opened) {
			return out[i].ID < out[j].ID
		}
		return out[i].Opened.Before(out[j].Opened)
	})
	return out
}

// Run performs housekeeping until ctx ends, then closes every session and
// waits for them to finish. It implements suture.Service.
func (m *Manager) Run(ctx context.Context) error {
	ticker := time.NewTicker(m.cfg.StatsInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			m.shutdown()
			return ctx.Err()
		case <-ticker.C:
			logging.Debug().Int("active_sessions", m.Active()).Msg("Stream manager stats")
		}
	}
}

func (m *Manager) shutdown() {
	m.mu.Lock()
	m.stopping = true
	for _, s := range m.sessions {
		s.cancel()
	}
	n := len(m.sessions)
	m.mu.Unlock()

	if n > 0 {
		logging.Info().Int("sessions", n).Msg("Closing stream sessions")
	}
	m.wg.Wait()
}
