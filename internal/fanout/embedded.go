// Roomcast - Conference Event Ingestion and Live Fanout
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/roomcast

package fanout

import (
	"context"
	"fmt"
	"time"

	"github.com/nats-io/nats-server/v2/server"
	"github.com/rs/zerolog"

	"github.com/tomtom215/roomcast/internal/logging"
)

// EmbeddedConfig configures an in-process NATS server.
type EmbeddedConfig struct {
	Host string
	// Port of -1 picks a free port.
	Port         int
	MaxPayload   int32
	ReadyTimeout time.Duration
}

// EmbeddedServer is a NATS server running inside this process, for
// single-node deployments that still want the NATS bus backend.
type EmbeddedServer struct {
	server    *server.Server
	clientURL string
}

// NewEmbeddedServer starts a core NATS server and waits until it accepts
// connections.
func NewEmbeddedServer(cfg EmbeddedConfig) (*EmbeddedServer, error) {
	if cfg.Host == "" {
		cfg.Host = "127.0.0.1"
	}
	if cfg.Port == 0 {
		cfg.Port = server.DEFAULT_PORT
	}
	if cfg.MaxPayload <= 0 {
		cfg.MaxPayload = 1024 * 1024
	}
	if cfg.ReadyTimeout <= 0 {
		cfg.ReadyTimeout = 10 * time.Second
	}

	ns, err := server.NewServer(&server.Options{
		ServerName: "roomcast-bus",
		Host:       cfg.Host,
		Port:       cfg.Port,
		JetStream:  false,
		MaxPayload: cfg.MaxPayload,
		NoSigs:     true,
	})
	if err != nil {
		return nil, fmt.Errorf("create NATS server: %w", err)
	}
	ns.SetLoggerV2(&serverLogger{log: logging.WithComponent("nats-server")}, false, false, false)

	go ns.Start()

	if !ns.ReadyForConnections(cfg.ReadyTimeout) {
		ns.Shutdown()
		return nil, fmt.Errorf("NATS server not ready within %s", cfg.ReadyTimeout)
	}

	logging.Info().Str("url", ns.ClientURL()).Msg("Embedded NATS server started")
	return &EmbeddedServer{server: ns, clientURL: ns.ClientURL()}, nil
}

// ClientURL returns the connection URL for clients.
func (s *EmbeddedServer) ClientURL() string {
	return s.clientURL
}

// IsRunning reports server health.
func (s *EmbeddedServer) IsRunning() bool {
	return s.server.Running()
}

// Shutdown stops the server, waiting for it to exit unless ctx ends first.
func (s *EmbeddedServer) Shutdown(ctx context.Context) error {
	s.server.Shutdown()
	done := make(chan struct{})
	go func() {
		s.server.WaitForShutdown()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// serverLogger routes nats-server logs through zerolog.
type serverLogger struct {
	log zerolog.Logger
}

func (l *serverLogger) Noticef(format string, v ...interface{}) { l.log.Info().Msgf(format, v...) }
func (l *serverLogger) Warnf(format string, v ...interface{})   { l.log.Warn().Msgf(format, v...) }
func (l *serverLogger) Fatalf(format string, v ...interface{})  { l.log.Error().Msgf(format, v...) }
func (l *serverLogger) Errorf(format string, v ...interface{})  { l.log.Error().Msgf(format, v...) }
func (l *serverLogger) Debugf(format string, v ...interface{})  { l.log.Debug().Msgf(format, v...) }
func (l *serverLogger) Tracef(format string, v ...interface{})  { l.log.Trace().Msgf(format, v...) }
