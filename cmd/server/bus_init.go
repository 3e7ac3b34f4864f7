// Roomcast - Conference Event Ingestion and Live Fanout
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/roomcast

package main

import (
	"context"
	"fmt"
	"time"

	"github.com/tomtom215/roomcast/internal/config"
	"github.com/tomtom215/roomcast/internal/fanout"
	"github.com/tomtom215/roomcast/internal/logging"
)

// initBus builds the fanout bus for cfg.Bus.Backend, starting an embedded
// NATS server first when configured. The returned func closes the bus
// and then the embedded server.
func initBus(cfg *config.Config) (*fanout.Bus, func(), error) {
	busCfg := fanout.Config{
		Topic:            cfg.Bus.Topic,
		SubscriberBuffer: cfg.Bus.SubscriberBuffer,
		Breaker: fanout.BreakerConfig{
			Name:             "fanout-bus",
			MaxRequests:      1,
			Interval:         cfg.Bus.BreakerInterval,
			Timeout:          cfg.Bus.BreakerTimeout,
			FailureThreshold: cfg.Bus.BreakerFailureThreshold,
		},
	}
	wmLogger := logging.NewWatermillLogger()

	if cfg.Bus.Backend != "nats" {
		bus := fanout.NewInProcess(busCfg, wmLogger)
		logging.Info().Msg("Fanout bus using in-process backend")
		return bus, closeWith(bus, nil), nil
	}

	url := cfg.NATS.URL
	var embedded *fanout.EmbeddedServer
	if cfg.NATS.Embedded {
		var err error
		embedded, err = fanout.NewEmbeddedServer(fanout.EmbeddedConfig{
			Host: cfg.NATS.EmbeddedHost,
			Port: cfg.NATS.EmbeddedPort,
		})
		if err != nil {
			return nil, nil, fmt.Errorf("start embedded NATS: %w", err)
		}
		url = embedded.ClientURL()
	}

	bus, err := fanout.NewNATS(busCfg, fanout.NATSConfig{
		URL:           url,
		Name:          cfg.NATS.ClientName,
		MaxReconnects: cfg.NATS.MaxReconnects,
		ReconnectWait: cfg.NATS.ReconnectWait,
	}, wmLogger)
	if err != nil {
		if embedded != nil {
			shutdownEmbedded(embedded)
		}
		return nil, nil, err
	}

	logging.Info().Str("url", url).Bool("embedded", embedded != nil).Msg("Fanout bus using NATS backend")
	return bus, closeWith(bus, embedded), nil
}

func closeWith(bus *fanout.Bus, embedded *fanout.EmbeddedServer) func() {
	return func() {
		if err := bus.Close(); err != nil {
			logging.Error().Err(err).Msg("Error closing fanout bus")
		}
		if embedded != nil {
			shutdownEmbedded(embedded)
		}
	}
}

func shutdownEmbedded(s *fanout.EmbeddedServer) {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := s.Shutdown(ctx); err != nil {
		logging.Error().Err(err).Msg("Error stopping embedded NATS server")
	}
}
