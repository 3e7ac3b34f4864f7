// Roomcast - Conference Event Ingestion and Live Fanout
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/roomcast

package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/tomtom215/roomcast/internal/api"
	"github.com/tomtom215/roomcast/internal/config"
	"github.com/tomtom215/roomcast/internal/ingest"
	"github.com/tomtom215/roomcast/internal/logging"
	"github.com/tomtom215/roomcast/internal/snapshot"
	"github.com/tomtom215/roomcast/internal/store"
	"github.com/tomtom215/roomcast/internal/stream"
	"github.com/tomtom215/roomcast/internal/supervisor"
	"github.com/tomtom215/roomcast/internal/supervisor/services"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		logging.Fatal().Err(err).Msg("Failed to load configuration")
	}

	logging.Init(logging.Config{
		Level:     cfg.Logging.Level,
		Format:    cfg.Logging.Format,
		Caller:    cfg.Logging.Caller,
		Timestamp: true,
		Output:    os.Stdout,
	})

	if err := run(cfg); err != nil {
		logging.Fatal().Err(err).Msg("Roomcast stopped with error")
	}
	logging.Info().Msg("Application stopped gracefully")
}

func run(cfg *config.Config) error {
	logging.Info().
		Str("db_path", cfg.Database.Path).
		Str("bus_backend", cfg.Bus.Backend).
		Str("environment", cfg.Server.Environment).
		Msg("Starting Roomcast")

	if !cfg.IsProduction() {
		for _, origin := range cfg.Security.CORSOrigins {
			if origin == "*" {
				logging.Warn().Msg("CORS allows any origin (CORS_ORIGINS=*); set explicit origins in production")
				break
			}
		}
	}

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	st, err := store.Open(ctx, cfg.Database.Path, store.Options{
		BusyTimeout:  cfg.Database.BusyTimeout,
		MaxOpenConns: cfg.Database.MaxOpenConns,
	})
	if err != nil {
		return err
	}
	defer func() {
		if err := st.Close(); err != nil {
			logging.Error().Err(err).Msg("Error closing store")
		}
	}()
	logging.Info().Str("path", st.Path()).Msg("State store opened")

	bus, closeBus, err := initBus(cfg)
	if err != nil {
		return err
	}
	defer closeBus()

	manager := stream.NewManager(bus, stream.Config{
		HeartbeatInterval: cfg.Stream.HeartbeatInterval,
		WriteWait:         cfg.Stream.WriteWait,
		AllowedOrigins:    cfg.Security.CORSOrigins,
	})

	handler := api.NewHandler(
		ingest.New(st, bus),
		snapshot.New(st),
		manager,
		st,
		bus,
		api.HandlerConfig{MaxWebhookBytes: cfg.Security.MaxWebhookBytes},
	)

	mwConfig := api.DefaultChiMiddlewareConfig()
	mwConfig.CORSAllowedOrigins = cfg.Security.CORSOrigins
	mwConfig.WebhookRateLimit = cfg.Security.WebhookRateLimit
	mwConfig.WebhookRateWindow = cfg.Security.WebhookRateWindow
	mwConfig.WebhookRateDisabled = cfg.Security.WebhookRateLimit == 0
	if mwConfig.WebhookRateDisabled {
		logging.Warn().Msg("Webhook rate limiting is disabled (WEBHOOK_RATE_LIMIT=0)")
	}

	router := api.NewRouter(handler, api.NewChiMiddleware(mwConfig), api.RouterConfig{
		WebSocketEnabled: cfg.Stream.WebSocketEnabled,
		MetricsEnabled:   cfg.Server.MetricsEnabled,
	})

	// WriteTimeout stays unset: streaming responses run for the life of the
	// session and bound each write themselves.
	server := &http.Server{
		Handler:           router.SetupChi(),
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       cfg.Server.ReadTimeout,
		IdleTimeout:       cfg.Server.IdleTimeout,
	}

	tree, err := supervisor.NewSupervisorTree(logging.NewSlogLogger(), supervisor.TreeConfig{
		ShutdownTimeout: cfg.Server.ShutdownTimeout,
	})
	if err != nil {
		return err
	}
	tree.AddMessagingService(services.NewStreamManagerService(manager))
	tree.AddMessagingService(services.NewBusMonitorService(bus, 0))
	tree.AddAPIService(services.NewHTTPServerService(server, cfg.Server.Addr(), cfg.Server.ShutdownTimeout))

	logging.Info().Str("addr", cfg.Server.Addr()).Msg("Starting supervisor tree")
	if err := tree.Serve(ctx); err != nil && !errors.Is(err, context.Canceled) {
		logging.Error().Err(err).Msg("Supervisor tree error")
	}

	unstopped, _ := tree.UnstoppedServiceReport()
	for _, svc := range unstopped {
		logging.Warn().Str("service", svc.Name).Msg("Service failed to stop within timeout")
	}
	return nil
}
