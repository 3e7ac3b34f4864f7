// Roomcast - Conference Event Ingestion and Live Fanout
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/roomcast

package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/providers/structs"
	"github.com/knadh/koanf/v2"
)

// DefaultConfigPaths lists the config file locations searched in order.
// The first file found is used.
var DefaultConfigPaths = []string{
	"config.yaml",
	"config.yml",
	"/etc/roomcast/config.yaml",
	"/etc/roomcast/config.yml",
}

// ConfigPathEnvVar overrides the config file path.
const ConfigPathEnvVar = "CONFIG_PATH"

// defaultConfig returns the built-in defaults, applied before the config
// file and environment.
func defaultConfig() *Config {
	return &Config{
		Server: ServerConfig{
			Host:            "0.0.0.0",
			Port:            3000,
			ReadTimeout:     15 * time.Second,
			IdleTimeout:     2 * time.Minute,
			ShutdownTimeout: 15 * time.Second,
			Environment:     "development",
			MetricsEnabled:  true,
		},
		Database: DatabaseConfig{
			Path:         "./data/roomcast.db",
			BusyTimeout:  5 * time.Second,
			MaxOpenConns: 4,
		},
		Bus: BusConfig{
			Backend:                 "memory",
			Topic:                   "roomcast.events",
			SubscriberBuffer:        256,
			BreakerFailureThreshold: 5,
			BreakerTimeout:          10 * time.Second,
			BreakerInterval:         time.Minute,
		},
		NATS: NATSConfig{
			URL:           "nats://127.0.0.1:4222",
			ClientName:    "roomcast",
			MaxReconnects: -1,
			ReconnectWait: 2 * time.Second,
			Embedded:      false,
			EmbeddedHost:  "127.0.0.1",
			EmbeddedPort:  4222,
		},
		Stream: StreamConfig{
			HeartbeatInterval: 30 * time.Second,
			WriteWait:         10 * time.Second,
			WebSocketEnabled:  true,
		},
		Security: SecurityConfig{
			CORSOrigins:       []string{"*"},
			WebhookRateLimit:  600,
			WebhookRateWindow: time.Minute,
			MaxWebhookBytes:   1 << 20,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
			Caller: false,
		},
	}
}

// Load reads defaults, the config file and the environment, then validates.
func Load() (*Config, error) {
	k := koanf.New(".")

	if err := k.Load(structs.Provider(defaultConfig(), "koanf"), nil); err != nil {
		return nil, fmt.Errorf("failed to load defaults: %w", err)
	}

	if configPath := findConfigFile(); configPath != "" {
		if err := k.Load(file.Provider(configPath), yaml.Parser()); err != nil {
			return nil, fmt.Errorf("failed to load config file %s: %w", configPath, err)
		}
	}

	if err := k.Load(env.Provider("", ".", envTransformFunc), nil); err != nil {
		return nil, fmt.Errorf("failed to load environment variables: %w", err)
	}

	if err := processSliceFields(k); err != nil {
		return nil, fmt.Errorf("failed to process slice fields: %w", err)
	}

	cfg := &Config{}
	if err := k.Unmarshal("", cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal configuration: %w", err)
	}
	cfg.fitWriteWait()

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}

	return cfg, nil
}

// fitWriteWait halves a lowered heartbeat into the write wait when the write
// wait was left at its default and would no longer fit.
func (c *Config) fitWriteWait() {
	s := &c.Stream
	if s.HeartbeatInterval > 0 && s.WriteWait >= s.HeartbeatInterval &&
		s.WriteWait == defaultConfig().Stream.WriteWait {
		s.WriteWait = s.HeartbeatInterval / 2
	}
}

func findConfigFile() string {
	if envPath := os.Getenv(ConfigPathEnvVar); envPath != "" {
		if _, err := os.Stat(envPath); err == nil {
			return envPath
		}
	}

	for _, path := range DefaultConfigPaths {
		if _, err := os.Stat(path); err == nil {
			return path
		}
	}

	return ""
}

// sliceConfigPaths are keys that may arrive as comma-separated strings.
var sliceConfigPaths = []string{
	"security.cors_origins",
}

func processSliceFields(k *koanf.Koanf) error {
	for _, path := range sliceConfigPaths {
		strVal, ok := k.Get(path).(string)
		if !ok {
			continue
		}

		parts := strings.Split(strVal, ",")
		trimmed := make([]string, 0, len(parts))
		for _, p := range parts {
			if p = strings.TrimSpace(p); p != "" {
				trimmed = append(trimmed, p)
			}
		}
		if err := k.Set(path, trimmed); err != nil {
			return fmt.Errorf("failed to set %s: %w", path, err)
		}
	}
	return nil
}

// envMappings maps environment variables (lowercased) to config keys.
var envMappings = map[string]string{
	"port":              "server.port",
	"http_port":         "server.port",
	"http_host":         "server.host",
	"http_read_timeout": "server.read_timeout",
	"http_idle_timeout": "server.idle_timeout",
	"shutdown_timeout":  "server.shutdown_timeout",
	"environment":       "server.environment",
	"metrics_enabled":   "server.metrics_enabled",

	"db_path":           "database.path",
	"db_busy_timeout":   "database.busy_timeout",
	"db_max_open_conns": "database.max_open_conns",

	"bus_backend":                   "bus.backend",
	"bus_topic":                     "bus.topic",
	"bus_subscriber_buffer":         "bus.subscriber_buffer",
	"bus_breaker_failure_threshold": "bus.breaker_failure_threshold",
	"bus_breaker_timeout":           "bus.breaker_timeout",
	"bus_breaker_interval":          "bus.breaker_interval",

	"nats_url":            "nats.url",
	"nats_client_name":    "nats.client_name",
	"nats_max_reconnects": "nats.max_reconnects",
	"nats_reconnect_wait": "nats.reconnect_wait",
	"nats_embedded":       "nats.embedded",
	"nats_embedded_host":  "nats.embedded_host",
	"nats_embedded_port":  "nats.embedded_port",

	"stream_heartbeat_interval": "stream.heartbeat_interval",
	"stream_write_wait":         "stream.write_wait",
	"websocket_enabled":         "stream.websocket_enabled",

	"cors_origins":        "security.cors_origins",
	"webhook_rate_limit":  "security.webhook_rate_limit",
	"webhook_rate_window": "security.webhook_rate_window",
	"max_webhook_bytes":   "security.max_webhook_bytes",

	"log_level":  "logging.level",
	"log_format": "logging.format",
	"log_caller": "logging.caller",
}

// envTransformFunc maps an environment variable to its config key, or ""
// to skip it.
func envTransformFunc(key string) string {
	return envMappings[strings.ToLower(key)]
}
