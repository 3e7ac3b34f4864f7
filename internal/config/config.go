// Roomcast - Conference Event Ingestion and Live Fanout
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/roomcast

package config

import (
	"net"
	"strconv"
	"time"
)

// Config is the full server configuration.
type Config struct {
	Server   ServerConfig   `koanf:"server"`
	Database DatabaseConfig `koanf:"database"`
	Bus      BusConfig      `koanf:"bus"`
	NATS     NATSConfig     `koanf:"nats"`
	Stream   StreamConfig   `koanf:"stream"`
	Security SecurityConfig `koanf:"security"`
	Logging  LoggingConfig  `koanf:"logging"`
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Host            string        `koanf:"host" validate:"required"`
	Port            int           `koanf:"port" validate:"min=1,max=65535"`
	ReadTimeout     time.Duration `koanf:"read_timeout" validate:"gte=0"`
	IdleTimeout     time.Duration `koanf:"idle_timeout" validate:"gte=0"`
	ShutdownTimeout time.Duration `koanf:"shutdown_timeout" validate:"gt=0"`
	Environment     string        `koanf:"environment" validate:"oneof=development production"`
	MetricsEnabled  bool          `koanf:"metrics_enabled"`
}

// Addr returns host:port for net.Listen.
func (s ServerConfig) Addr() string {
	return net.JoinHostPort(s.Host, strconv.Itoa(s.Port))
}

// DatabaseConfig holds State Store settings.
type DatabaseConfig struct {
	Path         string        `koanf:"path" validate:"required"`
	BusyTimeout  time.Duration `koanf:"busy_timeout" validate:"gte=0"`
	MaxOpenConns int           `koanf:"max_open_conns" validate:"min=1,max=64"`
}

// BusConfig holds Fanout Bus settings.
type BusConfig struct {
	// Backend is memory (single process) or nats.
	Backend          string `koanf:"backend" validate:"oneof=memory nats"`
	Topic            string `koanf:"topic" validate:"required"`
	SubscriberBuffer int    `koanf:"subscriber_buffer" validate:"min=1,max=65536"`

	BreakerFailureThreshold uint32        `koanf:"breaker_failure_threshold" validate:"min=1"`
	BreakerTimeout          time.Duration `koanf:"breaker_timeout" validate:"gt=0"`
	BreakerInterval         time.Duration `koanf:"breaker_interval" validate:"gte=0"`
}

// NATSConfig holds NATS client and embedded server settings. Used only
// when Bus.Backend is nats.
type NATSConfig struct {
	URL           string        `koanf:"url"`
	ClientName    string        `koanf:"client_name"`
	MaxReconnects int           `koanf:"max_reconnects" validate:"gte=-1"`
	ReconnectWait time.Duration `koanf:"reconnect_wait" validate:"gte=0"`

	// Embedded starts an in-process NATS server; URL is then ignored.
	Embedded     bool   `koanf:"embedded"`
	EmbeddedHost string `koanf:"embedded_host"`
	EmbeddedPort int    `koanf:"embedded_port" validate:"min=-1,max=65535"`
}

// StreamConfig holds streaming session settings.
type StreamConfig struct {
	HeartbeatInterval time.Duration `koanf:"heartbeat_interval" validate:"gt=0"`
	WriteWait         time.Duration `koanf:"write_wait" validate:"gt=0"`
	WebSocketEnabled  bool          `koanf:"websocket_enabled"`
}

// SecurityConfig holds ingress protection settings.
type SecurityConfig struct {
	CORSOrigins       []string      `koanf:"cors_origins"`
	WebhookRateLimit  int           `koanf:"webhook_rate_limit" validate:"gte=0"`
	WebhookRateWindow time.Duration `koanf:"webhook_rate_window" validate:"gt=0"`
	MaxWebhookBytes   int64         `koanf:"max_webhook_bytes" validate:"min=1"`
}

// LoggingConfig holds logger settings.
type LoggingConfig struct {
	Level  string `koanf:"level" validate:"oneof=trace debug info warn error disabled"`
	Format string `koanf:"format" validate:"oneof=json console"`
	Caller bool   `koanf:"caller"`
}

// IsProduction reports whether the server runs in production mode.
func (c *Config) IsProduction() bool {
	return c.Server.Environment == "production"
}
