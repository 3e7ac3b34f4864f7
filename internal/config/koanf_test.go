// Roomcast - Conference Event Ingestion and Live Fanout
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/roomcast

package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

// isolate moves the test into an empty directory with no config file
// and no CONFIG_PATH.
func isolate(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	t.Chdir(dir)
	t.Setenv(ConfigPathEnvVar, "")
	return dir
}

func writeConfig(t *testing.T, dir, body string) string {
	t.Helper()
	path := filepath.Join(dir, "roomcast.yaml")
	if err := os.WriteFile(path, []byte(body), 0o600); err != nil {
		t.Fatalf("write config: %v", err)
	}
	return path
}

func TestDefaultConfig(t *testing.T) {
	t.Parallel()

	cfg := defaultConfig()
	if err := cfg.Validate(); err != nil {
		t.Fatalf("defaults do not validate: %v", err)
	}
	if cfg.Server.Port != 3000 {
		t.Errorf("Server.Port = %d, want 3000", cfg.Server.Port)
	}
	if cfg.Bus.Backend != "memory" {
		t.Errorf("Bus.Backend = %q, want memory", cfg.Bus.Backend)
	}
	if cfg.Stream.HeartbeatInterval != 30*time.Second {
		t.Errorf("Stream.HeartbeatInterval = %v, want 30s", cfg.Stream.HeartbeatInterval)
	}
	if !cfg.Stream.WebSocketEnabled {
		t.Error("Stream.WebSocketEnabled should default to true")
	}
	if got := cfg.Server.Addr(); got != "0.0.0.0:3000" {
		t.Errorf("Addr() = %q", got)
	}
}

func TestEnvTransformFunc(t *testing.T) {
	t.Parallel()

	tests := []struct {
		env  string
		want string
	}{
		{"PORT", "server.port"},
		{"HTTP_PORT", "server.port"},
		{"DB_PATH", "database.path"},
		{"BUS_BACKEND", "bus.backend"},
		{"NATS_EMBEDDED", "nats.embedded"},
		{"CORS_ORIGINS", "security.cors_origins"},
		{"log_level", "logging.level"},
		{"HOME", ""},
		{"PATH", ""},
	}
	for _, tt := range tests {
		t.Run(tt.env, func(t *testing.T) {
			t.Parallel()
			if got := envTransformFunc(tt.env); got != tt.want {
				t.Errorf("envTransformFunc(%q) = %q, want %q", tt.env, got, tt.want)
			}
		})
	}
}

func TestFindConfigFile(t *testing.T) {
	dir := isolate(t)

	if got := findConfigFile(); got != "" {
		t.Fatalf("findConfigFile() = %q, want none", got)
	}

	if err := os.WriteFile(filepath.Join(dir, "config.yml"), []byte("{}"), 0o600); err != nil {
		t.Fatal(err)
	}
	if got := findConfigFile(); got != "config.yml" {
		t.Errorf("findConfigFile() = %q, want config.yml", got)
	}

	custom := writeConfig(t, dir, "{}")
	t.Setenv(ConfigPathEnvVar, custom)
	if got := findConfigFile(); got != custom {
		t.Errorf("findConfigFile() = %q, want %q", got, custom)
	}

	t.Setenv(ConfigPathEnvVar, "/non/existent/config.yaml")
	if got := findConfigFile(); got != "config.yml" {
		t.Errorf("missing CONFIG_PATH should fall back, got %q", got)
	}
}

func TestLoadEnvVars(t *testing.T) {
	isolate(t)
	t.Setenv("HTTP_PORT", "9000")
	t.Setenv("LOG_LEVEL", "debug")
	t.Setenv("DB_PATH", "/tmp/roomcast-test.db")
	t.Setenv("STREAM_HEARTBEAT_INTERVAL", "5s")
	t.Setenv("STREAM_WRITE_WAIT", "2s")
	t.Setenv("CORS_ORIGINS", "https://a.example.com, https://b.example.com,")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.Server.Port != 9000 {
		t.Errorf("Server.Port = %d, want 9000", cfg.Server.Port)
	}
	if cfg.Logging.Level != "debug" {
		t.Errorf("Logging.Level = %q, want debug", cfg.Logging.Level)
	}
	if cfg.Database.Path != "/tmp/roomcast-test.db" {
		t.Errorf("Database.Path = %q", cfg.Database.Path)
	}
	if cfg.Stream.HeartbeatInterval != 5*time.Second {
		t.Errorf("Stream.HeartbeatInterval = %v, want 5s", cfg.Stream.HeartbeatInterval)
	}
	if cfg.Stream.WriteWait != 2*time.Second {
		t.Errorf("Stream.WriteWait = %v, want 2s", cfg.Stream.WriteWait)
	}
	want := []string{"https://a.example.com", "https://b.example.com"}
	if len(cfg.Security.CORSOrigins) != len(want) {
		t.Fatalf("CORSOrigins = %v, want %v", cfg.Security.CORSOrigins, want)
	}
	for i := range want {
		if cfg.Security.CORSOrigins[i] != want[i] {
			t.Errorf("CORSOrigins[%d] = %q, want %q", i, cfg.Security.CORSOrigins[i], want[i])
		}
	}
}

func TestLoadFitsWriteWaitToHeartbeat(t *testing.T) {
	tests := []struct {
		name      string
		env       map[string]string
		wantWait  time.Duration
		wantError bool
	}{
		{
			name:     "lowered heartbeat halves default write wait",
			env:      map[string]string{"STREAM_HEARTBEAT_INTERVAL": "5s"},
			wantWait: 2500 * time.Millisecond,
		},
		{
			name:     "write wait alone",
			env:      map[string]string{"STREAM_WRITE_WAIT": "3s"},
			wantWait: 3 * time.Second,
		},
		{
			name:      "explicit write wait above heartbeat",
			env:       map[string]string{"STREAM_HEARTBEAT_INTERVAL": "5s", "STREAM_WRITE_WAIT": "6s"},
			wantError: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			isolate(t)
			for k, v := range tt.env {
				t.Setenv(k, v)
			}

			cfg, err := Load()
			if tt.wantError {
				if err == nil {
					t.Fatalf("Load() = %+v, want error", cfg.Stream)
				}
				return
			}
			if err != nil {
				t.Fatalf("Load() error = %v", err)
			}
			if cfg.Stream.WriteWait != tt.wantWait {
				t.Errorf("Stream.WriteWait = %v, want %v", cfg.Stream.WriteWait, tt.wantWait)
			}
		})
	}
}

func TestLoadConfigFile(t *testing.T) {
	dir := isolate(t)
	path := writeConfig(t, dir, `
server:
  port: 8081
bus:
  backend: nats
nats:
  embedded: true
  embedded_port: -1
stream:
  websocket_enabled: false
logging:
  format: console
`)
	t.Setenv(ConfigPathEnvVar, path)

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.Server.Port != 8081 {
		t.Errorf("Server.Port = %d, want 8081", cfg.Server.Port)
	}
	if cfg.Bus.Backend != "nats" || !cfg.NATS.Embedded || cfg.NATS.EmbeddedPort != -1 {
		t.Errorf("bus/nats = %+v / %+v", cfg.Bus, cfg.NATS)
	}
	if cfg.Stream.WebSocketEnabled {
		t.Error("Stream.WebSocketEnabled should be false from file")
	}
	if cfg.Logging.Format != "console" {
		t.Errorf("Logging.Format = %q", cfg.Logging.Format)
	}
	// Untouched keys keep their defaults.
	if cfg.Database.MaxOpenConns != 4 {
		t.Errorf("Database.MaxOpenConns = %d, want default 4", cfg.Database.MaxOpenConns)
	}
}

func TestLoadEnvOverridesFile(t *testing.T) {
	dir := isolate(t)
	path := writeConfig(t, dir, "server:\n  port: 8081\nlogging:\n  level: warn\n")
	t.Setenv(ConfigPathEnvVar, path)
	t.Setenv("PORT", "9999")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.Server.Port != 9999 {
		t.Errorf("Server.Port = %d, want 9999 from env", cfg.Server.Port)
	}
	if cfg.Logging.Level != "warn" {
		t.Errorf("Logging.Level = %q, want warn from file", cfg.Logging.Level)
	}
}

func TestLoadRejectsInvalid(t *testing.T) {
	isolate(t)
	t.Setenv("BUS_BACKEND", "kafka")

	if _, err := Load(); err == nil {
		t.Fatal("Load() accepted an unknown bus backend")
	}
}

func TestLoadRejectsMalformedFile(t *testing.T) {
	dir := isolate(t)
	t.Setenv(ConfigPathEnvVar, writeConfig(t, dir, "server: [unterminated"))

	if _, err := Load(); err == nil {
		t.Fatal("Load() accepted malformed YAML")
	}
}
