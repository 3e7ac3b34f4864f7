// Roomcast - Conference Event Ingestion and Live Fanout
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/roomcast

/*
Package config loads Roomcast configuration with Koanf.

Sources are layered, later ones overriding earlier ones:

 1. Built-in defaults (defaultConfig)
 2. An optional YAML file: $CONFIG_PATH, config.yaml, config.yml,
    /etc/roomcast/config.yaml or /etc/roomcast/config.yml
 3. Environment variables listed in envMappings; others are ignored

Comma-separated environment values become slices, e.g.
CORS_ORIGINS=https://a.example.com,https://b.example.com.

Example config.yaml:

	server:
	  port: 3000
	database:
	  path: /data/roomcast.db
	bus:
	  backend: nats
	nats:
	  embedded: true
	stream:
	  heartbeat_interval: 30s
	  websocket_enabled: true
	logging:
	  level: info
	  format: json

Load validates the result and refuses to start on invalid configuration.
*/
package config
