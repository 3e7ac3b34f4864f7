// Roomcast - Conference Event Ingestion and Live Fanout
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/roomcast

/*
Package main is the entry point for the Roomcast server.

Roomcast receives conference lifecycle webhooks, persists the current
state of every active conference in SQLite and streams each committed
change to connected viewers over Server-Sent Events or WebSocket.

# Application Architecture

	RootSupervisor ("roomcast")
	├── MessagingSupervisor ("messaging-layer")
	│   ├── StreamManagerService (viewer sessions)
	│   └── BusMonitorService (fanout bus health)
	└── APISupervisor ("api-layer")
	    └── HTTPServerService (Chi router)

Initialization order:

 1. Configuration: Koanf v2 (defaults, config.yaml, environment)
 2. Logging: zerolog, JSON or console
 3. State Store: SQLite via modernc.org/sqlite, migrations applied on open
 4. Fanout Bus: in-process watermill GoChannel, or NATS (external or embedded)
 5. Ingest, Snapshot and Stream components
 6. Supervisor tree and HTTP server

# Configuration

Common environment variables:

	PORT=3000                      HTTP listen port
	DB_PATH=./data/roomcast.db     SQLite database file
	BUS_BACKEND=memory|nats        fanout bus backend
	NATS_URL=nats://host:4222      external NATS server
	NATS_EMBEDDED=true             run NATS inside this process
	LOG_LEVEL=info                 trace, debug, info, warn, error
	LOG_FORMAT=json                json or console
	CORS_ORIGINS=https://a,https://b

# Signal Handling

SIGINT and SIGTERM cancel the supervisor tree: the HTTP server stops
accepting connections, streaming sessions are closed, then the bus, the
embedded NATS server and the store are closed in that order.
*/
package main
