// Roomcast - Conference Event Ingestion and Live Fanout
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/roomcast

// Package logging provides the process-wide zerolog logger for Roomcast.
//
// # Quick Start
//
//	logging.Init(logging.Config{Level: "info", Format: "json"})
//
//	logging.Info().Str("alias", alias).Msg("Conference started")
//	logging.Ctx(ctx).Warn().Err(err).Msg("Publish failed")
//
// # Configuration
//
// Level and format come from the logging section of the application
// config (LOG_LEVEL, LOG_FORMAT, LOG_CALLER). JSON is the default output;
// console output is meant for local development only.
//
// # Context Fields
//
// HTTP middleware stores request_id and correlation_id on the request
// context, and the stream manager stores session_id for each live session.
// Ctx(ctx) returns a logger carrying whichever of those are present.
//
// # Adapters
//
// Two libraries insist on their own logger interfaces:
//
//   - sutureslog takes an *slog.Logger: use NewSlogLogger.
//   - watermill takes a watermill.LoggerAdapter: use NewWatermillLogger.
//
// Both write through the same zerolog instance, so a single log stream
// covers supervisor restarts, bus reconnects and request handling.
//
// # Untrusted Values
//
// Strings copied from webhook payloads go through Sanitize before being
// attached to a log entry.
package logging
