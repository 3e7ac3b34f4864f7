// Roomcast - Conference Event Ingestion and Live Fanout
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/roomcast

/*
Package api exposes Roomcast over HTTP using the Chi router.

Routes:

	POST /webhook                                            conference lifecycle events
	GET  /active-conferences-data                            full snapshot
	GET  /active-conferences-data/{conferenceAlias}/participants
	GET  /stream                                             Server-Sent Events
	GET  /stream/ws                                          WebSocket (optional)
	GET  /health/live, /health/ready                         probes
	GET  /metrics                                            Prometheus

Webhook acknowledgments are {"status": "success"|"ignored"|"error",
"message": ...}. Only storage and delivery faults produce a non-200
status; payloads that cannot be interpreted are acknowledged as ignored
so the sender does not retry them.
*/
package api
