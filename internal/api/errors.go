// Roomcast - Conference Event Ingestion and Live Fanout
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/roomcast

package api

import "errors"

var (
	// ErrPayloadTooLarge is returned when a webhook body exceeds the configured limit.
	ErrPayloadTooLarge = errors.New("webhook payload too large")

	// ErrStreamingDisabled is reported when a disabled transport is requested.
	ErrStreamingDisabled = errors.New("transport disabled")
)
