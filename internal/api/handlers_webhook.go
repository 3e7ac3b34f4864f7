// Roomcast - Conference Event Ingestion and Live Fanout
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/roomcast

package api

import (
	"errors"
	"io"
	"net/http"

	"github.com/tomtom215/roomcast/internal/ingest"
	"github.com/tomtom215/roomcast/internal/logging"
)

// Webhook accepts one conference lifecycle event.
//
// 200 {"status":"success"} when the event was stored and published,
// 200 {"status":"ignored"} when the payload could not be interpreted,
// 413 when the body is too large and 500 on a storage or delivery fault.
func (h *Handler) Webhook(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, h.maxWebhookBody))
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			logging.Ctx(r.Context()).Warn().
				Int64("limit", tooLarge.Limit).
				Msg("Webhook payload rejected")
			respondJSON(w, http.StatusRequestEntityTooLarge, ingest.Outcome{
				Status:  ingest.StatusError,
				Message: ErrPayloadTooLarge.Error(),
			})
			return
		}
		logging.Ctx(r.Context()).Warn().Err(err).Msg("Failed to read webhook body")
		respondJSON(w, http.StatusBadRequest, ingest.Outcome{
			Status:  ingest.StatusError,
			Message: "could not read request body",
		})
		return
	}

	out, err := h.ingestor.Ingest(r.Context(), body)
	if err != nil {
		respondJSON(w, http.StatusInternalServerError, out)
		return
	}
	respondJSON(w, http.StatusOK, out)
}
