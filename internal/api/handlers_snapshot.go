// Roomcast - Conference Event Ingestion and Live Fanout
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/roomcast

package api

import (
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/tomtom215/roomcast/internal/snapshot"
)

// ActiveConferences returns every active conference with its participants
// as a JSON array.
func (h *Handler) ActiveConferences(w http.ResponseWriter, r *http.Request) {
	snap, err := h.snapshots.Snapshot(r.Context())
	if err != nil {
		respondError(w, r, http.StatusInternalServerError, "failed to read active conferences", err)
		return
	}
	respondJSON(w, http.StatusOK, snap.Conferences)
}

// ConferenceParticipants returns the participants of one conference. An
// unknown conference yields an empty array.
func (h *Handler) ConferenceParticipants(w http.ResponseWriter, r *http.Request) {
	alias := chi.URLParam(r, "conferenceAlias")
	participants, err := h.snapshots.Participants(r.Context(), alias)
	if err != nil {
		if errors.Is(err, snapshot.ErrInvalidAlias) {
			respondError(w, r, http.StatusBadRequest, err.Error(), nil)
			return
		}
		respondError(w, r, http.StatusInternalServerError, "failed to read participants", err)
		return
	}
	respondJSON(w, http.StatusOK, participants)
}
