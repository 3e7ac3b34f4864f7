// Roomcast - Conference Event Ingestion and Live Fanout
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/roomcast

package events

import (
	"time"

	"github.com/tomtom215/roomcast/internal/models"
)

// Intent is a state mutation derived from one event. The set of
// implementations is closed; the state store switches on the concrete type.
type Intent interface {
	// Kind is a short label used in logs and metrics.
	Kind() string
	isIntent()
}

// UpsertConference creates or updates a conference row.
//
// Nil IsStarted/IsLocked keep the stored values (false on insert).
// DestinationAlias replaces the stored value only when non-nil.
type UpsertConference struct {
	Alias            string
	Name             string
	IsStarted        *bool
	IsLocked         *bool
	DestinationAlias *string
	At               time.Time
}

// RemoveConference deletes a conference and, through the schema, its participants.
type RemoveConference struct {
	Alias string
}

// ConnectParticipant inserts a participant, creating the owning
// conference first if it does not exist yet. An existing participant
// with the same uuid is left untouched.
type ConnectParticipant struct {
	Participant      models.Participant
	ConferenceName   string
	DestinationAlias *string
	At               time.Time
}

// UpdateParticipant overwrites every mutable participant field, matched on
// (uuid, conference alias).
type UpdateParticipant struct {
	Participant models.Participant
}

// DisconnectParticipant removes a participant matched on (uuid, conference alias).
type DisconnectParticipant struct {
	ConferenceAlias string
	UUID            string
}

func (UpsertConference) Kind() string      { return "upsert_conference" }
func (RemoveConference) Kind() string      { return "remove_conference" }
func (ConnectParticipant) Kind() string    { return "connect_participant" }
func (UpdateParticipant) Kind() string     { return "update_participant" }
func (DisconnectParticipant) Kind() string { return "disconnect_participant" }

func (UpsertConference) isIntent()      {}
func (RemoveConference) isIntent()      {}
func (ConnectParticipant) isIntent()    {}
func (UpdateParticipant) isIntent()     {}
func (DisconnectParticipant) isIntent() {}
