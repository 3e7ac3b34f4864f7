// Roomcast - Conference Event Ingestion and Live Fanout
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/roomcast

// Package events defines the canonical conference event, the state
// mutation intents derived from it, and the normalizer that turns vendor
// webhook payloads into both.
//
// Nothing outside this package sees vendor-shaped JSON: the state store
// consumes Intent values and the fanout bus carries *Event values.
package events

import (
	"errors"
	"time"

	"github.com/tomtom215/roomcast/internal/models"
)

// Type identifies a canonical event.
type Type string

const (
	TypeConferenceStarted       Type = "conference_started"
	TypeConferenceEnded         Type = "conference_ended"
	TypeConferenceUpdated       Type = "conference_updated"
	TypeParticipantConnected    Type = "participant_connected"
	TypeParticipantUpdated      Type = "participant_updated"
	TypeParticipantDisconnected Type = "participant_disconnected"

	// TypeConnected is the acknowledgment a streaming session emits before
	// any bus event. It never travels over the bus.
	TypeConnected Type = "connected"
)

// Known reports whether t is one of the six lifecycle event types.
func (t Type) Known() bool {
	switch t {
	case TypeConferenceStarted, TypeConferenceEnded, TypeConferenceUpdated,
		TypeParticipantConnected, TypeParticipantUpdated, TypeParticipantDisconnected:
		return true
	}
	return false
}

// IsParticipant reports whether t concerns a single participant.
func (t Type) IsParticipant() bool {
	return t == TypeParticipantConnected || t == TypeParticipantUpdated || t == TypeParticipantDisconnected
}

// Event is the canonical, vendor-independent event delivered to viewers.
//
// Conference events carry ConferenceName and, when the source reported
// them, IsStarted/IsLocked. Participant events carry Participant; only
// participant_connected carries DestinationAlias. Absent optional fields
// mean "not reported", never "false".
type Event struct {
	ID               string              `json:"eventId,omitempty"`
	Type             Type                `json:"eventType"`
	ConferenceAlias  string              `json:"conferenceAlias"`
	ConferenceName   string              `json:"conferenceName,omitempty"`
	IsStarted        *bool               `json:"is_started,omitempty"`
	IsLocked         *bool               `json:"is_locked,omitempty"`
	DestinationAlias *string             `json:"destinationAlias,omitempty"`
	Participant      *models.Participant `json:"participant,omitempty"`
	Timestamp        time.Time           `json:"timestamp"`
}

// Validate checks the structural requirements of a bus event.
func (e *Event) Validate() error {
	if !e.Type.Known() {
		return ErrUnknownEventType
	}
	if e.ConferenceAlias == "" {
		return errors.New("event has no conference alias")
	}
	if e.Type.IsParticipant() && (e.Participant == nil || e.Participant.UUID == "") {
		return errors.New("participant event has no participant uuid")
	}
	return nil
}

// Bool returns a pointer to v, for optional event flags.
func Bool(v bool) *bool {
	return &v
}
