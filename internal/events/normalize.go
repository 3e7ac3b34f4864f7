// Roomcast - Conference Event Ingestion and Live Fanout
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/roomcast

package events

import (
	"bytes"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/goccy/go-json"

	"github.com/tomtom215/roomcast/internal/models"
	"github.com/tomtom215/roomcast/internal/validation"
)

// Result is the outcome of normalizing one webhook payload.
// Either both Event and Intent are set, or Reason explains why neither is.
type Result struct {
	Event  *Event
	Intent Intent
	Reason error
}

// Ignored reports whether the payload produced no event.
func (r Result) Ignored() bool {
	return r.Event == nil
}

// envelope is the vendor webhook body.
type envelope struct {
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data"`
}

// payloadData holds every data field any handled event type reads.
type payloadData struct {
	Name             flexString `json:"name"`
	Conference       flexString `json:"conference"`
	DisplayName      flexString `json:"display_name"`
	DestinationAlias flexString `json:"destination_alias"`
	UUID             flexString `json:"uuid"`
	Role             flexString `json:"role"`
	IsStarted        flexBool   `json:"is_started"`
	IsLocked         flexBool   `json:"is_locked"`
	IsMuted          flexBool   `json:"is_muted"`
	IsVideoMuted     flexBool   `json:"is_video_muted"`
	IsPresenting     flexBool   `json:"is_presenting"`
}

// identity is checked for every handled event.
type identity struct {
	Conference string `json:"conference" validate:"required,alias"`
}

// participantIdentity is checked for participant events.
type participantIdentity struct {
	Conference string `json:"conference" validate:"required,alias"`
	UUID       string `json:"uuid" validate:"required,alias"`
}

// Normalize turns one webhook body into a canonical event and the state
// mutation it implies. It performs no I/O; now stamps the event.
func Normalize(payload []byte, now time.Time) Result {
	var env envelope
	if err := json.Unmarshal(payload, &env); err != nil {
		return malformed("", "", fmt.Errorf("decode body: %w", err))
	}
	if env.Event == "" {
		return malformed("", "event", errors.New("missing event type"))
	}

	typ := Type(env.Event)
	if !typ.Known() {
		return Result{Reason: fmt.Errorf("%w: %s", ErrUnknownEventType, env.Event)}
	}

	if len(bytes.TrimSpace(env.Data)) == 0 || bytes.Equal(bytes.TrimSpace(env.Data), []byte("null")) {
		return malformed(env.Event, "data", errors.New("missing data object"))
	}
	var d payloadData
	if err := json.Unmarshal(env.Data, &d); err != nil {
		return malformed(env.Event, "data", err)
	}

	alias, name := d.identity()
	if verr := checkIdentity(typ, alias, d.UUID.String()); verr != nil {
		return malformed(env.Event, verr.field, verr)
	}

	ev := &Event{
		Type:            typ,
		ConferenceAlias: alias,
		Timestamp:       now.UTC(),
	}

	switch typ {
	case TypeConferenceStarted:
		ev.ConferenceName = name
		ev.IsStarted = Bool(true)
		ev.IsLocked = d.IsLocked.ptr()
		return Result{Event: ev, Intent: UpsertConference{
			Alias:     alias,
			Name:      name,
			IsStarted: Bool(true),
			IsLocked:  d.IsLocked.ptr(),
			At:        ev.Timestamp,
		}}

	case TypeConferenceUpdated:
		ev.ConferenceName = name
		ev.IsStarted = d.IsStarted.ptr()
		ev.IsLocked = d.IsLocked.ptr()
		return Result{Event: ev, Intent: UpsertConference{
			Alias:     alias,
			Name:      name,
			IsStarted: d.IsStarted.ptr(),
			IsLocked:  d.IsLocked.ptr(),
			At:        ev.Timestamp,
		}}

	case TypeConferenceEnded:
		ev.ConferenceName = name
		return Result{Event: ev, Intent: RemoveConference{Alias: alias}}

	case TypeParticipantConnected:
		p := d.participant(alias)
		p.IsPresenting = false
		ev.ConferenceName = name
		ev.DestinationAlias = models.StringPtr(d.DestinationAlias.String())
		ev.Participant = &p
		return Result{Event: ev, Intent: ConnectParticipant{
			Participant:      p,
			ConferenceName:   name,
			DestinationAlias: ev.DestinationAlias,
			At:               ev.Timestamp,
		}}

	case TypeParticipantUpdated:
		p := d.participant(alias)
		ev.Participant = &p
		return Result{Event: ev, Intent: UpdateParticipant{Participant: p}}

	case TypeParticipantDisconnected:
		uuid := d.UUID.String()
		ev.Participant = &models.Participant{UUID: uuid, ConferenceAlias: alias}
		return Result{Event: ev, Intent: DisconnectParticipant{ConferenceAlias: alias, UUID: uuid}}
	}

	return Result{Reason: fmt.Errorf("%w: %s", ErrUnknownEventType, env.Event)}
}

// identity resolves the conference alias and display name. The alias comes
// from name, then conference. The display name may also fall back to the
// participant's display name, which never identifies a conference.
func (d *payloadData) identity() (alias, name string) {
	alias = d.Name.String()
	if alias == "" {
		alias = d.Conference.String()
	}
	name = alias
	if name == "" {
		name = d.DisplayName.String()
	}
	return alias, name
}

func (d *payloadData) participant(alias string) models.Participant {
	return models.Participant{
		UUID:            d.UUID.String(),
		ConferenceAlias: alias,
		DisplayName:     d.DisplayName.String(),
		Role:            d.Role.String(),
		IsMuted:         d.IsMuted.value,
		IsVideoMuted:    d.IsVideoMuted.value,
		IsPresenting:    d.IsPresenting.value,
	}
}

type identityError struct {
	field string
	err   error
}

func (e *identityError) Error() string { return e.err.Error() }
func (e *identityError) Unwrap() error { return e.err }

func checkIdentity(typ Type, alias, uuid string) *identityError {
	var verr *validation.RequestValidationError
	if typ.IsParticipant() {
		verr = validation.ValidateStruct(&participantIdentity{Conference: alias, UUID: uuid})
	} else {
		verr = validation.ValidateStruct(&identity{Conference: alias})
	}
	if verr == nil {
		return nil
	}
	field := verr.Errors()[0].Field()
	if field == "conference" && !typ.IsParticipant() {
		field = "name"
	}
	return &identityError{field: field, err: verr}
}

func malformed(eventType, field string, err error) Result {
	return Result{Reason: &MalformedInputError{EventType: eventType, Field: field, Err: err}}
}

// flexString accepts a JSON string or number. Null and absent decode to "".
type flexString string

func (s *flexString) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	switch {
	case bytes.Equal(b, []byte("null")):
		*s = ""
		return nil
	case len(b) > 0 && b[0] == '"':
		var v string
		if err := json.Unmarshal(b, &v); err != nil {
			return err
		}
		*s = flexString(strings.TrimSpace(v))
		return nil
	case len(b) > 0 && (b[0] == '-' || (b[0] >= '0' && b[0] <= '9')):
		*s = flexString(b)
		return nil
	}
	return fmt.Errorf("expected string, got %s", truncate(b))
}

func (s flexString) String() string { return string(s) }

// flexBool accepts booleans, numbers and the strings true/false/1/0/yes/no.
// set records whether the field was present and non-null.
type flexBool struct {
	value bool
	set   bool
}

func (f *flexBool) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	s := string(b)
	if s == "null" {
		*f = flexBool{}
		return nil
	}
	if len(b) > 0 && b[0] == '"' {
		if err := json.Unmarshal(b, &s); err != nil {
			return err
		}
		s = strings.ToLower(strings.TrimSpace(s))
	}
	switch s {
	case "true", "yes", "on":
		*f = flexBool{value: true, set: true}
		return nil
	case "false", "no", "off", "":
		*f = flexBool{value: false, set: true}
		return nil
	}
	if n, err := strconv.ParseFloat(s, 64); err == nil {
		*f = flexBool{value: n != 0, set: true}
		return nil
	}
	return fmt.Errorf("expected boolean, got %s", truncate(b))
}

func (f flexBool) ptr() *bool {
	if !f.set {
		return nil
	}
	return Bool(f.value)
}

func truncate(b []byte) string {
	const limit = 32
	if len(b) > limit {
		return string(b[:limit]) + "..."
	}
	return string(b)
}
