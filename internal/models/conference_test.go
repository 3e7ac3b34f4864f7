// Roomcast - Conference Event Ingestion and Live Fanout
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/roomcast

package models

import (
	"testing"

	"github.com/goccy/go-json"
)

func TestConferenceClone(t *testing.T) {
	t.Parallel()

	orig := Conference{
		ConferenceAlias:  "room-1",
		DestinationAlias: StringPtr("sip:room-1@example.com"),
		Participants:     []Participant{{UUID: "p1", DisplayName: "Alice"}},
	}
	c := orig.Clone()
	*c.DestinationAlias = "changed"
	c.Participants[0].DisplayName = "Mallory"

	if *orig.DestinationAlias != "sip:room-1@example.com" {
		t.Errorf("clone shares DestinationAlias")
	}
	if orig.Participants[0].DisplayName != "Alice" {
		t.Errorf("clone shares participants")
	}

	empty := (&Conference{ConferenceAlias: "room-2"}).Clone()
	if empty.Participants == nil {
		t.Error("Clone() of a conference without participants returned nil slice")
	}
}

func TestSortParticipants(t *testing.T) {
	t.Parallel()

	ps := []Participant{
		{UUID: "c", DisplayName: "bob"},
		{UUID: "b", DisplayName: "Alice"},
		{UUID: "a", DisplayName: "Bob"},
		{UUID: "d", DisplayName: ""},
	}
	SortParticipants(ps)

	want := []string{"d", "b", "a", "c"}
	for i, uuid := range want {
		if ps[i].UUID != uuid {
			t.Fatalf("order = %v, want uuids %v", ps, want)
		}
	}
}

func TestStringPtr(t *testing.T) {
	t.Parallel()

	if StringPtr("") != nil {
		t.Error(`StringPtr("") != nil`)
	}
	if p := StringPtr("x"); p == nil || *p != "x" {
		t.Errorf("StringPtr(x) = %v", p)
	}
}

func TestConferenceJSONKeys(t *testing.T) {
	t.Parallel()

	data, err := json.Marshal(Conference{ConferenceAlias: "room-1", Participants: []Participant{}})
	if err != nil {
		t.Fatal(err)
	}
	var m map[string]any
	if err := json.Unmarshal(data, &m); err != nil {
		t.Fatal(err)
	}
	for _, key := range []string{"conferenceAlias", "conferenceName", "start_time", "is_started", "is_locked", "destinationAlias", "participants"} {
		if _, ok := m[key]; !ok {
			t.Errorf("missing key %q in %s", key, data)
		}
	}
	if m["destinationAlias"] != nil {
		t.Errorf("destinationAlias = %v, want null", m["destinationAlias"])
	}
}
