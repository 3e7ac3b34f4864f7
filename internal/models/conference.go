// Roomcast - Conference Event Ingestion and Live Fanout
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/roomcast

// Package models holds the conference and participant records shared by
// the state store, the snapshot endpoints and the client-side view.
//
// JSON keys match the wire format already consumed by existing dashboards,
// which is why they mix camelCase and snake_case.
package models

import (
	"sort"
	"strings"
	"time"
)

// Participant is one connected endpoint in a conference.
type Participant struct {
	UUID            string `json:"uuid"`
	ConferenceAlias string `json:"conferenceAlias"`
	DisplayName     string `json:"display_name"`
	Role            string `json:"role"`
	IsMuted         bool   `json:"is_muted"`
	IsVideoMuted    bool   `json:"is_video_muted"`
	IsPresenting    bool   `json:"is_presenting"`
}

// Conference is an active conference and its current participants.
type Conference struct {
	ConferenceAlias  string        `json:"conferenceAlias"`
	ConferenceName   string        `json:"conferenceName"`
	StartTime        time.Time     `json:"start_time"`
	IsStarted        bool          `json:"is_started"`
	IsLocked         bool          `json:"is_locked"`
	DestinationAlias *string       `json:"destinationAlias"`
	Participants     []Participant `json:"participants"`
}

// Clone returns a deep copy.
func (c *Conference) Clone() Conference {
	out := *c
	if c.DestinationAlias != nil {
		d := *c.DestinationAlias
		out.DestinationAlias = &d
	}
	out.Participants = append([]Participant(nil), c.Participants...)
	if out.Participants == nil {
		out.Participants = []Participant{}
	}
	return out
}

// SortParticipants orders participants by display name, case-insensitively,
// falling back to uuid so the order is total.
func SortParticipants(ps []Participant) {
	sort.SliceStable(ps, func(i, j int) bool {
		a, b := strings.ToLower(ps[i].DisplayName), strings.ToLower(ps[j].DisplayName)
		if a != b {
			return a < b
		}
		return ps[i].UUID < ps[j].UUID
	})
}

// StringPtr returns nil for "" and &s otherwise.
func StringPtr(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}
