// Roomcast - Conference Event Ingestion and Live Fanout
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/roomcast

// Package reconcile maintains a client-side view of conference state from
// one snapshot followed by live events.
//
// Every merge is idempotent: a duplicate event, or an event the snapshot
// already reflects, leaves the view unchanged. The view does not reorder
// events; it assumes events for one entity arrive in publish order. After
// a stream failure the caller must Reset from a fresh snapshot before
// applying further events.
package reconcile

import (
	"sync"

	"github.com/tomtom215/roomcast/internal/events"
	"github.com/tomtom215/roomcast/internal/models"
)

// View is safe for concurrent use.
type View struct {
	mu      sync.RWMutex
	order   []string
	confs   map[string]*models.Conference
	version uint64
}

// NewView returns a view seeded with snapshot.
func NewView(snapshot []models.Conference) *View {
	v := &View{}
	v.Reset(snapshot)
	return v
}

// Reset replaces the whole view with snapshot.
func (v *View) Reset(snapshot []models.Conference) {
	v.mu.Lock()
	defer v.mu.Unlock()

	v.order = make([]string, 0, len(snapshot))
	v.confs = make(map[string]*models.Conference, len(snapshot))
	for i := range snapshot {
		c := snapshot[i].Clone()
		if _, dup := v.confs[c.ConferenceAlias]; dup {
			continue
		}
		models.SortParticipants(c.Participants)
		v.order = append(v.order, c.ConferenceAlias)
		v.confs[c.ConferenceAlias] = &c
	}
	v.version++
}

// Apply merges one event and reports whether the view changed.
func (v *View) Apply(ev *events.Event) bool {
	if ev == nil || ev.ConferenceAlias == "" {
		return false
	}

	v.mu.Lock()
	defer v.mu.Unlock()

	var changed bool
	switch ev.Type {
	case events.TypeConferenceStarted:
		changed = v.startConference(ev)
	case events.TypeConferenceUpdated:
		changed = v.updateConference(ev)
	case events.TypeConferenceEnded:
		changed = v.removeConference(ev.ConferenceAlias)
	case events.TypeParticipantConnected, events.TypeParticipantUpdated:
		changed = v.upsertParticipant(ev)
	case events.TypeParticipantDisconnected:
		changed = v.removeParticipant(ev)
	}
	if changed {
		v.version++
	}
	return changed
}

// Conferences returns a copy of the view: conferences in snapshot order
// with later ones appended, participants sorted by display name.
func (v *View) Conferences() []models.Conference {
	v.mu.RLock()
	defer v.mu.RUnlock()

	out := make([]models.Conference, 0, len(v.order))
	for _, alias := range v.order {
		out = append(out, v.confs[alias].Clone())
	}
	return out
}

// Conference returns one conference.
func (v *View) Conference(alias string) (models.Conference, bool) {
	v.mu.RLock()
	defer v.mu.RUnlock()

	c, ok := v.confs[alias]
	if !ok {
		return models.Conference{}, false
	}
	return c.Clone(), true
}

// Version increases whenever the view changes.
func (v *View) Version() uint64 {
	v.mu.RLock()
	defer v.mu.RUnlock()
	return v.version
}

// ensure returns the conference for alias, creating it from ev if absent.
func (v *View) ensure(ev *events.Event) (*models.Conference, bool) {
	if c, ok := v.confs[ev.ConferenceAlias]; ok {
		return c, false
	}
	name := ev.ConferenceName
	if name == "" {
		name = ev.ConferenceAlias
	}
	// An update for an unseen conference creates it stopped unless it says
	// otherwise; starts and connects create it running.
	c := &models.Conference{
		ConferenceAlias: ev.ConferenceAlias,
		ConferenceName:  name,
		StartTime:       ev.Timestamp,
		IsStarted:       ev.Type != events.TypeConferenceUpdated,
		Participants:    []models.Participant{},
	}
	v.confs[c.ConferenceAlias] = c
	v.order = append(v.order, c.ConferenceAlias)
	return c, true
}

// startConference creates the conference once. A repeated start only
// merges the fields it carries, so a restart after a stop is seen.
func (v *View) startConference(ev *events.Event) bool {
	c, created := v.ensure(ev)
	return mergeConferenceFields(c, ev) || created
}

func (v *View) updateConference(ev *events.Event) bool {
	c, created := v.ensure(ev)
	return mergeConferenceFields(c, ev) || created
}

// mergeConferenceFields copies only the fields ev carries.
func mergeConferenceFields(c *models.Conference, ev *events.Event) bool {
	changed := false
	if ev.ConferenceName != "" && ev.ConferenceName != c.ConferenceName {
		c.ConferenceName = ev.ConferenceName
		changed = true
	}
	if ev.IsStarted != nil && *ev.IsStarted != c.IsStarted {
		c.IsStarted = *ev.IsStarted
		changed = true
	}
	if ev.IsLocked != nil && *ev.IsLocked != c.IsLocked {
		c.IsLocked = *ev.IsLocked
		changed = true
	}
	if ev.DestinationAlias != nil && (c.DestinationAlias == nil || *c.DestinationAlias != *ev.DestinationAlias) {
		d := *ev.DestinationAlias
		c.DestinationAlias = &d
		changed = true
	}
	return changed
}

func (v *View) removeConference(alias string) bool {
	if _, ok := v.confs[alias]; !ok {
		return false
	}
	delete(v.confs, alias)
	for i, a := range v.order {
		if a == alias {
			v.order = append(v.order[:i], v.order[i+1:]...)
			break
		}
	}
	return true
}

func (v *View) upsertParticipant(ev *events.Event) bool {
	if ev.Participant == nil || ev.Participant.UUID == "" {
		return false
	}
	c, changed := v.ensure(ev)

	// A connect fills destinationAlias only while it is unknown.
	if ev.Type == events.TypeParticipantConnected && ev.DestinationAlias != nil && c.DestinationAlias == nil {
		d := *ev.DestinationAlias
		c.DestinationAlias = &d
		changed = true
	}

	p := *ev.Participant
	p.ConferenceAlias = c.ConferenceAlias
	for i := range c.Participants {
		if c.Participants[i].UUID != p.UUID {
			continue
		}
		// A repeated connect never overwrites a participant already known.
		if ev.Type == events.TypeParticipantConnected || c.Participants[i] == p {
			return changed
		}
		c.Participants[i] = p
		models.SortParticipants(c.Participants)
		return true
	}

	c.Participants = append(c.Participants, p)
	models.SortParticipants(c.Participants)
	return true
}

func (v *View) removeParticipant(ev *events.Event) bool {
	if ev.Participant == nil {
		return false
	}
	c, ok := v.confs[ev.ConferenceAlias]
	if !ok {
		return false
	}
	for i := range c.Participants {
		if c.Participants[i].UUID == ev.Participant.UUID {
			c.Participants = append(c.Participants[:i], c.Participants[i+1:]...)
			return true
		}
	}
	return false
}
