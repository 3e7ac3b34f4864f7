// Roomcast - Conference Event Ingestion and Live Fanout
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/roomcast

// Package snapshot serves point-in-time reads of conference state. A
// client fetches one snapshot when it connects and relies on the live
// stream afterwards.
package snapshot

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/tomtom215/roomcast/internal/models"
)

// ErrInvalidAlias is returned for an empty conference alias.
var ErrInvalidAlias = errors.New("conference alias is required")

// Reader is the read side of the State Store.
type Reader interface {
	Conferences(ctx context.Context) ([]models.Conference, error)
	Participants(ctx context.Context, alias string) ([]models.Participant, error)
}

// Snapshot is the full conference state at TakenAt.
type Snapshot struct {
	Conferences []models.Conference
	TakenAt     time.Time
}

// Service reads snapshots from a Reader.
type Service struct {
	reader Reader
	now    func() time.Time
}

// New returns a Service over reader.
func New(reader Reader) *Service {
	return &Service{reader: reader, now: time.Now}
}

// Snapshot returns every active conference with its participants. The
// result never contains nil slices.
func (s *Service) Snapshot(ctx context.Context) (Snapshot, error) {
	taken := s.now().UTC()
	confs, err := s.reader.Conferences(ctx)
	if err != nil {
		return Snapshot{}, err
	}
	if confs == nil {
		confs = []models.Conference{}
	}
	for i := range confs {
		if confs[i].Participants == nil {
			confs[i].Participants = []models.Participant{}
		}
	}
	return Snapshot{Conferences: confs, TakenAt: taken}, nil
}

// Participants returns the participants of one conference; an unknown
// conference yields an empty list.
func (s *Service) Participants(ctx context.Context, alias string) ([]models.Participant, error) {
	alias = strings.TrimSpace(alias)
	if alias == "" {
		return nil, ErrInvalidAlias
	}
	ps, err := s.reader.Participants(ctx, alias)
	if err != nil {
		return nil, err
	}
	if ps == nil {
		ps = []models.Participant{}
	}
	return ps, nil
}
