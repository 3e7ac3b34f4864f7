// Roomcast - Conference Event Ingestion and Live Fanout
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/roomcast

package store

import (
	"context"
	"database/sql"
	"time"

	"github.com/tomtom215/roomcast/internal/metrics"
	"github.com/tomtom215/roomcast/internal/models"
)

// Conferences returns every conference ordered by start time, each with
// its participants in connection order. The result comes from a single
// statement and so reflects one committed state.
func (s *Store) Conferences(ctx context.Context) (out []models.Conference, err error) {
	const op = "read_conferences"
	if s.isClosed() {
		return nil, storageErr(op, ErrClosed)
	}
	start := time.Now()
	defer func() { metrics.RecordStoreOperation(op, time.Since(start), err) }()

	rows, err := s.db.QueryContext(ctx, `SELECT
			c.conference_alias, c.conference_name, c.start_time, c.is_started, c.is_locked, c.destination_alias,
			p.uuid, p.display_name, p.role, p.is_muted, p.is_video_muted, p.is_presenting
		FROM conferences c
		LEFT JOIN participants p ON p.conference_alias = c.conference_alias
		ORDER BY c.start_time, c.conference_alias, p.connected_at, p.uuid`)
	if err != nil {
		return nil, storageErr(op, err)
	}
	defer rows.Close()

	out = []models.Conference{}
	for rows.Next() {
		var (
			c                       models.Conference
			startMillis             int64
			dest                    sql.NullString
			uuid, name, role        sql.NullString
			muted, videoMuted, pres sql.NullBool
		)
		if err = rows.Scan(&c.ConferenceAlias, &c.ConferenceName, &startMillis, &c.IsStarted, &c.IsLocked, &dest,
			&uuid, &name, &role, &muted, &videoMuted, &pres); err != nil {
			return nil, storageErr(op, err)
		}

		if n := len(out); n == 0 || out[n-1].ConferenceAlias != c.ConferenceAlias {
			c.StartTime = fromMillis(startMillis)
			if dest.Valid {
				c.DestinationAlias = &dest.String
			}
			c.Participants = []models.Participant{}
			out = append(out, c)
		}
		if uuid.Valid {
			last := &out[len(out)-1]
			last.Participants = append(last.Participants, models.Participant{
				UUID:            uuid.String,
				ConferenceAlias: last.ConferenceAlias,
				DisplayName:     name.String,
				Role:            role.String,
				IsMuted:         muted.Bool,
				IsVideoMuted:    videoMuted.Bool,
				IsPresenting:    pres.Bool,
			})
		}
	}
	if err = rows.Err(); err != nil {
		return nil, storageErr(op, err)
	}
	return out, nil
}

// Participants returns the participants of one conference in connection
// order. An unknown alias yields an empty slice.
func (s *Store) Participants(ctx context.Context, alias string) (out []models.Participant, err error) {
	const op = "read_participants"
	if s.isClosed() {
		return nil, storageErr(op, ErrClosed)
	}
	start := time.Now()
	defer func() { metrics.RecordStoreOperation(op, time.Since(start), err) }()

	rows, err := s.db.QueryContext(ctx, `SELECT uuid, conference_alias, display_name, role,
			is_muted, is_video_muted, is_presenting
		FROM participants WHERE conference_alias = ?
		ORDER BY connected_at, uuid`, alias)
	if err != nil {
		return nil, storageErr(op, err)
	}
	defer rows.Close()

	out = []models.Participant{}
	for rows.Next() {
		var p models.Participant
		if err = rows.Scan(&p.UUID, &p.ConferenceAlias, &p.DisplayName, &p.Role,
			&p.IsMuted, &p.IsVideoMuted, &p.IsPresenting); err != nil {
			return nil, storageErr(op, err)
		}
		out = append(out, p)
	}
	if err = rows.Err(); err != nil {
		return nil, storageErr(op, err)
	}
	return out, nil
}
