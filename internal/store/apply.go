// Roomcast - Conference Event Ingestion and Live Fanout
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/roomcast

package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/tomtom215/roomcast/internal/events"
	"github.com/tomtom215/roomcast/internal/metrics"
)

// conferenceRow is the stored form of one conference, without participants.
type conferenceRow struct {
	alias       string
	name        string
	startTime   int64
	isStarted   bool
	isLocked    bool
	destination sql.NullString
}

// Apply executes one mutation intent atomically and returns the number of
// rows it wrote. Zero rows is a valid outcome, e.g. an update for a
// participant that never connected.
func (s *Store) Apply(ctx context.Context, intent events.Intent) (int64, error) {
	if intent == nil {
		return 0, storageErr("apply", errors.New("nil intent"))
	}
	op := intent.Kind()
	if err := ctx.Err(); err != nil {
		return 0, storageErr(op, err)
	}
	if s.isClosed() {
		return 0, storageErr(op, ErrClosed)
	}

	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	start := time.Now()
	n, err := s.applyTx(ctx, intent)
	metrics.RecordStoreOperation(op, time.Since(start), err)
	if err != nil {
		return 0, storageErr(op, err)
	}
	return n, nil
}

func (s *Store) applyTx(ctx context.Context, intent events.Intent) (n int64, err error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("begin: %w", err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	switch in := intent.(type) {
	case events.UpsertConference:
		n, err = upsertConference(ctx, tx, in)
	case events.RemoveConference:
		n, err = exec(ctx, tx, `DELETE FROM conferences WHERE conference_alias = ?`, in.Alias)
	case events.ConnectParticipant:
		n, err = connectParticipant(ctx, tx, in)
	case events.UpdateParticipant:
		p := in.Participant
		n, err = exec(ctx, tx, `UPDATE participants
			SET display_name = ?, role = ?, is_muted = ?, is_video_muted = ?, is_presenting = ?
			WHERE uuid = ? AND conference_alias = ?`,
			p.DisplayName, p.Role, boolInt(p.IsMuted), boolInt(p.IsVideoMuted), boolInt(p.IsPresenting),
			p.UUID, p.ConferenceAlias)
	case events.DisconnectParticipant:
		n, err = exec(ctx, tx, `DELETE FROM participants WHERE uuid = ? AND conference_alias = ?`,
			in.UUID, in.ConferenceAlias)
	default:
		err = fmt.Errorf("unsupported intent %T", intent)
	}
	if err != nil {
		return 0, err
	}
	if err = tx.Commit(); err != nil {
		return 0, fmt.Errorf("commit: %w", err)
	}
	return n, nil
}

// upsertConference merges the intent into the existing row. The start time
// of an existing row is kept; unset flags keep their stored values; a nil
// destination alias never clears a stored one.
func upsertConference(ctx context.Context, tx *sql.Tx, in events.UpsertConference) (int64, error) {
	row, found, err := loadConference(ctx, tx, in.Alias)
	if err != nil {
		return 0, err
	}
	if !found {
		row = conferenceRow{alias: in.Alias, startTime: toMillis(at(in.At))}
	}
	row.name = in.Name
	if row.name == "" {
		row.name = in.Alias
	}
	if in.IsStarted != nil {
		row.isStarted = *in.IsStarted
	}
	if in.IsLocked != nil {
		row.isLocked = *in.IsLocked
	}
	if in.DestinationAlias != nil {
		row.destination = sql.NullString{String: *in.DestinationAlias, Valid: true}
	}
	return saveConference(ctx, tx, row)
}

// connectParticipant creates the owning conference when missing, records
// the destination alias if none is stored yet, then inserts the participant
// unless its uuid already exists.
func connectParticipant(ctx context.Context, tx *sql.Tx, in events.ConnectParticipant) (int64, error) {
	p := in.Participant
	row, found, err := loadConference(ctx, tx, p.ConferenceAlias)
	if err != nil {
		return 0, err
	}

	var n int64
	switch {
	case !found:
		row = conferenceRow{
			alias:     p.ConferenceAlias,
			name:      in.ConferenceName,
			startTime: toMillis(at(in.At)),
			isStarted: true,
		}
		if row.name == "" {
			row.name = p.ConferenceAlias
		}
		if in.DestinationAlias != nil {
			row.destination = sql.NullString{String: *in.DestinationAlias, Valid: true}
		}
		if n, err = saveConference(ctx, tx, row); err != nil {
			return 0, err
		}
	case !row.destination.Valid && in.DestinationAlias != nil:
		if n, err = exec(ctx, tx,
			`UPDATE conferences SET destination_alias = ? WHERE conference_alias = ? AND destination_alias IS NULL`,
			*in.DestinationAlias, p.ConferenceAlias); err != nil {
			return 0, err
		}
	}

	inserted, err := exec(ctx, tx, `INSERT INTO participants
		(uuid, conference_alias, display_name, role, is_muted, is_video_muted, is_presenting, connected_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(uuid) DO NOTHING`,
		p.UUID, p.ConferenceAlias, p.DisplayName, p.Role,
		boolInt(p.IsMuted), boolInt(p.IsVideoMuted), boolInt(p.IsPresenting),
		toMillis(at(in.At)))
	if err != nil {
		return 0, err
	}
	return n + inserted, nil
}

func loadConference(ctx context.Context, tx *sql.Tx, alias string) (conferenceRow, bool, error) {
	var r conferenceRow
	err := tx.QueryRowContext(ctx, `SELECT conference_alias, conference_name, start_time,
		is_started, is_locked, destination_alias
		FROM conferences WHERE conference_alias = ?`, alias).
		Scan(&r.alias, &r.name, &r.startTime, &r.isStarted, &r.isLocked, &r.destination)
	if errors.Is(err, sql.ErrNoRows) {
		return conferenceRow{}, false, nil
	}
	if err != nil {
		return conferenceRow{}, false, fmt.Errorf("load conference: %w", err)
	}
	return r, true, nil
}

// saveConference writes r with INSERT ... ON CONFLICT DO UPDATE. A REPLACE
// would delete the old row first and cascade to its participants.
func saveConference(ctx context.Context, tx *sql.Tx, r conferenceRow) (int64, error) {
	return exec(ctx, tx, `INSERT INTO conferences
		(conference_alias, conference_name, start_time, is_started, is_locked, destination_alias)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT(conference_alias) DO UPDATE SET
			conference_name = excluded.conference_name,
			start_time = excluded.start_time,
			is_started = excluded.is_started,
			is_locked = excluded.is_locked,
			destination_alias = excluded.destination_alias`,
		r.alias, r.name, r.startTime, boolInt(r.isStarted), boolInt(r.isLocked), r.destination)
}

func exec(ctx context.Context, tx *sql.Tx, query string, args ...any) (int64, error) {
	res, err := tx.ExecContext(ctx, query, args...)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

func at(t time.Time) time.Time {
	if t.IsZero() {
		return time.Now()
	}
	return t
}
