// Roomcast - Conference Event Ingestion and Live Fanout
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/roomcast

// Package store is the durable State Store: a SQLite table of active
// conferences and their participants.
//
// The store is the only writer of conference state. Writes are serialized
// by a process-wide mutex and each intent runs in one transaction, so an
// intent either fully applies or leaves no trace. Reads run concurrently
// with writes under SQLite's WAL snapshot isolation.
//
// Deleting a conference removes its participants through the schema's
// ON DELETE CASCADE, which requires foreign key enforcement on every
// pooled connection. Open refuses to return a store without it.
package store

import (
	"context"
	"database/sql"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	_ "modernc.org/sqlite" // database/sql driver "sqlite"

	"github.com/tomtom215/roomcast/internal/logging"
	"github.com/tomtom215/roomcast/internal/store/migrations"
)

// Options tunes the SQLite connection pool.
type Options struct {
	// BusyTimeout is how long a connection waits on a locked database.
	BusyTimeout time.Duration

	// MaxOpenConns bounds the pool. In-memory databases always use one.
	MaxOpenConns int
}

// DefaultOptions returns the options used when none are configured.
func DefaultOptions() Options {
	return Options{
		BusyTimeout:  5 * time.Second,
		MaxOpenConns: 4,
	}
}

// Store persists conferences and participants.
type Store struct {
	db      *sql.DB
	path    string
	writeMu sync.Mutex

	closeOnce sync.Once
	closed    chan struct{}
}

// Open opens (creating if needed) the database at path and applies the
// embedded migrations. ":memory:" opens a private in-memory database.
func Open(ctx context.Context, path string, opts Options) (*Store, error) {
	path = strings.TrimSpace(path)
	if path == "" {
		return nil, fmt.Errorf("open store: database path is required")
	}
	if opts.BusyTimeout <= 0 {
		opts.BusyTimeout = DefaultOptions().BusyTimeout
	}
	if opts.MaxOpenConns <= 0 {
		opts.MaxOpenConns = DefaultOptions().MaxOpenConns
	}

	memory := path == ":memory:"
	if !memory {
		path = filepath.Clean(path)
		if dir := filepath.Dir(path); dir != "" && dir != "." {
			if err := os.MkdirAll(dir, 0o750); err != nil {
				return nil, fmt.Errorf("open store: create directory %s: %w", dir, err)
			}
		}
	}

	db, err := sql.Open("sqlite", dsn(path, opts.BusyTimeout, memory))
	if err != nil {
		return nil, fmt.Errorf("open store: %w", err)
	}
	if memory {
		// Each connection to :memory: is a separate database.
		db.SetMaxOpenConns(1)
	} else {
		db.SetMaxOpenConns(opts.MaxOpenConns)
	}

	s := &Store{db: db, path: path, closed: make(chan struct{})}
	if err := s.init(ctx); err != nil {
		_ = db.Close()
		return nil, err
	}

	logging.Info().
		Str("path", path).
		Dur("busy_timeout", opts.BusyTimeout).
		Int("max_open_conns", opts.MaxOpenConns).
		Msg("State store opened")
	return s, nil
}

func dsn(path string, busy time.Duration, memory bool) string {
	q := url.Values{}
	q.Add("_pragma", "foreign_keys(1)")
	q.Add("_pragma", fmt.Sprintf("busy_timeout(%d)", busy.Milliseconds()))
	if !memory {
		q.Add("_pragma", "journal_mode(WAL)")
		q.Add("_pragma", "synchronous(NORMAL)")
	}
	q.Set("_txlock", "immediate")
	return path + "?" + q.Encode()
}

func (s *Store) init(ctx context.Context) error {
	if err := s.db.PingContext(ctx); err != nil {
		return storageErr("open", err)
	}
	var fk int
	if err := s.db.QueryRowContext(ctx, `PRAGMA foreign_keys`).Scan(&fk); err != nil {
		return storageErr("open", err)
	}
	if fk != 1 {
		return storageErr("open", fmt.Errorf("foreign key enforcement is unavailable"))
	}
	if err := applyMigrations(ctx, s.db, migrations.FS); err != nil {
		return storageErr("migrate", err)
	}
	return nil
}

// Ping checks that the database is reachable.
func (s *Store) Ping(ctx context.Context) error {
	if s.isClosed() {
		return storageErr("ping", ErrClosed)
	}
	return storageErr("ping", s.db.PingContext(ctx))
}

// Path returns the database location.
func (s *Store) Path() string {
	return s.path
}

// Close releases the database. It is safe to call more than once.
func (s *Store) Close() error {
	var err error
	s.closeOnce.Do(func() {
		close(s.closed)
		s.writeMu.Lock()
		defer s.writeMu.Unlock()
		err = s.db.Close()
	})
	return err
}

func (s *Store) isClosed() bool {
	select {
	case <-s.closed:
		return true
	default:
		return false
	}
}

func boolInt(b bool) int {
	if b {
		return 1
	}
	return 0
}

func toMillis(t time.Time) int64 {
	return t.UTC().UnixMilli()
}

func fromMillis(ms int64) time.Time {
	return time.UnixMilli(ms).UTC()
}
