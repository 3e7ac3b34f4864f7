// Roomcast - Conference Event Ingestion and Live Fanout
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/roomcast

// Package ingest runs one webhook payload through the pipeline:
// normalize, persist, publish.
//
// A payload that cannot be interpreted is acknowledged as ignored and
// changes nothing. Once normalized, an event is either persisted and
// published or reported as failed; nothing is retried here, the sender
// owns retries. Writes are idempotent so a retried event is safe.
package ingest

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/tomtom215/roomcast/internal/events"
	"github.com/tomtom215/roomcast/internal/logging"
	"github.com/tomtom215/roomcast/internal/metrics"
)

var (
	// ErrApply marks a failed state write.
	ErrApply = errors.New("apply failed")

	// ErrPublish marks an event that was stored but not published.
	ErrPublish = errors.New("publish failed")
)

// Status is the acknowledgment reported to the webhook sender.
type Status string

const (
	StatusSuccess Status = "success"
	StatusIgnored Status = "ignored"
	StatusError   Status = "error"
)

// Outcome describes how one payload was handled.
type Outcome struct {
	Status    Status      `json:"status"`
	Message   string      `json:"message,omitempty"`
	EventType events.Type `json:"-"`
	EventID   string      `json:"-"`
	Rows      int64       `json:"-"`
	Published bool        `json:"-"`
}

// Store applies state mutations.
type Store interface {
	Apply(ctx context.Context, intent events.Intent) (int64, error)
}

// Publisher fans events out to live sessions.
type Publisher interface {
	Publish(ctx context.Context, ev *events.Event) error
}

// Ingestor is safe for concurrent use.
type Ingestor struct {
	store Store
	bus   Publisher
	now   func() time.Time

	// seq keeps bus order identical to commit order.
	seq sync.Mutex
}

// New returns an Ingestor writing to store and publishing to bus.
func New(store Store, bus Publisher) *Ingestor {
	return &Ingestor{store: store, bus: bus, now: time.Now}
}

// Ingest handles one payload. The returned error is non-nil exactly when
// the outcome is StatusError; it wraps the store or bus failure.
//
// The request context only bounds reads of the payload upstream: an
// accepted event is always carried through to its outcome.
func (in *Ingestor) Ingest(ctx context.Context, payload []byte) (Outcome, error) {
	start := time.Now()
	log := *logging.Ctx(ctx)

	res := events.Normalize(payload, in.now())
	if res.Ignored() {
		out := Outcome{Status: StatusIgnored, Message: ignoredMessage(res.Reason)}
		log.Info().
			Str("reason", logging.Sanitize(res.Reason.Error())).
			Msg("Webhook event ignored")
		metrics.RecordWebhookEvent(eventTypeOf(res.Reason), string(StatusIgnored), time.Since(start))
		return out, nil
	}

	ev := res.Event
	ev.ID = uuid.NewString()
	out := Outcome{EventType: ev.Type, EventID: ev.ID}
	log = logging.Ctx(ctx).With().
		Str("event_id", ev.ID).
		Str("event_type", string(ev.Type)).
		Str("conference", logging.Sanitize(ev.ConferenceAlias)).
		Logger()
	if ev.Participant != nil {
		log = log.With().Str("participant", logging.Sanitize(ev.Participant.UUID)).Logger()
	}

	// Detached from the request so a disconnecting sender cannot abort
	// an event between its write and its publish.
	work := context.WithoutCancel(ctx)

	in.seq.Lock()
	rows, err := in.store.Apply(work, res.Intent)
	if err == nil && publishable(res.Intent, rows) {
		if perr := in.bus.Publish(work, ev); perr != nil {
			err = fmt.Errorf("%w: %s: %w", ErrPublish, ev.Type, perr)
		} else {
			out.Published = true
		}
	} else if err != nil {
		err = fmt.Errorf("%w: %s: %w", ErrApply, res.Intent.Kind(), err)
	}
	in.seq.Unlock()
	out.Rows = rows

	if err != nil {
		out.Status = StatusError
		out.Message = failureMessage(err)
		log.Error().Err(err).Int64("rows", rows).Msg("Webhook event failed")
		metrics.RecordWebhookEvent(string(ev.Type), string(StatusError), time.Since(start))
		return out, err
	}

	out.Status = StatusSuccess
	if out.Published {
		out.Message = fmt.Sprintf("%s processed", ev.Type)
	} else {
		out.Message = fmt.Sprintf("%s changed no state", ev.Type)
	}
	log.Info().
		Int64("rows", rows).
		Bool("published", out.Published).
		Dur("duration", time.Since(start)).
		Msg("Webhook event processed")
	metrics.RecordWebhookEvent(string(ev.Type), string(StatusSuccess), time.Since(start))
	return out, nil
}

// publishable reports whether an applied intent changed anything viewers
// should hear about. Updates, disconnects and removals that matched no
// row are no-ops, as is a repeated connect.
func publishable(intent events.Intent, rows int64) bool {
	switch intent.(type) {
	case events.UpsertConference:
		return true
	default:
		return rows > 0
	}
}

func ignoredMessage(reason error) string {
	switch {
	case errors.Is(reason, events.ErrUnknownEventType):
		return "unrecognized event type"
	case errors.Is(reason, events.ErrMalformedInput):
		return logging.Sanitize(reason.Error())
	default:
		return "event ignored"
	}
}

func failureMessage(err error) string {
	switch {
	case errors.Is(err, context.DeadlineExceeded):
		return "timed out processing event"
	case errors.Is(err, ErrPublish):
		return "event stored but could not be delivered"
	default:
		return "failed to store event"
	}
}

// eventTypeOf labels ignored payloads for metrics without trusting their
// content: unknown types collapse to "unknown".
func eventTypeOf(reason error) string {
	var mi *events.MalformedInputError
	if errors.As(reason, &mi) && events.Type(mi.EventType).Known() {
		return mi.EventType
	}
	return "unknown"
}
