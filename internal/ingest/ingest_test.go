// Roomcast - Conference Event Ingestion and Live Fanout
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/roomcast

package ingest

import (
	"context"
	"errors"
	"fmt"
	"io"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/tomtom215/roomcast/internal/events"
	"github.com/tomtom215/roomcast/internal/fanout"
	"github.com/tomtom215/roomcast/internal/logging"
	"github.com/tomtom215/roomcast/internal/store"
)

func init() {
	logging.Init(logging.Config{Level: "disabled", Output: io.Discard})
}

type harness struct {
	store *store.Store
	bus   *fanout.Bus
	sub   *fanout.Subscription
	ing   *Ingestor
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	ctx := context.Background()
	st, err := store.Open(ctx, filepath.Join(t.TempDir(), "roomcast.db"), store.DefaultOptions())
	if err != nil {
		t.Fatalf("store.Open: %v", err)
	}
	t.Cleanup(func() { _ = st.Close() })

	bus := fanout.NewInProcess(fanout.Config{SubscriberBuffer: 256}, nil)
	t.Cleanup(func() { _ = bus.Close() })
	sub, err := bus.Subscribe(ctx)
	if err != nil {
		t.Fatalf("Subscribe: %v", err)
	}
	t.Cleanup(sub.Close)

	return &harness{store: st, bus: bus, sub: sub, ing: New(st, bus)}
}

func (h *harness) ingest(t *testing.T, payload string) Outcome {
	t.Helper()
	out, err := h.ing.Ingest(context.Background(), []byte(payload))
	if err != nil {
		t.Fatalf("Ingest(%s): %v", payload, err)
	}
	return out
}

// published drains whatever the subscriber has received so far.
func (h *harness) published() []*events.Event {
	var out []*events.Event
	for {
		select {
		case ev := <-h.sub.Events():
			out = append(out, ev)
		default:
			return out
		}
	}
}

const (
	startAlpha   = `{"event":"conference_started","data":{"name":"alpha"}}`
	connectP1    = `{"event":"participant_connected","data":{"conference":"alpha","uuid":"p1","display_name":"Ann","role":"chair","is_muted":false,"is_video_muted":false,"destination_alias":"d1"}}`
	connectP2    = `{"event":"participant_connected","data":{"conference":"alpha","uuid":"p2","display_name":"Bob","role":"guest","is_muted":"0","is_video_muted":"1"}}`
	muteP1       = `{"event":"participant_updated","data":{"conference":"alpha","uuid":"p1","display_name":"Ann","role":"chair","is_muted":true,"is_video_muted":false,"is_presenting":false}}`
	lockAlpha    = `{"event":"conference_updated","data":{"name":"alpha","is_started":true,"is_locked":true}}`
	endAlpha     = `{"event":"conference_ended","data":{"conference":"alpha"}}`
	disconnectP1 = `{"event":"participant_disconnected","data":{"conference":"alpha","uuid":"p1"}}`
)

func TestIngest_Acknowledgments(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name          string
		payload       string
		wantStatus    Status
		wantPublished bool
	}{
		{"conference started", startAlpha, StatusSuccess, true},
		{"unknown event type", `{"event":"foo","data":{"name":"alpha"}}`, StatusIgnored, false},
		{"unparseable body", `{"event":`, StatusIgnored, false},
		{"missing identity", `{"event":"conference_started","data":{}}`, StatusIgnored, false},
		{"missing data", `{"event":"participant_connected"}`, StatusIgnored, false},
		{"update before connect", muteP1, StatusSuccess, false},
		{"disconnect unknown participant", disconnectP1, StatusSuccess, false},
		{"end unknown conference", endAlpha, StatusSuccess, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			h := newHarness(t)
			out := h.ingest(t, tt.payload)
			if out.Status != tt.wantStatus {
				t.Errorf("Status = %q, want %q (message %q)", out.Status, tt.wantStatus, out.Message)
			}
			if out.Published != tt.wantPublished {
				t.Errorf("Published = %v, want %v", out.Published, tt.wantPublished)
			}
			if out.Message == "" {
				t.Error("Message is empty")
			}
			if tt.wantPublished {
				waitPublished(t, h, 1)
			} else if got := h.published(); len(got) != 0 {
				t.Errorf("published %d events, want none", len(got))
			}
		})
	}
}

func waitPublished(t *testing.T, h *harness, n int) []*events.Event {
	t.Helper()
	var got []*events.Event
	deadline := time.After(5 * time.Second)
	for len(got) < n {
		select {
		case ev := <-h.sub.Events():
			got = append(got, ev)
		case <-deadline:
			t.Fatalf("received %d of %d events", len(got), n)
		}
	}
	return got
}

func TestIngest_UnknownEventChangesNothing(t *testing.T) {
	t.Parallel()

	h := newHarness(t)
	h.ingest(t, `{"event":"foo","data":{"name":"alpha","conference":"alpha","uuid":"p1"}}`)

	confs, err := h.store.Conferences(context.Background())
	if err != nil {
		t.Fatalf("Conferences: %v", err)
	}
	if len(confs) != 0 {
		t.Fatalf("conferences = %+v, want none", confs)
	}
}

func TestIngest_LifecyclePublishesInCommitOrder(t *testing.T) {
	t.Parallel()

	h := newHarness(t)
	for _, p := range []string{startAlpha, connectP1, connectP2, muteP1, lockAlpha, disconnectP1, endAlpha} {
		if out := h.ingest(t, p); out.Status != StatusSuccess || !out.Published {
			t.Fatalf("Ingest(%s) = %+v", p, out)
		}
	}

	got := waitPublished(t, h, 7)
	want := []events.Type{
		events.TypeConferenceStarted,
		events.TypeParticipantConnected,
		events.TypeParticipantConnected,
		events.TypeParticipantUpdated,
		events.TypeConferenceUpdated,
		events.TypeParticipantDisconnected,
		events.TypeConferenceEnded,
	}
	seen := make(map[string]bool)
	for i, ev := range got {
		if ev.Type != want[i] {
			t.Errorf("event %d type = %s, want %s", i, ev.Type, want[i])
		}
		if ev.ID == "" || seen[ev.ID] {
			t.Errorf("event %d has missing or duplicate id %q", i, ev.ID)
		}
		seen[ev.ID] = true
	}
	if got[1].DestinationAlias == nil || *got[1].DestinationAlias != "d1" {
		t.Errorf("connect event destinationAlias = %v, want d1", got[1].DestinationAlias)
	}
}

func TestIngest_DestinationAliasSurvivesConferenceUpdate(t *testing.T) {
	t.Parallel()

	h := newHarness(t)
	h.ingest(t, connectP1)
	h.ingest(t, lockAlpha)

	confs, err := h.store.Conferences(context.Background())
	if err != nil {
		t.Fatalf("Conferences: %v", err)
	}
	if len(confs) != 1 {
		t.Fatalf("conferences = %d, want 1", len(confs))
	}
	c := confs[0]
	if c.DestinationAlias == nil || *c.DestinationAlias != "d1" {
		t.Errorf("destinationAlias = %v, want d1", c.DestinationAlias)
	}
	if !c.IsLocked {
		t.Error("conference not locked after update")
	}
}

func TestIngest_DuplicateConnectIsIdempotent(t *testing.T) {
	t.Parallel()

	h := newHarness(t)
	first := h.ingest(t, connectP1)
	second := h.ingest(t, connectP1)

	if !first.Published || second.Published {
		t.Errorf("published first=%v second=%v, want true/false", first.Published, second.Published)
	}
	parts, err := h.store.Participants(context.Background(), "alpha")
	if err != nil {
		t.Fatalf("Participants: %v", err)
	}
	if len(parts) != 1 {
		t.Fatalf("participants = %d, want 1", len(parts))
	}
}

type failingStore struct{ err error }

func (f failingStore) Apply(context.Context, events.Intent) (int64, error) { return 0, f.err }

type recordingBus struct {
	mu     sync.Mutex
	err    error
	events []*events.Event
}

func (b *recordingBus) Publish(_ context.Context, ev *events.Event) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.err != nil {
		return b.err
	}
	b.events = append(b.events, ev)
	return nil
}

func TestIngest_StorageFailureIsNotPublished(t *testing.T) {
	t.Parallel()

	storageErr := &store.StorageError{Op: "apply upsert_conference", Err: errors.New("disk I/O error")}
	bus := &recordingBus{}
	ing := New(failingStore{err: storageErr}, bus)

	out, err := ing.Ingest(context.Background(), []byte(startAlpha))
	if !errors.Is(err, ErrApply) || !errors.Is(err, store.ErrStorage) {
		t.Fatalf("err = %v, want ErrApply wrapping ErrStorage", err)
	}
	if out.Status != StatusError || out.Message != "failed to store event" {
		t.Errorf("outcome = %+v", out)
	}
	if len(bus.events) != 0 {
		t.Errorf("published %d events after storage failure", len(bus.events))
	}
}

func TestIngest_PublishFailureKeepsState(t *testing.T) {
	t.Parallel()

	st, err := store.Open(context.Background(), ":memory:", store.DefaultOptions())
	if err != nil {
		t.Fatalf("store.Open: %v", err)
	}
	defer st.Close()

	ing := New(st, &recordingBus{err: fanout.ErrBusUnavailable})
	out, err := ing.Ingest(context.Background(), []byte(startAlpha))
	if !errors.Is(err, ErrPublish) || !errors.Is(err, fanout.ErrBusUnavailable) {
		t.Fatalf("err = %v, want ErrPublish wrapping ErrBusUnavailable", err)
	}
	if out.Status != StatusError || out.Published {
		t.Errorf("outcome = %+v", out)
	}

	confs, err := st.Conferences(context.Background())
	if err != nil {
		t.Fatalf("Conferences: %v", err)
	}
	if len(confs) != 1 || confs[0].ConferenceAlias != "alpha" {
		t.Errorf("conferences = %+v, want alpha kept", confs)
	}
}

func TestIngest_CancelledRequestStillCompletes(t *testing.T) {
	t.Parallel()

	h := newHarness(t)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	out, err := h.ing.Ingest(ctx, []byte(startAlpha))
	if err != nil || out.Status != StatusSuccess {
		t.Fatalf("Ingest = %+v, %v", out, err)
	}
	waitPublished(t, h, 1)
}

func TestIngest_ConcurrentSendersSeeOneOrder(t *testing.T) {
	t.Parallel()

	h := newHarness(t)
	second, err := h.bus.Subscribe(context.Background())
	if err != nil {
		t.Fatalf("Subscribe: %v", err)
	}
	defer second.Close()

	const n = 40
	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			payload := fmt.Sprintf(`{"event":"conference_started","data":{"name":"conf-%02d"}}`, i)
			if _, err := h.ing.Ingest(context.Background(), []byte(payload)); err != nil {
				t.Errorf("Ingest: %v", err)
			}
		}()
	}
	wg.Wait()

	first := waitPublished(t, h, n)
	other := make([]*events.Event, 0, n)
	for len(other) < n {
		select {
		case ev := <-second.Events():
			other = append(other, ev)
		case <-time.After(5 * time.Second):
			t.Fatalf("second subscriber received %d of %d", len(other), n)
		}
	}
	for i := range first {
		if first[i].ID != other[i].ID {
			t.Fatalf("subscribers diverge at %d: %s vs %s", i, first[i].ConferenceAlias, other[i].ConferenceAlias)
		}
	}

	confs, err := h.store.Conferences(context.Background())
	if err != nil {
		t.Fatalf("Conferences: %v", err)
	}
	if len(confs) != n {
		t.Errorf("conferences = %d, want %d", len(confs), n)
	}
}
