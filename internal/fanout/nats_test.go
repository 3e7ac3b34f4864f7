// Roomcast - Conference Event Ingestion and Live Fanout
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/roomcast

package fanout

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/tomtom215/roomcast/internal/events"
)

// waitAttached publishes probe events until sub sees one. Core NATS
// registers subscriptions asynchronously.
func waitAttached(t *testing.T, bus *Bus, subs ...*Subscription) {
	t.Helper()
	deadline := time.Now().Add(10 * time.Second)
	for _, s := range subs {
		for {
			if time.Now().After(deadline) {
				t.Fatal("subscription never attached")
			}
			probe := &events.Event{ID: "probe", Type: events.TypeConferenceStarted, ConferenceAlias: "probe", Timestamp: time.Now()}
			if err := bus.Publish(context.Background(), probe); err != nil {
				t.Fatalf("probe publish: %v", err)
			}
			select {
			case <-s.Events():
			case <-time.After(100 * time.Millisecond):
				continue
			}
			break
		}
	}
	// Drain leftover probes.
	for _, s := range subs {
		for drained := false; !drained; {
			select {
			case ev := <-s.Events():
				if ev.ID != "probe" {
					t.Fatalf("unexpected event while draining: %s", ev.ID)
				}
			case <-time.After(200 * time.Millisecond):
				drained = true
			}
		}
	}
}

func TestNATSBus_EmbeddedServerFanout(t *testing.T) {
	if testing.Short() {
		t.Skip("starts an embedded NATS server")
	}

	srv, err := NewEmbeddedServer(EmbeddedConfig{Port: -1})
	if err != nil {
		t.Fatalf("start embedded server: %v", err)
	}
	defer func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = srv.Shutdown(ctx)
	}()
	if !srv.IsRunning() {
		t.Fatal("embedded server not running")
	}

	bus, err := NewNATS(Config{Topic: "roomcast.test"}, NATSConfig{URL: srv.ClientURL()}, nil)
	if err != nil {
		t.Fatalf("new nats bus: %v", err)
	}
	defer bus.Close()
	if bus.Backend() != "nats" {
		t.Errorf("backend = %s", bus.Backend())
	}

	a, err := bus.Subscribe(context.Background())
	if err != nil {
		t.Fatalf("subscribe: %v", err)
	}
	b, err := bus.Subscribe(context.Background())
	if err != nil {
		t.Fatalf("subscribe: %v", err)
	}
	waitAttached(t, bus, a, b)

	for i := 0; i < 20; i++ {
		if err := bus.Publish(context.Background(), testEvent(i)); err != nil {
			t.Fatalf("publish: %v", err)
		}
	}
	gotA := collect(t, a, 20)
	gotB := collect(t, b, 20)
	for i := 0; i < 20; i++ {
		want := fmt.Sprintf("e%03d", i)
		if gotA[i] != want || gotB[i] != want {
			t.Fatalf("event %d = %s/%s, want %s", i, gotA[i], gotB[i], want)
		}
	}
}
