// Roomcast - Conference Event Ingestion and Live Fanout
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/roomcast

package fanout

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sync"
	"testing"
	"time"

	"github.com/ThreeDotsLabs/watermill/message"

	"github.com/tomtom215/roomcast/internal/events"
	"github.com/tomtom215/roomcast/internal/logging"
)

func init() {
	logging.Init(logging.Config{Level: "disabled", Output: io.Discard})
}

func testEvent(i int) *events.Event {
	return &events.Event{
		ID:              fmt.Sprintf("e%03d", i),
		Type:            events.TypeConferenceUpdated,
		ConferenceAlias: fmt.Sprintf("conf-%d", i%3),
		IsLocked:        events.Bool(i%2 == 0),
		Timestamp:       time.Date(2026, 1, 1, 0, 0, i, 0, time.UTC),
	}
}

func collect(t *testing.T, s *Subscription, n int) []string {
	t.Helper()
	ids := make([]string, 0, n)
	timeout := time.After(5 * time.Second)
	for len(ids) < n {
		select {
		case ev, ok := <-s.Events():
			if !ok {
				t.Fatalf("subscription closed after %d of %d events", len(ids), n)
			}
			ids = append(ids, ev.ID)
		case <-timeout:
			t.Fatalf("timed out after %d of %d events", len(ids), n)
		}
	}
	return ids
}

func TestBus_FanoutToAllSubscribersInOneOrder(t *testing.T) {
	t.Parallel()

	bus := NewInProcess(Config{SubscriberBuffer: 1024}, nil)
	defer bus.Close()

	ctx := context.Background()
	a, err := bus.Subscribe(ctx)
	if err != nil {
		t.Fatalf("subscribe a: %v", err)
	}
	b, err := bus.Subscribe(ctx)
	if err != nil {
		t.Fatalf("subscribe b: %v", err)
	}
	if bus.Subscribers() != 2 {
		t.Fatalf("subscribers = %d, want 2", bus.Subscribers())
	}

	const publishers, perPublisher = 4, 25
	var wg sync.WaitGroup
	for p := 0; p < publishers; p++ {
		wg.Add(1)
		go func(p int) {
			defer wg.Done()
			for i := 0; i < perPublisher; i++ {
				if err := bus.Publish(ctx, testEvent(p*perPublisher+i)); err != nil {
					t.Errorf("publish: %v", err)
				}
			}
		}(p)
	}
	wg.Wait()

	total := publishers * perPublisher
	gotA := collect(t, a, total)
	gotB := collect(t, b, total)
	for i := range gotA {
		if gotA[i] != gotB[i] {
			t.Fatalf("subscribers diverge at %d: %s vs %s", i, gotA[i], gotB[i])
		}
	}
	if a.Dropped() != 0 || b.Dropped() != 0 {
		t.Errorf("unexpected drops: %d/%d", a.Dropped(), b.Dropped())
	}
}

func TestBus_SequentialPublishOrderPreserved(t *testing.T) {
	t.Parallel()

	bus := NewInProcess(Config{}, nil)
	defer bus.Close()

	sub, err := bus.Subscribe(context.Background())
	if err != nil {
		t.Fatalf("subscribe: %v", err)
	}
	for i := 0; i < 50; i++ {
		if err := bus.Publish(context.Background(), testEvent(i)); err != nil {
			t.Fatalf("publish: %v", err)
		}
	}
	got := collect(t, sub, 50)
	for i, id := range got {
		if want := fmt.Sprintf("e%03d", i); id != want {
			t.Fatalf("event %d = %s, want %s", i, id, want)
		}
	}
}

func TestBus_SlowSubscriberDropsWithoutBlocking(t *testing.T) {
	t.Parallel()

	bus := NewInProcess(Config{SubscriberBuffer: 2}, nil)
	defer bus.Close()

	slow, err := bus.Subscribe(context.Background())
	if err != nil {
		t.Fatalf("subscribe slow: %v", err)
	}
	fast, err := bus.Subscribe(context.Background())
	if err != nil {
		t.Fatalf("subscribe fast: %v", err)
	}

	received := make(chan string, 100)
	go func() {
		for ev := range fast.Events() {
			received <- ev.ID
		}
	}()

	done := make(chan struct{})
	go func() {
		defer close(done)
		for i := 0; i < 10; i++ {
			if err := bus.Publish(context.Background(), testEvent(i)); err != nil {
				t.Errorf("publish: %v", err)
			}
		}
	}()
	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("publish blocked on a slow subscriber")
	}

	if slow.Dropped() != 8 {
		t.Errorf("slow dropped = %d, want 8", slow.Dropped())
	}

	// The fast reader may still lose an event to scheduling; every event is
	// either received or counted as dropped.
	want := 10 - int(fast.Dropped())
	deadline := time.After(5 * time.Second)
	for n := 0; n < want; n++ {
		select {
		case <-received:
		case <-deadline:
			t.Fatalf("fast subscriber got %d of %d", n, want)
		}
	}
	if got := bus.Dropped(); got != slow.Dropped()+fast.Dropped() {
		t.Errorf("bus dropped = %d, want %d", got, slow.Dropped()+fast.Dropped())
	}
	first := collect(t, slow, 2)
	if first[0] != "e000" || first[1] != "e001" {
		t.Errorf("slow subscriber kept %v, want the first two events", first)
	}
}

func TestBus_SubscriptionClose(t *testing.T) {
	t.Parallel()

	bus := NewInProcess(Config{}, nil)
	defer bus.Close()

	ctx, cancel := context.WithCancel(context.Background())
	byCtx, err := bus.Subscribe(ctx)
	if err != nil {
		t.Fatalf("subscribe: %v", err)
	}
	explicit, err := bus.Subscribe(context.Background())
	if err != nil {
		t.Fatalf("subscribe: %v", err)
	}

	cancel()
	explicit.Close()
	explicit.Close()

	for _, s := range []*Subscription{byCtx, explicit} {
		select {
		case <-s.Done():
		case <-time.After(5 * time.Second):
			t.Fatal("subscription did not detach")
		}
		for range s.Events() {
			t.Error("closed subscription delivered an event")
		}
	}
	if n := bus.Subscribers(); n != 0 {
		t.Errorf("subscribers = %d, want 0", n)
	}
	if err := bus.Publish(context.Background(), testEvent(1)); err != nil {
		t.Errorf("publish without subscribers: %v", err)
	}
}

func TestBus_Close(t *testing.T) {
	t.Parallel()

	bus := NewInProcess(Config{}, nil)
	sub, err := bus.Subscribe(context.Background())
	if err != nil {
		t.Fatalf("subscribe: %v", err)
	}
	if err := bus.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}
	if err := bus.Close(); err != nil {
		t.Fatalf("second close: %v", err)
	}

	select {
	case <-sub.Done():
	case <-time.After(5 * time.Second):
		t.Fatal("subscription outlived the bus")
	}
	if err := bus.Publish(context.Background(), testEvent(1)); !errors.Is(err, ErrBusClosed) {
		t.Errorf("publish after close = %v", err)
	}
	if _, err := bus.Subscribe(context.Background()); !errors.Is(err, ErrBusClosed) {
		t.Errorf("subscribe after close = %v", err)
	}
	if !errors.Is(bus.Healthy(), ErrBusClosed) {
		t.Errorf("healthy after close = %v", bus.Healthy())
	}
}

func TestBus_RejectsInvalidEvent(t *testing.T) {
	t.Parallel()

	bus := NewInProcess(Config{}, nil)
	defer bus.Close()

	err := bus.Publish(context.Background(), &events.Event{Type: events.TypeParticipantUpdated, ConferenceAlias: "a"})
	if err == nil {
		t.Fatal("participant event without participant should not publish")
	}
}

// failingPublisher is a message.Publisher that always fails.
type failingPublisher struct {
	mu    sync.Mutex
	calls int
}

func (p *failingPublisher) Publish(string, ...*message.Message) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.calls++
	return errors.New("broker down")
}

func (p *failingPublisher) Close() error { return nil }

func (p *failingPublisher) count() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.calls
}

func TestBus_BreakerOpensAfterConsecutiveFailures(t *testing.T) {
	t.Parallel()

	pub := &failingPublisher{}
	ch := NewInProcess(Config{}, nil)
	defer ch.Close()

	bus := New(pub, ch.sub, Config{
		Backend: "test",
		Breaker: BreakerConfig{Name: "test-breaker", FailureThreshold: 3, Timeout: time.Hour},
	})

	for i := 0; i < 3; i++ {
		err := bus.Publish(context.Background(), testEvent(i))
		if err == nil || errors.Is(err, ErrBusUnavailable) {
			t.Fatalf("publish %d = %v, want broker error", i, err)
		}
	}
	if bus.BreakerState() != "open" {
		t.Fatalf("breaker state = %s, want open", bus.BreakerState())
	}
	if err := bus.Publish(context.Background(), testEvent(4)); !errors.Is(err, ErrBusUnavailable) {
		t.Errorf("publish while open = %v, want ErrBusUnavailable", err)
	}
	if pub.count() != 3 {
		t.Errorf("backend saw %d publishes, want 3", pub.count())
	}
	if !errors.Is(bus.Healthy(), ErrBusUnavailable) {
		t.Errorf("healthy = %v", bus.Healthy())
	}
}
