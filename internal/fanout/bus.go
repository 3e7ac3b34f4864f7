// Roomcast - Conference Event Ingestion and Live Fanout
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/roomcast

// Package fanout is the Fanout Bus: one logical topic carrying every
// canonical event to every attached subscriber.
//
// The bus is built on watermill publishers and subscribers, either the
// in-process GoChannel or core NATS. It is not a log: a subscriber sees
// only events published while it is attached.
//
// Ordering: Publish calls are serialized, and each subscription drains its
// backend channel in a dedicated goroutine that acknowledges every message
// as soon as it has been handed to the subscription's buffer. All
// subscribers therefore observe one global publish order.
//
// Backpressure: each subscription owns a bounded buffer. When it is full
// the event is dropped for that subscriber only and counted; publishing
// never waits on a slow reader.
package fanout

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/rs/zerolog"
	gobreaker "github.com/sony/gobreaker/v2"

	"github.com/tomtom215/roomcast/internal/events"
	"github.com/tomtom215/roomcast/internal/logging"
	"github.com/tomtom215/roomcast/internal/metrics"
)

var (
	// ErrBusClosed is returned by Publish and Subscribe after Close.
	ErrBusClosed = errors.New("fanout bus closed")

	// ErrBusUnavailable is returned while the publish circuit breaker is open.
	ErrBusUnavailable = errors.New("fanout bus unavailable")
)

// DefaultTopic is the single topic every event travels on.
const DefaultTopic = "roomcast.events"

// Config configures a Bus independently of its backend.
type Config struct {
	// Topic is the watermill topic (NATS subject) for all events.
	Topic string

	// SubscriberBuffer is the per-subscription queue length.
	SubscriberBuffer int

	// Backend labels metrics and logs, e.g. "memory" or "nats".
	Backend string

	Breaker BreakerConfig
}

// DefaultConfig returns the configuration used for zero values.
func DefaultConfig() Config {
	return Config{
		Topic:            DefaultTopic,
		SubscriberBuffer: 256,
		Backend:          "memory",
		Breaker:          DefaultBreakerConfig(),
	}
}

func (c Config) withDefaults() Config {
	def := DefaultConfig()
	if c.Topic == "" {
		c.Topic = def.Topic
	}
	if c.SubscriberBuffer <= 0 {
		c.SubscriberBuffer = def.SubscriberBuffer
	}
	if c.Backend == "" {
		c.Backend = def.Backend
	}
	if c.Breaker.FailureThreshold == 0 {
		c.Breaker.FailureThreshold = def.Breaker.FailureThreshold
	}
	if c.Breaker.Name == "" {
		c.Breaker.Name = def.Breaker.Name
	}
	if c.Breaker.Timeout <= 0 {
		c.Breaker.Timeout = def.Breaker.Timeout
	}
	if c.Breaker.MaxRequests == 0 {
		c.Breaker.MaxRequests = def.Breaker.MaxRequests
	}
	return c
}

// Bus fans canonical events out to subscribers.
type Bus struct {
	pub     message.Publisher
	sub     message.Subscriber
	cfg     Config
	breaker *gobreaker.CircuitBreaker[struct{}]
	logger  zerolog.Logger

	// pubMu serializes publishes so the backend sees one emission order.
	pubMu sync.Mutex

	mu     sync.Mutex
	closed bool
	subs   map[*Subscription]struct{}
	pumps  sync.WaitGroup

	// onClose releases backend resources after pub and sub are closed.
	onClose []func() error

	dropped atomic.Uint64
}

// New builds a Bus over an existing watermill publisher and subscriber.
// The Bus takes ownership of both and closes them in Close.
func New(pub message.Publisher, sub message.Subscriber, cfg Config) *Bus {
	cfg = cfg.withDefaults()
	b := &Bus{
		pub:    pub,
		sub:    sub,
		cfg:    cfg,
		logger: logging.WithComponent("fanout").With().Str("backend", cfg.Backend).Logger(),
		subs:   make(map[*Subscription]struct{}),
	}
	b.breaker = newBreaker(cfg.Breaker, b.logger)
	return b
}

// Publish sends ev to every attached subscriber. It returns once the
// backend has accepted the event; it never waits for slow subscribers.
func (b *Bus) Publish(ctx context.Context, ev *events.Event) error {
	if b.isClosed() {
		metrics.RecordBusPublish(b.cfg.Backend, ErrBusClosed, "closed")
		return ErrBusClosed
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	payload, err := events.Marshal(ev)
	if err != nil {
		return fmt.Errorf("publish: %w", err)
	}
	id := ev.ID
	if id == "" {
		id = watermill.NewUUID()
	}
	msg := message.NewMessage(id, payload)
	msg.Metadata.Set("event_type", string(ev.Type))
	msg.Metadata.Set("conference_alias", ev.ConferenceAlias)

	b.pubMu.Lock()
	_, err = b.breaker.Execute(func() (struct{}, error) {
		return struct{}{}, b.pub.Publish(b.cfg.Topic, msg)
	})
	b.pubMu.Unlock()

	switch {
	case err == nil:
		metrics.RecordBusPublish(b.cfg.Backend, nil, "")
		metrics.RecordBreakerResult(b.cfg.Breaker.Name, "success")
		return nil
	case errors.Is(err, gobreaker.ErrOpenState), errors.Is(err, gobreaker.ErrTooManyRequests):
		metrics.RecordBusPublish(b.cfg.Backend, err, "unavailable")
		metrics.RecordBreakerResult(b.cfg.Breaker.Name, "rejected")
		return fmt.Errorf("%w: %v", ErrBusUnavailable, err)
	default:
		metrics.RecordBusPublish(b.cfg.Backend, err, "broker")
		metrics.RecordBreakerResult(b.cfg.Breaker.Name, "failure")
		if b.isClosed() {
			return ErrBusClosed
		}
		return fmt.Errorf("publish: %w", err)
	}
}

// Subscribe attaches a new subscriber. The subscription ends when ctx is
// cancelled, when Close is called on it, or when the bus closes; its
// Events channel is closed in every case.
func (b *Bus) Subscribe(ctx context.Context) (*Subscription, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return nil, ErrBusClosed
	}

	subCtx, cancel := context.WithCancel(ctx)
	msgs, err := b.sub.Subscribe(subCtx, b.cfg.Topic)
	if err != nil {
		cancel()
		return nil, fmt.Errorf("subscribe: %w", err)
	}

	s := &Subscription{
		ctx:    subCtx,
		cancel: cancel,
		events: make(chan *events.Event, b.cfg.SubscriberBuffer),
		done:   make(chan struct{}),
		bus:    b,
	}
	b.subs[s] = struct{}{}
	metrics.TrackSubscriber(true)

	b.pumps.Add(1)
	go s.pump(msgs)
	return s, nil
}

func (b *Bus) detach(s *Subscription) {
	b.mu.Lock()
	if _, ok := b.subs[s]; ok {
		delete(b.subs, s)
		metrics.TrackSubscriber(false)
	}
	b.mu.Unlock()
}

// Subscribers returns the number of attached subscriptions.
func (b *Bus) Subscribers() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.subs)
}

// Dropped returns the number of events dropped across all subscriptions.
func (b *Bus) Dropped() uint64 {
	return b.dropped.Load()
}

// Backend returns the configured backend label.
func (b *Bus) Backend() string {
	return b.cfg.Backend
}

// BreakerState reports the publish circuit breaker state.
func (b *Bus) BreakerState() string {
	return b.breaker.State().String()
}

// Healthy returns nil while the bus accepts publishes.
func (b *Bus) Healthy() error {
	if b.isClosed() {
		return ErrBusClosed
	}
	if b.breaker.State() == gobreaker.StateOpen {
		return ErrBusUnavailable
	}
	return nil
}

// Close ends every subscription and releases the backend.
func (b *Bus) Close() error {
	b.mu.Lock()
	if b.closed {
		b.mu.Unlock()
		return nil
	}
	b.closed = true
	subs := make([]*Subscription, 0, len(b.subs))
	for s := range b.subs {
		subs = append(subs, s)
	}
	b.mu.Unlock()

	for _, s := range subs {
		s.Close()
	}
	b.pumps.Wait()

	var errs []error
	if err := b.pub.Close(); err != nil {
		errs = append(errs, fmt.Errorf("close publisher: %w", err))
	}
	if err := b.sub.Close(); err != nil {
		errs = append(errs, fmt.Errorf("close subscriber: %w", err))
	}
	for _, fn := range b.onClose {
		if err := fn(); err != nil {
			errs = append(errs, err)
		}
	}
	b.logger.Info().Uint64("dropped_total", b.Dropped()).Msg("Fanout bus closed")
	return errors.Join(errs...)
}

func (b *Bus) isClosed() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.closed
}
