// Roomcast - Conference Event Ingestion and Live Fanout
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/roomcast

package fanout

import (
	"context"
	"sync"
	"sync/atomic"

	"github.com/ThreeDotsLabs/watermill/message"

	"github.com/tomtom215/roomcast/internal/events"
	"github.com/tomtom215/roomcast/internal/metrics"
)

// Subscription is one subscriber's attachment to the bus.
type Subscription struct {
	ctx    context.Context
	cancel context.CancelFunc
	events chan *events.Event
	done   chan struct{}
	bus    *Bus

	closeOnce sync.Once
	dropped   atomic.Uint64
}

// Events yields events in publish order until the subscription ends, at
// which point the channel is closed.
func (s *Subscription) Events() <-chan *events.Event {
	return s.events
}

// Done is closed once the subscription has fully detached.
func (s *Subscription) Done() <-chan struct{} {
	return s.done
}

// Dropped returns the number of events this subscription lost to a full buffer.
func (s *Subscription) Dropped() uint64 {
	return s.dropped.Load()
}

// Close detaches the subscription. Events already buffered are discarded.
// Safe to call more than once and from any goroutine.
func (s *Subscription) Close() {
	s.closeOnce.Do(func() {
		s.cancel()
		s.bus.detach(s)
	})
}

// pump moves backend messages into the bounded event buffer, one at a time.
func (s *Subscription) pump(msgs <-chan *message.Message) {
	defer func() {
		s.Close()
		close(s.events)
		close(s.done)
		s.bus.pumps.Done()
	}()

	for {
		select {
		case <-s.ctx.Done():
			return
		case msg, ok := <-msgs:
			if !ok {
				return
			}
			s.deliver(msg)
		}
	}
}

// deliver hands one message to the buffer, or drops it when the buffer is
// full, and only then acknowledges it. The backend releases the publisher
// once every pump has acknowledged, so drops are counted before Publish
// returns.
func (s *Subscription) deliver(msg *message.Message) {
	defer msg.Ack()

	ev, err := events.Unmarshal(msg.Payload)
	if err != nil {
		s.bus.logger.Warn().Err(err).Str("message_uuid", msg.UUID).Msg("Discarding undecodable bus message")
		return
	}
	if s.ctx.Err() != nil {
		return
	}
	select {
	case s.events <- ev:
	default:
		s.dropped.Add(1)
		s.bus.dropped.Add(1)
		metrics.RecordBusDrop()
		s.bus.logger.Debug().
			Str("event_type", string(ev.Type)).
			Uint64("dropped", s.dropped.Load()).
			Msg("Subscriber buffer full, event dropped")
	}
}
