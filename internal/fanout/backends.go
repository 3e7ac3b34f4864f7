// Roomcast - Conference Event Ingestion and Live Fanout
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/roomcast

package fanout

import (
	"fmt"
	"time"

	"github.com/ThreeDotsLabs/watermill"
	wmNats "github.com/ThreeDotsLabs/watermill-nats/v2/pkg/nats"
	"github.com/ThreeDotsLabs/watermill/pubsub/gochannel"
	natsgo "github.com/nats-io/nats.go"

	"github.com/tomtom215/roomcast/internal/logging"
)

// NATSConfig configures the core NATS connection used by NewNATS.
type NATSConfig struct {
	URL             string
	Name            string
	MaxReconnects   int
	ReconnectWait   time.Duration
	ReconnectBuffer int
	AckWaitTimeout  time.Duration
	CloseTimeout    time.Duration
}

// DefaultNATSConfig returns connection defaults for a local server.
func DefaultNATSConfig() NATSConfig {
	return NATSConfig{
		URL:             natsgo.DefaultURL,
		Name:            "roomcast",
		MaxReconnects:   -1,
		ReconnectWait:   2 * time.Second,
		ReconnectBuffer: 8 * 1024 * 1024,
		AckWaitTimeout:  30 * time.Second,
		CloseTimeout:    5 * time.Second,
	}
}

// NewInProcess returns a bus backed by watermill's GoChannel. Publishing
// blocks until every subscription pump has taken the message, which keeps
// the global order; pumps never block, so neither does publishing.
func NewInProcess(cfg Config, logger watermill.LoggerAdapter) *Bus {
	if logger == nil {
		logger = logging.NewWatermillLogger()
	}
	cfg.Backend = "memory"
	ch := gochannel.NewGoChannel(gochannel.Config{
		OutputChannelBuffer:            1,
		BlockPublishUntilSubscriberAck: true,
	}, logger)
	return New(ch, ch, cfg)
}

// NewNATS returns a bus over core NATS. JetStream stays disabled: events
// are not retained for subscribers that attach later.
func NewNATS(cfg Config, nc NATSConfig, logger watermill.LoggerAdapter) (*Bus, error) {
	if logger == nil {
		logger = logging.NewWatermillLogger()
	}
	def := DefaultNATSConfig()
	if nc.URL == "" {
		nc.URL = def.URL
	}
	if nc.Name == "" {
		nc.Name = def.Name
	}
	if nc.ReconnectWait <= 0 {
		nc.ReconnectWait = def.ReconnectWait
	}
	if nc.ReconnectBuffer == 0 {
		nc.ReconnectBuffer = def.ReconnectBuffer
	}
	if nc.AckWaitTimeout <= 0 {
		nc.AckWaitTimeout = def.AckWaitTimeout
	}
	if nc.CloseTimeout <= 0 {
		nc.CloseTimeout = def.CloseTimeout
	}
	cfg.Backend = "nats"

	pub, err := wmNats.NewPublisher(wmNats.PublisherConfig{
		URL:         nc.URL,
		NatsOptions: connOptions(nc, "publisher", logger),
		Marshaler:   &wmNats.NATSMarshaler{},
		JetStream:   wmNats.JetStreamConfig{Disabled: true},
	}, logger)
	if err != nil {
		return nil, fmt.Errorf("create nats publisher: %w", err)
	}

	sub, err := wmNats.NewSubscriber(wmNats.SubscriberConfig{
		URL: nc.URL,
		// No queue group: every subscription receives every event.
		QueueGroupPrefix: "",
		SubscribersCount: 1,
		AckWaitTimeout:   nc.AckWaitTimeout,
		CloseTimeout:     nc.CloseTimeout,
		NatsOptions:      connOptions(nc, "subscriber", logger),
		Unmarshaler:      &wmNats.NATSMarshaler{},
		JetStream:        wmNats.JetStreamConfig{Disabled: true},
	}, logger)
	if err != nil {
		_ = pub.Close()
		return nil, fmt.Errorf("create nats subscriber: %w", err)
	}

	return New(pub, sub, cfg), nil
}

func connOptions(nc NATSConfig, role string, logger watermill.LoggerAdapter) []natsgo.Option {
	return []natsgo.Option{
		natsgo.Name(nc.Name + "-" + role),
		natsgo.RetryOnFailedConnect(true),
		natsgo.MaxReconnects(nc.MaxReconnects),
		natsgo.ReconnectWait(nc.ReconnectWait),
		natsgo.ReconnectBufSize(nc.ReconnectBuffer),
		natsgo.DisconnectErrHandler(func(_ *natsgo.Conn, err error) {
			if err != nil {
				logger.Error("NATS disconnected", err, watermill.LogFields{"role": role})
			}
		}),
		natsgo.ReconnectHandler(func(c *natsgo.Conn) {
			logger.Info("NATS reconnected", watermill.LogFields{
				"role": role,
				"url":  c.ConnectedUrl(),
			})
		}),
		natsgo.ErrorHandler(func(_ *natsgo.Conn, sub *natsgo.Subscription, err error) {
			fields := watermill.LogFields{"role": role}
			if sub != nil {
				fields["subject"] = sub.Subject
			}
			logger.Error("NATS error", err, fields)
		}),
	}
}
