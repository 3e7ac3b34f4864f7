// Roomcast - Conference Event Ingestion and Live Fanout
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/roomcast

package services

import (
	"context"
	"time"

	"github.com/tomtom215/roomcast/internal/logging"
	"github.com/tomtom215/roomcast/internal/metrics"
)

// BusHealth is satisfied by *fanout.Bus.
type BusHealth interface {
	Healthy() error
	Backend() string
	BreakerState() string
}

// BusMonitorService polls bus health, logging only state changes.
type BusMonitorService struct {
	bus      BusHealth
	interval time.Duration
	name     string
}

// NewBusMonitorService polls bus every interval (5s when non-positive).
func NewBusMonitorService(bus BusHealth, interval time.Duration) *BusMonitorService {
	if interval <= 0 {
		interval = 5 * time.Second
	}
	return &BusMonitorService{
		bus:      bus,
		interval: interval,
		name:     "bus-monitor",
	}
}

// Serve implements suture.Service.
func (s *BusMonitorService) Serve(ctx context.Context) error {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	healthy := s.check(true)
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			healthy = s.check(healthy)
		}
	}
}

// check records the current health and logs when it differs from prev.
func (s *BusMonitorService) check(prev bool) bool {
	backend := s.bus.Backend()
	err := s.bus.Healthy()
	ok := err == nil
	metrics.SetBusHealthy(backend, ok)

	switch {
	case !ok && prev:
		logging.Warn().Err(err).
			Str("backend", backend).
			Str("breaker", s.bus.BreakerState()).
			Msg("Fanout bus unhealthy")
	case ok && !prev:
		logging.Info().Str("backend", backend).Msg("Fanout bus recovered")
	}
	return ok
}

func (s *BusMonitorService) String() string {
	return s.name
}
