// Roomcast - Conference Event Ingestion and Live Fanout
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/roomcast

package services

import (
	"context"
)

// SessionRunner is satisfied by *stream.Manager.
type SessionRunner interface {
	Run(ctx context.Context) error
}

// StreamManagerService runs the stream session manager under supervision.
// Cancelling ctx closes every open streaming session.
type StreamManagerService struct {
	manager SessionRunner
	name    string
}

// NewStreamManagerService wraps manager.
func NewStreamManagerService(manager SessionRunner) *StreamManagerService {
	return &StreamManagerService{
		manager: manager,
		name:    "stream-manager",
	}
}

// Serve implements suture.Service.
func (s *StreamManagerService) Serve(ctx context.Context) error {
	return s.manager.Run(ctx)
}

func (s *StreamManagerService) String() string {
	return s.name
}
