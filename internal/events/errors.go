// Roomcast - Conference Event Ingestion and Live Fanout
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/roomcast

package events

import (
	"errors"
	"fmt"
)

var (
	// ErrMalformedInput marks a payload that could not be interpreted.
	ErrMalformedInput = errors.New("malformed input")

	// ErrUnknownEventType marks a well-formed payload whose event type is not handled.
	ErrUnknownEventType = errors.New("unknown event type")
)

// MalformedInputError describes why a payload was rejected.
type MalformedInputError struct {
	EventType string
	Field     string
	Err       error
}

func (e *MalformedInputError) Error() string {
	switch {
	case e.Field != "" && e.EventType != "":
		return fmt.Sprintf("malformed %s event: field %s: %v", e.EventType, e.Field, e.Err)
	case e.EventType != "":
		return fmt.Sprintf("malformed %s event: %v", e.EventType, e.Err)
	default:
		return fmt.Sprintf("malformed event: %v", e.Err)
	}
}

// Unwrap lets errors.Is match both ErrMalformedInput and the cause.
func (e *MalformedInputError) Unwrap() []error {
	return []error{ErrMalformedInput, e.Err}
}
