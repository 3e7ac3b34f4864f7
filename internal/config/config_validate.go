// Roomcast - Conference Event Ingestion and Live Fanout
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/roomcast

package config

import (
	"errors"
	"fmt"
	"net/url"
	"strings"

	"github.com/tomtom215/roomcast/internal/validation"
)

// Validate checks every section and returns all problems joined.
func (c *Config) Validate() error {
	var errs []error

	sections := []struct {
		name string
		v    any
	}{
		{"server", &c.Server},
		{"database", &c.Database},
		{"bus", &c.Bus},
		{"nats", &c.NATS},
		{"stream", &c.Stream},
		{"security", &c.Security},
		{"logging", &c.Logging},
	}
	for _, s := range sections {
		if verr := validation.ValidateStruct(s.v); verr != nil {
			errs = append(errs, fmt.Errorf("%s: %w", s.name, verr))
		}
	}

	errs = append(errs, c.validateNATS()...)
	errs = append(errs, c.validateStream()...)
	errs = append(errs, c.validateSecurity()...)

	return errors.Join(errs...)
}

func (c *Config) validateNATS() []error {
	if c.Bus.Backend != "nats" {
		return nil
	}
	if c.NATS.Embedded {
		if c.NATS.EmbeddedHost == "" {
			return []error{errors.New("nats: embedded_host is required when embedded is true")}
		}
		return nil
	}
	if c.NATS.URL == "" {
		return []error{errors.New("nats: url is required when bus backend is nats and embedded is false")}
	}
	u, err := url.Parse(c.NATS.URL)
	if err != nil {
		return []error{fmt.Errorf("nats: invalid url: %w", err)}
	}
	switch u.Scheme {
	case "nats", "tls", "ws", "wss":
		return nil
	default:
		return []error{fmt.Errorf("nats: unsupported url scheme %q", u.Scheme)}
	}
}

func (c *Config) validateStream() []error {
	if c.Stream.WriteWait > 0 && c.Stream.HeartbeatInterval > 0 &&
		c.Stream.WriteWait >= c.Stream.HeartbeatInterval {
		return []error{fmt.Errorf("stream: write_wait (%s) must be shorter than heartbeat_interval (%s)",
			c.Stream.WriteWait, c.Stream.HeartbeatInterval)}
	}
	return nil
}

func (c *Config) validateSecurity() []error {
	var errs []error
	for _, origin := range c.Security.CORSOrigins {
		if origin == "*" {
			if c.IsProduction() {
				errs = append(errs, errors.New("security: wildcard cors origin is not allowed in production"))
			}
			continue
		}
		if !strings.HasPrefix(origin, "http://") && !strings.HasPrefix(origin, "https://") {
			errs = append(errs, fmt.Errorf("security: cors origin %q must start with http:// or https://", origin))
		}
	}
	return errs
}
