// Roomcast - Conference Event Ingestion and Live Fanout
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/roomcast

// Package viewer is a Roomcast client. It keeps a reconciled view of
// active conferences by attaching to the live stream, loading a snapshot,
// and merging events on top of it. Whenever the stream fails the client
// re-attaches and reloads the snapshot before trusting new events.
package viewer

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"sync/atomic"
	"time"

	"github.com/goccy/go-json"
	"golang.org/x/time/rate"

	"github.com/tomtom215/roomcast/internal/logging"
	"github.com/tomtom215/roomcast/internal/models"
	"github.com/tomtom215/roomcast/internal/reconcile"
)

var (
	// ErrUnexpectedStatus is returned for non-200 responses.
	ErrUnexpectedStatus = errors.New("unexpected HTTP status")

	// ErrNoAcknowledgment is returned when a stream does not open with
	// the connected event.
	ErrNoAcknowledgment = errors.New("stream did not acknowledge connection")
)

// Transport names.
const (
	TransportSSE       = "sse"
	TransportWebSocket = "ws"
)

// maxSnapshotBytes bounds a snapshot response body.
const maxSnapshotBytes = 32 << 20

// Config configures a Client.
type Config struct {
	// BaseURL is the server root, e.g. http://localhost:3000.
	BaseURL string

	// Transport is TransportSSE or TransportWebSocket.
	Transport string

	// HTTPClient performs snapshot requests and SSE streams. It must not
	// set a Timeout, which would cut SSE streams.
	HTTPClient *http.Client

	// ResyncInterval is the minimum average spacing between attaches.
	ResyncInterval time.Duration

	// ResyncBurst is how many attaches may happen back to back.
	ResyncBurst int

	// OnChange receives the view after the snapshot loads and after every
	// event that changes it. It runs on the client goroutine.
	OnChange func([]models.Conference)
}

// Client is a reconciling viewer.
type Client struct {
	cfg     Config
	base    *url.URL
	http    *http.Client
	view    *reconcile.View
	limiter *rate.Limiter

	attaches atomic.Uint64
}

// New validates cfg and returns a Client.
func New(cfg Config) (*Client, error) {
	base, err := url.Parse(strings.TrimRight(cfg.BaseURL, "/"))
	if err != nil || (base.Scheme != "http" && base.Scheme != "https") || base.Host == "" {
		return nil, fmt.Errorf("viewer: invalid base URL %q", cfg.BaseURL)
	}
	switch cfg.Transport {
	case "":
		cfg.Transport = TransportSSE
	case TransportSSE, TransportWebSocket:
	default:
		return nil, fmt.Errorf("viewer: unknown transport %q", cfg.Transport)
	}
	if cfg.HTTPClient == nil {
		cfg.HTTPClient = &http.Client{}
	}
	if cfg.ResyncInterval <= 0 {
		cfg.ResyncInterval = 2 * time.Second
	}
	if cfg.ResyncBurst <= 0 {
		cfg.ResyncBurst = 1
	}
	return &Client{
		cfg:     cfg,
		base:    base,
		http:    cfg.HTTPClient,
		view:    reconcile.NewView(nil),
		limiter: rate.NewLimiter(rate.Every(cfg.ResyncInterval), cfg.ResyncBurst),
	}, nil
}

// View returns the reconciled view.
func (c *Client) View() *reconcile.View { return c.view }

// Attaches returns how many stream sessions the client has opened.
func (c *Client) Attaches() uint64 { return c.attaches.Load() }

// FetchSnapshot reads the full conference list.
func (c *Client) FetchSnapshot(ctx context.Context) ([]models.Conference, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.endpoint("/active-conferences-data"), nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetch snapshot: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 4096))
		return nil, fmt.Errorf("fetch snapshot: %w: %d", ErrUnexpectedStatus, resp.StatusCode)
	}

	var confs []models.Conference
	if err := json.NewDecoder(io.LimitReader(resp.Body, maxSnapshotBytes)).Decode(&confs); err != nil {
		return nil, fmt.Errorf("decode snapshot: %w", err)
	}
	return confs, nil
}

// Run keeps the view live until ctx ends, re-attaching after every
// stream failure at the configured pace. It returns ctx.Err().
func (c *Client) Run(ctx context.Context) error {
	for {
		if err := c.limiter.Wait(ctx); err != nil {
			return ctx.Err()
		}
		err := c.attach(ctx)
		if ctx.Err() != nil {
			return ctx.Err()
		}
		logging.Warn().Err(err).Str("transport", c.cfg.Transport).Msg("Stream lost, resyncing from snapshot")
	}
}

// attach runs one stream session: open the stream, wait for its
// acknowledgment, load the snapshot, then merge events until the stream
// fails. Opening the stream first means no event committed after the
// snapshot read can be missed; events that the snapshot already reflects
// merge as no-ops.
func (c *Client) attach(ctx context.Context) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	s, err := c.openStream(ctx)
	if err != nil {
		return err
	}
	defer s.Close()
	stop := context.AfterFunc(ctx, func() { _ = s.Close() })
	defer stop()
	c.attaches.Add(1)

	first, err := s.Next()
	if err != nil {
		return err
	}
	if !first.connected {
		return ErrNoAcknowledgment
	}

	snap, err := c.FetchSnapshot(ctx)
	if err != nil {
		return err
	}
	c.view.Reset(snap)
	logging.Info().
		Int("conferences", len(snap)).
		Str("transport", c.cfg.Transport).
		Msg("Snapshot loaded")
	c.notify()

	for {
		f, err := s.Next()
		if err != nil {
			return err
		}
		if f.event == nil {
			continue
		}
		if c.view.Apply(f.event) {
			c.notify()
		}
	}
}

func (c *Client) notify() {
	if c.cfg.OnChange != nil {
		c.cfg.OnChange(c.view.Conferences())
	}
}

func (c *Client) endpoint(path string) string {
	u := *c.base
	u.Path = strings.TrimRight(u.Path, "/") + path
	return u.String()
}

func (c *Client) openStream(ctx context.Context) (eventStream, error) {
	if c.cfg.Transport == TransportWebSocket {
		u := *c.base
		if u.Scheme == "https" {
			u.Scheme = "wss"
		} else {
			u.Scheme = "ws"
		}
		u.Path = strings.TrimRight(u.Path, "/") + "/stream/ws"
		ws, err := dialWebSocket(ctx, u.String())
		if err != nil {
			return nil, err
		}
		return ws, nil
	}
	sse, err := openSSE(ctx, c.http, c.endpoint("/stream"))
	if err != nil {
		return nil, err
	}
	return sse, nil
}
