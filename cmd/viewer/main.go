// Roomcast - Conference Event Ingestion and Live Fanout
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/roomcast

// Command viewer follows a Roomcast server and prints the reconciled list
// of active conferences every time it changes.
//
//	viewer --url http://localhost:3000 --transport ws --format text
package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/goccy/go-json"
	"github.com/spf13/pflag"

	"github.com/tomtom215/roomcast/internal/logging"
	"github.com/tomtom215/roomcast/internal/models"
	"github.com/tomtom215/roomcast/internal/viewer"
)

type options struct {
	url       string
	transport string
	format    string
	resync    time.Duration
	logLevel  string
}

func parseFlags(args []string) (options, error) {
	var o options
	fs := pflag.NewFlagSet("viewer", pflag.ContinueOnError)
	fs.StringVarP(&o.url, "url", "u", "http://localhost:3000", "Roomcast server base URL")
	fs.StringVarP(&o.transport, "transport", "t", viewer.TransportSSE, "stream transport: sse or ws")
	fs.StringVarP(&o.format, "format", "f", "text", "output format: text or json")
	fs.DurationVar(&o.resync, "resync-interval", 2*time.Second, "minimum spacing between reconnects")
	fs.StringVar(&o.logLevel, "log-level", "warn", "log level")
	if err := fs.Parse(args); err != nil {
		return o, err
	}
	if o.format != "text" && o.format != "json" {
		return o, fmt.Errorf("unknown format %q", o.format)
	}
	return o, nil
}

func main() {
	opts, err := parseFlags(os.Args[1:])
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(2)
	}

	logging.Init(logging.Config{
		Level:     opts.logLevel,
		Format:    "console",
		Timestamp: true,
		Output:    os.Stderr,
	})

	render := renderText
	if opts.format == "json" {
		render = renderJSON
	}

	client, err := viewer.New(viewer.Config{
		BaseURL:        opts.url,
		Transport:      opts.transport,
		ResyncInterval: opts.resync,
		OnChange: func(confs []models.Conference) {
			if err := render(os.Stdout, confs); err != nil {
				logging.Error().Err(err).Msg("Failed to render view")
			}
		},
	})
	if err != nil {
		logging.Fatal().Err(err).Msg("Invalid viewer configuration")
	}

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	if err := client.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		logging.Fatal().Err(err).Msg("Viewer stopped")
	}
}

func renderJSON(w io.Writer, confs []models.Conference) error {
	return json.NewEncoder(w).Encode(confs)
}

func renderText(w io.Writer, confs []models.Conference) error {
	if _, err := fmt.Fprintf(w, "--- %d active conference(s) at %s\n",
		len(confs), time.Now().Format(time.TimeOnly)); err != nil {
		return err
	}
	for i := range confs {
		c := &confs[i]
		flags := ""
		if c.IsLocked {
			flags += " [locked]"
		}
		if !c.IsStarted {
			flags += " [waiting]"
		}
		if _, err := fmt.Fprintf(w, "%s (%s)%s\n", c.ConferenceAlias, c.ConferenceName, flags); err != nil {
			return err
		}
		for _, p := range c.Participants {
			state := ""
			if p.IsMuted {
				state += " muted"
			}
			if p.IsVideoMuted {
				state += " video-off"
			}
			if p.IsPresenting {
				state += " presenting"
			}
			if _, err := fmt.Fprintf(w, "  %-24s %-6s%s\n", p.DisplayName, p.Role, state); err != nil {
				return err
			}
		}
	}
	return nil
}
