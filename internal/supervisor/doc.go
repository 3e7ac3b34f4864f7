// Roomcast - Conference Event Ingestion and Live Fanout
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/roomcast

/*
Package supervisor runs Roomcast's long-lived services under suture v4.

The tree has two layers so a failure in one does not restart the other:

	RootSupervisor ("roomcast")
	├── MessagingSupervisor ("messaging-layer")
	│   ├── StreamManagerService
	│   └── BusMonitorService
	└── APISupervisor ("api-layer")
	    └── HTTPServerService

Supervisor events (service start, failure, restart, backoff) are logged
through sutureslog on the slog adapter from the logging package.

Usage:

	tree, err := supervisor.NewSupervisorTree(logging.NewSlogLogger(), supervisor.DefaultTreeConfig())
	if err != nil {
	    return err
	}
	tree.AddMessagingService(services.NewStreamManagerService(manager))
	tree.AddAPIService(services.NewHTTPServerService(server, cfg.Server.ShutdownTimeout))

	if err := tree.Serve(ctx); err != nil && !errors.Is(err, context.Canceled) {
	    return err
	}

Cancelling ctx stops every service. Services still running after
ShutdownTimeout are listed by UnstoppedServiceReport.
*/
package supervisor
