// Roomcast - Conference Event Ingestion and Live Fanout
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/roomcast

/*
Package services adapts Roomcast components to suture.Service.

Each wrapper translates a component's lifecycle into
Serve(ctx context.Context) error and names itself through fmt.Stringer
for supervisor logs:

  - HTTPServerService binds the listen address and serves until ctx ends,
    then shuts the server down within a timeout.
  - StreamManagerService runs the stream session manager; cancellation
    closes every open session.
  - BusMonitorService polls fanout bus health, logs transitions and keeps
    the bus_healthy gauge current.
*/
package services
