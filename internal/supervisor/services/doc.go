// Campusfeed - Adaptive Preference and Ranking Engine
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/campusfeed

/*
Package services adapts campusfeed components to suture.Service.

Each wrapper translates a component lifecycle into a context-aware Serve:

  - HTTPServerService: ListenAndServe plus graceful Shutdown for the API
  - EventRouterService: builds a fresh event router per Serve and runs it
  - FanOutResumerService: periodically finishes interrupted default-source fan-out jobs
  - MaintenanceService: cron-scheduled weight drift sweeps and Badger value log GC

# Return Values

Serve return values drive supervisor decisions:

	nil        stopped cleanly, not restarted
	ctx.Err()  shutdown requested
	other      crashed, restarted with backoff

Every service implements fmt.Stringer so suture log lines name it.

# Usage

	tree.AddDataService(services.NewFanOutResumerService(fanout, time.Minute, logger))
	tree.AddMessagingService(services.NewEventRouterService(buildRouter))
	tree.AddAPIService(services.NewHTTPServerService(server, 10*time.Second))
*/
package services
