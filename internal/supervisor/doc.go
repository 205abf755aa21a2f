// Campusfeed - Adaptive Preference and Ranking Engine
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/campusfeed

/*
Package supervisor runs the long-lived parts of campusfeed under a suture v4
supervisor tree.

The tree has three layers so a crash in one does not take down the others:

	RootSupervisor ("campusfeed")
	├── DataSupervisor ("data-layer")
	│   ├── MaintenanceService   cron-driven renormalization sweep and store GC
	│   └── FanOutResumerService continues interrupted default-source fan-outs
	├── MessagingSupervisor ("messaging-layer")
	│   └── EventRouterService   Watermill router over the lifecycle topics
	└── APISupervisor ("api-layer")
	    └── HTTPServerService

Failed services are restarted with suture's failure decay and backoff.
Supervisor events are logged through sutureslog and the zerolog-backed slog
adapter from internal/logging:

	tree, err := supervisor.NewSupervisorTree(logging.NewSlogLogger(), cfg.Supervisor)
	tree.AddDataService(services.NewMaintenanceService(...))
	tree.AddMessagingService(services.NewEventRouterService(...))
	tree.AddAPIService(services.NewHTTPServerService(...))
	err = tree.Serve(ctx)
*/
package supervisor
