// Campusfeed - Adaptive Preference and Ranking Engine
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/campusfeed

//go:build integration

package testinfra

import (
	"context"
	"os/exec"
	"testing"
	"time"

	"github.com/testcontainers/testcontainers-go"
)

const dockerProbeTimeout = 5 * time.Second

// RequireDocker skips t unless the test is long-running and a Docker daemon
// answers `docker info`.
func RequireDocker(t *testing.T) {
	t.Helper()

	if testing.Short() {
		t.Skip("Skipping container test in short mode")
	}
	if !DockerAvailable() {
		t.Skip("Skipping container test: Docker not available")
	}
}

// DockerAvailable reports whether the Docker daemon is reachable.
func DockerAvailable() bool {
	ctx, cancel := context.WithTimeout(context.Background(), dockerProbeTimeout)
	defer cancel()

	return exec.CommandContext(ctx, "docker", "info").Run() == nil
}

// TerminateOnCleanup stops c when t and its subtests finish. A fresh context
// is used because the test's own context may already be canceled by then.
func TerminateOnCleanup(t *testing.T, c testcontainers.Container) {
	t.Helper()
	if c == nil {
		return
	}

	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
		defer cancel()
		if err := c.Terminate(ctx); err != nil {
			t.Logf("terminate container: %v", err)
		}
	})
}
