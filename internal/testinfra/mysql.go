// Campusfeed - Adaptive Preference and Ranking Engine
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/campusfeed

//go:build integration

package testinfra

import (
	"context"
	"fmt"
	"time"

	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"
)

const (
	// DefaultMySQLImage is the MySQL image used for storage tests.
	DefaultMySQLImage = "mysql:8.4"

	// DefaultMySQLPort is the MySQL protocol port.
	DefaultMySQLPort = "3306"

	mysqlRootPassword = "campusfeed"
	mysqlDatabase     = "campusfeed"
)

// MySQLContainer represents a running MySQL server for testing.
type MySQLContainer struct {
	testcontainers.Container
	DSN string
}

// MySQLOption configures the MySQL container.
type MySQLOption func(*mysqlConfig)

type mysqlConfig struct {
	image        string
	startTimeout time.Duration
}

// WithMySQLImage sets a custom MySQL image.
func WithMySQLImage(image string) MySQLOption {
	return func(c *mysqlConfig) {
		c.image = image
	}
}

// WithMySQLStartTimeout sets the timeout for waiting for MySQL to start.
func WithMySQLStartTimeout(timeout time.Duration) MySQLOption {
	return func(c *mysqlConfig) {
		c.startTimeout = timeout
	}
}

// NewMySQLContainer creates and starts a MySQL container with an empty
// database. The returned DSN is ready for sql.Open("mysql", ...).
//
// Example:
//
//	mysql, err := testinfra.NewMySQLContainer(ctx)
//	if err != nil {
//	    t.Fatal(err)
//	}
//	testinfra.TerminateOnCleanup(t, mysql.Container)
//
//	repo, err := storage.OpenSQL(ctx, storage.SQLConfig{Dialect: storage.DialectMySQL, DSN: mysql.DSN})
func NewMySQLContainer(ctx context.Context, opts ...MySQLOption) (*MySQLContainer, error) {
	cfg := &mysqlConfig{
		image:        DefaultMySQLImage,
		startTimeout: 2 * time.Minute,
	}
	for _, opt := range opts {
		opt(cfg)
	}

	req := testcontainers.ContainerRequest{
		Image:        cfg.image,
		ExposedPorts: []string{DefaultMySQLPort + "/tcp"},
		Env: map[string]string{
			"MYSQL_ROOT_PASSWORD": mysqlRootPassword,
			"MYSQL_DATABASE":      mysqlDatabase,
		},
		WaitingFor: wait.ForAll(
			wait.ForListeningPort(DefaultMySQLPort+"/tcp"),
			wait.ForLog("port: 3306  MySQL Community Server"),
		).WithStartupTimeout(cfg.startTimeout),
	}

	container, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: req,
		Started:          true,
	})
	if err != nil {
		return nil, fmt.Errorf("create mysql container: %w", err)
	}

	host, err := container.Host(ctx)
	if err != nil {
		container.Terminate(ctx) //nolint:errcheck
		return nil, fmt.Errorf("get container host: %w", err)
	}

	port, err := container.MappedPort(ctx, DefaultMySQLPort)
	if err != nil {
		container.Terminate(ctx) //nolint:errcheck
		return nil, fmt.Errorf("get mapped port: %w", err)
	}

	return &MySQLContainer{
		Container: container,
		DSN: fmt.Sprintf("root:%s@tcp(%s:%s)/%s?parseTime=true",
			mysqlRootPassword, host, port.Port(), mysqlDatabase),
	}, nil
}
