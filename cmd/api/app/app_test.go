package app

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"user-management-service/cmd/api/di"
	"user-management-service/cmd/api/server"
	"user-management-service/internal/config"
)

func newTestApp(t *testing.T) *App {
	cfg := &config.Config{
		DB: config.DatabaseConfig{
			Driver:       config.DriverSQLite,
			SQLitePath:   filepath.Join(t.TempDir(), "users.db"),
			MaxOpenConns: 1,
			MaxIdleConns: 1,
			AutoMigrate:  true,
		},
		App:    config.AppConfig{HTTPPort: "0", ShutdownTimeoutSeconds: 2},
		Logger: config.LoggerConfig{Level: "info", SlowQuerySeconds: 0.2, ServiceName: "user-management-service"},
	}
	l := zaptest.NewLogger(t)

	container, err := di.NewContainer(cfg, l)
	require.NoError(t, err)

	return &App{
		Config:    cfg,
		Logger:    l,
		Server:    server.New(cfg, l, container),
		Container: container,
	}
}

func TestApp_RunStopsOnCancel(t *testing.T) {
	a := newTestApp(t)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- a.Run(ctx) }()

	time.Sleep(50 * time.Millisecond)
	cancel()

	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("application did not shut down")
	}
}

func TestApp_RunReportsListenError(t *testing.T) {
	a := newTestApp(t)
	a.Server.Gin.Addr = "invalid-address"

	err := a.Run(context.Background())
	assert.ErrorContains(t, err, "server error")
}

func TestGetEnvironment(t *testing.T) {
	t.Setenv("APP_ENV", "")
	assert.Equal(t, "development", getEnvironment())

	t.Setenv("APP_ENV", "production")
	assert.Equal(t, "production", getEnvironment())
}
