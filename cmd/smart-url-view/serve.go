package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"

	"github.com/lepinkainen/smart-url-view/internal/app"
	"github.com/lepinkainen/smart-url-view/internal/config"
	"github.com/lepinkainen/smart-url-view/internal/server"
	"github.com/lepinkainen/smart-url-view/pkg/logger"
)

const (
	cleanupInterval = time.Hour
	shutdownTimeout = 15 * time.Second
)

// serve runs the HTTP API until SIGINT or SIGTERM.
func serve(cfg *config.Config, addr string, level slog.Level) error {
	logger.Init(os.Stdout, level)

	if addr == "" {
		addr = cfg.Server.Addr
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	a, err := app.New(ctx, cfg, reg)
	if err != nil {
		return fmt.Errorf("failed to initialize: %w", err)
	}
	defer func() {
		if err := a.Close(); err != nil {
			slog.Error("Failed to close", "error", err)
		}
	}()

	go cleanupLoop(ctx, a)

	srv := server.NewServer(a, reg)
	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.Start(addr)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	slog.Info("Shutting down server")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown failed: %w", err)
	}
	return <-errCh
}

// cleanupLoop removes expired HTML cache entries until ctx is done.
func cleanupLoop(ctx context.Context, a *app.App) {
	ticker := time.NewTicker(cleanupInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			n, err := a.CleanupExpired(ctx)
			if err != nil {
				slog.Warn("Cache cleanup failed", "error", err)
				continue
			}
			if n > 0 {
				slog.Info("Removed expired cache entries", "count", n)
			}
		}
	}
}
