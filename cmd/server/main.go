package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/devasignhq/devasign-api-sub002/internal/wire"
)

func main() {
	if err := run(); err != nil {
		slog.Error("webhook service failed", "error", err)
		os.Exit(1)
	}
}

func run() error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	app, cleanup, err := wire.InitializeApp(ctx)
	if err != nil {
		return fmt.Errorf("failed to initialize application: %w", err)
	}
	defer cleanup()

	serverErr := make(chan error, 1)
	go func() {
		serverErr <- app.Start()
	}()

	select {
	case <-ctx.Done():
		slog.Info("received shutdown signal")
	case err := <-serverErr:
		if err != nil {
			slog.Error("server stopped unexpectedly", "error", err)
		}
	}

	// Stops the server, then drains running analysis jobs. The deferred cleanup
	// closes the database afterwards.
	if err := app.Stop(); err != nil {
		return fmt.Errorf("failed to stop application: %w", err)
	}
	return nil
}
