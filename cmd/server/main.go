// Package main is the entry point for the ModelDrop API binary. It only
// loads configuration and hands off to internal/app, so the same wiring is
// shared with `modeldrop serve`.
package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/dharsanguruparan/ModelDrop/internal/app"
	"github.com/dharsanguruparan/ModelDrop/internal/config"
)

func main() {
	// Step 1: configuration comes from the environment (and an optional .env).
	// Errors are values in Go, so a bad variable is reported, not thrown.
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "load config: %v\n", err)
		os.Exit(1)
	}
	logger := config.SetupLogger(cfg)

	// Step 2: ctx is cancelled on SIGINT/SIGTERM, which starts the graceful
	// HTTP shutdown inside RunAPI.
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := app.RunAPI(ctx, cfg, logger); err != nil {
		logger.Error("server stopped", slog.String("error", err.Error()))
		os.Exit(1)
	}
}
