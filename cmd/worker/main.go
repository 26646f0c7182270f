// Package main is the entry point for the ModelDrop worker. It consumes the
// cleanup tasks queued by failed uploads and runs the periodic orphan sweep.
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
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "load config: %v\n", err)
		os.Exit(1)
	}
	logger := config.SetupLogger(cfg)

	// Cancelling ctx stops the asynq server and the cron sweeper together.
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := app.RunWorker(ctx, cfg, logger); err != nil {
		logger.Error("worker stopped", slog.String("error", err.Error()))
		os.Exit(1)
	}
}
