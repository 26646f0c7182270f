package worker

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/hibiken/asynq"

	"github.com/dharsanguruparan/ModelDrop/internal/assets"
	"github.com/dharsanguruparan/ModelDrop/internal/queue"
	"github.com/dharsanguruparan/ModelDrop/internal/storage"
)

// Processor is plugged into the asynq worker loop.
type Processor struct {
	records assets.RecordChecker
	blobs   storage.BlobStore
	logger  *slog.Logger
}

// NewProcessor constructs a worker processor.
func NewProcessor(records assets.RecordChecker, blobs storage.BlobStore, logger *slog.Logger) *Processor {
	return &Processor{records: records, blobs: blobs, logger: logger.With(slog.String("component", "worker"))}
}

// Handler registers the cleanup job handler.
func (p *Processor) Handler() *asynq.ServeMux {
	mux := asynq.NewServeMux()
	mux.HandleFunc(queue.CleanupAssetTask, p.handleCleanup)
	return mux
}

func (p *Processor) handleCleanup(ctx context.Context, task *asynq.Task) error {
	payload, err := queue.DecodeCleanup(task)
	if err != nil {
		// A malformed payload will never succeed.
		return fmt.Errorf("%w: %v", asynq.SkipRetry, err)
	}
	n, err := assets.Reclaim(ctx, p.records, p.blobs, payload.ResourcePath, payload.Keys)
	if err != nil {
		p.logger.Error("cleanup failed",
			slog.String("resource_path", payload.ResourcePath),
			slog.String("error", err.Error()),
		)
		return err
	}
	p.logger.Info("cleanup done",
		slog.String("resource_path", payload.ResourcePath),
		slog.Int("deleted", n),
	)
	return nil
}
