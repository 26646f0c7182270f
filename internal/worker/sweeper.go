package worker

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/dharsanguruparan/ModelDrop/internal/assets"
	"github.com/dharsanguruparan/ModelDrop/internal/ident"
	"github.com/dharsanguruparan/ModelDrop/internal/model"
	"github.com/dharsanguruparan/ModelDrop/internal/storage"
)

// Sweeper removes blobs that no asset record references. Only keys named
// after a well-formed identifier and older than the grace period are
// considered, so uploads still in flight are left alone.
type Sweeper struct {
	records assets.RecordChecker
	blobs   storage.BlobStore
	grace   time.Duration
	logger  *slog.Logger
	now     func() time.Time
}

// NewSweeper constructs a Sweeper.
func NewSweeper(records assets.RecordChecker, blobs storage.BlobStore, grace time.Duration, logger *slog.Logger) *Sweeper {
	return &Sweeper{
		records: records,
		blobs:   blobs,
		grace:   grace,
		logger:  logger.With(slog.String("component", "sweeper")),
		now:     time.Now,
	}
}

// Sweep makes one pass and returns the number of blobs deleted.
func (s *Sweeper) Sweep(ctx context.Context) (int, error) {
	cutoff := s.now().Add(-s.grace)
	known := make(map[string]bool)
	deleted := 0
	for _, prefix := range []string{model.ModelPrefix, model.QRPrefix} {
		objs, err := s.blobs.List(ctx, prefix)
		if err != nil {
			return deleted, fmt.Errorf("list %s: %w", prefix, err)
		}
		for _, obj := range objs {
			id := model.Stem(obj.Key)
			if !ident.Valid(id) || obj.ModTime.After(cutoff) {
				continue
			}
			exists, ok := known[id]
			if !ok {
				exists, err = s.records.ExistsByResourcePath(ctx, id)
				if err != nil {
					return deleted, fmt.Errorf("check record %s: %w", id, err)
				}
				known[id] = exists
			}
			if exists {
				continue
			}
			if err := s.blobs.Delete(ctx, obj.Key); err != nil {
				return deleted, fmt.Errorf("delete %s: %w", obj.Key, err)
			}
			s.logger.Info("orphan removed", slog.String("key", obj.Key), slog.Time("mod_time", obj.ModTime))
			deleted++
		}
	}
	return deleted, nil
}

// Run sweeps on schedule until ctx is cancelled, then waits for a running
// sweep to finish.
func (s *Sweeper) Run(ctx context.Context, schedule string) error {
	c := cron.New()
	_, err := c.AddFunc(schedule, func() {
		n, err := s.Sweep(ctx)
		if err != nil {
			s.logger.Error("sweep failed", slog.String("error", err.Error()))
			return
		}
		s.logger.Info("sweep finished", slog.Int("deleted", n))
	})
	if err != nil {
		return fmt.Errorf("parse sweep schedule %q: %w", schedule, err)
	}
	c.Start()
	s.logger.Info("sweeper started", slog.String("schedule", schedule), slog.Duration("grace", s.grace))
	<-ctx.Done()
	<-c.Stop().Done()
	return nil
}
