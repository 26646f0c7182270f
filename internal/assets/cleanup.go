package assets

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/dharsanguruparan/ModelDrop/internal/storage"
)

// RecordChecker reports whether an asset record exists.
type RecordChecker interface {
	ExistsByResourcePath(ctx context.Context, id string) (bool, error)
}

// Reclaim deletes keys left by an upload that never produced a record. When
// a record for resourcePath exists the keys belong to it and are kept.
func Reclaim(ctx context.Context, records RecordChecker, blobs storage.BlobStore, resourcePath string, keys []string) (int, error) {
	exists, err := records.ExistsByResourcePath(ctx, resourcePath)
	if err != nil {
		return 0, fmt.Errorf("check record %s: %w", resourcePath, err)
	}
	if exists {
		return 0, nil
	}
	var errs []error
	deleted := 0
	for _, key := range keys {
		if err := blobs.Delete(ctx, key); err != nil {
			errs = append(errs, fmt.Errorf("delete %s: %w", key, err))
			continue
		}
		deleted++
	}
	return deleted, errors.Join(errs...)
}

// InlineCleaner reclaims orphans synchronously. It is used when no task
// queue is configured.
type InlineCleaner struct {
	records RecordChecker
	blobs   storage.BlobStore
	logger  *slog.Logger
}

// NewInlineCleaner returns a Cleaner deleting blobs in the caller's goroutine.
func NewInlineCleaner(records RecordChecker, blobs storage.BlobStore, logger *slog.Logger) *InlineCleaner {
	return &InlineCleaner{records: records, blobs: blobs, logger: logger.With(slog.String("component", "cleanup"))}
}

// Cleanup implements Cleaner.
func (c *InlineCleaner) Cleanup(ctx context.Context, resourcePath string, keys []string) error {
	n, err := Reclaim(ctx, c.records, c.blobs, resourcePath, keys)
	if err != nil {
		return err
	}
	if n > 0 {
		c.logger.Info("orphan blobs removed", slog.String("resource_path", resourcePath), slog.Int("count", n))
	}
	return nil
}

// FallbackCleaner tries Primary and falls back to Secondary when it fails.
type FallbackCleaner struct {
	Primary   Cleaner
	Secondary Cleaner
}

// Cleanup implements Cleaner.
func (f FallbackCleaner) Cleanup(ctx context.Context, resourcePath string, keys []string) error {
	err := f.Primary.Cleanup(ctx, resourcePath, keys)
	if err == nil {
		return nil
	}
	if ferr := f.Secondary.Cleanup(ctx, resourcePath, keys); ferr != nil {
		return errors.Join(err, ferr)
	}
	return nil
}
