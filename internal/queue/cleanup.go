package queue

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/hibiken/asynq"
)

const (
	// CleanupAssetTask is scheduled when an upload fails after writing blobs.
	CleanupAssetTask = "asset:cleanup"
)

// CleanupPayload names the blobs an incomplete upload left behind.
type CleanupPayload struct {
	ResourcePath string   `json:"resource_path"`
	Keys         []string `json:"keys"`
}

// EnqueueCleanup enqueues an orphan cleanup job.
func EnqueueCleanup(ctx context.Context, client *asynq.Client, payload CleanupPayload) error {
	data, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal payload: %w", err)
	}
	task := asynq.NewTask(CleanupAssetTask, data)
	// The delay lets an in-flight insert for the same identifier land before
	// the worker checks for a record.
	if _, err := client.EnqueueContext(ctx, task, asynq.MaxRetry(5), asynq.ProcessIn(30*time.Second)); err != nil {
		return fmt.Errorf("enqueue cleanup task: %w", err)
	}
	return nil
}

// DecodeCleanup parses a cleanup task payload.
func DecodeCleanup(task *asynq.Task) (CleanupPayload, error) {
	var payload CleanupPayload
	if err := json.Unmarshal(task.Payload(), &payload); err != nil {
		return payload, fmt.Errorf("decode payload: %w", err)
	}
	if payload.ResourcePath == "" {
		return payload, fmt.Errorf("decode payload: missing resource_path")
	}
	return payload, nil
}

// Scheduler enqueues cleanups on asynq. It satisfies assets.Cleaner.
type Scheduler struct {
	client *asynq.Client
}

// NewScheduler wraps an asynq client.
func NewScheduler(client *asynq.Client) *Scheduler {
	return &Scheduler{client: client}
}

// Cleanup enqueues a CleanupAssetTask.
func (s *Scheduler) Cleanup(ctx context.Context, resourcePath string, keys []string) error {
	return EnqueueCleanup(ctx, s.client, CleanupPayload{ResourcePath: resourcePath, Keys: keys})
}

// RedisOpt builds the asynq connection options shared by client and server.
func RedisOpt(addr, password string, db int) asynq.RedisClientOpt {
	return asynq.RedisClientOpt{Addr: addr, Password: password, DB: db}
}
