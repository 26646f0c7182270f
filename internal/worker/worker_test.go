package worker

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"strings"
	"testing"
	"time"

	"github.com/hibiken/asynq"

	"github.com/dharsanguruparan/ModelDrop/internal/model"
	"github.com/dharsanguruparan/ModelDrop/internal/queue"
	"github.com/dharsanguruparan/ModelDrop/internal/repository"
	"github.com/dharsanguruparan/ModelDrop/internal/storage"
)

const (
	keptID   = "kept000000000000"
	orphanID = "orphan0000000000"
)

func discard() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func setup(t *testing.T) (*repository.MemoryStore, *storage.FileStore) {
	t.Helper()
	ctx := context.Background()
	blobs, err := storage.NewFileStore(t.TempDir(), model.ModelPrefix, model.QRPrefix)
	if err != nil {
		t.Fatalf("NewFileStore: %v", err)
	}
	store := repository.NewMemoryStore()
	if err := store.Create(ctx, &model.Asset{
		FilePath:     model.ModelKey(keptID, ".glb"),
		ResourcePath: keptID,
		QRPath:       model.QRKey(keptID),
		UserID:       "u",
		Name:         "kept",
	}); err != nil {
		t.Fatalf("Create: %v", err)
	}
	for _, key := range []string{
		model.ModelKey(keptID, ".glb"),
		model.QRKey(keptID),
		model.ModelKey(orphanID, ".gltf"),
		model.QRKey(orphanID),
		"assets/readme.txt",
	} {
		if err := blobs.Put(ctx, key, strings.NewReader("x"), 1, ""); err != nil {
			t.Fatalf("Put %s: %v", key, err)
		}
	}
	return store, blobs
}

func exists(t *testing.T, blobs storage.BlobStore, key string) bool {
	t.Helper()
	obj, err := blobs.Open(context.Background(), key)
	if errors.Is(err, storage.ErrNotFound) {
		return false
	}
	if err != nil {
		t.Fatalf("Open %s: %v", key, err)
	}
	obj.Body.Close()
	return true
}

func TestSweeperRespectsGrace(t *testing.T) {
	store, blobs := setup(t)
	s := NewSweeper(store, blobs, time.Hour, discard())

	n, err := s.Sweep(context.Background())
	if err != nil {
		t.Fatalf("Sweep: %v", err)
	}
	if n != 0 {
		t.Fatalf("fresh blobs swept: %d", n)
	}
	if !exists(t, blobs, model.QRKey(orphanID)) {
		t.Fatal("fresh orphan removed")
	}
}

func TestSweeperRemovesOldOrphans(t *testing.T) {
	store, blobs := setup(t)
	s := NewSweeper(store, blobs, time.Hour, discard())
	s.now = func() time.Time { return time.Now().Add(2 * time.Hour) }

	n, err := s.Sweep(context.Background())
	if err != nil {
		t.Fatalf("Sweep: %v", err)
	}
	if n != 2 {
		t.Fatalf("swept %d blobs, want 2", n)
	}
	for key, want := range map[string]bool{
		model.ModelKey(keptID, ".glb"):    true,
		model.QRKey(keptID):               true,
		model.ModelKey(orphanID, ".gltf"): false,
		model.QRKey(orphanID):             false,
		"assets/readme.txt":               true,
	} {
		if got := exists(t, blobs, key); got != want {
			t.Errorf("%s exists = %v, want %v", key, got, want)
		}
	}
}

func TestSweeperRunRejectsBadSchedule(t *testing.T) {
	store, blobs := setup(t)
	s := NewSweeper(store, blobs, time.Hour, discard())
	if err := s.Run(context.Background(), "not a schedule"); err == nil {
		t.Fatal("expected schedule parse error")
	}
}

func TestProcessorCleanup(t *testing.T) {
	store, blobs := setup(t)
	p := NewProcessor(store, blobs, discard())

	task := func(id string, keys ...string) *asynq.Task {
		data, _ := json.Marshal(queue.CleanupPayload{ResourcePath: id, Keys: keys})
		return asynq.NewTask(queue.CleanupAssetTask, data)
	}

	if err := p.handleCleanup(context.Background(), task(keptID, model.ModelKey(keptID, ".glb"))); err != nil {
		t.Fatalf("cleanup kept: %v", err)
	}
	if !exists(t, blobs, model.ModelKey(keptID, ".glb")) {
		t.Fatal("cleanup removed a blob whose record exists")
	}

	if err := p.handleCleanup(context.Background(), task(orphanID, model.ModelKey(orphanID, ".gltf"), model.QRKey(orphanID))); err != nil {
		t.Fatalf("cleanup orphan: %v", err)
	}
	if exists(t, blobs, model.ModelKey(orphanID, ".gltf")) || exists(t, blobs, model.QRKey(orphanID)) {
		t.Fatal("orphan blobs not removed")
	}

	err := p.handleCleanup(context.Background(), asynq.NewTask(queue.CleanupAssetTask, []byte("{")))
	if !errors.Is(err, asynq.SkipRetry) {
		t.Fatalf("malformed payload err = %v, want SkipRetry", err)
	}
}
