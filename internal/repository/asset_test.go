package repository

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"os"
	"testing"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"

	"github.com/dharsanguruparan/ModelDrop/internal/database"
	"github.com/dharsanguruparan/ModelDrop/internal/model"
)

// setupTestDB starts Postgres in a container and applies the migrations.
func setupTestDB(t *testing.T) *pgxpool.Pool {
	t.Helper()
	if os.Getenv("TEST_INTEGRATION") == "" {
		t.Skip("skipping integration test: TEST_INTEGRATION not set")
	}
	ctx := context.Background()
	container, err := postgres.Run(ctx,
		"docker.io/postgres:17-alpine",
		postgres.WithDatabase("modeldrop_test"),
		postgres.WithUsername("modeldrop"),
		postgres.WithPassword("test-password"),
		testcontainers.WithWaitStrategy(
			wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(30*time.Second),
		),
	)
	if err != nil {
		t.Fatalf("start postgres container: %v", err)
	}
	t.Cleanup(func() {
		if err := container.Terminate(ctx); err != nil {
			t.Logf("terminate container: %v", err)
		}
	})
	dsn, err := container.ConnectionString(ctx, "sslmode=disable")
	if err != nil {
		t.Fatalf("connection string: %v", err)
	}
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	if err := database.Migrate(dsn, logger); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	pool, err := database.Connect(ctx, dsn, 4, logger)
	if err != nil {
		t.Fatalf("connect: %v", err)
	}
	t.Cleanup(pool.Close)
	return pool
}

func newAsset(id string) *model.Asset {
	return &model.Asset{
		FilePath:     model.ModelKey(id, ".glb"),
		UserID:       "user@example.com",
		ResourcePath: id,
		Name:         "Chair",
		QRPath:       model.QRKey(id),
	}
}

func TestAssetRepositoryCRUD(t *testing.T) {
	pool := setupTestDB(t)
	ctx := context.Background()
	repo := NewAssetRepository(pool)

	first := newAsset("aaaaaaaaaaaaaaaa")
	if err := repo.Create(ctx, first); err != nil {
		t.Fatalf("Create: %v", err)
	}
	if first.ID == 0 || first.CreatedAt.IsZero() {
		t.Fatalf("Create did not return id/created_at: %+v", first)
	}
	second := newAsset("bbbbbbbbbbbbbbbb")
	if err := repo.Create(ctx, second); err != nil {
		t.Fatalf("Create second: %v", err)
	}

	got, err := repo.GetByResourcePath(ctx, "aaaaaaaaaaaaaaaa")
	if err != nil {
		t.Fatalf("GetByResourcePath: %v", err)
	}
	if got.FilePath != "assets/aaaaaaaaaaaaaaaa.glb" || got.Description != "" {
		t.Fatalf("unexpected record: %+v", got)
	}

	list, err := repo.List(ctx)
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(list) != 2 || list[0].ResourcePath != "bbbbbbbbbbbbbbbb" {
		t.Fatalf("List order wrong: %+v", list)
	}

	exists, err := repo.ExistsByResourcePath(ctx, "bbbbbbbbbbbbbbbb")
	if err != nil || !exists {
		t.Fatalf("ExistsByResourcePath = %v, %v", exists, err)
	}
}

func TestAssetRepositoryConflict(t *testing.T) {
	pool := setupTestDB(t)
	ctx := context.Background()
	repo := NewAssetRepository(pool)
	if err := repo.Create(ctx, newAsset("cccccccccccccccc")); err != nil {
		t.Fatalf("Create: %v", err)
	}
	err := repo.Create(ctx, newAsset("cccccccccccccccc"))
	if !errors.Is(err, ErrConflict) {
		t.Fatalf("duplicate Create err = %v, want ErrConflict", err)
	}
}

func TestAssetRepositoryInjectionIsInert(t *testing.T) {
	pool := setupTestDB(t)
	ctx := context.Background()
	repo := NewAssetRepository(pool)
	if err := repo.Create(ctx, newAsset("dddddddddddddddd")); err != nil {
		t.Fatalf("Create: %v", err)
	}
	for _, probe := range []string{"' OR '1'='1", "x'; DROP TABLE assets; --", "dddddddddddddddd' --"} {
		if _, err := repo.GetByResourcePath(ctx, probe); !errors.Is(err, ErrNotFound) {
			t.Fatalf("GetByResourcePath(%q) err = %v, want ErrNotFound", probe, err)
		}
	}
	list, err := repo.List(ctx)
	if err != nil || len(list) != 1 {
		t.Fatalf("table damaged by probe: %v, %d rows", err, len(list))
	}
}
