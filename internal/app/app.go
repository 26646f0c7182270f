// Package app assembles the API and worker processes from configuration.
package app

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"

	"github.com/hibiken/asynq"
	"github.com/jackc/pgx/v5/pgxpool"
	"golang.org/x/sync/errgroup"

	"github.com/dharsanguruparan/ModelDrop/internal/api"
	"github.com/dharsanguruparan/ModelDrop/internal/assets"
	"github.com/dharsanguruparan/ModelDrop/internal/auth"
	"github.com/dharsanguruparan/ModelDrop/internal/config"
	"github.com/dharsanguruparan/ModelDrop/internal/database"
	"github.com/dharsanguruparan/ModelDrop/internal/ident"
	"github.com/dharsanguruparan/ModelDrop/internal/model"
	"github.com/dharsanguruparan/ModelDrop/internal/qr"
	"github.com/dharsanguruparan/ModelDrop/internal/queue"
	"github.com/dharsanguruparan/ModelDrop/internal/repository"
	"github.com/dharsanguruparan/ModelDrop/internal/server"
	"github.com/dharsanguruparan/ModelDrop/internal/storage"
	"github.com/dharsanguruparan/ModelDrop/internal/worker"
)

// Infra holds the shared persistence collaborators.
type Infra struct {
	Pool  *pgxpool.Pool
	Repo  *repository.AssetRepository
	Blobs storage.BlobStore
}

// Close releases the connection pool.
func (i *Infra) Close() {
	i.Pool.Close()
}

// OpenInfra connects to Postgres and opens the configured blob store.
func OpenInfra(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*Infra, error) {
	pool, err := database.Connect(ctx, cfg.DatabaseURL, cfg.DBMaxConns, logger)
	if err != nil {
		return nil, err
	}
	blobs, err := OpenBlobStore(ctx, cfg)
	if err != nil {
		pool.Close()
		return nil, err
	}
	return &Infra{Pool: pool, Repo: repository.NewAssetRepository(pool), Blobs: blobs}, nil
}

// OpenBlobStore returns the file or S3 store selected by cfg.Storage.
func OpenBlobStore(ctx context.Context, cfg *config.Config) (storage.BlobStore, error) {
	switch cfg.Storage {
	case config.StorageS3:
		s3, err := storage.NewS3Store(cfg)
		if err != nil {
			return nil, err
		}
		if err := s3.EnsureBucket(ctx); err != nil {
			return nil, err
		}
		return s3, nil
	default:
		fs, err := storage.NewFileStore(cfg.DataDir, model.ModelPrefix, model.QRPrefix)
		if err != nil {
			return nil, fmt.Errorf("open file store: %w", err)
		}
		return fs, nil
	}
}

// RunAPI migrates the schema and serves HTTP until ctx is cancelled.
func RunAPI(ctx context.Context, cfg *config.Config, logger *slog.Logger) error {
	if err := database.Migrate(cfg.DatabaseURL, logger); err != nil {
		return err
	}
	infra, err := OpenInfra(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer infra.Close()

	var cleaner assets.Cleaner = assets.NewInlineCleaner(infra.Repo, infra.Blobs, logger)
	if cfg.RedisAddr != "" {
		client := asynq.NewClient(queue.RedisOpt(cfg.RedisAddr, cfg.RedisPassword, cfg.RedisDB))
		defer client.Close()
		cleaner = assets.FallbackCleaner{Primary: queue.NewScheduler(client), Secondary: cleaner}
	} else {
		logger.Info("no redis configured, orphan cleanup runs inline")
	}

	handler, err := buildAPI(ctx, cfg, logger, apiParts{
		records: infra.Repo,
		blobs:   infra.Blobs,
		cleaner: cleaner,
		ready:   database.NewReadinessChecker(infra.Pool),
	})
	if err != nil {
		return err
	}
	return server.New(cfg, handler, logger).Serve(ctx)
}

// MemoryAPI builds the HTTP handler over an in-memory record store and a
// file blob store under cfg.DataDir. Postgres and Redis are never touched,
// and records are lost on restart.
func MemoryAPI(ctx context.Context, cfg *config.Config, logger *slog.Logger) (http.Handler, error) {
	blobs, err := storage.NewFileStore(cfg.DataDir, model.ModelPrefix, model.QRPrefix)
	if err != nil {
		return nil, fmt.Errorf("open file store: %w", err)
	}
	records := repository.NewMemoryStore()
	return buildAPI(ctx, cfg, logger, apiParts{
		records: records,
		blobs:   blobs,
		cleaner: assets.NewInlineCleaner(records, blobs, logger),
		ready:   records,
	})
}

// RunMemoryAPI serves MemoryAPI until ctx is cancelled.
func RunMemoryAPI(ctx context.Context, cfg *config.Config, logger *slog.Logger) error {
	logger.Warn("running with in-memory records, uploads are forgotten on restart",
		slog.String("data_dir", cfg.DataDir),
	)
	handler, err := MemoryAPI(ctx, cfg, logger)
	if err != nil {
		return err
	}
	return server.New(cfg, handler, logger).Serve(ctx)
}

// apiParts are the collaborators that differ between the Postgres and the
// in-memory API.
type apiParts struct {
	records assets.AssetStore
	blobs   storage.BlobStore
	cleaner assets.Cleaner
	ready   api.ReadinessChecker
}

func buildAPI(ctx context.Context, cfg *config.Config, logger *slog.Logger, parts apiParts) (http.Handler, error) {
	svc, err := assets.NewService(parts.records, parts.blobs, qr.NewEncoder(cfg.QRSize), ident.New(), assets.Options{
		Origin:      cfg.PublicOrigin,
		MaxFileSize: cfg.MaxFileSize,
		CacheSize:   cfg.ResolveCacheSize,
		Cleaner:     parts.cleaner,
		Logger:      logger,
	})
	if err != nil {
		return nil, err
	}

	var verifier auth.IdentityVerifier
	if cfg.GoogleClientID != "" {
		v, err := auth.NewGoogleVerifier(ctx, cfg.GoogleJWKSURL, cfg.GoogleClientID, logger)
		if err != nil {
			return nil, err
		}
		verifier = v
	} else {
		logger.Warn("MODELDROP_GOOGLE_CLIENT_ID is unset, google sign-in is disabled")
	}
	if cfg.SessionGenerated {
		logger.Warn("MODELDROP_SESSION_SECRET is unset, sessions will not survive a restart")
	}

	return api.New(api.Deps{
		Config:   cfg,
		Assets:   svc,
		Blobs:    parts.blobs,
		Sessions: auth.NewSessionManager(cfg.SessionSecret, cfg.SessionTTL, cfg.Production),
		Verifier: verifier,
		Ready:    parts.ready,
		Logger:   logger,
	}).Routes(), nil
}

// RunWorker processes cleanup tasks (when Redis is configured) and runs the
// orphan sweeper until ctx is cancelled.
func RunWorker(ctx context.Context, cfg *config.Config, logger *slog.Logger) error {
	infra, err := OpenInfra(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer infra.Close()

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return worker.NewSweeper(infra.Repo, infra.Blobs, cfg.OrphanGrace, logger).Run(ctx, cfg.SweepSchedule)
	})
	if cfg.RedisAddr != "" {
		srv := asynq.NewServer(queue.RedisOpt(cfg.RedisAddr, cfg.RedisPassword, cfg.RedisDB), asynq.Config{
			Concurrency: cfg.WorkerConcurrency,
			Logger:      asynqLogger{logger.With(slog.String("component", "asynq"))},
		})
		processor := worker.NewProcessor(infra.Repo, infra.Blobs, logger)
		if err := srv.Start(processor.Handler()); err != nil {
			return fmt.Errorf("start asynq server: %w", err)
		}
		g.Go(func() error {
			<-ctx.Done()
			srv.Shutdown()
			return nil
		})
	} else {
		logger.Info("no redis configured, only the sweeper runs")
	}
	return g.Wait()
}

// SweepOnce runs a single orphan sweep.
func SweepOnce(ctx context.Context, cfg *config.Config, logger *slog.Logger) (int, error) {
	infra, err := OpenInfra(ctx, cfg, logger)
	if err != nil {
		return 0, err
	}
	defer infra.Close()
	return worker.NewSweeper(infra.Repo, infra.Blobs, cfg.OrphanGrace, logger).Sweep(ctx)
}

// asynqLogger adapts slog to asynq.Logger.
type asynqLogger struct {
	l *slog.Logger
}

func (a asynqLogger) Debug(args ...any) { a.l.Debug(fmt.Sprint(args...)) }
func (a asynqLogger) Info(args ...any) { a.l.Info(fmt.Sprint(args...)) }
func (a asynqLogger) Warn(args ...any) { a.l.Warn(fmt.Sprint(args...)) }
func (a asynqLogger) Error(args ...any) { a.l.Error(fmt.Sprint(args...)) }
func (a asynqLogger) Fatal(args ...any) {
	a.l.Error(fmt.Sprint(args...))
	os.Exit(1)
}
