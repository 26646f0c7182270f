// Package assets implements the upload pipeline, identifier resolution and
// listing of 3D model assets.
package assets

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"path"
	"strings"

	"github.com/go-playground/validator/v10"
	lru "github.com/hashicorp/golang-lru/v2"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/dharsanguruparan/ModelDrop/internal/apperr"
	"github.com/dharsanguruparan/ModelDrop/internal/auth"
	"github.com/dharsanguruparan/ModelDrop/internal/ident"
	"github.com/dharsanguruparan/ModelDrop/internal/model"
	"github.com/dharsanguruparan/ModelDrop/internal/repository"
	"github.com/dharsanguruparan/ModelDrop/internal/storage"
)

var (
	uploadsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "modeldrop_uploads_total",
		Help: "Upload attempts by result.",
	}, []string{"result"})

	uploadBytesTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "modeldrop_upload_bytes_total",
		Help: "Model bytes stored by successful uploads.",
	})

	resolveCacheTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "modeldrop_resolve_cache_total",
		Help: "Resolve cache lookups by outcome.",
	}, []string{"outcome"})

	cleanupsScheduled = promauto.NewCounter(prometheus.CounterOpts{
		Name: "modeldrop_cleanups_scheduled_total",
		Help: "Orphan cleanups scheduled after a failed upload.",
	})
)

// allowedExtensions is matched case-insensitively.
var allowedExtensions = map[string]bool{
	".glb":  true,
	".gltf": true,
}

// AssetStore is the persistence collaborator.
type AssetStore interface {
	Create(ctx context.Context, asset *model.Asset) error
	GetByResourcePath(ctx context.Context, id string) (*model.Asset, error)
	ExistsByResourcePath(ctx context.Context, id string) (bool, error)
	List(ctx context.Context) ([]*model.Asset, error)
}

// QREncoder renders a view URL as PNG bytes.
type QREncoder interface {
	Encode(content string) ([]byte, error)
}

// IDGenerator allocates resource identifiers.
type IDGenerator interface {
	New() string
}

// Cleaner disposes of blobs written by an upload that did not complete.
type Cleaner interface {
	Cleanup(ctx context.Context, resourcePath string, keys []string) error
}

// UploadInput is one upload request.
type UploadInput struct {
	Principal   *auth.Principal
	Filename    string    `validate:"required,max=255"`
	Size        int64     `validate:"gt=0"`
	Body        io.Reader `validate:"required"`
	Name        string    `validate:"max=255"`
	Description string    `validate:"max=4096"`
}

// Resolved is a located asset with its opened model blob. Callers must
// close Object.Body.
type Resolved struct {
	Asset  *model.Asset
	Object *storage.Object
}

// Options tunes a Service.
type Options struct {
	// Origin is prefixed to identifiers to build the URL encoded in QR images.
	Origin      string
	MaxFileSize int64
	CacheSize   int
	// Cleaner defaults to deleting inline.
	Cleaner Cleaner
	Logger  *slog.Logger
}

// Service runs the asset pipeline.
type Service struct {
	store    AssetStore
	blobs    storage.BlobStore
	qr       QREncoder
	ids      IDGenerator
	cleaner  Cleaner
	validate *validator.Validate
	cache    *lru.Cache[string, *model.Asset]
	origin   string
	maxSize  int64
	logger   *slog.Logger
}

// NewService wires the collaborators.
func NewService(store AssetStore, blobs storage.BlobStore, qr QREncoder, ids IDGenerator, opts Options) (*Service, error) {
	if opts.Origin == "" {
		return nil, errors.New("assets: origin is required")
	}
	if opts.MaxFileSize <= 0 {
		return nil, errors.New("assets: max file size must be positive")
	}
	if opts.CacheSize <= 0 {
		opts.CacheSize = 1024
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	cache, err := lru.New[string, *model.Asset](opts.CacheSize)
	if err != nil {
		return nil, fmt.Errorf("assets: create cache: %w", err)
	}
	s := &Service{
		store:    store,
		blobs:    blobs,
		qr:       qr,
		ids:      ids,
		cleaner:  opts.Cleaner,
		validate: validator.New(validator.WithRequiredStructEnabled()),
		cache:    cache,
		origin:   strings.TrimRight(opts.Origin, "/"),
		maxSize:  opts.MaxFileSize,
		logger:   opts.Logger.With(slog.String("component", "assets")),
	}
	if s.cleaner == nil {
		s.cleaner = NewInlineCleaner(store, blobs, opts.Logger)
	}
	return s, nil
}

// ViewURL is the public link encoded in an asset's QR image.
func (s *Service) ViewURL(resourcePath string) string {
	return s.origin + "/" + resourcePath
}

// MaxFileSize is the largest model accepted.
func (s *Service) MaxFileSize() int64 {
	return s.maxSize
}

// ValidateFile checks the file name extension and declared size. A size of
// -1 skips the size check, for callers that have not read the body yet.
func (s *Service) ValidateFile(filename string, size int64) error {
	if filename == "" {
		return apperr.InvalidInput("file is required")
	}
	ext := strings.ToLower(path.Ext(filename))
	if !allowedExtensions[ext] {
		return apperr.InvalidInput("only .glb and .gltf files are allowed")
	}
	if size == -1 {
		return nil
	}
	if size <= 0 {
		return apperr.InvalidInput("file is empty")
	}
	if size > s.maxSize {
		return apperr.InvalidInput(fmt.Sprintf("file exceeds the %d byte limit", s.maxSize))
	}
	return nil
}

// Upload stores the model, renders its QR image and records the asset. The
// model is written before the record so a record never points at a missing
// file.
func (s *Service) Upload(ctx context.Context, in UploadInput) (*model.Asset, error) {
	asset, err := s.upload(ctx, in)
	uploadsTotal.WithLabelValues(resultLabel(err)).Inc()
	if err == nil {
		uploadBytesTotal.Add(float64(in.Size))
	}
	return asset, err
}

func (s *Service) upload(ctx context.Context, in UploadInput) (*model.Asset, error) {
	if in.Principal == nil || in.Principal.ID() == "" {
		return nil, apperr.Unauthenticated("authentication required")
	}
	if err := s.ValidateFile(in.Filename, in.Size); err != nil {
		return nil, err
	}
	if err := s.validate.Struct(in); err != nil {
		return nil, apperr.InvalidInput(validationMessage(err))
	}

	id := s.ids.New()
	logger := s.logger.With(slog.String("resource_path", id))

	taken, err := s.store.ExistsByResourcePath(ctx, id)
	if err != nil {
		logger.Error("check identifier failed", slog.String("error", err.Error()))
		return nil, apperr.Internal("check identifier", err)
	}
	if taken {
		return nil, apperr.Conflict("identifier collision, retry the upload", repository.ErrConflict)
	}

	ext := strings.ToLower(path.Ext(in.Filename))
	modelKey := model.ModelKey(id, ext)
	body := io.LimitReader(in.Body, in.Size+1)
	if err := s.blobs.Put(ctx, modelKey, body, in.Size, storage.ContentTypeFor(modelKey)); err != nil {
		if errors.Is(err, storage.ErrSizeMismatch) {
			return nil, apperr.InvalidInput("file size does not match the uploaded body")
		}
		logger.Error("store model failed", slog.String("key", modelKey), slog.String("error", err.Error()))
		return nil, apperr.Internal("store model", err)
	}
	written := []string{modelKey}

	qrKey := model.QRKey(id)
	png, err := s.qr.Encode(s.ViewURL(id))
	if err != nil {
		logger.Error("render qr failed", slog.String("error", err.Error()))
		s.scheduleCleanup(ctx, id, written)
		return nil, apperr.Internal("render qr", err)
	}
	if err := s.blobs.Put(ctx, qrKey, bytes.NewReader(png), int64(len(png)), "image/png"); err != nil {
		logger.Error("store qr failed", slog.String("key", qrKey), slog.String("error", err.Error()))
		s.scheduleCleanup(ctx, id, append(written, qrKey))
		return nil, apperr.Internal("store qr", err)
	}
	written = append(written, qrKey)

	name := in.Name
	if name == "" {
		name = in.Filename
	}
	asset := &model.Asset{
		FilePath:     modelKey,
		UserID:       in.Principal.ID(),
		ResourcePath: id,
		Name:         name,
		Description:  in.Description,
		QRPath:       qrKey,
	}
	if err := s.store.Create(ctx, asset); err != nil {
		s.scheduleCleanup(ctx, id, written)
		if errors.Is(err, repository.ErrConflict) {
			logger.Warn("identifier collision on insert")
			return nil, apperr.Conflict("identifier collision, retry the upload", err)
		}
		logger.Error("insert asset failed", slog.String("error", err.Error()))
		return nil, apperr.Internal("insert asset", err)
	}
	logger.Info("asset uploaded",
		slog.String("user_id", asset.UserID),
		slog.Int64("size", in.Size),
	)
	return asset, nil
}

// scheduleCleanup hands written keys to the cleaner. The request context may
// already be cancelled, so the cleaner gets one detached from it.
func (s *Service) scheduleCleanup(ctx context.Context, resourcePath string, keys []string) {
	cleanupsScheduled.Inc()
	if err := s.cleaner.Cleanup(context.WithoutCancel(ctx), resourcePath, keys); err != nil {
		s.logger.Error("schedule cleanup failed",
			slog.String("resource_path", resourcePath),
			slog.Any("keys", keys),
			slog.String("error", err.Error()),
		)
	}
}

// Resolve looks up an asset by identifier and opens its model.
func (s *Service) Resolve(ctx context.Context, id string) (*Resolved, error) {
	if !ident.Valid(id) {
		return nil, apperr.NotFound("asset not found")
	}
	asset, err := s.lookup(ctx, id)
	if err != nil {
		return nil, err
	}
	obj, err := s.blobs.Open(ctx, asset.FilePath)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			s.logger.Warn("asset record has no model file",
				slog.String("resource_path", id),
				slog.String("key", asset.FilePath),
			)
			return nil, apperr.NotFound("asset not found")
		}
		s.logger.Error("open model failed", slog.String("resource_path", id), slog.String("error", err.Error()))
		return nil, apperr.Internal("open model", err)
	}
	return &Resolved{Asset: asset, Object: obj}, nil
}

func (s *Service) lookup(ctx context.Context, id string) (*model.Asset, error) {
	if asset, ok := s.cache.Get(id); ok {
		resolveCacheTotal.WithLabelValues("hit").Inc()
		return asset, nil
	}
	resolveCacheTotal.WithLabelValues("miss").Inc()
	asset, err := s.store.GetByResourcePath(ctx, id)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, apperr.NotFound("asset not found")
		}
		s.logger.Error("lookup asset failed", slog.String("resource_path", id), slog.String("error", err.Error()))
		return nil, apperr.Internal("lookup asset", err)
	}
	s.cache.Add(id, asset)
	return asset, nil
}

// List returns every asset's public fields, most recent first.
func (s *Service) List(ctx context.Context) ([]model.AssetSummary, error) {
	assets, err := s.store.List(ctx)
	if err != nil {
		s.logger.Error("list assets failed", slog.String("error", err.Error()))
		return nil, apperr.Internal("list assets", err)
	}
	out := make([]model.AssetSummary, 0, len(assets))
	for _, a := range assets {
		out = append(out, a.Summary())
	}
	return out, nil
}

func validationMessage(err error) string {
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) || len(verrs) == 0 {
		return "invalid upload"
	}
	fe := verrs[0]
	field := strings.ToLower(fe.Field())
	switch fe.Tag() {
	case "required":
		return field + " is required"
	case "max":
		return fmt.Sprintf("%s must be at most %s characters", field, fe.Param())
	case "gt":
		return field + " must be positive"
	}
	return "invalid " + field
}

func resultLabel(err error) string {
	if err == nil {
		return "ok"
	}
	return strings.ToLower(string(apperr.KindOf(err)))
}
