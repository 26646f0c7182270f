// Package api exposes the HTTP surface: uploads, listing, model viewing,
// static blob mounts, sign-in and health endpoints.
package api

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/dharsanguruparan/ModelDrop/internal/assets"
	"github.com/dharsanguruparan/ModelDrop/internal/auth"
	"github.com/dharsanguruparan/ModelDrop/internal/config"
	"github.com/dharsanguruparan/ModelDrop/internal/model"
	"github.com/dharsanguruparan/ModelDrop/internal/storage"
)

// ReadinessChecker reports whether a dependency can serve traffic.
type ReadinessChecker interface {
	CheckReady(ctx context.Context) error
}

// Deps are the collaborators the handlers need. Verifier and Ready may be
// nil: sign-in then reports 503 and readiness always succeeds.
type Deps struct {
	Config   *config.Config
	Assets   *assets.Service
	Blobs    storage.BlobStore
	Sessions *auth.SessionManager
	Verifier auth.IdentityVerifier
	Ready    ReadinessChecker
	Logger   *slog.Logger
}

// Server holds the HTTP handlers.
type Server struct {
	cfg      *config.Config
	assets   *assets.Service
	blobs    storage.BlobStore
	sessions *auth.SessionManager
	verifier auth.IdentityVerifier
	ready    ReadinessChecker
	logger   *slog.Logger
}

// New constructs a Server.
func New(deps Deps) *Server {
	logger := deps.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Server{
		cfg:      deps.Config,
		assets:   deps.Assets,
		blobs:    deps.Blobs,
		sessions: deps.Sessions,
		verifier: deps.Verifier,
		ready:    deps.Ready,
		logger:   logger.With(slog.String("component", "api")),
	}
}

// Routes builds the router with the full middleware chain.
func (s *Server) Routes() http.Handler {
	r := chi.NewRouter()
	r.Use(RequestID)
	r.Use(RequestLogger(s.logger))
	r.Use(Metrics)
	r.Use(Recoverer(s.logger))
	r.Use(SecurityHeaders(s.cfg.Production))
	r.Use(CORS(s.cfg.AllowedOrigin))

	r.Get("/health", s.handleHealth)
	r.Get("/health/ready", s.handleReady)
	r.Handle("/metrics", promhttp.Handler())

	limiter := NewRateLimiter(s.cfg.RateLimit, s.cfg.RateWindow)
	r.Group(func(r chi.Router) {
		r.Use(limiter.Middleware)
		r.Use(Session(s.sessions))

		r.With(RequireSession).Post("/upload", s.handleUpload)
		r.Get("/assets", s.handleListAssets)
		r.Get("/view/{resourcePath}", s.handleView)

		r.Get("/assets/*", s.handleStatic(model.ModelPrefix))
		r.Get("/qrcodes/*", s.handleStatic(model.QRPrefix))
		r.Get("/uploads/*", s.handleStatic("uploads/"))

		r.Route("/auth", func(r chi.Router) {
			r.Post("/google", s.handleGoogleLogin)
			r.Get("/me", s.handleMe)
			r.Post("/logout", s.handleLogout)
		})
	})

	r.NotFound(func(w http.ResponseWriter, _ *http.Request) {
		writeError(w, http.StatusNotFound, "NOT_FOUND", "route not found")
	})
	r.MethodNotAllowed(func(w http.ResponseWriter, _ *http.Request) {
		writeError(w, http.StatusMethodNotAllowed, "METHOD_NOT_ALLOWED", "method not allowed")
	})
	return r
}
