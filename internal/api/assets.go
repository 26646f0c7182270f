package api

import (
	"errors"
	"log/slog"
	"net/http"
	"path"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/dharsanguruparan/ModelDrop/internal/storage"
)

func (s *Server) handleListAssets(w http.ResponseWriter, r *http.Request) {
	list, err := s.assets.List(r.Context())
	if err != nil {
		writeAppError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, list)
}

func (s *Server) handleView(w http.ResponseWriter, r *http.Request) {
	res, err := s.assets.Resolve(r.Context(), chi.URLParam(r, "resourcePath"))
	if err != nil {
		writeAppError(w, err)
		return
	}
	defer res.Object.Body.Close()
	s.crossOrigin(w)
	w.Header().Set("Content-Type", res.Object.ContentType)
	// ServeContent sets Content-Length and honours Range and If-Modified-Since.
	http.ServeContent(w, r, res.Asset.FilePath, res.Object.ModTime, res.Object.Body)
}

// handleStatic serves blobs under prefix by their key suffix.
func (s *Server) handleStatic(prefix string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		key := path.Clean(prefix + chi.URLParam(r, "*"))
		if !strings.HasPrefix(key, prefix) {
			writeError(w, http.StatusNotFound, "NOT_FOUND", "file not found")
			return
		}
		obj, err := s.blobs.Open(r.Context(), key)
		if err != nil {
			if errors.Is(err, storage.ErrNotFound) || errors.Is(err, storage.ErrInvalidKey) {
				writeError(w, http.StatusNotFound, "NOT_FOUND", "file not found")
				return
			}
			s.logger.Error("open static blob failed", slog.String("key", key), slog.String("error", err.Error()))
			writeError(w, http.StatusInternalServerError, "INTERNAL_ERROR", "internal server error")
			return
		}
		defer obj.Body.Close()
		s.crossOrigin(w)
		w.Header().Set("Content-Type", obj.ContentType)
		http.ServeContent(w, r, key, obj.ModTime, obj.Body)
	}
}

// crossOrigin lets the front-end origin embed served binaries.
func (s *Server) crossOrigin(w http.ResponseWriter) {
	w.Header().Set("Access-Control-Allow-Origin", s.cfg.AllowedOrigin)
	w.Header().Set("Cross-Origin-Resource-Policy", "cross-origin")
}
