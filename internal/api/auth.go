package api

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"strings"

	"github.com/dharsanguruparan/ModelDrop/internal/apperr"
	"github.com/dharsanguruparan/ModelDrop/internal/auth"
)

type googleLoginRequest struct {
	Token string `json:"token"`
}

type loginResponse struct {
	Name           string `json:"name"`
	Email          string `json:"email"`
	ProfilePicture string `json:"profile_picture"`
}

type meResponse struct {
	Authorized bool   `json:"authorized"`
	Email      string `json:"email,omitempty"`
}

func (s *Server) handleGoogleLogin(w http.ResponseWriter, r *http.Request) {
	var req googleLoginRequest
	r.Body = http.MaxBytesReader(w, r.Body, 64<<10)
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || strings.TrimSpace(req.Token) == "" {
		writeAppError(w, apperr.InvalidInput("token is required"))
		return
	}
	if s.verifier == nil {
		writeError(w, http.StatusServiceUnavailable, codeUnavailable, "google sign-in is not configured")
		return
	}
	id, err := s.verifier.Verify(r.Context(), req.Token)
	if err != nil {
		s.logger.Warn("google token rejected", slog.String("error", err.Error()))
		writeAppError(w, apperr.Unauthenticated("invalid identity token"))
		return
	}
	token, expires, err := s.sessions.Issue(auth.Principal{Subject: id.Subject, Email: id.Email, Name: id.Name})
	if err != nil {
		s.logger.Error("issue session failed", slog.String("error", err.Error()))
		writeAppError(w, apperr.Internal("issue session", err))
		return
	}
	s.sessions.SetCookie(w, token, expires)
	s.logger.Info("user signed in", slog.String("subject", id.Subject))
	respondJSON(w, http.StatusCreated, loginResponse{Name: id.Name, Email: id.Email, ProfilePicture: id.Picture})
}

func (s *Server) handleMe(w http.ResponseWriter, r *http.Request) {
	p := auth.PrincipalFrom(r.Context())
	if p == nil {
		respondJSON(w, http.StatusUnauthorized, meResponse{Authorized: false})
		return
	}
	respondJSON(w, http.StatusOK, meResponse{Authorized: true, Email: p.Email})
}

func (s *Server) handleLogout(w http.ResponseWriter, _ *http.Request) {
	s.sessions.ClearCookie(w)
	respondJSON(w, http.StatusOK, map[string]string{"message": "Logged out"})
}
