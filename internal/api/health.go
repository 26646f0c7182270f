package api

import (
	"net/http"
	"time"
)

type healthResponse struct {
	Status  string `json:"status"`
	Time    string `json:"time"`
	Message string `json:"message,omitempty"`
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	respondJSON(w, http.StatusOK, healthResponse{Status: "ok", Time: time.Now().UTC().Format(time.RFC3339)})
}

func (s *Server) handleReady(w http.ResponseWriter, r *http.Request) {
	now := time.Now().UTC().Format(time.RFC3339)
	if s.ready != nil {
		if err := s.ready.CheckReady(r.Context()); err != nil {
			respondJSON(w, http.StatusServiceUnavailable, healthResponse{Status: "fail", Time: now, Message: err.Error()})
			return
		}
	}
	respondJSON(w, http.StatusOK, healthResponse{Status: "ok", Time: now})
}
