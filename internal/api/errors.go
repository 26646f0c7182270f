package api

import (
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/dharsanguruparan/ModelDrop/internal/apperr"
)

// Error codes that do not come from an apperr.Kind.
const (
	codeRateLimited = "RATE_LIMITED"
	codeUnavailable = "UNAVAILABLE"
)

type errorBody struct {
	Error errorDetail `json:"error"`
}

type errorDetail struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// writeError writes {"error":{"code","message"}}.
func writeError(w http.ResponseWriter, status int, code, message string) {
	respondJSON(w, status, errorBody{Error: errorDetail{Code: code, Message: message}})
}

// writeAppError renders err by kind. Internal causes never reach the body.
func writeAppError(w http.ResponseWriter, err error) {
	kind := apperr.KindOf(err)
	writeError(w, apperr.HTTPStatus(kind), string(kind), apperr.Message(err))
}

func respondJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		slog.Error("encode response", slog.String("error", err.Error()))
	}
}
