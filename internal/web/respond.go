package web

import (
	"encoding/json"
	"net/http"

	appLog "vhsite/internal/log"
)

// Error codes returned in ErrorResponse.Error.
const (
	errBadRequest   = "bad_request"
	errNotFound     = "not_found"
	errNoAudio      = "no_audio"
	errUnauthorized = "unauthorized"
	errInternal     = "internal_error"
	errUnavailable  = "unavailable"
)

// ErrorResponse is the JSON error envelope for every API endpoint.
type ErrorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		appLog.Error("failed to write JSON response", err)
	}
}

func writeError(w http.ResponseWriter, status int, code, msg string) {
	writeJSON(w, status, ErrorResponse{Error: code, Message: msg})
}
