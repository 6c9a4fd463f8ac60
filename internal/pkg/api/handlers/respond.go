package handlers

import (
	"encoding/json"
	"net/http"

	"github.com/tracksync/strava-sheets-sync/internal/pkg/logger"
)

// ErrorResponse is the standard error payload for all API endpoints
type ErrorResponse struct {
	Error            string            `json:"error"`
	Message          string            `json:"message"`
	Header           string            `json:"header,omitempty"`
	PreservedMapping map[string]string `json:"preserved_mapping,omitempty"`
}

func writeJSON(w http.ResponseWriter, log *logger.Logger, statusCode int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		log.Error("Failed to encode response",
			"error", err,
			"status_code", statusCode)
	}
}

func writeError(w http.ResponseWriter, log *logger.Logger, statusCode int, errorCode, message string) {
	writeJSON(w, log, statusCode, ErrorResponse{
		Error:   errorCode,
		Message: message,
	})
}
