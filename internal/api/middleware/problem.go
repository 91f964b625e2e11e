package middleware

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
)

const (
	contentTypeProblemJSON = "application/problem+json"
	problemTypeBaseURL     = "https://roster.correlator.io/problems/"
)

// problem is the RFC 7807 body written by middleware that rejects a request before it reaches a handler.
type problem struct {
	Type          string `json:"type"`
	Title         string `json:"title"`
	Status        int    `json:"status"`
	Detail        string `json:"detail,omitempty"`
	Instance      string `json:"instance,omitempty"`
	CorrelationID string `json:"correlation_id,omitempty"` //nolint: tagliatelle
}

// writeProblem writes an RFC 7807 response and falls back to plain text when encoding fails.
func writeProblem(w http.ResponseWriter, r *http.Request, logger *slog.Logger, status int, detail string) {
	correlationID := GetCorrelationID(r.Context())

	body := problem{
		Type:          fmt.Sprintf("%s%d", problemTypeBaseURL, status),
		Title:         http.StatusText(status),
		Status:        status,
		Detail:        detail,
		Instance:      r.URL.Path,
		CorrelationID: correlationID,
	}

	payload, err := json.Marshal(body)
	if err != nil {
		logger.Error("Failed to encode problem response",
			slog.String("correlation_id", correlationID),
			slog.String("path", r.URL.Path),
			slog.String("error", err.Error()),
		)
		http.Error(w, detail, status)

		return
	}

	w.Header().Set("Content-Type", contentTypeProblemJSON)
	w.WriteHeader(status)
	_, _ = w.Write(payload)
}
