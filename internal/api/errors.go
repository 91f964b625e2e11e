package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/correlator-io/roster/internal/api/middleware"
	"github.com/correlator-io/roster/internal/records"
	"github.com/correlator-io/roster/internal/search"
	"github.com/correlator-io/roster/internal/storage"
)

const problemTypeBaseURL = "https://roster.correlator.io/problems/"

// ProblemDetail represents an RFC 7807 Problem Details structure.
// See https://tools.ietf.org/html/rfc7807 for specification.
//
// Table and Key are extensions set for load failures.
type ProblemDetail struct {
	Type          string `json:"type"`
	Title         string `json:"title"`
	Status        int    `json:"status"`
	Detail        string `json:"detail,omitempty"`
	Instance      string `json:"instance,omitempty"`
	CorrelationID string `json:"correlation_id,omitempty"` //nolint: tagliatelle
	Table         string `json:"table,omitempty"`
	Key           string `json:"key,omitempty"`
}

// NewProblemDetail creates a problem whose title is the status text.
func NewProblemDetail(status int, detail string) *ProblemDetail {
	return &ProblemDetail{
		Type:   fmt.Sprintf("%s%d", problemTypeBaseURL, status),
		Title:  http.StatusText(status),
		Status: status,
		Detail: detail,
	}
}

// WriteErrorResponse writes an RFC 7807 compliant error response.
func WriteErrorResponse(w http.ResponseWriter, r *http.Request, logger *slog.Logger, problem *ProblemDetail) {
	correlationID := middleware.GetCorrelationID(r.Context())

	if problem.CorrelationID == "" {
		problem.CorrelationID = correlationID
	}

	if problem.Instance == "" {
		problem.Instance = r.URL.Path
	}

	data, err := json.Marshal(problem)
	if err != nil {
		logger.Error("Failed to encode error response",
			slog.String("correlation_id", correlationID),
			slog.String("path", r.URL.Path),
			slog.Any("encode_error", err),
			slog.Int("status", problem.Status),
		)
		http.Error(w, "Internal server error", http.StatusInternalServerError)

		return
	}

	w.Header().Set("Content-Type", contentTypeProblemJSON)
	w.WriteHeader(problem.Status)
	_, _ = w.Write(data)
}

// InternalServerError creates a 500 Internal Server Error problem.
func InternalServerError(detail string) *ProblemDetail {
	return NewProblemDetail(http.StatusInternalServerError, detail)
}

// BadRequest creates a 400 Bad Request problem.
func BadRequest(detail string) *ProblemDetail {
	return NewProblemDetail(http.StatusBadRequest, detail)
}

// NotFound creates a 404 Not Found problem.
func NotFound(detail string) *ProblemDetail {
	return NewProblemDetail(http.StatusNotFound, detail)
}

// Conflict creates a 409 Conflict problem.
func Conflict(detail string) *ProblemDetail {
	return NewProblemDetail(http.StatusConflict, detail)
}

// PayloadTooLarge creates a 413 Request Entity Too Large problem.
func PayloadTooLarge(detail string) *ProblemDetail {
	return NewProblemDetail(http.StatusRequestEntityTooLarge, detail)
}

// UnsupportedMediaType creates a 415 Unsupported Media Type problem.
func UnsupportedMediaType(detail string) *ProblemDetail {
	return NewProblemDetail(http.StatusUnsupportedMediaType, detail)
}

// UnprocessableEntity creates a 422 Unprocessable Entity problem.
func UnprocessableEntity(detail string) *ProblemDetail {
	return NewProblemDetail(http.StatusUnprocessableEntity, detail)
}

// ServiceUnavailable creates a 503 Service Unavailable problem.
func ServiceUnavailable(detail string) *ProblemDetail {
	return NewProblemDetail(http.StatusServiceUnavailable, detail)
}

// problemForLoadError maps a failed load run to a problem. The run was rolled back in every case.
//
//   - invalid record (strict validation) or a rejected value: 422
//   - referential integrity: 409
//   - connectivity and cancellation: 503
//   - anything else: 500
func problemForLoadError(err error) *ProblemDetail {
	var problem *ProblemDetail

	switch {
	case errors.Is(err, records.ErrInvalidRecord), errors.Is(err, records.ErrConstraintViolation):
		problem = UnprocessableEntity(err.Error())
	case errors.Is(err, records.ErrReferentialIntegrity):
		problem = Conflict(err.Error())
	case errors.Is(err, records.ErrConnectivity),
		errors.Is(err, storage.ErrDatabaseUnavailable),
		errors.Is(err, context.DeadlineExceeded),
		errors.Is(err, context.Canceled):
		problem = ServiceUnavailable(err.Error())
	default:
		problem = InternalServerError("Load run failed and was rolled back")
	}

	if le, ok := records.AsLoadError(err); ok {
		problem.Table = le.Table
		problem.Key = le.Key
	}

	return problem
}

// problemForQueryError maps a failed search or KPI query to a problem.
func problemForQueryError(err error) *ProblemDetail {
	switch {
	case errors.Is(err, search.ErrInvalidScope):
		return BadRequest(err.Error())
	case errors.Is(err, storage.ErrDatabaseUnavailable), errors.Is(err, context.DeadlineExceeded):
		return ServiceUnavailable("Search store unavailable")
	case errors.Is(err, storage.ErrViewRefreshFailed):
		return InternalServerError("Search view refresh failed")
	default:
		return InternalServerError("Search query failed")
	}
}
