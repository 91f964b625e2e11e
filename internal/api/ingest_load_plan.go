package api

import (
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/correlator-io/roster/internal/api/middleware"
	"github.com/correlator-io/roster/internal/records"
)

// LoadResponse wraps the report of a committed load run.
type LoadResponse struct {
	Report        *records.LoadReport `json:"report"`
	Totals        records.TableCount  `json:"totals"`
	CorrelationID string              `json:"correlation_id"` //nolint: tagliatelle
	Timestamp     string              `json:"timestamp"`
}

// handleLoadPlan applies a JSON load plan as one all-or-nothing run.
//
// Response codes:
//   - 200 OK: plan committed; the body carries the LoadReport including skipped-record warnings
//   - 400 Bad Request: empty body, malformed JSON, unknown batch name or empty plan
//   - 409 Conflict: a record references an owner or dimension that does not exist
//   - 413 Request Entity Too Large: body exceeds MaxRequestSize
//   - 415 Unsupported Media Type: Content-Type is not application/json
//   - 422 Unprocessable Entity: invalid record under strict validation, or a rejected value
//   - 503 Service Unavailable: the database was unreachable or the request was cancelled
func (s *Server) handleLoadPlan(w http.ResponseWriter, r *http.Request) {
	correlationID := middleware.GetCorrelationID(r.Context())

	plan, problem := s.parseLoadPlan(w, r)
	if problem != nil {
		s.logger.Warn("Rejected load plan",
			slog.String("correlation_id", correlationID),
			slog.Int("status", problem.Status),
			slog.String("detail", problem.Detail),
		)
		WriteErrorResponse(w, r, s.logger, problem)

		return
	}

	report, err := s.store.Run(r.Context(), plan)
	if err != nil {
		problem := problemForLoadError(err)

		s.logger.Error("Load run failed",
			slog.String("correlation_id", correlationID),
			slog.Int("status", problem.Status),
			slog.String("table", problem.Table),
			slog.String("key", problem.Key),
			slog.String("error", err.Error()),
		)
		WriteErrorResponse(w, r, s.logger, problem)

		return
	}

	totals := report.Totals()

	s.logger.Info("Load run completed",
		slog.String("correlation_id", correlationID),
		slog.String("run_id", report.RunID.String()),
		slog.Int("records", plan.Total()),
		slog.Int("inserted", totals.Inserted),
		slog.Int("updated", totals.Updated),
		slog.Int("skipped", totals.Skipped),
		slog.Bool("view_refreshed", report.ViewRefreshed),
	)

	s.writeJSON(w, r, http.StatusOK, LoadResponse{
		Report:        report,
		Totals:        totals,
		CorrelationID: correlationID,
		Timestamp:     time.Now().UTC().Format(time.RFC3339),
	})
}

func (s *Server) parseLoadPlan(w http.ResponseWriter, r *http.Request) (*records.LoadPlan, *ProblemDetail) {
	if !hasJSONContentType(r.Header.Get("Content-Type")) {
		return nil, UnsupportedMediaType("Content-Type must be application/json")
	}

	if r.ContentLength > s.config.MaxRequestSize {
		return nil, PayloadTooLarge(
			fmt.Sprintf("Request body exceeds maximum size of %d bytes", s.config.MaxRequestSize),
		)
	}

	if r.ContentLength == 0 {
		return nil, BadRequest("Request body cannot be empty")
	}

	plan, err := records.DecodePlan(http.MaxBytesReader(w, r.Body, s.config.MaxRequestSize))
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			return nil, PayloadTooLarge(
				fmt.Sprintf("Request body exceeds maximum size of %d bytes", s.config.MaxRequestSize),
			)
		}

		return nil, BadRequest("Invalid load plan: " + err.Error())
	}

	if plan.IsEmpty() {
		return nil, BadRequest("Load plan contains no records")
	}

	return plan, nil
}
