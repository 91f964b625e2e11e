package api

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/correlator-io/roster/internal/api/middleware"
	"github.com/correlator-io/roster/internal/storage"
)

const (
	healthCheckTimeout     = 2 * time.Second
	contentTypeJSON        = "application/json"
	contentTypeProblemJSON = "application/problem+json"
	serviceName            = "roster"
	versionHeader          = "X-Roster-Version"
)

type (
	// HealthStatus represents the health check response structure.
	HealthStatus struct {
		Status      string `json:"status"`
		ServiceName string `json:"serviceName"`
		Version     string `json:"version"`
		Uptime      string `json:"uptime,omitempty"`
	}

	// Route pairs a ServeMux pattern with its handler.
	Route struct {
		Pattern string
		Handler http.HandlerFunc
	}
)

// setupRoutes registers every route and returns the health check paths that bypass rate limiting.
func (s *Server) setupRoutes(mux *http.ServeMux) []string {
	healthPaths := s.registerRoutes(mux,
		Route{"GET /ping", s.handlePing},     // K8s liveness check
		Route{"GET /ready", s.handleReady},   // K8s readiness check
		Route{"GET /health", s.handleHealth}, // status, uptime, version
	)

	s.registerRoutes(mux,
		Route{"POST /api/v1/loads", s.requireKey(storage.PermissionLoadsWrite, s.handleLoadPlan)},
		Route{"GET /api/v1/search-profiles", s.handleSearchProfiles},
		Route{"GET /api/v1/kpis", s.handleKPIs},
		Route{"POST /api/v1/views/refresh", s.requireKey(storage.PermissionViewsRefresh, s.handleRefreshViews)},
		Route{"/", s.handleNotFound},
	)

	return healthPaths
}

// registerRoutes registers routes and returns their paths without the method prefix.
func (s *Server) registerRoutes(mux *http.ServeMux, routes ...Route) []string {
	paths := make([]string, 0, len(routes))

	for _, route := range routes {
		mux.Handle(route.Pattern, route.Handler)

		path := route.Pattern
		if _, after, ok := strings.Cut(path, " "); ok {
			path = strings.TrimSpace(after)
		}

		paths = append(paths, path)
	}

	return paths
}

func (s *Server) handlePing(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/plain")
	w.Header().Set(versionHeader, s.version())
	w.WriteHeader(http.StatusOK)

	if _, err := w.Write([]byte("pong")); err != nil {
		s.logger.Error("Failed to write ping response",
			slog.String("correlation_id", middleware.GetCorrelationID(r.Context())),
			slog.String("error", err.Error()),
		)
	}
}

// handleReady answers readiness checks: 200 when the database answers a ping within
// healthCheckTimeout, 503 otherwise.
func (s *Server) handleReady(w http.ResponseWriter, r *http.Request) {
	correlationID := middleware.GetCorrelationID(r.Context())

	ctx, cancel := context.WithTimeout(r.Context(), healthCheckTimeout)
	defer cancel()

	status, body := http.StatusOK, "ready"

	if err := s.store.HealthCheck(ctx); err != nil {
		s.logger.Error("Storage health check failed",
			slog.String("correlation_id", correlationID),
			slog.String("error", err.Error()),
		)

		status, body = http.StatusServiceUnavailable, "storage unavailable"
	}

	w.Header().Set("Content-Type", "text/plain")
	w.WriteHeader(status)

	if _, err := w.Write([]byte(body)); err != nil {
		s.logger.Error("Failed to write ready response",
			slog.String("correlation_id", correlationID),
			slog.String("error", err.Error()),
		)
	}
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	var uptime string

	if !s.startTime.IsZero() {
		uptime = time.Since(s.startTime).Round(time.Second).String()
	}

	w.Header().Set(versionHeader, s.version())
	s.writeJSON(w, r, http.StatusOK, HealthStatus{
		Status:      "healthy",
		ServiceName: serviceName,
		Version:     s.version(),
		Uptime:      uptime,
	})
}

// handleNotFound returns RFC 7807 compliant 404 responses for unknown endpoints.
func (s *Server) handleNotFound(w http.ResponseWriter, r *http.Request) {
	WriteErrorResponse(w, r, s.logger, NotFound("The requested resource was not found"))
}

// writeJSON marshals before writing headers so an encoding failure can still become a 500.
func (s *Server) writeJSON(w http.ResponseWriter, r *http.Request, status int, v any) {
	correlationID := middleware.GetCorrelationID(r.Context())

	data, err := json.Marshal(v)
	if err != nil {
		s.logger.Error("Failed to encode response",
			slog.String("correlation_id", correlationID),
			slog.String("path", r.URL.Path),
			slog.String("error", err.Error()),
		)
		WriteErrorResponse(w, r, s.logger, InternalServerError("Failed to encode response"))

		return
	}

	w.Header().Set("Content-Type", contentTypeJSON)
	w.WriteHeader(status)

	if _, err := w.Write(data); err != nil {
		s.logger.Error("Failed to write response",
			slog.String("correlation_id", correlationID),
			slog.String("path", r.URL.Path),
			slog.String("error", err.Error()),
		)
	}
}

// hasJSONContentType accepts "application/json" with optional parameters such as charset.
func hasJSONContentType(contentType string) bool {
	return strings.HasPrefix(strings.TrimSpace(contentType), contentTypeJSON)
}
