package api

import (
	"log/slog"
	"net/http"
	"strconv"

	"github.com/correlator-io/roster/internal/api/middleware"
	"github.com/correlator-io/roster/internal/search"
)

// SearchProfilesResponse is one page of the search-profile view.
type SearchProfilesResponse struct {
	Scope    search.Scope           `json:"scope"`
	Profiles []search.SearchProfile `json:"profiles"`
	Total    int                    `json:"total"`
	Limit    int                    `json:"limit"`
	Offset   int                    `json:"offset"`
}

// handleSearchProfiles serves GET /api/v1/search-profiles?scope=production|test&limit=&offset=.
// Rows come from the materialized view and reflect the last refresh.
func (s *Server) handleSearchProfiles(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query()

	scope, err := search.ParseScope(query.Get("scope"))
	if err != nil {
		WriteErrorResponse(w, r, s.logger, BadRequest("scope must be 'production' or 'test'"))

		return
	}

	limit, err := parseNonNegativeInt(query.Get("limit"))
	if err != nil {
		WriteErrorResponse(w, r, s.logger, BadRequest("limit must be a non-negative integer"))

		return
	}

	offset, err := parseNonNegativeInt(query.Get("offset"))
	if err != nil {
		WriteErrorResponse(w, r, s.logger, BadRequest("offset must be a non-negative integer"))

		return
	}

	page := (&search.Pagination{Limit: limit, Offset: offset}).Normalize()

	result, err := s.store.QuerySearchProfiles(r.Context(), scope, &page)
	if err != nil {
		s.logger.Error("Search profile query failed",
			slog.String("correlation_id", middleware.GetCorrelationID(r.Context())),
			slog.String("scope", string(scope)),
			slog.String("error", err.Error()),
		)
		WriteErrorResponse(w, r, s.logger, problemForQueryError(err))

		return
	}

	profiles := result.Profiles
	if profiles == nil {
		profiles = []search.SearchProfile{}
	}

	s.writeJSON(w, r, http.StatusOK, SearchProfilesResponse{
		Scope:    scope,
		Profiles: profiles,
		Total:    result.Total,
		Limit:    page.Limit,
		Offset:   page.Offset,
	})
}

// handleKPIs serves the post-load KPI summary.
func (s *Server) handleKPIs(w http.ResponseWriter, r *http.Request) {
	kpis, err := s.store.QueryKPIs(r.Context())
	if err != nil {
		s.logger.Error("KPI query failed",
			slog.String("correlation_id", middleware.GetCorrelationID(r.Context())),
			slog.String("error", err.Error()),
		)
		WriteErrorResponse(w, r, s.logger, problemForQueryError(err))

		return
	}

	if kpis.TopTechnologies == nil {
		kpis.TopTechnologies = []search.TechnologyCount{}
	}

	s.writeJSON(w, r, http.StatusOK, kpis)
}

// handleRefreshViews rebuilds both search views on demand, e.g. after loads that skipped the refresh.
func (s *Server) handleRefreshViews(w http.ResponseWriter, r *http.Request) {
	if err := s.store.RefreshViews(r.Context()); err != nil {
		s.logger.Error("Search view refresh failed",
			slog.String("correlation_id", middleware.GetCorrelationID(r.Context())),
			slog.String("error", err.Error()),
		)
		WriteErrorResponse(w, r, s.logger, problemForQueryError(err))

		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// parseNonNegativeInt parses an optional query parameter; empty means 0.
func parseNonNegativeInt(raw string) (int, error) {
	if raw == "" {
		return 0, nil
	}

	n, err := strconv.Atoi(raw)
	if err != nil {
		return 0, err
	}

	if n < 0 {
		return 0, strconv.ErrRange
	}

	return n, nil
}
