package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/lib/pq"

	"github.com/correlator-io/roster/internal/canonicalization"
	"github.com/correlator-io/roster/internal/search"
)

// Sentinel errors for search view operations.
var (
	// ErrViewRefreshFailed is returned when materialized view refresh fails.
	ErrViewRefreshFailed = errors.New("materialized view refresh failed")

	// ErrSearchQueryFailed is returned when a search-profile or KPI query fails.
	ErrSearchQueryFailed = errors.New("search query failed")
)

const (
	slowRefreshThreshold = 5 * time.Second
	topTechnologiesLimit = 5
	clearanceAvailableAt = 50

	// liveProjection is the unmaterialized source of both views.
	liveProjection = "search_profile_source"

	sqlStateUndefinedTable   = "42P01"
	sqlStateNotInPrereqState = "55000" // materialized view has not been populated
)

// RefreshViews rebuilds both search-profile views by calling refresh_search_profile_views().
//
// The function refreshes with CONCURRENTLY, so readers keep seeing the previous contents
// until the refresh commits. A slow refresh is logged as a warning.
func (s *LoadStore) RefreshViews(ctx context.Context) error {
	start := time.Now()

	s.logger.Debug("Starting search view refresh")

	if _, err := s.conn.ExecContext(ctx, `SELECT refresh_search_profile_views()`); err != nil {
		s.logger.Error("Failed to refresh search views",
			slog.Any("error", err),
			slog.Duration("duration", time.Since(start)))

		return fmt.Errorf("%w: %w", ErrViewRefreshFailed, err)
	}

	duration := time.Since(start)
	s.logger.Info("Refreshed search views", slog.Duration("duration", duration))

	if duration > slowRefreshThreshold {
		s.logger.Warn("Slow search view refresh detected",
			slog.Duration("duration", duration),
			slog.Duration("threshold", slowRefreshThreshold))
	}

	return nil
}

// QuerySearchProfiles implements search.Store.
// Uses COUNT(*) OVER() so the page and the scope's total come back in one query.
func (s *LoadStore) QuerySearchProfiles(
	ctx context.Context,
	scope search.Scope,
	pagination *search.Pagination,
) (*search.SearchProfileResult, error) {
	page := pagination.Normalize()

	query := `
		SELECT
			person_id, external_person_id, display_name,
			profile_id, external_profile_id, title,
			sfia_level, cpd_level, cpd_band, cpd_label,
			technologies, max_years_experience, clearance_name,
			latest_availability_date, latest_availability_percent,
			COUNT(*) OVER() AS total_count
		FROM ` + scope.ViewName() + `
		ORDER BY profile_id
		LIMIT $1 OFFSET $2`

	rows, err := s.conn.QueryContext(ctx, query, page.Limit, page.Offset)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrSearchQueryFailed, err)
	}

	defer func() {
		_ = rows.Close()
	}()

	result := &search.SearchProfileResult{Profiles: []search.SearchProfile{}}

	for rows.Next() {
		var (
			p         search.SearchProfile
			maxYears  sql.NullFloat64
			availDate sql.NullTime
		)

		if err := rows.Scan(
			&p.PersonID, &p.ExternalPersonID, &p.DisplayName,
			&p.ProfileID, &p.ExternalProfileID, &p.Title,
			&p.SFIALevel, &p.CPDLevel, &p.CPDBand, &p.CPDLabel,
			&p.Technologies, &maxYears, &p.ClearanceName,
			&availDate, &p.LatestAvailabilityPercent,
			&result.Total,
		); err != nil {
			return nil, fmt.Errorf("%w: %w", ErrSearchQueryFailed, err)
		}

		if maxYears.Valid {
			p.MaxYearsExperience = &maxYears.Float64
		}

		if availDate.Valid {
			p.LatestAvailabilityDate = &availDate.Time
		}

		result.Profiles = append(result.Profiles, p)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrSearchQueryFailed, err)
	}

	if len(result.Profiles) == 0 && page.Offset > 0 {
		// The window count is only available on returned rows.
		if err := s.conn.QueryRowContext(ctx, `SELECT COUNT(*) FROM `+scope.ViewName()).Scan(&result.Total); err != nil {
			return nil, fmt.Errorf("%w: %w", ErrSearchQueryFailed, err)
		}
	}

	return result, nil
}

// QueryKPIs implements search.Store.
//
// Users, profiles, top technologies and average availability read the base tables. The count of
// SC-cleared people with at least 50% latest availability reads the production view and falls
// back to the live projection when the view is missing or has never been populated.
func (s *LoadStore) QueryKPIs(ctx context.Context) (*search.KPISummary, error) {
	kpis := &search.KPISummary{TopTechnologies: []search.TechnologyCount{}}

	if err := s.conn.QueryRowContext(ctx, `
		SELECT
			(SELECT COUNT(*) FROM person),
			(SELECT COUNT(*) FROM profile)`,
	).Scan(&kpis.Users, &kpis.Profiles); err != nil {
		return nil, fmt.Errorf("%w: counts: %w", ErrSearchQueryFailed, err)
	}

	if err := s.queryTopTechnologies(ctx, kpis); err != nil {
		return nil, err
	}

	var avg sql.NullFloat64

	if err := s.conn.QueryRowContext(ctx, `
		SELECT AVG(percent)::float8
		FROM (
			SELECT DISTINCT ON (person_id) percent
			FROM person_availability
			ORDER BY person_id, date DESC
		) latest`,
	).Scan(&avg); err != nil {
		return nil, fmt.Errorf("%w: average availability: %w", ErrSearchQueryFailed, err)
	}

	if avg.Valid {
		kpis.AverageAvailability = &avg.Float64
	}

	count, err := s.countClearedAvailable(ctx, search.ScopeProduction.ViewName())
	kpis.Source = search.KPISourceView

	if isViewUnavailable(err) {
		s.logger.Warn("Search view unavailable, computing KPI from base tables", slog.Any("error", err))

		count, err = s.countClearedAvailable(ctx, liveProjection)
		kpis.Source = search.KPISourceBaseTables
	}

	if err != nil {
		return nil, fmt.Errorf("%w: cleared availability: %w", ErrSearchQueryFailed, err)
	}

	kpis.SCClearedAvailable = count

	return kpis, nil
}

func (s *LoadStore) queryTopTechnologies(ctx context.Context, kpis *search.KPISummary) error {
	rows, err := s.conn.QueryContext(ctx, `
		SELECT t.name, COUNT(*) AS profiles
		FROM profile_technology pt
		JOIN dim_technology t ON t.id = pt.technology_id
		GROUP BY t.name
		ORDER BY profiles DESC, t.name
		LIMIT $1`, topTechnologiesLimit)
	if err != nil {
		return fmt.Errorf("%w: top technologies: %w", ErrSearchQueryFailed, err)
	}

	defer func() {
		_ = rows.Close()
	}()

	for rows.Next() {
		var tc search.TechnologyCount
		if err := rows.Scan(&tc.Name, &tc.Profiles); err != nil {
			return fmt.Errorf("%w: top technologies: %w", ErrSearchQueryFailed, err)
		}

		kpis.TopTechnologies = append(kpis.TopTechnologies, tc)
	}

	if err := rows.Err(); err != nil {
		return fmt.Errorf("%w: top technologies: %w", ErrSearchQueryFailed, err)
	}

	return nil
}

// countClearedAvailable counts production people holding SC today with latest availability
// of at least 50%. source is a fixed relation name, never user input.
func (s *LoadStore) countClearedAvailable(ctx context.Context, source string) (int, error) {
	query := `
		SELECT COUNT(DISTINCT person_id)
		FROM ` + source + `
		WHERE lower(clearance_name) = 'sc'
		  AND latest_availability_percent >= $1`

	if source == liveProjection {
		query += ` AND external_person_id !~ '` + canonicalization.SyntheticPersonIDPattern + `'`
	}

	var count int
	err := s.conn.QueryRowContext(ctx, query, clearanceAvailableAt).Scan(&count)

	return count, err
}

func isViewUnavailable(err error) bool {
	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		return pqErr.Code == sqlStateUndefinedTable || pqErr.Code == sqlStateNotInPrereqState
	}

	return false
}
