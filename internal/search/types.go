// Package search defines the search-profile read model: one denormalized row per profile,
// split into production and synthetic test scopes, plus a small KPI summary.
package search

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

// ErrInvalidScope is returned when a scope name is neither "production" nor "test".
var ErrInvalidScope = errors.New("invalid scope")

// Scope selects which materialized view a query reads.
type Scope string

const (
	// ScopeProduction covers every person whose key does not look synthetic.
	ScopeProduction Scope = "production"

	// ScopeTest covers persons with synthetic keys (all digits, or eight hex characters).
	ScopeTest Scope = "test"
)

const (
	// DefaultLimit applies when a caller asks for a page without a size.
	DefaultLimit = 50

	// MaxLimit caps a single page.
	MaxLimit = 500

	// KPISourceView and KPISourceBaseTables tell where the view-dependent KPIs came from.
	KPISourceView       = "view"
	KPISourceBaseTables = "base_tables"
)

type (
	// SearchProfile is one row of the search-profile view.
	//
	// Fields:
	//   - DisplayName: the person's name in the "int" language, else any non-empty language
	//   - Technologies: distinct technology names, alphabetical, joined with ", "
	//   - MaxYearsExperience: highest years_experience across the profile's technologies
	//   - ClearanceName: highest-precedence clearance valid today (nil when none)
	//   - LatestAvailability*: the person's availability row with the greatest date
	SearchProfile struct {
		PersonID                  int64      `json:"person_id"`
		ExternalPersonID          string     `json:"external_person_id"`
		DisplayName               *string    `json:"display_name,omitempty"`
		ProfileID                 int64      `json:"profile_id"`
		ExternalProfileID         string     `json:"external_profile_id"`
		Title                     *string    `json:"title,omitempty"`
		SFIALevel                 *int       `json:"sfia_level,omitempty"`
		CPDLevel                  *int       `json:"cpd_level,omitempty"`
		CPDBand                   *string    `json:"cpd_band,omitempty"`
		CPDLabel                  *string    `json:"cpd_label,omitempty"`
		Technologies              *string    `json:"technologies,omitempty"`
		MaxYearsExperience        *float64   `json:"max_years_experience,omitempty"`
		ClearanceName             *string    `json:"clearance_name,omitempty"`
		LatestAvailabilityDate    *time.Time `json:"latest_availability_date,omitempty"`
		LatestAvailabilityPercent *int       `json:"latest_availability_percent,omitempty"`
	}

	// Pagination specifies pagination parameters for list queries.
	Pagination struct {
		Limit  int
		Offset int
	}

	// SearchProfileResult is one page of search profiles plus the scope's total row count.
	SearchProfileResult struct {
		Profiles []SearchProfile `json:"profiles"`
		Total    int             `json:"total"`
	}

	// TechnologyCount is a technology and the number of profiles listing it.
	TechnologyCount struct {
		Name     string `json:"name"`
		Profiles int    `json:"profiles"`
	}

	// KPISummary is the post-load business summary.
	KPISummary struct {
		Users               int               `json:"users"`
		Profiles            int               `json:"profiles"`
		TopTechnologies     []TechnologyCount `json:"top_technologies"`
		SCClearedAvailable  int               `json:"sc_cleared_available"`
		AverageAvailability *float64          `json:"average_availability,omitempty"`
		Source              string            `json:"source"` // KPISourceView or KPISourceBaseTables
	}
)

// ParseScope parses a scope name. The empty string means production.
func ParseScope(s string) (Scope, error) {
	switch Scope(strings.ToLower(strings.TrimSpace(s))) {
	case "", ScopeProduction:
		return ScopeProduction, nil
	case ScopeTest:
		return ScopeTest, nil
	default:
		return "", fmt.Errorf("%w: %q", ErrInvalidScope, s)
	}
}

// ViewName returns the materialized view backing the scope.
func (s Scope) ViewName() string {
	if s == ScopeTest {
		return "cv_search_profile_test_mv"
	}

	return "cv_search_profile_mv"
}

// Normalize clamps a pagination request into [1, MaxLimit] with a non-negative offset.
func (p *Pagination) Normalize() Pagination {
	if p == nil {
		return Pagination{Limit: DefaultLimit}
	}

	out := *p

	if out.Limit <= 0 {
		out.Limit = DefaultLimit
	}

	if out.Limit > MaxLimit {
		out.Limit = MaxLimit
	}

	if out.Offset < 0 {
		out.Offset = 0
	}

	return out
}
