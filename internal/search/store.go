package search

import "context"

// Store defines the read interface for the search-profile model.
//
// It is kept apart from the load interface (records.Loader) so that read-only API
// handlers do not depend on the write path.
//
// Implemented by: storage.LoadStore.
type Store interface {
	// RefreshViews rebuilds both search-profile views from the base tables.
	// Readers are not blocked while it runs.
	RefreshViews(ctx context.Context) error

	// QuerySearchProfiles returns one page of a scope's profiles ordered by profile id.
	// A nil pagination returns the first DefaultLimit rows.
	QuerySearchProfiles(ctx context.Context, scope Scope, pagination *Pagination) (*SearchProfileResult, error)

	// QueryKPIs computes the KPI summary. KPIs that read the production view fall back to the
	// live base-table projection when the view is missing or unpopulated.
	QueryKPIs(ctx context.Context) (*KPISummary, error)
}
