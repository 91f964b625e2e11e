package storage

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"

	"github.com/correlator-io/roster/internal/config"
	"github.com/correlator-io/roster/internal/records"
	"github.com/correlator-io/roster/internal/search"
)

func daysAgo(n int) records.Date {
	return records.DateOf(time.Now().AddDate(0, 0, -n))
}

// searchFixture loads two production persons and one synthetic person.
//
//	EMP-A: SC and BPSS valid today, DV expired; availability 10% then 75%
//	EMP-B: no clearance, no availability
//	42:    synthetic key, SC valid today; availability 25%
func searchFixture() *records.LoadPlan {
	plan := &records.LoadPlan{}

	for _, key := range []string{"EMP-A", "EMP-B", "42"} {
		p := basePlan(key, "cv-"+key)
		plan.Persons = append(plan.Persons, p.Persons...)
		plan.Profiles = append(plan.Profiles, p.Profiles...)
		plan.TechnologyLinks = append(plan.TechnologyLinks, p.TechnologyLinks...)
	}

	plan.TechnologyLinks = append(plan.TechnologyLinks,
		records.TechnologyLink{ProfileKey: "cv-EMP-A", Technology: "Go", YearsExperience: records.Ptr(7.0)})

	plan.ClearanceGrants = []records.ClearanceGrant{
		{PersonKey: "EMP-A", Clearance: "BPSS", ValidFrom: daysAgo(900)},
		{PersonKey: "EMP-A", Clearance: "SC", ValidFrom: daysAgo(400)},
		{PersonKey: "EMP-A", Clearance: "DV", ValidFrom: daysAgo(800), ValidTo: records.Ptr(daysAgo(30))},
		{PersonKey: "42", Clearance: "SC", ValidFrom: daysAgo(10)},
	}

	plan.Availability = []records.Availability{
		{PersonKey: "EMP-A", Date: daysAgo(7), Percent: 10},
		{PersonKey: "EMP-A", Date: daysAgo(1), Percent: 75},
		{PersonKey: "42", Date: daysAgo(1), Percent: 25},
	}

	return plan
}

// TestSearchViewsIntegration verifies the search-profile views and KPI queries.
func TestSearchViewsIntegration(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}

	ctx := context.Background()
	testDB := config.SetupTestDatabase(ctx, t)

	t.Cleanup(func() {
		_ = testDB.Connection.Close()
		_ = testcontainers.TerminateContainer(testDB.Container)
	})

	conn := &Connection{DB: testDB.Connection}

	store, err := NewLoadStore(conn, WithLogger(discardLogger()))
	require.NoError(t, err)

	report, err := store.Run(ctx, searchFixture())
	require.NoError(t, err)
	require.True(t, report.ViewRefreshed, report.ViewError)

	t.Run("ProductionScope", func(t *testing.T) {
		result, err := store.QuerySearchProfiles(ctx, search.ScopeProduction, nil)
		require.NoError(t, err)

		assert.Equal(t, 2, result.Total)
		require.Len(t, result.Profiles, 2)

		byPerson := map[string]search.SearchProfile{}
		for _, p := range result.Profiles {
			byPerson[p.ExternalPersonID] = p
		}

		a, ok := byPerson["EMP-A"]
		require.True(t, ok)

		require.NotNil(t, a.ClearanceName)
		assert.Equal(t, "SC", *a.ClearanceName, "SC outranks BPSS and the DV grant has expired")

		require.NotNil(t, a.LatestAvailabilityPercent)
		assert.Equal(t, 75, *a.LatestAvailabilityPercent)

		require.NotNil(t, a.Technologies)
		assert.Equal(t, "Go, Kubernetes, PostgreSQL", *a.Technologies)

		require.NotNil(t, a.MaxYearsExperience)
		assert.InDelta(t, 7.0, *a.MaxYearsExperience, 0.001)

		require.NotNil(t, a.DisplayName)
		assert.Equal(t, "Jane Doe", *a.DisplayName)

		b := byPerson["EMP-B"]
		assert.Nil(t, b.ClearanceName)
		assert.Nil(t, b.LatestAvailabilityPercent)
	})

	t.Run("TestScope", func(t *testing.T) {
		result, err := store.QuerySearchProfiles(ctx, search.ScopeTest, nil)
		require.NoError(t, err)

		require.Len(t, result.Profiles, 1)
		assert.Equal(t, "42", result.Profiles[0].ExternalPersonID)
	})

	t.Run("Pagination", func(t *testing.T) {
		page, err := store.QuerySearchProfiles(ctx, search.ScopeProduction, &search.Pagination{Limit: 1})
		require.NoError(t, err)
		assert.Len(t, page.Profiles, 1)
		assert.Equal(t, 2, page.Total)

		past, err := store.QuerySearchProfiles(ctx, search.ScopeProduction, &search.Pagination{Limit: 10, Offset: 5})
		require.NoError(t, err)
		assert.Empty(t, past.Profiles)
		assert.Equal(t, 2, past.Total, "total is reported even past the last page")
	})

	t.Run("KPIs", func(t *testing.T) {
		kpis, err := store.QueryKPIs(ctx)
		require.NoError(t, err)

		assert.Equal(t, 3, kpis.Users)
		assert.Equal(t, 3, kpis.Profiles)
		assert.Equal(t, 1, kpis.SCClearedAvailable, "synthetic persons are excluded")
		assert.Equal(t, search.KPISourceView, kpis.Source)

		require.NotNil(t, kpis.AverageAvailability)
		assert.InDelta(t, 50.0, *kpis.AverageAvailability, 0.001)

		require.Len(t, kpis.TopTechnologies, 3)
		assert.Equal(t, search.TechnologyCount{Name: "Kubernetes", Profiles: 3}, kpis.TopTechnologies[0])
		assert.Equal(t, search.TechnologyCount{Name: "Go", Profiles: 1}, kpis.TopTechnologies[2])
	})

	t.Run("StaleViewUntilRefresh", func(t *testing.T) {
		skipping, err := NewLoadStore(conn, WithLogger(discardLogger()), WithSkipViewRefresh(true))
		require.NoError(t, err)

		report, err := skipping.Run(ctx, basePlan("EMP-C", "cv-EMP-C"))
		require.NoError(t, err)
		assert.False(t, report.ViewRefreshed)

		before, err := store.QuerySearchProfiles(ctx, search.ScopeProduction, nil)
		require.NoError(t, err)
		assert.Equal(t, 2, before.Total)

		require.NoError(t, store.RefreshViews(ctx))

		after, err := store.QuerySearchProfiles(ctx, search.ScopeProduction, nil)
		require.NoError(t, err)
		assert.Equal(t, 3, after.Total)
	})

	// Runs last: drops the production view.
	t.Run("KPIFallbackWithoutView", func(t *testing.T) {
		_, err := conn.ExecContext(ctx, `DROP MATERIALIZED VIEW cv_search_profile_mv`)
		require.NoError(t, err)

		kpis, err := store.QueryKPIs(ctx)
		require.NoError(t, err)
		assert.Equal(t, search.KPISourceBaseTables, kpis.Source)
		assert.Equal(t, 1, kpis.SCClearedAvailable)

		err = store.RefreshViews(ctx)
		assert.ErrorIs(t, err, ErrViewRefreshFailed)
	})
}
