package records

import "context"

// Loader applies a LoadPlan to the relational store as one all-or-nothing unit.
//
// Implemented by: storage.LoadStore.
type Loader interface {
	// Run loads every batch in dependency order inside a single transaction.
	//
	// Returns:
	//   - A LoadReport with per-table inserted/updated/skipped counts on success
	//   - A *LoadError identifying the table and natural key on failure; nothing from the
	//     run is visible afterward
	Run(ctx context.Context, plan *LoadPlan) (*LoadReport, error)
}
