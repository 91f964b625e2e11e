package storage

import (
	"context"
	"time"

	"github.com/correlator-io/roster/internal/records"
)

const loadRunsTable = "load_runs"

// insertRunRecord opens the audit row for a run inside the load transaction.
func insertRunRecord(ctx context.Context, q queryer, report *records.LoadReport) error {
	_, err := q.ExecContext(ctx, `
		INSERT INTO load_runs (run_id, status, plan_checksum, started_at)
		VALUES ($1, $2, NULLIF($3, ''), $4)`,
		report.RunID, string(records.RunStatusRunning), report.PlanChecksum, report.StartedAt,
	)

	return classifyError(loadRunsTable, report.RunID.String(), err)
}

// completeRunRecord marks the run completed with its totals. It commits with the data.
func completeRunRecord(ctx context.Context, q queryer, report *records.LoadReport) error {
	if err := records.ValidateRunTransition(records.RunStatusRunning, records.RunStatusCompleted); err != nil {
		return err
	}

	totals := report.Totals()

	_, err := q.ExecContext(ctx, `
		UPDATE load_runs
		SET status = $2, completed_at = $3, rows_inserted = $4, rows_updated = $5, rows_skipped = $6
		WHERE run_id = $1`,
		report.RunID, string(records.RunStatusCompleted), time.Now().UTC(),
		totals.Inserted, totals.Updated, totals.Skipped,
	)

	return classifyError(loadRunsTable, report.RunID.String(), err)
}

// insertFailedRunRecord writes a failed audit row after rollback. The running row was
// rolled back with the data, so this is a fresh insert.
func insertFailedRunRecord(ctx context.Context, q queryer, report *records.LoadReport, runErr error) error {
	if err := records.ValidateRunTransition(records.RunStatusRunning, records.RunStatusFailed); err != nil {
		return err
	}

	_, err := q.ExecContext(ctx, `
		INSERT INTO load_runs (run_id, status, plan_checksum, started_at, completed_at, error)
		VALUES ($1, $2, NULLIF($3, ''), $4, $5, $6)
		ON CONFLICT (run_id) DO UPDATE SET
			status = EXCLUDED.status,
			completed_at = EXCLUDED.completed_at,
			error = EXCLUDED.error`,
		report.RunID, string(records.RunStatusFailed), report.PlanChecksum, report.StartedAt,
		time.Now().UTC(), runErr.Error(),
	)

	return err
}
