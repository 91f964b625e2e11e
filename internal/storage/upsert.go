package storage

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"strconv"
	"strings"

	"github.com/correlator-io/roster/internal/records"
)

type (
	// queryer is the subset of *sql.Tx and *sql.DB the load engine needs.
	queryer interface {
		ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
		QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
	}

	// tableSpec describes one target table of the load engine.
	tableSpec struct {
		name       string
		keyColumns []string // natural key columns, matching a UNIQUE constraint
		touch      string   // optional timestamp column set to NOW() on every write
		insertOnly bool     // supplied columns are written on insert and never updated
	}

	// column is one supplied non-key column value.
	column struct {
		name  string
		value any
	}

	// columnSet collects the columns a record actually supplied.
	columnSet []column

	// row is one record ready for upsert: resolved key values plus supplied columns.
	row struct {
		naturalKey string // human-readable key for warnings and errors
		keys       []any  // values for tableSpec.keyColumns, same order
		columns    columnSet
	}

	// upsertOutcome is the result of one row upsert.
	upsertOutcome struct {
		id       int64
		inserted bool
	}
)

func (c *columnSet) add(name string, value any) {
	*c = append(*c, column{name: name, value: value})
}

// addMultilang adds m unless it is nil (not supplied).
func (c *columnSet) addMultilang(name string, m records.Multilang) {
	if m != nil {
		c.add(name, m)
	}
}

// addOptional adds *v unless v is nil (not supplied).
func addOptional[T any](c *columnSet, name string, v *T) {
	if v != nil {
		c.add(name, *v)
	}
}

// upsertSQL builds the statement for one row. Only supplied columns appear in the SET list,
// so omitted columns keep their stored value. A row without supplied columns assigns its
// first key column to itself so that RETURNING still yields the existing id.
//
// Example (person, one supplied column):
//
//	INSERT INTO person (external_person_id, email) VALUES ($1, $2)
//	ON CONFLICT (external_person_id) DO UPDATE SET email = EXCLUDED.email, updated_at = NOW()
//	RETURNING id, (xmax = 0) AS inserted
func (s tableSpec) upsertSQL(r row) (string, []any) {
	names := make([]string, 0, len(s.keyColumns)+len(r.columns))
	args := make([]any, 0, len(s.keyColumns)+len(r.columns))

	names = append(names, s.keyColumns...)
	args = append(args, r.keys...)

	sets := make([]string, 0, len(r.columns)+1)

	for _, col := range r.columns {
		names = append(names, col.name)
		args = append(args, col.value)

		if !s.insertOnly {
			sets = append(sets, col.name+" = EXCLUDED."+col.name)
		}
	}

	if len(sets) == 0 {
		sets = append(sets, s.keyColumns[0]+" = EXCLUDED."+s.keyColumns[0])
	}

	if s.touch != "" {
		sets = append(sets, s.touch+" = NOW()")
	}

	placeholders := make([]string, len(args))
	for i := range args {
		placeholders[i] = "$" + strconv.Itoa(i+1)
	}

	var sb strings.Builder

	sb.WriteString("INSERT INTO ")
	sb.WriteString(s.name)
	sb.WriteString(" (")
	sb.WriteString(strings.Join(names, ", "))
	sb.WriteString(") VALUES (")
	sb.WriteString(strings.Join(placeholders, ", "))
	sb.WriteString(") ON CONFLICT (")
	sb.WriteString(strings.Join(s.keyColumns, ", "))
	sb.WriteString(") DO UPDATE SET ")
	sb.WriteString(strings.Join(sets, ", "))
	sb.WriteString(" RETURNING id, (xmax = 0) AS inserted")

	return sb.String(), args
}

// upsertRow writes one row and reports whether it was newly inserted.
// xmax is zero only for tuples created by the current statement.
func upsertRow(ctx context.Context, q queryer, spec tableSpec, r row) (upsertOutcome, error) {
	query, args := spec.upsertSQL(r)

	var out upsertOutcome
	if err := q.QueryRowContext(ctx, query, args...).Scan(&out.id, &out.inserted); err != nil {
		return upsertOutcome{}, classifyError(spec.name, r.naturalKey, err)
	}

	return out, nil
}

// dedupeLastWins keeps the last occurrence of every natural key, preserving the order of
// the surviving rows. onDuplicate is called once per superseded row.
func dedupeLastWins(rows []row, onDuplicate func(r row)) []row {
	last := make(map[string]int, len(rows))
	for i, r := range rows {
		last[r.naturalKey] = i
	}

	if len(last) == len(rows) {
		return rows
	}

	kept := make([]row, 0, len(last))

	for i, r := range rows {
		if last[r.naturalKey] != i {
			onDuplicate(r)

			continue
		}

		kept = append(kept, r)
	}

	return kept
}

// duplicateWarner logs a superseded row and counts it as skipped.
func duplicateWarner(report *records.LoadReport, logger *slog.Logger, table string) func(r row) {
	return func(r row) {
		logger.Warn("Duplicate natural key in batch, last occurrence wins",
			slog.String("table", table),
			slog.String("key", r.naturalKey),
		)
		report.Warn(table, r.naturalKey, "duplicate natural key in batch; superseded by a later record")
	}
}

// upsertBatch applies rows to spec's table in order and tallies the outcome in report.
// The first failing row aborts the batch; the caller rolls the transaction back.
func upsertBatch(
	ctx context.Context,
	q queryer,
	spec tableSpec,
	rows []row,
	report *records.LoadReport,
	logger *slog.Logger,
) error {
	counts := report.Table(spec.name)

	rows = dedupeLastWins(rows, duplicateWarner(report, logger, spec.name))

	for _, r := range rows {
		out, err := upsertRow(ctx, q, spec, r)
		if err != nil {
			return err
		}

		if out.inserted {
			counts.Inserted++
		} else {
			counts.Updated++
		}
	}

	logger.Debug("Batch applied",
		slog.String("table", spec.name),
		slog.Int("rows", len(rows)),
		slog.Int("inserted", counts.Inserted),
		slog.Int("updated", counts.Updated),
	)

	return nil
}

// sectionKey formats the natural key of a profile-owned row for messages.
func sectionKey(profileKey, id string) string {
	return fmt.Sprintf("%s/%s", profileKey, id)
}
