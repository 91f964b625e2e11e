package storage

import (
	"context"
	"database/sql"
	"database/sql/driver"
	"errors"
	"fmt"
	"strings"

	"github.com/lib/pq"

	"github.com/correlator-io/roster/internal/records"
)

// PostgreSQL SQLSTATE codes the load engine reacts to.
const (
	sqlStateForeignKeyViolation = "23503"
	sqlStateCheckViolation      = "23514"
	sqlStateNotNullViolation    = "23502"
	sqlStateUniqueViolation     = "23505"
	sqlStateConnectionClass     = "08"
)

// classifyError maps a store error for one row onto the records sentinels and attaches the
// table and natural key. Errors that are already a *records.LoadError pass through.
func classifyError(table, key string, err error) error {
	if err == nil {
		return nil
	}

	if _, ok := records.AsLoadError(err); ok {
		return err
	}

	return records.NewLoadError(table, key, fmt.Errorf("%w: %w", sentinelFor(err), err))
}

func sentinelFor(err error) error {
	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		switch code := string(pqErr.Code); {
		case code == sqlStateForeignKeyViolation:
			return records.ErrReferentialIntegrity
		case code == sqlStateCheckViolation, code == sqlStateNotNullViolation:
			return records.ErrConstraintViolation
		case code == sqlStateUniqueViolation:
			// Natural keys are upserted, so a unique violation means two different keys
			// collided on a secondary unique column.
			return records.ErrConstraintViolation
		case strings.HasPrefix(code, sqlStateConnectionClass):
			return records.ErrConnectivity
		}
	}

	if isDatabaseConnectionError(err) {
		return records.ErrConnectivity
	}

	return records.ErrLoadFailed
}

// isDatabaseConnectionError checks if an error indicates database connection failure.
// Uses PostgreSQL error codes (Class 08) and standard database/sql errors.
func isDatabaseConnectionError(err error) bool {
	if err == nil {
		return false
	}

	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		return strings.HasPrefix(string(pqErr.Code), sqlStateConnectionClass)
	}

	return errors.Is(err, sql.ErrConnDone) || errors.Is(err, driver.ErrBadConn)
}

// isCancellation reports whether err came from the caller's context rather than the store.
func isCancellation(err error) bool {
	return errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded)
}
