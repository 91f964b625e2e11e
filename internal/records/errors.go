package records

import (
	"errors"
	"fmt"
)

// Sentinel errors for load failures. LoadError wraps exactly one of these.
var (
	// ErrReferentialIntegrity means a row's owner or dimension does not exist, or batches
	// were applied out of dependency order. Fatal for the run.
	ErrReferentialIntegrity = errors.New("referential integrity violation")

	// ErrConnectivity means the store was unreachable. Fatal; the run may be retried as a whole.
	ErrConnectivity = errors.New("storage connectivity failure")

	// ErrConstraintViolation means the store rejected a value (check constraint).
	ErrConstraintViolation = errors.New("constraint violation")

	// ErrInvalidRecord is fatal only when strict validation is enabled;
	// otherwise invalid records are skipped with a warning.
	ErrInvalidRecord = errors.New("invalid record")

	// ErrLoadFailed covers any other storage failure during a run.
	ErrLoadFailed = errors.New("load failed")
)

// LoadError identifies the table and natural key that caused a run to fail.
type LoadError struct {
	Table string
	Key   string
	Err   error
}

// NewLoadError wraps err with its table and natural key.
func NewLoadError(table, key string, err error) *LoadError {
	return &LoadError{Table: table, Key: key, Err: err}
}

// Error implements the error interface.
func (e *LoadError) Error() string {
	if e.Key == "" {
		return fmt.Sprintf("load failed at table %s: %v", e.Table, e.Err)
	}

	return fmt.Sprintf("load failed at table %s, key %q: %v", e.Table, e.Key, e.Err)
}

// Unwrap allows errors.Is / errors.As against the wrapped sentinel.
func (e *LoadError) Unwrap() error {
	return e.Err
}

// AsLoadError extracts a *LoadError from err's chain.
func AsLoadError(err error) (*LoadError, bool) {
	var le *LoadError
	if errors.As(err, &le) {
		return le, true
	}

	return nil, false
}
