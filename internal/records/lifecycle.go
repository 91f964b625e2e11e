package records

import (
	"errors"
	"fmt"
)

// RunStatus is the lifecycle state of a load run as recorded in load_runs.
type RunStatus string

// Load run states.
const (
	RunStatusRunning   RunStatus = "running"
	RunStatusCompleted RunStatus = "completed"
	RunStatusFailed    RunStatus = "failed"
)

// Sentinel errors for run state transitions.
var (
	ErrInvalidTransition      = errors.New("invalid run state transition")
	ErrTerminalStateImmutable = errors.New("terminal run state is immutable")
)

// IsValid reports whether s is a known status.
func (s RunStatus) IsValid() bool {
	switch s {
	case RunStatusRunning, RunStatusCompleted, RunStatusFailed:
		return true
	default:
		return false
	}
}

// IsTerminal reports whether s is a final state.
func (s RunStatus) IsTerminal() bool {
	return s == RunStatusCompleted || s == RunStatusFailed
}

// ValidateRunTransition validates a load run state change.
//
// Valid transitions:
//   - running → {completed, failed}
//   - completed/failed → same state (idempotent)
//
// Anything else is rejected, including leaving a terminal state.
func ValidateRunTransition(from, to RunStatus) error {
	if !from.IsValid() || !to.IsValid() {
		return fmt.Errorf("%w: %q → %q", ErrInvalidTransition, from, to)
	}

	if from.IsTerminal() {
		if from != to {
			return fmt.Errorf("%w: %s → %s", ErrTerminalStateImmutable, from, to)
		}

		return nil
	}

	if to == RunStatusRunning {
		return fmt.Errorf("%w: %s → %s", ErrInvalidTransition, from, to)
	}

	return nil
}
