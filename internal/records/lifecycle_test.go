package records

import (
	"errors"
	"testing"
)

func TestValidateRunTransition(t *testing.T) {
	if !testing.Short() {
		t.Skip("skipping unit test in non-short mode")
	}

	tests := []struct {
		from    RunStatus
		to      RunStatus
		wantErr error
	}{
		{RunStatusRunning, RunStatusCompleted, nil},
		{RunStatusRunning, RunStatusFailed, nil},
		{RunStatusCompleted, RunStatusCompleted, nil},
		{RunStatusFailed, RunStatusFailed, nil},
		{RunStatusCompleted, RunStatusFailed, ErrTerminalStateImmutable},
		{RunStatusFailed, RunStatusRunning, ErrTerminalStateImmutable},
		{RunStatusRunning, RunStatusRunning, ErrInvalidTransition},
		{RunStatus("paused"), RunStatusCompleted, ErrInvalidTransition},
	}

	for _, tt := range tests {
		t.Run(string(tt.from)+"_to_"+string(tt.to), func(t *testing.T) {
			err := ValidateRunTransition(tt.from, tt.to)
			if tt.wantErr == nil && err != nil {
				t.Fatalf("unexpected error: %v", err)
			}

			if tt.wantErr != nil && !errors.Is(err, tt.wantErr) {
				t.Fatalf("got %v, want %v", err, tt.wantErr)
			}
		})
	}
}
