package main

import (
	"bytes"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeRunner struct {
	calls  []string
	status *Status
	err    error
}

func (f *fakeRunner) record(call string) error {
	f.calls = append(f.calls, call)

	return f.err
}

func (f *fakeRunner) Up() error    { return f.record("up") }
func (f *fakeRunner) Down() error  { return f.record("down") }
func (f *fakeRunner) Drop() error  { return f.record("drop") }
func (f *fakeRunner) Close() error { return nil }

func (f *fakeRunner) Status() (*Status, error) {
	return f.status, f.record("status")
}

func TestExecuteCommand(t *testing.T) {
	if !testing.Short() {
		t.Skip("skipping unit test in non-short mode")
	}

	t.Run("up and down", func(t *testing.T) {
		r := &fakeRunner{}

		require.NoError(t, executeCommand("up", r, nil, &bytes.Buffer{}, false))
		require.NoError(t, executeCommand("down", r, nil, &bytes.Buffer{}, false))
		assert.Equal(t, []string{"up", "down"}, r.calls)
	})

	t.Run("status prints pending migrations", func(t *testing.T) {
		r := &fakeRunner{status: &Status{
			Version: 3,
			Latest:  5,
			Pending: []MigrationInfo{{Sequence: 4, Name: "load_runs"}, {Sequence: 5, Name: "search_profile_views"}},
		}}

		var out bytes.Buffer

		require.NoError(t, executeCommand("status", r, nil, &out, false))
		assert.Contains(t, out.String(), "v003 (clean)")
		assert.Contains(t, out.String(), "Pending migrations (2)")
		assert.Contains(t, out.String(), "005 search_profile_views")
	})

	t.Run("drop requires confirmation", func(t *testing.T) {
		r := &fakeRunner{}

		var out bytes.Buffer

		require.NoError(t, executeCommand("drop", r, strings.NewReader("n\n"), &out, false))
		assert.Empty(t, r.calls)
		assert.Contains(t, out.String(), "Operation cancelled.")

		require.NoError(t, executeCommand("drop", r, strings.NewReader("Y\n"), &out, false))
		require.NoError(t, executeCommand("drop", r, strings.NewReader(""), &out, true))
		assert.Equal(t, []string{"drop", "drop"}, r.calls)
	})

	t.Run("errors propagate", func(t *testing.T) {
		boom := errors.New("boom")

		assert.ErrorIs(t, executeCommand("up", &fakeRunner{err: boom}, nil, &bytes.Buffer{}, false), boom)
		assert.ErrorIs(t, executeCommand("status", &fakeRunner{err: boom}, nil, &bytes.Buffer{}, false), boom)
	})

	t.Run("unknown command", func(t *testing.T) {
		err := executeCommand("sideways", &fakeRunner{}, nil, &bytes.Buffer{}, false)
		assert.ErrorContains(t, err, "unknown command")
	})
}

func TestStatusSummary(t *testing.T) {
	if !testing.Short() {
		t.Skip("skipping unit test in non-short mode")
	}

	assert.Contains(t, (&Status{Version: 5, Latest: 5}).Summary(), "Up to date")
	assert.Contains(t, (&Status{Version: 6, Latest: 5}).Summary(), "newer than this migrator")
	assert.Contains(t, (&Status{Version: 2, Dirty: true, Latest: 5}).Summary(), "dirty")
}
