package main

import (
	"testing"
	"testing/fstest"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func sqlFile(body string) *fstest.MapFile {
	return &fstest.MapFile{Data: []byte(body)}
}

func TestMigrationSet_Embedded(t *testing.T) {
	if !testing.Short() {
		t.Skip("skipping unit test in non-short mode")
	}

	set := NewMigrationSet(nil)

	require.NoError(t, set.Validate())

	migrations, err := set.List()
	require.NoError(t, err)
	require.NotEmpty(t, migrations)

	assert.Equal(t, "001_initial_schema.up.sql", migrations[0].Filename)
	assert.Equal(t, "001_initial_schema.down.sql", migrations[1].Filename)
	assert.Equal(t, 6, set.LatestVersion())
}

func TestMigrationSet_List(t *testing.T) {
	if !testing.Short() {
		t.Skip("skipping unit test in non-short mode")
	}

	set := NewMigrationSet(fstest.MapFS{
		"002_more.down.sql":   sqlFile("DROP TABLE b;"),
		"001_first.down.sql":  sqlFile("DROP TABLE a;"),
		"002_more.up.sql":     sqlFile("CREATE TABLE b ();"),
		"001_first.up.sql":    sqlFile("CREATE TABLE a ();"),
		"README.md":           sqlFile("docs"),
		"1_bad_name.up.sql":   sqlFile("SELECT 1;"),
		"003_bad-name.up.sql": sqlFile("SELECT 1;"),
	})

	migrations, err := set.List()
	require.NoError(t, err)

	names := make([]string, 0, len(migrations))
	for _, m := range migrations {
		names = append(names, m.Filename)
	}

	assert.Equal(t, []string{
		"001_first.up.sql",
		"001_first.down.sql",
		"002_more.up.sql",
		"002_more.down.sql",
	}, names)
}

func TestMigrationSet_Validate(t *testing.T) {
	if !testing.Short() {
		t.Skip("skipping unit test in non-short mode")
	}

	tests := []struct {
		name    string
		fs      fstest.MapFS
		wantErr error
	}{
		{
			name: "valid",
			fs: fstest.MapFS{
				"001_a.up.sql":   sqlFile("CREATE TABLE a ();"),
				"001_a.down.sql": sqlFile("DROP TABLE a;"),
			},
		},
		{
			name:    "empty directory",
			fs:      fstest.MapFS{},
			wantErr: errNoMigrations,
		},
		{
			name: "missing down",
			fs: fstest.MapFS{
				"001_a.up.sql": sqlFile("CREATE TABLE a ();"),
			},
			wantErr: errUnpairedMigration,
		},
		{
			name: "gap in sequence",
			fs: fstest.MapFS{
				"001_a.up.sql":   sqlFile("CREATE TABLE a ();"),
				"001_a.down.sql": sqlFile("DROP TABLE a;"),
				"003_c.up.sql":   sqlFile("CREATE TABLE c ();"),
				"003_c.down.sql": sqlFile("DROP TABLE c;"),
			},
			wantErr: errMigrationSequence,
		},
		{
			name: "empty file",
			fs: fstest.MapFS{
				"001_a.up.sql":   sqlFile("CREATE TABLE a ();"),
				"001_a.down.sql": sqlFile("  \n"),
			},
			wantErr: errEmptyMigrationFile,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := NewMigrationSet(tt.fs).Validate()
			if tt.wantErr == nil {
				assert.NoError(t, err)

				return
			}

			assert.ErrorIs(t, err, tt.wantErr)
		})
	}
}

func TestMigrationSet_Pending(t *testing.T) {
	if !testing.Short() {
		t.Skip("skipping unit test in non-short mode")
	}

	set := NewMigrationSet(fstest.MapFS{
		"001_a.up.sql":   sqlFile("x"),
		"001_a.down.sql": sqlFile("x"),
		"002_b.up.sql":   sqlFile("x"),
		"002_b.down.sql": sqlFile("x"),
		"003_c.up.sql":   sqlFile("x"),
		"003_c.down.sql": sqlFile("x"),
	})

	pending, err := set.Pending(1)
	require.NoError(t, err)
	require.Len(t, pending, 2)
	assert.Equal(t, "b", pending[0].Name)
	assert.Equal(t, "c", pending[1].Name)

	pending, err = set.Pending(3)
	require.NoError(t, err)
	assert.Empty(t, pending)

	assert.Equal(t, 3, set.LatestVersion())
}
