package main

import (
	"embed"
	"errors"
	"fmt"
	"io/fs"
	"regexp"
	"sort"
	"strconv"
	"strings"
)

const (
	directionUp   = "up"
	directionDown = "down"
)

var (
	errNoMigrations       = errors.New("no embedded migration files found")
	errUnpairedMigration  = errors.New("migration is missing its counterpart")
	errMigrationSequence  = errors.New("migration sequence is not contiguous from 001")
	errEmptyMigrationFile = errors.New("migration file is empty")
)

//go:embed *.sql
var embeddedMigrations embed.FS

// Migration filename: 001_name.up.sql or 001_name.down.sql.
var migrationFilenameRegex = regexp.MustCompile(`^(\d{3})_([a-zA-Z0-9_]+)\.(up|down)\.sql$`)

type (
	// MigrationSet is the collection of schema migrations compiled into the binary.
	MigrationSet struct {
		fs fs.FS
	}

	// MigrationInfo is one parsed migration file.
	MigrationInfo struct {
		Sequence  int
		Name      string
		Direction string
		Filename  string
	}
)

// NewMigrationSet wraps filesystem, or the embedded migrations when filesystem is nil.
func NewMigrationSet(filesystem fs.FS) *MigrationSet {
	if filesystem == nil {
		filesystem = embeddedMigrations
	}

	return &MigrationSet{fs: filesystem}
}

// FS returns the file system holding the migrations.
func (s *MigrationSet) FS() fs.FS {
	return s.fs
}

// List returns every well-named migration file, sorted by sequence then direction.
// Files that do not match the naming standard are ignored.
func (s *MigrationSet) List() ([]MigrationInfo, error) {
	entries, err := fs.ReadDir(s.fs, ".")
	if err != nil {
		return nil, fmt.Errorf("failed to read migrations directory: %w", err)
	}

	var out []MigrationInfo

	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}

		if info, ok := parseMigrationFilename(entry.Name()); ok {
			out = append(out, info)
		}
	}

	sort.Slice(out, func(i, j int) bool {
		if out[i].Sequence != out[j].Sequence {
			return out[i].Sequence < out[j].Sequence
		}

		return out[i].Direction > out[j].Direction // up before down
	})

	return out, nil
}

// Validate checks the set before any state-changing command: at least one migration, every
// up paired with a down, sequences contiguous from 001, and no empty files.
func (s *MigrationSet) Validate() error {
	migrations, err := s.List()
	if err != nil {
		return err
	}

	if len(migrations) == 0 {
		return errNoMigrations
	}

	directions := make(map[string]map[string]bool)
	sequences := make(map[int]bool)

	for _, m := range migrations {
		content, err := fs.ReadFile(s.fs, m.Filename)
		if err != nil {
			return fmt.Errorf("failed to read migration file %s: %w", m.Filename, err)
		}

		if strings.TrimSpace(string(content)) == "" {
			return fmt.Errorf("%w: %s", errEmptyMigrationFile, m.Filename)
		}

		key := fmt.Sprintf("%03d_%s", m.Sequence, m.Name)
		if directions[key] == nil {
			directions[key] = make(map[string]bool)
		}

		directions[key][m.Direction] = true
		sequences[m.Sequence] = true
	}

	for key, dirs := range directions {
		if !dirs[directionUp] || !dirs[directionDown] {
			return fmt.Errorf("%w: %s", errUnpairedMigration, key)
		}
	}

	for seq := 1; seq <= len(sequences); seq++ {
		if !sequences[seq] {
			return fmt.Errorf("%w: missing %03d", errMigrationSequence, seq)
		}
	}

	return nil
}

// LatestVersion returns the highest migration sequence in the set, or 0 when empty.
func (s *MigrationSet) LatestVersion() int {
	migrations, err := s.List()
	if err != nil {
		return 0
	}

	latest := 0
	for _, m := range migrations {
		latest = max(latest, m.Sequence)
	}

	return latest
}

// Pending returns the up migrations newer than current, in apply order.
func (s *MigrationSet) Pending(current int) ([]MigrationInfo, error) {
	migrations, err := s.List()
	if err != nil {
		return nil, err
	}

	var pending []MigrationInfo

	for _, m := range migrations {
		if m.Direction == directionUp && m.Sequence > current {
			pending = append(pending, m)
		}
	}

	return pending, nil
}

func parseMigrationFilename(filename string) (MigrationInfo, bool) {
	matches := migrationFilenameRegex.FindStringSubmatch(filename)
	if matches == nil {
		return MigrationInfo{}, false
	}

	sequence, err := strconv.Atoi(matches[1])
	if err != nil {
		return MigrationInfo{}, false
	}

	return MigrationInfo{
		Sequence:  sequence,
		Name:      matches[2],
		Direction: matches[3],
		Filename:  filename,
	}, true
}
