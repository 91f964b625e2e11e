package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/correlator-io/roster/internal/aliasing"
	"github.com/correlator-io/roster/internal/canonicalization"
	"github.com/correlator-io/roster/internal/records"
)

// ErrUnknownEntityKind is returned when a kind has no master table.
var ErrUnknownEntityKind = errors.New("unknown entity kind")

var (
	personSpec = tableSpec{
		name:       "person",
		keyColumns: []string{"external_person_id"},
		touch:      "updated_at",
	}

	profileSpec = tableSpec{
		name:       "profile",
		keyColumns: []string{"external_profile_id"},
		touch:      "updated_at",
	}
)

type (
	// cacheKey is (table, normalized natural key).
	cacheKey struct {
		table string
		key   string
	}

	// Resolver maps natural keys to surrogate ids within one load run.
	//
	// Master entities and dimensions are created atomically with INSERT ... ON CONFLICT, never
	// with a read-then-insert. Every resolved id is memoized, so each key costs at most one
	// store round trip per run. A Resolver must not outlive its transaction.
	Resolver struct {
		q          queryer
		aliases    *aliasing.Resolver
		cache      map[cacheKey]int64
		statements int
	}
)

// NewResolver creates a Resolver bound to q (normally the run's transaction).
// aliases may be nil, in which case dimension names are only normalized.
func NewResolver(q queryer, aliases *aliasing.Resolver) *Resolver {
	return &Resolver{
		q:       q,
		aliases: aliases,
		cache:   make(map[cacheKey]int64),
	}
}

// Statements returns the number of store statements issued so far.
func (r *Resolver) Statements() int {
	return r.statements
}

func masterSpec(kind records.EntityKind) (tableSpec, error) {
	switch kind {
	case records.KindPerson:
		return personSpec, nil
	case records.KindProfile:
		return profileSpec, nil
	default:
		return tableSpec{}, fmt.Errorf("%w: %s", ErrUnknownEntityKind, kind)
	}
}

// Resolve creates or updates a master entity and returns its id. Supplied attrs overwrite the
// stored columns; the rest are left alone.
func (r *Resolver) Resolve(ctx context.Context, kind records.EntityKind, naturalKey string, attrs columnSet) (int64, error) {
	out, _, err := r.resolve(ctx, kind, naturalKey, attrs)

	return out.id, err
}

// resolve reports cached=true when the key was already resolved in this run; nothing is written then.
func (r *Resolver) resolve(
	ctx context.Context,
	kind records.EntityKind,
	naturalKey string,
	attrs columnSet,
) (upsertOutcome, bool, error) {
	spec, err := masterSpec(kind)
	if err != nil {
		return upsertOutcome{}, false, err
	}

	key := canonicalization.NormalizeNaturalKey(naturalKey)
	ck := cacheKey{table: spec.name, key: key}

	if id, ok := r.cache[ck]; ok {
		return upsertOutcome{id: id}, true, nil
	}

	r.statements++

	out, err := upsertRow(ctx, r.q, spec, row{naturalKey: key, keys: []any{key}, columns: attrs})
	if err != nil {
		return upsertOutcome{}, false, err
	}

	r.cache[ck] = out.id

	return out, false, nil
}

// Dimension resolves a dimension name to its id, creating the row on first sight.
//
// The name goes through the alias configuration first, then whitespace normalization; the
// case-folded result is the lookup key. The first spelling seen becomes the display name and
// an existing row is never modified.
func (r *Resolver) Dimension(ctx context.Context, kind records.DimensionKind, name string) (int64, error) {
	out, _, err := r.dimension(ctx, kind, name)

	return out.id, err
}

func (r *Resolver) dimension(ctx context.Context, kind records.DimensionKind, name string) (upsertOutcome, bool, error) {
	display, key := r.dimensionName(kind, name)
	table := kind.Table()

	if !kind.IsValid() {
		return upsertOutcome{}, false, records.NewLoadError(table, name,
			fmt.Errorf("%w: %w", records.ErrInvalidRecord, records.ErrUnknownDimensionKind))
	}

	if key == "" {
		return upsertOutcome{}, false, records.NewLoadError(table, name,
			fmt.Errorf("%w: %w", records.ErrInvalidRecord, records.ErrEmptyDimensionName))
	}

	ck := cacheKey{table: table, key: key}
	if id, ok := r.cache[ck]; ok {
		return upsertOutcome{id: id}, true, nil
	}

	spec := tableSpec{name: table, keyColumns: []string{"name_key"}, insertOnly: true}

	r.statements++

	out, err := upsertRow(ctx, r.q, spec, row{
		naturalKey: key,
		keys:       []any{key},
		columns:    columnSet{{name: "name", value: display}},
	})
	if err != nil {
		return upsertOutcome{}, false, err
	}

	r.cache[ck] = out.id

	return out, false, nil
}

// LookupDimension returns the id of a dimension already resolved in this run.
// Dimensions are resolved before any link or section, so a miss means the batches were
// applied out of order.
func (r *Resolver) LookupDimension(kind records.DimensionKind, name string) (int64, error) {
	_, key := r.dimensionName(kind, name)

	if id, ok := r.cache[cacheKey{table: kind.Table(), key: key}]; ok {
		return id, nil
	}

	return 0, records.NewLoadError(kind.Table(), name,
		fmt.Errorf("%w: dimension was not resolved before use", records.ErrReferentialIntegrity))
}

func (r *Resolver) dimensionName(kind records.DimensionKind, name string) (display, key string) {
	canonical := r.aliases.Resolve(string(kind), name)

	return canonicalization.NormalizeDimensionName(canonical), canonicalization.DimensionKey(canonical)
}

// Lookup returns the id of an existing master entity. It never creates one: an unknown key
// is a referential-integrity error.
func (r *Resolver) Lookup(ctx context.Context, kind records.EntityKind, naturalKey string) (int64, error) {
	spec, err := masterSpec(kind)
	if err != nil {
		return 0, err
	}

	key := canonicalization.NormalizeNaturalKey(naturalKey)
	ck := cacheKey{table: spec.name, key: key}

	if id, ok := r.cache[ck]; ok {
		return id, nil
	}

	query := "SELECT id FROM " + spec.name + " WHERE " + spec.keyColumns[0] + " = $1"

	id, err := r.selectID(ctx, spec.name, key, query, key)
	if err != nil {
		return 0, err
	}

	r.cache[ck] = id

	return id, nil
}

// LookupPersonByRef finds a person by email, then by UPN, both case-insensitive.
// Used by temporal rows that arrive without an external person id.
func (r *Resolver) LookupPersonByRef(ctx context.Context, ref *records.PersonRef) (int64, error) {
	if ref == nil {
		return 0, records.NewLoadError(personSpec.name, "", records.ErrMissingOwner)
	}

	candidates := []struct {
		column string
		value  string
	}{
		{column: "email", value: canonicalization.NormalizeEmail(ref.Email)},
		{column: "upn", value: canonicalization.NormalizeEmail(ref.UPN)},
	}

	for _, c := range candidates {
		if c.value == "" {
			continue
		}

		ck := cacheKey{table: personSpec.name + "." + c.column, key: c.value}
		if id, ok := r.cache[ck]; ok {
			return id, nil
		}

		query := "SELECT id FROM person WHERE lower(" + c.column + ") = $1 ORDER BY id LIMIT 1"

		id, err := r.selectID(ctx, personSpec.name, c.value, query, c.value)
		if errors.Is(err, records.ErrReferentialIntegrity) {
			continue
		}

		if err != nil {
			return 0, err
		}

		r.cache[ck] = id

		return id, nil
	}

	key := ref.Email
	if key == "" {
		key = ref.UPN
	}

	return 0, records.NewLoadError(personSpec.name, key,
		fmt.Errorf("%w: no person matches email or upn", records.ErrReferentialIntegrity))
}

func (r *Resolver) selectID(ctx context.Context, table, key, query string, args ...any) (int64, error) {
	r.statements++

	var id int64

	err := r.q.QueryRowContext(ctx, query, args...).Scan(&id)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, records.NewLoadError(table, key,
			fmt.Errorf("%w: %s %q does not exist", records.ErrReferentialIntegrity, table, key))
	}

	if err != nil {
		return 0, classifyError(table, key, err)
	}

	return id, nil
}
