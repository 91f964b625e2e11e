package storage

import (
	"context"
	"strings"

	"github.com/correlator-io/roster/internal/canonicalization"
	"github.com/correlator-io/roster/internal/records"
)

var (
	// A grant is keyed by its start date. Closing a grant is an in-place update of valid_to on
	// the same key; a new valid_from is a new grant. Nothing is ever closed implicitly.
	clearanceGrantSpec = tableSpec{
		name:       "person_clearance",
		keyColumns: []string{"person_id", "clearance_id", "valid_from"},
	}

	// One availability row per person per day; every load replaces it.
	availabilitySpec = tableSpec{
		name:       "person_availability",
		keyColumns: []string{"person_id", "date"},
		touch:      "updated_at",
	}
)

// clearanceName returns the grant's clearance, or records.DefaultClearanceName when blank.
func clearanceName(g *records.ClearanceGrant) string {
	if strings.TrimSpace(g.Clearance) == "" {
		return records.DefaultClearanceName
	}

	return g.Clearance
}

// personID resolves the owner of a temporal row: by external person id when present,
// otherwise by email and then UPN.
func (l *loadRun) personID(ctx context.Context, personKey string, ref *records.PersonRef) (int64, error) {
	if key := canonicalization.NormalizeNaturalKey(personKey); key != "" {
		return l.resolver.Lookup(ctx, records.KindPerson, key)
	}

	return l.resolver.LookupPersonByRef(ctx, ref)
}

// temporalOwnerKey is the owner part of a temporal row's natural key: the normalized person id,
// or the folded email or UPN when the id is missing.
func temporalOwnerKey(personKey string, ref *records.PersonRef) string {
	if key := canonicalization.NormalizeNaturalKey(personKey); key != "" {
		return key
	}

	return personRefKey(ref)
}

// repairGrant returns the grant as it will be loaded. Strict runs load records as given, so
// the validator rejects what a lenient run repairs.
func (l *loadRun) repairGrant(g *records.ClearanceGrant) (records.ClearanceGrant, []string) {
	if l.strict {
		return *g, nil
	}

	return records.RepairClearanceGrant(*g)
}

func (l *loadRun) repairAvailability(a *records.Availability) (records.Availability, []string) {
	if l.strict {
		return *a, nil
	}

	return records.RepairAvailability(*a)
}

func personRefKey(ref *records.PersonRef) string {
	if ref == nil {
		return ""
	}

	if email := canonicalization.NormalizeEmail(ref.Email); email != "" {
		return email
	}

	return canonicalization.NormalizeEmail(ref.UPN)
}

func (l *loadRun) loadClearanceGrants(ctx context.Context, grants []records.ClearanceGrant) error {
	spec := clearanceGrantSpec
	rows := make([]row, 0, len(grants))

	for i := range grants {
		repaired, notes := l.repairGrant(&grants[i])
		g := &repaired
		name := clearanceName(g)
		ownerKey := temporalOwnerKey(g.PersonKey, g.Person)
		key := ownerKey + "/" + name + "/" + g.ValidFrom.String()

		if err := l.validator.ValidateClearanceGrant(g); err != nil {
			if err := l.reject(spec.name, key, err); err != nil {
				return err
			}

			continue
		}

		l.note(spec.name, key, notes)

		personID, err := l.personID(ctx, g.PersonKey, g.Person)
		if err != nil {
			return ownerError(spec.name, key, err)
		}

		clearanceID, err := l.resolver.LookupDimension(records.DimensionClearance, name)
		if err != nil {
			return ownerError(spec.name, key, err)
		}

		var cols columnSet

		if g.ValidTo != nil && !g.ValidTo.IsZero() {
			cols.add("valid_to", *g.ValidTo)
		}

		addOptional(&cols, "verified_by", g.VerifiedBy)
		addOptional(&cols, "notes", g.Notes)

		_, clearanceKey := l.resolver.dimensionName(records.DimensionClearance, name)

		rows = append(rows, row{
			naturalKey: ownerKey + "/" + clearanceKey + "/" + g.ValidFrom.String(),
			keys:       []any{personID, clearanceID, g.ValidFrom},
			columns:    cols,
		})
	}

	return upsertBatch(ctx, l.tx, spec, rows, l.report, l.logger)
}

func (l *loadRun) loadAvailability(ctx context.Context, snapshots []records.Availability) error {
	spec := availabilitySpec
	rows := make([]row, 0, len(snapshots))

	for i := range snapshots {
		repaired, notes := l.repairAvailability(&snapshots[i])
		a := &repaired
		key := temporalOwnerKey(a.PersonKey, a.Person) + "/" + a.Date.String()

		if err := l.validator.ValidateAvailability(a); err != nil {
			if err := l.reject(spec.name, key, err); err != nil {
				return err
			}

			continue
		}

		l.note(spec.name, key, notes)

		personID, err := l.personID(ctx, a.PersonKey, a.Person)
		if err != nil {
			return ownerError(spec.name, key, err)
		}

		source := records.DefaultAvailabilitySource
		if a.Source != nil && strings.TrimSpace(*a.Source) != "" {
			source = *a.Source
		}

		rows = append(rows, row{
			naturalKey: key,
			keys:       []any{personID, a.Date},
			columns:    columnSet{{name: "percent", value: a.Percent}, {name: "source", value: source}},
		})
	}

	return upsertBatch(ctx, l.tx, spec, rows, l.report, l.logger)
}
