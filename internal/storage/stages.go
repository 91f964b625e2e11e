package storage

import (
	"context"

	"github.com/correlator-io/roster/internal/canonicalization"
	"github.com/correlator-io/roster/internal/records"
)

var (
	technologyLinkSpec = tableSpec{name: "profile_technology", keyColumns: []string{"profile_id", "technology_id"}}
	languageLinkSpec   = tableSpec{name: "profile_language", keyColumns: []string{"profile_id", "language_id"}}
)

// applyMasters upserts master rows through the resolver so their ids are cached for the
// dependent batches.
func (l *loadRun) applyMasters(ctx context.Context, kind records.EntityKind, table string, rows []row) error {
	counts := l.report.Table(table)

	for _, r := range dedupeLastWins(rows, duplicateWarner(l.report, l.logger, table)) {
		out, cached, err := l.resolver.resolve(ctx, kind, r.naturalKey, r.columns)
		if err != nil {
			return err
		}

		switch {
		case cached:
		case out.inserted:
			counts.Inserted++
		default:
			counts.Updated++
		}
	}

	return nil
}

func (l *loadRun) loadPersons(ctx context.Context, persons []records.Person) error {
	rows := make([]row, 0, len(persons))

	for i := range persons {
		p := &persons[i]
		key := canonicalization.NormalizeNaturalKey(p.ExternalPersonID)

		if err := l.validator.ValidatePerson(p); err != nil {
			if err := l.reject(personSpec.name, key, err); err != nil {
				return err
			}

			continue
		}

		var cols columnSet

		cols.addMultilang("name_multilang", p.Name)
		cols.addMultilang("nationality_multilang", p.Nationality)
		addOptional(&cols, "email", p.Email)
		addOptional(&cols, "upn", p.UPN)
		addOptional(&cols, "phone", p.Phone)
		addOptional(&cols, "landline", p.Landline)
		addOptional(&cols, "birth_year", p.BirthYear)
		addOptional(&cols, "department", p.Department)
		addOptional(&cols, "country", p.Country)
		addOptional(&cols, "created_at", p.CreatedAt)

		rows = append(rows, row{naturalKey: key, keys: []any{key}, columns: cols})
	}

	return l.applyMasters(ctx, records.KindPerson, personSpec.name, rows)
}

func (l *loadRun) loadProfiles(ctx context.Context, profiles []records.Profile) error {
	rows := make([]row, 0, len(profiles))

	for i := range profiles {
		p := &profiles[i]
		key := canonicalization.NormalizeNaturalKey(p.ExternalProfileID)

		if err := l.validator.ValidateProfile(p); err != nil {
			if err := l.reject(profileSpec.name, key, err); err != nil {
				return err
			}

			continue
		}

		personID, err := l.resolver.Lookup(ctx, records.KindPerson, p.PersonKey)
		if err != nil {
			return ownerError(profileSpec.name, key, err)
		}

		cols := columnSet{{name: "person_id", value: personID}}

		cols.addMultilang("title_multilang", p.Title)
		addOptional(&cols, "years_of_education", p.YearsOfEducation)
		addOptional(&cols, "years_since_first_work_experience", p.YearsSinceFirstWorkExperience)
		addOptional(&cols, "has_profile_image", p.HasProfileImage)
		addOptional(&cols, "owns_reference_project", p.OwnsReferenceProject)
		addOptional(&cols, "read_privacy_notice", p.ReadPrivacyNotice)
		addOptional(&cols, "last_updated", p.LastUpdated)
		addOptional(&cols, "last_updated_by_owner", p.LastUpdatedByOwner)
		addOptional(&cols, "sfia_level", p.SFIALevel)
		addOptional(&cols, "cpd_level", p.CPDLevel)
		addOptional(&cols, "cpd_band", p.CPDBand)
		addOptional(&cols, "cpd_label", p.CPDLabel)

		rows = append(rows, row{naturalKey: key, keys: []any{key}, columns: cols})
	}

	return l.applyMasters(ctx, records.KindProfile, profileSpec.name, rows)
}

type dimensionRef struct {
	kind records.DimensionKind
	name string
}

// loadDimensions resolves every dimension name the plan uses before any dependent batch runs:
// explicit dimension records first, then names referenced by valid links, sections and grants.
func (l *loadRun) loadDimensions(ctx context.Context, plan *records.LoadPlan) error {
	refs := make([]dimensionRef, 0, len(plan.Dimensions)+len(plan.TechnologyLinks)+len(plan.LanguageLinks))

	for i := range plan.Dimensions {
		d := &plan.Dimensions[i]

		if err := l.validator.ValidateDimension(d); err != nil {
			if err := l.reject(d.Kind.Table(), d.Name, err); err != nil {
				return err
			}

			continue
		}

		refs = append(refs, dimensionRef{kind: d.Kind, name: d.Name})
	}

	refs = append(refs, l.referencedDimensions(plan)...)

	for _, ref := range refs {
		out, cached, err := l.resolver.dimension(ctx, ref.kind, ref.name)
		if err != nil {
			return err
		}

		if cached {
			continue
		}

		// A name already stored by an earlier run counts as updated, like a re-sighted master row.
		if out.inserted {
			l.report.Table(ref.kind.Table()).Inserted++
		} else {
			l.report.Table(ref.kind.Table()).Updated++
		}
	}

	return nil
}

// referencedDimensions lists dimension names used by records that will pass validation.
// Invalid records are reported by their own batch, so they are skipped silently here.
func (l *loadRun) referencedDimensions(plan *records.LoadPlan) []dimensionRef {
	var refs []dimensionRef

	v := l.validator

	for i := range plan.TechnologyLinks {
		if link := &plan.TechnologyLinks[i]; v.ValidateTechnologyLink(link) == nil {
			refs = append(refs, dimensionRef{kind: records.DimensionTechnology, name: link.Technology})
		}
	}

	for i := range plan.LanguageLinks {
		if link := &plan.LanguageLinks[i]; v.ValidateLanguageLink(link) == nil {
			refs = append(refs, dimensionRef{kind: records.DimensionLanguage, name: link.Language})
		}
	}

	for i := range plan.ProjectExperiences {
		p := &plan.ProjectExperiences[i]
		if v.ValidateProjectExperience(p) != nil {
			continue
		}

		if p.Industry != nil {
			refs = append(refs, dimensionRef{kind: records.DimensionIndustry, name: *p.Industry})
		}

		if p.ProjectType != nil {
			refs = append(refs, dimensionRef{kind: records.DimensionProjectType, name: *p.ProjectType})
		}
	}

	for i := range plan.ClearanceGrants {
		if g, _ := l.repairGrant(&plan.ClearanceGrants[i]); v.ValidateClearanceGrant(&g) == nil {
			refs = append(refs, dimensionRef{kind: records.DimensionClearance, name: clearanceName(&g)})
		}
	}

	return refs
}

func (l *loadRun) loadTechnologyLinks(ctx context.Context, links []records.TechnologyLink) error {
	spec := technologyLinkSpec
	rows := make([]row, 0, len(links))

	for i := range links {
		link := &links[i]
		key := sectionKey(canonicalization.NormalizeNaturalKey(link.ProfileKey), link.Technology)

		if err := l.validator.ValidateTechnologyLink(link); err != nil {
			if err := l.reject(spec.name, key, err); err != nil {
				return err
			}

			continue
		}

		ids, err := l.linkIDs(ctx, spec.name, key, link.ProfileKey, records.DimensionTechnology, link.Technology)
		if err != nil {
			return err
		}

		var cols columnSet

		addOptional(&cols, "years_experience", link.YearsExperience)
		addOptional(&cols, "proficiency", link.Proficiency)
		addOptional(&cols, "is_official_masterdata", link.IsOfficialMasterdata)

		rows = append(rows, row{naturalKey: ids.naturalKey, keys: []any{ids.profileID, ids.dimensionID}, columns: cols})
	}

	return upsertBatch(ctx, l.tx, spec, rows, l.report, l.logger)
}

func (l *loadRun) loadLanguageLinks(ctx context.Context, links []records.LanguageLink) error {
	spec := languageLinkSpec
	rows := make([]row, 0, len(links))

	for i := range links {
		link := &links[i]
		key := sectionKey(canonicalization.NormalizeNaturalKey(link.ProfileKey), link.Language)

		if err := l.validator.ValidateLanguageLink(link); err != nil {
			if err := l.reject(spec.name, key, err); err != nil {
				return err
			}

			continue
		}

		ids, err := l.linkIDs(ctx, spec.name, key, link.ProfileKey, records.DimensionLanguage, link.Language)
		if err != nil {
			return err
		}

		var cols columnSet

		addOptional(&cols, "level", link.Level)
		addOptional(&cols, "highlighted", link.Highlighted)
		addOptional(&cols, "is_official_masterdata", link.IsOfficialMasterdata)
		addOptional(&cols, "updated", link.Updated)
		addOptional(&cols, "updated_by_owner", link.UpdatedByOwner)

		rows = append(rows, row{naturalKey: ids.naturalKey, keys: []any{ids.profileID, ids.dimensionID}, columns: cols})
	}

	return upsertBatch(ctx, l.tx, spec, rows, l.report, l.logger)
}

type linkIDs struct {
	profileID   int64
	dimensionID int64
	naturalKey  string // profile key and folded dimension name, so "Go" and "go" collide
}

func (l *loadRun) linkIDs(
	ctx context.Context,
	table, key, profileKey string,
	kind records.DimensionKind,
	name string,
) (linkIDs, error) {
	profileID, err := l.resolver.Lookup(ctx, records.KindProfile, profileKey)
	if err != nil {
		return linkIDs{}, ownerError(table, key, err)
	}

	dimensionID, err := l.resolver.LookupDimension(kind, name)
	if err != nil {
		return linkIDs{}, ownerError(table, key, err)
	}

	_, dimKey := l.resolver.dimensionName(kind, name)

	return linkIDs{
		profileID:   profileID,
		dimensionID: dimensionID,
		naturalKey:  sectionKey(canonicalization.NormalizeNaturalKey(profileKey), dimKey),
	}, nil
}
