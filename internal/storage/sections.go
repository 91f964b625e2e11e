package storage

import (
	"context"

	"github.com/correlator-io/roster/internal/canonicalization"
	"github.com/correlator-io/roster/internal/records"
)

// Repeatable profile sections are keyed by (profile_id, section_id); cv_role by (profile_id, name).
var (
	projectExperienceSpec = sectionSpec("project_experience")
	workExperienceSpec    = sectionSpec("work_experience")
	certificationSpec     = sectionSpec("certification")
	courseSpec            = sectionSpec("course")
	educationSpec         = sectionSpec("education")
	positionSpec          = sectionSpec("cv_position")
	blogPublicationSpec   = sectionSpec("blog_publication")
	keyQualificationSpec  = sectionSpec("key_qualification")
	cvRoleSpec            = tableSpec{name: "cv_role", keyColumns: []string{"profile_id", "name"}}
)

func sectionSpec(table string) tableSpec {
	return tableSpec{name: table, keyColumns: []string{"profile_id", "section_id"}}
}

// section describes how one profile-owned record kind maps onto its table.
type section[T any] struct {
	ref      func(rec *T) records.SectionRef
	validate func(v *records.Validator, rec *T) error
	columns  func(rec *T) columnSet
}

// loadSections validates, resolves and upserts one batch of profile-owned rows.
func loadSections[T any](ctx context.Context, l *loadRun, spec tableSpec, recs []T, s section[T]) error {
	rows := make([]row, 0, len(recs))

	for i := range recs {
		rec := &recs[i]
		ref := s.ref(rec)
		profileKey := canonicalization.NormalizeNaturalKey(ref.ProfileKey)
		sectionID := canonicalization.NormalizeNaturalKey(ref.SectionID)
		key := sectionKey(profileKey, sectionID)

		if err := s.validate(l.validator, rec); err != nil {
			if err := l.reject(spec.name, key, err); err != nil {
				return err
			}

			continue
		}

		profileID, err := l.resolver.Lookup(ctx, records.KindProfile, profileKey)
		if err != nil {
			return ownerError(spec.name, key, err)
		}

		rows = append(rows, row{naturalKey: key, keys: []any{profileID, sectionID}, columns: s.columns(rec)})
	}

	return upsertBatch(ctx, l.tx, spec, rows, l.report, l.logger)
}

func addPeriod(cols *columnSet, p *records.Period) {
	addOptional(cols, "month_from", p.MonthFrom)
	addOptional(cols, "year_from", p.YearFrom)
	addOptional(cols, "month_to", p.MonthTo)
	addOptional(cols, "year_to", p.YearTo)
}

// loadProjectExperiences is loadSections plus two optional dimension references.
func (l *loadRun) loadProjectExperiences(ctx context.Context, recs []records.ProjectExperience) error {
	spec := projectExperienceSpec
	rows := make([]row, 0, len(recs))

	for i := range recs {
		p := &recs[i]
		profileKey := canonicalization.NormalizeNaturalKey(p.ProfileKey)
		sectionID := canonicalization.NormalizeNaturalKey(p.SectionID)
		key := sectionKey(profileKey, sectionID)

		if err := l.validator.ValidateProjectExperience(p); err != nil {
			if err := l.reject(spec.name, key, err); err != nil {
				return err
			}

			continue
		}

		profileID, err := l.resolver.Lookup(ctx, records.KindProfile, profileKey)
		if err != nil {
			return ownerError(spec.name, key, err)
		}

		var cols columnSet

		addOptional(&cols, "customer", p.Customer)
		cols.addMultilang("description_multilang", p.Description)
		cols.addMultilang("long_description_multilang", p.LongDescription)
		addOptional(&cols, "percent_allocated", p.PercentAllocated)
		addOptional(&cols, "extent_hours", p.ExtentHours)
		addOptional(&cols, "project_area", p.ProjectArea)
		addOptional(&cols, "highlighted", p.Highlighted)
		addPeriod(&cols, &p.Period)

		if p.Industry != nil {
			id, err := l.resolver.LookupDimension(records.DimensionIndustry, *p.Industry)
			if err != nil {
				return ownerError(spec.name, key, err)
			}

			cols.add("industry_id", id)
		}

		if p.ProjectType != nil {
			id, err := l.resolver.LookupDimension(records.DimensionProjectType, *p.ProjectType)
			if err != nil {
				return ownerError(spec.name, key, err)
			}

			cols.add("project_type_id", id)
		}

		rows = append(rows, row{naturalKey: key, keys: []any{profileID, sectionID}, columns: cols})
	}

	return upsertBatch(ctx, l.tx, spec, rows, l.report, l.logger)
}

var workExperienceSection = section[records.WorkExperience]{
	ref:      func(w *records.WorkExperience) records.SectionRef { return w.SectionRef },
	validate: (*records.Validator).ValidateWorkExperience,
	columns: func(w *records.WorkExperience) columnSet {
		var cols columnSet

		addOptional(&cols, "employer", w.Employer)
		cols.addMultilang("description_multilang", w.Description)
		cols.addMultilang("long_description_multilang", w.LongDescription)
		addOptional(&cols, "highlighted", w.Highlighted)
		addPeriod(&cols, &w.Period)

		return cols
	},
}

var certificationSection = section[records.Certification]{
	ref:      func(c *records.Certification) records.SectionRef { return c.SectionRef },
	validate: (*records.Validator).ValidateCertification,
	columns: func(c *records.Certification) columnSet {
		var cols columnSet

		addOptional(&cols, "name", c.Name)
		addOptional(&cols, "organiser", c.Organiser)
		addOptional(&cols, "month", c.Month)
		addOptional(&cols, "year", c.Year)
		addOptional(&cols, "month_expire", c.MonthExpire)
		addOptional(&cols, "year_expire", c.YearExpire)

		return cols
	},
}

var courseSection = section[records.Course]{
	ref:      func(c *records.Course) records.SectionRef { return c.SectionRef },
	validate: func(v *records.Validator, c *records.Course) error { return v.ValidateSectionRef(c.SectionRef) },
	columns: func(c *records.Course) columnSet {
		var cols columnSet

		addOptional(&cols, "name", c.Name)
		addOptional(&cols, "organiser", c.Organiser)
		cols.addMultilang("long_description_multilang", c.LongDescription)
		addOptional(&cols, "highlighted", c.Highlighted)
		addOptional(&cols, "is_official_masterdata", c.IsOfficialMasterdata)

		return cols
	},
}

var educationSection = section[records.Education]{
	ref:      func(e *records.Education) records.SectionRef { return e.SectionRef },
	validate: func(v *records.Validator, e *records.Education) error { return v.ValidateSectionRef(e.SectionRef) },
	columns: func(e *records.Education) columnSet {
		var cols columnSet

		addOptional(&cols, "place_of_study", e.PlaceOfStudy)
		addOptional(&cols, "degree", e.Degree)
		cols.addMultilang("description_multilang", e.Description)
		addOptional(&cols, "year_from", e.YearFrom)
		addOptional(&cols, "year_to", e.YearTo)

		return cols
	},
}

var positionSection = section[records.Position]{
	ref:      func(p *records.Position) records.SectionRef { return p.SectionRef },
	validate: func(v *records.Validator, p *records.Position) error { return v.ValidateSectionRef(p.SectionRef) },
	columns: func(p *records.Position) columnSet {
		var cols columnSet

		addOptional(&cols, "name", p.Name)
		cols.addMultilang("description_multilang", p.Description)
		addOptional(&cols, "year_from", p.YearFrom)
		addOptional(&cols, "year_to", p.YearTo)

		return cols
	},
}

var blogPublicationSection = section[records.BlogPublication]{
	ref: func(b *records.BlogPublication) records.SectionRef { return b.SectionRef },
	validate: func(v *records.Validator, b *records.BlogPublication) error {
		return v.ValidateSectionRef(b.SectionRef)
	},
	columns: func(b *records.BlogPublication) columnSet {
		var cols columnSet

		addOptional(&cols, "name", b.Name)
		cols.addMultilang("description_multilang", b.Description)

		return cols
	},
}

var keyQualificationSection = section[records.KeyQualification]{
	ref: func(k *records.KeyQualification) records.SectionRef { return k.SectionRef },
	validate: func(v *records.Validator, k *records.KeyQualification) error {
		return v.ValidateSectionRef(k.SectionRef)
	},
	columns: func(k *records.KeyQualification) columnSet {
		var cols columnSet

		addOptional(&cols, "label", k.Label)
		cols.addMultilang("summary_multilang", k.Summary)
		cols.addMultilang("short_description_multilang", k.ShortDescription)

		return cols
	},
}

// cvRoleSection uses the role name in place of a section id.
var cvRoleSection = section[records.CvRole]{
	ref: func(r *records.CvRole) records.SectionRef {
		return records.SectionRef{ProfileKey: r.ProfileKey, SectionID: r.Name}
	},
	validate: (*records.Validator).ValidateCvRole,
	columns: func(r *records.CvRole) columnSet {
		var cols columnSet

		cols.addMultilang("description_multilang", r.Description)
		addOptional(&cols, "highlighted", r.Highlighted)

		return cols
	},
}
