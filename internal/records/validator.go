package records

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

// Sentinel errors for validation failures.
var (
	ErrMissingNaturalKey       = errors.New("natural key is required")
	ErrMissingOwner            = errors.New("owner reference is required")
	ErrMissingSectionID        = errors.New("section_id is required")
	ErrEmptyDimensionName      = errors.New("dimension name is empty")
	ErrUnknownDimensionKind    = errors.New("unknown dimension kind")
	ErrPercentOutOfRange       = errors.New("percent must be between 0 and 100")
	ErrInvalidValidityInterval = errors.New("valid_to is before valid_from")
	ErrMissingDate             = errors.New("date is required")
	ErrInvalidMonth            = errors.New("month must be between 1 and 12")
)

const (
	minPercent = 0
	maxPercent = 100
)

// DefaultValidFrom is the start date given to clearance grants exported without one.
var DefaultValidFrom = NewDate(1900, time.January, 1)

// Validator performs semantic validation of records before they reach the store.
//
// Validation never touches the database. A failing record is skipped with a warning by
// the load coordinator (or fails the run in strict mode); a valid record may still fail
// later with a referential-integrity error if its owner does not exist.
type Validator struct{}

// NewValidator creates a new Validator instance.
func NewValidator() *Validator {
	return &Validator{}
}

func blank(s string) bool {
	return strings.TrimSpace(s) == ""
}

func blankPtr(s *string) bool {
	return s != nil && blank(*s)
}

// ValidatePerson requires the external person id.
func (v *Validator) ValidatePerson(p *Person) error {
	if blank(p.ExternalPersonID) {
		return fmt.Errorf("%w: external_person_id", ErrMissingNaturalKey)
	}

	return nil
}

// ValidateProfile requires the external profile id and the owning person id.
func (v *Validator) ValidateProfile(p *Profile) error {
	if blank(p.ExternalProfileID) {
		return fmt.Errorf("%w: external_profile_id", ErrMissingNaturalKey)
	}

	if blank(p.PersonKey) {
		return fmt.Errorf("%w: external_person_id", ErrMissingOwner)
	}

	return nil
}

// ValidateDimension requires a known kind and a non-blank name.
func (v *Validator) ValidateDimension(d *Dimension) error {
	if !d.Kind.IsValid() {
		return fmt.Errorf("%w: %q", ErrUnknownDimensionKind, d.Kind)
	}

	if blank(d.Name) {
		return fmt.Errorf("%w: %s", ErrEmptyDimensionName, d.Kind)
	}

	return nil
}

// ValidateTechnologyLink requires the profile and a non-blank technology name.
func (v *Validator) ValidateTechnologyLink(l *TechnologyLink) error {
	if blank(l.ProfileKey) {
		return fmt.Errorf("%w: external_profile_id", ErrMissingOwner)
	}

	if blank(l.Technology) {
		return fmt.Errorf("%w: technology", ErrEmptyDimensionName)
	}

	return nil
}

// ValidateLanguageLink requires the profile and a non-blank language name.
func (v *Validator) ValidateLanguageLink(l *LanguageLink) error {
	if blank(l.ProfileKey) {
		return fmt.Errorf("%w: external_profile_id", ErrMissingOwner)
	}

	if blank(l.Language) {
		return fmt.Errorf("%w: language", ErrEmptyDimensionName)
	}

	return nil
}

// ValidateSectionRef requires both parts of a section's natural key.
func (v *Validator) ValidateSectionRef(ref SectionRef) error {
	if blank(ref.ProfileKey) {
		return fmt.Errorf("%w: external_profile_id", ErrMissingOwner)
	}

	if blank(ref.SectionID) {
		return ErrMissingSectionID
	}

	return nil
}

// ValidatePeriod rejects impossible months. Years are taken as given.
func (v *Validator) ValidatePeriod(p Period) error {
	for _, m := range []*int{p.MonthFrom, p.MonthTo} {
		if m != nil && (*m < 1 || *m > 12) {
			return fmt.Errorf("%w: %d", ErrInvalidMonth, *m)
		}
	}

	return nil
}

// ValidateProjectExperience validates the section key, the period and any named dimensions.
// An explicitly supplied but blank industry or project type is a validation failure;
// an omitted one is fine.
func (v *Validator) ValidateProjectExperience(p *ProjectExperience) error {
	if err := v.ValidateSectionRef(p.SectionRef); err != nil {
		return err
	}

	if err := v.ValidatePeriod(p.Period); err != nil {
		return err
	}

	if blankPtr(p.Industry) {
		return fmt.Errorf("%w: industry", ErrEmptyDimensionName)
	}

	if blankPtr(p.ProjectType) {
		return fmt.Errorf("%w: project_type", ErrEmptyDimensionName)
	}

	if p.PercentAllocated != nil && (*p.PercentAllocated < minPercent || *p.PercentAllocated > maxPercent) {
		return fmt.Errorf("%w: percent_allocated=%d", ErrPercentOutOfRange, *p.PercentAllocated)
	}

	return nil
}

// ValidateWorkExperience validates the section key and the period.
func (v *Validator) ValidateWorkExperience(w *WorkExperience) error {
	if err := v.ValidateSectionRef(w.SectionRef); err != nil {
		return err
	}

	return v.ValidatePeriod(w.Period)
}

// ValidateCertification validates the section key and the issue/expiry months.
func (v *Validator) ValidateCertification(c *Certification) error {
	if err := v.ValidateSectionRef(c.SectionRef); err != nil {
		return err
	}

	return v.ValidatePeriod(Period{MonthFrom: c.Month, MonthTo: c.MonthExpire})
}

// ValidateCvRole requires the profile and a non-blank role name (its natural key).
func (v *Validator) ValidateCvRole(r *CvRole) error {
	if blank(r.ProfileKey) {
		return fmt.Errorf("%w: external_profile_id", ErrMissingOwner)
	}

	if blank(r.Name) {
		return fmt.Errorf("%w: name", ErrMissingNaturalKey)
	}

	return nil
}

func validatePersonRef(personKey string, ref *PersonRef) error {
	if !blank(personKey) {
		return nil
	}

	if ref != nil && (!blank(ref.Email) || !blank(ref.UPN)) {
		return nil
	}

	return fmt.Errorf("%w: external_person_id, email or upn", ErrMissingOwner)
}

// ValidateClearanceGrant requires an owner, a start date and a non-inverted interval.
// A blank clearance name is not an error: it is loaded as DefaultClearanceName.
func (v *Validator) ValidateClearanceGrant(g *ClearanceGrant) error {
	if err := validatePersonRef(g.PersonKey, g.Person); err != nil {
		return err
	}

	if g.ValidFrom.IsZero() {
		return fmt.Errorf("%w: valid_from", ErrMissingDate)
	}

	if g.ValidTo != nil && !g.ValidTo.IsZero() && g.ValidTo.Before(g.ValidFrom) {
		return fmt.Errorf("%w: %s < %s", ErrInvalidValidityInterval, g.ValidTo, g.ValidFrom)
	}

	return nil
}

// ValidateAvailability requires an owner and a date, and keeps percent within 0..100.
func (v *Validator) ValidateAvailability(a *Availability) error {
	if err := validatePersonRef(a.PersonKey, a.Person); err != nil {
		return err
	}

	if a.Date.IsZero() {
		return fmt.Errorf("%w: date", ErrMissingDate)
	}

	if a.Percent < minPercent || a.Percent > maxPercent {
		return fmt.Errorf("%w: %d", ErrPercentOutOfRange, a.Percent)
	}

	return nil
}

// RepairClearanceGrant fixes the grant defects exports are known to contain and returns one
// note per change. A missing valid_from becomes DefaultValidFrom and a valid_to earlier than
// valid_from is dropped, leaving the grant open.
func RepairClearanceGrant(g ClearanceGrant) (ClearanceGrant, []string) {
	var notes []string

	if g.ValidFrom.IsZero() {
		g.ValidFrom = DefaultValidFrom
		notes = append(notes, fmt.Sprintf("valid_from missing, defaulted to %s", DefaultValidFrom))
	}

	if g.ValidTo != nil && !g.ValidTo.IsZero() && g.ValidTo.Before(g.ValidFrom) {
		notes = append(notes, fmt.Sprintf("valid_to %s is before valid_from %s, cleared", *g.ValidTo, g.ValidFrom))
		g.ValidTo = nil
	}

	return g, notes
}

// RepairAvailability clamps percent into 0..100.
func RepairAvailability(a Availability) (Availability, []string) {
	clamped := min(max(a.Percent, minPercent), maxPercent)
	if clamped == a.Percent {
		return a, nil
	}

	note := fmt.Sprintf("percent %d clamped to %d", a.Percent, clamped)
	a.Percent = clamped

	return a, []string{note}
}
