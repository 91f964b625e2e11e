package records

import (
	"encoding/json"
	"fmt"
	"io"
	"time"

	"github.com/google/uuid"
)

type (
	// LoadPlan is one load invocation's input: an ordered batch of records per entity kind.
	//
	// The plan is the boundary with the transform stage. Order inside each slice is the
	// export's original order and decides which duplicate wins (the last one).
	LoadPlan struct {
		Persons            []Person            `json:"persons,omitempty"`
		Profiles           []Profile           `json:"profiles,omitempty"`
		Dimensions         []Dimension         `json:"dimensions,omitempty"`
		TechnologyLinks    []TechnologyLink    `json:"technology_links,omitempty"`
		LanguageLinks      []LanguageLink      `json:"language_links,omitempty"`
		ProjectExperiences []ProjectExperience `json:"project_experiences,omitempty"`
		WorkExperiences    []WorkExperience    `json:"work_experiences,omitempty"`
		Certifications     []Certification     `json:"certifications,omitempty"`
		Courses            []Course            `json:"courses,omitempty"`
		Educations         []Education         `json:"educations,omitempty"`
		Positions          []Position          `json:"positions,omitempty"`
		BlogPublications   []BlogPublication   `json:"blog_publications,omitempty"`
		KeyQualifications  []KeyQualification  `json:"key_qualifications,omitempty"`
		CvRoles            []CvRole            `json:"cv_roles,omitempty"`
		ClearanceGrants    []ClearanceGrant    `json:"clearance_grants,omitempty"`
		Availability       []Availability      `json:"availability,omitempty"`
	}

	// TableCount is the outcome of one table's batch.
	TableCount struct {
		Inserted int `json:"inserted"`
		Updated  int `json:"updated"`
		Skipped  int `json:"skipped"`
	}

	// Warning records a non-fatal problem with a single record.
	Warning struct {
		Table   string `json:"table"`
		Key     string `json:"key"`
		Message string `json:"message"`
	}

	// LoadReport is returned by a successful load run.
	LoadReport struct {
		RunID         uuid.UUID              `json:"run_id"`
		StartedAt     time.Time              `json:"started_at"`
		CompletedAt   time.Time              `json:"completed_at"`
		Duration      time.Duration          `json:"duration_ns"`
		PlanChecksum  string                 `json:"plan_checksum,omitempty"`
		Tables        map[string]*TableCount `json:"tables"`
		Warnings      []Warning              `json:"warnings,omitempty"`
		ViewRefreshed bool                   `json:"view_refreshed"`
		ViewError     string                 `json:"view_error,omitempty"`
	}
)

// DecodePlan reads a JSON load plan. Unknown fields are rejected so that a renamed
// batch in the transform stage is caught instead of silently loading nothing.
func DecodePlan(r io.Reader) (*LoadPlan, error) {
	dec := json.NewDecoder(r)
	dec.DisallowUnknownFields()

	var plan LoadPlan
	if err := dec.Decode(&plan); err != nil {
		return nil, fmt.Errorf("failed to decode load plan: %w", err)
	}

	return &plan, nil
}

// Count returns the number of records supplied for kind.
func (p *LoadPlan) Count(kind EntityKind) int {
	if p == nil {
		return 0
	}

	switch kind {
	case KindPerson:
		return len(p.Persons)
	case KindProfile:
		return len(p.Profiles)
	case KindDimension:
		return len(p.Dimensions)
	case KindTechnologyLink:
		return len(p.TechnologyLinks)
	case KindLanguageLink:
		return len(p.LanguageLinks)
	case KindProjectExperience:
		return len(p.ProjectExperiences)
	case KindWorkExperience:
		return len(p.WorkExperiences)
	case KindCertification:
		return len(p.Certifications)
	case KindCourse:
		return len(p.Courses)
	case KindEducation:
		return len(p.Educations)
	case KindPosition:
		return len(p.Positions)
	case KindBlogPublication:
		return len(p.BlogPublications)
	case KindKeyQualification:
		return len(p.KeyQualifications)
	case KindCvRole:
		return len(p.CvRoles)
	case KindClearanceGrant:
		return len(p.ClearanceGrants)
	case KindAvailability:
		return len(p.Availability)
	default:
		return 0
	}
}

// Total returns the number of records across all kinds.
func (p *LoadPlan) Total() int {
	total := 0
	for _, kind := range dependencyOrder {
		total += p.Count(kind)
	}

	return total
}

// IsEmpty reports whether the plan carries no records at all.
func (p *LoadPlan) IsEmpty() bool {
	return p.Total() == 0
}

// NewLoadReport creates an empty report for a run starting now.
func NewLoadReport(runID uuid.UUID) *LoadReport {
	return &LoadReport{
		RunID:     runID,
		StartedAt: time.Now(),
		Tables:    make(map[string]*TableCount),
	}
}

// Table returns the counter for table, creating it on first use.
func (r *LoadReport) Table(table string) *TableCount {
	c, ok := r.Tables[table]
	if !ok {
		c = &TableCount{}
		r.Tables[table] = c
	}

	return c
}

// Warn appends a warning and counts the record as skipped.
func (r *LoadReport) Warn(table, key, message string) {
	r.Warnings = append(r.Warnings, Warning{Table: table, Key: key, Message: message})
	r.Table(table).Skipped++
}

// Note appends a warning for a record that was repaired and still loaded.
func (r *LoadReport) Note(table, key, message string) {
	r.Warnings = append(r.Warnings, Warning{Table: table, Key: key, Message: message})
}

// Totals sums inserted, updated and skipped rows across every table.
func (r *LoadReport) Totals() TableCount {
	var t TableCount

	for _, c := range r.Tables {
		t.Inserted += c.Inserted
		t.Updated += c.Updated
		t.Skipped += c.Skipped
	}

	return t
}
