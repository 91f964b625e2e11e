package records

type (
	// EntityKind names one record batch in a LoadPlan and the table it lands in.
	EntityKind string

	// DimensionKind names one lookup table. Dimension names are resolved with get-or-create.
	DimensionKind string
)

// Entity kinds, one per target table.
const (
	KindPerson            EntityKind = "person"
	KindProfile           EntityKind = "profile"
	KindDimension         EntityKind = "dimension"
	KindTechnologyLink    EntityKind = "profile_technology"
	KindLanguageLink      EntityKind = "profile_language"
	KindProjectExperience EntityKind = "project_experience"
	KindWorkExperience    EntityKind = "work_experience"
	KindCertification     EntityKind = "certification"
	KindCourse            EntityKind = "course"
	KindEducation         EntityKind = "education"
	KindPosition          EntityKind = "position"
	KindBlogPublication   EntityKind = "blog_publication"
	KindKeyQualification  EntityKind = "key_qualification"
	KindCvRole            EntityKind = "cv_role"
	KindClearanceGrant    EntityKind = "person_clearance"
	KindAvailability      EntityKind = "person_availability"
)

// Dimension kinds.
const (
	DimensionTechnology  DimensionKind = "technology"
	DimensionLanguage    DimensionKind = "language"
	DimensionIndustry    DimensionKind = "industry"
	DimensionProjectType DimensionKind = "project_type"
	DimensionClearance   DimensionKind = "clearance"
)

// dependencyOrder is the topological order of the foreign-key graph:
// Person → Profile → Dimensions → {links, sections} → {validity-interval, snapshot}.
var dependencyOrder = []EntityKind{
	KindPerson,
	KindProfile,
	KindDimension,
	KindTechnologyLink,
	KindLanguageLink,
	KindProjectExperience,
	KindWorkExperience,
	KindCertification,
	KindCourse,
	KindEducation,
	KindPosition,
	KindBlogPublication,
	KindKeyQualification,
	KindCvRole,
	KindClearanceGrant,
	KindAvailability,
}

var dimensionKinds = []DimensionKind{
	DimensionTechnology,
	DimensionLanguage,
	DimensionIndustry,
	DimensionProjectType,
	DimensionClearance,
}

// DependencyOrder returns every entity kind in the order batches must be applied.
func DependencyOrder() []EntityKind {
	out := make([]EntityKind, len(dependencyOrder))
	copy(out, dependencyOrder)

	return out
}

// DimensionKinds returns every dimension kind.
func DimensionKinds() []DimensionKind {
	out := make([]DimensionKind, len(dimensionKinds))
	copy(out, dimensionKinds)

	return out
}

// String returns the kind name.
func (k EntityKind) String() string {
	return string(k)
}

// IsValid reports whether k is a known entity kind.
func (k EntityKind) IsValid() bool {
	for _, known := range dependencyOrder {
		if k == known {
			return true
		}
	}

	return false
}

// String returns the kind name.
func (k DimensionKind) String() string {
	return string(k)
}

// IsValid reports whether k is a known dimension kind.
func (k DimensionKind) IsValid() bool {
	for _, known := range dimensionKinds {
		if k == known {
			return true
		}
	}

	return false
}

// Table returns the lookup table backing the dimension kind.
func (k DimensionKind) Table() string {
	return "dim_" + string(k)
}
