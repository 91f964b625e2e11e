package records

type (
	// Person is a master entity keyed by ExternalPersonID.
	//
	// Created on first sighting; supplied attributes are overwritten on every later
	// sighting of the same key. Omitted (nil) attributes keep their stored value.
	Person struct {
		ExternalPersonID string    `json:"external_person_id"`
		Name             Multilang `json:"name,omitempty"`
		Nationality      Multilang `json:"nationality,omitempty"`
		Email            *string   `json:"email,omitempty"`
		UPN              *string   `json:"upn,omitempty"`
		Phone            *string   `json:"phone,omitempty"`
		Landline         *string   `json:"landline,omitempty"`
		BirthYear        *int      `json:"birth_year,omitempty"`
		Department       *string   `json:"department,omitempty"`
		Country          *string   `json:"country,omitempty"`
		CreatedAt        *Date     `json:"created_at,omitempty"`
	}

	// Profile is a person's CV, keyed by ExternalProfileID and owned by exactly one Person.
	Profile struct {
		ExternalProfileID             string    `json:"external_profile_id"`
		PersonKey                     string    `json:"external_person_id"`
		Title                         Multilang `json:"title,omitempty"`
		YearsOfEducation              *int      `json:"years_of_education,omitempty"`
		YearsSinceFirstWorkExperience *int      `json:"years_since_first_work_experience,omitempty"`
		HasProfileImage               *bool     `json:"has_profile_image,omitempty"`
		OwnsReferenceProject          *bool     `json:"owns_reference_project,omitempty"`
		ReadPrivacyNotice             *bool     `json:"read_privacy_notice,omitempty"`
		LastUpdated                   *Date     `json:"last_updated,omitempty"`
		LastUpdatedByOwner            *Date     `json:"last_updated_by_owner,omitempty"`
		SFIALevel                     *int      `json:"sfia_level,omitempty"`
		CPDLevel                      *int      `json:"cpd_level,omitempty"`
		CPDBand                       *string   `json:"cpd_band,omitempty"`
		CPDLabel                      *string   `json:"cpd_label,omitempty"`
	}

	// Dimension is an explicit lookup entry. Dimensions referenced by links and sections
	// are created implicitly, so explicit records are only needed for unreferenced names.
	Dimension struct {
		Kind DimensionKind `json:"kind"`
		Name string        `json:"name"`
	}

	// TechnologyLink attaches a technology to a profile. Keyed by (profile, technology).
	TechnologyLink struct {
		ProfileKey           string   `json:"external_profile_id"`
		Technology           string   `json:"technology"`
		YearsExperience      *float64 `json:"years_experience,omitempty"`
		Proficiency          *int     `json:"proficiency,omitempty"`
		IsOfficialMasterdata *bool    `json:"is_official_masterdata,omitempty"`
	}

	// LanguageLink attaches a spoken language to a profile. Keyed by (profile, language).
	LanguageLink struct {
		ProfileKey           string  `json:"external_profile_id"`
		Language             string  `json:"language"`
		Level                *string `json:"level,omitempty"`
		Highlighted          *bool   `json:"highlighted,omitempty"`
		IsOfficialMasterdata *bool   `json:"is_official_masterdata,omitempty"`
		Updated              *Date   `json:"updated,omitempty"`
		UpdatedByOwner       *Date   `json:"updated_by_owner,omitempty"`
	}

	// SectionRef identifies one repeatable section entry: the owning profile and the
	// export's opaque section id, stable across re-exports of the same logical entry.
	SectionRef struct {
		ProfileKey string `json:"external_profile_id"`
		SectionID  string `json:"section_id"`
	}

	// Period is the month/year range shared by experience-like sections.
	Period struct {
		MonthFrom *int `json:"month_from,omitempty"`
		YearFrom  *int `json:"year_from,omitempty"`
		MonthTo   *int `json:"month_to,omitempty"`
		YearTo    *int `json:"year_to,omitempty"`
	}

	// ProjectExperience is one project a profile worked on.
	ProjectExperience struct {
		SectionRef
		Period
		Customer         *string   `json:"customer,omitempty"`
		Description      Multilang `json:"description,omitempty"`
		LongDescription  Multilang `json:"long_description,omitempty"`
		Industry         *string   `json:"industry,omitempty"`
		ProjectType      *string   `json:"project_type,omitempty"`
		PercentAllocated *int      `json:"percent_allocated,omitempty"`
		ExtentHours      *float64  `json:"extent_hours,omitempty"`
		ProjectArea      *string   `json:"project_area,omitempty"`
		Highlighted      *bool     `json:"highlighted,omitempty"`
	}

	// WorkExperience is one employment entry.
	WorkExperience struct {
		SectionRef
		Period
		Employer        *string   `json:"employer,omitempty"`
		Description     Multilang `json:"description,omitempty"`
		LongDescription Multilang `json:"long_description,omitempty"`
		Highlighted     *bool     `json:"highlighted,omitempty"`
	}

	// Certification is one certificate, with an optional expiry.
	Certification struct {
		SectionRef
		Name        *string `json:"name,omitempty"`
		Organiser   *string `json:"organiser,omitempty"`
		Month       *int    `json:"month,omitempty"`
		Year        *int    `json:"year,omitempty"`
		MonthExpire *int    `json:"month_expire,omitempty"`
		YearExpire  *int    `json:"year_expire,omitempty"`
	}

	// Course is one completed course.
	Course struct {
		SectionRef
		Name                 *string   `json:"name,omitempty"`
		Organiser            *string   `json:"organiser,omitempty"`
		LongDescription      Multilang `json:"long_description,omitempty"`
		Highlighted          *bool     `json:"highlighted,omitempty"`
		IsOfficialMasterdata *bool     `json:"is_official_masterdata,omitempty"`
	}

	// Education is one degree or place of study.
	Education struct {
		SectionRef
		PlaceOfStudy *string   `json:"place_of_study,omitempty"`
		Degree       *string   `json:"degree,omitempty"`
		Description  Multilang `json:"description,omitempty"`
		YearFrom     *int      `json:"year_from,omitempty"`
		YearTo       *int      `json:"year_to,omitempty"`
	}

	// Position is one role held within an organisation.
	Position struct {
		SectionRef
		Name        *string   `json:"name,omitempty"`
		Description Multilang `json:"description,omitempty"`
		YearFrom    *int      `json:"year_from,omitempty"`
		YearTo      *int      `json:"year_to,omitempty"`
	}

	// BlogPublication is one published article.
	BlogPublication struct {
		SectionRef
		Name        *string   `json:"name,omitempty"`
		Description Multilang `json:"description,omitempty"`
	}

	// KeyQualification is one summary paragraph of a profile.
	KeyQualification struct {
		SectionRef
		Label            *string   `json:"label,omitempty"`
		Summary          Multilang `json:"summary,omitempty"`
		ShortDescription Multilang `json:"short_description,omitempty"`
	}

	// CvRole is keyed by (profile, name) because the export carries no section id for it.
	CvRole struct {
		ProfileKey  string    `json:"external_profile_id"`
		Name        string    `json:"name"`
		Description Multilang `json:"description,omitempty"`
		Highlighted *bool     `json:"highlighted,omitempty"`
	}

	// PersonRef locates a person by contact details when a temporal row lacks the
	// external person id. Email is tried before UPN; both compare case-insensitively.
	PersonRef struct {
		Email string `json:"email,omitempty"`
		UPN   string `json:"upn,omitempty"`
	}

	// ClearanceGrant is a validity-interval record keyed by (person, clearance, valid_from).
	//
	// A different ValidFrom is a new grant. Closing a grant means sending the same key
	// again with ValidTo filled; the engine never closes a grant on its own.
	ClearanceGrant struct {
		PersonKey  string     `json:"external_person_id,omitempty"`
		Person     *PersonRef `json:"person,omitempty"`
		Clearance  string     `json:"clearance"`
		ValidFrom  Date       `json:"valid_from"`
		ValidTo    *Date      `json:"valid_to,omitempty"`
		VerifiedBy *string    `json:"verified_by,omitempty"`
		Notes      *string    `json:"notes,omitempty"`
	}

	// Availability is a daily snapshot keyed by (person, date). The latest write for a day wins.
	Availability struct {
		PersonKey string     `json:"external_person_id,omitempty"`
		Person    *PersonRef `json:"person,omitempty"`
		Date      Date       `json:"date"`
		Percent   int        `json:"percent"`
		Source    *string    `json:"source,omitempty"`
	}
)

// DefaultClearanceName is used when a grant arrives without a clearance name.
const DefaultClearanceName = "None"

// DefaultAvailabilitySource tags availability rows whose export did not name a source.
const DefaultAvailabilitySource = "export"

// Ptr returns a pointer to v. Handy for building records in code and tests.
func Ptr[T any](v T) *T {
	return &v
}
