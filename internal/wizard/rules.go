package wizard

import (
	"regexp"
	"sort"
	"strconv"
	"strings"

	"talentline/internal/domain"
)

// Errors maps a field's wire name to a message for the step that was validated.
type Errors map[string]string

func (e Errors) Empty() bool { return len(e) == 0 }

// Fields returns the failing field names, sorted.
func (e Errors) Fields() []string {
	out := make([]string, 0, len(e))
	for k := range e {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}

func (e Errors) clone() Errors {
	out := make(Errors, len(e))
	for k, v := range e {
		out[k] = v
	}
	return out
}

const (
	MsgMobile      = "Enter valid 10-digit number"
	MsgEmail       = "Enter a valid email address"
	MsgYear        = "Enter a valid year between 1950 and 2030"
	MsgMarks       = "Enter valid marks between 0 and 100, up to 2 decimals"
	MsgSkills      = "Select at least one technical skill"
	MsgProjectDesc = "Describe your internship or project"
	MsgLocations   = "Select at least one preferred location"
	MsgCTC         = "Enter a whole amount between 0 and 10000000"
	MsgAadhar      = "Enter valid 12-digit Aadhar number"
	MsgPan         = "Enter valid PAN (e.g. ABCDE1234F)"
	MsgPassport    = "Enter valid passport number (8-9 letters or digits)"
	MsgResume      = "Upload your resume"
	MsgAgree       = "You must accept the declaration"
)

const (
	// The floor is 1950, not 1050, so pre-1950 years such as 1899 are rejected.
	MinGraduationYear = 1950
	MaxGraduationYear = 2030
	MaxExpectedCTC    = 10_000_000
)

var (
	reTenDigits = regexp.MustCompile(`^\d{10}$`)
	reEmail     = regexp.MustCompile(`^[^\s@]+@[^\s@]+\.[^\s@]+$`)
	reYear      = regexp.MustCompile(`^\d{4}$`)
	reMarks     = regexp.MustCompile(`^\d{1,2}(\.\d{1,2})?$`)
	reInteger   = regexp.MustCompile(`^\d+$`)
	reAadhar    = regexp.MustCompile(`^\d{12}$`)
	rePan       = regexp.MustCompile(`^[A-Z]{5}[0-9]{4}[A-Z]$`)
	rePassport  = regexp.MustCompile(`^[A-Za-z0-9]{8,9}$`)
)

var labels = map[string]string{
	domain.FieldFullName:          "Full name",
	domain.FieldDOB:               "Date of birth",
	domain.FieldGender:            "Gender",
	domain.FieldMobile:            "Mobile number",
	domain.FieldEmail:             "Email",
	domain.FieldCurrentCity:       "Current city",
	domain.FieldHomeTown:          "Home town",
	domain.FieldWillingToRelocate: "Willingness to relocate",
	domain.FieldQualification:     "Qualification",
	domain.FieldCourse:            "Course",
	domain.FieldCollege:           "College",
	domain.FieldGraduationYear:    "Graduation year",
	domain.FieldMarks:             "Marks",
	domain.FieldAllSemCleared:     "All semesters cleared",
	domain.FieldHasInternship:     "Internship",
	domain.FieldPreferredRole:     "Preferred role",
	domain.FieldJoining:           "Joining availability",
	domain.FieldShifts:            "Shift preference",
	domain.FieldSource:            "Source",
	domain.FieldOnlineTest:        "Online test availability",
	domain.FieldLaptop:            "Laptop availability",
}

func requiredMsg(field string) string {
	if l, ok := labels[field]; ok {
		return l + " is required"
	}
	return field + " is required"
}

// check returns an empty string when the field passes.
type check func(r *domain.ApplicationRecord) string

type rule struct {
	field string
	check check
}

func text(get func(*domain.ApplicationRecord) string) func(*domain.ApplicationRecord) string {
	return func(r *domain.ApplicationRecord) string { return strings.TrimSpace(get(r)) }
}

// required fails on blank values, then applies the format checks in order.
func required(field string, get func(*domain.ApplicationRecord) string, formats ...func(string) string) rule {
	val := text(get)
	return rule{field: field, check: func(r *domain.ApplicationRecord) string {
		v := val(r)
		if v == "" {
			return requiredMsg(field)
		}
		for _, f := range formats {
			if msg := f(v); msg != "" {
				return msg
			}
		}
		return ""
	}}
}

// optional only applies its format checks when a value is present.
func optional(field string, get func(*domain.ApplicationRecord) string, formats ...func(string) string) rule {
	val := text(get)
	return rule{field: field, check: func(r *domain.ApplicationRecord) string {
		v := val(r)
		if v == "" {
			return ""
		}
		for _, f := range formats {
			if msg := f(v); msg != "" {
				return msg
			}
		}
		return ""
	}}
}

func matches(re *regexp.Regexp, msg string) func(string) string {
	return func(v string) string {
		if !re.MatchString(v) {
			return msg
		}
		return ""
	}
}

func within(lo, hi float64, msg string) func(string) string {
	return func(v string) string {
		n, err := strconv.ParseFloat(v, 64)
		if err != nil || n < lo || n > hi {
			return msg
		}
		return ""
	}
}

func nonEmptySet(field, msg string, get func(*domain.ApplicationRecord) domain.Set) rule {
	return rule{field: field, check: func(r *domain.ApplicationRecord) string {
		if get(r).Len() == 0 {
			return msg
		}
		return ""
	}}
}

// when gates a rule on a controlling condition.
func when(cond func(*domain.ApplicationRecord) bool, r rule) rule {
	inner := r.check
	r.check = func(rec *domain.ApplicationRecord) string {
		if !cond(rec) {
			return ""
		}
		return inner(rec)
	}
	return r
}

// InternshipDeclared reports whether projectDesc is in play.
func InternshipDeclared(r *domain.ApplicationRecord) bool {
	return strings.EqualFold(strings.TrimSpace(r.HasInternship), domain.Yes)
}

// OtherSkillsSelected reports whether otherTechSkills is in play.
func OtherSkillsSelected(r *domain.ApplicationRecord) bool {
	return r.TechSkills.Contains(domain.OtherSkill)
}

var steps = [...][]rule{
	domain.StepPersonal: {
		required(domain.FieldFullName, func(r *domain.ApplicationRecord) string { return r.FullName }),
		required(domain.FieldDOB, func(r *domain.ApplicationRecord) string { return r.DOB }),
		required(domain.FieldGender, func(r *domain.ApplicationRecord) string { return r.Gender }),
		required(domain.FieldMobile, func(r *domain.ApplicationRecord) string { return r.Mobile }, matches(reTenDigits, MsgMobile)),
		optional(domain.FieldAltMobile, func(r *domain.ApplicationRecord) string { return r.AltMobile }, matches(reTenDigits, MsgMobile)),
		required(domain.FieldEmail, func(r *domain.ApplicationRecord) string { return r.Email }, matches(reEmail, MsgEmail)),
	},
	domain.StepLocation: {
		required(domain.FieldCurrentCity, func(r *domain.ApplicationRecord) string { return r.CurrentCity }),
		required(domain.FieldHomeTown, func(r *domain.ApplicationRecord) string { return r.HomeTown }),
		required(domain.FieldWillingToRelocate, func(r *domain.ApplicationRecord) string { return r.WillingToRelocate }),
	},
	domain.StepEducation: {
		required(domain.FieldQualification, func(r *domain.ApplicationRecord) string { return r.Qualification }),
		required(domain.FieldCourse, func(r *domain.ApplicationRecord) string { return r.Course }),
		required(domain.FieldCollege, func(r *domain.ApplicationRecord) string { return r.College }),
		required(domain.FieldGraduationYear, func(r *domain.ApplicationRecord) string { return r.GraduationYear },
			matches(reYear, MsgYear), within(MinGraduationYear, MaxGraduationYear, MsgYear)),
		required(domain.FieldMarks, func(r *domain.ApplicationRecord) string { return r.Marks },
			matches(reMarks, MsgMarks), within(0, 101, MsgMarks)),
		required(domain.FieldAllSemCleared, func(r *domain.ApplicationRecord) string { return r.AllSemCleared }),
	},
	domain.StepSkills: {
		nonEmptySet(domain.FieldTechSkills, MsgSkills, func(r *domain.ApplicationRecord) domain.Set { return r.TechSkills }),
	},
	domain.StepExperience: {
		required(domain.FieldHasInternship, func(r *domain.ApplicationRecord) string { return r.HasInternship }),
		when(InternshipDeclared, rule{field: domain.FieldProjectDesc, check: func(r *domain.ApplicationRecord) string {
			if strings.TrimSpace(r.ProjectDesc) == "" {
				return MsgProjectDesc
			}
			return ""
		}}),
	},
	domain.StepPreferences: {
		required(domain.FieldPreferredRole, func(r *domain.ApplicationRecord) string { return r.PreferredRole }),
		nonEmptySet(domain.FieldPreferredLocations, MsgLocations, func(r *domain.ApplicationRecord) domain.Set { return r.PreferredLocations }),
		required(domain.FieldJoining, func(r *domain.ApplicationRecord) string { return r.Joining }),
		required(domain.FieldShifts, func(r *domain.ApplicationRecord) string { return r.Shifts }),
		optional(domain.FieldExpectedCTC, func(r *domain.ApplicationRecord) string { return r.ExpectedCTC },
			matches(reInteger, MsgCTC), within(0, MaxExpectedCTC, MsgCTC)),
	},
	domain.StepGeneral: {
		required(domain.FieldSource, func(r *domain.ApplicationRecord) string { return r.Source }),
		required(domain.FieldOnlineTest, func(r *domain.ApplicationRecord) string { return r.OnlineTest }),
		required(domain.FieldLaptop, func(r *domain.ApplicationRecord) string { return r.Laptop }),
		optional(domain.FieldAadhar, func(r *domain.ApplicationRecord) string { return r.Aadhar }, matches(reAadhar, MsgAadhar)),
		optional(domain.FieldPan, func(r *domain.ApplicationRecord) string { return r.Pan }, matches(rePan, MsgPan)),
		optional(domain.FieldPassport, func(r *domain.ApplicationRecord) string { return r.Passport }, matches(rePassport, MsgPassport)),
	},
	domain.StepDocuments: {
		{field: domain.FieldResume, check: func(r *domain.ApplicationRecord) string {
			if !r.Resume.Present() {
				return MsgResume
			}
			return ""
		}},
	},
	domain.StepDeclaration: {
		{field: domain.FieldAgree, check: func(r *domain.ApplicationRecord) string {
			if !r.Agree {
				return MsgAgree
			}
			return ""
		}},
	},
}

// ValidateStep checks only the fields owned by step. An invalid step yields no errors.
func ValidateStep(step domain.Step, r domain.ApplicationRecord) Errors {
	errs := Errors{}
	if !step.Valid() {
		return errs
	}
	for _, rl := range steps[step] {
		if msg := rl.check(&r); msg != "" {
			errs[rl.field] = msg
		}
	}
	return errs
}

// StepFields lists the fields validated on step, in display order.
func StepFields(step domain.Step) []string {
	if !step.Valid() {
		return nil
	}
	out := make([]string, 0, len(steps[step]))
	for _, rl := range steps[step] {
		out = append(out, rl.field)
	}
	return out
}

// FieldStep reports the step that owns a field. Unvalidated fields such as
// affiliatedUniv or otherTechSkills belong to the step that displays them.
func FieldStep(field string) (domain.Step, bool) {
	for _, s := range domain.Steps() {
		for _, f := range StepFields(s) {
			if f == field {
				return s, true
			}
		}
	}
	if s, ok := displayOnly[field]; ok {
		return s, true
	}
	return 0, false
}

var displayOnly = map[string]domain.Step{
	domain.FieldAffiliatedUniv:  domain.StepEducation,
	domain.FieldOtherTechSkills: domain.StepSkills,
	domain.FieldGithub:          domain.StepExperience,
	domain.FieldLinkedin:        domain.StepExperience,
	domain.FieldLanguages:       domain.StepGeneral,
	domain.FieldAcademics:       domain.StepDocuments,
}
