package domain

import (
	"errors"
	"fmt"
	"sort"
	"strconv"
	"strings"
)

// Wire names of the application fields.
const (
	FieldFullName           = "fullName"
	FieldDOB                = "dob"
	FieldGender             = "gender"
	FieldMobile             = "mobile"
	FieldAltMobile          = "altMobile"
	FieldEmail              = "email"
	FieldCurrentCity        = "currentCity"
	FieldHomeTown           = "homeTown"
	FieldWillingToRelocate  = "willingToRelocate"
	FieldQualification      = "qualification"
	FieldCourse             = "course"
	FieldCollege            = "college"
	FieldAffiliatedUniv     = "affiliatedUniv"
	FieldGraduationYear     = "graduationYear"
	FieldMarks              = "marks"
	FieldAllSemCleared      = "allSemCleared"
	FieldTechSkills         = "techSkills"
	FieldOtherTechSkills    = "otherTechSkills"
	FieldHasInternship      = "hasInternship"
	FieldProjectDesc        = "projectDesc"
	FieldGithub             = "github"
	FieldLinkedin           = "linkedin"
	FieldPreferredRole      = "preferredRole"
	FieldPreferredLocations = "preferredLocations"
	FieldJoining            = "joining"
	FieldShifts             = "shifts"
	FieldExpectedCTC        = "expectedCTC"
	FieldSource             = "source"
	FieldOnlineTest         = "onlineTest"
	FieldLaptop             = "laptop"
	FieldLanguages          = "languages"
	FieldAadhar             = "aadhar"
	FieldPan                = "pan"
	FieldPassport           = "passport"
	FieldResume             = "resume"
	FieldAcademics          = "academics"
	FieldAgree              = "agree"
)

// OtherSkill is the techSkills choice that unlocks otherTechSkills.
const OtherSkill = "Others"

// Yes is the qualifying answer for yes/no controlling fields.
const Yes = "Yes"

var ErrUnknownField = errors.New("unknown field")

// Attachment is an uploaded file held in memory until submission.
type Attachment struct {
	Filename    string
	ContentType string
	Data        []byte
}

func (a *Attachment) Present() bool {
	return a != nil && a.Filename != "" && len(a.Data) > 0
}

// ApplicationRecord is the draft an applicant builds across the wizard steps.
// Attachments are excluded from JSON and YAML.
type ApplicationRecord struct {
	FullName  string `json:"fullName" yaml:"fullName"`
	DOB       string `json:"dob" yaml:"dob"`
	Gender    string `json:"gender" yaml:"gender"`
	Mobile    string `json:"mobile" yaml:"mobile"`
	AltMobile string `json:"altMobile" yaml:"altMobile"`
	Email     string `json:"email" yaml:"email"`

	CurrentCity       string `json:"currentCity" yaml:"currentCity"`
	HomeTown          string `json:"homeTown" yaml:"homeTown"`
	WillingToRelocate string `json:"willingToRelocate" yaml:"willingToRelocate"`

	Qualification  string `json:"qualification" yaml:"qualification"`
	Course         string `json:"course" yaml:"course"`
	College        string `json:"college" yaml:"college"`
	AffiliatedUniv string `json:"affiliatedUniv" yaml:"affiliatedUniv"`
	GraduationYear string `json:"graduationYear" yaml:"graduationYear"`
	Marks          string `json:"marks" yaml:"marks"`
	AllSemCleared  string `json:"allSemCleared" yaml:"allSemCleared"`

	TechSkills      Set    `json:"techSkills" yaml:"techSkills"`
	OtherTechSkills string `json:"otherTechSkills" yaml:"otherTechSkills"`

	HasInternship string `json:"hasInternship" yaml:"hasInternship"`
	ProjectDesc   string `json:"projectDesc" yaml:"projectDesc"`
	Github        string `json:"github" yaml:"github"`
	Linkedin      string `json:"linkedin" yaml:"linkedin"`

	PreferredRole      string `json:"preferredRole" yaml:"preferredRole"`
	PreferredLocations Set    `json:"preferredLocations" yaml:"preferredLocations"`
	Joining            string `json:"joining" yaml:"joining"`
	Shifts             string `json:"shifts" yaml:"shifts"`
	ExpectedCTC        string `json:"expectedCTC" yaml:"expectedCTC"`

	Source     string `json:"source" yaml:"source"`
	OnlineTest string `json:"onlineTest" yaml:"onlineTest"`
	Laptop     string `json:"laptop" yaml:"laptop"`
	Languages  Set    `json:"languages" yaml:"languages"`
	Aadhar     string `json:"aadhar" yaml:"aadhar"`
	Pan        string `json:"pan" yaml:"pan"`
	Passport   string `json:"passport" yaml:"passport"`

	Resume    *Attachment `json:"-" yaml:"-"`
	Academics *Attachment `json:"-" yaml:"-"`

	Agree bool `json:"agree" yaml:"agree"`
}

var textFields = map[string]func(*ApplicationRecord) *string{
	FieldFullName:          func(r *ApplicationRecord) *string { return &r.FullName },
	FieldDOB:               func(r *ApplicationRecord) *string { return &r.DOB },
	FieldGender:            func(r *ApplicationRecord) *string { return &r.Gender },
	FieldMobile:            func(r *ApplicationRecord) *string { return &r.Mobile },
	FieldAltMobile:         func(r *ApplicationRecord) *string { return &r.AltMobile },
	FieldEmail:             func(r *ApplicationRecord) *string { return &r.Email },
	FieldCurrentCity:       func(r *ApplicationRecord) *string { return &r.CurrentCity },
	FieldHomeTown:          func(r *ApplicationRecord) *string { return &r.HomeTown },
	FieldWillingToRelocate: func(r *ApplicationRecord) *string { return &r.WillingToRelocate },
	FieldQualification:     func(r *ApplicationRecord) *string { return &r.Qualification },
	FieldCourse:            func(r *ApplicationRecord) *string { return &r.Course },
	FieldCollege:           func(r *ApplicationRecord) *string { return &r.College },
	FieldAffiliatedUniv:    func(r *ApplicationRecord) *string { return &r.AffiliatedUniv },
	FieldGraduationYear:    func(r *ApplicationRecord) *string { return &r.GraduationYear },
	FieldMarks:             func(r *ApplicationRecord) *string { return &r.Marks },
	FieldAllSemCleared:     func(r *ApplicationRecord) *string { return &r.AllSemCleared },
	FieldOtherTechSkills:   func(r *ApplicationRecord) *string { return &r.OtherTechSkills },
	FieldHasInternship:     func(r *ApplicationRecord) *string { return &r.HasInternship },
	FieldProjectDesc:       func(r *ApplicationRecord) *string { return &r.ProjectDesc },
	FieldGithub:            func(r *ApplicationRecord) *string { return &r.Github },
	FieldLinkedin:          func(r *ApplicationRecord) *string { return &r.Linkedin },
	FieldPreferredRole:     func(r *ApplicationRecord) *string { return &r.PreferredRole },
	FieldJoining:           func(r *ApplicationRecord) *string { return &r.Joining },
	FieldShifts:            func(r *ApplicationRecord) *string { return &r.Shifts },
	FieldExpectedCTC:       func(r *ApplicationRecord) *string { return &r.ExpectedCTC },
	FieldSource:            func(r *ApplicationRecord) *string { return &r.Source },
	FieldOnlineTest:        func(r *ApplicationRecord) *string { return &r.OnlineTest },
	FieldLaptop:            func(r *ApplicationRecord) *string { return &r.Laptop },
	FieldAadhar:            func(r *ApplicationRecord) *string { return &r.Aadhar },
	FieldPan:               func(r *ApplicationRecord) *string { return &r.Pan },
	FieldPassport:          func(r *ApplicationRecord) *string { return &r.Passport },
}

var setFields = map[string]func(*ApplicationRecord) *Set{
	FieldTechSkills:         func(r *ApplicationRecord) *Set { return &r.TechSkills },
	FieldPreferredLocations: func(r *ApplicationRecord) *Set { return &r.PreferredLocations },
	FieldLanguages:          func(r *ApplicationRecord) *Set { return &r.Languages },
}

// IsSetField reports whether name is a multi-select field.
func IsSetField(name string) bool {
	_, ok := setFields[name]
	return ok
}

// FieldNames lists every editable field except attachments, sorted.
func FieldNames() []string {
	out := make([]string, 0, len(textFields)+len(setFields)+1)
	for k := range textFields {
		out = append(out, k)
	}
	for k := range setFields {
		out = append(out, k)
	}
	out = append(out, FieldAgree)
	sort.Strings(out)
	return out
}

// Set assigns a field by wire name. Set fields take a comma-separated list
// and replace the current selection; agree parses as a boolean.
func (r *ApplicationRecord) Set(field, value string) error {
	if get, ok := textFields[field]; ok {
		*get(r) = value
		return nil
	}
	if get, ok := setFields[field]; ok {
		var next Set
		for _, v := range strings.Split(value, ",") {
			next.Add(v)
		}
		*get(r) = next
		return nil
	}
	if field == FieldAgree {
		b, err := strconv.ParseBool(strings.TrimSpace(value))
		if err != nil {
			return fmt.Errorf("agree: %w", err)
		}
		r.Agree = b
		return nil
	}
	return fmt.Errorf("%w: %s", ErrUnknownField, field)
}

// Toggle flips one value in a set field and reports whether it is now selected.
func (r *ApplicationRecord) Toggle(field, value string) (bool, error) {
	get, ok := setFields[field]
	if !ok {
		return false, fmt.Errorf("%w: %s is not a multi-select field", ErrUnknownField, field)
	}
	return get(r).Toggle(value), nil
}

// Selection returns a copy of a set field's members.
func (r ApplicationRecord) Selection(field string) (Set, error) {
	get, ok := setFields[field]
	if !ok {
		return Set{}, fmt.Errorf("%w: %s is not a multi-select field", ErrUnknownField, field)
	}
	return get(&r).Clone(), nil
}

// Value reads a field by wire name. Set fields are joined with commas.
func (r *ApplicationRecord) Value(field string) (string, error) {
	if get, ok := textFields[field]; ok {
		return *get(r), nil
	}
	if get, ok := setFields[field]; ok {
		return strings.Join(get(r).Values(), ","), nil
	}
	switch field {
	case FieldAgree:
		return strconv.FormatBool(r.Agree), nil
	case FieldResume:
		if r.Resume.Present() {
			return r.Resume.Filename, nil
		}
		return "", nil
	case FieldAcademics:
		if r.Academics.Present() {
			return r.Academics.Filename, nil
		}
		return "", nil
	}
	return "", fmt.Errorf("%w: %s", ErrUnknownField, field)
}

// Clone deep-copies the record so set fields no longer share storage.
func (r ApplicationRecord) Clone() ApplicationRecord {
	out := r
	out.TechSkills = r.TechSkills.Clone()
	out.PreferredLocations = r.PreferredLocations.Clone()
	out.Languages = r.Languages.Clone()
	out.Resume = r.Resume.clone()
	out.Academics = r.Academics.clone()
	return out
}

func (a *Attachment) clone() *Attachment {
	if a == nil {
		return nil
	}
	cp := *a
	cp.Data = append([]byte(nil), a.Data...)
	return &cp
}

// Equal compares every non-attachment field.
func (r ApplicationRecord) Equal(o ApplicationRecord) bool {
	for _, get := range textFields {
		if *get(&r) != *get(&o) {
			return false
		}
	}
	for _, get := range setFields {
		if !get(&r).Equal(*get(&o)) {
			return false
		}
	}
	return r.Agree == o.Agree
}
