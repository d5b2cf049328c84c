package domain

import "fmt"

// Step indexes the fixed, ordered screens of the application wizard.
type Step int

const (
	StepPersonal Step = iota
	StepLocation
	StepEducation
	StepSkills
	StepExperience
	StepPreferences
	StepGeneral
	StepDocuments
	StepDeclaration
)

const (
	FirstStep = StepPersonal
	LastStep  = StepDeclaration
)

var stepNames = [...]string{
	StepPersonal:    "Personal",
	StepLocation:    "Location",
	StepEducation:   "Education",
	StepSkills:      "Skills",
	StepExperience:  "Experience",
	StepPreferences: "Preferences",
	StepGeneral:     "General",
	StepDocuments:   "Documents",
	StepDeclaration: "Declaration",
}

// Steps returns every step in traversal order.
func Steps() []Step {
	out := make([]Step, 0, len(stepNames))
	for s := FirstStep; s <= LastStep; s++ {
		out = append(out, s)
	}
	return out
}

func (s Step) Valid() bool {
	return s >= FirstStep && s <= LastStep
}

func (s Step) String() string {
	if !s.Valid() {
		return fmt.Sprintf("Step(%d)", int(s))
	}
	return stepNames[s]
}

// Next saturates at LastStep.
func (s Step) Next() Step {
	if s >= LastStep {
		return LastStep
	}
	return s + 1
}

// Prev floors at FirstStep.
func (s Step) Prev() Step {
	if s <= FirstStep {
		return FirstStep
	}
	return s - 1
}
