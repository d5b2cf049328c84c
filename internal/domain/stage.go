package domain

import (
	"fmt"
	"strings"
)

// Stage is a position in the ordered hiring sequence. Ordinal order is significant.
type Stage int

const (
	StageApplied Stage = iota
	StageResumeScreening
	StageRound1
	StageRound2
	StageFinalRound
	StageHRRound
	StageSelected
)

var stageNames = [...]string{
	StageApplied:         "Applied",
	StageResumeScreening: "Resume Screening",
	StageRound1:          "Round 1",
	StageRound2:          "Round 2",
	StageFinalRound:      "Final Round",
	StageHRRound:         "HR Round",
	StageSelected:        "Selected",
}

// Stages returns every stage in order, the terminal Selected stage included.
func Stages() []Stage {
	out := make([]Stage, 0, len(stageNames))
	for s := StageApplied; s <= StageSelected; s++ {
		out = append(out, s)
	}
	return out
}

// ReviewStages returns the stages at which candidates wait for a reviewer decision.
func ReviewStages() []Stage {
	return Stages()[:StageSelected]
}

func (s Stage) Valid() bool {
	return s >= StageApplied && s <= StageSelected
}

func (s Stage) Terminal() bool {
	return s == StageSelected
}

// Before reports whether s comes strictly earlier than o.
func (s Stage) Before(o Stage) bool {
	return s < o
}

func (s Stage) String() string {
	if !s.Valid() {
		return fmt.Sprintf("Stage(%d)", int(s))
	}
	return stageNames[s]
}

// Slug is the URL-safe form, e.g. "resume-screening".
func (s Stage) Slug() string {
	return strings.ReplaceAll(strings.ToLower(s.String()), " ", "-")
}

// ParseStage accepts display names and slugs, case-insensitively.
func ParseStage(in string) (Stage, error) {
	norm := strings.ToLower(strings.TrimSpace(in))
	norm = strings.NewReplacer("-", " ", "_", " ").Replace(norm)
	for s := StageApplied; s <= StageSelected; s++ {
		if strings.ToLower(stageNames[s]) == norm {
			return s, nil
		}
	}
	return 0, fmt.Errorf("unknown stage %q", in)
}

func (s Stage) MarshalText() ([]byte, error) {
	if !s.Valid() {
		return nil, fmt.Errorf("invalid stage %d", int(s))
	}
	return []byte(s.String()), nil
}

func (s *Stage) UnmarshalText(b []byte) error {
	parsed, err := ParseStage(string(b))
	if err != nil {
		return err
	}
	*s = parsed
	return nil
}

// RoundStatus is the outcome of the candidate's attempt at their current stage.
type RoundStatus string

const (
	RoundInProgress RoundStatus = "in_progress"
	RoundCleared    RoundStatus = "cleared"
	RoundRejected   RoundStatus = "rejected"
)

func (r RoundStatus) Valid() bool {
	switch r {
	case RoundInProgress, RoundCleared, RoundRejected:
		return true
	default:
		return false
	}
}

// Decided reports whether the stage attempt is closed to further decisions.
func (r RoundStatus) Decided() bool {
	return r == RoundCleared || r == RoundRejected
}

type Outcome string

const (
	OutcomeCleared  Outcome = "cleared"
	OutcomeRejected Outcome = "rejected"
)

func (o Outcome) Valid() bool {
	return o == OutcomeCleared || o == OutcomeRejected
}

// RoundStatus maps a decision outcome to the round status it records.
func (o Outcome) RoundStatus() RoundStatus {
	if o == OutcomeRejected {
		return RoundRejected
	}
	return RoundCleared
}

func ParseOutcome(in string) (Outcome, error) {
	o := Outcome(strings.ToLower(strings.TrimSpace(in)))
	if !o.Valid() {
		return "", fmt.Errorf("unknown outcome %q (want cleared or rejected)", in)
	}
	return o, nil
}
