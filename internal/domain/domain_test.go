package domain

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"
)

func TestStepTraversalSaturates(t *testing.T) {
	assert.Equal(t, StepLocation, StepPersonal.Next())
	assert.Equal(t, LastStep, LastStep.Next())
	assert.Equal(t, FirstStep, FirstStep.Prev())
	assert.Len(t, Steps(), 9)
	assert.False(t, Step(9).Valid())
}

func TestParseStage(t *testing.T) {
	cases := map[string]Stage{
		"Applied":          StageApplied,
		"resume-screening": StageResumeScreening,
		"ROUND 1":          StageRound1,
		"final_round":      StageFinalRound,
		"hr-round":         StageHRRound,
		"selected":         StageSelected,
	}
	for in, want := range cases {
		got, err := ParseStage(in)
		require.NoError(t, err, in)
		assert.Equal(t, want, got, in)
	}
	_, err := ParseStage("Round 3")
	assert.Error(t, err)
}

func TestStageSlugRoundTrip(t *testing.T) {
	for _, s := range Stages() {
		got, err := ParseStage(s.Slug())
		require.NoError(t, err)
		assert.Equal(t, s, got)
	}
	assert.Equal(t, "resume-screening", StageResumeScreening.Slug())
	assert.Len(t, ReviewStages(), 6)
	assert.True(t, StageSelected.Terminal())
}

func TestStageJSON(t *testing.T) {
	c := Candidate{ApplicantID: "a1", Stage: StageRound2, RoundStatus: RoundInProgress}
	b, err := json.Marshal(c)
	require.NoError(t, err)
	assert.Contains(t, string(b), `"stage":"Round 2"`)

	var back Candidate
	require.NoError(t, json.Unmarshal(b, &back))
	assert.Equal(t, StageRound2, back.Stage)
}

func TestOutcome(t *testing.T) {
	o, err := ParseOutcome(" Rejected ")
	require.NoError(t, err)
	assert.Equal(t, OutcomeRejected, o)
	assert.Equal(t, RoundRejected, o.RoundStatus())
	assert.Equal(t, RoundCleared, OutcomeCleared.RoundStatus())
	_, err = ParseOutcome("maybe")
	assert.Error(t, err)
	assert.True(t, RoundCleared.Decided())
	assert.False(t, RoundInProgress.Decided())
}

func TestSetToggle(t *testing.T) {
	var s Set
	assert.Equal(t, []string{}, s.Values())
	assert.True(t, s.Toggle("Go"))
	assert.True(t, s.Toggle("Java"))
	assert.False(t, s.Toggle("Go"))
	assert.Equal(t, []string{"Java"}, s.Values())
	assert.False(t, s.Add("  "))
}

func TestSetCloneIsIndependent(t *testing.T) {
	a := NewSet("x", "y")
	b := a.Clone()
	b.Add("z")
	assert.Equal(t, 2, a.Len())
	assert.Equal(t, 3, b.Len())
	assert.False(t, a.Equal(b))
}

func TestSetEncoding(t *testing.T) {
	s := NewSet("b", "a")
	b, err := json.Marshal(s)
	require.NoError(t, err)
	assert.JSONEq(t, `["a","b"]`, string(b))

	var back Set
	require.NoError(t, json.Unmarshal(b, &back))
	assert.True(t, s.Equal(back))

	y, err := yaml.Marshal(map[string]Set{"langs": s})
	require.NoError(t, err)
	var ym map[string]Set
	require.NoError(t, yaml.Unmarshal(y, &ym))
	assert.True(t, s.Equal(ym["langs"]))
}

func TestRecordSetAndValue(t *testing.T) {
	var r ApplicationRecord
	require.NoError(t, r.Set(FieldFullName, "Asha Rao"))
	require.NoError(t, r.Set(FieldLanguages, "English, Hindi,,"))
	require.NoError(t, r.Set(FieldAgree, "true"))

	assert.Equal(t, "Asha Rao", r.FullName)
	assert.Equal(t, []string{"English", "Hindi"}, r.Languages.Values())
	assert.True(t, r.Agree)

	v, err := r.Value(FieldLanguages)
	require.NoError(t, err)
	assert.Equal(t, "English,Hindi", v)

	on, err := r.Toggle(FieldTechSkills, OtherSkill)
	require.NoError(t, err)
	assert.True(t, on)

	_, err = r.Toggle(FieldTechSkills, "C, C++")
	require.NoError(t, err)
	sel, err := r.Selection(FieldTechSkills)
	require.NoError(t, err)
	assert.Equal(t, []string{"C, C++", OtherSkill}, sel.Values())
	sel.Add("Go")
	assert.False(t, r.TechSkills.Contains("Go"))
	_, err = r.Selection(FieldEmail)
	assert.ErrorIs(t, err, ErrUnknownField)

	assert.ErrorIs(t, r.Set("nickname", "x"), ErrUnknownField)
	_, err = r.Toggle(FieldEmail, "x")
	assert.ErrorIs(t, err, ErrUnknownField)
	assert.Error(t, r.Set(FieldAgree, "sure"))
}

func TestRecordCloneAndEqual(t *testing.T) {
	r := ApplicationRecord{FullName: "A", TechSkills: NewSet("Go")}
	r.Resume = &Attachment{Filename: "cv.pdf", Data: []byte("pdf")}
	cp := r.Clone()
	assert.True(t, r.Equal(cp))

	cp.TechSkills.Add("Rust")
	cp.Resume.Data[0] = 'X'
	assert.False(t, r.Equal(cp))
	assert.Equal(t, "pdf", string(r.Resume.Data))
}

func TestRecordJSONOmitsAttachments(t *testing.T) {
	r := ApplicationRecord{Email: "a@b.co", Resume: &Attachment{Filename: "cv.pdf", Data: []byte{1}}}
	b, err := json.Marshal(r)
	require.NoError(t, err)
	assert.NotContains(t, string(b), "cv.pdf")
	assert.Contains(t, string(b), `"techSkills":[]`)
}
