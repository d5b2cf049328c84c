package wizard

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"talentline/internal/domain"
	"talentline/internal/draft"
)

var job = domain.JobRef{Title: "Engineer", Type: "Full-time", Department: "engineering"}

func validRecord() domain.ApplicationRecord {
	return domain.ApplicationRecord{
		FullName:           "Asha Rao",
		DOB:                "2001-04-12",
		Gender:             "Female",
		Mobile:             "9876543210",
		Email:              "asha@example.com",
		CurrentCity:        "Bengaluru",
		HomeTown:           "Mysuru",
		WillingToRelocate:  "Yes",
		Qualification:      "B.E.",
		Course:             "Computer Science",
		College:            "RVCE",
		AffiliatedUniv:     "VTU",
		GraduationYear:     "2024",
		Marks:              "82.5",
		AllSemCleared:      "Yes",
		TechSkills:         domain.NewSet("Go", "SQL"),
		HasInternship:      "No",
		PreferredRole:      "Backend",
		PreferredLocations: domain.NewSet("Bengaluru"),
		Joining:            "Immediate",
		Shifts:             "Day",
		ExpectedCTC:        "600000",
		Source:             "LinkedIn",
		OnlineTest:         "Yes",
		Laptop:             "Yes",
		Languages:          domain.NewSet("English", "Kannada"),
		Resume:             &domain.Attachment{Filename: "cv.pdf", ContentType: "application/pdf", Data: []byte("%PDF-1.7")},
		Agree:              true,
	}
}

func TestValidRecordPassesEveryStep(t *testing.T) {
	rec := validRecord()
	for _, s := range domain.Steps() {
		assert.Empty(t, ValidateStep(s, rec), "step %s", s)
	}
}

// Clearing a required field yields exactly one error, keyed by that field.
func TestRemovingRequiredFieldAddsOneError(t *testing.T) {
	optional := map[string]bool{
		domain.FieldAltMobile: true, domain.FieldExpectedCTC: true,
		domain.FieldAadhar: true, domain.FieldPan: true, domain.FieldPassport: true,
		domain.FieldProjectDesc: true,
	}
	for _, s := range domain.Steps() {
		for _, field := range StepFields(s) {
			if optional[field] {
				continue
			}
			rec := validRecord()
			switch field {
			case domain.FieldAgree:
				rec.Agree = false
			case domain.FieldResume:
				rec.Resume = nil
			default:
				require.NoError(t, rec.Set(field, ""), field)
			}
			errs := ValidateStep(s, rec)
			assert.Len(t, errs, 1, "step %s field %s", s, field)
			assert.Contains(t, errs, field)
		}
	}
}

func TestStepsOnlyCheckOwnFields(t *testing.T) {
	rec := domain.ApplicationRecord{FullName: "A", DOB: "2000-01-01", Gender: "Male", Mobile: "9876543210", Email: "a@b.co"}
	assert.Empty(t, ValidateStep(domain.StepPersonal, rec))
	for field := range ValidateStep(domain.StepEducation, rec) {
		s, ok := FieldStep(field)
		require.True(t, ok)
		assert.Equal(t, domain.StepEducation, s)
	}
}

func TestFieldRules(t *testing.T) {
	cases := []struct {
		name  string
		step  domain.Step
		field string
		value string
		want  string
	}{
		{"short mobile", domain.StepPersonal, domain.FieldMobile, "12345", MsgMobile},
		{"ten digit mobile", domain.StepPersonal, domain.FieldMobile, "9876543210", ""},
		{"alt mobile optional", domain.StepPersonal, domain.FieldAltMobile, "", ""},
		{"alt mobile checked", domain.StepPersonal, domain.FieldAltMobile, "98765", MsgMobile},
		{"email shape", domain.StepPersonal, domain.FieldEmail, "asha@example", MsgEmail},
		{"year too early", domain.StepEducation, domain.FieldGraduationYear, "1899", MsgYear},
		{"year below floor", domain.StepEducation, domain.FieldGraduationYear, "1949", MsgYear},
		{"year at floor", domain.StepEducation, domain.FieldGraduationYear, "1950", ""},
		{"year ok", domain.StepEducation, domain.FieldGraduationYear, "2026", ""},
		{"year too late", domain.StepEducation, domain.FieldGraduationYear, "2031", MsgYear},
		{"year not four digits", domain.StepEducation, domain.FieldGraduationYear, "24", MsgYear},
		{"marks decimals", domain.StepEducation, domain.FieldMarks, "99.99", ""},
		{"marks three decimals", domain.StepEducation, domain.FieldMarks, "9.999", MsgMarks},
		{"marks three digits", domain.StepEducation, domain.FieldMarks, "100", MsgMarks},
		{"ctc optional", domain.StepPreferences, domain.FieldExpectedCTC, "", ""},
		{"ctc max", domain.StepPreferences, domain.FieldExpectedCTC, "10000000", ""},
		{"ctc over", domain.StepPreferences, domain.FieldExpectedCTC, "10000001", MsgCTC},
		{"ctc fractional", domain.StepPreferences, domain.FieldExpectedCTC, "5.5", MsgCTC},
		{"aadhar", domain.StepGeneral, domain.FieldAadhar, "1234 5678 9012", MsgAadhar},
		{"aadhar ok", domain.StepGeneral, domain.FieldAadhar, "123456789012", ""},
		{"pan ok", domain.StepGeneral, domain.FieldPan, "ABCDE1234F", ""},
		{"pan lower", domain.StepGeneral, domain.FieldPan, "abcde1234f", MsgPan},
		{"passport short", domain.StepGeneral, domain.FieldPassport, "A123456", MsgPassport},
		{"passport ok", domain.StepGeneral, domain.FieldPassport, "K1234567", ""},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			rec := validRecord()
			require.NoError(t, rec.Set(tc.field, tc.value))
			errs := ValidateStep(tc.step, rec)
			assert.Equal(t, tc.want, errs[tc.field])
		})
	}
}

func TestProjectDescDependsOnInternship(t *testing.T) {
	rec := validRecord()
	rec.HasInternship = "No"
	rec.ProjectDesc = ""
	assert.Empty(t, ValidateStep(domain.StepExperience, rec))

	rec.HasInternship = "Yes"
	errs := ValidateStep(domain.StepExperience, rec)
	assert.Equal(t, Errors{domain.FieldProjectDesc: MsgProjectDesc}, errs)
}

func TestOthersSkillDoesNotRequireText(t *testing.T) {
	rec := validRecord()
	rec.TechSkills = domain.NewSet(domain.OtherSkill)
	assert.Empty(t, ValidateStep(domain.StepSkills, rec))
}

func TestEncodeFieldsDropsHiddenDependents(t *testing.T) {
	rec := validRecord()
	rec.OtherTechSkills = "Haskell"
	rec.ProjectDesc = "old text"

	raw, err := EncodeFields(job, rec)
	require.NoError(t, err)
	var fields map[string]any
	require.NoError(t, json.Unmarshal(raw, &fields))
	assert.NotContains(t, fields, domain.FieldOtherTechSkills)
	assert.NotContains(t, fields, domain.FieldProjectDesc)
	assert.Equal(t, "Engineer", fields["jobTitle"])
	assert.NotContains(t, fields, "resume")

	rec.TechSkills.Add(domain.OtherSkill)
	rec.HasInternship = "Yes"
	raw, err = EncodeFields(job, rec)
	require.NoError(t, err)
	fields = map[string]any{}
	require.NoError(t, json.Unmarshal(raw, &fields))
	assert.Equal(t, "Haskell", fields[domain.FieldOtherTechSkills])
	assert.Equal(t, "old text", fields[domain.FieldProjectDesc])
}

func TestPayloadRoundTripsThroughDraft(t *testing.T) {
	ctx := context.Background()
	rec := validRecord()
	rec.HasInternship = "Yes"
	rec.ProjectDesc = "Built a scheduler"

	raw, err := EncodeFields(job, rec)
	require.NoError(t, err)
	gotJob, decoded, err := DecodeFields(raw)
	require.NoError(t, err)
	assert.Equal(t, job, gotJob)

	store := draft.NewMemory()
	require.NoError(t, store.Save(ctx, rec.Email, decoded))
	back, ok, err := store.Load(ctx, rec.Email)
	require.NoError(t, err)
	require.True(t, ok)
	assert.True(t, rec.Equal(back))
}

type fakeSubmitter struct {
	calls atomic.Int32
	gate  chan struct{}
	err   error
	mu    sync.Mutex
	last  domain.Submission
}

func (f *fakeSubmitter) Submit(ctx context.Context, sub domain.Submission) (domain.Confirmation, error) {
	f.calls.Add(1)
	if f.gate != nil {
		<-f.gate
	}
	f.mu.Lock()
	f.last = sub
	f.mu.Unlock()
	if f.err != nil {
		return domain.Confirmation{}, f.err
	}
	return domain.Confirmation{ApplicantID: "app-1", Stage: domain.StageApplied, SubmittedAt: time.Now()}, nil
}

// fill drives a wizard through every step with a valid record.
func fill(t *testing.T, w *Wizard) {
	t.Helper()
	ctx := context.Background()
	rec := validRecord()
	for _, name := range domain.FieldNames() {
		v, err := rec.Value(name)
		require.NoError(t, err)
		require.NoError(t, w.Edit(ctx, name, v))
	}
	require.NoError(t, w.Attach(ctx, domain.FieldResume, *rec.Resume))
	for w.Step() != domain.LastStep {
		require.Empty(t, w.Advance(), "step %s", w.Step())
	}
}

func TestAdvanceBlockedByErrors(t *testing.T) {
	w, err := New(context.Background(), job, &fakeSubmitter{})
	require.NoError(t, err)
	errs := w.Advance()
	assert.NotEmpty(t, errs)
	assert.Equal(t, domain.StepPersonal, w.Step())
	assert.Equal(t, errs, w.Errors())
}

func TestEditClearsFieldError(t *testing.T) {
	ctx := context.Background()
	w, err := New(ctx, job, &fakeSubmitter{})
	require.NoError(t, err)
	require.NoError(t, w.Edit(ctx, domain.FieldMobile, "123"))
	w.Advance()
	require.Contains(t, w.Errors(), domain.FieldMobile)
	require.Contains(t, w.Errors(), domain.FieldFullName)

	require.NoError(t, w.Edit(ctx, domain.FieldMobile, "1234"))
	assert.NotContains(t, w.Errors(), domain.FieldMobile)
	assert.Contains(t, w.Errors(), domain.FieldFullName)
}

func TestRetreatIgnoresValidity(t *testing.T) {
	ctx := context.Background()
	w, err := New(ctx, job, &fakeSubmitter{})
	require.NoError(t, err)
	fill(t, w)
	require.NoError(t, w.Edit(ctx, domain.FieldMobile, "bad"))
	w.Retreat()
	assert.Equal(t, domain.StepDocuments, w.Step())
	assert.Empty(t, w.Errors())

	for i := 0; i < 20; i++ {
		w.Retreat()
	}
	assert.Equal(t, domain.StepPersonal, w.Step())
}

func TestSubmitOnlyFromLastStep(t *testing.T) {
	sub := &fakeSubmitter{}
	w, err := New(context.Background(), job, sub)
	require.NoError(t, err)
	_, err = w.Submit(context.Background())
	assert.ErrorIs(t, err, ErrNotFinalStep)
	assert.Zero(t, sub.calls.Load())
}

func TestSubmitRevalidatesLastStep(t *testing.T) {
	ctx := context.Background()
	sub := &fakeSubmitter{}
	w, err := New(ctx, job, sub)
	require.NoError(t, err)
	fill(t, w)
	require.NoError(t, w.SetAgree(ctx, false))
	_, err = w.Submit(ctx)
	assert.ErrorIs(t, err, ErrStepInvalid)
	assert.Equal(t, MsgAgree, w.Errors()[domain.FieldAgree])
	assert.Zero(t, sub.calls.Load())
}

func TestSubmitTwiceSendsOnce(t *testing.T) {
	ctx := context.Background()
	sub := &fakeSubmitter{gate: make(chan struct{})}
	w, err := New(ctx, job, sub)
	require.NoError(t, err)
	fill(t, w)

	done := make(chan error, 1)
	go func() {
		_, err := w.Submit(ctx)
		done <- err
	}()
	require.Eventually(t, func() bool { return w.Status() == StatusSubmitting }, time.Second, time.Millisecond)

	_, err = w.Submit(ctx)
	assert.ErrorIs(t, err, ErrSubmissionInFlight)
	assert.ErrorIs(t, w.Edit(ctx, domain.FieldCourse, "x"), ErrSubmissionInFlight)

	close(sub.gate)
	require.NoError(t, <-done)
	assert.EqualValues(t, 1, sub.calls.Load())
	assert.Equal(t, StatusSubmitted, w.Status())
}

func TestSubmitSuccessResetsAndClearsDraft(t *testing.T) {
	ctx := context.Background()
	store := draft.NewMemory()
	id := Identity{Name: "Asha Rao", Email: "asha@example.com"}
	sub := &fakeSubmitter{}
	w, err := New(ctx, job, sub, WithDrafts(store), WithIdentity(id))
	require.NoError(t, err)
	fill(t, w)

	_, ok, err := store.Load(ctx, id.Email)
	require.NoError(t, err)
	require.True(t, ok)

	conf, err := w.Submit(ctx)
	require.NoError(t, err)
	assert.Equal(t, "app-1", conf.ApplicantID)
	assert.Equal(t, domain.StepPersonal, w.Step())

	rec := w.Record()
	assert.Equal(t, "Asha Rao", rec.FullName)
	assert.Equal(t, "asha@example.com", rec.Email)
	assert.Empty(t, rec.Mobile)
	assert.Nil(t, rec.Resume)

	_, ok, err = store.Load(ctx, id.Email)
	require.NoError(t, err)
	assert.False(t, ok)

	assert.True(t, sub.last.Resume.Present())
	assert.Nil(t, sub.last.Academics)
}

func TestSubmitFailureKeepsState(t *testing.T) {
	ctx := context.Background()
	sub := &fakeSubmitter{err: errors.New("connection refused")}
	w, err := New(ctx, job, sub)
	require.NoError(t, err)
	fill(t, w)
	before := w.Record()

	_, err = w.Submit(ctx)
	require.Error(t, err)
	assert.Equal(t, StatusFailed, w.Status())
	assert.Equal(t, domain.LastStep, w.Step())
	assert.True(t, before.Equal(w.Record()))
	assert.NotNil(t, w.Record().Resume)

	sub.err = nil
	_, err = w.Submit(ctx)
	require.NoError(t, err)
	assert.EqualValues(t, 2, sub.calls.Load())
}

func TestDraftResumedOnNew(t *testing.T) {
	ctx := context.Background()
	store := draft.NewMemory()
	id := Identity{Name: "Asha Rao", Email: "asha@example.com"}
	w, err := New(ctx, job, &fakeSubmitter{}, WithDrafts(store), WithIdentity(id))
	require.NoError(t, err)
	require.NoError(t, w.Edit(ctx, domain.FieldCurrentCity, "Chennai"))
	require.NoError(t, w.Toggle(ctx, domain.FieldLanguages, "Tamil"))

	again, err := New(ctx, job, &fakeSubmitter{}, WithDrafts(store), WithIdentity(id))
	require.NoError(t, err)
	rec := again.Record()
	assert.Equal(t, "Chennai", rec.CurrentCity)
	assert.True(t, rec.Languages.Contains("Tamil"))

	require.NoError(t, again.Restart(ctx))
	_, ok, err := store.Load(ctx, id.Email)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestIdentityFillsOnlyEmptyFields(t *testing.T) {
	ctx := context.Background()
	w, err := New(ctx, job, &fakeSubmitter{})
	require.NoError(t, err)
	w.ApplyIdentity(Identity{Name: "Asha", Email: "asha@example.com"})
	require.NoError(t, w.Edit(ctx, domain.FieldFullName, "Asha Rao"))

	w.ApplyIdentity(Identity{Name: "Asha", Email: "other@example.com"})
	rec := w.Record()
	assert.Equal(t, "Asha Rao", rec.FullName)
	assert.Equal(t, "asha@example.com", rec.Email)
}
