package portal

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"talentline/internal/domain"
)

func writeErr(w http.ResponseWriter, status int, code, msg string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(map[string]any{"error": map[string]any{"code": code, "message": msg}})
}

func TestSubmitSendsMultipart(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/v0/applications", r.URL.Path)
		require.NoError(t, r.ParseMultipartForm(1<<20))
		assert.JSONEq(t, `{"fullName":"A","jobTitle":"Engineer"}`, r.FormValue(PartData))

		f, hdr, err := r.FormFile(PartResume)
		require.NoError(t, err)
		data, _ := io.ReadAll(f)
		assert.Equal(t, "cv.pdf", hdr.Filename)
		assert.Equal(t, "%PDF", string(data))
		_, _, err = r.FormFile(PartAcademics)
		assert.ErrorIs(t, err, http.ErrMissingFile)
		assert.Empty(t, r.Header.Get("Authorization"))

		w.WriteHeader(http.StatusCreated)
		json.NewEncoder(w).Encode(map[string]any{"applicant_id": "app-9", "stage": "Applied", "submitted_at": time.Now()})
	}))
	defer srv.Close()

	c := New(srv.URL)
	conf, err := c.Submit(context.Background(), domain.Submission{
		Fields: json.RawMessage(`{"fullName":"A","jobTitle":"Engineer"}`),
		Resume: &domain.Attachment{Filename: "cv.pdf", ContentType: "application/pdf", Data: []byte("%PDF")},
	})
	require.NoError(t, err)
	assert.Equal(t, "app-9", conf.ApplicantID)
	assert.Equal(t, domain.StageApplied, conf.Stage)
}

func TestSubmitWithoutResumeIsRejectedLocally(t *testing.T) {
	c := New("http://127.0.0.1:1")
	_, err := c.Submit(context.Background(), domain.Submission{Fields: json.RawMessage(`{}`)})
	assert.Equal(t, CategoryBusiness, Classify(err))
	assert.Equal(t, "Please attach your resume.", UserMessage(err))
}

func TestBusinessErrorIsSpecific(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		writeErr(w, http.StatusConflict, "duplicate_application", "already applied")
	}))
	defer srv.Close()

	_, err := New(srv.URL).Submit(context.Background(), domain.Submission{
		Fields: json.RawMessage(`{}`),
		Resume: &domain.Attachment{Filename: "cv.pdf", Data: []byte("x")},
	})
	var apiErr *APIError
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, "duplicate_application", apiErr.Code)
	assert.Equal(t, CategoryBusiness, Classify(err))
	assert.Equal(t, "You have already applied for this job.", UserMessage(err))
}

func TestConnectivityError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	url := srv.URL
	srv.Close()

	err := New(url, WithToken("t")).Move(context.Background(), domain.MoveRequest{ApplicantID: "a", Outcome: domain.OutcomeRejected})
	var ce *ConnectivityError
	require.ErrorAs(t, err, &ce)
	assert.Equal(t, CategoryConnectivity, Classify(err))
	assert.Contains(t, UserMessage(err), "Check your connection")
}

func TestTimeoutIsConnectivity(t *testing.T) {
	release := make(chan struct{})
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		<-release
	}))
	defer srv.Close()
	defer close(release)

	c := New(srv.URL, WithToken("t"), WithTimeout(50*time.Millisecond))
	_, err := c.StageCounts(context.Background(), "engineering")
	var ce *ConnectivityError
	require.ErrorAs(t, err, &ce)
	assert.True(t, ce.Timeout())
}

func TestUnauthorizedClearsTokenAndFiresHook(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		assert.Equal(t, "Bearer stale", r.Header.Get("Authorization"))
		writeErr(w, http.StatusUnauthorized, "session_expired", "token expired")
	}))
	defer srv.Close()

	var hooked error
	c := New(srv.URL, WithToken("stale"), WithUnauthorizedHook(func(err error) { hooked = err }))
	_, err := c.ListCandidates(context.Background(), "engineering", domain.StageRound1, 1, 10)
	assert.ErrorIs(t, err, ErrUnauthorized)
	assert.Equal(t, CategoryAuth, Classify(err))
	assert.Empty(t, c.Token())
	require.Error(t, hooked)

	// no silent retry with the dropped credential
	_, err = c.ListCandidates(context.Background(), "engineering", domain.StageRound1, 1, 10)
	assert.ErrorIs(t, err, ErrUnauthorized)
	assert.EqualValues(t, 1, calls.Load())
}

func TestListCandidatesDecodesPage(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v0/departments/engineering/stages/resume-screening/candidates", r.URL.Path)
		assert.Equal(t, "2", r.URL.Query().Get("page"))
		assert.Equal(t, "5", r.URL.Query().Get("page_size"))
		io.WriteString(w, `{"items":[{"applicant_id":"a1","name":"N","email":"n@x.io","job_title":"Engineer","department":"engineering","stage":"Resume Screening","round_status":"in_progress","applied_at":"2026-03-01T10:00:00Z"}],
			"pagination":{"page":2,"page_size":5,"total_pages":3,"total":11}}`)
	}))
	defer srv.Close()

	page, err := New(srv.URL, WithToken("t")).ListCandidates(context.Background(), "engineering", domain.StageResumeScreening, 2, 5)
	require.NoError(t, err)
	require.Len(t, page.Items, 1)
	assert.Equal(t, domain.StageResumeScreening, page.Items[0].Stage)
	assert.Equal(t, domain.RoundInProgress, page.Items[0].RoundStatus)
	assert.Equal(t, 11, page.Pagination.Total)
}

func TestMoveAndNotifyBodies(t *testing.T) {
	bodies := map[string]map[string]any{}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var b map[string]any
		require.NoError(t, json.NewDecoder(r.Body).Decode(&b))
		bodies[r.URL.Path] = b
		w.WriteHeader(http.StatusNoContent)
	}))
	defer srv.Close()

	c := New(srv.URL, WithToken("t"))
	target := domain.StageHRRound
	require.NoError(t, c.Move(context.Background(), domain.MoveRequest{ApplicantID: "a1", TargetStage: &target, Outcome: domain.OutcomeCleared}))
	require.NoError(t, c.Notify(context.Background(), domain.Notification{Email: "n@x.io", Message: "hi", Outcome: domain.OutcomeCleared}))

	assert.Equal(t, map[string]any{"target_stage": "hr-round", "outcome": "cleared"}, bodies["/v0/candidates/a1/move"])
	assert.Equal(t, map[string]any{"email": "n@x.io", "message": "hi", "outcome": "cleared"}, bodies["/v0/notifications"])
}

type fakeSendErr struct{ partial, moved bool }

func (f fakeSendErr) Error() string { return "send failed" }
func (f fakeSendErr) Partial() bool { return f.partial }
func (f fakeSendErr) Moved() bool   { return f.moved }

func TestUserMessageForDecisionFailures(t *testing.T) {
	assert.Equal(t, "The decision was not sent. Please try again.", UserMessage(fakeSendErr{}))
	moved := UserMessage(fakeSendErr{partial: true, moved: true})
	assert.Contains(t, moved, "retry only the notification")
	assert.Contains(t, moved, "logged for follow-up")
	assert.Contains(t, UserMessage(fakeSendErr{partial: true}), "retry only the stage change")
	assert.Equal(t, "Something went wrong. Please try again.", UserMessage(errors.New("boom")))
	assert.Empty(t, UserMessage(nil))
}
