package engine

import (
	"bytes"
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"net/mail"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"

	"talentline/internal/config"
	"talentline/internal/domain"
	"talentline/internal/events"
	"talentline/internal/metrics"
	"talentline/internal/pipeline"
	"talentline/internal/repo"
	"talentline/internal/storage"
	"talentline/internal/wizard"
)

var (
	ErrUnknownDepartment = errors.New("unknown department")
	ErrInvalidOutcome    = errors.New("outcome must be cleared or rejected")
)

// ValidationError carries per-field messages of a rejected application.
type ValidationError struct {
	Fields wizard.Errors
}

func (e *ValidationError) Error() string {
	fields := e.Fields.Fields()
	return fmt.Sprintf("application invalid: %s", strings.Join(fields, ", "))
}

// Engine applies portal operations to the store inside one transaction each,
// writing an event alongside every change.
type Engine struct {
	DB     *sql.DB
	Repo   repo.Repo
	Events events.Writer
	Blobs  storage.Store
	Config *config.Config
	Log    *slog.Logger
	Now    func() time.Time
}

func New(db *sql.DB, cfg *config.Config, blobs storage.Store) Engine {
	return Engine{
		DB:     db,
		Repo:   repo.Repo{DB: db},
		Events: events.Writer{DB: db},
		Blobs:  blobs,
		Config: cfg,
		Log:    slog.Default(),
		Now:    time.Now,
	}
}

func (e Engine) now() time.Time {
	if e.Now != nil {
		return e.Now()
	}
	return time.Now()
}

func (e Engine) log() *slog.Logger {
	if e.Log != nil {
		return e.Log
	}
	return slog.Default()
}

func (e Engine) checkDepartment(dept string) error {
	if e.Config == nil {
		return errors.New("config not loaded")
	}
	if !e.Config.HasDepartment(dept) {
		return fmt.Errorf("%w: %s", ErrUnknownDepartment, dept)
	}
	return nil
}

// SubmitOptions are the parts of one multipart application.
type SubmitOptions struct {
	Fields    []byte
	Resume    *domain.Attachment
	Academics *domain.Attachment
	ActorID   string
}

// SubmitApplication validates every wizard step again, stores the
// attachments and records the candidate at Applied.
func (e Engine) SubmitApplication(ctx context.Context, opts SubmitOptions) (domain.Confirmation, error) {
	job, rec, err := wizard.DecodeFields(opts.Fields)
	if err != nil {
		return domain.Confirmation{}, &ValidationError{Fields: wizard.Errors{"data": err.Error()}}
	}
	rec.Resume = opts.Resume
	rec.Academics = opts.Academics
	invalid := wizard.Errors{}
	for _, step := range domain.Steps() {
		for f, msg := range wizard.ValidateStep(step, rec) {
			invalid[f] = msg
		}
	}
	if strings.TrimSpace(job.Title) == "" {
		invalid["jobTitle"] = "Job title is required"
	}
	if !invalid.Empty() {
		return domain.Confirmation{}, &ValidationError{Fields: invalid}
	}
	if err := e.checkDepartment(job.Department); err != nil {
		return domain.Confirmation{}, err
	}
	exists, err := e.Repo.ApplicationExists(ctx, rec.Email, job.Title)
	if err != nil {
		return domain.Confirmation{}, err
	}
	if exists {
		return domain.Confirmation{}, fmt.Errorf("%w: %s already applied for %s", repo.ErrDuplicate, rec.Email, job.Title)
	}

	now := e.now().UTC()
	id := uuid.NewString()
	fields, err := wizard.EncodeFields(job, rec)
	if err != nil {
		return domain.Confirmation{}, err
	}
	app := domain.Application{
		Candidate: domain.Candidate{
			ApplicantID: id,
			Name:        rec.FullName,
			Email:       rec.Email,
			Gender:      rec.Gender,
			Mobile:      rec.Mobile,
			JobTitle:    job.Title,
			JobType:     job.Type,
			Department:  job.Department,
			Stage:       domain.StageApplied,
			RoundStatus: domain.RoundInProgress,
			AppliedAt:   now,
		},
		Fields:    fields,
		UpdatedAt: now,
	}

	var stored []string
	cleanup := func() {
		for _, key := range stored {
			if err := e.Blobs.Delete(context.WithoutCancel(ctx), key); err != nil {
				e.log().Warn("attachment cleanup failed", "key", key, "err", err)
			}
		}
	}
	put := func(part string, a *domain.Attachment) (string, error) {
		key := storage.Key(id, part, a.Filename)
		if err := e.Blobs.Put(ctx, key, bytes.NewReader(a.Data), int64(len(a.Data)), a.ContentType); err != nil {
			return "", fmt.Errorf("store %s: %w", part, err)
		}
		stored = append(stored, key)
		return key, nil
	}
	if app.ResumeKey, err = put(domain.FieldResume, rec.Resume); err != nil {
		cleanup()
		return domain.Confirmation{}, err
	}
	if rec.Academics.Present() {
		if app.AcademicsKey, err = put(domain.FieldAcademics, rec.Academics); err != nil {
			cleanup()
			return domain.Confirmation{}, err
		}
	}

	if err := e.insertApplication(ctx, app, opts.ActorID); err != nil {
		cleanup()
		return domain.Confirmation{}, err
	}
	metrics.ApplicationSubmitted(app.Department)
	e.log().Info("application submitted", "applicant", id, "department", app.Department, "job", app.JobTitle)
	return domain.Confirmation{ApplicantID: id, Stage: app.Stage, SubmittedAt: now}, nil
}

func (e Engine) insertApplication(ctx context.Context, app domain.Application, actorID string) error {
	if actorID == "" {
		actorID = app.Email
	}
	tx, err := e.DB.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()
	if err := e.Repo.InsertApplicationTx(ctx, tx, app); err != nil {
		return err
	}
	if err := e.Events.Append(ctx, tx, events.TypeApplicationSubmitted, app.Department, "application", app.ApplicantID, actorID, events.EventPayload{
		"job_title": app.JobTitle,
		"stage":     app.Stage.String(),
	}); err != nil {
		return err
	}
	return tx.Commit()
}

// MoveOptions describe a reviewer decision on one candidate.
type MoveOptions struct {
	ApplicantID string
	Outcome     domain.Outcome
	Target      *domain.Stage
	ActorID     string
}

// MoveCandidate applies a decision. Clearing moves the candidate strictly
// forward with a fresh in_progress round; rejecting keeps the stage.
func (e Engine) MoveCandidate(ctx context.Context, opts MoveOptions) (domain.Candidate, error) {
	if !opts.Outcome.Valid() {
		return domain.Candidate{}, fmt.Errorf("%w: %q", ErrInvalidOutcome, opts.Outcome)
	}
	if opts.Outcome == domain.OutcomeRejected {
		opts.Target = nil
	}
	tx, err := e.DB.BeginTx(ctx, nil)
	if err != nil {
		return domain.Candidate{}, err
	}
	defer tx.Rollback()

	app, err := e.Repo.GetApplicationTx(ctx, tx, opts.ApplicantID)
	if err != nil {
		return domain.Candidate{}, err
	}
	from := app.Candidate
	next, err := pipeline.ApplyDecision(from, opts.Outcome, opts.Target)
	if err != nil {
		return domain.Candidate{}, err
	}
	now := e.now().UTC()
	if err := e.Repo.UpdateStageTx(ctx, tx, from.ApplicantID, next.Stage, next.RoundStatus, now); err != nil {
		return domain.Candidate{}, err
	}
	if err := e.Repo.InsertStageMoveTx(ctx, tx, repo.StageMove{
		ApplicantID: from.ApplicantID,
		Department:  from.Department,
		Stage:       from.Stage,
		Outcome:     opts.Outcome,
		Target:      opts.Target,
		ActorID:     opts.ActorID,
		At:          now,
	}); err != nil {
		return domain.Candidate{}, err
	}
	evtType := events.TypeCandidateMoved
	payload := events.EventPayload{"from": from.Stage.String(), "outcome": string(opts.Outcome)}
	if opts.Outcome == domain.OutcomeRejected {
		evtType = events.TypeCandidateRejected
	} else {
		payload["to"] = next.Stage.String()
	}
	if err := e.Events.Append(ctx, tx, evtType, from.Department, "application", from.ApplicantID, opts.ActorID, payload); err != nil {
		return domain.Candidate{}, err
	}
	if err := tx.Commit(); err != nil {
		return domain.Candidate{}, err
	}
	metrics.CandidateMoved(from.Department, from.Stage, opts.Outcome)
	return next, nil
}

// NotifyOptions describe one outbound candidate message.
type NotifyOptions struct {
	Notification domain.Notification
	ActorID      string
}

// SendNotification queues a message in the outbox. Delivery happens elsewhere.
func (e Engine) SendNotification(ctx context.Context, opts NotifyOptions) (domain.StoredNotification, error) {
	n := opts.Notification
	n.Email = strings.TrimSpace(n.Email)
	if _, err := mail.ParseAddress(n.Email); err != nil || n.Email == "" {
		return domain.StoredNotification{}, &ValidationError{Fields: wizard.Errors{"email": wizard.MsgEmail}}
	}
	if strings.TrimSpace(n.Message) == "" {
		return domain.StoredNotification{}, &ValidationError{Fields: wizard.Errors{"message": "Message is required"}}
	}
	if !n.Outcome.Valid() {
		return domain.StoredNotification{}, fmt.Errorf("%w: %q", ErrInvalidOutcome, n.Outcome)
	}
	department := ""
	if n.ApplicantID != "" {
		app, err := e.Repo.GetApplication(ctx, n.ApplicantID)
		if err != nil {
			return domain.StoredNotification{}, err
		}
		department = app.Department
	}
	stored := domain.StoredNotification{
		Notification: n,
		ID:           uuid.NewString(),
		ActorID:      opts.ActorID,
		Status:       "queued",
		CreatedAt:    e.now().UTC(),
	}
	tx, err := e.DB.BeginTx(ctx, nil)
	if err != nil {
		return domain.StoredNotification{}, err
	}
	defer tx.Rollback()
	if err := e.Repo.InsertNotificationTx(ctx, tx, stored); err != nil {
		return domain.StoredNotification{}, err
	}
	if err := e.Events.Append(ctx, tx, events.TypeNotificationQueued, department, "notification", stored.ID, opts.ActorID, events.EventPayload{
		"applicant_id": n.ApplicantID,
		"outcome":      string(n.Outcome),
	}); err != nil {
		return domain.StoredNotification{}, err
	}
	if err := tx.Commit(); err != nil {
		return domain.StoredNotification{}, err
	}
	metrics.NotificationQueued(n.Outcome)
	return stored, nil
}

func (e Engine) ListCandidates(ctx context.Context, department string, stage domain.Stage, page, pageSize int) (domain.CandidatePage, error) {
	if err := e.checkDepartment(department); err != nil {
		return domain.CandidatePage{}, err
	}
	if !stage.Valid() {
		return domain.CandidatePage{}, fmt.Errorf("%w: %d", pipeline.ErrInvalidStage, int(stage))
	}
	if pageSize <= 0 {
		pageSize = e.Config.Pipeline.PageSize
	}
	if pageSize > 100 {
		pageSize = 100
	}
	return e.Repo.ListCandidates(ctx, department, stage, page, pageSize)
}

func (e Engine) GetCandidate(ctx context.Context, applicantID string) (domain.Application, error) {
	return e.Repo.GetApplication(ctx, applicantID)
}

func (e Engine) StageCounts(ctx context.Context, department string) ([]domain.StageCount, error) {
	if err := e.checkDepartment(department); err != nil {
		return nil, err
	}
	return e.Repo.StageCounts(ctx, department)
}

// History returns the stage moves of a candidate, oldest first.
func (e Engine) History(ctx context.Context, applicantID string) ([]repo.StageMove, error) {
	if _, err := e.Repo.GetApplication(ctx, applicantID); err != nil {
		return nil, err
	}
	return e.Repo.ListStageMoves(ctx, applicantID)
}

// Departments returns the configured departments, sorted.
func (e Engine) Departments() []string {
	out := append([]string(nil), e.Config.Pipeline.Departments...)
	sort.Strings(out)
	return out
}
