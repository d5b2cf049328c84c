package wizard

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"

	"talentline/internal/domain"
)

type Status string

const (
	StatusEditing    Status = "editing"
	StatusSubmitting Status = "submitting"
	StatusSubmitted  Status = "submitted"
	StatusFailed     Status = "failed"
)

var (
	ErrSubmissionInFlight = errors.New("submission already in progress")
	ErrNotFinalStep       = errors.New("submit is only available on the final step")
	ErrStepInvalid        = errors.New("current step has validation errors")
)

// Submitter performs the single network call of a submission.
type Submitter interface {
	Submit(ctx context.Context, sub domain.Submission) (domain.Confirmation, error)
}

// DraftStore is an identity-keyed persistence slot with last-writer-wins semantics.
type DraftStore interface {
	Load(ctx context.Context, id string) (domain.ApplicationRecord, bool, error)
	Save(ctx context.Context, id string, rec domain.ApplicationRecord) error
	Clear(ctx context.Context, id string) error
}

type Identity struct {
	Name  string
	Email string
}

func (i Identity) key() string {
	return strings.ToLower(strings.TrimSpace(i.Email))
}

type Option func(*Wizard)

func WithDrafts(store DraftStore) Option {
	return func(w *Wizard) { w.drafts = store }
}

func WithIdentity(id Identity) Option {
	return func(w *Wizard) { w.identity = id }
}

func WithLogger(l *slog.Logger) Option {
	return func(w *Wizard) {
		if l != nil {
			w.log = l
		}
	}
}

// Wizard walks one applicant through the steps for a single job.
// It is safe for concurrent use.
type Wizard struct {
	mu       sync.Mutex
	job      domain.JobRef
	record   domain.ApplicationRecord
	step     domain.Step
	errors   Errors
	status   Status
	identity Identity

	submitter Submitter
	drafts    DraftStore
	log       *slog.Logger
}

// New creates a wizard at the first step. A stored draft for the identity is
// resumed; otherwise the record starts empty with identity fields filled in.
func New(ctx context.Context, job domain.JobRef, submitter Submitter, opts ...Option) (*Wizard, error) {
	if submitter == nil {
		return nil, errors.New("submitter is required")
	}
	w := &Wizard{
		job:       job,
		errors:    Errors{},
		status:    StatusEditing,
		submitter: submitter,
		log:       slog.Default(),
	}
	for _, opt := range opts {
		opt(w)
	}
	if w.drafts != nil && w.identity.key() != "" {
		rec, ok, err := w.drafts.Load(ctx, w.identity.key())
		if err != nil {
			return nil, fmt.Errorf("load draft: %w", err)
		}
		if ok {
			w.record = rec
			w.log.Info("draft resumed", "identity", w.identity.key(), "job", job.Title)
		}
	}
	w.fillIdentity()
	return w, nil
}

func (w *Wizard) Job() domain.JobRef { return w.job }

func (w *Wizard) Step() domain.Step {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.step
}

func (w *Wizard) Status() Status {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.status
}

// Errors returns a copy of the errors from the last validation attempt.
func (w *Wizard) Errors() Errors {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.errors.clone()
}

// Record returns a deep copy of the current record.
func (w *Wizard) Record() domain.ApplicationRecord {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.record.Clone()
}

// Edit sets a field by wire name, clears that field's error and autosaves.
func (w *Wizard) Edit(ctx context.Context, field, value string) error {
	return w.mutate(ctx, field, func(r *domain.ApplicationRecord) error {
		return r.Set(field, value)
	})
}

// Toggle flips one choice of a multi-select field.
func (w *Wizard) Toggle(ctx context.Context, field, value string) error {
	return w.mutate(ctx, field, func(r *domain.ApplicationRecord) error {
		_, err := r.Toggle(field, value)
		return err
	})
}

func (w *Wizard) SetAgree(ctx context.Context, agree bool) error {
	return w.mutate(ctx, domain.FieldAgree, func(r *domain.ApplicationRecord) error {
		r.Agree = agree
		return nil
	})
}

// Attach stores the resume or academics file. Attachments are not saved in drafts.
func (w *Wizard) Attach(ctx context.Context, field string, a domain.Attachment) error {
	return w.mutate(ctx, field, func(r *domain.ApplicationRecord) error {
		cp := a
		switch field {
		case domain.FieldResume:
			r.Resume = &cp
		case domain.FieldAcademics:
			r.Academics = &cp
		default:
			return fmt.Errorf("%w: %s is not an attachment", domain.ErrUnknownField, field)
		}
		return nil
	})
}

func (w *Wizard) mutate(ctx context.Context, field string, fn func(*domain.ApplicationRecord) error) error {
	w.mu.Lock()
	if w.status == StatusSubmitting {
		w.mu.Unlock()
		return ErrSubmissionInFlight
	}
	if err := fn(&w.record); err != nil {
		w.mu.Unlock()
		return err
	}
	delete(w.errors, field)
	if w.status != StatusEditing {
		w.status = StatusEditing
	}
	snapshot := w.record.Clone()
	key := w.identity.key()
	w.mu.Unlock()

	w.autosave(ctx, key, snapshot)
	return nil
}

func (w *Wizard) autosave(ctx context.Context, key string, rec domain.ApplicationRecord) {
	if w.drafts == nil || key == "" {
		return
	}
	if err := w.drafts.Save(ctx, key, rec); err != nil {
		w.log.Warn("draft save failed", "identity", key, "err", err)
	}
}

// Advance validates the current step and moves forward only when it is clean.
// It returns the errors that blocked the move, or an empty map.
func (w *Wizard) Advance() Errors {
	w.mu.Lock()
	defer w.mu.Unlock()
	errs := ValidateStep(w.step, w.record)
	if !errs.Empty() {
		w.errors = errs
		return errs.clone()
	}
	w.step = w.step.Next()
	w.errors = Errors{}
	return Errors{}
}

// Retreat moves back one step without validating.
func (w *Wizard) Retreat() {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.step = w.step.Prev()
	w.errors = Errors{}
}

// ApplyIdentity records the signed-in identity and fills name and email
// only where the record still has them empty.
func (w *Wizard) ApplyIdentity(id Identity) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.identity = id
	w.fillIdentity()
}

func (w *Wizard) fillIdentity() {
	if strings.TrimSpace(w.record.FullName) == "" && w.identity.Name != "" {
		w.record.FullName = w.identity.Name
	}
	if strings.TrimSpace(w.record.Email) == "" && w.identity.Email != "" {
		w.record.Email = w.identity.Email
	}
}

// Restart discards the record and the stored draft.
func (w *Wizard) Restart(ctx context.Context) error {
	w.mu.Lock()
	if w.status == StatusSubmitting {
		w.mu.Unlock()
		return ErrSubmissionInFlight
	}
	w.reset()
	w.status = StatusEditing
	key := w.identity.key()
	w.mu.Unlock()
	return w.clearDraft(ctx, key)
}

func (w *Wizard) reset() {
	w.record = domain.ApplicationRecord{}
	w.fillIdentity()
	w.step = domain.FirstStep
	w.errors = Errors{}
}

func (w *Wizard) clearDraft(ctx context.Context, key string) error {
	if w.drafts == nil || key == "" {
		return nil
	}
	if err := w.drafts.Clear(ctx, key); err != nil {
		return fmt.Errorf("clear draft: %w", err)
	}
	return nil
}

// Submit sends the record from the final step. While a submission is in
// flight further calls return ErrSubmissionInFlight without a network call.
// On failure the record and step are kept for a retry.
func (w *Wizard) Submit(ctx context.Context) (domain.Confirmation, error) {
	w.mu.Lock()
	if w.status == StatusSubmitting {
		w.mu.Unlock()
		return domain.Confirmation{}, ErrSubmissionInFlight
	}
	if w.step != domain.LastStep {
		w.mu.Unlock()
		return domain.Confirmation{}, ErrNotFinalStep
	}
	if errs := ValidateStep(w.step, w.record); !errs.Empty() {
		w.errors = errs
		w.mu.Unlock()
		return domain.Confirmation{}, ErrStepInvalid
	}
	sub, err := BuildSubmission(w.job, w.record)
	if err != nil {
		w.mu.Unlock()
		return domain.Confirmation{}, err
	}
	w.status = StatusSubmitting
	w.mu.Unlock()

	w.log.Info("submitting application", "job", w.job.Title, "department", w.job.Department)
	conf, err := w.submitter.Submit(ctx, sub)

	w.mu.Lock()
	if err != nil {
		w.status = StatusFailed
		w.mu.Unlock()
		w.log.Warn("application submit failed", "job", w.job.Title, "err", err)
		return domain.Confirmation{}, err
	}
	w.reset()
	w.status = StatusSubmitted
	key := w.identity.key()
	w.mu.Unlock()

	w.log.Info("application submitted", "job", w.job.Title, "applicant_id", conf.ApplicantID)
	if err := w.clearDraft(ctx, key); err != nil {
		w.log.Warn("draft clear failed", "identity", key, "err", err)
	}
	return conf, nil
}
