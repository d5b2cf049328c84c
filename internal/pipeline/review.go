package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"talentline/internal/domain"
)

var (
	ErrDecisionIncomplete = errors.New("choose an outcome, and a target stage when clearing")
	ErrAlreadySent        = errors.New("notification already sent for this decision")
	ErrSendInFlight       = errors.New("send already in progress")
	ErrDecisionCommitted  = errors.New("part of this decision already went through; only the failed call can be retried")
)

// Remote is the portal surface a decision commits through.
type Remote interface {
	Move(ctx context.Context, req domain.MoveRequest) error
	Notify(ctx context.Context, n domain.Notification) error
}

// Ledger keeps the trail of decide-and-send attempts, partial ones included.
type Ledger interface {
	Record(ctx context.Context, rec domain.DecisionRecord) error
}

// SendError reports which of the two calls failed.
type SendError struct {
	Move   error
	Notify error
}

func (e *SendError) Error() string {
	var parts []string
	if e.Move != nil {
		parts = append(parts, "move: "+e.Move.Error())
	}
	if e.Notify != nil {
		parts = append(parts, "notify: "+e.Notify.Error())
	}
	return "decision not sent: " + strings.Join(parts, "; ")
}

func (e *SendError) Unwrap() []error {
	var out []error
	if e.Move != nil {
		out = append(out, e.Move)
	}
	if e.Notify != nil {
		out = append(out, e.Notify)
	}
	return out
}

// Partial reports that one call succeeded and the other failed, which leaves
// the remote side inconsistent until someone reconciles it.
func (e *SendError) Partial() bool {
	return (e.Move == nil) != (e.Notify == nil)
}

// Moved reports whether the stage move is committed remotely.
func (e *SendError) Moved() bool {
	return e.Move == nil
}

type reviewState int

const (
	reviewOpen reviewState = iota
	reviewSending
	reviewSent
)

type ReviewOption func(*Review)

func WithLedger(l Ledger) ReviewOption {
	return func(r *Review) { r.ledger = l }
}

func WithTemplates(t Templates) ReviewOption {
	return func(r *Review) { r.templates = t }
}

func WithLogger(l *slog.Logger) ReviewOption {
	return func(r *Review) {
		if l != nil {
			r.log = l
		}
	}
}

func WithClock(now func() time.Time) ReviewOption {
	return func(r *Review) { r.now = now }
}

// WithActor names the reviewer in ledger entries.
func WithActor(actor string) ReviewOption {
	return func(r *Review) { r.actor = actor }
}

// Review holds one reviewer decision for one candidate until it is sent.
// Deciding changes nothing remotely; Send issues the move and the
// notification together.
type Review struct {
	mu        sync.Mutex
	candidate domain.Candidate
	outcome   domain.Outcome
	target    *domain.Stage
	message   string
	link      string
	state     reviewState

	// halves committed by an earlier partial send; a retry skips them
	moved    bool
	notified bool

	templates Templates
	ledger    Ledger
	log       *slog.Logger
	now       func() time.Time
	actor     string
}

func NewReview(c domain.Candidate, opts ...ReviewOption) (*Review, error) {
	if err := Decidable(c); err != nil {
		return nil, err
	}
	r := &Review{
		candidate: c,
		log:       slog.Default(),
		now:       time.Now,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r, nil
}

// Decide records the outcome. A target is optional here and can be chosen
// later with ChooseTarget; rejecting discards any chosen target.
func (r *Review) Decide(outcome domain.Outcome, target *domain.Stage) error {
	if !outcome.Valid() {
		return fmt.Errorf("unknown outcome %q", outcome)
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.state != reviewOpen {
		return r.lockedErr()
	}
	if r.moved || r.notified {
		return ErrDecisionCommitted
	}
	if outcome == domain.OutcomeCleared && target != nil {
		if err := CanAdvance(r.candidate, *target); err != nil {
			return err
		}
		t := *target
		r.target = &t
	}
	if outcome == domain.OutcomeRejected {
		r.target = nil
	}
	r.outcome = outcome
	return nil
}

// ChooseTarget picks the stage to advance to from NextStages.
func (r *Review) ChooseTarget(target domain.Stage) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.state != reviewOpen {
		return r.lockedErr()
	}
	if r.moved || r.notified {
		return ErrDecisionCommitted
	}
	if err := CanAdvance(r.candidate, target); err != nil {
		return err
	}
	r.target = &target
	return nil
}

// Compose sets the notification body and optional link.
func (r *Review) Compose(message, link string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.state != reviewOpen {
		return r.lockedErr()
	}
	r.message = message
	r.link = strings.TrimSpace(link)
	return nil
}

func (r *Review) lockedErr() error {
	if r.state == reviewSent {
		return ErrAlreadySent
	}
	return ErrSendInFlight
}

// CanSend reports whether the send control is enabled.
func (r *Review) CanSend() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.state == reviewOpen && r.complete()
}

func (r *Review) complete() bool {
	switch r.outcome {
	case domain.OutcomeRejected:
		return true
	case domain.OutcomeCleared:
		return r.target != nil
	default:
		return false
	}
}

// MailSent reports whether the decision went through. It stays true.
func (r *Review) MailSent() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.state == reviewSent
}

func (r *Review) Candidate() domain.Candidate {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.candidate
}

func (r *Review) Outcome() domain.Outcome {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.outcome
}

func (r *Review) Target() (domain.Stage, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.target == nil {
		return 0, false
	}
	return *r.target, true
}

// Send issues the move and the notification concurrently. Both must succeed
// for the review to count as sent; otherwise it reopens and the returned
// *SendError says which call failed. A retry after a partial send issues only
// the call that failed, since the portal refuses a second move for the same
// round. On success the returned candidate reflects the new stage or the
// rejected round.
func (r *Review) Send(ctx context.Context, remote Remote) (domain.Candidate, error) {
	r.mu.Lock()
	if r.state != reviewOpen {
		err := r.lockedErr()
		r.mu.Unlock()
		return r.candidate, err
	}
	if !r.complete() {
		r.mu.Unlock()
		return r.candidate, ErrDecisionIncomplete
	}
	c := r.candidate
	outcome := r.outcome
	var target *domain.Stage
	if r.target != nil {
		t := *r.target
		target = &t
	}
	message := r.message
	if strings.TrimSpace(message) == "" {
		message = r.templates.Render(outcome, c, target)
	}
	move := domain.MoveRequest{ApplicantID: c.ApplicantID, TargetStage: target, Outcome: outcome}
	note := domain.Notification{
		ApplicantID: c.ApplicantID,
		Email:       c.Email,
		Message:     message,
		Link:        r.link,
		Outcome:     outcome,
	}
	skipMove, skipNotify := r.moved, r.notified
	r.state = reviewSending
	r.mu.Unlock()

	var moveErr, notifyErr error
	var g errgroup.Group
	if !skipMove {
		g.Go(func() error {
			moveErr = remote.Move(ctx, move)
			return moveErr
		})
	}
	if !skipNotify {
		g.Go(func() error {
			notifyErr = remote.Notify(ctx, note)
			return notifyErr
		})
	}
	waitErr := g.Wait()

	rec := domain.DecisionRecord{
		ID:          uuid.NewString(),
		ApplicantID: c.ApplicantID,
		Department:  c.Department,
		Email:       c.Email,
		FromStage:   c.Stage,
		TargetStage: target,
		Outcome:     outcome,
		Moved:       moveErr == nil,
		Notified:    notifyErr == nil,
		Actor:       r.actor,
		At:          r.now().UTC(),
	}
	if moveErr != nil {
		rec.MoveError = moveErr.Error()
	}
	if notifyErr != nil {
		rec.NotifyError = notifyErr.Error()
	}
	r.record(ctx, rec)

	r.mu.Lock()
	defer r.mu.Unlock()
	r.moved = moveErr == nil
	r.notified = notifyErr == nil
	if waitErr != nil {
		r.state = reviewOpen
		sendErr := &SendError{Move: moveErr, Notify: notifyErr}
		if sendErr.Partial() {
			r.log.Warn("decision partially committed", "applicant_id", c.ApplicantID,
				"moved", rec.Moved, "notified", rec.Notified, "err", sendErr)
		} else {
			r.log.Warn("decision send failed", "applicant_id", c.ApplicantID, "err", sendErr)
		}
		return c, sendErr
	}
	updated, err := ApplyDecision(c, outcome, target)
	if err != nil {
		// The remote already accepted the move; keep the last known view.
		updated = c
	}
	r.candidate = updated
	r.state = reviewSent
	r.log.Info("decision sent", "applicant_id", c.ApplicantID, "outcome", outcome, "stage", updated.Stage)
	return updated, nil
}

func (r *Review) record(ctx context.Context, rec domain.DecisionRecord) {
	if r.ledger == nil {
		return
	}
	if err := r.ledger.Record(ctx, rec); err != nil {
		r.log.Warn("decision ledger write failed", "applicant_id", rec.ApplicantID, "err", err)
	}
}
