package pipeline

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"talentline/internal/domain"
)

func candidate(id string, stage domain.Stage) domain.Candidate {
	return domain.Candidate{
		ApplicantID: id,
		Name:        "Priya " + id,
		Email:       id + "@example.com",
		JobTitle:    "Engineer",
		Department:  "engineering",
		Stage:       stage,
		RoundStatus: domain.RoundInProgress,
	}
}

func stagePtr(s domain.Stage) *domain.Stage { return &s }

func TestNextStagesStrictlyForward(t *testing.T) {
	assert.Equal(t, []domain.Stage{
		domain.StageRound2, domain.StageFinalRound, domain.StageHRRound, domain.StageSelected,
	}, NextStages(domain.StageRound1))
	assert.Empty(t, NextStages(domain.StageSelected))
}

func TestAdvanceRejectsSameOrEarlierStage(t *testing.T) {
	for _, from := range domain.ReviewStages() {
		for _, to := range domain.Stages() {
			c := candidate("a", from)
			_, err := Advance(c, to)
			if to <= from {
				assert.ErrorIs(t, err, ErrStageNotForward, "%s -> %s", from, to)
			} else {
				assert.NoError(t, err, "%s -> %s", from, to)
			}
		}
	}
}

func TestAdvanceResetsRound(t *testing.T) {
	c, err := Advance(candidate("a", domain.StageApplied), domain.StageRound1)
	require.NoError(t, err)
	assert.Equal(t, domain.StageRound1, c.Stage)
	assert.Equal(t, domain.RoundInProgress, c.RoundStatus)
}

func TestAdvanceRequiresOpenRound(t *testing.T) {
	c := candidate("a", domain.StageRound1)
	c.RoundStatus = domain.RoundCleared
	_, err := Advance(c, domain.StageRound2)
	assert.ErrorIs(t, err, ErrRoundDecided)
}

func TestRejectKeepsStage(t *testing.T) {
	c, err := Reject(candidate("a", domain.StageFinalRound))
	require.NoError(t, err)
	assert.Equal(t, domain.StageFinalRound, c.Stage)
	assert.Equal(t, domain.RoundRejected, c.RoundStatus)

	_, err = Reject(c)
	assert.ErrorIs(t, err, ErrRoundDecided)
	_, err = Reject(candidate("b", domain.StageSelected))
	assert.ErrorIs(t, err, ErrTerminalStage)
}

var errRoundAlreadyDecided = errors.New("409 round_decided")

// fakeRemote accepts one move per applicant, like the portal, and answers a
// repeated move with a conflict.
type fakeRemote struct {
	mu        sync.Mutex
	moveErr   error
	notifyErr error
	moves     []domain.MoveRequest
	notes     []domain.Notification
	decided   map[string]bool
	gate      chan struct{}
}

func (f *fakeRemote) Move(ctx context.Context, req domain.MoveRequest) error {
	if f.gate != nil {
		<-f.gate
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.moves = append(f.moves, req)
	if f.moveErr != nil {
		return f.moveErr
	}
	if f.decided[req.ApplicantID] {
		return errRoundAlreadyDecided
	}
	if f.decided == nil {
		f.decided = map[string]bool{}
	}
	f.decided[req.ApplicantID] = true
	return nil
}

func (f *fakeRemote) Notify(ctx context.Context, n domain.Notification) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.notes = append(f.notes, n)
	return f.notifyErr
}

type memLedger struct {
	mu   sync.Mutex
	recs []domain.DecisionRecord
}

func (l *memLedger) Record(ctx context.Context, rec domain.DecisionRecord) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.recs = append(l.recs, rec)
	return nil
}

func TestSendGatedOnTarget(t *testing.T) {
	r, err := NewReview(candidate("a", domain.StageRound1))
	require.NoError(t, err)
	assert.False(t, r.CanSend())

	require.NoError(t, r.Decide(domain.OutcomeCleared, nil))
	assert.False(t, r.CanSend())
	_, err = r.Send(context.Background(), &fakeRemote{})
	assert.ErrorIs(t, err, ErrDecisionIncomplete)

	require.NoError(t, r.ChooseTarget(domain.StageRound2))
	assert.True(t, r.CanSend())
}

func TestChooseTargetMustBeForward(t *testing.T) {
	r, err := NewReview(candidate("a", domain.StageRound2))
	require.NoError(t, err)
	require.NoError(t, r.Decide(domain.OutcomeCleared, nil))
	assert.ErrorIs(t, r.ChooseTarget(domain.StageRound1), ErrStageNotForward)
	assert.ErrorIs(t, r.Decide(domain.OutcomeCleared, stagePtr(domain.StageRound2)), ErrStageNotForward)
	assert.False(t, r.CanSend())
}

func TestRejectEnablesSendWithoutTarget(t *testing.T) {
	r, err := NewReview(candidate("a", domain.StageApplied))
	require.NoError(t, err)
	require.NoError(t, r.Decide(domain.OutcomeRejected, nil))
	assert.True(t, r.CanSend())
}

func TestSendCommitsBothCalls(t *testing.T) {
	remote := &fakeRemote{}
	ledger := &memLedger{}
	r, err := NewReview(candidate("a", domain.StageRound1), WithLedger(ledger))
	require.NoError(t, err)
	require.NoError(t, r.Decide(domain.OutcomeCleared, stagePtr(domain.StageFinalRound)))
	require.NoError(t, r.Compose("", "https://meet.example.com/x"))

	c, err := r.Send(context.Background(), remote)
	require.NoError(t, err)
	assert.Equal(t, domain.StageFinalRound, c.Stage)
	assert.True(t, r.MailSent())
	assert.False(t, r.CanSend())

	require.Len(t, remote.moves, 1)
	require.Len(t, remote.notes, 1)
	assert.Equal(t, domain.StageFinalRound, *remote.moves[0].TargetStage)
	assert.Contains(t, remote.notes[0].Message, "Final Round")
	assert.Equal(t, "a@example.com", remote.notes[0].Email)
	assert.Equal(t, "https://meet.example.com/x", remote.notes[0].Link)

	_, err = r.Send(context.Background(), remote)
	assert.ErrorIs(t, err, ErrAlreadySent)
	assert.Len(t, remote.moves, 1)

	require.Len(t, ledger.recs, 1)
	assert.True(t, ledger.recs[0].Committed())
}

func TestSendPartialFailureReopens(t *testing.T) {
	remote := &fakeRemote{notifyErr: errors.New("smtp down")}
	ledger := &memLedger{}
	c := candidate("a", domain.StageHRRound)
	r, err := NewReview(c, WithLedger(ledger))
	require.NoError(t, err)
	require.NoError(t, r.Decide(domain.OutcomeRejected, nil))

	got, err := r.Send(context.Background(), remote)
	var sendErr *SendError
	require.ErrorAs(t, err, &sendErr)
	assert.True(t, sendErr.Partial())
	assert.NoError(t, sendErr.Move)
	assert.Equal(t, c, got)
	assert.Equal(t, c, r.Candidate())
	assert.False(t, r.MailSent())
	assert.True(t, r.CanSend())

	require.Len(t, ledger.recs, 1)
	assert.True(t, ledger.recs[0].Partial())
	assert.Equal(t, "smtp down", ledger.recs[0].NotifyError)

	assert.ErrorIs(t, r.Decide(domain.OutcomeCleared, stagePtr(domain.StageSelected)), ErrDecisionCommitted)

	remote.notifyErr = nil
	got, err = r.Send(context.Background(), remote)
	require.NoError(t, err)
	assert.Equal(t, domain.RoundRejected, got.RoundStatus)
	assert.True(t, r.MailSent())
	assert.Len(t, remote.moves, 1, "the committed move must not be re-issued")
	assert.Len(t, remote.notes, 2)

	require.Len(t, ledger.recs, 2)
	assert.True(t, ledger.recs[1].Committed())
}

func TestSendRetriesOnlyTheFailedMove(t *testing.T) {
	remote := &fakeRemote{moveErr: errors.New("gateway timeout")}
	r, err := NewReview(candidate("a", domain.StageRound1))
	require.NoError(t, err)
	require.NoError(t, r.Decide(domain.OutcomeCleared, stagePtr(domain.StageRound2)))

	_, err = r.Send(context.Background(), remote)
	var sendErr *SendError
	require.ErrorAs(t, err, &sendErr)
	assert.True(t, sendErr.Partial())
	assert.False(t, sendErr.Moved())
	assert.ErrorIs(t, r.ChooseTarget(domain.StageFinalRound), ErrDecisionCommitted)

	remote.moveErr = nil
	got, err := r.Send(context.Background(), remote)
	require.NoError(t, err)
	assert.Equal(t, domain.StageRound2, got.Stage)
	assert.Len(t, remote.moves, 2)
	assert.Len(t, remote.notes, 1, "the candidate is notified once")
}

func TestSendBothFailIsNotPartial(t *testing.T) {
	remote := &fakeRemote{moveErr: errors.New("a"), notifyErr: errors.New("b")}
	r, err := NewReview(candidate("a", domain.StageApplied))
	require.NoError(t, err)
	require.NoError(t, r.Decide(domain.OutcomeRejected, nil))
	_, err = r.Send(context.Background(), remote)
	var sendErr *SendError
	require.ErrorAs(t, err, &sendErr)
	assert.False(t, sendErr.Partial())
	assert.Len(t, sendErr.Unwrap(), 2)
}

func TestSendInFlightGuard(t *testing.T) {
	remote := &fakeRemote{gate: make(chan struct{})}
	r, err := NewReview(candidate("a", domain.StageApplied))
	require.NoError(t, err)
	require.NoError(t, r.Decide(domain.OutcomeRejected, nil))

	done := make(chan error, 1)
	go func() {
		_, err := r.Send(context.Background(), remote)
		done <- err
	}()
	require.Eventually(t, func() bool { return !r.CanSend() }, time.Second, time.Millisecond)

	_, err = r.Send(context.Background(), remote)
	assert.ErrorIs(t, err, ErrSendInFlight)
	close(remote.gate)
	require.NoError(t, <-done)
	assert.Len(t, remote.moves, 1)
}

func TestTemplatesRender(t *testing.T) {
	c := candidate("a", domain.StageRound1)
	msg := Templates{domain.OutcomeRejected: "{{name}}/{{stage}}/{{job}}"}.Render(domain.OutcomeRejected, c, nil)
	assert.Equal(t, "Priya a/Round 1/Engineer", msg)

	msg = Templates(nil).Render(domain.OutcomeCleared, c, stagePtr(domain.StageHRRound))
	assert.Contains(t, msg, "HR Round")
}

type stubFetcher struct {
	calls atomic.Int32
	page  domain.CandidatePage
	err   error
}

func (s *stubFetcher) ListCandidates(ctx context.Context, department string, stage domain.Stage, page, pageSize int) (domain.CandidatePage, error) {
	s.calls.Add(1)
	return s.page, s.err
}

func TestBoardFiltersAndKeepsReviews(t *testing.T) {
	f := &stubFetcher{page: domain.CandidatePage{
		Items:      []domain.Candidate{candidate("a", domain.StageRound1), candidate("b", domain.StageRound1)},
		Pagination: domain.Pagination{Page: 1, PageSize: 10, TotalPages: 1, Total: 2},
	}}
	b := NewBoard(f, "engineering", domain.StageRound1, 0)
	require.NoError(t, b.Load(context.Background(), 1))
	assert.Len(t, b.Visible(), 2)
	assert.Equal(t, 2, b.Pagination().Total)

	b.SetFilter(Filter{Email: "B@EXAMPLE"})
	require.Len(t, b.Visible(), 1)
	assert.Equal(t, "b", b.Visible()[0].ApplicantID)

	r1, err := b.Review("a")
	require.NoError(t, err)
	r2, err := b.Review("a")
	require.NoError(t, err)
	assert.Same(t, r1, r2)

	_, err = b.Review("zzz")
	assert.Error(t, err)

	f.err = errors.New("offline")
	assert.Error(t, b.Load(context.Background(), 2))
	assert.Len(t, b.Visible(), 1)
}
