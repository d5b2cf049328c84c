package pipeline

import (
	"errors"
	"fmt"

	"talentline/internal/domain"
)

var (
	ErrInvalidStage    = errors.New("invalid stage")
	ErrStageNotForward = errors.New("target stage must be after the current stage")
	ErrTerminalStage   = errors.New("candidate is at a terminal stage")
	ErrRoundDecided    = errors.New("decision already recorded for this stage")
)

// forward lists, per stage, the stages a cleared candidate may be moved to.
var forward = buildForward()

func buildForward() map[domain.Stage][]domain.Stage {
	all := domain.Stages()
	out := make(map[domain.Stage][]domain.Stage, len(all))
	for i, s := range all {
		if s.Terminal() {
			out[s] = nil
			continue
		}
		out[s] = append([]domain.Stage(nil), all[i+1:]...)
	}
	return out
}

// NextStages returns the legal advance targets from s, nearest first.
func NextStages(s domain.Stage) []domain.Stage {
	return append([]domain.Stage(nil), forward[s]...)
}

func isForward(from, to domain.Stage) bool {
	for _, s := range forward[from] {
		if s == to {
			return true
		}
	}
	return false
}

// Decidable reports whether c can receive a reviewer decision right now.
func Decidable(c domain.Candidate) error {
	if !c.Stage.Valid() {
		return fmt.Errorf("%w: %d", ErrInvalidStage, int(c.Stage))
	}
	if c.Stage.Terminal() {
		return ErrTerminalStage
	}
	if c.RoundStatus.Decided() {
		return fmt.Errorf("%w: %s is %s", ErrRoundDecided, c.Stage, c.RoundStatus)
	}
	return nil
}

// CanAdvance checks a move of c to target.
func CanAdvance(c domain.Candidate, target domain.Stage) error {
	if err := Decidable(c); err != nil {
		return err
	}
	if !target.Valid() {
		return fmt.Errorf("%w: %d", ErrInvalidStage, int(target))
	}
	if !isForward(c.Stage, target) {
		return fmt.Errorf("%w: %s -> %s", ErrStageNotForward, c.Stage, target)
	}
	return nil
}

// Advance returns c as it looks after a successful move: at target with a
// fresh in_progress round.
func Advance(c domain.Candidate, target domain.Stage) (domain.Candidate, error) {
	if err := CanAdvance(c, target); err != nil {
		return c, err
	}
	c.Stage = target
	c.RoundStatus = domain.RoundInProgress
	return c, nil
}

// Reject marks the current round rejected; the stage does not change.
func Reject(c domain.Candidate) (domain.Candidate, error) {
	if err := Decidable(c); err != nil {
		return c, err
	}
	c.RoundStatus = domain.RoundRejected
	return c, nil
}

// ApplyDecision dispatches a decision outcome to Advance or Reject.
func ApplyDecision(c domain.Candidate, outcome domain.Outcome, target *domain.Stage) (domain.Candidate, error) {
	switch outcome {
	case domain.OutcomeRejected:
		return Reject(c)
	case domain.OutcomeCleared:
		if target == nil {
			return c, ErrDecisionIncomplete
		}
		return Advance(c, *target)
	default:
		return c, fmt.Errorf("unknown outcome %q", outcome)
	}
}
