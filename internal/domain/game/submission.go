package game

import (
	"fmt"
	"time"

	"leetclash/internal/domain/model"
)

// CheckSubmittable rejects submissions from absent players, players with a
// judgement already in flight, and matches that are not being played.
func CheckSubmittable(m *model.Match, id model.PlayerID) error {
	if m == nil || m.Status != model.StatusPlaying {
		return ErrNotPlaying
	}
	p := m.Player(id)
	if p == nil {
		return ErrUnknownPlayer
	}
	if p.IsSubmitting {
		return ErrAlreadySubmitting
	}
	if p.CurrentProblem >= len(m.Problems) {
		return ErrNoProblemLeft
	}
	return nil
}

// NewTicket snapshots the problem and code a submission will be judged on.
func NewTicket(m *model.Match, id model.PlayerID, ticketID string, now time.Time) (model.SubmissionTicket, error) {
	if err := CheckSubmittable(m, id); err != nil {
		return model.SubmissionTicket{}, err
	}
	p := m.Player(id)
	return model.SubmissionTicket{
		ID:           ticketID,
		MatchID:      m.ID,
		PlayerID:     id,
		ProblemIndex: p.CurrentProblem,
		Problem:      m.Problems[p.CurrentProblem],
		Code:         p.Code,
		SubmittedAt:  now.UTC(),
	}, nil
}

// MarkSubmitting raises the player's submission gate.
func MarkSubmitting(m *model.Match, id model.PlayerID) (*model.Match, error) {
	if err := CheckSubmittable(m, id); err != nil {
		return nil, err
	}
	next := m.Clone()
	next.Players[id].IsSubmitting = true
	return next, nil
}

// ResolveSubmission applies a verdict to the live record. The clock is charged
// for the judging time first, the gate is always lowered, and the outcome is
// settled last. ok is false when the record or the player is gone, in which
// case nothing must be committed.
func ResolveSubmission(m *model.Match, t model.SubmissionTicket, verdict model.JudgeResult, now time.Time) (next *model.Match, ok bool) {
	if m == nil || m.Player(t.PlayerID) == nil {
		return nil, false
	}
	next = ApplyDrain(m, now).Clone()
	p := next.Players[t.PlayerID]
	p.IsSubmitting = false

	// A finished match or a ticket for a problem the player already moved past
	// only releases the gate.
	if next.Status != model.StatusPlaying || t.ProblemIndex != p.CurrentProblem {
		return next, true
	}

	if verdict.Success {
		reward := HPReward(t.Problem.Complexity)
		p.HP += float64(reward)
		p.CurrentProblem++
		if p.CurrentProblem < len(next.Problems) {
			p.Code = next.Problems[p.CurrentProblem].Template
		}
		next = AddLog(next, successLine(next.Mode, p.Name, t.Problem.ID, reward))
	} else {
		next = AddLog(next, failureLine(next.Mode, p.Name, t.Problem.ID, verdict.Detail))
	}
	return CheckGameOver(next), true
}

func successLine(mode model.MatchMode, name, problemID string, reward int) string {
	if mode == model.ModeSolo {
		return fmt.Sprintf("✅ Solved %s (+%d HP)", problemID, reward)
	}
	return fmt.Sprintf("✅ %s solved %s (+%d HP)", name, problemID, reward)
}

func failureLine(mode model.MatchMode, name, problemID, detail string) string {
	if detail == "" {
		detail = "Wrong answer."
	}
	if mode == model.ModeSolo {
		return fmt.Sprintf("❌ Failed %s. %s", problemID, detail)
	}
	return fmt.Sprintf("❌ %s failed %s. %s", name, problemID, detail)
}
