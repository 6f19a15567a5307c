package game

import "leetclash/internal/domain/model"

// CheckGameOver settles a playing match whose outcome is decided. HP checks
// take priority over completion checks.
func CheckGameOver(m *model.Match) *model.Match {
	if m == nil || m.Status != model.StatusPlaying {
		return m
	}
	var info *model.WinnerInfo
	if m.Mode == model.ModeSolo {
		info = soloOutcome(m)
	} else {
		info = duelOutcome(m)
	}
	if info == nil {
		return m
	}
	next := m.Clone()
	next.Status = model.StatusOver
	next.WinnerInfo = info
	return next
}

func soloOutcome(m *model.Match) *model.WinnerInfo {
	p := m.Player(model.PlayerA)
	if p == nil {
		return nil
	}
	if p.HP <= 0 {
		return &model.WinnerInfo{Won: false, Reason: "You lost all your HP."}
	}
	if p.CurrentProblem >= len(m.Problems) {
		return &model.WinnerInfo{Won: true, Reason: "You solved all the problems!"}
	}
	return nil
}

func duelOutcome(m *model.Match) *model.WinnerInfo {
	a, b := m.Player(model.PlayerA), m.Player(model.PlayerB)
	aDead := a != nil && a.HP <= 0
	bDead := b != nil && b.HP <= 0
	aDone := a != nil && a.CurrentProblem >= len(m.Problems)
	bDone := b != nil && b.CurrentProblem >= len(m.Problems)

	switch {
	case aDead && bDead:
		return &model.WinnerInfo{Winner: model.WinnerDraw, WinnerName: "Draw", Reason: "Both players ran out of HP!"}
	case aDead:
		return winner(m, model.PlayerB, "Player A ran out of HP!")
	case bDead:
		return winner(m, model.PlayerA, "Player B ran out of HP!")
	case aDone:
		return winner(m, model.PlayerA, "Player A solved all problems!")
	case bDone:
		return winner(m, model.PlayerB, "Player B solved all problems!")
	}
	return nil
}

func winner(m *model.Match, id model.PlayerID, reason string) *model.WinnerInfo {
	name := seatName(id)
	if p := m.Player(id); p != nil && p.Name != "" {
		name = p.Name
	}
	return &model.WinnerInfo{Winner: string(id), WinnerName: name, Reason: reason, Won: true}
}
