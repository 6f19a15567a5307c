package game

import (
	"fmt"
	"time"

	"leetclash/internal/common"
	"leetclash/internal/domain/model"
)

const (
	SoloPlayerName = "Solo Coder"
	PlayerAName    = "Player A"
	PlayerBName    = "Player B"
)

var (
	ErrNoProblems        = fmt.Errorf("a match needs at least one problem: %w", common.ErrBadRequest)
	ErrNotPlaying        = fmt.Errorf("match is not in progress: %w", common.ErrConflict)
	ErrUnknownPlayer     = fmt.Errorf("player is not part of this match: %w", common.ErrNotFound)
	ErrAlreadySubmitting = fmt.Errorf("a submission is already being judged: %w", common.ErrConflict)
	ErrNoProblemLeft     = fmt.Errorf("player has no problem left to solve: %w", common.ErrConflict)
)

func seatName(id model.PlayerID) string {
	if id == model.PlayerB {
		return PlayerBName
	}
	return PlayerAName
}

func newPlayer(name string, problems []model.Problem, userID string) *model.Player {
	return &model.Player{
		Name:           name,
		HP:             StartingHP,
		CurrentProblem: 0,
		Code:           problems[0].Template,
		UserID:         userID,
	}
}

// NewSolo starts a solo game. Solo games skip the waiting room and start the
// clock immediately.
func NewSolo(id string, problems []model.Problem, difficulty model.ProblemDifficulty, userID string, now time.Time) (*model.Match, error) {
	if len(problems) == 0 {
		return nil, ErrNoProblems
	}
	tick := now.UnixMilli()
	return &model.Match{
		ID:           id,
		Mode:         model.ModeSolo,
		Status:       model.StatusPlaying,
		Difficulty:   difficulty,
		Players:      map[model.PlayerID]*model.Player{model.PlayerA: newPlayer(SoloPlayerName, problems, userID)},
		Problems:     problems,
		Logs:         []string{fmt.Sprintf("Game started with %d problems. Good luck!", len(problems))},
		LastTickTime: &tick,
		CreatedAt:    now.UTC(),
	}, nil
}

// NewDuel builds the waiting record of a duel with only the creator seated.
func NewDuel(id string, problems []model.Problem, difficulty model.ProblemDifficulty, creatorUserID string, now time.Time) (*model.Match, error) {
	if len(problems) == 0 {
		return nil, ErrNoProblems
	}
	return &model.Match{
		ID:         id,
		Mode:       model.ModeDuel,
		Status:     model.StatusWaiting,
		Difficulty: difficulty,
		Players:    map[model.PlayerID]*model.Player{model.PlayerA: newPlayer(PlayerAName, problems, creatorUserID)},
		Problems:   problems,
		Logs:       []string{fmt.Sprintf("Game %s created. Waiting for opponent...", id)},
		CreatedAt:  now.UTC(),
	}, nil
}

// Joinable reports whether a second player may still take seat B.
func Joinable(m *model.Match) bool {
	return m != nil &&
		m.Mode == model.ModeDuel &&
		m.Status == model.StatusWaiting &&
		m.Player(model.PlayerA) != nil &&
		m.Player(model.PlayerB) == nil &&
		len(m.Problems) > 0
}

// Join seats player B and starts the clock. ok is false when the record is
// not joinable; the caller must not commit in that case.
func Join(m *model.Match, userID string, now time.Time) (next *model.Match, ok bool) {
	if !Joinable(m) {
		return nil, false
	}
	next = m.Clone()
	next.Players[model.PlayerB] = newPlayer(PlayerBName, next.Problems, userID)
	next.Status = model.StatusPlaying
	tick := now.UnixMilli()
	next.LastTickTime = &tick
	return AddLog(next, "Player B joined. The clash begins!"), true
}

// AddLog prepends message and keeps the newest MaxLogEntries lines.
func AddLog(m *model.Match, message string) *model.Match {
	next := m.Clone()
	keep := min(len(m.Logs), model.MaxLogEntries-1)
	logs := make([]string, 0, keep+1)
	logs = append(logs, message)
	logs = append(logs, m.Logs[:keep]...)
	next.Logs = logs
	return next
}

// SetCode replaces a player's editor contents. Unknown players leave the
// record untouched.
func SetCode(m *model.Match, id model.PlayerID, code string) *model.Match {
	if m.Player(id) == nil {
		return m
	}
	next := m.Clone()
	next.Players[id].Code = code
	return next
}
