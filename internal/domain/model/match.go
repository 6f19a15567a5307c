package model

import "time"

type MatchMode string
type MatchStatus string
type PlayerID string

const (
	ModeSolo MatchMode = "solo"
	ModeDuel MatchMode = "duel"

	StatusWaiting MatchStatus = "waiting"
	StatusPlaying MatchStatus = "playing"
	StatusOver    MatchStatus = "over"

	PlayerA PlayerID = "playerA"
	PlayerB PlayerID = "playerB"

	// WinnerDraw is stored in WinnerInfo.Winner when both players drop to zero HP together.
	WinnerDraw = "draw"

	MaxLogEntries = 20
)

// Opponent returns the other seat of a duel.
func (p PlayerID) Opponent() PlayerID {
	if p == PlayerA {
		return PlayerB
	}
	return PlayerA
}

func (p PlayerID) Valid() bool {
	return p == PlayerA || p == PlayerB
}

type Player struct {
	Name           string  `json:"name"`
	HP             float64 `json:"hp"`
	CurrentProblem int     `json:"current_problem"`
	Code           string  `json:"code"`
	IsSubmitting   bool    `json:"is_submitting"`
	UserID         string  `json:"user_id,omitempty"` // Owner of the seat, empty for anonymous play
}

// WinnerInfo is present exactly when the match is over. Duels fill Winner and
// WinnerName; solo games fill Won.
type WinnerInfo struct {
	Winner     string `json:"winner,omitempty"`
	WinnerName string `json:"winner_name,omitempty"`
	Reason     string `json:"reason"`
	Won        bool   `json:"won"`
}

// Match is the shared record of a solo game or a duel.
type Match struct {
	ID           string               `json:"id"`
	Mode         MatchMode            `json:"mode"`
	Status       MatchStatus          `json:"status"`
	Difficulty   ProblemDifficulty    `json:"difficulty,omitempty"`
	Players      map[PlayerID]*Player `json:"players"`
	Problems     []Problem            `json:"problems"`
	Logs         []string             `json:"logs"`
	LastTickTime *int64               `json:"last_tick_time,omitempty"` // Unix milliseconds
	WinnerInfo   *WinnerInfo          `json:"winner_info,omitempty"`
	CreatedAt    time.Time            `json:"created_at"`
}

// Player returns the player in seat id, or nil.
func (m *Match) Player(id PlayerID) *Player {
	if m == nil || m.Players == nil {
		return nil
	}
	return m.Players[id]
}

// SeatOf returns the seat owned by userID.
func (m *Match) SeatOf(userID string) (PlayerID, bool) {
	if m == nil || userID == "" {
		return "", false
	}
	for _, id := range []PlayerID{PlayerA, PlayerB} {
		if p := m.Players[id]; p != nil && p.UserID == userID {
			return id, true
		}
	}
	return "", false
}

// Clone returns a deep copy. Problems are shared because they are immutable.
func (m *Match) Clone() *Match {
	if m == nil {
		return nil
	}
	c := *m
	if m.Players != nil {
		c.Players = make(map[PlayerID]*Player, len(m.Players))
		for id, p := range m.Players {
			if p == nil {
				continue
			}
			cp := *p
			c.Players[id] = &cp
		}
	}
	c.Logs = append([]string(nil), m.Logs...)
	if m.LastTickTime != nil {
		t := *m.LastTickTime
		c.LastTickTime = &t
	}
	if m.WinnerInfo != nil {
		w := *m.WinnerInfo
		c.WinnerInfo = &w
	}
	return &c
}

// MatchResult is the archived outcome of a finished duel.
type MatchResult struct {
	MatchID      string    `json:"match_id"`
	Winner       string    `json:"winner"`
	Reason       string    `json:"reason"`
	PlayerAUser  *string   `json:"player_a_user_id,omitempty"`
	PlayerBUser  *string   `json:"player_b_user_id,omitempty"`
	PlayerAHP    float64   `json:"player_a_hp"`
	PlayerBHP    float64   `json:"player_b_hp"`
	ProblemCount int       `json:"problem_count"`
	FinishedAt   time.Time `json:"finished_at"`
}
