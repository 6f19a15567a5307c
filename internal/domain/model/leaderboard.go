package model

type LeaderboardEntry struct {
	Rank     int    `json:"rank"`
	UserID   string `json:"user_id"`
	Username string `json:"username"`
	Wins     int    `json:"wins"`
	Draws    int    `json:"draws"`
	Played   int    `json:"played"`
}
