package model

import "time"

type VerdictReason string

const (
	ReasonPassed      VerdictReason = "PASSED"
	ReasonWrongAnswer VerdictReason = "WRONG_ANSWER"
	ReasonError       VerdictReason = "ERROR"
	ReasonAPIError    VerdictReason = "API_ERROR" // Judge service unreachable or returned garbage
)

// JudgeResult is the verdict for one submission attempt.
type JudgeResult struct {
	Success bool          `json:"success"`
	Reason  VerdictReason `json:"reason"`
	Detail  string        `json:"detail,omitempty"`
}

// SubmissionTicket is the snapshot taken when a player starts a submission.
// The judge runs against this snapshot, never against the live record.
type SubmissionTicket struct {
	ID           string    `json:"id"`
	MatchID      string    `json:"match_id"`
	PlayerID     PlayerID  `json:"player_id"`
	ProblemIndex int       `json:"problem_index"`
	Problem      Problem   `json:"problem"`
	Code         string    `json:"code"`
	SubmittedAt  time.Time `json:"submitted_at"`
}
