package model

import (
	"encoding/json"
	"time"
)

type ProblemDifficulty string

const (
	DifficultyEasy   ProblemDifficulty = "Easy"
	DifficultyMedium ProblemDifficulty = "Medium"
	DifficultyHard   ProblemDifficulty = "Hard"
)

// Valid reports whether d is one of the difficulties the generator accepts.
func (d ProblemDifficulty) Valid() bool {
	switch d {
	case DifficultyEasy, DifficultyMedium, DifficultyHard:
		return true
	}
	return false
}

// Problem is a generated challenge. It is never mutated once a match holds it.
type Problem struct {
	ID          string `json:"id"` // Function name the solution must define
	Description string `json:"description"`
	Tests       []Test `json:"tests"`
	Complexity  string `json:"complexity"` // Optimal time complexity, e.g. "O(n)"
	Template    string `json:"template"`   // Starter code shown to the player
}

type Test struct {
	Inputs   []json.RawMessage `json:"inputs"`
	Expected json.RawMessage   `json:"expected"`
}

// ArchivedProblem is a generated problem as stored in the problem archive.
type ArchivedProblem struct {
	Problem
	ArchiveID  string            `json:"archive_id"`
	MatchID    string            `json:"match_id"`
	Difficulty ProblemDifficulty `json:"difficulty"`
	Position   int               `json:"position"`
	CreatedAt  time.Time         `json:"created_at"`
}
