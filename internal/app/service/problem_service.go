package service

import (
	"context"
	"fmt"
	"log"

	"leetclash/internal/app/generator"
	"leetclash/internal/common"
	"leetclash/internal/domain/model"
	"leetclash/internal/domain/repository"
)

const (
	defaultListLimit = 20
	maxListLimit     = 100
)

// ProblemCountPresets are the set sizes offered in the lobby.
var ProblemCountPresets = []int{3, 5, 7}

type ProblemService struct {
	gen         generator.Generator
	problemRepo repository.ProblemRepository
}

func NewProblemService(gen generator.Generator, problemRepo repository.ProblemRepository) *ProblemService {
	return &ProblemService{gen: gen, problemRepo: problemRepo}
}

// ProblemSetRequest asks for either Count random problems or one problem per
// idea.
type ProblemSetRequest struct {
	Count      int                     `json:"count"`
	Difficulty model.ProblemDifficulty `json:"difficulty"`
	Ideas      []string                `json:"ideas,omitempty"`
}

func (r ProblemSetRequest) Validate() error {
	if !r.Difficulty.Valid() {
		return fmt.Errorf("difficulty must be Easy, Medium or Hard: %w", common.ErrValidation)
	}
	if len(r.Ideas) > 0 {
		return nil
	}
	for _, n := range ProblemCountPresets {
		if r.Count == n {
			return nil
		}
	}
	return fmt.Errorf("count must be one of %v: %w", ProblemCountPresets, common.ErrValidation)
}

// Generate produces a validated problem set. Nothing is returned unless every
// problem is usable.
func (s *ProblemService) Generate(ctx context.Context, req ProblemSetRequest) ([]model.Problem, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}
	if len(req.Ideas) > 0 {
		return s.gen.GenerateFromIdeas(ctx, req.Ideas, req.Difficulty)
	}
	return s.gen.Generate(ctx, req.Count, req.Difficulty)
}

// Archive stores a set that a match started with. Failures are logged only;
// the match does not depend on the archive.
func (s *ProblemService) Archive(ctx context.Context, matchID string, difficulty model.ProblemDifficulty, problems []model.Problem) {
	if s.problemRepo == nil {
		return
	}
	if err := s.problemRepo.SaveProblemSet(ctx, matchID, difficulty, problems); err != nil {
		log.Printf("ERROR: Failed to archive problems of match %s: %v", matchID, err)
	}
}

func (s *ProblemService) ListRecent(ctx context.Context, limit int, difficulty model.ProblemDifficulty) ([]model.ArchivedProblem, error) {
	if difficulty != "" && !difficulty.Valid() {
		return nil, fmt.Errorf("unknown difficulty %q: %w", difficulty, common.ErrValidation)
	}
	if limit <= 0 {
		limit = defaultListLimit
	}
	limit = min(limit, maxListLimit)
	problems, err := s.problemRepo.ListRecent(ctx, limit, difficulty)
	if err != nil {
		return nil, fmt.Errorf("failed to list problems: %w", err)
	}
	if problems == nil {
		problems = []model.ArchivedProblem{}
	}
	return problems, nil
}
