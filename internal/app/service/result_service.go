package service

import (
	"context"
	"fmt"
	"log"

	"leetclash/internal/domain/model"
	"leetclash/internal/domain/repository"
)

type ResultService struct {
	resultRepo repository.ResultRepository
}

func NewResultService(resultRepo repository.ResultRepository) *ResultService {
	return &ResultService{resultRepo: resultRepo}
}

// Record archives a finished duel. Records that are not over are ignored.
func (s *ResultService) Record(ctx context.Context, m *model.Match) error {
	if m == nil || m.Mode != model.ModeDuel || m.Status != model.StatusOver || m.WinnerInfo == nil {
		return nil
	}
	res := model.MatchResult{
		MatchID:      m.ID,
		Winner:       m.WinnerInfo.Winner,
		Reason:       m.WinnerInfo.Reason,
		ProblemCount: len(m.Problems),
		FinishedAt:   m.CreatedAt,
	}
	if m.LastTickTime != nil {
		res.FinishedAt = unixMilli(*m.LastTickTime)
	}
	if a := m.Player(model.PlayerA); a != nil {
		res.PlayerAHP = a.HP
		res.PlayerAUser = optional(a.UserID)
	}
	if b := m.Player(model.PlayerB); b != nil {
		res.PlayerBHP = b.HP
		res.PlayerBUser = optional(b.UserID)
	}

	inserted, err := s.resultRepo.SaveResult(ctx, res)
	if err != nil {
		return fmt.Errorf("failed to record result of match %s: %w", m.ID, err)
	}
	if inserted {
		log.Printf("INFO: Recorded result of match %s: %s (%s)", m.ID, res.Winner, res.Reason)
	}
	return nil
}

func (s *ResultService) Leaderboard(ctx context.Context, limit int) ([]model.LeaderboardEntry, error) {
	if limit <= 0 {
		limit = defaultListLimit
	}
	limit = min(limit, maxListLimit)
	entries, err := s.resultRepo.Leaderboard(ctx, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to load leaderboard: %w", err)
	}
	if entries == nil {
		entries = []model.LeaderboardEntry{}
	}
	return entries, nil
}

func optional(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}
