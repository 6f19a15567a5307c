package repository

import (
	"context"
	"database/sql"
	"fmt"

	"leetclash/internal/domain/model"
)

type ResultRepository interface {
	// SaveResult records a finished duel. Saving the same match twice is a
	// no-op, so every hosted session may try.
	SaveResult(ctx context.Context, result model.MatchResult) (inserted bool, err error)
	Leaderboard(ctx context.Context, limit int) ([]model.LeaderboardEntry, error)
}

type pgResultRepository struct {
	db *sql.DB
}

func NewPgResultRepository(db *sql.DB) ResultRepository {
	return &pgResultRepository{db: db}
}

func (r *pgResultRepository) SaveResult(ctx context.Context, res model.MatchResult) (bool, error) {
	query := `INSERT INTO match_results (match_id, winner, reason, player_a_user_id, player_b_user_id, player_a_hp, player_b_hp, problem_count, finished_at)
	          VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
	          ON CONFLICT (match_id) DO NOTHING`
	out, err := r.db.ExecContext(ctx, query, res.MatchID, res.Winner, res.Reason, res.PlayerAUser, res.PlayerBUser, res.PlayerAHP, res.PlayerBHP, res.ProblemCount, res.FinishedAt)
	if err != nil {
		return false, fmt.Errorf("pgResultRepository.SaveResult: %w", err)
	}
	n, err := out.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("pgResultRepository.SaveResult: rows affected: %w", err)
	}
	return n == 1, nil
}

func (r *pgResultRepository) Leaderboard(ctx context.Context, limit int) ([]model.LeaderboardEntry, error) {
	query := `
        WITH seats AS (
            SELECT player_a_user_id AS user_id, winner = 'playerA' AS won, winner = 'draw' AS drew FROM match_results
            UNION ALL
            SELECT player_b_user_id AS user_id, winner = 'playerB' AS won, winner = 'draw' AS drew FROM match_results
        )
        SELECT u.id, u.username,
               COUNT(*) FILTER (WHERE s.won)  AS wins,
               COUNT(*) FILTER (WHERE s.drew) AS draws,
               COUNT(*)                       AS played
        FROM seats s
        JOIN users u ON u.id = s.user_id
        GROUP BY u.id, u.username
        ORDER BY wins DESC, draws DESC, played ASC, u.username ASC
        LIMIT $1`
	rows, err := r.db.QueryContext(ctx, query, limit)
	if err != nil {
		return nil, fmt.Errorf("pgResultRepository.Leaderboard: %w", err)
	}
	defer rows.Close()

	var out []model.LeaderboardEntry
	for rows.Next() {
		e := model.LeaderboardEntry{Rank: len(out) + 1}
		if err := rows.Scan(&e.UserID, &e.Username, &e.Wins, &e.Draws, &e.Played); err != nil {
			return nil, fmt.Errorf("pgResultRepository.Leaderboard: scan: %w", err)
		}
		out = append(out, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("pgResultRepository.Leaderboard: rows: %w", err)
	}
	return out, nil
}
