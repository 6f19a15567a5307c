package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"

	"leetclash/internal/domain/model"
)

// ProblemRepository archives every generated problem set so players can
// browse what the generator has produced.
type ProblemRepository interface {
	SaveProblemSet(ctx context.Context, matchID string, difficulty model.ProblemDifficulty, problems []model.Problem) error
	ListRecent(ctx context.Context, limit int, difficulty model.ProblemDifficulty) ([]model.ArchivedProblem, error)
}

type pgProblemRepository struct {
	db *sql.DB
}

func NewPgProblemRepository(db *sql.DB) ProblemRepository {
	return &pgProblemRepository{db: db}
}

func (r *pgProblemRepository) SaveProblemSet(ctx context.Context, matchID string, difficulty model.ProblemDifficulty, problems []model.Problem) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("pgProblemRepository.SaveProblemSet: begin: %w", err)
	}
	defer tx.Rollback() // Rollback if not committed

	query := `INSERT INTO problem_archive (archive_id, match_id, position, function_id, difficulty, description, tests, complexity, template)
	          VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
	          ON CONFLICT (match_id, position) DO NOTHING`
	for i, p := range problems {
		tests, err := json.Marshal(p.Tests)
		if err != nil {
			return fmt.Errorf("pgProblemRepository.SaveProblemSet: encode tests of %s: %w", p.ID, err)
		}
		if _, err := tx.ExecContext(ctx, query, uuid.NewString(), matchID, i, p.ID, string(difficulty), p.Description, string(tests), p.Complexity, p.Template); err != nil {
			return fmt.Errorf("pgProblemRepository.SaveProblemSet: %w", err)
		}
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("pgProblemRepository.SaveProblemSet: commit: %w", err)
	}
	return nil
}

// ListRecent returns the newest archived problems. An empty difficulty lists
// all of them.
func (r *pgProblemRepository) ListRecent(ctx context.Context, limit int, difficulty model.ProblemDifficulty) ([]model.ArchivedProblem, error) {
	query := `SELECT archive_id, match_id, position, function_id, difficulty, description, tests, complexity, template, created_at
	          FROM problem_archive
	          WHERE ($1::text = '' OR difficulty = $1::text)
	          ORDER BY created_at DESC, position ASC
	          LIMIT $2`
	rows, err := r.db.QueryContext(ctx, query, string(difficulty), limit)
	if err != nil {
		return nil, fmt.Errorf("pgProblemRepository.ListRecent: %w", err)
	}
	defer rows.Close()

	var out []model.ArchivedProblem
	for rows.Next() {
		var (
			ap        model.ArchivedProblem
			tests     []byte
			createdAt time.Time
		)
		if err := rows.Scan(&ap.ArchiveID, &ap.MatchID, &ap.Position, &ap.ID, &ap.Difficulty, &ap.Description, &tests, &ap.Complexity, &ap.Template, &createdAt); err != nil {
			return nil, fmt.Errorf("pgProblemRepository.ListRecent: scan: %w", err)
		}
		if err := json.Unmarshal(tests, &ap.Tests); err != nil {
			return nil, fmt.Errorf("pgProblemRepository.ListRecent: decode tests of %s: %w", ap.ID, err)
		}
		ap.CreatedAt = createdAt
		out = append(out, ap)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("pgProblemRepository.ListRecent: rows: %w", err)
	}
	return out, nil
}
