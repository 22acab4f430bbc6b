package store

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/cdsctf/cdsctfd/internal/db"
	"github.com/cdsctf/cdsctfd/pkg/model"
)

// GameStore provides database operations for games.
type GameStore struct {
	dbtx db.DBTX
}

// NewGameStore creates a GameStore backed by the given connection.
func NewGameStore(dbtx db.DBTX) *GameStore {
	return &GameStore{dbtx: dbtx}
}

const gameColumns = `id, title, is_enabled, is_public, is_need_write_up,
	member_limit_min, member_limit_max, started_at, frozen_at, ended_at`

func scanGame(row pgx.Row) (model.Game, error) {
	var g model.Game
	err := row.Scan(
		&g.ID, &g.Title, &g.IsEnabled, &g.IsPublic, &g.IsNeedWriteUp,
		&g.MemberLimitMin, &g.MemberLimitMax, &g.StartedAt, &g.FrozenAt, &g.EndedAt,
	)
	return g, err
}

// GetByID returns a single game by id, together with its timeslots.
func (s *GameStore) GetByID(ctx context.Context, id int64) (model.Game, error) {
	query := `SELECT ` + gameColumns + ` FROM games WHERE id = $1`
	g, err := scanGame(s.dbtx.QueryRow(ctx, query, id))
	if err != nil {
		return model.Game{}, err
	}
	rows, err := s.dbtx.Query(ctx, `SELECT started_at, ended_at FROM game_timeslots WHERE game_id = $1 ORDER BY started_at`, id)
	if err != nil {
		return model.Game{}, fmt.Errorf("listing game timeslots: %w", err)
	}
	g.Timeslots, err = pgx.CollectRows(rows, pgx.RowToStructByPos[model.Timeslot])
	if err != nil {
		return model.Game{}, fmt.Errorf("scanning game timeslots: %w", err)
	}
	return g, nil
}

// ListEnabled returns every enabled game, used by the scoring engine when a
// calculator message omits a specific game id.
func (s *GameStore) ListEnabled(ctx context.Context) ([]model.Game, error) {
	query := `SELECT ` + gameColumns + ` FROM games WHERE is_enabled = true`
	rows, err := s.dbtx.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("listing enabled games: %w", err)
	}
	defer rows.Close()

	var games []model.Game
	for rows.Next() {
		var g model.Game
		if err := rows.Scan(
			&g.ID, &g.Title, &g.IsEnabled, &g.IsPublic, &g.IsNeedWriteUp,
			&g.MemberLimitMin, &g.MemberLimitMax, &g.StartedAt, &g.FrozenAt, &g.EndedAt,
		); err != nil {
			return nil, fmt.Errorf("scanning game row: %w", err)
		}
		games = append(games, g)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating game rows: %w", err)
	}
	return games, nil
}
