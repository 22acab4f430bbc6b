package store

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"

	"github.com/cdsctf/cdsctfd/internal/db"
	"github.com/cdsctf/cdsctfd/pkg/model"
)

// GameChallengeStore provides database operations for game-challenge bindings.
type GameChallengeStore struct {
	dbtx db.DBTX
}

// NewGameChallengeStore creates a GameChallengeStore backed by the given connection.
func NewGameChallengeStore(dbtx db.DBTX) *GameChallengeStore {
	return &GameChallengeStore{dbtx: dbtx}
}

// gameChallengeSelect joins in the challenge's title and category, which
// model.GameChallenge carries denormalized for scoreboard display without a
// second round trip.
const gameChallengeSelect = `SELECT gc.game_id, gc.challenge_id, c.title, c.category,
	gc.is_enabled, gc.difficulty, gc.max_pts, gc.min_pts, gc.bonus_ratios, gc.pts, gc.frozen_at
	FROM game_challenges gc JOIN challenges c ON c.id = gc.challenge_id`

func scanGameChallenge(row pgx.Row) (model.GameChallenge, error) {
	var gc model.GameChallenge
	var frozenAt pgtype.Timestamptz
	err := row.Scan(
		&gc.GameID, &gc.ChallengeID, &gc.ChallengeTitle, &gc.ChallengeCategory,
		&gc.IsEnabled, &gc.Difficulty, &gc.MaxPts, &gc.MinPts, &gc.BonusRatios,
		&gc.Pts, &frozenAt,
	)
	if err != nil {
		return model.GameChallenge{}, err
	}
	if frozenAt.Valid {
		t := frozenAt.Time
		gc.FrozenAt = &t
	}
	return gc, nil
}

// GetByGameAndChallenge returns a single binding.
func (s *GameChallengeStore) GetByGameAndChallenge(ctx context.Context, gameID int64, challengeID string) (model.GameChallenge, error) {
	query := gameChallengeSelect + ` WHERE gc.game_id = $1 AND gc.challenge_id = $2`
	return scanGameChallenge(s.dbtx.QueryRow(ctx, query, gameID, challengeID))
}

// ListEnabledByGame returns every enabled binding for a game, the unit of
// work the scoring engine recomputes per pass.
func (s *GameChallengeStore) ListEnabledByGame(ctx context.Context, gameID int64) ([]model.GameChallenge, error) {
	query := gameChallengeSelect + ` WHERE gc.game_id = $1 AND gc.is_enabled = true`
	rows, err := s.dbtx.Query(ctx, query, gameID)
	if err != nil {
		return nil, fmt.Errorf("listing game challenges: %w", err)
	}
	defer rows.Close()

	var items []model.GameChallenge
	for rows.Next() {
		var frozenAt pgtype.Timestamptz
		var gc model.GameChallenge
		if err := rows.Scan(
			&gc.GameID, &gc.ChallengeID, &gc.ChallengeTitle, &gc.ChallengeCategory,
			&gc.IsEnabled, &gc.Difficulty, &gc.MaxPts, &gc.MinPts, &gc.BonusRatios,
			&gc.Pts, &frozenAt,
		); err != nil {
			return nil, fmt.Errorf("scanning game challenge row: %w", err)
		}
		if frozenAt.Valid {
			t := frozenAt.Time
			gc.FrozenAt = &t
		}
		items = append(items, gc)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating game challenge rows: %w", err)
	}
	return items, nil
}

// SetPts writes the base points the next solver would earn. Only the
// scoring engine may call this.
func (s *GameChallengeStore) SetPts(ctx context.Context, gameID int64, challengeID string, pts int64) error {
	query := `UPDATE game_challenges SET pts = $3 WHERE game_id = $1 AND challenge_id = $2`
	_, err := s.dbtx.Exec(ctx, query, gameID, challengeID, pts)
	if err != nil {
		return fmt.Errorf("updating game challenge pts: %w", err)
	}
	return nil
}
