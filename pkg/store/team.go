package store

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/cdsctf/cdsctfd/internal/db"
	"github.com/cdsctf/cdsctfd/pkg/model"
)

// TeamStore provides database operations for teams.
type TeamStore struct {
	dbtx db.DBTX
}

// NewTeamStore creates a TeamStore backed by the given connection.
func NewTeamStore(dbtx db.DBTX) *TeamStore {
	return &TeamStore{dbtx: dbtx}
}

const teamColumns = `id, game_id, name, email, slogan, state, pts, rank`

func scanTeam(row pgx.Row) (model.Team, error) {
	var t model.Team
	err := row.Scan(&t.ID, &t.GameID, &t.Name, &t.Email, &t.Slogan, &t.State, &t.Pts, &t.Rank)
	return t, err
}

func scanTeams(rows pgx.Rows) ([]model.Team, error) {
	defer rows.Close()
	var teams []model.Team
	for rows.Next() {
		var t model.Team
		if err := rows.Scan(&t.ID, &t.GameID, &t.Name, &t.Email, &t.Slogan, &t.State, &t.Pts, &t.Rank); err != nil {
			return nil, fmt.Errorf("scanning team row: %w", err)
		}
		teams = append(teams, t)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating team rows: %w", err)
	}
	return teams, nil
}

// GetByID returns a single team by id.
func (s *TeamStore) GetByID(ctx context.Context, id int64) (model.Team, error) {
	query := `SELECT ` + teamColumns + ` FROM teams WHERE id = $1`
	return scanTeam(s.dbtx.QueryRow(ctx, query, id))
}

// ListByGame returns every team registered in a game.
func (s *TeamStore) ListByGame(ctx context.Context, gameID int64) ([]model.Team, error) {
	query := `SELECT ` + teamColumns + ` FROM teams WHERE game_id = $1`
	rows, err := s.dbtx.Query(ctx, query, gameID)
	if err != nil {
		return nil, fmt.Errorf("listing teams: %w", err)
	}
	return scanTeams(rows)
}

// SetState updates a team's lifecycle state, e.g. Passed -> Banned on
// detected cheating.
func (s *TeamStore) SetState(ctx context.Context, id int64, state model.TeamState) error {
	query := `UPDATE teams SET state = $2 WHERE id = $1`
	_, err := s.dbtx.Exec(ctx, query, id, state)
	if err != nil {
		return fmt.Errorf("updating team state: %w", err)
	}
	return nil
}

// SetScore writes the team's derived points and scoreboard rank. Only the
// scoring engine may call this.
func (s *TeamStore) SetScore(ctx context.Context, id int64, pts, rank int64) error {
	query := `UPDATE teams SET pts = $2, rank = $3 WHERE id = $1`
	_, err := s.dbtx.Exec(ctx, query, id, pts, rank)
	if err != nil {
		return fmt.Errorf("updating team score: %w", err)
	}
	return nil
}
