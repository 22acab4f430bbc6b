package store

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"

	"github.com/cdsctf/cdsctfd/internal/db"
	"github.com/cdsctf/cdsctfd/pkg/model"
)

// SubmissionStore provides database operations for submissions.
type SubmissionStore struct {
	dbtx db.DBTX
}

// NewSubmissionStore creates a SubmissionStore backed by the given connection.
func NewSubmissionStore(dbtx db.DBTX) *SubmissionStore {
	return &SubmissionStore{dbtx: dbtx}
}

const submissionColumns = `id, content, status, user_id, team_id, game_id,
	challenge_id, created_at, pts, rank`

func scanSubmission(row pgx.Row) (model.Submission, error) {
	var sub model.Submission
	var teamID, gameID pgtype.Int8
	err := row.Scan(
		&sub.ID, &sub.Content, &sub.Status, &sub.UserID, &teamID, &gameID,
		&sub.ChallengeID, &sub.CreatedAt, &sub.Pts, &sub.Rank,
	)
	if err != nil {
		return model.Submission{}, err
	}
	if teamID.Valid {
		sub.TeamID = &teamID.Int64
	}
	if gameID.Valid {
		sub.GameID = &gameID.Int64
	}
	return sub, nil
}

// GetByID returns a single submission.
func (s *SubmissionStore) GetByID(ctx context.Context, id int64) (model.Submission, error) {
	query := `SELECT ` + submissionColumns + ` FROM submissions WHERE id = $1`
	return scanSubmission(s.dbtx.QueryRow(ctx, query, id))
}

// GetPendingByID returns a submission only if it is still Pending; this is
// the adjudicator's serialization point, making redelivered messages
// observe a no-op on the second pass.
func (s *SubmissionStore) GetPendingByID(ctx context.Context, id int64) (model.Submission, error) {
	query := `SELECT ` + submissionColumns + ` FROM submissions WHERE id = $1 AND status = $2`
	return scanSubmission(s.dbtx.QueryRow(ctx, query, id, model.StatusPending))
}

// Delete removes a submission row outright, used when it references a
// vanished user or challenge.
func (s *SubmissionStore) Delete(ctx context.Context, id int64) error {
	_, err := s.dbtx.Exec(ctx, `DELETE FROM submissions WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("deleting submission: %w", err)
	}
	return nil
}

// SetStatus persists the final adjudicated status. The update applies only
// while the row is still Pending, so a redelivered submission cannot
// overwrite a status already written.
func (s *SubmissionStore) SetStatus(ctx context.Context, id int64, status model.SubmissionStatus) error {
	_, err := s.dbtx.Exec(ctx, `UPDATE submissions SET status = $2 WHERE id = $1 AND status = $3`, id, status, model.StatusPending)
	if err != nil {
		return fmt.Errorf("updating submission status: %w", err)
	}
	return nil
}

// SetScore writes the derived per-submission points and solve rank. Only
// the scoring engine may call this.
func (s *SubmissionStore) SetScore(ctx context.Context, id int64, pts, rank int64) error {
	_, err := s.dbtx.Exec(ctx, `UPDATE submissions SET pts = $2, rank = $3 WHERE id = $1`, id, pts, rank)
	if err != nil {
		return fmt.Errorf("updating submission score: %w", err)
	}
	return nil
}

// HasPriorCorrectInGame reports whether a Correct submission already exists
// for (challengeID, gameID, teamID), the in-game duplicate predicate.
func (s *SubmissionStore) HasPriorCorrectInGame(ctx context.Context, challengeID string, gameID, teamID int64) (bool, error) {
	query := `SELECT EXISTS(
		SELECT 1 FROM submissions
		WHERE challenge_id = $1 AND game_id = $2 AND team_id = $3 AND status = $4
	)`
	var exists bool
	err := s.dbtx.QueryRow(ctx, query, challengeID, gameID, teamID, model.StatusCorrect).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("checking in-game duplicate: %w", err)
	}
	return exists, nil
}

// HasPriorCorrectPlayground reports whether a Correct submission already
// exists for (challengeID, userID) with no game/team, the playground
// duplicate predicate.
func (s *SubmissionStore) HasPriorCorrectPlayground(ctx context.Context, challengeID string, userID int64) (bool, error) {
	query := `SELECT EXISTS(
		SELECT 1 FROM submissions
		WHERE challenge_id = $1 AND user_id = $2
		  AND game_id IS NULL AND team_id IS NULL AND status = $3
	)`
	var exists bool
	err := s.dbtx.QueryRow(ctx, query, challengeID, userID, model.StatusCorrect).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("checking playground duplicate: %w", err)
	}
	return exists, nil
}

// ListPendingOrderedByCreatedAt returns every Pending submission oldest
// first, used by the adjudicator's startup recovery pass.
func (s *SubmissionStore) ListPendingOrderedByCreatedAt(ctx context.Context) ([]model.Submission, error) {
	query := `SELECT ` + submissionColumns + ` FROM submissions WHERE status = $1 ORDER BY created_at ASC`
	rows, err := s.dbtx.Query(ctx, query, model.StatusPending)
	if err != nil {
		return nil, fmt.Errorf("listing pending submissions: %w", err)
	}
	return scanSubmissions(rows)
}

// ListCorrectByGame returns every Correct, in-game submission for gameID
// ordered by created_at ascending, the input to per-game scoring.
func (s *SubmissionStore) ListCorrectByGame(ctx context.Context, gameID int64) ([]model.Submission, error) {
	query := `SELECT ` + submissionColumns + ` FROM submissions
		WHERE game_id = $1 AND status = $2 ORDER BY created_at ASC`
	rows, err := s.dbtx.Query(ctx, query, gameID, model.StatusCorrect)
	if err != nil {
		return nil, fmt.Errorf("listing correct submissions: %w", err)
	}
	return scanSubmissions(rows)
}

func scanSubmissions(rows pgx.Rows) ([]model.Submission, error) {
	defer rows.Close()
	var items []model.Submission
	for rows.Next() {
		sub, err := scanSubmissionRow(rows)
		if err != nil {
			return nil, fmt.Errorf("scanning submission row: %w", err)
		}
		items = append(items, sub)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating submission rows: %w", err)
	}
	return items, nil
}

func scanSubmissionRow(rows pgx.Rows) (model.Submission, error) {
	var sub model.Submission
	var teamID, gameID pgtype.Int8
	err := rows.Scan(
		&sub.ID, &sub.Content, &sub.Status, &sub.UserID, &teamID, &gameID,
		&sub.ChallengeID, &sub.CreatedAt, &sub.Pts, &sub.Rank,
	)
	if err != nil {
		return model.Submission{}, err
	}
	if teamID.Valid {
		sub.TeamID = &teamID.Int64
	}
	if gameID.Valid {
		sub.GameID = &gameID.Int64
	}
	return sub, nil
}
