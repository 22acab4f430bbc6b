package store

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"

	"github.com/cdsctf/cdsctfd/internal/db"
	"github.com/cdsctf/cdsctfd/pkg/model"
)

// ChallengeStore provides database operations for challenges.
type ChallengeStore struct {
	dbtx db.DBTX
}

// NewChallengeStore creates a ChallengeStore backed by the given connection.
func NewChallengeStore(dbtx db.DBTX) *ChallengeStore {
	return &ChallengeStore{dbtx: dbtx}
}

const challengeColumns = `id, title, category, tags, is_public, is_dynamic,
	env, script, flags, deleted_at, created_at, updated_at`

func scanChallenge(row pgx.Row) (model.Challenge, error) {
	var c model.Challenge
	var envJSON, flagsJSON []byte
	var script pgtype.Text
	var deletedAt pgtype.Timestamptz

	err := row.Scan(
		&c.ID, &c.Title, &c.Category, &c.Tags, &c.IsPublic, &c.IsDynamic,
		&envJSON, &script, &flagsJSON, &deletedAt, &c.CreatedAt, &c.UpdatedAt,
	)
	if err != nil {
		return model.Challenge{}, err
	}

	if script.Valid {
		c.Script = script.String
	}
	if deletedAt.Valid {
		t := deletedAt.Time
		c.DeletedAt = &t
	}
	if len(envJSON) > 0 {
		var env model.ChallengeEnv
		if err := json.Unmarshal(envJSON, &env); err != nil {
			return model.Challenge{}, fmt.Errorf("decoding challenge env: %w", err)
		}
		c.Env = &env
	}
	if len(flagsJSON) > 0 {
		if err := json.Unmarshal(flagsJSON, &c.Flags); err != nil {
			return model.Challenge{}, fmt.Errorf("decoding challenge flags: %w", err)
		}
	}

	return c, nil
}

// GetByID returns a single non-deleted challenge, including its secret
// fields (flags, script, env template). Callers that serialize to an
// untrusted reader must call Challenge.Desensitize first.
func (s *ChallengeStore) GetByID(ctx context.Context, id string) (model.Challenge, error) {
	query := `SELECT ` + challengeColumns + ` FROM challenges WHERE id = $1 AND deleted_at IS NULL`
	return scanChallenge(s.dbtx.QueryRow(ctx, query, id))
}
