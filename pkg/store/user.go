// Package store provides raw-SQL pgx access to the entities defined in
// pkg/model. Stores take a db.DBTX so callers may run them against a pool
// connection or an explicit transaction.
package store

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"

	"github.com/cdsctf/cdsctfd/internal/db"
	"github.com/cdsctf/cdsctfd/pkg/model"
)

// UserStore provides database operations for users.
type UserStore struct {
	dbtx db.DBTX
}

// NewUserStore creates a UserStore backed by the given connection.
func NewUserStore(dbtx db.DBTX) *UserStore {
	return &UserStore{dbtx: dbtx}
}

const userColumns = `id, username, display_name, email, "group", hashed_password, deleted_at, created_at, updated_at`

func scanUser(row pgx.Row) (model.User, error) {
	var u model.User
	var deletedAt pgtype.Timestamptz
	err := row.Scan(
		&u.ID, &u.Username, &u.DisplayName, &u.Email, &u.Group,
		&u.HashedPassword, &deletedAt, &u.CreatedAt, &u.UpdatedAt,
	)
	if err != nil {
		return model.User{}, err
	}
	if deletedAt.Valid {
		t := deletedAt.Time
		u.DeletedAt = &t
	}
	return u, nil
}

// GetByID returns a non-deleted user by id.
func (s *UserStore) GetByID(ctx context.Context, id int64) (model.User, error) {
	query := `SELECT ` + userColumns + ` FROM users WHERE id = $1 AND deleted_at IS NULL`
	row := s.dbtx.QueryRow(ctx, query, id)
	return scanUser(row)
}

// IsDeleted reports whether a user id refers to a tombstoned or absent row.
func (s *UserStore) IsDeleted(ctx context.Context, id int64) (bool, error) {
	_, err := s.GetByID(ctx, id)
	if err == pgx.ErrNoRows {
		return true, nil
	}
	if err != nil {
		return false, fmt.Errorf("checking user deletion state: %w", err)
	}
	return false, nil
}

// CountByGroup returns the number of non-deleted users in the given group.
func (s *UserStore) CountByGroup(ctx context.Context, group model.UserGroup) (int64, error) {
	var count int64
	query := `SELECT count(*) FROM users WHERE "group" = $1 AND deleted_at IS NULL`
	if err := s.dbtx.QueryRow(ctx, query, group).Scan(&count); err != nil {
		return 0, fmt.Errorf("counting users by group: %w", err)
	}
	return count, nil
}

// Create inserts a new user and returns it with its assigned id.
func (s *UserStore) Create(ctx context.Context, u model.User) (model.User, error) {
	query := `INSERT INTO users (username, display_name, email, "group", hashed_password)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING ` + userColumns
	row := s.dbtx.QueryRow(ctx, query, u.Username, u.DisplayName, u.Email, u.Group, u.HashedPassword)
	return scanUser(row)
}

// SoftDelete tombstones a user, renaming username/email with a timestamp
// prefix so the original values can never be re-registered.
func (s *UserStore) SoftDelete(ctx context.Context, id int64) error {
	suffix := time.Now().UTC().Format("20060102150405")
	query := `UPDATE users
		SET username = 'deleted_' || $2 || '_' || username,
		    email = 'deleted_' || $2 || '_' || email,
		    deleted_at = now(), updated_at = now()
		WHERE id = $1 AND deleted_at IS NULL`
	tag, err := s.dbtx.Exec(ctx, query, id, suffix)
	if err != nil {
		return fmt.Errorf("soft deleting user: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return pgx.ErrNoRows
	}
	return nil
}
