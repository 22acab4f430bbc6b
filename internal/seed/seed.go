// Package seed bootstraps the one piece of state a fresh deployment cannot
// derive from migrations alone: an initial administrator account.
package seed

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"log/slog"

	"github.com/jackc/pgx/v5/pgxpool"
	"golang.org/x/crypto/bcrypt"

	"github.com/cdsctf/cdsctfd/internal/config"
	"github.com/cdsctf/cdsctfd/pkg/model"
	"github.com/cdsctf/cdsctfd/pkg/store"
)

// Run creates the initial admin account if no admin exists yet. It is safe
// to run on every deploy: once an admin exists, Run is a no-op.
func Run(ctx context.Context, pool *pgxpool.Pool, cfg *config.Config, logger *slog.Logger) error {
	users := store.NewUserStore(pool)

	count, err := users.CountByGroup(ctx, model.GroupAdmin)
	if err != nil {
		return fmt.Errorf("checking for existing admin: %w", err)
	}
	if count > 0 {
		logger.Info("admin account already exists, skipping seed")
		return nil
	}

	password := cfg.SeedAdminPassword
	generated := false
	if password == "" {
		password, err = randomPassword()
		if err != nil {
			return fmt.Errorf("generating admin password: %w", err)
		}
		generated = true
	}

	hashed, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return fmt.Errorf("hashing admin password: %w", err)
	}

	admin := model.User{
		Username:       cfg.SeedAdminUsername,
		DisplayName:    cfg.SeedAdminUsername,
		Email:          cfg.SeedAdminEmail,
		Group:          model.GroupAdmin,
		HashedPassword: string(hashed),
	}

	created, err := users.Create(ctx, admin)
	if err != nil {
		return fmt.Errorf("creating admin account: %w", err)
	}

	if generated {
		logger.Warn("generated admin account, save this password now",
			"user_id", created.ID, "username", created.Username, "password", password)
	} else {
		logger.Info("created admin account", "user_id", created.ID, "username", created.Username)
	}
	return nil
}

func randomPassword() (string, error) {
	buf := make([]byte, 16)
	if _, err := rand.Read(buf); err != nil {
		return "", err
	}
	return hex.EncodeToString(buf), nil
}
