package cluster

import (
	"context"
	"log/slog"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Reaper periodically deletes environments whose lease has expired.
type Reaper struct {
	manager *Manager
	period  time.Duration
	logger  *slog.Logger
	reaped  prometheus.Counter
}

// NewReaper creates a Reaper that sweeps every period.
func NewReaper(manager *Manager, period time.Duration, logger *slog.Logger, reaped prometheus.Counter) *Reaper {
	return &Reaper{manager: manager, period: period, logger: logger, reaped: reaped}
}

// Run blocks, sweeping on each tick until ctx is done.
func (r *Reaper) Run(ctx context.Context) error {
	ticker := time.NewTicker(r.period)
	defer ticker.Stop()

	r.logger.Info("environment reaper started", "period", r.period)

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			if err := r.sweep(ctx); err != nil {
				r.logger.Error("reaper sweep failed", "error", err)
			}
		}
	}
}

func (r *Reaper) sweep(ctx context.Context) error {
	envs, err := r.manager.ListEnvironments(ctx)
	if err != nil {
		return err
	}

	now := time.Now()
	for _, env := range envs {
		if env.IsLive(now) {
			continue
		}
		if err := r.manager.DeleteChallengeEnv(ctx, env.ID); err != nil {
			r.logger.Error("reaping expired environment", "environment_id", env.ID, "error", err)
			continue
		}
		r.logger.Info("reaped expired environment", "environment_id", env.ID, "challenge_id", env.ChallengeID)
		if r.reaped != nil {
			r.reaped.Inc()
		}
	}
	return nil
}
