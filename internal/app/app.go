// Package app wires configuration, infrastructure clients, and workers
// together and runs the selected mode to completion.
package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/redis/go-redis/v9"

	"github.com/cdsctf/cdsctfd/internal/config"
	"github.com/cdsctf/cdsctfd/internal/httpserver"
	"github.com/cdsctf/cdsctfd/internal/notify"
	"github.com/cdsctf/cdsctfd/internal/platform"
	"github.com/cdsctf/cdsctfd/internal/queue"
	"github.com/cdsctf/cdsctfd/internal/ratelimit"
	"github.com/cdsctf/cdsctfd/internal/seed"
	"github.com/cdsctf/cdsctfd/internal/telemetry"
	"github.com/cdsctf/cdsctfd/pkg/adjudicator"
	"github.com/cdsctf/cdsctfd/pkg/checker"
	"github.com/cdsctf/cdsctfd/pkg/cluster"
	"github.com/cdsctf/cdsctfd/pkg/engine"
	"github.com/cdsctf/cdsctfd/pkg/scoring"
)

// Run is the main application entry point. It reads config, connects to
// infrastructure, and starts the appropriate mode.
func Run(ctx context.Context, cfg *config.Config) error {
	logger := telemetry.NewLogger(cfg.LogFormat, cfg.LogLevel)
	slog.SetDefault(logger)

	logger.Info("starting cdsctfd", "mode", cfg.Mode, "listen", cfg.ListenAddr())

	db, err := platform.NewPostgresPool(ctx, cfg.DatabaseURL)
	if err != nil {
		return fmt.Errorf("connecting to database: %w", err)
	}
	defer db.Close()

	if err := platform.RunMigrations(cfg.DatabaseURL, cfg.MigrationsDir); err != nil {
		return fmt.Errorf("running migrations: %w", err)
	}
	logger.Info("migrations applied")

	rdb, err := platform.NewRedisClient(ctx, cfg.RedisURL)
	if err != nil {
		return fmt.Errorf("connecting to redis: %w", err)
	}
	defer func() {
		if err := rdb.Close(); err != nil {
			logger.Error("closing redis client", "error", err)
		}
	}()

	if cfg.Mode == "seed" {
		return seed.Run(ctx, db, cfg, logger)
	}

	snapshot, err := config.LoadSnapshot(ctx, db)
	if err != nil {
		return fmt.Errorf("loading config snapshot: %w", err)
	}
	snapshot.ApplyTo(cfg)

	metricsReg := telemetry.NewRegistry()

	// Cluster Environment Manager (optional — only deployments that run
	// spawnable challenge environments need it enabled). ClusterProxyEnabled
	// only selects the Service type it publishes environments with.
	var proxy httpserver.EnvironmentProxy
	var reaper *cluster.Reaper
	if cfg.ClusterEnabled {
		restConfig, err := cluster.LoadRestConfig(cfg.ClusterKubeConfigPath)
		if err != nil {
			return fmt.Errorf("loading cluster config: %w", err)
		}
		manager, err := cluster.New(restConfig, cfg.ClusterNamespace, cfg.ClusterPublicEntry, cfg.ClusterProxyEnabled, logger)
		if err != nil {
			return fmt.Errorf("creating cluster manager: %w", err)
		}
		proxy = manager
		reaper = cluster.NewReaper(manager, cfg.ReaperPeriod, logger, telemetry.EnvironmentsReapedTotal)
	} else {
		logger.Info("cluster environment manager disabled (CLUSTER_ENABLED not set)")
	}

	switch cfg.Mode {
	case "worker":
		return runWorker(ctx, cfg, logger, db, rdb, metricsReg, proxy, reaper)
	case "reaper":
		if reaper == nil {
			return fmt.Errorf("reaper mode requires CLUSTER_ENABLED=true")
		}
		return runReaper(ctx, cfg, logger, db, rdb, metricsReg, reaper)
	default:
		return fmt.Errorf("unknown mode: %s", cfg.Mode)
	}
}

// runWorker runs the submission adjudicator, the scoring recomputation
// worker, the scripting engine cache sweeper, the environment reaper (if
// enabled), and the health/metrics/ws-proxy HTTP surface, all for the
// lifetime of ctx.
func runWorker(ctx context.Context, cfg *config.Config, logger *slog.Logger, db *pgxpool.Pool, rdb *redis.Client, metricsReg *prometheus.Registry, proxy httpserver.EnvironmentProxy, reaper *cluster.Reaper) error {
	eng := engine.New()
	chk := checker.New(eng)

	var notifier adjudicator.Notifier
	if cfg.SlackBotToken != "" {
		notifier = notify.NewSlackNotifier(cfg.SlackBotToken, cfg.SlackAlertChannel, logger)
		logger.Info("slack notifications enabled", "channel", cfg.SlackAlertChannel)
	} else {
		logger.Info("slack notifications disabled (SLACK_BOT_TOKEN not set)")
	}

	q := queue.New(rdb, "cdsctfd", hostname())

	adj := adjudicator.New(db, chk, q, logger, notifier, telemetry.SubmissionsCheckedTotal, telemetry.SubmissionCheckDuration)
	scoringWorker := scoring.NewWorker(db, q, logger, cfg, telemetry.GamesRecomputedTotal)

	// The submission rate limiter is consumed by the separately deployed
	// player-facing submission API; constructing it here only validates
	// its configuration at worker startup.
	_ = ratelimit.New(rdb, "submit", cfg.SubmissionRateLimit, cfg.SubmissionRateWindow)

	go eng.RunSweeper(ctx, cfg.EngineUnitTTL, cfg.EngineSweepPeriod)
	if reaper != nil {
		go func() {
			if err := reaper.Run(ctx); err != nil {
				logger.Error("environment reaper stopped", "error", err)
			}
		}()
	}

	errCh := make(chan error, 2)
	go func() {
		if err := adj.Run(ctx); err != nil {
			errCh <- fmt.Errorf("adjudicator: %w", err)
			return
		}
		errCh <- nil
	}()
	go func() {
		if err := scoringWorker.Run(ctx); err != nil {
			errCh <- fmt.Errorf("scoring worker: %w", err)
			return
		}
		errCh <- nil
	}()

	srv := httpserver.NewServer(cfg, logger, db, rdb, metricsReg, proxy)
	httpSrv := &http.Server{
		Addr:         cfg.ListenAddr(),
		Handler:      srv,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  60 * time.Second,
	}
	go func() {
		logger.Info("http server listening", "addr", cfg.ListenAddr())
		if err := httpSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- fmt.Errorf("http server: %w", err)
			return
		}
		errCh <- nil
	}()

	select {
	case <-ctx.Done():
		logger.Info("shutting down worker")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return httpSrv.Shutdown(shutdownCtx)
	case err := <-errCh:
		return err
	}
}

// runReaper runs only the environment reaper and the health/metrics
// surface, for deployments that split it into its own process.
func runReaper(ctx context.Context, cfg *config.Config, logger *slog.Logger, db *pgxpool.Pool, rdb *redis.Client, metricsReg *prometheus.Registry, reaper *cluster.Reaper) error {
	errCh := make(chan error, 1)
	go func() {
		if err := reaper.Run(ctx); err != nil {
			errCh <- fmt.Errorf("reaper: %w", err)
			return
		}
		errCh <- nil
	}()

	srv := httpserver.NewServer(cfg, logger, db, rdb, metricsReg, nil)
	httpSrv := &http.Server{Addr: cfg.ListenAddr(), Handler: srv}
	go func() {
		if err := httpSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- fmt.Errorf("http server: %w", err)
			return
		}
		errCh <- nil
	}()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return httpSrv.Shutdown(shutdownCtx)
	case err := <-errCh:
		return err
	}
}

func hostname() string {
	h, err := os.Hostname()
	if err != nil || h == "" {
		return "cdsctfd"
	}
	return h
}
