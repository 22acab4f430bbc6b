package httpserver

import (
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"

	"github.com/cdsctf/cdsctfd/internal/config"
)

// EnvironmentProxy serves the WebSocket side of a challenge environment's
// TCP port forward. Implemented by pkg/cluster.Manager; declared here as an
// interface so httpserver does not import the cluster package.
type EnvironmentProxy interface {
	ServeWS(w http.ResponseWriter, r *http.Request, environmentID string, port int)
}

// Server is the minimal HTTP surface exposed by cdsctfd: liveness/readiness
// probes, Prometheus metrics, and the per-environment WebSocket proxy. The
// player-facing REST API (games, challenges, submissions, teams) is owned by
// a separate frontend-facing service and is out of scope here.
type Server struct {
	Router    *chi.Mux
	Logger    *slog.Logger
	DB        *pgxpool.Pool
	Redis     *redis.Client
	Metrics   *prometheus.Registry
	startedAt time.Time
}

// NewServer wires middleware and the health/metrics/proxy endpoints. proxy
// may be nil when the cluster Environment Manager is disabled, in which case
// the ws-proxy route responds 503.
func NewServer(cfg *config.Config, logger *slog.Logger, db *pgxpool.Pool, rdb *redis.Client, metricsReg *prometheus.Registry, proxy EnvironmentProxy) *Server {
	s := &Server{
		Router:    chi.NewRouter(),
		Logger:    logger,
		DB:        db,
		Redis:     rdb,
		Metrics:   metricsReg,
		startedAt: time.Now(),
	}

	s.Router.Use(RequestID)
	s.Router.Use(Logger(logger))
	s.Router.Use(Metrics)
	s.Router.Use(middleware.Recoverer)
	s.Router.Use(cors.Handler(cors.Options{
		AllowedOrigins:   cfg.CORSAllowedOrigins,
		AllowedMethods:   []string{"GET", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "X-Request-ID"},
		ExposedHeaders:   []string{"X-Request-ID"},
		AllowCredentials: false,
		MaxAge:           300,
	}))

	s.Router.Get("/healthz", s.handleHealthz)
	s.Router.Get("/readyz", s.handleReadyz)
	s.Router.Handle("/metrics", promhttp.HandlerFor(metricsReg, promhttp.HandlerOpts{}))

	s.Router.Get("/envs/{id}/ports/{port}/ws", func(w http.ResponseWriter, r *http.Request) {
		if proxy == nil {
			RespondError(w, http.StatusServiceUnavailable, "unavailable", "environment proxy not configured")
			return
		}

		envID := chi.URLParam(r, "id")
		port, err := strconv.Atoi(chi.URLParam(r, "port"))
		if err != nil || port <= 0 || port > 65535 {
			RespondError(w, http.StatusBadRequest, "invalid_port", "port must be a positive integer")
			return
		}

		proxy.ServeWS(w, r, envID, port)
	})

	return s
}

// ServeHTTP implements http.Handler.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.Router.ServeHTTP(w, r)
}

func (s *Server) handleHealthz(w http.ResponseWriter, _ *http.Request) {
	Respond(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleReadyz(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	if err := s.DB.Ping(ctx); err != nil {
		s.Logger.Error("readiness check: database ping failed", "error", err)
		RespondError(w, http.StatusServiceUnavailable, "unavailable", "database not ready")
		return
	}

	if err := s.Redis.Ping(ctx).Err(); err != nil {
		s.Logger.Error("readiness check: redis ping failed", "error", err)
		RespondError(w, http.StatusServiceUnavailable, "unavailable", "redis not ready")
		return
	}

	Respond(w, http.StatusOK, map[string]string{"status": "ready"})
}
