package scoring

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/cdsctf/cdsctfd/internal/config"
	"github.com/cdsctf/cdsctfd/internal/queue"
	"github.com/cdsctf/cdsctfd/pkg/store"
)

// Payload is the calculator message body. GameID is absent to request a
// recomputation pass over every enabled game.
type Payload struct {
	GameID *int64 `json:"game_id,omitempty"`
}

// Worker consumes the calculator topic and recomputes affected games.
type Worker struct {
	pool   *pgxpool.Pool
	queue  *queue.Queue
	logger *slog.Logger
	cfg    *config.Config
	metric prometheus.Counter
}

// NewWorker creates a scoring Worker.
func NewWorker(pool *pgxpool.Pool, q *queue.Queue, logger *slog.Logger, cfg *config.Config, metric prometheus.Counter) *Worker {
	return &Worker{pool: pool, queue: q, logger: logger, cfg: cfg, metric: metric}
}

// Run blocks, consuming calculator messages until ctx is done.
func (w *Worker) Run(ctx context.Context) error {
	w.logger.Info("scoring worker started")
	go w.queue.ReclaimLoop(ctx, queue.TopicCalculator, queue.DefaultReclaimInterval, queue.DefaultReclaimMinIdle, w.handle, w.logger)
	return w.queue.Subscribe(ctx, queue.TopicCalculator, w.handle)
}

func (w *Worker) handle(ctx context.Context, msg queue.Message) error {
	var payload Payload
	if len(msg.Payload) > 0 {
		if err := json.Unmarshal(msg.Payload, &payload); err != nil {
			w.logger.Error("decoding calculator payload", "error", err)
			return nil // malformed payload can never succeed; ack and drop
		}
	}

	stores := Stores{
		Games:          store.NewGameStore(w.pool),
		GameChallenges: store.NewGameChallengeStore(w.pool),
		Submissions:    store.NewSubmissionStore(w.pool),
		Teams:          store.NewTeamStore(w.pool),
	}

	gameIDs, err := w.resolveGameIDs(ctx, stores, payload.GameID)
	if err != nil {
		return fmt.Errorf("resolving games to recompute: %w", err)
	}

	for _, gameID := range gameIDs {
		if err := Recompute(ctx, w.logger, stores, w.cfg, gameID); err != nil {
			w.logger.Error("recomputing game", "game_id", gameID, "error", err)
			continue
		}
		if w.metric != nil {
			w.metric.Inc()
		}
	}

	return nil
}

func (w *Worker) resolveGameIDs(ctx context.Context, stores Stores, gameID *int64) ([]int64, error) {
	if gameID != nil {
		return []int64{*gameID}, nil
	}

	games, err := stores.Games.ListEnabled(ctx)
	if err != nil {
		return nil, err
	}
	ids := make([]int64, len(games))
	for i, g := range games {
		ids[i] = g.ID
	}
	return ids, nil
}
