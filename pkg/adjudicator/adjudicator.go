// Package adjudicator consumes the checker topic and classifies each
// pending submission to a terminal status.
package adjudicator

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/cdsctf/cdsctfd/internal/queue"
	"github.com/cdsctf/cdsctfd/pkg/checker"
	"github.com/cdsctf/cdsctfd/pkg/model"
	"github.com/cdsctf/cdsctfd/pkg/scoring"
	"github.com/cdsctf/cdsctfd/pkg/store"
)

// Notifier is an optional side channel for player-facing cheat-ban alerts.
type Notifier interface {
	NotifyCheatBan(ctx context.Context, teamID, peerTeamID int64, challengeTitle string)
}

// Stores bundles the persistence dependencies the adjudicator needs.
type Stores struct {
	Users          *store.UserStore
	Challenges     *store.ChallengeStore
	Submissions    *store.SubmissionStore
	Teams          *store.TeamStore
	Games          *store.GameStore
	GameChallenges *store.GameChallengeStore
}

// Adjudicator is the submission-adjudication worker.
type Adjudicator struct {
	stores   Stores
	checker  *checker.Checker
	queue    *queue.Queue
	logger   *slog.Logger
	notifier Notifier
	counted  *prometheus.CounterVec
	duration prometheus.Histogram
}

// New creates an Adjudicator. notifier may be nil to disable cheat-ban
// alerts.
func New(pool *pgxpool.Pool, chk *checker.Checker, q *queue.Queue, logger *slog.Logger, notifier Notifier, counted *prometheus.CounterVec, duration prometheus.Histogram) *Adjudicator {
	return &Adjudicator{
		stores: Stores{
			Users:          store.NewUserStore(pool),
			Challenges:     store.NewChallengeStore(pool),
			Submissions:    store.NewSubmissionStore(pool),
			Teams:          store.NewTeamStore(pool),
			Games:          store.NewGameStore(pool),
			GameChallenges: store.NewGameChallengeStore(pool),
		},
		checker:  chk,
		queue:    q,
		logger:   logger,
		notifier: notifier,
		counted:  counted,
		duration: duration,
	}
}

// Run recovers any submissions left Pending by a prior crash, then blocks
// consuming the checker topic until ctx is done.
func (a *Adjudicator) Run(ctx context.Context) error {
	if err := a.Recover(ctx); err != nil {
		a.logger.Error("recovering pending submissions", "error", err)
	}
	a.logger.Info("adjudicator started")
	go a.queue.ReclaimLoop(ctx, queue.TopicChecker, queue.DefaultReclaimInterval, queue.DefaultReclaimMinIdle, a.handle, a.logger)
	return a.queue.Subscribe(ctx, queue.TopicChecker, a.handle)
}

func (a *Adjudicator) handle(ctx context.Context, msg queue.Message) error {
	id, err := strconv.ParseInt(string(msg.Payload), 10, 64)
	if err != nil {
		a.logger.Error("decoding checker payload", "payload", string(msg.Payload), "error", err)
		return nil
	}
	if err := a.Check(ctx, id); err != nil {
		a.logger.Error("checking submission", "submission_id", id, "error", err)
		return err
	}
	return nil
}

// Recover republishes every currently Pending submission, oldest first, so
// crash-loss between enqueue and consume is made whole.
func (a *Adjudicator) Recover(ctx context.Context) error {
	pending, err := a.stores.Submissions.ListPendingOrderedByCreatedAt(ctx)
	if err != nil {
		return fmt.Errorf("listing pending submissions: %w", err)
	}
	for _, sub := range pending {
		payload := []byte(strconv.FormatInt(sub.ID, 10))
		if err := a.queue.Publish(ctx, queue.TopicChecker, payload); err != nil {
			a.logger.Error("republishing pending submission", "submission_id", sub.ID, "error", err)
		}
	}
	return nil
}

// Check classifies submission id to a terminal status. A submission no
// longer Pending (already processed by a prior delivery) is a silent no-op,
// which is what makes redelivery idempotent.
func (a *Adjudicator) Check(ctx context.Context, id int64) error {
	start := time.Now()
	defer func() {
		if a.duration != nil {
			a.duration.Observe(time.Since(start).Seconds())
		}
	}()

	sub, err := a.stores.Submissions.GetPendingByID(ctx, id)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("loading submission %d: %w", id, err)
	}

	deleted, err := a.stores.Users.IsDeleted(ctx, sub.UserID)
	if err != nil {
		return fmt.Errorf("checking submitter: %w", err)
	}
	if deleted {
		return a.stores.Submissions.Delete(ctx, sub.ID)
	}

	challenge, err := a.stores.Challenges.GetByID(ctx, sub.ChallengeID)
	if errors.Is(err, pgx.ErrNoRows) {
		return a.stores.Submissions.Delete(ctx, sub.ID)
	}
	if err != nil {
		return fmt.Errorf("loading challenge %s: %w", sub.ChallengeID, err)
	}

	status, err := a.classify(ctx, sub, challenge)
	if err != nil {
		return fmt.Errorf("classifying submission %d: %w", id, err)
	}

	if status == model.StatusCorrect {
		status, err = a.applyPostConditions(ctx, sub)
		if err != nil {
			return fmt.Errorf("applying post-conditions to submission %d: %w", id, err)
		}
	}

	if err := a.stores.Submissions.SetStatus(ctx, sub.ID, status); err != nil {
		return fmt.Errorf("persisting submission status: %w", err)
	}

	if a.counted != nil {
		a.counted.WithLabelValues(status.String()).Inc()
	}

	if status == model.StatusCorrect && sub.GameID != nil {
		payload, err := json.Marshal(scoring.Payload{GameID: sub.GameID})
		if err != nil {
			return fmt.Errorf("encoding calculator payload: %w", err)
		}
		if err := a.queue.Publish(ctx, queue.TopicCalculator, payload); err != nil {
			return fmt.Errorf("publishing calculator message: %w", err)
		}
	}

	return nil
}

func (a *Adjudicator) classify(ctx context.Context, sub model.Submission, challenge model.Challenge) (model.SubmissionStatus, error) {
	verdict, err := a.checker.Check(ctx, challenge, sub.OperatorID(), sub.Content)
	if err != nil {
		return model.StatusIncorrect, nil
	}

	switch verdict.Kind {
	case checker.VerdictCorrect:
		return model.StatusCorrect, nil
	case checker.VerdictCheat:
		return a.handleCheat(ctx, sub, verdict, challenge)
	default:
		return model.StatusIncorrect, nil
	}
}

// handleCheat bans the submitter's team and the named peer team on a Cheat
// verdict, but only when both are set and the peer exists in the same
// game; otherwise it falls back to Incorrect. A playground submission (no
// team) has nothing to ban and also degrades to Incorrect.
func (a *Adjudicator) handleCheat(ctx context.Context, sub model.Submission, v checker.Verdict, challenge model.Challenge) (model.SubmissionStatus, error) {
	if sub.GameID == nil || sub.TeamID == nil {
		return model.StatusIncorrect, nil
	}

	peer, err := a.stores.Teams.GetByID(ctx, v.PeerTeamID)
	if errors.Is(err, pgx.ErrNoRows) {
		return model.StatusIncorrect, nil
	}
	if err != nil {
		return model.StatusIncorrect, err
	}
	if peer.GameID != *sub.GameID {
		return model.StatusIncorrect, nil
	}

	if err := a.stores.Teams.SetState(ctx, *sub.TeamID, model.TeamBanned); err != nil {
		return model.StatusIncorrect, err
	}
	if err := a.stores.Teams.SetState(ctx, v.PeerTeamID, model.TeamBanned); err != nil {
		return model.StatusIncorrect, err
	}
	a.notify(ctx, *sub.TeamID, v.PeerTeamID, challenge.Title)
	return model.StatusCheat, nil
}

func (a *Adjudicator) notify(ctx context.Context, teamID, peerTeamID int64, challengeTitle string) {
	if a.notifier == nil {
		return
	}
	a.notifier.NotifyCheatBan(ctx, teamID, peerTeamID, challengeTitle)
}

// applyPostConditions enforces the duplicate and frozen-window predicates
// on a tentatively Correct submission.
func (a *Adjudicator) applyPostConditions(ctx context.Context, sub model.Submission) (model.SubmissionStatus, error) {
	if !sub.InGame() {
		dup, err := a.stores.Submissions.HasPriorCorrectPlayground(ctx, sub.ChallengeID, sub.UserID)
		if err != nil {
			return model.StatusIncorrect, err
		}
		if dup {
			return model.StatusDuplicate, nil
		}
		return model.StatusCorrect, nil
	}

	dup, err := a.stores.Submissions.HasPriorCorrectInGame(ctx, sub.ChallengeID, *sub.GameID, *sub.TeamID)
	if err != nil {
		return model.StatusIncorrect, err
	}
	if dup {
		return model.StatusDuplicate, nil
	}

	game, err := a.stores.Games.GetByID(ctx, *sub.GameID)
	if err != nil {
		return model.StatusIncorrect, err
	}
	if game.IsFrozen(sub.CreatedAt) {
		return model.StatusExpired, nil
	}

	gc, err := a.stores.GameChallenges.GetByGameAndChallenge(ctx, *sub.GameID, sub.ChallengeID)
	if err != nil {
		return model.StatusIncorrect, err
	}
	if gc.FrozenAt != nil && sub.CreatedAt.After(*gc.FrozenAt) {
		return model.StatusExpired, nil
	}

	return model.StatusCorrect, nil
}
