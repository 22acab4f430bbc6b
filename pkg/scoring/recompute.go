package scoring

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"time"

	"github.com/cdsctf/cdsctfd/internal/config"
	"github.com/cdsctf/cdsctfd/pkg/model"
	"github.com/cdsctf/cdsctfd/pkg/store"
)

// Stores bundles the persistence dependencies Recompute needs.
type Stores struct {
	Games          *store.GameStore
	GameChallenges *store.GameChallengeStore
	Submissions    *store.SubmissionStore
	Teams          *store.TeamStore
}

// Recompute recalculates per-challenge dynamic points, per-submission
// points and rank, and per-team totals and rank for a single game. A failed
// write for one entity is logged and recomputation continues to the next;
// an error loading the game's challenges, correct submissions or teams is
// returned and ends the pass.
func Recompute(ctx context.Context, logger *slog.Logger, s Stores, cfg *config.Config, gameID int64) error {
	challenges, err := s.GameChallenges.ListEnabledByGame(ctx, gameID)
	if err != nil {
		return fmt.Errorf("listing game challenges for game %d: %w", gameID, err)
	}

	solves, err := s.Submissions.ListCorrectByGame(ctx, gameID)
	if err != nil {
		return fmt.Errorf("listing correct submissions for game %d: %w", gameID, err)
	}

	byChallenge := make(map[string][]model.Submission, len(challenges))
	for _, sub := range solves {
		byChallenge[sub.ChallengeID] = append(byChallenge[sub.ChallengeID], sub)
	}

	teamTotals := make(map[int64]int64)
	teamLastCorrect := make(map[int64]time.Time)

	for _, gc := range challenges {
		subs := byChallenge[gc.ChallengeID]
		n := int64(len(subs))
		base := Curve(gc.MaxPts, gc.MinPts, gc.Difficulty, n, cfg.CurveDecay)

		for k, sub := range subs {
			rank := int64(k + 1)
			pts := AwardedPts(base, gc.BonusRatio(int(rank)))

			if err := s.Submissions.SetScore(ctx, sub.ID, pts, rank); err != nil {
				logger.Error("updating submission score", "submission_id", sub.ID, "error", err)
				continue
			}

			if sub.TeamID != nil {
				teamTotals[*sub.TeamID] += pts
				if t, ok := teamLastCorrect[*sub.TeamID]; !ok || sub.CreatedAt.After(t) {
					teamLastCorrect[*sub.TeamID] = sub.CreatedAt
				}
			}
		}

		nextPts := AwardedPts(base, gc.BonusRatio(int(n)+1))
		if nextPts != gc.Pts {
			if err := s.GameChallenges.SetPts(ctx, gameID, gc.ChallengeID, nextPts); err != nil {
				logger.Error("updating game challenge pts", "challenge_id", gc.ChallengeID, "error", err)
			}
		}
	}

	return recomputeTeamRanks(ctx, logger, s.Teams, gameID, teamTotals, teamLastCorrect)
}

func recomputeTeamRanks(ctx context.Context, logger *slog.Logger, teams *store.TeamStore, gameID int64, totals map[int64]int64, lastCorrect map[int64]time.Time) error {
	all, err := teams.ListByGame(ctx, gameID)
	if err != nil {
		return fmt.Errorf("listing teams for game %d: %w", gameID, err)
	}

	var passed []model.Team
	for _, t := range all {
		if t.IsPassed() {
			passed = append(passed, t)
		}
	}

	sort.SliceStable(passed, func(i, j int) bool {
		pi, pj := totals[passed[i].ID], totals[passed[j].ID]
		if pi != pj {
			return pi > pj
		}
		return lastCorrect[passed[i].ID].Before(lastCorrect[passed[j].ID])
	})

	for i, t := range passed {
		pts := totals[t.ID]
		rank := int64(i + 1)
		if err := teams.SetScore(ctx, t.ID, pts, rank); err != nil {
			logger.Error("updating team score", "team_id", t.ID, "error", err)
		}
	}

	return nil
}
