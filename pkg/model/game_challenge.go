package model

import "time"

// GameChallenge binds a Challenge into a Game with game-specific scoring
// parameters. Pts is derived exclusively by the scoring engine.
type GameChallenge struct {
	GameID            int64
	ChallengeID       string
	ChallengeTitle    string
	ChallengeCategory string
	IsEnabled         bool
	Difficulty        int64
	MaxPts            int64
	MinPts            int64
	BonusRatios       []int64
	Pts               int64
	FrozenAt          *time.Time
}

// BonusRatio returns the percent bonus for the (rank)-th solver (1-indexed),
// treating a missing entry as zero.
func (gc GameChallenge) BonusRatio(rank int) int64 {
	idx := rank - 1
	if idx < 0 || idx >= len(gc.BonusRatios) {
		return 0
	}
	return gc.BonusRatios[idx]
}
