package scoring

import (
	"sort"
	"testing"
	"time"

	"github.com/cdsctf/cdsctfd/pkg/model"
)

// recomputeTeamRanks's ordering rule (pts desc, then earliest last-correct
// solve wins ties) is exercised directly here since the rest of Recompute
// requires a live database connection.
func TestTeamRankOrdering(t *testing.T) {
	now := time.Now()
	teams := []model.Team{
		{ID: 1, State: model.TeamPassed},
		{ID: 2, State: model.TeamPassed},
		{ID: 3, State: model.TeamPassed},
	}
	totals := map[int64]int64{1: 500, 2: 500, 3: 800}
	lastCorrect := map[int64]time.Time{
		1: now.Add(-1 * time.Hour),
		2: now.Add(-2 * time.Hour), // earlier tiebreak winner over team 1
		3: now,
	}

	sort.SliceStable(teams, func(i, j int) bool {
		pi, pj := totals[teams[i].ID], totals[teams[j].ID]
		if pi != pj {
			return pi > pj
		}
		return lastCorrect[teams[i].ID].Before(lastCorrect[teams[j].ID])
	})

	want := []int64{3, 2, 1}
	for i, id := range want {
		if teams[i].ID != id {
			t.Fatalf("rank %d: got team %d, want team %d", i+1, teams[i].ID, id)
		}
	}
}

func TestBannedTeamsExcludedFromRanking(t *testing.T) {
	teams := []model.Team{
		{ID: 1, State: model.TeamPassed},
		{ID: 2, State: model.TeamBanned},
		{ID: 3, State: model.TeamPreparing},
	}

	var passed []model.Team
	for _, team := range teams {
		if team.IsPassed() {
			passed = append(passed, team)
		}
	}

	if len(passed) != 1 || passed[0].ID != 1 {
		t.Fatalf("expected only team 1 to be scoreboard-eligible, got %+v", passed)
	}
}
