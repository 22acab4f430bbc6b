package model

import "testing"

func TestGameChallenge_BonusRatio(t *testing.T) {
	gc := GameChallenge{BonusRatios: []int64{10, 5, 2}}

	tests := []struct {
		rank int
		want int64
	}{
		{1, 10},
		{2, 5},
		{3, 2},
		{4, 0},
		{0, 0},
		{-1, 0},
	}
	for _, tt := range tests {
		if got := gc.BonusRatio(tt.rank); got != tt.want {
			t.Errorf("BonusRatio(%d) = %d, want %d", tt.rank, got, tt.want)
		}
	}
}
