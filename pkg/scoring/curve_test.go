package scoring

import "testing"

func TestCurve_FirstTwoSolvesAwardMax(t *testing.T) {
	for _, n := range []int64{0, 1} {
		got := Curve(1000, 100, 5, n, 30)
		if got != 1000 {
			t.Errorf("Curve(n=%d) = %d, want 1000", n, got)
		}
	}
}

func TestCurve_NonIncreasing(t *testing.T) {
	prev := Curve(1000, 100, 5, 1, 30)
	for n := int64(2); n <= 50; n++ {
		cur := Curve(1000, 100, 5, n, 30)
		if cur > prev {
			t.Fatalf("Curve(n=%d)=%d > Curve(n=%d)=%d, expected non-increasing", n, cur, n-1, prev)
		}
		prev = cur
	}
}

func TestCurve_ApproachesMin(t *testing.T) {
	got := Curve(1000, 100, 5, 100000, 30)
	if got != 100 {
		t.Errorf("Curve with huge n = %d, want to converge to minPts 100", got)
	}
}

func TestCurve_HarderChallengeDecaysSlower(t *testing.T) {
	easy := Curve(1000, 100, 1, 5, 30)
	hard := Curve(1000, 100, 9, 5, 30)
	if hard <= easy {
		t.Errorf("harder challenge base (%d) should exceed easier challenge base (%d) at the same n", hard, easy)
	}
}

func TestAwardedPts(t *testing.T) {
	tests := []struct {
		base, bonus, want int64
	}{
		{1000, 0, 1000},
		{1000, 5, 1050},
		{1000, -10, 900},
		{333, 0, 333},
	}
	for _, tt := range tests {
		if got := AwardedPts(tt.base, tt.bonus); got != tt.want {
			t.Errorf("AwardedPts(%d, %d) = %d, want %d", tt.base, tt.bonus, got, tt.want)
		}
	}
}
