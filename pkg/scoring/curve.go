package scoring

import "math"

// Curve computes the dynamic base point value of a challenge given its
// point bounds, difficulty, and the total number of correct solves n. It
// is monotonically non-increasing in n, equals maxPts for n in {0,1}
// (nobody has solved it yet, or exactly one team has), and approaches
// minPts as n grows without bound. decay stretches or compresses the
// falloff; it is the only tunable free parameter, configured as
// scoring.curve.decay.
func Curve(maxPts, minPts, difficulty, n int64, decay float64) int64 {
	priorSolves := n - 1
	if priorSolves < 0 {
		priorSolves = 0
	}

	scale := curveScale(difficulty, decay)
	falloff := math.Exp(-float64(priorSolves) / scale)
	base := float64(minPts) + float64(maxPts-minPts)*falloff

	return int64(math.Round(base))
}

// curveScale widens the falloff for harder challenges (higher difficulty
// decays more slowly), floored at 1 so a zero or negative difficulty never
// divides by zero or inverts the curve's direction.
func curveScale(difficulty int64, decay float64) float64 {
	d := float64(difficulty)
	if d < 1 {
		d = 1
	}
	return d * decay
}

// AwardedPts applies a solve-rank bonus (percent, e.g. 5 for +5%) to base,
// rounding to the nearest whole point.
func AwardedPts(base, bonusPercent int64) int64 {
	return int64(math.Round(float64(base) * float64(100+bonusPercent) / 100))
}
