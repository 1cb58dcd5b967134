package scoring

import "math"

// z-value for a 95% two-sided confidence level.
const wilsonZ = 1.96

// Wilson returns the lower bound of the Wilson score confidence interval
// for a binomial proportion built from up/down observation masses. The
// masses may be fractional when votes are bias-weighted. ok is false when
// there are no observations, in which case the estimate is undefined.
func Wilson(up, down float64) (float64, bool) {
	n := up + down
	if n <= 0 {
		return 0, false
	}
	phat := up / n
	z := wilsonZ
	z2 := z * z
	lower := (phat + z2/(2*n) - z*math.Sqrt(phat*(1-phat)/n+z2/(4*n*n))) / (1 + z2/n)
	if lower < 0 {
		lower = 0
	}
	if lower > 1 {
		lower = 1
	}
	return lower, true
}

// Bias maps a voter's Wilson estimate to a trust coefficient in [0,1].
// An estimate at the neutral midpoint earns full trust (1); estimates at
// either extreme are discounted toward 0. A voter with no observations is
// treated as maximally biased (0) until history accumulates.
func Bias(up, down float64) float64 {
	w, ok := Wilson(up, down)
	if !ok {
		return 0
	}
	return 1 - math.Abs(w-0.5)/0.5
}

// ItemScore converts the bias-weighted vote masses of one feed item into
// its ranking contribution: the Wilson estimate over the weighted masses,
// scaled by the total weighted mass so participation still counts.
func ItemScore(posMass, negMass float64) float64 {
	w, ok := Wilson(posMass, negMass)
	if !ok {
		return 0
	}
	return w * (posMass + negMass)
}
