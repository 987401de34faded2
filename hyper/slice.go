package hyper

import (
	"math"
	"math/rand/v2"
)

// maxShrink caps the shrinkage loop of SliceStep.
const maxShrink = 100

// SliceStep draws one sample from the density exp(logf) by univariate slice
// sampling (Neal 2003) starting at x0. The initial interval of width w is
// stepped out at most maxSteps times in total and is clipped to [lb, ub]; it is
// then shrunk towards x0 until a point inside the slice is found.
//
// If logf(x0) is -Inf, or shrinkage does not find a point, x0 is returned.
func SliceStep(logf func(float64) float64, x0, w float64, maxSteps int, lb, ub float64, rng *rand.Rand) float64 {
	f0 := logf(x0)
	if math.IsInf(f0, -1) || math.IsNaN(f0) {
		return x0
	}
	logY := f0 + math.Log(rng.Float64())

	left := x0 - w*rng.Float64()
	right := left + w
	j := int(math.Floor(float64(maxSteps) * rng.Float64()))
	k := maxSteps - 1 - j
	for ; j > 0 && left > lb && logf(left) > logY; j-- {
		left -= w
	}
	for ; k > 0 && right < ub && logf(right) > logY; k-- {
		right += w
	}
	left, right = math.Max(left, lb), math.Min(right, ub)

	for n := 0; n < maxShrink; n++ {
		x1 := left + rng.Float64()*(right-left)
		if logf(x1) > logY {
			return x1
		}
		if x1 < x0 {
			left = x1
		} else {
			right = x1
		}
	}
	return x0
}
